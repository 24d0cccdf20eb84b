// Package scrape holds the job board scraper collaborator: the parameters a
// search is dispatched with and the adapters that talk to the actual
// scraping backend.
package scrape

import (
	"context"
	"fmt"
	"strings"
)

// DefaultSites are the providers every search is dispatched to.
var DefaultSites = []string{"indeed", "linkedin", "zip_recruiter", "google"}

const DefaultCountry = "USA"

type Params struct {
	Sites            []string `json:"site_name"`
	SearchTerm       string   `json:"search_term"`
	GoogleSearchTerm string   `json:"google_search_term"`
	Location         string   `json:"location"`
	ResultsWanted    int      `json:"results_wanted"`
	HoursOld         int      `json:"hours_old"`
	CountryIndeed    string   `json:"country_indeed"`
}

// Scraper returns the raw rows a search produced. Rows are normally
// domain.RawRow values but adapters pass through whatever the backend sent.
type Scraper interface {
	Name() string
	Scrape(ctx context.Context, p Params) ([]any, error)
}

// GoogleSearchTerm builds the composite query google jobs expects.
func GoogleSearchTerm(term, location string) string {
	return fmt.Sprintf("%s jobs near %s since yesterday", term, location)
}

func NewParams(term, location string, resultsWanted, hoursOld int, sites []string, country string) Params {
	if len(sites) == 0 {
		sites = DefaultSites
	}
	if strings.TrimSpace(country) == "" {
		country = DefaultCountry
	}
	return Params{
		Sites:            append([]string(nil), sites...),
		SearchTerm:       term,
		GoogleSearchTerm: GoogleSearchTerm(term, location),
		Location:         location,
		ResultsWanted:    resultsWanted,
		HoursOld:         hoursOld,
		CountryIndeed:    country,
	}
}

// ForSite narrows p to a single provider.
func (p Params) ForSite(site string) Params {
	out := p
	out.Sites = []string{site}
	return out
}

// Unconfigured fails every search; used when no backend is configured so the
// rest of the engine still starts.
type Unconfigured struct{}

func (Unconfigured) Name() string { return "unconfigured" }

func (Unconfigured) Scrape(context.Context, Params) ([]any, error) {
	return nil, fmt.Errorf("no scraper configured (set scrape.command or scrape.remote_url)")
}
