package config

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/robfig/cron/v3"
)

var knownSites = map[string]bool{
	"indeed": true, "linkedin": true, "zip_recruiter": true, "google": true,
	"glassdoor": true, "bayt": true, "naukri": true,
}

var logLevels = map[string]bool{"debug": true, "info": true, "warn": true, "error": true}

type Validation struct {
	Errors   []string `json:"errors"`
	Warnings []string `json:"warnings"`
}

func (v *Validation) addErr(format string, args ...any) {
	v.Errors = append(v.Errors, fmt.Sprintf(format, args...))
}
func (v *Validation) addWarn(format string, args ...any) {
	v.Warnings = append(v.Warnings, fmt.Sprintf(format, args...))
}
func (v Validation) OK() bool { return len(v.Errors) == 0 }

// NormalizeAndValidate returns a normalized copy of cfg and what is wrong
// with it.
func NormalizeAndValidate(cfg Config) (Config, Validation) {
	var out = cfg
	var res Validation

	trimList := func(xs []string) []string {
		seen := map[string]bool{}
		var ys []string
		for _, x := range xs {
			x = strings.ToLower(strings.TrimSpace(x))
			if x == "" || seen[x] {
				continue
			}
			seen[x] = true
			ys = append(ys, x)
		}
		return ys
	}

	out.Scrape.Sites = trimList(out.Scrape.Sites)
	out.Log.Level = strings.ToLower(strings.TrimSpace(out.Log.Level))
	out.Scrape.RemoteURL = strings.TrimSpace(out.Scrape.RemoteURL)

	if strings.TrimSpace(out.App.Addr) == "" {
		res.addErr("app.addr is required")
	}
	if strings.TrimSpace(out.App.DataDir) == "" {
		res.addErr("app.data_dir is required")
	}
	if !logLevels[out.Log.Level] {
		res.addErr("log.level must be one of debug, info, warn, error (got %q)", cfg.Log.Level)
	}

	if len(out.Scrape.Sites) == 0 {
		res.addErr("scrape.sites must list at least one job board")
	}
	for _, s := range out.Scrape.Sites {
		if !knownSites[s] {
			res.addWarn("scrape.sites contains unknown board %q", s)
		}
	}
	if out.Scrape.TimeoutSeconds <= 0 {
		res.addErr("scrape.timeout_seconds must be > 0")
	} else if out.Scrape.TimeoutSeconds < 30 {
		res.addWarn("scrape.timeout_seconds is very low (%d); most boards need longer.", out.Scrape.TimeoutSeconds)
	}
	if out.Scrape.ResultsWanted <= 0 || out.Scrape.ResultsWanted > 1000 {
		res.addErr("scrape.results_wanted must be 1..1000")
	}
	if out.Scrape.HoursOld <= 0 {
		res.addErr("scrape.hours_old must be > 0")
	}
	if out.Scrape.RatePerSec < 0 {
		res.addErr("scrape.rate_per_sec must be >= 0")
	}
	if out.Scrape.RemoteURL != "" {
		u, err := url.Parse(out.Scrape.RemoteURL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			res.addErr("scrape.remote_url must be an http(s) URL")
		}
	}
	if out.Scrape.RemoteURL != "" && len(out.Scrape.Command) > 0 {
		res.addWarn("both scrape.remote_url and scrape.command are set; remote_url wins")
	}
	if out.Scrape.RemoteURL == "" && len(out.Scrape.Command) == 0 {
		res.addWarn("no scraper configured; searches will fail until scrape.command or scrape.remote_url is set")
	}

	if out.Session.TTLMinutes <= 0 {
		res.addErr("session.ttl_minutes must be > 0")
	}
	if out.Retention.InactiveDays <= 0 {
		res.addErr("retention.inactive_days must be > 0")
	}
	if _, err := cron.ParseStandard(out.Retention.Cron); err != nil {
		res.addErr("retention.cron is invalid: %v", err)
	}

	return out, res
}
