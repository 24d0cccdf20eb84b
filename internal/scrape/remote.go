package scrape

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"jobscout-engine/internal/scrape/util"
)

// Remote talks to a jobspy-style HTTP scraping service. Each site is queried
// separately so one blocked provider only costs its own rows.
type Remote struct {
	BaseURL string
	Token   func() (string, error)
	// MaxInFlight caps concurrent site requests; 0 queries every site at once.
	MaxInFlight int

	hc      *http.Client
	limiter *util.HostLimiter
	log     *slog.Logger
}

type searchResponse struct {
	Count int   `json:"count"`
	Jobs  []any `json:"jobs"`
}

func NewRemote(baseURL string, token func() (string, error), limiter *util.HostLimiter, log *slog.Logger) *Remote {
	if log == nil {
		log = slog.Default()
	}
	if limiter == nil {
		limiter = util.NewHostLimiter(0, 1)
	}
	return &Remote{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Token:   token,
		hc:      &http.Client{Timeout: 5 * time.Minute},
		limiter: limiter,
		log:     log,
	}
}

func (r *Remote) Name() string { return "remote" }

func (r *Remote) Scrape(ctx context.Context, p Params) ([]any, error) {
	sites := p.Sites
	if len(sites) == 0 {
		sites = DefaultSites
	}

	var (
		mu      sync.Mutex
		rows    []any
		siteErr []error
	)
	g, gctx := errgroup.WithContext(ctx)
	limit := r.MaxInFlight
	if limit <= 0 {
		limit = len(sites)
	}
	g.SetLimit(limit)

	for _, site := range sites {
		site := site
		g.Go(func() error {
			got, err := r.searchSite(gctx, p.ForSite(site))
			if err != nil && ctx.Err() != nil {
				// the whole search is over, not just this site
				return ctx.Err()
			}
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				r.log.Warn("site search failed", "site", site, "error", err)
				siteErr = append(siteErr, fmt.Errorf("%s: %w", site, err))
				return nil
			}
			r.log.Info("site search done", "site", site, "rows", len(got))
			rows = append(rows, got...)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	if len(siteErr) == len(sites) {
		return nil, errors.Join(siteErr...)
	}
	return rows, nil
}

func (r *Remote) searchSite(ctx context.Context, p Params) ([]any, error) {
	endpoint := r.BaseURL + "/api/v1/search_jobs"
	if err := r.limiter.WaitURL(ctx, endpoint); err != nil {
		return nil, err
	}

	body, err := json.Marshal(p)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "JobScout/1.0 (+engine)")
	if r.Token != nil {
		if tok, err := r.Token(); err == nil && tok != "" {
			req.Header.Set("X-API-Key", tok)
		}
	}

	res, err := r.hc.Do(req)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode > 299 {
		b, _ := io.ReadAll(io.LimitReader(res.Body, 256))
		return nil, fmt.Errorf("status %s: %s", res.Status, strings.TrimSpace(string(b)))
	}

	dec := json.NewDecoder(res.Body)
	dec.UseNumber()
	var out searchResponse
	if err := dec.Decode(&out); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return out.Jobs, nil
}
