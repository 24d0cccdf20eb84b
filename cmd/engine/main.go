package main

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gofrs/flock"

	"jobscout-engine/internal/auth"
	"jobscout-engine/internal/config"
	"jobscout-engine/internal/events"
	"jobscout-engine/internal/httpapi"
	"jobscout-engine/internal/ingest"
	"jobscout-engine/internal/jobs"
	"jobscout-engine/internal/scheduler"
	"jobscout-engine/internal/scrape"
	"jobscout-engine/internal/scrape/util"
	"jobscout-engine/internal/secrets"
	"jobscout-engine/internal/session"
	"jobscout-engine/internal/store"
	"jobscout-engine/internal/tracker"
)

func main() {
	if err := config.LoadDotEnv(".env"); err != nil {
		slog.Error("load .env", "error", err)
		os.Exit(1)
	}

	// Engine data dir: env wins, else the working directory.
	dataDir := os.Getenv("JOBSCOUT_DATA_DIR")
	if dataDir == "" {
		dataDir = "."
	}
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		slog.Error("create data dir", "path", dataDir, "error", err)
		os.Exit(1)
	}

	defaultCfgPath := filepath.Join("config", "config.yml")
	userCfgPath, err := config.EnsureUserConfig(dataDir, defaultCfgPath)
	if err != nil {
		slog.Error("config bootstrap failed", "error", err)
		os.Exit(1)
	}
	raw, err := config.Load(userCfgPath)
	if err != nil {
		slog.Error("config load failed", "path", userCfgPath, "error", err)
		os.Exit(1)
	}
	config.ApplyEnv(&raw, os.Getenv)
	cfg, v := config.NormalizeAndValidate(raw)

	log := newLogger(cfg.Log.Level)
	for _, w := range v.Warnings {
		log.Warn("config", "warning", w)
	}
	if !v.OK() {
		for _, e := range v.Errors {
			log.Error("config", "error", e)
		}
		os.Exit(1)
	}

	if err := os.MkdirAll(cfg.App.DataDir, 0o755); err != nil {
		log.Error("create data dir", "path", cfg.App.DataDir, "error", err)
		os.Exit(1)
	}

	// One engine per data dir.
	lock := flock.New(filepath.Join(cfg.App.DataDir, "engine.lock"))
	locked, err := lock.TryLock()
	if err != nil || !locked {
		log.Error("data dir is in use by another engine", "path", cfg.App.DataDir, "error", err)
		os.Exit(1)
	}
	defer func() { _ = lock.Unlock() }()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	st, err := openStore(ctx, cfg, log)
	if err != nil {
		log.Error("open store", "error", err)
		os.Exit(1)
	}
	defer func() { _ = st.Close() }()

	sessions, sweep, err := openSessions(ctx, cfg, log)
	if err != nil {
		log.Error("open session store", "error", err)
		os.Exit(1)
	}

	export := store.NewCSVExport(cfg.CSVPath())
	token := secrets.NewScraperToken(cfg.Scrape.RemoteURL)

	pipeline := ingest.NewPipeline(newScraper(cfg, token, log), st, log)
	pipeline.Exporter = export
	pipeline.Timeout = time.Duration(cfg.Scrape.TimeoutSeconds) * time.Second
	pipeline.Sites = cfg.Scrape.Sites
	pipeline.Country = cfg.Scrape.CountryIndeed
	pipeline.ResultsWanted = cfg.Scrape.ResultsWanted
	pipeline.HoursOld = cfg.Scrape.HoursOld

	hub := events.NewHub()
	trk := tracker.New(pipeline, log)
	trk.OnChange(func(s tracker.Status) { hub.Emit(events.TypeScrapeStatus, s) })

	jobSvc := jobs.NewService(st, export, log)
	authSvc := auth.NewService(st, sessions, log)

	sched := scheduler.New(ctx, log)
	retention := time.Duration(cfg.Retention.InactiveDays) * 24 * time.Hour
	purge := func(ctx context.Context) error {
		_, err := jobSvc.Purge(ctx, retention)
		return err
	}
	if err := sched.Add(cfg.Retention.Cron, "retention", purge); err != nil {
		log.Error("schedule retention", "error", err)
		os.Exit(1)
	}
	if sweep != nil {
		if err := sched.Add(cfg.Retention.Cron, "session-sweep", sweep); err != nil {
			log.Error("schedule session sweep", "error", err)
			os.Exit(1)
		}
	}
	sched.RunNow("retention", purge)
	sched.Start()

	mux := httpapi.NewMux(httpapi.Deps{
		Jobs:    jobSvc,
		Tracker: trk,
		Auth:    authSvc,
		Hub:     hub,
		Export:  export,
		Token:   token,
		Log:     log,
		RunCtx:  ctx,
	})

	ln, err := net.Listen("tcp", cfg.App.Addr)
	if err != nil {
		log.Error("listen", "addr", cfg.App.Addr, "error", err)
		os.Exit(1)
	}

	srv := &http.Server{
		Handler: httpapi.Chain(mux,
			httpapi.RequestID,
			httpapi.Recover(log),
			httpapi.AccessLog(log),
			httpapi.Cors,
		),
		ReadHeaderTimeout: 5 * time.Second,
	}

	shutdownToken, err := loadShutdownToken(cfg.App.DataDir)
	if err != nil {
		log.Error("shutdown token", "error", err)
		os.Exit(1)
	}
	mux.HandleFunc("/shutdown", shutdownHandler(shutdownToken, srv, log))

	go func() {
		<-ctx.Done()
		shutdownCtx, stop := context.WithTimeout(context.Background(), 10*time.Second)
		defer stop()
		_ = srv.Shutdown(shutdownCtx)
	}()

	log.Info("engine listening", "addr", "http://"+ln.Addr().String(), "config", userCfgPath, "csv", export.Path())
	if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Error("serve", "error", err)
	}

	stopCtx, stop := context.WithTimeout(context.Background(), 10*time.Second)
	defer stop()
	sched.Stop(stopCtx)
	log.Info("engine stopped")
}

func openStore(ctx context.Context, cfg config.Config, log *slog.Logger) (store.Store, error) {
	if cfg.Database.URL != "" {
		pg, err := store.OpenPostgres(ctx, cfg.Database.URL)
		if err != nil {
			return nil, err
		}
		log.Info("using postgres store")
		return pg, nil
	}
	path := cfg.DBPath()
	lite, err := store.OpenSQLite(path)
	if err != nil {
		return nil, err
	}
	log.Info("using sqlite store", "path", path)
	return lite, nil
}

// openSessions also returns the sweep task for backends that need one.
func openSessions(ctx context.Context, cfg config.Config, log *slog.Logger) (session.Store, scheduler.Task, error) {
	ttl := time.Duration(cfg.Session.TTLMinutes) * time.Minute
	if cfg.Redis.URL != "" {
		rdb, err := session.NewRedisClient(ctx, cfg.Redis.URL)
		if err != nil {
			return nil, nil, err
		}
		log.Info("using redis sessions")
		return session.NewRedis(rdb, ttl), nil, nil
	}
	mem := session.NewMemory(ttl)
	sweep := func(ctx context.Context) error {
		n, err := mem.Sweep(ctx)
		if n > 0 {
			log.Info("expired sessions swept", "count", n)
		}
		return err
	}
	return mem, sweep, nil
}

func newScraper(cfg config.Config, token secrets.ScraperToken, log *slog.Logger) scrape.Scraper {
	switch {
	case cfg.Scrape.RemoteURL != "":
		limiter := util.NewHostLimiter(cfg.Scrape.RatePerSec, cfg.Scrape.Burst)
		log.Info("using remote scraper", "url", cfg.Scrape.RemoteURL)
		return scrape.NewRemote(cfg.Scrape.RemoteURL, token.Get, limiter, log)
	case len(cfg.Scrape.Command) > 0:
		log.Info("using command scraper", "argv", cfg.Scrape.Command)
		return scrape.NewCommand(cfg.Scrape.Command, nil, log)
	default:
		log.Warn("no scraper configured; searches will fail")
		return scrape.Unconfigured{}
	}
}
