package config

import (
	"errors"
	"io/fs"
	"strings"

	"github.com/joho/godotenv"
)

// LoadDotEnv loads KEY=VALUE pairs from paths into the process environment
// without overriding variables that are already set. Missing files are fine.
func LoadDotEnv(paths ...string) error {
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return err
		}
	}
	return nil
}

// ApplyEnv overrides cfg from the environment.
func ApplyEnv(cfg *Config, getenv func(string) string) {
	set := func(key string, dst *string) {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			*dst = v
		}
	}
	set("JOBSCOUT_DATA_DIR", &cfg.App.DataDir)
	set("JOBSCOUT_ADDR", &cfg.App.Addr)
	set("DATABASE_URL", &cfg.Database.URL)
	set("REDIS_URL", &cfg.Redis.URL)
	set("SCRAPER_URL", &cfg.Scrape.RemoteURL)
	set("LOG_LEVEL", &cfg.Log.Level)
	if v := strings.TrimSpace(getenv("SCRAPER_COMMAND")); v != "" {
		cfg.Scrape.Command = strings.Fields(v)
	}
}
