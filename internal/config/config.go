// Package config loads the engine configuration: a YAML file under the data
// dir, optionally a .env file, then environment overrides.
package config

import (
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

type Config struct {
	App struct {
		Addr    string `yaml:"addr"`
		DataDir string `yaml:"data_dir"`
	} `yaml:"app"`

	Log struct {
		Level string `yaml:"level"`
	} `yaml:"log"`

	// Postgres replaces the SQLite file when URL is set.
	Database struct {
		URL string `yaml:"url"`
	} `yaml:"database"`

	// Redis holds sessions when URL is set; otherwise they live in memory.
	Redis struct {
		URL string `yaml:"url"`
	} `yaml:"redis"`

	Scrape struct {
		Sites          []string `yaml:"sites"`
		CountryIndeed  string   `yaml:"country_indeed"`
		TimeoutSeconds int      `yaml:"timeout_seconds"`
		ResultsWanted  int      `yaml:"results_wanted"`
		HoursOld       int      `yaml:"hours_old"`
		Command        []string `yaml:"command"`
		RemoteURL      string   `yaml:"remote_url"`
		RatePerSec     float64  `yaml:"rate_per_sec"`
		Burst          int      `yaml:"burst"`
	} `yaml:"scrape"`

	Session struct {
		TTLMinutes int `yaml:"ttl_minutes"`
	} `yaml:"session"`

	Retention struct {
		InactiveDays int    `yaml:"inactive_days"`
		Cron         string `yaml:"cron"`
	} `yaml:"retention"`

	Export struct {
		CSVPath string `yaml:"csv_path"`
	} `yaml:"export"`
}

func Default() Config {
	var c Config
	c.App.Addr = "127.0.0.1:5001"
	c.App.DataDir = "."
	c.Log.Level = "info"
	c.Scrape.Sites = []string{"indeed", "linkedin", "zip_recruiter", "google"}
	c.Scrape.CountryIndeed = "USA"
	c.Scrape.TimeoutSeconds = 300
	c.Scrape.ResultsWanted = 20
	c.Scrape.HoursOld = 72
	c.Scrape.RatePerSec = 2
	c.Scrape.Burst = 2
	c.Session.TTLMinutes = 1440
	c.Retention.InactiveDays = 30
	c.Retention.Cron = "@daily"
	return c
}

// Load reads path on top of Default, so omitted keys keep their defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	err = yaml.Unmarshal(b, &cfg)
	return cfg, err
}

// CSVPath resolves the export file, defaulting to jobs.csv in the data dir.
func (c Config) CSVPath() string {
	if c.Export.CSVPath != "" {
		return c.Export.CSVPath
	}
	return filepath.Join(c.App.DataDir, "jobs.csv")
}

func (c Config) DBPath() string {
	return filepath.Join(c.App.DataDir, "jobscout.db")
}
