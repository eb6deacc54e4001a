package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"offer-clv/pkg/models"

	"gopkg.in/yaml.v3"
)

// Defaults match the static layout the dashboard was built around.
const (
	DefaultDataRoot = "./public"
	DefaultCatalog  = "/data/offer_lookup.csv"
	DefaultHistory  = "/data/offer_history.csv"
	DefaultAsOf     = "2021-04-30"
	DefaultAddr     = ":8080"
)

// Config is the full runtime configuration.
type Config struct {
	Run        models.Config
	S3Region   string
	S3Endpoint string
	LogLevel   string
}

type configFile struct {
	Data struct {
		Root    string `yaml:"root"`
		Catalog string `yaml:"catalog"`
		History string `yaml:"history"`
		DSN     string `yaml:"dsn"`
		Timeout string `yaml:"timeout"`
	} `yaml:"data"`
	S3 struct {
		Region   string `yaml:"region"`
		Endpoint string `yaml:"endpoint"`
	} `yaml:"s3"`
	Report struct {
		AsOf string `yaml:"as_of"`
	} `yaml:"report"`
	Server struct {
		Addr string `yaml:"addr"`
	} `yaml:"server"`
	Log struct {
		Level string `yaml:"level"`
	} `yaml:"log"`
}

// Load builds the configuration: defaults, then the YAML file at path (a
// missing file is not an error), then OFFER_CLV_* environment variables.
func Load(path string) (Config, error) {
	cfg := Config{
		Run: models.Config{
			DataRoot:    DefaultDataRoot,
			Catalog:     DefaultCatalog,
			History:     DefaultHistory,
			AsOf:        DefaultAsOf,
			Addr:        DefaultAddr,
			Format:      "json",
			LoadTimeout: 30 * time.Second,
		},
		LogLevel: "info",
	}

	if path != "" {
		raw, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := applyFile(&cfg, raw); err != nil {
				return Config{}, err
			}
		case errors.Is(err, os.ErrNotExist):
		default:
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
	}

	if err := applyEnv(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func applyFile(cfg *Config, raw []byte) error {
	var f configFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return fmt.Errorf("parse config file: %w", err)
	}
	setString(&cfg.Run.DataRoot, f.Data.Root)
	setString(&cfg.Run.Catalog, f.Data.Catalog)
	setString(&cfg.Run.History, f.Data.History)
	setString(&cfg.Run.DSN, f.Data.DSN)
	setString(&cfg.Run.AsOf, f.Report.AsOf)
	setString(&cfg.Run.Addr, f.Server.Addr)
	setString(&cfg.S3Region, f.S3.Region)
	setString(&cfg.S3Endpoint, f.S3.Endpoint)
	setString(&cfg.LogLevel, f.Log.Level)
	if f.Data.Timeout != "" {
		d, err := time.ParseDuration(f.Data.Timeout)
		if err != nil {
			return fmt.Errorf("data.timeout: %w", err)
		}
		cfg.Run.LoadTimeout = d
	}
	return nil
}

func applyEnv(cfg *Config) error {
	setString(&cfg.Run.DataRoot, os.Getenv("OFFER_CLV_DATA_ROOT"))
	setString(&cfg.Run.Catalog, os.Getenv("OFFER_CLV_CATALOG"))
	setString(&cfg.Run.History, os.Getenv("OFFER_CLV_HISTORY"))
	setString(&cfg.Run.DSN, os.Getenv("OFFER_CLV_DSN"))
	setString(&cfg.Run.AsOf, os.Getenv("OFFER_CLV_AS_OF"))
	setString(&cfg.Run.Addr, os.Getenv("OFFER_CLV_ADDR"))
	setString(&cfg.S3Region, os.Getenv("OFFER_CLV_S3_REGION"))
	setString(&cfg.S3Endpoint, os.Getenv("OFFER_CLV_S3_ENDPOINT"))
	setString(&cfg.LogLevel, os.Getenv("OFFER_CLV_LOG_LEVEL"))
	if v := strings.TrimSpace(os.Getenv("OFFER_CLV_TIMEOUT")); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("OFFER_CLV_TIMEOUT: %w", err)
		}
		cfg.Run.LoadTimeout = d
	}
	if v := strings.TrimSpace(os.Getenv("OFFER_CLV_VERBOSE")); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("OFFER_CLV_VERBOSE: %w", err)
		}
		cfg.Run.Verbose = b
	}
	return nil
}

// Validate checks the values that cannot be defaulted.
func (c Config) Validate() error {
	if c.Run.Catalog == "" || c.Run.History == "" {
		return fmt.Errorf("catalog and history locations are required")
	}
	if c.Run.AsOf != "" {
		if _, err := time.Parse("2006-01-02", c.Run.AsOf); err != nil {
			return fmt.Errorf("as-of date %q: expected YYYY-MM-DD", c.Run.AsOf)
		}
	}
	if c.Run.LoadTimeout <= 0 {
		return fmt.Errorf("load timeout must be positive")
	}
	switch c.Run.Format {
	case "json", "pretty", "text", "csv":
	default:
		return fmt.Errorf("unknown format %q", c.Run.Format)
	}
	return nil
}

func setString(dst *string, v string) {
	if v = strings.TrimSpace(v); v != "" {
		*dst = v
	}
}
