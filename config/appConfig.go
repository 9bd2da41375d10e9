package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"suppliersync/config/values"
)

const (
	SourceAPI     = "api"
	SourceListing = "listing"

	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite3"
)

type SupplierConfig struct {
	APIURL string `yaml:"api_url"`
	// Origin is used to resolve relative image paths.
	Origin      string                  `yaml:"origin"`
	APIKey      string                  `yaml:"api_key"`
	LanguageID  int                     `yaml:"language_id"`
	DomainID    int                     `yaml:"domain_id"`
	PriceListID int                     `yaml:"price_list_id"`
	UserAgent   string                  `yaml:"user_agent"`
	Timeout     time.Duration           `yaml:"timeout"`
	Listing     values.ListingSelectors `yaml:"listing"`
}

type SyncConfig struct {
	Source          string        `yaml:"source"`
	Concurrency     int           `yaml:"concurrency"`
	PerRequestDelay time.Duration `yaml:"per_request_delay"`
	InterBatchDelay time.Duration `yaml:"inter_batch_delay"`
	MaxRetries      int           `yaml:"max_retries"`
	BaseDelay       time.Duration `yaml:"base_delay"`
	DownloadImages  bool          `yaml:"download_images"`
}

type StorageConfig struct {
	Driver   string         `yaml:"driver"`
	SQLite   SQLiteConfig   `yaml:"sqlite"`
	Postgres PostgresConfig `yaml:"postgres"`
}

// DbConfig returns the connection settings of the selected driver.
func (s StorageConfig) DbConfig() DbConfig {
	if s.Driver == DriverPostgres {
		pg := s.Postgres
		return &pg
	}
	sq := s.SQLite
	return &sq
}

type ImagesConfig struct {
	Dir        string        `yaml:"dir"`
	Timeout    time.Duration `yaml:"timeout"`
	MaxRetries int           `yaml:"max_retries"`
	BaseDelay  time.Duration `yaml:"base_delay"`
}

type ExportConfig struct {
	Dir      string `yaml:"dir"`
	Encoding string `yaml:"encoding"`
}

type LogConfig struct {
	File string `yaml:"file"`
}

type MetricsConfig struct {
	Addr string `yaml:"addr"`
}

type AppConfig struct {
	Supplier SupplierConfig       `yaml:"supplier"`
	Sync     SyncConfig           `yaml:"sync"`
	Pricing  values.PricingValues `yaml:"pricing"`
	Storage  StorageConfig        `yaml:"storage"`
	Images   ImagesConfig         `yaml:"images"`
	Export   ExportConfig         `yaml:"export"`
	Log      LogConfig            `yaml:"log"`
	Metrics  MetricsConfig        `yaml:"metrics"`
}

// Default returns a configuration that runs against a local SQLite file with
// the conservative pacing the supplier asks for.
func Default() *AppConfig {
	return &AppConfig{
		Supplier: SupplierConfig{
			APIURL:      "https://api.supplier.example/v1/products/detail",
			Origin:      "https://www.supplier.example",
			LanguageID:  1,
			DomainID:    1,
			PriceListID: 1,
			UserAgent:   "suppliersync/1.0",
			Timeout:     30 * time.Second,
			Listing:     values.DefaultListingSelectors(),
		},
		Sync: SyncConfig{
			Source:          SourceAPI,
			Concurrency:     10,
			PerRequestDelay: 200 * time.Millisecond,
			InterBatchDelay: 2 * time.Second,
			MaxRetries:      3,
			BaseDelay:       2 * time.Second,
		},
		Pricing: values.DefaultPricing(),
		Storage: StorageConfig{
			Driver: DriverSQLite,
			SQLite: SQLiteConfig{Path: "data/catalog.db"},
			Postgres: PostgresConfig{
				Host:   "localhost",
				Port:   "5432",
				User:   "postgres",
				DBName: "postgres",
			},
		},
		Images: ImagesConfig{
			Dir:        "data/images",
			Timeout:    30 * time.Second,
			MaxRetries: 2,
			BaseDelay:  time.Second,
		},
		Export: ExportConfig{
			Dir:      "data/exports",
			Encoding: "utf-8",
		},
		Metrics: MetricsConfig{Addr: ":9102"},
	}
}

// LoadConfig reads the YAML file on top of Default and applies environment
// overrides. An empty filename yields the defaults.
func LoadConfig(filename string) (*AppConfig, error) {
	config := Default()

	if filename != "" {
		file, err := os.Open(filename)
		if err != nil {
			return nil, err
		}
		defer file.Close()

		decoder := yaml.NewDecoder(file)
		decoder.KnownFields(true)
		if err := decoder.Decode(config); err != nil {
			return nil, fmt.Errorf("decode %s: %w", filename, err)
		}
	}

	applyEnv(config)
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

func (c *AppConfig) Validate() error {
	var errs []error

	switch c.Sync.Source {
	case SourceAPI, SourceListing:
	default:
		errs = append(errs, fmt.Errorf("sync.source: unknown source %q", c.Sync.Source))
	}
	if c.Sync.Concurrency <= 0 {
		errs = append(errs, errors.New("sync.concurrency must be positive"))
	}
	if c.Sync.PerRequestDelay < 0 || c.Sync.InterBatchDelay < 0 || c.Sync.BaseDelay < 0 {
		errs = append(errs, errors.New("sync delays must not be negative"))
	}
	if c.Sync.MaxRetries < 0 {
		errs = append(errs, errors.New("sync.max_retries must not be negative"))
	}

	switch c.Storage.Driver {
	case DriverPostgres, DriverSQLite:
	default:
		errs = append(errs, fmt.Errorf("storage.driver: unknown driver %q", c.Storage.Driver))
	}

	if len(c.Pricing.Tiers) == 0 {
		errs = append(errs, errors.New("pricing.tiers must not be empty"))
	}
	for category, tiers := range c.Pricing.Categories {
		if len(tiers) == 0 {
			errs = append(errs, fmt.Errorf("pricing.categories.%s has no tiers", category))
		}
	}

	switch strings.ToLower(c.Export.Encoding) {
	case "", "utf-8", "utf8", "windows-1252", "windows-1251":
	default:
		errs = append(errs, fmt.Errorf("export.encoding: unsupported %q", c.Export.Encoding))
	}

	return errors.Join(errs...)
}
