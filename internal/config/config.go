// Package config loads and validates harvester configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/JakeFAU/orginfo-harvester/internal/crawler"
)

// Checkpoint backends.
const (
	BackendLocal    = "local"
	BackendMemory   = "memory"
	BackendGCS      = "gcs"
	BackendPostgres = "postgres"
)

// Config captures all harvester knobs loaded via Viper.
type Config struct {
	Harvest    HarvestConfig    `mapstructure:"harvest"`
	HTTP       HTTPConfig       `mapstructure:"http"`
	Checkpoint CheckpointConfig `mapstructure:"checkpoint"`
	Export     ExportConfig     `mapstructure:"export"`
	Logging    LoggingConfig    `mapstructure:"logging"`
	Metrics    MetricsConfig    `mapstructure:"metrics"`
	Tracing    TracingConfig    `mapstructure:"tracing"`
	PubSub     PubSubConfig     `mapstructure:"pubsub"`
	DB         DBConfig         `mapstructure:"db"`
}

// HarvestConfig holds the run bounds. These become crawler.RunConfig.
type HarvestConfig struct {
	BaseURL        string        `mapstructure:"base_url"`
	SearchPath     string        `mapstructure:"search_path"`
	Query          string        `mapstructure:"query"`
	StartPage      int           `mapstructure:"start_page"`
	EndPage        int           `mapstructure:"end_page"`
	Workers        int           `mapstructure:"workers"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	PageSize       int           `mapstructure:"page_size"`
	BatchSize      int           `mapstructure:"batch_size"`
}

// HTTPConfig configures the outbound client.
type HTTPConfig struct {
	UserAgent string `mapstructure:"user_agent"`
	// RequestsPerSecond paces requests per host; zero disables pacing.
	RequestsPerSecond float64 `mapstructure:"requests_per_second"`
	Burst             int     `mapstructure:"burst"`
}

// CheckpointConfig selects where the links and records sequences live.
type CheckpointConfig struct {
	Backend     string `mapstructure:"backend"`
	Dir         string `mapstructure:"dir"`
	LinksName   string `mapstructure:"links_name"`
	RecordsName string `mapstructure:"records_name"`
	GCSBucket   string `mapstructure:"gcs_bucket"`
	GCSPrefix   string `mapstructure:"gcs_prefix"`
}

// ExportConfig controls the workbook and console preview.
type ExportConfig struct {
	Path        string `mapstructure:"path"`
	Sheet       string `mapstructure:"sheet"`
	Preview     bool   `mapstructure:"preview"`
	PreviewRows int    `mapstructure:"preview_rows"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool   `mapstructure:"development"`
	Level       string `mapstructure:"level"`
}

// MetricsConfig enables the Prometheus endpoint when ListenAddr is set.
type MetricsConfig struct {
	ListenAddr string `mapstructure:"listen_addr"`
}

// TracingConfig enables OpenTelemetry spans around the run and its phases.
// Finished spans are written to the debug log.
type TracingConfig struct {
	Enabled     bool   `mapstructure:"enabled"`
	ServiceName string `mapstructure:"service_name"`
}

// PubSubConfig holds metadata for the completion notice.
type PubSubConfig struct {
	ProjectID string `mapstructure:"project_id"`
	TopicName string `mapstructure:"topic_name"`
}

// DBConfig controls the Postgres checkpoint backend.
type DBConfig struct {
	DSN             string        `mapstructure:"dsn"`
	Table           string        `mapstructure:"table"`
	MaxConns        int32         `mapstructure:"max_conns"`
	MinConns        int32         `mapstructure:"min_conns"`
	MaxConnLifetime time.Duration `mapstructure:"max_conn_lifetime"`
}

// flagKeys maps command-line flag names onto config keys.
var flagKeys = map[string]string{
	"start":      "harvest.start_page",
	"end":        "harvest.end_page",
	"workers":    "harvest.workers",
	"query":      "harvest.query",
	"timeout":    "harvest.request_timeout",
	"batch-size": "harvest.batch_size",
	"output":     "export.path",
	"backend":    "checkpoint.backend",
}

// Load builds a Config from defaults, an optional file, HARVEST_* environment
// variables, and any flags that were explicitly set, in increasing priority.
func Load(path string, flags *pflag.FlagSet) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("HARVEST")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	if flags != nil {
		for name, key := range flagKeys {
			flag := flags.Lookup(name)
			if flag == nil {
				continue
			}
			if err := v.BindPFlag(key, flag); err != nil {
				return Config{}, fmt.Errorf("bind flag %s: %w", name, err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("harvest.base_url", "https://orginfo.uz")
	v.SetDefault("harvest.search_path", "/uz/search/organizations/")
	v.SetDefault("harvest.query", "fermer xo'jaligi")
	v.SetDefault("harvest.start_page", 1)
	v.SetDefault("harvest.end_page", 1)
	v.SetDefault("harvest.workers", 8)
	v.SetDefault("harvest.request_timeout", 30*time.Second)
	v.SetDefault("harvest.page_size", crawler.DefaultPageSize)
	v.SetDefault("harvest.batch_size", 0)
	v.SetDefault("http.user_agent", "orginfo-harvester/0.1")
	v.SetDefault("http.requests_per_second", 0)
	v.SetDefault("http.burst", 1)
	v.SetDefault("checkpoint.backend", BackendLocal)
	v.SetDefault("checkpoint.dir", ".harvest")
	v.SetDefault("checkpoint.links_name", "links.json")
	v.SetDefault("checkpoint.records_name", "records.json")
	v.SetDefault("export.path", "data.xlsx")
	v.SetDefault("export.sheet", "data")
	v.SetDefault("export.preview", true)
	v.SetDefault("export.preview_rows", 5)
	v.SetDefault("logging.development", false)
	v.SetDefault("logging.level", "info")
	v.SetDefault("tracing.enabled", false)
	v.SetDefault("tracing.service_name", "orginfo-harvester")
	v.SetDefault("db.table", "harvest_checkpoints")
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if _, err := c.RunConfig(); err != nil {
		return err
	}
	if c.Harvest.BaseURL == "" {
		return fmt.Errorf("harvest.base_url is required")
	}
	if c.HTTP.RequestsPerSecond < 0 {
		return fmt.Errorf("http.requests_per_second must be >= 0")
	}
	switch c.Checkpoint.Backend {
	case BackendLocal:
		if c.Checkpoint.Dir == "" {
			return fmt.Errorf("checkpoint.dir is required for the local backend")
		}
	case BackendMemory:
	case BackendGCS:
		if c.Checkpoint.GCSBucket == "" {
			return fmt.Errorf("checkpoint.gcs_bucket is required for the gcs backend")
		}
	case BackendPostgres:
		if c.DB.DSN == "" {
			return fmt.Errorf("db.dsn is required for the postgres backend")
		}
	default:
		return fmt.Errorf("checkpoint.backend %q is not one of local, memory, gcs, postgres", c.Checkpoint.Backend)
	}
	if c.Export.Path == "" {
		return fmt.Errorf("export.path is required")
	}
	if c.PubSub.TopicName != "" && c.PubSub.ProjectID == "" {
		return fmt.Errorf("pubsub.project_id must be set when pubsub.topic_name is set")
	}
	return nil
}

// RunConfig converts the harvest section into an immutable crawler.RunConfig.
func (c Config) RunConfig() (crawler.RunConfig, error) {
	run, err := crawler.NewRunConfig(crawler.RunConfig{
		StartPage:      c.Harvest.StartPage,
		EndPage:        c.Harvest.EndPage,
		Workers:        c.Harvest.Workers,
		Query:          c.Harvest.Query,
		RequestTimeout: c.Harvest.RequestTimeout,
		PageSize:       c.Harvest.PageSize,
		BatchSize:      c.Harvest.BatchSize,
	})
	if err != nil {
		return crawler.RunConfig{}, fmt.Errorf("invalid harvest config: %w", err)
	}
	return run, nil
}
