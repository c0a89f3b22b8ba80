// Package config loads and validates crawler configuration via Viper.
package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/JakeFAU/lore-crawler/internal/crawler"
	"github.com/JakeFAU/lore-crawler/internal/extract"
)

// Browser drivers.
const (
	DriverChromedp = "chromedp"
	DriverRod      = "rod"
	DriverReplay   = "replay"
)

// Trace exporters.
const (
	ExporterNone   = "none"
	ExporterStdout = "stdout"
	ExporterGCP    = "gcp"
)

// Output backends.
const (
	BackendLocal = "local"
	BackendGCS   = "gcs"
)

// Config captures all crawler configuration knobs loaded via Viper.
type Config struct {
	Site      SiteConfig      `mapstructure:"site"`
	Crawl     CrawlConfig     `mapstructure:"crawl"`
	Browser   BrowserConfig   `mapstructure:"browser"`
	Timeouts  TimeoutsConfig  `mapstructure:"timeouts"`
	Pacing    PacingConfig    `mapstructure:"pacing"`
	Selectors SelectorsConfig `mapstructure:"selectors"`
	Output    OutputConfig    `mapstructure:"output"`
	Postgres  PostgresConfig  `mapstructure:"postgres"`
	PubSub    PubSubConfig    `mapstructure:"pubsub"`
	Server    ServerConfig    `mapstructure:"server"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
}

// SiteConfig names the lore site to crawl.
type SiteConfig struct {
	BaseURL    string `mapstructure:"base_url"`
	CatalogURL string `mapstructure:"catalog_url"`
}

// CrawlConfig bounds a run.
type CrawlConfig struct {
	Limit int `mapstructure:"limit"`
}

// BrowserConfig selects and tunes the page driver.
type BrowserConfig struct {
	Driver       string  `mapstructure:"driver"`
	Headless     bool    `mapstructure:"headless"`
	ExecPath     string  `mapstructure:"exec_path"`
	UserAgent    string  `mapstructure:"user_agent"`
	Stealth      bool    `mapstructure:"stealth"`
	WindowWidth  int     `mapstructure:"window_width"`
	WindowHeight int     `mapstructure:"window_height"`
	NavQPS       float64 `mapstructure:"nav_qps"`
	SnapshotDir  string  `mapstructure:"snapshot_dir"`
	ReplayDir    string  `mapstructure:"replay_dir"`
}

// TimeoutsConfig holds the bounded waits. Page-level values are seconds,
// element waits are milliseconds.
type TimeoutsConfig struct {
	NavigationSeconds  int `mapstructure:"navigation_seconds"`
	ActionSeconds      int `mapstructure:"action_seconds"`
	BodyWaitSeconds    int `mapstructure:"body_wait_seconds"`
	CatalogWaitSeconds int `mapstructure:"catalog_wait_seconds"`
	CatalogSettleMs    int `mapstructure:"catalog_settle_ms"`
	RoleWaitMs         int `mapstructure:"role_wait_ms"`
	RelatedWaitMs      int `mapstructure:"related_wait_ms"`
	RevealWaitMs       int `mapstructure:"reveal_wait_ms"`
}

// PacingConfig holds the randomized pauses, in milliseconds.
type PacingConfig struct {
	EntityMinMs       int `mapstructure:"entity_min_ms"`
	EntityMaxMs       int `mapstructure:"entity_max_ms"`
	SettleMinMs       int `mapstructure:"settle_min_ms"`
	SettleMaxMs       int `mapstructure:"settle_max_ms"`
	RevealPauseMs     int `mapstructure:"reveal_pause_ms"`
	PostRevealPauseMs int `mapstructure:"post_reveal_pause_ms"`
	RevealScrollPx    int `mapstructure:"reveal_scroll_px"`
}

// SelectorsConfig points at an optional YAML selector overlay.
type SelectorsConfig struct {
	File string `mapstructure:"file"`
}

// OutputConfig chooses where checkpoint and final artifacts land.
type OutputConfig struct {
	Backend        string `mapstructure:"backend"`
	Dir            string `mapstructure:"dir"`
	Bucket         string `mapstructure:"bucket"`
	Prefix         string `mapstructure:"prefix"`
	CheckpointName string `mapstructure:"checkpoint_name"`
	CSVName        string `mapstructure:"csv_name"`
	JSONName       string `mapstructure:"json_name"`
}

// PostgresConfig enables the optional entity table mirror.
type PostgresConfig struct {
	Enabled            bool   `mapstructure:"enabled"`
	DSN                string `mapstructure:"dsn"`
	Table              string `mapstructure:"table"`
	MaxConns           int32  `mapstructure:"max_conns"`
	MinConns           int32  `mapstructure:"min_conns"`
	MaxConnLifetimeMin int    `mapstructure:"max_conn_lifetime_minutes"`
}

// PubSubConfig holds metadata for entity notifications.
type PubSubConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	ProjectID string `mapstructure:"project_id"`
	TopicName string `mapstructure:"topic_name"`
}

// ServerConfig controls the optional ops HTTP server.
type ServerConfig struct {
	Enabled bool `mapstructure:"enabled"`
	Port    int  `mapstructure:"port"`
}

// LoggingConfig toggles zap development features and the rotating file sink.
type LoggingConfig struct {
	Development bool   `mapstructure:"development"`
	Level       string `mapstructure:"level"`
	File        string `mapstructure:"file"`
	MaxSizeMB   int    `mapstructure:"max_size_mb"`
	MaxBackups  int    `mapstructure:"max_backups"`
	MaxAgeDays  int    `mapstructure:"max_age_days"`
}

// TelemetryConfig controls tracing.
type TelemetryConfig struct {
	Enabled     bool   `mapstructure:"enabled"`
	ServiceName string `mapstructure:"service_name"`
	// Exporter is none, stdout or gcp (Cloud Trace).
	Exporter  string `mapstructure:"exporter"`
	ProjectID string `mapstructure:"project_id"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("CRAWLER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
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
	v.SetDefault("site.base_url", "https://universe.leagueoflegends.com/en_US")
	v.SetDefault("site.catalog_url", "")
	v.SetDefault("crawl.limit", 0)
	v.SetDefault("browser.driver", DriverChromedp)
	v.SetDefault("browser.headless", true)
	v.SetDefault("browser.exec_path", "")
	v.SetDefault("browser.user_agent", "")
	v.SetDefault("browser.stealth", false)
	v.SetDefault("browser.window_width", 1920)
	v.SetDefault("browser.window_height", 1080)
	v.SetDefault("browser.nav_qps", 1.0)
	v.SetDefault("browser.snapshot_dir", "")
	v.SetDefault("browser.replay_dir", "")
	v.SetDefault("timeouts.navigation_seconds", 45)
	v.SetDefault("timeouts.action_seconds", 20)
	v.SetDefault("timeouts.body_wait_seconds", 15)
	v.SetDefault("timeouts.catalog_wait_seconds", 10)
	v.SetDefault("timeouts.catalog_settle_ms", 5000)
	v.SetDefault("timeouts.role_wait_ms", 5000)
	v.SetDefault("timeouts.related_wait_ms", 3000)
	v.SetDefault("timeouts.reveal_wait_ms", 7000)
	v.SetDefault("pacing.entity_min_ms", 1500)
	v.SetDefault("pacing.entity_max_ms", 3500)
	v.SetDefault("pacing.settle_min_ms", 1000)
	v.SetDefault("pacing.settle_max_ms", 2000)
	v.SetDefault("pacing.reveal_pause_ms", 1000)
	v.SetDefault("pacing.post_reveal_pause_ms", 500)
	v.SetDefault("pacing.reveal_scroll_px", 150)
	v.SetDefault("selectors.file", "")
	v.SetDefault("output.backend", BackendLocal)
	v.SetDefault("output.dir", "data")
	v.SetDefault("output.bucket", "")
	v.SetDefault("output.prefix", "")
	v.SetDefault("output.checkpoint_name", "progress_champions_data.json")
	v.SetDefault("output.csv_name", "lol_champions_data.csv")
	v.SetDefault("output.json_name", "lol_champions_data.json")
	v.SetDefault("postgres.enabled", false)
	v.SetDefault("postgres.dsn", "")
	v.SetDefault("postgres.table", "lore_entities")
	v.SetDefault("postgres.max_conns", 4)
	v.SetDefault("postgres.min_conns", 0)
	v.SetDefault("postgres.max_conn_lifetime_minutes", 30)
	v.SetDefault("pubsub.enabled", false)
	v.SetDefault("pubsub.project_id", "")
	v.SetDefault("pubsub.topic_name", "lore-entities")
	v.SetDefault("server.enabled", false)
	v.SetDefault("server.port", 8080)
	v.SetDefault("logging.development", true)
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.file", "")
	v.SetDefault("logging.max_size_mb", 50)
	v.SetDefault("logging.max_backups", 3)
	v.SetDefault("logging.max_age_days", 14)
	v.SetDefault("telemetry.enabled", false)
	v.SetDefault("telemetry.service_name", "lore-crawler")
	v.SetDefault("telemetry.exporter", ExporterNone)
	v.SetDefault("telemetry.project_id", "")
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	base, err := url.Parse(c.Site.BaseURL)
	if err != nil || base.Scheme == "" || base.Host == "" {
		return fmt.Errorf("site.base_url must be an absolute URL, got %q", c.Site.BaseURL)
	}
	if c.Crawl.Limit < 0 {
		return fmt.Errorf("crawl.limit must be >= 0")
	}
	switch c.Browser.Driver {
	case DriverChromedp, DriverRod:
	case DriverReplay:
		if c.Browser.ReplayDir == "" {
			return fmt.Errorf("browser.replay_dir must be set when browser.driver is %q", DriverReplay)
		}
	default:
		return fmt.Errorf("browser.driver must be one of chromedp, rod, replay; got %q", c.Browser.Driver)
	}
	if c.Browser.NavQPS < 0 {
		return fmt.Errorf("browser.nav_qps must be >= 0")
	}
	if c.Timeouts.NavigationSeconds <= 0 {
		return fmt.Errorf("timeouts.navigation_seconds must be > 0")
	}
	if c.Timeouts.BodyWaitSeconds <= 0 {
		return fmt.Errorf("timeouts.body_wait_seconds must be > 0")
	}
	if c.Pacing.EntityMinMs < 0 || c.Pacing.EntityMaxMs < c.Pacing.EntityMinMs {
		return fmt.Errorf("pacing.entity_min_ms must be >= 0 and <= pacing.entity_max_ms")
	}
	if c.Pacing.SettleMinMs < 0 || c.Pacing.SettleMaxMs < c.Pacing.SettleMinMs {
		return fmt.Errorf("pacing.settle_min_ms must be >= 0 and <= pacing.settle_max_ms")
	}
	switch c.Output.Backend {
	case BackendLocal:
		if c.Output.Dir == "" {
			return fmt.Errorf("output.dir must be set for the local backend")
		}
	case BackendGCS:
		if c.Output.Bucket == "" {
			return fmt.Errorf("output.bucket must be set for the gcs backend")
		}
	default:
		return fmt.Errorf("output.backend must be local or gcs; got %q", c.Output.Backend)
	}
	if c.Postgres.Enabled && c.Postgres.DSN == "" {
		return fmt.Errorf("postgres.dsn must be set when postgres is enabled")
	}
	if c.PubSub.Enabled && (c.PubSub.ProjectID == "" || c.PubSub.TopicName == "") {
		return fmt.Errorf("pubsub.project_id and pubsub.topic_name must be set when pubsub is enabled")
	}
	if c.Server.Enabled && c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	switch c.Telemetry.Exporter {
	case ExporterNone, ExporterStdout:
	case ExporterGCP:
		if c.Telemetry.ProjectID == "" {
			return fmt.Errorf("telemetry.project_id must be set for the gcp exporter")
		}
	default:
		return fmt.Errorf("telemetry.exporter must be one of none, stdout, gcp; got %q", c.Telemetry.Exporter)
	}
	return nil
}

// EntityPacing returns the pause window drawn between entities.
func (c Config) EntityPacing() crawler.Window {
	return crawler.Window{Min: ms(c.Pacing.EntityMinMs), Max: ms(c.Pacing.EntityMaxMs)}
}

// Timing maps the timeout and pacing sections onto extractor timing.
func (c Config) Timing() extract.Timing {
	return extract.Timing{
		CatalogSettle:   ms(c.Timeouts.CatalogSettleMs),
		CatalogWait:     time.Duration(c.Timeouts.CatalogWaitSeconds) * time.Second,
		BodyWait:        time.Duration(c.Timeouts.BodyWaitSeconds) * time.Second,
		Settle:          crawler.Window{Min: ms(c.Pacing.SettleMinMs), Max: ms(c.Pacing.SettleMaxMs)},
		RoleWait:        ms(c.Timeouts.RoleWaitMs),
		RelatedWait:     ms(c.Timeouts.RelatedWaitMs),
		RevealWait:      ms(c.Timeouts.RevealWaitMs),
		RevealPause:     ms(c.Pacing.RevealPauseMs),
		PostRevealPause: ms(c.Pacing.PostRevealPauseMs),
		RevealScrollY:   c.Pacing.RevealScrollPx,
	}
}

// NavigationTimeout bounds a single page navigation in the live drivers.
func (c Config) NavigationTimeout() time.Duration {
	return time.Duration(c.Timeouts.NavigationSeconds) * time.Second
}

// ActionTimeout bounds a single element action in the live drivers.
func (c Config) ActionTimeout() time.Duration {
	return time.Duration(c.Timeouts.ActionSeconds) * time.Second
}

// MaxConnLifetime converts the Postgres lifetime to a duration.
func (c Config) MaxConnLifetime() time.Duration {
	return time.Duration(c.Postgres.MaxConnLifetimeMin) * time.Minute
}

func ms(n int) time.Duration {
	return time.Duration(n) * time.Millisecond
}
