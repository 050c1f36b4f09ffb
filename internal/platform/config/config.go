// Package config provides configuration loading and management using koanf.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Default configuration values.
const (
	// DefaultServerPort is the default HTTP server port.
	DefaultServerPort = 8080

	// DefaultMaxRequestSize is the default maximum request body size (64KB).
	// Style forms are tiny; nothing legitimate comes close.
	DefaultMaxRequestSize = 64 << 10

	// DefaultTransportMaxIdleConns is the default max idle connections.
	DefaultTransportMaxIdleConns = 100

	// DefaultTransportMaxIdleConnsPerHost is the default max idle connections per host.
	DefaultTransportMaxIdleConnsPerHost = 10

	// DefaultLogFileMaxSizeMB is the default max log file size in megabytes.
	DefaultLogFileMaxSizeMB = 100

	// DefaultLogFileMaxBackups is the default number of old log files to retain.
	DefaultLogFileMaxBackups = 3

	// DefaultLogFileMaxAgeDays is the default max days to retain old log files.
	DefaultLogFileMaxAgeDays = 28

	// DefaultHitokotoBaseURL is the public quote service endpoint.
	DefaultHitokotoBaseURL = "https://v1.hitokoto.cn"

	// DefaultCategoryParam is the query parameter the quote service filters on.
	DefaultCategoryParam = "c"
)

// Config is the root configuration structure.
type Config struct {
	App       AppConfig       `koanf:"app"       validate:"required"`
	Server    ServerConfig    `koanf:"server"    validate:"required"`
	Log       LogConfig       `koanf:"log"       validate:"required"`
	Telemetry TelemetryConfig `koanf:"telemetry"`
	Client    ClientConfig    `koanf:"client"    validate:"required"`
	Services  ServicesConfig  `koanf:"services"  validate:"required"`
	Widget    WidgetConfig    `koanf:"widget"    validate:"required"`
	Footer    FooterConfig    `koanf:"footer"`
	Sentry    SentryConfig    `koanf:"sentry"`
}

// AppConfig contains application-level settings.
type AppConfig struct {
	Name        string `koanf:"name"        validate:"required"`
	Version     string `koanf:"version"     validate:"required"`
	Environment string `koanf:"environment" validate:"required,oneof=local dev qa prod test"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Port            int           `koanf:"port"             validate:"required,min=1,max=65535"`
	Host            string        `koanf:"host"             validate:"required"`
	ReadTimeout     time.Duration `koanf:"read_timeout"     validate:"required,min=1s"`
	WriteTimeout    time.Duration `koanf:"write_timeout"    validate:"required,min=1s"`
	IdleTimeout     time.Duration `koanf:"idle_timeout"     validate:"required,min=1s"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout" validate:"required,min=1s"`
	MaxRequestSize  int64         `koanf:"max_request_size" validate:"required,min=1"`
}

// LogConfig contains logging settings.
type LogConfig struct {
	Level  string        `koanf:"level"  validate:"required,oneof=trace debug info warn error"`
	Format string        `koanf:"format" validate:"required,oneof=json text pretty auto"`
	File   LogFileConfig `koanf:"file"`
}

// LogFileConfig contains rolling log file settings.
type LogFileConfig struct {
	Enabled    bool   `koanf:"enabled"`
	Path       string `koanf:"path"        validate:"required_if=Enabled true"`
	MaxSizeMB  int    `koanf:"max_size"    validate:"omitempty,min=1,max=1024"`
	MaxBackups int    `koanf:"max_backups" validate:"omitempty,min=0,max=100"`
	MaxAgeDays int    `koanf:"max_age"     validate:"omitempty,min=0,max=365"`
	Compress   bool   `koanf:"compress"`
}

// TelemetryConfig contains OpenTelemetry settings.
type TelemetryConfig struct {
	Enabled      bool    `koanf:"enabled"`
	Endpoint     string  `koanf:"endpoint"      validate:"required_if=Enabled true"`
	ServiceName  string  `koanf:"service_name"  validate:"required_if=Enabled true"`
	SamplingRate float64 `koanf:"sampling_rate" validate:"min=0,max=1"`
}

// ClientConfig contains HTTP client settings for the quote service.
// There is deliberately no retry section: a failed fetch stays failed until
// the user triggers another one.
type ClientConfig struct {
	Timeout   time.Duration   `koanf:"timeout"   validate:"required,min=100ms"`
	Transport TransportConfig `koanf:"transport" validate:"required"`
}

// TransportConfig contains HTTP transport pool settings.
type TransportConfig struct {
	MaxIdleConns        int           `koanf:"max_idle_conns"          validate:"required,min=1"`
	MaxIdleConnsPerHost int           `koanf:"max_idle_conns_per_host" validate:"required,min=1"`
	IdleConnTimeout     time.Duration `koanf:"idle_conn_timeout"       validate:"required,min=1s"`
}

// ServicesConfig contains configuration for downstream services.
type ServicesConfig struct {
	Hitokoto HitokotoConfig `koanf:"hitokoto" validate:"required"`
}

// HitokotoConfig points at the quote service.
type HitokotoConfig struct {
	BaseURL       string `koanf:"base_url"       validate:"required,url"`
	Name          string `koanf:"name"           validate:"required"`
	CategoryParam string `koanf:"category_param" validate:"required,alphanum"`
}

// WidgetConfig controls widget sessions and their initial style.
type WidgetConfig struct {
	SessionTTL    time.Duration `koanf:"session_ttl"    validate:"required,min=1m"`
	SweepInterval time.Duration `koanf:"sweep_interval" validate:"required,min=1s"`

	// PrefersDark is the ambient color-scheme preference used when the
	// browser does not send one.
	PrefersDark bool `koanf:"prefers_dark"`

	Style StyleConfig `koanf:"style" validate:"required"`
}

// StyleConfig holds the default style in symbolic form. Values are checked
// again by domain.NewStyle when the widget service starts.
type StyleConfig struct {
	FontFamily   string `koanf:"font_family"   validate:"required,font_family"`
	FontSize     string `koanf:"font_size"     validate:"required,font_size"`
	Gradient     string `koanf:"gradient"      validate:"required,gradient"`
	TextColor    string `koanf:"text_color"    validate:"required,hexcolor"`
	BorderColor  string `koanf:"border_color"  validate:"required,hexcolor"`
	ShadowColor  string `koanf:"shadow_color"  validate:"required,hexcolor"`
	BorderRadius int    `koanf:"border_radius" validate:"min=0,max=32"`
	PanelOpen    bool   `koanf:"panel_open"`
	Category     string `koanf:"category"      validate:"omitempty,len=1,lowercase"`
}

// FooterConfig holds the strings rendered verbatim in the page footer.
type FooterConfig struct {
	Project string `koanf:"project"`
	Version string `koanf:"version"`
	Author  string `koanf:"author"`
}

// SentryConfig enables error reporting of fetch failure causes.
type SentryConfig struct {
	DSN        string  `koanf:"dsn"         validate:"omitempty,url"`
	SampleRate float64 `koanf:"sample_rate" validate:"min=0,max=1"`
}

// Enabled reports whether a DSN is configured.
func (s SentryConfig) Enabled() bool {
	return s.DSN != ""
}

// defaults returns the default configuration values.
func defaults() map[string]any {
	return map[string]any{
		"app.name":        "hitokoto-widget",
		"app.version":     "dev",
		"app.environment": "local",

		"server.port":             DefaultServerPort,
		"server.host":             "0.0.0.0",
		"server.read_timeout":     "15s",
		"server.write_timeout":    "15s",
		"server.idle_timeout":     "120s",
		"server.shutdown_timeout": "10s",
		"server.max_request_size": DefaultMaxRequestSize,

		"log.level":            "info",
		"log.format":           "auto",
		"log.file.enabled":     false,
		"log.file.path":        "./logs/hitokoto.log",
		"log.file.max_size":    DefaultLogFileMaxSizeMB,
		"log.file.max_backups": DefaultLogFileMaxBackups,
		"log.file.max_age":     DefaultLogFileMaxAgeDays,
		"log.file.compress":    true,

		"telemetry.enabled":       false,
		"telemetry.endpoint":      "",
		"telemetry.service_name":  "hitokoto-widget",
		"telemetry.sampling_rate": 1.0,

		"client.timeout":                           "10s",
		"client.transport.max_idle_conns":          DefaultTransportMaxIdleConns,
		"client.transport.max_idle_conns_per_host": DefaultTransportMaxIdleConnsPerHost,
		"client.transport.idle_conn_timeout":       "90s",

		"services.hitokoto.base_url":       DefaultHitokotoBaseURL,
		"services.hitokoto.name":           "hitokoto",
		"services.hitokoto.category_param": DefaultCategoryParam,

		"widget.session_ttl":          "24h",
		"widget.sweep_interval":       "5m",
		"widget.prefers_dark":         false,
		"widget.style.font_family":    "font-sans",
		"widget.style.font_size":      "text-xl",
		"widget.style.gradient":       "purple-blue",
		"widget.style.text_color":     "#1a202c",
		"widget.style.border_color":   "#e2e8f0",
		"widget.style.shadow_color":   "#cbd5e0",
		"widget.style.border_radius":  12,
		"widget.style.panel_open":     true,
		"widget.style.category":       "",

		"footer.project": DefaultFooterProject,
		"footer.version": DefaultFooterVersion,
		"footer.author":  DefaultFooterAuthor,

		"sentry.dsn":         "",
		"sentry.sample_rate": 1.0,
	}
}

// Load layers configuration, later layers winning:
//  1. Default values
//  2. configs/base.yaml
//  3. configs/{profile}.yaml
//  4. Environment variables with the APP_ prefix
//
// Missing files are skipped. Load does not validate; call Validate.
func Load(profile string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(confmap.Provider(defaults(), "."), nil); err != nil {
		return nil, fmt.Errorf("loading defaults: %w", err)
	}

	layers := []struct{ name, path string }{
		{"base config", "configs/base.yaml"},
	}
	if profile != "" {
		layers = append(layers, struct{ name, path string }{
			fmt.Sprintf("profile config %q", profile), "configs/" + profile + ".yaml",
		})
	}

	for _, layer := range layers {
		if err := loadFileIfExists(k, layer.path); err != nil {
			return nil, fmt.Errorf("loading %s: %w", layer.name, err)
		}
	}

	if err := k.Load(env.Provider("APP_", ".", envKeyMapper(k.Keys())), nil); err != nil {
		return nil, fmt.Errorf("loading env vars: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unmarshalling config: %w", err)
	}

	return &cfg, nil
}

// envKeyMapper maps APP_WIDGET_SESSION_TTL style names onto config keys.
// Underscores are ambiguous, so names matching a known key map to it
// directly and anything else splits on every underscore.
func envKeyMapper(known []string) func(string) string {
	flat := make(map[string]string, len(known))
	for _, key := range known {
		flat[strings.ReplaceAll(key, ".", "_")] = key
	}

	return func(s string) string {
		name := strings.ToLower(strings.TrimPrefix(s, "APP_"))
		if key, ok := flat[name]; ok {
			return key
		}

		return strings.ReplaceAll(name, "_", ".")
	}
}

// loadFileIfExists merges a YAML file into k. A missing file is not an error.
func loadFileIfExists(k *koanf.Koanf, path string) error {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil
	}

	return k.Load(file.Provider(path), yaml.Parser())
}

// Footer fallbacks applied when a value is set but empty.
const (
	DefaultFooterProject = "Hitokoto App"
	DefaultFooterVersion = "1.0.0"
	DefaultFooterAuthor  = "Unknown"
)

// Resolved returns f with empty values replaced by their literal fallbacks.
func (f FooterConfig) Resolved() FooterConfig {
	if f.Project == "" {
		f.Project = DefaultFooterProject
	}
	if f.Version == "" {
		f.Version = DefaultFooterVersion
	}
	if f.Author == "" {
		f.Author = DefaultFooterAuthor
	}

	return f
}
