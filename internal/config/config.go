package config

import (
	"errors"
	"io/fs"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/joho/godotenv"
	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/sells-group/zoomtier/internal/db"
	"github.com/sells-group/zoomtier/internal/decimate"
)

// Config holds the full application configuration.
type Config struct {
	Tiers    []decimate.Tier `yaml:"tiers" mapstructure:"tiers"`
	Decimate DecimateConfig  `yaml:"decimate" mapstructure:"decimate"`
	Input    InputConfig     `yaml:"input" mapstructure:"input"`
	Output   OutputConfig    `yaml:"output" mapstructure:"output"`
	Store    StoreConfig     `yaml:"store" mapstructure:"store"`
	Server   ServerConfig    `yaml:"server" mapstructure:"server"`
	Batch    BatchConfig     `yaml:"batch" mapstructure:"batch"`
	Log      LogConfig       `yaml:"log" mapstructure:"log"`
}

// DecimateConfig selects the neighbor index and carry policy.
type DecimateConfig struct {
	Index string `yaml:"index" mapstructure:"index"`
	Carry string `yaml:"carry" mapstructure:"carry"`
}

// InputConfig describes how point files are read.
type InputConfig struct {
	XColumn   string `yaml:"x_column" mapstructure:"x_column"`
	YColumn   string `yaml:"y_column" mapstructure:"y_column"`
	Delimiter string `yaml:"delimiter" mapstructure:"delimiter"`
	Encoding  string `yaml:"encoding" mapstructure:"encoding"`
	Sheet     string `yaml:"sheet" mapstructure:"sheet"`
}

// DelimiterRune returns the configured CSV delimiter, or 0 to pick one from
// the file extension. The two-character string `\t` means tab.
func (c InputConfig) DelimiterRune() rune {
	switch c.Delimiter {
	case "":
		return 0
	case `\t`:
		return '\t'
	}
	d, _ := utf8.DecodeRuneInString(c.Delimiter)
	return d
}

// OutputConfig describes how labeled files are written.
type OutputConfig struct {
	Column string `yaml:"column" mapstructure:"column"`
}

// StoreConfig configures the layer database.
type StoreConfig struct {
	Driver      string        `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string        `yaml:"database_url" mapstructure:"database_url"`
	Pool        db.PoolConfig `yaml:"pool" mapstructure:"pool"`
}

// ServerConfig configures the layer HTTP server.
type ServerConfig struct {
	Port        int           `yaml:"port" mapstructure:"port"`
	CORSOrigins []string      `yaml:"cors_origins" mapstructure:"cors_origins"`
	RateLimit   float64       `yaml:"rate_limit" mapstructure:"rate_limit"`
	RateBurst   int           `yaml:"rate_burst" mapstructure:"rate_burst"`
	CacheSize   int           `yaml:"cache_size" mapstructure:"cache_size"`
	CacheTTL    time.Duration `yaml:"cache_ttl" mapstructure:"cache_ttl"`
	MaxBody     int64         `yaml:"max_body" mapstructure:"max_body"`
}

// BatchConfig configures manifest runs.
type BatchConfig struct {
	Concurrency int    `yaml:"concurrency" mapstructure:"concurrency"`
	Manifest    string `yaml:"manifest" mapstructure:"manifest"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from .env, config.yaml and the environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, eris.Wrap(err, "config: load .env")
	}

	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	v.SetEnvPrefix("ZOOMTIER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("tiers", tierMaps(decimate.DefaultTiers()))
	v.SetDefault("decimate.index", "grid")
	v.SetDefault("decimate.carry", "release")
	v.SetDefault("input.x_column", "lon")
	v.SetDefault("input.y_column", "lat")
	v.SetDefault("input.delimiter", "")
	v.SetDefault("input.encoding", "")
	v.SetDefault("input.sheet", "")
	v.SetDefault("output.column", "zoom")
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "zoomtier.db")
	v.SetDefault("store.pool.max_conns", 10)
	v.SetDefault("store.pool.min_conns", 1)
	v.SetDefault("store.pool.connect_attempts", 3)
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.cors_origins", []string{"*"})
	v.SetDefault("server.rate_limit", 50.0)
	v.SetDefault("server.rate_burst", 100)
	v.SetDefault("server.cache_size", 256)
	v.SetDefault("server.cache_ttl", 5*time.Minute)
	v.SetDefault("server.max_body", 64<<20)
	v.SetDefault("batch.concurrency", 4)
	v.SetDefault("batch.manifest", "layers.yaml")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	// A tier list set through the environment arrives as "1:0.16,2:0.08".
	if s, ok := v.Get("tiers").(string); ok {
		tiers, err := ParseTiers(s)
		if err != nil {
			return nil, err
		}
		v.Set("tiers", tierMaps(tiers))
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Validate checks the tier table and decimation option names.
func (c *Config) Validate() error {
	if err := decimate.ValidateTiers(c.Tiers); err != nil {
		return eris.Wrap(err, "config: tiers")
	}
	if _, err := c.DecimateOptions(); err != nil {
		return err
	}
	switch c.Store.Driver {
	case "", "sqlite", "postgres":
	default:
		return eris.Errorf("config: unsupported store driver %q", c.Store.Driver)
	}
	return nil
}

// DecimateOptions maps the decimate section to assigner options.
func (c *Config) DecimateOptions() ([]decimate.Option, error) {
	carry, err := decimate.ParseCarryPolicy(c.Decimate.Carry)
	if err != nil {
		return nil, eris.Wrap(err, "config: decimate.carry")
	}
	index, err := decimate.ParseIndexKind(c.Decimate.Index)
	if err != nil {
		return nil, eris.Wrap(err, "config: decimate.index")
	}
	return []decimate.Option{decimate.WithCarry(carry), decimate.WithIndex(index)}, nil
}

// ParseTiers parses a comma-separated list of zoom:radius pairs,
// e.g. "1:0.16,2:0.08". The result is not validated.
func ParseTiers(s string) ([]decimate.Tier, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	parts := strings.Split(s, ",")
	tiers := make([]decimate.Tier, 0, len(parts))
	for _, part := range parts {
		zs, rs, ok := strings.Cut(strings.TrimSpace(part), ":")
		if !ok {
			return nil, eris.Errorf("config: tier %q: want zoom:radius", part)
		}
		zoom, err := strconv.Atoi(strings.TrimSpace(zs))
		if err != nil {
			return nil, eris.Wrapf(err, "config: tier %q: zoom", part)
		}
		radius, err := strconv.ParseFloat(strings.TrimSpace(rs), 64)
		if err != nil {
			return nil, eris.Wrapf(err, "config: tier %q: radius", part)
		}
		tiers = append(tiers, decimate.Tier{Zoom: zoom, Radius: radius})
	}
	return tiers, nil
}

func tierMaps(tiers []decimate.Tier) []map[string]any {
	out := make([]map[string]any, len(tiers))
	for i, t := range tiers {
		out[i] = map[string]any{"zoom": t.Zoom, "radius": t.Radius}
	}
	return out
}

// FormatTiers is the inverse of ParseTiers.
func FormatTiers(tiers []decimate.Tier) string {
	parts := make([]string, len(tiers))
	for i, t := range tiers {
		parts[i] = t.String()
	}
	return strings.Join(parts, ",")
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
