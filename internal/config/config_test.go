package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/sells-group/zoomtier/internal/decimate"
)

func chdirTemp(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) }) //nolint:errcheck
	return dir
}

func TestLoadDefaults(t *testing.T) {
	chdirTemp(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, decimate.DefaultTiers(), cfg.Tiers)
	assert.Equal(t, "grid", cfg.Decimate.Index)
	assert.Equal(t, "release", cfg.Decimate.Carry)
	assert.Equal(t, "lon", cfg.Input.XColumn)
	assert.Equal(t, "lat", cfg.Input.YColumn)
	assert.Equal(t, "zoom", cfg.Output.Column)
	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, "zoomtier.db", cfg.Store.DatabaseURL)
	assert.Equal(t, int32(10), cfg.Store.Pool.MaxConns)
	assert.Equal(t, 3, cfg.Store.Pool.ConnectAttempts)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, []string{"*"}, cfg.Server.CORSOrigins)
	assert.InDelta(t, 50.0, cfg.Server.RateLimit, 0.001)
	assert.Equal(t, 100, cfg.Server.RateBurst)
	assert.Equal(t, 256, cfg.Server.CacheSize)
	assert.Equal(t, 5*time.Minute, cfg.Server.CacheTTL)
	assert.Equal(t, 4, cfg.Batch.Concurrency)
	assert.Equal(t, "layers.yaml", cfg.Batch.Manifest)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.NoError(t, cfg.Validate())
}

func TestLoadFromYAML(t *testing.T) {
	dir := chdirTemp(t)

	yaml := `
tiers:
  - zoom: 3
    radius: 0.5
  - zoom: 5
    radius: 0.1
decimate:
  carry: retain
input:
  x_column: longitude
  y_column: latitude
store:
  driver: postgres
  database_url: postgres://localhost/zoomtier
log:
  level: debug
  format: console
server:
  port: 9090
  cache_ttl: 30s
batch:
  concurrency: 8
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, []decimate.Tier{{Zoom: 3, Radius: 0.5}, {Zoom: 5, Radius: 0.1}}, cfg.Tiers)
	assert.Equal(t, "retain", cfg.Decimate.Carry)
	assert.Equal(t, "longitude", cfg.Input.XColumn)
	assert.Equal(t, "latitude", cfg.Input.YColumn)
	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Format)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, 30*time.Second, cfg.Server.CacheTTL)
	assert.Equal(t, 8, cfg.Batch.Concurrency)
	// Defaults still apply for unset values
	assert.Equal(t, "zoom", cfg.Output.Column)
	assert.Equal(t, "grid", cfg.Decimate.Index)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	dir := chdirTemp(t)

	yaml := `
store:
  driver: postgres
log:
  level: debug
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	t.Setenv("ZOOMTIER_STORE_DRIVER", "sqlite")
	t.Setenv("ZOOMTIER_LOG_LEVEL", "warn")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestLoadEnvTiers(t *testing.T) {
	chdirTemp(t)
	t.Setenv("ZOOMTIER_TIERS", "1:0.3, 2:0.1")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, []decimate.Tier{{Zoom: 1, Radius: 0.3}, {Zoom: 2, Radius: 0.1}}, cfg.Tiers)
}

func TestLoadEnvTiers_Malformed(t *testing.T) {
	chdirTemp(t)
	t.Setenv("ZOOMTIER_TIERS", "1=0.3")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "want zoom:radius")
}

func TestLoadDotEnv(t *testing.T) {
	dir := chdirTemp(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("ZOOMTIER_SERVER_PORT=3000\n"), 0644))
	t.Cleanup(func() { os.Unsetenv("ZOOMTIER_SERVER_PORT") }) //nolint:errcheck

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 3000, cfg.Server.Port)
}

func TestLoadEnvOverridesDotEnv(t *testing.T) {
	dir := chdirTemp(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("ZOOMTIER_SERVER_PORT=3000\n"), 0644))
	t.Setenv("ZOOMTIER_SERVER_PORT", "4000")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 4000, cfg.Server.Port)
}

func TestLoadInvalidYAML(t *testing.T) {
	dir := chdirTemp(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("tiers: [\n"), 0644))

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "config: read file")
}

func TestParseTiers(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    []decimate.Tier
		wantErr string
	}{
		{name: "empty", input: "", want: nil},
		{name: "single", input: "1:0.16", want: []decimate.Tier{{Zoom: 1, Radius: 0.16}}},
		{name: "spaces", input: " 1 : 0.16 , 2:0.08 ", want: []decimate.Tier{{Zoom: 1, Radius: 0.16}, {Zoom: 2, Radius: 0.08}}},
		{name: "missing colon", input: "1-0.16", wantErr: "want zoom:radius"},
		{name: "bad zoom", input: "a:0.16", wantErr: "zoom"},
		{name: "bad radius", input: "1:x", wantErr: "radius"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseTiers(tt.input)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFormatTiers(t *testing.T) {
	assert.Equal(t, "1:0.16,2:0.08,3:0.04,4:0.02", FormatTiers(decimate.DefaultTiers()))

	back, err := ParseTiers(FormatTiers(decimate.DefaultTiers()))
	require.NoError(t, err)
	assert.Equal(t, decimate.DefaultTiers(), back)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "ok", mutate: func(*Config) {}},
		{name: "bad tiers", mutate: func(c *Config) { c.Tiers = []decimate.Tier{{Zoom: 2, Radius: 1}, {Zoom: 1, Radius: 0.5}} }, wantErr: "config: tiers"},
		{name: "bad carry", mutate: func(c *Config) { c.Decimate.Carry = "invert" }, wantErr: "decimate.carry"},
		{name: "bad index", mutate: func(c *Config) { c.Decimate.Index = "rtree" }, wantErr: "decimate.index"},
		{name: "bad driver", mutate: func(c *Config) { c.Store.Driver = "mysql" }, wantErr: "unsupported store driver"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{Tiers: decimate.DefaultTiers()}
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestDecimateOptions(t *testing.T) {
	cfg := &Config{Decimate: DecimateConfig{Carry: "retain", Index: "brute"}}
	opts, err := cfg.DecimateOptions()
	require.NoError(t, err)
	assert.Len(t, opts, 2)
}

func TestInitLoggerConsole(t *testing.T) {
	err := InitLogger(LogConfig{Level: "debug", Format: "console"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerJSON(t *testing.T) {
	err := InitLogger(LogConfig{Level: "info", Format: "json"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerBadLevel(t *testing.T) {
	err := InitLogger(LogConfig{Level: "loud"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse log level")
}

func TestInputConfig_DelimiterRune(t *testing.T) {
	tests := []struct {
		in       string
		expected rune
	}{
		{"", 0},
		{";", ';'},
		{"|", '|'},
		{`\t`, '\t'},
		{"\t", '\t'},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.expected, InputConfig{Delimiter: tt.in}.DelimiterRune(), "delimiter %q", tt.in)
	}
}
