package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupCmdTest moves into a temp dir holding config.yaml, loads it through
// the root command and returns the dir.
func setupCmdTest(t *testing.T, configContent string) string {
	t.Helper()
	tmpDir := t.TempDir()
	if configContent != "" {
		require.NoError(t, os.WriteFile(filepath.Join(tmpDir, "config.yaml"), []byte(configContent), 0o644))
	}

	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(tmpDir))
	t.Cleanup(func() { os.Chdir(origDir) }) //nolint:errcheck

	oldCfg := cfg
	cfg = nil
	t.Cleanup(func() { cfg = oldCfg })

	require.NoError(t, rootCmd.PersistentPreRunE(rootCmd, nil))
	return tmpDir
}

// resetFlags restores every flag of cmd to its default after a test.
func resetFlags(t *testing.T, cmd *cobra.Command) {
	t.Helper()
	cmd.SetContext(context.Background())
	t.Cleanup(func() {
		cmd.Flags().VisitAll(func(f *pflag.Flag) {
			_ = f.Value.Set(f.DefValue)
			f.Changed = false
		})
	})
}

func TestRootCommand_HasSubcommands(t *testing.T) {
	names := make(map[string]bool)
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}

	for _, name := range []string{"decimate", "batch", "serve", "layers", "migrate", "tiers"} {
		assert.True(t, names[name], "expected subcommand %q not found", name)
	}
}

func TestRootCommand_Metadata(t *testing.T) {
	assert.Equal(t, "zoomtier", rootCmd.Use)
	assert.NotEmpty(t, rootCmd.Short)
	assert.NotEmpty(t, rootCmd.Long)
}

func TestDecimateCommand_Flags(t *testing.T) {
	for _, name := range []string{"input", "output", "tiers", "x-col", "y-col", "column", "carry", "layer"} {
		assert.NotNil(t, decimateCmd.Flags().Lookup(name), "decimate should have --%s flag", name)
	}
}

func TestBatchCommand_Flags(t *testing.T) {
	flag := batchCmd.Flags().Lookup("concurrency")
	require.NotNil(t, flag)
	assert.Equal(t, "0", flag.DefValue)
	assert.NotNil(t, batchCmd.Flags().Lookup("manifest"))
	assert.NotNil(t, batchCmd.Flags().Lookup("no-store"))
}

func TestServeCommand_Flags(t *testing.T) {
	flag := serveCmd.Flags().Lookup("port")
	require.NotNil(t, flag, "serve command should have --port flag")
	assert.Equal(t, "0", flag.DefValue)
}

func TestLayersCommand_HasDelete(t *testing.T) {
	names := make(map[string]bool)
	for _, c := range layersCmd.Commands() {
		names[c.Name()] = true
	}
	assert.True(t, names["delete"])
}

func TestRootCmd_PersistentPreRunE_WithValidConfig(t *testing.T) {
	setupCmdTest(t, `
store:
  driver: sqlite
  database_url: layers.db
log:
  level: info
  format: console
`)
	require.NotNil(t, cfg)
	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, "layers.db", cfg.Store.DatabaseURL)
}

func TestRootCmd_PersistentPreRunE_NoConfigFile(t *testing.T) {
	setupCmdTest(t, "")
	require.NotNil(t, cfg)
	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestRootCmd_PersistentPreRunE_Errors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		msg     string
	}{
		{"bad log level", "log:\n  level: NOT_A_LEVEL\n", "init logger"},
		{"bad tiers", "tiers:\n  - zoom: 2\n    radius: 0.1\n  - zoom: 1\n    radius: 0.05\n", "validate config"},
		{"bad driver", "store:\n  driver: oracle\n", "validate config"},
		{"bad yaml", "tiers: [", "load config"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tmpDir := t.TempDir()
			require.NoError(t, os.WriteFile(filepath.Join(tmpDir, "config.yaml"), []byte(tt.content), 0o644))

			origDir, _ := os.Getwd()
			require.NoError(t, os.Chdir(tmpDir))
			defer os.Chdir(origDir) //nolint:errcheck

			oldCfg := cfg
			defer func() { cfg = oldCfg }()

			err := rootCmd.PersistentPreRunE(rootCmd, nil)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.msg)
		})
	}
}

func TestInitStore_UnsupportedDriver(t *testing.T) {
	setupCmdTest(t, "")
	cfg.Store.Driver = "oracle"

	_, err := initStore(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported store driver")
}

func TestMigrateCommand(t *testing.T) {
	dir := setupCmdTest(t, "store:\n  database_url: layers.db\n")
	resetFlags(t, migrateCmd)

	require.NoError(t, migrateCmd.RunE(migrateCmd, nil))
	assert.FileExists(t, filepath.Join(dir, "layers.db"))
}
