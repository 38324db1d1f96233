package main

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/zoomtier/internal/decimate"
)

func TestFormatTiers(t *testing.T) {
	var buf bytes.Buffer
	formatTiers(&buf, decimate.DefaultTiers())

	output := buf.String()
	assert.Contains(t, output, "ZOOM")
	assert.Contains(t, output, "RADIUS")
	assert.Contains(t, output, "0.16")
	assert.Contains(t, output, "0.02")
	assert.Contains(t, output, "max zoom: 4")
	assert.Contains(t, output, "--tiers 1:0.16,2:0.08,3:0.04,4:0.02")
}

func TestFormatTiers_Empty(t *testing.T) {
	var buf bytes.Buffer
	formatTiers(&buf, nil)
	assert.Contains(t, buf.String(), "max zoom: 0")
}

func TestTiersCommand(t *testing.T) {
	setupCmdTest(t, cmdConfig)
	resetFlags(t, tiersCmd)

	require.NoError(t, tiersCmd.RunE(tiersCmd, nil))

	require.NoError(t, tiersCmd.Flags().Set("tiers", "2:0.1,1:0.2"))
	err := tiersCmd.RunE(tiersCmd, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid tier config at 1")
}
