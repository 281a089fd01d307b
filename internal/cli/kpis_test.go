package cli

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKPIsTextOutput(t *testing.T) {
	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "sim.db")
	seedDatabase(t, dbPath)

	buf := &bytes.Buffer{}
	rootOpts := &RootOptions{Format: "text"}
	cmd := NewKPIsCommand(rootOpts)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs([]string{"--db", dbPath})

	err := cmd.Execute()
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "Posts: 1")
	assert.Contains(t, buf.String(), "Users: 2")
	assert.Contains(t, buf.String(), "Accepted: 1")
	assert.NotContains(t, buf.String(), "Attention over ticks")
}

func TestKPIsOverTicksText(t *testing.T) {
	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "sim.db")
	seedDatabase(t, dbPath)

	buf := &bytes.Buffer{}
	rootOpts := &RootOptions{Format: "text"}
	cmd := NewKPIsCommand(rootOpts)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs([]string{"--db", dbPath, "--over-ticks"})

	err := cmd.Execute()
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "Attention over ticks:")
	assert.Contains(t, buf.String(), "tick 0:")
	assert.Contains(t, buf.String(), "tick 1:")
}

func TestKPIsOverTicksJSON(t *testing.T) {
	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "sim.db")
	seedDatabase(t, dbPath)

	buf := &bytes.Buffer{}
	rootOpts := &RootOptions{Format: "json"}
	cmd := NewKPIsCommand(rootOpts)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs([]string{"--db", dbPath, "--over-ticks"})

	err := cmd.Execute()
	require.NoError(t, err)

	var resp CLIResponse
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)

	data, ok := resp.Data.(map[string]interface{})
	require.True(t, ok)

	// The seeded post lands at tick 1, so the series covers ticks 0-1
	series, ok := data["over_ticks"].([]interface{})
	require.True(t, ok, "over_ticks missing from payload")
	require.Len(t, series, 2)

	point, ok := series[1].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, float64(1), point["tick"])
	assert.Equal(t, float64(1), point["post_count"])
}

func TestKPIsJSONOmitsSeriesByDefault(t *testing.T) {
	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "sim.db")
	seedDatabase(t, dbPath)

	buf := &bytes.Buffer{}
	rootOpts := &RootOptions{Format: "json"}
	cmd := NewKPIsCommand(rootOpts)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs([]string{"--db", dbPath})

	err := cmd.Execute()
	require.NoError(t, err)

	var resp CLIResponse
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	data, ok := resp.Data.(map[string]interface{})
	require.True(t, ok)
	_, present := data["over_ticks"]
	assert.False(t, present)
}
