package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/attentionlab/feedsim/internal/command"
	"github.com/attentionlab/feedsim/internal/engine"
	"github.com/attentionlab/feedsim/internal/event"
	"github.com/attentionlab/feedsim/internal/idgen"
	"github.com/attentionlab/feedsim/internal/store"
)

// seedDatabase writes a small run (two users, a post, a like attempt)
// so replay has something to fold.
func seedDatabase(t *testing.T, dbPath string) {
	t.Helper()
	ctx := context.Background()

	st, err := store.Open(dbPath)
	require.NoError(t, err)
	defer st.Close()

	eng := engine.New(st, engine.WithIDGenerator(idgen.NewSequential()))
	require.NoError(t, eng.Start(ctx))

	require.NoError(t, eng.CreateUser(ctx, "u1", "alice"))
	require.NoError(t, eng.CreateUser(ctx, "u2", "bob"))
	_, err = eng.AdvanceTick(ctx)
	require.NoError(t, err)

	res, err := eng.ProcessAction(ctx, command.Action{
		OpID:    "op-seed-1",
		Actor:   "u1",
		Kind:    event.ActionPost,
		Content: "hello world",
	})
	require.NoError(t, err)
	require.True(t, res.Accepted())
}

func TestReplayMissingDatabase(t *testing.T) {
	tmpDir := t.TempDir()

	buf := &bytes.Buffer{}
	rootOpts := &RootOptions{Format: "text"}
	cmd := NewReplayCommand(rootOpts)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs([]string{"--db", filepath.Join(tmpDir, "missing.db")})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "database not found")
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestReplayRebuildsProjections(t *testing.T) {
	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "sim.db")
	seedDatabase(t, dbPath)

	buf := &bytes.Buffer{}
	rootOpts := &RootOptions{Format: "text"}
	cmd := NewReplayCommand(rootOpts)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs([]string{"--db", dbPath})

	err := cmd.Execute()
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "Replayed 4 events")
	assert.Contains(t, buf.String(), "Projections rebuilt")
}

func TestReplayVerifyMatches(t *testing.T) {
	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "sim.db")
	seedDatabase(t, dbPath)

	buf := &bytes.Buffer{}
	rootOpts := &RootOptions{Format: "text"}
	cmd := NewReplayCommand(rootOpts)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs([]string{"--db", dbPath, "--verify"})

	err := cmd.Execute()
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "Projections unchanged (deterministic)")
}

func TestReplayVerifyJSON(t *testing.T) {
	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "sim.db")
	seedDatabase(t, dbPath)

	buf := &bytes.Buffer{}
	rootOpts := &RootOptions{Format: "json"}
	cmd := NewReplayCommand(rootOpts)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs([]string{"--db", dbPath, "--verify"})

	err := cmd.Execute()
	require.NoError(t, err)

	var resp CLIResponse
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)

	data, ok := resp.Data.(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, float64(4), data["events"])
	assert.Equal(t, data["content_hash"], data["live_hash"])
	assert.Equal(t, true, data["match"])
}

func TestReplayEmptyLog(t *testing.T) {
	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "sim.db")

	st, err := store.Open(dbPath)
	require.NoError(t, err)
	require.NoError(t, st.Close())

	buf := &bytes.Buffer{}
	rootOpts := &RootOptions{Format: "text"}
	cmd := NewReplayCommand(rootOpts)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs([]string{"--db", dbPath})

	err = cmd.Execute()
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "Replayed 0 events")
}
