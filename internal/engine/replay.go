// Replay is structural, not a special mode: the same fold that runs on
// the live path is re-run over the whole log inside one transaction.
//
// Three mechanisms make it reproducible:
//
//  1. The fold is pure per event, so state depends only on the event
//     sequence, never on when or how often it ran.
//  2. Rebuild resets projections and fails fast on any sequence gap or
//     malformed payload, aborting the transaction; a failed replay
//     leaves the previous projections intact.
//  3. The content hash is computed over a canonical encoding of the
//     projected tables, so equality is byte-level, not approximate.
//
// Exposure sets are run-scoped validation state, not projected state;
// they are restored by Start, never by replay.
package engine

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/attentionlab/feedsim/internal/projection"
)

// ReplayReport is the outcome of a replay.
type ReplayReport struct {
	Events   int64  // events folded during the rebuild
	Hash     string // content hash of the rebuilt projections
	LiveHash string // hash before the rebuild, set by VerifyReplay
	Match    bool   // set by VerifyReplay: LiveHash == Hash
}

// ContentHash returns the canonical hash of the current projected state.
func (e *Engine) ContentHash(ctx context.Context) (string, error) {
	snap, err := projection.Snapshot(ctx, e.store.Queries())
	if err != nil {
		return "", NewStorageError("content hash", err)
	}
	hash, err := projection.ContentHash(snap)
	if err != nil {
		return "", fmt.Errorf("content hash: %w", err)
	}
	return hash, nil
}

// Replay rebuilds projections from the full log and reports the
// resulting content hash. Fail-fast: any fold error aborts the rebuild
// transaction and the previous projections survive.
func (e *Engine) Replay(ctx context.Context) (*ReplayReport, error) {
	count, err := projection.Rebuild(ctx, e.store)
	if err != nil {
		return nil, NewReplayError(err)
	}

	hash, err := e.ContentHash(ctx)
	if err != nil {
		return nil, err
	}

	slog.Info("replay complete", "events", count, "content_hash", hash)
	return &ReplayReport{Events: count, Hash: hash}, nil
}

// VerifyReplay hashes the live projections, replays the log, and
// compares. Match is false when live folding and replay diverged,
// which means either the projections were mutated outside the fold or
// the fold is not deterministic.
func (e *Engine) VerifyReplay(ctx context.Context) (*ReplayReport, error) {
	live, err := e.ContentHash(ctx)
	if err != nil {
		return nil, err
	}

	report, err := e.Replay(ctx)
	if err != nil {
		return nil, err
	}

	report.LiveHash = live
	report.Match = report.Hash == live
	slog.Info("replay verified", "events", report.Events, "match", report.Match)
	return report, nil
}
