// Package ranking scores and orders timeline candidates.
//
// Ranking is a pure function of (candidates, algorithm, tick, seed). The
// same inputs in the same candidate order always produce the same output;
// callers own candidate enumeration order and must keep it deterministic.
package ranking

import (
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"sort"
	"strconv"
)

// Version identifies the scoring rules in force. It is stamped on every
// timeline_served event so replays can detect a ranking change.
const Version = "v1.0"

// Algorithm selects the scoring rule for a timeline request.
type Algorithm string

const (
	AlgorithmNew Algorithm = "new"
	AlgorithmTop Algorithm = "top"
	AlgorithmHot Algorithm = "hot"
)

// Valid reports whether the algorithm is one of the known scoring rules.
func (a Algorithm) Valid() bool {
	switch a {
	case AlgorithmNew, AlgorithmTop, AlgorithmHot:
		return true
	}
	return false
}

// ErrUnknownAlgorithm is returned for algorithm names outside the
// new/top/hot set.
var ErrUnknownAlgorithm = errors.New("unknown ranking algorithm")

// hotDecay is the per-tick age penalty of the hot algorithm. A fixed
// constant of ranking Version; changing it requires a version bump.
const hotDecay = 0.1

// Candidate is one post considered for a timeline, with the engagement
// counters frozen at candidate-selection time.
type Candidate struct {
	PostID      string
	AuthorID    string
	CreatedTick int64
	UpVotes     int64
	Comments    int64
	AgeTicks    int64
}

// Scored is a candidate with its computed score attached.
type Scored struct {
	Candidate
	Score float64
}

// Score computes the ranking score of a single candidate at currentTick.
//
//   - new: created tick, so newer posts score higher
//   - top: up-vote count
//   - hot: log10(max(up_votes, 1)) - 0.1 * age
func Score(algo Algorithm, c Candidate, currentTick int64) (float64, error) {
	switch algo {
	case AlgorithmNew:
		return float64(c.CreatedTick), nil
	case AlgorithmTop:
		return float64(c.UpVotes), nil
	case AlgorithmHot:
		ups := c.UpVotes
		if ups < 1 {
			ups = 1
		}
		age := currentTick - c.CreatedTick
		return math.Log10(float64(ups)) - hotDecay*float64(age), nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownAlgorithm, algo)
	}
}

// Rank orders candidates by descending score. Ties are broken by a value
// drawn from a seeded stream consumed in the input order of candidates,
// never in score order, so identical inputs always rank identically and
// different seeds only permute within tied scores.
//
// The input slice is not modified.
func Rank(cands []Candidate, algo Algorithm, currentTick, seed int64) ([]Scored, error) {
	if !algo.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrUnknownAlgorithm, algo)
	}

	// One draw per candidate, in input order, before any sorting.
	rng := rand.New(rand.NewPCG(uint64(seed), uint64(seed)))
	type entry struct {
		Scored
		tiebreak float64
	}

	entries := make([]entry, len(cands))
	for i, c := range cands {
		score, err := Score(algo, c, currentTick)
		if err != nil {
			return nil, err
		}
		entries[i] = entry{
			Scored:   Scored{Candidate: c, Score: score},
			tiebreak: rng.Float64(),
		}
	}

	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].Score != entries[j].Score {
			return entries[i].Score > entries[j].Score
		}
		return entries[i].tiebreak < entries[j].tiebreak
	})

	out := make([]Scored, len(entries))
	for i, e := range entries {
		out[i] = e.Scored
	}
	return out, nil
}

// FormatScore renders a score as a fixed 6-decimal string. Timeline
// payloads store scores in this form so their canonical encoding stays
// float-free.
func FormatScore(score float64) string {
	if score == 0 {
		score = 0 // normalize -0
	}
	return strconv.FormatFloat(score, 'f', 6, 64)
}
