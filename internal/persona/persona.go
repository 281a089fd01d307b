// Package persona compiles CUE population profiles into agent
// configurations. A profile names a planner, a probability ladder in
// integer thousandths, a per-tick action budget and how many agents to
// stamp out of it.
package persona

import (
	"fmt"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"

	"github.com/attentionlab/feedsim/internal/agent"
)

// PlannerKind selects the strategy a profile's agents plan with.
type PlannerKind string

const (
	PlannerRule PlannerKind = "rule"
	PlannerLLM  PlannerKind = "llm"
)

// Persona is one compiled population profile.
type Persona struct {
	Name              string
	Count             int
	Planner           PlannerKind
	Probabilities     agent.Probabilities
	MaxActionsPerTick int
}

// CompilePersona parses a CUE value into a Persona.
//
// The CUE value should be the profile struct itself, e.g.:
//
//	ctx := cuecontext.New()
//	v := ctx.CompileString(`persona: casual: { count: 8 }`)
//	p, err := CompilePersona(v.LookupPath(cue.ParsePath("persona.casual")))
func CompilePersona(v cue.Value) (*Persona, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	p := &Persona{Planner: PlannerRule}

	// Profile name from the struct label (the path selector).
	labels := v.Path().Selectors()
	if len(labels) > 0 {
		p.Name = labels[len(labels)-1].String()
	}

	countVal := v.LookupPath(cue.ParsePath("count"))
	if !countVal.Exists() {
		return nil, &CompileError{
			Field:   "count",
			Message: "count is required",
			Pos:     v.Pos(),
		}
	}
	count, err := countVal.Int64()
	if err != nil {
		return nil, formatCUEError(err)
	}
	if count < 1 {
		return nil, &CompileError{
			Field:   "count",
			Message: "count must be at least 1",
			Pos:     countVal.Pos(),
		}
	}
	p.Count = int(count)

	plannerVal := v.LookupPath(cue.ParsePath("planner"))
	if plannerVal.Exists() {
		s, err := plannerVal.String()
		if err != nil {
			return nil, formatCUEError(err)
		}
		switch PlannerKind(s) {
		case PlannerRule, PlannerLLM:
			p.Planner = PlannerKind(s)
		default:
			return nil, &CompileError{
				Field:   "planner",
				Message: fmt.Sprintf("unknown planner %q - use %q or %q", s, PlannerRule, PlannerLLM),
				Pos:     plannerVal.Pos(),
			}
		}
	}

	probsVal := v.LookupPath(cue.ParsePath("probabilities"))
	if probsVal.Exists() {
		probs, err := parseProbabilities(probsVal)
		if err != nil {
			return nil, err
		}
		p.Probabilities = probs
	}

	maxVal := v.LookupPath(cue.ParsePath("maxActionsPerTick"))
	if maxVal.Exists() {
		n, err := maxVal.Int64()
		if err != nil {
			return nil, formatCUEError(err)
		}
		if n < 1 {
			return nil, &CompileError{
				Field:   "maxActionsPerTick",
				Message: "budget must be at least 1",
				Pos:     maxVal.Pos(),
			}
		}
		p.MaxActionsPerTick = int(n)
	}

	return p, nil
}

// parseProbabilities reads the ladder bands. Bands are integer
// thousandths so profiles stay exact under version control; an omitted
// band is zero, an omitted block selects the stock mix downstream.
func parseProbabilities(v cue.Value) (agent.Probabilities, error) {
	var probs agent.Probabilities
	var total int64

	for _, band := range []struct {
		field string
		dst   *float64
	}{
		{"post", &probs.Post},
		{"like", &probs.Like},
		{"comment", &probs.Comment},
		{"follow", &probs.Follow},
	} {
		bv := v.LookupPath(cue.ParsePath(band.field))
		if !bv.Exists() {
			continue
		}
		n, err := thousandths(bv, "probabilities."+band.field)
		if err != nil {
			return agent.Probabilities{}, err
		}
		total += n
		*band.dst = float64(n) / 1000
	}

	if total == 0 {
		return agent.Probabilities{}, &CompileError{
			Field:   "probabilities",
			Message: "ladder is empty - omit the block to use the default mix",
			Pos:     v.Pos(),
		}
	}
	if total > 1000 {
		return agent.Probabilities{}, &CompileError{
			Field:   "probabilities",
			Message: fmt.Sprintf("bands sum to %d thousandths, the ladder holds at most 1000", total),
			Pos:     v.Pos(),
		}
	}
	return probs, nil
}

// thousandths converts a CUE band value. Floats are forbidden - use
// integer thousandths.
func thousandths(v cue.Value, field string) (int64, error) {
	switch v.IncompleteKind() {
	case cue.IntKind:
		n, err := v.Int64()
		if err != nil {
			return 0, formatCUEError(err)
		}
		if n < 0 || n > 1000 {
			return 0, &CompileError{
				Field:   field,
				Message: "band must be within [0, 1000] thousandths",
				Pos:     v.Pos(),
			}
		}
		return n, nil
	case cue.FloatKind, cue.NumberKind:
		return 0, &CompileError{
			Field:   field,
			Message: "float probabilities are forbidden - use integer thousandths",
			Pos:     v.Pos(),
		}
	default:
		return 0, &CompileError{
			Field:   field,
			Message: fmt.Sprintf("unsupported kind %v, want integer thousandths", v.IncompleteKind()),
			Pos:     v.Pos(),
		}
	}
}

// CompileError represents a profile compilation error with source
// position.
type CompileError struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *CompileError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// formatCUEError extracts position info from CUE errors.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}

	// CUE errors may contain multiple errors
	errs := errors.Errors(err)
	if len(errs) == 0 {
		return err
	}

	firstErr := errs[0]
	positions := errors.Positions(firstErr)
	if len(positions) > 0 {
		return &CompileError{
			Field:   "cue",
			Message: firstErr.Error(),
			Pos:     positions[0],
		}
	}

	return err
}
