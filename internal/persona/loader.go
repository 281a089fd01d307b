package persona

import (
	"fmt"
	"os"
	"sort"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/load"

	"github.com/attentionlab/feedsim/internal/agent"
)

// LoadDir loads every CUE file in dir as one instance and compiles the
// profiles it declares under the persona field.
func LoadDir(dir string) ([]Persona, error) {
	info, err := os.Stat(dir)
	if os.IsNotExist(err) {
		return nil, fmt.Errorf("personas directory not found: %s", dir)
	}
	if err != nil {
		return nil, fmt.Errorf("accessing personas directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("not a directory: %s", dir)
	}

	ctx := cuecontext.New()
	instances := load.Instances([]string{"."}, &load.Config{Dir: dir})
	if len(instances) == 0 {
		return nil, fmt.Errorf("no CUE instances loaded from %s", dir)
	}
	inst := instances[0]
	if inst.Err != nil {
		return nil, fmt.Errorf("loading CUE files: %w", inst.Err)
	}

	value := ctx.BuildInstance(inst)
	if err := value.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	return CompileAll(value)
}

// CompileAll compiles every profile under the persona field of value.
// Profiles come back sorted by name so population assembly is
// order-stable regardless of file layout.
func CompileAll(value cue.Value) ([]Persona, error) {
	personasVal := value.LookupPath(cue.ParsePath("persona"))
	if !personasVal.Exists() {
		return nil, &CompileError{
			Field:   "persona",
			Message: "no persona profiles declared",
			Pos:     value.Pos(),
		}
	}

	iter, err := personasVal.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}

	var profiles []Persona
	for iter.Next() {
		p, err := CompilePersona(iter.Value())
		if err != nil {
			return nil, err
		}
		profiles = append(profiles, *p)
	}
	if len(profiles) == 0 {
		return nil, &CompileError{
			Field:   "persona",
			Message: "no persona profiles declared",
			Pos:     personasVal.Pos(),
		}
	}

	sort.Slice(profiles, func(i, j int) bool { return profiles[i].Name < profiles[j].Name })
	return profiles, nil
}

// Agents builds the population the profiles describe. Ids, usernames
// and seeds number continuously across profiles in order: agent_0000
// onward, baseSeed plus index. ollama is required when any profile
// plans with the model; opts apply to every agent.
func Agents(profiles []Persona, baseSeed int64, ollama *agent.OllamaClient, opts ...agent.Option) ([]*agent.Agent, error) {
	var agents []*agent.Agent
	i := 0
	for _, p := range profiles {
		if p.Planner == PlannerLLM && ollama == nil {
			return nil, fmt.Errorf("persona %s plans with the model but no Ollama client is configured", p.Name)
		}
		for n := 0; n < p.Count; n++ {
			cfg := agent.Config{
				AgentID:           fmt.Sprintf("agent_%04d", i),
				Username:          fmt.Sprintf("user_%04d", i),
				Seed:              baseSeed + int64(i),
				MaxActionsPerTick: p.MaxActionsPerTick,
				Probabilities:     p.Probabilities,
			}
			agentOpts := make([]agent.Option, 0, len(opts)+1)
			agentOpts = append(agentOpts, opts...)
			if p.Planner == PlannerLLM {
				agentOpts = append(agentOpts, agent.WithOllama(ollama))
			}
			agents = append(agents, agent.New(cfg, agentOpts...))
			i++
		}
	}
	return agents, nil
}
