package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/attentionlab/feedsim/internal/agent"
	"github.com/attentionlab/feedsim/internal/engine"
	"github.com/attentionlab/feedsim/internal/kpi"
	"github.com/attentionlab/feedsim/internal/persona"
	"github.com/attentionlab/feedsim/internal/publish"
	"github.com/attentionlab/feedsim/internal/ranking"
	"github.com/attentionlab/feedsim/internal/sim"
)

// SimulateOptions holds flags for the simulate command.
type SimulateOptions struct {
	*RootOptions
	Database    string
	Ticks       int64
	Agents      int
	K           int64
	Ranking     string
	Seed        int64
	Personas    string
	OllamaURL   string
	OllamaModel string
	NATSURL     string
}

// simulateResult is the JSON payload of a completed run.
type simulateResult struct {
	Summary sim.Summary `json:"summary"`
	KPIs    kpi.Report  `json:"kpis"`
}

// NewSimulateCommand creates the simulate command.
func NewSimulateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SimulateOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Run a simulation against the event log",
		Long: `Run a simulated population against the event log for a number of ticks.

Each tick every agent is served a ranked timeline and spends its action
budget posting, liking, commenting or following. All activity lands in the
append-only log; the run closes with a KPI summary and the content hash of
the projected state.

Agents plan with seeded probability ladders by default. With --personas the
population comes from CUE profiles instead, and --ollama-url switches
planning and composition to a local model (rule fallback on any failure).

Exit codes:
  0 - Run completed
  1 - Run aborted (storage failure mid-run)
  2 - Command error (database not found, bad flags, etc.)

Examples:
  feedsim simulate --db ./sim.db --ticks 20 --agents 10
  feedsim simulate --db ./sim.db --ranking top --seed 7
  feedsim simulate --db ./sim.db --personas ./personas --format json`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSimulate(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", rootOpts.Env.DBPath, "path to SQLite database")
	cmd.Flags().Int64Var(&opts.Ticks, "ticks", 10, "number of ticks to simulate")
	cmd.Flags().IntVar(&opts.Agents, "agents", 5, "number of agents")
	cmd.Flags().Int64Var(&opts.K, "k", 10, "timeline size (max items)")
	cmd.Flags().StringVar(&opts.Ranking, "ranking", "hot", "ranking algorithm (new|top|hot)")
	cmd.Flags().Int64Var(&opts.Seed, "seed", 42, "random seed for reproducibility")
	cmd.Flags().StringVar(&opts.Personas, "personas", "", "directory of CUE persona profiles")
	cmd.Flags().StringVar(&opts.OllamaURL, "ollama-url", rootOpts.Env.OllamaURL, "Ollama base URL for model-backed agents")
	cmd.Flags().StringVar(&opts.OllamaModel, "ollama-model", rootOpts.Env.OllamaModel, "Ollama model name")
	cmd.Flags().StringVar(&opts.NATSURL, "nats-url", rootOpts.Env.NATSURL, "NATS URL for live event notices")

	return cmd
}

func runSimulate(opts *SimulateOptions, cmd *cobra.Command) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	w := cmd.OutOrStdout()

	algo := ranking.Algorithm(opts.Ranking)
	if !algo.Valid() {
		return NewExitError(ExitCommandError, fmt.Sprintf("unknown ranking algorithm %q (use new, top or hot)", opts.Ranking))
	}
	if opts.Ticks <= 0 {
		return NewExitError(ExitCommandError, "ticks must be positive")
	}

	st, err := openExistingStore(opts.Database)
	if err != nil {
		return err
	}
	defer st.Close()

	engOpts := []engine.Option{engine.WithSeed(opts.Seed)}
	if opts.NATSURL != "" {
		pub, err := publish.NewNATSPublisher(opts.NATSURL)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to connect to NATS", err)
		}
		defer pub.Close()
		engOpts = append(engOpts, engine.WithPublisher(pub))
	}
	eng := engine.New(st, engOpts...)

	population, err := buildPopulation(opts)
	if err != nil {
		return err
	}

	fmt.Fprintf(w, "Starting simulation: %d agents, %d ticks, k=%d, ranking=%s\n",
		len(population), opts.Ticks, opts.K, opts.Ranking)

	runner := sim.NewRunner(eng, population, sim.Config{
		NumTicks:  opts.Ticks,
		K:         opts.K,
		Algorithm: algo,
		Seed:      opts.Seed,
	})
	summary, err := runner.Run(ctx)
	if err != nil {
		return WrapExitError(ExitFailure, "simulation failed", err)
	}

	snap, err := eng.Snapshot(ctx)
	if err != nil {
		return WrapExitError(ExitFailure, "failed to snapshot projections", err)
	}
	outcomes, err := eng.Outcomes(ctx)
	if err != nil {
		return WrapExitError(ExitFailure, "failed to read action outcomes", err)
	}
	report := kpi.Compute(snap, outcomes)

	if opts.Format == "json" {
		formatter := &OutputFormatter{Format: opts.Format, Writer: w, Verbose: opts.Verbose}
		return formatter.Success(simulateResult{Summary: *summary, KPIs: report})
	}

	fmt.Fprintln(w)
	fmt.Fprintln(w, "Simulation complete!")
	fmt.Fprintf(w, "  Posts: %d\n", report.Counts.Posts)
	fmt.Fprintf(w, "  Votes: %d\n", report.Counts.Votes)
	fmt.Fprintf(w, "  Comments: %d\n", report.Counts.Comments)
	fmt.Fprintf(w, "  Attention Gini: %.4f\n", report.AttentionGini)
	fmt.Fprintf(w, "  Content hash: %s\n", summary.Hash)
	return nil
}

// buildPopulation assembles the agent population: CUE persona profiles
// when --personas is set, the stock mix otherwise. A configured Ollama
// URL routes planning and composition through the model.
func buildPopulation(opts *SimulateOptions) ([]*agent.Agent, error) {
	var ollama *agent.OllamaClient
	if opts.OllamaURL != "" {
		ollama = agent.NewOllamaClient(agent.OllamaConfig{
			BaseURL: opts.OllamaURL,
			Model:   opts.OllamaModel,
		})
	}

	if opts.Personas != "" {
		profiles, err := persona.LoadDir(opts.Personas)
		if err != nil {
			return nil, WrapExitError(ExitCommandError, "failed to load personas", err)
		}
		population, err := persona.Agents(profiles, opts.Seed, ollama)
		if err != nil {
			return nil, WrapExitError(ExitCommandError, "failed to build persona population", err)
		}
		return population, nil
	}

	if opts.Agents <= 0 {
		return nil, NewExitError(ExitCommandError, "at least one agent is required")
	}
	var agentOpts []agent.Option
	if ollama != nil {
		agentOpts = append(agentOpts, agent.WithOllama(ollama))
	}
	return agent.NewPopulation(opts.Agents, opts.Seed, agentOpts...), nil
}
