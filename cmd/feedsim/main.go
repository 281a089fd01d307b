package main

import (
	"context"
	"fmt"
	"os"

	"github.com/attentionlab/feedsim/internal/cli"
	"github.com/attentionlab/feedsim/internal/platform/config"
	"github.com/attentionlab/feedsim/internal/platform/otel"
)

func main() {
	os.Exit(run())
}

// run keeps deferred cleanup ahead of the process exit.
func run() int {
	cfg, err := config.FromEnv()
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return cli.ExitCommandError
	}

	ctx := context.Background()
	shutdown, err := otel.Setup(ctx, "feedsim")
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return cli.ExitCommandError
	}
	defer func() {
		if err := shutdown(context.Background()); err != nil {
			fmt.Fprintln(os.Stderr, "trace shutdown:", err)
		}
	}()

	if err := cli.NewRootCommand(cfg).ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return cli.GetExitCode(err)
	}
	return cli.ExitSuccess
}
