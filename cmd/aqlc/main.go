// Command aqlc compiles query spec documents (JSON) to AQL statements and executes
// them on ArangoDB.
//
// Specs are read from a file or from stdin, one JSON document after the other:
//
//	echo '{"from": "users", "where": {"active": true}, "limit": 10}' | aqlc build
//
// Configuration comes from AQLC_* environment variables (or a .env file), like
// AQLC_ARANGO_ENDPOINT, AQLC_ARANGO_DATABASE, AQLC_LOG_LEVEL and AQLC_LOG_FMT.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/birdie-ai/arangoql/slog"
	"github.com/spf13/cobra"

	_ "gocloud.dev/pubsub/gcppubsub"
	_ "gocloud.dev/pubsub/mempubsub"
)

const envPrefix = "AQLC"

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		cancel()
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "aqlc",
		Short:         "Compile and execute AQL query specs",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(*cobra.Command, []string) error {
			cfg, err := slog.LoadConfig(envPrefix)
			if err != nil {
				return err
			}
			return slog.Configure(cfg)
		},
	}
	root.AddCommand(newBuildCmd(), newExecCmd())
	return root
}

// openInput opens the file named by the first argument, stdin if there is none or it is "-".
func openInput(cmd *cobra.Command, args []string) (io.ReadCloser, error) {
	if len(args) == 0 || args[0] == "-" {
		return io.NopCloser(cmd.InOrStdin()), nil
	}
	f, err := os.Open(args[0])
	if err != nil {
		return nil, fmt.Errorf("opening specs: %w", err)
	}
	return f, nil
}
