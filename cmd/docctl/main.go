// Command docctl ingests documents and queries the index from a terminal,
// sharing the server's record store and model endpoint.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"docmind/internal/bootstrap"
	"docmind/internal/config"
	"docmind/internal/logging"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newRootCmd().ExecuteContext(ctx)
	stop()
	if err != nil {
		os.Exit(1)
	}
}

type rootFlags struct {
	configPath string
	verbose    bool
}

func newRootCmd() *cobra.Command {
	flags := &rootFlags{}
	root := &cobra.Command{
		Use:          "docctl",
		Short:        "Manage and query the document index",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVarP(&flags.configPath, "config", "c", "", "config file (default $CONFIG_FILE or configs/config.toml)")
	root.PersistentFlags().BoolVarP(&flags.verbose, "verbose", "v", false, "log pipeline events to stderr")

	root.AddCommand(
		ingestCmd(flags),
		askCmd(flags),
		documentsCmd(flags),
		seedAdminCmd(flags),
	)
	return root
}

// openApp connects the record store and model endpoint only; the CLI never
// touches redis or the ingestion queue.
func openApp(ctx context.Context, flags *rootFlags) (*bootstrap.App, error) {
	var (
		cfg *config.Config
		err error
	)
	if flags.configPath != "" {
		cfg, err = config.LoadFile(flags.configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, fmt.Errorf("load config failed: %w", err)
	}

	log := logging.Nop()
	if flags.verbose {
		if log, err = logging.New(cfg.App.Env); err != nil {
			return nil, err
		}
	}
	return bootstrap.New(ctx, bootstrap.Options{Config: cfg, Log: log})
}
