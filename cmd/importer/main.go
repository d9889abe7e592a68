// Command importer previews, commits and audits movement file imports.
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/FACorreiaa/movement-ingest/pkg/config"
)

type app struct {
	user string
	out  io.Writer
	deps *Dependencies
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a := &app{out: os.Stdout}
	err := a.rootCommand().ExecuteContext(ctx)
	if a.deps != nil {
		a.deps.Flush()
		a.deps.Cleanup()
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func (a *app) rootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "importer",
		Short:         "Import bank and wallet movement files",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&a.user, "user", "u", os.Getenv("IMPORTER_USER"), "user identity the import runs as")

	root.AddCommand(
		a.formatsCommand(),
		a.layoutCommand(),
		a.previewCommand(),
		a.commitCommand(),
		a.importCommand(),
		a.historyCommand(),
		a.filesCommand(),
	)
	return root
}

// load builds the dependencies on first use. Commands that only inspect
// built-in data never call it.
func (a *app) load(ctx context.Context) (*Dependencies, error) {
	if a.deps != nil {
		return a.deps, nil
	}
	if a.user == "" {
		return nil, fmt.Errorf("--user is required")
	}

	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	logger, err := newLogger(cfg.Log, os.Stderr)
	if err != nil {
		return nil, err
	}

	deps, err := InitDependencies(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	a.deps = deps
	return deps, nil
}

func newLogger(cfg config.LogConfig, w io.Writer) (*slog.Logger, error) {
	level, err := cfg.SlogLevel()
	if err != nil {
		return nil, err
	}
	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}
	return slog.New(handler).With("service", "importer"), nil
}
