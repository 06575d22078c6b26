package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/roach88/bpkit/internal/config"
	"github.com/roach88/bpkit/internal/engine"
	"github.com/roach88/bpkit/internal/logging"
	"github.com/roach88/bpkit/internal/render"
	"github.com/roach88/bpkit/internal/store"
)

// project is the engine, state store and output directory a command works
// against.
type project struct {
	engine *engine.Engine
	store  *store.Store
	out    string
	logger *slog.Logger
}

// newLogger builds the command logger from the global flags. Logs go to
// stderr so JSON output on stdout stays parseable.
func newLogger(opts *RootOptions, cmd *cobra.Command) *slog.Logger {
	return logging.New(logging.FromFlags(opts.Verbose, opts.Format, cmd.ErrOrStderr()))
}

func loadConfig(opts *RootOptions) (*config.Config, error) {
	return config.Load(opts.Config)
}

// newEngine builds an engine without sync state, for commands that only
// decompose.
func newEngine(opts *RootOptions, cmd *cobra.Command) (*engine.Engine, error) {
	cfg, err := loadConfig(opts)
	if err != nil {
		return nil, err
	}
	return engine.New(cfg, nil, engine.WithLogger(newLogger(opts, cmd))), nil
}

// openProject loads the config and opens the state store, creating its
// directory on first use.
func openProject(opts *RootOptions, cmd *cobra.Command) (*project, error) {
	cfg, err := loadConfig(opts)
	if err != nil {
		return nil, err
	}
	if dir := filepath.Dir(opts.State); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create state directory: %w", err)
		}
	}
	st, err := store.Open(opts.State)
	if err != nil {
		return nil, err
	}

	logger := newLogger(opts, cmd)
	logger.Debug("project opened", "component", "cli", "state", opts.State, "out", opts.Out)
	return &project{
		engine: engine.New(cfg, st, engine.WithLogger(logger)),
		store:  st,
		out:    opts.Out,
		logger: logger,
	}, nil
}

func (p *project) Close() error {
	return p.store.Close()
}

// writeChangelog renders the full changelog to CHANGELOG.md in the output
// directory.
func (p *project) writeChangelog(ctx context.Context) (string, error) {
	entries, err := p.engine.Changelog(ctx)
	if err != nil {
		return "", err
	}
	path := filepath.Join(p.out, render.ChangelogMD)
	if err := os.MkdirAll(p.out, 0o755); err != nil {
		return "", err
	}
	if err := os.WriteFile(path, render.Changelog(entries), 0o644); err != nil {
		return "", err
	}
	return path, nil
}
