package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/bpkit/internal/engine"
	"github.com/roach88/bpkit/internal/render"
)

// WatchOptions holds flags for the watch command.
type WatchOptions struct {
	*RootOptions
	Settle time.Duration
}

// NewWatchCommand creates the watch command.
func NewWatchCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &WatchOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "watch <deck>",
		Short: "Forward sync each time the deck is saved",
		Long: `Sync the deck once, then watch it and forward sync after every save
until interrupted. A refused or failed sync is reported and watching
continues.

Examples:
  bpkit watch deck.md
  bpkit watch deck.md --settle 1s -v`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWatch(opts, args[0], cmd)
		},
	}

	cmd.Flags().DurationVar(&opts.Settle, "settle", engine.DefaultSettle, "wait this long after a change before syncing")

	return cmd
}

func runWatch(opts *WatchOptions, deck string, cmd *cobra.Command) error {
	f := newFormatter(opts.RootOptions, cmd)
	p, err := openProject(opts.RootOptions, cmd)
	if err != nil {
		return fail(f, "open project", err)
	}
	defer p.Close()

	parentCtx := cmd.Context()
	if parentCtx == nil {
		parentCtx = context.Background()
	}
	ctx, cancel := context.WithCancel(parentCtx)
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	go func() {
		select {
		case sig := <-sigChan:
			p.logger.Info("received signal, shutting down", "signal", sig)
			cancel()
		case <-ctx.Done():
		}
	}()

	sync := func(ctx context.Context, ev engine.Event) error {
		result, err := syncOnce(ctx, p, deck)
		if err != nil {
			fmt.Fprintf(f.GetErrWriter(), "sync %d failed: %v\n", ev.Seq, err)
			return err
		}
		return f.Success(result, func(w io.Writer) {
			fmt.Fprintf(w, "[%s] ", time.Now().Format("15:04:05"))
			writeSync(f, w, *result)
		})
	}

	if err := sync(ctx, engine.Event{Path: deck}); err != nil {
		return fail(f, "sync "+deck, err)
	}
	if !f.json() {
		fmt.Fprintf(f.Writer, "Watching %s. Press Ctrl-C to stop.\n", deck)
	}

	err = p.engine.Watch(ctx, deck, opts.Settle, sync)
	if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
		return fail(f, "watch "+deck, err)
	}
	return nil
}

// syncOnce runs one forward sync and rewrites the output directory.
func syncOnce(ctx context.Context, p *project, deck string) (*SyncResult, error) {
	current, err := render.ReadDir(p.out)
	if err != nil {
		return nil, err
	}
	rep, _, err := p.engine.Sync(ctx, deck, current)
	if err != nil {
		return nil, err
	}
	written, err := render.WriteDir(p.out, rep.Constitutions)
	if err != nil {
		return nil, err
	}
	changelog, err := p.writeChangelog(ctx)
	if err != nil {
		return nil, err
	}
	return &SyncResult{ForwardReport: rep, Out: p.out, Written: written, Changelog: changelog}, nil
}
