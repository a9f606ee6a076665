package cli

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/MartianGreed/dojo.c/internal/ir"
	"github.com/MartianGreed/dojo.c/internal/torii"
)

var errKeysWithoutModel = errors.New("--keys requires --model")

// WatchOptions holds flags for the watch command.
type WatchOptions struct {
	*RootOptions
	IDs          []string
	PollInterval time.Duration
	MetricsAddr  string
}

// NewWatchCommand creates the watch command.
func NewWatchCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &WatchOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Print entity updates until interrupted",
		Long: `Subscribe to entity updates and print each one as an encoded entity
map, one per line, until interrupted.

Updates come from the websocket at --torii-url when set, otherwise from
polling the local indexer database.

Example:
  dojo watch --config dojo.yaml --id 0x1 --id 0x2
  dojo watch --db ./world.db --world 0x1 --rpc-url http://localhost:5050 --metrics-addr :9090`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWatch(opts, cmd)
		},
	}

	cmd.Flags().StringSliceVar(&opts.IDs, "id", nil, "entity identities to watch (default all)")
	cmd.Flags().DurationVar(&opts.PollInterval, "poll-interval", torii.DefaultPollInterval, "local database poll interval")
	cmd.Flags().StringVar(&opts.MetricsAddr, "metrics-addr", "", "serve prometheus metrics on this address")

	return cmd
}

func runWatch(opts *WatchOptions, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	ctx, cancel := context.WithCancel(commandContext(cmd))
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	go func() {
		select {
		case sig := <-sigChan:
			slog.Info("received signal, shutting down", "signal", sig)
			cancel()
		case <-ctx.Done():
		}
	}()

	sess, err := openSession(ctx, opts.RootOptions, torii.WithPollInterval(opts.PollInterval))
	if err != nil {
		return formatter.Fail("failed to create client", err)
	}
	defer sess.Close()

	if opts.MetricsAddr != "" {
		srv := &http.Server{Addr: opts.MetricsAddr, Handler: sess.client.Metrics().Handler()}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				slog.Error("metrics server stopped", "addr", opts.MetricsAddr, "error", err)
			}
		}()
		defer srv.Close()
	}

	// Callbacks run on the listener goroutine; writes are serialized so
	// lines never interleave.
	var mu sync.Mutex
	reg, err := sess.client.OnEntityUpdated(ctx, opts.IDs, func(v *ir.IRObject) {
		mu.Lock()
		defer mu.Unlock()
		if err := formatter.Value(v); err != nil {
			slog.Warn("failed to print update", "error", err)
		}
	})
	if err != nil {
		return formatter.Fail("failed to subscribe", err)
	}

	slog.Info("watching entity updates", "ids", len(opts.IDs), "db", sess.cfg.Database)
	formatter.VerboseLog("Watching for updates. Press Ctrl-C to stop.")

	select {
	case <-ctx.Done():
		reg.Cancel()
		<-reg.Done()
		return nil
	case <-reg.Done():
		if err := reg.Err(); err != nil {
			return WrapExitError(ExitFailure, "update stream ended", err)
		}
		return nil
	}
}

// commandContext returns the command's context, or Background when the
// command runs without one.
func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
