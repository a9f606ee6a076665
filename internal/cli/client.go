package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/MartianGreed/dojo.c/internal/config"
	"github.com/MartianGreed/dojo.c/internal/dojo"
	"github.com/MartianGreed/dojo.c/internal/store"
	"github.com/MartianGreed/dojo.c/internal/torii"
)

// resolveConfig reads the config file when one is given and applies flag
// overrides on top.
func resolveConfig(opts *RootOptions) (*config.FileConfig, error) {
	cfg := &config.FileConfig{}
	if opts.Config != "" {
		loaded, err := config.Load(opts.Config)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	if opts.Database != "" {
		cfg.Database = opts.Database
	}
	if opts.RPCURL != "" {
		cfg.RPCURL = opts.RPCURL
	}
	if opts.ToriiURL != "" {
		cfg.ToriiURL = opts.ToriiURL
	}
	if opts.World != "" {
		cfg.WorldAddress = opts.World
	}
	return cfg, nil
}

// session is an open client plus the store it reads from.
type session struct {
	cfg    *config.FileConfig
	store  *store.Store
	client *dojo.Client
}

func (s *session) Close() {
	if err := s.client.Close(); err != nil {
		slog.Error("error closing client", "error", err)
	}
	if err := s.store.Close(); err != nil {
		slog.Error("error closing database", "error", err)
	}
}

// openSession resolves the config, opens the indexer database and creates a
// client over it.
func openSession(ctx context.Context, opts *RootOptions, toriiOpts ...torii.LocalOption) (*session, error) {
	cfg, err := resolveConfig(opts)
	if err != nil {
		return nil, err
	}
	if cfg.Database == "" {
		return nil, &config.ValidationError{Field: "database", Err: errors.New("no database given (use --db or set database in the config)")}
	}

	slog.Debug("opening database", "path", cfg.Database)
	st, err := store.Open(cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	clientOpts := []dojo.Option{dojo.WithStore(st)}
	if len(toriiOpts) > 0 && cfg.ToriiURL == "" {
		clientOpts = append(clientOpts, dojo.WithBackend(torii.NewLocalBackend(st, toriiOpts...)))
	}

	client, err := dojo.CreateClient(ctx, cfg.Sync, cfg.ClientConfig, clientOpts...)
	if err != nil {
		st.Close()
		return nil, err
	}
	return &session{cfg: cfg, store: st, client: client}, nil
}

func newFormatter(opts *RootOptions, cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}
}
