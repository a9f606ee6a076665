package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/MartianGreed/dojo.c/internal/fixture"
	"github.com/MartianGreed/dojo.c/internal/store"
)

// SeedResult is the JSON payload of the seed command.
type SeedResult struct {
	Fixture  string `json:"fixture"`
	Entities int    `json:"entities"`
	Seq      int64  `json:"seq"`
}

// NewSeedCommand creates the seed command.
func NewSeedCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "seed <fixture.yaml>",
		Short: "Write a YAML world fixture into the indexer database",
		Long: `Write the entities of a YAML world fixture into the SQLite indexer
database, creating the database if it does not exist.

Example:
  dojo seed --db ./world.db testdata/arena.yaml`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSeed(rootOpts, args[0], cmd)
		},
	}

	return cmd
}

func runSeed(opts *RootOptions, path string, cmd *cobra.Command) error {
	formatter := newFormatter(opts, cmd)

	cfg, err := resolveConfig(opts)
	if err != nil {
		return formatter.Fail("failed to load config", err)
	}
	if cfg.Database == "" {
		_ = formatter.Error(ErrCodeConfig, "no database given (use --db or set database in the config)", nil)
		return NewExitError(ExitCommandError, "no database given")
	}

	world, err := fixture.Load(path)
	if err != nil {
		_ = formatter.Error(ErrCodeFixture, err.Error(), nil)
		return WrapExitError(ExitCommandError, "failed to load fixture", err)
	}

	st, err := store.Open(cfg.Database)
	if err != nil {
		return formatter.Fail("failed to open database", err)
	}
	defer st.Close()

	seq, err := world.Seed(commandContext(cmd), st)
	if err != nil {
		return formatter.Fail("failed to seed fixture", err)
	}

	result := SeedResult{Fixture: world.Name, Entities: len(world.Entities), Seq: seq}
	if formatter.Format == "json" {
		return formatter.Success(result)
	}
	return formatter.Success(fmt.Sprintf("seeded %d entities from %s (seq %d)", result.Entities, result.Fixture, result.Seq))
}
