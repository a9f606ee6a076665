package cli

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/MartianGreed/dojo.c/internal/ir"
)

// EntitiesOptions holds flags for the entities command.
type EntitiesOptions struct {
	*RootOptions
	Model  string
	Keys   []string
	Limit  uint32
	Offset uint32
}

// NewEntitiesCommand creates the entities command.
func NewEntitiesCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &EntitiesOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "entities",
		Short: "List entities, optionally filtered by model keys",
		Long: `List one page of world entities as an encoded entity map.

With --model, only entities whose model has exactly the given key tuple
are returned. Keys are decimal or 0x-prefixed hex.

Example:
  dojo entities --db ./world.db --world 0x1 --rpc-url http://localhost:5050
  dojo entities --config dojo.yaml --model Position --keys 0x1 --limit 10`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runEntities(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Model, "model", "", "model name to filter by")
	cmd.Flags().StringSliceVar(&opts.Keys, "keys", nil, "key tuple to match (requires --model)")
	cmd.Flags().Uint32Var(&opts.Limit, "limit", 100, "page size")
	cmd.Flags().Uint32Var(&opts.Offset, "offset", 0, "page offset")

	return cmd
}

func runEntities(opts *EntitiesOptions, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)
	if opts.Model == "" && len(opts.Keys) > 0 {
		return formatter.Fail("invalid arguments", errKeysWithoutModel)
	}

	ctx := commandContext(cmd)
	sess, err := openSession(ctx, opts.RootOptions)
	if err != nil {
		return formatter.Fail("failed to create client", err)
	}
	defer sess.Close()

	result, err := fetchEntities(ctx, sess, opts)
	if err != nil {
		return formatter.Fail("entities query failed", err)
	}
	formatter.VerboseLog("%d entities", result.Len())
	return formatter.Value(result)
}

func fetchEntities(ctx context.Context, sess *session, opts *EntitiesOptions) (*ir.IRObject, error) {
	if opts.Model == "" {
		return sess.client.GetEntities(ctx, opts.Limit, opts.Offset)
	}
	return sess.client.GetEntitiesByKeys(ctx, opts.Model, opts.Keys, opts.Limit, opts.Offset)
}
