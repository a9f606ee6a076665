package cli

import (
	"github.com/spf13/cobra"
)

// NewModelCommand creates the model command.
func NewModelCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "model <name> [keys...]",
		Short: "Print one model value",
		Long: `Print the encoded value of one model addressed by its key tuple.

Prints null when no entity holds the model.

Example:
  dojo model --config dojo.yaml Position 0x1`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runModel(rootOpts, args[0], args[1:], cmd)
		},
	}

	return cmd
}

func runModel(opts *RootOptions, model string, keys []string, cmd *cobra.Command) error {
	formatter := newFormatter(opts, cmd)

	ctx := commandContext(cmd)
	sess, err := openSession(ctx, opts)
	if err != nil {
		return formatter.Fail("failed to create client", err)
	}
	defer sess.Close()

	value, err := sess.client.GetModelValue(ctx, model, keys)
	if err != nil {
		return formatter.Fail("model query failed", err)
	}
	return formatter.Value(value)
}
