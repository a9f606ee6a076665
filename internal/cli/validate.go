package cli

import (
	"github.com/spf13/cobra"
)

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid  bool   `json:"valid"`
	World  string `json:"world,omitempty"`
	Synced int    `json:"synced"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate the client configuration without connecting",
		Long: `Validate the client configuration: the config file (if any) merged
with flag overrides is checked against the config schema, the world
address is parsed and every sync entry's keys are parsed.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, cmd)
		},
	}

	return cmd
}

func runValidate(opts *RootOptions, cmd *cobra.Command) error {
	formatter := newFormatter(opts, cmd)

	cfg, err := resolveConfig(opts)
	if err != nil {
		return formatter.Fail("invalid config", err)
	}
	if err := cfg.Validate(); err != nil {
		return formatter.Fail("invalid config", err)
	}
	world, err := cfg.World()
	if err != nil {
		return formatter.Fail("invalid config", err)
	}

	result := ValidationResult{Valid: true, World: world.String(), Synced: len(cfg.Sync)}
	if formatter.Format == "json" {
		return formatter.Success(result)
	}
	return formatter.Success("config valid (world " + result.World + ")")
}
