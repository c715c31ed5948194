package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var validateProperties map[string]string

var validateCmd = &cobra.Command{
	Use:   "validate [path]",
	Short: "Validate the deployment configuration",
	Long: `Checks the configuration without touching any infrastructure: the
deployment module evaluates, every reference resolves, attribute types
match their schemas, and the dependency graph is acyclic.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runValidate,
}

func init() {
	validateCmd.Flags().StringToStringVarP(&validateProperties, "prop", "D", nil, "Set deployment inputs (format: key=value)")
}

func runValidate(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	cfg, _, err := loadConfig(ctx, args, validateProperties)
	if err != nil {
		return err
	}

	eng := newEngine(cfg)
	prepared, err := eng.Prepare(ctx, cfg, validateProperties)
	if err != nil {
		return err
	}

	fmt.Printf("Configuration is valid: %d resources in %d phases.\n",
		len(prepared.Resources), len(prepared.Schedule.Phases))
	return nil
}
