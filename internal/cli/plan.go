package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var planProperties map[string]string

var planCmd = &cobra.Command{
	Use:   "plan [path]",
	Short: "Show changes required by the current configuration",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runPlan,
}

func init() {
	planCmd.Flags().StringToStringVarP(&planProperties, "prop", "D", nil, "Set deployment inputs (format: key=value)")
}

func runPlan(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	cfg, wd, err := loadConfig(ctx, args, planProperties)
	if err != nil {
		return err
	}

	store, err := newStore(cfg, wd)
	if err != nil {
		return err
	}
	st, err := store.Read(ctx)
	if err != nil {
		return fmt.Errorf("failed to read state: %w", err)
	}

	eng := newEngine(cfg)
	prepared, err := eng.Prepare(ctx, cfg, planProperties)
	if err != nil {
		return err
	}

	plan := eng.CreatePlan(prepared, st)
	if len(plan.Changes) == 0 {
		fmt.Println("No changes. Infrastructure is up-to-date.")
		return nil
	}

	fmt.Println("Picket will perform the following actions:")
	renderChanges(plan)
	renderSummary(plan)
	return nil
}
