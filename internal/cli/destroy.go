package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/picket-io/picket/internal/engine"
	"github.com/picket-io/picket/internal/state"
)

var destroyAutoApprove bool

var destroyCmd = &cobra.Command{
	Use:   "destroy [path]",
	Short: "Destroy all managed infrastructure",
	Long:  `Destroys every resource recorded in state, in reverse dependency order.`,
	Args:  cobra.MaximumNArgs(1),
	RunE:  runDestroy,
}

func init() {
	destroyCmd.Flags().BoolVar(&destroyAutoApprove, "auto-approve", false, "Skip interactive approval before destroying")
}

func runDestroy(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	cfg, wd, err := loadConfig(ctx, args, nil)
	if err != nil {
		return err
	}

	store, err := newStore(cfg, wd)
	if err != nil {
		return err
	}
	if err := store.Lock(ctx, state.DefaultLockTTL); err != nil {
		return err
	}
	defer store.Unlock(context.WithoutCancel(ctx))

	st, err := store.Read(ctx)
	if err != nil {
		return fmt.Errorf("failed to read state: %w", err)
	}
	if len(st.Resources) == 0 {
		fmt.Println("Nothing to destroy.")
		return nil
	}

	eng := newEngine(cfg)
	if err := eng.LoadStateProviders(st); err != nil {
		return err
	}
	plan := eng.PlanDestroy(st)

	fmt.Println("Picket will destroy the following resources:")
	renderChanges(plan)
	renderSummary(plan)

	if !destroyAutoApprove {
		fmt.Print("\nDo you really want to destroy all resources? (y/n): ")
		var response string
		fmt.Scanln(&response)
		if response != "y" && response != "yes" {
			fmt.Println("Destroy cancelled.")
			return nil
		}
	}

	// The desired graph is empty: everything in state is removed.
	prepared := &engine.Prepared{Schedule: &engine.Schedule{}}
	applyErr := eng.Apply(ctx, prepared, plan, st, engine.ApplyOptions{
		Callback:   printProgress,
		Checkpoint: checkpointer(store, st.Serial),
	})
	if applyErr != nil {
		return fmt.Errorf("destroy failed: %w", applyErr)
	}

	fmt.Printf("\nDestroy complete! Resources: %d destroyed.\n", plan.Summary.Delete)
	return nil
}
