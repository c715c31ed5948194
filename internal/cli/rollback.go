package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/picket-io/picket/internal/engine"
	"github.com/picket-io/picket/internal/state"
)

var (
	rollbackAutoApprove bool
	rollbackToSerial    int
)

var rollbackCmd = &cobra.Command{
	Use:   "rollback [path]",
	Short: "Roll the deployment back to an archived state serial",
	Long: `Re-apply an earlier state snapshot from the deployment history,
converging live infrastructure back onto the resources and inputs recorded
at that serial. Defaults to the serial before the current one; use
'picket history' to list the archived serials.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runRollback,
}

func init() {
	rollbackCmd.Flags().BoolVar(&rollbackAutoApprove, "auto-approve", false, "Skip interactive approval of the plan before rolling back")
	rollbackCmd.Flags().IntVar(&rollbackToSerial, "to-serial", 0, "State serial to roll back to (default: the serial before the current one)")
}

func runRollback(cmd *cobra.Command, args []string) error {
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

	target := rollbackToSerial
	if target == 0 {
		target = st.Serial - 1
	}
	if target < 1 {
		return fmt.Errorf("no earlier serial to roll back to (current serial is %d)", st.Serial)
	}
	if target >= st.Serial {
		return fmt.Errorf("cannot roll back to serial %d: current serial is %d", target, st.Serial)
	}

	snapshot, err := store.ReadSnapshot(ctx, target)
	if err != nil {
		return err
	}
	if st.Lineage != "" && snapshot.Lineage != st.Lineage {
		return fmt.Errorf("snapshot serial %d belongs to lineage %s, not %s", target, snapshot.Lineage, st.Lineage)
	}

	eng := newEngine(cfg)
	prepared, err := eng.PrepareRollback(snapshot)
	if err != nil {
		return err
	}
	if err := eng.LoadStateProviders(st); err != nil {
		return err
	}

	plan := eng.CreatePlan(prepared, st)
	if len(plan.Changes) == 0 {
		fmt.Printf("No changes. Infrastructure already matches serial %d.\n", target)
		return nil
	}

	fmt.Printf("Picket will roll back to serial %d with the following actions:\n", target)
	renderChanges(plan)
	renderSummary(plan)

	if !rollbackAutoApprove {
		fmt.Print("\nDo you want to perform these actions? (y/n): ")
		var response string
		fmt.Scanln(&response)
		if response != "y" && response != "yes" {
			fmt.Println("Rollback cancelled.")
			return nil
		}
	}

	fmt.Printf("\nRolling back %d changes...\n", len(plan.Changes))

	applyErr := eng.Apply(ctx, prepared, plan, st, engine.ApplyOptions{
		Callback:   printProgress,
		Checkpoint: checkpointer(store, st.Serial),
	})
	if applyErr != nil {
		return fmt.Errorf("rollback failed: %w", applyErr)
	}

	fmt.Printf("\nRollback complete! Resources: %d added, %d changed, %d destroyed.\n",
		plan.Summary.Create, plan.Summary.Update, plan.Summary.Delete)
	return nil
}
