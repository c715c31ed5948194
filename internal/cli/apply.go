package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/picket-io/picket/internal/engine"
	"github.com/picket-io/picket/internal/ir"
	"github.com/picket-io/picket/internal/state"
)

var (
	applyAutoApprove bool
	applyProperties  map[string]string
)

var applyCmd = &cobra.Command{
	Use:   "apply [path]",
	Short: "Apply a deployment configuration",
	Long:  `Build or change infrastructure according to the deployment configuration.`,
	Args:  cobra.MaximumNArgs(1),
	RunE:  runApply,
}

func init() {
	applyCmd.Flags().BoolVar(&applyAutoApprove, "auto-approve", false, "Skip interactive approval of the plan before applying")
	applyCmd.Flags().StringToStringVarP(&applyProperties, "prop", "D", nil, "Set deployment inputs (format: key=value)")
}

func runApply(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	cfg, wd, err := loadConfig(ctx, args, applyProperties)
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

	eng := newEngine(cfg)
	prepared, err := eng.Prepare(ctx, cfg, applyProperties)
	if err != nil {
		return err
	}
	if err := eng.LoadStateProviders(st); err != nil {
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

	if !applyAutoApprove {
		fmt.Print("\nDo you want to perform these actions? (y/n): ")
		var response string
		fmt.Scanln(&response)
		if response != "y" && response != "yes" {
			fmt.Println("Apply cancelled.")
			return nil
		}
	}

	fmt.Printf("\nApplying %d changes...\n", len(plan.Changes))

	applyErr := eng.Apply(ctx, prepared, plan, st, engine.ApplyOptions{
		Callback:   printProgress,
		Checkpoint: checkpointer(store, st.Serial),
	})
	if applyErr != nil {
		return fmt.Errorf("apply failed: %w", applyErr)
	}

	fmt.Printf("\nApply complete! Resources: %d added, %d changed, %d destroyed.\n",
		plan.Summary.Create, plan.Summary.Update, plan.Summary.Delete)

	if len(st.Outputs) > 0 {
		fmt.Println("\nOutputs:")
		printOutputs(st.Outputs)
	}
	return nil
}

// checkpointer returns a Checkpoint that persists state after every
// phase, carrying the serial forward so each write is conditional on the
// previous one.
func checkpointer(store *state.Store, serial int) engine.Checkpoint {
	expected := serial
	return func(ctx context.Context, st *ir.State) error {
		if err := store.Write(ctx, st, expected); err != nil {
			return err
		}
		expected = st.Serial
		return nil
	}
}

func printProgress(event engine.ApplyEvent) {
	switch event.Status {
	case "started":
		fmt.Printf("%s: %s...\n", event.Address, actionVerb(event.Action))
	case "completed":
		fmt.Printf("%s: done (%s)\n", event.Address, event.Duration.Round(time.Millisecond))
	case "failed":
		fmt.Printf("%s: FAILED: %v\n", event.Address, event.Error)
	}
}

func actionVerb(action ir.Action) string {
	switch action {
	case ir.ActionCreate:
		return "creating"
	case ir.ActionUpdate:
		return "updating"
	case ir.ActionDelete:
		return "destroying"
	}
	return "applying"
}
