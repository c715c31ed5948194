package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var historyCmd = &cobra.Command{
	Use:   "history [path]",
	Short: "List the archived state serials for a deployment",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runHistory,
}

func runHistory(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	cfg, wd, err := loadConfig(ctx, args, nil)
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
	serials, err := store.Snapshots(ctx)
	if err != nil {
		return err
	}
	if len(serials) == 0 {
		fmt.Println("No deployment history recorded yet.")
		return nil
	}

	for _, serial := range serials {
		snapshot, err := store.ReadSnapshot(ctx, serial)
		if err != nil {
			return err
		}
		marker := " "
		if serial == st.Serial {
			marker = "*"
		}
		fmt.Printf("%s serial %d: %d resources\n", marker, serial, len(snapshot.Resources))
	}
	return nil
}
