package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var outputJSON bool

var outputCmd = &cobra.Command{
	Use:   "output [path] [name]",
	Short: "Show deployment outputs from state",
	Args:  cobra.MaximumNArgs(2),
	RunE:  runOutput,
}

func init() {
	outputCmd.Flags().BoolVar(&outputJSON, "json", false, "Print outputs as JSON")
}

func runOutput(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	var name string
	if len(args) == 2 {
		name = args[1]
		args = args[:1]
	}

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

	if name != "" {
		value, ok := st.Outputs[name]
		if !ok {
			return fmt.Errorf("output %q not found in state", name)
		}
		fmt.Println(value)
		return nil
	}

	if outputJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(st.Outputs)
	}

	if len(st.Outputs) == 0 {
		fmt.Println("No outputs recorded. Run apply first.")
		return nil
	}
	printOutputs(st.Outputs)
	return nil
}
