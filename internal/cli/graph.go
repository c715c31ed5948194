package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var graphProperties map[string]string

var graphCmd = &cobra.Command{
	Use:   "graph [path]",
	Short: "Output the dependency graph in DOT format",
	Long: `Generates a visual representation of the resource dependency graph
in Graphviz DOT format. Pipe the output to 'dot' to generate an image:

  picket graph | dot -Tpng > graph.png`,
	Args: cobra.MaximumNArgs(1),
	RunE: runGraph,
}

func init() {
	graphCmd.Flags().StringToStringVarP(&graphProperties, "prop", "D", nil, "Set deployment inputs (format: key=value)")
}

func runGraph(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	cfg, _, err := loadConfig(ctx, args, graphProperties)
	if err != nil {
		return err
	}

	eng := newEngine(cfg)
	prepared, err := eng.Prepare(ctx, cfg, graphProperties)
	if err != nil {
		return err
	}

	fmt.Println("digraph picket {")
	fmt.Println("  rankdir = \"BT\";")
	fmt.Println("  node [shape = rect];")
	fmt.Println()
	for _, addr := range prepared.Graph.Addrs() {
		fmt.Printf("  %q;\n", addr)
	}
	fmt.Println()
	for _, addr := range prepared.Graph.Addrs() {
		for _, dep := range prepared.Graph.Dependencies(addr) {
			fmt.Printf("  %q -> %q;\n", addr, dep)
		}
	}
	fmt.Println("}")
	return nil
}
