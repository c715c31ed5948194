package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/picket-io/picket/internal/engine"
	"github.com/picket-io/picket/internal/eval"
	"github.com/picket-io/picket/internal/ir"
	"github.com/picket-io/picket/internal/provider"
	"github.com/picket-io/picket/internal/state"
	"github.com/picket-io/picket/providers/aws"
	"github.com/picket-io/picket/providers/null"
	"github.com/picket-io/picket/providers/tls"
)

// workspace resolves the deployment directory and entry point from the
// optional positional argument: a directory, a .pkl file, or nothing
// (current directory, main.pkl).
func workspace(args []string) (wd, entryPoint string, err error) {
	wd, err = os.Getwd()
	if err != nil {
		return "", "", fmt.Errorf("failed to get working directory: %w", err)
	}
	entryPoint = "main.pkl"

	if len(args) > 0 {
		absPath, err := filepath.Abs(args[0])
		if err != nil {
			return "", "", fmt.Errorf("failed to resolve path %s: %w", args[0], err)
		}
		info, err := os.Stat(absPath)
		if err != nil {
			return "", "", fmt.Errorf("failed to stat path %s: %w", args[0], err)
		}
		if info.IsDir() {
			wd = absPath
		} else {
			wd = filepath.Dir(absPath)
			entryPoint = filepath.Base(absPath)
		}
	}
	return wd, entryPoint, nil
}

// loadConfig evaluates the deployment module with external properties
// applied.
func loadConfig(ctx context.Context, args []string, properties map[string]string) (*ir.Config, string, error) {
	wd, entryPoint, err := workspace(args)
	if err != nil {
		return nil, "", err
	}
	cfg, err := eval.NewEvaluator(wd).LoadConfig(ctx, entryPoint, properties)
	if err != nil {
		return nil, "", fmt.Errorf("failed to load config: %w", err)
	}
	return cfg, wd, nil
}

// newStore builds the state store declared by the config's backend block,
// resolving a relative local path against the deployment directory.
func newStore(cfg *ir.Config, wd string) (*state.Store, error) {
	settings := make(map[string]string, len(cfg.Backend))
	for k, v := range cfg.Backend {
		settings[k] = v
	}
	if settings["type"] == "" || settings["type"] == "local" {
		path := settings["path"]
		if path == "" {
			path = filepath.Join(".picket", "state.json")
		}
		if !filepath.IsAbs(path) {
			path = filepath.Join(wd, path)
		}
		settings["path"] = path
	}

	backend, err := state.NewBackend(&state.Config{
		Type:     settings["type"],
		Settings: settings,
	})
	if err != nil {
		return nil, err
	}
	return state.NewStore(backend), nil
}

// newEngine builds the engine with every known provider factory
// registered; providers construct lazily from the config's provider
// settings when a resource first needs them.
func newEngine(cfg *ir.Config) *engine.Engine {
	registry := provider.NewRegistry(cfg.Providers)
	registry.RegisterFactory("aws", aws.Factory)
	registry.RegisterFactory("tls", tls.Factory)
	registry.RegisterFactory("null", null.Factory)
	return engine.NewEngine(registry)
}

// renderChanges prints the plan's change list.
func renderChanges(plan *ir.Plan) {
	for _, change := range plan.Changes {
		symbol, color := "~", "\033[33m"
		switch change.Action {
		case ir.ActionCreate:
			symbol, color = "+", "\033[32m"
		case ir.ActionDelete:
			symbol, color = "-", "\033[31m"
		}

		res := change.Desired
		if res == nil {
			res = change.Prior
		}

		fmt.Printf("\n%s  # %s will be %s\033[0m\n", color, change.Address, change.Action)
		fmt.Printf("%s  %s resource \"%s\" \"%s\" {\n", color, symbol, res.Type, res.Name)
		keys := make([]string, 0, len(res.Properties))
		for k := range res.Properties {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Printf("%s      %s %s = %v\n", color, symbol, k, formatValue(res.Properties[k]))
		}
		fmt.Printf("%s    }\033[0m\n", color)
	}
}

func renderSummary(plan *ir.Plan) {
	fmt.Printf("\nPlan: %d to add, %d to change, %d to destroy.\n",
		plan.Summary.Create, plan.Summary.Update, plan.Summary.Delete)
}

func formatValue(v any) string {
	switch val := v.(type) {
	case string:
		if len(val) > 64 {
			return fmt.Sprintf("%q...", val[:61])
		}
		return fmt.Sprintf("%q", val)
	default:
		return fmt.Sprintf("%v", v)
	}
}

func printOutputs(outputs map[string]any) {
	names := make([]string, 0, len(outputs))
	for name := range outputs {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Printf("  %s = %v\n", name, outputs[name])
	}
}
