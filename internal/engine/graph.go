package engine

import (
	"fmt"
	"sort"
	"strings"

	"github.com/picket-io/picket/internal/ir"
	"github.com/picket-io/picket/internal/provider"
)

// Graph is the validated dependency graph for one deployment unit. It is
// built once per apply and never mutated afterwards.
type Graph struct {
	nodes map[string]*graphNode
	order []string // declaration order, the tie-break for scheduling
}

type graphNode struct {
	addr    string
	res     *ir.Resource
	index   int      // declaration position
	deps    []string // addresses this node references
	revDeps []string // addresses that reference this node
}

// SchemaLookup resolves the attribute schema for a resource type, keyed
// by provider name. Nil disables schema validation (state-only graphs).
type SchemaLookup func(providerName, resourceType string) (*provider.Schema, error)

// BuildGraph parses resources into a dependency graph, using attribute
// references (ptr://) and explicit dependsOn entries as edges. It rejects
// duplicate addresses, references to undeclared resources, attribute
// schema violations, and cycles.
func BuildGraph(resources []*ir.Resource, schemas SchemaLookup) (*Graph, error) {
	g := &Graph{nodes: make(map[string]*graphNode)}
	var issues []string

	for i, res := range resources {
		addr := res.Addr()
		if _, dup := g.nodes[addr]; dup {
			issues = append(issues, fmt.Sprintf("duplicate resource %s", addr))
			continue
		}
		g.nodes[addr] = &graphNode{addr: addr, res: res, index: i}
		g.order = append(g.order, addr)
	}

	for _, addr := range g.order {
		node := g.nodes[addr]
		res := node.res

		seen := map[string]bool{addr: true} // self-edges are cycles of one; caught here
		addDep := func(dep, origin string) {
			if dep == addr {
				issues = append(issues, fmt.Sprintf("%s references itself (%s)", addr, origin))
				return
			}
			if _, ok := g.nodes[dep]; !ok {
				issues = append(issues, fmt.Sprintf("%s references undeclared resource %s (%s)", addr, dep, origin))
				return
			}
			if !seen[dep] {
				seen[dep] = true
				node.deps = append(node.deps, dep)
			}
		}

		for _, dep := range res.DependsOn {
			addDep(dep, "dependsOn")
		}
		for _, ref := range ExtractRefs(res.Properties) {
			dep := RefAddr(ref)
			if dep == "" {
				issues = append(issues, fmt.Sprintf("%s contains malformed reference %q", addr, ref))
				continue
			}
			addDep(dep, ref)
		}

		if schemas != nil {
			schema, err := schemas(res.Provider, res.Type)
			if err != nil {
				issues = append(issues, err.Error())
			} else if err := schema.Validate(addr, res.Properties); err != nil {
				issues = append(issues, err.Error())
			}
		}
	}

	if len(issues) > 0 {
		sort.Strings(issues)
		return nil, &ValidationError{Issues: issues}
	}

	for _, addr := range g.order {
		for _, dep := range g.nodes[addr].deps {
			g.nodes[dep].revDeps = append(g.nodes[dep].revDeps, addr)
		}
	}

	if cycle := g.findCycle(); cycle != nil {
		return nil, &CycleError{Nodes: cycle}
	}
	return g, nil
}

// BuildGraphFromState reconstructs ordering information from persisted
// records, used to destroy resources whose declarations are gone. Edges
// to records that no longer exist are dropped; the resources they pointed
// at were already destroyed.
func BuildGraphFromState(records []*ir.ResourceState) *Graph {
	g := &Graph{nodes: make(map[string]*graphNode)}
	for i, rec := range records {
		addr := rec.Addr()
		if _, dup := g.nodes[addr]; dup {
			continue
		}
		g.nodes[addr] = &graphNode{addr: addr, index: i}
		g.order = append(g.order, addr)
	}
	for _, addr := range g.order {
		node := g.nodes[addr]
		var rec *ir.ResourceState
		for _, r := range records {
			if r.Addr() == addr {
				rec = r
				break
			}
		}
		for _, dep := range rec.Dependencies {
			if _, ok := g.nodes[dep]; ok && dep != addr {
				node.deps = append(node.deps, dep)
				g.nodes[dep].revDeps = append(g.nodes[dep].revDeps, addr)
			}
		}
	}
	return g
}

// Dependencies returns the addresses addr references.
func (g *Graph) Dependencies(addr string) []string {
	if node, ok := g.nodes[addr]; ok {
		return node.deps
	}
	return nil
}

// Resource returns the declared resource at addr, or nil.
func (g *Graph) Resource(addr string) *ir.Resource {
	if node, ok := g.nodes[addr]; ok {
		return node.res
	}
	return nil
}

// Addrs returns every address in declaration order.
func (g *Graph) Addrs() []string {
	return g.order
}

// findCycle returns the members of one dependency cycle, or nil. A DFS
// over the nodes Kahn's algorithm could never drain recovers the actual
// cycle path for the error message.
func (g *Graph) findCycle() []string {
	const (
		white = 0
		gray  = 1
		black = 2
	)
	color := make(map[string]int, len(g.nodes))
	parent := make(map[string]string)

	var cycle []string
	var visit func(addr string) bool
	visit = func(addr string) bool {
		color[addr] = gray
		for _, dep := range g.nodes[addr].deps {
			switch color[dep] {
			case white:
				parent[dep] = addr
				if visit(dep) {
					return true
				}
			case gray:
				// Walk back from addr to dep to recover the cycle.
				var path []string
				for cur := addr; cur != dep; cur = parent[cur] {
					path = append(path, cur)
				}
				// Reverse into reference order and close the loop.
				for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
					path[i], path[j] = path[j], path[i]
				}
				cycle = append([]string{dep}, path...)
				cycle = append(cycle, dep)
				return true
			}
		}
		color[addr] = black
		return false
	}

	for _, addr := range g.order {
		if color[addr] == white && visit(addr) {
			return cycle
		}
	}
	return nil
}

// ExtractRefs returns every ptr:// reference embedded in a property
// value, including nested maps and lists.
func ExtractRefs(v any) []string {
	var refs []string
	switch val := v.(type) {
	case string:
		if strings.HasPrefix(val, "ptr://") {
			refs = append(refs, val)
		}
	case map[string]any:
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			refs = append(refs, ExtractRefs(val[k])...)
		}
	case map[any]any:
		for _, v := range val {
			refs = append(refs, ExtractRefs(v)...)
		}
	case []any:
		for _, v := range val {
			refs = append(refs, ExtractRefs(v)...)
		}
	}
	return refs
}

// RefAddr converts a reference to the address of the resource it points
// at: ptr://aws:EC2.Vpc/main/id -> aws:EC2.Vpc.main. Returns "" for a
// malformed reference.
func RefAddr(ref string) string {
	if !strings.HasPrefix(ref, "ptr://") {
		return ""
	}
	parts := strings.SplitN(ref[6:], "/", 3)
	if len(parts) < 3 || parts[0] == "" || parts[1] == "" || parts[2] == "" {
		return ""
	}
	return fmt.Sprintf("%s.%s", parts[0], parts[1])
}

// RefAttribute returns the attribute component of a reference, "" if
// malformed.
func RefAttribute(ref string) string {
	if !strings.HasPrefix(ref, "ptr://") {
		return ""
	}
	parts := strings.SplitN(ref[6:], "/", 3)
	if len(parts) < 3 {
		return ""
	}
	return parts[2]
}
