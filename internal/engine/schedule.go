package engine

// Schedule is an ordered sequence of phases. Every phase is a set of
// mutually independent addresses: no edges between members, and every
// dependency of a member sits in an earlier phase. Nodes inside a phase
// may be applied concurrently.
type Schedule struct {
	Phases [][]string
}

// BuildSchedule layers the graph with Kahn's algorithm: each phase is the
// set of nodes whose dependencies are all satisfied at that step, ordered
// by declaration position for deterministic output. The graph is already
// validated, so the sort always drains.
func BuildSchedule(g *Graph) *Schedule {
	inDegree := make(map[string]int, len(g.nodes))
	for addr, node := range g.nodes {
		inDegree[addr] = len(node.deps)
	}

	s := &Schedule{}
	remaining := len(g.nodes)
	for remaining > 0 {
		var phase []string
		for _, addr := range g.order {
			if deg, ok := inDegree[addr]; ok && deg == 0 {
				phase = append(phase, addr)
			}
		}
		if len(phase) == 0 {
			// Unreachable on a validated graph; guard against an
			// unvalidated one rather than spin.
			break
		}
		for _, addr := range phase {
			delete(inDegree, addr)
			remaining--
			for _, dependent := range g.nodes[addr].revDeps {
				if _, ok := inDegree[dependent]; ok {
					inDegree[dependent]--
				}
			}
		}
		s.Phases = append(s.Phases, phase)
	}
	return s
}

// Reversed returns the phases in reverse order with members intact, the
// safe order for destruction: a resource is never destroyed before the
// resources that depend on it.
func (s *Schedule) Reversed() *Schedule {
	rev := &Schedule{Phases: make([][]string, len(s.Phases))}
	for i, phase := range s.Phases {
		rev.Phases[len(s.Phases)-1-i] = append([]string(nil), phase...)
	}
	return rev
}

// Linear flattens the schedule into a single order.
func (s *Schedule) Linear() []string {
	var out []string
	for _, phase := range s.Phases {
		out = append(out, phase...)
	}
	return out
}

// Filter returns a schedule containing only the given addresses, with
// empty phases dropped and phase order preserved.
func (s *Schedule) Filter(keep map[string]bool) *Schedule {
	out := &Schedule{}
	for _, phase := range s.Phases {
		var kept []string
		for _, addr := range phase {
			if keep[addr] {
				kept = append(kept, addr)
			}
		}
		if len(kept) > 0 {
			out.Phases = append(out.Phases, kept)
		}
	}
	return out
}
