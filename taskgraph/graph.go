package taskgraph

import (
	"github.com/google/uuid"

	"github.com/hugr-lab/vizql/errs"
)

// Edge names one directed dependency by the toposorted index of the node on
// the other end. Signal, when non-negative, is the position of the
// specific named output this edge refers to within the source task's
// OutputSignals() — the "output-port index" §9.1 calls for.
type Edge struct {
	Index     int
	Signal    int // -1 unless this edge names one emitted signal port
	Propagate bool
}

// Node is one toposorted position in the graph: its task, its resolved
// incoming/outgoing edges (as indices into Graph.Nodes), and its two
// fingerprints.
type Node struct {
	ID    uuid.UUID
	Task  Task
	Scope ScopePath

	Incoming []Edge
	Outgoing []Edge

	IDFingerprint    Fingerprint
	StateFingerprint Fingerprint
}

// Graph is a topologically sorted task graph: Nodes[i].Incoming/Outgoing
// name other positions in this same slice, never raw task identity, so the
// graph can be walked purely by index.
type Graph struct {
	Nodes []*Node
}

// Build resolves every task's InputVars against scope, adds the
// corresponding edges, toposorts, and fingerprints every node — the whole
// of §4.8's Construction + Fingerprints. Cycles and unresolvable references
// fail construction.
func Build(tasks []Task, scope *ScopeTable) (*Graph, error) {
	scopedKey := func(v Variable, s ScopePath) string { return (ScopedVariable{v, s}).key() }

	byKey := make(map[string]int, len(tasks))
	adjOut := make([][]int, len(tasks)) // raw task index -> dependent raw task indices
	indegree := make([]int, len(tasks))

	for i, t := range tasks {
		byKey[scopedKey(t.Variable(), t.Scope())] = i
	}

	for i, t := range tasks {
		for _, iv := range t.InputVars() {
			res, err := scope.ResolveScope(iv, t.Scope())
			if err != nil {
				return nil, errs.Wrapf(err, "resolving dependency of %s in scope %s", t.Variable(), t.Scope())
			}
			from, ok := byKey[scopedKey(res.Var, res.Scope)]
			if !ok {
				return nil, errs.New(errs.Specification,
					"variable %s resolved to scope %s but no task defines it there", res.Var, res.Scope)
			}
			adjOut[from] = append(adjOut[from], i)
			indegree[i]++
		}
	}

	order, err := toposort(adjOut, indegree, len(tasks))
	if err != nil {
		return nil, err
	}

	sortedIndexOf := make([]int, len(tasks)) // raw task index -> position in order
	for pos, raw := range order {
		sortedIndexOf[raw] = pos
	}

	nodes := make([]*Node, len(tasks))
	for pos, raw := range order {
		nodes[pos] = &Node{
			ID:    uuid.New(),
			Task:  tasks[raw],
			Scope: tasks[raw].Scope(),
		}
	}

	for rawTo, t := range tasks {
		posTo := sortedIndexOf[rawTo]
		for _, iv := range t.InputVars() {
			res, _ := scope.ResolveScope(iv, t.Scope()) // already validated above
			rawFrom := byKey[scopedKey(res.Var, res.Scope)]
			posFrom := sortedIndexOf[rawFrom]

			signalIdx := -1
			if res.Signal != "" {
				for idx, name := range tasks[rawFrom].OutputSignals() {
					if name == res.Signal {
						signalIdx = idx
						break
					}
				}
				if signalIdx < 0 {
					return nil, errs.New(errs.Internal, "signal %q not found among outputs of %s", res.Signal, tasks[rawFrom].Variable())
				}
			}

			nodes[posTo].Incoming = append(nodes[posTo].Incoming, Edge{Index: posFrom, Signal: signalIdx, Propagate: iv.Propagate})
			nodes[posFrom].Outgoing = append(nodes[posFrom].Outgoing, Edge{Index: posTo, Signal: signalIdx, Propagate: iv.Propagate})
		}
	}

	g := &Graph{Nodes: nodes}
	g.fingerprintAll()
	return g, nil
}

// toposort runs Kahn's algorithm over the raw-index adjacency built by
// Build, failing if a cycle remains — no third-party graph library in the
// example pack offers toposort, so this is hand-rolled per DESIGN.md.
func toposort(adjOut [][]int, indegree []int, n int) ([]int, error) {
	indeg := make([]int, n)
	copy(indeg, indegree)

	queue := make([]int, 0, n)
	for i := 0; i < n; i++ {
		if indeg[i] == 0 {
			queue = append(queue, i)
		}
	}

	order := make([]int, 0, n)
	for len(queue) > 0 {
		i := queue[0]
		queue = queue[1:]
		order = append(order, i)
		for _, j := range adjOut[i] {
			indeg[j]--
			if indeg[j] == 0 {
				queue = append(queue, j)
			}
		}
	}

	if len(order) != n {
		return nil, errs.New(errs.Specification, "task graph has a cycle")
	}
	return order, nil
}

// fingerprintAll computes every node's id/state fingerprint in toposort
// order, so each node's inputs are already fingerprinted by the time it is
// reached.
func (g *Graph) fingerprintAll() {
	for _, n := range g.Nodes {
		var idIn, stateIn []Fingerprint
		for _, e := range n.Incoming {
			idIn = append(idIn, g.Nodes[e.Index].IDFingerprint)
			stateIn = append(stateIn, g.Nodes[e.Index].StateFingerprint)
		}
		n.IDFingerprint = computeIDFingerprint(n.Task, idIn)
		n.StateFingerprint = computeStateFingerprint(n.IDFingerprint, valueTag(n.Task), stateIn)
	}
}
