package taskgraph

import (
	"github.com/hugr-lab/vizql/errs"
	"github.com/hugr-lab/vizql/value"
)

// UpdateValue implements §4.8 Mutation: replaces a ValueTask node's literal
// and recomputes state fingerprints for every node reachable along
// propagating edges, in toposort order (which Graph.Nodes already is, so
// a single forward pass suffices — no node depends on one that appears
// after it). Returns the indices whose state fingerprint actually changed.
func UpdateValue(g *Graph, nodeIndex int, newValue value.Scalar) ([]int, error) {
	if nodeIndex < 0 || nodeIndex >= len(g.Nodes) {
		return nil, errs.New(errs.Internal, "node index %d out of range", nodeIndex)
	}
	node := g.Nodes[nodeIndex]
	vt, ok := node.Task.(*ValueTask)
	if !ok {
		return nil, errs.New(errs.Specification, "node %d (%s) is not a value task", nodeIndex, node.Task.Variable())
	}
	vt.Value = newValue
	node.StateFingerprint = computeStateFingerprint(node.IDFingerprint, valueTag(node.Task), nil)

	reachable := map[int]bool{nodeIndex: true}
	var changed []int
	for i := nodeIndex + 1; i < len(g.Nodes); i++ {
		n := g.Nodes[i]
		stateIn := make([]Fingerprint, len(n.Incoming))
		propagated := false
		for k, e := range n.Incoming {
			stateIn[k] = g.Nodes[e.Index].StateFingerprint
			if reachable[e.Index] && e.Propagate {
				propagated = true
			}
		}
		if !propagated {
			continue
		}
		reachable[i] = true
		old := n.StateFingerprint
		n.StateFingerprint = computeStateFingerprint(n.IDFingerprint, valueTag(n.Task), stateIn)
		if n.StateFingerprint != old {
			changed = append(changed, i)
		}
	}
	return changed, nil
}
