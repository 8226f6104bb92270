package taskgraph

import "fmt"

// Namespace classifies a Variable per §3's task graph data model: only
// signal and data names participate in dependency resolution (scale specs
// are resolved directly against compile.Config.ScaleScope, not as graph
// nodes — see the Open Question decision in DESIGN.md).
type Namespace int

const (
	NamespaceSignal Namespace = iota
	NamespaceData
)

func (n Namespace) String() string {
	if n == NamespaceData {
		return "data"
	}
	return "signal"
}

// Variable names one node's output: either a signal or a dataset, by name
// within its defining scope. Two Variables are equal per Go's built-in
// struct equality, mirroring the original's derived Eq/Hash on (namespace,
// name) used as a HashMap key.
type Variable struct {
	Namespace Namespace
	Name      string
}

func NewSignalVariable(name string) Variable { return Variable{NamespaceSignal, name} }
func NewDataVariable(name string) Variable    { return Variable{NamespaceData, name} }

func (v Variable) String() string {
	return fmt.Sprintf("%s:%s", v.Namespace, v.Name)
}

// InputVariable is one dependency a task declares: the variable it reads,
// whether the edge propagates mutation (false iff the reference came from
// a `modify` callable rather than a plain read), and — when the reference
// names one emitted signal of a multi-signal-emitting transform such as
// Extent — the signal's name, resolved to a port index at graph build time.
type InputVariable struct {
	Var       Variable
	Propagate bool
	Signal    string // "" unless Var.Namespace == NamespaceData and a specific emitted signal is referenced
}

// ScopedVariable pairs a Variable with the scope path it was declared in —
// the graph's de-duplication key, since the same name may be declared
// independently inside sibling mark groups.
type ScopedVariable struct {
	Var   Variable
	Scope ScopePath
}

func (sv ScopedVariable) key() string {
	return sv.Scope.String() + "/" + sv.Var.String()
}

// sortInputVariables returns a copy of vars sorted by (namespace, name,
// signal) for deterministic dependency-resolution order, mirroring the
// original's "Return variables sorted for determinism" convention applied
// at every TaskDependencies::input_vars implementation.
func sortInputVariables(vars []InputVariable) []InputVariable {
	out := make([]InputVariable, len(vars))
	copy(out, vars)
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && lessInputVariable(out[j], out[j-1]); j-- {
			out[j], out[j-1] = out[j-1], out[j]
		}
	}
	return out
}

func lessInputVariable(a, b InputVariable) bool {
	if a.Var.Namespace != b.Var.Namespace {
		return a.Var.Namespace < b.Var.Namespace
	}
	if a.Var.Name != b.Var.Name {
		return a.Var.Name < b.Var.Name
	}
	return a.Signal < b.Signal
}

// dedupInputVariables removes exact duplicates after sorting, mirroring the
// HashSet<InputVariable> the original collects into before sorting.
func dedupInputVariables(vars []InputVariable) []InputVariable {
	sorted := sortInputVariables(vars)
	out := sorted[:0:0]
	for i, v := range sorted {
		if i > 0 && v == sorted[i-1] {
			continue
		}
		out = append(out, v)
	}
	return out
}
