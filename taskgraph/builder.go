package taskgraph

import (
	"github.com/hugr-lab/vizql/errs"
)

// Builder is a fluent task-registration + scope-declaration API generalized
// from the teacher's CatalogBuilder/SchemaBuilder: register every task and
// scope declaration, then Build once to resolve dependencies, toposort, and
// fingerprint the result. Not thread-safe — use only during graph
// construction. Mirrors the teacher's "built" guard against reuse after
// Build.
type Builder struct {
	scope *ScopeTable
	tasks []Task
	built bool
}

// NewBuilder returns a builder in the empty state.
func NewBuilder() *Builder {
	return &Builder{scope: NewScopeTable()}
}

// Declare registers that v is defined in scope, making it resolvable by
// tasks in this or any nested scope. Returns the Builder for chaining.
func (b *Builder) Declare(v Variable, scope ScopePath) *Builder {
	b.scope.AddVariable(v, scope)
	return b
}

// DeclareSignalOutput registers that the data variable named dataName, as
// defined in scope, additionally emits a signal named signalName — for
// tasks whose pipeline ends in an Extent-like transform.
func (b *Builder) DeclareSignalOutput(dataName, signalName string, scope ScopePath) *Builder {
	b.scope.AddDataSignal(dataName, signalName, scope)
	return b
}

// AddTask registers one task. Returns the Builder for chaining.
//
// Example:
//
//	g, err := taskgraph.NewBuilder().
//	    Declare(taskgraph.NewSignalVariable("url"), nil).
//	    AddTask(taskgraph.NewValueTask(taskgraph.NewSignalVariable("url"), nil, urlValue)).
//	    AddTask(dataTask).
//	    Build()
func (b *Builder) AddTask(t Task) *Builder {
	b.tasks = append(b.tasks, t)
	return b
}

// Build finalizes the graph. Can only be called once; a second call
// returns an error rather than silently rebuilding.
func (b *Builder) Build() (*Graph, error) {
	if b.built {
		return nil, errs.New(errs.Internal, "task graph builder already built")
	}

	seen := make(map[string]bool, len(b.tasks))
	for _, t := range b.tasks {
		key := (ScopedVariable{t.Variable(), t.Scope()}).key()
		if seen[key] {
			return nil, errs.New(errs.Specification, "duplicate task for variable %s in scope %s", t.Variable(), t.Scope())
		}
		seen[key] = true
	}

	b.built = true
	return Build(b.tasks, b.scope)
}
