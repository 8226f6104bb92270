package taskgraph

import (
	"fmt"
	"strings"

	"github.com/hugr-lab/vizql/errs"
)

// ScopePath is a mark-group nesting path: group indices from the
// specification's root outward, e.g. []uint32{0, 2} names the third mark
// group nested inside the first top-level group. The empty path is the
// top-level scope.
type ScopePath []uint32

func (p ScopePath) String() string {
	parts := make([]string, len(p))
	for i, g := range p {
		parts[i] = fmt.Sprintf("%d", g)
	}
	return "[" + strings.Join(parts, ".") + "]"
}

// parent returns the path one level up and whether one exists.
func (p ScopePath) parent() (ScopePath, bool) {
	if len(p) == 0 {
		return nil, false
	}
	return p[:len(p)-1], true
}

// ScopeTable records which signal/data variables — and, for a variable
// that is itself a multi-signal-emitting transform's dataset, which
// additional signal names it emits — are declared in each scope. It
// mirrors `task_graph::scope::TaskScope`.
type ScopeTable struct {
	declared map[string]bool            // ScopedVariable.key() -> declared
	dataSigs map[string]map[string]bool // data ScopedVariable.key() -> emitted signal name -> declared
}

func NewScopeTable() *ScopeTable {
	return &ScopeTable{
		declared: make(map[string]bool),
		dataSigs: make(map[string]map[string]bool),
	}
}

// AddVariable declares that v is defined in scope.
func (t *ScopeTable) AddVariable(v Variable, scope ScopePath) {
	t.declared[(ScopedVariable{v, scope}).key()] = true
}

// AddDataSignal declares that the data variable named dataName, as defined
// in scope, additionally emits a signal output port named signalName — the
// Extent/Pivot-key-style "dataset that also produces a signal" shape.
func (t *ScopeTable) AddDataSignal(dataName, signalName string, scope ScopePath) {
	key := (ScopedVariable{NewDataVariable(dataName), scope}).key()
	if t.dataSigs[key] == nil {
		t.dataSigs[key] = make(map[string]bool)
	}
	t.dataSigs[key][signalName] = true
}

// resolved is what ResolveScope returns for one input variable: the
// variable as actually declared, the scope it was found in, and — when the
// reference named a specific emitted signal — that signal's name.
type resolved struct {
	Var    Variable
	Scope  ScopePath
	Signal string
}

// ResolveScope walks outward from usageScope — usageScope itself, then each
// enclosing scope in turn — until it finds a scope declaring inputVar.Var,
// mirroring `TaskScope::resolve_scope`'s "start in the task's own scope,
// climb the mark-group nesting" rule (signals and data defined in an outer
// group are visible to every nested group; the reverse is never true).
func (t *ScopeTable) ResolveScope(inputVar InputVariable, usageScope ScopePath) (resolved, error) {
	scope := usageScope
	for {
		key := (ScopedVariable{inputVar.Var, scope}).key()
		if t.declared[key] {
			if inputVar.Signal != "" {
				if !t.dataSigs[key][inputVar.Signal] {
					return resolved{}, errs.New(errs.Specification,
						"variable %s in scope %s has no emitted signal %q", inputVar.Var, scope, inputVar.Signal)
				}
			}
			return resolved{Var: inputVar.Var, Scope: scope, Signal: inputVar.Signal}, nil
		}
		next, ok := scope.parent()
		if !ok {
			return resolved{}, errs.New(errs.Specification,
				"no variable %s visible from scope %s", inputVar.Var, usageScope)
		}
		scope = next
	}
}
