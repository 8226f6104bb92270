package taskgraph

import (
	"github.com/hugr-lab/vizql/expr"
	"github.com/hugr-lab/vizql/value"
)

// Kind discriminates the task variants §4.8 names: Value, Signal,
// DataValues, DataUrl, DataSource. Scale resolution does not get its own
// task kind — see the Open Question decision in DESIGN.md.
type Kind int

const (
	KindValue Kind = iota
	KindSignal
	KindDataValues
	KindDataUrl
	KindDataSource
)

// PipelineStage is one transform operator within a data task's pipeline,
// exposing what graph construction needs — the signal/data variables it
// reads, and, for a stage such as Extent that emits a named signal rather
// than only reshaping columns, the names it produces — alongside the built
// transform.* call the runtime applies when it walks the pipeline. Concrete
// stages (AggregateStage, BinStage, FormulaStage, ...) hold their
// transform package spec type directly plus an expr.Node for any parameter
// that can reference a signal (a Bin's extent, a Formula's value); the
// runtime compiles those at apply time against the task's current scope.
type PipelineStage interface {
	InputVars() []InputVariable
	OutputSignals() []string
	// FingerprintTag returns a canonical, whitespace-free string identifying
	// the stage's own kind and literal parameters (field names, operator,
	// constants) — folded into id_fingerprint alongside input fingerprints.
	FingerprintTag() string
}

// Pipeline is an ordered sequence of PipelineStages, mirroring
// `TransformPipeline`'s input_vars/output_vars aggregation: a flattened,
// deduplicated union across every stage.
type Pipeline []PipelineStage

func (p Pipeline) inputVars() []InputVariable {
	var vars []InputVariable
	for _, stage := range p {
		vars = append(vars, stage.InputVars()...)
	}
	return dedupInputVariables(vars)
}

func (p Pipeline) outputSignals() []string {
	var names []string
	for _, stage := range p {
		names = append(names, stage.OutputSignals()...)
	}
	return names
}

func (p Pipeline) fingerprintTag() string {
	var sb []byte
	for _, stage := range p {
		sb = append(sb, '|')
		sb = append(sb, stage.FingerprintTag()...)
	}
	return string(sb)
}

// Task is one node of the graph: it knows its own output Variable, the
// scope it lives in, and how to report the variables it reads.
type Task interface {
	Kind() Kind
	Variable() Variable
	Scope() ScopePath
	InputVars() []InputVariable
	// OutputSignals names any additional signal ports this task's dataset
	// emits beyond its own Variable (Extent and similar transforms within
	// its pipeline); empty for every non-data task kind.
	OutputSignals() []string
}

type taskBase struct {
	variable Variable
	scope    ScopePath
}

func (b taskBase) Variable() Variable { return b.variable }
func (b taskBase) Scope() ScopePath   { return b.scope }

// ValueTask holds a literal scalar or table, mutable only via UpdateValue.
type ValueTask struct {
	taskBase
	Value value.Scalar
}

func NewValueTask(v Variable, scope ScopePath, val value.Scalar) *ValueTask {
	return &ValueTask{taskBase{v, scope}, val}
}

func (*ValueTask) Kind() Kind                { return KindValue }
func (*ValueTask) InputVars() []InputVariable { return nil }
func (*ValueTask) OutputSignals() []string    { return nil }

// SignalTask derives its value by evaluating Expr against the current
// values of the signals it names.
type SignalTask struct {
	taskBase
	Expr expr.Node
}

func NewSignalTask(v Variable, scope ScopePath, e expr.Node) *SignalTask {
	return &SignalTask{taskBase{v, scope}, e}
}

func (*SignalTask) Kind() Kind { return KindSignal }

func (t *SignalTask) InputVars() []InputVariable {
	return signalExprInputVars(t.Expr)
}

func (*SignalTask) OutputSignals() []string { return nil }

// signalExprInputVars collects every identifier an expression references as
// a propagating signal dependency, excluding the reserved `datum`/`event`
// names that only make sense inside a dataframe row context.
func signalExprInputVars(e expr.Node) []InputVariable {
	var vars []InputVariable
	for _, name := range expr.CollectIdentifiers(e) {
		if name == "datum" || name == "event" || name == "parent" || name == "datetime" {
			continue
		}
		vars = append(vars, InputVariable{Var: NewSignalVariable(name), Propagate: true})
	}
	return dedupInputVariables(vars)
}

// DataValuesTask holds an inline table (no load step), piped through an
// optional transform pipeline.
type DataValuesTask struct {
	taskBase
	Values   *value.Table
	Pipeline Pipeline
}

func NewDataValuesTask(v Variable, scope ScopePath, values *value.Table, pipeline Pipeline) *DataValuesTask {
	return &DataValuesTask{taskBase{v, scope}, values, pipeline}
}

func (*DataValuesTask) Kind() Kind { return KindDataValues }

func (t *DataValuesTask) InputVars() []InputVariable { return t.Pipeline.inputVars() }
func (t *DataValuesTask) OutputSignals() []string    { return t.Pipeline.outputSignals() }

// DataUrlTask loads a table from a URL — itself possibly a signal
// expression — then pipes it through an optional transform pipeline.
type DataUrlTask struct {
	taskBase
	URL        expr.Node // nil if URLLiteral is set instead
	URLLiteral string
	Format     value.Scalar // format options (delimiter, parse types, ...), opaque to this package
	Pipeline   Pipeline
}

func NewDataURLTask(v Variable, scope ScopePath, url expr.Node, pipeline Pipeline) *DataUrlTask {
	return &DataUrlTask{taskBase: taskBase{v, scope}, URL: url, Pipeline: pipeline}
}

func (*DataUrlTask) Kind() Kind { return KindDataUrl }

func (t *DataUrlTask) InputVars() []InputVariable {
	var vars []InputVariable
	if t.URL != nil {
		vars = append(vars, signalExprInputVars(t.URL)...)
	}
	vars = append(vars, t.Pipeline.inputVars()...)
	return dedupInputVariables(vars)
}

func (t *DataUrlTask) OutputSignals() []string { return t.Pipeline.outputSignals() }

// DataSourceTask pipes an upstream named dataset through this task's own
// pipeline — the "derive a new dataset from an existing one" shape used by
// every non-root transform block in a specification's data array.
type DataSourceTask struct {
	taskBase
	Source   string
	Pipeline Pipeline
}

func NewDataSourceTask(v Variable, scope ScopePath, source string, pipeline Pipeline) *DataSourceTask {
	return &DataSourceTask{taskBase{v, scope}, source, pipeline}
}

func (*DataSourceTask) Kind() Kind { return KindDataSource }

func (t *DataSourceTask) InputVars() []InputVariable {
	vars := []InputVariable{{Var: NewDataVariable(t.Source), Propagate: true}}
	vars = append(vars, t.Pipeline.inputVars()...)
	return dedupInputVariables(vars)
}

func (t *DataSourceTask) OutputSignals() []string { return t.Pipeline.outputSignals() }
