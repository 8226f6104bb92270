package taskgraph

import (
	"fmt"
	"strings"

	"github.com/hugr-lab/vizql/compile"
	"github.com/hugr-lab/vizql/expr"
	"github.com/hugr-lab/vizql/transform"
)

// SignalRefStage is a PipelineStage whose only extra dependency is one
// signal expression parameter — e.g. a Filter predicate.
type SignalRefStage struct {
	Tag  string
	Expr expr.Node
}

func (s SignalRefStage) InputVars() []InputVariable { return signalExprInputVars(s.Expr) }
func (s SignalRefStage) OutputSignals() []string    { return nil }
func (s SignalRefStage) FingerprintTag() string {
	return "signalref:" + s.Tag + ":" + exprTag(s.Expr)
}

// ExtentStage models the one transform in §4.6 that both reshapes its
// dataset and emits a named signal: Field is the column scanned, Signal is
// the name the emitted min/max pair is published under.
type ExtentStage struct {
	Field  string
	Signal string
}

func (s ExtentStage) InputVars() []InputVariable { return nil }
func (s ExtentStage) OutputSignals() []string    { return []string{s.Signal} }
func (s ExtentStage) FingerprintTag() string     { return "extent:" + s.Field + ":" + s.Signal }

// exprTag renders e's spans-cleared text for fingerprinting, or "-" for a
// stage parameter that was left unset (a literal elsewhere on the stage
// covers it instead). ClearSpans mutates e in place, same as idTag's use
// of it — harmless here for the same reason: nothing re-reads a stage's
// own expression once the pipeline is built.
func exprTag(e expr.Node) string {
	if e == nil {
		return "-"
	}
	expr.ClearSpans(e)
	return expr.Unparse(e)
}

// AggregateStage runs transform.Aggregate: group-by fields and aggregate
// specs are always literal per §4.6 Aggregate, so it has no dependencies
// beyond the upstream dataset.
type AggregateStage struct {
	Groupby []string
	Specs   []transform.AggSpec
}

func (s AggregateStage) InputVars() []InputVariable { return nil }
func (s AggregateStage) OutputSignals() []string    { return nil }
func (s AggregateStage) FingerprintTag() string {
	return "aggregate:" + strings.Join(s.Groupby, ",") + ":" + aggSpecsTag(s.Specs)
}

// JoinAggregateStage runs transform.JoinAggregate: like Aggregate, but the
// aggregate columns are joined back onto every input row instead of
// collapsing them.
type JoinAggregateStage struct {
	Groupby []string
	Specs   []transform.AggSpec
}

func (s JoinAggregateStage) InputVars() []InputVariable { return nil }
func (s JoinAggregateStage) OutputSignals() []string    { return nil }
func (s JoinAggregateStage) FingerprintTag() string {
	return "joinaggregate:" + strings.Join(s.Groupby, ",") + ":" + aggSpecsTag(s.Specs)
}

func aggSpecsTag(specs []transform.AggSpec) string {
	parts := make([]string, len(specs))
	for i, s := range specs {
		parts[i] = s.Field + "/" + string(s.Op) + "/" + s.Alias
	}
	return strings.Join(parts, ",")
}

// BinStage runs transform.Bin. Spec holds every literal parameter (its
// Extent field is left zero-valued here); Extent is the bin's extent
// dependency — a literal [min, max] spec value or an Extent transform's
// emitted signal, compiled down to a constant before Bin runs, per
// BinSpec's own doc comment.
type BinStage struct {
	Spec   transform.BinSpec
	Extent expr.Node
}

func (s BinStage) InputVars() []InputVariable { return signalExprInputVars(s.Extent) }
func (s BinStage) OutputSignals() []string    { return nil }
func (s BinStage) FingerprintTag() string {
	return fmt.Sprintf("bin:%s:%s:%g/%g/%g/%g/%v/%v/%g/%s/%s:%s",
		s.Spec.Field, s.Spec.Signal, s.Spec.MaxBins, s.Spec.Base, s.Spec.Step, s.Spec.MinStep,
		s.Spec.HasAnchor, s.Spec.Nice, s.Spec.Span, s.Spec.Alias0, s.Spec.Alias1, exprTag(s.Extent))
}

// StackStage runs transform.Stack: every parameter (field, groupby, sort
// keys, offset mode, aliases) is literal.
type StackStage struct {
	Spec transform.StackSpec
}

func (s StackStage) InputVars() []InputVariable { return nil }
func (s StackStage) OutputSignals() []string    { return nil }
func (s StackStage) FingerprintTag() string {
	return fmt.Sprintf("stack:%s:%v:%v:%v:%s:%s/%s",
		s.Spec.Field, s.Spec.Groupby, s.Spec.SortFields, s.Spec.SortAscending,
		s.Spec.Offset, s.Spec.Alias0, s.Spec.Alias1)
}

// TimeUnitStage runs transform.TimeUnit: field, units bitmask, timezone,
// and aliases are always literal per §4.6 TimeUnit.
type TimeUnitStage struct {
	Spec transform.TimeUnitSpec
}

func (s TimeUnitStage) InputVars() []InputVariable { return nil }
func (s TimeUnitStage) OutputSignals() []string    { return nil }
func (s TimeUnitStage) FingerprintTag() string {
	return fmt.Sprintf("timeunit:%s:%d:%s:%s/%s", s.Spec.Field, s.Spec.Units, s.Spec.Timezone, s.Spec.Alias0, s.Spec.Alias1)
}

// WindowStage runs transform.Window: every op's field/function/alias,
// frame bounds, sort keys, and groupby are literal.
type WindowStage struct {
	Spec transform.WindowSpec
}

func (s WindowStage) InputVars() []InputVariable { return nil }
func (s WindowStage) OutputSignals() []string    { return nil }
func (s WindowStage) FingerprintTag() string {
	ops := make([]string, len(s.Spec.Ops))
	for i, op := range s.Spec.Ops {
		ops[i] = fmt.Sprintf("%s/%s/%s/%s/%d/%d", op.Field, op.Op, op.WinFunc, op.Alias, op.NthN, op.LagLeadN)
	}
	before, after := "u", "u"
	if s.Spec.FrameBefore != nil {
		before = fmt.Sprintf("%d", *s.Spec.FrameBefore)
	}
	if s.Spec.FrameAfter != nil {
		after = fmt.Sprintf("%d", *s.Spec.FrameAfter)
	}
	return fmt.Sprintf("window:%s:%v:%v:%v:%s/%s:%v", strings.Join(ops, ","), s.Spec.SortFields,
		s.Spec.SortAscending, s.Spec.Groupby, before, after, s.Spec.IgnorePeers)
}

// PivotStage runs transform.Pivot: field, value field, groupby, keys, and
// aggregate op are always literal.
type PivotStage struct {
	Field      string
	ValueField string
	Groupby    []string
	Keys       []string
	Op         compile.AggFunc
}

func (s PivotStage) InputVars() []InputVariable { return nil }
func (s PivotStage) OutputSignals() []string    { return nil }
func (s PivotStage) FingerprintTag() string {
	return fmt.Sprintf("pivot:%s:%s:%v:%v:%s", s.Field, s.ValueField, s.Groupby, s.Keys, s.Op)
}

// ImputeStage runs transform.Impute: field/key/groupby are literal;
// FillValue is a signal-expression dependency compiled to a constant at
// apply time.
type ImputeStage struct {
	Field     string
	Key       string
	Groupby   []string
	FillValue expr.Node
}

func (s ImputeStage) InputVars() []InputVariable { return signalExprInputVars(s.FillValue) }
func (s ImputeStage) OutputSignals() []string    { return nil }
func (s ImputeStage) FingerprintTag() string {
	return fmt.Sprintf("impute:%s:%s:%v:%s", s.Field, s.Key, s.Groupby, exprTag(s.FillValue))
}

// ProjectStage runs transform.Project: a literal column list.
type ProjectStage struct{ Fields []string }

func (s ProjectStage) InputVars() []InputVariable { return nil }
func (s ProjectStage) OutputSignals() []string    { return nil }
func (s ProjectStage) FingerprintTag() string     { return "project:" + strings.Join(s.Fields, ",") }

// CollectStage runs transform.Collect: a literal sort-key list.
type CollectStage struct {
	Fields    []string
	Ascending []bool
}

func (s CollectStage) InputVars() []InputVariable { return nil }
func (s CollectStage) OutputSignals() []string    { return nil }
func (s CollectStage) FingerprintTag() string {
	return fmt.Sprintf("collect:%v:%v", s.Fields, s.Ascending)
}

// FormulaStage runs transform.Formula: As is the output column name; Val
// is the (possibly signal-referencing) value expression, compiled at
// apply time.
type FormulaStage struct {
	As  string
	Val expr.Node
}

func (s FormulaStage) InputVars() []InputVariable { return signalExprInputVars(s.Val) }
func (s FormulaStage) OutputSignals() []string    { return nil }
func (s FormulaStage) FingerprintTag() string     { return "formula:" + s.As + ":" + exprTag(s.Val) }

// EncodingEntrySpec mirrors transform.EncodingEntry, holding its Test and
// Signal fields as uncompiled expr.Node so MarkEncodingStage stays in this
// package's graph-construction phase; both are compiled down to
// compile.Expr at apply time.
type EncodingEntrySpec struct {
	Test expr.Node // nil for the trailing unconditional entry

	Scale       string
	ScaleOffset float64
	HasOffset   bool

	Field string

	Signal expr.Node

	Value    expr.Node // literal value entries are compiled at apply time too
	HasValue bool
}

// MarkEncodingStage runs transform.EvalEncoding for one mark channel.
type MarkEncodingStage struct {
	Channel string
	Entries []EncodingEntrySpec
}

func (s MarkEncodingStage) InputVars() []InputVariable {
	var vars []InputVariable
	for _, e := range s.Entries {
		vars = append(vars, signalExprInputVars(e.Test)...)
		vars = append(vars, signalExprInputVars(e.Signal)...)
		vars = append(vars, signalExprInputVars(e.Value)...)
	}
	return dedupInputVariables(vars)
}

func (s MarkEncodingStage) OutputSignals() []string { return nil }

func (s MarkEncodingStage) FingerprintTag() string {
	parts := make([]string, len(s.Entries))
	for i, e := range s.Entries {
		parts[i] = fmt.Sprintf("%s/%s/%g/%v/%s/%s/%s/%v",
			exprTag(e.Test), e.Scale, e.ScaleOffset, e.HasOffset, e.Field, exprTag(e.Signal), exprTag(e.Value), e.HasValue)
	}
	return "mark:" + s.Channel + ":" + strings.Join(parts, "|")
}
