package runtime

import (
	"github.com/hugr-lab/vizql/taskgraph"
	"github.com/hugr-lab/vizql/value"
)

// WarningKind discriminates the non-fatal notes §6 names.
type WarningKind int

const (
	WarningRowLimitExceeded WarningKind = iota
	WarningBrokenInteractivity
	WarningUnsupported
	WarningPlanner
)

// Warning is one non-fatal note attached to a pre-transform response.
// Message only carries text for WarningPlanner; the other kinds are
// self-describing.
type Warning struct {
	Kind    WarningKind
	Message string
}

// QueryRequest asks the runtime to evaluate a subset of nodes in a task
// graph, supplying any inline datasets referenced by literal DataValues
// tasks by name.
type QueryRequest struct {
	Graph          *taskgraph.Graph
	Indices        []int
	InlineDatasets map[string]*value.Table
}

// ResponseValue is one requested node's result: a scalar for a signal or
// value task, a table for a dataset task.
type ResponseValue struct {
	Index  int
	Scalar *value.Scalar
	Table  *value.Table
}

// QueryResult carries either a ResponseValue per requested index, in the
// same order as QueryRequest.Indices, or an error — never both, and never
// a partial ResponseValues slice when Err is set, per §4.9's "errors from
// any node abort execution with no partial results exposed".
type QueryResult struct {
	ResponseValues []ResponseValue
	Err            error
}

// PreTransformSpecRequest asks the runtime to evaluate the parts of a
// specification's dependency graph the planner has marked server-side and
// return an updated spec with those parts replaced by their literal
// results.
type PreTransformSpecRequest struct {
	Graph   *taskgraph.Graph
	Indices []int
}

// PreTransformSpecResult is PreTransformSpecRequest's response.
type PreTransformSpecResult struct {
	Spec     []byte
	Warnings []Warning
}

// PreTransformValuesRequest asks for the literal values of a set of nodes
// without rewriting a specification around them.
type PreTransformValuesRequest struct {
	Graph   *taskgraph.Graph
	Indices []int
}

// PreTransformValuesResult is PreTransformValuesRequest's response.
type PreTransformValuesResult struct {
	Values   []ResponseValue
	Warnings []Warning
}

// PreTransformExtractRequest asks the runtime to evaluate a set of nodes
// and return both the rewritten spec and the extracted datasets as
// standalone tables (e.g. for caching alongside a statically-hosted spec).
type PreTransformExtractRequest struct {
	Graph   *taskgraph.Graph
	Indices []int
}

// PreTransformExtractResult is PreTransformExtractRequest's response.
type PreTransformExtractResult struct {
	Spec              []byte
	ExtractedDatasets map[string]*value.Table
	Warnings          []Warning
}
