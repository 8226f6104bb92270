package taskgraph

import (
	"fmt"

	"github.com/zeebo/xxh3"

	"github.com/hugr-lab/vizql/expr"
)

// Fingerprint is a content hash; equal fingerprints mean equal structure
// (id_fingerprint) or equal structure-and-current-value (state_fingerprint),
// per §4.8.
type Fingerprint uint64

// idTag returns the task's own structural tag — its kind plus whatever
// literal content distinguishes it from another task of the same kind and
// variable (spans-cleared expression text for a signal task, the pipeline's
// stage tags for a data task) — to be combined with the fingerprints of its
// resolved inputs. Clearing spans is destructive (expr.ClearSpans mutates
// in place, and this package has no AST clone to spare): harmless here
// because nothing downstream of graph construction re-reads a task's own
// expression span once it is built.

func idTag(t Task) string {
	switch v := t.(type) {
	case *ValueTask:
		return "value"
	case *SignalTask:
		cleared := v.Expr
		expr.ClearSpans(cleared)
		return "signal:" + expr.Unparse(cleared)
	case *DataValuesTask:
		return "data_values:" + v.Pipeline.fingerprintTag()
	case *DataUrlTask:
		urlTag := v.URLLiteral
		if v.URL != nil {
			cleared := v.URL
			expr.ClearSpans(cleared)
			urlTag = expr.Unparse(cleared)
		}
		return "data_url:" + urlTag + v.Pipeline.fingerprintTag()
	case *DataSourceTask:
		return "data_source:" + v.Source + v.Pipeline.fingerprintTag()
	default:
		return "unknown"
	}
}

func hashString(s string) uint64 {
	return xxh3.HashString(s)
}

// computeIDFingerprint hashes a node's own structural tag with the ordered
// id_fingerprints of its resolved inputs, mirroring §4.8's "hashes the
// task's task-kind, spans-cleared expression trees, and the identities
// (fingerprints) of inputs".
func computeIDFingerprint(t Task, inputIDFingerprints []Fingerprint) Fingerprint {
	s := fmt.Sprintf("%s/%v/%v", t.Variable(), t.Scope(), idTag(t))
	for _, f := range inputIDFingerprints {
		s += fmt.Sprintf("/%x", uint64(f))
	}
	return Fingerprint(hashString(s))
}

// computeStateFingerprint hashes idFingerprint together with the current
// *values* of inputs: for a value task, the literal; otherwise the input's
// own id_fingerprint suffices (an expression's value is fully determined by
// its structure plus its inputs' state, which this recursion already
// folds in via the input state_fingerprints).
func computeStateFingerprint(idFingerprint Fingerprint, literalTag string, inputStateFingerprints []Fingerprint) Fingerprint {
	s := fmt.Sprintf("%x/%s", uint64(idFingerprint), literalTag)
	for _, f := range inputStateFingerprints {
		s += fmt.Sprintf("/%x", uint64(f))
	}
	return Fingerprint(hashString(s))
}

// valueTag returns the literal-value contribution to a task's own state
// fingerprint: the scalar's text form for a ValueTask, a hash of the
// embedded table for a DataValuesTask, and empty for every task whose state
// is fully determined by its inputs.
func valueTag(t Task) string {
	switch v := t.(type) {
	case *ValueTask:
		return v.Value.ToString()
	case *DataValuesTask:
		if v.Values == nil {
			return ""
		}
		raw, err := v.Values.ToJSON()
		if err != nil {
			return ""
		}
		return fmt.Sprintf("%x", hashString(string(raw)))
	default:
		return ""
	}
}
