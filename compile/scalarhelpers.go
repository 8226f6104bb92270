package compile

import "github.com/hugr-lab/vizql/value"

func stringScalar(s string) value.Scalar { return value.String(s) }
func intScalar(i int64) value.Scalar     { return value.Int64(i) }
func nullScalar() value.Scalar           { return value.NullUntyped() }
