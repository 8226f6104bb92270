// Package ansi implements a conservative ANSI/Postgres-flavored dialect,
// the second target §4.7 requires ("an implementation SHOULD ship
// transformers for at least the in-process engine and one remote SQL
// engine"). It assumes no non-finite float literal support and renders the
// date/time named calls with portable `EXTRACT`/`AT TIME ZONE` forms rather
// than DuckDB-specific scalar UDFs.
package ansi

import (
	"strings"

	"github.com/apache/arrow-go/v18/arrow"

	"github.com/hugr-lab/vizql/compile"
	"github.com/hugr-lab/vizql/dialect"
)

// Dialect is the ANSI/Postgres-flavored SQL dialect descriptor.
type Dialect struct{}

var _ dialect.Dialect = Dialect{}

func (Dialect) Name() string { return "ansi" }

func (Dialect) QuoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func (Dialect) QuoteLiteral(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

func (Dialect) SupportsNonFiniteFloats() bool { return false }

var scalarPassthrough = map[string]string{
	"abs": "abs", "acos": "acos", "asin": "asin", "atan": "atan", "atan2": "atan2",
	"ceil": "ceil", "cos": "cos", "exp": "exp", "floor": "floor", "ln": "ln",
	"log10": "log10", "pow": "power", "round": "round", "sign": "sign",
	"sin": "sin", "sqrt": "sqrt", "tan": "tan", "trunc": "trunc",
	"lower": "lower", "upper": "upper", "trim": "trim", "length": "char_length",
	"struct_pack": "row",
}

func (Dialect) ScalarFunction(name string) (string, dialect.FunctionTransformer, bool) {
	switch name {
	case "str_to_utc_timestamp":
		return "", transformStrToUTC, true
	case "epoch_ms_to_utc_timestamp":
		return "", transformEpochMsToUTC, true
	case "utc_timestamp_to_epoch_ms":
		return "", transformUTCToEpochMs, true
	case "make_timestamptz":
		return "", transformMakeTimestamptz, true
	case "vega_date_part":
		return "", transformDatePart, true
	case "vega_timeunit":
		return "", transformTimeunit, true
	case "format_timestamp":
		return "", transformFormatTimestamp, true
	case "date_add":
		return "", transformDateAdd, true
	case "negate":
		return "", func(args []string, _ dialect.Dialect, _ []arrow.DataType) string { return "(-" + args[0] + ")" }, true
	case "log2":
		return "", func(args []string, _ dialect.Dialect, _ []arrow.DataType) string {
			return "(ln(" + args[0] + ") / ln(2))"
		}, true
	case "log":
		return "", func(args []string, _ dialect.Dialect, _ []arrow.DataType) string { return "ln(" + args[0] + ")" }, true
	case "signum":
		return "sign", nil, true
	case "is_nan":
		return "", func(args []string, _ dialect.Dialect, _ []arrow.DataType) string {
			return "(" + args[0] + " = 'NaN'::double precision)"
		}, true
	case "is_finite":
		return "", func(args []string, _ dialect.Dialect, _ []arrow.DataType) string {
			return "(" + args[0] + " NOT IN ('NaN'::double precision, 'Infinity'::double precision, '-Infinity'::double precision))"
		}, true
	case "indexof":
		return "", func(args []string, _ dialect.Dialect, _ []arrow.DataType) string {
			return "(position(" + args[1] + " in " + args[0] + ") - 1)"
		}, true
	case "slice", "substring":
		return "substring", nil, true
	case "replace":
		return "replace", nil, true
	case "split":
		return "", func(args []string, _ dialect.Dialect, _ []arrow.DataType) string {
			return "string_to_array(" + args[0] + ", " + args[1] + ")"
		}, true
	case "make_list":
		return "", func(args []string, _ dialect.Dialect, _ []arrow.DataType) string {
			return "array[" + strings.Join(args, ", ") + "]"
		}, true
	case "get_element":
		return "", func(args []string, _ dialect.Dialect, _ []arrow.DataType) string {
			return "(" + args[0] + ")[" + args[1] + " + 1]"
		}, true
	case "get_object_member":
		return "", func(args []string, _ dialect.Dialect, _ []arrow.DataType) string {
			return "(" + args[0] + ")." + strings.Trim(args[1], "'")
		}, true
	}
	if n, ok := scalarPassthrough[name]; ok {
		return n, nil, true
	}
	return "", nil, false
}

func (Dialect) AggregateFunction(fn compile.AggFunc) (string, bool) {
	switch fn {
	case compile.AggCount, compile.AggValid, compile.AggDistinct:
		return "count", true
	case compile.AggMissing:
		return "", false
	case compile.AggSum:
		return "sum", true
	case compile.AggMean:
		return "avg", true
	case compile.AggMin:
		return "min", true
	case compile.AggMax:
		return "max", true
	case compile.AggMedian:
		return "percentile_cont(0.5) WITHIN GROUP (ORDER BY %s)", true
	case compile.AggQ1:
		return "percentile_cont(0.25) WITHIN GROUP (ORDER BY %s)", true
	case compile.AggQ3:
		return "percentile_cont(0.75) WITHIN GROUP (ORDER BY %s)", true
	case compile.AggVariance:
		return "var_samp", true
	case compile.AggVariancep:
		return "var_pop", true
	case compile.AggStdev:
		return "stddev_samp", true
	case compile.AggStdevp:
		return "stddev_pop", true
	}
	return "", false
}

func (Dialect) WindowFunction(fn compile.WindowFunc) (string, bool) {
	switch fn {
	case compile.WinRowNumber:
		return "row_number", true
	case compile.WinRank:
		return "rank", true
	case compile.WinDenseRank:
		return "dense_rank", true
	case compile.WinPercentRank:
		return "percent_rank", true
	case compile.WinCumeDist:
		return "cume_dist", true
	case compile.WinFirstValue:
		return "first_value", true
	case compile.WinLastValue:
		return "last_value", true
	case compile.WinNthValue:
		return "nth_value", true
	case compile.WinLag:
		return "lag", true
	case compile.WinLead:
		return "lead", true
	}
	return "", false
}

func (Dialect) CastTypeName(dt arrow.DataType) string {
	switch dt.ID() {
	case arrow.BOOL:
		return "boolean"
	case arrow.INT8, arrow.INT16:
		return "smallint"
	case arrow.INT32:
		return "integer"
	case arrow.INT64:
		return "bigint"
	case arrow.UINT8, arrow.UINT16, arrow.UINT32, arrow.UINT64:
		return "bigint"
	case arrow.FLOAT32:
		return "real"
	case arrow.FLOAT64:
		return "double precision"
	case arrow.STRING, arrow.LARGE_STRING:
		return "text"
	case arrow.BINARY:
		return "bytea"
	case arrow.DATE32, arrow.DATE64:
		return "date"
	case arrow.TIMESTAMP:
		return "timestamp"
	default:
		return "text"
	}
}

func transformStrToUTC(args []string, d dialect.Dialect, _ []arrow.DataType) string {
	// args: source string, default-input-tz literal.
	return "(" + args[0] + "::timestamp AT TIME ZONE " + args[1] + " AT TIME ZONE 'UTC')"
}

func transformEpochMsToUTC(args []string, d dialect.Dialect, _ []arrow.DataType) string {
	return "(to_timestamp((" + args[0] + ") / 1000.0) AT TIME ZONE 'UTC')"
}

func transformUTCToEpochMs(args []string, d dialect.Dialect, _ []arrow.DataType) string {
	return "(extract(epoch from " + args[0] + ") * 1000)"
}

func transformMakeTimestamptz(args []string, d dialect.Dialect, _ []arrow.DataType) string {
	if len(args) < 8 {
		return "NULL"
	}
	return "(make_timestamp(" + args[0] + ", (" + args[1] + ") + 1, " + strings.Join(args[2:6], ", ") + ") + (" + args[6] + " || ' milliseconds')::interval AT TIME ZONE " + args[7] + " AT TIME ZONE 'UTC')"
}

func transformDatePart(args []string, d dialect.Dialect, _ []arrow.DataType) string {
	if len(args) < 3 {
		return "NULL"
	}
	zone, part := args[1], strings.Trim(args[2], "'")
	return "extract(" + pgDatePart(part) + " from (" + args[0] + ") AT TIME ZONE " + zone + ")"
}

func pgDatePart(part string) string {
	switch part {
	case "date":
		return "day"
	case "day":
		return "dow"
	default:
		return part
	}
}

func transformTimeunit(args []string, d dialect.Dialect, _ []arrow.DataType) string {
	if len(args) < 3 {
		return "NULL"
	}
	return "date_trunc('day', " + args[0] + " AT TIME ZONE " + args[2] + ")"
}

func transformFormatTimestamp(args []string, d dialect.Dialect, _ []arrow.DataType) string {
	if len(args) < 3 {
		return "NULL"
	}
	return "to_char((" + args[0] + ") AT TIME ZONE " + args[2] + ", " + args[1] + ")"
}

func transformDateAdd(args []string, d dialect.Dialect, _ []arrow.DataType) string {
	if len(args) < 3 {
		return "NULL"
	}
	unit := strings.Trim(args[0], "'")
	return "(" + args[2] + " + (" + args[1] + " || ' " + unit + "')::interval)"
}
