// Package duckdb implements the in-process execution dialect (§4.7): the
// DuckDB SQL surface the dataframe/transform layers render against, and the
// native-SQL rewrites for the date/time and scale-interaction named calls
// the compiler emits (package compile's builtins_datetime.go/builtins_scale.go).
// Grounded on `filter/encode.go`'s identifier-quoting rules and
// `filter/duckdb.go`'s per-kind literal formatting, generalized from a
// predicate encoder to a full Dialect descriptor. Every vf_* call the
// compiler used to emit is lowered here to a plain SQL expression built from
// DuckDB's own date/list/math functions, mirroring package tz's truncation
// and parsing rules (tz.Truncate, tz.DatePart) field by field rather than
// delegating to a registered scalar UDF — see DESIGN.md for the named
// fidelity gaps (timeUnit's Week/Day/DayOfYear realignment, non-linear
// pan/zoom/scale types) this lowering cannot reach.
package duckdb

import (
	"strconv"
	"strings"

	"github.com/apache/arrow-go/v18/arrow"

	"github.com/hugr-lab/vizql/compile"
	"github.com/hugr-lab/vizql/dialect"
	"github.com/hugr-lab/vizql/tz"
)

// Dialect is the DuckDB SQL dialect descriptor.
type Dialect struct{}

var _ dialect.Dialect = Dialect{}

func (Dialect) Name() string { return "duckdb" }

func (Dialect) QuoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func (Dialect) QuoteLiteral(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

func (Dialect) SupportsNonFiniteFloats() bool { return true }

// scalarPassthrough is the set of compile-registry names DuckDB implements
// natively under the same (or a trivially renamed) name, with no argument
// rewriting required.
var scalarPassthrough = map[string]string{
	"abs": "abs", "acos": "acos", "asin": "asin", "atan": "atan", "atan2": "atan2",
	"ceil": "ceil", "cos": "cos", "exp": "exp", "floor": "floor", "ln": "ln",
	"log10": "log10", "log2": "log2", "pow": "pow", "round": "round",
	"signum": "sign", "sin": "sin", "sqrt": "sqrt", "tan": "tan", "trunc": "trunc",
	"is_nan": "isnan", "is_finite": "isfinite",
	"indexof": "list_position", "lower": "lower", "upper": "upper",
	"trim": "trim", "length": "length",
	"array_peek": "list_back",
	"get_element": "list_element", "get_object_member": "struct_extract",
	"make_list": "list_value", "struct_pack": "struct_pack",
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
		return "", transformVegaDatePart, true
	case "vega_timeunit":
		return "", transformVegaTimeunit, true
	case "format_timestamp":
		return "", transformFormatTimestamp, true
	case "date_add":
		return "", transformDateAdd, true
	case "negate":
		return "", transformNegate, true
	case "slice", "substring":
		return "substring", nil, true
	case "replace":
		return "replace", nil, true
	case "split":
		return "string_split", nil, true
	case "array_span":
		return "", transformArraySpan, true
	case "bandspace":
		return "", transformBandspace, true
	case "pan_scale":
		return "", transformPanScale, true
	case "zoom_scale":
		return "", transformZoomScale, true
	case "apply_scale":
		return "", transformApplyScale, true
	case "invert_scale":
		return "", transformInvertScale, true
	case "in_list":
		return "", transformInList, true
	case "gradient_ref":
		// gradient() backs a CSS gradient-definition reference; no format
		// for the rendered string is pinned down anywhere in this corpus, so
		// it is an explicit unsupported construct rather than a guess.
		return "", nil, false
	}
	if n, ok := scalarPassthrough[name]; ok {
		return n, nil, true
	}
	return "", nil, false
}

func (Dialect) AggregateFunction(fn compile.AggFunc) (string, bool) {
	switch fn {
	case compile.AggCount:
		return "count", true
	case compile.AggValid:
		return "count", true
	case compile.AggMissing:
		// transform.aggExprFor expands AggMissing into count(*) - count(col)
		// for Aggregate/JoinAggregate/Pivot; Window builds its WindowCallExpr
		// straight from the raw op and would reach this case, so it is left
		// unsupported rather than mapped to a function that does not exist.
		return "", false
	case compile.AggDistinct:
		return "count", true
	case compile.AggSum:
		return "sum", true
	case compile.AggMean:
		return "avg", true
	case compile.AggMin:
		return "min", true
	case compile.AggMax:
		return "max", true
	case compile.AggMedian:
		return "median", true
	case compile.AggQ1:
		return "quantile_cont(%s, 0.25)", true
	case compile.AggQ3:
		return "quantile_cont(%s, 0.75)", true
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
		return "BOOLEAN"
	case arrow.INT8:
		return "TINYINT"
	case arrow.INT16:
		return "SMALLINT"
	case arrow.INT32:
		return "INTEGER"
	case arrow.INT64:
		return "BIGINT"
	case arrow.UINT8:
		return "UTINYINT"
	case arrow.UINT16:
		return "USMALLINT"
	case arrow.UINT32:
		return "UINTEGER"
	case arrow.UINT64:
		return "UBIGINT"
	case arrow.FLOAT32:
		return "FLOAT"
	case arrow.FLOAT64:
		return "DOUBLE"
	case arrow.STRING, arrow.LARGE_STRING:
		return "VARCHAR"
	case arrow.BINARY:
		return "BLOB"
	case arrow.DATE32, arrow.DATE64:
		return "DATE"
	case arrow.TIMESTAMP:
		return "TIMESTAMP"
	case arrow.LIST, arrow.FIXED_SIZE_LIST:
		if lt, ok := dt.(*arrow.ListType); ok {
			return Dialect{}.CastTypeName(lt.Elem()) + "[]"
		}
		return "VARCHAR[]"
	case arrow.STRUCT:
		return "JSON"
	default:
		return "VARCHAR"
	}
}

func transformNegate(args []string, d dialect.Dialect, _ []arrow.DataType) string {
	return "(-" + args[0] + ")"
}

// localize views ts (a naive TIMESTAMP holding a UTC instant, this
// package's storage convention for every date/time builtin) as wall-clock
// time in zone, by round-tripping it through TIMESTAMPTZ.
func localize(ts, zone string) string {
	return "timezone(" + zone + ", (" + ts + ")::TIMESTAMPTZ)"
}

// utcize is localize's inverse: treats ts as wall-clock time already in
// zone and returns the naive-UTC TIMESTAMP this package stores.
func utcize(ts, zone string) string {
	return "(timezone(" + zone + ", " + ts + "))::TIMESTAMP"
}

// transformStrToUTC rewrites str_to_utc_timestamp(str, default_tz): a
// string carrying its own offset (trailing Z or +HH:MM) parses via DuckDB's
// own TIMESTAMPTZ cast; otherwise it is tried against a fixed list of
// common literal forms and interpreted as wall-clock time in default_tz.
// This covers ISO-8601 and a handful of common separators, not the full
// loose grammar (month names, 2-digit years) tz.ParseDateString accepts —
// see DESIGN.md.
func transformStrToUTC(args []string, d dialect.Dialect, _ []arrow.DataType) string {
	if len(args) < 2 {
		return "NULL"
	}
	str, zone := args[0], args[1]
	hasOffset := "regexp_matches(" + str + ", '(Z|[+-][0-9]{2}:?[0-9]{2})$')"
	withOffset := "(try_cast(" + str + " AS TIMESTAMPTZ))::TIMESTAMP"
	parsed := "try_strptime(" + str + ", ['%Y-%m-%dT%H:%M:%S', '%Y-%m-%d %H:%M:%S', " +
		"'%Y-%m-%d', '%Y/%m/%d', '%m/%d/%Y'])"
	return "(CASE WHEN " + str + " IS NULL THEN NULL" +
		" WHEN " + hasOffset + " THEN " + withOffset +
		" ELSE " + utcize(parsed, zone) + " END)"
}

func transformEpochMsToUTC(args []string, d dialect.Dialect, _ []arrow.DataType) string {
	return "make_timestamp(" + args[0] + " * 1000)"
}

func transformUTCToEpochMs(args []string, d dialect.Dialect, _ []arrow.DataType) string {
	return "(epoch_ms(" + args[0] + "))"
}

// transformMakeTimestamptz rewrites make_timestamptz(y, month0, d, h, mi, s,
// ms, tz): month0 is 0-based (JS Date convention, per
// compile.padArgsWithDefaults) and a 2-digit year normalizes to the 1900s,
// mirroring tz.BuildTimestamp.
func transformMakeTimestamptz(args []string, d dialect.Dialect, _ []arrow.DataType) string {
	if len(args) < 8 {
		return "NULL"
	}
	y, month0, day, h, mi, s, ms, zone := args[0], args[1], args[2], args[3], args[4], args[5], args[6], args[7]
	year := "(CASE WHEN (" + y + ") BETWEEN 0 AND 99 THEN (" + y + ") + 1900 ELSE (" + y + ") END)"
	ts := "make_timestamp(" + year + "::BIGINT, (" + month0 + ")::BIGINT + 1, (" + day + ")::BIGINT, " +
		"(" + h + ")::BIGINT, (" + mi + ")::BIGINT, (" + s + ")::DOUBLE + (" + ms + ")::DOUBLE / 1000.0)"
	return utcize(ts, zone)
}

// transformVegaDatePart rewrites vega_date_part(ts, tz, part): part is
// always a literal (datePartRule bakes it in at compile time), so the part
// name is resolved here in Go rather than with a SQL CASE, mirroring
// tz.DatePart's JS-style 0-based month and 0=Sunday weekday.
func transformVegaDatePart(args []string, d dialect.Dialect, _ []arrow.DataType) string {
	if len(args) < 3 {
		return "NULL"
	}
	ts, zone, part := args[0], args[1], strings.Trim(args[2], "'")
	local := localize(ts, zone)
	switch part {
	case "year":
		return "date_part('year', " + local + ")"
	case "month":
		return "(date_part('month', " + local + ") - 1)"
	case "date":
		return "date_part('day', " + local + ")"
	case "day":
		return "date_part('dow', " + local + ")"
	case "hours":
		return "date_part('hour', " + local + ")"
	case "minutes":
		return "date_part('minute', " + local + ")"
	case "seconds":
		return "date_part('second', " + local + ")"
	case "milliseconds":
		return "(date_part('millisecond', " + local + ")::BIGINT % 1000)"
	}
	return "NULL"
}

// transformVegaTimeunit rewrites vega_timeunit(ts, mask, tz). mask is
// always a literal bitmask (lowerTimeUnit bakes it in at compile time), so
// the active units are decided here in Go and a flat truncate-then-rebuild
// expression is emitted, mirroring tz.Truncate's standard-calendar branch
// field by field. The Week/Day/DayOfYear units need the representative-week
// realignment tz.Truncate does in Go and are not reproduced in SQL — a
// timeUnit combination using them raises a runtime error instead of
// silently truncating wrong.
func transformVegaTimeunit(args []string, d dialect.Dialect, _ []arrow.DataType) string {
	if len(args) < 3 {
		return "NULL"
	}
	ts, maskArg, zone := args[0], args[1], args[2]
	mask, err := strconv.ParseInt(strings.TrimSpace(maskArg), 10, 64)
	if err != nil {
		return "error('vega_timeunit: units mask must be a literal integer')"
	}
	has := func(u tz.Unit) bool { return mask&int64(u) != 0 }

	if has(tz.UnitWeek) || has(tz.UnitDay) || has(tz.UnitDayOfYear) {
		return "error('vega_timeunit: week/day/dayOfYear timeUnits are not supported by this dialect')"
	}

	local := localize(ts, zone)

	year := "2012"
	if has(tz.UnitYear) {
		year = "date_part('year', " + local + ")"
	}

	month := "1"
	switch {
	case has(tz.UnitMonth):
		month = "date_part('month', " + local + ")"
	case has(tz.UnitQuarter):
		month = "((((date_part('month', " + local + ")::BIGINT - 1) / 3) * 3) + 1)"
	}

	day := "1"
	if has(tz.UnitDate) {
		day = "date_part('day', " + local + ")"
	}

	hour, minute, second, millis := "0", "0", "0", "0"
	if has(tz.UnitHours) {
		hour = "date_part('hour', " + local + ")"
	}
	if has(tz.UnitMinutes) {
		minute = "date_part('minute', " + local + ")"
	}
	if has(tz.UnitSeconds) {
		second = "date_part('second', " + local + ")"
	}
	if has(tz.UnitMilliseconds) {
		millis = "(date_part('millisecond', " + local + ")::BIGINT % 1000)"
	}

	rebuilt := "make_timestamp(" + year + "::BIGINT, (" + month + ")::BIGINT, (" + day + ")::BIGINT, " +
		"(" + hour + ")::BIGINT, (" + minute + ")::BIGINT, (" + second + ")::DOUBLE + (" + millis + ")::DOUBLE / 1000.0)"
	return utcize(rebuilt, zone)
}

func transformFormatTimestamp(args []string, d dialect.Dialect, _ []arrow.DataType) string {
	if len(args) < 3 {
		return "NULL"
	}
	ts, format, zone := args[0], args[1], args[2]
	return "strftime(" + localize(ts, zone) + ", " + format + ")"
}

func transformDateAdd(args []string, d dialect.Dialect, _ []arrow.DataType) string {
	if len(args) < 3 {
		return "NULL"
	}
	unit := strings.ToUpper(strings.Trim(args[0], "'"))
	return "(" + args[2] + " + INTERVAL (" + args[1] + ") " + unit + ")"
}

// transformArraySpan rewrites array_span(arr) into its two endpoints'
// difference, the same list_element-based indexing array_peek already uses
// natively via list_back.
func transformArraySpan(args []string, d dialect.Dialect, _ []arrow.DataType) string {
	if len(args) < 1 {
		return "NULL"
	}
	return "(list_element(" + args[0] + ", -1) - list_element(" + args[0] + ", 1))"
}

// transformBandspace rewrites bandspace(count[, paddingInner[, paddingOuter]])
// with compile.lowerBandspace's own formula, for the case that reaches SQL:
// a non-constant-foldable count (padding args are almost always literal, but
// are read from args rather than assumed 0 when present).
func transformBandspace(args []string, d dialect.Dialect, _ []arrow.DataType) string {
	if len(args) == 0 {
		return "NULL"
	}
	count := args[0]
	padIn, padOut := "0", "0"
	if len(args) > 1 {
		padIn = args[1]
	}
	if len(args) > 2 {
		padOut = args[2]
	}
	return "((" + count + ") + (" + padIn + ") * ((" + count + ") - 1) + 2 * (" + padOut + "))"
}

// transformPanScale rewrites pan_scale(domain, delta) with panFormula's
// linear lift/ground (lift=ground=identity). compile.lowerPanZoom folds the
// log/pow/symlog variants down to the same "pan_scale" call name with no
// surviving tag for which lift was requested, so only the linear case is
// reproduced here — see DESIGN.md.
func transformPanScale(args []string, d dialect.Dialect, _ []arrow.DataType) string {
	if len(args) < 2 {
		return "NULL"
	}
	domain, delta := args[0], args[1]
	d0 := "list_element(" + domain + ", 1)"
	d1 := "list_element(" + domain + ", -1)"
	dx := "((" + d1 + ") - (" + d0 + ")) * (" + delta + ")"
	return "list_value((" + d0 + ") + " + dx + ", (" + d1 + ") + " + dx + ")"
}

// transformZoomScale mirrors transformPanScale for zoomFormula's linear
// case; anchor defaults to the domain midpoint when the third argument
// (zoomLinear/zoomLog omit it) is absent.
func transformZoomScale(args []string, d dialect.Dialect, _ []arrow.DataType) string {
	if len(args) < 2 {
		return "NULL"
	}
	domain, scaleFactor := args[0], args[1]
	d0 := "list_element(" + domain + ", 1)"
	d1 := "list_element(" + domain + ", -1)"
	anchor := "(((" + d0 + ") + (" + d1 + ")) / 2)"
	if len(args) > 2 {
		anchor = "(" + args[2] + ")"
	}
	p0 := "((" + anchor + ") + ((" + d0 + ") - (" + anchor + ")) * (" + scaleFactor + "))"
	p1 := "((" + anchor + ") + ((" + d1 + ") - (" + anchor + ")) * (" + scaleFactor + "))"
	return "list_value(" + p0 + ", " + p1 + ")"
}

// transformApplyScale rewrites apply_scale(value, type, domain, range,
// name): type is always a literal (lowerScale bakes it in from the scale's
// ScaleSnapshot), so the interpolation is resolved here in Go. Only
// "linear" is implemented; every other scale type raises a runtime error
// naming itself rather than silently applying the wrong interpolation —
// see DESIGN.md.
func transformApplyScale(args []string, d dialect.Dialect, _ []arrow.DataType) string {
	if len(args) < 4 {
		return "NULL"
	}
	value, scaleType, domain, rng := args[0], strings.Trim(args[1], "'"), args[2], args[3]
	if scaleType != "linear" {
		return "error('apply_scale: unsupported scale type ' || " + args[1] + ")"
	}
	d0 := "list_element(" + domain + ", 1)"
	d1 := "list_element(" + domain + ", -1)"
	r0 := "list_element(" + rng + ", 1)"
	r1 := "list_element(" + rng + ", -1)"
	return "(" + r0 + " + ((" + value + ") - " + d0 + ") / NULLIF(" + d1 + " - " + d0 + ", 0) * (" + r1 + " - " + r0 + "))"
}

// transformInvertScale is transformApplyScale's inverse: domain and range
// swap roles.
func transformInvertScale(args []string, d dialect.Dialect, _ []arrow.DataType) string {
	if len(args) < 4 {
		return "NULL"
	}
	value, scaleType, domain, rng := args[0], strings.Trim(args[1], "'"), args[2], args[3]
	if scaleType != "linear" {
		return "error('invert_scale: unsupported scale type ' || " + args[1] + ")"
	}
	d0 := "list_element(" + domain + ", 1)"
	d1 := "list_element(" + domain + ", -1)"
	r0 := "list_element(" + rng + ", 1)"
	r1 := "list_element(" + rng + ", -1)"
	return "(" + d0 + " + ((" + value + ") - " + r0 + ") / NULLIF(" + r1 + " - " + r0 + ", 0) * (" + d1 + " - " + d0 + "))"
}

// transformInList rewrites in_list(value, list) (indata()'s membership
// test) onto DuckDB's native list_contains.
func transformInList(args []string, d dialect.Dialect, _ []arrow.DataType) string {
	if len(args) < 2 {
		return "NULL"
	}
	return "list_contains(" + args[1] + ", " + args[0] + ")"
}
