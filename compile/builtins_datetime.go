package compile

import (
	"github.com/apache/arrow-go/v18/arrow"

	"github.com/hugr-lab/vizql/errs"
	"github.com/hugr-lab/vizql/expr"
	"github.com/hugr-lab/vizql/value"
)

// tsType is the compiled return type of every date/time builtin: a
// millisecond-precision UTC timestamp.
var tsType = arrow.FixedWidthTypes.Timestamp_ms

// datetimeRegistry holds the date/time construction, extraction,
// truncation, and formatting families of §4.3. These lower to named scalar
// calls the dialect layer must rewrite per §4.7's "known functions that
// always require per-dialect rewriting" list
// (epoch_ms_to_utc_timestamp/str_to_utc_timestamp/vega_timeunit/
// format_timestamp/make_timestamptz); the compiler's job is argument
// validation and literal folding of the zero-arg defaults, not evaluation.
var datetimeRegistry = map[string]builtinRule{
	"datetime": {1, 7, lowerDatetimeCtor(false)},
	"utc":      {1, 7, lowerDatetimeCtor(true)},

	"year": datePartRule("year", false), "utcyear": datePartRule("year", true),
	"month": datePartRule("month", false), "utcmonth": datePartRule("month", true),
	"date": datePartRule("date", false), "utcdate": datePartRule("date", true),
	"day": datePartRule("day", false), "utcday": datePartRule("day", true),
	"hours": datePartRule("hours", false), "utchours": datePartRule("hours", true),
	"minutes": datePartRule("minutes", false), "utcminutes": datePartRule("minutes", true),
	"seconds": datePartRule("seconds", false), "utcseconds": datePartRule("seconds", true),
	"milliseconds": datePartRule("milliseconds", false), "utcmilliseconds": datePartRule("milliseconds", true),

	"timeUnit": {2, 3, lowerTimeUnit},

	"timeFormat": {1, 2, lowerDateFormat(false)},
	"utcFormat":  {1, 2, lowerDateFormat(true)},
}

func lowerDatetimeCtor(utcOnly bool) func([]Expr, *expr.Call, *Config, *arrow.Schema) (Expr, error) {
	return func(args []Expr, call *expr.Call, cfg *Config, schema *arrow.Schema) (Expr, error) {
		if len(args) == 1 {
			// String -> parsed per the date-string grammar into the
			// configured default input timezone; numeric -> UTC millis.
			name := "str_to_utc_timestamp"
			if args[0].Type().ID() != arrow.STRING && args[0].Type().ID() != arrow.LARGE_STRING {
				name = "epoch_ms_to_utc_timestamp"
			}
			tzArg := &ConstExpr{baseExpr{arrow.BinaryTypes.String}, value.String(cfg.TZ.DefaultInput)}
			return &ScalarCallExpr{baseExpr{tsType}, name, []Expr{args[0], tzArg}}, nil
		}
		// datetime(y, m[, d, h, mm, s, ms]) / utc(...): month is 0-based,
		// days default to 1, time components default to 0.
		zone := cfg.TZ.Local
		if utcOnly {
			zone = "UTC"
		}
		padded := padArgsWithDefaults(args)
		padded = append(padded, &ConstExpr{baseExpr{arrow.BinaryTypes.String}, value.String(zone)})
		return &ScalarCallExpr{baseExpr{tsType}, "make_timestamptz", padded}, nil
	}
}

func padArgsWithDefaults(args []Expr) []Expr {
	defaults := []Expr{
		nil, nil, // year, month: required
		&ConstExpr{baseExpr{i64}, value.Int64(1)}, // day
		&ConstExpr{baseExpr{i64}, value.Int64(0)}, // hour
		&ConstExpr{baseExpr{i64}, value.Int64(0)}, // minute
		&ConstExpr{baseExpr{i64}, value.Int64(0)}, // second
		&ConstExpr{baseExpr{i64}, value.Int64(0)}, // millisecond
	}
	out := make([]Expr, 7)
	for i := 0; i < 7; i++ {
		if i < len(args) {
			out[i] = args[i]
		} else {
			out[i] = defaults[i]
		}
	}
	return out
}

func datePartRule(part string, utcOnly bool) builtinRule {
	return builtinRule{1, 1, func(args []Expr, call *expr.Call, cfg *Config, schema *arrow.Schema) (Expr, error) {
		zone := cfg.TZ.Local
		if utcOnly {
			zone = "UTC"
		}
		zoneArg := &ConstExpr{baseExpr{arrow.BinaryTypes.String}, value.String(zone)}
		partArg := &ConstExpr{baseExpr{arrow.BinaryTypes.String}, value.String(part)}
		return &ScalarCallExpr{baseExpr{f64}, "vega_date_part", []Expr{args[0], zoneArg, partArg}}, nil
	}}
}

func lowerTimeUnit(args []Expr, call *expr.Call, cfg *Config, schema *arrow.Schema) (Expr, error) {
	// args: field, units-bitmask-literal, optional timezone-literal.
	maskLit, ok := asIntLiteral(call.Args[1])
	if !ok {
		return nil, errs.NewSpan(errs.Compilation, call.Span().Start, call.Span().End,
			"timeUnit: units bitmask must be a literal integer")
	}
	zone := cfg.TZ.Local
	if len(args) > 2 {
		if zl, ok := call.Args[2].(*expr.Literal); ok && zl.Kind == expr.LitString {
			zone = zl.Str
		}
	}
	maskArg := &ConstExpr{baseExpr{i64}, value.Int64(maskLit)}
	zoneArg := &ConstExpr{baseExpr{arrow.BinaryTypes.String}, value.String(zone)}
	return &ScalarCallExpr{baseExpr{tsType}, "vega_timeunit", []Expr{args[0], maskArg, zoneArg}}, nil
}

func asIntLiteral(n expr.Node) (int64, bool) {
	lit, ok := n.(*expr.Literal)
	if !ok || lit.Kind != expr.LitNumber {
		return 0, false
	}
	return int64(lit.Num), true
}

func lowerDateFormat(utcOnly bool) func([]Expr, *expr.Call, *Config, *arrow.Schema) (Expr, error) {
	return func(args []Expr, call *expr.Call, cfg *Config, schema *arrow.Schema) (Expr, error) {
		format := "%I:%M"
		if len(call.Args) > 1 {
			if lit, ok := call.Args[1].(*expr.Literal); ok && lit.Kind == expr.LitString {
				format = adjustStrftime(lit.Str)
			}
		}
		zone := cfg.TZ.Local
		if utcOnly {
			zone = "UTC"
		}
		fmtArg := &ConstExpr{baseExpr{arrow.BinaryTypes.String}, value.String(format)}
		zoneArg := &ConstExpr{baseExpr{arrow.BinaryTypes.String}, value.String(zone)}
		return &ScalarCallExpr{baseExpr{arrow.BinaryTypes.String}, "format_timestamp", []Expr{args[0], fmtArg, zoneArg}}, nil
	}
}

// adjustStrftime rewrites D3- and Vega-specific strftime directives to
// their POSIX equivalents, per §4.3: %f (microseconds) -> %6f, %L
// (milliseconds) -> %3f.
func adjustStrftime(format string) string {
	out := make([]byte, 0, len(format))
	for i := 0; i < len(format); i++ {
		if format[i] == '%' && i+1 < len(format) {
			switch format[i+1] {
			case 'f':
				out = append(out, []byte("%6f")...)
				i++
				continue
			case 'L':
				out = append(out, []byte("%3f")...)
				i++
				continue
			}
		}
		out = append(out, format[i])
	}
	return string(out)
}
