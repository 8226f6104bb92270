package transform

import (
	"github.com/apache/arrow-go/v18/arrow"

	"github.com/hugr-lab/vizql/compile"
	"github.com/hugr-lab/vizql/dataframe"
	"github.com/hugr-lab/vizql/value"
)

// TimeUnit bitmask bits, in the order §4.3 lists them: the bit index matches
// the units_mask positions the vega_timeunit UDF (and its DuckDB
// registration) expects.
const (
	UnitYear = 1 << iota
	UnitQuarter
	UnitMonth
	UnitDate
	UnitWeek
	UnitDay
	UnitDayOfYear
	UnitHours
	UnitMinutes
	UnitSeconds
	UnitMilliseconds
)

// finestUnitStep returns the date_add unit name and amount for one step at
// the finest granularity named by units, scanning from milliseconds (finest)
// to year (coarsest) per §4.6 TimeUnit's "end = start + one unit at the
// finest granularity".
func finestUnitStep(units int64) (string, int64) {
	switch {
	case units&UnitMilliseconds != 0:
		return "millisecond", 1
	case units&UnitSeconds != 0:
		return "second", 1
	case units&UnitMinutes != 0:
		return "minute", 1
	case units&UnitHours != 0:
		return "hour", 1
	case units&(UnitDate|UnitWeek|UnitDay|UnitDayOfYear) != 0:
		return "day", 1
	case units&UnitMonth != 0:
		return "month", 1
	case units&UnitQuarter != 0:
		return "month", 3
	default:
		return "year", 1
	}
}

// TimeUnitSpec configures a TimeUnit transform.
type TimeUnitSpec struct {
	Field          string
	Units          int64
	Timezone       string
	Alias0, Alias1 string
}

// TimeUnit implements §4.6 TimeUnit: as0 is the truncated start, as1 is
// start plus one unit at the finest active granularity.
func TimeUnit(df *dataframe.Dataframe, spec TimeUnitSpec) *dataframe.Dataframe {
	alias0, alias1 := spec.Alias0, spec.Alias1
	if alias0 == "" {
		alias0 = "unit0"
	}
	if alias1 == "" {
		alias1 = "unit1"
	}

	field := colRef(df.Schema, spec.Field)
	maskArg := compile.NewConst(value.Int64(spec.Units), arrow.PrimitiveTypes.Int64)
	zoneArg := constString(spec.Timezone)
	start := compile.NewScalarCall(tsType(), "vega_timeunit", field, maskArg, zoneArg)

	withStart := df.Select(append(namedExprs(df.Schema), dataframe.NamedExpr{Name: alias0, Expr: start}))

	unit, amount := finestUnitStep(spec.Units)
	end := compile.NewScalarCall(tsType(), "date_add",
		constString(unit), compile.NewConst(value.Int64(amount), arrow.PrimitiveTypes.Int64), colRef(withStart.Schema, alias0))

	return withStart.Select(append(namedExprs(withStart.Schema, alias1), dataframe.NamedExpr{Name: alias1, Expr: end}))
}

func tsType() arrow.DataType {
	return arrow.FixedWidthTypes.Timestamp_ms
}
