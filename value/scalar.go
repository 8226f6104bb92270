// Package value implements the scalar and columnar table value model shared
// by the cache, task outputs, and dialect engine I/O: a tagged-union Scalar
// with lossless JSON round-trip, and a Table wrapper over an Arrow schema
// plus record batches.
package value

import (
	"fmt"
	"time"

	"github.com/apache/arrow-go/v18/arrow"

	"github.com/hugr-lab/vizql/errs"
)

// Kind tags which variant of Scalar is populated.
type Kind int

const (
	KindNull Kind = iota
	KindBool
	KindInt8
	KindInt16
	KindInt32
	KindInt64
	KindUint8
	KindUint16
	KindUint32
	KindUint64
	KindFloat32
	KindFloat64
	KindString
	KindLargeString
	KindBinary
	KindDate32
	KindDate64
	KindTimestamp
	KindFixedSizeList
	KindList
	KindStruct
)

// TimeUnit mirrors arrow.TimeUnit without requiring callers to import the
// arrow package just to build a Scalar.
type TimeUnit = arrow.TimeUnit

const (
	Millisecond = arrow.Millisecond
	Microsecond = arrow.Microsecond
	Nanosecond  = arrow.Nanosecond
	Second      = arrow.Second
)

// Scalar is a tagged union over the Arrow scalar kinds named in §3: boolean,
// the six signed/unsigned integer widths, float32/64, utf8/large-utf8,
// binary, date32/date64, timestamp with ms/us/ns precision and an optional
// timezone, fixed-length lists, variable-length lists, and structs.
type Scalar struct {
	Kind Kind
	Null bool

	Bool bool
	I8   int8
	I16  int16
	I32  int32
	I64  int64
	U8   uint8
	U16  uint16
	U32  uint32
	U64  uint64
	F32  float32
	F64  float64
	Str  string
	Bin  []byte

	// Date32 is days since the Unix epoch; Date64 is milliseconds since
	// epoch truncated to a whole day, matching Arrow's date64 convention.
	Date32 int32
	Date64 int64

	// TSValue is the timestamp's raw integer value in TSUnit units since
	// epoch; TSTZ is the IANA zone name ("" for none, meaning naive/UTC).
	TSValue int64
	TSUnit  TimeUnit
	TSTZ    string

	// List holds element scalars for List/FixedSizeList kinds.
	List []Scalar
	// Struct holds named fields in declaration order for Kind == KindStruct.
	Struct []StructField
}

// StructField is one named member of a KindStruct scalar.
type StructField struct {
	Name  string
	Value Scalar
}

// NullOf returns the null scalar of the given kind — the compiler emits this
// for e.g. a missing struct field access.
func NullOf(kind Kind) Scalar {
	return Scalar{Kind: kind, Null: true}
}

// NullUntyped is a null scalar with no meaningful kind, used where the
// compiler cannot resolve a concrete type (e.g. `datum[expr]` with a
// non-literal key, per the dynamic-typing design note).
func NullUntyped() Scalar {
	return Scalar{Kind: KindNull, Null: true}
}

func Bool(b bool) Scalar   { return Scalar{Kind: KindBool, Bool: b} }
func Float64(f float64) Scalar { return Scalar{Kind: KindFloat64, F64: f} }
func Int64(i int64) Scalar { return Scalar{Kind: KindInt64, I64: i} }
func String(s string) Scalar { return Scalar{Kind: KindString, Str: s} }

// Timestamp builds a millisecond-precision UTC (or tz-qualified) timestamp
// scalar — the variant used pervasively by the date/time builtin functions.
func Timestamp(millis int64, tz string) Scalar {
	return Scalar{Kind: KindTimestamp, TSValue: millis, TSUnit: Millisecond, TSTZ: tz}
}

// ToF64 coerces the scalar to float64 per the compiler's `to_numeric` rule:
// null-safe cast through Float64. Non-numeric, non-null scalars are an
// error.
func (s Scalar) ToF64() (float64, bool, error) {
	if s.Null {
		return 0, true, nil
	}
	switch s.Kind {
	case KindBool:
		if s.Bool {
			return 1, false, nil
		}
		return 0, false, nil
	case KindInt8:
		return float64(s.I8), false, nil
	case KindInt16:
		return float64(s.I16), false, nil
	case KindInt32:
		return float64(s.I32), false, nil
	case KindInt64:
		return float64(s.I64), false, nil
	case KindUint8:
		return float64(s.U8), false, nil
	case KindUint16:
		return float64(s.U16), false, nil
	case KindUint32:
		return float64(s.U32), false, nil
	case KindUint64:
		return float64(s.U64), false, nil
	case KindFloat32:
		return float64(s.F32), false, nil
	case KindFloat64:
		return s.F64, false, nil
	default:
		return 0, false, errs.New(errs.Compilation, "cannot coerce %v to numeric", s.Kind)
	}
}

// ToI32 coerces to int32, truncating a float per JS `ToInt32` semantics
// closely enough for bitwise-operator use (§4.2 bitwise ops coalesce null
// to 0).
func (s Scalar) ToI32() (int32, error) {
	if s.Null {
		return 0, nil
	}
	f, _, err := s.ToF64()
	if err != nil {
		return 0, err
	}
	return int32(int64(f)), nil
}

// ToF64Pair extracts a 2-element numeric list as (lo, hi) — used by extent
// signals and scale domain/range reads.
func (s Scalar) ToF64Pair() (float64, float64, error) {
	if s.Kind != KindList && s.Kind != KindFixedSizeList {
		return 0, 0, errs.New(errs.Internal, "ToF64Pair: not a list scalar (%v)", s.Kind)
	}
	if len(s.List) != 2 {
		return 0, 0, errs.New(errs.Internal, "ToF64Pair: expected 2 elements, got %d", len(s.List))
	}
	lo, _, err := s.List[0].ToF64()
	if err != nil {
		return 0, 0, err
	}
	hi, _, err := s.List[1].ToF64()
	if err != nil {
		return 0, 0, err
	}
	return lo, hi, nil
}

// ToString renders the scalar for string-concatenation / formula use,
// matching JavaScript's loose `String(x)` conversion closely enough for the
// `+` operator's string-coercion branch.
func (s Scalar) ToString() string {
	if s.Null {
		return ""
	}
	switch s.Kind {
	case KindBool:
		if s.Bool {
			return "true"
		}
		return "false"
	case KindString, KindLargeString:
		return s.Str
	case KindFloat64:
		return formatJSNumber(s.F64)
	case KindFloat32:
		return formatJSNumber(float64(s.F32))
	case KindInt64:
		return fmt.Sprintf("%d", s.I64)
	case KindInt32:
		return fmt.Sprintf("%d", s.I32)
	default:
		if f, isNull, err := s.ToF64(); err == nil && !isNull {
			return formatJSNumber(f)
		}
		return fmt.Sprintf("%v", s)
	}
}

func formatJSNumber(f float64) string {
	if f == float64(int64(f)) {
		return fmt.Sprintf("%d", int64(f))
	}
	return fmt.Sprintf("%g", f)
}

// Negate implements unary `-`: numeric negation of the ToF64 coercion.
func (s Scalar) Negate() (Scalar, error) {
	if s.Null {
		return NullOf(KindFloat64), nil
	}
	f, _, err := s.ToF64()
	if err != nil {
		return Scalar{}, err
	}
	return Float64(-f), nil
}

// AsTime returns the scalar's timestamp as a time.Time in UTC, for use by
// date-part extraction and formatting builtins.
func (s Scalar) AsTime() (time.Time, error) {
	if s.Kind != KindTimestamp {
		return time.Time{}, errs.New(errs.Internal, "AsTime: not a timestamp scalar (%v)", s.Kind)
	}
	switch s.TSUnit {
	case Second:
		return time.UnixMilli(s.TSValue * 1000).UTC(), nil
	case Millisecond:
		return time.UnixMilli(s.TSValue).UTC(), nil
	case Microsecond:
		return time.UnixMicro(s.TSValue).UTC(), nil
	case Nanosecond:
		return time.Unix(0, s.TSValue).UTC(), nil
	default:
		return time.UnixMilli(s.TSValue).UTC(), nil
	}
}
