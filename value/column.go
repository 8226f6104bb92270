package value

import (
	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"

	"github.com/hugr-lab/vizql/errs"
)

// ScalarFromColumn extracts the row-th element of arr as a Scalar, tagged
// with the Kind matching arr's Arrow type.
func ScalarFromColumn(arr arrow.Array, row int) (Scalar, error) {
	if arr.IsNull(row) {
		return NullOf(kindOfType(arr.DataType())), nil
	}
	switch a := arr.(type) {
	case *array.Boolean:
		return Bool(a.Value(row)), nil
	case *array.Int8:
		return Scalar{Kind: KindInt8, I8: a.Value(row)}, nil
	case *array.Int16:
		return Scalar{Kind: KindInt16, I16: a.Value(row)}, nil
	case *array.Int32:
		return Scalar{Kind: KindInt32, I32: a.Value(row)}, nil
	case *array.Int64:
		return Scalar{Kind: KindInt64, I64: a.Value(row)}, nil
	case *array.Uint8:
		return Scalar{Kind: KindUint8, U8: a.Value(row)}, nil
	case *array.Uint16:
		return Scalar{Kind: KindUint16, U16: a.Value(row)}, nil
	case *array.Uint32:
		return Scalar{Kind: KindUint32, U32: a.Value(row)}, nil
	case *array.Uint64:
		return Scalar{Kind: KindUint64, U64: a.Value(row)}, nil
	case *array.Float32:
		return Scalar{Kind: KindFloat32, F32: a.Value(row)}, nil
	case *array.Float64:
		return Float64(a.Value(row)), nil
	case *array.String:
		return String(a.Value(row)), nil
	case *array.LargeString:
		return Scalar{Kind: KindLargeString, Str: a.Value(row)}, nil
	case *array.Binary:
		return Scalar{Kind: KindBinary, Bin: a.Value(row)}, nil
	case *array.Date32:
		return Scalar{Kind: KindDate32, Date32: int32(a.Value(row))}, nil
	case *array.Date64:
		return Scalar{Kind: KindDate64, Date64: int64(a.Value(row))}, nil
	case *array.Timestamp:
		ts, ok := a.DataType().(*arrow.TimestampType)
		if !ok {
			return Scalar{}, errs.New(errs.Internal, "timestamp array without TimestampType")
		}
		return Scalar{Kind: KindTimestamp, TSValue: int64(a.Value(row)), TSUnit: ts.Unit, TSTZ: ts.TimeZone}, nil
	case *array.List:
		return listScalarAt(a, row)
	case *array.FixedSizeList:
		return fixedSizeListScalarAt(a, row)
	case *array.Struct:
		return structScalarAt(a, row)
	default:
		return Scalar{}, errs.New(errs.Internal, "unsupported array type %T", arr)
	}
}

func listScalarAt(a *array.List, row int) (Scalar, error) {
	start, end := a.ValueOffsets(row)
	elems := make([]Scalar, 0, end-start)
	values := a.ListValues()
	for i := start; i < end; i++ {
		s, err := ScalarFromColumn(values, int(i))
		if err != nil {
			return Scalar{}, err
		}
		elems = append(elems, s)
	}
	return Scalar{Kind: KindList, List: elems}, nil
}

func fixedSizeListScalarAt(a *array.FixedSizeList, row int) (Scalar, error) {
	n := a.DataType().(*arrow.FixedSizeListType).Len()
	values := a.ListValues()
	elems := make([]Scalar, 0, n)
	for i := int32(0); i < n; i++ {
		idx := int(int32(row)*n + i)
		s, err := ScalarFromColumn(values, idx)
		if err != nil {
			return Scalar{}, err
		}
		elems = append(elems, s)
	}
	return Scalar{Kind: KindFixedSizeList, List: elems}, nil
}

func structScalarAt(a *array.Struct, row int) (Scalar, error) {
	dt := a.DataType().(*arrow.StructType)
	fields := make([]StructField, dt.NumFields())
	for i := 0; i < dt.NumFields(); i++ {
		s, err := ScalarFromColumn(a.Field(i), row)
		if err != nil {
			return Scalar{}, err
		}
		fields[i] = StructField{Name: dt.Field(i).Name, Value: s}
	}
	return Scalar{Kind: KindStruct, Struct: fields}, nil
}

func kindOfType(dt arrow.DataType) Kind {
	switch dt.ID() {
	case arrow.BOOL:
		return KindBool
	case arrow.INT8:
		return KindInt8
	case arrow.INT16:
		return KindInt16
	case arrow.INT32:
		return KindInt32
	case arrow.INT64:
		return KindInt64
	case arrow.UINT8:
		return KindUint8
	case arrow.UINT16:
		return KindUint16
	case arrow.UINT32:
		return KindUint32
	case arrow.UINT64:
		return KindUint64
	case arrow.FLOAT32:
		return KindFloat32
	case arrow.FLOAT64:
		return KindFloat64
	case arrow.STRING:
		return KindString
	case arrow.LARGE_STRING:
		return KindLargeString
	case arrow.BINARY:
		return KindBinary
	case arrow.DATE32:
		return KindDate32
	case arrow.DATE64:
		return KindDate64
	case arrow.TIMESTAMP:
		return KindTimestamp
	case arrow.LIST:
		return KindList
	case arrow.FIXED_SIZE_LIST:
		return KindFixedSizeList
	case arrow.STRUCT:
		return KindStruct
	default:
		return KindNull
	}
}

// AppendToBuilder appends s onto builder, which must be of the matching
// Arrow builder type for s.Kind.
func AppendToBuilder(builder array.Builder, s Scalar) error {
	if s.Null {
		builder.AppendNull()
		return nil
	}
	switch b := builder.(type) {
	case *array.BooleanBuilder:
		b.Append(s.Bool)
	case *array.Int8Builder:
		b.Append(s.I8)
	case *array.Int16Builder:
		b.Append(s.I16)
	case *array.Int32Builder:
		b.Append(s.I32)
	case *array.Int64Builder:
		b.Append(s.I64)
	case *array.Uint8Builder:
		b.Append(s.U8)
	case *array.Uint16Builder:
		b.Append(s.U16)
	case *array.Uint32Builder:
		b.Append(s.U32)
	case *array.Uint64Builder:
		b.Append(s.U64)
	case *array.Float32Builder:
		b.Append(s.F32)
	case *array.Float64Builder:
		if f, isNull, err := s.ToF64(); err == nil && !isNull {
			b.Append(f)
		} else {
			b.AppendNull()
		}
	case *array.StringBuilder:
		b.Append(s.ToString())
	case *array.LargeStringBuilder:
		b.Append(s.ToString())
	case *array.TimestampBuilder:
		b.Append(arrow.Timestamp(s.TSValue))
	case *array.Date32Builder:
		b.Append(arrow.Date32(s.Date32))
	case *array.Date64Builder:
		b.Append(arrow.Date64(s.Date64))
	default:
		return errs.New(errs.Internal, "AppendToBuilder: unsupported builder type %T", builder)
	}
	return nil
}
