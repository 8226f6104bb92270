package value

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/hugr-lab/vizql/errs"
)

// datetimePrefix marks a JSON string as a millisecond-epoch timestamp,
// per §3/§6: "millisecond-epoch timestamps round-trip as strings prefixed
// __$datetime: to survive JSON's lack of a timestamp type". Applied only
// when the scalar's logical type is millisecond timestamp (§3 invariants).
const datetimePrefix = "__$datetime:"

// ToJSON renders the scalar with the datetime-prefix convention.
func (s Scalar) ToJSON() (json.RawMessage, error) {
	if s.Null {
		return json.RawMessage("null"), nil
	}
	switch s.Kind {
	case KindBool:
		return json.Marshal(s.Bool)
	case KindInt8:
		return json.Marshal(s.I8)
	case KindInt16:
		return json.Marshal(s.I16)
	case KindInt32:
		return json.Marshal(s.I32)
	case KindInt64:
		return json.Marshal(s.I64)
	case KindUint8:
		return json.Marshal(s.U8)
	case KindUint16:
		return json.Marshal(s.U16)
	case KindUint32:
		return json.Marshal(s.U32)
	case KindUint64:
		return json.Marshal(s.U64)
	case KindFloat32:
		return json.Marshal(s.F32)
	case KindFloat64:
		return json.Marshal(s.F64)
	case KindString, KindLargeString:
		return json.Marshal(s.Str)
	case KindBinary:
		return json.Marshal(s.Bin)
	case KindDate32:
		return json.Marshal(s.Date32)
	case KindDate64:
		return json.Marshal(s.Date64)
	case KindTimestamp:
		if s.TSUnit == Millisecond {
			return json.Marshal(datetimePrefix + strconv.FormatInt(s.TSValue, 10))
		}
		return json.Marshal(s.TSValue)
	case KindList, KindFixedSizeList:
		parts := make([]json.RawMessage, len(s.List))
		for i, el := range s.List {
			raw, err := el.ToJSON()
			if err != nil {
				return nil, err
			}
			parts[i] = raw
		}
		return json.Marshal(parts)
	case KindStruct:
		obj := make(map[string]json.RawMessage, len(s.Struct))
		for _, f := range s.Struct {
			raw, err := f.Value.ToJSON()
			if err != nil {
				return nil, err
			}
			obj[f.Name] = raw
		}
		return json.Marshal(obj)
	default:
		return json.RawMessage("null"), nil
	}
}

// ScalarFromJSON decodes a JSON value into a Scalar, detecting the
// `__$datetime:` prefix convention and otherwise inferring a kind from the
// JSON shape (bool/number/string/array/object/null). Every JSON number
// decodes as a Float64 scalar.
func ScalarFromJSON(raw json.RawMessage) (Scalar, error) {
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return Scalar{}, errs.Wrap(err, "decoding scalar JSON")
	}
	return scalarFromAny(v)
}

func scalarFromAny(v any) (Scalar, error) {
	switch t := v.(type) {
	case nil:
		return NullUntyped(), nil
	case bool:
		return Bool(t), nil
	case float64:
		return Float64(t), nil
	case string:
		if strings.HasPrefix(t, datetimePrefix) {
			millis, err := strconv.ParseInt(strings.TrimPrefix(t, datetimePrefix), 10, 64)
			if err != nil {
				return Scalar{}, errs.Wrap(err, "parsing __$datetime: payload")
			}
			return Timestamp(millis, ""), nil
		}
		return String(t), nil
	case []any:
		elems := make([]Scalar, len(t))
		for i, el := range t {
			s, err := scalarFromAny(el)
			if err != nil {
				return Scalar{}, err
			}
			elems[i] = s
		}
		return Scalar{Kind: KindList, List: elems}, nil
	case map[string]any:
		fields := make([]StructField, 0, len(t))
		for k, val := range t {
			s, err := scalarFromAny(val)
			if err != nil {
				return Scalar{}, err
			}
			fields = append(fields, StructField{Name: k, Value: s})
		}
		return Scalar{Kind: KindStruct, Struct: fields}, nil
	default:
		return Scalar{}, errs.New(errs.Internal, "unsupported JSON value type %T", v)
	}
}

// MarshalJSON implements json.Marshaler.
func (s Scalar) MarshalJSON() ([]byte, error) {
	raw, err := s.ToJSON()
	if err != nil {
		return nil, err
	}
	return raw, nil
}

// UnmarshalJSON implements json.Unmarshaler.
func (s *Scalar) UnmarshalJSON(data []byte) error {
	decoded, err := ScalarFromJSON(data)
	if err != nil {
		return err
	}
	*s = decoded
	return nil
}
