package value

import (
	"encoding/json"
	"sort"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"

	"github.com/hugr-lab/vizql/errs"
)

// maxInferRows bounds schema-inference scanning, per §4.4: "infers schema
// by scanning at most the first 1024 rows".
const maxInferRows = 1024

// FromJSON decodes a JSON array of row objects into a Table. Schema is
// inferred by scanning at most the first 1024 rows; an empty array falls
// back to a single-column Float64 table with zero rows; rows are decoded in
// batches of at most batchSize.
func FromJSON(raw json.RawMessage, batchSize int, mem memory.Allocator) (*Table, error) {
	if mem == nil {
		mem = memory.DefaultAllocator
	}
	if batchSize <= 0 {
		batchSize = 1024
	}

	var rows []map[string]json.RawMessage
	if err := json.Unmarshal(raw, &rows); err != nil {
		return nil, errs.Wrap(err, "decoding table JSON as row array")
	}

	if len(rows) == 0 {
		schema := arrow.NewSchema([]arrow.Field{{Name: "value", Type: arrow.PrimitiveTypes.Float64, Nullable: true}}, nil)
		return &Table{Schema: schema, Batches: nil}, nil
	}

	schema, err := inferSchema(rows)
	if err != nil {
		return nil, err
	}

	var batches []arrow.Record
	for start := 0; start < len(rows); start += batchSize {
		end := start + batchSize
		if end > len(rows) {
			end = len(rows)
		}
		rec, err := buildBatch(mem, schema, rows[start:end])
		if err != nil {
			return nil, err
		}
		batches = append(batches, rec)
	}
	return &Table{Schema: schema, Batches: batches}, nil
}

func inferSchema(rows []map[string]json.RawMessage) (*arrow.Schema, error) {
	limit := len(rows)
	if limit > maxInferRows {
		limit = maxInferRows
	}

	colOrder := []string{}
	seen := map[string]bool{}
	kinds := map[string]Kind{}
	nullable := map[string]bool{}

	for i := 0; i < limit; i++ {
		keys := make([]string, 0, len(rows[i]))
		for k := range rows[i] {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			if !seen[k] {
				seen[k] = true
				colOrder = append(colOrder, k)
			}
			s, err := ScalarFromJSON(rows[i][k])
			if err != nil {
				return nil, err
			}
			if s.Null {
				nullable[k] = true
				continue
			}
			if existing, ok := kinds[k]; ok && existing != s.Kind {
				// widen to float64 on mixed numeric/other conflict
				kinds[k] = KindFloat64
			} else {
				kinds[k] = s.Kind
			}
		}
	}

	fields := make([]arrow.Field, len(colOrder))
	for i, name := range colOrder {
		fields[i] = arrow.Field{Name: name, Type: arrowTypeOf(kinds[name]), Nullable: true}
	}
	return arrow.NewSchema(fields, nil), nil
}

func arrowTypeOf(k Kind) arrow.DataType {
	switch k {
	case KindBool:
		return arrow.FixedWidthTypes.Boolean
	case KindString, KindLargeString:
		return arrow.BinaryTypes.String
	case KindTimestamp:
		return arrow.FixedWidthTypes.Timestamp_ms
	case KindInt64:
		return arrow.PrimitiveTypes.Int64
	default:
		return arrow.PrimitiveTypes.Float64
	}
}

func buildBatch(mem memory.Allocator, schema *arrow.Schema, rows []map[string]json.RawMessage) (arrow.Record, error) {
	builder := array.NewRecordBuilder(mem, schema)
	defer builder.Release()

	for _, row := range rows {
		for i, field := range schema.Fields() {
			raw, ok := row[field.Name]
			var s Scalar
			if ok {
				decoded, err := ScalarFromJSON(raw)
				if err != nil {
					return nil, err
				}
				s = decoded
			} else {
				s = NullUntyped()
			}
			if err := AppendToBuilder(builder.Field(i), s); err != nil {
				return nil, err
			}
		}
	}
	return builder.NewRecord(), nil
}
