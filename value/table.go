package value

import (
	"bytes"
	"encoding/json"
	"io"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/ipc"
	"github.com/apache/arrow-go/v18/arrow/memory"

	"github.com/hugr-lab/vizql/errs"
)

// OrderColumn is the synthetic ordering column name used to preserve row
// order across non-order-preserving dataframe operators (§3).
const OrderColumn = "_vf_order"

// Table is an Arrow schema plus an ordered sequence of record batches
// conforming to it — the shared in-memory representation for task outputs,
// cache entries, and dialect query results.
type Table struct {
	Schema  *arrow.Schema
	Batches []arrow.Record
}

// TryNew builds a Table after checking each batch conforms to schema.
func TryNew(schema *arrow.Schema, batches []arrow.Record) (*Table, error) {
	for i, b := range batches {
		if !b.Schema().Equal(schema) {
			return nil, errs.New(errs.Internal, "batch %d schema does not match table schema", i)
		}
	}
	return &Table{Schema: schema, Batches: batches}, nil
}

// NumRows returns the total row count across all batches.
func (t *Table) NumRows() int64 {
	var n int64
	for _, b := range t.Batches {
		n += b.NumRows()
	}
	return n
}

// HasOrderColumn reports whether the table carries the _vf_order column.
func (t *Table) HasOrderColumn() bool {
	_, ok := t.Schema.FieldsByName(OrderColumn)
	return ok && len(t.Schema.FieldIndices(OrderColumn)) > 0
}

// Head returns a new Table containing at most the first n rows.
func (t *Table) Head(n int64) (*Table, error) {
	if n < 0 {
		return nil, errs.New(errs.Internal, "Head: n must be >= 0")
	}
	var out []arrow.Record
	var taken int64
	for _, b := range t.Batches {
		if taken >= n {
			break
		}
		remaining := n - taken
		if int64(b.NumRows()) <= remaining {
			b.Retain()
			out = append(out, b)
			taken += b.NumRows()
			continue
		}
		sliced := b.NewSlice(0, remaining)
		out = append(out, sliced)
		taken += remaining
	}
	return &Table{Schema: t.Schema, Batches: out}, nil
}

// Concat merges all batches into a single record. Returns an empty,
// zero-row record conforming to schema if the table has no batches.
func (t *Table) Concat(mem memory.Allocator) (arrow.Record, error) {
	if mem == nil {
		mem = memory.DefaultAllocator
	}
	if len(t.Batches) == 0 {
		b := array.NewRecordBuilder(mem, t.Schema)
		defer b.Release()
		return b.NewRecord(), nil
	}
	if len(t.Batches) == 1 {
		t.Batches[0].Retain()
		return t.Batches[0], nil
	}
	rec, err := array.ConcatRecords(t.Batches, mem)
	if err != nil {
		return nil, errs.Wrap(err, "concatenating record batches")
	}
	return rec, nil
}

// Release drops this Table's reference to its underlying batches.
func (t *Table) Release() {
	for _, b := range t.Batches {
		b.Release()
	}
}

// Retain increments the reference count of every underlying batch and
// returns a Table sharing them, matching Arrow's handle-cloning convention
// (§9: "a dataframe is an immutable handle... operators clone handles
// cheaply").
func (t *Table) Retain() *Table {
	for _, b := range t.Batches {
		b.Retain()
	}
	return &Table{Schema: t.Schema, Batches: t.Batches}
}

// WriteIPC serializes the table as an Arrow IPC stream (schema-prefixed,
// one or more record batches), per §6's wire format for tables.
func (t *Table) WriteIPC(w io.Writer) error {
	writer := ipc.NewWriter(w, ipc.WithSchema(t.Schema))
	defer writer.Close()
	for _, b := range t.Batches {
		if err := writer.Write(b); err != nil {
			return errs.Wrap(err, "writing IPC record batch")
		}
	}
	return writer.Close()
}

// ReadIPC decodes an Arrow IPC stream into a Table.
func ReadIPC(r io.Reader, mem memory.Allocator) (*Table, error) {
	if mem == nil {
		mem = memory.DefaultAllocator
	}
	reader, err := ipc.NewReader(r, ipc.WithAllocator(mem))
	if err != nil {
		return nil, errs.Wrap(err, "opening IPC reader")
	}
	defer reader.Release()

	var batches []arrow.Record
	for reader.Next() {
		rec := reader.Record()
		rec.Retain()
		batches = append(batches, rec)
	}
	if err := reader.Err(); err != nil && err != io.EOF {
		return nil, errs.Wrap(err, "reading IPC stream")
	}
	return &Table{Schema: reader.Schema(), Batches: batches}, nil
}

// ToJSON renders the table as an array of row objects, each a JSON object
// of column-name -> Scalar.ToJSON().
func (t *Table) ToJSON() (json.RawMessage, error) {
	var buf bytes.Buffer
	buf.WriteByte('[')
	first := true
	for _, batch := range t.Batches {
		n := int(batch.NumRows())
		for row := 0; row < n; row++ {
			if !first {
				buf.WriteByte(',')
			}
			first = false
			obj, err := rowToJSON(t.Schema, batch, row)
			if err != nil {
				return nil, err
			}
			buf.Write(obj)
		}
	}
	buf.WriteByte(']')
	return buf.Bytes(), nil
}

func rowToJSON(schema *arrow.Schema, batch arrow.Record, row int) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, field := range schema.Fields() {
		if i > 0 {
			buf.WriteByte(',')
		}
		keyJSON, _ := json.Marshal(field.Name)
		buf.Write(keyJSON)
		buf.WriteByte(':')
		s, err := ScalarFromColumn(batch.Column(i), row)
		if err != nil {
			return nil, err
		}
		valJSON, err := s.ToJSON()
		if err != nil {
			return nil, err
		}
		buf.Write(valJSON)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}
