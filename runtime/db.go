package runtime

import (
	"context"
	"database/sql"
	"reflect"
	"time"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
	_ "github.com/duckdb/duckdb-go/v2"

	"github.com/hugr-lab/vizql/errs"
	"github.com/hugr-lab/vizql/value"
)

// db wraps the single DuckDB connection a Runtime executes rendered SQL
// against. DuckDB requires no server process, so one in-process
// *sql.DB suffices for every dataset task (§4.9's "a runtime owns exactly
// one database handle").
type db struct {
	conn *sql.DB
	mem  memory.Allocator
}

func openDB(mem memory.Allocator) (*db, error) {
	conn, err := sql.Open("duckdb", "")
	if err != nil {
		return nil, errs.Wrap(err, "opening duckdb connection")
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, errs.Wrap(err, "pinging duckdb connection")
	}
	return &db{conn: conn, mem: mem}, nil
}

func (d *db) Close() error {
	return d.conn.Close()
}

// Exec runs sql with no result (e.g. registering a CSV/Parquet file view).
func (d *db) Exec(ctx context.Context, sqlText string, args ...any) error {
	_, err := d.conn.ExecContext(ctx, sqlText, args...)
	if err != nil {
		return errs.Wrap(err, "executing statement")
	}
	return nil
}

// Query runs sqlText and materializes the full result as a single-batch
// *value.Table. DuckDB's database/sql driver reports native Go column
// types, so the Arrow schema is derived from *sql.Rows rather than
// requested in advance.
func (d *db) Query(ctx context.Context, sqlText string, args ...any) (*value.Table, error) {
	rows, err := d.conn.QueryContext(ctx, sqlText, args...)
	if err != nil {
		return nil, errs.Wrap(err, "executing query")
	}
	defer rows.Close()

	colTypes, err := rows.ColumnTypes()
	if err != nil {
		return nil, errs.Wrap(err, "reading column types")
	}

	fields := make([]arrow.Field, len(colTypes))
	for i, ct := range colTypes {
		fields[i] = arrow.Field{Name: ct.Name(), Type: arrowTypeForColumn(ct), Nullable: true}
	}
	schema := arrow.NewSchema(fields, nil)

	builder := array.NewRecordBuilder(d.mem, schema)
	defer builder.Release()

	scanDest := make([]any, len(colTypes))
	scanPtrs := make([]any, len(colTypes))
	for i := range scanDest {
		scanPtrs[i] = &scanDest[i]
	}

	for rows.Next() {
		if err := rows.Scan(scanPtrs...); err != nil {
			return nil, errs.Wrap(err, "scanning row")
		}
		for i, v := range scanDest {
			s := scalarFromDriverValue(v, fields[i].Type)
			if err := value.AppendToBuilder(builder.Field(i), s); err != nil {
				return nil, errs.Wrapf(err, "appending column %q", fields[i].Name)
			}
		}
	}
	if err := rows.Err(); err != nil {
		return nil, errs.Wrap(err, "iterating rows")
	}

	rec := builder.NewRecord()
	table, err := value.TryNew(schema, []arrow.Record{rec})
	if err != nil {
		rec.Release()
		return nil, err
	}
	return table, nil
}

// arrowTypeForColumn maps a driver-reported column type to the Arrow type
// its values will be scanned into. DuckDB's driver surfaces Go's database
// type names (BOOLEAN, BIGINT, DOUBLE, VARCHAR, TIMESTAMP, DATE, ...);
// anything unrecognized falls back to string, matching how FromJSON widens
// unresolvable shapes rather than failing construction.
func arrowTypeForColumn(ct *sql.ColumnType) arrow.DataType {
	switch ct.ScanType() {
	case reflect.TypeOf(bool(false)):
		return arrow.FixedWidthTypes.Boolean
	case reflect.TypeOf(int8(0)), reflect.TypeOf(int16(0)), reflect.TypeOf(int32(0)), reflect.TypeOf(int64(0)), reflect.TypeOf(int(0)):
		return arrow.PrimitiveTypes.Int64
	case reflect.TypeOf(uint8(0)), reflect.TypeOf(uint16(0)), reflect.TypeOf(uint32(0)), reflect.TypeOf(uint64(0)):
		return arrow.PrimitiveTypes.Int64
	case reflect.TypeOf(float32(0)), reflect.TypeOf(float64(0)):
		return arrow.PrimitiveTypes.Float64
	case reflect.TypeOf(time.Time{}):
		return arrow.FixedWidthTypes.Timestamp_ms
	case reflect.TypeOf([]byte(nil)):
		return arrow.BinaryTypes.Binary
	}
	switch ct.DatabaseTypeName() {
	case "BOOLEAN":
		return arrow.FixedWidthTypes.Boolean
	case "TINYINT", "SMALLINT", "INTEGER", "BIGINT", "HUGEINT":
		return arrow.PrimitiveTypes.Int64
	case "UTINYINT", "USMALLINT", "UINTEGER", "UBIGINT":
		return arrow.PrimitiveTypes.Int64
	case "FLOAT", "DOUBLE", "DECIMAL":
		return arrow.PrimitiveTypes.Float64
	case "DATE":
		return arrow.FixedWidthTypes.Date32
	case "TIMESTAMP", "TIMESTAMP WITH TIME ZONE":
		return arrow.FixedWidthTypes.Timestamp_ms
	default:
		return arrow.BinaryTypes.String
	}
}

// scalarFromDriverValue converts one scanned column value to a Scalar typed
// as dt, so it can be appended onto the matching Arrow builder.
func scalarFromDriverValue(v any, dt arrow.DataType) value.Scalar {
	if v == nil {
		return value.NullOf(kindForArrowType(dt))
	}
	switch x := v.(type) {
	case bool:
		return value.Bool(x)
	case int64:
		return value.Int64(x)
	case int32:
		return value.Int64(int64(x))
	case int:
		return value.Int64(int64(x))
	case float64:
		return value.Float64(x)
	case float32:
		return value.Float64(float64(x))
	case string:
		return value.String(x)
	case []byte:
		return value.String(string(x))
	case time.Time:
		return value.Timestamp(x.UnixMilli(), "")
	default:
		return value.NullOf(kindForArrowType(dt))
	}
}

func kindForArrowType(dt arrow.DataType) value.Kind {
	switch dt.ID() {
	case arrow.BOOL:
		return value.KindBool
	case arrow.INT64:
		return value.KindInt64
	case arrow.FLOAT64:
		return value.KindFloat64
	case arrow.TIMESTAMP:
		return value.KindTimestamp
	case arrow.DATE32:
		return value.KindDate32
	default:
		return value.KindString
	}
}
