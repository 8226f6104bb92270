package runtime

import (
	"context"
	"os"

	"github.com/apache/arrow-go/v18/arrow"

	"github.com/hugr-lab/vizql/compile"
	"github.com/hugr-lab/vizql/dataframe"
	"github.com/hugr-lab/vizql/dialect"
	"github.com/hugr-lab/vizql/errs"
	"github.com/hugr-lab/vizql/taskgraph"
	"github.com/hugr-lab/vizql/transform"
	"github.com/hugr-lab/vizql/value"
)

// registerTable spills table to a temp JSON file (the same row-object
// array Table.ToJSON/FromJSON already use) and registers it as a DuckDB
// view over read_json_auto, so inline and loaded datasets become ordinary
// queryable relations a dataframe.Dataframe can scan by name.
func registerTable(ctx context.Context, database *db, d dialect.Dialect, viewName string, table *value.Table) (*dataframe.Dataframe, error) {
	raw, err := table.ToJSON()
	if err != nil {
		return nil, errs.Wrap(err, "encoding inline dataset")
	}

	f, err := os.CreateTemp("", "vizql-dataset-*.json")
	if err != nil {
		return nil, errs.Wrap(err, "spilling inline dataset")
	}
	path := f.Name()
	_, werr := f.Write(raw)
	cerr := f.Close()
	if werr != nil {
		os.Remove(path)
		return nil, errs.Wrap(werr, "writing inline dataset")
	}
	if cerr != nil {
		os.Remove(path)
		return nil, errs.Wrap(cerr, "closing inline dataset spill file")
	}
	defer os.Remove(path)

	createSQL := "CREATE OR REPLACE VIEW " + d.QuoteIdent(viewName) +
		" AS SELECT * FROM read_json_auto(" + d.QuoteLiteral(path) + ")"
	if err := database.Exec(ctx, createSQL); err != nil {
		return nil, errs.Wrap(err, "registering inline dataset view")
	}

	return dataframe.New(d, table.Schema, viewName), nil
}

// applyPipeline runs stages in order against df, compiling each stage's own
// expr.Node parameters (a Filter predicate, a Bin's extent, a Formula's
// value, ...) against cfg's already-resolved scopes before dispatching to
// the transform.* call the stage holds.
func applyPipeline(ctx context.Context, database *db, d dialect.Dialect, cfg *compile.Config, df *dataframe.Dataframe, pipeline taskgraph.Pipeline, signals map[string]value.Scalar) (*dataframe.Dataframe, error) {
	for _, stage := range pipeline {
		switch s := stage.(type) {
		case taskgraph.ExtentStage:
			df = transform.Extent(df, s.Field)
			sig, err := materializeExtentSignal(ctx, database, df)
			if err != nil {
				return nil, err
			}
			cfg.SignalScope[s.Signal] = sig
			signals[s.Signal] = sig
		case taskgraph.SignalRefStage:
			predicate, err := compile.Compile(s.Expr, cfg, df.Schema)
			if err != nil {
				return nil, errs.Wrap(err, "compiling pipeline predicate")
			}
			df = transform.Filter(df, predicate)
		case taskgraph.AggregateStage:
			df = transform.Aggregate(df, s.Groupby, s.Specs)
		case taskgraph.JoinAggregateStage:
			df = transform.JoinAggregate(df, s.Groupby, s.Specs)
		case taskgraph.BinStage:
			spec := s.Spec
			extent, err := compile.Compile(s.Extent, cfg, df.Schema)
			if err != nil {
				return nil, errs.Wrap(err, "compiling bin extent")
			}
			spec.Extent = extent
			df, _, err = transform.Bin(df, spec)
			if err != nil {
				return nil, errs.Wrap(err, "applying bin transform")
			}
		case taskgraph.StackStage:
			var err error
			df, err = transform.Stack(df, d, s.Spec)
			if err != nil {
				return nil, errs.Wrap(err, "applying stack transform")
			}
		case taskgraph.TimeUnitStage:
			df = transform.TimeUnit(df, s.Spec)
		case taskgraph.WindowStage:
			df = transform.Window(df, s.Spec)
		case taskgraph.PivotStage:
			df = transform.Pivot(df, s.Field, s.ValueField, s.Groupby, s.Keys, s.Op)
		case taskgraph.ImputeStage:
			fill, err := compile.Compile(s.FillValue, cfg, df.Schema)
			if err != nil {
				return nil, errs.Wrap(err, "compiling impute fill value")
			}
			df = transform.Impute(df, s.Field, s.Key, s.Groupby, fill)
		case taskgraph.ProjectStage:
			df = transform.Project(df, s.Fields)
		case taskgraph.CollectStage:
			df = transform.Collect(df, s.Fields, s.Ascending)
		case taskgraph.FormulaStage:
			val, err := compile.Compile(s.Val, cfg, df.Schema)
			if err != nil {
				return nil, errs.Wrap(err, "compiling formula value")
			}
			df = transform.Formula(df, s.As, val)
		case taskgraph.MarkEncodingStage:
			entries, err := compileEncodingEntries(s.Entries, cfg, df.Schema)
			if err != nil {
				return nil, err
			}
			df, err = transform.EvalEncoding(df, cfg, s.Channel, entries)
			if err != nil {
				return nil, errs.Wrapf(err, "applying mark encoding %q", s.Channel)
			}
		default:
			return nil, errs.New(errs.Internal, "unhandled pipeline stage %T", stage)
		}
	}
	return df, nil
}

// compileEncodingEntries compiles a MarkEncodingStage's uncompiled Test and
// Signal expr.Node fields down to transform.EncodingEntry's compile.Expr
// shape; a nil expr.Node field stays nil (an unconditional entry's Test, or
// an entry whose value comes from Field/Value instead of Signal).
func compileEncodingEntries(specs []taskgraph.EncodingEntrySpec, cfg *compile.Config, schema *arrow.Schema) ([]transform.EncodingEntry, error) {
	entries := make([]transform.EncodingEntry, len(specs))
	for i, s := range specs {
		entry := transform.EncodingEntry{
			Scale: s.Scale, ScaleOffset: s.ScaleOffset, HasOffset: s.HasOffset,
			Field: s.Field, HasValue: s.HasValue,
		}
		if s.Test != nil {
			test, err := compile.Compile(s.Test, cfg, schema)
			if err != nil {
				return nil, errs.Wrap(err, "compiling mark encoding test")
			}
			entry.Test = test
		}
		if s.Signal != nil {
			sig, err := compile.Compile(s.Signal, cfg, schema)
			if err != nil {
				return nil, errs.Wrap(err, "compiling mark encoding signal")
			}
			entry.Signal = sig
		}
		if s.HasValue && s.Value != nil {
			val, err := compile.Compile(s.Value, cfg, schema)
			if err != nil {
				return nil, errs.Wrap(err, "compiling mark encoding value")
			}
			if cv, ok := val.(*compile.ConstExpr); ok {
				entry.Value = cv.Value
			}
		}
		entries[i] = entry
	}
	return entries, nil
}

// materializeExtentSignal runs df (already the Extent-reshaped plan) and
// returns its single row's min and max as a two-element list scalar
// `[min, max]`, the value an Extent transform publishes under its signal
// name.
func materializeExtentSignal(ctx context.Context, database *db, df *dataframe.Dataframe) (value.Scalar, error) {
	table, err := runQuery(ctx, database, df)
	if err != nil {
		return value.Scalar{}, errs.Wrap(err, "evaluating extent")
	}
	defer table.Release()

	if len(table.Batches) == 0 || table.Batches[0].NumRows() == 0 {
		return value.NullUntyped(), nil
	}
	rec := table.Batches[0]
	pair := make([]value.Scalar, 2)
	for i, name := range []string{transform.ExtentMinCol, transform.ExtentMaxCol} {
		idx := table.Schema.FieldIndices(name)
		if len(idx) == 0 {
			return value.Scalar{}, errs.New(errs.Internal, "extent result has no %q column", name)
		}
		s, err := value.ScalarFromColumn(rec.Column(idx[0]), 0)
		if err != nil {
			return value.Scalar{}, errs.Wrap(err, "decoding extent result")
		}
		pair[i] = s
	}
	return value.Scalar{Kind: value.KindList, List: pair}, nil
}

// runQuery materializes df's rendered SQL into a *value.Table, the final
// step for every data task once its pipeline has been applied.
func runQuery(ctx context.Context, database *db, df *dataframe.Dataframe) (*value.Table, error) {
	sqlText, err := df.Render()
	if err != nil {
		return nil, errs.Wrap(err, "rendering dataset query")
	}
	return database.Query(ctx, sqlText)
}

// loadURL registers url as a view over the DuckDB reader table function
// matching format.Type (csv/tsv/json/parquet, defaulting to csv per §4.4's
// Vega default), probes the resulting schema, and returns a dataframe
// scanning that view by name.
func loadURL(ctx context.Context, database *db, d dialect.Dialect, viewName, url string, format value.Scalar) (*dataframe.Dataframe, error) {
	reader := readerFunction(format)
	createSQL := "CREATE OR REPLACE VIEW " + d.QuoteIdent(viewName) +
		" AS SELECT * FROM " + reader + "(" + d.QuoteLiteral(url) + ")"
	if err := database.Exec(ctx, createSQL); err != nil {
		return nil, errs.Wrapf(err, "registering url dataset %q", url)
	}

	probe, err := database.Query(ctx, "SELECT * FROM "+d.QuoteIdent(viewName)+" LIMIT 0")
	if err != nil {
		return nil, errs.Wrapf(err, "probing schema of url dataset %q", url)
	}
	defer probe.Release()

	return dataframe.New(d, probe.Schema, viewName), nil
}

// readerFunction picks the DuckDB table function for format's declared
// type. format is opaque to taskgraph; here its "type" field (when it is a
// struct scalar) names one of Vega's data format kinds.
func readerFunction(format value.Scalar) string {
	formatType := ""
	if format.Kind == value.KindStruct {
		for _, f := range format.Struct {
			if f.Name == "type" && f.Value.Kind == value.KindString {
				formatType = f.Value.Str
			}
		}
	}
	switch formatType {
	case "json":
		return "read_json_auto"
	case "parquet":
		return "read_parquet"
	default:
		return "read_csv_auto"
	}
}
