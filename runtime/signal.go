package runtime

import (
	"context"

	"github.com/apache/arrow-go/v18/arrow"

	"github.com/hugr-lab/vizql/compile"
	"github.com/hugr-lab/vizql/dialect"
	"github.com/hugr-lab/vizql/errs"
	"github.com/hugr-lab/vizql/expr"
	"github.com/hugr-lab/vizql/value"
)

// emptyRowSchema is the schema a signal expression compiles against: no
// datum, since a signal has no enclosing row, only other signals.
var emptyRowSchema = arrow.NewSchema(nil, nil)

// evalSignal compiles e against the signals already resolved in cfg, renders
// it through d, and asks the database for the resulting literal by running
// it as a one-row, no-table SELECT — the same compile+render path every
// per-row expression takes, just without a FROM clause.
func evalSignal(ctx context.Context, database *db, d dialect.Dialect, cfg *compile.Config, e expr.Node) (value.Scalar, error) {
	compiled, err := compile.Compile(e, cfg, emptyRowSchema)
	if err != nil {
		return value.Scalar{}, errs.Wrap(err, "compiling signal expression")
	}
	sqlExpr, err := dialect.Render(compiled, d)
	if err != nil {
		return value.Scalar{}, errs.Wrap(err, "rendering signal expression")
	}

	table, err := database.Query(ctx, "SELECT ("+sqlExpr+") AS value")
	if err != nil {
		return value.Scalar{}, errs.Wrap(err, "evaluating signal expression")
	}
	defer table.Release()

	if len(table.Batches) == 0 || table.Batches[0].NumRows() == 0 {
		return value.NullUntyped(), nil
	}
	return value.ScalarFromColumn(table.Batches[0].Column(0), 0)
}
