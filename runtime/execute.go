package runtime

import (
	"bytes"
	"context"
	"fmt"

	"github.com/klauspost/compress/zstd"
	"golang.org/x/sync/errgroup"

	"github.com/hugr-lab/vizql/compile"
	"github.com/hugr-lab/vizql/errs"
	"github.com/hugr-lab/vizql/internal/recovery"
	"github.com/hugr-lab/vizql/internal/txcontext"
	"github.com/hugr-lab/vizql/taskgraph"
	"github.com/hugr-lab/vizql/value"
)

// nodeResult is what evaluating one graph node produces: a scalar (Value,
// Signal tasks), a table (the three data task kinds), and — for a data
// task whose pipeline emits additional named signals (Extent and
// similar) — those signals, keyed by name, for downstream tasks that
// reference them by signal port.
type nodeResult struct {
	Scalar  *value.Scalar
	Table   *value.Table
	Signals map[string]value.Scalar
}

// Query implements §4.9 Execution: evaluates every node reachable from
// req.Indices (closure over Incoming edges) in toposort-respecting
// waves, fanning independent nodes within a wave out across an
// errgroup, then returns exactly one ResponseValue per requested index in
// request order. Any node's error aborts the whole query — no partial
// ResponseValues are exposed.
func (r *Runtime) Query(ctx context.Context, req QueryRequest) QueryResult {
	if req.Graph == nil {
		return QueryResult{Err: errs.New(errs.Specification, "query request has no task graph")}
	}
	graph := req.Graph

	needed := closure(graph, req.Indices)
	waves := wavefronts(graph, needed)

	results := make([]nodeResult, len(graph.Nodes))
	built := make([]bool, len(graph.Nodes))

	for _, wave := range waves {
		g, gctx := errgroup.WithContext(ctx)
		for _, idx := range wave {
			idx := idx
			g.Go(func() error {
				res, err := r.evalCached(gctx, graph, idx, results)
				if err != nil {
					return errs.Wrapf(err, "evaluating node %d (%s)", idx, graph.Nodes[idx].Task.Variable())
				}
				results[idx] = res
				built[idx] = true
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return QueryResult{Err: err}
		}
	}

	out := make([]ResponseValue, len(req.Indices))
	for i, idx := range req.Indices {
		if idx < 0 || idx >= len(graph.Nodes) || !built[idx] {
			return QueryResult{Err: errs.New(errs.Internal, "requested index %d was not evaluated", idx)}
		}
		res := results[idx]
		out[i] = ResponseValue{Index: idx, Scalar: res.Scalar, Table: res.Table}
	}
	return QueryResult{ResponseValues: out}
}

// closure returns every node index reachable from roots by walking
// Incoming edges backward, roots included.
func closure(graph *taskgraph.Graph, roots []int) map[int]bool {
	seen := make(map[int]bool, len(roots))
	var visit func(int)
	visit = func(i int) {
		if seen[i] {
			return
		}
		seen[i] = true
		for _, e := range graph.Nodes[i].Incoming {
			visit(e.Index)
		}
	}
	for _, i := range roots {
		if i >= 0 && i < len(graph.Nodes) {
			visit(i)
		}
	}
	return seen
}

// wavefronts buckets needed node indices into dependency levels: level 0
// has no needed dependency, level k depends only on levels < k. Incoming
// edges always name a strictly smaller index (Graph.Nodes is toposorted),
// so one left-to-right pass suffices to compute levels.
func wavefronts(graph *taskgraph.Graph, needed map[int]bool) [][]int {
	level := make([]int, len(graph.Nodes))
	maxLevel := 0
	for i := range graph.Nodes {
		if !needed[i] {
			continue
		}
		l := 0
		for _, e := range graph.Nodes[i].Incoming {
			if needed[e.Index] && level[e.Index]+1 > l {
				l = level[e.Index] + 1
			}
		}
		level[i] = l
		if l > maxLevel {
			maxLevel = l
		}
	}
	waves := make([][]int, maxLevel+1)
	for i := range graph.Nodes {
		if needed[i] {
			waves[level[i]] = append(waves[level[i]], i)
		}
	}
	return waves
}

// evalCached consults the runtime cache by (node, state fingerprint)
// before building a node, coalescing concurrent identical builds via the
// cache's singleflight group.
func (r *Runtime) evalCached(ctx context.Context, graph *taskgraph.Graph, idx int, results []nodeResult) (nodeResult, error) {
	node := graph.Nodes[idx]
	key := fmt.Sprintf("%d/%x", idx, uint64(node.StateFingerprint))

	v, err := r.cache.Build(key, isPinned(node.Task), func() (any, int64, error) {
		res, err := recovery.ToValue(r.logger, "eval:"+node.Task.Variable().String(), func() (nodeResult, error) {
			return r.evalNode(ctx, graph, node, results)
		})
		if err != nil {
			return nil, 0, err
		}
		return res, approximateSize(res), nil
	})
	if err != nil {
		return nodeResult{}, err
	}
	return v.(nodeResult), nil
}

// isPinned reports whether a node's result belongs in the protected
// cache tier: signals and values are cheap and frequently re-read, so
// they are pinned; datasets are probationary intermediates.
func isPinned(t taskgraph.Task) bool {
	switch t.Kind() {
	case taskgraph.KindValue, taskgraph.KindSignal:
		return true
	default:
		return false
	}
}

// approximateSize estimates a cache entry's footprint for memory-budget
// accounting. A table's size is the length of its zstd-compressed Arrow
// IPC encoding — cheap to compute and a much closer proxy for actual
// resident cost than counting rows, since wide string/list columns would
// otherwise be drastically under-counted. Encoding failures fall back to a
// per-row estimate rather than failing the whole build.
func approximateSize(res nodeResult) int64 {
	if res.Table == nil {
		return 64
	}
	var buf bytes.Buffer
	if err := res.Table.WriteIPC(&buf); err != nil {
		return res.Table.NumRows()*64 + 256
	}
	enc, err := zstd.NewWriter(nil)
	if err != nil {
		return int64(buf.Len())
	}
	defer enc.Close()
	return int64(len(enc.EncodeAll(buf.Bytes(), nil)))
}

// evalNode wires a node's already-evaluated dependencies into a fresh
// compile.Config scope and dispatches on task kind.
func (r *Runtime) evalNode(ctx context.Context, graph *taskgraph.Graph, node *taskgraph.Node, results []nodeResult) (nodeResult, error) {
	if reqID, ok := txcontext.RequestIDFromContext(ctx); ok {
		r.logger.Debug("evaluating node", "request_id", reqID, "variable", node.Task.Variable().String())
	}

	cfg := &compile.Config{
		SignalScope: map[string]value.Scalar{},
		DataScope:   map[string]*value.Table{},
		TZ:          r.tz,
	}

	inputVars := node.Task.InputVars()
	for i, iv := range inputVars {
		if i >= len(node.Incoming) {
			return nodeResult{}, errs.New(errs.Internal, "input var %s has no resolved edge", iv.Var)
		}
		edge := node.Incoming[i]
		src := results[edge.Index]

		if iv.Signal != "" {
			srcTask := graph.Nodes[edge.Index].Task
			outs := srcTask.OutputSignals()
			if edge.Signal < 0 || edge.Signal >= len(outs) {
				return nodeResult{}, errs.New(errs.Internal, "invalid signal port for %s", iv.Var)
			}
			name := outs[edge.Signal]
			sig, ok := src.Signals[name]
			if !ok {
				return nodeResult{}, errs.New(errs.Internal, "dependency %s did not emit signal %q", iv.Var, name)
			}
			cfg.SignalScope[iv.Var.Name] = sig
			continue
		}

		switch iv.Var.Namespace {
		case taskgraph.NamespaceSignal:
			if src.Scalar == nil {
				return nodeResult{}, errs.New(errs.Internal, "dependency %s produced no scalar", iv.Var)
			}
			cfg.SignalScope[iv.Var.Name] = *src.Scalar
		case taskgraph.NamespaceData:
			if src.Table == nil {
				return nodeResult{}, errs.New(errs.Internal, "dependency %s produced no table", iv.Var)
			}
			cfg.DataScope[iv.Var.Name] = src.Table
		}
	}

	switch t := node.Task.(type) {
	case *taskgraph.ValueTask:
		v := t.Value
		return nodeResult{Scalar: &v}, nil

	case *taskgraph.SignalTask:
		v, err := evalSignal(ctx, r.db, r.config.Dialect, cfg, t.Expr)
		if err != nil {
			return nodeResult{}, err
		}
		return nodeResult{Scalar: &v}, nil

	case *taskgraph.DataValuesTask:
		return r.evalDataValues(ctx, cfg, node, t)

	case *taskgraph.DataUrlTask:
		return r.evalDataURL(ctx, cfg, node, t)

	case *taskgraph.DataSourceTask:
		return r.evalDataSource(ctx, cfg, node, t)

	default:
		return nodeResult{}, errs.New(errs.Internal, "unhandled task kind %T", t)
	}
}

func viewNameFor(node *taskgraph.Node) string {
	return "vz_" + node.ID.String()[:8] + "_" + node.Task.Variable().Name
}

// evalDataValues registers the task's inline table as a view, runs its
// pipeline, and materializes the result.
func (r *Runtime) evalDataValues(ctx context.Context, cfg *compile.Config, node *taskgraph.Node, t *taskgraph.DataValuesTask) (nodeResult, error) {
	if t.Values == nil {
		return nodeResult{}, errs.New(errs.Specification, "data values task %s has no table", t.Variable())
	}
	df, err := registerTable(ctx, r.db, r.config.Dialect, viewNameFor(node), t.Values)
	if err != nil {
		return nodeResult{}, err
	}
	signals := map[string]value.Scalar{}
	df, err = applyPipeline(ctx, r.db, r.config.Dialect, cfg, df, t.Pipeline, signals)
	if err != nil {
		return nodeResult{}, err
	}
	table, err := runQuery(ctx, r.db, df)
	if err != nil {
		return nodeResult{}, err
	}
	return nodeResult{Table: table, Signals: signals}, nil
}

// evalDataURL resolves the task's URL (literal or a signal expression),
// loads it through DuckDB's own format-detecting table functions, then
// runs its pipeline exactly like evalDataValues.
func (r *Runtime) evalDataURL(ctx context.Context, cfg *compile.Config, node *taskgraph.Node, t *taskgraph.DataUrlTask) (nodeResult, error) {
	url := t.URLLiteral
	if t.URL != nil {
		v, err := evalSignal(ctx, r.db, r.config.Dialect, cfg, t.URL)
		if err != nil {
			return nodeResult{}, errs.Wrap(err, "resolving data url")
		}
		url = v.ToString()
	}
	if url == "" {
		return nodeResult{}, errs.New(errs.Specification, "data url task %s resolved to an empty url", t.Variable())
	}

	df, err := loadURL(ctx, r.db, r.config.Dialect, viewNameFor(node), url, t.Format)
	if err != nil {
		return nodeResult{}, err
	}
	signals := map[string]value.Scalar{}
	df, err = applyPipeline(ctx, r.db, r.config.Dialect, cfg, df, t.Pipeline, signals)
	if err != nil {
		return nodeResult{}, err
	}
	table, err := runQuery(ctx, r.db, df)
	if err != nil {
		return nodeResult{}, err
	}
	return nodeResult{Table: table, Signals: signals}, nil
}

// evalDataSource runs the task's pipeline against the already-resolved
// upstream table named by t.Source. An empty pipeline is a pure
// passthrough: no extra database round trip is spent re-registering a
// table nothing will reshape.
func (r *Runtime) evalDataSource(ctx context.Context, cfg *compile.Config, node *taskgraph.Node, t *taskgraph.DataSourceTask) (nodeResult, error) {
	source, ok := cfg.DataScope[t.Source]
	if !ok {
		return nodeResult{}, errs.New(errs.Internal, "data source task %s: upstream dataset %q not resolved", t.Variable(), t.Source)
	}
	if len(t.Pipeline) == 0 {
		return nodeResult{Table: source.Retain()}, nil
	}

	df, err := registerTable(ctx, r.db, r.config.Dialect, viewNameFor(node), source)
	if err != nil {
		return nodeResult{}, err
	}
	signals := map[string]value.Scalar{}
	df, err = applyPipeline(ctx, r.db, r.config.Dialect, cfg, df, t.Pipeline, signals)
	if err != nil {
		return nodeResult{}, err
	}
	table, err := runQuery(ctx, r.db, df)
	if err != nil {
		return nodeResult{}, err
	}
	return nodeResult{Table: table, Signals: signals}, nil
}
