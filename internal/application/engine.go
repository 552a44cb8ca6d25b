package application

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/dcmio/dcmflow/internal/domain"
	"github.com/dcmio/dcmflow/internal/ports"
)

// Engine drives the iterative stage of a pipeline: it assembles scalar
// inputs once, projects each driving-list element through the resolved
// links, invokes the unit once per index, and collects every declared
// output into an index-aligned column.
//
// The reference behavior is strictly sequential, index-ascending
// invocation. An optional bounded worker pool parallelizes invocations
// across indices; each index is independent, and results are placed by
// original position, so completion order is never observable in the
// output ordering.
type Engine struct {
	// pipeline names the owning pipeline for metric labels and spans.
	pipeline string
	// workers bounds concurrent invocations. 1 means sequential.
	workers int
	// metrics optionally receives per-item and per-run measurements.
	metrics ports.MetricsCollector
	// tracer is the OpenTelemetry tracer for observability.
	tracer trace.Tracer
}

// EngineOption customizes engine construction.
type EngineOption func(*Engine)

// WithWorkers bounds the number of concurrent unit invocations.
// Values below 2 keep the reference sequential behavior. The external
// converter is a process-level resource, so callers should size the
// pool to what the tool tolerates.
func WithWorkers(n int) EngineOption {
	return func(e *Engine) {
		if n > 1 {
			e.workers = n
		}
	}
}

// WithMetrics attaches a metrics collector receiving per-item counters,
// duration histograms, and the driving-list length gauge.
func WithMetrics(collector ports.MetricsCollector) EngineOption {
	return func(e *Engine) { e.metrics = collector }
}

// WithPipelineName sets the pipeline label used in metrics and spans.
func WithPipelineName(name string) EngineOption {
	return func(e *Engine) { e.pipeline = name }
}

// NewEngine creates an iteration engine. Without options it runs
// sequentially with no metrics, matching the reference behavior.
func NewEngine(opts ...EngineOption) *Engine {
	engine := &Engine{
		pipeline: "pipeline",
		workers:  1,
		tracer:   otel.Tracer("iteration-engine"),
	}
	for _, opt := range opts {
		opt(engine)
	}
	return engine
}

// Run executes the unit once per driving-list index against the
// resolved graph, using the boundary values the caller bound to the
// pipeline's input ports.
//
// Per-item failures are recorded against their index and never abort
// the batch. A cancelled run stops scheduling new indices and still
// returns a valid partial RunResult alongside the context error;
// indices never attempted appear in neither the success nor the failure
// set. Driving-list length mismatches fail the whole run before any
// invocation, with no partial result.
func (e *Engine) Run(ctx context.Context, unit ports.Unit, graph *ResolvedGraph, boundary domain.Values) (*domain.RunResult, error) {
	runID := uuid.NewString()
	ctx, span := e.tracer.Start(ctx, "Engine.Run",
		trace.WithAttributes(
			attribute.String("pipeline.name", e.pipeline),
			attribute.String("pipeline.unit", unit.Name()),
			attribute.String("pipeline.run_id", runID),
			attribute.Int("pipeline.workers", e.workers),
		),
	)
	defer span.End()

	start := time.Now()

	scalars, drivingLists, err := e.assembleInputs(unit.Name(), graph, boundary)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	n, err := commonLength(drivingLists)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	span.SetAttributes(attribute.Int("pipeline.driving_list_length", n))
	e.recordGauge("pipeline_driving_list_length", float64(n))

	result := domain.NewRunResult(runID, n, graph.boundary.PortNames(domain.DirectionOutput))
	outputBindings := graph.OutputBindings()

	if e.workers > 1 {
		e.runParallel(ctx, unit, result, scalars, drivingLists, outputBindings, n)
	} else {
		e.runSequential(ctx, unit, result, scalars, drivingLists, outputBindings, n)
	}

	result.Normalize()

	span.SetAttributes(
		attribute.Int("pipeline.successes", len(result.Successes)),
		attribute.Int("pipeline.failures", len(result.Failures)),
	)
	e.recordLatency("run", time.Since(start))

	if ctx.Err() != nil && !result.Complete() {
		// Aborted: the result covers attempted indices only.
		return result, ctx.Err()
	}
	return result, nil
}

// runSequential is the reference index-ascending loop.
func (e *Engine) runSequential(
	ctx context.Context,
	unit ports.Unit,
	result *domain.RunResult,
	scalars domain.Values,
	drivingLists map[string]drivingList,
	outputBindings []OutputBinding,
	n int,
) {
	for i := 0; i < n; i++ {
		if ctx.Err() != nil {
			return
		}
		outputs, err := e.invokeOne(ctx, unit, scalars, drivingLists, outputBindings, i)
		if err != nil {
			result.RecordFailure(i, err)
			continue
		}
		result.RecordSuccess(i, outputs)
	}
}

// runParallel fans indices out over a bounded worker pool. Output
// placement is keyed by original index, so ordering is deterministic
// regardless of completion order.
func (e *Engine) runParallel(
	ctx context.Context,
	unit ports.Unit,
	result *domain.RunResult,
	scalars domain.Values,
	drivingLists map[string]drivingList,
	outputBindings []OutputBinding,
	n int,
) {
	var mu sync.Mutex
	group := &errgroup.Group{}
	group.SetLimit(e.workers)

	for i := 0; i < n; i++ {
		if ctx.Err() != nil {
			break
		}
		i := i
		group.Go(func() error {
			if ctx.Err() != nil {
				// Scheduled but never started: leave the index
				// un-attempted so callers can tell it apart from a
				// failure.
				return nil
			}
			outputs, err := e.invokeOne(ctx, unit, scalars, drivingLists, outputBindings, i)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				result.RecordFailure(i, err)
				return nil
			}
			result.RecordSuccess(i, outputs)
			return nil
		})
	}

	// Per-item errors are recorded, never returned, so Wait cannot fail.
	_ = group.Wait()
}

// invokeOne assembles the item values for index i, invokes the unit,
// and projects the produced values onto the boundary output names.
func (e *Engine) invokeOne(
	ctx context.Context,
	unit ports.Unit,
	scalars domain.Values,
	drivingLists map[string]drivingList,
	outputBindings []OutputBinding,
	i int,
) (map[string]any, error) {
	item := domain.With(domain.NewValues(), domain.KeyItemIndex, i)
	for port, list := range drivingLists {
		item = item.WithRaw(port, list.values[i])
	}

	start := time.Now()
	produced, err := unit.Invoke(ctx, scalars, item)
	e.recordItem(unit.Name(), time.Since(start), err)

	if err != nil {
		var collab *domain.CollaboratorError
		if !errors.As(err, &collab) {
			// Units normally classify their own failures; anything else
			// is still confined to this index.
			err = &domain.CollaboratorError{Index: i, Unit: unit.Name(), Err: err}
		}
		return nil, err
	}

	outputs := make(map[string]any, len(outputBindings))
	for _, binding := range outputBindings {
		if value, ok := produced.GetRaw(binding.Source.Port); ok {
			outputs[binding.Boundary] = value
		}
	}
	return outputs, nil
}

// drivingList pairs the projected element values of one iterative unit
// input with the boundary port they came from, for error reporting.
type drivingList struct {
	boundaryPort string
	values       []any
}

// assembleInputs splits the caller-bound boundary values into the
// run-invariant scalar set and the per-index driving lists, applying
// boundary and unit defaults for scalar ports nothing was bound to.
func (e *Engine) assembleInputs(
	unitName string,
	graph *ResolvedGraph,
	boundary domain.Values,
) (domain.Values, map[string]drivingList, error) {
	scalars := domain.NewValues()
	drivingLists := make(map[string]drivingList)

	for _, binding := range graph.UnitInputBindings(unitName) {
		if binding.Port.Cardinality == domain.CardinalityIterative {
			// Defaults are scalar-only, so an iterative input always
			// has a source link once resolution succeeded.
			raw, ok := boundary.GetRaw(binding.Source.Port)
			if !ok {
				return domain.Values{}, nil, fmt.Errorf(
					"iterative input %q: no value bound to boundary port %q",
					binding.Port.Name, binding.Source.Port)
			}
			values, err := asList(raw)
			if err != nil {
				return domain.Values{}, nil, fmt.Errorf(
					"iterative input %q: boundary port %q: %w",
					binding.Port.Name, binding.Source.Port, err)
			}
			drivingLists[binding.Port.Name] = drivingList{
				boundaryPort: binding.Source.Port,
				values:       values,
			}
			continue
		}

		value, ok := e.scalarValue(graph, boundary, binding)
		if !ok {
			return domain.Values{}, nil, fmt.Errorf(
				"scalar input %q on unit %q has no bound value and no default",
				binding.Port.Name, unitName)
		}
		scalars = scalars.WithRaw(binding.Port.Name, value)
	}

	return scalars, drivingLists, nil
}

// scalarValue picks the value for one scalar unit input. Precedence:
// caller-bound boundary value, boundary port default, unit port default.
func (e *Engine) scalarValue(graph *ResolvedGraph, boundary domain.Values, binding InputBinding) (any, bool) {
	if binding.HasSource {
		if value, ok := boundary.GetRaw(binding.Source.Port); ok {
			return value, true
		}
		if value, ok := graph.boundary.Default(binding.Source.Port); ok {
			return value, true
		}
	}
	if binding.Port.HasDefault {
		return binding.Port.Default, true
	}
	return nil, false
}

// commonLength verifies all driving lists share one length N and
// returns it. An empty map yields zero, the trivially successful run.
func commonLength(drivingLists map[string]drivingList) (int, error) {
	n := -1
	mismatch := false
	lengths := make(map[string]int, len(drivingLists))
	for _, list := range drivingLists {
		lengths[list.boundaryPort] = len(list.values)
		if n == -1 {
			n = len(list.values)
		} else if len(list.values) != n {
			mismatch = true
		}
	}
	if mismatch {
		return 0, &domain.DrivingListLengthMismatchError{Lengths: lengths}
	}
	if n == -1 {
		n = 0
	}
	return n, nil
}

// asList converts a caller-bound driving list into []any, accepting any
// slice or array type so callers can bind []string directly.
func asList(raw any) ([]any, error) {
	if raw == nil {
		return nil, fmt.Errorf("expected a list, got nil")
	}
	if values, ok := raw.([]any); ok {
		return values, nil
	}
	v := reflect.ValueOf(raw)
	if v.Kind() != reflect.Slice && v.Kind() != reflect.Array {
		return nil, fmt.Errorf("expected a list, got %T", raw)
	}
	values := make([]any, v.Len())
	for i := 0; i < v.Len(); i++ {
		values[i] = v.Index(i).Interface()
	}
	return values, nil
}

// recordItem emits the per-item counter and duration histogram.
func (e *Engine) recordItem(unit string, duration time.Duration, err error) {
	if e.metrics == nil {
		return
	}
	status := "success"
	if err != nil {
		status = "failure"
	}
	labels := map[string]string{"pipeline": e.pipeline, "unit": unit, "status": status}
	e.metrics.RecordCounter("pipeline_items_total", 1, labels)
	e.metrics.RecordHistogram("pipeline_item_duration_seconds", duration.Seconds(), labels)
}

func (e *Engine) recordGauge(metric string, value float64) {
	if e.metrics == nil {
		return
	}
	e.metrics.RecordGauge(metric, value, map[string]string{"pipeline": e.pipeline})
}

func (e *Engine) recordLatency(operation string, duration time.Duration) {
	if e.metrics == nil {
		return
	}
	e.metrics.RecordLatency(operation, duration, map[string]string{"pipeline": e.pipeline})
}
