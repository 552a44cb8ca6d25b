package application

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dcmio/dcmflow/internal/domain"
)

// stubUnit is a minimal in-process unit for engine tests: it echoes the
// processed directory into its single output and fails on demand.
type stubUnit struct {
	schema *domain.PortSchema

	mu sync.Mutex
	// failOn maps source directories to the error they produce.
	failOn map[string]error
	// blockOn names a directory whose invocation waits for cancellation.
	blockOn string
	seen    []string
}

func newStubUnit(t *testing.T) *stubUnit {
	t.Helper()
	schema := domain.NewPortSchema("converter")
	require.NoError(t, schema.Declare("source_dir", domain.DirectionInput, domain.CardinalityIterative))
	require.NoError(t, schema.Declare("output_directory", domain.DirectionInput, domain.CardinalityScalar,
		domain.WithDefault("/tmp/out")))
	require.NoError(t, schema.Declare("converted_files", domain.DirectionOutput, domain.CardinalityIterative))
	return &stubUnit{schema: schema, failOn: make(map[string]error)}
}

func (s *stubUnit) Name() string { return "converter" }

func (s *stubUnit) Schema() *domain.PortSchema { return s.schema }

func (s *stubUnit) Validate() error { return nil }

func (s *stubUnit) Invoke(ctx context.Context, scalars, item domain.Values) (domain.Values, error) {
	dir, _ := domain.Get(item, domain.KeySourceDir)
	index, _ := domain.Get(item, domain.KeyItemIndex)

	s.mu.Lock()
	s.seen = append(s.seen, dir)
	failErr := s.failOn[dir]
	block := s.blockOn == dir
	s.mu.Unlock()

	if block {
		<-ctx.Done()
		return domain.Values{}, &domain.CollaboratorError{Index: index, Unit: "converter", Err: ctx.Err()}
	}
	if failErr != nil {
		return domain.Values{}, &domain.CollaboratorError{Index: index, Unit: "converter", Err: failErr}
	}

	out, _ := domain.Get(scalars, domain.KeyOutputDirectory)
	return domain.With(domain.NewValues(), domain.KeyConvertedFiles,
		[]string{fmt.Sprintf("%s/%s.nii.gz", out, dir)}), nil
}

func (s *stubUnit) calls() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	calls := make([]string, len(s.seen))
	copy(calls, s.seen)
	return calls
}

// engineGraph wires the stub unit to the test boundary.
func engineGraph(t *testing.T, unit *stubUnit) *ResolvedGraph {
	t.Helper()
	boundary := domain.NewPortSchema("pipeline")
	require.NoError(t, boundary.Declare("source_dirs", domain.DirectionInput, domain.CardinalityIterative))
	require.NoError(t, boundary.Declare("output_directory", domain.DirectionInput, domain.CardinalityScalar,
		domain.WithDefault("")))
	require.NoError(t, boundary.Declare("converted_files", domain.DirectionOutput, domain.CardinalityIterative))

	graph, err := Resolve([]domain.Link{
		link(t, "source_dirs", "converter.source_dir"),
		link(t, "output_directory", "converter.output_directory"),
		link(t, "converter.converted_files", "converted_files"),
	}, boundary, map[string]*domain.PortSchema{"converter": unit.schema})
	require.NoError(t, err)
	return graph
}

func boundaryValues(dirs []string, outDir string) domain.Values {
	values := domain.NewValues().WithRaw("source_dirs", dirs)
	if outDir != "" {
		values = values.WithRaw("output_directory", outDir)
	}
	return values
}

func TestEngineRecordsPartialFailures(t *testing.T) {
	unit := newStubUnit(t)
	unit.failOn["/data/s2"] = errors.New("conversion tool crashed")
	graph := engineGraph(t, unit)

	result, err := NewEngine().Run(context.Background(), unit, graph,
		boundaryValues([]string{"/data/s1", "/data/s2", "/data/s3"}, "/out"))
	require.NoError(t, err)

	assert.Equal(t, 3, result.N)
	assert.Equal(t, []int{0, 2}, result.Successes)
	require.Len(t, result.Failures, 1)
	assert.Equal(t, 1, result.Failures[0].Index)

	var collab *domain.CollaboratorError
	require.ErrorAs(t, result.Failures[0].Cause, &collab)
	assert.Equal(t, 1, collab.Index)
	assert.Equal(t, "converter", collab.Unit)

	// The failed index leaves a gap; its neighbors keep their positions.
	_, ok := result.Output("converted_files", 1)
	assert.False(t, ok)
	first, ok := result.Output("converted_files", 0)
	require.True(t, ok)
	assert.Equal(t, []string{"/out//data/s1.nii.gz"}, first)

	assert.True(t, result.Complete())
	assert.Equal(t, []string{"/data/s1", "/data/s2", "/data/s3"}, unit.calls())
}

func TestEngineDrivingListLengthMismatch(t *testing.T) {
	unit := newStubUnit(t)
	require.NoError(t, unit.schema.Declare("extra", domain.DirectionInput, domain.CardinalityIterative))

	boundary := domain.NewPortSchema("pipeline")
	require.NoError(t, boundary.Declare("source_dirs", domain.DirectionInput, domain.CardinalityIterative))
	require.NoError(t, boundary.Declare("extras", domain.DirectionInput, domain.CardinalityIterative))
	require.NoError(t, boundary.Declare("converted_files", domain.DirectionOutput, domain.CardinalityIterative))

	graph, err := Resolve([]domain.Link{
		link(t, "source_dirs", "converter.source_dir"),
		link(t, "extras", "converter.extra"),
		link(t, "converter.converted_files", "converted_files"),
	}, boundary, map[string]*domain.PortSchema{"converter": unit.schema})
	require.NoError(t, err)

	values := domain.NewValues().
		WithRaw("source_dirs", []string{"/data/s1", "/data/s2", "/data/s3"}).
		WithRaw("extras", []string{"a", "b"})

	result, err := NewEngine().Run(context.Background(), unit, graph, values)
	require.Error(t, err)
	assert.Nil(t, result)

	var mismatchErr *domain.DrivingListLengthMismatchError
	require.ErrorAs(t, err, &mismatchErr)
	assert.Equal(t, map[string]int{"source_dirs": 3, "extras": 2}, mismatchErr.Lengths)

	// The whole run fails before any invocation.
	assert.Empty(t, unit.calls())
}

func TestEngineEmptyDrivingList(t *testing.T) {
	unit := newStubUnit(t)
	graph := engineGraph(t, unit)

	result, err := NewEngine().Run(context.Background(), unit, graph,
		boundaryValues([]string{}, ""))
	require.NoError(t, err)

	assert.Equal(t, 0, result.N)
	assert.Empty(t, result.Successes)
	assert.Empty(t, result.Failures)
	assert.True(t, result.Complete())
	assert.Empty(t, unit.calls())
}

func TestEngineScalarDefaultPrecedence(t *testing.T) {
	unit := newStubUnit(t)
	graph := engineGraph(t, unit)

	// Nothing bound to output_directory: the boundary default ("")
	// wins over the unit default ("/tmp/out") because the port is linked.
	result, err := NewEngine().Run(context.Background(), unit, graph,
		boundaryValues([]string{"/data/s1"}, ""))
	require.NoError(t, err)

	first, ok := result.Output("converted_files", 0)
	require.True(t, ok)
	assert.Equal(t, []string{"//data/s1.nii.gz"}, first)
}

func TestEngineParallelMatchesSequential(t *testing.T) {
	dirs := make([]string, 16)
	for i := range dirs {
		dirs[i] = fmt.Sprintf("/data/s%02d", i)
	}

	sequentialUnit := newStubUnit(t)
	sequentialUnit.failOn["/data/s05"] = errors.New("boom")
	seqResult, err := NewEngine().Run(context.Background(), sequentialUnit,
		engineGraph(t, sequentialUnit), boundaryValues(dirs, "/out"))
	require.NoError(t, err)

	parallelUnit := newStubUnit(t)
	parallelUnit.failOn["/data/s05"] = errors.New("boom")
	parResult, err := NewEngine(WithWorkers(4)).Run(context.Background(), parallelUnit,
		engineGraph(t, parallelUnit), boundaryValues(dirs, "/out"))
	require.NoError(t, err)

	assert.Equal(t, seqResult.Successes, parResult.Successes)
	assert.Equal(t, seqResult.FailedIndices(), parResult.FailedIndices())
	for i := range dirs {
		seqOut, seqOK := seqResult.Output("converted_files", i)
		parOut, parOK := parResult.Output("converted_files", i)
		assert.Equal(t, seqOK, parOK, "index %d", i)
		assert.Equal(t, seqOut, parOut, "index %d", i)
	}
}

func TestEngineCancellationYieldsPartialResult(t *testing.T) {
	unit := newStubUnit(t)
	unit.blockOn = "/data/s2"
	graph := engineGraph(t, unit)

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(50*time.Millisecond, cancel)

	result, err := NewEngine().Run(ctx, unit, graph,
		boundaryValues([]string{"/data/s1", "/data/s2", "/data/s3"}, "/out"))
	require.ErrorIs(t, err, context.Canceled)
	require.NotNil(t, result)

	// The first item finished, the second failed on cancellation, and
	// the third was never attempted.
	assert.Equal(t, []int{0}, result.Successes)
	assert.Equal(t, []int{1}, result.FailedIndices())
	assert.False(t, result.Complete())
	assert.Equal(t, []string{"/data/s1", "/data/s2"}, unit.calls())
}
