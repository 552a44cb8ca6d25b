package domain

import (
	"fmt"
	"sort"
)

// ItemFailure records the failure of a single driving-list element.
type ItemFailure struct {
	// Index is the driving-list position of the failed item.
	Index int

	// Cause is the error that failed the item, normally a
	// *CollaboratorError.
	Cause error
}

// String renders the failure for summaries and logs.
func (f ItemFailure) String() string {
	return fmt.Sprintf("item %d: %v", f.Index, f.Cause)
}

// RunResult is the outcome of one iterative run over an N-element driving
// list. Every output list has length N with an explicit nil gap at each
// failed or un-attempted index; a failed index never causes a silent
// shift of later results.
//
// For a run that was not cancelled, every index appears in exactly one of
// Successes and Failures. A cancelled run covers only the attempted
// indices: the rest appear in neither set, so callers can distinguish
// "not attempted" from "failed".
type RunResult struct {
	// RunID uniquely identifies this run for correlation with artifacts
	// and metrics.
	RunID string

	// N is the driving-list length the run was assembled for.
	N int

	// Successes lists the indices that completed, ascending.
	Successes []int

	// Failures lists the per-item failures, ascending by index.
	Failures []ItemFailure

	// Outputs maps each boundary output port name to its index-aligned
	// column of per-item values. A nil cell marks a gap.
	Outputs map[string][]any
}

// NewRunResult creates an empty result sized for an N-element driving
// list, with a gap-filled column per output name.
func NewRunResult(runID string, n int, outputNames []string) *RunResult {
	outputs := make(map[string][]any, len(outputNames))
	for _, name := range outputNames {
		outputs[name] = make([]any, n)
	}
	return &RunResult{
		RunID:   runID,
		N:       n,
		Outputs: outputs,
	}
}

// RecordSuccess marks index i as succeeded and scatters each produced
// output value into its column at position i. Output names without a
// declared column are ignored.
func (r *RunResult) RecordSuccess(i int, outputs map[string]any) {
	r.Successes = append(r.Successes, i)
	for name, value := range outputs {
		if column, ok := r.Outputs[name]; ok {
			column[i] = value
		}
	}
}

// RecordFailure marks index i as failed, leaving the gap in every output
// column.
func (r *RunResult) RecordFailure(i int, cause error) {
	r.Failures = append(r.Failures, ItemFailure{Index: i, Cause: cause})
}

// Normalize sorts successes and failures by index. The engine calls it
// once after a parallel run, where completion order is not arrival order.
func (r *RunResult) Normalize() {
	sort.Ints(r.Successes)
	sort.Slice(r.Failures, func(a, b int) bool {
		return r.Failures[a].Index < r.Failures[b].Index
	})
}

// Succeeded reports whether index i completed successfully.
func (r *RunResult) Succeeded(i int) bool {
	for _, s := range r.Successes {
		if s == i {
			return true
		}
	}
	return false
}

// FailedIndices returns the failed indices, ascending.
func (r *RunResult) FailedIndices() []int {
	indices := make([]int, len(r.Failures))
	for i, f := range r.Failures {
		indices[i] = f.Index
	}
	sort.Ints(indices)
	return indices
}

// Complete reports whether every index was attempted: a complete run has
// len(Successes)+len(Failures) == N. A cancelled run is incomplete.
func (r *RunResult) Complete() bool {
	return len(r.Successes)+len(r.Failures) == r.N
}

// Output returns the value at index i of the named output column.
// The second result is false when the column does not exist or the cell
// is a gap.
func (r *RunResult) Output(name string, i int) (any, bool) {
	column, ok := r.Outputs[name]
	if !ok || i < 0 || i >= len(column) || column[i] == nil {
		return nil, false
	}
	return column[i], true
}

// String summarizes the run for logs.
func (r *RunResult) String() string {
	return fmt.Sprintf("run %s: %d/%d succeeded, %d failed",
		r.RunID, len(r.Successes), r.N, len(r.Failures))
}
