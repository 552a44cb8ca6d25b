// Package testutils provides deterministic test doubles for the
// conversion pipeline, decoupling engine and unit tests from the
// external tool's availability.
package testutils

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"

	"github.com/dcmio/dcmflow/internal/ports"
)

// FakeConverter implements the Converter interface with scripted
// per-directory outcomes for consistent testing. Directories without a
// script entry succeed with a derived single-volume result, so most
// tests only script the interesting cases.
type FakeConverter struct {
	mu sync.Mutex
	// outcomes maps source directories to scripted results or errors.
	outcomes map[string]ScriptedOutcome
	// calls records every request in invocation order.
	calls []ports.ConversionRequest
}

// ScriptedOutcome defines a pre-configured outcome for one source
// directory.
type ScriptedOutcome struct {
	// Result is returned when Err is nil. Nil means a derived default
	// result.
	Result *ports.ConversionResult
	// Err fails the conversion for this directory.
	Err error
	// Block makes the call wait for context cancellation, for
	// cancellation tests.
	Block bool
}

// NewFakeConverter creates a FakeConverter with no scripted outcomes;
// every conversion succeeds with a derived result.
func NewFakeConverter() *FakeConverter {
	return &FakeConverter{outcomes: make(map[string]ScriptedOutcome)}
}

// Script registers the outcome for one source directory, replacing any
// previous entry.
func (f *FakeConverter) Script(sourceDir string, outcome ScriptedOutcome) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.outcomes[sourceDir] = outcome
}

// FailOn makes conversions of the given directory fail with err.
func (f *FakeConverter) FailOn(sourceDir string, err error) {
	f.Script(sourceDir, ScriptedOutcome{Err: err})
}

// Convert returns the scripted outcome for the request's source
// directory, or a derived default result.
func (f *FakeConverter) Convert(ctx context.Context, req ports.ConversionRequest) (*ports.ConversionResult, error) {
	f.mu.Lock()
	f.calls = append(f.calls, req)
	outcome, scripted := f.outcomes[req.SourceDir]
	f.mu.Unlock()

	if scripted && outcome.Block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if scripted && outcome.Err != nil {
		return nil, outcome.Err
	}
	if scripted && outcome.Result != nil {
		return outcome.Result, nil
	}
	return DerivedResult(req), nil
}

// Calls returns a copy of every received request in invocation order.
func (f *FakeConverter) Calls() []ports.ConversionRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	calls := make([]ports.ConversionRequest, len(f.calls))
	copy(calls, f.calls)
	return calls
}

// CallCount returns the number of received requests.
func (f *FakeConverter) CallCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

// DerivedResult builds the default successful result for a request: one
// converted volume named after the source directory, with reoriented
// variants matching the request flags.
func DerivedResult(req ports.ConversionRequest) *ports.ConversionResult {
	base := filepath.Base(req.SourceDir)
	volume := filepath.Join(req.OutputDir, base+".nii.gz")

	result := &ports.ConversionResult{
		ConvertedFiles:       []string{volume},
		FilledConvertedFiles: []string{filepath.Join(req.OutputDir, fmt.Sprintf("filled_%s.json", base))},
	}
	if req.Reorient {
		result.ReorientedFiles = []string{filepath.Join(req.OutputDir, "o"+base+".nii.gz")}
	}
	if req.ReorientAndCrop {
		result.ReorientedAndCroppedFiles = []string{filepath.Join(req.OutputDir, "co"+base+".nii.gz")}
	}
	return result
}

// Compile-time verification that FakeConverter implements Converter.
var _ ports.Converter = (*FakeConverter)(nil)
