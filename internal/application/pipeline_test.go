package application

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dcmio/dcmflow/internal/domain"
	"github.com/dcmio/dcmflow/internal/testutils"
)

const pipelineDoc = `
version: "1.0.0"
metadata:
  name: dicom2nifti-test
units:
  - id: converter
    type: dicom_converter
    parameters:
      reorient: true
      reorient_and_crop: false
ports:
  inputs:
    - name: source_dirs
      cardinality: iterative
    - name: output_directory
      cardinality: scalar
      default: "/out"
  outputs:
    - name: converted_files
      cardinality: iterative
    - name: reoriented_files
      cardinality: iterative
links:
  - source: source_dirs
    destination: converter.source_dir
  - source: output_directory
    destination: converter.output_directory
  - source: converter.converted_files
    destination: converted_files
  - source: converter.reoriented_files
    destination: reoriented_files
`

func loadTestPipeline(t *testing.T, doc string, converter *testutils.FakeConverter) *Pipeline {
	t.Helper()
	loader, err := NewPipelineLoader(NewDefaultUnitRegistry(converter))
	require.NoError(t, err)

	pipeline, err := loader.LoadFromReader(strings.NewReader(doc))
	require.NoError(t, err)
	return pipeline
}

func TestPipelineRunCollectsOutputs(t *testing.T) {
	converter := testutils.NewFakeConverter()
	pipeline := loadTestPipeline(t, pipelineDoc, converter)

	result, err := pipeline.Run(context.Background(), map[string]any{
		"source_dirs": []string{"/data/s1", "/data/s2"},
	})
	require.NoError(t, err)

	assert.Equal(t, 2, result.N)
	assert.Equal(t, []int{0, 1}, result.Successes)
	assert.True(t, result.Complete())

	first, ok := result.Output("converted_files", 0)
	require.True(t, ok)
	assert.Equal(t, []string{"/out/s1_000/s1.nii.gz"}, first)

	second, ok := result.Output("converted_files", 1)
	require.True(t, ok)
	assert.Equal(t, []string{"/out/s2_001/s2.nii.gz"}, second)

	// Scalar configuration reached the converter unchanged.
	calls := converter.Calls()
	require.Len(t, calls, 2)
	assert.True(t, calls[0].Reorient)
	assert.False(t, calls[0].ReorientAndCrop)
	assert.Equal(t, "/data/s1", calls[0].SourceDir)
}

func TestPipelineRunRecordsItemFailure(t *testing.T) {
	converter := testutils.NewFakeConverter()
	converter.FailOn("/data/s2", errors.New("no DICOM files found"))
	pipeline := loadTestPipeline(t, pipelineDoc, converter)

	result, err := pipeline.Run(context.Background(), map[string]any{
		"source_dirs": []string{"/data/s1", "/data/s2", "/data/s3"},
	})
	require.NoError(t, err)

	assert.Equal(t, []int{0, 2}, result.Successes)
	assert.Equal(t, []int{1}, result.FailedIndices())

	var collab *domain.CollaboratorError
	require.ErrorAs(t, result.Failures[0].Cause, &collab)
	assert.Equal(t, "converter", collab.Unit)
	assert.Contains(t, collab.Error(), "no DICOM files found")
}

func TestPipelineRunRejectsUnknownInput(t *testing.T) {
	pipeline := loadTestPipeline(t, pipelineDoc, testutils.NewFakeConverter())

	_, err := pipeline.Run(context.Background(), map[string]any{
		"source_dirs": []string{"/data/s1"},
		"sourec_dirs": []string{"/data/s1"},
	})
	require.Error(t, err)

	var unknownErr *domain.UnknownPortError
	require.ErrorAs(t, err, &unknownErr)
	assert.Equal(t, "sourec_dirs", unknownErr.Name)
}

func TestPipelineRunRejectsOutputBinding(t *testing.T) {
	pipeline := loadTestPipeline(t, pipelineDoc, testutils.NewFakeConverter())

	_, err := pipeline.Run(context.Background(), map[string]any{
		"source_dirs":     []string{"/data/s1"},
		"converted_files": []string{"/tmp/x.nii"},
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrInvalidConfiguration)
	assert.Contains(t, err.Error(), "cannot be bound as an input")
}

func TestBuildRejectsMultipleUnits(t *testing.T) {
	doc := strings.Replace(pipelineDoc, `units:
  - id: converter
    type: dicom_converter`, `units:
  - id: second
    type: dicom_converter
    parameters: {}
  - id: converter
    type: dicom_converter`, 1)

	loader, err := NewPipelineLoader(NewDefaultUnitRegistry(testutils.NewFakeConverter()))
	require.NoError(t, err)

	_, err = loader.LoadFromReader(strings.NewReader(doc))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "exactly one unit is supported")
}

func TestBuildFailsFastOnLinkTypo(t *testing.T) {
	doc := strings.Replace(pipelineDoc,
		"destination: converter.source_dir",
		"destination: converter.source_dirs", 1)

	loader, err := NewPipelineLoader(NewDefaultUnitRegistry(testutils.NewFakeConverter()))
	require.NoError(t, err)

	_, err = loader.LoadFromReader(strings.NewReader(doc))
	require.Error(t, err)

	var unknownErr *domain.UnknownLinkEndpointError
	require.ErrorAs(t, err, &unknownErr)
	assert.Equal(t, "converter.source_dir", unknownErr.Suggestion)
}
