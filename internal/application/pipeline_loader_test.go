package application

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dcmio/dcmflow/internal/testutils"
)

func newTestLoader(t *testing.T) *PipelineLoader {
	t.Helper()
	loader, err := NewPipelineLoader(NewDefaultUnitRegistry(testutils.NewFakeConverter()))
	require.NoError(t, err)
	return loader
}

func TestLoaderRejectsUnknownFields(t *testing.T) {
	doc := strings.Replace(pipelineDoc, "metadata:", "wiring: {}\nmetadata:", 1)

	_, err := newTestLoader(t).LoadFromReader(strings.NewReader(doc))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse YAML")
}

func TestLoaderRejectsInvalidVersion(t *testing.T) {
	doc := strings.Replace(pipelineDoc, `version: "1.0.0"`, `version: "one"`, 1)

	_, err := newTestLoader(t).LoadFromReader(strings.NewReader(doc))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "struct validation failed")
}

func TestLoaderRejectsInvalidPortName(t *testing.T) {
	doc := strings.Replace(pipelineDoc, "name: source_dirs", "name: 1source", 1)

	_, err := newTestLoader(t).LoadFromReader(strings.NewReader(doc))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "struct validation failed")
}

func TestLoaderRejectsUnknownUnitReference(t *testing.T) {
	doc := strings.Replace(pipelineDoc,
		"destination: converter.source_dir\n",
		"destination: things.source_dir\n", 1)

	_, err := newTestLoader(t).LoadFromReader(strings.NewReader(doc))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "references non-existent unit")
}

func TestLoaderRejectsUnknownConverterParameter(t *testing.T) {
	doc := strings.Replace(pipelineDoc, "reorient: true", "reorientate: true", 1)

	_, err := newTestLoader(t).LoadFromReader(strings.NewReader(doc))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parameter validation failed")
}

func TestLoaderCachesByNormalizedDocument(t *testing.T) {
	loader := newTestLoader(t)

	first, err := loader.LoadFromReader(strings.NewReader(pipelineDoc))
	require.NoError(t, err)

	// Same document with different surface formatting hits the cache.
	reformatted := strings.Replace(pipelineDoc, "\nmetadata:", "\n\n\nmetadata:", 1)
	second, err := loader.LoadFromReader(strings.NewReader(reformatted))
	require.NoError(t, err)
	assert.Same(t, first, second)

	loader.ClearCache()
	third, err := loader.LoadFromReader(strings.NewReader(pipelineDoc))
	require.NoError(t, err)
	assert.NotSame(t, first, third)
}

func TestLoaderRejectsDuplicateBoundaryPort(t *testing.T) {
	doc := strings.Replace(pipelineDoc, `  outputs:
    - name: converted_files
      cardinality: iterative`, `  outputs:
    - name: source_dirs
      cardinality: iterative
    - name: converted_files
      cardinality: iterative`, 1)
	doc += `  - source: converter.converted_files
    destination: source_dirs
`

	_, err := newTestLoader(t).LoadFromReader(strings.NewReader(doc))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate boundary port")
}
