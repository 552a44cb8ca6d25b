package dcm2nii

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTranscriptGzippedVolumes(t *testing.T) {
	stdout := `Chris Rorden's dcm2nii
Converting /data/s1
GZip...20250101_120000t1mpr.nii.gz
GZip...20250101_120100t2gre.nii.gz
`
	result := parseTranscript(stdout, "/out")

	assert.Equal(t, []string{
		"/out/20250101_120000t1mpr.nii.gz",
		"/out/20250101_120100t2gre.nii.gz",
	}, result.ConvertedFiles)
	assert.Empty(t, result.ReorientedFiles)
	assert.Empty(t, result.BVals)
}

func TestParseTranscriptUncompressedVolumes(t *testing.T) {
	stdout := "Saving /out/t1mpr.nii\n"
	result := parseTranscript(stdout, "/out")

	assert.Equal(t, []string{"/out/t1mpr.nii"}, result.ConvertedFiles)
}

func TestParseTranscriptDiffusionTables(t *testing.T) {
	stdout := `GZip...dti64.nii.gz
Number of diffusion directions 64
`
	result := parseTranscript(stdout, "/out")

	require.Equal(t, []string{"/out/dti64.nii.gz"}, result.ConvertedFiles)
	assert.Equal(t, []string{"/out/dti64.bvec"}, result.BVecs)
	assert.Equal(t, []string{"/out/dti64.bval"}, result.BVals)
}

func TestParseTranscriptDiffusionWithoutVolume(t *testing.T) {
	// A diffusion notice before any reported volume has nothing to
	// attach the tables to.
	result := parseTranscript("Number of diffusion directions 64\n", "/out")

	assert.Empty(t, result.BVals)
	assert.Empty(t, result.BVecs)
}

func TestParseTranscriptReorientAndCrop(t *testing.T) {
	stdout := `GZip...t1mpr.nii.gz
Reorienting as /out/ot1mpr.nii.gz
GZip...ot1mpr.nii.gz
Cropping NIfTI/Analyze image /out/ot1mpr.nii.gz
GZip...cot1mpr.nii.gz
`
	result := parseTranscript(stdout, "/out")

	// The echo line after each notice is skipped, so derived volumes
	// are not double-counted as conversions.
	assert.Equal(t, []string{"/out/t1mpr.nii.gz"}, result.ConvertedFiles)
	assert.Equal(t, []string{"/out/ot1mpr.nii.gz"}, result.ReorientedFiles)
	assert.Equal(t, []string{"/out/cot1mpr.nii.gz"}, result.ReorientedAndCroppedFiles)
}

func TestParseTranscriptRenameNotice(t *testing.T) {
	stdout := "changing name 20250101t1.nii.gz --> renamed_t1.nii.gz\n"
	result := parseTranscript(stdout, "/out")

	assert.Equal(t, []string{"/out/renamed_t1.nii.gz"}, result.ConvertedFiles)
}

func TestParseTranscriptEmpty(t *testing.T) {
	result := parseTranscript("", "/out")

	assert.Empty(t, result.ConvertedFiles)
	assert.Empty(t, result.ReorientedFiles)
	assert.Empty(t, result.ReorientedAndCroppedFiles)
}
