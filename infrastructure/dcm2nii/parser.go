package dcm2nii

import (
	"path/filepath"
	"regexp"
	"strings"

	"github.com/dcmio/dcmflow/internal/ports"
)

// Transcript markers emitted by the tool. Artifact paths are only
// reported as free text on stdout, so the parser recognizes each marker
// line and recovers the path it carries.
const (
	markerSaving    = "Saving "
	markerGzip      = "GZip..."
	markerReorient  = "Reorienting as "
	markerCrop      = "Cropping NIfTI/Analyze image "
	markerDiffusion = "Number of diffusion directions "
)

// renamePattern matches the tool's rename notices of the form
// "old name --> new.nii.gz"; the right-hand side is relative to the
// output directory.
var renamePattern = regexp.MustCompile(`.*-->(.*)`)

// parseTranscript recovers artifact paths from the tool's stdout.
//
// Uncompressed volumes appear on "Saving" lines with absolute paths;
// gzipped volumes appear on "GZip..." lines relative to the output
// directory. A diffusion notice means the tool wrote .bvec/.bval tables
// next to the most recently reported volume. Reorient and crop notices
// echo the volume they derive from on the following line, which is
// skipped so derived volumes are not double-counted as conversions.
func parseTranscript(stdout, outputDir string) *ports.ConversionResult {
	result := &ports.ConversionResult{}

	skip := false
	lastAdded := ""
	for _, line := range strings.Split(stdout, "\n") {
		if skip {
			skip = false
			continue
		}

		outFile := ""
		switch {
		case strings.HasPrefix(line, markerSaving):
			outFile = strings.TrimPrefix(line, markerSaving)

		case strings.HasPrefix(line, markerGzip):
			outFile = filepath.Join(outputDir, strings.TrimPrefix(line, markerGzip))

		case strings.HasPrefix(line, markerDiffusion):
			if lastAdded != "" {
				base := strings.TrimSuffix(strings.TrimSuffix(lastAdded, ".gz"), ".nii")
				result.BVecs = append(result.BVecs, base+".bvec")
				result.BVals = append(result.BVals, base+".bval")
			}
			continue

		case strings.HasPrefix(line, markerReorient):
			result.ReorientedFiles = append(result.ReorientedFiles,
				strings.TrimPrefix(line, markerReorient))
			skip = true
			continue

		case strings.HasPrefix(line, markerCrop):
			dir, name := filepath.Split(strings.TrimPrefix(line, markerCrop))
			result.ReorientedAndCroppedFiles = append(result.ReorientedAndCroppedFiles,
				filepath.Join(dir, "c"+name))
			skip = true
			continue

		default:
			if m := renamePattern.FindStringSubmatch(line); m != nil {
				outFile = filepath.Join(outputDir, strings.TrimSpace(m[1]))
			}
		}

		if outFile != "" {
			result.ConvertedFiles = append(result.ConvertedFiles, outFile)
			lastAdded = outFile
		}
	}

	return result
}
