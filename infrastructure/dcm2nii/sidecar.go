package dcm2nii

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dcmio/dcmflow/internal/ports"
)

// sidecarPrefix marks metadata-filled artifacts so they sort next to
// the volume they describe.
const sidecarPrefix = "filled_"

// sidecar is the JSON document written next to each converted volume.
// It carries the metadata the conversion request asked to propagate:
// the selected DICOM tags and the free-form additional information,
// plus enough provenance to trace the volume back to its series.
type sidecar struct {
	// Volume is the converted file the sidecar describes.
	Volume string `json:"volume"`

	// SourceDir is the DICOM series directory the volume came from.
	SourceDir string `json:"source_dir"`

	// DcmTags maps the requested tag names to their tag identifiers.
	DcmTags map[string]string `json:"dcm_tags,omitempty"`

	// AdditionalInformation carries the free metadata items of the
	// request.
	AdditionalInformation map[string]string `json:"additional_information,omitempty"`

	// ConvertedAt is the sidecar generation time in UTC.
	ConvertedAt time.Time `json:"converted_at"`
}

// writeSidecars writes one metadata sidecar per converted volume into
// the request's output directory and returns their paths, in the same
// order as the volumes they describe.
func writeSidecars(volumes []string, req ports.ConversionRequest) ([]string, error) {
	if len(volumes) == 0 {
		return nil, nil
	}

	tags := make(map[string]string, len(req.DcmTags))
	for _, tag := range req.DcmTags {
		tags[tag.Name] = tag.Tag
	}

	filled := make([]string, 0, len(volumes))
	for _, volume := range volumes {
		doc := sidecar{
			Volume:                volume,
			SourceDir:             req.SourceDir,
			DcmTags:               tags,
			AdditionalInformation: req.AdditionalInformation,
			ConvertedAt:           time.Now().UTC(),
		}

		data, err := json.MarshalIndent(doc, "", "  ")
		if err != nil {
			return nil, err
		}

		path := sidecarPath(req.OutputDir, volume)
		if err := os.WriteFile(path, data, 0o644); err != nil {
			return nil, err
		}
		filled = append(filled, path)
	}
	return filled, nil
}

// sidecarPath derives the sidecar location for a volume: the volume's
// base name with extensions swapped for .json, prefixed and placed in
// the output directory.
func sidecarPath(outputDir, volume string) string {
	name := filepath.Base(volume)
	name = strings.TrimSuffix(strings.TrimSuffix(name, ".gz"), ".nii")
	return filepath.Join(outputDir, sidecarPrefix+name+".json")
}
