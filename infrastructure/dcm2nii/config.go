package dcm2nii

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// SettingsFileName is the ini file the tool reads its non-interactive
// configuration from, written into each item's output directory.
const SettingsFileName = "dcm2nii.ini"

// Settings mirrors the tool's ini configuration. Booleans land in the
// [BOOL] section as 0/1, integers in [INT], strings in [STR]. The
// output directory is injected at write time; it is per item and never
// part of the reusable settings.
type Settings struct {
	// Anonymize strips identifying information from converted headers.
	Anonymize bool

	// Gzip compresses converted volumes to .nii.gz.
	Gzip bool

	// AppendDate embeds the acquisition date in generated filenames.
	AppendDate bool

	// AppendAcqSeries embeds series/acquisition numbers in filenames.
	AppendAcqSeries bool

	// AppendProtocolName embeds the protocol name in filenames.
	AppendProtocolName bool

	// AppendPatientName embeds the patient name in filenames.
	AppendPatientName bool

	// AppendFilename embeds the source filename in generated filenames.
	AppendFilename bool

	// BeginClip removes volumes from the beginning of a 4D acquisition.
	BeginClip int

	// LastClip removes volumes from the end of a 4D acquisition.
	LastClip int
}

// DefaultSettings returns the reference conversion settings: anonymized
// gzipped output named after the protocol, with no clipping.
func DefaultSettings() Settings {
	return Settings{
		Anonymize:          true,
		Gzip:               true,
		AppendProtocolName: true,
	}
}

func (s Settings) isZero() bool { return s == Settings{} }

// WriteFile renders the settings into the tool's ini format inside the
// given output directory and returns the file path. OutDirMode 2 keeps
// every artifact under the injected output directory.
func (s Settings) WriteFile(outputDir string) (string, error) {
	var b strings.Builder

	b.WriteString("[BOOL]\n")
	bools := []struct {
		key   string
		value bool
	}{
		{"Anonymize", s.Anonymize},
		{"Gzip", s.Gzip},
		{"AppendDate", s.AppendDate},
		{"AppendAcqSeries", s.AppendAcqSeries},
		{"AppendProtocolName", s.AppendProtocolName},
		{"AppendPatientName", s.AppendPatientName},
		{"AppendFilename", s.AppendFilename},
	}
	for _, entry := range bools {
		fmt.Fprintf(&b, "%s=%d\n", entry.key, boolToInt(entry.value))
	}

	b.WriteString("[INT]\n")
	fmt.Fprintf(&b, "BeginClip=%d\n", s.BeginClip)
	fmt.Fprintf(&b, "LastClip=%d\n", s.LastClip)
	fmt.Fprintf(&b, "OutDirMode=%d\n", 2)

	b.WriteString("[STR]\n")
	fmt.Fprintf(&b, "OutDir=%s\n", outputDir)

	path := filepath.Join(outputDir, SettingsFileName)
	if err := os.WriteFile(path, []byte(b.String()), 0o644); err != nil {
		return "", err
	}
	return path, nil
}

func boolToInt(v bool) int {
	if v {
		return 1
	}
	return 0
}
