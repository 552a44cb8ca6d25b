// Package dcm2nii wraps the external dcm2nii conversion tool behind the
// ports.Converter interface with built-in support for timeouts, rate
// limiting, metrics, and tracing.
//
// The package abstracts the tool invocation lifecycle: it writes the
// dcm2nii.ini settings file into the output directory, runs the binary
// against one DICOM series directory, parses the textual transcript
// into artifact paths, writes metadata sidecars next to the converted
// volumes, and optionally renders a snapshot image through a second
// external command.
//
// Architecture:
//   - Core converter running the external binary per request
//   - Transcript parser recovering artifact paths from tool output
//   - Pluggable middleware for timeout, rate limiting, metrics, tracing
//   - Settings file generation mirroring the tool's ini format
//
// Basic usage:
//
//	converter, err := dcm2nii.NewConverter(dcm2nii.Config{})
//	result, err := converter.Convert(ctx, ports.ConversionRequest{
//	    SourceDir: "/data/s1",
//	    OutputDir: "/out/s1_000",
//	})
//
// Advanced usage with middleware:
//
//	converter, err := dcm2nii.NewConverter(dcm2nii.Config{
//	    Middleware: []dcm2nii.Middleware{
//	        dcm2nii.TimeoutMiddleware(5 * time.Minute),
//	        dcm2nii.RateLimitMiddleware(2, 4),
//	        dcm2nii.MetricsMiddleware(metricsCollector),
//	    },
//	})
package dcm2nii

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"

	"github.com/dcmio/dcmflow/internal/ports"
)

// DefaultTool is the conversion binary resolved on PATH when the
// configuration does not name one explicitly.
const DefaultTool = "dcm2nii"

// Middleware wraps a ports.Converter to add cross-cutting functionality.
// This pattern allows composition of features like timeouts, rate
// limiting, and metrics collection without modifying the core tool
// invocation logic.
type Middleware func(ports.Converter) ports.Converter

// Config holds all configuration options for creating a converter.
type Config struct {
	// Tool is the conversion binary name or path. Empty means
	// DefaultTool resolved on PATH.
	Tool string

	// Settings controls the generated dcm2nii.ini file. The zero value
	// is replaced by DefaultSettings.
	Settings Settings

	// SnapshotCommand optionally names an external command rendering a
	// snapshot image of the first converted volume. Empty disables
	// snapshotting.
	SnapshotCommand string

	// Middleware allows custom middleware insertion.
	// These are applied in the order specified.
	Middleware []Middleware
}

// converter is the core ports.Converter implementation running the
// external binary once per request.
type converter struct {
	tool     string
	settings Settings
	snapshot *snapshotter
}

var _ ports.Converter = (*converter)(nil)

// NewConverter creates a converter for the configured tool, verifying
// the binary is resolvable before returning. The middleware chain is
// assembled so the first middleware is the outermost.
func NewConverter(config Config) (ports.Converter, error) {
	tool := config.Tool
	if tool == "" {
		tool = DefaultTool
	}
	if _, err := exec.LookPath(tool); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ports.ErrConverterUnavailable, tool, err)
	}

	settings := config.Settings
	if settings.isZero() {
		settings = DefaultSettings()
	}

	var core ports.Converter = &converter{
		tool:     tool,
		settings: settings,
		snapshot: newSnapshotter(config.SnapshotCommand),
	}

	// Apply middleware in reverse order so the first middleware is the outermost.
	for i := len(config.Middleware) - 1; i >= 0; i-- {
		core = config.Middleware[i](core)
	}
	return core, nil
}

// Convert runs one conversion: settings file generation, tool
// invocation, transcript parsing, sidecar generation, and the optional
// snapshot. The returned error applies to this request only.
func (c *converter) Convert(ctx context.Context, req ports.ConversionRequest) (*ports.ConversionResult, error) {
	if req.SourceDir == "" {
		return nil, fmt.Errorf("source directory is required")
	}
	if req.OutputDir == "" {
		return nil, fmt.Errorf("output directory is required")
	}
	if err := os.MkdirAll(req.OutputDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating output directory: %w", err)
	}

	settings := c.settings
	settings.AppendDate = req.DateInFilename

	settingsFile, err := settings.WriteFile(req.OutputDir)
	if err != nil {
		return nil, fmt.Errorf("writing settings file: %w", err)
	}

	args := []string{
		"-b", settingsFile,
		"-o", req.OutputDir,
		"-r", yesNo(req.Reorient),
		"-x", yesNo(req.ReorientAndCrop),
		req.SourceDir,
	}

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, c.tool, args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		exitCode := -1
		if cmd.ProcessState != nil {
			exitCode = cmd.ProcessState.ExitCode()
		}
		return nil, &ConversionError{
			Tool:     c.tool,
			Args:     args,
			ExitCode: exitCode,
			Stderr:   stderr.String(),
		}
	}

	result := parseTranscript(stdout.String(), req.OutputDir)

	filled, err := writeSidecars(result.ConvertedFiles, req)
	if err != nil {
		return nil, fmt.Errorf("writing metadata sidecars: %w", err)
	}
	result.FilledConvertedFiles = filled

	if c.snapshot != nil && len(result.ConvertedFiles) > 0 {
		snap, err := c.snapshot.render(ctx, result.ConvertedFiles[0], req.OutputDir)
		if err != nil {
			return nil, fmt.Errorf("rendering snapshot: %w", err)
		}
		result.SnapFile = snap
	}

	return result, nil
}

// yesNo renders a boolean as the tool's Y/N flag value.
func yesNo(v bool) string {
	if v {
		return "Y"
	}
	return "N"
}
