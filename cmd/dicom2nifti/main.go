// Command dicom2nifti converts one or more DICOM series directories to
// NIfTI volumes through a declared conversion pipeline.
//
// The pipeline declaration is loaded from a YAML file; source
// directories are bound to the pipeline's iterative input at run time.
// Per-item conversion failures are reported and do not abort the batch;
// only configuration and wiring errors exit non-zero before any
// conversion is attempted.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/dcmio/dcmflow/infrastructure/dcm2nii"
	"github.com/dcmio/dcmflow/infrastructure/middleware"
	"github.com/dcmio/dcmflow/internal/application"
)

// dirList collects repeated -d flags.
type dirList []string

func (d *dirList) String() string { return strings.Join(*d, ",") }

func (d *dirList) Set(value string) error {
	*d = append(*d, value)
	return nil
}

func main() {
	var dirs dirList
	flag.Var(&dirs, "d", "DICOM series directory to convert (repeatable)")
	var (
		pipelineFile = flag.String("pipeline", "examples/dicom2nifti.yaml", "Pipeline declaration file")
		outDir       = flag.String("o", "", "Output directory root (overrides the declaration)")
		workers      = flag.Int("workers", 1, "Concurrent conversions (1 = sequential)")
		timeout      = flag.Duration("timeout", 15*time.Minute, "Per-item conversion timeout")
		tool         = flag.String("tool", "", "Conversion binary (default: dcm2nii on PATH)")
		snapshot     = flag.String("snapshot", "", "Snapshot command for QC images (empty = disabled)")
		verbose      = flag.Bool("v", false, "Verbose output")
	)
	flag.Parse()

	if len(dirs) == 0 {
		log.Fatal("at least one -d source directory is required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	metrics := middleware.NewPrometheusMetrics(prometheus.DefaultRegisterer)

	converter, err := dcm2nii.NewConverter(dcm2nii.Config{
		Tool:            *tool,
		SnapshotCommand: *snapshot,
		Middleware: []dcm2nii.Middleware{
			dcm2nii.TimeoutMiddleware(*timeout),
			dcm2nii.MetricsMiddleware(metrics),
			dcm2nii.TracingMiddleware("dicom2nifti"),
		},
	})
	if err != nil {
		log.Fatalf("converter setup failed: %v", err)
	}

	registry := application.NewDefaultUnitRegistry(converter)
	loader, err := application.NewPipelineLoader(registry,
		application.WithWorkers(*workers),
		application.WithMetrics(metrics),
	)
	if err != nil {
		log.Fatalf("loader setup failed: %v", err)
	}

	pipeline, err := loader.LoadFromFile(*pipelineFile)
	if err != nil {
		log.Fatalf("loading pipeline %s failed: %v", *pipelineFile, err)
	}

	inputs := map[string]any{"source_dirs": []string(dirs)}
	if *outDir != "" {
		inputs["output_directory"] = *outDir
	}

	result, runErr := pipeline.Run(ctx, inputs)
	if result == nil {
		log.Fatalf("run failed: %v", runErr)
	}
	if runErr != nil {
		log.Printf("run interrupted: %v", runErr)
	}

	if *verbose {
		fmt.Printf("Run %s over %d directories:\n", result.RunID, result.N)
	}
	for _, i := range result.Successes {
		fmt.Printf("[ok]   %s\n", dirs[i])
		if *verbose {
			for _, name := range []string{"converted_files", "reoriented_files", "bvals", "bvecs"} {
				if value, ok := result.Output(name, i); ok {
					fmt.Printf("       %s: %v\n", name, value)
				}
			}
		}
	}
	for _, failure := range result.Failures {
		fmt.Fprintf(os.Stderr, "[fail] %s: %v\n", dirs[failure.Index], failure.Cause)
	}

	fmt.Printf("%d/%d directories converted\n", len(result.Successes), result.N)
}
