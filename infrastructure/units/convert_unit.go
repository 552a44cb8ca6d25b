package units

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gopkg.in/yaml.v3"

	"github.com/dcmio/dcmflow/internal/domain"
	"github.com/dcmio/dcmflow/internal/ports"
)

var _ ports.Unit = (*ConvertUnit)(nil)

// ConvertUnit wraps the external DICOM-to-NIfTI converter behind a
// declared port schema. One source directory drives one invocation;
// scalar configuration is fixed across the batch.
//
// Declared ports:
//   - source_dir (iterative input): one DICOM series directory per item.
//   - additional_information (iterative input, optional): one metadata
//     payload per item, declared only when the configuration enables it.
//   - dcm_tags, date_in_filename, reorient, reorient_and_crop,
//     output_directory (scalar inputs): run-invariant configuration.
//   - converted_files, reoriented_files, reoriented_and_cropped_files,
//     filled_converted_files, bvals, bvecs (iterative outputs): volume
//     and diffusion table paths per item.
//   - snap_file (iterative output): snapshot image path per item.
//
// Concurrency: ConvertUnit is stateless between invocations and safe
// for concurrent execution across indices; the wrapped converter is the
// process-level resource that bounds useful parallelism.
type ConvertUnit struct {
	// name is the unique identifier for this unit instance.
	name string
	// config contains the validated configuration parameters.
	config ConvertConfig
	// converter performs the actual conversion.
	converter ports.Converter
	// schema is the declared port surface, built once at construction.
	schema *domain.PortSchema
	// tracer is the OpenTelemetry tracer for observability.
	tracer trace.Tracer
}

// ConvertConfig carries the declaration-document parameters of a
// conversion unit. Scalar ports declared from it carry these values as
// defaults; links may still override them per pipeline.
type ConvertConfig struct {
	// DcmTags lists the DICOM tags whose values are propagated into the
	// converted volume metadata. Empty means the TR/TE defaults.
	DcmTags []domain.DcmTag `yaml:"dcm_tags" json:"dcm_tags" validate:"dive"`

	// DateInFilename embeds the acquisition date in generated filenames.
	DateInFilename bool `yaml:"date_in_filename" json:"date_in_filename"`

	// Reorient requests reorientation to the nearest orthogonal.
	Reorient bool `yaml:"reorient" json:"reorient"`

	// ReorientAndCrop requests reoriented and cropped variants.
	ReorientAndCrop bool `yaml:"reorient_and_crop" json:"reorient_and_crop"`

	// OutputDirectory is the conversion destination root. Empty means
	// a per-item location derived from the source directory.
	OutputDirectory string `yaml:"output_directory" json:"output_directory"`

	// WithAdditionalInformation declares the per-item metadata input
	// port. When false the port does not exist and links to it fail
	// resolution.
	WithAdditionalInformation bool `yaml:"with_additional_information" json:"with_additional_information"`
}

// DefaultConvertConfig returns a ConvertConfig matching the reference
// conversion setup: TR/TE tag propagation, no date in filenames, and
// both reoriented variants produced.
func DefaultConvertConfig() ConvertConfig {
	return ConvertConfig{
		DcmTags:         DefaultDcmTags(),
		Reorient:        true,
		ReorientAndCrop: true,
	}
}

// NewConvertUnit creates a conversion unit from a configuration map,
// the boundary adapter for declaration-document parameters. Missing
// keys keep the DefaultConvertConfig values.
func NewConvertUnit(id string, converter ports.Converter, config map[string]any) (*ConvertUnit, error) {
	data, err := yaml.Marshal(config)
	if err != nil {
		return nil, fmt.Errorf("marshal config: %w", err)
	}

	cfg := DefaultConvertConfig()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	return NewConvertUnitFromConfig(id, converter, cfg)
}

// NewConvertUnitFromConfig creates a conversion unit with validated
// typed configuration. The unit is immediately ready for concurrent
// invocation after successful creation.
func NewConvertUnitFromConfig(id string, converter ports.Converter, config ConvertConfig) (*ConvertUnit, error) {
	if id == "" {
		return nil, ErrEmptyUnitName
	}
	if converter == nil {
		return nil, ErrNilConverter
	}
	if err := validate.Struct(config); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	if len(config.DcmTags) == 0 {
		config.DcmTags = DefaultDcmTags()
	}

	schema, err := buildConvertSchema(id, config)
	if err != nil {
		return nil, err
	}

	return &ConvertUnit{
		name:      id,
		config:    config,
		converter: converter,
		schema:    schema,
		tracer:    otel.Tracer("convert-unit"),
	}, nil
}

// buildConvertSchema declares the unit's port surface. Scalar inputs
// carry the configuration values as defaults so a declaration only
// needs links for what it overrides.
func buildConvertSchema(owner string, config ConvertConfig) (*domain.PortSchema, error) {
	schema := domain.NewPortSchema(owner)

	declarations := []func() error{
		func() error {
			return schema.Declare(domain.KeySourceDir.Name(), domain.DirectionInput, domain.CardinalityIterative)
		},
		func() error {
			return schema.Declare(domain.KeyDcmTags.Name(), domain.DirectionInput, domain.CardinalityScalar,
				domain.WithDefault(config.DcmTags))
		},
		func() error {
			return schema.Declare(domain.KeyDateInFilename.Name(), domain.DirectionInput, domain.CardinalityScalar,
				domain.WithDefault(config.DateInFilename))
		},
		func() error {
			return schema.Declare(domain.KeyReorient.Name(), domain.DirectionInput, domain.CardinalityScalar,
				domain.WithDefault(config.Reorient))
		},
		func() error {
			return schema.Declare(domain.KeyReorientAndCrop.Name(), domain.DirectionInput, domain.CardinalityScalar,
				domain.WithDefault(config.ReorientAndCrop))
		},
		func() error {
			return schema.Declare(domain.KeyOutputDirectory.Name(), domain.DirectionInput, domain.CardinalityScalar,
				domain.WithDefault(config.OutputDirectory))
		},
	}
	if config.WithAdditionalInformation {
		declarations = append(declarations, func() error {
			return schema.Declare(domain.KeyAdditionalInformation.Name(), domain.DirectionInput, domain.CardinalityIterative)
		})
	}

	outputs := []string{
		domain.KeyConvertedFiles.Name(),
		domain.KeyReorientedFiles.Name(),
		domain.KeyReorientedAndCroppedFiles.Name(),
		domain.KeyFilledConvertedFiles.Name(),
		domain.KeyBVals.Name(),
		domain.KeyBVecs.Name(),
		domain.KeySnapFile.Name(),
	}
	for _, name := range outputs {
		out := name
		declarations = append(declarations, func() error {
			return schema.Declare(out, domain.DirectionOutput, domain.CardinalityIterative)
		})
	}

	for _, declare := range declarations {
		if err := declare(); err != nil {
			return nil, err
		}
	}
	return schema, nil
}

// Name returns the unique identifier for this unit instance.
func (cu *ConvertUnit) Name() string { return cu.name }

// Schema returns the unit's declared port surface.
func (cu *ConvertUnit) Schema() *domain.PortSchema { return cu.schema }

// Invoke converts one DICOM series directory. scalars supplies the
// run-invariant configuration with defaults already applied; item
// supplies the source directory, the engine-injected index, and the
// optional per-item metadata payload.
//
// Conversion failures are confined to the item: Invoke wraps them in a
// *domain.CollaboratorError carrying the index and unit name so the
// engine can record them without aborting the batch.
func (cu *ConvertUnit) Invoke(ctx context.Context, scalars, item domain.Values) (domain.Values, error) {
	index, ok := domain.Get(item, domain.KeyItemIndex)
	if !ok {
		return domain.Values{}, fmt.Errorf("item index missing from item values")
	}

	sourceDir, ok := domain.Get(item, domain.KeySourceDir)
	if !ok {
		return domain.Values{}, &domain.CollaboratorError{
			Index: index,
			Unit:  cu.name,
			Err:   fmt.Errorf("source directory missing from item values"),
		}
	}

	ctx, span := cu.tracer.Start(ctx, "ConvertUnit.Invoke",
		trace.WithAttributes(
			attribute.String("unit.type", "dicom_converter"),
			attribute.String("unit.id", cu.name),
			attribute.Int("item.index", index),
			attribute.String("item.source_dir", sourceDir),
		),
	)
	defer span.End()

	start := time.Now()

	request := ports.ConversionRequest{
		SourceDir: sourceDir,
		OutputDir: cu.outputDir(scalars, sourceDir, index),
	}
	if tags, ok := domain.Get(scalars, domain.KeyDcmTags); ok {
		request.DcmTags = tags
	}
	if v, ok := domain.Get(scalars, domain.KeyDateInFilename); ok {
		request.DateInFilename = v
	}
	if v, ok := domain.Get(scalars, domain.KeyReorient); ok {
		request.Reorient = v
	}
	if v, ok := domain.Get(scalars, domain.KeyReorientAndCrop); ok {
		request.ReorientAndCrop = v
	}
	if info, ok := domain.Get(item, domain.KeyAdditionalInformation); ok {
		request.AdditionalInformation = info
	}

	result, err := cu.converter.Convert(ctx, request)
	if err != nil {
		span.RecordError(err)
		return domain.Values{}, &domain.CollaboratorError{
			Index: index,
			Unit:  cu.name,
			Err:   err,
		}
	}

	span.SetAttributes(
		attribute.Int("conversion.converted_files", len(result.ConvertedFiles)),
		attribute.Int64("conversion.latency_ms", time.Since(start).Milliseconds()),
	)

	outputs := domain.NewValues()
	outputs = domain.With(outputs, domain.KeyConvertedFiles, result.ConvertedFiles)
	outputs = domain.With(outputs, domain.KeyReorientedFiles, result.ReorientedFiles)
	outputs = domain.With(outputs, domain.KeyReorientedAndCroppedFiles, result.ReorientedAndCroppedFiles)
	outputs = domain.With(outputs, domain.KeyFilledConvertedFiles, result.FilledConvertedFiles)
	outputs = domain.With(outputs, domain.KeyBVals, result.BVals)
	outputs = domain.With(outputs, domain.KeyBVecs, result.BVecs)
	outputs = domain.With(outputs, domain.KeySnapFile, result.SnapFile)
	return outputs, nil
}

// outputDir derives the collision-free destination for one item: a
// subdirectory of the configured root named after the source directory
// and the item index. Without a configured root, artifacts land next to
// the source.
func (cu *ConvertUnit) outputDir(scalars domain.Values, sourceDir string, index int) string {
	root, _ := domain.Get(scalars, domain.KeyOutputDirectory)
	if root == "" {
		return filepath.Join(sourceDir, "converted")
	}
	return filepath.Join(root, fmt.Sprintf("%s_%03d", filepath.Base(sourceDir), index))
}

// Validate verifies the unit is properly configured and ready for
// execution. Safe for concurrent use.
func (cu *ConvertUnit) Validate() error {
	if cu.converter == nil {
		return ErrNilConverter
	}
	if err := validate.Struct(cu.config); err != nil {
		return fmt.Errorf("configuration validation failed: %w", err)
	}
	return nil
}
