package application

import (
	"gopkg.in/yaml.v3"
)

// PipelineConfig is the persisted declaration of a conversion pipeline:
// unit declarations, pipeline boundary ports, scalar defaults, and the
// explicit link table. It is loaded once at construction and is
// otherwise immutable for the life of the pipeline.
// Presentational layout metadata (node positions, zoom level) carries no
// execution semantics and is not part of the schema.
type PipelineConfig struct {
	// Version specifies the declaration schema version using semantic
	// versioning to ensure compatibility across system updates.
	Version string `yaml:"version" validate:"required,semver"`
	// Metadata contains descriptive information about the pipeline
	// including name and tags for organization and discovery.
	Metadata Metadata `yaml:"metadata" validate:"required"`
	// Units declares the processing stages of the pipeline, each with
	// its own type and configuration.
	Units []UnitConfig `yaml:"units" validate:"required,min=1,dive"`
	// Ports declares the pipeline boundary ports an external caller
	// binds values to and reads results from.
	Ports BoundaryConfig `yaml:"ports" validate:"required"`
	// Links is the explicit table of source -> destination port
	// connections between the boundary and unit ports.
	Links []LinkConfig `yaml:"links" validate:"required,min=1,dive"`
}

// Metadata provides descriptive information about a pipeline declaration
// to support organization, discovery, and operational management.
type Metadata struct {
	// Name is the human-readable identifier for this pipeline
	// and must be unique within the deployment scope.
	Name string `yaml:"name" validate:"required,min=1,max=255"`
	// Description provides a detailed explanation of the pipeline's
	// purpose and intended use cases.
	Description string `yaml:"description" validate:"max=1000"`
	// Tags are categorical labels that enable filtering and grouping
	// of pipelines by functional domain.
	Tags []string `yaml:"tags" validate:"max=20,dive,min=1,max=50"`
}

// UnitConfig declares a single processing stage: its unique name, the
// unit implementation to instantiate, and type-specific parameters.
type UnitConfig struct {
	// ID is the unique identifier for this unit within the pipeline;
	// link endpoints reference it as "id.port".
	ID string `yaml:"id" validate:"required,portname"`
	// Type specifies the unit implementation to instantiate,
	// determining the available parameters and the declared port schema.
	Type string `yaml:"type" validate:"required,oneof=dicom_converter custom"`
	// Parameters contains type-specific configuration as flexible YAML
	// that will be validated according to the unit type requirements.
	Parameters yaml.Node `yaml:"parameters"`
}

// BoundaryConfig declares the pipeline boundary surface: the ports an
// orchestrator binds driving lists and scalar overrides to, and the
// ports it collects index-aligned results from.
type BoundaryConfig struct {
	// Inputs declares the boundary input ports.
	Inputs []PortConfig `yaml:"inputs" validate:"required,min=1,dive"`
	// Outputs declares the boundary output ports.
	Outputs []PortConfig `yaml:"outputs" validate:"required,min=1,dive"`
}

// PortConfig declares one boundary port. Cardinality is an explicit tag,
// not a naming convention, so the scalar/iterative distinction is a
// checkable invariant.
type PortConfig struct {
	// Name is the port identifier, unique per direction.
	Name string `yaml:"name" validate:"required,portname"`
	// Cardinality distinguishes scalar configuration ports from
	// iterative ports broadcast/collected over the driving list.
	Cardinality string `yaml:"cardinality" validate:"required,oneof=scalar iterative"`
	// Default optionally supplies a fallback value for a scalar input
	// used when the caller binds nothing. Iterative ports and outputs
	// must not declare defaults.
	Default yaml.Node `yaml:"default,omitempty"`
}

// HasDefault reports whether the port declaration carries a default value.
func (p PortConfig) HasDefault() bool {
	return p.Default.Kind != 0
}

// DecodedDefault returns the default value decoded into a generic Go
// value, or nil when no default is declared.
func (p PortConfig) DecodedDefault() (any, error) {
	if !p.HasDefault() {
		return nil, nil
	}
	var value any
	if err := p.Default.Decode(&value); err != nil {
		return nil, err
	}
	return value, nil
}

// LinkConfig declares one directed edge of the wiring graph using the
// "port" (boundary) or "unit.port" endpoint syntax.
type LinkConfig struct {
	// Source is the endpoint supplying the value.
	Source string `yaml:"source" validate:"required,endpoint"`
	// Destination is the endpoint receiving the value. A destination is
	// written by exactly one source.
	Destination string `yaml:"destination" validate:"required,endpoint"`
}
