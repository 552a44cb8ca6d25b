// Package ports defines the core interfaces that form the contract between
// the domain/application layers and the infrastructure layer.
// These interfaces enable dependency inversion and make the system testable.
package ports

import (
	"context"

	"github.com/dcmio/dcmflow/internal/domain"
)

// Unit represents a named processing stage of the pipeline: it wraps an
// external collaborator behind a declared port schema and is invoked once
// per driving-list index during execution.
// Units are declared once at pipeline construction and never mutated
// between invocations except via scalar configuration fixed before the
// run starts. Implementations must be stateless and safe for concurrent
// invocation across indices.
type Unit interface {
	// Name returns a unique identifier for this unit.
	// The name is used in link endpoints, error reporting, and metrics.
	Name() string

	// Schema returns the unit's declared input and output ports.
	// The returned schema is immutable after construction.
	Schema() *domain.PortSchema

	// Invoke processes one driving-list element. scalars supplies one
	// value per declared scalar input (defaults already applied); item
	// supplies exactly one value per declared iterative input plus the
	// engine-injected item index. It returns one value per declared
	// output port.
	//
	// A conversion failure for the element is reported as a
	// *domain.CollaboratorError; the iteration engine records it against
	// the index and continues with the next element. Invoke must never
	// panic across the batch.
	//
	// The context parameter allows for cancellation and deadline
	// propagation. Units should respect context cancellation and return
	// promptly.
	Invoke(ctx context.Context, scalars, item domain.Values) (domain.Values, error)

	// Validate checks if the unit is properly configured and ready for
	// execution. It is typically called during pipeline construction so
	// configuration mistakes never surface mid-run.
	// Return nil if validation passes, or an error describing what is invalid.
	Validate() error
}

// UnitFactory creates a unit instance from its declaration-document
// configuration. The config map carries the unit's decoded YAML
// parameters.
type UnitFactory func(id string, config map[string]any) (Unit, error)

// UnitRegistry provides factory methods for creating units based on
// their declared type. Implementations inject infrastructure
// dependencies, such as the converter collaborator, into the units they
// create.
type UnitRegistry interface {
	// CreateUnit instantiates a unit of the given type with the given
	// identifier and configuration. It returns an error for unknown
	// types or invalid configuration.
	CreateUnit(unitType, id string, config map[string]any) (Unit, error)

	// RegisterFactory adds a custom unit factory for the given type,
	// replacing any existing registration.
	RegisterFactory(unitType string, factory UnitFactory)

	// SupportedTypes returns the registered unit type names.
	SupportedTypes() []string
}
