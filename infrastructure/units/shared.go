// Package units provides the pipeline stage implementations of the
// ports.Unit interface for the dcmflow conversion engine.
package units

import (
	"errors"

	"github.com/go-playground/validator/v10"

	"github.com/dcmio/dcmflow/internal/domain"
)

// Common errors returned by unit constructors.
var (
	// ErrEmptyUnitName is returned when attempting to create a unit with
	// an empty name.
	ErrEmptyUnitName = errors.New("unit name cannot be empty")

	// ErrNilConverter is returned when a conversion unit is created
	// without its converter collaborator.
	ErrNilConverter = errors.New("converter cannot be nil")
)

// DefaultDcmTags are the DICOM tags propagated into converted volume
// metadata when the declaration does not override them: repetition time
// and echo time.
func DefaultDcmTags() []domain.DcmTag {
	return []domain.DcmTag{
		{Name: "TR", Tag: "0018,0080"},
		{Name: "TE", Tag: "0018,0081"},
	}
}

// Package-level validator instance for configuration validation.
// Uses go-playground/validator v10 for struct tag-based validation.
var validate = validator.New()
