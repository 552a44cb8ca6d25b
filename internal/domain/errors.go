package domain

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Common domain errors that can occur during pipeline construction and runs.
var (
	// ErrKeyNotFound indicates that a requested value key does not exist.
	ErrKeyNotFound = errors.New("key not found")

	// ErrTypeMismatch indicates that a value's type doesn't match the expected type.
	ErrTypeMismatch = errors.New("type mismatch")

	// ErrInvalidConfiguration indicates that configuration is invalid or incomplete.
	ErrInvalidConfiguration = errors.New("invalid configuration")
)

// ConfigError reports a pipeline configuration problem detected at build
// or resolve time. Configuration errors are always fatal to pipeline
// construction and never surface mid-run.
type ConfigError struct {
	// Owner names the entity whose configuration is invalid.
	Owner string

	// Message describes the problem.
	Message string
}

// NewConfigError creates a ConfigError for the given owner with a
// formatted message.
func NewConfigError(owner, format string, args ...any) *ConfigError {
	return &ConfigError{Owner: owner, Message: fmt.Sprintf(format, args...)}
}

// Error implements the error interface for ConfigError.
func (e *ConfigError) Error() string {
	return fmt.Sprintf("configuration error for %s: %s", e.Owner, e.Message)
}

// Unwrap marks every ConfigError as an ErrInvalidConfiguration.
func (e *ConfigError) Unwrap() error { return ErrInvalidConfiguration }

// DuplicatePortError indicates that a port name was declared twice for
// the same owner and direction.
type DuplicatePortError struct {
	// Owner names the schema holder on which the collision occurred.
	Owner string

	// Name is the colliding port name.
	Name string

	// Direction is the direction in which the name was already declared.
	Direction Direction
}

// Error implements the error interface for DuplicatePortError.
func (e *DuplicatePortError) Error() string {
	return fmt.Sprintf("duplicate %s port %q on %s", e.Direction, e.Name, e.Owner)
}

// Unwrap marks every DuplicatePortError as an ErrInvalidConfiguration.
func (e *DuplicatePortError) Unwrap() error { return ErrInvalidConfiguration }

// UnknownPortError indicates a query for a port that was never declared.
type UnknownPortError struct {
	// Owner names the schema holder that was queried.
	Owner string

	// Name is the unknown port name.
	Name string

	// Direction is the queried direction.
	Direction Direction
}

// Error implements the error interface for UnknownPortError.
func (e *UnknownPortError) Error() string {
	return fmt.Sprintf("unknown %s port %q on %s", e.Direction, e.Name, e.Owner)
}

// Unwrap marks every UnknownPortError as an ErrInvalidConfiguration.
func (e *UnknownPortError) Unwrap() error { return ErrInvalidConfiguration }

// UnknownLinkEndpointError indicates that a link references a port that
// resolves to neither a pipeline boundary port nor a declared unit port.
type UnknownLinkEndpointError struct {
	// Link is the offending link.
	Link Link

	// Endpoint is the end of the link that failed to resolve.
	Endpoint Endpoint

	// Suggestion optionally names the closest declared port, derived by
	// edit distance over case-folded names. Empty when nothing is close
	// enough to be a plausible typo.
	Suggestion string
}

// Error implements the error interface for UnknownLinkEndpointError.
func (e *UnknownLinkEndpointError) Error() string {
	msg := fmt.Sprintf("link %q references unknown port %q", e.Link, e.Endpoint)
	if e.Suggestion != "" {
		msg += fmt.Sprintf(" (did you mean %q?)", e.Suggestion)
	}
	return msg
}

// Unwrap marks every UnknownLinkEndpointError as an ErrInvalidConfiguration.
func (e *UnknownLinkEndpointError) Unwrap() error { return ErrInvalidConfiguration }

// CardinalityMismatchError indicates a link whose source and destination
// cardinalities differ. Scalar links scalar, iterative links iterative;
// anything else is a configuration error, never a runtime one.
type CardinalityMismatchError struct {
	// Link is the offending link.
	Link Link

	// Source is the cardinality of the source port.
	Source Cardinality

	// Destination is the cardinality of the destination port.
	Destination Cardinality
}

// Error implements the error interface for CardinalityMismatchError.
func (e *CardinalityMismatchError) Error() string {
	return fmt.Sprintf("link %q: cardinality mismatch (%s source, %s destination)",
		e.Link, e.Source, e.Destination)
}

// Unwrap marks every CardinalityMismatchError as an ErrInvalidConfiguration.
func (e *CardinalityMismatchError) Unwrap() error { return ErrInvalidConfiguration }

// MultipleWritersError indicates that a destination port receives more
// than one link. Every destination is written by exactly one source.
type MultipleWritersError struct {
	// Destination is the port with more than one writer.
	Destination Endpoint

	// First is the link that claimed the destination first.
	First Link

	// Second is the conflicting link.
	Second Link
}

// Error implements the error interface for MultipleWritersError.
func (e *MultipleWritersError) Error() string {
	return fmt.Sprintf("destination %q written by multiple links: %q and %q",
		e.Destination, e.First, e.Second)
}

// Unwrap marks every MultipleWritersError as an ErrInvalidConfiguration.
func (e *MultipleWritersError) Unwrap() error { return ErrInvalidConfiguration }

// UnboundInputError indicates a unit input port with neither an incoming
// link nor a declared default.
type UnboundInputError struct {
	// Unit names the unit owning the unbound input.
	Unit string

	// Port is the unbound input port name.
	Port string
}

// Error implements the error interface for UnboundInputError.
func (e *UnboundInputError) Error() string {
	return fmt.Sprintf("input port %q on unit %q has no incoming link and no default", e.Port, e.Unit)
}

// Unwrap marks every UnboundInputError as an ErrInvalidConfiguration.
func (e *UnboundInputError) Unwrap() error { return ErrInvalidConfiguration }

// DrivingListLengthMismatchError indicates that the iterative inputs
// bound into one run do not share a common length. It is detected at run
// start and is fatal to the whole run: no index can be safely assembled,
// so no partial result is produced.
type DrivingListLengthMismatchError struct {
	// Lengths maps each iterative boundary port name to the length of
	// the list bound to it.
	Lengths map[string]int
}

// Error implements the error interface for DrivingListLengthMismatchError.
// Port names are listed in lexical order for deterministic messages.
func (e *DrivingListLengthMismatchError) Error() string {
	names := make([]string, 0, len(e.Lengths))
	for name := range e.Lengths {
		names = append(names, name)
	}
	sort.Strings(names)

	parts := make([]string, 0, len(names))
	for _, name := range names {
		parts = append(parts, fmt.Sprintf("%s=%d", name, e.Lengths[name]))
	}
	return "driving lists have mismatched lengths: " + strings.Join(parts, ", ")
}

// CollaboratorError indicates that the external conversion failed for a
// single driving-list element. The iteration engine records it against
// its index and continues; one item's failure never aborts the batch.
type CollaboratorError struct {
	// Index is the driving-list position of the failed item.
	Index int

	// Unit names the unit whose collaborator failed.
	Unit string

	// Err is the underlying failure.
	Err error
}

// Error implements the error interface for CollaboratorError.
func (e *CollaboratorError) Error() string {
	return fmt.Sprintf("unit %q failed for item %d: %v", e.Unit, e.Index, e.Err)
}

// Unwrap returns the underlying error, supporting errors.Is and errors.As.
func (e *CollaboratorError) Unwrap() error { return e.Err }
