// Package domain contains pure, dependency-free domain models and types
// for the conversion pipeline engine.
package domain

import (
	"fmt"
	"strings"
)

// Cardinality describes how a port participates in an iterative run.
// Scalar ports carry exactly one value for the whole run; iterative ports
// carry one value per element of the driving list.
type Cardinality string

const (
	// CardinalityScalar marks a port whose value is fixed before the run
	// starts and never varies across iteration indices.
	CardinalityScalar Cardinality = "scalar"

	// CardinalityIterative marks a port that is broadcast or collected
	// element-wise over the driving list.
	CardinalityIterative Cardinality = "iterative"
)

// Valid reports whether the cardinality is one of the declared constants.
func (c Cardinality) Valid() bool {
	return c == CardinalityScalar || c == CardinalityIterative
}

// Direction describes whether a port consumes or produces values.
type Direction string

const (
	// DirectionInput marks a port that receives values.
	DirectionInput Direction = "input"

	// DirectionOutput marks a port that emits values.
	DirectionOutput Direction = "output"
)

// Valid reports whether the direction is one of the declared constants.
func (d Direction) Valid() bool {
	return d == DirectionInput || d == DirectionOutput
}

// Port identifies a named slot on a unit or on the pipeline boundary.
// The name is unique within its owner for a given direction.
type Port struct {
	// Name is the port identifier, unique per owner and direction.
	Name string

	// Direction indicates whether the port consumes or produces values.
	Direction Direction

	// Cardinality distinguishes scalar configuration from element-wise
	// iterative data flow.
	Cardinality Cardinality

	// HasDefault reports whether a default value was declared.
	// Only scalar inputs may carry defaults.
	HasDefault bool

	// Default is the declared fallback value used when no link supplies
	// a value. Meaningful only when HasDefault is true.
	Default any
}

// Endpoint locates one end of a link: either a pipeline boundary port
// (Unit is empty) or a unit port addressed as "unit.port".
type Endpoint struct {
	// Unit is the owning unit name, or empty for a boundary port.
	Unit string

	// Port is the port name on the owner.
	Port string
}

// IsBoundary reports whether the endpoint addresses a pipeline boundary
// port rather than a unit port.
func (e Endpoint) IsBoundary() bool { return e.Unit == "" }

// String renders the endpoint in the "unit.port" declaration syntax,
// or the bare port name for boundary endpoints.
func (e Endpoint) String() string {
	if e.Unit == "" {
		return e.Port
	}
	return e.Unit + "." + e.Port
}

// ParseEndpoint parses the declaration syntax used in the link table:
// "port" for a pipeline boundary port, "unit.port" for a unit port.
// It returns an error for empty components or extra separators.
func ParseEndpoint(s string) (Endpoint, error) {
	if s == "" {
		return Endpoint{}, fmt.Errorf("empty link endpoint")
	}

	parts := strings.Split(s, ".")
	switch len(parts) {
	case 1:
		return Endpoint{Port: parts[0]}, nil
	case 2:
		if parts[0] == "" || parts[1] == "" {
			return Endpoint{}, fmt.Errorf("malformed link endpoint %q", s)
		}
		return Endpoint{Unit: parts[0], Port: parts[1]}, nil
	default:
		return Endpoint{}, fmt.Errorf("malformed link endpoint %q: expected \"port\" or \"unit.port\"", s)
	}
}

// Link is a directed edge from a source endpoint to a destination
// endpoint. Cardinalities of both ends must match; the resolver rejects
// links that violate this before any execution.
type Link struct {
	// Source is the endpoint supplying the value.
	Source Endpoint

	// Destination is the endpoint receiving the value.
	// A destination is written by exactly one source.
	Destination Endpoint
}

// String renders the link as "source -> destination".
func (l Link) String() string {
	return l.Source.String() + " -> " + l.Destination.String()
}

// DcmTag names a DICOM tag whose value is propagated into the converted
// volume's metadata. Tag uses the "group,element" hexadecimal notation,
// e.g. "0018,0080" for the repetition time.
type DcmTag struct {
	// Name is the label under which the tag value is stored.
	Name string `yaml:"name" json:"name"`

	// Tag is the DICOM tag in "group,element" hexadecimal form.
	Tag string `yaml:"tag" json:"tag"`
}
