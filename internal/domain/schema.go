package domain

// PortSchema is the declared set of input and output ports for one owner:
// a unit or the pipeline boundary. Declarations are made once during
// construction; the schema is read-only afterwards.
//
// Port names are unique per direction. Scalar inputs may carry a default
// value used when no link supplies one; iterative ports and outputs never
// carry defaults.
type PortSchema struct {
	// owner names the schema holder for error reporting, e.g. a unit
	// name or "pipeline" for the boundary.
	owner string

	inputs  map[string]Port
	outputs map[string]Port

	// Declaration order is preserved so diagnostics and projections are
	// deterministic.
	inputOrder  []string
	outputOrder []string
}

// PortOption customizes a port declaration.
type PortOption func(*Port)

// WithDefault attaches a default value to a scalar input declaration.
// Declaring a default on an iterative port or an output is a
// configuration error reported by Declare.
func WithDefault(value any) PortOption {
	return func(p *Port) {
		p.HasDefault = true
		p.Default = value
	}
}

// NewPortSchema creates an empty schema for the named owner.
func NewPortSchema(owner string) *PortSchema {
	return &PortSchema{
		owner:   owner,
		inputs:  make(map[string]Port),
		outputs: make(map[string]Port),
	}
}

// Owner returns the name of the schema holder.
func (s *PortSchema) Owner() string { return s.owner }

// Declare registers a port on the schema.
// It fails with DuplicatePortError if a port with the same name and
// direction already exists, and with a configuration error if the name,
// direction, or cardinality is invalid, or if a default is attached to
// anything other than a scalar input.
func (s *PortSchema) Declare(name string, dir Direction, card Cardinality, opts ...PortOption) error {
	if name == "" {
		return NewConfigError(s.owner, "port name cannot be empty")
	}
	if !dir.Valid() {
		return NewConfigError(s.owner, "invalid direction %q for port %q", dir, name)
	}
	if !card.Valid() {
		return NewConfigError(s.owner, "invalid cardinality %q for port %q", card, name)
	}

	port := Port{Name: name, Direction: dir, Cardinality: card}
	for _, opt := range opts {
		opt(&port)
	}

	if port.HasDefault && (dir != DirectionInput || card != CardinalityScalar) {
		return NewConfigError(s.owner, "default declared on %s %s port %q: only scalar inputs may carry defaults", card, dir, name)
	}

	table, order := s.table(dir)
	if _, exists := table[name]; exists {
		return &DuplicatePortError{Owner: s.owner, Name: name, Direction: dir}
	}

	table[name] = port
	*order = append(*order, name)
	return nil
}

// CardinalityOf returns the cardinality of the named port in the given
// direction. It fails with UnknownPortError if the port was never declared.
func (s *PortSchema) CardinalityOf(name string, dir Direction) (Cardinality, error) {
	port, err := s.Port(name, dir)
	if err != nil {
		return "", err
	}
	return port.Cardinality, nil
}

// Port returns the declared port by name and direction, or
// UnknownPortError if absent.
func (s *PortSchema) Port(name string, dir Direction) (Port, error) {
	table, _ := s.table(dir)
	port, ok := table[name]
	if !ok {
		return Port{}, &UnknownPortError{Owner: s.owner, Name: name, Direction: dir}
	}
	return port, nil
}

// Has reports whether a port with the given name and direction exists.
func (s *PortSchema) Has(name string, dir Direction) bool {
	table, _ := s.table(dir)
	_, ok := table[name]
	return ok
}

// Default returns the declared default value for the named input port.
// The second result is false when the port has no default.
func (s *PortSchema) Default(name string) (any, bool) {
	port, ok := s.inputs[name]
	if !ok || !port.HasDefault {
		return nil, false
	}
	return port.Default, true
}

// Inputs returns all declared input ports in declaration order.
func (s *PortSchema) Inputs() []Port { return s.collect(s.inputs, s.inputOrder) }

// Outputs returns all declared output ports in declaration order.
func (s *PortSchema) Outputs() []Port { return s.collect(s.outputs, s.outputOrder) }

// PortNames returns the names of all declared ports in the given
// direction, in declaration order. Useful for diagnostics.
func (s *PortSchema) PortNames(dir Direction) []string {
	_, order := s.table(dir)
	names := make([]string, len(*order))
	copy(names, *order)
	return names
}

func (s *PortSchema) collect(table map[string]Port, order []string) []Port {
	result := make([]Port, 0, len(order))
	for _, name := range order {
		result = append(result, table[name])
	}
	return result
}

func (s *PortSchema) table(dir Direction) (map[string]Port, *[]string) {
	if dir == DirectionOutput {
		return s.outputs, &s.outputOrder
	}
	return s.inputs, &s.inputOrder
}
