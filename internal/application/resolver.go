package application

import (
	"sort"

	"github.com/agnivade/levenshtein"
	"golang.org/x/text/cases"

	"github.com/dcmio/dcmflow/internal/domain"
)

// suggestionMaxDistance bounds the edit distance for "did you mean"
// candidates in endpoint errors. Distance 2 covers pluralization slips
// ("snap_files" for "snap_file") and single-character typos without
// proposing unrelated ports.
const suggestionMaxDistance = 2

// InputBinding describes how one unit input port receives its value:
// either projected from a boundary source port or filled from the
// declared default.
type InputBinding struct {
	// Port is the unit input port being bound.
	Port domain.Port

	// Source is the boundary port supplying the value. Zero when the
	// default applies.
	Source domain.Endpoint

	// HasSource reports whether an incoming link supplies the value.
	HasSource bool

	// Default is the fallback value used when HasSource is false.
	Default any
}

// OutputBinding describes how one boundary output port collects its
// values from a unit output port.
type OutputBinding struct {
	// Boundary is the boundary output port name.
	Boundary string

	// Source is the unit output endpoint feeding the boundary port.
	Source domain.Endpoint

	// Cardinality is the shared cardinality of both ends.
	Cardinality domain.Cardinality
}

// ResolvedGraph is the validated, materialized wiring of a pipeline:
// every link checked against the declared schemas, every destination
// owned by exactly one source, every unit input covered by a link or a
// default. It is produced once before any invocation and consumed
// read-only by the iteration engine.
type ResolvedGraph struct {
	boundary *domain.PortSchema
	units    map[string]*domain.PortSchema

	// writers maps each destination endpoint to its single source.
	writers map[domain.Endpoint]domain.Endpoint
}

// Boundary returns the pipeline boundary schema.
func (g *ResolvedGraph) Boundary() *domain.PortSchema { return g.boundary }

// UnitSchema returns the port schema declared by the named unit.
func (g *ResolvedGraph) UnitSchema(name string) (*domain.PortSchema, bool) {
	schema, ok := g.units[name]
	return schema, ok
}

// UnitNames returns the resolved unit names in lexical order.
func (g *ResolvedGraph) UnitNames() []string {
	names := make([]string, 0, len(g.units))
	for name := range g.units {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Writer returns the single source endpoint feeding the given
// destination, if any.
func (g *ResolvedGraph) Writer(destination domain.Endpoint) (domain.Endpoint, bool) {
	source, ok := g.writers[destination]
	return source, ok
}

// UnitInputBindings returns one binding per declared input port of the
// named unit, in declaration order.
func (g *ResolvedGraph) UnitInputBindings(unit string) []InputBinding {
	schema, ok := g.units[unit]
	if !ok {
		return nil
	}

	inputs := schema.Inputs()
	bindings := make([]InputBinding, 0, len(inputs))
	for _, port := range inputs {
		binding := InputBinding{Port: port}
		if source, ok := g.writers[domain.Endpoint{Unit: unit, Port: port.Name}]; ok {
			binding.Source = source
			binding.HasSource = true
		} else if value, ok := schema.Default(port.Name); ok {
			binding.Default = value
		}
		bindings = append(bindings, binding)
	}
	return bindings
}

// OutputBindings returns one binding per linked boundary output port,
// in boundary declaration order. Boundary outputs without a writer are
// omitted; their result columns stay gap-filled.
func (g *ResolvedGraph) OutputBindings() []OutputBinding {
	outputs := g.boundary.Outputs()
	bindings := make([]OutputBinding, 0, len(outputs))
	for _, port := range outputs {
		source, ok := g.writers[domain.Endpoint{Port: port.Name}]
		if !ok {
			continue
		}
		bindings = append(bindings, OutputBinding{
			Boundary:    port.Name,
			Source:      source,
			Cardinality: port.Cardinality,
		})
	}
	return bindings
}

// Resolve validates and materializes the wiring graph between the
// pipeline boundary and the unit schemas. Validation happens in a fixed
// order per link: endpoint existence, cardinality equality, single
// writer per destination; then every non-defaulted unit input must have
// an incoming link. Resolution is pure and side-effect-free, and runs
// exactly once, before any invocation.
func Resolve(links []domain.Link, boundary *domain.PortSchema, units map[string]*domain.PortSchema) (*ResolvedGraph, error) {
	graph := &ResolvedGraph{
		boundary: boundary,
		units:    units,
		writers:  make(map[domain.Endpoint]domain.Endpoint, len(links)),
	}

	// destination endpoint -> link that claimed it first.
	claimed := make(map[domain.Endpoint]domain.Link, len(links))

	for _, link := range links {
		sourcePort, err := graph.lookupPort(link, link.Source, sourceRole)
		if err != nil {
			return nil, err
		}
		destPort, err := graph.lookupPort(link, link.Destination, destinationRole)
		if err != nil {
			return nil, err
		}

		if sourcePort.Cardinality != destPort.Cardinality {
			return nil, &domain.CardinalityMismatchError{
				Link:        link,
				Source:      sourcePort.Cardinality,
				Destination: destPort.Cardinality,
			}
		}

		if first, ok := claimed[link.Destination]; ok {
			return nil, &domain.MultipleWritersError{
				Destination: link.Destination,
				First:       first,
				Second:      link,
			}
		}
		claimed[link.Destination] = link
		graph.writers[link.Destination] = link.Source
	}

	// Every non-defaulted unit input needs a writer.
	for _, unitName := range graph.UnitNames() {
		schema := units[unitName]
		for _, port := range schema.Inputs() {
			endpoint := domain.Endpoint{Unit: unitName, Port: port.Name}
			if _, ok := graph.writers[endpoint]; ok {
				continue
			}
			if _, ok := schema.Default(port.Name); ok {
				continue
			}
			return nil, &domain.UnboundInputError{Unit: unitName, Port: port.Name}
		}
	}

	return graph, nil
}

// endpointRole distinguishes the two ends of a link during lookup: a
// boundary source reads a boundary input, a boundary destination writes
// a boundary output, and vice versa for unit endpoints.
type endpointRole int

const (
	sourceRole endpointRole = iota
	destinationRole
)

// lookupPort resolves an endpoint to its declared port, honoring the
// role-dependent direction. Unknown endpoints produce an
// UnknownLinkEndpointError carrying the closest declared candidate.
func (g *ResolvedGraph) lookupPort(link domain.Link, endpoint domain.Endpoint, role endpointRole) (domain.Port, error) {
	var schema *domain.PortSchema
	var dir domain.Direction

	if endpoint.IsBoundary() {
		schema = g.boundary
		// Data flows in through boundary inputs and out through
		// boundary outputs.
		if role == sourceRole {
			dir = domain.DirectionInput
		} else {
			dir = domain.DirectionOutput
		}
	} else {
		unitSchema, ok := g.units[endpoint.Unit]
		if !ok {
			return domain.Port{}, &domain.UnknownLinkEndpointError{
				Link:       link,
				Endpoint:   endpoint,
				Suggestion: g.suggest(endpoint, role),
			}
		}
		schema = unitSchema
		if role == sourceRole {
			dir = domain.DirectionOutput
		} else {
			dir = domain.DirectionInput
		}
	}

	port, err := schema.Port(endpoint.Port, dir)
	if err != nil {
		return domain.Port{}, &domain.UnknownLinkEndpointError{
			Link:       link,
			Endpoint:   endpoint,
			Suggestion: g.suggest(endpoint, role),
		}
	}
	return port, nil
}

// suggest returns the declared endpoint closest to the unknown one by
// edit distance over case-folded names, or empty when nothing is within
// suggestionMaxDistance. Candidates are restricted to endpoints valid in
// the unknown endpoint's position.
func (g *ResolvedGraph) suggest(unknown domain.Endpoint, role endpointRole) string {
	boundaryDir, unitDir := domain.DirectionInput, domain.DirectionOutput
	if role == destinationRole {
		boundaryDir, unitDir = domain.DirectionOutput, domain.DirectionInput
	}

	candidates := make([]string, 0, 16)
	for _, name := range g.boundary.PortNames(boundaryDir) {
		candidates = append(candidates, domain.Endpoint{Port: name}.String())
	}
	for unitName, schema := range g.units {
		for _, name := range schema.PortNames(unitDir) {
			candidates = append(candidates, domain.Endpoint{Unit: unitName, Port: name}.String())
		}
	}
	sort.Strings(candidates)

	folder := cases.Fold()
	target := folder.String(unknown.String())

	best := ""
	bestDistance := suggestionMaxDistance + 1
	for _, candidate := range candidates {
		distance := levenshtein.ComputeDistance(target, folder.String(candidate))
		if distance < bestDistance {
			best = candidate
			bestDistance = distance
		}
	}
	return best
}
