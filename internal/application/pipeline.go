package application

import (
	"context"
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/dcmio/dcmflow/internal/domain"
	"github.com/dcmio/dcmflow/internal/ports"
)

// Pipeline is the façade callers interact with: a validated declaration
// turned into a runnable object. Construction is fail-fast; every
// wiring defect surfaces from Build, so a Pipeline that exists can only
// fail per-item at run time.
type Pipeline struct {
	name   string
	unit   ports.Unit
	graph  *ResolvedGraph
	engine *Engine
}

// Build materializes a pipeline from its validated configuration:
// creates the unit through the registry, constructs the boundary
// schema, resolves every link against the declared ports, and wires
// the iteration engine.
//
// The engine drives exactly one iterative stage; declarations with
// more than one unit are rejected here rather than half-scheduled.
func Build(config *PipelineConfig, registry ports.UnitRegistry, opts ...EngineOption) (*Pipeline, error) {
	if config == nil {
		return nil, domain.NewConfigError("pipeline", "configuration must not be nil")
	}
	if len(config.Units) != 1 {
		return nil, domain.NewConfigError("pipeline",
			"exactly one unit is supported, got %d", len(config.Units))
	}

	unitConfig := config.Units[0]
	if err := ValidateUnitParameters(unitConfig.Type, unitConfig.Parameters); err != nil {
		return nil, fmt.Errorf("unit %q: %w", unitConfig.ID, err)
	}

	params, err := decodeParameters(unitConfig.Parameters)
	if err != nil {
		return nil, fmt.Errorf("unit %q: decoding parameters: %w", unitConfig.ID, err)
	}

	unit, err := registry.CreateUnit(unitConfig.Type, unitConfig.ID, params)
	if err != nil {
		return nil, fmt.Errorf("creating unit %q: %w", unitConfig.ID, err)
	}
	if err := unit.Validate(); err != nil {
		return nil, fmt.Errorf("unit %q: %w", unitConfig.ID, err)
	}

	boundary, err := buildBoundarySchema(config.Ports)
	if err != nil {
		return nil, err
	}

	links, err := parseLinks(config.Links)
	if err != nil {
		return nil, err
	}

	graph, err := Resolve(links, boundary, map[string]*domain.PortSchema{
		unit.Name(): unit.Schema(),
	})
	if err != nil {
		return nil, err
	}

	opts = append([]EngineOption{WithPipelineName(config.Metadata.Name)}, opts...)
	return &Pipeline{
		name:   config.Metadata.Name,
		unit:   unit,
		graph:  graph,
		engine: NewEngine(opts...),
	}, nil
}

// Name returns the pipeline name from the declaration metadata.
func (p *Pipeline) Name() string { return p.name }

// Graph returns the resolved wiring, for inspection and tooling.
func (p *Pipeline) Graph() *ResolvedGraph { return p.graph }

// Run binds the given values to the pipeline's boundary input ports and
// executes the iterative stage. Iterative ports take a list driving one
// invocation per element; scalar ports take a single run-invariant
// value. Binding a name the boundary does not declare as an input is an
// error before any invocation.
func (p *Pipeline) Run(ctx context.Context, inputs map[string]any) (*domain.RunResult, error) {
	boundary := domain.NewValues()
	for name, value := range inputs {
		if !p.graph.Boundary().Has(name, domain.DirectionInput) {
			if p.graph.Boundary().Has(name, domain.DirectionOutput) {
				return nil, domain.NewConfigError(p.name,
					"port %q is an output and cannot be bound as an input", name)
			}
			return nil, &domain.UnknownPortError{
				Owner: p.name, Name: name, Direction: domain.DirectionInput,
			}
		}
		boundary = boundary.WithRaw(name, value)
	}
	return p.engine.Run(ctx, p.unit, p.graph, boundary)
}

// buildBoundarySchema declares the pipeline boundary ports from the
// configuration, carrying scalar defaults across.
func buildBoundarySchema(config BoundaryConfig) (*domain.PortSchema, error) {
	schema := domain.NewPortSchema("pipeline")
	for _, port := range config.Inputs {
		var opts []domain.PortOption
		if port.HasDefault() {
			value, err := port.DecodedDefault()
			if err != nil {
				return nil, fmt.Errorf("boundary input %q: decoding default: %w", port.Name, err)
			}
			opts = append(opts, domain.WithDefault(value))
		}
		if err := schema.Declare(port.Name, domain.DirectionInput, domain.Cardinality(port.Cardinality), opts...); err != nil {
			return nil, err
		}
	}
	for _, port := range config.Outputs {
		if err := schema.Declare(port.Name, domain.DirectionOutput, domain.Cardinality(port.Cardinality)); err != nil {
			return nil, err
		}
	}
	return schema, nil
}

// decodeParameters turns the raw unit parameter node into the generic
// map the registry factories consume. An absent node yields an empty
// map so units with all-default configuration need no parameters block.
func decodeParameters(node yaml.Node) (map[string]any, error) {
	if node.Kind == 0 {
		return map[string]any{}, nil
	}
	var params map[string]any
	if err := node.Decode(&params); err != nil {
		return nil, err
	}
	if params == nil {
		params = map[string]any{}
	}
	return params, nil
}

// parseLinks converts the textual link declarations into endpoints.
func parseLinks(configs []LinkConfig) ([]domain.Link, error) {
	links := make([]domain.Link, 0, len(configs))
	for _, lc := range configs {
		source, err := domain.ParseEndpoint(lc.Source)
		if err != nil {
			return nil, fmt.Errorf("link source %q: %w", lc.Source, err)
		}
		destination, err := domain.ParseEndpoint(lc.Destination)
		if err != nil {
			return nil, fmt.Errorf("link destination %q: %w", lc.Destination, err)
		}
		links = append(links, domain.Link{Source: source, Destination: destination})
	}
	return links, nil
}
