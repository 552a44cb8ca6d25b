package application

import (
	"fmt"
	"sort"
	"sync"

	"github.com/dcmio/dcmflow/infrastructure/units"
	"github.com/dcmio/dcmflow/internal/ports"
)

// Verify interface compliance at compile time.
var _ ports.UnitRegistry = (*DefaultUnitRegistry)(nil)

// DefaultUnitRegistry implements the UnitRegistry interface providing a
// factory for creating pipeline units based on type and configuration.
// It supports dynamic registration of unit factories and injects the
// converter collaborator into units that require it.
type DefaultUnitRegistry struct {
	// factories maps unit type strings to their factory functions.
	factories map[string]ports.UnitFactory
	// mu protects concurrent access to the factories map.
	mu sync.RWMutex
	// converter is the collaborator injected into conversion units.
	converter ports.Converter
}

// NewDefaultUnitRegistry creates a unit registry with the standard unit
// types pre-registered. The converter is handed to every
// dicom_converter unit the registry creates.
func NewDefaultUnitRegistry(converter ports.Converter) *DefaultUnitRegistry {
	registry := &DefaultUnitRegistry{
		factories: make(map[string]ports.UnitFactory),
		converter: converter,
	}
	registry.registerBuiltinFactories()
	return registry
}

// registerBuiltinFactories registers the standard unit types.
func (r *DefaultUnitRegistry) registerBuiltinFactories() {
	converter := r.converter

	r.factories["dicom_converter"] = func(id string, config map[string]any) (ports.Unit, error) {
		return units.NewConvertUnit(id, converter, config)
	}
}

// CreateUnit creates a new unit instance based on the provided type,
// identifier, and configuration. It looks up the appropriate factory
// function and delegates unit creation.
func (r *DefaultUnitRegistry) CreateUnit(unitType, id string, config map[string]any) (ports.Unit, error) {
	r.mu.RLock()
	factory, exists := r.factories[unitType]
	r.mu.RUnlock()

	if !exists {
		return nil, fmt.Errorf("unsupported unit type: %s", unitType)
	}
	if id == "" {
		return nil, fmt.Errorf("unit ID cannot be empty")
	}
	if config == nil {
		config = make(map[string]any)
	}

	unit, err := factory(id, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create unit %s of type %s: %w", id, unitType, err)
	}
	return unit, nil
}

// RegisterFactory registers a factory function for a unit type,
// replacing any existing registration. This allows extending the
// registry with custom unit types at runtime.
func (r *DefaultUnitRegistry) RegisterFactory(unitType string, factory ports.UnitFactory) {
	if unitType == "" || factory == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[unitType] = factory
}

// SupportedTypes returns all registered unit types in lexical order.
func (r *DefaultUnitRegistry) SupportedTypes() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	types := make([]string, 0, len(r.factories))
	for unitType := range r.factories {
		types = append(types, unitType)
	}
	sort.Strings(types)
	return types
}
