package application

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/go-playground/validator/v10"
	"golang.org/x/sync/singleflight"
	"gopkg.in/yaml.v3"

	"github.com/dcmio/dcmflow/internal/domain"
	"github.com/dcmio/dcmflow/internal/ports"
)

// PipelineLoader provides YAML declaration parsing, validation, and
// caching for pipelines, turning the declarative document into a
// runnable Pipeline. Identical declarations share one compiled instance
// through SHA256-based caching, and singleflight collapses concurrent
// loads of the same document into a single build.
type PipelineLoader struct {
	// validator performs struct field validation and custom validation
	// rules for pipeline declarations.
	validator *validator.Validate
	// unitRegistry provides factory methods for creating units based on
	// their declared type.
	unitRegistry ports.UnitRegistry
	// engineOpts are applied to the engine of every pipeline this
	// loader builds.
	engineOpts []EngineOption
	// cache stores built pipelines indexed by the SHA256 hash of the
	// normalized declaration. Cached pipelines are immutable.
	cache map[string]*Pipeline
	// cacheMu protects the cache map.
	cacheMu sync.RWMutex
	// sf prevents duplicate builds when multiple goroutines load the
	// same declaration simultaneously.
	sf singleflight.Group
}

// NewPipelineLoader creates a pipeline loader with validation
// capabilities and an empty cache. Engine options are applied to every
// pipeline the loader builds.
// It returns an error if validator registration fails.
func NewPipelineLoader(unitRegistry ports.UnitRegistry, engineOpts ...EngineOption) (*PipelineLoader, error) {
	v := validator.New()
	if err := registerCustomValidators(v); err != nil {
		return nil, fmt.Errorf("failed to register validators: %w", err)
	}

	return &PipelineLoader{
		validator:    v,
		unitRegistry: unitRegistry,
		engineOpts:   engineOpts,
		cache:        make(map[string]*Pipeline),
	}, nil
}

// load is the common implementation for loading pipelines from byte
// data. Validation happens before the singleflight section so every
// caller sees declaration errors; the build itself runs once per hash.
func (pl *PipelineLoader) load(data []byte) (*Pipeline, error) {
	config, err := pl.parseYAML(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	// Hash the normalized config, not the raw bytes, so formatting
	// differences still hit the cache.
	hash, err := pl.calculateConfigHash(config)
	if err != nil {
		return nil, fmt.Errorf("failed to calculate hash: %w", err)
	}

	v, err, _ := pl.sf.Do(hash, func() (any, error) {
		if pipeline, ok := pl.getCached(hash); ok {
			return pipeline, nil
		}

		if err := pl.validateConfig(config); err != nil {
			return nil, fmt.Errorf("validation failed: %w", err)
		}

		pipeline, err := Build(config, pl.unitRegistry, pl.engineOpts...)
		if err != nil {
			return nil, fmt.Errorf("failed to build pipeline: %w", err)
		}

		pl.cachePipeline(hash, pipeline)
		return pipeline, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Pipeline), nil
}

// LoadFromFile loads and builds a pipeline from a YAML declaration
// file, utilizing SHA256-based caching to avoid rebuilding identical
// declarations.
func (pl *PipelineLoader) LoadFromFile(path string) (*Pipeline, error) {
	// Clean the path to prevent directory traversal.
	cleanPath := filepath.Clean(path)

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	return pl.load(data)
}

// LoadFromReader loads and builds a pipeline from an io.Reader,
// supporting any source that implements the Reader interface.
func (pl *PipelineLoader) LoadFromReader(r io.Reader) (*Pipeline, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read data: %w", err)
	}
	return pl.load(data)
}

// parseYAML unmarshals the declaration using strict decoding so unknown
// fields fail loudly instead of being silently ignored.
func (pl *PipelineLoader) parseYAML(data []byte) (*PipelineConfig, error) {
	var config PipelineConfig
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)

	if err := decoder.Decode(&config); err != nil {
		return nil, fmt.Errorf("YAML decode failed: %w", err)
	}
	return &config, nil
}

// validateConfig performs struct field validation followed by semantic
// validation of relationships between declaration elements.
func (pl *PipelineLoader) validateConfig(config *PipelineConfig) error {
	if err := pl.validator.Struct(config); err != nil {
		return fmt.Errorf("struct validation failed: %w", err)
	}
	if err := pl.validateSemantics(config); err != nil {
		return fmt.Errorf("semantic validation failed: %w", err)
	}
	return nil
}

// validateSemantics enforces rules struct tags cannot express:
// uniqueness of unit IDs and boundary port names, and unit references
// in link endpoints pointing at declared units. Port-level resolution
// happens later, against the actual unit schemas.
func (pl *PipelineLoader) validateSemantics(config *PipelineConfig) error {
	unitIDs := make(map[string]struct{}, len(config.Units))
	for _, unit := range config.Units {
		if _, exists := unitIDs[unit.ID]; exists {
			return fmt.Errorf("duplicate unit ID %q", unit.ID)
		}
		unitIDs[unit.ID] = struct{}{}

		if err := ValidateUnitParameters(unit.Type, unit.Parameters); err != nil {
			return fmt.Errorf("unit %s parameter validation failed: %w", unit.ID, err)
		}
	}

	portNames := make(map[string]string) // name -> direction for error messages.
	for _, port := range config.Ports.Inputs {
		if dir, exists := portNames[port.Name]; exists {
			return fmt.Errorf("duplicate boundary port %q: already declared as %s", port.Name, dir)
		}
		portNames[port.Name] = "input"
	}
	for _, port := range config.Ports.Outputs {
		if dir, exists := portNames[port.Name]; exists {
			return fmt.Errorf("duplicate boundary port %q: already declared as %s", port.Name, dir)
		}
		portNames[port.Name] = "output"
	}

	for _, link := range config.Links {
		for _, raw := range []string{link.Source, link.Destination} {
			endpoint, err := domain.ParseEndpoint(raw)
			if err != nil {
				return fmt.Errorf("link endpoint %q: %w", raw, err)
			}
			if endpoint.IsBoundary() {
				continue
			}
			if _, exists := unitIDs[endpoint.Unit]; !exists {
				return fmt.Errorf("link endpoint %q references non-existent unit: %s", raw, endpoint.Unit)
			}
		}
	}

	return nil
}

// calculateConfigHash computes the SHA256 hash of the re-encoded
// declaration so semantically identical documents share a cache entry
// regardless of whitespace differences.
func (pl *PipelineLoader) calculateConfigHash(config *PipelineConfig) (string, error) {
	var buf bytes.Buffer
	encoder := yaml.NewEncoder(&buf)
	encoder.SetIndent(2)

	if err := encoder.Encode(config); err != nil {
		return "", fmt.Errorf("failed to encode config for hashing: %w", err)
	}

	hash := sha256.Sum256(buf.Bytes())
	return hex.EncodeToString(hash[:]), nil
}

// getCached retrieves a previously built pipeline by declaration hash.
func (pl *PipelineLoader) getCached(hash string) (*Pipeline, bool) {
	pl.cacheMu.RLock()
	defer pl.cacheMu.RUnlock()

	pipeline, ok := pl.cache[hash]
	return pipeline, ok
}

// cachePipeline stores a built pipeline under its declaration hash.
func (pl *PipelineLoader) cachePipeline(hash string, pipeline *Pipeline) {
	pl.cacheMu.Lock()
	defer pl.cacheMu.Unlock()

	pl.cache[hash] = pipeline
}

// ClearCache removes all cached pipelines, forcing subsequent loads to
// rebuild from source.
func (pl *PipelineLoader) ClearCache() {
	pl.cacheMu.Lock()
	defer pl.cacheMu.Unlock()

	pl.cache = make(map[string]*Pipeline)
}
