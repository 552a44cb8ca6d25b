package application

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dcmio/dcmflow/internal/ports"
	"github.com/dcmio/dcmflow/internal/testutils"
)

func TestDefaultUnitRegistryCreatesConverter(t *testing.T) {
	registry := NewDefaultUnitRegistry(testutils.NewFakeConverter())

	unit, err := registry.CreateUnit("dicom_converter", "converter", map[string]any{
		"reorient": false,
	})
	require.NoError(t, err)
	assert.Equal(t, "converter", unit.Name())
	assert.NoError(t, unit.Validate())
}

func TestDefaultUnitRegistryRejectsUnknownType(t *testing.T) {
	registry := NewDefaultUnitRegistry(testutils.NewFakeConverter())

	_, err := registry.CreateUnit("mystery", "m1", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported unit type")
}

func TestDefaultUnitRegistryRejectsEmptyID(t *testing.T) {
	registry := NewDefaultUnitRegistry(testutils.NewFakeConverter())

	_, err := registry.CreateUnit("dicom_converter", "", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unit ID cannot be empty")
}

func TestDefaultUnitRegistryCustomFactory(t *testing.T) {
	registry := NewDefaultUnitRegistry(testutils.NewFakeConverter())

	called := false
	registry.RegisterFactory("custom", func(id string, config map[string]any) (ports.Unit, error) {
		called = true
		return newStubUnit(t), nil
	})

	unit, err := registry.CreateUnit("custom", "c1", nil)
	require.NoError(t, err)
	assert.True(t, called)
	assert.Equal(t, "converter", unit.Name())

	assert.Equal(t, []string{"custom", "dicom_converter"}, registry.SupportedTypes())
}
