package domain

import (
	"fmt"
	"maps"
	"reflect"
	"time"
)

// Key represents a type-safe generic key for accessing values in Values.
// The type parameter T ensures compile-time type safety when getting and
// setting values, eliminating the need for runtime type assertions.
type Key[T any] struct{ name string }

// NewKey creates a new Key with the specified name and type.
// The name conventionally matches the port name the value flows through.
func NewKey[T any](name string) Key[T] {
	return Key[T]{name: name}
}

// Name returns the string identity of the key, which matches the port
// name the value is bound to.
func (k Key[T]) Name() string { return k.name }

// Predefined keys for the conversion unit's ports. Each key is strongly
// typed so units and the engine agree on the shape of every port value.
var (
	// KeySourceDir stores one DICOM source directory, a single
	// driving-list element.
	KeySourceDir = Key[string]{"source_dir"}

	// KeyAdditionalInformation stores the free metadata payload attached
	// to one driving-list element.
	KeyAdditionalInformation = Key[map[string]string]{"additional_information"}

	// KeyItemIndex stores the driving-list position of the element being
	// processed. The engine injects it so units can derive collision-free
	// per-item output locations.
	KeyItemIndex = Key[int]{"item_index"}

	// Scalar configuration keys, fixed before the run starts.

	// KeyDcmTags stores the DICOM tags to propagate into converted
	// volume metadata.
	KeyDcmTags = Key[[]DcmTag]{"dcm_tags"}

	// KeyDateInFilename stores whether the acquisition date is embedded
	// in generated filenames.
	KeyDateInFilename = Key[bool]{"date_in_filename"}

	// KeyReorient stores whether volumes are reoriented to the nearest
	// orthogonal.
	KeyReorient = Key[bool]{"reorient"}

	// KeyReorientAndCrop stores whether reoriented volumes are also
	// cropped.
	KeyReorientAndCrop = Key[bool]{"reorient_and_crop"}

	// KeyOutputDirectory stores the conversion destination root.
	// Empty means a location derived from the source directory.
	KeyOutputDirectory = Key[string]{"output_directory"}

	// Per-item output keys produced by the conversion unit.

	// KeyConvertedFiles stores the converted volume paths for one item.
	KeyConvertedFiles = Key[[]string]{"converted_files"}

	// KeyReorientedFiles stores the reoriented volume paths for one item.
	KeyReorientedFiles = Key[[]string]{"reoriented_files"}

	// KeyReorientedAndCroppedFiles stores the reoriented-and-cropped
	// volume paths for one item.
	KeyReorientedAndCroppedFiles = Key[[]string]{"reoriented_and_cropped_files"}

	// KeyFilledConvertedFiles stores the metadata-filled volume paths
	// for one item.
	KeyFilledConvertedFiles = Key[[]string]{"filled_converted_files"}

	// KeyBVals stores the diffusion b-value table paths for one item.
	KeyBVals = Key[[]string]{"bvals"}

	// KeyBVecs stores the diffusion b-vector table paths for one item.
	KeyBVecs = Key[[]string]{"bvecs"}

	// KeySnapFile stores the snapshot/QC image path for one item.
	KeySnapFile = Key[string]{"snap_file"}
)

// deepCopyValue creates a deep copy of a value to ensure true immutability.
// It handles slices, maps, and other reference types that would otherwise
// allow external modification of Values data.
func deepCopyValue(value any) any {
	if value == nil {
		return nil
	}

	// time.Time is immutable and can be returned directly.
	if val, ok := value.(time.Time); ok {
		return val
	}

	v := reflect.ValueOf(value)
	switch v.Kind() {
	case reflect.Slice:
		newSlice := reflect.MakeSlice(v.Type(), v.Len(), v.Cap())
		for i := 0; i < v.Len(); i++ {
			newSlice.Index(i).Set(reflect.ValueOf(deepCopyValue(v.Index(i).Interface())))
		}
		return newSlice.Interface()

	case reflect.Map:
		newMap := reflect.MakeMap(v.Type())
		for _, key := range v.MapKeys() {
			copiedKey := deepCopyValue(key.Interface())
			copiedValue := deepCopyValue(v.MapIndex(key).Interface())
			newMap.SetMapIndex(reflect.ValueOf(copiedKey), reflect.ValueOf(copiedValue))
		}
		return newMap.Interface()

	case reflect.Ptr:
		if v.IsNil() {
			return v.Interface()
		}
		newPtr := reflect.New(v.Elem().Type())
		newPtr.Elem().Set(reflect.ValueOf(deepCopyValue(v.Elem().Interface())))
		return newPtr.Interface()

	case reflect.Struct:
		// This performs a shallow copy for unexported fields but deep copies
		// exported fields.
		newStruct := reflect.New(v.Type()).Elem()
		for i := 0; i < v.NumField(); i++ {
			if newStruct.Field(i).CanSet() {
				newStruct.Field(i).Set(reflect.ValueOf(deepCopyValue(v.Field(i).Interface())))
			}
		}
		return newStruct.Interface()

	default:
		// Primitive types are returned as-is since they are copied by value.
		return value
	}
}

// Values is an immutable collection of port-keyed data exchanged between
// the iteration engine and units: scalar configuration assembled once per
// run, and per-item inputs/outputs assembled once per driving-list index.
// It uses copy-on-write semantics to ensure thread-safety and prevent
// unintended mutations, which keeps parallel iteration safe.
type Values struct {
	// data holds the key-value pairs.
	// It is unexported to maintain immutability guarantees.
	data map[string]any
}

// NewValues creates a new empty Values.
// The returned Values is ready to use and can be safely shared across
// goroutines.
func NewValues() Values {
	return Values{
		data: make(map[string]any),
	}
}

// Get retrieves a value with compile-time type safety.
// It returns the value and a boolean indicating whether the key exists
// and contains a value of the correct type. The returned value is a deep
// copy to maintain immutability.
//
// Example:
//
//	dir, ok := Get(item, KeySourceDir)
//	if !ok {
//	    // handle missing value
//	}
//	// dir is typed as string, no type assertion needed
func Get[T any](v Values, key Key[T]) (T, bool) {
	var zero T
	value, exists := v.data[key.name]
	if !exists {
		return zero, false
	}

	copied := deepCopyValue(value)
	val, ok := copied.(T)
	return val, ok
}

// GetRaw is a method version of Get that uses a string key.
// The engine uses it to project values through resolved links, where
// port names are only known at run time. For type safety elsewhere,
// use the generic Get function instead.
func (v Values) GetRaw(keyName string) (any, bool) {
	value, exists := v.data[keyName]
	if !exists {
		return nil, false
	}
	return deepCopyValue(value), true
}

// With creates a new Values with the specified key-value pair added or
// updated. It implements copy-on-write semantics, returning a new Values
// instance while leaving the original unchanged.
//
// Example:
//
//	item := With(NewValues(), KeySourceDir, "/data/s1")
func With[T any](v Values, key Key[T], value T) Values {
	newData := maps.Clone(v.data)
	newData[key.name] = deepCopyValue(value)
	return Values{data: newData}
}

// WithRaw is a method version of With that uses a string key and allows
// chaining. For type safety, use the generic With function instead.
func (v Values) WithRaw(keyName string, value any) Values {
	newData := maps.Clone(v.data)
	newData[keyName] = deepCopyValue(value)
	return Values{data: newData}
}

// WithMultiple creates a new Values with multiple key-value pairs added
// or updated. It is more efficient than chaining multiple With calls as
// it performs a single clone operation.
func (v Values) WithMultiple(updates map[string]any) Values {
	newData := maps.Clone(v.data)
	for k, val := range updates {
		newData[k] = deepCopyValue(val)
	}
	return Values{data: newData}
}

// Keys returns all keys present in the Values.
// The returned slice is safe to modify without affecting the original.
func (v Values) Keys() []string {
	keys := make([]string, 0, len(v.data))
	for k := range v.data {
		keys = append(keys, k)
	}
	return keys
}

// Len returns the number of stored values.
func (v Values) Len() int { return len(v.data) }

// String returns a string representation of the Values for debugging purposes.
func (v Values) String() string {
	return fmt.Sprintf("Values%v", v.data)
}
