package application

import (
	"fmt"
	"regexp"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/dcmio/dcmflow/internal/domain"
)

// portNamePattern matches snake_case identifiers used for unit and port
// names: a leading letter followed by letters, digits, and underscores.
var portNamePattern = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9_]*$`)

// registerCustomValidators registers domain-specific validation functions
// with the validator instance: semantic version, port-name, and
// link-endpoint formats.
// registerCustomValidators returns an error if any registration fails.
func registerCustomValidators(v *validator.Validate) error {
	if err := v.RegisterValidation("semver", validateSemver); err != nil {
		return fmt.Errorf("failed to register semver validator: %w", err)
	}

	if err := v.RegisterValidation("portname", validatePortName); err != nil {
		return fmt.Errorf("failed to register portname validator: %w", err)
	}

	if err := v.RegisterValidation("endpoint", validateEndpoint); err != nil {
		return fmt.Errorf("failed to register endpoint validator: %w", err)
	}

	return nil
}

// validateSemver validates that a string follows semantic versioning
// format (X.Y.Z where X, Y, Z are non-negative integers).
func validateSemver(fl validator.FieldLevel) bool {
	value := fl.Field().String()
	var major, minor, patch int
	n, err := fmt.Sscanf(value, "%d.%d.%d", &major, &minor, &patch)
	return err == nil && n == 3
}

// validatePortName validates unit and port identifiers: snake_case,
// starting with a letter, no separators that would collide with the
// "unit.port" endpoint syntax.
func validatePortName(fl validator.FieldLevel) bool {
	return portNamePattern.MatchString(fl.Field().String())
}

// validateEndpoint validates the link endpoint syntax: "port" for a
// boundary port or "unit.port" for a unit port.
func validateEndpoint(fl validator.FieldLevel) bool {
	_, err := domain.ParseEndpoint(fl.Field().String())
	return err == nil
}

// ValidateUnitParameters validates the parameters for a specific unit
// type before instantiation, so malformed declarations are rejected at
// load time with the offending unit identified.
// ValidateUnitParameters returns an error if parameter decoding fails
// or if any validation rule is violated.
func ValidateUnitParameters(unitType string, params yaml.Node) error {
	var paramMap map[string]any
	if params.Kind != 0 {
		if err := params.Decode(&paramMap); err != nil {
			return fmt.Errorf("failed to decode parameters: %w", err)
		}
	}

	switch unitType {
	case "dicom_converter":
		return validateConverterParams(paramMap)
	case "custom":
		// Custom units carry their own validation in their factory.
		return nil
	default:
		return fmt.Errorf("unknown unit type: %s", unitType)
	}
}

// validateConverterParams validates dicom_converter parameters: every
// key must be a known option and dcm_tags entries must carry both a name
// and a "group,element" tag.
func validateConverterParams(params map[string]any) error {
	known := map[string]struct{}{
		"dcm_tags":                    {},
		"date_in_filename":            {},
		"reorient":                    {},
		"reorient_and_crop":           {},
		"output_directory":            {},
		"with_additional_information": {},
	}
	for key := range params {
		if _, ok := known[key]; !ok {
			return fmt.Errorf("dicom_converter: unknown parameter %q", key)
		}
	}

	tags, ok := params["dcm_tags"]
	if !ok {
		return nil
	}
	tagList, ok := tags.([]any)
	if !ok {
		return fmt.Errorf("dicom_converter: dcm_tags must be a list")
	}
	for i, entry := range tagList {
		tag, ok := entry.(map[string]any)
		if !ok {
			return fmt.Errorf("dicom_converter: dcm_tags[%d] must be a mapping with name and tag", i)
		}
		if name, _ := tag["name"].(string); name == "" {
			return fmt.Errorf("dicom_converter: dcm_tags[%d] missing name", i)
		}
		if value, _ := tag["tag"].(string); value == "" {
			return fmt.Errorf("dicom_converter: dcm_tags[%d] missing tag", i)
		}
	}

	return nil
}
