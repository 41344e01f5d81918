package interchange

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/aretw0/scenaria/pkg/domain"
	"github.com/aretw0/scenaria/pkg/schema"
	"gopkg.in/yaml.v3"
)

// Format selects the document encoding.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// FormatFromPath picks the encoding from a file extension, defaulting to JSON.
func FormatFromPath(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML
	}
	return FormatJSON
}

// Encode serializes the document.
func Encode(doc *Document, format Format) ([]byte, error) {
	switch format {
	case FormatYAML:
		var buf bytes.Buffer
		enc := yaml.NewEncoder(&buf)
		enc.SetIndent(2)
		if err := enc.Encode(doc); err != nil {
			return nil, fmt.Errorf("failed to encode yaml: %w", err)
		}
		if err := enc.Close(); err != nil {
			return nil, fmt.Errorf("failed to encode yaml: %w", err)
		}
		return buf.Bytes(), nil
	case FormatJSON, "":
		data, err := json.MarshalIndent(doc, "", "  ")
		if err != nil {
			return nil, fmt.Errorf("failed to encode json: %w", err)
		}
		return append(data, '\n'), nil
	}
	return nil, fmt.Errorf("unknown format %q", format)
}

// Decode parses and schema-checks a document. Schema failures are returned as a
// *domain.ValidationError wrapping the individual violations.
func Decode(data []byte, format Format) (*Document, error) {
	var doc Document
	switch format {
	case FormatYAML:
		var raw any
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return nil, &domain.ValidationError{Field: "document", Reason: err.Error()}
		}
		if err := schema.ValidateValue(raw); err != nil {
			return nil, &domain.ValidationError{Field: "document", Reason: err.Error()}
		}
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return nil, &domain.ValidationError{Field: "document", Reason: err.Error()}
		}
	case FormatJSON, "":
		if err := schema.ValidateDocument(data); err != nil {
			return nil, &domain.ValidationError{Field: "document", Reason: err.Error()}
		}
		if err := json.Unmarshal(data, &doc); err != nil {
			return nil, &domain.ValidationError{Field: "document", Reason: err.Error()}
		}
	default:
		return nil, fmt.Errorf("unknown format %q", format)
	}
	return &doc, nil
}

// Unmarshal decodes data and converts it into a scenario.
func Unmarshal(data []byte, format Format) (*domain.Scenario, error) {
	doc, err := Decode(data, format)
	if err != nil {
		return nil, err
	}
	return Import(doc)
}

// Marshal exports sc and encodes it.
func Marshal(sc *domain.Scenario, format Format) ([]byte, error) {
	doc, err := Export(sc)
	if err != nil {
		return nil, err
	}
	return Encode(doc, format)
}

// ReadFile loads a scenario from disk, picking the format from the extension.
func ReadFile(path string) (*domain.Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario: %w", err)
	}
	sc, err := Unmarshal(data, FormatFromPath(path))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return sc, nil
}

// WriteFile exports sc to disk, picking the format from the extension.
func WriteFile(path string, sc *domain.Scenario) error {
	data, err := Marshal(sc, FormatFromPath(path))
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}
