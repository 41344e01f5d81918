package schema

import (
	"bytes"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

//go:embed schemas/*.json
var schemaFS embed.FS

const (
	documentURL = "https://scenaria.dev/schemas/document.json"
	verdictURL  = "https://scenaria.dev/schemas/verdict.json"
)

var (
	compileOnce sync.Once
	compileErr  error
	compiled    map[string]*jsonschema.Schema
)

func load() error {
	compileOnce.Do(func() {
		c := jsonschema.NewCompiler()
		compiled = make(map[string]*jsonschema.Schema, 2)

		for url, file := range map[string]string{
			documentURL: "schemas/document.json",
			verdictURL:  "schemas/verdict.json",
		} {
			raw, err := schemaFS.ReadFile(file)
			if err != nil {
				compileErr = fmt.Errorf("read %s: %w", file, err)
				return
			}
			doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(raw))
			if err != nil {
				compileErr = fmt.Errorf("unmarshal %s: %w", file, err)
				return
			}
			if err := c.AddResource(url, doc); err != nil {
				compileErr = fmt.Errorf("add schema resource %s: %w", url, err)
				return
			}
		}
		for _, url := range []string{documentURL, verdictURL} {
			s, err := c.Compile(url)
			if err != nil {
				compileErr = fmt.Errorf("compile %s: %w", url, err)
				return
			}
			compiled[url] = s
		}
	})
	return compileErr
}

// ValidateDocument checks raw JSON against the interchange document schema.
func ValidateDocument(raw []byte) error {
	return validate(documentURL, raw)
}

// ValidateVerdict checks a raw evaluator response against the verdict schema.
func ValidateVerdict(raw []byte) error {
	return validate(verdictURL, raw)
}

// ValidateValue round-trips v through JSON and checks it against the document schema.
// It is used for YAML input, which decodes into plain Go values.
func ValidateValue(v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to serialize value: %w", err)
	}
	return ValidateDocument(raw)
}

func validate(url string, raw []byte) error {
	if err := load(); err != nil {
		return err
	}
	inst, err := jsonschema.UnmarshalJSON(bytes.NewReader(raw))
	if err != nil {
		return &AggregateError{Errors: []error{&ValidationError{Key: "/", Reason: "invalid JSON: " + err.Error()}}}
	}
	if err := compiled[url].Validate(inst); err != nil {
		return toAggregate(err)
	}
	return nil
}

func toAggregate(err error) error {
	var verr *jsonschema.ValidationError
	if !errors.As(err, &verr) {
		return err
	}
	errs := collect(verr)
	if len(errs) == 0 {
		errs = []error{&ValidationError{Key: "/", Reason: verr.Error()}}
	}
	return &AggregateError{Errors: errs}
}

// collect walks a ValidationError tree and keeps the leaf messages.
func collect(verr *jsonschema.ValidationError) []error {
	if len(verr.Causes) == 0 {
		return []error{&ValidationError{
			Key:    "/" + strings.Join(verr.InstanceLocation, "/"),
			Reason: verr.Error(),
		}}
	}
	var out []error
	for _, cause := range verr.Causes {
		out = append(out, collect(cause)...)
	}
	return out
}
