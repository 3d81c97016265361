package server

import (
	"bytes"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed schemas/*.json
var schemaFS embed.FS

const schemaBaseURL = "https://cadence.local/schemas/"

// Schema names.
const (
	schemaTrigger    = "trigger.json"
	schemaOverride   = "override.json"
	schemaExperiment = "experiment.json"
	schemaEvent      = "event.json"
)

type schemas struct {
	byName map[string]*jsonschema.Schema
}

func compileSchemas() (*schemas, error) {
	entries, err := schemaFS.ReadDir("schemas")
	if err != nil {
		return nil, fmt.Errorf("read embedded schemas: %w", err)
	}

	compiler := jsonschema.NewCompiler()
	for _, e := range entries {
		data, err := schemaFS.ReadFile("schemas/" + e.Name())
		if err != nil {
			return nil, fmt.Errorf("read schema %s: %w", e.Name(), err)
		}
		if err := compiler.AddResource(schemaBaseURL+e.Name(), bytes.NewReader(data)); err != nil {
			return nil, fmt.Errorf("add schema resource %s: %w", e.Name(), err)
		}
	}

	out := &schemas{byName: make(map[string]*jsonschema.Schema, len(entries))}
	for _, e := range entries {
		sch, err := compiler.Compile(schemaBaseURL + e.Name())
		if err != nil {
			return nil, fmt.Errorf("compile schema %s: %w", e.Name(), err)
		}
		out.byName[e.Name()] = sch
	}
	return out, nil
}

// decode reads the request body, validates it against the named schema and
// unmarshals it into v.
func (sc *schemas) decode(r *http.Request, name string, v any) error {
	raw, err := io.ReadAll(r.Body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return &requestError{
				status:  http.StatusRequestEntityTooLarge,
				code:    CodeBodyTooLarge,
				message: fmt.Sprintf("request body exceeds %d bytes", tooLarge.Limit),
			}
		}
		return badRequest(CodeInvalidJSON, "failed to read request body")
	}

	var payload any
	if err := json.Unmarshal(raw, &payload); err != nil {
		return badRequest(CodeInvalidJSON, "request body is not valid JSON: "+err.Error())
	}

	sch, ok := sc.byName[name]
	if !ok {
		return fmt.Errorf("unknown schema %q", name)
	}
	if err := sch.Validate(payload); err != nil {
		var ve *jsonschema.ValidationError
		if errors.As(err, &ve) {
			return badRequest(CodeSchemaViolation, "request body failed validation", violations(ve)...)
		}
		return badRequest(CodeSchemaViolation, err.Error())
	}

	if err := json.Unmarshal(raw, v); err != nil {
		return badRequest(CodeInvalidJSON, err.Error())
	}
	return nil
}

// violations flattens a validation error tree into "location: message"
// lines, one per leaf.
func violations(ve *jsonschema.ValidationError) []string {
	var out []string
	var walk func(*jsonschema.ValidationError)
	walk = func(e *jsonschema.ValidationError) {
		if len(e.Causes) == 0 {
			loc := e.InstanceLocation
			if loc == "" {
				loc = "/"
			}
			out = append(out, loc+": "+e.Message)
			return
		}
		for _, c := range e.Causes {
			walk(c)
		}
	}
	walk(ve)
	sort.Strings(out)
	return out
}
