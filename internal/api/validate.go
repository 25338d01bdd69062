package api

import (
	"bytes"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path"

	"github.com/punchamoorthee/cardexchange/internal/domain"
	"github.com/santhosh-tekuri/jsonschema/v5"
)

const maxBodyBytes = 64 << 10

//go:embed schemas/*.json
var schemaFS embed.FS

var schemas = mustCompileSchemas()

func mustCompileSchemas() map[string]*jsonschema.Schema {
	entries, err := schemaFS.ReadDir("schemas")
	if err != nil {
		panic(err)
	}

	compiler := jsonschema.NewCompiler()
	for _, e := range entries {
		data, err := schemaFS.ReadFile(path.Join("schemas", e.Name()))
		if err != nil {
			panic(err)
		}
		if err := compiler.AddResource(e.Name(), bytes.NewReader(data)); err != nil {
			panic(fmt.Sprintf("schema %s: %v", e.Name(), err))
		}
	}

	out := make(map[string]*jsonschema.Schema, len(entries))
	for _, e := range entries {
		out[e.Name()] = compiler.MustCompile(e.Name())
	}
	return out
}

// decodeBody validates the request body against the named schema, then
// decodes it into dst. Any failure is domain.ErrInvalidInput.
func decodeBody(r *http.Request, schema string, dst any) error {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes+1))
	if err != nil {
		return fmt.Errorf("%w: unreadable body", domain.ErrInvalidInput)
	}
	if len(body) > maxBodyBytes {
		return fmt.Errorf("%w: body too large", domain.ErrInvalidInput)
	}

	var doc any
	if err := json.Unmarshal(body, &doc); err != nil {
		return fmt.Errorf("%w: malformed JSON body", domain.ErrInvalidInput)
	}
	if err := schemas[schema].Validate(doc); err != nil {
		return fmt.Errorf("%w: %s", domain.ErrInvalidInput, describe(err))
	}
	if err := json.Unmarshal(body, dst); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrInvalidInput, err)
	}
	return nil
}

// describe flattens a schema failure to its first leaf cause.
func describe(err error) string {
	var ve *jsonschema.ValidationError
	if !errors.As(err, &ve) {
		return err.Error()
	}
	for len(ve.Causes) > 0 {
		ve = ve.Causes[0]
	}
	loc := ve.InstanceLocation
	if loc == "" {
		loc = "body"
	}
	return fmt.Sprintf("%s: %s", loc, ve.Message)
}
