// Package apidoc holds the OpenAPI description of the admin API and
// validates request bodies against it.
package apidoc

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/getkin/kin-openapi/openapi3"
)

//go:embed openapi.yaml
var source []byte

var (
	loadOnce sync.Once
	loaded   *Document
	loadErr  error
)

// Document is the parsed and validated admin API description
type Document struct {
	doc *openapi3.T
}

// Load parses and validates the embedded document. The result is shared.
func Load() (*Document, error) {
	loadOnce.Do(func() {
		loaded, loadErr = parse(source)
	})
	return loaded, loadErr
}

func parse(data []byte) (*Document, error) {
	loader := openapi3.NewLoader()
	doc, err := loader.LoadFromData(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse API document: %w", err)
	}
	if err := doc.Validate(loader.Context); err != nil {
		return nil, fmt.Errorf("invalid API document: %w", err)
	}
	return &Document{doc: doc}, nil
}

// Spec returns the underlying OpenAPI document
func (d *Document) Spec() *openapi3.T {
	return d.doc
}

// JSON returns the document as JSON
func (d *Document) JSON() ([]byte, error) {
	return d.doc.MarshalJSON()
}

// HasOperation reports whether method and path are documented. path uses
// gin's ":param" syntax.
func (d *Document) HasOperation(method, path string) bool {
	return d.operation(method, path) != nil
}

// ValidateBody checks a JSON request body against the schema documented
// for the route. Undocumented routes and bodies pass.
func (d *Document) ValidateBody(ctx context.Context, method, path string, body []byte) error {
	op := d.operation(method, path)
	if op == nil || op.RequestBody == nil || op.RequestBody.Value == nil {
		return nil
	}
	rb := op.RequestBody.Value

	if len(strings.TrimSpace(string(body))) == 0 {
		if rb.Required {
			return fmt.Errorf("request body is required")
		}
		return nil
	}

	mt := rb.Content.Get("application/json")
	if mt == nil || mt.Schema == nil || mt.Schema.Value == nil {
		return nil
	}

	var value any
	if err := json.Unmarshal(body, &value); err != nil {
		return fmt.Errorf("request body is not valid JSON: %w", err)
	}
	if err := mt.Schema.Value.VisitJSON(value); err != nil {
		return fmt.Errorf("request body does not match schema: %w", err)
	}
	return nil
}

func (d *Document) operation(method, path string) *openapi3.Operation {
	item := d.doc.Paths.Find(templatePath(path))
	if item == nil {
		return nil
	}
	return item.GetOperation(strings.ToUpper(method))
}

// templatePath converts "/records/:id" to "/records/{id}"
func templatePath(path string) string {
	segments := strings.Split(path, "/")
	for i, s := range segments {
		if strings.HasPrefix(s, ":") || strings.HasPrefix(s, "*") {
			segments[i] = "{" + s[1:] + "}"
		}
	}
	return strings.Join(segments, "/")
}
