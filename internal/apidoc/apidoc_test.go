package apidoc

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
)

func TestLoad(t *testing.T) {
	doc, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if doc.Spec().Info.Title != "FireScope Admin API" {
		t.Errorf("Unexpected title %q", doc.Spec().Info.Title)
	}

	again, _ := Load()
	if again != doc {
		t.Error("Expected the document to be loaded once")
	}
}

func TestJSON(t *testing.T) {
	doc, _ := Load()
	data, err := doc.JSON()
	if err != nil {
		t.Fatalf("JSON failed: %v", err)
	}

	var out map[string]any
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatalf("Expected valid JSON: %v", err)
	}
	if out["openapi"] != "3.0.3" {
		t.Errorf("Unexpected openapi version %v", out["openapi"])
	}
}

func TestHasOperation(t *testing.T) {
	doc, _ := Load()

	tests := []struct {
		method string
		path   string
		want   bool
	}{
		{"GET", "/_api/records", true},
		{"DELETE", "/_api/records", true},
		{"GET", "/_api/records/:id", true},
		{"get", "/_api/records/:id/link", true},
		{"POST", "/_api/link", true},
		{"PUT", "/_api/link", false},
		{"GET", "/_api/unknown", false},
	}

	for _, tt := range tests {
		if got := doc.HasOperation(tt.method, tt.path); got != tt.want {
			t.Errorf("HasOperation(%s, %s) = %v, want %v", tt.method, tt.path, got, tt.want)
		}
	}
}

func TestValidateBody(t *testing.T) {
	doc, _ := Load()
	ctx := context.Background()

	tests := []struct {
		name    string
		path    string
		body    string
		wantErr string
	}{
		{"valid link", "/_api/link", `{"firebaseUrl":"https://x","collectionPath":"Users","limit":5}`, ""},
		{"link missing collection", "/_api/link", `{"firebaseUrl":"https://x"}`, "schema"},
		{"link bad limit", "/_api/link", `{"firebaseUrl":"https://x","collectionPath":"Users","limit":"five"}`, "schema"},
		{"empty required body", "/_api/link", ``, "required"},
		{"invalid json", "/_api/link", `{`, "valid JSON"},
		{"encode", "/_api/querystring/encode", `{"filters":[{"field":"age","op":">=","value":18}],"orderBy":[{"field":"name","direction":"ASCENDING"}]}`, ""},
		{"encode bad direction", "/_api/querystring/encode", `{"orderBy":[{"field":"name","direction":"UP"}]}`, "schema"},
		{"decode", "/_api/querystring/decode", `{"query":"1|LIM|1/5"}`, ""},
		{"capture start", "/_api/capture/start", `{"requestId":"r1","url":"https://x","method":"POST"}`, ""},
		{"capture start missing id", "/_api/capture/start", `{"url":"https://x","method":"POST"}`, "schema"},
		{"undocumented", "/_api/nowhere", `nonsense`, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := doc.ValidateBody(ctx, "POST", tt.path, []byte(tt.body))
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Expected valid body, got %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Expected error containing %q, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestTemplatePath(t *testing.T) {
	if got := templatePath("/_api/records/:id/link"); got != "/_api/records/{id}/link" {
		t.Errorf("templatePath = %q", got)
	}
}

func TestParse_Invalid(t *testing.T) {
	if _, err := parse([]byte("openapi: 3.0.3\ninfo: {}\n")); err == nil {
		t.Error("Expected validation error for a document without title and version")
	}
}
