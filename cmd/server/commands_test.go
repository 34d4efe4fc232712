package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prasenjit/firescope/internal/models"
	"github.com/prasenjit/firescope/internal/transport"
)

// syncBuffer is written by the watch client goroutine and read by the test
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func executeCommand(t *testing.T, ctx context.Context, stdin string, args ...string) (string, error) {
	t.Helper()
	out := &syncBuffer{}
	rootCmd.SetArgs(args)
	rootCmd.SetIn(strings.NewReader(stdin))
	rootCmd.SetOut(out)
	rootCmd.SetErr(io.Discard)
	t.Cleanup(func() {
		rootCmd.SetArgs(nil)
		rootCmd.SetIn(nil)
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
		decodeForm, decodeAll = false, false
		linkDocument, linkQuery, linkGroup = "", "", false
	})
	err := rootCmd.ExecuteContext(ctx)
	return out.String(), err
}

func TestDecodeCommand_Form(t *testing.T) {
	body := "count=1&ofs=0&req0___data__=" + url.QueryEscape(`{"addTarget":{"structuredQuery":{"from":[{"collectionId":"Users"}]}}}`)

	out, err := executeCommand(t, context.Background(), body,
		"decode", "--form", "--url", "https://firestore.googleapis.com/google.firestore.v1.Firestore/Listen/channel?VER=8")
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}

	var descs []models.QueryDescription
	if err := json.Unmarshal([]byte(out), &descs); err != nil {
		t.Fatalf("Failed to parse output %q: %v", out, err)
	}
	if len(descs) != 1 || descs[0].Kind != models.KindStructuredQuery || descs[0].CollectionPath != "Users" {
		t.Errorf("Unexpected descriptions: %+v", descs)
	}
}

func TestDecodeCommand_RawBody(t *testing.T) {
	out, err := executeCommand(t, context.Background(),
		`{"structuredQuery":{"from":[{"collectionId":"Posts"}],"limit":5}}`, "decode")
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}

	var descs []models.QueryDescription
	if err := json.Unmarshal([]byte(out), &descs); err != nil {
		t.Fatalf("Failed to parse output %q: %v", out, err)
	}
	if len(descs) != 1 || descs[0].CollectionPath != "Posts" || descs[0].Limit == nil || *descs[0].Limit != 5 {
		t.Errorf("Unexpected descriptions: %+v", descs)
	}
}

func TestLinkCommand(t *testing.T) {
	const apiURL = "https://firestore.googleapis.com/v1/projects/my-project/databases/(default)/documents/Users/123"

	tests := []struct {
		name    string
		args    []string
		want    string
		wantErr bool
	}{
		{
			name: "document",
			args: []string{"link", "--url", apiURL, "--collection", "Users", "--doc", "123"},
			want: "https://console.firebase.google.com/project/my-project/firestore/databases/-default-/data/Users/123",
		},
		{
			name: "query",
			args: []string{"link", "--url", apiURL, "--collection", "Users", "--query", "1|WH|1|3/age|GTE|NUM|1/18"},
			want: "view=query-view",
		},
		{
			name:    "bad query string",
			args:    []string{"link", "--url", apiURL, "--collection", "Users", "--query", "1|BOGUS"},
			wantErr: true,
		},
		{
			name:    "no project",
			args:    []string{"link", "--url", "https://firestore.googleapis.com/v1/documents", "--collection", "Users"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := executeCommand(t, context.Background(), "", tt.args...)
			if tt.wantErr {
				if err == nil {
					t.Errorf("Expected error, got output %q", out)
				}
				return
			}
			if err != nil {
				t.Fatalf("link failed: %v", err)
			}
			if !strings.Contains(out, tt.want) {
				t.Errorf("Expected %q in %q", tt.want, out)
			}
		})
	}
}

func TestQueryStringCommands_RoundTrip(t *testing.T) {
	out, err := executeCommand(t, context.Background(),
		`{"filters":[{"field":"age","op":">=","value":{"integerValue":"18"}}],"orderBy":[{"field":"name","direction":"DESCENDING"}]}`,
		"querystring", "encode")
	if err != nil {
		t.Fatalf("encode failed: %v", err)
	}
	encoded := strings.TrimSpace(out)
	if encoded != "2|WH|1|3/age|GTE|NUM|1/18|ORD|4/name|DESC" {
		t.Fatalf("Unexpected encoding %q", encoded)
	}

	out, err = executeCommand(t, context.Background(), "", "querystring", "decode", encoded)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	var q struct {
		Filters []models.Filter  `json:"filters"`
		OrderBy []models.OrderBy `json:"orderBy"`
	}
	if err := json.Unmarshal([]byte(out), &q); err != nil {
		t.Fatalf("Failed to parse output %q: %v", out, err)
	}
	if len(q.Filters) != 1 || q.Filters[0].Op != models.OpGreaterThanOrEqual || q.Filters[0].Value.Int != 18 {
		t.Errorf("Unexpected filters: %+v", q.Filters)
	}
	if len(q.OrderBy) != 1 || q.OrderBy[0].Direction != models.Descending {
		t.Errorf("Unexpected orderBy: %+v", q.OrderBy)
	}
}

func TestWatchCommand_PrintsRecords(t *testing.T) {
	hub := transport.NewHub(time.Minute, nil)
	defer hub.Close()
	srv := httptest.NewServer(hub)
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	out := &syncBuffer{}
	rootCmd.SetArgs([]string{"watch", "--url", "ws" + strings.TrimPrefix(srv.URL, "http")})
	rootCmd.SetOut(out)
	rootCmd.SetErr(io.Discard)
	t.Cleanup(func() {
		rootCmd.SetArgs(nil)
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
	})

	done := make(chan error, 1)
	go func() { done <- rootCmd.ExecuteContext(ctx) }()

	deadline := time.Now().Add(5 * time.Second)
	for hub.Listeners() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("watch never subscribed")
		}
		time.Sleep(10 * time.Millisecond)
	}

	hub.Publish(&models.Record{
		QueryDescription: models.QueryDescription{Kind: models.KindDocLookup, CollectionPath: "Users", DocumentID: "1"},
		ID:               "rec-1",
		TabContext:       "tab-9",
	})

	for !strings.Contains(out.String(), `"id":"rec-1"`) {
		if time.Now().After(deadline) {
			t.Fatalf("record never printed, output %q", out.String())
		}
		time.Sleep(10 * time.Millisecond)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Expected clean exit on cancel, got %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("watch did not stop")
	}
}
