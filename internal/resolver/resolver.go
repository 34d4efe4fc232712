// Package resolver turns a captured query into a console URL, either
// locally or through the remote link service.
package resolver

import (
	"context"
	"errors"

	"github.com/prasenjit/firescope/internal/consolelink"
	"github.com/prasenjit/firescope/internal/models"
)

var (
	// ErrUnresolvable means no link exists for the payload
	ErrUnresolvable = errors.New("console link unavailable")
	// ErrCredentialRequired means the remote service needs an API key
	// before it can be called
	ErrCredentialRequired = errors.New("api key required")
)

// Resolver resolves a normalized query payload to a console URL
type Resolver interface {
	ResolveConsoleURL(ctx context.Context, p Payload) (string, error)
}

// Payload is the normalized query sent to a resolver. It carries only the
// query shape, never document contents.
type Payload struct {
	FirebaseURL       string               `json:"firebaseUrl"`
	CollectionPath    string               `json:"collectionPath"`
	IsCollectionGroup bool                 `json:"isCollectionGroup"`
	Filters           []models.Filter      `json:"filters"`
	OrderBy           []models.OrderBy     `json:"orderBy"`
	Aggregations      []models.Aggregation `json:"aggregations"`
	Limit             *int64               `json:"limit"`
	Type              models.QueryKind     `json:"type"`
	DocumentID        string               `json:"documentId"`
}

// NewPayload builds the payload for a record
func NewPayload(rec *models.Record) Payload {
	return Payload{
		FirebaseURL:       rec.URL,
		CollectionPath:    rec.CollectionPath,
		IsCollectionGroup: rec.IsCollectionGroup,
		Filters:           rec.Filters,
		OrderBy:           rec.OrderBy,
		Aggregations:      rec.Aggregations,
		Limit:             rec.Limit,
		Type:              rec.Kind,
		DocumentID:        rec.DocumentID,
	}.Normalize()
}

// Normalize replaces nil lists with empty ones so equal queries encode to
// equal JSON
func (p Payload) Normalize() Payload {
	if p.Filters == nil {
		p.Filters = []models.Filter{}
	}
	if p.OrderBy == nil {
		p.OrderBy = []models.OrderBy{}
	}
	if p.Aggregations == nil {
		p.Aggregations = []models.Aggregation{}
	}
	return p
}

// Local builds links with the console link builder and never touches the
// network
type Local struct{}

// ResolveConsoleURL implements Resolver
func (Local) ResolveConsoleURL(_ context.Context, p Payload) (string, error) {
	var q *consolelink.QueryInfo
	if p.DocumentID == "" {
		q = &consolelink.QueryInfo{
			IsCollectionGroup: p.IsCollectionGroup,
			Filters:           p.Filters,
			OrderBy:           p.OrderBy,
			Aggregations:      p.Aggregations,
			Limit:             p.Limit,
		}
	}

	link, ok := consolelink.Build(p.FirebaseURL, p.CollectionPath, p.DocumentID, q)
	if !ok {
		return "", ErrUnresolvable
	}
	return link, nil
}
