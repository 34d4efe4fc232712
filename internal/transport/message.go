// Package transport delivers finalized records to attached listeners over
// websockets, keyed by the tab context the traffic was captured from.
package transport

import (
	"github.com/prasenjit/firescope/internal/models"
)

// Message types
const (
	TypeInit        = "init"
	TypePing        = "ping"
	TypePong        = "pong"
	TypeRequest     = "request"
	TypeEstablished = "connectionEstablished"
)

// WildcardTab registers a listener for every tab context
const WildcardTab = "*"

// Message is the envelope exchanged with listeners
type Message struct {
	Type    string         `json:"type"`
	TabID   string         `json:"tabId,omitempty"`
	Payload *models.Record `json:"payload,omitempty"`
}
