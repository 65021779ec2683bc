// Package messaging provides the pluggable chat transport used to reach
// monitored subjects and routes their replies into the reminder engine.
package messaging

import (
	"context"

	"github.com/BTreeMap/CarePing/internal/models"
)

// Service defines a pluggable message delivery abstraction. It supports
// sending messages and exposes a channel of incoming subject replies.
type Service interface {
	// ValidateAndCanonicalizeRecipient validates and canonicalizes a recipient
	// identifier so each service can apply its own addressing rules.
	ValidateAndCanonicalizeRecipient(recipient string) (string, error)

	// SendMessage sends a message to a recipient.
	SendMessage(ctx context.Context, to string, body string) error

	// Start begins background processing (e.g. event polling).
	Start(ctx context.Context) error

	// Stop stops background processing and cleans up resources.
	Stop() error

	// Responses returns a channel of incoming subject messages.
	Responses() <-chan models.InboundMessage
}
