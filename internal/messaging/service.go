// Package messaging provides the message delivery abstraction for waflow and
// routes inbound messages into the flow engine.
package messaging

import (
	"context"
	"errors"
	"regexp"
	"time"

	"github.com/sendloop/waflow/internal/models"
)

// Constants for messaging service configuration
const (
	// DefaultChannelBufferSize defines the default buffer size for response channels
	DefaultChannelBufferSize = 100
	// DefaultChannelTimeout defines the default timeout for non-blocking channel operations
	DefaultChannelTimeout = 1 * time.Second
	// MinPhoneNumberDigits is the minimum digit count for a valid recipient
	MinPhoneNumberDigits = 6
)

// ErrServiceStopped is returned when an operation is attempted on a stopped service.
var ErrServiceStopped = errors.New("messaging service is stopped")

var phoneNumberRegex = regexp.MustCompile(`[^0-9]`)

// Service defines a pluggable message delivery abstraction.
// It supports sending messages and provides a channel of inbound responses.
type Service interface {
	// ValidateAndCanonicalizeRecipient validates and canonicalizes a recipient
	// identifier, returning the canonical form or an error.
	ValidateAndCanonicalizeRecipient(recipient string) (string, error)

	// SendMessage sends a message to a recipient.
	SendMessage(ctx context.Context, to string, body string) error

	// Start begins any background processing (e.g., listening for events).
	Start(ctx context.Context) error

	// Stop stops background processing and cleans up resources.
	Stop() error

	// Responses returns a channel of incoming counterparty responses.
	Responses() <-chan models.Response
}

// canonicalizeRecipient reduces a recipient identifier to its digits and
// validates the result. Shared by the concrete services so both apply the
// same rules.
func canonicalizeRecipient(recipient string) (string, error) {
	if recipient == "" {
		return "", errors.New("recipient cannot be empty")
	}
	canonical := phoneNumberRegex.ReplaceAllString(recipient, "")
	if canonical == "" {
		return "", errors.New("invalid phone number: no digits found")
	}
	if len(canonical) < MinPhoneNumberDigits {
		return "", errors.New("invalid phone number: too short")
	}
	return canonical, nil
}
