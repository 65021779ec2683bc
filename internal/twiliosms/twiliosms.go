// Package twiliosms delivers escalation notices to the supervising contact
// over SMS using the Twilio API.
package twiliosms

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/twilio/twilio-go"
	twilioApi "github.com/twilio/twilio-go/rest/api/v2010"
)

// Opts holds configuration options for the Twilio SMS client.
type Opts struct {
	AccountSID string
	AuthToken  string
	FromNumber string
}

// Option defines a configuration option for the Twilio SMS client.
type Option func(*Opts)

// WithAccountSID sets the Twilio account SID.
func WithAccountSID(sid string) Option {
	return func(o *Opts) { o.AccountSID = sid }
}

// WithAuthToken sets the Twilio auth token.
func WithAuthToken(token string) Option {
	return func(o *Opts) { o.AuthToken = token }
}

// WithFromNumber sets the sending phone number in E.164 format.
func WithFromNumber(from string) Option {
	return func(o *Opts) { o.FromNumber = from }
}

// Client wraps the Twilio REST API for SMS escalation delivery.
type Client struct {
	client *twilio.RestClient
	from   string
}

// NewClient creates a Twilio SMS client. Options fall back to the
// TWILIO_ACCOUNT_SID, TWILIO_AUTH_TOKEN, and TWILIO_FROM_NUMBER environment
// variables.
func NewClient(opts ...Option) (*Client, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.AccountSID == "" {
		cfg.AccountSID = os.Getenv("TWILIO_ACCOUNT_SID")
	}
	if cfg.AuthToken == "" {
		cfg.AuthToken = os.Getenv("TWILIO_AUTH_TOKEN")
	}
	if cfg.FromNumber == "" {
		cfg.FromNumber = os.Getenv("TWILIO_FROM_NUMBER")
	}
	slog.Debug("Twilio client config loaded",
		"AccountSID_set", cfg.AccountSID != "",
		"AuthToken_set", cfg.AuthToken != "",
		"FromNumber_set", cfg.FromNumber != "")

	if cfg.AccountSID == "" || cfg.AuthToken == "" {
		return nil, fmt.Errorf("account SID and auth token must be provided")
	}
	if cfg.FromNumber == "" {
		return nil, fmt.Errorf("from number must be provided")
	}

	client := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: cfg.AccountSID,
		Password: cfg.AuthToken,
	})
	return &Client{client: client, from: cfg.FromNumber}, nil
}

// NotifyEscalation sends one SMS to the escalation target. Single attempt;
// the caller decides whether a failure matters.
func (c *Client) NotifyEscalation(ctx context.Context, target, text string) error {
	params := &twilioApi.CreateMessageParams{}
	params.SetTo(target)
	params.SetFrom(c.from)
	params.SetBody(text)

	if _, err := c.client.Api.CreateMessage(params); err != nil {
		slog.Error("Twilio NotifyEscalation failed", "to", target, "error", err)
		return fmt.Errorf("failed to send escalation to %s: %w", target, err)
	}
	slog.Debug("Twilio escalation sent", "to", target)
	return nil
}

// MockClient records escalation notices instead of sending them, for tests.
type MockClient struct {
	Sent []SentMessage
}

type SentMessage struct {
	To   string
	Body string
}

func NewMockClient() *MockClient {
	return &MockClient{Sent: []SentMessage{}}
}

func (m *MockClient) NotifyEscalation(ctx context.Context, target, text string) error {
	m.Sent = append(m.Sent, SentMessage{To: target, Body: text})
	return nil
}
