package messaging

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/BTreeMap/CarePing/internal/models"
	"github.com/BTreeMap/CarePing/internal/whatsapp"
	"go.mau.fi/whatsmeow/types/events"
)

const (
	// DefaultChannelBufferSize defines the buffer size for the responses channel.
	DefaultChannelBufferSize = 100
	// DefaultChannelTimeout bounds non-blocking channel sends.
	DefaultChannelTimeout = 1 * time.Second
)

var phoneDigitsRe = regexp.MustCompile(`^\+?[0-9]{7,15}$`)

// WhatsAppService implements Service using the Whatsmeow-based whatsapp client.
type WhatsAppService struct {
	client    whatsapp.Sender
	waClient  *whatsapp.Client // full client for event handling, nil for mocks
	responses chan models.InboundMessage
	done      chan struct{}
}

// NewWhatsAppService creates a WhatsAppService wrapping the given Sender.
func NewWhatsAppService(client whatsapp.Sender) *WhatsAppService {
	service := &WhatsAppService{
		client:    client,
		responses: make(chan models.InboundMessage, DefaultChannelBufferSize),
		done:      make(chan struct{}),
	}
	if waClient, ok := client.(*whatsapp.Client); ok {
		service.waClient = waClient
		slog.Debug("WhatsAppService created with full client for event handling")
	} else {
		slog.Debug("WhatsAppService created with interface client (likely mock)")
	}
	return service
}

// ValidateAndCanonicalizeRecipient strips formatting and checks the number is
// a plausible E.164 phone. The canonical form carries a leading "+".
func (s *WhatsAppService) ValidateAndCanonicalizeRecipient(recipient string) (string, error) {
	cleaned := strings.Map(func(r rune) rune {
		if r == ' ' || r == '-' || r == '(' || r == ')' {
			return -1
		}
		return r
	}, strings.TrimSpace(recipient))
	if !phoneDigitsRe.MatchString(cleaned) {
		return "", fmt.Errorf("invalid phone number: %q", recipient)
	}
	if !strings.HasPrefix(cleaned, "+") {
		cleaned = "+" + cleaned
	}
	return cleaned, nil
}

// Start begins background event processing.
func (s *WhatsAppService) Start(ctx context.Context) error {
	slog.Debug("WhatsAppService Start invoked")
	if s.waClient != nil {
		go s.handleEvents(ctx)
		slog.Debug("WhatsAppService event handler started")
	} else {
		slog.Debug("WhatsAppService no full client available, skipping event handling")
	}
	return nil
}

// Stop stops background processing.
func (s *WhatsAppService) Stop() error {
	slog.Info("WhatsAppService Stop invoked")
	close(s.done)
	close(s.responses)
	return nil
}

// SendMessage sends a message to a recipient. The recipient is passed without
// the leading "+" to the underlying client, which appends the JID suffix.
func (s *WhatsAppService) SendMessage(ctx context.Context, to string, body string) error {
	slog.Debug("WhatsAppService SendMessage invoked", "to", to, "body_length", len(body))
	if err := s.client.SendMessage(ctx, strings.TrimPrefix(to, "+"), body); err != nil {
		slog.Error("WhatsAppService SendMessage error", "error", err, "to", to)
		return err
	}
	return nil
}

// Responses returns the channel of incoming subject messages.
func (s *WhatsAppService) Responses() <-chan models.InboundMessage {
	return s.responses
}

func (s *WhatsAppService) handleEvents(ctx context.Context) {
	if s.waClient == nil || s.waClient.GetClient() == nil {
		slog.Error("WhatsAppService handleEvents: no client available")
		return
	}

	s.waClient.GetClient().AddEventHandler(func(evt interface{}) {
		if msg, ok := evt.(*events.Message); ok {
			s.handleIncomingMessage(msg)
		}
	})
	slog.Debug("WhatsAppService event handler registered")

	select {
	case <-ctx.Done():
	case <-s.done:
	}
	slog.Debug("WhatsAppService handleEvents stopping")
}

func (s *WhatsAppService) handleIncomingMessage(evt *events.Message) {
	if evt.Message == nil {
		return
	}

	var text string
	switch {
	case evt.Message.Conversation != nil:
		text = *evt.Message.Conversation
	case evt.Message.ExtendedTextMessage != nil && evt.Message.ExtendedTextMessage.Text != nil:
		text = *evt.Message.ExtendedTextMessage.Text
	default:
		// Images, audio, reactions and other non-text payloads are skipped.
		slog.Debug("WhatsAppService ignoring non-text message", "from", evt.Info.Sender.String())
		return
	}

	from := evt.Info.Sender.User
	if !strings.HasPrefix(from, "+") {
		from = "+" + from
	}
	msg := models.InboundMessage{From: from, Body: text, Time: evt.Info.Timestamp}

	select {
	case s.responses <- msg:
		slog.Debug("WhatsAppService incoming message forwarded", "from", msg.From)
	case <-time.After(DefaultChannelTimeout):
		slog.Warn("WhatsAppService responses channel blocked, dropping message", "from", msg.From)
	}
}
