// Package messaging provides response routing for the reminder engine.
package messaging

import (
	"context"
	"log/slog"
	"time"

	"github.com/BTreeMap/CarePing/internal/models"
	"github.com/google/uuid"
)

// InboundHandler is the engine surface the router drives. It classifies text
// from a subject and returns the reply to deliver.
type InboundHandler interface {
	OnInboundText(ctx context.Context, subjectID, text string, receivedAt time.Time) (models.Verdict, string, error)
}

// Router consumes incoming transport messages, resolves senders to subjects,
// and feeds the engine. Messages from unknown senders are dropped.
type Router struct {
	svc     Service
	handler InboundHandler
	// subjectByFrom maps canonical sender identifiers to subject ids. Built
	// once at startup; the roster is immutable.
	subjectByFrom map[string]string
}

// NewRouter creates a Router over the given service and handler.
func NewRouter(svc Service, handler InboundHandler) *Router {
	return &Router{
		svc:           svc,
		handler:       handler,
		subjectByFrom: make(map[string]string),
	}
}

// RegisterSubject binds a sender channel to a subject id.
func (r *Router) RegisterSubject(channel, subjectID string) error {
	canonical, err := r.svc.ValidateAndCanonicalizeRecipient(channel)
	if err != nil {
		slog.Error("Router RegisterSubject validation failed", "error", err, "channel", channel, "subject", subjectID)
		return err
	}
	r.subjectByFrom[canonical] = subjectID
	slog.Debug("Router subject registered", "channel", canonical, "subject", subjectID)
	return nil
}

// Run consumes the service's response channel until ctx is cancelled or the
// channel closes. Blocking; run on its own goroutine.
func (r *Router) Run(ctx context.Context) {
	slog.Info("Router running", "subjects", len(r.subjectByFrom))
	for {
		select {
		case <-ctx.Done():
			slog.Debug("Router stopping due to context cancellation")
			return
		case msg, ok := <-r.svc.Responses():
			if !ok {
				slog.Debug("Router stopping: responses channel closed")
				return
			}
			r.process(ctx, msg)
		}
	}
}

func (r *Router) process(ctx context.Context, msg models.InboundMessage) {
	canonical, err := r.svc.ValidateAndCanonicalizeRecipient(msg.From)
	if err != nil {
		slog.Warn("Router dropping message from invalid sender", "error", err, "from", msg.From)
		return
	}
	subjectID, ok := r.subjectByFrom[canonical]
	if !ok {
		// Senders outside the roster are ignored, not answered.
		slog.Debug("Router dropping message from unknown sender", "from", canonical)
		return
	}

	verdict, reply, err := r.handler.OnInboundText(ctx, subjectID, msg.Body, msg.Time)
	if err != nil {
		slog.Error("Router inbound handling failed", "error", err, "subject", subjectID)
		return
	}
	slog.Debug("Router handled inbound text", "subject", subjectID, "verdict", verdict.Type)
	if reply == "" {
		return
	}
	if err := r.svc.SendMessage(ctx, canonical, reply); err != nil {
		slog.Error("Router reply delivery failed", "error", err, "subject", subjectID)
	}
}

// EscalationNotifier delivers escalation notices over the same chat channel
// subjects use, for deployments without a dedicated SMS path.
type EscalationNotifier struct {
	svc Service
}

// NewEscalationNotifier creates an EscalationNotifier over the given service.
func NewEscalationNotifier(svc Service) *EscalationNotifier {
	return &EscalationNotifier{svc: svc}
}

// NotifyEscalation sends one chat message to the escalation target.
func (n *EscalationNotifier) NotifyEscalation(ctx context.Context, target, text string) error {
	canonical, err := n.svc.ValidateAndCanonicalizeRecipient(target)
	if err != nil {
		return err
	}
	return n.svc.SendMessage(ctx, canonical, text)
}

// SubjectMessenger adapts a Service to the engine's outbound interface,
// assigning an id to each outbound message for audit.
type SubjectMessenger struct {
	svc Service
}

// NewSubjectMessenger creates a SubjectMessenger over the given service.
func NewSubjectMessenger(svc Service) *SubjectMessenger {
	return &SubjectMessenger{svc: svc}
}

// SendSubjectMessage sends text to a subject channel and returns a message id.
func (m *SubjectMessenger) SendSubjectMessage(ctx context.Context, channel, text string) (string, error) {
	canonical, err := m.svc.ValidateAndCanonicalizeRecipient(channel)
	if err != nil {
		return "", err
	}
	if err := m.svc.SendMessage(ctx, canonical, text); err != nil {
		return "", err
	}
	return uuid.NewString(), nil
}
