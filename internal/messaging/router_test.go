package messaging

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/BTreeMap/CarePing/internal/models"
)

type fakeService struct {
	responses chan models.InboundMessage
	sent      []struct{ to, body string }
}

func newFakeService() *fakeService {
	return &fakeService{responses: make(chan models.InboundMessage, 10)}
}

func (s *fakeService) ValidateAndCanonicalizeRecipient(recipient string) (string, error) {
	trimmed := strings.TrimSpace(recipient)
	if trimmed == "" {
		return "", fmt.Errorf("empty recipient")
	}
	if !strings.HasPrefix(trimmed, "+") {
		trimmed = "+" + trimmed
	}
	return trimmed, nil
}

func (s *fakeService) SendMessage(ctx context.Context, to, body string) error {
	s.sent = append(s.sent, struct{ to, body string }{to, body})
	return nil
}

func (s *fakeService) Start(ctx context.Context) error { return nil }

func (s *fakeService) Stop() error {
	close(s.responses)
	return nil
}

func (s *fakeService) Responses() <-chan models.InboundMessage { return s.responses }

type fakeHandler struct {
	calls []struct {
		subjectID string
		text      string
	}
	reply string
}

func (h *fakeHandler) OnInboundText(ctx context.Context, subjectID, text string, receivedAt time.Time) (models.Verdict, string, error) {
	h.calls = append(h.calls, struct {
		subjectID string
		text      string
	}{subjectID, text})
	return models.Verdict{Type: models.VerdictConfirmation}, h.reply, nil
}

func TestRouterRoutesKnownSender(t *testing.T) {
	svc := newFakeService()
	handler := &fakeHandler{reply: "дякую"}
	router := NewRouter(svc, handler)
	if err := router.RegisterSubject("+380501112233", "olha"); err != nil {
		t.Fatalf("RegisterSubject failed: %v", err)
	}

	svc.responses <- models.InboundMessage{From: "+380501112233", Body: "ок", Time: time.Now()}
	svc.Stop()
	router.Run(context.Background())

	if len(handler.calls) != 1 || handler.calls[0].subjectID != "olha" || handler.calls[0].text != "ок" {
		t.Fatalf("handler calls = %+v", handler.calls)
	}
	if len(svc.sent) != 1 || svc.sent[0].body != "дякую" {
		t.Errorf("reply not sent: %+v", svc.sent)
	}
}

func TestRouterDropsUnknownSender(t *testing.T) {
	svc := newFakeService()
	handler := &fakeHandler{reply: "дякую"}
	router := NewRouter(svc, handler)
	if err := router.RegisterSubject("+380501112233", "olha"); err != nil {
		t.Fatalf("RegisterSubject failed: %v", err)
	}

	svc.responses <- models.InboundMessage{From: "+19998887777", Body: "hi", Time: time.Now()}
	svc.Stop()
	router.Run(context.Background())

	if len(handler.calls) != 0 {
		t.Errorf("handler invoked for unknown sender: %+v", handler.calls)
	}
	if len(svc.sent) != 0 {
		t.Errorf("reply sent to unknown sender: %+v", svc.sent)
	}
}

func TestRouterStopsOnContextCancel(t *testing.T) {
	svc := newFakeService()
	router := NewRouter(svc, &fakeHandler{})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		router.Run(ctx)
		close(done)
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("router did not stop after context cancellation")
	}
}

func TestSubjectMessengerReturnsMessageID(t *testing.T) {
	svc := newFakeService()
	m := NewSubjectMessenger(svc)

	id, err := m.SendSubjectMessage(context.Background(), "380501112233", "привіт")
	if err != nil {
		t.Fatalf("SendSubjectMessage failed: %v", err)
	}
	if id == "" {
		t.Error("empty message id")
	}
	if len(svc.sent) != 1 || svc.sent[0].to != "+380501112233" {
		t.Errorf("sent = %+v", svc.sent)
	}
}

func TestEscalationNotifierSendsToTarget(t *testing.T) {
	svc := newFakeService()
	n := NewEscalationNotifier(svc)

	if err := n.NotifyEscalation(context.Background(), "+15550001111", "ескалація"); err != nil {
		t.Fatalf("NotifyEscalation failed: %v", err)
	}
	if len(svc.sent) != 1 || svc.sent[0].to != "+15550001111" || svc.sent[0].body != "ескалація" {
		t.Errorf("sent = %+v", svc.sent)
	}
}
