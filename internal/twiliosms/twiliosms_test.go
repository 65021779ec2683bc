package twiliosms

import (
	"context"
	"testing"
)

func TestNewClientRequiresCredentials(t *testing.T) {
	t.Setenv("TWILIO_ACCOUNT_SID", "")
	t.Setenv("TWILIO_AUTH_TOKEN", "")
	t.Setenv("TWILIO_FROM_NUMBER", "")

	if _, err := NewClient(); err == nil {
		t.Error("NewClient succeeded without credentials")
	}
	if _, err := NewClient(WithAccountSID("AC123"), WithAuthToken("tok")); err == nil {
		t.Error("NewClient succeeded without a from number")
	}
}

func TestNewClientWithOptions(t *testing.T) {
	t.Setenv("TWILIO_ACCOUNT_SID", "")
	t.Setenv("TWILIO_AUTH_TOKEN", "")
	t.Setenv("TWILIO_FROM_NUMBER", "")

	c, err := NewClient(
		WithAccountSID("AC123"),
		WithAuthToken("tok"),
		WithFromNumber("+15550000000"),
	)
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}
	if c.from != "+15550000000" {
		t.Errorf("from = %q", c.from)
	}
}

func TestNewClientFallsBackToEnvironment(t *testing.T) {
	t.Setenv("TWILIO_ACCOUNT_SID", "AC456")
	t.Setenv("TWILIO_AUTH_TOKEN", "envtok")
	t.Setenv("TWILIO_FROM_NUMBER", "+15551111111")

	c, err := NewClient()
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}
	if c.from != "+15551111111" {
		t.Errorf("from = %q", c.from)
	}
}

func TestMockClientRecords(t *testing.T) {
	m := NewMockClient()
	if err := m.NotifyEscalation(context.Background(), "+15550001111", "нагадування пропущено"); err != nil {
		t.Fatalf("NotifyEscalation failed: %v", err)
	}
	if len(m.Sent) != 1 || m.Sent[0].To != "+15550001111" || m.Sent[0].Body != "нагадування пропущено" {
		t.Errorf("Sent = %+v", m.Sent)
	}
}
