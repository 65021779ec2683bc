package messaging

import (
	"context"
	"testing"

	"github.com/BTreeMap/CarePing/internal/whatsapp"
)

func TestValidateAndCanonicalizeRecipient(t *testing.T) {
	svc := NewWhatsAppService(whatsapp.NewMockClient())

	cases := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{in: "+380501112233", want: "+380501112233"},
		{in: "380501112233", want: "+380501112233"},
		{in: " +38 (050) 111-22-33 ", want: "+380501112233"},
		{in: "not a phone", wantErr: true},
		{in: "", wantErr: true},
		{in: "+123", wantErr: true}, // too short
	}
	for _, tc := range cases {
		got, err := svc.ValidateAndCanonicalizeRecipient(tc.in)
		if tc.wantErr {
			if err == nil {
				t.Errorf("ValidateAndCanonicalizeRecipient(%q) accepted", tc.in)
			}
			continue
		}
		if err != nil {
			t.Errorf("ValidateAndCanonicalizeRecipient(%q) failed: %v", tc.in, err)
			continue
		}
		if got != tc.want {
			t.Errorf("ValidateAndCanonicalizeRecipient(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestSendMessageStripsPlusForClient(t *testing.T) {
	svc := NewWhatsAppService(whatsapp.NewMockClient())
	if err := svc.SendMessage(context.Background(), "+380501112233", "привіт"); err != nil {
		t.Errorf("SendMessage failed: %v", err)
	}
}

func TestStartWithMockClientSkipsEventHandling(t *testing.T) {
	svc := NewWhatsAppService(whatsapp.NewMockClient())
	if err := svc.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if err := svc.Stop(); err != nil {
		t.Errorf("Stop failed: %v", err)
	}
	// The responses channel is closed after Stop.
	if _, ok := <-svc.Responses(); ok {
		t.Error("responses channel still open after Stop")
	}
}
