package smtp

import (
	"errors"
	"testing"

	mail "github.com/wneessen/go-mail"

	"github.com/bakkerme/digestbot/internal/outputs/email"
)

func TestIsLocalDevSMTPHost(t *testing.T) {
	for host, want := range map[string]bool{
		"localhost":        true,
		" MailPit ":        true,
		"127.0.0.1":        true,
		"::1":              true,
		"smtp.example.com": false,
		"10.0.0.5":         false,
		"":                 false,
	} {
		if got := isLocalDevSMTPHost(host); got != want {
			t.Errorf("isLocalDevSMTPHost(%q) = %v, want %v", host, got, want)
		}
	}
}

func TestResolveTLSMode(t *testing.T) {
	tests := []struct {
		mode string
		port int
		want TLSMode
	}{
		{"", 465, TLSModeImplicit},
		{"auto", 587, TLSModeStartTLS},
		{"off", 25, TLSModeDisabled},
		{"START_TLS", 25, TLSModeStartTLS},
		{"smtps", 2525, TLSModeImplicit},
	}
	for _, tt := range tests {
		got, err := resolveTLSMode(tt.mode, tt.port)
		if err != nil || got != tt.want {
			t.Errorf("resolveTLSMode(%q, %d) = %s, %v; want %s", tt.mode, tt.port, got, err, tt.want)
		}
	}
	if _, err := resolveTLSMode("sometimes", 25); err == nil {
		t.Fatalf("expected invalid mode to fail")
	}
}

func TestNewSender(t *testing.T) {
	bad := []Config{
		{Port: 587},
		{Host: "smtp.example.com"},
		{Host: "smtp.example.com", Port: 587, TLSMode: "sometimes"},
	}
	for _, cfg := range bad {
		if _, err := NewSender(cfg); err == nil {
			t.Errorf("NewSender(%+v) expected error", cfg)
		}
	}
	s, err := NewSender(Config{Host: " smtp.example.com ", Port: 465})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s.mode != TLSModeImplicit || s.config.Host != "smtp.example.com" || s.config.Timeout != defaultTimeout {
		t.Fatalf("unexpected sender %+v", s)
	}
}

func TestBuildMessage(t *testing.T) {
	m, err := buildMessage(email.Message{
		From:     "bot@example.com",
		To:       "a@example.com, b@example.com",
		Subject:  "[AI] Nvidia AI chip",
		TextBody: "Nvidia AI chip\nhttps://example.com/a",
		HTMLBody: "<p>Nvidia AI chip</p>",
		Link:     "https://example.com/a",
	})
	if err != nil {
		t.Fatalf("buildMessage: %v", err)
	}
	if got := m.GetGenHeader(mail.HeaderSubject); len(got) != 1 || got[0] != "[AI] Nvidia AI chip" {
		t.Fatalf("subject = %v", got)
	}
	if got := m.GetGenHeader(mail.Header(email.LinkHeader)); len(got) != 1 || got[0] != "https://example.com/a" {
		t.Fatalf("link header = %v", got)
	}
	rcpts, err := m.GetRecipients()
	if err != nil || len(rcpts) != 2 {
		t.Fatalf("recipients = %v, %v", rcpts, err)
	}

	if _, err := buildMessage(email.Message{From: "not an address", To: "a@example.com"}); err == nil {
		t.Fatalf("expected invalid from to fail")
	}
}

func TestIsAuthUnsupported(t *testing.T) {
	if !isAuthUnsupported(errors.New("dial: server does not support SMTP AUTH")) {
		t.Fatalf("expected auth-unsupported match")
	}
	if isAuthUnsupported(errors.New("535 authentication failed")) {
		t.Fatalf("expected no match for bad credentials")
	}
}
