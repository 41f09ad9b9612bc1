// Package smtp delivers digest emails through an SMTP relay with go-mail.
package smtp

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	mail "github.com/wneessen/go-mail"

	"github.com/bakkerme/digestbot/internal/outputs/email"
)

const defaultTimeout = 15 * time.Second

// Config describes the SMTP relay. TLSMode is optional; when empty, port-based defaults apply.
type Config struct {
	Host               string
	Port               int
	Username           string
	Password           string
	TLSMode            string
	InsecureSkipVerify bool
	Timeout            time.Duration
}

// TLSMode determines how the SMTP client negotiates TLS.
type TLSMode string

const (
	TLSModeAuto     TLSMode = "auto"     // implicit TLS on 465, STARTTLS otherwise
	TLSModeDisabled TLSMode = "disabled" // cleartext
	TLSModeStartTLS TLSMode = "starttls"
	TLSModeImplicit TLSMode = "implicit" // SMTPS
)

type Sender struct {
	config Config
	mode   TLSMode
}

func NewSender(cfg Config) (*Sender, error) {
	cfg.Host = strings.TrimSpace(cfg.Host)
	if cfg.Host == "" {
		return nil, errors.New("smtp host is required")
	}
	if cfg.Port <= 0 {
		return nil, errors.New("smtp port must be positive")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	mode, err := resolveTLSMode(cfg.TLSMode, cfg.Port)
	if err != nil {
		return nil, err
	}
	return &Sender{config: cfg, mode: mode}, nil
}

func (s *Sender) Send(ctx context.Context, message email.Message) error {
	if message.From == "" {
		message.From = s.config.Username
	}
	m, err := buildMessage(message)
	if err != nil {
		return err
	}

	useAuth := s.config.Username != ""
	err = s.deliver(ctx, m, useAuth)
	// Local catchers such as mailpit reject AUTH; credentials shared via the
	// environment should not break local delivery.
	if err != nil && useAuth && isAuthUnsupported(err) && isLocalDevSMTPHost(s.config.Host) {
		err = s.deliver(ctx, m, false)
	}
	return err
}

func buildMessage(message email.Message) (*mail.Msg, error) {
	m := mail.NewMsg()
	if err := m.From(message.From); err != nil {
		return nil, fmt.Errorf("invalid from address %q: %w", message.From, err)
	}
	if err := m.ToFromString(message.To); err != nil {
		return nil, fmt.Errorf("invalid to address(es) %q: %w", message.To, err)
	}
	m.Subject(message.Subject)
	if message.Link != "" {
		m.SetGenHeader(mail.Header(email.LinkHeader), message.Link)
	}

	switch {
	case message.HTMLBody == "":
		m.SetBodyString(mail.TypeTextPlain, message.TextBody)
	case message.TextBody == "":
		m.SetBodyString(mail.TypeTextHTML, message.HTMLBody)
	default:
		m.SetBodyString(mail.TypeTextPlain, message.TextBody)
		m.AddAlternativeString(mail.TypeTextHTML, message.HTMLBody)
	}
	return m, nil
}

func (s *Sender) deliver(ctx context.Context, m *mail.Msg, useAuth bool) error {
	client, err := mail.NewClient(s.config.Host, s.clientOptions(useAuth)...)
	if err != nil {
		return fmt.Errorf("create smtp client: %w", err)
	}
	if err := client.DialAndSendWithContext(ctx, m); err != nil {
		return fmt.Errorf("send email via %s:%d: %w", s.config.Host, s.config.Port, err)
	}
	return nil
}

func (s *Sender) clientOptions(useAuth bool) []mail.Option {
	opts := []mail.Option{
		mail.WithPort(s.config.Port),
		mail.WithTimeout(s.config.Timeout),
		mail.WithTLSConfig(&tls.Config{
			ServerName:         s.config.Host,
			MinVersion:         tls.VersionTLS12,
			InsecureSkipVerify: s.config.InsecureSkipVerify,
		}),
	}
	switch s.mode {
	case TLSModeDisabled:
		opts = append(opts, mail.WithTLSPortPolicy(mail.NoTLS))
	case TLSModeImplicit:
		opts = append(opts, mail.WithSSL())
	default:
		opts = append(opts, mail.WithTLSPortPolicy(mail.TLSMandatory))
	}
	if useAuth {
		opts = append(opts,
			mail.WithUsername(s.config.Username),
			mail.WithPassword(s.config.Password),
			mail.WithSMTPAuth(mail.SMTPAuthAutoDiscover),
		)
	}
	return opts
}

// resolveTLSMode parses a configured mode and applies the port default for auto.
func resolveTLSMode(raw string, port int) (TLSMode, error) {
	var mode TLSMode
	switch strings.TrimSpace(strings.ToLower(raw)) {
	case "", "auto":
		mode = TLSModeAuto
	case "disabled", "off", "none":
		mode = TLSModeDisabled
	case "starttls", "start_tls":
		mode = TLSModeStartTLS
	case "implicit", "smtps", "ssl":
		mode = TLSModeImplicit
	default:
		return "", fmt.Errorf("invalid smtp tls mode %q (expected auto, disabled, starttls or implicit)", raw)
	}
	if mode != TLSModeAuto {
		return mode, nil
	}
	if port == 465 {
		return TLSModeImplicit, nil
	}
	return TLSModeStartTLS, nil
}

func isAuthUnsupported(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "server does not support SMTP AUTH") ||
		strings.Contains(msg, "SMTP Auth autodiscover was not able to detect a supported authentication mechanism")
}

func isLocalDevSMTPHost(host string) bool {
	switch host = strings.ToLower(strings.TrimSpace(host)); host {
	case "":
		return false
	case "localhost", "mailpit":
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

var _ email.Sender = (*Sender)(nil)
