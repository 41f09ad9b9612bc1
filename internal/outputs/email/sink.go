package email

import (
	"bytes"
	"context"
	"fmt"
	"net/mail"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer/html"

	"github.com/bakkerme/digestbot/internal/core"
)

// SinkConfig addresses the emails a Sink sends.
type SinkConfig struct {
	To            string
	From          string
	SubjectPrefix string
}

// Sink delivers each digest payload as its own email. The payload is treated as
// Markdown so captions and titles formatted for chat render sensibly in mail clients.
type Sink struct {
	config    SinkConfig
	sender    Sender
	converter goldmark.Markdown
}

func NewSink(cfg SinkConfig, sender Sender) *Sink {
	return &Sink{
		config:    cfg,
		sender:    sender,
		converter: newMarkdownConverter(),
	}
}

func (s *Sink) Name() string {
	return "email"
}

func (s *Sink) Validate() error {
	if s.sender == nil {
		return &core.ConfigurationError{Field: "email sender", Reason: "is required"}
	}
	if strings.TrimSpace(s.config.To) == "" {
		return &core.ConfigurationError{Field: "email to", Reason: "is required"}
	}
	if _, err := mail.ParseAddressList(s.config.To); err != nil {
		return &core.ConfigurationError{Field: "email to", Reason: "invalid address list"}
	}
	if s.config.From != "" {
		if _, err := mail.ParseAddress(s.config.From); err != nil {
			return &core.ConfigurationError{Field: "email from", Reason: "invalid address"}
		}
	}
	return nil
}

func (s *Sink) Publish(ctx context.Context, req core.PublishRequest) error {
	htmlBody, err := renderMarkdown(s.converter, req.Content)
	if err != nil {
		return &core.PublishError{Link: req.Article.Link, Err: err}
	}
	err = s.sender.Send(ctx, Message{
		From:     s.config.From,
		To:       s.config.To,
		Subject:  subject(s.config.SubjectPrefix, req.Article.Title),
		HTMLBody: htmlBody,
		TextBody: req.Content,
		Link:     req.Article.Link,
	})
	if err != nil {
		return &core.PublishError{Link: req.Article.Link, Err: err}
	}
	return nil
}

func subject(prefix, title string) string {
	prefix = strings.TrimSpace(prefix)
	title = strings.TrimSpace(title)
	switch {
	case prefix == "":
		return title
	case title == "":
		return prefix
	default:
		return prefix + " " + title
	}
}

func newMarkdownConverter() goldmark.Markdown {
	return goldmark.New(
		goldmark.WithExtensions(extension.Linkify),
		goldmark.WithRendererOptions(html.WithHardWraps()),
	)
}

func renderMarkdown(converter goldmark.Markdown, markdown string) (string, error) {
	var buf bytes.Buffer
	if err := converter.Convert([]byte(markdown), &buf); err != nil {
		return "", fmt.Errorf("render markdown: %w", err)
	}
	return buf.String(), nil
}

var _ core.Sink = (*Sink)(nil)
