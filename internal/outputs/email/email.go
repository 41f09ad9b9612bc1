package email

import "context"

// LinkHeader carries the article link so mail filters can match on it.
const LinkHeader = "X-Digest-Link"

// Message is one digest email, sent per published article.
type Message struct {
	From     string
	To       string
	Subject  string
	HTMLBody string
	TextBody string
	// Link is the article link; senders put it in LinkHeader when set.
	Link string
}

type Sender interface {
	Send(ctx context.Context, message Message) error
}

// SenderFunc adapts a function to Sender.
type SenderFunc func(ctx context.Context, message Message) error

func (f SenderFunc) Send(ctx context.Context, message Message) error {
	return f(ctx, message)
}
