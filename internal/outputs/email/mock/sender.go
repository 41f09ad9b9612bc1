package mock

import (
	"context"
	"sync"

	"github.com/bakkerme/digestbot/internal/outputs/email"
)

// Sender records delivered messages. Err fails every send; ErrByLink fails
// only messages for the given article links.
type Sender struct {
	Err       error
	ErrByLink map[string]error

	mu       sync.Mutex
	Messages []email.Message
}

func (s *Sender) Send(_ context.Context, message email.Message) error {
	if s.Err != nil {
		return s.Err
	}
	if err := s.ErrByLink[message.Link]; err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Messages = append(s.Messages, message)
	return nil
}

// Links returns the article links of delivered messages in send order.
func (s *Sender) Links() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.Messages))
	for _, m := range s.Messages {
		out = append(out, m.Link)
	}
	return out
}
