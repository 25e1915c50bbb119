// Package stub provides in-memory sources for tests and offline runs.
package stub

import (
	"context"
	"time"

	"signal-backtest-lab/internal/ingestion"
)

// MessageSource replays a fixed list of messages.
type MessageSource struct {
	messages []ingestion.Message
	err      error
}

// NewMessageSource creates a source that yields messages in order.
func NewMessageSource(messages []ingestion.Message) *MessageSource {
	return &MessageSource{messages: messages}
}

// WithError makes Messages fail with err after delivering every message.
func (s *MessageSource) WithError(err error) *MessageSource {
	s.err = err
	return s
}

// Messages implements ingestion.MessageSource.
func (s *MessageSource) Messages(ctx context.Context, since time.Time, sink func(ingestion.Message) error) error {
	for _, m := range s.messages {
		if err := ctx.Err(); err != nil {
			return err
		}
		if m.Date.Before(since) {
			continue
		}
		if err := sink(m); err != nil {
			return err
		}
	}
	return s.err
}

var _ ingestion.MessageSource = (*MessageSource)(nil)
