package ingestion

import (
	"context"
	"time"
)

// Message is one channel post.
type Message struct {
	ID   int
	Date time.Time
	Text string // message body, or the caption of a media post
}

// MessageSource provides channel messages from an external source.
type MessageSource interface {
	// Messages delivers posts dated at or after since to sink, oldest first
	// where the source allows it. It returns when the source is exhausted,
	// ctx is done, or sink returns an error.
	Messages(ctx context.Context, since time.Time, sink func(Message) error) error
}
