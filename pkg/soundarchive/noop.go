package soundarchive

import (
	"context"

	"github.com/google/uuid"
)

// NoopEventSink is a no-operation implementation of EventSink
type NoopEventSink struct{}

// NewNoopEventSink creates a new no-operation event sink
func NewNoopEventSink() EventSink {
	return &NoopEventSink{}
}

func (n *NoopEventSink) ContentCreated(ctx context.Context, record *ContentRecord) error {
	return nil
}

func (n *NoopEventSink) ContentUpdated(ctx context.Context, record *ContentRecord) error {
	return nil
}

func (n *NoopEventSink) ContentDeleted(ctx context.Context, id uuid.UUID) error {
	return nil
}

func (n *NoopEventSink) ObjectWritten(ctx context.Context, kind MediaKind, key string, size int64) error {
	return nil
}

func (n *NoopEventSink) ObjectOrphaned(ctx context.Context, key string, reason string) error {
	return nil
}

func (n *NoopEventSink) URLIssued(ctx context.Context, key string, public bool, err error) error {
	return nil
}
