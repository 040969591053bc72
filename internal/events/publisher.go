package events

import (
	"context"

	"github.com/iago/reports-back/internal/domain"
)

// Publisher announces export job transitions to downstream listeners.
type Publisher interface {
	Publish(ctx context.Context, event domain.JobEvent) error
}

// Nop discards every event.
type Nop struct{}

func (Nop) Publish(context.Context, domain.JobEvent) error { return nil }
