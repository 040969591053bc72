package events

import (
	"context"
	"sync/atomic"

	"github.com/iago/reports-back/internal/domain"
)

// LocalPublisher is the in-process fallback used when Redis is not
// configured. Publishing never blocks; events are dropped once the buffer is
// full.
type LocalPublisher struct {
	ch      chan domain.JobEvent
	dropped atomic.Int64
}

func NewLocalPublisher(bufferSize int) *LocalPublisher {
	if bufferSize <= 0 {
		bufferSize = 512
	}
	return &LocalPublisher{ch: make(chan domain.JobEvent, bufferSize)}
}

func (p *LocalPublisher) Publish(ctx context.Context, event domain.JobEvent) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	select {
	case p.ch <- event:
	default:
		p.dropped.Add(1)
	}
	return nil
}

// Events is the receive side for in-process consumers.
func (p *LocalPublisher) Events() <-chan domain.JobEvent {
	return p.ch
}

func (p *LocalPublisher) Dropped() int64 {
	return p.dropped.Load()
}
