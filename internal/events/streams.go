package events

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/iago/reports-back/internal/domain"
	"github.com/redis/go-redis/v9"
)

type StreamsConfig struct {
	Addr     string
	Password string
	DB       int
	Stream   string
	MaxLen   int64
}

// StreamsPublisher appends job events to a capped Redis stream.
type StreamsPublisher struct {
	client redis.UniversalClient
	stream string
	maxLen int64
}

func NewStreamsPublisher(ctx context.Context, cfg StreamsConfig) (*StreamsPublisher, error) {
	if cfg.Addr == "" {
		return nil, errors.New("redis address is required")
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return NewStreamsPublisherWithClient(client, cfg.Stream, cfg.MaxLen), nil
}

func NewStreamsPublisherWithClient(client redis.UniversalClient, stream string, maxLen int64) *StreamsPublisher {
	if stream == "" {
		stream = "report_export_events"
	}
	if maxLen <= 0 {
		maxLen = 10000
	}
	return &StreamsPublisher{client: client, stream: stream, maxLen: maxLen}
}

func (p *StreamsPublisher) Close() error {
	return p.client.Close()
}

func (p *StreamsPublisher) Publish(ctx context.Context, event domain.JobEvent) error {
	_, err := p.client.XAdd(ctx, &redis.XAddArgs{
		Stream: p.stream,
		MaxLen: p.maxLen,
		Approx: true,
		Values: map[string]any{
			"job_id":      event.JobID,
			"type":        string(event.Type),
			"format":      string(event.Format),
			"status":      string(event.Status),
			"error":       event.Error,
			"filename":    event.Filename,
			"size":        event.Size,
			"occurred_at": event.OccurredAt.Format(time.RFC3339Nano),
		},
	}).Result()
	if err != nil {
		return fmt.Errorf("publish to stream: %w", err)
	}
	return nil
}

// Recent returns up to count events, newest first.
func (p *StreamsPublisher) Recent(ctx context.Context, count int64) ([]domain.JobEvent, error) {
	items, err := p.client.XRevRangeN(ctx, p.stream, "+", "-", count).Result()
	if err != nil {
		return nil, fmt.Errorf("read stream: %w", err)
	}
	events := make([]domain.JobEvent, 0, len(items))
	for _, item := range items {
		event, err := parseStreamEvent(item)
		if err != nil {
			return nil, fmt.Errorf("stream entry %s: %w", item.ID, err)
		}
		events = append(events, event)
	}
	return events, nil
}

func parseStreamEvent(item redis.XMessage) (domain.JobEvent, error) {
	getString := func(key string) (string, error) {
		value, ok := item.Values[key]
		if !ok {
			return "", fmt.Errorf("missing field %s", key)
		}
		switch casted := value.(type) {
		case string:
			return casted, nil
		case []byte:
			return string(casted), nil
		default:
			return fmt.Sprintf("%v", casted), nil
		}
	}

	jobID, err := getString("job_id")
	if err != nil {
		return domain.JobEvent{}, err
	}
	status, err := getString("status")
	if err != nil {
		return domain.JobEvent{}, err
	}
	occurredAtString, err := getString("occurred_at")
	if err != nil {
		return domain.JobEvent{}, err
	}
	occurredAt, err := time.Parse(time.RFC3339Nano, occurredAtString)
	if err != nil {
		return domain.JobEvent{}, fmt.Errorf("invalid occurred_at: %w", err)
	}

	event := domain.JobEvent{
		JobID:      jobID,
		Status:     domain.JobStatus(status),
		OccurredAt: occurredAt,
	}
	if value, err := getString("type"); err == nil {
		event.Type = domain.ReportType(value)
	}
	if value, err := getString("format"); err == nil {
		event.Format = domain.ExportFormat(value)
	}
	if value, err := getString("error"); err == nil {
		event.Error = value
	}
	if value, err := getString("filename"); err == nil {
		event.Filename = value
	}
	if value, err := getString("size"); err == nil && value != "" {
		size, err := strconv.Atoi(value)
		if err != nil {
			return domain.JobEvent{}, fmt.Errorf("invalid size: %w", err)
		}
		event.Size = size
	}
	return event, nil
}
