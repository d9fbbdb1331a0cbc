// Package notify announces finished export runs on Google Cloud Pub/Sub.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"cloud.google.com/go/pubsub/v2"
	"github.com/rs/zerolog"

	"github.com/mentionexport/mentionexport/internal/export"
	"github.com/mentionexport/mentionexport/internal/timerange"
)

// EventType is the event_type attribute set on every message.
const EventType = "export.finished"

// Config holds configuration for the Pub/Sub publisher.
type Config struct {
	ProjectID string
	TopicName string
	Logger    zerolog.Logger
}

// RunEvent is the JSON payload published for a finished run.
type RunEvent struct {
	EventType  string `json:"event_type"`
	RunID      string `json:"run_id"`
	Status     string `json:"status"`
	Format     string `json:"format"`
	Filename   string `json:"filename"`
	QueryName  string `json:"query_name,omitempty"`
	Start      string `json:"start"`
	End        string `json:"end"`
	Pages      int    `json:"pages"`
	Rows       int    `json:"rows"`
	Bytes      int64  `json:"bytes"`
	Error      string `json:"error,omitempty"`
	StartedAt  string `json:"started_at"`
	FinishedAt string `json:"finished_at,omitempty"`
	DurationMS int64  `json:"duration_ms"`
}

// Publisher publishes run events to a Pub/Sub topic.
type Publisher struct {
	client    *pubsub.Client
	publisher *pubsub.Publisher
	topicName string
	logger    zerolog.Logger
	send      func(ctx context.Context, msg *pubsub.Message) error
}

var _ export.Publisher = (*Publisher)(nil)

// NewPublisher creates a Pub/Sub client and a publisher for cfg.TopicName.
func NewPublisher(ctx context.Context, cfg Config) (*Publisher, error) {
	client, err := pubsub.NewClient(ctx, cfg.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("creating pubsub client: %w", err)
	}

	publisher := client.Publisher(cfg.TopicName)
	publisher.PublishSettings.DelayThreshold = 50 * time.Millisecond
	publisher.PublishSettings.CountThreshold = 10

	p := &Publisher{
		client:    client,
		publisher: publisher,
		topicName: cfg.TopicName,
		logger:    cfg.Logger,
	}
	p.send = p.publish
	return p, nil
}

func (p *Publisher) publish(ctx context.Context, msg *pubsub.Message) error {
	id, err := p.publisher.Publish(ctx, msg).Get(ctx)
	if err != nil {
		return err
	}
	p.logger.Debug().
		Str("topic", p.topicName).
		Str("message_id", id).
		Msg("published export event")
	return nil
}

// PublishRun publishes run and waits for the server to acknowledge it.
func (p *Publisher) PublishRun(ctx context.Context, run *export.Run) error {
	msg, err := NewMessage(run)
	if err != nil {
		return err
	}
	if err := p.send(ctx, msg); err != nil {
		return fmt.Errorf("publish run %s to %s: %w", run.ID, p.topicName, err)
	}
	return nil
}

// Close flushes pending messages and closes the Pub/Sub client.
func (p *Publisher) Close() error {
	if p.publisher != nil {
		p.publisher.Stop()
	}
	if p.client != nil {
		return p.client.Close()
	}
	return nil
}

// NewMessage encodes run as a Pub/Sub message.
func NewMessage(run *export.Run) (*pubsub.Message, error) {
	event := RunEvent{
		EventType:  EventType,
		RunID:      run.ID,
		Status:     string(run.Status),
		Format:     string(run.Format),
		Filename:   run.Filename,
		QueryName:  run.QueryName,
		Start:      timerange.FormatISO(run.Start),
		End:        timerange.FormatISO(run.End),
		Pages:      run.Pages,
		Rows:       run.Rows,
		Bytes:      run.Bytes,
		Error:      run.Error,
		StartedAt:  run.StartedAt.UTC().Format(time.RFC3339Nano),
		DurationMS: run.Duration().Milliseconds(),
	}
	if run.FinishedAt != nil {
		event.FinishedAt = run.FinishedAt.UTC().Format(time.RFC3339Nano)
	}

	data, err := json.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("encode run event: %w", err)
	}

	return &pubsub.Message{
		Data: data,
		Attributes: map[string]string{
			"event_type": EventType,
			"status":     string(run.Status),
			"format":     string(run.Format),
		},
	}, nil
}
