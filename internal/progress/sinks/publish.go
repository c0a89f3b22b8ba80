package sinks

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/JakeFAU/lore-crawler/internal/crawler"
	"github.com/JakeFAU/lore-crawler/internal/progress"
)

// Notification is the Pub/Sub payload for a recorded entity or finished run.
type Notification struct {
	Type        string    `json:"type"`
	RunID       string    `json:"run_id"`
	Entity      string    `json:"entity,omitempty"`
	Position    int       `json:"position,omitempty"`
	Recorded    int       `json:"recorded"`
	Interrupted bool      `json:"interrupted,omitempty"`
	At          time.Time `json:"at"`
}

// Notification types.
const (
	NotifyEntityRecorded = "entity.recorded"
	NotifyRunFinished    = "run.finished"
)

// PublishSink announces recorded entities and finished runs on a topic.
type PublishSink struct {
	publisher crawler.Publisher
	topic     string
}

// NewPublishSink returns a sink publishing to topic.
func NewPublishSink(publisher crawler.Publisher, topic string) (*PublishSink, error) {
	if publisher == nil {
		return nil, fmt.Errorf("publisher is required")
	}
	if topic == "" {
		return nil, fmt.Errorf("topic is required")
	}
	return &PublishSink{publisher: publisher, topic: topic}, nil
}

// Consume publishes one notification per RECORDED transition and per run end.
// Every message is attempted; failures are joined.
func (s *PublishSink) Consume(ctx context.Context, batch []progress.Event) error {
	var errs []error
	for _, evt := range batch {
		var n Notification
		switch {
		case evt.Kind == progress.KindEntityState && evt.State == crawler.StateRecorded:
			n = Notification{
				Type:     NotifyEntityRecorded,
				RunID:    evt.RunID,
				Entity:   evt.Entity,
				Position: evt.Position,
				Recorded: evt.Position,
				At:       evt.TS,
			}
		case evt.Kind == progress.KindRunDone || evt.Kind == progress.KindRunError:
			n = Notification{
				Type:        NotifyRunFinished,
				RunID:       evt.RunID,
				Recorded:    evt.Recorded,
				Interrupted: evt.Interrupted,
				At:          evt.TS,
			}
		default:
			continue
		}
		if _, err := s.publisher.Publish(ctx, s.topic, n); err != nil {
			errs = append(errs, fmt.Errorf("publish %s: %w", n.Type, err))
		}
	}
	return errors.Join(errs...)
}

// Close implements the Sink interface; it performs no action.
func (s *PublishSink) Close(context.Context) error {
	return nil
}
