package repository

import (
	"context"
	"fmt"
	"time"

	"FinGAN/internal/domain/models"
	applogger "FinGAN/pkg/logger"
)

// MessagePublisher is satisfied by *kafka.Producer.
type MessagePublisher interface {
	Publish(ctx context.Context, topic string, key []byte, value interface{}) error
	Close() error
}

// KafkaReportPublisher publishes epoch reports keyed by run ID, so every
// report of a run lands on one partition in order.
type KafkaReportPublisher struct {
	p     MessagePublisher
	topic string
	l     *applogger.Logger
}

func NewKafkaReportPublisher(p MessagePublisher, topic string) *KafkaReportPublisher {
	return &KafkaReportPublisher{p: p, topic: topic}
}

// SetLogger injects a structured logger.
func (k *KafkaReportPublisher) SetLogger(l *applogger.Logger) { k.l = l }

func (k *KafkaReportPublisher) PublishReport(ctx context.Context, runID string, r models.EpochReport) error {
	msg := r.Message(runID, time.Now().UTC())
	if err := k.p.Publish(ctx, k.topic, []byte(runID), msg); err != nil {
		if k.l != nil {
			k.l.Error("publish epoch report failed",
				applogger.String("topic", k.topic),
				applogger.String("run_id", runID),
				applogger.Int("epoch", r.Epoch),
				applogger.Error(err),
			)
		}
		return fmt.Errorf("publish report %s/%d: %w", runID, r.Epoch, err)
	}
	return nil
}

func (k *KafkaReportPublisher) Close() error { return k.p.Close() }
