package repository

import (
	"encoding/json"
	"time"

	"FinGAN/internal/domain/models"
	applogger "FinGAN/pkg/logger"
)

// TopicPublisher is satisfied by *ws.Hub.
type TopicPublisher interface {
	Publish(topic string, payload []byte)
}

// WSReportBroadcaster pushes epoch reports to websocket subscribers using the
// run ID as topic.
type WSReportBroadcaster struct {
	hub TopicPublisher
	l   *applogger.Logger
}

func NewWSReportBroadcaster(hub TopicPublisher, l *applogger.Logger) *WSReportBroadcaster {
	if l == nil {
		l = applogger.Nop()
	}
	return &WSReportBroadcaster{hub: hub, l: l}
}

func (b *WSReportBroadcaster) Broadcast(runID string, r models.EpochReport) {
	payload, err := json.Marshal(r.Message(runID, time.Now().UTC()))
	if err != nil {
		b.l.Error("encode epoch report", applogger.String("run_id", runID), applogger.Error(err))
		return
	}
	b.hub.Publish(runID, payload)
}
