package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"ms-dispatch/internal/config"
	"ms-dispatch/internal/logger"
	"ms-dispatch/internal/models"
)

// Events publishes domain events after the owning transaction has committed.
// Publishing is best-effort: a broker failure is logged and never propagated,
// so it can never roll back or fail a committed sale or dispatch.
type Events struct {
	Producer *Producer
	Topics   config.TopicConfig
	Logger   *logger.Logger
	Enabled  bool
}

func NewEvents(producer *Producer, topics config.TopicConfig, log *logger.Logger, enabled bool) *Events {
	return &Events{Producer: producer, Topics: topics, Logger: log, Enabled: enabled}
}

func (e *Events) publish(topic, key string, payload any) {
	if e == nil || !e.Enabled || e.Producer == nil {
		return
	}
	value, err := json.Marshal(payload)
	if err != nil {
		e.Logger.Error("KAFKA", fmt.Sprintf("Failed to marshal event for %s: %v", topic, err))
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := e.Producer.Publish(ctx, topic, key, value); err != nil {
		e.Logger.Error("KAFKA", fmt.Sprintf("Failed to publish to %s: %v", topic, err))
		return
	}
	e.Logger.LogKafka("PUBLISH", topic, key)
}

func (e *Events) DispatchCreated(m models.Manifest) {
	e.publish(e.Topics.DispatchCreated, m.ManifestNumber, m)
}

func (e *Events) DispatchFinished(m models.Manifest) {
	e.publish(e.Topics.DispatchFinished, m.ManifestNumber, m)
}

func (e *Events) TicketSold(t models.Ticket) {
	e.publish(e.Topics.TicketSold, t.TicketNumber, t)
}

func (e *Events) TicketCancelled(t models.Ticket) {
	e.publish(e.Topics.TicketCancelled, t.TicketNumber, t)
}

func (e *Events) TransferCreated(tr models.Transfer) {
	e.publish(e.Topics.TransferCreated, tr.TransferNumber, tr)
}

func (e *Events) TransferDelivered(tr models.Transfer) {
	e.publish(e.Topics.TransferDelivered, tr.TransferNumber, tr)
}
