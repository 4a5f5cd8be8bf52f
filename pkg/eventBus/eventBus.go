// Package eventBus fans ledger events out to in-process consumers (state
// persistence, audit log). Publishing never blocks: a consumer with a full
// channel misses the event rather than stalling the ledger.
package eventBus

import (
	"go.uber.org/zap"

	"github.com/ledgerlabs/stakevault/pkg/eventBus/eventBusTypes"
)

type EventBus struct {
	consumers *eventBusTypes.ConsumerList
	logger    *zap.Logger
}

func NewEventBus(l *zap.Logger) *EventBus {
	return &EventBus{
		consumers: eventBusTypes.NewConsumerList(),
		logger:    l,
	}
}

func (eb *EventBus) Subscribe(consumer *eventBusTypes.Consumer) {
	eb.consumers.Add(consumer)
	eb.logger.Sugar().Debugw("Subscribed consumer", zap.String("consumerId", string(consumer.Id)))
}

func (eb *EventBus) Unsubscribe(consumer *eventBusTypes.Consumer) {
	eb.consumers.Remove(consumer)
	eb.logger.Sugar().Infow("Unsubscribed consumer", zap.String("consumerId", string(consumer.Id)))
}

func (eb *EventBus) Publish(event *eventBusTypes.Event) {
	eb.logger.Sugar().Debugw("Publishing event", zap.String("eventName", string(event.Name)))
	for _, consumer := range eb.consumers.GetAll() {
		if consumer.Channel == nil {
			eb.logger.Sugar().Debugw("Consumer channel is nil", zap.String("consumerId", string(consumer.Id)))
			continue
		}
		select {
		case consumer.Channel <- event:
		default:
			eb.logger.Sugar().Debugw("No receiver available, or channel is full",
				zap.String("consumerId", string(consumer.Id)),
				zap.String("eventName", string(event.Name)),
			)
		}
	}
}
