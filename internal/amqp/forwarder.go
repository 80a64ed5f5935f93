package amqp

import (
	"context"

	"github.com/klokku/hris/internal/event_bus"
	log "github.com/sirupsen/logrus"
)

type Publisher interface {
	Publish(ctx context.Context, routingKey string, body []byte) error
}

// Forwarder relays ledger events from the event bus to a message broker, using the event type as
// routing key.
type Forwarder struct {
	publisher    Publisher
	unsubscribes []func()
}

func NewForwarder(publisher Publisher) *Forwarder {
	return &Forwarder{publisher: publisher}
}

// Start subscribes to every ledger event.
func (f *Forwarder) Start(eventBus *event_bus.EventBus) {
	for _, eventType := range event_bus.LedgerEventTypes {
		unsubscribe := event_bus.SubscribeTyped(eventBus, eventType, f.forward)
		f.unsubscribes = append(f.unsubscribes, unsubscribe)
	}
	log.Infof("Forwarding %d ledger event types to the message broker", len(event_bus.LedgerEventTypes))
}

func (f *Forwarder) Stop() {
	for _, unsubscribe := range f.unsubscribes {
		unsubscribe()
	}
	f.unsubscribes = nil
}

func (f *Forwarder) forward(e event_bus.EventT[event_bus.LedgerChanged]) error {
	body, err := NewLedgerMessage(e).ToJSON()
	if err != nil {
		return err
	}
	if err := f.publisher.Publish(e.Context(), string(e.Type), body); err != nil {
		log.Errorf("failed to forward %s for ledger %s: %v", e.Type, e.Data.OwnerUid, err)
		return err
	}
	return nil
}
