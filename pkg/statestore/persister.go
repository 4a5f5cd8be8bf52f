package statestore

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/ledgerlabs/stakevault/pkg/eventBus/eventBusTypes"
)

// SnapshotFunc assembles the current ledger state for persistence.
type SnapshotFunc func() (*Snapshot, error)

// Persister subscribes to the event bus and writes a fresh snapshot after
// ledger activity, so a crash loses at most the debounce window rather than
// everything since startup. Writes are debounced: a burst of operations
// costs a single store write once the bus goes quiet.
type Persister struct {
	store    *StateStore
	snapshot SnapshotFunc
	debounce time.Duration
	logger   *zap.Logger
}

func NewPersister(store *StateStore, snapshot SnapshotFunc, debounce time.Duration, l *zap.Logger) *Persister {
	return &Persister{
		store:    store,
		snapshot: snapshot,
		debounce: debounce,
		logger:   l,
	}
}

func (p *Persister) Consume(ctx context.Context, eb eventBusTypes.IEventBus) {
	consumer := &eventBusTypes.Consumer{
		Id:      "statePersister",
		Context: ctx,
		Channel: make(chan *eventBusTypes.Event, 64),
	}
	eb.Subscribe(consumer)
	defer eb.Unsubscribe(consumer)

	timer := time.NewTimer(p.debounce)
	if !timer.Stop() {
		<-timer.C
	}
	defer timer.Stop()
	armed := false

	for {
		select {
		case <-ctx.Done():
			return
		case <-consumer.Channel:
			if armed && !timer.Stop() {
				<-timer.C
			}
			timer.Reset(p.debounce)
			armed = true
		case <-timer.C:
			armed = false
			p.save()
		}
	}
}

func (p *Persister) save() {
	snap, err := p.snapshot()
	if err != nil {
		p.logger.Sugar().Errorw("Failed to assemble state snapshot", zap.Error(err))
		return
	}
	if err := p.store.Save(snap); err != nil {
		p.logger.Sugar().Errorw("Failed to persist state snapshot", zap.Error(err))
	}
}
