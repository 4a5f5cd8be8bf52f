package statestore

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/ledgerlabs/stakevault/internal/logger"
	"github.com/ledgerlabs/stakevault/pkg/eventBus"
	"github.com/ledgerlabs/stakevault/pkg/eventBus/eventBusTypes"
)

func Test_Persister_SavesAfterLedgerEvents(t *testing.T) {
	l := logger.NewNopLogger()
	store, err := NewStateStore(t.TempDir(), l)
	assert.Nil(t, err)
	defer store.Close()

	eb := eventBus.NewEventBus(l)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	p := NewPersister(store, func() (*Snapshot, error) {
		return testSnapshot(), nil
	}, 20*time.Millisecond, l)
	go p.Consume(ctx, eb)

	// Publish inside the poll so an event sent before the consumer
	// subscribed cannot strand the test.
	assert.Eventually(t, func() bool {
		eb.Publish(&eventBusTypes.Event{
			Name: eventBusTypes.Event_StakeDeposited,
			Data: &eventBusTypes.LedgerOperation{Ledger: "stake", Operation: "deposit"},
		})
		_, found, err := store.Load()
		return err == nil && found
	}, 2*time.Second, 25*time.Millisecond)

	loaded, found, err := store.Load()
	assert.Nil(t, err)
	assert.True(t, found)
	assert.Equal(t, "1500", loaded.Bank.TotalSupply)
}

func Test_Persister_DebouncesBursts(t *testing.T) {
	l := logger.NewNopLogger()
	store, err := NewStateStore(t.TempDir(), l)
	assert.Nil(t, err)
	defer store.Close()

	eb := eventBus.NewEventBus(l)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var saves atomic.Int32
	p := NewPersister(store, func() (*Snapshot, error) {
		saves.Add(1)
		return testSnapshot(), nil
	}, 50*time.Millisecond, l)
	go p.Consume(ctx, eb)

	// Let the consumer subscribe, then fire a burst well inside one
	// debounce window.
	time.Sleep(20 * time.Millisecond)
	for i := 0; i < 10; i++ {
		eb.Publish(&eventBusTypes.Event{
			Name: eventBusTypes.Event_StakeDeposited,
			Data: &eventBusTypes.LedgerOperation{Ledger: "stake", Operation: "deposit"},
		})
	}

	assert.Eventually(t, func() bool {
		return saves.Load() > 0
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, int32(1), saves.Load())
}
