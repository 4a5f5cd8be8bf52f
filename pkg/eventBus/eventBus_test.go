package eventBus

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ledgerlabs/stakevault/internal/logger"
	"github.com/ledgerlabs/stakevault/pkg/eventBus/eventBusTypes"
)

func Test_EventBus(t *testing.T) {
	l := logger.NewNopLogger()

	eb := NewEventBus(l)

	consumer := &eventBusTypes.Consumer{
		Id:      "testConsumer",
		Channel: make(chan *eventBusTypes.Event, 1000),
		Context: context.Background(),
	}

	receivedCount := atomic.Uint64{}
	receivedCount.Store(0)
	wg := sync.WaitGroup{}
	wg.Add(1)
	go func() {
		for {
			select {
			case event := <-consumer.Channel:
				t.Logf("Received event: %v", event)
				receivedCount.Add(1)

				if receivedCount.Load() == uint64(3) {
					eb.Unsubscribe(consumer)
					wg.Done()
					return
				}
			case <-consumer.Context.Done():
				return
			}
		}
	}()
	eb.Subscribe(consumer)

	for i := 0; i < 10; i++ {
		eb.Publish(&eventBusTypes.Event{
			Name: eventBusTypes.Event_StakeDeposited,
			Data: &eventBusTypes.LedgerOperation{
				Ledger:    "stake",
				Operation: "deposit",
				Account:   "0x1111111111111111111111111111111111111111",
				Amount:    "100",
			},
		})
	}
	wg.Wait()

	assert.Equal(t, uint64(3), receivedCount.Load())
}
