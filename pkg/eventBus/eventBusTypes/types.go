package eventBusTypes

import (
	"context"
	"sync"
)

type EventName string

const (
	Event_StakeDeposited         EventName = "stake.deposited"
	Event_StakeWithdrawn         EventName = "stake.withdrawn"
	Event_StakeRewardsClaimed    EventName = "stake.rewardsClaimed"
	Event_VestingScheduleCreated EventName = "vesting.scheduleCreated"
	Event_VestingClaimed         EventName = "vesting.claimed"
	Event_VestingRevoked         EventName = "vesting.revoked"
)

type Event struct {
	Name EventName
	Data any
}

// LedgerOperation is the payload every ledger event carries. Amount is a
// base-10 string so consumers never share big.Int pointers with the ledger.
type LedgerOperation struct {
	Ledger     string
	Operation  string
	Account    string
	Amount     string
	ScheduleId string
	OccurredAt uint64
}

type ConsumerId string

type Consumer struct {
	Id      ConsumerId
	Context context.Context
	Channel chan *Event
}

type ConsumerList struct {
	mu        sync.Mutex
	consumers []*Consumer
}

func NewConsumerList() *ConsumerList {
	return &ConsumerList{
		consumers: make([]*Consumer, 0),
	}
}

func (cl *ConsumerList) Add(consumer *Consumer) {
	cl.mu.Lock()
	defer cl.mu.Unlock()
	cl.consumers = append(cl.consumers, consumer)
}

func (cl *ConsumerList) Remove(consumer *Consumer) {
	cl.mu.Lock()
	defer cl.mu.Unlock()
	for i, c := range cl.consumers {
		if c.Id == consumer.Id {
			cl.consumers = append(cl.consumers[:i], cl.consumers[i+1:]...)
			break
		}
	}
}

func (cl *ConsumerList) GetAll() []*Consumer {
	cl.mu.Lock()
	defer cl.mu.Unlock()
	return cl.consumers
}

type IEventBus interface {
	Subscribe(consumer *Consumer)
	Unsubscribe(consumer *Consumer)
	Publish(event *Event)
}
