// Package auditlog persists every ledger operation to postgres. It consumes
// ledger events off the event bus, so the ledgers themselves never block on
// the database.
package auditlog

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/ledgerlabs/stakevault/pkg/eventBus/eventBusTypes"
)

type OperationRecord struct {
	Id         uint64 `gorm:"primaryKey;autoIncrement"`
	Ledger     string
	Operation  string
	Account    string
	Amount     string
	ScheduleId string
	OccurredAt uint64
	CreatedAt  time.Time
}

func (OperationRecord) TableName() string {
	return "ledger_operations"
}

type AuditLog struct {
	db     *gorm.DB
	logger *zap.Logger
}

func NewAuditLog(db *gorm.DB, l *zap.Logger) *AuditLog {
	return &AuditLog{
		db:     db,
		logger: l,
	}
}

func (a *AuditLog) Append(eventName eventBusTypes.EventName, op *eventBusTypes.LedgerOperation) error {
	record := &OperationRecord{
		Ledger:     op.Ledger,
		Operation:  op.Operation,
		Account:    op.Account,
		Amount:     op.Amount,
		ScheduleId: op.ScheduleId,
		OccurredAt: op.OccurredAt,
	}
	if res := a.db.Create(record); res.Error != nil {
		return errors.Wrapf(res.Error, "failed to append audit record for %s", eventName)
	}
	return nil
}

// ListRecent returns up to limit operations, newest first.
func (a *AuditLog) ListRecent(limit int) ([]*OperationRecord, error) {
	var records []*OperationRecord
	res := a.db.Order("id desc").Limit(limit).Find(&records)
	if res.Error != nil {
		return nil, errors.Wrap(res.Error, "failed to list audit records")
	}
	return records, nil
}

func (a *AuditLog) ListByAccount(account string, limit int) ([]*OperationRecord, error) {
	var records []*OperationRecord
	res := a.db.Where("account = ?", account).Order("id desc").Limit(limit).Find(&records)
	if res.Error != nil {
		return nil, errors.Wrap(res.Error, "failed to list audit records")
	}
	return records, nil
}

// Consume subscribes to the event bus and appends every ledger operation
// until ctx is cancelled. Run it on its own goroutine.
func (a *AuditLog) Consume(ctx context.Context, eb eventBusTypes.IEventBus) {
	consumer := &eventBusTypes.Consumer{
		Id:      "auditLog",
		Context: ctx,
		Channel: make(chan *eventBusTypes.Event, 64),
	}
	eb.Subscribe(consumer)
	defer eb.Unsubscribe(consumer)

	for {
		select {
		case <-ctx.Done():
			return
		case event := <-consumer.Channel:
			op, ok := event.Data.(*eventBusTypes.LedgerOperation)
			if !ok {
				continue
			}
			if err := a.Append(event.Name, op); err != nil {
				a.logger.Sugar().Errorw("Failed to append audit record",
					zap.String("event", string(event.Name)),
					zap.Error(err),
				)
			}
		}
	}
}
