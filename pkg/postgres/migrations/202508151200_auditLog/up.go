package _202508151200_auditLog

import (
	"database/sql"

	"gorm.io/gorm"
)

type Migration struct {
}

func (m *Migration) Up(db *sql.DB, grm *gorm.DB) error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS ledger_operations (
			id bigserial primary key,
			ledger varchar not null,
			operation varchar not null,
			account varchar not null,
			amount varchar not null,
			schedule_id varchar,
			occurred_at bigint not null,
			created_at timestamp with time zone DEFAULT current_timestamp
		)`,
		`CREATE INDEX IF NOT EXISTS idx_ledger_operations_account ON ledger_operations (account)`,
		`CREATE INDEX IF NOT EXISTS idx_ledger_operations_occurred_at ON ledger_operations (occurred_at)`,
	}
	for _, query := range queries {
		if res := grm.Exec(query); res.Error != nil {
			return res.Error
		}
	}
	return nil
}

func (m *Migration) GetName() string {
	return "202508151200_auditLog"
}
