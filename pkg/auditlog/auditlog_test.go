package auditlog

import (
	"fmt"
	"os"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/ledgerlabs/stakevault/internal/logger"
	"github.com/ledgerlabs/stakevault/pkg/eventBus/eventBusTypes"
	"github.com/ledgerlabs/stakevault/pkg/postgres"
	"github.com/ledgerlabs/stakevault/pkg/postgres/migrations"
)

// Needs a reachable postgres instance; enable with STAKEVAULT_TEST_DATABASE=true.
func setupDatabaseTest(t *testing.T) *AuditLog {
	if os.Getenv("STAKEVAULT_TEST_DATABASE") != "true" {
		t.Skip("database tests disabled; set STAKEVAULT_TEST_DATABASE=true to enable")
	}
	l := logger.NewNopLogger()

	port := 5432
	if raw := os.Getenv("STAKEVAULT_DATABASE_PORT"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		assert.Nil(t, err)
		port = parsed
	}
	host := os.Getenv("STAKEVAULT_DATABASE_HOST")
	if host == "" {
		host = "localhost"
	}

	cfg := &postgres.PostgresConfig{
		Host:                host,
		Port:                port,
		Username:            os.Getenv("STAKEVAULT_DATABASE_USER"),
		Password:            os.Getenv("STAKEVAULT_DATABASE_PASSWORD"),
		DbName:              fmt.Sprintf("stakevault_test_%d", time.Now().UnixNano()),
		CreateDbIfNotExists: true,
	}

	pg, err := postgres.NewPostgres(cfg)
	assert.Nil(t, err)
	grm, err := postgres.NewGormFromPostgresConnection(pg.Db)
	assert.Nil(t, err)

	migrator := migrations.NewMigrator(pg.Db, grm, l)
	assert.Nil(t, migrator.MigrateAll())

	t.Cleanup(func() {
		_ = pg.Db.Close()
		_ = postgres.DeleteDatabase(cfg, cfg.DbName)
	})

	return NewAuditLog(grm, l)
}

func Test_AuditLog(t *testing.T) {
	audit := setupDatabaseTest(t)

	ops := []*eventBusTypes.LedgerOperation{
		{Ledger: "stake", Operation: "deposit", Account: "0xaaaa", Amount: "1000", OccurredAt: 1000},
		{Ledger: "stake", Operation: "withdraw", Account: "0xaaaa", Amount: "400", OccurredAt: 1100},
		{Ledger: "vesting", Operation: "claim", Account: "0xbbbb", Amount: "250", ScheduleId: "0x01", OccurredAt: 1200},
	}
	for _, op := range ops {
		assert.Nil(t, audit.Append(eventBusTypes.Event_StakeDeposited, op))
	}

	records, err := audit.ListRecent(10)
	assert.Nil(t, err)
	assert.Len(t, records, 3)
	// Newest first.
	assert.Equal(t, "claim", records[0].Operation)

	records, err = audit.ListByAccount("0xaaaa", 10)
	assert.Nil(t, err)
	assert.Len(t, records, 2)

	records, err = audit.ListRecent(1)
	assert.Nil(t, err)
	assert.Len(t, records, 1)
}
