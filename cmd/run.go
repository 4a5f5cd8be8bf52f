package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/ledgerlabs/stakevault/internal/config"
	"github.com/ledgerlabs/stakevault/internal/logger"
	"github.com/ledgerlabs/stakevault/internal/metrics"
	"github.com/ledgerlabs/stakevault/internal/metrics/prometheus"
	"github.com/ledgerlabs/stakevault/internal/shutdown"
	"github.com/ledgerlabs/stakevault/pkg/auditlog"
	"github.com/ledgerlabs/stakevault/pkg/clock"
	"github.com/ledgerlabs/stakevault/pkg/eventBus"
	"github.com/ledgerlabs/stakevault/pkg/numbers"
	"github.com/ledgerlabs/stakevault/pkg/postgres"
	"github.com/ledgerlabs/stakevault/pkg/postgres/migrations"
	"github.com/ledgerlabs/stakevault/pkg/rpcServer"
	"github.com/ledgerlabs/stakevault/pkg/stakeledger"
	"github.com/ledgerlabs/stakevault/pkg/statestore"
	"github.com/ledgerlabs/stakevault/pkg/tokenbank"
	"github.com/ledgerlabs/stakevault/pkg/types"
	"github.com/ledgerlabs/stakevault/pkg/vestingledger"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the stakevault ledger service",
	Run: func(cmd *cobra.Command, args []string) {
		initRunCmd(cmd)
		cfg := config.NewConfig()
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		l, _ := logger.NewLogger(&logger.LoggerConfig{Debug: cfg.Debug})

		metricsClients, err := metrics.InitMetricsSinksFromConfig(cfg, l)
		if err != nil {
			l.Sugar().Fatalw("Failed to setup metrics clients", zap.Error(err))
		}
		sink, err := metrics.NewMetricsSink(&metrics.MetricsSinkConfig{}, metricsClients)
		if err != nil {
			l.Sugar().Fatalw("Failed to setup metrics sink", zap.Error(err))
		}

		if cfg.PrometheusConfig.Enabled {
			promShutdown := make(chan bool)
			promServer := prometheus.NewPrometheusServer(&prometheus.PrometheusServerConfig{
				Port: cfg.PrometheusConfig.Port,
			}, l)
			if err := promServer.Start(promShutdown); err != nil {
				l.Sugar().Fatalw("Failed to start prometheus server", zap.Error(err))
			}
		}

		var owner types.Address
		if cfg.OwnerAddress != "" {
			owner, err = types.ParseAddress(cfg.OwnerAddress)
			if err != nil {
				l.Sugar().Fatalw("Invalid owner address", zap.Error(err))
			}
		}
		auth := types.NewSingleOwner(owner)

		eb := eventBus.NewEventBus(l)
		systemClock := clock.NewSystemClock()
		bank := tokenbank.NewTokenBank(l)

		stakeCustody := types.DeriveCustodyAddress("stake")
		rewardPool := types.DeriveCustodyAddress("rewards")
		vestingCustody := types.DeriveCustodyAddress("vesting")

		rate, err := numbers.RateFromString(cfg.StakeConfig.RewardRate)
		if err != nil {
			l.Sugar().Fatalw("Invalid reward rate", zap.Error(err))
		}

		sl, err := stakeledger.NewStakeLedger(&stakeledger.StakeLedgerConfig{
			CustodyAddress:    stakeCustody,
			RewardPoolAddress: rewardPool,
			RewardRatePerYear: rate,
			LockPeriodSeconds: cfg.StakeConfig.LockPeriodSeconds,
		}, bank, systemClock, auth, eb, sink, l)
		if err != nil {
			l.Sugar().Fatalw("Failed to create stake ledger", zap.Error(err))
		}

		vl := vestingledger.NewVestingLedger(&vestingledger.VestingLedgerConfig{
			CustodyAddress: vestingCustody,
		}, bank, systemClock, auth, eb, sink, l)

		store, err := statestore.NewStateStore(cfg.StoreConfig.Path, l)
		if err != nil {
			l.Sugar().Fatalw("Failed to open state store", zap.Error(err))
		}

		snap, found, err := store.Load()
		if err != nil {
			l.Sugar().Fatalw("Failed to load state store", zap.Error(err))
		}
		if found {
			if err := bank.RestoreState(snap.Bank); err != nil {
				l.Sugar().Fatalw("Failed to restore bank state", zap.Error(err))
			}
			if err := sl.RestoreState(snap.Stake); err != nil {
				l.Sugar().Fatalw("Failed to restore stake ledger state", zap.Error(err))
			}
			if err := vl.RestoreState(snap.Vesting); err != nil {
				l.Sugar().Fatalw("Failed to restore vesting ledger state", zap.Error(err))
			}
			l.Sugar().Infow("Restored ledger state",
				zap.Int("stakeRecords", len(snap.Stake.Records)),
				zap.Int("vestingSchedules", len(snap.Vesting.Schedules)),
			)
		} else {
			seedGenesis(cfg, bank, rewardPool, l)
		}

		persister := statestore.NewPersister(store, func() (*statestore.Snapshot, error) {
			return buildSnapshot(bank, sl, vl)
		}, time.Second*5, l)
		go persister.Consume(ctx, eb)

		var auditLog *auditlog.AuditLog
		if cfg.DatabaseConfig.Enabled {
			pgConfig := postgres.PostgresConfigFromDbConfig(&cfg.DatabaseConfig)
			pgConfig.CreateDbIfNotExists = true

			pg, err := postgres.NewPostgres(pgConfig)
			if err != nil {
				l.Sugar().Fatalw("Failed to setup postgres connection", zap.Error(err))
			}

			grm, err := postgres.NewGormFromPostgresConnection(pg.Db)
			if err != nil {
				l.Sugar().Fatalw("Failed to create gorm instance", zap.Error(err))
			}

			migrator := migrations.NewMigrator(pg.Db, grm, l)
			if err = migrator.MigrateAll(); err != nil {
				l.Sugar().Fatalw("Failed to migrate", zap.Error(err))
			}

			auditLog = auditlog.NewAuditLog(grm, l)
			go auditLog.Consume(ctx, eb)
			l.Sugar().Infow("Audit log enabled", zap.String("database", cfg.DatabaseDSNDescription()))
		}

		// RPC channel to notify the RPC server to shutdown gracefully
		rpcChannel := make(chan bool)
		rpc := rpcServer.NewRpcServer(&rpcServer.RpcServerConfig{
			HttpPort: cfg.RpcConfig.HttpPort,
		}, bank, sl, vl, auditLog, l, sink)
		if err := rpc.Start(ctx, rpcChannel); err != nil {
			l.Sugar().Fatalw("Failed to start RPC server", zap.Error(err))
		}

		l.Sugar().Info("Started stakevault")

		gracefulShutdown := shutdown.CreateGracefulShutdownChannel()

		done := make(chan bool)
		shutdown.ListenForShutdown(gracefulShutdown, done, func() {
			l.Sugar().Info("Shutting down...")
			cancel()
			<-rpcChannel

			if err := saveState(store, bank, sl, vl); err != nil {
				l.Sugar().Errorw("Failed to save ledger state", zap.Error(err))
			}
			if err := store.Close(); err != nil {
				l.Sugar().Errorw("Failed to close state store", zap.Error(err))
			}
		}, time.Second*5, l)
	},
}

// seedGenesis mints the configured genesis allocations and reward pool
// funding into a fresh bank. Only runs when the state store is empty.
func seedGenesis(cfg *config.Config, bank *tokenbank.TokenBank, rewardPool types.Address, l *zap.Logger) {
	for _, alloc := range cfg.TokenConfig.GenesisAllocations {
		addr, err := types.ParseAddress(alloc.Address)
		if err != nil {
			l.Sugar().Warnw("Skipping genesis allocation with invalid address",
				zap.String("address", alloc.Address),
			)
			continue
		}
		amount, err := numbers.AmountFromString(alloc.Amount)
		if err != nil {
			l.Sugar().Warnw("Skipping genesis allocation with invalid amount",
				zap.String("address", alloc.Address),
				zap.String("amount", alloc.Amount),
			)
			continue
		}
		if err := bank.Mint(addr, amount); err != nil {
			l.Sugar().Warnw("Failed to mint genesis allocation",
				zap.String("address", alloc.Address),
				zap.Error(err),
			)
			continue
		}
		l.Sugar().Infow("Minted genesis allocation",
			zap.String("address", addr.String()),
			zap.String("amount", amount.String()),
		)
	}

	funding, err := numbers.AmountFromString(cfg.StakeConfig.RewardPoolFunding)
	if err != nil {
		l.Sugar().Warnw("Invalid reward pool funding amount",
			zap.String("amount", cfg.StakeConfig.RewardPoolFunding),
		)
		return
	}
	if funding.Sign() > 0 {
		if err := bank.Mint(rewardPool, funding); err != nil {
			l.Sugar().Warnw("Failed to fund reward pool", zap.Error(err))
			return
		}
		l.Sugar().Infow("Funded reward pool", zap.String("amount", funding.String()))
	}
}

func buildSnapshot(
	bank *tokenbank.TokenBank,
	sl *stakeledger.StakeLedger,
	vl *vestingledger.VestingLedger,
) (*statestore.Snapshot, error) {
	stakeState, err := sl.ExportState()
	if err != nil {
		return nil, err
	}
	vestingState, err := vl.ExportState()
	if err != nil {
		return nil, err
	}
	return &statestore.Snapshot{
		Bank:    bank.ExportState(),
		Stake:   stakeState,
		Vesting: vestingState,
	}, nil
}

func saveState(
	store *statestore.StateStore,
	bank *tokenbank.TokenBank,
	sl *stakeledger.StakeLedger,
	vl *vestingledger.VestingLedger,
) error {
	snap, err := buildSnapshot(bank, sl, vl)
	if err != nil {
		return err
	}
	return store.Save(snap)
}

func initRunCmd(cmd *cobra.Command) {
	cmd.Flags().VisitAll(func(f *pflag.Flag) {
		if err := viper.BindPFlag(config.KebabToSnakeCase(f.Name), f); err != nil {
			fmt.Printf("Failed to bind flag '%s' - %+v\n", f.Name, err)
		}
		if err := viper.BindEnv(f.Name); err != nil {
			fmt.Printf("Failed to bind env '%s' - %+v\n", f.Name, err)
		}
	})
}
