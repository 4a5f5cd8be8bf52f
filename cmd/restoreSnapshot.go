package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/ledgerlabs/stakevault/internal/config"
	"github.com/ledgerlabs/stakevault/internal/logger"
	"github.com/ledgerlabs/stakevault/pkg/snapshot"
)

var restoreSnapshotCmd = &cobra.Command{
	Use:   "restore-snapshot",
	Short: "Restore the audit database from a previously created snapshot",
	Long:  "Restore the audit database from a previously created snapshot file.",
	RunE: func(cmd *cobra.Command, args []string) error {
		initRestoreSnapshotCmd(cmd)
		cfg := config.NewConfig()

		l, err := logger.NewLogger(&logger.LoggerConfig{Debug: cfg.Debug})
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}

		svc, err := snapshot.NewSnapshotService(&snapshot.SnapshotConfig{
			InputFile:  cfg.SnapshotConfig.InputFile,
			Host:       cfg.DatabaseConfig.Host,
			Port:       cfg.DatabaseConfig.Port,
			User:       cfg.DatabaseConfig.User,
			Password:   cfg.DatabaseConfig.Password,
			DbName:     cfg.DatabaseConfig.DbName,
			SchemaName: cfg.DatabaseConfig.SchemaName,
		}, l)
		if err != nil {
			return err
		}

		if err := svc.RestoreSnapshot(); err != nil {
			return fmt.Errorf("failed to restore snapshot: %w", err)
		}

		return nil
	},
}

func initRestoreSnapshotCmd(cmd *cobra.Command) {
	cmd.Flags().VisitAll(func(f *pflag.Flag) {
		if err := viper.BindPFlag(config.KebabToSnakeCase(f.Name), f); err != nil {
			fmt.Printf("Failed to bind flag '%s' - %+v\n", f.Name, err)
		}
		if err := viper.BindEnv(f.Name); err != nil {
			fmt.Printf("Failed to bind env '%s' - %+v\n", f.Name, err)
		}
	})
}
