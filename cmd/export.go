package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/gocarina/gocsv"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/ledgerlabs/stakevault/internal/config"
	"github.com/ledgerlabs/stakevault/internal/logger"
	"github.com/ledgerlabs/stakevault/pkg/statestore"
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export the ledger state from the state store as CSV files",
	Long:  "Export balances, stake records and vesting schedules from the embedded state store as CSV files.",
	RunE: func(cmd *cobra.Command, args []string) error {
		initExportCmd(cmd)
		cfg := config.NewConfig()

		l, err := logger.NewLogger(&logger.LoggerConfig{Debug: cfg.Debug})
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}

		outputDir := cfg.ExportConfig.OutputDir
		if outputDir == "" {
			return fmt.Errorf("output directory i.e. `output-dir` must be specified")
		}
		if err := os.MkdirAll(outputDir, 0o755); err != nil {
			return fmt.Errorf("failed to create output directory: %w", err)
		}

		store, err := statestore.NewStateStore(cfg.StoreConfig.Path, l)
		if err != nil {
			return err
		}
		defer store.Close()

		snap, found, err := store.Load()
		if err != nil {
			return err
		}
		if !found {
			return fmt.Errorf("state store at %s is empty", cfg.StoreConfig.Path)
		}

		exports := []struct {
			file string
			rows interface{}
		}{
			{"balances.csv", snap.Bank.Balances},
			{"allowances.csv", snap.Bank.Allowances},
			{"stake_records.csv", snap.Stake.Records},
			{"vesting_schedules.csv", snap.Vesting.Schedules},
		}

		bar := progressbar.Default(int64(len(exports)), "exporting")
		for _, export := range exports {
			path := filepath.Join(outputDir, export.file)
			if err := writeCsv(path, export.rows); err != nil {
				return fmt.Errorf("failed to export %s: %w", export.file, err)
			}
			_ = bar.Add(1)
		}

		l.Sugar().Infow("Exported ledger state", "outputDir", outputDir)
		return nil
	},
}

func writeCsv(path string, rows interface{}) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return gocsv.MarshalFile(rows, f)
}

func initExportCmd(cmd *cobra.Command) {
	cmd.Flags().VisitAll(func(f *pflag.Flag) {
		if err := viper.BindPFlag(config.KebabToSnakeCase(f.Name), f); err != nil {
			fmt.Printf("Failed to bind flag '%s' - %+v\n", f.Name, err)
		}
		if err := viper.BindEnv(f.Name); err != nil {
			fmt.Printf("Failed to bind env '%s' - %+v\n", f.Name, err)
		}
	})
}
