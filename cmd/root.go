package cmd

import (
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/ledgerlabs/stakevault/internal/config"
)

var rootCmd = &cobra.Command{
	Use:   "stakevault",
	Short: "Stakevault tracks staked token positions, reward accrual and vesting schedules",
}

func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	initConfig(rootCmd)

	rootCmd.PersistentFlags().Bool(config.Debug, false, `"true" or "false"`)
	rootCmd.PersistentFlags().String(config.OwnerAddress, "", `Address allowed to run admin operations, e.g. "0xabc..."`)

	rootCmd.PersistentFlags().String(config.StakeRewardRate, "0.10", `Annual staking reward rate as a decimal, e.g. "0.10" for 10%`)
	rootCmd.PersistentFlags().Uint64(config.StakeLockPeriodSeconds, 0, `Seconds a deposit stays locked; 0 disables the lock`)
	rootCmd.PersistentFlags().String(config.StakeRewardPoolFunding, "0", `Amount minted into the reward pool at startup`)

	rootCmd.PersistentFlags().String(config.TokenGenesisAllocations, "", `Genesis token allocations, "0xaddr=amount,0xaddr=amount"`)

	rootCmd.PersistentFlags().Int(config.RpcHttpPort, 7101, `http rpc port`)

	rootCmd.PersistentFlags().String(config.StorePath, "./stakevault-state", `Path to the embedded state store`)

	rootCmd.PersistentFlags().Bool(config.PrometheusEnabled, false, `e.g. "true" or "false"`)
	rootCmd.PersistentFlags().Int(config.PrometheusPort, 2112, `The port to run the prometheus server on`)

	rootCmd.PersistentFlags().Bool(config.DataDogStatsdEnabled, false, `e.g. "true" or "false"`)
	rootCmd.PersistentFlags().String(config.DataDogStatsdUrl, "", `e.g. "localhost:8125"`)
	rootCmd.PersistentFlags().Float64(config.DataDogStatsdSampleRate, 1.0, `The sample rate to use for statsd metrics`)

	rootCmd.PersistentFlags().Bool(config.DatabaseEnabled, false, `Enable the postgres audit log`)
	rootCmd.PersistentFlags().String(config.DatabaseHost, "localhost", `PostgreSQL host`)
	rootCmd.PersistentFlags().Int(config.DatabasePort, 5432, `PostgreSQL port`)
	rootCmd.PersistentFlags().String(config.DatabaseUser, "stakevault", `PostgreSQL username`)
	rootCmd.PersistentFlags().String(config.DatabasePassword, "", `PostgreSQL password`)
	rootCmd.PersistentFlags().String(config.DatabaseDbName, "stakevault", `PostgreSQL database name`)
	rootCmd.PersistentFlags().String(config.DatabaseSchemaName, "", `PostgreSQL schema name (default "public")`)

	// setup sub commands
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(runVersionCmd)
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(createSnapshotCmd)
	rootCmd.AddCommand(restoreSnapshotCmd)

	// bind any subcommand flags
	exportCmd.PersistentFlags().String(config.ExportOutputDir, "", "Directory to write the CSV export to (required)")
	createSnapshotCmd.PersistentFlags().String(config.SnapshotOutputFile, "", "Path to save the snapshot file to (required)")
	restoreSnapshotCmd.PersistentFlags().String(config.SnapshotInputFile, "", "Path to the snapshot file (required)")

	rootCmd.PersistentFlags().VisitAll(func(f *pflag.Flag) {
		key := config.KebabToSnakeCase(f.Name)
		viper.BindPFlag(key, f) //nolint:errcheck
		viper.BindEnv(key)      //nolint:errcheck
	})
}

func initConfig(cmd *cobra.Command) {
	viper.SetEnvPrefix(config.ENV_PREFIX)

	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))

	viper.AutomaticEnv()
}
