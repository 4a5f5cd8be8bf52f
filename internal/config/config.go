package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

const ENV_PREFIX = "STAKEVAULT"

// Flag names. Bound to viper with kebab/dot converted to snake case, so each
// one is also settable via STAKEVAULT_* environment variables.
const (
	Debug        = "debug"
	OwnerAddress = "owner-address"

	StakeRewardRate        = "stake.reward-rate"
	StakeLockPeriodSeconds = "stake.lock-period-seconds"
	StakeRewardPoolFunding = "stake.reward-pool-funding"

	TokenGenesisAllocations = "token.genesis-allocations"

	RpcHttpPort = "rpc.http-port"

	StorePath = "store.path"

	PrometheusEnabled = "prometheus.enabled"
	PrometheusPort    = "prometheus.port"

	DataDogStatsdEnabled    = "datadog.statsd.enabled"
	DataDogStatsdUrl        = "datadog.statsd.url"
	DataDogStatsdSampleRate = "datadog.statsd.sample-rate"

	DatabaseEnabled    = "database.enabled"
	DatabaseHost       = "database.host"
	DatabasePort       = "database.port"
	DatabaseUser       = "database.user"
	DatabasePassword   = "database.password"
	DatabaseDbName     = "database.db-name"
	DatabaseSchemaName = "database.schema-name"

	SnapshotOutputFile = "snapshot.output-file"
	SnapshotInputFile  = "snapshot.input-file"

	ExportOutputDir = "export.output-dir"
)

type Config struct {
	Debug        bool
	OwnerAddress string

	StakeConfig      StakeConfig
	TokenConfig      TokenConfig
	RpcConfig        RpcConfig
	StoreConfig      StoreConfig
	PrometheusConfig PrometheusConfig
	DataDogConfig    DataDogConfig
	DatabaseConfig   DatabaseConfig
	SnapshotConfig   SnapshotConfig
	ExportConfig     ExportConfig
}

type StakeConfig struct {
	// Annual reward rate as a decimal string, e.g. "0.10" for 10%.
	RewardRate        string
	LockPeriodSeconds uint64
	// Amount minted into the reward pool custody account at startup.
	RewardPoolFunding string
}

type TokenConfig struct {
	// Genesis allocations, "0xaddr=amount" entries.
	GenesisAllocations []Allocation
}

type Allocation struct {
	Address string
	Amount  string
}

type RpcConfig struct {
	HttpPort int
}

type StoreConfig struct {
	Path string
}

type PrometheusConfig struct {
	Enabled bool
	Port    int
}

type DataDogConfig struct {
	StatsdConfig StatsdConfig
}

type StatsdConfig struct {
	Enabled    bool
	Url        string
	SampleRate float64
}

type DatabaseConfig struct {
	Enabled    bool
	Host       string
	Port       int
	User       string
	Password   string
	DbName     string
	SchemaName string
}

type SnapshotConfig struct {
	OutputFile string
	InputFile  string
}

type ExportConfig struct {
	OutputDir string
}

func KebabToSnakeCase(s string) string {
	s = strings.ReplaceAll(s, "-", "_")
	return strings.ReplaceAll(s, ".", "_")
}

func get(key string) string {
	return viper.GetString(KebabToSnakeCase(key))
}

func getBool(key string) bool {
	return viper.GetBool(KebabToSnakeCase(key))
}

func getInt(key string) int {
	return viper.GetInt(KebabToSnakeCase(key))
}

func getUint64(key string) uint64 {
	return viper.GetUint64(KebabToSnakeCase(key))
}

func getFloat64(key string) float64 {
	return viper.GetFloat64(KebabToSnakeCase(key))
}

// NewConfig materializes the typed config from whatever viper has collected
// from flags and environment.
func NewConfig() *Config {
	return &Config{
		Debug:        getBool(Debug),
		OwnerAddress: strings.ToLower(get(OwnerAddress)),

		StakeConfig: StakeConfig{
			RewardRate:        get(StakeRewardRate),
			LockPeriodSeconds: getUint64(StakeLockPeriodSeconds),
			RewardPoolFunding: get(StakeRewardPoolFunding),
		},
		TokenConfig: TokenConfig{
			GenesisAllocations: ParseAllocations(get(TokenGenesisAllocations)),
		},
		RpcConfig: RpcConfig{
			HttpPort: getInt(RpcHttpPort),
		},
		StoreConfig: StoreConfig{
			Path: get(StorePath),
		},
		PrometheusConfig: PrometheusConfig{
			Enabled: getBool(PrometheusEnabled),
			Port:    getInt(PrometheusPort),
		},
		DataDogConfig: DataDogConfig{
			StatsdConfig: StatsdConfig{
				Enabled:    getBool(DataDogStatsdEnabled),
				Url:        get(DataDogStatsdUrl),
				SampleRate: getFloat64(DataDogStatsdSampleRate),
			},
		},
		DatabaseConfig: DatabaseConfig{
			Enabled:    getBool(DatabaseEnabled),
			Host:       get(DatabaseHost),
			Port:       getInt(DatabasePort),
			User:       get(DatabaseUser),
			Password:   get(DatabasePassword),
			DbName:     get(DatabaseDbName),
			SchemaName: get(DatabaseSchemaName),
		},
		SnapshotConfig: SnapshotConfig{
			OutputFile: get(SnapshotOutputFile),
			InputFile:  get(SnapshotInputFile),
		},
		ExportConfig: ExportConfig{
			OutputDir: get(ExportOutputDir),
		},
	}
}

// ParseAllocations parses "0xaddr=amount,0xaddr=amount". Malformed entries
// are skipped rather than failing startup; the run command logs what it
// actually minted.
func ParseAllocations(s string) []Allocation {
	allocations := make([]Allocation, 0)
	if s == "" {
		return allocations
	}
	for _, entry := range strings.Split(s, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		parts := strings.SplitN(entry, "=", 2)
		if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
			continue
		}
		allocations = append(allocations, Allocation{
			Address: strings.ToLower(strings.TrimSpace(parts[0])),
			Amount:  strings.TrimSpace(parts[1]),
		})
	}
	return allocations
}

func (c *Config) DatabaseDSNDescription() string {
	return fmt.Sprintf("%s:%d/%s", c.DatabaseConfig.Host, c.DatabaseConfig.Port, c.DatabaseConfig.DbName)
}
