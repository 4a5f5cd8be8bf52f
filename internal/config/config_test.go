package config

import (
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
)

func Test_KebabToSnakeCase(t *testing.T) {
	assert.Equal(t, "stake_reward_rate", KebabToSnakeCase("stake.reward-rate"))
	assert.Equal(t, "debug", KebabToSnakeCase("debug"))
	assert.Equal(t, "datadog_statsd_sample_rate", KebabToSnakeCase("datadog.statsd.sample-rate"))
}

func Test_NewConfig(t *testing.T) {
	viper.Reset()
	defer viper.Reset()

	viper.Set(KebabToSnakeCase(OwnerAddress), "0xABCDEF0123456789abcdef0123456789ABCDEF01")
	viper.Set(KebabToSnakeCase(StakeRewardRate), "0.10")
	viper.Set(KebabToSnakeCase(StakeLockPeriodSeconds), 3600)
	viper.Set(KebabToSnakeCase(RpcHttpPort), 7101)
	viper.Set(KebabToSnakeCase(DatabaseEnabled), true)
	viper.Set(KebabToSnakeCase(DatabaseHost), "db.internal")
	viper.Set(KebabToSnakeCase(DatabasePort), 5432)
	viper.Set(KebabToSnakeCase(DatabaseDbName), "stakevault")
	viper.Set(KebabToSnakeCase(TokenGenesisAllocations), "0xaaaa=100, 0xbbbb=200")

	cfg := NewConfig()

	assert.Equal(t, "0xabcdef0123456789abcdef0123456789abcdef01", cfg.OwnerAddress)
	assert.Equal(t, "0.10", cfg.StakeConfig.RewardRate)
	assert.Equal(t, uint64(3600), cfg.StakeConfig.LockPeriodSeconds)
	assert.Equal(t, 7101, cfg.RpcConfig.HttpPort)
	assert.True(t, cfg.DatabaseConfig.Enabled)
	assert.Equal(t, "db.internal:5432/stakevault", cfg.DatabaseDSNDescription())
	assert.Len(t, cfg.TokenConfig.GenesisAllocations, 2)
	assert.Equal(t, "0xbbbb", cfg.TokenConfig.GenesisAllocations[1].Address)
	assert.Equal(t, "200", cfg.TokenConfig.GenesisAllocations[1].Amount)
}

func Test_ParseAllocations(t *testing.T) {
	t.Run("parses well formed entries", func(t *testing.T) {
		allocations := ParseAllocations("0xAAAA=100,0xbbbb=200")
		assert.Len(t, allocations, 2)
		assert.Equal(t, "0xaaaa", allocations[0].Address)
		assert.Equal(t, "100", allocations[0].Amount)
	})

	t.Run("skips malformed entries", func(t *testing.T) {
		allocations := ParseAllocations("0xaaaa=100,garbage,=50,0xcccc=")
		assert.Len(t, allocations, 1)
	})

	t.Run("empty input yields no allocations", func(t *testing.T) {
		assert.Len(t, ParseAllocations(""), 0)
	})
}
