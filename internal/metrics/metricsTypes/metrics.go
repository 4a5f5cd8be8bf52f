package metricsTypes

import "time"

type IMetricsClient interface {
	Incr(name string, labels []MetricsLabel, value float64) error
	Gauge(name string, value float64, labels []MetricsLabel) error
	Timing(name string, value time.Duration, labels []MetricsLabel) error
}

type MetricsLabel struct {
	Name  string
	Value string
}

type MetricsType string

var (
	MetricsType_Incr   MetricsType = "incr"
	MetricsType_Gauge  MetricsType = "gauge"
	MetricsType_Timing MetricsType = "timing"
)

type MetricsTypeConfig struct {
	Name   string
	Labels []string
}

var (
	Metric_Incr_StakeDeposit   = "stake_deposit"
	Metric_Incr_StakeWithdraw  = "stake_withdraw"
	Metric_Incr_RewardsClaimed = "stake_rewards_claimed"

	Metric_Incr_VestingScheduleCreated = "vesting_schedule_created"
	Metric_Incr_VestingClaimed         = "vesting_claimed"
	Metric_Incr_VestingRevoked         = "vesting_revoked"

	Metric_Incr_HttpRequest = "rpc_http_request"

	Metric_Gauge_TotalStaked          = "stake_total_staked"
	Metric_Gauge_RewardsDistributed   = "stake_rewards_distributed"
	Metric_Gauge_VestingTotalEscrowed = "vesting_total_escrowed"
	Metric_Gauge_VestingScheduleCount = "vesting_schedule_count"

	Metric_Timing_HttpDuration = "rpc_http_duration"
)

var MetricTypes = map[MetricsType][]MetricsTypeConfig{
	MetricsType_Incr: {
		MetricsTypeConfig{
			Name:   Metric_Incr_StakeDeposit,
			Labels: []string{},
		},
		MetricsTypeConfig{
			Name:   Metric_Incr_StakeWithdraw,
			Labels: []string{},
		},
		MetricsTypeConfig{
			Name:   Metric_Incr_RewardsClaimed,
			Labels: []string{},
		},
		MetricsTypeConfig{
			Name:   Metric_Incr_VestingScheduleCreated,
			Labels: []string{},
		},
		MetricsTypeConfig{
			Name:   Metric_Incr_VestingClaimed,
			Labels: []string{},
		},
		MetricsTypeConfig{
			Name:   Metric_Incr_VestingRevoked,
			Labels: []string{},
		},
		MetricsTypeConfig{
			Name:   Metric_Incr_HttpRequest,
			Labels: []string{"method", "path", "status"},
		},
	},
	MetricsType_Gauge: {
		MetricsTypeConfig{
			Name:   Metric_Gauge_TotalStaked,
			Labels: []string{},
		},
		MetricsTypeConfig{
			Name:   Metric_Gauge_RewardsDistributed,
			Labels: []string{},
		},
		MetricsTypeConfig{
			Name:   Metric_Gauge_VestingTotalEscrowed,
			Labels: []string{},
		},
		MetricsTypeConfig{
			Name:   Metric_Gauge_VestingScheduleCount,
			Labels: []string{},
		},
	},
	MetricsType_Timing: {
		MetricsTypeConfig{
			Name:   Metric_Timing_HttpDuration,
			Labels: []string{"method", "path"},
		},
	},
}
