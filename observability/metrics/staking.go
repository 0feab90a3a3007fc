package metrics

import (
	"math/big"
	"strconv"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

type StakingMetrics struct {
	deposits    *prometheus.CounterVec
	withdrawals *prometheus.CounterVec
	claims      *prometheus.CounterVec
	rejections  *prometheus.CounterVec
	totalStaked *prometheus.GaugeVec
	poolsActive prometheus.Gauge
}

var (
	stakingOnce     sync.Once
	stakingRegistry *StakingMetrics
)

func Staking() *StakingMetrics {
	stakingOnce.Do(func() {
		stakingRegistry = &StakingMetrics{
			deposits: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "staking_deposits_total",
				Help: "Count of accepted deposits by pool.",
			}, []string{"pool"}),
			withdrawals: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "staking_withdrawals_total",
				Help: "Count of accepted withdrawals by pool and kind.",
			}, []string{"pool", "kind"}),
			claims: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "staking_reward_claims_total",
				Help: "Count of reward claims that paid out, by pool.",
			}, []string{"pool"}),
			rejections: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "staking_rejections_total",
				Help: "Count of rejected operations by reason.",
			}, []string{"reason"}),
			totalStaked: prometheus.NewGaugeVec(prometheus.GaugeOpts{
				Name: "staking_total_staked",
				Help: "Current total principal per pool.",
			}, []string{"pool"}),
			poolsActive: prometheus.NewGauge(prometheus.GaugeOpts{
				Name: "staking_pools_active",
				Help: "Number of pools currently active.",
			}),
		}
		prometheus.MustRegister(
			stakingRegistry.deposits,
			stakingRegistry.withdrawals,
			stakingRegistry.claims,
			stakingRegistry.rejections,
			stakingRegistry.totalStaked,
			stakingRegistry.poolsActive,
		)
	})
	return stakingRegistry
}

func poolLabel(poolID uint64) string { return strconv.FormatUint(poolID, 10) }

func (m *StakingMetrics) ObserveDeposit(poolID uint64, totalStaked *big.Int) {
	if m == nil {
		return
	}
	m.deposits.WithLabelValues(poolLabel(poolID)).Inc()
	m.setTotal(poolID, totalStaked)
}

func (m *StakingMetrics) ObserveWithdrawal(poolID uint64, emergency bool, totalStaked *big.Int) {
	if m == nil {
		return
	}
	kind := "normal"
	if emergency {
		kind = "emergency"
	}
	m.withdrawals.WithLabelValues(poolLabel(poolID), kind).Inc()
	m.setTotal(poolID, totalStaked)
}

func (m *StakingMetrics) ObserveClaim(poolID uint64) {
	if m == nil {
		return
	}
	m.claims.WithLabelValues(poolLabel(poolID)).Inc()
}

func (m *StakingMetrics) ObserveRejection(reason string) {
	if m == nil {
		return
	}
	if reason == "" {
		reason = "unknown"
	}
	m.rejections.WithLabelValues(reason).Inc()
}

func (m *StakingMetrics) SetActivePools(count int) {
	if m == nil {
		return
	}
	m.poolsActive.Set(float64(count))
}

func (m *StakingMetrics) setTotal(poolID uint64, totalStaked *big.Int) {
	if totalStaked == nil {
		return
	}
	value, _ := new(big.Float).SetInt(totalStaked).Float64()
	m.totalStaked.WithLabelValues(poolLabel(poolID)).Set(value)
}
