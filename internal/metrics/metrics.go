package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// MeteringMetrics 计量子系统指标
type MeteringMetrics struct {
	// 余额闸门相关指标
	GateCheckTotal    *prometheus.CounterVec // 余额闸门检查总数（按结果）
	GateCheckDuration prometheus.Histogram   // 余额闸门检查耗时

	// 流式会话相关指标
	StreamTotal    *prometheus.CounterVec   // 流式会话总数（按用途、结果）
	StreamDuration *prometheus.HistogramVec // 流式会话耗时（按用途）

	// 计量结算相关指标
	TokensTotal        *prometheus.CounterVec // token 消耗总数（按用途、方向 input/output）
	CreditDebitAmount  *prometheus.CounterVec // 扣减 credit 总额（按用途）
	SettleSkippedTotal prometheus.Counter     // 零用量跳过结算总数

	// 故障相关指标
	LedgerAppendFailedTotal prometheus.Counter // 流水落盘失败总数
	DebitFailedTotal        prometheus.Counter // 余额扣减失败总数

	// 余额相关指标
	BalanceLowAlert prometheus.Gauge // 余额不足告警（余额 < 阈值）
}

// NewMeteringMetrics 创建计量指标
func NewMeteringMetrics() *MeteringMetrics {
	return &MeteringMetrics{
		GateCheckTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sidebar_gate_check_total",
				Help: "Total number of credit gate checks",
			},
			[]string{"result"}, // result: allowed/blocked/error
		),
		GateCheckDuration: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "sidebar_gate_check_duration_seconds",
				Help:    "Duration of credit gate checks",
				Buckets: prometheus.DefBuckets,
			},
		),

		StreamTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sidebar_stream_total",
				Help: "Total number of streaming inference sessions",
			},
			[]string{"assignment", "result"}, // result: completed/error/blocked
		),
		StreamDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "sidebar_stream_duration_seconds",
				Help:    "Duration of streaming inference sessions",
				Buckets: []float64{0.5, 1, 2.5, 5, 10, 20, 40, 60, 120},
			},
			[]string{"assignment"},
		),

		TokensTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sidebar_tokens_total",
				Help: "Total number of tokens metered",
			},
			[]string{"assignment", "direction"}, // direction: input/output
		),
		CreditDebitAmount: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sidebar_credit_debit_amount_total",
				Help: "Total credit amount debited",
			},
			[]string{"assignment"},
		),
		SettleSkippedTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "sidebar_settle_skipped_total",
				Help: "Total number of sessions settled with zero usage",
			},
		),

		LedgerAppendFailedTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "sidebar_ledger_append_failed_total",
				Help: "Total number of failed ledger appends",
			},
		),
		DebitFailedTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "sidebar_debit_failed_total",
				Help: "Total number of failed balance debits",
			},
		),

		BalanceLowAlert: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "sidebar_balance_low_alert",
				Help: "Set to 1 when the last checked balance is below the alert threshold",
			},
		),
	}
}

// 全局指标实例
var defaultMetrics *MeteringMetrics

// InitMetrics 初始化全局指标
func InitMetrics() {
	defaultMetrics = NewMeteringMetrics()
}

// GetMetrics 获取全局指标实例
func GetMetrics() *MeteringMetrics {
	if defaultMetrics == nil {
		InitMetrics()
	}
	return defaultMetrics
}
