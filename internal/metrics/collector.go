// =============================================================================
// 文件: internal/metrics/collector.go
// 描述: Prometheus 指标收集器定义
// =============================================================================
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// StatsProvider 是控制器统计数据接口，由 *congestion.Controller 满足。
type StatsProvider interface {
	State() string
	CurrentIndex() int
	PacingRateBps() float64
	NextRateBps() float64
	SmoothedRTTMs() float64
	DecisionAttempts() int
	RateAdjustmentTries() int
	Direction() int
	SndCount() uint64
	LastUtility() float64
	LastBytesLost() int64
	LastSegmentsSent() int64
}

// ControllerCollector 把一个 StatsProvider 的数值按 pull 模式暴露给 Prometheus，
// 沿用教师仓库 collectors.go 中 SwitcherCollector 的结构：一组 *prometheus.Desc，
// 在 Collect 时才向 provider 拉取最新值。
type ControllerCollector struct {
	provider StatsProvider

	stateDesc               *prometheus.Desc
	currentIndexDesc        *prometheus.Desc
	pacingRateDesc          *prometheus.Desc
	nextRateDesc            *prometheus.Desc
	srttDesc                *prometheus.Desc
	decisionAttemptsDesc    *prometheus.Desc
	rateAdjustmentTriesDesc *prometheus.Desc
	directionDesc           *prometheus.Desc
	sndCountDesc            *prometheus.Desc
	lastUtilityDesc         *prometheus.Desc
	lastBytesLostDesc       *prometheus.Desc
	lastSegmentsSentDesc    *prometheus.Desc
}

// NewControllerCollector 创建一个 ControllerCollector。
func NewControllerCollector(provider StatsProvider) *ControllerCollector {
	namespace := "pcc"
	subsystem := "controller"

	return &ControllerCollector{
		provider: provider,

		stateDesc: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, subsystem, "state"),
			"Current FSM state (1 = active)",
			[]string{"state"}, nil,
		),
		currentIndexDesc: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, subsystem, "current_index"),
			"Index of the current monitor interval slot in the ring",
			nil, nil,
		),
		pacingRateDesc: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, subsystem, "pacing_rate_bps"),
			"Pacing rate currently published to the host transport",
			nil, nil,
		),
		nextRateDesc: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, subsystem, "next_rate_bps"),
			"FSM internal next_rate value",
			nil, nil,
		),
		srttDesc: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, subsystem, "srtt_ms"),
			"Smoothed round-trip time in milliseconds",
			nil, nil,
		),
		decisionAttemptsDesc: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, subsystem, "decision_attempts"),
			"Current decision-making attempt (1 on entering DM1, +1 per inconclusive round, 0 after a decision)",
			nil, nil,
		),
		rateAdjustmentTriesDesc: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, subsystem, "rate_adjustment_tries"),
			"Number of rate adjustment steps taken in the current direction",
			nil, nil,
		),
		directionDesc: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, subsystem, "direction"),
			"Current rate adjustment direction (+1 or -1)",
			nil, nil,
		),
		sndCountDesc: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, subsystem, "snd_count"),
			"Total segments sent over the lifetime of the connection",
			nil, nil,
		),
		lastUtilityDesc: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, subsystem, "last_utility"),
			"Utility value of the most recently closed monitor interval",
			nil, nil,
		),
		lastBytesLostDesc: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, subsystem, "last_bytes_lost"),
			"Bytes lost in the most recently closed monitor interval",
			nil, nil,
		),
		lastSegmentsSentDesc: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, subsystem, "last_segments_sent"),
			"Segments sent in the most recently closed monitor interval",
			nil, nil,
		),
	}
}

// Describe 实现 prometheus.Collector。
func (c *ControllerCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.stateDesc
	ch <- c.currentIndexDesc
	ch <- c.pacingRateDesc
	ch <- c.nextRateDesc
	ch <- c.srttDesc
	ch <- c.decisionAttemptsDesc
	ch <- c.rateAdjustmentTriesDesc
	ch <- c.directionDesc
	ch <- c.sndCountDesc
	ch <- c.lastUtilityDesc
	ch <- c.lastBytesLostDesc
	ch <- c.lastSegmentsSentDesc
}

// Collect 实现 prometheus.Collector，在每次抓取时向 provider 拉取最新值。
func (c *ControllerCollector) Collect(ch chan<- prometheus.Metric) {
	p := c.provider

	ch <- prometheus.MustNewConstMetric(c.stateDesc, prometheus.GaugeValue, 1, p.State())
	ch <- prometheus.MustNewConstMetric(c.currentIndexDesc, prometheus.GaugeValue, float64(p.CurrentIndex()))
	ch <- prometheus.MustNewConstMetric(c.pacingRateDesc, prometheus.GaugeValue, p.PacingRateBps())
	ch <- prometheus.MustNewConstMetric(c.nextRateDesc, prometheus.GaugeValue, p.NextRateBps())
	ch <- prometheus.MustNewConstMetric(c.srttDesc, prometheus.GaugeValue, p.SmoothedRTTMs())
	ch <- prometheus.MustNewConstMetric(c.decisionAttemptsDesc, prometheus.GaugeValue, float64(p.DecisionAttempts()))
	ch <- prometheus.MustNewConstMetric(c.rateAdjustmentTriesDesc, prometheus.GaugeValue, float64(p.RateAdjustmentTries()))
	ch <- prometheus.MustNewConstMetric(c.directionDesc, prometheus.GaugeValue, float64(p.Direction()))
	ch <- prometheus.MustNewConstMetric(c.sndCountDesc, prometheus.GaugeValue, float64(p.SndCount()))
	ch <- prometheus.MustNewConstMetric(c.lastUtilityDesc, prometheus.GaugeValue, p.LastUtility())
	ch <- prometheus.MustNewConstMetric(c.lastBytesLostDesc, prometheus.GaugeValue, float64(p.LastBytesLost()))
	ch <- prometheus.MustNewConstMetric(c.lastSegmentsSentDesc, prometheus.GaugeValue, float64(p.LastSegmentsSent()))
}
