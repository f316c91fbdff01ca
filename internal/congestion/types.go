// =============================================================================
// 文件: internal/congestion/types.go
// 描述: PCC 拥塞控制 - 核心类型定义
// =============================================================================
package congestion

import "time"

// 引擎常量（见 spec §3, §4.5）
const (
	// RingSize 是 MonitorRing 的槽位数 N。
	RingSize = 30

	// MinRateBps 是发布给传输层的最小速率下限。
	MinRateBps = 800_000

	// InitialRateBps 是 init() 时写入 sk_pacing_rate 的速率。
	InitialRateBps = 1_000_000

	// DefaultMSS 是没有从 advmss 读到有效值时使用的分段大小。
	DefaultMSS = 1200

	// LargeCwnd 是拥塞窗口被有效禁用后写回的值。
	LargeCwnd = 1 << 30

	// InfiniteSSThresh 是 ssthresh 查询的哨兵返回值。
	InfiniteSSThresh = ^uint32(0)

	// LargeSendWindow 是 ClampSendWindow 打开时写回的 snd_wnd。
	LargeSendWindow = 0xFFFFFF

	// decisionEpsilon 是决策象限每次试验的速率扰动比例 (1%)。
	decisionEpsilonNum = 1
	decisionEpsilonDen = 100

	// minSegmentsBeforeGraduation 是一个监测区间在到期前必须观察到的最少报文数。
	minSegmentsBeforeGraduation = 20

	// graduationExtensionUs 是欠采样区间每次延长的微秒数。
	graduationExtensionUs = 50

	// minSegmentsSentEver 是 "snd_count > 3" 的阈值：连接生命周期内的发送报文数必须
	// 严格大于它，即至少发送过 4 个报文。
	minSegmentsSentEver = 3
)

// FSMState 枚举 spec §4.2 描述的七个状态。
type FSMState int

const (
	StateStart FSMState = iota
	StateDM1
	StateDM2
	StateDM3
	StateDM4
	StateWaitForDecision
	StateRateAdjustment
)

func (s FSMState) String() string {
	switch s {
	case StateStart:
		return "start"
	case StateDM1:
		return "dm1"
	case StateDM2:
		return "dm2"
	case StateDM3:
		return "dm3"
	case StateDM4:
		return "dm4"
	case StateWaitForDecision:
		return "wait_for_decision"
	case StateRateAdjustment:
		return "rate_adjustment"
	default:
		return "unknown"
	}
}

// MonitorInterval 是环中的一个实验槽位，见 spec §3。
type MonitorInterval struct {
	Valid         bool
	DecisionID    int // 0 = 不属于决策象限，否则为其在象限中的位置 (1..4)
	StateAtStart  FSMState
	StartTime     time.Time
	EndTimeUs     int64 // 相对 StartTime 的持续时长（微秒）
	SndStartSeq   uint32
	SndEndSeq     uint32 // 打开时等于 SndStartSeq；仍与之相等表示尚未在此区间内发送过任何数据
	LastAckedSeq  uint32
	SegmentsSent  int64
	BytesLost     int64
	TargetRate    float64 // bytes/s
	ActualRate    float64 // bytes/s，关闭时计算
	Utility       Fixed   // 关闭时计算的定点效用值
	RTTSnapshot   time.Duration
}

// hasSent 报告该区间是否曾作为当前发送者发出过数据。
func (m *MonitorInterval) hasSent() bool {
	return m.SndEndSeq != m.SndStartSeq
}

// Logger 是诊断输出的最小接口；标准库 *log.Logger 满足它。
type Logger interface {
	Printf(format string, args ...any)
}

type nopLogger struct{}

func (nopLogger) Printf(string, ...any) {}

// Snapshot 是控制器状态的只读快照，供指标与检视器消费。
type Snapshot struct {
	Time               time.Time
	State              FSMState
	CurrentIndex       int
	NextRateBps        float64
	PacingRateBps      float64
	LastRTT            time.Duration
	DecisionAttempts   int
	RateAdjustmentTries int
	Direction          int
	SndCount           uint64
	LastUtility        float64
	LastBytesLost       int64
	LastSegmentsSent    int64
}

// CongestionStats 是面向外部消费者的汇总统计，字段命名延续教师仓库
// internal/congestion/types.go 中 CongestionStats 的风格。
type CongestionStats struct {
	State               string  `json:"state"`
	CurrentIndex        int     `json:"current_index"`
	PacingRateBps       float64 `json:"pacing_rate_bps"`
	NextRateBps         float64 `json:"next_rate_bps"`
	SmoothedRTTMs       float64 `json:"srtt_ms"`
	DecisionAttempts    int     `json:"decision_attempts"`
	RateAdjustmentTries int     `json:"rate_adjustment_tries"`
	Direction           int     `json:"direction"`
	SndCount            uint64  `json:"snd_count"`
	LastUtility         float64 `json:"last_utility"`
	LastBytesLost       int64   `json:"last_bytes_lost"`
	LastSegmentsSent    int64   `json:"last_segments_sent"`
}
