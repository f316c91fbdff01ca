// =============================================================================
// 文件: internal/congestion/controller.go
// 描述: Controller - ControllerAPI 钩子的落地实现，把 MonitorRing/FSM/
//       AckAccounting/UtilityMath 串成一条完整的速率选择流水线 (见 spec §4.5)。
// =============================================================================
package congestion

import (
	"sync"
	"time"
)

// EngineConfig 是引擎自身的可调参数，由 internal/config 解析后的顶层配置映射而来。
type EngineConfig struct {
	// ClampSendWindow 为 true 时，引擎在每次发布速率时也覆盖对端通告窗口，
	// 写入 LargeSendWindow，防止窗口本身成为限速瓶颈 (见 spec §9 Open Question)。
	ClampSendWindow bool
	// ShuffleDecisionDirections 保留给未来的 A/B 实验随机化；当前未被读取。
	ShuffleDecisionDirections bool
	// MSSOverride 非零时绕过 AdvMSS() 读数，主要用于测试。
	MSSOverride int
}

// Controller 实现 spec §4.5 描述的 ControllerAPI：init / ssthresh / pkts_acked /
// in_ack_event / release，并把 cong_control 保持为惰性钩子。init 只发布
// INITIAL_RATE；Ring/FSM/AckAccounting/dedup 都在第一次 ssthresh 或 pkts_acked
// 钩子触发时才惰性分配。
type Controller struct {
	mu sync.Mutex

	cfg    EngineConfig
	logger Logger

	ring *Ring
	fsm  *FSM
	ack  *AckAccounting
	dup  *ackDedup

	mss         int
	lastRTT     time.Duration
	sndCount    uint64
	lastNextSeq uint32
	pacingRate  float64
	initialized bool
}

// NewController 创建一个尚未 Init 的控制器；cfg 的零值等价于全部默认行为。
func NewController(cfg EngineConfig, logger Logger) *Controller {
	if logger == nil {
		logger = nopLogger{}
	}
	return &Controller{
		cfg:    cfg,
		logger: logger,
	}
}

func (c *Controller) logf(format string, args ...any) {
	c.logger.Printf(format, args...)
}

// Init 实现 ControllerAPI 的 init 钩子：只把 INITIAL_RATE 发布给宿主的
// sk_pacing_rate。Controller 本身尚未分配，真正的构造推迟到第一次
// OnSSThreshQuery 或 OnPktsAcked (见 spec §4.5)。
func (c *Controller) Init(t HostTransport) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.pacingRate = InitialRateBps
	t.SetPacingRate(uint64(InitialRateBps))
	c.logf("congestion: init initial_rate=%.0f", InitialRateBps)
}

// ensureConstructed 惰性分配 ring/fsm/ack/dedup 并打开第一个监测区间，只在第一次
// 调用时生效。之后的调用是空操作。
func (c *Controller) ensureConstructed(t HostTransport, now time.Time) {
	if c.initialized {
		return
	}

	c.mss = c.cfg.MSSOverride
	if c.mss <= 0 {
		c.mss = t.AdvMSS()
	}
	if c.mss <= 0 {
		c.mss = DefaultMSS
	}

	c.ring = NewRing(c.logger)
	c.ack = NewAckAccounting(c.mss)
	c.dup = newAckDedup()
	c.fsm = NewFSM(InitialRateBps, c.logger)

	nextSeq := t.NextSeqToSend()
	c.lastNextSeq = nextSeq
	c.lastRTT = time.Duration(t.SRTTUs()) * time.Microsecond

	c.ring.OpenCurrent(now, InitialRateBps, c.lastRTT, StateStart, nextSeq)
	c.pacingRate = InitialRateBps
	c.initialized = true

	c.logf("congestion: lazily constructed mss=%d initial_rate=%.0f", c.mss, InitialRateBps)
}

// OnSSThreshQuery 实现 ControllerAPI 的 ssthresh 钩子：惰性构造控制器，运行
// do_checks，始终报告 ssthresh 为无穷大，因为该引擎不使用慢启动门限的概念
// (见 spec §4.5)。
func (c *Controller) OnSSThreshQuery(t HostTransport) uint32 {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.ensureConstructed(t, t.Now())
	c.doChecks(t)
	return InfiniteSSThresh
}

// OnPktsAcked 实现 ControllerAPI 的 pkts_acked 钩子：惰性构造控制器，记录
// ack_sample 的 rtt_us，运行 AckAccounting，运行 do_checks，最后把 cwnd 写成
// LARGE_CWND 以有效禁用基于窗口的限速 (见 spec §4.5)。
func (c *Controller) OnPktsAcked(t HostTransport, rttUs int64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := t.Now()
	c.ensureConstructed(t, now)

	if rttUs > 0 {
		c.lastRTT = time.Duration(rttUs) * time.Microsecond
	}

	ev := c.snapshotAckEvent(t, rttUs, now)
	if !c.dup.Seen(ev) {
		c.ring.ApplyToValid(c.ack, ev)
	}

	c.doChecks(t)
	t.SetCwnd(LargeCwnd)
}

// OnInAckEvent 实现 ControllerAPI 的 in_ack_event 钩子：只运行 AckAccounting，
// 不驱动 do_checks (后者完全由 ssthresh/pkts_acked 负责，见 spec §4.5)。
func (c *Controller) OnInAckEvent(t HostTransport, ev *AckEvent) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.initialized {
		return
	}
	if ev != nil && !c.dup.Seen(ev) {
		c.ring.ApplyToValid(c.ack, ev)
		if ev.RTTUs > 0 {
			c.lastRTT = time.Duration(ev.RTTUs) * time.Microsecond
		}
	}
}

// snapshotAckEvent 把宿主当前的 snd_una/SACK 读数折算成一次 AckEvent，供
// OnPktsAcked 在运行 AckAccounting 前构造其 ack_sample。
func (c *Controller) snapshotAckEvent(t HostTransport, rttUs int64, now time.Time) *AckEvent {
	sacks, numSACKs := t.SACKBlocks()
	return &AckEvent{
		SndUna:    t.SndUna(),
		SACKs:     sacks,
		NumSACKs:  numSACKs,
		RTTUs:     rttUs,
		Timestamp: now.UnixMicro(),
	}
}

// doChecks 实现 spec §4.5 的 do_checks：(a) 按 data_segs_out 的增量更新当前区间
// 的 segments_sent/snd_end_seq；(b) 若当前区间已毕业则推进 ring；(c) 扫描并关闭
// 所有发送窗口已到期且 ACK 前沿已追上的区间；(d) 若当前槽位因 (b) 变为 invalid，
// 打开新槽位并把其 target_rate 发布给宿主的 sk_pacing_rate。
func (c *Controller) doChecks(t HostTransport) {
	now := t.Now()

	newSndCount := t.DataSegsOut()
	if newSndCount > c.sndCount {
		delta := int64(newSndCount - c.sndCount)
		nextSeq := t.NextSeqToSend()
		c.ring.NoteSent(delta, nextSeq)
		c.lastNextSeq = nextSeq
	}
	c.sndCount = newSndCount

	advanced := c.ring.AdvanceIfDue(now)

	c.ring.Sweep(now, func(idx int, m *MonitorInterval) {
		c.computeUtility(m)
		prev := c.ring.PrevOf(idx)
		c.fsm.OnClose(m, prev, c.sndCount)
	})

	if advanced {
		rate, decisionID, state := c.fsm.OnOpen()
		nextSeq := t.NextSeqToSend()
		c.ring.OpenCurrent(now, rate, c.lastRTT, state, nextSeq)
		c.ring.Current().DecisionID = decisionID
		c.pacingRate = rate

		t.SetPacingRate(uint64(rate))
		t.SetCwnd(LargeCwnd)
		if c.cfg.ClampSendWindow {
			t.SetSendWindow(LargeSendWindow)
		}
	}
}

// OnRelease 实现 ControllerAPI 的 release 钩子：连接拆除时调用，释放惰性分配
// 的状态 (见 spec §4.5 "free the Controller")。
func (c *Controller) OnRelease() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.logf("congestion: release snd_count=%d final_rate=%.0f", c.sndCount, c.pacingRate)

	c.ring = nil
	c.fsm = nil
	c.ack = nil
	c.dup = nil
	c.initialized = false
}

// CongControl 是 ControllerAPI 里惰性的 cong_control 钩子：窗口与速率完全由
// ssthresh/pkts_acked 驱动，这里什么都不做 (见 spec §4.5 "inert")。
func (c *Controller) CongControl(HostTransport) {}

// Snapshot 返回控制器当前状态的只读拷贝，供指标与检视器消费。在第一次惰性
// 构造之前返回 Start 状态和零值统计。
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.initialized {
		return Snapshot{Time: time.Now(), State: StateStart, PacingRateBps: c.pacingRate}
	}

	// Last* 字段取最近一个已关闭的区间：从当前槽位往回找第一个打开过、
	// 已不再 valid 的槽位；还没有区间关闭时为零值。
	var last MonitorInterval
	for i := 1; i < RingSize; i++ {
		m := c.ring.At((c.ring.CurrentIndex() - i + RingSize) % RingSize)
		if !m.Valid && !m.StartTime.IsZero() {
			last = *m
			break
		}
	}
	return Snapshot{
		Time:                time.Now(),
		State:               c.fsm.State(),
		CurrentIndex:        c.ring.CurrentIndex(),
		NextRateBps:         c.fsm.nextRate,
		PacingRateBps:       c.pacingRate,
		LastRTT:             c.lastRTT,
		DecisionAttempts:    c.fsm.decisionAttempts,
		RateAdjustmentTries: c.fsm.rateAdjustmentTries,
		Direction:           c.fsm.direction,
		SndCount:            c.sndCount,
		LastUtility:         last.Utility.Float64(),
		LastBytesLost:       last.BytesLost,
		LastSegmentsSent:    last.SegmentsSent,
	}
}

// State, CurrentIndex, PacingRateBps, NextRateBps, SmoothedRTTMs, DecisionAttempts,
// RateAdjustmentTries, Direction, SndCount, LastUtility, LastBytesLost and
// LastSegmentsSent below satisfy metrics.StatsProvider without that package
// needing to know about Snapshot or CongestionStats.

func (c *Controller) State() string {
	return c.Snapshot().State.String()
}

func (c *Controller) CurrentIndex() int {
	return c.Snapshot().CurrentIndex
}

func (c *Controller) PacingRateBps() float64 {
	return c.Snapshot().PacingRateBps
}

func (c *Controller) NextRateBps() float64 {
	return c.Snapshot().NextRateBps
}

func (c *Controller) SmoothedRTTMs() float64 {
	return float64(c.Snapshot().LastRTT.Microseconds()) / 1000.0
}

func (c *Controller) DecisionAttempts() int {
	return c.Snapshot().DecisionAttempts
}

func (c *Controller) RateAdjustmentTries() int {
	return c.Snapshot().RateAdjustmentTries
}

func (c *Controller) Direction() int {
	return c.Snapshot().Direction
}

func (c *Controller) SndCount() uint64 {
	return c.Snapshot().SndCount
}

func (c *Controller) LastUtility() float64 {
	return c.Snapshot().LastUtility
}

func (c *Controller) LastBytesLost() int64 {
	return c.Snapshot().LastBytesLost
}

func (c *Controller) LastSegmentsSent() int64 {
	return c.Snapshot().LastSegmentsSent
}

// Stats 把 Snapshot 翻译成面向外部消费者的 CongestionStats，字段命名延续
// 教师仓库 internal/congestion/types.go 的风格。
func (c *Controller) Stats() CongestionStats {
	s := c.Snapshot()
	return CongestionStats{
		State:               s.State.String(),
		CurrentIndex:        s.CurrentIndex,
		PacingRateBps:       s.PacingRateBps,
		NextRateBps:         s.NextRateBps,
		SmoothedRTTMs:       float64(s.LastRTT.Microseconds()) / 1000.0,
		DecisionAttempts:    s.DecisionAttempts,
		RateAdjustmentTries: s.RateAdjustmentTries,
		Direction:           s.Direction,
		SndCount:            s.SndCount,
		LastUtility:         s.LastUtility,
		LastBytesLost:       s.LastBytesLost,
		LastSegmentsSent:    s.LastSegmentsSent,
	}
}
