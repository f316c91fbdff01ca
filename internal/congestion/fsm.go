// =============================================================================
// 文件: internal/congestion/fsm.go
// 描述: 七状态速率选择 FSM (见 spec §4.2)
// =============================================================================
package congestion

const decisionEpsilon = float64(decisionEpsilonNum) / float64(decisionEpsilonDen)

// FSM 驱动下一个监测区间的速率选择，并在区间关闭时解释效用结果。
type FSM struct {
	state               FSMState
	nextRate            float64
	decisionAttempts    int
	rateAdjustmentTries int
	direction           int // +1 或 -1

	quartet       [4]MonitorInterval
	quartetFilled int

	logger Logger
}

// NewFSM 创建一个处于 Start 状态的 FSM，种子速率为 initialRate。
func NewFSM(initialRate float64, logger Logger) *FSM {
	if logger == nil {
		logger = nopLogger{}
	}
	return &FSM{
		state:    StateStart,
		nextRate: initialRate,
		logger:   logger,
	}
}

func (f *FSM) State() FSMState { return f.state }

// OnOpen 按 spec §4.2 的 "On open" 表为即将开启的区间选择速率，返回 clamp 后的速率、
// 该区间应标记的 decision_id，以及开启前的 FSM 状态 (供 MonitorInterval.StateAtStart 使用)。
func (f *FSM) OnOpen() (rate float64, decisionID int, stateAtStart FSMState) {
	stateAtStart = f.state
	var chosen float64

	switch f.state {
	case StateStart:
		chosen = f.nextRate * 2

	case StateDM1:
		chosen = f.nextRate * (1 + decisionEpsilon*float64(f.decisionAttempts))
		f.state = StateDM2
		decisionID = 1

	case StateDM2:
		chosen = f.nextRate * (1 - decisionEpsilon*float64(f.decisionAttempts))
		f.state = StateDM3
		decisionID = 2

	case StateDM3:
		chosen = f.nextRate * (1 + decisionEpsilon*float64(f.decisionAttempts))
		f.state = StateDM4
		decisionID = 3

	case StateDM4:
		chosen = f.nextRate * (1 - decisionEpsilon*float64(f.decisionAttempts))
		f.state = StateWaitForDecision
		decisionID = 4

	case StateRateAdjustment:
		chosen = f.nextRate * (1 + decisionEpsilon*float64(f.direction)*float64(f.rateAdjustmentTries))
		if chosen <= 0 {
			f.logger.Printf("congestion: rate adjustment overflow, snapping to next_rate=%.0f", f.nextRate)
			f.rateAdjustmentTries = 1
			chosen = f.nextRate
		} else {
			f.rateAdjustmentTries++
		}

	case StateWaitForDecision:
		chosen = f.nextRate
	}

	chosen = clampRate(chosen)

	if stateAtStart == StateStart || stateAtStart == StateRateAdjustment {
		f.nextRate = chosen
	}

	return chosen, decisionID, stateAtStart
}

// clampRate 实现 spec §3 invariant 5: rates are clamped to [MIN_RATE, ∞).
func clampRate(rate float64) float64 {
	if rate < MinRateBps {
		return MinRateBps
	}
	return rate
}

// OnClose 按 spec §4.2 的 "On close" 规则解释一个刚关闭的区间。prev 是环中紧邻的
// 上一个区间 (可能是 invalid/全零，表示尚无历史)。sndCount 是连接生命周期内发送过
// 的报文总数，用于 "snd_count > 3" 判断 (spec §9 的解释: 至少发送过 4 个报文)。
func (f *FSM) OnClose(closed *MonitorInterval, prev *MonitorInterval, sndCount uint64) {
	if f.maybeExitToDM1(closed, prev, sndCount) {
		return
	}

	if closed.DecisionID >= 1 && closed.DecisionID <= 4 {
		if closed.DecisionID == 1 {
			// a fresh quartet is starting; the indecisive default branch of
			// makeDecision deliberately leaves quartetFilled at 4 from the
			// previous round, so it must be cleared here instead.
			f.quartetFilled = 0
		}
		f.quartet[closed.DecisionID-1] = *closed
		if closed.DecisionID > f.quartetFilled {
			f.quartetFilled = closed.DecisionID
		}
	}

	// MakeDecision may only run once all four quartet slots have been
	// filled (see spec §3 invariant 4), and only on the close of a quartet
	// interval: the indecisive branch leaves quartetFilled at 4, so a later
	// close of an interval outside the quartet (DecisionID 0, e.g. one
	// opened in WaitForDecision) must not re-run it on the stale slots.
	if closed.DecisionID >= 1 && f.quartetFilled == 4 {
		f.makeDecision()
	}
}

// maybeExitToDM1 实现 Start/RateAdjustment 在效用下降时转入 DM1 的规则。
func (f *FSM) maybeExitToDM1(closed, prev *MonitorInterval, sndCount uint64) bool {
	if closed.StateAtStart != StateStart && closed.StateAtStart != StateRateAdjustment {
		return false
	}
	if sndCount <= minSegmentsSentEver {
		return false
	}
	if prev == nil || prev.SegmentsSent == 0 {
		// spec §8 边界行为: 没发送过任何东西的区间不参与 Start-exit 比较。
		return false
	}
	if closed.Utility >= prev.Utility {
		return false
	}

	f.state = StateDM1
	f.decisionAttempts = 1
	if closed.StateAtStart == StateStart {
		f.nextRate = prev.ActualRate
	} else {
		f.nextRate = prev.TargetRate
	}
	return true
}

// makeDecision 实现 spec §4.2 的 MakeDecision 规则，在象限第四个区间关闭后被调用。
func (f *FSM) makeDecision() {
	q := f.quartet

	switch {
	case q[0].Utility > q[1].Utility && q[2].Utility > q[3].Utility:
		f.direction = 1
		f.nextRate = q[0].TargetRate
		f.state = StateRateAdjustment
		f.rateAdjustmentTries = 1
		f.resetQuartet()
		f.decisionAttempts = 0

	case q[0].Utility < q[1].Utility && q[2].Utility < q[3].Utility:
		f.direction = -1
		f.nextRate = q[1].TargetRate
		f.state = StateRateAdjustment
		f.rateAdjustmentTries = 1
		f.resetQuartet()
		f.decisionAttempts = 0

	default:
		f.state = StateDM1
		f.decisionAttempts++
		// 象限缓冲区不重置: 下一轮象限会覆盖它。
	}
}

func (f *FSM) resetQuartet() {
	f.quartet = [4]MonitorInterval{}
	f.quartetFilled = 0
}
