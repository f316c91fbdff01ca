// =============================================================================
// 文件: internal/congestion/utility.go
// 描述: 效用计算 (见 spec §4.4 UtilityMath)
// =============================================================================
package congestion

// computeUtility 按 spec §4.4 计算并写回一个已关闭区间的 ActualRate 与 Utility。
//
//	actual_rate = sent_bytes * 1e6 / length_us
//	utility     = (sent_bytes - bytes_lost)/time_s * sigmoid_penalty(p) - bytes_lost/time_s
//
// 退化情形 (end_time_us==0, sent_bytes<bytes_lost, actual_rate>target_rate) 只记录
// 诊断日志并修正，不让调用方崩溃，详见 spec §7。
func (c *Controller) computeUtility(m *MonitorInterval) {
	if m.SegmentsSent == 0 {
		// spec §8 边界行为：零报文的区间永远不计算效用。
		m.Utility = 0
		m.ActualRate = 0
		return
	}

	sentBytes := m.SegmentsSent * int64(c.mss)
	lengthUs := m.EndTimeUs + 1 // "+1" 避免除零

	if m.EndTimeUs == 0 {
		c.logf("congestion: interval end_time_us==0 at close, clamping to 1us")
	}

	if sentBytes < m.BytesLost {
		c.logf("congestion: interval sent_bytes(%d) < bytes_lost(%d), clamping loss", sentBytes, m.BytesLost)
		m.BytesLost = sentBytes
	}

	actualRate := float64(sentBytes) * 1_000_000.0 / float64(lengthUs)
	m.ActualRate = actualRate

	if actualRate > m.TargetRate {
		c.logf("congestion: pacer overshoot actual_rate=%.0f target_rate=%.0f", actualRate, m.TargetRate)
	}

	timeS := float64(lengthUs) / 1_000_000.0
	p := FixedFromFloat(float64(m.BytesLost) / float64(sentBytes))
	penalty := sigmoidPenalty(p)

	deliveredBps := float64(sentBytes-m.BytesLost) / timeS
	lostBps := float64(m.BytesLost) / timeS

	utility := FixedFromFloat(deliveredBps).Mul(penalty).Sub(FixedFromFloat(lostBps))
	m.Utility = utility
}
