// =============================================================================
// 文件: internal/congestion/ring.go
// 描述: MonitorRing - 监测区间环形缓冲区 (见 spec §3, §4.1)
// =============================================================================
package congestion

import "time"

// Ring 是容量为 RingSize 的监测区间环，current_index 指向当前发送者。
type Ring struct {
	slots        [RingSize]MonitorInterval
	currentIndex int
	logger       Logger
}

// NewRing 创建一个空环；所有槽位初始 invalid。
func NewRing(logger Logger) *Ring {
	if logger == nil {
		logger = nopLogger{}
	}
	return &Ring{logger: logger}
}

// Current 返回当前发送槽位。
func (r *Ring) Current() *MonitorInterval {
	return &r.slots[r.currentIndex]
}

// CurrentIndex 返回当前槽位下标。
func (r *Ring) CurrentIndex() int {
	return r.currentIndex
}

// Prev 返回当前槽位的上一个槽位 (current_index-1 mod N)。
func (r *Ring) Prev() *MonitorInterval {
	idx := (r.currentIndex - 1 + RingSize) % RingSize
	return &r.slots[idx]
}

// OpenCurrent 按 spec §4.1 初始化当前槽位。
func (r *Ring) OpenCurrent(now time.Time, rate float64, rtt time.Duration, state FSMState, sndNextSeq uint32) {
	m := r.Current()
	*m = MonitorInterval{
		Valid:        true,
		StateAtStart: state,
		StartTime:    now,
		EndTimeUs:    durationToFourThirds(rtt),
		SndStartSeq:  sndNextSeq,
		SndEndSeq:    sndNextSeq,
		LastAckedSeq: sndNextSeq,
		TargetRate:   rate,
		RTTSnapshot:  rtt,
	}
}

// durationToFourThirds 返回 (4/3)*rtt，以微秒表示；rtt<=0 时回退到 100ms。
func durationToFourThirds(rtt time.Duration) int64 {
	if rtt <= 0 {
		rtt = 100 * time.Millisecond
	}
	return rtt.Microseconds() * 4 / 3
}

// NoteSent 把新发送的报文计入当前槽位，见 spec §4.1 note_sent。
func (r *Ring) NoteSent(deltaSegments int64, newNextSeq uint32) {
	if deltaSegments <= 0 {
		return
	}
	m := r.Current()
	m.SegmentsSent += deltaSegments
	m.SndEndSeq = newNextSeq
}

// graduated 实现 spec §4.5 的毕业规则，副作用式地延长欠采样区间的 EndTimeUs。
// 返回 true 表示当前区间已经毕业，可以推进 current_index。
func (r *Ring) graduated(now time.Time) bool {
	m := r.Current()
	elapsedUs := now.Sub(m.StartTime).Microseconds()

	if m.SegmentsSent < minSegmentsBeforeGraduation {
		for m.EndTimeUs <= elapsedUs {
			m.EndTimeUs += graduationExtensionUs
		}
		return false
	}

	if m.hasSent() && elapsedUs > m.EndTimeUs {
		m.EndTimeUs = elapsedUs
		return true
	}
	return false
}

// AdvanceIfDue 按 spec §4.1 advance_if_due 推进 current_index；
// 若目标槽位仍然 valid，记录诊断并强制 invalidate 之。
func (r *Ring) AdvanceIfDue(now time.Time) bool {
	if !r.graduated(now) {
		return false
	}
	r.currentIndex = (r.currentIndex + 1) % RingSize
	next := &r.slots[r.currentIndex]
	if next.Valid {
		r.logger.Printf("congestion: ring slot %d still valid on advance, forcing invalidate", r.currentIndex)
		next.Valid = false
	}
	return true
}

// At 返回槽位 idx 的指针，idx 必须在 [0, RingSize) 范围内。
func (r *Ring) At(idx int) *MonitorInterval {
	return &r.slots[idx]
}

// PrevOf 返回槽位 idx 在环中紧邻的上一个槽位 (idx-1 mod N)。
func (r *Ring) PrevOf(idx int) *MonitorInterval {
	return &r.slots[(idx-1+RingSize)%RingSize]
}

// ApplyToValid 把一次 ACK 事件应用到所有仍然 valid 的槽位上，因为同一个 ACK
// 可能同时落在多个尚未关闭的监测区间的发送范围内 (见 spec §4.3)。
func (r *Ring) ApplyToValid(acct *AckAccounting, ev *AckEvent) {
	for i := range r.slots {
		if r.slots[i].Valid {
			acct.Apply(&r.slots[i], ev)
		}
	}
}

// closed 报告槽位 m 的发送窗口是否已到期且 ACK 前沿已追上已发送字节。
func closed(m *MonitorInterval, now time.Time) bool {
	elapsedUs := now.Sub(m.StartTime).Microseconds()
	if elapsedUs <= m.EndTimeUs {
		return false
	}
	return !seqLess(m.LastAckedSeq, m.SndEndSeq)
}

// Sweep 按索引顺序遍历所有有效槽位，关闭满足条件的区间；onClose 在
// invalidate 之前被调用，供调用方计算效用并驱动 FSM。
func (r *Ring) Sweep(now time.Time, onClose func(idx int, m *MonitorInterval)) {
	for i := range r.slots {
		m := &r.slots[i]
		if !m.Valid {
			continue
		}
		if !closed(m, now) {
			continue
		}
		if onClose != nil {
			onClose(i, m)
		}
		m.Valid = false
	}
}
