// =============================================================================
// 文件: internal/congestion/ack.go
// 描述: AckAccounting - 累积 ACK + 最多 4 个 SACK 块的丢包与已确认序号统计
//       (见 spec §4.3)。结构改编自 arq_types.go 中的 SACKRange/ARQMaxSACKRanges。
// =============================================================================
package congestion

// MaxSACKBlocks 是单次 ACK 事件中可携带的 SACK 块上限 (与 HostTransport 契约一致)。
const MaxSACKBlocks = 4

// SACKBlock 是一段已被对端确认、但尚未被累积 ACK 前沿覆盖的序号区间 [Start, End)。
type SACKBlock struct {
	Start uint32
	End   uint32
}

// AckEvent 是从 HostTransport 读到的一次 ACK 快照，见 spec §6。
type AckEvent struct {
	SndUna    uint32
	SACKs     [MaxSACKBlocks]SACKBlock
	NumSACKs  int
	RTTUs     int64
	Timestamp int64 // 单调时钟，微秒
}

// AckAccounting 把原始 ACK 事件翻译成"区间内已知已确认前沿"与"区间内丢包字节数"的增量，
// 按 spec §4.3 的规则逐个应用到仍然 valid 的监测区间上。
type AckAccounting struct {
	lastSACKs [MaxSACKBlocks]SACKBlock
	numSACKs  int
	mss       int
}

// NewAckAccounting 创建一个 AckAccounting 并保存 mss；SACK 间隙按原始字节计入丢失，
// 不按 mss 折算成报文数 (见 lostBytesForGap)。
func NewAckAccounting(mss int) *AckAccounting {
	if mss <= 0 {
		mss = DefaultMSS
	}
	return &AckAccounting{mss: mss}
}

// sortedSACKs 返回按 Start 升序排列（回绕感知）的 SACK 块拷贝，便于顺序扫描间隙。
func sortedSACKs(blocks [MaxSACKBlocks]SACKBlock, n int) [MaxSACKBlocks]SACKBlock {
	out := blocks
	for i := 1; i < n; i++ {
		for j := i; j > 0 && seqLess(out[j].Start, out[j-1].Start); j-- {
			out[j], out[j-1] = out[j-1], out[j]
		}
	}
	return out
}

// Apply 把一次 ACK 事件记到单个监测区间上：推进 LastAckedSeq 至 snd_una（若区间内
// 更靠前），然后顺序扫描各 SACK 块，把 cursor 与 min(block.start, SndEndSeq) 之间的
// 间隙计为丢失字节 —— 即使 block.start 落在区间末尾之后，缺口也按 SndEndSeq 封顶
// 计入丢失，而不是整块跳过 —— 并在 block.End 越过 LastAckedSeq 时把 LastAckedSeq
// 推进到 block.End (见 spec §4.3，原始实现 pcc_pacing.c 的 cap 分支)。
func (a *AckAccounting) Apply(m *MonitorInterval, ev *AckEvent) {
	if !m.Valid {
		return
	}

	if seqLess(m.LastAckedSeq, ev.SndUna) {
		m.LastAckedSeq = ev.SndUna
	}

	sacks := sortedSACKs(ev.SACKs, ev.NumSACKs)

	cursor := m.LastAckedSeq
	for i := 0; i < ev.NumSACKs; i++ {
		blk := sacks[i]
		if seqLess(blk.Start, m.SndStartSeq) {
			blk.Start = m.SndStartSeq
		}

		gapEnd := blk.Start
		if seqAfter(gapEnd, m.SndEndSeq) {
			gapEnd = m.SndEndSeq
		}
		if seqLess(cursor, gapEnd) {
			gap := seqDelta(cursor, gapEnd)
			m.BytesLost += lostBytesForGap(gap)
		}

		if seqAfter(blk.End, cursor) {
			cursor = blk.End
		}
		if seqAfter(blk.End, m.LastAckedSeq) {
			m.LastAckedSeq = blk.End
		}
	}

	a.lastSACKs = ev.SACKs
	a.numSACKs = ev.NumSACKs
}

// lostBytesForGap 把一段 [cursor, blockStart) 的间隙原样计为丢失字节数，不按 mss
// 取整 (原始实现是 bytes_lost += start_seq - last_acked_seq，见 spec §4.3)。
func lostBytesForGap(gap uint32) int64 {
	return int64(gap)
}
