// =============================================================================
// 文件: internal/congestion/hosttransport.go
// 描述: HostTransport - 引擎与宿主传输栈之间的外部接口 (见 spec §6)
// =============================================================================
package congestion

import "time"

// HostTransport 是引擎对宿主 TCP (或等价传输) 栈的全部依赖面。读操作取宿主当前
// 状态的一次快照；写操作把引擎的决策发布回宿主。实现通常是一层很薄的适配器，
// 真正的报文收发与重传逻辑始终留在宿主里 —— 引擎从不直接接触数据平面。
type HostTransport interface {
	// NextSeqToSend 返回宿主下一个将要发送的序号 (snd_nxt)。
	NextSeqToSend() uint32
	// SndUna 返回当前累积 ACK 前沿。
	SndUna() uint32
	// SACKBlocks 返回最近一次 ACK 事件携带的 SACK 块 (最多 MaxSACKBlocks 个)。
	SACKBlocks() ([MaxSACKBlocks]SACKBlock, int)
	// DataSegsOut 返回连接生命周期内发送过的数据报文总数。
	DataSegsOut() uint64
	// AdvMSS 返回协商后的最大分段大小；0 表示尚不可用。
	AdvMSS() int
	// SRTTUs 返回当前的平滑 RTT，微秒。
	SRTTUs() int64
	// Now 返回宿主的单调时钟。
	Now() time.Time

	// SetPacingRate 把引擎选出的速率（字节/秒）发布给宿主的发包调度器。
	SetPacingRate(bps uint64)
	// SetCwnd 写回拥塞窗口；引擎把它当作旁路开关使用，通常写一个很大的值
	// 来让 pacing rate 而不是 cwnd 成为限速的主要机制。
	SetCwnd(segments uint32)
	// SetSendWindow 可选地覆盖对端通告窗口；只有 EngineConfig.ClampSendWindow 打开时才调用。
	SetSendWindow(bytes uint32)
}
