// =============================================================================
// 文件: internal/sim/conn.go
// 描述: 仿真连接 - 实现 congestion.HostTransport，驱动 Link 完成发送/确认循环
// =============================================================================
package sim

import (
	"sort"
	"sync"
	"time"

	"github.com/duskwire/pcc/internal/congestion"
)

// segment 是一个已发送、正在等待确认结果的仿真报文。
type segment struct {
	seq       uint32
	length    uint32
	deliverAt time.Time
	delivered bool
}

// Conn 是 congestion.HostTransport 的一个仿真实现：它按 pacing rate 生成报文，
// 把它们交给 Link 排队 (带宽瓶颈 + 丢包)，再把 Link 放行的交付/丢失结果折算成
// 累积 ACK 前沿与最多 4 个 SACK 区间。
type Conn struct {
	mu sync.Mutex

	mss  int
	link *Link
	rtt  time.Duration

	now         time.Time
	nextSeq     uint32
	una         uint32
	dataSegsOut uint64
	srttUs      int64

	pending     []*segment // 已生成、尚未被 Link 放行 (受带宽/队列约束排队中) 的报文
	outstanding []*segment // 已被 Link 放行、等待 RTT 后结算交付/丢失结果的报文

	lastSACKs [congestion.MaxSACKBlocks]congestion.SACKBlock
	numSACKs  int

	pacingRate uint64
	cwnd       uint32
	sendWindow uint32
}

// NewConn 创建一个仿真连接，序号与累积 ACK 前沿都从 1 开始计数。
func NewConn(mss int, link *Link, rtt time.Duration, start time.Time) *Conn {
	return &Conn{
		mss:     mss,
		link:    link,
		rtt:     rtt,
		now:     start,
		nextSeq: 1,
		una:     1,
		srttUs:  rtt.Microseconds(),
	}
}

// Advance 按当前发布的 pacing rate 生成 tickDuration 这段时间内允许发送的报文，
// 把它们连同此前排队未放行的报文一起交给 Link.Admit 过一遍带宽瓶颈和丢包，把
// Link 放行的报文移入在途列表，结算所有到期的在途报文，并返回反映当前状态的
// AckEvent。
func (c *Conn) Advance(now time.Time, tickDuration time.Duration) *congestion.AckEvent {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.now = now

	rate := c.pacingRate
	if rate == 0 {
		rate = congestion.InitialRateBps
	}
	allowedBytes := int64(float64(rate) * tickDuration.Seconds())
	newSegments := allowedBytes / int64(c.mss)

	for i := int64(0); i < newSegments; i++ {
		c.pending = append(c.pending, &segment{seq: c.nextSeq, length: uint32(c.mss)})
		c.nextSeq += uint32(c.mss)
		c.dataSegsOut++
	}

	result := c.link.Admit(newSegments*int64(c.mss), tickDuration)

	deliveredCount := int(result.DeliveredBytes / int64(c.mss))
	lostCount := int(result.LostBytes / int64(c.mss))
	admitted := deliveredCount + lostCount
	if admitted > len(c.pending) {
		admitted = len(c.pending)
	}

	for i := 0; i < admitted; i++ {
		seg := c.pending[i]
		seg.deliverAt = now.Add(c.rtt)
		seg.delivered = i < deliveredCount
		c.outstanding = append(c.outstanding, seg)
	}
	c.pending = c.pending[admitted:]

	return c.settle(now)
}

// settle 结算所有 deliverAt<=now 的在途报文，推进累积 ACK 前沿，并把仍然落后
// 的、但已经交付的报文折算成 SACK 区间。
func (c *Conn) settle(now time.Time) *congestion.AckEvent {
	remaining := c.outstanding[:0]
	var deliveredRanges []congestion.SACKBlock

	sort.Slice(c.outstanding, func(i, j int) bool { return c.outstanding[i].seq < c.outstanding[j].seq })

	for _, seg := range c.outstanding {
		if seg.deliverAt.After(now) {
			remaining = append(remaining, seg)
			continue
		}
		if seg.delivered {
			deliveredRanges = append(deliveredRanges, congestion.SACKBlock{Start: seg.seq, End: seg.seq + seg.length})
		}
		// 未交付的报文直接从在途列表移除：仿真链路不做重传，丢了就是丢了，
		// 由累积 ACK 前沿永远越不过这段序号来反映丢包。
	}
	c.outstanding = remaining

	deliveredRanges = mergeAdjacent(deliveredRanges)

	// 推进累积前沿：只要下一段从 c.una 开始就连续交付，就持续前移。
	for {
		advanced := false
		for i, r := range deliveredRanges {
			if r.Start == c.una {
				c.una = r.End
				deliveredRanges = append(deliveredRanges[:i], deliveredRanges[i+1:]...)
				advanced = true
				break
			}
		}
		if !advanced {
			break
		}
	}

	ev := &congestion.AckEvent{
		SndUna:    c.una,
		RTTUs:     c.rtt.Microseconds(),
		Timestamp: now.UnixMicro(),
	}
	n := len(deliveredRanges)
	if n > congestion.MaxSACKBlocks {
		n = congestion.MaxSACKBlocks
	}
	for i := 0; i < n; i++ {
		ev.SACKs[i] = deliveredRanges[i]
	}
	ev.NumSACKs = n

	c.lastSACKs = ev.SACKs
	c.numSACKs = n

	return ev
}

// mergeAdjacent 合并相邻或重叠的已交付区间，减少冗余的 SACK 块。
func mergeAdjacent(ranges []congestion.SACKBlock) []congestion.SACKBlock {
	if len(ranges) < 2 {
		return ranges
	}
	sort.Slice(ranges, func(i, j int) bool { return ranges[i].Start < ranges[j].Start })

	merged := ranges[:1]
	for _, r := range ranges[1:] {
		last := &merged[len(merged)-1]
		if r.Start <= last.End {
			if r.End > last.End {
				last.End = r.End
			}
			continue
		}
		merged = append(merged, r)
	}
	return merged
}

// NextSeqToSend 实现 congestion.HostTransport。
func (c *Conn) NextSeqToSend() uint32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.nextSeq
}

// SndUna 实现 congestion.HostTransport。
func (c *Conn) SndUna() uint32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.una
}

// SACKBlocks 实现 congestion.HostTransport，返回最近一次 settle 算出的 SACK 块。
func (c *Conn) SACKBlocks() ([congestion.MaxSACKBlocks]congestion.SACKBlock, int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastSACKs, c.numSACKs
}

// DataSegsOut 实现 congestion.HostTransport。
func (c *Conn) DataSegsOut() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.dataSegsOut
}

// AdvMSS 实现 congestion.HostTransport。
func (c *Conn) AdvMSS() int { return c.mss }

// SRTTUs 实现 congestion.HostTransport。
func (c *Conn) SRTTUs() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.srttUs
}

// Now 实现 congestion.HostTransport，返回仿真连接的虚拟时钟，不是真实墙钟。
func (c *Conn) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// SetPacingRate 实现 congestion.HostTransport。
func (c *Conn) SetPacingRate(bps uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pacingRate = bps
}

// SetCwnd 实现 congestion.HostTransport。
func (c *Conn) SetCwnd(segments uint32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cwnd = segments
}

// SetSendWindow 实现 congestion.HostTransport。
func (c *Conn) SetSendWindow(bytes uint32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sendWindow = bytes
}

// PacingRate 返回最近一次被控制器设置的速率，主要供测试和统计使用。
func (c *Conn) PacingRate() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pacingRate
}
