// =============================================================================
// 文件: internal/congestion/dedup.go
// 描述: ACK 事件去重，改编自 crypto/replay.go 的时间分片 Bloom 环 + 精确缓存，
//       用于吸收宿主在同一监测窗口内重复投递的 in_ack_event 调用。
// =============================================================================
package congestion

import (
	"encoding/binary"

	"github.com/bits-and-blooms/bloom/v3"
)

const (
	ackDedupExpectedItems = 4096
	ackDedupFalsePositive = 0.001
	ackDedupExactCacheCap = 256

	// ackDedupSlices 和 ackDedupSliceUs 一起把"最近几个 RTT"近似成一个固定数量
	// 的滚动时间片；每个切片过期后整块重建，不靠全局清空，和 replay.go 的
	// timeSlice 环思路一致，只是没有后台 goroutine 驱动轮转 (见 spec §5，引擎
	// 不得自行起线程)，轮转改为在 Seen 里按调用方传入的时间戳同步检查。
	ackDedupSlices  = 4
	ackDedupSliceUs = 50_000 // 50ms 一片，四片覆盖约 200ms，足够盖住典型连接的几个 RTT
)

// ackDedup 吸收重复的 ACK 事件：同一个 (snd_una, sack[0..3], rtt_us) 指纹先查精确
// 缓存 (按插入顺序淘汰，最多 ackDedupExactCacheCap 个)，再查 Bloom 分片。Bloom 命中
// 但精确缓存里没有的指纹同样按"已处理过"返回，因此 Bloom 的假阳性会吞掉一次真实的新 ACK。
// Bloom 侧用四片滚动时间片实现，旧片到期后整片重建，保证长连接不会把过滤器喂饱。
type ackDedup struct {
	slices      [ackDedupSlices]*bloom.BloomFilter
	sliceOpenUs [ackDedupSlices]int64
	currentIdx  int

	exactCache map[uint64]struct{}
	exactOrder []uint64
}

func newAckDedup() *ackDedup {
	d := &ackDedup{
		exactCache: make(map[uint64]struct{}, ackDedupExactCacheCap),
	}
	for i := range d.slices {
		d.slices[i] = bloom.NewWithEstimates(ackDedupExpectedItems, ackDedupFalsePositive)
	}
	return d
}

// Seen 报告该事件是否已处理过；如果是新事件会记录下来并返回 false。
func (d *ackDedup) Seen(ev *AckEvent) bool {
	d.rotateIfDue(ev.Timestamp)

	key := ackEventKey(ev)

	if _, ok := d.exactCache[key]; ok {
		return true
	}

	var keyBytes [8]byte
	binary.BigEndian.PutUint64(keyBytes[:], key)

	hit := false
	for _, s := range d.slices {
		if s.Test(keyBytes[:]) {
			hit = true
			break
		}
	}

	d.slices[d.currentIdx].Add(keyBytes[:])
	d.remember(key)

	if hit {
		// Bloom 命中但精确缓存里没有：缓存容量有限，这个键可能是很久以前见过的
		// 真命中，也可能是假阳性。两种情况都按"已处理过"对待更安全 —— 错放过一次
		// 重复事件的代价，小于把它当新事件重新计入丢包统计的代价。
		return true
	}
	return false
}

// rotateIfDue 按时间戳把当前分片滚动到下一片，过期分片直接重建为空的 Bloom
// 过滤器，近似 replay.go 里按墙钟轮转 timeSlice 的做法。
func (d *ackDedup) rotateIfDue(tsUs int64) {
	if tsUs == 0 {
		return
	}
	if d.sliceOpenUs[d.currentIdx] == 0 {
		d.sliceOpenUs[d.currentIdx] = tsUs
		return
	}
	if tsUs-d.sliceOpenUs[d.currentIdx] < ackDedupSliceUs {
		return
	}
	d.currentIdx = (d.currentIdx + 1) % ackDedupSlices
	d.slices[d.currentIdx] = bloom.NewWithEstimates(ackDedupExpectedItems, ackDedupFalsePositive)
	d.sliceOpenUs[d.currentIdx] = tsUs
}

func (d *ackDedup) remember(key uint64) {
	if _, ok := d.exactCache[key]; ok {
		return
	}
	d.exactCache[key] = struct{}{}
	d.exactOrder = append(d.exactOrder, key)

	for len(d.exactOrder) > ackDedupExactCacheCap {
		oldest := d.exactOrder[0]
		d.exactOrder = d.exactOrder[1:]
		delete(d.exactCache, oldest)
	}
}

// ackEventKey 把 (snd_una, sack[0..3], rtt_us) 折算成一个去重用的复合键，用
// replay.go 里同样的 FNV-1a 滚动哈希。
func ackEventKey(ev *AckEvent) uint64 {
	var h uint64 = 14695981039346656037
	mix := func(v uint64) {
		h ^= v
		h *= 1099511628211
	}

	mix(uint64(ev.SndUna))
	for i := 0; i < ev.NumSACKs; i++ {
		mix(uint64(ev.SACKs[i].Start))
		mix(uint64(ev.SACKs[i].End))
	}
	mix(uint64(ev.RTTUs))
	return h
}
