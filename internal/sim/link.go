// =============================================================================
// 文件: internal/sim/link.go
// 描述: 仿真链路模型 - 带宽上限、固定 RTT、随机报文丢失
// =============================================================================
package sim

import (
	"math/rand"
	"time"
)

// LinkConfig 描述一条仿真链路的物理特征。
type LinkConfig struct {
	RateBps    uint64
	RTT        time.Duration
	LossRate   float64
	QueueBytes int
	MSS        int
	Seed       int64
}

// Link 把一批"本 tick 发送的字节"转换成"一个 RTT 之后到达对端、按 mss 取整报文、
// 叠加独立丢包率"的交付结果。它不建模排队延迟的波动，只建模带宽上限与丢包。
type Link struct {
	cfg LinkConfig
	rng *rand.Rand

	queued int64 // 仍在"飞行"中、尚未达到链路带宽上限约束释放的字节
}

// NewLink 创建一条仿真链路。
func NewLink(cfg LinkConfig) *Link {
	if cfg.MSS <= 0 {
		cfg.MSS = 1200
	}
	return &Link{
		cfg: cfg,
		rng: rand.New(rand.NewSource(cfg.Seed)),
	}
}

// DeliveryResult 是一个 tick 内链路对一批已发送字节的处理结果。
type DeliveryResult struct {
	DeliveredBytes int64 // 成功到达对端、将被确认的字节
	LostBytes      int64 // 按 mss 取整报文计的丢失字节
}

// Admit 接收 sentBytes 个新发送的字节，结合链路带宽上限算出 tickDuration 内
// 实际能够被放上链路的字节数，并对放上链路的报文按 LossRate 独立丢弃。
func (l *Link) Admit(sentBytes int64, tickDuration time.Duration) DeliveryResult {
	if sentBytes <= 0 {
		return DeliveryResult{}
	}

	l.queued += sentBytes

	capacity := int64(float64(l.cfg.RateBps) * tickDuration.Seconds())
	if capacity <= 0 {
		capacity = int64(l.cfg.MSS)
	}
	if int64(l.cfg.QueueBytes) > 0 && l.queued > int64(l.cfg.QueueBytes) {
		overflow := l.queued - int64(l.cfg.QueueBytes)
		l.queued -= overflow
		// 排队溢出的部分在真实链路上会被尾部丢弃；这里直接计入丢失。
		segs := overflow / int64(l.cfg.MSS)
		return DeliveryResult{LostBytes: segs * int64(l.cfg.MSS)}
	}

	admitted := capacity
	if admitted > l.queued {
		admitted = l.queued
	}
	l.queued -= admitted

	segments := admitted / int64(l.cfg.MSS)
	var delivered, lost int64
	for i := int64(0); i < segments; i++ {
		if l.rng.Float64() < l.cfg.LossRate {
			lost += int64(l.cfg.MSS)
		} else {
			delivered += int64(l.cfg.MSS)
		}
	}

	return DeliveryResult{DeliveredBytes: delivered, LostBytes: lost}
}
