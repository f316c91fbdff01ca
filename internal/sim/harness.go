// =============================================================================
// 文件: internal/sim/harness.go
// 描述: 仿真测试台 - 并发驱动若干仿真连接，周期性推进虚拟时钟
// =============================================================================
package sim

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/duskwire/pcc/internal/config"
	"github.com/duskwire/pcc/internal/congestion"
)

// tickDuration 是每次 Advance/OnInAckEvent 调用之间推进的虚拟时间步长。
const tickDuration = 5 * time.Millisecond

// ConnResult 汇总单条仿真连接结束时的控制器统计。
type ConnResult struct {
	Index int
	Stats congestion.CongestionStats
}

// Harness 按配置驱动若干条独立的仿真连接，每条连接各自拥有一个 Link 和
// Controller，通过 errgroup 并发运行到指定时长。
type Harness struct {
	cfg    config.SimConfig
	engine congestion.EngineConfig
	logger congestion.Logger

	// OnConnStart, if set, is called once per connection right after its
	// Controller has been initialized, letting the caller (e.g. a metrics or
	// inspector server) hold a live reference while the connection runs.
	OnConnStart func(index int, c *congestion.Controller)
}

// NewHarness 创建一个测试台。
func NewHarness(cfg config.SimConfig, engine congestion.EngineConfig, logger congestion.Logger) *Harness {
	return &Harness{cfg: cfg, engine: engine, logger: logger}
}

// Run 并发运行 cfg.Concurrency 条仿真连接，每条持续 cfg.DurationSec 秒的虚拟
// 时间，返回每条连接结束时的统计。ctx 取消时所有连接提前退出。
func (h *Harness) Run(ctx context.Context) ([]ConnResult, error) {
	g, gctx := errgroup.WithContext(ctx)
	results := make([]ConnResult, h.cfg.Concurrency)

	for i := 0; i < h.cfg.Concurrency; i++ {
		idx := i
		g.Go(func() error {
			stats, err := h.runOne(gctx, idx)
			if err != nil {
				return err
			}
			results[idx] = ConnResult{Index: idx, Stats: stats}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

func (h *Harness) runOne(ctx context.Context, index int) (congestion.CongestionStats, error) {
	start := time.Now()

	link := NewLink(LinkConfig{
		RateBps:    h.cfg.LinkRateBps,
		RTT:        time.Duration(h.cfg.LinkRTTMs) * time.Millisecond,
		LossRate:   h.cfg.LinkLossRate,
		QueueBytes: h.cfg.LinkQueueBytes,
		MSS:        congestion.DefaultMSS,
		Seed:       int64(index) + 1,
	})

	conn := NewConn(congestion.DefaultMSS, link, link.cfg.RTT, start)
	controller := congestion.NewController(h.engine, h.logger)
	controller.Init(conn)
	defer controller.OnRelease()

	if h.OnConnStart != nil {
		h.OnConnStart(index, controller)
	}

	deadline := start.Add(time.Duration(h.cfg.DurationSec) * time.Second)
	virtualNow := start

	for virtualNow.Before(deadline) {
		select {
		case <-ctx.Done():
			return controller.Stats(), ctx.Err()
		default:
		}

		virtualNow = virtualNow.Add(tickDuration)
		ev := conn.Advance(virtualNow, tickDuration)
		controller.OnPktsAcked(conn, ev.RTTUs)
		controller.OnInAckEvent(conn, ev)
	}

	return controller.Stats(), nil
}
