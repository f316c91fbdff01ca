// =============================================================================
// 文件: cmd/pccd/main.go
// 描述: 主程序入口 - 启动仿真测试台、指标服务和实时检视器
// =============================================================================
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/duskwire/pcc/internal/config"
	"github.com/duskwire/pcc/internal/congestion"
	"github.com/duskwire/pcc/internal/inspector"
	"github.com/duskwire/pcc/internal/metrics"
	"github.com/duskwire/pcc/internal/sim"
)

// liveController holds a reference to whichever simulated connection's
// Controller is currently running, so the metrics collector and inspector
// feed (both pull-based) always have something non-nil to read from.
type liveController struct {
	mu sync.RWMutex
	c  *congestion.Controller
}

func (l *liveController) set(c *congestion.Controller) {
	l.mu.Lock()
	l.c = c
	l.mu.Unlock()
}

func (l *liveController) get() *congestion.Controller {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.c
}

func (l *liveController) State() string {
	if c := l.get(); c != nil {
		return c.State()
	}
	return "idle"
}
func (l *liveController) CurrentIndex() int {
	if c := l.get(); c != nil {
		return c.CurrentIndex()
	}
	return 0
}
func (l *liveController) PacingRateBps() float64 {
	if c := l.get(); c != nil {
		return c.PacingRateBps()
	}
	return 0
}
func (l *liveController) NextRateBps() float64 {
	if c := l.get(); c != nil {
		return c.NextRateBps()
	}
	return 0
}
func (l *liveController) SmoothedRTTMs() float64 {
	if c := l.get(); c != nil {
		return c.SmoothedRTTMs()
	}
	return 0
}
func (l *liveController) DecisionAttempts() int {
	if c := l.get(); c != nil {
		return c.DecisionAttempts()
	}
	return 0
}
func (l *liveController) RateAdjustmentTries() int {
	if c := l.get(); c != nil {
		return c.RateAdjustmentTries()
	}
	return 0
}
func (l *liveController) Direction() int {
	if c := l.get(); c != nil {
		return c.Direction()
	}
	return 0
}
func (l *liveController) SndCount() uint64 {
	if c := l.get(); c != nil {
		return c.SndCount()
	}
	return 0
}
func (l *liveController) LastUtility() float64 {
	if c := l.get(); c != nil {
		return c.LastUtility()
	}
	return 0
}
func (l *liveController) LastBytesLost() int64 {
	if c := l.get(); c != nil {
		return c.LastBytesLost()
	}
	return 0
}
func (l *liveController) LastSegmentsSent() int64 {
	if c := l.get(); c != nil {
		return c.LastSegmentsSent()
	}
	return 0
}

func (l *liveController) snapshot() any {
	if c := l.get(); c != nil {
		return c.Stats()
	}
	return congestion.CongestionStats{State: "idle"}
}

var (
	Version   = "0.1.0"
	BuildTime = "unknown"
)

func main() {
	configPath := flag.String("c", "pccd.yaml", "配置文件路径")
	showVersion := flag.Bool("v", false, "显示版本")
	genConfig := flag.Bool("gen-config", false, "生成示例配置文件")

	flag.Parse()

	if *showVersion {
		fmt.Printf("pccd %s (built %s)\n", Version, BuildTime)
		return
	}

	if *genConfig {
		if err := config.WriteExampleConfig("pccd.example.yaml"); err != nil {
			fmt.Fprintf(os.Stderr, "生成配置失败: %v\n", err)
			os.Exit(1)
		}
		fmt.Println("已生成示例配置文件: pccd.example.yaml")
		return
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "配置错误: %v\n", err)
		os.Exit(1)
	}

	logger := log.New(os.Stderr, "pccd: ", log.LstdFlags)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var metricsServer *metrics.Server
	if cfg.Metrics.Enabled {
		metricsServer = metrics.NewServer(cfg.Metrics.Listen, cfg.Metrics.Path, cfg.Metrics.HealthPath, cfg.Metrics.EnablePprof)
		if err := metricsServer.Start(); err != nil {
			fmt.Fprintf(os.Stderr, "指标服务启动失败: %v\n", err)
			os.Exit(1)
		}
		logger.Printf("metrics listening on %s%s", cfg.Metrics.Listen, cfg.Metrics.Path)
	}

	engineCfg := congestion.EngineConfig{
		ClampSendWindow:           cfg.Engine.ClampSendWindow,
		ShuffleDecisionDirections: cfg.Engine.ShuffleDecisionDirections,
		MSSOverride:               cfg.Engine.MSSOverride,
	}

	live := &liveController{}

	if metricsServer != nil {
		collector := metrics.NewControllerCollector(live)
		metricsServer.MustRegisterCollector(collector)
	}

	var inspectorServer *inspector.Server
	if cfg.Inspector.Enabled {
		inspectorServer = inspector.NewServer(
			cfg.Inspector.Listen, cfg.Inspector.Path,
			time.Duration(cfg.Inspector.PushInterval)*time.Millisecond,
			live.snapshot,
			logger,
		)
		if err := inspectorServer.Start(ctx); err != nil {
			fmt.Fprintf(os.Stderr, "检视器启动失败: %v\n", err)
			os.Exit(1)
		}
		logger.Printf("inspector listening on %s%s", cfg.Inspector.Listen, cfg.Inspector.Path)
	}

	if cfg.Sim.Enabled {
		go runSimLoop(ctx, cfg.Sim, engineCfg, logger, live)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	logger.Printf("shutting down")
	cancel()
	if metricsServer != nil {
		metricsServer.Stop()
	}
	if inspectorServer != nil {
		inspectorServer.Stop()
	}
}

// runSimLoop repeatedly runs the simulation harness so the daemon always has
// live traffic to expose through the metrics and inspector endpoints.
func runSimLoop(ctx context.Context, simCfg config.SimConfig, engineCfg congestion.EngineConfig, logger congestion.Logger, live *liveController) {
	h := sim.NewHarness(simCfg, engineCfg, logger)
	h.OnConnStart = func(index int, c *congestion.Controller) {
		if index == 0 {
			live.set(c)
		}
	}
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}
		if _, err := h.Run(ctx); err != nil && ctx.Err() == nil {
			logger.Printf("pccd: sim run error: %v", err)
		}
	}
}
