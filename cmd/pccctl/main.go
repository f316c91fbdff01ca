// =============================================================================
// 文件: cmd/pccctl/main.go
// 描述: 命令行工具 - 生成配置、快速跑一次仿真并打印统计
// =============================================================================
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/duskwire/pcc/internal/config"
	"github.com/duskwire/pcc/internal/congestion"
	"github.com/duskwire/pcc/internal/sim"
)

var Version = "0.1.0"

func main() {
	showVersion := flag.Bool("v", false, "显示版本")
	genConfig := flag.Bool("gen-config", false, "生成示例配置文件")
	quick := flag.Bool("quick", false, "在内置仿真链路上快速跑一次并打印统计")
	configPath := flag.String("c", "", "可选的配置文件路径，覆盖 -quick 的默认参数")
	durationSec := flag.Int("duration", 5, "-quick 模式下的仿真时长（秒）")
	linkRateMbps := flag.Float64("link-mbps", 10, "-quick 模式下的链路带宽（Mbps）")
	linkRTTMs := flag.Int("link-rtt-ms", 40, "-quick 模式下的链路 RTT（毫秒）")
	linkLoss := flag.Float64("link-loss", 0.0, "-quick 模式下的链路丢包率 [0,1)")

	flag.Parse()

	if *showVersion {
		fmt.Printf("pccctl %s\n", Version)
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

	if *quick {
		simCfg := config.DefaultConfig().Sim
		simCfg.Enabled = true
		simCfg.DurationSec = *durationSec
		simCfg.LinkRateBps = uint64(*linkRateMbps * 1_000_000 / 8)
		simCfg.LinkRTTMs = *linkRTTMs
		simCfg.LinkLossRate = *linkLoss
		simCfg.Concurrency = 1

		engineCfg := congestion.EngineConfig{}

		if *configPath != "" {
			cfg, err := config.Load(*configPath)
			if err != nil {
				fmt.Fprintf(os.Stderr, "配置错误: %v\n", err)
				os.Exit(1)
			}
			simCfg = cfg.Sim
			engineCfg = congestion.EngineConfig{
				ClampSendWindow:           cfg.Engine.ClampSendWindow,
				ShuffleDecisionDirections: cfg.Engine.ShuffleDecisionDirections,
				MSSOverride:               cfg.Engine.MSSOverride,
			}
		}

		logger := log.New(os.Stderr, "pccctl: ", log.LstdFlags)
		h := sim.NewHarness(simCfg, engineCfg, logger)

		ctx, cancel := context.WithTimeout(context.Background(), time.Duration(simCfg.DurationSec+5)*time.Second)
		defer cancel()

		results, err := h.Run(ctx)
		if err != nil {
			fmt.Fprintf(os.Stderr, "仿真运行失败: %v\n", err)
			os.Exit(1)
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(results); err != nil {
			fmt.Fprintf(os.Stderr, "输出统计失败: %v\n", err)
			os.Exit(1)
		}
		return
	}

	flag.Usage()
	os.Exit(1)
}
