// =============================================================================
// 文件: internal/config/config.go
// 描述: 配置管理 - 速率边界、引擎开关、指标/检视器监听地址、仿真链路模型
// =============================================================================
package config

import (
	"fmt"
	"net"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Config 是顶层配置。
type Config struct {
	LogLevel string `yaml:"log_level"`

	Engine    EngineConfig    `yaml:"engine"`
	Metrics   MetricsConfig   `yaml:"metrics"`
	Inspector InspectorConfig `yaml:"inspector"`
	Sim       SimConfig       `yaml:"sim"`
}

// EngineConfig 是速率选择引擎本身的可调参数。min_rate_bps 与 initial_rate_bps
// 只在 Validate 中校验，不会传给引擎：引擎使用 congestion 包里的 MinRateBps 与
// InitialRateBps 常量。
type EngineConfig struct {
	MinRateBps      uint64 `yaml:"min_rate_bps"`
	InitialRateBps  uint64 `yaml:"initial_rate_bps"`
	MSSOverride     int    `yaml:"mss_override"`
	ClampSendWindow bool   `yaml:"clamp_send_window"`
	// ShuffleDecisionDirections 保留给未来的 A/B 实验随机化；当前未被读取。
	ShuffleDecisionDirections bool `yaml:"shuffle_decision_directions"`
}

// MetricsConfig 是 Prometheus 指标服务配置。
type MetricsConfig struct {
	Enabled     bool   `yaml:"enabled"`
	Listen      string `yaml:"listen"`
	Path        string `yaml:"path"`
	HealthPath  string `yaml:"health_path"`
	EnablePprof bool   `yaml:"enable_pprof"`
}

// InspectorConfig 是 websocket 实时状态推送服务配置。
type InspectorConfig struct {
	Enabled      bool   `yaml:"enabled"`
	Listen       string `yaml:"listen"`
	Path         string `yaml:"path"`
	PushInterval int    `yaml:"push_interval_ms"`
}

// SimConfig 配置内置的仿真链路与连接模型，用于无真实内核的集成测试和
// cmd/pccctl 的快速试跑。
type SimConfig struct {
	Enabled        bool    `yaml:"enabled"`
	LinkRateBps    uint64  `yaml:"link_rate_bps"`
	LinkRTTMs      int     `yaml:"link_rtt_ms"`
	LinkLossRate   float64 `yaml:"link_loss_rate"`
	LinkQueueBytes int     `yaml:"link_queue_bytes"`
	DurationSec    int     `yaml:"duration_sec"`
	Concurrency    int     `yaml:"concurrency"`
}

// Load 读取并解析 YAML 配置文件，叠加在 DefaultConfig 之上，并在返回前校验。
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("读取配置失败: %w", err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("解析配置失败: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// DefaultConfig 返回默认配置。
func DefaultConfig() *Config {
	return &Config{
		LogLevel: "info",

		Engine: EngineConfig{
			MinRateBps:     800_000,
			InitialRateBps: 1_000_000,
		},

		Metrics: MetricsConfig{
			Enabled:     true,
			Listen:      ":9101",
			Path:        "/metrics",
			HealthPath:  "/health",
			EnablePprof: false,
		},

		Inspector: InspectorConfig{
			Enabled:      true,
			Listen:       ":9102",
			Path:         "/ws",
			PushInterval: 200,
		},

		Sim: SimConfig{
			Enabled:        false,
			LinkRateBps:    10_000_000,
			LinkRTTMs:      40,
			LinkLossRate:   0.0,
			LinkQueueBytes: 256 * 1024,
			DurationSec:    10,
			Concurrency:    1,
		},
	}
}

// Validate 检查配置里的硬性约束，在 Load 返回前强制执行。
func (c *Config) Validate() error {
	if c.Engine.MinRateBps == 0 {
		return fmt.Errorf("engine.min_rate_bps 不能为 0")
	}
	if c.Engine.InitialRateBps < c.Engine.MinRateBps {
		return fmt.Errorf("engine.initial_rate_bps (%d) 不能低于 engine.min_rate_bps (%d)",
			c.Engine.InitialRateBps, c.Engine.MinRateBps)
	}
	if c.Engine.MSSOverride < 0 {
		return fmt.Errorf("engine.mss_override 不能为负数")
	}

	if c.Metrics.Enabled {
		if err := validateListenAddr(c.Metrics.Listen); err != nil {
			return fmt.Errorf("metrics.listen 非法: %w", err)
		}
		if c.Metrics.Path == "" {
			return fmt.Errorf("metrics.path 不能为空")
		}
	}

	if c.Inspector.Enabled {
		if err := validateListenAddr(c.Inspector.Listen); err != nil {
			return fmt.Errorf("inspector.listen 非法: %w", err)
		}
		if c.Metrics.Enabled && c.Inspector.Listen == c.Metrics.Listen {
			return fmt.Errorf("inspector.listen 与 metrics.listen 冲突: %s", c.Inspector.Listen)
		}
		if c.Inspector.PushInterval <= 0 {
			return fmt.Errorf("inspector.push_interval_ms 必须为正数")
		}
	}

	if c.Sim.Enabled {
		if c.Sim.LinkRateBps == 0 {
			return fmt.Errorf("sim.link_rate_bps 不能为 0")
		}
		if c.Sim.LinkLossRate < 0 || c.Sim.LinkLossRate >= 1 {
			return fmt.Errorf("sim.link_loss_rate 必须在 [0, 1) 区间内，当前为 %v", c.Sim.LinkLossRate)
		}
		if c.Sim.Concurrency <= 0 {
			return fmt.Errorf("sim.concurrency 必须为正数")
		}
	}

	return nil
}

func validateListenAddr(addr string) error {
	host, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		return err
	}
	_ = host
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return fmt.Errorf("端口不是数字: %s", portStr)
	}
	if port < 0 || port > 65535 {
		return fmt.Errorf("端口超出范围: %d", port)
	}
	return nil
}

// GenerateExampleConfig 返回一份带注释的示例 YAML 配置，供 pccctl -gen-config 使用。
func GenerateExampleConfig() string {
	return `# pccd 配置示例
log_level: info

engine:
  min_rate_bps: 800000
  initial_rate_bps: 1000000
  mss_override: 0
  clamp_send_window: false
  shuffle_decision_directions: false

metrics:
  enabled: true
  listen: ":9101"
  path: "/metrics"
  health_path: "/health"
  enable_pprof: false

inspector:
  enabled: true
  listen: ":9102"
  path: "/ws"
  push_interval_ms: 200

sim:
  enabled: false
  link_rate_bps: 10000000
  link_rtt_ms: 40
  link_loss_rate: 0.0
  link_queue_bytes: 262144
  duration_sec: 10
  concurrency: 1
`
}

// WriteExampleConfig 把示例配置写入 path。
func WriteExampleConfig(path string) error {
	return os.WriteFile(path, []byte(GenerateExampleConfig()), 0o644)
}
