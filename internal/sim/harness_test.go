package sim

import (
	"context"
	"testing"

	"github.com/duskwire/pcc/internal/config"
	"github.com/duskwire/pcc/internal/congestion"
)

func TestHarnessRunProducesStatsPerConnection(t *testing.T) {
	cfg := config.SimConfig{
		Enabled:        true,
		LinkRateBps:    20_000_000,
		LinkRTTMs:      20,
		LinkLossRate:   0.0,
		LinkQueueBytes: 1 << 20,
		DurationSec:    1,
		Concurrency:    2,
	}

	h := NewHarness(cfg, congestion.EngineConfig{}, nil)
	results, err := h.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("len(results) = %d, want 2", len(results))
	}
	for _, r := range results {
		if r.Stats.SndCount == 0 {
			t.Fatalf("connection %d sent nothing over a 1s run", r.Index)
		}
	}
}

func TestHarnessRunRespectsCancellation(t *testing.T) {
	cfg := config.SimConfig{
		LinkRateBps: 1_000_000,
		LinkRTTMs:   20,
		DurationSec: 100,
		Concurrency: 1,
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	h := NewHarness(cfg, congestion.EngineConfig{}, nil)
	_, err := h.Run(ctx)
	if err == nil {
		t.Fatal("expected an error from a harness run against an already-cancelled context")
	}
}
