package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
)

type fakeProvider struct{}

func (fakeProvider) State() string               { return "start" }
func (fakeProvider) CurrentIndex() int           { return 3 }
func (fakeProvider) PacingRateBps() float64      { return 2_000_000 }
func (fakeProvider) NextRateBps() float64        { return 2_000_000 }
func (fakeProvider) SmoothedRTTMs() float64      { return 42.5 }
func (fakeProvider) DecisionAttempts() int       { return 1 }
func (fakeProvider) RateAdjustmentTries() int    { return 0 }
func (fakeProvider) Direction() int              { return 1 }
func (fakeProvider) SndCount() uint64            { return 1000 }
func (fakeProvider) LastUtility() float64        { return 123.4 }
func (fakeProvider) LastBytesLost() int64        { return 0 }
func (fakeProvider) LastSegmentsSent() int64     { return 40 }

func TestControllerCollectorRegisters(t *testing.T) {
	registry := prometheus.NewRegistry()
	c := NewControllerCollector(fakeProvider{})

	if err := registry.Register(c); err != nil {
		t.Fatalf("Register: %v", err)
	}

	families, err := registry.Gather()
	if err != nil {
		t.Fatalf("Gather: %v", err)
	}
	if len(families) == 0 {
		t.Fatal("expected at least one metric family")
	}

	found := false
	for _, fam := range families {
		if fam.GetName() == "pcc_controller_pacing_rate_bps" {
			found = true
			if len(fam.Metric) != 1 {
				t.Fatalf("expected exactly one sample, got %d", len(fam.Metric))
			}
			if got := fam.Metric[0].GetGauge().GetValue(); got != 2_000_000 {
				t.Fatalf("pacing_rate_bps = %v, want 2000000", got)
			}
		}
	}
	if !found {
		t.Fatal("pcc_controller_pacing_rate_bps not found in gathered families")
	}
}
