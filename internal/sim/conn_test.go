package sim

import (
	"testing"
	"time"

	"github.com/duskwire/pcc/internal/congestion"
)

func TestConnAdvanceNoLossAdvancesUna(t *testing.T) {
	link := NewLink(LinkConfig{RateBps: 100_000_000, MSS: 1000, LossRate: 0, QueueBytes: 1 << 20, Seed: 1})
	start := time.Now()
	conn := NewConn(1000, link, 20*time.Millisecond, start)
	conn.SetPacingRate(1_000_000) // 1MB/s

	now := start
	var ev *congestion.AckEvent
	for i := 0; i < 10; i++ {
		now = now.Add(5 * time.Millisecond)
		ev = conn.Advance(now, 5*time.Millisecond)
	}

	if ev.SndUna <= 1 {
		t.Fatalf("SndUna = %d, want advanced past the initial sequence", ev.SndUna)
	}
	if conn.NextSeqToSend() <= ev.SndUna {
		t.Fatal("NextSeqToSend should stay ahead of SndUna while segments are still in flight")
	}
}

func TestConnAdvanceFullLossNeverAdvancesUna(t *testing.T) {
	link := NewLink(LinkConfig{RateBps: 100_000_000, MSS: 1000, LossRate: 1, QueueBytes: 1 << 20, Seed: 1})
	start := time.Now()
	conn := NewConn(1000, link, 20*time.Millisecond, start)
	conn.SetPacingRate(1_000_000)

	now := start
	var ev *congestion.AckEvent
	for i := 0; i < 10; i++ {
		now = now.Add(5 * time.Millisecond)
		ev = conn.Advance(now, 5*time.Millisecond)
	}

	if ev.SndUna != 1 {
		t.Fatalf("SndUna = %d, want 1 (unchanged) when every segment is lost", ev.SndUna)
	}
}

func TestConnAdvanceBandwidthBottleneckQueuesSends(t *testing.T) {
	// A pacing rate far above the link's rate must not translate into
	// proportionally more delivered bytes: Link.Admit's capacity clamp is
	// the only thing standing between the pacer and an unbounded send rate.
	const mss = 1000
	link := NewLink(LinkConfig{RateBps: 200_000, MSS: mss, LossRate: 0, QueueBytes: 1 << 20, Seed: 1})
	start := time.Now()
	conn := NewConn(mss, link, 20*time.Millisecond, start)
	conn.SetPacingRate(50_000_000) // 250x the link's capacity

	now := start
	var ev *congestion.AckEvent
	for i := 0; i < 20; i++ {
		now = now.Add(5 * time.Millisecond)
		ev = conn.Advance(now, 5*time.Millisecond)
	}

	generated := conn.NextSeqToSend() - 1
	if ev.SndUna-1 >= generated {
		t.Fatalf("SndUna progress (%d) should lag far behind what the pacer generated (%d) when the link is the bottleneck", ev.SndUna-1, generated)
	}
	if len(conn.pending) == 0 {
		t.Fatal("segments generated faster than the link admits should back up in the pending queue")
	}
}

func TestConnHostTransportAccessors(t *testing.T) {
	link := NewLink(LinkConfig{RateBps: 1_000_000, MSS: 1200, LossRate: 0})
	start := time.Now()
	conn := NewConn(1200, link, 30*time.Millisecond, start)

	if conn.AdvMSS() != 1200 {
		t.Fatalf("AdvMSS() = %d, want 1200", conn.AdvMSS())
	}
	conn.SetPacingRate(5_000_000)
	if conn.PacingRate() != 5_000_000 {
		t.Fatalf("PacingRate() = %d, want 5000000", conn.PacingRate())
	}
}
