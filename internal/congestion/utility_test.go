package congestion

import "testing"

func newTestController() *Controller {
	return &Controller{mss: 1000, logger: nopLogger{}}
}

func TestComputeUtilityZeroSegments(t *testing.T) {
	c := newTestController()
	m := &MonitorInterval{SegmentsSent: 0}
	c.computeUtility(m)

	if m.Utility != 0 || m.ActualRate != 0 {
		t.Fatalf("zero-segment interval should have Utility=0 ActualRate=0, got %v %v", m.Utility, m.ActualRate)
	}
}

func TestComputeUtilityNoLoss(t *testing.T) {
	c := newTestController()
	m := &MonitorInterval{SegmentsSent: 10, EndTimeUs: 1_000_000, BytesLost: 0, TargetRate: 20_000}
	c.computeUtility(m)

	if m.ActualRate < 9999 || m.ActualRate > 10001 {
		t.Fatalf("ActualRate = %v, want ~10000", m.ActualRate)
	}
	util := m.Utility.Float64()
	if util <= 9000 || util >= 10000 {
		t.Fatalf("Utility = %v, want in (9000, 10000) given near-zero loss penalty", util)
	}
}

func TestComputeUtilityHeavyLossReducesUtility(t *testing.T) {
	cLow := newTestController()
	mLow := &MonitorInterval{SegmentsSent: 10, EndTimeUs: 1_000_000, BytesLost: 0}
	cLow.computeUtility(mLow)

	cHigh := newTestController()
	mHigh := &MonitorInterval{SegmentsSent: 10, EndTimeUs: 1_000_000, BytesLost: 9000}
	cHigh.computeUtility(mHigh)

	if mHigh.Utility.Float64() >= mLow.Utility.Float64() {
		t.Fatalf("heavy loss should reduce utility: low=%v high=%v", mLow.Utility.Float64(), mHigh.Utility.Float64())
	}
}

func TestComputeUtilityClampsImpossibleLoss(t *testing.T) {
	c := newTestController()
	m := &MonitorInterval{SegmentsSent: 1, EndTimeUs: 1_000_000, BytesLost: 5_000_000}
	c.computeUtility(m)

	if m.BytesLost > 1000 {
		t.Fatalf("BytesLost should be clamped to sent_bytes (1000), got %d", m.BytesLost)
	}
}
