package congestion

import "testing"

func TestFSMColdStartDoubles(t *testing.T) {
	f := NewFSM(1_000_000, nil)

	rates := []float64{}
	for i := 0; i < 5; i++ {
		rate, decisionID, stateAtStart := f.OnOpen()
		if decisionID != 0 {
			t.Fatalf("iteration %d: decisionID = %d, want 0 while in Start", i, decisionID)
		}
		if stateAtStart != StateStart {
			t.Fatalf("iteration %d: stateAtStart = %v, want Start", i, stateAtStart)
		}
		rates = append(rates, rate)
	}

	want := []float64{2_000_000, 4_000_000, 8_000_000, 16_000_000, 32_000_000}
	for i, w := range want {
		if rates[i] != w {
			t.Fatalf("rate[%d] = %v, want %v", i, rates[i], w)
		}
	}
}

func TestFSMStartExitsToDM1OnUtilityDrop(t *testing.T) {
	f := NewFSM(4_000_000, nil)

	prev := &MonitorInterval{SegmentsSent: 10, Utility: FixedFromFloat(100), ActualRate: 3_900_000}
	closed := &MonitorInterval{StateAtStart: StateStart, SegmentsSent: 10, Utility: FixedFromFloat(50)}

	f.OnClose(closed, prev, 10)

	if f.State() != StateDM1 {
		t.Fatalf("State() = %v, want DM1", f.State())
	}
	if f.nextRate != prev.ActualRate {
		t.Fatalf("nextRate = %v, want reverted to prev.ActualRate = %v", f.nextRate, prev.ActualRate)
	}
}

func TestFSMStartExitRequiresHistory(t *testing.T) {
	f := NewFSM(4_000_000, nil)

	prev := &MonitorInterval{SegmentsSent: 0} // never sent, must not participate
	closed := &MonitorInterval{StateAtStart: StateStart, SegmentsSent: 10, Utility: FixedFromFloat(-5)}

	f.OnClose(closed, prev, 10)

	if f.State() != StateStart {
		t.Fatalf("State() = %v, want Start to remain unchanged", f.State())
	}
}

func TestFSMQuartetConsistentUp(t *testing.T) {
	f := NewFSM(4_000_000, nil)
	f.state = StateDM1

	// Open four intervals, walking the FSM through DM1..DM4, marking decision ids.
	var opened [4]MonitorInterval
	for i := 0; i < 4; i++ {
		rate, decisionID, stateAtStart := f.OnOpen()
		opened[i] = MonitorInterval{TargetRate: rate, DecisionID: decisionID, StateAtStart: stateAtStart}
	}

	// utilities consistent with "up": q0 > q1 and q2 > q3
	opened[0].Utility = FixedFromFloat(40)
	opened[1].Utility = FixedFromFloat(30)
	opened[2].Utility = FixedFromFloat(50)
	opened[3].Utility = FixedFromFloat(20)

	prev := &MonitorInterval{SegmentsSent: 1}
	for i := 0; i < 4; i++ {
		cp := opened[i]
		f.OnClose(&cp, prev, 100)
	}

	if f.State() != StateRateAdjustment {
		t.Fatalf("State() = %v, want RateAdjustment after consistent-up quartet", f.State())
	}
	if f.direction != 1 {
		t.Fatalf("direction = %d, want +1", f.direction)
	}
	if f.nextRate != opened[0].TargetRate {
		t.Fatalf("nextRate = %v, want q0.TargetRate = %v", f.nextRate, opened[0].TargetRate)
	}
}

func TestFSMQuartetInconsistentStaysDM1(t *testing.T) {
	f := NewFSM(4_000_000, nil)
	f.state = StateDM1

	var opened [4]MonitorInterval
	for i := 0; i < 4; i++ {
		rate, decisionID, stateAtStart := f.OnOpen()
		opened[i] = MonitorInterval{TargetRate: rate, DecisionID: decisionID, StateAtStart: stateAtStart}
	}

	// inconsistent pattern: q0 > q1 but q2 < q3
	opened[0].Utility = FixedFromFloat(40)
	opened[1].Utility = FixedFromFloat(30)
	opened[2].Utility = FixedFromFloat(10)
	opened[3].Utility = FixedFromFloat(20)

	prev := &MonitorInterval{SegmentsSent: 1}
	for i := 0; i < 4; i++ {
		cp := opened[i]
		f.OnClose(&cp, prev, 100)
	}

	if f.State() != StateDM1 {
		t.Fatalf("State() = %v, want DM1 after inconsistent quartet", f.State())
	}
	if f.decisionAttempts != 1 {
		t.Fatalf("decisionAttempts = %d, want 1 (bumped after inconclusive round)", f.decisionAttempts)
	}
}

func TestFSMQuartetFilledResetsAfterInconclusiveRound(t *testing.T) {
	f := NewFSM(4_000_000, nil)
	f.state = StateDM1

	// first quartet: inconsistent, stays in DM1, leaves quartetFilled at 4.
	var opened [4]MonitorInterval
	for i := 0; i < 4; i++ {
		rate, decisionID, stateAtStart := f.OnOpen()
		opened[i] = MonitorInterval{TargetRate: rate, DecisionID: decisionID, StateAtStart: stateAtStart}
	}
	opened[0].Utility = FixedFromFloat(40)
	opened[1].Utility = FixedFromFloat(30)
	opened[2].Utility = FixedFromFloat(10)
	opened[3].Utility = FixedFromFloat(20)

	prev := &MonitorInterval{SegmentsSent: 1}
	for i := 0; i < 4; i++ {
		cp := opened[i]
		f.OnClose(&cp, prev, 100)
	}
	if f.quartetFilled != 4 {
		t.Fatalf("quartetFilled = %d, want 4 after the first (inconclusive) round", f.quartetFilled)
	}

	// second round begins: only its first interval has closed so far. Without
	// resetting quartetFilled on decisionID==1, makeDecision would fire here
	// using three stale slots from the first round.
	rate, decisionID, stateAtStart := f.OnOpen()
	if decisionID != 1 {
		t.Fatalf("decisionID = %d, want 1 at the start of the second round", decisionID)
	}
	first := MonitorInterval{TargetRate: rate, DecisionID: decisionID, StateAtStart: stateAtStart, Utility: FixedFromFloat(5)}
	f.OnClose(&first, prev, 100)

	if f.quartetFilled != 1 {
		t.Fatalf("quartetFilled = %d, want 1 right after the second round's first close", f.quartetFilled)
	}
	if f.State() != StateDM2 {
		t.Fatalf("State() = %v, want DM2 (makeDecision must not fire on a partial quartet)", f.State())
	}
}

func TestFSMRateAdjustmentOverflowSnaps(t *testing.T) {
	f := NewFSM(1_000_000, nil)
	f.state = StateRateAdjustment
	f.direction = -1
	f.rateAdjustmentTries = 1000 // forces (1 - 0.01*1000) = -9, well past zero

	rate, _, stateAtStart := f.OnOpen()
	if stateAtStart != StateRateAdjustment {
		t.Fatalf("stateAtStart = %v, want RateAdjustment", stateAtStart)
	}
	if rate != 1_000_000 {
		t.Fatalf("rate = %v, want snapped back to next_rate = 1000000", rate)
	}
	if f.rateAdjustmentTries != 1 {
		t.Fatalf("rateAdjustmentTries = %d, want reset to 1 after overflow", f.rateAdjustmentTries)
	}
}

func TestFSMRateClampedToMinimum(t *testing.T) {
	f := NewFSM(100, nil) // well below MinRateBps
	f.state = StateRateAdjustment
	f.direction = -1
	f.rateAdjustmentTries = 1

	rate, _, _ := f.OnOpen()
	if rate != MinRateBps {
		t.Fatalf("rate = %v, want clamped to MinRateBps = %v", rate, MinRateBps)
	}
}
