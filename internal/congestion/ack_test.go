package congestion

import "testing"

func TestAckAccountingAdvancesFrontNoLoss(t *testing.T) {
	a := NewAckAccounting(1000)
	m := &MonitorInterval{Valid: true, SndStartSeq: 0, SndEndSeq: 10000, LastAckedSeq: 0}

	ev := &AckEvent{SndUna: 5000}
	a.Apply(m, ev)

	if m.LastAckedSeq != 5000 {
		t.Fatalf("LastAckedSeq = %d, want 5000", m.LastAckedSeq)
	}
	if m.BytesLost != 0 {
		t.Fatalf("BytesLost = %d, want 0 with no SACK gaps", m.BytesLost)
	}
}

func TestAckAccountingSACKGapCountsLoss(t *testing.T) {
	a := NewAckAccounting(1000)
	m := &MonitorInterval{Valid: true, SndStartSeq: 0, SndEndSeq: 10000, LastAckedSeq: 0}

	ev := &AckEvent{
		SndUna:   2000,
		SACKs:    [MaxSACKBlocks]SACKBlock{{Start: 5000, End: 6000}},
		NumSACKs: 1,
	}
	a.Apply(m, ev)

	if m.LastAckedSeq != 6000 {
		t.Fatalf("LastAckedSeq = %d, want 6000 (advanced to the SACK block's end)", m.LastAckedSeq)
	}
	if m.BytesLost != 3000 {
		t.Fatalf("BytesLost = %d, want 3000 (the [2000,5000) gap)", m.BytesLost)
	}
}

func TestAckAccountingAdvancesLastAckedSeqToSACKEnd(t *testing.T) {
	a := NewAckAccounting(1000)
	m := &MonitorInterval{Valid: true, SndStartSeq: 0, SndEndSeq: 3000, LastAckedSeq: 1000}

	ev := &AckEvent{
		SndUna:   1000,
		SACKs:    [MaxSACKBlocks]SACKBlock{{Start: 2000, End: 3000}},
		NumSACKs: 1,
	}
	a.Apply(m, ev)

	if m.BytesLost != 1000 {
		t.Fatalf("BytesLost = %d, want 1000 (the [1000,2000) gap)", m.BytesLost)
	}
	if m.LastAckedSeq != 3000 {
		t.Fatalf("LastAckedSeq = %d, want 3000", m.LastAckedSeq)
	}
}

func TestAckAccountingSubMSSGapIsNotFloored(t *testing.T) {
	a := NewAckAccounting(1200)
	m := &MonitorInterval{Valid: true, SndStartSeq: 0, SndEndSeq: 5000, LastAckedSeq: 0}

	ev := &AckEvent{
		SndUna:   1000,
		SACKs:    [MaxSACKBlocks]SACKBlock{{Start: 2000, End: 2500}},
		NumSACKs: 1,
	}
	a.Apply(m, ev)

	if m.BytesLost != 1000 {
		t.Fatalf("BytesLost = %d, want 1000 (raw gap bytes, not floored to whole MSS units)", m.BytesLost)
	}
}

func TestAckAccountingSACKBeyondSndEndSeqCapsGapInstedOfSkipping(t *testing.T) {
	a := NewAckAccounting(1000)
	m := &MonitorInterval{Valid: true, SndStartSeq: 0, SndEndSeq: 2000, LastAckedSeq: 1000}

	ev := &AckEvent{
		SndUna:   1000,
		SACKs:    [MaxSACKBlocks]SACKBlock{{Start: 2500, End: 3000}},
		NumSACKs: 1,
	}
	a.Apply(m, ev)

	if m.BytesLost != 1000 {
		t.Fatalf("BytesLost = %d, want 1000 (the [1000,2000) gap capped at SndEndSeq, not skipped)", m.BytesLost)
	}
	if m.LastAckedSeq != 3000 {
		t.Fatalf("LastAckedSeq = %d, want 3000 (still advances to block.End even when block.Start is past SndEndSeq)", m.LastAckedSeq)
	}
}

func TestAckAccountingIgnoresInvalidInterval(t *testing.T) {
	a := NewAckAccounting(1000)
	m := &MonitorInterval{Valid: false, SndStartSeq: 0, SndEndSeq: 10000}

	ev := &AckEvent{SndUna: 5000}
	a.Apply(m, ev)

	if m.LastAckedSeq != 0 {
		t.Fatal("Apply should be a no-op on an invalid interval")
	}
}

func TestAckAccountingMultipleSACKGaps(t *testing.T) {
	a := NewAckAccounting(1000)
	m := &MonitorInterval{Valid: true, SndStartSeq: 0, SndEndSeq: 20000, LastAckedSeq: 0}

	ev := &AckEvent{
		SndUna: 1000,
		SACKs: [MaxSACKBlocks]SACKBlock{
			{Start: 3000, End: 4000},
			{Start: 8000, End: 9000},
		},
		NumSACKs: 2,
	}
	a.Apply(m, ev)

	// gap [1000,3000) = 2000 lost, gap [4000,8000) = 4000 lost
	if m.BytesLost != 6000 {
		t.Fatalf("BytesLost = %d, want 6000", m.BytesLost)
	}
	if m.LastAckedSeq != 9000 {
		t.Fatalf("LastAckedSeq = %d, want 9000 (advanced to the last SACK block's end)", m.LastAckedSeq)
	}
}
