package ticktimer

import "testing"

func TestCalibrateCountsWithinTick(t *testing.T) {
	// t0=0, edge to t1=1 on the 2nd read, tick stays at 1 for the next
	// three reads (each consumed by one Calibrate poll-loop ReadLSB check),
	// then advances to 2, ending the count.
	src := NewFixedSource([]byte{0, 1, 1, 1, 1, 2})
	calls := 0
	got, err := Calibrate(func() bool { calls++; return true }, src)
	if err != nil {
		t.Fatal(err)
	}
	if got != 3 {
		t.Fatalf("count = %d, want 3", got)
	}
	if calls != 3 {
		t.Fatalf("poll calls = %d, want 3", calls)
	}
}

func TestCalibratePollAbortsEarly(t *testing.T) {
	src := NewFixedSource([]byte{0, 1, 1, 1, 1, 1, 2})
	calls := 0
	got, err := Calibrate(func() bool {
		calls++
		return calls < 2
	}, src)
	if err != nil {
		t.Fatal(err)
	}
	if got != 2 {
		t.Fatalf("count = %d, want 2", got)
	}
}

func TestCalibrateStalledTick(t *testing.T) {
	src := NewFixedSource([]byte{5})
	_, err := Calibrate(func() bool { return true }, src)
	if err != ErrTickStalled {
		t.Fatalf("err = %v, want ErrTickStalled", err)
	}
}

func TestCalibrateSaturates(t *testing.T) {
	seq := make([]byte, 0x10003)
	for i := range seq {
		seq[i] = 1
	}
	seq[0] = 0
	seq[len(seq)-1] = 2
	src := NewFixedSource(seq)
	got, err := Calibrate(func() bool { return true }, src)
	if err != nil {
		t.Fatal(err)
	}
	if got != 0xFFFF {
		t.Fatalf("count = %d, want saturated 0xFFFF", got)
	}
}

func TestBIOSSourceNonDecreasing(t *testing.T) {
	src := NewBIOSSource()
	first := src.ReadLSB()
	if src.ReadLSB() < first {
		t.Fatal("ReadLSB must be monotonic non-decreasing within a byte wraparound window")
	}
}
