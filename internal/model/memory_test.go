package model

import "testing"

func TestMemoryGuard_Check(t *testing.T) {
	used := uint64(100)
	g := &MemoryGuard{LimitBytes: 50, usage: func() uint64 { return used }}
	if !g.Check(discardLogger()) {
		t.Error("expected reclaim when usage exceeds limit")
	}
	used = 10
	if g.Check(discardLogger()) {
		t.Error("expected no reclaim under the limit")
	}

	var disabled *MemoryGuard
	if disabled.Check(nil) {
		t.Error("nil guard should never reclaim")
	}
}

func TestMemoryGuard_RebaseAboveLimit(t *testing.T) {
	used := uint64(500)
	g := &MemoryGuard{LimitBytes: 450, usage: func() uint64 { return used }}
	if !g.Check(discardLogger()) {
		t.Error("expected reclaim before any baseline is recorded")
	}

	g.Rebase(discardLogger())
	if g.Limit() != 500 {
		t.Errorf("expected effective limit 500, got %d", g.Limit())
	}
	for range 3 {
		if g.Check(discardLogger()) {
			t.Fatal("expected no reclaim at the resident baseline")
		}
	}
	used = 600
	if !g.Check(discardLogger()) {
		t.Error("expected reclaim above the resident baseline")
	}

	used = 100
	g.Rebase(discardLogger())
	if g.Limit() != 450 {
		t.Errorf("expected configured limit 450 after a smaller baseline, got %d", g.Limit())
	}

	off := &MemoryGuard{usage: func() uint64 { return 900 }}
	off.Rebase(nil)
	if off.Limit() != 0 || off.Check(nil) {
		t.Error("expected a zero limit to stay disabled")
	}
}

func TestMemoryUsage_NonZero(t *testing.T) {
	if MemoryUsage() == 0 {
		t.Error("expected non-zero memory usage")
	}
}

func TestSelectDevice(t *testing.T) {
	for _, pref := range []string{"", "cpu", "AUTO", "cuda", "gpu"} {
		d, err := SelectDevice(pref, discardLogger())
		if err != nil {
			t.Errorf("SelectDevice(%q): %v", pref, err)
			continue
		}
		if d.Name != "cpu" {
			t.Errorf("SelectDevice(%q): expected cpu, got %s", pref, d.Name)
		}
	}
	if _, err := SelectDevice("tpu", nil); err == nil {
		t.Error("expected error for unknown device")
	}
}

func TestLabels_Vocabulary(t *testing.T) {
	ls := Labels()
	if len(ls) != 17 || NumLabels() != 17 {
		t.Fatalf("expected 17 labels, got %d", len(ls))
	}
	if ls[0] != "O" || ls[1] != "B-COLLEGE_NAME" || ls[9] != "I-COLLEGE_NAME" || ls[16] != "I-SKILLS" {
		t.Errorf("unexpected label order %v", ls)
	}
	if id, ok := LabelID("B-EMAIL"); !ok || LabelName(id) != "B-EMAIL" {
		t.Errorf("LabelID/LabelName mismatch for B-EMAIL")
	}
	if LabelName(-1) != "O" || LabelName(99) != "O" {
		t.Error("expected out of range ids to map to O")
	}
	ls[0] = "X"
	if Labels()[0] != "O" {
		t.Error("Labels should return a copy")
	}
}
