package model

import (
	"encoding/binary"
	"math"
	"testing"
)

func TestToFullPrecision_Half(t *testing.T) {
	vals := []float32{1.5, -2, 0.25, 0}
	in := map[string]*Tensor{"w": HalfTensor([]int{2, 2}, vals)}

	out, stats, err := ToFullPrecision(in)
	if err != nil {
		t.Fatalf("ToFullPrecision: %v", err)
	}
	if stats.Converted != 1 || stats.PassedFloat != 0 || stats.PassedOther != 0 {
		t.Errorf("unexpected stats %+v", stats)
	}
	got := out["w"]
	if got.DType != F32 {
		t.Fatalf("expected F32, got %s", got.DType)
	}
	for i, v := range vals {
		if got.F32[i] != v {
			t.Errorf("value %d: expected %v, got %v", i, v, got.F32[i])
		}
	}
	if in["w"].DType != F16 {
		t.Error("input tensor was modified")
	}
	got.Shape[0] = 9
	if in["w"].Shape[0] != 2 {
		t.Error("converted tensor shares its shape slice with the input")
	}
}

func TestToFullPrecision_BF16(t *testing.T) {
	raw := make([]byte, 4)
	binary.LittleEndian.PutUint16(raw[0:], uint16(math.Float32bits(3.0)>>16))
	binary.LittleEndian.PutUint16(raw[2:], uint16(math.Float32bits(-0.5)>>16))
	in := map[string]*Tensor{"b": {DType: BF16, Shape: []int{2}, Raw: raw}}

	out, _, err := ToFullPrecision(in)
	if err != nil {
		t.Fatalf("ToFullPrecision: %v", err)
	}
	if out["b"].F32[0] != 3 || out["b"].F32[1] != -0.5 {
		t.Errorf("expected [3 -0.5], got %v", out["b"].F32)
	}
}

func TestToFullPrecision_PassThrough(t *testing.T) {
	full := &Tensor{DType: F32, Shape: []int{1}, F32: []float32{7}}
	ints := &Tensor{DType: I64, Shape: []int{1}, Raw: make([]byte, 8)}
	in := map[string]*Tensor{"f": full, "i": ints}

	out, stats, err := ToFullPrecision(in)
	if err != nil {
		t.Fatalf("ToFullPrecision: %v", err)
	}
	if out["f"] != full {
		t.Error("expected full precision tensor to be passed through as the same value")
	}
	if out["i"] != ints {
		t.Error("expected integer tensor to be passed through")
	}
	if stats.PassedFloat != 1 || stats.PassedOther != 1 || stats.Converted != 0 {
		t.Errorf("unexpected stats %+v", stats)
	}
	if len(in) != 2 {
		t.Error("input map was modified")
	}
}

func TestToFullPrecision_RawF32LeavesInputIntact(t *testing.T) {
	raw := make([]byte, 8)
	binary.LittleEndian.PutUint32(raw[0:], math.Float32bits(1.25))
	binary.LittleEndian.PutUint32(raw[4:], math.Float32bits(-4))
	src := &Tensor{DType: F32, Shape: []int{2}, Raw: raw}
	in := map[string]*Tensor{"f": src}

	out, stats, err := ToFullPrecision(in)
	if err != nil {
		t.Fatalf("ToFullPrecision: %v", err)
	}
	if stats.PassedFloat != 1 {
		t.Errorf("unexpected stats %+v", stats)
	}
	got := out["f"]
	if got == src {
		t.Fatal("expected a new tensor for an undecoded F32 payload")
	}
	if got.F32[0] != 1.25 || got.F32[1] != -4 {
		t.Errorf("expected [1.25 -4], got %v", got.F32)
	}
	if src.F32 != nil || len(src.Raw) != 8 {
		t.Errorf("input tensor was modified: F32=%v raw=%d bytes", src.F32, len(src.Raw))
	}
}

func TestToFullPrecision_BadPayload(t *testing.T) {
	in := map[string]*Tensor{"w": {DType: F16, Shape: []int{3}, Raw: make([]byte, 4)}}
	if _, _, err := ToFullPrecision(in); err == nil {
		t.Error("expected error for truncated half precision payload")
	}
}
