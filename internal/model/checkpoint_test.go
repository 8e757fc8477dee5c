package model

import (
	"bytes"
	"encoding/binary"
	"errors"
	"path/filepath"
	"testing"
)

func TestCheckpoint_RoundTrip(t *testing.T) {
	in := map[string]*Tensor{
		"a": HalfTensor([]int{2}, []float32{1, 2}),
		"b": {DType: F32, Shape: []int{3}, F32: []float32{0.5, -1, 4}},
		"c": {DType: I64, Shape: []int{1}, Raw: []byte{1, 0, 0, 0, 0, 0, 0, 0}},
	}
	var buf bytes.Buffer
	if err := EncodeCheckpoint(&buf, in); err != nil {
		t.Fatalf("EncodeCheckpoint: %v", err)
	}
	out, err := DecodeCheckpoint(&buf)
	if err != nil {
		t.Fatalf("DecodeCheckpoint: %v", err)
	}
	if len(out) != 3 {
		t.Fatalf("expected 3 tensors, got %d", len(out))
	}
	if out["b"].DType != F32 || len(out["b"].Raw) != 12 {
		t.Errorf("unexpected tensor b: %+v", out["b"])
	}
	full, _, err := ToFullPrecision(out)
	if err != nil {
		t.Fatalf("ToFullPrecision: %v", err)
	}
	if got := full["b"].F32; got[0] != 0.5 || got[1] != -1 || got[2] != 4 {
		t.Errorf("expected [0.5 -1 4], got %v", got)
	}
	if got := full["a"].F32; got[0] != 1 || got[1] != 2 {
		t.Errorf("expected [1 2], got %v", got)
	}
}

func TestDecodeCheckpoint_SkipsMetadata(t *testing.T) {
	hdr := []byte(`{"__metadata__":{"format":"pt"},"x":{"dtype":"F16","shape":[1],"data_offsets":[0,2]}}`)
	var buf bytes.Buffer
	binary.Write(&buf, binary.LittleEndian, uint64(len(hdr)))
	buf.Write(hdr)
	buf.Write([]byte{0, 0x3c})

	out, err := DecodeCheckpoint(&buf)
	if err != nil {
		t.Fatalf("DecodeCheckpoint: %v", err)
	}
	if _, ok := out["__metadata__"]; ok {
		t.Error("metadata should not be returned as a tensor")
	}
	if out["x"] == nil || out["x"].DType != F16 {
		t.Errorf("expected F16 tensor x, got %+v", out["x"])
	}
}

func TestDecodeCheckpoint_Corrupt(t *testing.T) {
	tests := []struct {
		name string
		data []byte
	}{
		{"empty", nil},
		{"zero header", make([]byte, 8)},
		{"offsets out of range", func() []byte {
			hdr := []byte(`{"x":{"dtype":"F32","shape":[2],"data_offsets":[0,8]}}`)
			var b bytes.Buffer
			binary.Write(&b, binary.LittleEndian, uint64(len(hdr)))
			b.Write(hdr)
			b.Write([]byte{0, 0, 0, 0})
			return b.Bytes()
		}()},
		{"size mismatch", func() []byte {
			hdr := []byte(`{"x":{"dtype":"F32","shape":[2],"data_offsets":[0,4]}}`)
			var b bytes.Buffer
			binary.Write(&b, binary.LittleEndian, uint64(len(hdr)))
			b.Write(hdr)
			b.Write([]byte{0, 0, 0, 0})
			return b.Bytes()
		}()},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := DecodeCheckpoint(bytes.NewReader(tt.data)); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestReadCheckpoint_Missing(t *testing.T) {
	path := filepath.Join(t.TempDir(), "absent.safetensors")
	_, err := ReadCheckpoint(path)
	var nf *ModelNotFoundError
	if !errors.As(err, &nf) {
		t.Fatalf("expected ModelNotFoundError, got %v", err)
	}
	if nf.Path != path {
		t.Errorf("expected path %q, got %q", path, nf.Path)
	}
}
