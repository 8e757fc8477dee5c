package model

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/x448/float16"
)

// ConversionStats summarizes a ToFullPrecision pass.
type ConversionStats struct {
	Converted   int
	PassedFloat int
	PassedOther int
}

// ToFullPrecision maps a checkpoint to full precision one tensor at a time.
// Half precision tensors (F16, BF16) and undecoded F32 tensors become new
// tensors. Already decoded F32 tensors and every other dtype are passed
// through as the same pointer. Neither the input map nor its tensors are
// modified.
func ToFullPrecision(in map[string]*Tensor) (map[string]*Tensor, ConversionStats, error) {
	out := make(map[string]*Tensor, len(in))
	var stats ConversionStats
	for name, t := range in {
		switch t.DType {
		case F16, BF16:
			c, err := widen(t)
			if err != nil {
				return nil, stats, fmt.Errorf("convert %q: %w", name, err)
			}
			out[name] = c
			stats.Converted++
		case F32:
			if t.F32 != nil {
				out[name] = t
				stats.PassedFloat++
				continue
			}
			c, err := decodeF32(t)
			if err != nil {
				return nil, stats, fmt.Errorf("decode %q: %w", name, err)
			}
			out[name] = c
			stats.PassedFloat++
		default:
			out[name] = t
			stats.PassedOther++
		}
	}
	return out, stats, nil
}

func widen(t *Tensor) (*Tensor, error) {
	n := t.NumElements()
	if len(t.Raw) != 2*n {
		return nil, fmt.Errorf("%d bytes for %d half precision values", len(t.Raw), n)
	}
	vals := make([]float32, n)
	for i := range vals {
		bits := binary.LittleEndian.Uint16(t.Raw[2*i:])
		if t.DType == BF16 {
			vals[i] = math.Float32frombits(uint32(bits) << 16)
		} else {
			vals[i] = float16.Frombits(bits).Float32()
		}
	}
	shape := make([]int, len(t.Shape))
	copy(shape, t.Shape)
	return &Tensor{DType: F32, Shape: shape, F32: vals}, nil
}

func decodeF32(t *Tensor) (*Tensor, error) {
	n := t.NumElements()
	if len(t.Raw) != 4*n {
		return nil, fmt.Errorf("%d bytes for %d float32 values", len(t.Raw), n)
	}
	vals := make([]float32, n)
	for i := range vals {
		vals[i] = math.Float32frombits(binary.LittleEndian.Uint32(t.Raw[4*i:]))
	}
	shape := make([]int, len(t.Shape))
	copy(shape, t.Shape)
	return &Tensor{DType: F32, Shape: shape, F32: vals}, nil
}

// HalfTensor builds an F16 tensor from float32 values. Used when writing
// compressed checkpoints.
func HalfTensor(shape []int, vals []float32) *Tensor {
	raw := make([]byte, 2*len(vals))
	for i, v := range vals {
		binary.LittleEndian.PutUint16(raw[2*i:], float16.Fromfloat32(v).Bits())
	}
	return &Tensor{DType: F16, Shape: shape, Raw: raw}
}
