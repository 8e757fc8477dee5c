package model

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"math"
	"os"
	"sort"
)

// DType names follow the safetensors header format.
type DType string

const (
	F16  DType = "F16"
	BF16 DType = "BF16"
	F32  DType = "F32"
	I64  DType = "I64"
)

func (d DType) size() int {
	switch d {
	case F16, BF16:
		return 2
	case F32:
		return 4
	case I64:
		return 8
	}
	return 0
}

// Tensor is one named entry of a checkpoint. Raw holds the little-endian
// payload as read from disk; F32 is populated once the tensor is at full precision.
type Tensor struct {
	DType DType
	Shape []int
	Raw   []byte
	F32   []float32
}

// NumElements is the product of the shape dimensions.
func (t *Tensor) NumElements() int {
	n := 1
	for _, d := range t.Shape {
		n *= d
	}
	return n
}

type headerEntry struct {
	DType       DType    `json:"dtype"`
	Shape       []int    `json:"shape"`
	DataOffsets [2]int64 `json:"data_offsets"`
}

// maxHeaderSize guards against reading a corrupt length prefix as a huge allocation.
const maxHeaderSize = 100 << 20

// ReadCheckpoint loads every tensor of a safetensors file.
func ReadCheckpoint(path string) (map[string]*Tensor, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, &ModelNotFoundError{Path: path}
		}
		return nil, fmt.Errorf("open checkpoint: %w", err)
	}
	defer f.Close()
	return DecodeCheckpoint(f)
}

// DecodeCheckpoint parses a safetensors stream.
func DecodeCheckpoint(r io.Reader) (map[string]*Tensor, error) {
	var n uint64
	if err := binary.Read(r, binary.LittleEndian, &n); err != nil {
		return nil, fmt.Errorf("read header length: %w", err)
	}
	if n == 0 || n > maxHeaderSize {
		return nil, fmt.Errorf("invalid header length %d", n)
	}
	hdr := make([]byte, n)
	if _, err := io.ReadFull(r, hdr); err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(hdr, &raw); err != nil {
		return nil, fmt.Errorf("decode header: %w", err)
	}

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read tensor data: %w", err)
	}

	tensors := make(map[string]*Tensor, len(raw))
	for name, msg := range raw {
		if name == "__metadata__" {
			continue
		}
		var e headerEntry
		if err := json.Unmarshal(msg, &e); err != nil {
			return nil, fmt.Errorf("decode header entry %q: %w", name, err)
		}
		begin, end := e.DataOffsets[0], e.DataOffsets[1]
		if begin < 0 || end < begin || end > int64(len(data)) {
			return nil, fmt.Errorf("tensor %q: data offsets [%d,%d] out of range", name, begin, end)
		}
		t := &Tensor{DType: e.DType, Shape: e.Shape, Raw: data[begin:end:end]}
		if sz := e.DType.size(); sz > 0 && int64(t.NumElements()*sz) != end-begin {
			return nil, fmt.Errorf("tensor %q: %d bytes for shape %v of %s", name, end-begin, e.Shape, e.DType)
		}
		tensors[name] = t
	}
	return tensors, nil
}

// EncodeCheckpoint writes tensors in safetensors layout, ordered by name.
// Tensors with a populated F32 slice and DType F32 are serialized from it.
func EncodeCheckpoint(w io.Writer, tensors map[string]*Tensor) error {
	names := make([]string, 0, len(tensors))
	for name := range tensors {
		names = append(names, name)
	}
	sort.Strings(names)

	header := make(map[string]headerEntry, len(names))
	payloads := make([][]byte, 0, len(names))
	var offset int64
	for _, name := range names {
		t := tensors[name]
		payload := t.Raw
		if t.DType == F32 && t.F32 != nil {
			payload = make([]byte, 4*len(t.F32))
			for i, v := range t.F32 {
				binary.LittleEndian.PutUint32(payload[4*i:], math.Float32bits(v))
			}
		}
		header[name] = headerEntry{
			DType:       t.DType,
			Shape:       t.Shape,
			DataOffsets: [2]int64{offset, offset + int64(len(payload))},
		}
		offset += int64(len(payload))
		payloads = append(payloads, payload)
	}

	hdr, err := json.Marshal(header)
	if err != nil {
		return fmt.Errorf("encode header: %w", err)
	}
	if err := binary.Write(w, binary.LittleEndian, uint64(len(hdr))); err != nil {
		return err
	}
	if _, err := w.Write(hdr); err != nil {
		return err
	}
	for _, p := range payloads {
		if _, err := w.Write(p); err != nil {
			return err
		}
	}
	return nil
}
