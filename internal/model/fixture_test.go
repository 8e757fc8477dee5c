package model

import (
	"bytes"
	"encoding/json"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

var tinyVocab = []string{
	"[PAD]", "[UNK]", "[CLS]", "[SEP]",
	"jane", "doe", "acme", "corp", "##s", "java", "python", ",", ".", "at", "un", "##able",
}

func tinyConfig() BertConfig {
	return BertConfig{
		VocabSize:             len(tinyVocab),
		HiddenSize:            4,
		NumHiddenLayers:       1,
		NumAttentionHeads:     2,
		IntermediateSize:      8,
		MaxPositionEmbeddings: 16,
		TypeVocabSize:         2,
		LayerNormEps:          1e-12,
		HiddenAct:             "gelu",
	}
}

// stateDict builds a full set of F32 weights for cfg, filling every tensor with fill.
func stateDict(t *testing.T, cfg BertConfig, fill func(name string, i int) float32) map[string]*Tensor {
	t.Helper()
	m, err := NewBertTokenClassifier(cfg, NumLabels())
	if err != nil {
		t.Fatalf("NewBertTokenClassifier: %v", err)
	}
	out := make(map[string]*Tensor)
	for name, shape := range m.ParamShapes() {
		tt := &Tensor{DType: F32, Shape: shape}
		tt.F32 = make([]float32, tt.NumElements())
		for i := range tt.F32 {
			tt.F32[i] = fill(name, i)
		}
		out[name] = tt
	}
	return out
}

// biasedWeights zeroes the encoder so every position predicts label.
func biasedWeights(label int) func(string, int) float32 {
	return func(name string, i int) float32 {
		switch {
		case strings.HasSuffix(name, "LayerNorm.weight"):
			return 1
		case name == "classifier.bias" && i == label:
			return 1
		}
		return 0
	}
}

func wavyWeights(name string, i int) float32 {
	return float32(0.5 * math.Sin(float64(i*7+len(name))))
}

// halve converts a full precision state dict to an F16 checkpoint.
func halve(in map[string]*Tensor) map[string]*Tensor {
	out := make(map[string]*Tensor, len(in))
	for name, t := range in {
		out[name] = HalfTensor(t.Shape, t.F32)
	}
	return out
}

type assets struct {
	checkpoint, vocab, config string
}

// writeAssets writes an F16 checkpoint, vocabulary and config.json into a temp dir.
func writeAssets(t *testing.T, fill func(string, int) float32) assets {
	t.Helper()
	dir := t.TempDir()
	cfg := tinyConfig()

	var buf bytes.Buffer
	if err := EncodeCheckpoint(&buf, halve(stateDict(t, cfg, fill))); err != nil {
		t.Fatalf("EncodeCheckpoint: %v", err)
	}
	a := assets{
		checkpoint: filepath.Join(dir, "model.safetensors"),
		vocab:      filepath.Join(dir, "vocab.txt"),
		config:     filepath.Join(dir, "config.json"),
	}
	if err := os.WriteFile(a.checkpoint, buf.Bytes(), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(a.vocab, []byte(strings.Join(tinyVocab, "\n")+"\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	cj, err := json.Marshal(cfg)
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(a.config, cj, 0o644); err != nil {
		t.Fatal(err)
	}
	return a
}

func (a assets) options() Options {
	return Options{CheckpointPath: a.checkpoint, VocabPath: a.vocab, ConfigPath: a.config, Device: "cpu", Uncased: true}
}
