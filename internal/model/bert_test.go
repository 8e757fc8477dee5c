package model

import (
	"errors"
	"sync"
	"testing"
)

func loadedClassifier(t *testing.T, fill func(string, int) float32) *BertTokenClassifier {
	t.Helper()
	cfg := tinyConfig()
	m, err := NewBertTokenClassifier(cfg, NumLabels())
	if err != nil {
		t.Fatalf("NewBertTokenClassifier: %v", err)
	}
	if err := m.LoadStateDict(stateDict(t, cfg, fill)); err != nil {
		t.Fatalf("LoadStateDict: %v", err)
	}
	return m
}

func TestPredict_FollowsClassifierBias(t *testing.T) {
	want, _ := LabelID("B-SKILLS")
	m := loadedClassifier(t, biasedWeights(want))

	got, err := m.Predict([]int{2, 9, 10, 3})
	if err != nil {
		t.Fatalf("Predict: %v", err)
	}
	if len(got) != 4 {
		t.Fatalf("expected 4 predictions, got %d", len(got))
	}
	for i, id := range got {
		if id != want {
			t.Errorf("position %d: expected class %d, got %d", i, want, id)
		}
	}
}

func TestPredict_DeterministicAndConcurrent(t *testing.T) {
	m := loadedClassifier(t, wavyWeights)
	ids := []int{2, 4, 5, 13, 6, 7, 3}

	first, err := m.Predict(ids)
	if err != nil {
		t.Fatalf("Predict: %v", err)
	}
	for _, c := range first {
		if c < 0 || c >= NumLabels() {
			t.Fatalf("class %d outside label vocabulary", c)
		}
	}

	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			got, err := m.Predict(ids)
			if err != nil {
				t.Errorf("Predict: %v", err)
				return
			}
			for i := range got {
				if got[i] != first[i] {
					t.Errorf("position %d: expected %d, got %d", i, first[i], got[i])
				}
			}
		}()
	}
	wg.Wait()
}

func TestPredict_Errors(t *testing.T) {
	m := loadedClassifier(t, wavyWeights)

	if _, err := m.Predict([]int{2, 99, 3}); err == nil {
		t.Error("expected error for token id outside vocabulary")
	}
	long := make([]int, tinyConfig().MaxPositionEmbeddings+1)
	if _, err := m.Predict(long); err == nil {
		t.Error("expected error for sequence longer than position table")
	}
	got, err := m.Predict(nil)
	if err != nil || got != nil {
		t.Errorf("expected empty result for empty input, got %v, %v", got, err)
	}

	unloaded, _ := NewBertTokenClassifier(tinyConfig(), NumLabels())
	if _, err := unloaded.Predict([]int{2, 3}); err == nil {
		t.Error("expected error before weights are loaded")
	}
}

func TestLoadStateDict_Strict(t *testing.T) {
	cfg := tinyConfig()
	tests := []struct {
		name   string
		mutate func(map[string]*Tensor)
		tensor string
	}{
		{
			name:   "missing tensor",
			mutate: func(sd map[string]*Tensor) { delete(sd, "classifier.weight") },
			tensor: "classifier.weight",
		},
		{
			name: "shape mismatch",
			mutate: func(sd map[string]*Tensor) {
				sd["classifier.bias"] = &Tensor{DType: F32, Shape: []int{9}, F32: make([]float32, 9)}
			},
			tensor: "classifier.bias",
		},
		{
			name: "unexpected tensor",
			mutate: func(sd map[string]*Tensor) {
				sd["bert.encoder.layer.7.output.dense.bias"] = &Tensor{DType: F32, Shape: []int{4}, F32: make([]float32, 4)}
			},
			tensor: "bert.encoder.layer.7.output.dense.bias",
		},
		{
			name: "half precision not converted",
			mutate: func(sd map[string]*Tensor) {
				sd["classifier.bias"] = HalfTensor([]int{NumLabels()}, make([]float32, NumLabels()))
			},
			tensor: "classifier.bias",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sd := stateDict(t, cfg, wavyWeights)
			tt.mutate(sd)
			m, _ := NewBertTokenClassifier(cfg, NumLabels())
			err := m.LoadStateDict(sd)
			var wle *WeightLoadError
			if !errors.As(err, &wle) {
				t.Fatalf("expected WeightLoadError, got %v", err)
			}
			if wle.Tensor != tt.tensor {
				t.Errorf("expected tensor %q, got %q", tt.tensor, wle.Tensor)
			}
			if _, err := m.Predict([]int{2, 3}); err == nil {
				t.Error("expected failed load to leave the classifier unusable")
			}
		})
	}
}

func TestLoadStateDict_IgnoresAuxiliaryTensors(t *testing.T) {
	cfg := tinyConfig()
	sd := stateDict(t, cfg, wavyWeights)
	sd["bert.embeddings.position_ids"] = &Tensor{DType: I64, Shape: []int{1, 16}, Raw: make([]byte, 8*16)}
	sd["bert.pooler.dense.weight"] = &Tensor{DType: F32, Shape: []int{4, 4}, F32: make([]float32, 16)}

	m, _ := NewBertTokenClassifier(cfg, NumLabels())
	if err := m.LoadStateDict(sd); err != nil {
		t.Fatalf("expected auxiliary tensors to be ignored, got %v", err)
	}
}

func TestBertConfig_Validate(t *testing.T) {
	cfg := tinyConfig()
	cfg.NumAttentionHeads = 3
	if err := cfg.Validate(); err == nil {
		t.Error("expected error when hidden size is not divisible by heads")
	}
	cfg = tinyConfig()
	cfg.HiddenAct = "swish"
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for unsupported activation")
	}
	if err := DefaultBertConfig().Validate(); err != nil {
		t.Errorf("default config should be valid: %v", err)
	}
}

func TestLoadBertConfig_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := LoadBertConfig(t.TempDir() + "/config.json")
	if err != nil {
		t.Fatalf("LoadBertConfig: %v", err)
	}
	if cfg != DefaultBertConfig() {
		t.Errorf("expected defaults, got %+v", cfg)
	}
}
