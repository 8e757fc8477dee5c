package model

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"math"
	"os"
	"sort"
	"strconv"

	"gonum.org/v1/gonum/blas"
	"gonum.org/v1/gonum/blas/blas32"
)

// BertConfig mirrors the fields of a Hugging Face BERT config.json that
// affect the forward pass.
type BertConfig struct {
	VocabSize             int     `json:"vocab_size"`
	HiddenSize            int     `json:"hidden_size"`
	NumHiddenLayers       int     `json:"num_hidden_layers"`
	NumAttentionHeads     int     `json:"num_attention_heads"`
	IntermediateSize      int     `json:"intermediate_size"`
	MaxPositionEmbeddings int     `json:"max_position_embeddings"`
	TypeVocabSize         int     `json:"type_vocab_size"`
	LayerNormEps          float64 `json:"layer_norm_eps"`
	HiddenAct             string  `json:"hidden_act"`
}

// DefaultBertConfig returns the bert-base-uncased dimensions.
func DefaultBertConfig() BertConfig {
	return BertConfig{
		VocabSize:             30522,
		HiddenSize:            768,
		NumHiddenLayers:       12,
		NumAttentionHeads:     12,
		IntermediateSize:      3072,
		MaxPositionEmbeddings: 512,
		TypeVocabSize:         2,
		LayerNormEps:          1e-12,
		HiddenAct:             "gelu",
	}
}

// LoadBertConfig reads a config.json. A missing file yields the defaults;
// fields absent from the file keep their default values.
func LoadBertConfig(path string) (BertConfig, error) {
	cfg := DefaultBertConfig()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("read model config: %w", err)
	}
	if err := json.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse model config: %w", err)
	}
	return cfg, cfg.Validate()
}

func (c BertConfig) Validate() error {
	switch {
	case c.VocabSize <= 0, c.HiddenSize <= 0, c.NumHiddenLayers <= 0, c.IntermediateSize <= 0,
		c.MaxPositionEmbeddings <= 0, c.TypeVocabSize <= 0:
		return fmt.Errorf("model config: dimensions must be positive: %+v", c)
	case c.NumAttentionHeads <= 0 || c.HiddenSize%c.NumAttentionHeads != 0:
		return fmt.Errorf("model config: hidden size %d not divisible by %d heads", c.HiddenSize, c.NumAttentionHeads)
	}
	if _, err := activation(c.HiddenAct); err != nil {
		return err
	}
	return nil
}

type dense struct {
	w blas32.General // out x in
	b []float32
}

type layerNorm struct {
	gamma, beta []float32
}

type encoderLayer struct {
	query, key, value dense
	attnOut           dense
	attnNorm          layerNorm
	intermediate      dense
	output            dense
	outNorm           layerNorm
}

// BertTokenClassifier is a BERT encoder with a per-token linear classification
// head. After LoadStateDict it is read-only: Predict allocates its own scratch
// space, so concurrent calls are safe.
type BertTokenClassifier struct {
	cfg       BertConfig
	numLabels int
	act       func(float32) float32

	wordEmb, posEmb, typeEmb blas32.General
	embNorm                  layerNorm
	layers                   []encoderLayer
	classifier               dense

	loaded bool
}

// NewBertTokenClassifier constructs an unloaded classifier whose output layer
// has numLabels classes.
func NewBertTokenClassifier(cfg BertConfig, numLabels int) (*BertTokenClassifier, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if numLabels <= 0 {
		return nil, fmt.Errorf("model config: numLabels must be positive")
	}
	act, _ := activation(cfg.HiddenAct)
	return &BertTokenClassifier{
		cfg:       cfg,
		numLabels: numLabels,
		act:       act,
		layers:    make([]encoderLayer, cfg.NumHiddenLayers),
	}, nil
}

// Config returns the architecture the classifier was built with.
func (m *BertTokenClassifier) Config() BertConfig { return m.cfg }

// NumLabels is the width of the classification head.
func (m *BertTokenClassifier) NumLabels() int { return m.numLabels }

type param struct {
	name  string
	shape []int
	set   func([]float32)
}

func matrixParam(name string, rows, cols int, dst *blas32.General) param {
	return param{name: name, shape: []int{rows, cols}, set: func(v []float32) {
		*dst = blas32.General{Rows: rows, Cols: cols, Stride: cols, Data: v}
	}}
}

func vectorParam(name string, n int, dst *[]float32) param {
	return param{name: name, shape: []int{n}, set: func(v []float32) { *dst = v }}
}

func denseParams(prefix string, out, in int, d *dense) []param {
	return []param{
		matrixParam(prefix+".weight", out, in, &d.w),
		vectorParam(prefix+".bias", out, &d.b),
	}
}

func normParams(prefix string, n int, ln *layerNorm) []param {
	return []param{
		vectorParam(prefix+".weight", n, &ln.gamma),
		vectorParam(prefix+".bias", n, &ln.beta),
	}
}

// params lists every tensor the architecture requires, with its shape.
func (m *BertTokenClassifier) params() []param {
	c := m.cfg
	h := c.HiddenSize
	ps := []param{
		matrixParam("bert.embeddings.word_embeddings.weight", c.VocabSize, h, &m.wordEmb),
		matrixParam("bert.embeddings.position_embeddings.weight", c.MaxPositionEmbeddings, h, &m.posEmb),
		matrixParam("bert.embeddings.token_type_embeddings.weight", c.TypeVocabSize, h, &m.typeEmb),
	}
	ps = append(ps, normParams("bert.embeddings.LayerNorm", h, &m.embNorm)...)
	for i := range m.layers {
		l := &m.layers[i]
		p := "bert.encoder.layer." + strconv.Itoa(i)
		ps = append(ps, denseParams(p+".attention.self.query", h, h, &l.query)...)
		ps = append(ps, denseParams(p+".attention.self.key", h, h, &l.key)...)
		ps = append(ps, denseParams(p+".attention.self.value", h, h, &l.value)...)
		ps = append(ps, denseParams(p+".attention.output.dense", h, h, &l.attnOut)...)
		ps = append(ps, normParams(p+".attention.output.LayerNorm", h, &l.attnNorm)...)
		ps = append(ps, denseParams(p+".intermediate.dense", c.IntermediateSize, h, &l.intermediate)...)
		ps = append(ps, denseParams(p+".output.dense", h, c.IntermediateSize, &l.output)...)
		ps = append(ps, normParams(p+".output.LayerNorm", h, &l.outNorm)...)
	}
	ps = append(ps, denseParams("classifier", m.numLabels, h, &m.classifier)...)
	return ps
}

// ParamShapes returns the required tensor names and shapes.
func (m *BertTokenClassifier) ParamShapes() map[string][]int {
	ps := m.params()
	out := make(map[string][]int, len(ps))
	for _, p := range ps {
		out[p.name] = p.shape
	}
	return out
}

// ignoredTensor reports checkpoint entries that are valid but unused:
// the position id buffer and the pooler of a base BertModel export.
func ignoredTensor(name string) bool {
	switch name {
	case "bert.embeddings.position_ids",
		"bert.pooler.dense.weight",
		"bert.pooler.dense.bias":
		return true
	}
	return false
}

// LoadStateDict applies full precision tensors to the classifier. Loading is
// strict: every parameter must be present with the exact shape as F32 data,
// and unknown tensors are rejected.
func (m *BertTokenClassifier) LoadStateDict(tensors map[string]*Tensor) error {
	ps := m.params()
	expected := make(map[string]bool, len(ps))
	for _, p := range ps {
		expected[p.name] = true
		t, ok := tensors[p.name]
		if !ok {
			return &WeightLoadError{Tensor: p.name, Reason: "missing"}
		}
		if t.DType != F32 || t.F32 == nil {
			return &WeightLoadError{Tensor: p.name, Reason: fmt.Sprintf("dtype %s is not full precision", t.DType)}
		}
		if !sameShape(t.Shape, p.shape) {
			return &WeightLoadError{Tensor: p.name, Reason: fmt.Sprintf("shape %v, model expects %v", t.Shape, p.shape)}
		}
		if len(t.F32) != t.NumElements() {
			return &WeightLoadError{Tensor: p.name, Reason: "data length does not match shape"}
		}
	}

	var unexpected []string
	for name := range tensors {
		if !expected[name] && !ignoredTensor(name) {
			unexpected = append(unexpected, name)
		}
	}
	if len(unexpected) > 0 {
		sort.Strings(unexpected)
		return &WeightLoadError{Tensor: unexpected[0], Reason: fmt.Sprintf("unexpected tensor (%d total)", len(unexpected))}
	}

	for _, p := range ps {
		p.set(tensors[p.name].F32)
	}
	m.loaded = true
	return nil
}

func sameShape(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// Predict runs the encoder over one sequence of token ids (special tokens
// included) and returns the arg-max class id for every position.
func (m *BertTokenClassifier) Predict(inputIDs []int) ([]int, error) {
	if !m.loaded {
		return nil, errors.New("classifier weights not loaded")
	}
	n := len(inputIDs)
	if n == 0 {
		return nil, nil
	}
	if n > m.cfg.MaxPositionEmbeddings {
		return nil, fmt.Errorf("sequence length %d exceeds %d positions", n, m.cfg.MaxPositionEmbeddings)
	}

	h := m.embed(inputIDs)
	if h.Data == nil {
		return nil, fmt.Errorf("token id out of vocabulary range [0,%d)", m.cfg.VocabSize)
	}
	for i := range m.layers {
		h = m.encode(&m.layers[i], h)
	}
	logits := linear(h, m.classifier)

	out := make([]int, n)
	for i := 0; i < n; i++ {
		row := logits.Data[i*logits.Stride : i*logits.Stride+logits.Cols]
		best := 0
		for j := 1; j < len(row); j++ {
			if row[j] > row[best] {
				best = j
			}
		}
		out[i] = best
	}
	return out, nil
}

func newMatrix(rows, cols int) blas32.General {
	return blas32.General{Rows: rows, Cols: cols, Stride: cols, Data: make([]float32, rows*cols)}
}

// columns returns a view of cols [from, from+width) sharing storage with g.
func columns(g blas32.General, from, width int) blas32.General {
	return blas32.General{Rows: g.Rows, Cols: width, Stride: g.Stride, Data: g.Data[from:]}
}

func (m *BertTokenClassifier) embed(ids []int) blas32.General {
	hs := m.cfg.HiddenSize
	h := newMatrix(len(ids), hs)
	for i, id := range ids {
		if id < 0 || id >= m.cfg.VocabSize {
			return blas32.General{}
		}
		row := h.Data[i*hs : (i+1)*hs]
		word := m.wordEmb.Data[id*hs : (id+1)*hs]
		pos := m.posEmb.Data[i*hs : (i+1)*hs]
		typ := m.typeEmb.Data[:hs]
		for j := range row {
			row[j] = word[j] + pos[j] + typ[j]
		}
	}
	m.normalize(h, m.embNorm)
	return h
}

func (m *BertTokenClassifier) encode(l *encoderLayer, h blas32.General) blas32.General {
	n := h.Rows
	hs := m.cfg.HiddenSize
	heads := m.cfg.NumAttentionHeads
	d := hs / heads
	scale := float32(1 / math.Sqrt(float64(d)))

	q := linear(h, l.query)
	k := linear(h, l.key)
	v := linear(h, l.value)

	ctx := newMatrix(n, hs)
	scores := newMatrix(n, n)
	for head := 0; head < heads; head++ {
		off := head * d
		blas32.Gemm(blas.NoTrans, blas.Trans, scale, columns(q, off, d), columns(k, off, d), 0, scores)
		softmaxRows(scores)
		blas32.Gemm(blas.NoTrans, blas.NoTrans, 1, scores, columns(v, off, d), 0, columns(ctx, off, d))
	}

	attn := linear(ctx, l.attnOut)
	addInPlace(attn, h)
	m.normalize(attn, l.attnNorm)

	inter := linear(attn, l.intermediate)
	for i := range inter.Data {
		inter.Data[i] = m.act(inter.Data[i])
	}
	out := linear(inter, l.output)
	addInPlace(out, attn)
	m.normalize(out, l.outNorm)
	return out
}

// linear computes x * W^T + b.
func linear(x blas32.General, d dense) blas32.General {
	y := newMatrix(x.Rows, d.w.Rows)
	for i := 0; i < y.Rows; i++ {
		copy(y.Data[i*y.Stride:i*y.Stride+y.Cols], d.b)
	}
	blas32.Gemm(blas.NoTrans, blas.Trans, 1, x, d.w, 1, y)
	return y
}

func addInPlace(dst, src blas32.General) {
	for i := range dst.Data {
		dst.Data[i] += src.Data[i]
	}
}

func softmaxRows(g blas32.General) {
	for i := 0; i < g.Rows; i++ {
		row := g.Data[i*g.Stride : i*g.Stride+g.Cols]
		maxV := row[0]
		for _, x := range row[1:] {
			if x > maxV {
				maxV = x
			}
		}
		var sum float32
		for j, x := range row {
			e := float32(math.Exp(float64(x - maxV)))
			row[j] = e
			sum += e
		}
		for j := range row {
			row[j] /= sum
		}
	}
}

func (m *BertTokenClassifier) normalize(g blas32.General, ln layerNorm) {
	eps := m.cfg.LayerNormEps
	for i := 0; i < g.Rows; i++ {
		row := g.Data[i*g.Stride : i*g.Stride+g.Cols]
		var mean float64
		for _, x := range row {
			mean += float64(x)
		}
		mean /= float64(len(row))
		var variance float64
		for _, x := range row {
			dx := float64(x) - mean
			variance += dx * dx
		}
		variance /= float64(len(row))
		inv := 1 / math.Sqrt(variance+eps)
		for j, x := range row {
			row[j] = float32((float64(x)-mean)*inv)*ln.gamma[j] + ln.beta[j]
		}
	}
}

func activation(name string) (func(float32) float32, error) {
	switch name {
	case "", "gelu":
		return func(x float32) float32 {
			return float32(0.5 * float64(x) * (1 + math.Erf(float64(x)/math.Sqrt2)))
		}, nil
	case "gelu_new", "gelu_pytorch_tanh":
		return func(x float32) float32 {
			xf := float64(x)
			return float32(0.5 * xf * (1 + math.Tanh(math.Sqrt(2/math.Pi)*(xf+0.044715*xf*xf*xf))))
		}, nil
	case "relu":
		return func(x float32) float32 {
			if x < 0 {
				return 0
			}
			return x
		}, nil
	}
	return nil, fmt.Errorf("model config: unsupported hidden_act %q", name)
}
