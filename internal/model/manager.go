package model

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
)

// Options locates the model assets.
type Options struct {
	CheckpointPath string
	VocabPath      string
	// ConfigPath is an optional Hugging Face config.json; bert-base dimensions
	// are used when it is absent.
	ConfigPath string
	Device     string
	Uncased    bool
}

// Handle is a loaded model: classifier, tokenizer and device. It is read-only
// after construction and may be used concurrently.
type Handle struct {
	classifier *BertTokenClassifier
	tokenizer  *WordPiece
	device     Device
	LoadedAt   time.Time
}

// EncodeWord splits one word into subword ids.
func (h *Handle) EncodeWord(word string) []int { return h.tokenizer.EncodeWord(word) }

// Specials returns the sequence boundary token ids.
func (h *Handle) Specials() (cls, sep int) { return h.tokenizer.CLS(), h.tokenizer.SEP() }

// Predict classifies every position of a token id sequence and returns the labels.
func (h *Handle) Predict(ids []int) ([]string, error) {
	classes, err := h.classifier.Predict(ids)
	if err != nil {
		return nil, err
	}
	out := make([]string, len(classes))
	for i, c := range classes {
		out[i] = LabelName(c)
	}
	return out, nil
}

// MaxPositions is the longest sequence the classifier accepts.
func (h *Handle) MaxPositions() int { return h.classifier.Config().MaxPositionEmbeddings }

func (h *Handle) Device() Device { return h.device }

// Status describes the manager for diagnostics.
type Status struct {
	Loaded   bool      `json:"loaded"`
	Loads    int       `json:"loads"`
	Device   string    `json:"device,omitempty"`
	LoadedAt time.Time `json:"loaded_at,omitzero"`
	LastUsed time.Time `json:"last_used,omitzero"`
}

// Manager owns the single process-wide model handle. The first Get after
// construction or Unload loads the model; concurrent callers wait for that
// load and share its result.
type Manager struct {
	opts Options
	log  *slog.Logger
	now  func() time.Time

	mu       sync.Mutex
	handle   *Handle
	loads    int
	lastUsed time.Time
}

func NewManager(opts Options, log *slog.Logger) *Manager {
	return &Manager{opts: opts, log: log, now: time.Now}
}

// Get returns the loaded handle, loading it first if needed.
func (m *Manager) Get() (*Handle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.lastUsed = m.now()
	if m.handle != nil {
		return m.handle, nil
	}
	h, err := m.load()
	if err != nil {
		Reclaim()
		return nil, err
	}
	m.handle = h
	m.loads++
	return h, nil
}

func (m *Manager) load() (*Handle, error) {
	start := m.now()
	before := MemoryUsage()

	device, err := SelectDevice(m.opts.Device, m.log)
	if err != nil {
		return nil, err
	}
	cfg, err := LoadBertConfig(m.opts.ConfigPath)
	if err != nil {
		return nil, err
	}
	// The output layer size is fixed by the label vocabulary before any weights are read.
	classifier, err := NewBertTokenClassifier(cfg, NumLabels())
	if err != nil {
		return nil, err
	}

	raw, err := ReadCheckpoint(m.opts.CheckpointPath)
	if err != nil {
		return nil, err
	}
	full, stats, err := ToFullPrecision(raw)
	raw = nil
	if err != nil {
		return nil, &WeightLoadError{Reason: err.Error()}
	}
	if err := classifier.LoadStateDict(full); err != nil {
		return nil, err
	}

	tok, err := LoadWordPiece(m.opts.VocabPath, m.opts.Uncased)
	if err != nil {
		return nil, err
	}
	if tok.VocabSize() > cfg.VocabSize {
		return nil, &WeightLoadError{
			Tensor: "bert.embeddings.word_embeddings.weight",
			Reason: fmt.Sprintf("vocabulary has %d tokens, embedding table has %d rows", tok.VocabSize(), cfg.VocabSize),
		}
	}

	Reclaim()
	after := MemoryUsage()
	if m.log != nil {
		m.log.Info("model loaded",
			"checkpoint", m.opts.CheckpointPath,
			"device", device.Name,
			"layers", cfg.NumHiddenLayers,
			"converted_tensors", stats.Converted,
			"full_precision_tensors", stats.PassedFloat,
			"other_tensors", stats.PassedOther,
			"memory_before", humanize.IBytes(before),
			"memory_after", humanize.IBytes(after),
			"duration_ms", m.now().Sub(start).Milliseconds(),
		)
	}
	return &Handle{classifier: classifier, tokenizer: tok, device: device, LoadedAt: m.now()}, nil
}

// Unload drops the handle and reclaims its memory. Calling it when nothing
// is loaded is a no-op. Callers still holding the old handle keep it alive
// until they finish.
func (m *Manager) Unload() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.unloadLocked("requested")
}

func (m *Manager) unloadLocked(reason string) bool {
	if m.handle == nil {
		return false
	}
	before := MemoryUsage()
	m.handle.device.ReleaseCache()
	m.handle = nil
	Reclaim()
	if m.log != nil {
		m.log.Info("model unloaded",
			"reason", reason,
			"memory_before", humanize.IBytes(before),
			"memory_after", humanize.IBytes(MemoryUsage()),
		)
	}
	return true
}

// UnloadIfIdle unloads the model when it has not been requested for ttl.
func (m *Manager) UnloadIfIdle(ttl time.Duration) bool {
	if ttl <= 0 {
		return false
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.handle == nil || m.now().Sub(m.lastUsed) < ttl {
		return false
	}
	return m.unloadLocked("idle")
}

func (m *Manager) Loaded() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.handle != nil
}

// Loads counts completed loads since construction.
func (m *Manager) Loads() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.loads
}

func (m *Manager) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := Status{Loaded: m.handle != nil, Loads: m.loads, LastUsed: m.lastUsed}
	if m.handle != nil {
		s.Device = m.handle.device.Name
		s.LoadedAt = m.handle.LoadedAt
	}
	return s
}
