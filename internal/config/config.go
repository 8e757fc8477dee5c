package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/unais0397/Resume-NER-Parser-Backend/internal/model"
)

type Config struct {
	Port string `yaml:"port"`

	// Upload limits
	MaxUploadBytes int64 `yaml:"max_upload_bytes"`
	MinTextLength  int   `yaml:"min_text_length"`

	// Worker pool
	WorkerCount  int `yaml:"worker_count"`
	MaxQueueSize int `yaml:"max_queue_size"`

	// Job state
	JobTTL time.Duration `yaml:"job_ttl"`

	// PDF
	PDFFallbackPdftotext bool `yaml:"pdf_fallback_pdftotext"`

	// Model assets
	ModelPath       string `yaml:"model_path"`
	VocabPath       string `yaml:"vocab_path"`
	ModelConfigPath string `yaml:"model_config_path"`
	Device          string `yaml:"device"`

	// Inference. MemorySoftLimitMB is compared to process RSS before each
	// call; it is raised to the resident size measured after a model load.
	MaxSeqLength           int           `yaml:"max_seq_length"`
	MemorySoftLimitMB      int           `yaml:"memory_soft_limit_mb"`
	MaxConcurrentInference int           `yaml:"max_concurrent_inference"`
	WindowedInference      bool          `yaml:"windowed_inference"`
	ModelIdleTTL           time.Duration `yaml:"model_idle_ttl"`

	// GoMemoryLimitMB caps the Go heap. Unset by default; when used it must
	// exceed the model's resident size by a wide margin.
	GoMemoryLimitMB int `yaml:"go_memory_limit_mb"`
}

// Defaults returns the built-in configuration.
func Defaults() Config {
	return Config{
		Port:                   "8002",
		MaxUploadBytes:         5 << 20,
		MinTextLength:          50,
		WorkerCount:            1,
		MaxQueueSize:           32,
		JobTTL:                 1 * time.Hour,
		PDFFallbackPdftotext:   true,
		ModelPath:              "models/resume_ner_fp16.safetensors",
		VocabPath:              "models/vocab.txt",
		ModelConfigPath:        "models/config.json",
		Device:                 "cpu",
		MaxSeqLength:           128,
		MemorySoftLimitMB:      450,
		MaxConcurrentInference: 1,
	}
}

// Load reads .env (if present), then the YAML file named by RESUMENER_CONFIG
// (if set), then environment variables. Later sources win.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}

	cfg := Defaults()
	if path := os.Getenv("RESUMENER_CONFIG"); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return Config{}, err
		}
	}
	cfg.applyEnv()
	cfg.fillDefaults()
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() {
	c.Port = envOr("PORT", c.Port)

	c.MaxUploadBytes = envInt64("MAX_UPLOAD_BYTES", c.MaxUploadBytes)
	c.MinTextLength = envInt("MIN_TEXT_LENGTH", c.MinTextLength)

	c.WorkerCount = envInt("WORKER_COUNT", c.WorkerCount)
	c.MaxQueueSize = envInt("MAX_QUEUE_SIZE", c.MaxQueueSize)
	c.JobTTL = envDuration("JOB_TTL", c.JobTTL)

	c.PDFFallbackPdftotext = envBool("PDF_FALLBACK_PDFTOTEXT", c.PDFFallbackPdftotext)

	c.ModelPath = envOr("MODEL_PATH", c.ModelPath)
	c.VocabPath = envOr("MODEL_VOCAB_PATH", c.VocabPath)
	c.ModelConfigPath = envOr("MODEL_CONFIG_PATH", c.ModelConfigPath)
	c.Device = envOr("DEVICE", c.Device)

	c.MaxSeqLength = envInt("MAX_SEQ_LENGTH", c.MaxSeqLength)
	c.MemorySoftLimitMB = envInt("MEMORY_SOFT_LIMIT_MB", c.MemorySoftLimitMB)
	c.MaxConcurrentInference = envInt("MAX_CONCURRENT_INFERENCE", c.MaxConcurrentInference)
	c.WindowedInference = envBool("WINDOWED_INFERENCE", c.WindowedInference)
	c.ModelIdleTTL = envDuration("MODEL_IDLE_TTL", c.ModelIdleTTL)
	c.GoMemoryLimitMB = envInt("GO_MEMORY_LIMIT_MB", c.GoMemoryLimitMB)
}

// fillDefaults resets non-positive numeric settings. MAX_SEQ_LENGTH is left
// alone so Validate can report it.
func (c *Config) fillDefaults() {
	d := Defaults()
	if c.Port == "" {
		c.Port = d.Port
	}
	if c.MaxUploadBytes <= 0 {
		c.MaxUploadBytes = d.MaxUploadBytes
	}
	if c.MinTextLength < 0 {
		c.MinTextLength = d.MinTextLength
	}
	if c.WorkerCount <= 0 {
		c.WorkerCount = d.WorkerCount
	}
	if c.MaxQueueSize <= 0 {
		c.MaxQueueSize = d.MaxQueueSize
	}
	if c.JobTTL <= 0 {
		c.JobTTL = d.JobTTL
	}
	if c.MemorySoftLimitMB < 0 {
		c.MemorySoftLimitMB = 0
	}
	if c.MaxConcurrentInference <= 0 {
		c.MaxConcurrentInference = d.MaxConcurrentInference
	}
	if c.ModelIdleTTL < 0 {
		c.ModelIdleTTL = 0
	}
	if c.GoMemoryLimitMB < 0 {
		c.GoMemoryLimitMB = 0
	}
}

func (c Config) Validate() error {
	if c.ModelPath == "" {
		return fmt.Errorf("MODEL_PATH is required")
	}
	if c.VocabPath == "" {
		return fmt.Errorf("MODEL_VOCAB_PATH is required")
	}
	if c.MaxSeqLength < 3 {
		return fmt.Errorf("MAX_SEQ_LENGTH must be at least 3, got %d", c.MaxSeqLength)
	}
	if !model.KnownDevice(c.Device) {
		return fmt.Errorf("unknown DEVICE %q", c.Device)
	}
	return nil
}

// MemorySoftLimitBytes converts the soft limit to bytes; zero disables it.
func (c Config) MemorySoftLimitBytes() uint64 {
	return uint64(c.MemorySoftLimitMB) << 20
}

// GoMemoryLimitBytes converts the Go heap cap to bytes; zero leaves the
// runtime unlimited.
func (c Config) GoMemoryLimitBytes() uint64 {
	return uint64(c.GoMemoryLimitMB) << 20
}

// ModelOptions returns the model manager settings.
func (c Config) ModelOptions() model.Options {
	return model.Options{
		CheckpointPath: c.ModelPath,
		VocabPath:      c.VocabPath,
		ConfigPath:     c.ModelConfigPath,
		Device:         c.Device,
		Uncased:        true,
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envInt64(key string, fallback int64) int64 {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
