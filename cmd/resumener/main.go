// Command resumener extracts resume entities from local documents and prints
// one JSON object per file.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/unais0397/Resume-NER-Parser-Backend/internal/config"
	"github.com/unais0397/Resume-NER-Parser-Backend/internal/extractor"
	"github.com/unais0397/Resume-NER-Parser-Backend/internal/model"
	"github.com/unais0397/Resume-NER-Parser-Backend/internal/ner"
	"github.com/unais0397/Resume-NER-Parser-Backend/internal/parser"
	"github.com/unais0397/Resume-NER-Parser-Backend/internal/pipeline"
)

type fileResult struct {
	File         string            `json:"file"`
	Entities     ner.EntityMapping `json:"entities,omitzero"`
	Words        int               `json:"words,omitempty"`
	LabeledWords int               `json:"labeled_words,omitempty"`
	Truncated    bool              `json:"truncated,omitempty"`
	Error        string            `json:"error,omitempty"`
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(stderr, "resumener: %v\n", err)
		return 2
	}

	fs := flag.NewFlagSet("resumener", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() {
		fmt.Fprintln(stderr, "usage: resumener [flags] file...")
		fs.PrintDefaults()
	}
	fs.StringVar(&cfg.ModelPath, "model", cfg.ModelPath, "safetensors checkpoint")
	fs.StringVar(&cfg.VocabPath, "vocab", cfg.VocabPath, "WordPiece vocabulary")
	fs.StringVar(&cfg.ModelConfigPath, "config", cfg.ModelConfigPath, "model config.json (optional)")
	fs.StringVar(&cfg.Device, "device", cfg.Device, "compute device: cpu, auto, cuda")
	fs.IntVar(&cfg.MaxSeqLength, "max-len", cfg.MaxSeqLength, "maximum tokens per prediction, including [CLS] and [SEP]")
	fs.BoolVar(&cfg.WindowedInference, "windowed", cfg.WindowedInference, "label words past the first sequence with further predictions")
	fs.IntVar(&cfg.MinTextLength, "min-text", cfg.MinTextLength, "minimum cleaned text length in characters")
	verbose := fs.Bool("v", false, "log progress to stderr")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() == 0 {
		fs.Usage()
		return 2
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(stderr, "resumener: %v\n", err)
		return 2
	}

	level := slog.LevelWarn
	if *verbose {
		level = slog.LevelDebug
	}
	log := slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level}))

	models := model.NewManager(cfg.ModelOptions(), log)
	defer models.Unload()
	recognizer := ner.NewRecognizer(ner.ManagerSource(models), ner.Options{
		MaxSeqLength:    cfg.MaxSeqLength,
		Windowed:        cfg.WindowedInference,
		MemorySoftLimit: cfg.MemorySoftLimitBytes(),
	}, nil, log)
	ext := extractor.New(log, parser.Options{FallbackPdftotext: cfg.PDFFallbackPdftotext})
	worker := pipeline.NewWorker(ext, recognizer, cfg.MinTextLength, log)

	enc := json.NewEncoder(stdout)
	failed := false
	for _, path := range fs.Args() {
		res := process(worker, path)
		if res.Error != "" {
			failed = true
		}
		if err := enc.Encode(res); err != nil {
			fmt.Fprintf(stderr, "resumener: %v\n", err)
			return 1
		}
	}
	if failed {
		return 1
	}
	return 0
}

func process(w *pipeline.Worker, path string) fileResult {
	f, err := os.Open(path)
	if err != nil {
		return fileResult{File: path, Error: err.Error()}
	}
	defer f.Close()

	res, err := w.Run(context.Background(), f, path)
	if err != nil {
		return fileResult{File: path, Error: err.Error()}
	}
	entities := res.Entities
	if entities == nil {
		entities = ner.EntityMapping{}
	}
	return fileResult{
		File:         path,
		Entities:     entities,
		Words:        res.Words,
		LabeledWords: res.LabeledWords,
		Truncated:    res.Truncated,
	}
}
