// Package onnx is a local embedding provider: a BERT-style encoder exported to ONNX,
// fed by a HuggingFace tokenizer.json. The text vector is the [CLS] hidden state.
package onnx

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	ort "github.com/yalue/onnxruntime_go"
	"go.uber.org/zap"

	"github.com/kailas-cloud/bureaucratese/internal/domain"
	"github.com/kailas-cloud/bureaucratese/internal/metrics"
)

const (
	// DefaultMaxSeqLen matches the position embedding size of bert-base models.
	DefaultMaxSeqLen = 512
	// DefaultOutputName is the hidden-state output of HuggingFace encoder exports.
	DefaultOutputName = "last_hidden_state"

	providerName = "onnx"
)

// Config holds the local model settings.
type Config struct {
	LibraryPath   string // onnxruntime shared library; empty = system default
	ModelPath     string
	TokenizerPath string
	ModelID       string // defaults to the model directory name
	MaxSeqLen     int
	OutputName    string
	Logger        *zap.Logger
}

// Encoding is a tokenized text ready for the model.
type Encoding struct {
	InputIDs      []int64
	AttentionMask []int64
	TypeIDs       []int64
}

// Tokenizer turns text into model inputs.
type Tokenizer interface {
	Encode(text string) (Encoding, error)
}

// Runner executes the model and returns the [CLS] hidden state.
type Runner interface {
	Run(enc Encoding) ([]float32, error)
	Close() error
}

// Embedder implements domain.Embedder over a local ONNX model.
type Embedder struct {
	tok       Tokenizer
	runner    Runner
	modelID   string
	maxSeqLen int
	logger    *zap.Logger

	mu sync.Mutex // ORT sessions are not safe for concurrent Run
}

// NewEmbedder loads the tokenizer and the model. Any missing or broken artifact
// is reported as domain.ErrModelUnavailable.
func NewEmbedder(cfg Config) (*Embedder, error) {
	if cfg.MaxSeqLen <= 0 {
		cfg.MaxSeqLen = DefaultMaxSeqLen
	}
	if cfg.OutputName == "" {
		cfg.OutputName = DefaultOutputName
	}
	if cfg.ModelID == "" && cfg.ModelPath != "" {
		cfg.ModelID = filepath.Base(filepath.Dir(cfg.ModelPath))
	}
	for _, p := range []string{cfg.ModelPath, cfg.TokenizerPath} {
		if p == "" {
			return nil, fmt.Errorf("onnx model and tokenizer paths are required: %w", domain.ErrModelUnavailable)
		}
		if _, err := os.Stat(p); err != nil {
			return nil, fmt.Errorf("onnx artifact %s: %v: %w", p, err, domain.ErrModelUnavailable)
		}
	}

	tok, err := LoadTokenizer(cfg.TokenizerPath, cfg.MaxSeqLen)
	if err != nil {
		return nil, fmt.Errorf("load tokenizer: %v: %w", err, domain.ErrModelUnavailable)
	}
	runner, err := NewSessionRunner(cfg.LibraryPath, cfg.ModelPath, cfg.OutputName)
	if err != nil {
		return nil, fmt.Errorf("load model: %v: %w", err, domain.ErrModelUnavailable)
	}

	return NewEmbedderWith(tok, runner, cfg.ModelID, cfg.MaxSeqLen, cfg.Logger), nil
}

// NewEmbedderWith assembles an embedder from already constructed parts.
func NewEmbedderWith(tok Tokenizer, runner Runner, modelID string, maxSeqLen int, logger *zap.Logger) *Embedder {
	if maxSeqLen <= 0 {
		maxSeqLen = DefaultMaxSeqLen
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Embedder{
		tok:       tok,
		runner:    runner,
		modelID:   modelID,
		maxSeqLen: maxSeqLen,
		logger:    logger,
	}
}

// ModelID identifies the local model.
func (e *Embedder) ModelID() string {
	return providerName + "/" + e.modelID
}

// Embed implements domain.Embedder. Token usage counts model input tokens.
func (e *Embedder) Embed(ctx context.Context, text string) (domain.EmbeddingResult, error) {
	if err := ctx.Err(); err != nil {
		return domain.EmbeddingResult{}, err
	}

	enc, err := e.tok.Encode(text)
	if err != nil {
		e.recordError("tokenize")
		return domain.EmbeddingResult{}, fmt.Errorf("tokenize: %v: %w", err, domain.ErrEmbeddingUnavailable)
	}
	enc = truncate(enc, e.maxSeqLen)
	if len(enc.InputIDs) == 0 {
		e.recordError("empty_input")
		return domain.EmbeddingResult{}, fmt.Errorf("tokenizer produced no tokens: %w", domain.ErrEmbeddingUnavailable)
	}

	start := time.Now()
	e.mu.Lock()
	vec, err := e.runner.Run(enc)
	e.mu.Unlock()
	if err != nil {
		e.recordError("inference")
		return domain.EmbeddingResult{}, fmt.Errorf("onnx inference: %v: %w", err, domain.ErrEmbeddingUnavailable)
	}

	metrics.EmbeddingRequestsTotal.WithLabelValues(providerName, e.modelID, "success").Inc()
	metrics.EmbeddingRequestDuration.WithLabelValues(providerName, e.modelID).Observe(time.Since(start).Seconds())

	n := len(enc.InputIDs)
	return domain.EmbeddingResult{Embedding: vec, PromptTokens: n, TotalTokens: n}, nil
}

// BatchEmbed runs texts one by one; the session is not batched.
func (e *Embedder) BatchEmbed(ctx context.Context, texts []string) (domain.BatchEmbeddingResult, error) {
	return domain.BatchFallback(ctx, e, texts)
}

// HealthCheck embeds a probe text.
func (e *Embedder) HealthCheck(ctx context.Context) error {
	if _, err := e.Embed(ctx, "健康"); err != nil {
		return fmt.Errorf("onnx probe: %w", err)
	}
	return nil
}

// Close releases the session.
func (e *Embedder) Close() error {
	if e.runner == nil {
		return nil
	}
	return e.runner.Close()
}

func (e *Embedder) recordError(kind string) {
	metrics.EmbeddingRequestsTotal.WithLabelValues(providerName, e.modelID, "error").Inc()
	metrics.EmbeddingErrorsTotal.WithLabelValues(providerName, e.modelID, kind).Inc()
}

// truncate keeps the first max-1 tokens and the trailing [SEP].
func truncate(enc Encoding, max int) Encoding {
	n := len(enc.InputIDs)
	if n <= max {
		return enc
	}
	cut := func(s []int64) []int64 {
		if len(s) != n {
			return s
		}
		out := make([]int64, 0, max)
		out = append(out, s[:max-1]...)
		return append(out, s[n-1])
	}
	return Encoding{
		InputIDs:      cut(enc.InputIDs),
		AttentionMask: cut(enc.AttentionMask),
		TypeIDs:       cut(enc.TypeIDs),
	}
}

// --- onnxruntime session ---

var (
	envOnce sync.Once
	envErr  error
)

func initEnvironment(libPath string) error {
	envOnce.Do(func() {
		if libPath != "" {
			ort.SetSharedLibraryPath(libPath)
		}
		envErr = ort.InitializeEnvironment()
	})
	return envErr
}

// SessionRunner runs a dynamic-shape ONNX session.
type SessionRunner struct {
	session *ort.DynamicAdvancedSession
}

// NewSessionRunner initializes the runtime (once per process) and opens the model.
func NewSessionRunner(libPath, modelPath, outputName string) (*SessionRunner, error) {
	if err := initEnvironment(libPath); err != nil {
		return nil, fmt.Errorf("init onnxruntime: %w", err)
	}
	session, err := ort.NewDynamicAdvancedSession(
		modelPath,
		[]string{"input_ids", "attention_mask", "token_type_ids"},
		[]string{outputName},
		nil,
	)
	if err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}
	return &SessionRunner{session: session}, nil
}

// Run implements Runner.
func (s *SessionRunner) Run(enc Encoding) ([]float32, error) {
	seq := int64(len(enc.InputIDs))
	shape := ort.NewShape(1, seq)

	typeIDs := enc.TypeIDs
	if len(typeIDs) != len(enc.InputIDs) {
		typeIDs = make([]int64, seq)
	}

	var inputs []ort.Value
	defer func() {
		for _, v := range inputs {
			_ = v.Destroy()
		}
	}()
	for _, data := range [][]int64{enc.InputIDs, enc.AttentionMask, typeIDs} {
		t, err := ort.NewTensor(shape, data)
		if err != nil {
			return nil, fmt.Errorf("input tensor: %w", err)
		}
		inputs = append(inputs, t)
	}

	outputs := []ort.Value{nil}
	if err := s.session.Run(inputs, outputs); err != nil {
		return nil, err
	}
	defer func() { _ = outputs[0].Destroy() }()

	hidden, ok := outputs[0].(*ort.Tensor[float32])
	if !ok {
		return nil, errors.New("unexpected output tensor type")
	}
	dims := hidden.GetShape()
	if len(dims) != 3 || dims[1] < 1 {
		return nil, fmt.Errorf("unexpected output shape %v", dims)
	}
	dim := int(dims[2])

	// [CLS] — первая позиция первой (единственной) последовательности
	vec := make([]float32, dim)
	copy(vec, hidden.GetData()[:dim])
	return vec, nil
}

// Close implements Runner.
func (s *SessionRunner) Close() error {
	return s.session.Destroy()
}
