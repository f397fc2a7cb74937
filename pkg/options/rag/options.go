// Package rag provides retrieval and generation configuration options.
package rag

import (
	"fmt"
	"strings"

	"github.com/spf13/pflag"

	"github.com/kart-io/contract-assistant/pkg/options"
)

var _ options.IOptions = (*Options)(nil)

// ContextPlaceholder must appear in SystemPrompt.
const ContextPlaceholder = "{context}"

// DefaultSystemPrompt is the legal assistant prompt used by the chain.
const DefaultSystemPrompt = "You are an expert legal assistant. Use the following pieces of retrieved context to answer the question. " +
	"If you don't know the answer, say that you don't know. Keep the answer concise.\n\n{context}"

// Options contains chunking, retrieval and evaluation configuration.
type Options struct {
	// ChunkSize is the maximum chunk length in characters.
	ChunkSize int `json:"chunk-size" mapstructure:"chunk-size"`

	// ChunkOverlap is the overlap carried between adjacent chunks.
	ChunkOverlap int `json:"chunk-overlap" mapstructure:"chunk-overlap"`

	// TopK is the number of chunks retrieved per question.
	TopK int `json:"top-k" mapstructure:"top-k"`

	// BatchSize is the number of chunks per embedding call.
	BatchSize int `json:"batch-size" mapstructure:"batch-size"`

	// SystemPrompt is the generation instruction; it must contain {context}.
	SystemPrompt string `json:"system-prompt" mapstructure:"system-prompt"`

	// UploadDir receives files ingested through the UI.
	UploadDir string `json:"upload-dir" mapstructure:"upload-dir"`

	// EvalCases is an optional YAML or JSON file of evaluation cases.
	EvalCases string `json:"eval-cases" mapstructure:"eval-cases"`

	// AnswerPreview truncates answers in evaluation printouts.
	AnswerPreview int `json:"answer-preview" mapstructure:"answer-preview"`
}

// NewOptions creates Options with default values.
func NewOptions() *Options {
	return &Options{
		ChunkSize:     1000,
		ChunkOverlap:  200,
		TopK:          4,
		BatchSize:     64,
		SystemPrompt:  DefaultSystemPrompt,
		UploadDir:     "data/uploads",
		AnswerPreview: 150,
	}
}

// AddFlags adds flags for RAG options to the specified FlagSet.
func (o *Options) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	p := options.Join(prefixes...)
	fs.IntVar(&o.ChunkSize, p+"chunk-size", o.ChunkSize, "Maximum chunk length in characters.")
	fs.IntVar(&o.ChunkOverlap, p+"chunk-overlap", o.ChunkOverlap, "Characters shared between adjacent chunks.")
	fs.IntVar(&o.TopK, p+"top-k", o.TopK, "Number of chunks retrieved per question.")
	fs.IntVar(&o.BatchSize, p+"batch-size", o.BatchSize, "Number of chunks per embedding request.")
	fs.StringVar(&o.SystemPrompt, p+"system-prompt", o.SystemPrompt, "System prompt; must contain {context}.")
	fs.StringVar(&o.UploadDir, p+"upload-dir", o.UploadDir, "Directory receiving files uploaded through the UI.")
	fs.StringVar(&o.EvalCases, p+"eval-cases", o.EvalCases, "YAML or JSON file with evaluation cases. Empty uses the built-in set.")
	fs.IntVar(&o.AnswerPreview, p+"answer-preview", o.AnswerPreview, "Characters of each answer shown in evaluation output.")
}

// Validate validates the RAG options.
func (o *Options) Validate() []error {
	if o == nil {
		return nil
	}

	var errs []error
	if o.ChunkSize <= 0 {
		errs = append(errs, fmt.Errorf("rag.chunk-size must be positive"))
	}
	if o.ChunkOverlap < 0 || o.ChunkOverlap >= o.ChunkSize {
		errs = append(errs, fmt.Errorf("rag.chunk-overlap must be in [0, chunk-size)"))
	}
	if o.TopK <= 0 {
		errs = append(errs, fmt.Errorf("rag.top-k must be positive"))
	}
	if o.BatchSize <= 0 {
		errs = append(errs, fmt.Errorf("rag.batch-size must be positive"))
	}
	if !strings.Contains(o.SystemPrompt, ContextPlaceholder) {
		errs = append(errs, fmt.Errorf("rag.system-prompt must contain %s", ContextPlaceholder))
	}
	return errs
}

// Complete completes the RAG options with defaults.
func (o *Options) Complete() error {
	if o.SystemPrompt == "" {
		o.SystemPrompt = DefaultSystemPrompt
	}
	if o.AnswerPreview <= 0 {
		o.AnswerPreview = 150
	}
	return nil
}
