// Package options contains the flags and options of each subcommand.
package options

import (
	"fmt"
	"time"

	utilerrors "k8s.io/apimachinery/pkg/util/errors"

	ragsvc "github.com/kart-io/contract-assistant/internal/rag"
	"github.com/kart-io/contract-assistant/pkg/app/cliflag"
	"github.com/kart-io/contract-assistant/pkg/infra/server"
	"github.com/kart-io/contract-assistant/pkg/infra/tracing"
	cacheopts "github.com/kart-io/contract-assistant/pkg/options/cache"
	indexopts "github.com/kart-io/contract-assistant/pkg/options/index"
	llmopts "github.com/kart-io/contract-assistant/pkg/options/llm"
	logopts "github.com/kart-io/contract-assistant/pkg/options/logger"
	middlewareopts "github.com/kart-io/contract-assistant/pkg/options/middleware"
	milvusopts "github.com/kart-io/contract-assistant/pkg/options/milvus"
	poolopts "github.com/kart-io/contract-assistant/pkg/options/pool"
	ragopts "github.com/kart-io/contract-assistant/pkg/options/rag"
	httpopts "github.com/kart-io/contract-assistant/pkg/options/server/http"
)

// CommonOptions are shared by every subcommand.
type CommonOptions struct {
	LogOptions       *logopts.Options         `json:"log" mapstructure:"log"`
	TracingOptions   *tracing.Options         `json:"tracing" mapstructure:"tracing"`
	EmbeddingOptions *llmopts.ProviderOptions `json:"embedding" mapstructure:"embedding"`
	ChatOptions      *llmopts.ProviderOptions `json:"chat" mapstructure:"chat"`
	RAGOptions       *ragopts.Options         `json:"rag" mapstructure:"rag"`
	IndexOptions     *indexopts.Options       `json:"index" mapstructure:"index"`
	MilvusOptions    *milvusopts.Options      `json:"milvus" mapstructure:"milvus"`
	CacheOptions     *cacheopts.Options       `json:"cache" mapstructure:"cache"`
	PoolOptions      *poolopts.Options        `json:"pool" mapstructure:"pool"`
}

// NewCommonOptions creates CommonOptions with default values.
func NewCommonOptions() CommonOptions {
	return CommonOptions{
		LogOptions:       logopts.NewOptions(),
		TracingOptions:   tracing.NewOptions(),
		EmbeddingOptions: llmopts.NewEmbeddingOptions(),
		ChatOptions:      llmopts.NewChatOptions(),
		RAGOptions:       ragopts.NewOptions(),
		IndexOptions:     indexopts.NewOptions(),
		MilvusOptions:    milvusopts.NewOptions(),
		CacheOptions:     cacheopts.NewOptions(),
		PoolOptions:      poolopts.NewOptions(),
	}
}

func (o *CommonOptions) addFlags(fss *cliflag.NamedFlagSets) {
	o.EmbeddingOptions.AddFlags(fss.FlagSet("embedding"), "embedding")
	o.ChatOptions.AddFlags(fss.FlagSet("chat"), "chat")
	o.RAGOptions.AddFlags(fss.FlagSet("rag"), "rag")
	o.IndexOptions.AddFlags(fss.FlagSet("index"))
	o.MilvusOptions.AddFlags(fss.FlagSet("milvus"))
	o.CacheOptions.AddFlags(fss.FlagSet("cache"))
	o.PoolOptions.AddFlags(fss.FlagSet("pool"))
	o.LogOptions.AddFlags(fss.FlagSet("log"))
	o.TracingOptions.AddFlags(fss.FlagSet("tracing"))
}

func (o *CommonOptions) complete() error {
	if err := o.EmbeddingOptions.Complete(); err != nil {
		return fmt.Errorf("embedding: %w", err)
	}
	if err := o.ChatOptions.Complete(); err != nil {
		return fmt.Errorf("chat: %w", err)
	}
	if err := o.RAGOptions.Complete(); err != nil {
		return fmt.Errorf("rag: %w", err)
	}
	if err := o.CacheOptions.Complete(); err != nil {
		return fmt.Errorf("cache: %w", err)
	}
	if err := o.LogOptions.Complete(); err != nil {
		return fmt.Errorf("log: %w", err)
	}
	return o.TracingOptions.Complete()
}

func (o *CommonOptions) validate() []error {
	var errs []error
	errs = append(errs, o.LogOptions.Validate()...)
	errs = append(errs, prefixed("embedding", o.EmbeddingOptions.Validate())...)
	errs = append(errs, prefixed("chat", o.ChatOptions.Validate())...)
	errs = append(errs, o.RAGOptions.Validate()...)
	errs = append(errs, o.IndexOptions.Validate()...)
	errs = append(errs, o.CacheOptions.Validate()...)
	errs = append(errs, o.PoolOptions.Validate()...)
	if o.IndexOptions.UseMilvus() {
		errs = append(errs, o.MilvusOptions.Validate()...)
	}
	errs = append(errs, o.TracingOptions.Validate()...)
	return errs
}

func (o *CommonOptions) config() *ragsvc.Config {
	return &ragsvc.Config{
		Log:       o.LogOptions,
		Tracing:   o.TracingOptions,
		Embedding: o.EmbeddingOptions,
		Chat:      o.ChatOptions,
		RAG:       o.RAGOptions,
		Index:     o.IndexOptions,
		Milvus:    o.MilvusOptions,
		Cache:     o.CacheOptions,
		Pool:      o.PoolOptions,
	}
}

func prefixed(name string, errs []error) []error {
	for i, err := range errs {
		errs[i] = fmt.Errorf("%s: %w", name, err)
	}
	return errs
}

// IngestOptions are the options of the ingest command.
type IngestOptions struct {
	CommonOptions `mapstructure:",squash"`

	// Files are the documents (or directories) to ingest.
	Files []string `json:"files" mapstructure:"files"`
}

// NewIngestOptions creates IngestOptions with default values.
func NewIngestOptions() *IngestOptions {
	return &IngestOptions{CommonOptions: NewCommonOptions()}
}

// Flags returns the flags of the ingest command.
func (o *IngestOptions) Flags() (fss cliflag.NamedFlagSets) {
	fs := fss.FlagSet("ingest")
	fs.StringSliceVar(&o.Files, "files", o.Files, "File paths to ingest (PDF, TXT, DOCX, HTML). Repeat the flag or separate with commas.")
	o.addFlags(&fss)
	return fss
}

// Complete completes the ingest options.
func (o *IngestOptions) Complete() error {
	return o.complete()
}

// Validate checks the ingest options.
func (o *IngestOptions) Validate() error {
	errs := o.validate()
	if len(o.Files) == 0 {
		errs = append(errs, fmt.Errorf("no files specified. Use: %s ingest --files file1.pdf,file2.pdf", ragsvc.Name))
	}
	return utilerrors.NewAggregate(errs)
}

// Config builds the service configuration.
func (o *IngestOptions) Config() *ragsvc.Config {
	return o.config()
}

// ServeOptions are the options of the serve command.
type ServeOptions struct {
	CommonOptions `mapstructure:",squash"`

	HTTPOptions       *httpopts.Options       `json:"http" mapstructure:"http"`
	MiddlewareOptions *middlewareopts.Options `json:"middleware" mapstructure:"middleware"`
	ShutdownTimeout   time.Duration           `json:"shutdown-timeout" mapstructure:"shutdown-timeout"`
}

// NewServeOptions creates ServeOptions with default values.
func NewServeOptions() *ServeOptions {
	return &ServeOptions{
		CommonOptions:     NewCommonOptions(),
		HTTPOptions:       httpopts.NewOptions(),
		MiddlewareOptions: middlewareopts.NewOptions(),
		ShutdownTimeout:   server.DefaultShutdownTimeout,
	}
}

// Flags returns the flags of the serve command.
func (o *ServeOptions) Flags() (fss cliflag.NamedFlagSets) {
	o.HTTPOptions.AddFlags(fss.FlagSet("http"))
	o.MiddlewareOptions.AddFlags(fss.FlagSet("middleware"))
	o.addFlags(&fss)

	fs := fss.FlagSet("misc")
	fs.DurationVar(&o.ShutdownTimeout, "shutdown-timeout", o.ShutdownTimeout, "Graceful shutdown timeout.")
	return fss
}

// Complete completes the serve options.
func (o *ServeOptions) Complete() error {
	if err := o.HTTPOptions.Complete(); err != nil {
		return err
	}
	if err := o.MiddlewareOptions.Complete(); err != nil {
		return err
	}
	return o.complete()
}

// Validate checks the serve options.
func (o *ServeOptions) Validate() error {
	errs := o.validate()
	errs = append(errs, o.HTTPOptions.Validate()...)
	errs = append(errs, o.MiddlewareOptions.Validate()...)
	return utilerrors.NewAggregate(errs)
}

// Config builds the service configuration with the API server enabled.
func (o *ServeOptions) Config() *ragsvc.Config {
	cfg := o.config()
	cfg.HTTP = o.HTTPOptions
	cfg.Middleware = o.MiddlewareOptions
	cfg.ShutdownTimeout = o.ShutdownTimeout
	return cfg
}

// UIOptions are the options of the ui command.
type UIOptions struct {
	CommonOptions `mapstructure:",squash"`

	UIOptions         *httpopts.Options       `json:"ui" mapstructure:"ui"`
	MiddlewareOptions *middlewareopts.Options `json:"middleware" mapstructure:"middleware"`
	ShutdownTimeout   time.Duration           `json:"shutdown-timeout" mapstructure:"shutdown-timeout"`
}

// NewUIOptions creates UIOptions with default values.
func NewUIOptions() *UIOptions {
	uiOpts := httpopts.NewOptions()
	uiOpts.Addr = ":8091"

	return &UIOptions{
		CommonOptions:     NewCommonOptions(),
		UIOptions:         uiOpts,
		MiddlewareOptions: middlewareopts.NewOptions(),
		ShutdownTimeout:   server.DefaultShutdownTimeout,
	}
}

// Flags returns the flags of the ui command.
func (o *UIOptions) Flags() (fss cliflag.NamedFlagSets) {
	o.UIOptions.AddFlags(fss.FlagSet("ui"), "ui")
	o.MiddlewareOptions.AddFlags(fss.FlagSet("middleware"))
	o.addFlags(&fss)

	fs := fss.FlagSet("misc")
	fs.DurationVar(&o.ShutdownTimeout, "shutdown-timeout", o.ShutdownTimeout, "Graceful shutdown timeout.")
	return fss
}

// Complete completes the ui options.
func (o *UIOptions) Complete() error {
	if err := o.UIOptions.Complete(); err != nil {
		return err
	}
	if err := o.MiddlewareOptions.Complete(); err != nil {
		return err
	}
	return o.complete()
}

// Validate checks the ui options.
func (o *UIOptions) Validate() error {
	errs := o.validate()
	errs = append(errs, o.UIOptions.Validate()...)
	errs = append(errs, o.MiddlewareOptions.Validate()...)
	if o.RAGOptions.UploadDir == "" {
		errs = append(errs, fmt.Errorf("rag.upload-dir is required"))
	}
	return utilerrors.NewAggregate(errs)
}

// Config builds the service configuration with the UI server enabled.
func (o *UIOptions) Config() *ragsvc.Config {
	cfg := o.config()
	cfg.UI = o.UIOptions
	cfg.Middleware = o.MiddlewareOptions
	cfg.ShutdownTimeout = o.ShutdownTimeout
	return cfg
}

// EvaluateOptions are the options of the evaluate command.
type EvaluateOptions struct {
	CommonOptions `mapstructure:",squash"`
}

// NewEvaluateOptions creates EvaluateOptions with default values.
func NewEvaluateOptions() *EvaluateOptions {
	return &EvaluateOptions{CommonOptions: NewCommonOptions()}
}

// Flags returns the flags of the evaluate command.
func (o *EvaluateOptions) Flags() (fss cliflag.NamedFlagSets) {
	fs := fss.FlagSet("evaluate")
	fs.StringVar(&o.RAGOptions.EvalCases, "cases", o.RAGOptions.EvalCases, "YAML or JSON file of evaluation cases. Empty uses the built-in cases.")
	o.addFlags(&fss)
	return fss
}

// Complete completes the evaluate options.
func (o *EvaluateOptions) Complete() error {
	return o.complete()
}

// Validate checks the evaluate options.
func (o *EvaluateOptions) Validate() error {
	return utilerrors.NewAggregate(o.validate())
}

// Config builds the service configuration. Evaluation needs an existing index.
func (o *EvaluateOptions) Config() *ragsvc.Config {
	cfg := o.config()
	cfg.RequireIndex = true
	return cfg
}
