// Package options contains flags and options for initializing the assistant server.
package options

import (
	"fmt"
	"time"

	"github.com/spf13/pflag"

	"github.com/kart-io/guideline-rag/internal/assistant"
	httpopts "github.com/kart-io/guideline-rag/pkg/options/http"
	llmopts "github.com/kart-io/guideline-rag/pkg/options/llm"
	logopts "github.com/kart-io/guideline-rag/pkg/options/logger"
	milvusopts "github.com/kart-io/guideline-rag/pkg/options/milvus"
)

// StoreOptions selects where vectors are persisted. A Milvus address takes
// precedence; otherwise LocalPath selects the embedded store.
type StoreOptions struct {
	// LocalPath is the directory for the embedded vector store.
	LocalPath string `json:"local-path" mapstructure:"local-path"`
}

// PipelineOptions contains retrieval pipeline configuration.
type PipelineOptions struct {
	// ChunkSize is the size of text chunks in runes.
	ChunkSize int `json:"chunk-size" mapstructure:"chunk-size"`

	// ChunkOverlap is the overlap between consecutive chunks in runes.
	ChunkOverlap int `json:"chunk-overlap" mapstructure:"chunk-overlap"`

	// TopK is the default number of results from similarity search.
	TopK int `json:"top-k" mapstructure:"top-k"`

	// Collection is the vector store collection name.
	Collection string `json:"collection" mapstructure:"collection"`

	// ScoreThreshold is the minimum top evidence score for classification.
	ScoreThreshold float32 `json:"score-threshold" mapstructure:"score-threshold"`
}

// CacheOptions contains query cache configuration.
type CacheOptions struct {
	// Enabled turns the in-process query result cache on.
	Enabled bool `json:"enabled" mapstructure:"enabled"`

	// Size is the maximum number of cached query results.
	Size int `json:"size" mapstructure:"size"`
}

// ServerOptions contains the configuration options for the server.
type ServerOptions struct {
	// HTTPOptions contains HTTP server configuration.
	HTTPOptions *httpopts.Options `json:"http" mapstructure:"http"`

	// LogOptions contains logger configuration.
	LogOptions *logopts.Options `json:"log" mapstructure:"log"`

	// MilvusOptions contains Milvus database configuration.
	MilvusOptions *milvusopts.Options `json:"milvus" mapstructure:"milvus"`

	// StoreOptions contains local vector store configuration.
	StoreOptions *StoreOptions `json:"store" mapstructure:"store"`

	// EmbeddingOptions contains embedding provider configuration.
	EmbeddingOptions *llmopts.ProviderOptions `json:"embedding" mapstructure:"embedding"`

	// ChatOptions contains chat provider configuration.
	ChatOptions *llmopts.ProviderOptions `json:"chat" mapstructure:"chat"`

	// PipelineOptions contains retrieval pipeline configuration.
	PipelineOptions *PipelineOptions `json:"pipeline" mapstructure:"pipeline"`

	// CacheOptions contains query cache configuration.
	CacheOptions *CacheOptions `json:"cache" mapstructure:"cache"`

	// ShutdownTimeout is the timeout for graceful shutdown.
	ShutdownTimeout time.Duration `json:"shutdown-timeout" mapstructure:"shutdown-timeout"`
}

// NewServerOptions creates a ServerOptions instance with default values.
func NewServerOptions() *ServerOptions {
	httpOpts := httpopts.NewOptions()
	httpOpts.Addr = ":8080"

	return &ServerOptions{
		HTTPOptions:      httpOpts,
		LogOptions:       logopts.NewOptions(),
		MilvusOptions:    milvusopts.NewOptions(),
		StoreOptions:     &StoreOptions{},
		EmbeddingOptions: llmopts.NewEmbeddingOptions(),
		ChatOptions:      llmopts.NewChatOptions(),
		PipelineOptions: &PipelineOptions{
			ChunkSize:      1000,
			ChunkOverlap:   150,
			TopK:           5,
			Collection:     "who_diabetes_guideline",
			ScoreThreshold: 0.2,
		},
		CacheOptions:    &CacheOptions{Enabled: true, Size: 128},
		ShutdownTimeout: 30 * time.Second,
	}
}

// AddFlags adds flags to the flagset.
func (o *ServerOptions) AddFlags(fs *pflag.FlagSet) {
	o.HTTPOptions.AddFlags(fs)
	o.LogOptions.AddFlags(fs)
	o.MilvusOptions.AddFlags(fs)
	o.EmbeddingOptions.AddFlags(fs, "embedding")
	o.ChatOptions.AddFlags(fs, "chat")

	fs.StringVar(&o.StoreOptions.LocalPath, "store.local-path", o.StoreOptions.LocalPath, "Directory for the embedded vector store (used when no Milvus address is set)")

	fs.IntVar(&o.PipelineOptions.ChunkSize, "pipeline.chunk-size", o.PipelineOptions.ChunkSize, "Size of text chunks in runes")
	fs.IntVar(&o.PipelineOptions.ChunkOverlap, "pipeline.chunk-overlap", o.PipelineOptions.ChunkOverlap, "Overlap between consecutive chunks in runes")
	fs.IntVar(&o.PipelineOptions.TopK, "pipeline.top-k", o.PipelineOptions.TopK, "Default number of results from similarity search")
	fs.StringVar(&o.PipelineOptions.Collection, "pipeline.collection", o.PipelineOptions.Collection, "Vector store collection name")
	fs.Float32Var(&o.PipelineOptions.ScoreThreshold, "pipeline.score-threshold", o.PipelineOptions.ScoreThreshold, "Minimum top evidence score for classification")

	fs.BoolVar(&o.CacheOptions.Enabled, "cache.enabled", o.CacheOptions.Enabled, "Enable the in-process query result cache")
	fs.IntVar(&o.CacheOptions.Size, "cache.size", o.CacheOptions.Size, "Maximum number of cached query results")

	fs.DurationVar(&o.ShutdownTimeout, "shutdown-timeout", o.ShutdownTimeout, "Graceful shutdown timeout")
}

// Complete completes all the required options.
func (o *ServerOptions) Complete() error {
	return nil
}

// Validate checks whether the options in ServerOptions are valid.
func (o *ServerOptions) Validate() error {
	if err := o.HTTPOptions.Validate(); err != nil {
		return err
	}
	if err := o.LogOptions.Validate(); err != nil {
		return err
	}
	if err := o.MilvusOptions.Validate(); err != nil {
		return err
	}
	if err := o.EmbeddingOptions.Validate("embedding"); err != nil {
		return err
	}
	if err := o.ChatOptions.Validate("chat"); err != nil {
		return err
	}
	if o.MilvusOptions.Address == "" && o.StoreOptions.LocalPath == "" {
		return fmt.Errorf("either milvus.address or store.local-path must be set")
	}
	if o.PipelineOptions.ChunkSize <= 0 {
		return fmt.Errorf("pipeline.chunk-size must be positive")
	}
	if o.PipelineOptions.ChunkOverlap < 0 || o.PipelineOptions.ChunkOverlap >= o.PipelineOptions.ChunkSize {
		return fmt.Errorf("pipeline.chunk-overlap must be in [0, chunk-size)")
	}
	if o.PipelineOptions.TopK <= 0 {
		return fmt.Errorf("pipeline.top-k must be positive")
	}
	if o.PipelineOptions.Collection == "" {
		return fmt.Errorf("pipeline.collection is required")
	}
	return nil
}

// Config builds an assistant.Config based on ServerOptions.
func (o *ServerOptions) Config() (*assistant.Config, error) {
	return &assistant.Config{
		HTTPOptions:      o.HTTPOptions,
		LogOptions:       o.LogOptions,
		MilvusOptions:    o.MilvusOptions,
		LocalStorePath:   o.StoreOptions.LocalPath,
		EmbeddingOptions: o.EmbeddingOptions,
		ChatOptions:      o.ChatOptions,
		Pipeline: &assistant.PipelineOptions{
			Collection:     o.PipelineOptions.Collection,
			ChunkSize:      o.PipelineOptions.ChunkSize,
			ChunkOverlap:   o.PipelineOptions.ChunkOverlap,
			TopK:           o.PipelineOptions.TopK,
			ScoreThreshold: o.PipelineOptions.ScoreThreshold,
			CacheEnabled:   o.CacheOptions.Enabled,
			CacheSize:      o.CacheOptions.Size,
		},
		ShutdownTimeout: o.ShutdownTimeout,
	}, nil
}
