// Package assistant provides the guideline assistant server implementation.
package assistant

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/kart-io/logger"

	"github.com/kart-io/guideline-rag/internal/assistant/biz"
	"github.com/kart-io/guideline-rag/internal/assistant/handler"
	"github.com/kart-io/guideline-rag/internal/assistant/router"
	"github.com/kart-io/guideline-rag/internal/assistant/store"
	"github.com/kart-io/guideline-rag/pkg/llm"
	_ "github.com/kart-io/guideline-rag/pkg/llm/ollama" // register provider
	_ "github.com/kart-io/guideline-rag/pkg/llm/openai" // register provider
	httpopts "github.com/kart-io/guideline-rag/pkg/options/http"
	llmopts "github.com/kart-io/guideline-rag/pkg/options/llm"
	logopts "github.com/kart-io/guideline-rag/pkg/options/logger"
	milvusopts "github.com/kart-io/guideline-rag/pkg/options/milvus"
)

// Name is the name of the application.
const Name = "guideline-assistant"

// PipelineOptions carries the retrieval pipeline parameters.
type PipelineOptions struct {
	Collection     string
	ChunkSize      int
	ChunkOverlap   int
	TopK           int
	ScoreThreshold float32
	CacheEnabled   bool
	CacheSize      int
}

// Config contains application-related configurations, resolved from options.
type Config struct {
	HTTPOptions      *httpopts.Options
	LogOptions       *logopts.Options
	MilvusOptions    *milvusopts.Options
	LocalStorePath   string
	EmbeddingOptions *llmopts.ProviderOptions
	ChatOptions      *llmopts.ProviderOptions
	Pipeline         *PipelineOptions
	ShutdownTimeout  time.Duration
}

// Server is the assembled HTTP server plus the resources it owns.
type Server struct {
	cfg         *Config
	httpServer  *http.Server
	vectorStore store.VectorStore
}

// NewServer initializes the full pipeline: logger, vector store, providers,
// dimension probe, collection, service, routes.
func (cfg *Config) NewServer(ctx context.Context) (*Server, error) {
	cfg.LogOptions.AddInitialField("service.name", Name)
	if err := cfg.LogOptions.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	logger.Infow("starting guideline assistant", "http", cfg.HTTPOptions.Addr)

	storeCfg := store.Config{
		MilvusAddress:  cfg.MilvusOptions.Address,
		MilvusUsername: cfg.MilvusOptions.Username,
		MilvusPassword: cfg.MilvusOptions.Password,
		MilvusDatabase: cfg.MilvusOptions.Database,
		LocalPath:      cfg.LocalStorePath,
		Collection:     cfg.Pipeline.Collection,
	}
	mode, err := store.ResolveMode(storeCfg)
	if err != nil {
		return nil, err
	}
	vectorStore, err := store.New(ctx, storeCfg)
	if err != nil {
		return nil, err
	}
	logger.Infow("vector store initialized", "mode", mode, "collection", cfg.Pipeline.Collection)

	embedProvider, err := llm.NewEmbeddingProvider(cfg.EmbeddingOptions.Provider, cfg.EmbeddingOptions.ToConfigMap())
	if err != nil {
		return nil, fmt.Errorf("failed to create embedding provider: %w", err)
	}
	chatProvider, err := llm.NewChatProvider(cfg.ChatOptions.Provider, cfg.ChatOptions.ToConfigMap())
	if err != nil {
		return nil, fmt.Errorf("failed to create chat provider: %w", err)
	}

	embedder := biz.NewEmbedder(embedProvider)
	dim, err := embedder.DetectDimension(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to detect embedding dimension: %w", err)
	}
	logger.Infow("embedding dimension detected", "dim", dim, "provider", embedProvider.Name())

	if err := vectorStore.EnsureCollection(ctx, dim); err != nil {
		return nil, err
	}

	service, err := biz.NewAssistantService(
		vectorStore,
		embedder,
		biz.NewClassifier(chatProvider, &biz.ClassifierConfig{ScoreThreshold: cfg.Pipeline.ScoreThreshold}),
		biz.NewGenerator(chatProvider),
		mode,
		dim,
		&biz.ServiceConfig{
			Collection:       cfg.Pipeline.Collection,
			ChunkSize:        cfg.Pipeline.ChunkSize,
			ChunkOverlap:     cfg.Pipeline.ChunkOverlap,
			RetrieverConfig:  &biz.RetrieverConfig{TopK: cfg.Pipeline.TopK},
			QueryCacheConfig: &biz.QueryCacheConfig{Enabled: cfg.Pipeline.CacheEnabled, Size: cfg.Pipeline.CacheSize},
		},
	)
	if err != nil {
		return nil, err
	}

	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())
	router.Register(engine, handler.NewAssistantHandler(service))

	return &Server{
		cfg: cfg,
		httpServer: &http.Server{
			Addr:         cfg.HTTPOptions.Addr,
			Handler:      engine,
			ReadTimeout:  cfg.HTTPOptions.ReadTimeout,
			WriteTimeout: cfg.HTTPOptions.WriteTimeout,
			IdleTimeout:  cfg.HTTPOptions.IdleTimeout,
		},
		vectorStore: vectorStore,
	}, nil
}

// Run serves HTTP until the context is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		logger.Infow("http server listening", "addr", s.httpServer.Addr)
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warnw("http server shutdown failed", "error", err.Error())
	}
	if err := s.vectorStore.Close(shutdownCtx); err != nil {
		logger.Warnw("vector store close failed", "error", err.Error())
	}
	_ = logger.Flush()
	return nil
}
