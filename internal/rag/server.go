// Package ragsvc wires the contract assistant from its configuration.
package ragsvc

import (
	"context"
	"fmt"
	"time"

	"github.com/kart-io/logger"
	utilerrors "k8s.io/apimachinery/pkg/util/errors"

	"github.com/kart-io/contract-assistant/internal/model"
	"github.com/kart-io/contract-assistant/internal/pkg/rag/evaluator"
	"github.com/kart-io/contract-assistant/internal/rag/biz"
	"github.com/kart-io/contract-assistant/internal/rag/chunker"
	"github.com/kart-io/contract-assistant/internal/rag/handler"
	"github.com/kart-io/contract-assistant/internal/rag/router"
	"github.com/kart-io/contract-assistant/internal/rag/store"
	"github.com/kart-io/contract-assistant/internal/rag/ui"
	"github.com/kart-io/contract-assistant/pkg/component/milvus"
	"github.com/kart-io/contract-assistant/pkg/component/redis"
	"github.com/kart-io/contract-assistant/pkg/infra/pool"
	"github.com/kart-io/contract-assistant/pkg/infra/server"
	httpserver "github.com/kart-io/contract-assistant/pkg/infra/server/http"
	"github.com/kart-io/contract-assistant/pkg/infra/tracing"
	"github.com/kart-io/contract-assistant/pkg/llm"
	// 注册 LLM 供应商
	_ "github.com/kart-io/contract-assistant/pkg/llm/ollama"
	_ "github.com/kart-io/contract-assistant/pkg/llm/openai"
	"github.com/kart-io/contract-assistant/pkg/llm/resilience"
	cacheopts "github.com/kart-io/contract-assistant/pkg/options/cache"
	indexopts "github.com/kart-io/contract-assistant/pkg/options/index"
	llmopts "github.com/kart-io/contract-assistant/pkg/options/llm"
	logopts "github.com/kart-io/contract-assistant/pkg/options/logger"
	mwopts "github.com/kart-io/contract-assistant/pkg/options/middleware"
	milvusopts "github.com/kart-io/contract-assistant/pkg/options/milvus"
	poolopts "github.com/kart-io/contract-assistant/pkg/options/pool"
	ragopts "github.com/kart-io/contract-assistant/pkg/options/rag"
	httpopts "github.com/kart-io/contract-assistant/pkg/options/server/http"
	"github.com/kart-io/contract-assistant/pkg/utils/errors"
	"github.com/kart-io/contract-assistant/pkg/utils/json"
)

// Name is the service name used in logs and traces.
const Name = "contract-assistant"

// Config contains every option group the assistant can be built from.
// HTTP and UI are optional: a nil group means that server is not started.
type Config struct {
	Log        *logopts.Options
	Tracing    *tracing.Options
	Embedding  *llmopts.ProviderOptions
	Chat       *llmopts.ProviderOptions
	RAG        *ragopts.Options
	Index      *indexopts.Options
	Milvus     *milvusopts.Options
	Cache      *cacheopts.Options
	Pool       *poolopts.Options
	HTTP       *httpopts.Options
	UI         *httpopts.Options
	Middleware *mwopts.Options

	// RequireIndex makes a missing index file an error instead of starting empty.
	RequireIndex bool

	ShutdownTimeout time.Duration
}

// Runtime holds the components built from a Config.
type Runtime struct {
	Service  *biz.RAGService
	Handle   *store.Handle
	Embedder llm.EmbeddingProvider
	Chat     llm.ChatProvider
	Cases    []model.EvaluationCase

	config  *Config
	closers []func(context.Context) error
}

// Build initializes logging and tracing, then constructs providers, caches,
// the current index and the service.
func (cfg *Config) Build(ctx context.Context) (_ *Runtime, err error) {
	if err := cfg.initLogger(); err != nil {
		return nil, err
	}

	rt := &Runtime{config: cfg}
	defer func() {
		if err != nil {
			_ = rt.Close(context.Background())
		}
	}()

	tp, err := tracing.NewProvider(ctx, cfg.Tracing)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize tracing: %w", err)
	}
	rt.onClose(tp.Shutdown)

	// 1. LLM 供应商（带重试与熔断）
	embedder, err := llm.NewEmbeddingProvider(cfg.Embedding.Provider, cfg.Embedding.ToConfigMap())
	if err != nil {
		return nil, errors.ErrConfiguration.WithCause(fmt.Errorf("embedding provider: %w", err))
	}
	rt.Embedder = resilience.WrapEmbedding(embedder, cfg.Embedding.RetryConfig(), cfg.Embedding.BreakerConfig())

	chat, err := llm.NewChatProvider(cfg.Chat.Provider, cfg.Chat.ToConfigMap())
	if err != nil {
		return nil, errors.ErrConfiguration.WithCause(fmt.Errorf("chat provider: %w", err))
	}
	rt.Chat = resilience.WrapChat(chat, cfg.Chat.RetryConfig(), cfg.Chat.BreakerConfig())
	logger.Infow("LLM providers initialized",
		"embedding", llm.ModelID(rt.Embedder),
		"chat", llm.ModelID(rt.Chat),
	)

	// 2. Redis 缓存
	var (
		queryCache *biz.QueryCache
		redisCache *redis.Client
	)
	if cfg.Cache != nil && cfg.Cache.Enabled {
		rc, err := redis.New(ctx, cfg.Cache.Redis)
		if err != nil {
			return nil, errors.ErrCacheUnavailable.WithCause(err)
		}
		rt.onClose(func(context.Context) error { return rc.Close() })
		redisCache = rc

		queryCache = biz.NewQueryCache(rc.Client(), &biz.QueryCacheConfig{
			Enabled:   true,
			TTL:       cfg.Cache.TTL,
			KeyPrefix: cfg.Cache.KeyPrefix,
		})
		if cfg.Cache.EmbeddingTTL > 0 {
			rt.Embedder = llm.NewCachedEmbeddingProvider(rt.Embedder, rc.Client(), &llm.EmbeddingCacheConfig{
				Enabled:   true,
				TTL:       cfg.Cache.EmbeddingTTL,
				KeyPrefix: cfg.Cache.EmbeddingKeyPrefix,
			})
		}
		logger.Infow("Redis cache initialized", "addr", cfg.Cache.Redis.Addr(), "ttl", cfg.Cache.TTL)
	} else {
		logger.Info("Cache is disabled")
	}

	// 3. 当前索引
	idx, err := cfg.openIndex(rt.Embedder)
	if err != nil {
		return nil, err
	}
	rt.Handle = store.NewHandle(idx)

	// 4. 工作池
	workers, err := pool.NewPool("ingest", cfg.Pool.PoolConfig())
	if err != nil {
		return nil, errors.ErrConfiguration.WithCause(err)
	}
	rt.onClose(func(context.Context) error {
		return workers.ReleaseTimeout(cfg.shutdownTimeout())
	})

	// 5. 检索后端
	var searcher biz.Searcher = biz.NewHandleSearcher(rt.Handle)
	ingestOpts := []biz.IngestorOption{biz.WithPool(workers)}
	if cfg.Index.UseMilvus() {
		mc, err := milvus.New(ctx, cfg.Milvus)
		if err != nil {
			return nil, errors.ErrVectorStore.WithCause(err)
		}
		rt.onClose(mc.Close)

		ms := store.NewMilvusStore(mc, cfg.Milvus.Collection, cfg.Milvus.InsertBatch, rt.Embedder)
		searcher = biz.NewMilvusSearcher(ms)
		ingestOpts = append(ingestOpts, biz.WithPublisher(ms))
		logger.Infow("Milvus retrieval backend enabled", "address", cfg.Milvus.Address, "collection", cfg.Milvus.Collection)
	}

	// 6. 业务层
	ingestor, err := biz.NewIngestor(&biz.IngestorConfig{
		Chunker: chunker.Config{
			ChunkSize:    cfg.RAG.ChunkSize,
			ChunkOverlap: cfg.RAG.ChunkOverlap,
			Separators:   chunker.DefaultSeparators(),
		},
		BatchSize: cfg.RAG.BatchSize,
		IndexPath: cfg.Index.Path,
	}, rt.Embedder, rt.Handle, ingestOpts...)
	if err != nil {
		return nil, err
	}

	chain, err := biz.NewChain(searcher, rt.Chat, &biz.ChainConfig{
		TopK:         cfg.RAG.TopK,
		SystemPrompt: cfg.RAG.SystemPrompt,
		Temperature:  cfg.Chat.Temperature,
	})
	if err != nil {
		return nil, err
	}

	rt.Service = biz.NewRAGService(rt.Handle, ingestor, chain, queryCache, rt.Embedder, rt.Chat)
	if redisCache != nil {
		rt.Service.AddHealthCheck(redisCache.Name(), func(ctx context.Context) any {
			return redisCache.HealthWithStats(ctx)
		})
	}

	rt.Cases = evaluator.DefaultCases()
	if cfg.RAG.EvalCases != "" {
		if rt.Cases, err = evaluator.LoadCases(cfg.RAG.EvalCases); err != nil {
			return nil, errors.ErrConfiguration.WithCause(err)
		}
	}

	logger.Infow("Contract assistant ready",
		"index_id", idx.ID(),
		"chunks", idx.Len(),
		"top_k", cfg.RAG.TopK,
		"cache", queryCache != nil,
		"json", json.Backend(),
	)
	return rt, nil
}

func (cfg *Config) initLogger() error {
	if cfg.Log == nil {
		return nil
	}
	if err := cfg.Log.Init(Name); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	return nil
}

func (cfg *Config) shutdownTimeout() time.Duration {
	if cfg.ShutdownTimeout <= 0 {
		return server.DefaultShutdownTimeout
	}
	return cfg.ShutdownTimeout
}

func (cfg *Config) openIndex(embedder llm.EmbeddingProvider) (*store.Index, error) {
	if cfg.RequireIndex {
		idx, err := store.Restore(cfg.Index.Path, embedder)
		if errors.IsCode(err, errors.ErrIndexNotFound.Code) {
			return nil, errors.ErrIndexNotFound.WithMessagef(
				"no index found at %s; run '%s ingest' first", cfg.Index.Path, Name)
		}
		return idx, err
	}
	return store.Open(cfg.Index.Path, embedder)
}

func (rt *Runtime) onClose(fn func(context.Context) error) {
	rt.closers = append(rt.closers, fn)
}

// Close releases resources in reverse creation order.
func (rt *Runtime) Close(ctx context.Context) error {
	var errs []error
	for i := len(rt.closers) - 1; i >= 0; i-- {
		if err := rt.closers[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}
	rt.closers = nil
	return utilerrors.NewAggregate(errs)
}

// Server runs the API and UI servers over one Runtime.
type Server struct {
	runtime *Runtime
	manager *server.Manager
	api     *httpserver.Server
	ui      *httpserver.Server
}

// NewServer builds the runtime and the configured HTTP servers.
func (cfg *Config) NewServer(ctx context.Context) (*Server, error) {
	if cfg.HTTP == nil && cfg.UI == nil {
		return nil, errors.ErrConfiguration.WithMessage("no server configured")
	}

	rt, err := cfg.Build(ctx)
	if err != nil {
		return nil, err
	}

	s := &Server{runtime: rt, manager: server.NewManager(cfg.shutdownTimeout())}

	if cfg.HTTP != nil {
		s.api = httpserver.NewServer("api", cfg.HTTP, cfg.Middleware)
		router.Register(s.api.Engine(), handler.NewRAGHandler(rt.Service,
			handler.WithEvaluationCases(rt.Cases),
			handler.WithTimeout(cfg.HTTP.WriteTimeout),
		))
		s.manager.AddServer(s.api)
	}
	if cfg.UI != nil {
		s.ui = httpserver.NewServer("ui", cfg.UI, cfg.Middleware)
		ui.NewHandler(rt.Service, cfg.RAG.UploadDir, cfg.UI.WriteTimeout, cfg.UI.MaxBodyBytes).Register(s.ui.Engine())
		s.manager.AddServer(s.ui)
	}
	return s, nil
}

// Runtime returns the components the servers share.
func (s *Server) Runtime() *Runtime {
	return s.runtime
}

// Run serves until ctx is cancelled or a server fails, then releases the runtime.
func (s *Server) Run(ctx context.Context) error {
	if err := s.manager.Start(ctx); err != nil {
		_ = s.runtime.Close(context.Background())
		return err
	}
	printBanner(s)

	err := s.manager.Wait(ctx)
	if cerr := s.runtime.Close(context.Background()); cerr != nil {
		logger.Warnw("failed to release resources", "error", cerr.Error())
	}
	return err
}

func printBanner(s *Server) {
	if s.api != nil {
		base := "http://" + s.api.Addr()
		fmt.Printf("Starting API server at %s\n", base)
		fmt.Printf("  Invoke:   POST %s%s/invoke\n", base, router.BasePath)
		fmt.Printf("  Query:    POST %s%s/query\n", base, router.BasePath)
		fmt.Printf("  Stats:    GET  %s%s/stats\n", base, router.BasePath)
		fmt.Printf("  Health:   GET  %s/healthz\n", base)
	}
	if s.ui != nil {
		fmt.Printf("UI available at http://%s/\n", s.ui.Addr())
	}
}
