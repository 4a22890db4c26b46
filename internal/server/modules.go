package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/hsn0918/netkb/internal/clients/doc2x"
	"github.com/hsn0918/netkb/internal/clients/embedding"
	"github.com/hsn0918/netkb/internal/clients/openai"
	"github.com/hsn0918/netkb/internal/clients/rerank"
	"github.com/hsn0918/netkb/internal/config"
	"github.com/hsn0918/netkb/internal/extract"
	"github.com/hsn0918/netkb/internal/ingest"
	"github.com/hsn0918/netkb/internal/search"
	"github.com/hsn0918/netkb/internal/store"
	"github.com/hsn0918/netkb/internal/tasks"
	"github.com/hsn0918/netkb/pkg/logger"
)

// Module 是主要的FX依赖注入模块
var Module = fx.Options(
	// 基础设施模块
	InfrastructureModule,
	// 业务服务模块
	ServicesModule,
	// HTTP服务器模块
	HTTPServerModule,
	// 启动器
	fx.Invoke(StartHTTPServer),
	fx.Invoke(StartRecovery),
)

// InfrastructureModule 基础设施模块 - 配置、日志、存储
var InfrastructureModule = fx.Module("infrastructure",
	fx.Provide(
		NewAppConfig,
		NewAppLogger,
		NewStore,
	),
)

// ServicesModule 业务服务模块 - 检索、任务队列、摄取
var ServicesModule = fx.Module("services",
	fx.Provide(
		NewSearchEngine,
		NewTaskQueue,
		NewExtractorRegistry,
		NewOrchestrator,
	),
)

// HTTPServerModule HTTP服务器模块
var HTTPServerModule = fx.Module("http_server",
	fx.Provide(
		NewAppServer,
		NewHTTPServer,
	),
)

// NewAppConfig 创建应用配置
func NewAppConfig() (*config.Config, error) {
	cfg, err := config.LoadConfig(".")
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return cfg, nil
}

// NewAppLogger 创建应用日志器
func NewAppLogger() (*zap.Logger, error) {
	if err := logger.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	return logger.Get(), nil
}

// NewStore 创建分片存储
func NewStore(cfg *config.Config, log *zap.Logger) (*store.Store, error) {
	st, err := store.New(cfg.Server.DataDir, log)
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}
	return st, nil
}

// settingsEmbedder resolves the provider key from the settings blob on each
// call, so key changes through the API take effect without a restart.
type settingsEmbedder struct {
	factory tasks.EmbedderFactory
}

func (s settingsEmbedder) EmbedQuery(ctx context.Context, text string) ([]float64, error) {
	embedder, err := s.factory()
	if err != nil {
		return nil, err
	}
	return embedder.EmbedText(ctx, text)
}

// NewEmbedderFactory 创建嵌入客户端工厂
func NewEmbedderFactory(st *store.Store, cfg *config.Config) tasks.EmbedderFactory {
	return func() (tasks.Embedder, error) {
		svc := cfg.Services.Embedding

		settings, err := st.GetSettings()
		if err == nil {
			if key := settings.APIKeys["embedding"]; key != "" {
				svc.APIKey = key
			}
			if settings.EmbeddingModel != "" {
				svc.Model = settings.EmbeddingModel
			}
		}
		if svc.APIKey == "" {
			return nil, errors.New("embedding API key not configured")
		}
		return embedding.NewClient(svc), nil
	}
}

// NewSearchEngine 创建混合检索引擎
func NewSearchEngine(st *store.Store, cfg *config.Config, log *zap.Logger) *search.Engine {
	opts := []search.Option{
		search.WithEmbedder(settingsEmbedder{factory: NewEmbedderFactory(st, cfg)}),
	}
	if cfg.Services.Reranker.APIKey != "" && cfg.Services.Reranker.Model != "" {
		opts = append(opts, search.WithReranker(rerank.NewClient(cfg.Services.Reranker)))
	}
	return search.NewEngine(st, log, opts...)
}

// NewTaskQueue 创建任务队列
func NewTaskQueue(st *store.Store, cfg *config.Config, log *zap.Logger) *tasks.Queue {
	return tasks.NewQueue(st, NewEmbedderFactory(st, cfg), log)
}

// NewExtractorRegistry 创建文本抽取注册表
func NewExtractorRegistry(cfg *config.Config) *extract.Registry {
	var parser doc2x.Parser
	if cfg.Services.Doc2X.BaseURL != "" && cfg.Services.Doc2X.APIKey != "" {
		parser = doc2x.NewClient(cfg.Services.Doc2X)
	}
	return extract.NewRegistry(parser)
}

// NewOrchestrator 创建文档摄取编排器
func NewOrchestrator(st *store.Store, ex *extract.Registry, q *tasks.Queue, cfg *config.Config, log *zap.Logger) *ingest.Orchestrator {
	return ingest.New(st, ex, q, cfg.Chunking, log)
}

// NewAppServer 创建HTTP处理器集合，LLM配置齐全时附加问答端点
func NewAppServer(st *store.Store, eng *search.Engine, q *tasks.Queue, orch *ingest.Orchestrator, cfg *config.Config, log *zap.Logger) *Server {
	var opts []Option
	if cfg.Services.LLM.APIKey != "" && cfg.Services.LLM.Model != "" {
		opts = append(opts, WithChat(openai.NewClient(cfg.Services.LLM)))
	}
	return New(st, eng, q, orch, cfg, log, opts...)
}

// NewHTTPServer 创建HTTP服务器
func NewHTTPServer(s *Server) *http.Server {
	return s.HTTPServer()
}

// StartHTTPServer 启动HTTP服务器
func StartHTTPServer(httpServer *http.Server, log *zap.Logger, lifecycle fx.Lifecycle, shutdowner fx.Shutdowner) {
	lifecycle.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			log.Info("启动HTTP服务器", zap.String("addr", httpServer.Addr))
			go func() {
				if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Error("HTTP服务器启动失败", zap.Error(err))
					if shutdownErr := shutdowner.Shutdown(); shutdownErr != nil {
						log.Error("应用程序关闭失败", zap.Error(shutdownErr))
					}
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			log.Info("停止HTTP服务器")
			return httpServer.Shutdown(ctx)
		},
	})
}

// StartRecovery 启动任务恢复扫描
func StartRecovery(q *tasks.Queue, lifecycle fx.Lifecycle) {
	ctx, cancel := context.WithCancel(context.Background())
	lifecycle.Append(fx.Hook{
		OnStart: func(context.Context) error {
			q.RecoverStalled(ctx)
			return nil
		},
		OnStop: func(context.Context) error {
			cancel()
			return nil
		},
	})
}
