package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/zhouzirui/mindharbor/backend/internal/analysis/risk"
	"github.com/zhouzirui/mindharbor/backend/internal/config"
	"github.com/zhouzirui/mindharbor/backend/internal/handler"
	"github.com/zhouzirui/mindharbor/backend/internal/logger"
	"github.com/zhouzirui/mindharbor/backend/internal/service/ai"
	"github.com/zhouzirui/mindharbor/backend/internal/service/chat"
	"github.com/zhouzirui/mindharbor/backend/internal/service/crisis"
	"github.com/zhouzirui/mindharbor/backend/internal/service/embedding"
	"github.com/zhouzirui/mindharbor/backend/internal/service/language"
	"github.com/zhouzirui/mindharbor/backend/internal/service/retrieval"
	"github.com/zhouzirui/mindharbor/backend/internal/service/session"
	"github.com/zhouzirui/mindharbor/backend/internal/service/stage"
	"github.com/zhouzirui/mindharbor/backend/internal/service/translate"
	"github.com/zhouzirui/mindharbor/backend/internal/store/knowledge"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Load .env file
	envErr := godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fallback, _ := logger.New("dev")
		fallback.Fatal("failed to load configuration", "error", err)
	}

	log, err := logger.New(cfg.LogMode)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	if envErr != nil {
		log.Warn("no .env file loaded, using system environment only", "error", envErr)
	}

	chatModel, err := cfg.AI.NewChatModel(ctx)
	if err != nil {
		log.Fatal("chat model unavailable, check ARK_* and Model variables", "error", err)
	}
	runner, err := ai.NewRunner(ctx, chatModel)
	if err != nil {
		log.Fatal("failed to compile chat chain", "error", err)
	}

	embedder, err := embedding.New(cfg.Embedding)
	if err != nil {
		log.Fatal("embedding client unavailable, check OPENAI_API_KEY", "error", err)
	}

	kb, err := knowledge.Open(ctx, knowledge.Options{
		Path:       cfg.Knowledge.Path,
		Collection: cfg.Knowledge.Collection,
	}, embedder, log)
	if err != nil {
		log.Fatal("knowledge base not initialized, run `kbinit build` first", "path", cfg.Knowledge.Path, "error", err)
	}
	defer kb.Close()

	if n, err := kb.Count(ctx); err != nil || n == 0 {
		log.Fatal("knowledge base is empty, run `kbinit build` first", "path", cfg.Knowledge.Path, "error", err)
	} else {
		log.Info("knowledge base ready", "chunks", n)
	}

	sessions, closeSessions := newSessionStore(ctx, cfg.Session, log)
	defer closeSessions()

	orchestrator := newOrchestrator(cfg, runner, kb, log)
	router := handler.NewRouter(orchestrator, sessions, log)

	startServer(ctx, cfg.Server, router, log)
}

func newOrchestrator(cfg *config.Config, runner *ai.Runner, kb *knowledge.Store, log *logger.Logger) *chat.Orchestrator {
	var detectorRunner *ai.Runner
	if cfg.Pipeline.LanguageLLMEnabled {
		detectorRunner = runner
	}
	detector := language.NewDetector(detectorRunner, log)
	translator := translate.NewTranslator(runner, detector, translate.NewCache(cfg.Pipeline.TranslationCacheSize), log)

	var stages stage.Classifier = stage.Heuristic{}
	if cfg.Pipeline.StageLLMEnabled {
		stages = stage.NewRemote(runner, stage.Heuristic{}, log)
	}

	params := retrieval.DefaultParams()
	params.Threshold = cfg.Knowledge.SimilarityThreshold
	params.TopK = cfg.Knowledge.TopK

	log.Info("pipeline configured",
		"language_llm", cfg.Pipeline.LanguageLLMEnabled,
		"stage_llm", cfg.Pipeline.StageLLMEnabled,
		"threshold", params.Threshold,
		"top_k", params.TopK,
		"default_region", cfg.Pipeline.DefaultRegion,
	)

	return chat.NewOrchestrator(chat.Dependencies{
		Detector:      detector,
		Translator:    translator,
		Crisis:        crisis.NewService(risk.NewMatcher(), crisis.NewResponder(translator, cfg.Pipeline.DefaultRegion, log), log),
		Stages:        stages,
		Retriever:     retrieval.NewService(kb, params, log),
		Generator:     ai.NewService(runner, ai.NewPromptManager(cfg.AI.Temperature, cfg.Pipeline.HistoryWindow), log),
		HistoryWindow: cfg.Pipeline.HistoryWindow,
	}, log)
}

func newSessionStore(ctx context.Context, cfg config.SessionConfig, log *logger.Logger) (session.Store, func()) {
	if cfg.RedisAddr == "" {
		log.Info("using in-memory session store", "ttl", cfg.TTL)
		return session.NewMemoryStore(cfg.TTL), func() {}
	}

	store, err := session.NewRedisStore(ctx, cfg.RedisAddr, cfg.TTL)
	if err != nil {
		log.Fatal("redis session store unavailable", "addr", cfg.RedisAddr, "error", err)
	}
	log.Info("using redis session store", "addr", cfg.RedisAddr, "ttl", cfg.TTL)
	return store, func() { _ = store.Close() }
}

func startServer(ctx context.Context, serverCfg config.ServerConfig, router http.Handler, log *logger.Logger) {
	addr := serverCfg.Addr
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	log.Info("MindHarbor backend listening", "addr", addr)
	if err := runServer(ctx, srv); err != nil {
		log.Fatal("server error", "error", err)
	}
	log.Info("server stopped")
}

func runServer(ctx context.Context, srv *http.Server) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		err := <-errCh
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
