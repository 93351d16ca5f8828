package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/ClarenceChoo/Digital-Forensics/internal/adapter/repo"
	"github.com/ClarenceChoo/Digital-Forensics/internal/caption"
	"github.com/ClarenceChoo/Digital-Forensics/internal/domain"
	"github.com/ClarenceChoo/Digital-Forensics/internal/http/handlers"
	httpapi "github.com/ClarenceChoo/Digital-Forensics/internal/http/httpapi"
	"github.com/ClarenceChoo/Digital-Forensics/internal/infra"
	"github.com/ClarenceChoo/Digital-Forensics/internal/pipeline"
	"github.com/ClarenceChoo/Digital-Forensics/internal/queue"
	"github.com/ClarenceChoo/Digital-Forensics/internal/storage"
)

func main() {
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv)

	ctx := context.Background()

	repository, cleanup, err := newRepository(ctx, cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize repository")
	}
	defer cleanup()

	store, err := storage.NewFileStore(cfg.StoragePath)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize storage")
	}

	captioner := newCaptioner(cfg, logger)
	processor := pipeline.NewProcessor(repository, store, captioner, cfg.CaptionTimeout, logger)

	jobs := queue.New(cfg.QueueCapacity, processor, logger)
	jobs.Start(cfg.WorkerCount)

	app := handlers.NewApp(repository, store, jobs, logger, cfg.PublicBaseURL)
	router := httpapi.NewRouter(app, cfg, logger)
	server := infra.NewHTTPServer(cfg, router)

	go func() {
		logger.Info().Msgf("API listening on :%s", cfg.Port)
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("http server failed")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTPIdleTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("failed to shutdown server")
	}
	// Accepted jobs still finish; the queue stops taking new work first.
	jobs.Stop()
	logger.Info().Msg("server stopped")
}

func newRepository(ctx context.Context, cfg *infra.Config, logger infra.Logger) (domain.ImageRepository, func(), error) {
	if cfg.DatabaseURL == "" {
		logger.Info().Msg("DATABASE_URL not set, using in-memory record store")
		return repo.NewMemory(), func() {}, nil
	}

	pool, err := infra.NewDBPool(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}
	pg := repo.NewImageRepository(pool)
	if err := pg.EnsureSchema(ctx); err != nil {
		pool.Close()
		return nil, nil, err
	}
	return pg, pool.Close, nil
}

func newCaptioner(cfg *infra.Config, logger infra.Logger) caption.Captioner {
	switch cfg.CaptionProvider {
	case "openai":
		captioner, err := caption.NewOpenAICaptioner(caption.OpenAIOptions{
			APIKey:  cfg.OpenAIAPIKey,
			Model:   cfg.OpenAIModel,
			BaseURL: cfg.OpenAIBaseURL,
		})
		if err != nil {
			logger.Warn().Err(err).Msg("openai captioner unavailable, using fallback captions")
			return caption.Fallback{}
		}
		return captioner
	case "fallback":
		return caption.Fallback{}
	default:
		if cfg.GeminiAPIKey == "" {
			logger.Warn().Msg("GEMINI_API_KEY not set, using fallback captions")
			return caption.Fallback{}
		}
		return caption.NewGeminiCaptioner(caption.GeminiOptions{
			APIKey:  cfg.GeminiAPIKey,
			BaseURL: cfg.GeminiBaseURL,
			Model:   cfg.GeminiModel,
			Logger:  &logger,
		})
	}
}
