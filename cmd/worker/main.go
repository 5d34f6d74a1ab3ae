package main

import (
	"context"
	"errors"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"server/internal/dispatch"
	"server/internal/domain"
	"server/internal/infra"
	"server/internal/providers"
	"server/internal/storage"
)

func main() {
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv, "worker")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	dbpool, err := infra.NewDBPool(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect database")
	}
	defer dbpool.Close()

	store, err := newObjectStore(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to init artifact storage")
	}

	dispatcher := &dispatch.Dispatcher{
		SQL:          infra.NewSQLRunner(dbpool, logger),
		Providers:    newRegistry(cfg, logger),
		Store:        store,
		Callbacks:    dispatch.NewCallbackClient(cfg.CallbackBaseURL, cfg.CallbackSecret),
		Logger:       logger,
		Concurrency:  cfg.WorkerConcurrency,
		PollInterval: 2 * time.Second,
	}

	logger.Info().Int("concurrency", cfg.WorkerConcurrency).Msg("worker started")
	if err := dispatcher.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Fatal().Err(err).Msg("worker stopped")
	}
	logger.Info().Msg("worker stopped")
}

func newObjectStore(ctx context.Context, cfg *infra.Config) (storage.ObjectStore, error) {
	if cfg.MinioEndpoint != "" {
		return storage.NewMinioStore(ctx, cfg.MinioEndpoint, cfg.MinioAccessKey, cfg.MinioSecretKey, cfg.MinioBucket, cfg.MinioUseSSL)
	}
	return storage.NewFileStore(cfg.StoragePath, cfg.PublicBaseURL)
}

// newRegistry maps every module to its adapter. Module families without a
// configured endpoint fall back to the synthetic generator.
func newRegistry(cfg *infra.Config, logger infra.Logger) providers.Registry {
	registry := providers.Registry{}
	families := []struct {
		modules  []domain.Module
		endpoint string
		model    string
	}{
		{[]domain.Module{domain.ModuleChat}, cfg.ProviderChatEndpoint, cfg.ProviderModelChat},
		{[]domain.Module{domain.ModuleImageGenerate, domain.ModuleImageEnhance}, cfg.ProviderImageEndpoint, cfg.ProviderModelImage},
		{[]domain.Module{domain.ModuleSpeechTTS}, cfg.ProviderSpeechEndpoint, cfg.ProviderModelSpeech},
		{[]domain.Module{domain.ModuleVideoGenerate, domain.ModuleVideoAnimate}, cfg.ProviderVideoEndpoint, cfg.ProviderModelVideo},
	}
	for _, family := range families {
		for _, module := range family.modules {
			if family.endpoint == "" {
				registry[module] = providers.NewSynthetic(module)
				continue
			}
			adapter, err := providers.NewHTTPAdapter(providers.HTTPOptions{
				Endpoint: family.endpoint,
				Model:    family.model,
				APIKey:   cfg.ProviderAPIKey,
				Logger:   &logger,
			})
			if err != nil {
				logger.Warn().Err(err).Str("module", string(module)).Msg("provider endpoint rejected, using synthetic")
				registry[module] = providers.NewSynthetic(module)
				continue
			}
			registry[module] = adapter
		}
	}
	return registry
}
