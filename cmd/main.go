package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/aws/aws-lambda-go/lambda"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	awsdynamodb "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	awsssm "github.com/aws/aws-sdk-go-v2/service/ssm"

	"voice-relay/handler"
	"voice-relay/internal/config"
	"voice-relay/internal/integrations/paramstore"
	"voice-relay/internal/llm"
	"voice-relay/internal/repository"
	"voice-relay/internal/session"
	"voice-relay/internal/usecase"
)

const shutdownTimeout = 10 * time.Second

func main() {
	ctx := context.Background()

	// ---- Configuration (read only here) ----
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "err", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.SlogLevel()}))
	slog.SetDefault(logger)

	// ---- AWS SDK config (only when a component needs it) ----
	var (
		ssmClient *paramstore.Client
		archive   *repository.Client
	)
	if cfg.LLMAPIKeyParam != "" || cfg.CallArchiveTable != "" {
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
		if err != nil {
			logger.Error("failed to load AWS config", "err", err)
			os.Exit(1)
		}
		if cfg.LLMAPIKeyParam != "" {
			ssmClient, err = paramstore.New(awsssm.NewFromConfig(awsCfg))
			if err != nil {
				logger.Error("failed to create SSM client", "err", err)
				os.Exit(1)
			}
		}
		if cfg.CallArchiveTable != "" {
			archive, err = repository.New(awsdynamodb.NewFromConfig(awsCfg), cfg.CallArchiveTable)
			if err != nil {
				logger.Error("failed to create call archive", "err", err)
				os.Exit(1)
			}
		}
	}

	apiKey := cfg.LLMAPIKey
	if ssmClient != nil {
		apiKey, err = ssmClient.APIKey(ctx, cfg.LLMAPIKeyParam)
		if err != nil {
			logger.Error("failed to load API key", "param", cfg.LLMAPIKeyParam, "err", err)
			os.Exit(1)
		}
	}
	if strings.TrimSpace(apiKey) == "" {
		logger.Error("no LLM API key configured; set LLM_API_KEY, ANTHROPIC_API_KEY or LLM_API_KEY_PARAM")
	}

	// ---- Clients ----
	settings := llm.Settings{
		Provider:       cfg.LLMProvider,
		APIKey:         apiKey,
		BaseURL:        cfg.LLMBaseURL,
		Model:          cfg.LLMModel,
		MaxTokens:      cfg.MaxTokens,
		YandexFolderID: cfg.YandexFolderID,
	}
	model := settings.ModelName()
	backend, err := llm.New(settings)
	if err != nil {
		logger.Error("failed to create completion backend", "provider", cfg.LLMProvider, "err", err)
		os.Exit(1)
	}

	store := session.New(cfg.MaxTurns, session.WithIdleTTL(cfg.SessionIdleTTL))

	relayOpts := []usecase.RelayOption{usecase.WithLogger(logger)}
	if archive != nil {
		relayOpts = append(relayOpts, usecase.WithArchive(archive))
	}
	relay, err := usecase.NewRelay(store, llm.WithTimeout(backend, cfg.LLMTimeout), cfg.SystemPrompt, relayOpts...)
	if err != nil {
		logger.Error("failed to create relay", "err", err)
		os.Exit(1)
	}

	// ---- Handler ----
	h, err := handler.NewHandler(relay, store,
		handler.WithSecret(cfg.VapiSecret),
		handler.WithBackendInfo(cfg.LLMProvider, model),
		handler.WithLogger(logger),
	)
	if err != nil {
		logger.Error("failed to create handler", "err", err)
		os.Exit(1)
	}

	if cfg.Runtime == config.RuntimeLambda {
		logger.Info("voice relay starting on lambda", "provider", cfg.LLMProvider, "model", model)
		lambda.Start(h.HandleAPIGateway)
		return
	}

	if cfg.RunSweeper() {
		sweeper, err := session.NewSweeper(store, cfg.SessionSweepSchedule, logger)
		if err != nil {
			logger.Error("failed to create session sweeper", "err", err)
			os.Exit(1)
		}
		if err := sweeper.Start(); err != nil {
			logger.Error("failed to start session sweeper", "err", err)
			os.Exit(1)
		}
		defer sweeper.Stop()
	}

	if err := serveHTTP(cfg, h, model, logger); err != nil {
		logger.Error("server failed", "err", err)
		os.Exit(1)
	}
}

func serveHTTP(cfg *config.Config, h http.Handler, model string, logger *slog.Logger) error {
	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           h,
		ReadHeaderTimeout: 5 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	logger.Info("voice relay listening",
		"provider", cfg.LLMProvider,
		"model", model,
		"webhook", "http://localhost"+cfg.Addr()+"/webhook",
		"health", "http://localhost"+cfg.Addr()+"/health",
		"secret_required", cfg.VapiSecret != "",
	)

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
