// Package main is the entry point for the API server.
package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/capitalize-ai/stylemirror/internal/assist"
	"github.com/capitalize-ai/stylemirror/internal/bus"
	"github.com/capitalize-ai/stylemirror/internal/config"
	"github.com/capitalize-ai/stylemirror/internal/handler"
	"github.com/capitalize-ai/stylemirror/internal/llm"
	natsclient "github.com/capitalize-ai/stylemirror/internal/nats"
	"github.com/capitalize-ai/stylemirror/internal/seed"
	"github.com/capitalize-ai/stylemirror/internal/service"
	"github.com/capitalize-ai/stylemirror/internal/store"
	"github.com/capitalize-ai/stylemirror/pkg/logger"
	"github.com/capitalize-ai/stylemirror/pkg/tracing"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log, err := logger.FromEnv(cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()
	logger.SetGlobal(log)

	if err := run(cfg, log); err != nil {
		log.Error("server exited", zap.Error(err))
		os.Exit(1)
	}
}

func run(cfg *config.Config, log *logger.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log.Info("starting API server", zap.String("provider", cfg.LLMProvider), zap.Bool("demo_mode", cfg.DemoMode()))

	// Initialize tracing if enabled
	if cfg.TracingEnabled {
		tp, err := tracing.InitTracer(ctx, "stylemirror", cfg.TracingEndpoint)
		if err != nil {
			log.Warn("failed to initialize tracing", zap.Error(err))
		} else {
			defer tracing.Shutdown(context.Background(), tp)
		}
	}

	// Inference backend; nil means demo mode
	provider, err := llm.ParseProvider(cfg.LLMProvider)
	if err != nil {
		return err
	}
	backend, err := assist.NewBackend(ctx, provider, llm.Config{
		APIKey:  cfg.APIKey(),
		Model:   cfg.LLMModel,
		BaseURL: cfg.LLMBaseURL,
		Timeout: cfg.LLMTimeout,
	})
	if err != nil {
		log.Warn("failed to create LLM client, using demo mode", zap.Error(err))
		backend = nil
	}
	if backend == nil {
		log.Warn("no inference credential configured, style analysis and drafts use demo output",
			zap.String("provider", string(provider)),
			zap.String("reason", "no credential"),
		)
	}

	// Initialize services
	events := bus.New()
	orchestrator := service.NewOrchestrator(
		store.New(),
		assist.NewStyleClient(backend, log),
		assist.NewReplyClient(backend, log),
		log,
		service.WithPublisher(events),
	)
	// Early returns only. The normal path drains after server shutdown.
	defer orchestrator.Wait()

	contacts, err := seed.Load(cfg.SeedFile)
	if err != nil {
		return fmt.Errorf("load seed contacts: %w", err)
	}
	if err := orchestrator.Load(ctx, contacts); err != nil {
		return fmt.Errorf("load contacts: %w", err)
	}
	log.Info("contacts loaded", zap.Int("count", len(contacts)), zap.String("active", orchestrator.ActiveID()))

	// Optional NATS event forwarding
	var (
		natsConn       handler.ConnChecker
		history        handler.HistoryReader
		stopForwarding = func() {}
	)
	if cfg.NATSURL != "" {
		natsClient, err := natsclient.Connect(ctx, natsclient.Config{
			URL:      cfg.NATSURL,
			CAFile:   cfg.NATSCAFile,
			CertFile: cfg.NATSCertFile,
			KeyFile:  cfg.NATSKeyFile,
			Token:    cfg.NATSToken,
			Timeout:  5 * time.Second,
		}, log)
		if err != nil {
			return err
		}
		defer natsClient.Close()

		streamManager := natsclient.NewStreamManager(natsClient)
		if err := streamManager.EnsureStream(ctx); err != nil {
			return err
		}

		forwarder := natsclient.NewForwarder(streamManager, log)
		forwardCtx, cancelForward := context.WithCancel(context.Background())
		forwardDone := make(chan struct{})
		go func() {
			defer close(forwardDone)
			forwarder.Run(forwardCtx, events)
		}()
		stopForwarding = func() {
			cancelForward()
			<-forwardDone
		}

		natsConn = natsClient
		history = streamManager
		log.Info("forwarding contact events to NATS", zap.String("stream", natsclient.StreamName))
	}

	// Initialize handlers
	router := handler.NewRouter(handler.RouterConfig{
		Health:            handler.NewHealthHandler(natsConn, backend == nil, orchestrator.ContactCount),
		Contacts:          handler.NewContactHandler(orchestrator, history, log),
		Workflows:         handler.NewWorkflowHandler(orchestrator, log),
		Events:            handler.NewEventHandler(events, orchestrator, log),
		Logger:            log,
		AllowedOrigins:    cfg.AllowedOrigins,
		RateLimitRequests: cfg.RateLimitRequests,
		RateLimitWindow:   cfg.RateLimitWindow,
	})

	// Create HTTP server
	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  cfg.ServerReadTimeout,
		WriteTimeout: cfg.ServerWriteTimeout,
		IdleTimeout:  120 * time.Second,
		// Cancelled on shutdown so open event streams end.
		BaseContext: func(net.Listener) context.Context { return ctx },
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info("server listening", zap.String("port", cfg.ServerPort))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	// Wait for shutdown signal
	var runErr error
	select {
	case <-ctx.Done():
	case err := <-serveErr:
		if err != nil {
			runErr = fmt.Errorf("server error: %w", err)
		}
	}

	log.Info("shutting down server")

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("server forced to shutdown", zap.Error(err))
	}

	// Analyses still running publish their results before forwarding stops.
	orchestrator.Wait()
	stopForwarding()

	log.Info("server stopped")
	return runErr
}
