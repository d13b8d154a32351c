// VoiceBot - battery swap driver support chat server
package main

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/dimiro1/banner"
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	"github.com/shubhsahu23/VoiceBot/internal/api"
	"github.com/shubhsahu23/VoiceBot/internal/config"
	"github.com/shubhsahu23/VoiceBot/internal/conversation"
	"github.com/shubhsahu23/VoiceBot/internal/escalation"
	"github.com/shubhsahu23/VoiceBot/internal/extract"
	"github.com/shubhsahu23/VoiceBot/internal/feed"
	"github.com/shubhsahu23/VoiceBot/internal/lang"
	"github.com/shubhsahu23/VoiceBot/internal/llm"
	"github.com/shubhsahu23/VoiceBot/internal/middleware"
	"github.com/shubhsahu23/VoiceBot/internal/notify"
	"github.com/shubhsahu23/VoiceBot/internal/pipeline"
	"github.com/shubhsahu23/VoiceBot/internal/redact"
	"github.com/shubhsahu23/VoiceBot/internal/speech"
	"github.com/shubhsahu23/VoiceBot/internal/store"
)

const bannerTemplate = "{{ .Title \"VoiceBot\" \"\" 0 }}\nDriver support chat\n"

func main() {
	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: parseLevel(cfg.LogLevel),
	}))
	slog.SetDefault(logger)
	redact.SetEnabled(cfg.RedactPII)

	banner.Init(os.Stdout, true, true, bytes.NewBufferString(bannerTemplate))
	slog.Info("Starting server", "port", cfg.Port, "llm_provider", cfg.LLM.Provider, "tts", cfg.TTS.Enabled)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Initialize dependencies.
	repo, err := store.NewSQLite(cfg.DBPath)
	if err != nil {
		slog.Error("Failed to initialize database", "error", err)
		os.Exit(1)
	}
	defer func() {
		if closeErr := repo.Close(); closeErr != nil {
			slog.Error("Failed to close repository", "error", closeErr)
		}
	}()

	if err := repo.Ping(ctx); err != nil {
		slog.Error("Database health check failed", "error", err)
		os.Exit(1)
	}
	slog.Info("Database connected", "path", cfg.DBPath)

	classifier, err := newPipeline(ctx, cfg, logger)
	if err != nil {
		slog.Error("Failed to initialize intent pipeline", "error", err)
		os.Exit(1)
	}

	notifiers, closeNotifiers := newNotifiers(cfg, logger)
	defer closeNotifiers()

	machine := escalation.NewMachine(repo, escalation.Policy(cfg.Escalation.ActivePolicy),
		escalation.WithNotifier(notifiers),
		escalation.WithLogger(logger),
	)
	defer machine.Wait()

	hub := feed.NewHub(logger)
	messages := feed.NewPublishingStore(repo, hub)

	routerOpts := []conversation.Option{conversation.WithLogger(logger)}
	if cfg.TTS.Enabled {
		synth, err := speech.NewPolly(ctx, cfg.TTS.Region)
		if err != nil {
			slog.Warn("Speech synthesis disabled", "error", err)
		} else {
			routerOpts = append(routerOpts, conversation.WithSpeaker(speech.NewSpeaker(synth, cfg.TTS.Timeout, cfg.TTS.Retries, logger)))
			slog.Info("Speech synthesis enabled", "region", cfg.TTS.Region)
		}
	}
	router := conversation.NewRouter(messages, repo, classifier, machine, routerOpts...)

	escalation.StartSweeper(ctx, machine, cfg.Escalation.StaleAfter, cfg.Escalation.SweepInterval, router.CloseStale)

	handler := api.NewHandler(repo, router, machine, repo, api.Options{
		MaxBodyBytes: cfg.MaxBodyBytes,
		HistoryLimit: cfg.HistoryLimit,
		ChatLimiter:  api.NewRateLimiter(ctx, cfg.ChatRateLimit, time.Minute),
	})
	wsHandler := feed.NewWebSocketHandler(hub, repo, cfg.HistoryLimit, wsOriginPatterns(cfg.CORSAllowedOrigins), logger)

	// Setup router.
	r := chi.NewRouter()

	// Global middleware.
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Heartbeat("/health"))
	r.Use(middleware.CORS(cfg.CORSAllowedOrigins))

	handler.RegisterRoutes(r)
	r.Get("/ws/chat/{driverID}", wsHandler.ServeHTTP)

	// The websocket feed is long lived, so there is no WriteTimeout.
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 0,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		slog.Info("Server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Server failed", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for shutdown signal.
	<-ctx.Done()
	stop()

	slog.Info("Shutting down gracefully...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("Server forced to shutdown", "error", err)
	}

	slog.Info("Server stopped successfully")
}

func newPipeline(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*pipeline.Pipeline, error) {
	extractor, err := extract.New()
	if err != nil {
		return nil, err
	}

	var (
		completer  llm.Completer
		translator lang.Translator
	)
	if cfg.LLM.Enabled() {
		client, err := llm.New(ctx, cfg.LLM)
		if err != nil {
			return nil, err
		}
		completer = llm.WithRetry(client, cfg.LLM.Retries, 500*time.Millisecond, logger)
		translator = llm.NewTranslator(completer, cfg.LLM.TranslateMaxTokens)
		slog.Info("Completion model ready", "provider", cfg.LLM.Provider, "model", cfg.LLM.Model)
	} else {
		slog.Warn("No completion model configured, every chat turn will be escalated")
	}

	return pipeline.New(
		completer,
		extractor,
		lang.NewDetector(logger),
		lang.NewReconciler(translator, logger),
		pipeline.Settings{
			Timeout:          cfg.LLM.Timeout,
			TranslateTimeout: cfg.LLM.Timeout,
			MaxTokens:        cfg.LLM.MaxTokens,
			Temperature:      cfg.LLM.Temperature,
		},
		logger,
	), nil
}

func newNotifiers(cfg *config.Config, logger *slog.Logger) (notify.Multi, func()) {
	var (
		notifiers notify.Multi
		closers   []func() error
	)
	if cfg.Kafka.Enabled() {
		p := notify.NewKafkaPublisher(cfg.Kafka.Brokers, cfg.Kafka.TicketTopic, logger)
		notifiers = append(notifiers, p)
		closers = append(closers, p.Close)
		slog.Info("Publishing ticket events to Kafka", "topic", cfg.Kafka.TicketTopic)
	}
	if cfg.Twilio.Enabled() {
		notifiers = append(notifiers, notify.NewSMSAlerter(cfg.Twilio.AccountSID, cfg.Twilio.AuthToken, cfg.Twilio.FromNumber, cfg.Twilio.AlertNumbers, logger))
		slog.Info("Emergency SMS alerts enabled", "recipients", len(cfg.Twilio.AlertNumbers))
	}
	return notifiers, func() {
		for _, c := range closers {
			if err := c(); err != nil {
				slog.Error("Failed to close notifier", "error", err)
			}
		}
	}
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// wsOriginPatterns converts CORS origins to host patterns for the websocket
// origin check.
func wsOriginPatterns(origins []string) []string {
	patterns := make([]string, 0, len(origins))
	for _, o := range origins {
		o = strings.TrimPrefix(strings.TrimPrefix(o, "https://"), "http://")
		patterns = append(patterns, o)
	}
	return patterns
}
