package main

import (
	"context"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/lexaid-ai/lexaid/internal/listeners"
	"github.com/lexaid-ai/lexaid/internal/models"
	"github.com/lexaid-ai/lexaid/pkg/alerting"
	"github.com/lexaid-ai/lexaid/pkg/cache"
	"github.com/lexaid-ai/lexaid/pkg/classifier"
	"github.com/lexaid-ai/lexaid/pkg/config"
	"github.com/lexaid-ai/lexaid/pkg/convo"
	"github.com/lexaid-ai/lexaid/pkg/database"
	"github.com/lexaid-ai/lexaid/pkg/events"
	"github.com/lexaid-ai/lexaid/pkg/logger"
	"github.com/lexaid-ai/lexaid/pkg/response"
	"github.com/lexaid-ai/lexaid/pkg/synthesizer"
	"github.com/lexaid-ai/lexaid/pkg/transcriber"
	"github.com/lexaid-ai/lexaid/pkg/voice"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

func main() {
	cfg := config.Load()

	if err := logger.Init(&cfg.Log, cfg.Server.Mode); err != nil {
		panic(err)
	}
	defer logger.Sync()

	db, err := database.Open(cfg.Database.Driver, cfg.Database.DSN)
	if err != nil {
		logger.Fatal("database open failed", zap.Error(err))
	}
	if err := models.Migrate(db); err != nil {
		logger.Fatal("migration failed", zap.Error(err))
	}

	store, err := cache.NewCache(cfg.Cache)
	if err != nil {
		logger.Fatal("cache init failed", zap.Error(err))
	}
	defer store.Close()

	adapters, err := buildAdapters(cfg)
	if err != nil {
		logger.Fatal("adapter init failed", zap.Error(err))
	}

	bus := events.GetEventBus()
	notifier := alerting.NewHTTPNotifier(cfg.Alerting.Endpoint, cfg.Alerting.APIKey)
	listeners.NewEmergencyListener(db, notifier, logger.Lg).Register(bus)

	locations := voice.NewCachedLocationSource(store)
	registry := voice.NewRegistry(db, bus, adapters, locations, voice.SessionConfig{
		FlushBytes:         cfg.Voice.FlushBytes,
		FlushInterval:      cfg.Voice.FlushInterval,
		EmergencyThreshold: cfg.Voice.EmergencyThreshold,
		TurnLengthLimit:    cfg.Voice.TurnLengthLimit,
		AdapterTimeout:     cfg.Voice.AdapterTimeout,
		LatencyWindowSize:  cfg.Voice.LatencyWindowSize,
	}, cfg.Voice.IdleTTL, logger.Lg)
	registry.StartReaper()
	defer registry.StopReaper()

	gin.SetMode(ginMode(cfg.Server.Mode))
	router := gin.New()
	router.Use(gin.Recovery())

	router.GET("/healthz", func(c *gin.Context) {
		response.OK(c, gin.H{"sessions": registry.Count()})
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	handler := voice.NewHandler(db, registry, locations, logger.Lg)
	handler.Register(router.Group("/api/voice"))

	server := &http.Server{Addr: cfg.Server.Addr, Handler: router}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		logger.Info("server listening", zap.String("addr", cfg.Server.Addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown failed", zap.Error(err))
	}
}

// buildAdapters wires the four external model boundaries from config
func buildAdapters(cfg *config.Config) (voice.Adapters, error) {
	transcribe, err := transcriber.NewFactory().Create(transcriber.Config{
		Vendor:  transcriber.Vendor(cfg.Adapters.TranscriberVendor),
		APIKey:  cfg.Adapters.OpenAIAPIKey,
		BaseURL: transcriberBaseURL(cfg),
	})
	if err != nil {
		return voice.Adapters{}, err
	}

	synth, err := synthesizer.NewFactory().Create(synthesizer.Config{
		Vendor:  synthesizer.Vendor(cfg.Adapters.SynthesizerVendor),
		APIKey:  cfg.Adapters.OpenAIAPIKey,
		BaseURL: synthesizerBaseURL(cfg),
	})
	if err != nil {
		return voice.Adapters{}, err
	}

	var classify classifier.Service = classifier.Disabled{}
	if cfg.Adapters.ClassifierURL != "" {
		classify, err = classifier.NewHTTPService(classifier.Config{
			BaseURL: cfg.Adapters.ClassifierURL,
			APIKey:  cfg.Adapters.ClassifierAPIKey,
		})
		if err != nil {
			return voice.Adapters{}, err
		}
	} else {
		logger.Warn("no classifier configured, emergency audio detection disabled")
	}

	engine := convo.NewOpenAIEngine(convo.Config{
		APIKey:       cfg.Adapters.OpenAIAPIKey,
		BaseURL:      cfg.Adapters.OpenAIBaseURL,
		Model:        cfg.Adapters.LLMModel,
		SystemPrompt: cfg.Adapters.SystemPrompt,
	})

	return voice.Adapters{
		Transcriber: transcribe,
		Classifier:  classify,
		Engine:      engine,
		Synthesizer: synth,
	}, nil
}

func transcriberBaseURL(cfg *config.Config) string {
	if cfg.Adapters.TranscriberVendor == "http" {
		return cfg.Adapters.TranscriberURL
	}
	return cfg.Adapters.OpenAIBaseURL
}

func synthesizerBaseURL(cfg *config.Config) string {
	if cfg.Adapters.SynthesizerVendor == "http" {
		return cfg.Adapters.SynthesizerURL
	}
	return cfg.Adapters.OpenAIBaseURL
}

func ginMode(mode string) string {
	switch mode {
	case "dev", "development", "debug":
		return gin.DebugMode
	case "test":
		return gin.TestMode
	}
	return gin.ReleaseMode
}
