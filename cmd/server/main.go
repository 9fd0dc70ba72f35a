package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/mwafrikacpu/Drowsiness-and-Yawn-Detection-System/internal/cache"
	"github.com/mwafrikacpu/Drowsiness-and-Yawn-Detection-System/internal/capability"
	"github.com/mwafrikacpu/Drowsiness-and-Yawn-Detection-System/internal/config"
	"github.com/mwafrikacpu/Drowsiness-and-Yawn-Detection-System/internal/database"
	"github.com/mwafrikacpu/Drowsiness-and-Yawn-Detection-System/internal/detection"
	"github.com/mwafrikacpu/Drowsiness-and-Yawn-Detection-System/internal/engine"
	"github.com/mwafrikacpu/Drowsiness-and-Yawn-Detection-System/internal/handlers"
	"github.com/mwafrikacpu/Drowsiness-and-Yawn-Detection-System/internal/metrics"
	"github.com/mwafrikacpu/Drowsiness-and-Yawn-Detection-System/internal/services"
	"github.com/mwafrikacpu/Drowsiness-and-Yawn-Detection-System/internal/utils"
)

func main() {
	configPath := flag.String("config", "", "Path to YAML config file")
	flag.Parse()

	cfg := config.LoadConfig(*configPath)

	logger := utils.NewLogger(cfg.LogLevel, cfg.LogJSON)
	defer logger.Sync()
	zap.ReplaceGlobals(logger)

	logger.Info("Starting DrowsiSense server",
		zap.String("http_port", cfg.HTTPPort),
		zap.String("environment", cfg.Environment),
		zap.String("override_mode", cfg.OverrideMode))

	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)

	ctx := context.Background()

	db, err := database.InitDB(cfg.DSN(), logger)
	if err != nil {
		logger.Fatal("Database initialization failed", zap.String("dsn", cfg.DSNForLog()), zap.Error(err))
	}
	defer db.CloseDB()

	cacheProvider := buildCache(ctx, cfg, logger)
	defer cacheProvider.Close()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	if err := metrics.Register(reg); err != nil {
		logger.Fatal("Metrics registration failed", zap.Error(err))
	}

	hub := handlers.NewHub(logger)

	alertService := services.NewAlertService(db, cfg.AlertCooldown, hub.BroadcastAlert, logger)

	camera := detection.NewCameraCapture(cfg.CameraDevice)
	prober := capability.NewProber(
		capability.ParseOverrideMode(cfg.OverrideMode),
		camera.Available,
		capability.VisionHealthProbe(cfg.VisionServiceURL, logger),
		cfg.CameraProbeTimeout,
		cfg.VisionProbeTimeout,
		logger,
	)

	factory := capability.StrategyFactory{
		NewLive: func() detection.Strategy {
			return detection.NewLive(detection.LiveConfig{
				CameraDevice:  cfg.CameraDevice,
				StreamURL:     cfg.VisionStreamURL,
				FrameInterval: cfg.VisionFrameInterval,
				FrameTimeout:  cfg.VisionProbeTimeout,
			}, logger)
		},
		NewSimulated: func() detection.Strategy {
			return detection.NewSimulated(detection.SimulatedConfig{
				Tick: cfg.SimulatedTick,
				Seed: cfg.SimulatedSeed,
			}, logger)
		},
	}

	eng := engine.New(
		engine.Config{DrowsyFrames: cfg.DrowsyFrames, YawnFrames: cfg.YawnFrames},
		prober, factory, db, alertService, cacheProvider, hub.BroadcastEvent, logger,
	)
	if err := eng.Start(ctx); err != nil {
		logger.Fatal("Engine failed to start", zap.Error(err))
	}
	defer eng.Stop()

	mux := http.NewServeMux()
	handler := handlers.NewHandler(eng, db, cacheProvider, hub, cfg.CORSOrigins, logger)
	handler.Register(mux)
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	port := strings.TrimPrefix(cfg.HTTPPort, ":")
	httpServer := &http.Server{
		Addr:         ":" + port,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("HTTP server listening", zap.String("port", port))
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("HTTP server failed", zap.Error(err))
		}
	}()

	<-done
	logger.Info("Shutting down...")

	eng.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("Error shutting down HTTP server", zap.Error(err))
	} else {
		logger.Info("HTTP server gracefully stopped")
	}

	hub.CloseAll()
	logger.Info("Goodbye!")
}

// buildCache prefers Redis and degrades to the in-process cache so the
// dashboard keeps working without it.
func buildCache(ctx context.Context, cfg *config.Config, logger *zap.Logger) cache.Provider {
	if !cfg.CacheEnabled {
		logger.Info("Cache disabled, using in-memory provider")
		return cache.NewMemoryProvider()
	}

	provider, err := cache.NewRedisProvider(ctx, cache.RedisConfig{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	}, logger)
	if err != nil {
		logger.Warn("Redis unavailable, falling back to in-memory cache", zap.Error(err))
		return cache.NewMemoryProvider()
	}
	return provider
}
