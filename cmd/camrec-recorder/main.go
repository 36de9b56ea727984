package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/edirooss/camrec/internal/config"
	"github.com/edirooss/camrec/internal/infrastructure/netprobe"
	"github.com/edirooss/camrec/internal/recorder"
)

var (
	configPath   = flag.String("config", envOr("CAMREC_CONFIG", "./config.json"), "camera document (JSON)")
	settingsPath = flag.String("settings", envOr("CAMREC_SETTINGS", "recorder.yaml"), "recorder settings (YAML, optional)")
)

func init() {
	// Handle version display
	handleVersion()
}

func main() {
	log := buildLogger()
	log = log.Named("main")

	code := run(log)
	_ = log.Sync()
	os.Exit(code)
}

func run(log *zap.Logger) int {
	settings, err := config.LoadRecorderSettings(*settingsPath)
	if err != nil {
		log.Error("failed to load recorder settings", zap.Error(err))
		return 1
	}
	doc, err := config.LoadDocument(*configPath)
	if err != nil {
		log.Error("failed to load camera config", zap.Error(err))
		return 1
	}
	policy, err := recorder.ParsePolicy(settings.FailurePolicy, settings.RestartCooldown)
	if err != nil {
		log.Error("invalid recorder settings", zap.Error(err))
		return 1
	}
	mode, err := recorder.ParseStartupMode(settings.StartupMode)
	if err != nil {
		log.Error("invalid recorder settings", zap.Error(err))
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if settings.MetricsAddr != "" {
		srv := serveMetrics(log, settings.MetricsAddr)
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	prober := netprobe.New(log, netprobe.Options{
		ConnectTimeout: settings.ProbeConnectTimeout,
		RetryInterval:  settings.ProbeRetryInterval,
		MaxAttempts:    settings.ProbeMaxAttempts,
	})
	launcher := recorder.NewCaptureLauncher(log, prober, recorder.LauncherOptions{
		FFmpegPath:    settings.FFmpegPath,
		BaseOutputDir: doc.BaseOutputDir,
		StderrLines:   settings.StderrLines,
	})
	sup := recorder.New(log, launcher, doc.Cameras, doc.Profile, recorder.Options{
		PollInterval:       settings.PollInterval,
		ShutdownGrace:      settings.ShutdownGrace,
		StartupMode:        mode,
		StartupConcurrency: settings.StartupConcurrency,
		Policy:             policy,
	})

	log.Info("recorder starting",
		zap.String("config", *configPath),
		zap.Int("cameras", len(doc.Enabled())),
		zap.String("output", doc.BaseOutputDir),
		zap.Duration("poll_interval", settings.PollInterval))

	err = sup.Run(ctx)
	if err != nil {
		log.Error("recorder aborted", zap.Error(err))
	} else {
		log.Info("recorder stopped")
	}
	return recorder.ExitCode(err)
}

func serveMetrics(log *zap.Logger, addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 2 * time.Second,
	}
	go func() {
		log.Info("serving metrics", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Warn("metrics server failed", zap.Error(err))
		}
	}()
	return srv
}

// handleVersion prints build metadata and exits when -v/--version is provided.
func handleVersion() {
	v := flag.Bool("v", false, "print version and exit")
	flag.BoolVar(v, "version", false, "print version and exit")
	flag.Parse()

	if *v {
		fmt.Printf("camrec-recorder %s (commit %s, built %s)\n", config.Version, config.GitCommit, config.BuildDate)
		os.Exit(0)
	}
}

// helpers

func buildLogger() *zap.Logger {
	logConfig := zap.NewDevelopmentConfig()
	logConfig.EncoderConfig.TimeKey = ""
	logConfig.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	logConfig.DisableStacktrace = true
	logConfig.DisableCaller = true
	return zap.Must(logConfig.Build())
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
