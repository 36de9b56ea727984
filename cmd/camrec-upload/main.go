package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/edirooss/camrec/internal/config"
	"github.com/edirooss/camrec/internal/service"
)

var (
	configPath = flag.String("config", envOr("CAMREC_CONFIG", "./config.json"), "camera document (JSON)")
	rclonePath = flag.String("rclone", envOr("CAMREC_RCLONE", service.DefaultRclonePath), "rclone executable")
	timeout    = flag.Duration("timeout", 2*time.Hour, "upper bound for one upload pass (0 = none)")
)

func init() {
	// Handle version display
	handleVersion()
}

// An upload pass that fails is logged and exits 0 so the timer keeps
// firing; only an unreadable document is a hard failure.
func main() {
	console := buildLogger()

	data, err := os.ReadFile(*configPath)
	if err != nil {
		console.Error("cannot read camera config", zap.String("path", *configPath), zap.Error(err))
		_ = console.Sync()
		os.Exit(1)
	}
	doc, err := config.ParseDocument(data)
	if err != nil {
		console.Error("cannot parse camera config", zap.String("path", *configPath), zap.Error(err))
		_ = console.Sync()
		os.Exit(1)
	}

	log, closeFile := teeToFile(console, doc.LogFile)
	defer closeFile()
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	off := service.NewOffloader(log, service.OffloadOptions{RclonePath: *rclonePath, Timeout: *timeout})
	_ = off.Run(ctx, doc) // outcome already logged
}

// teeToFile adds an append-only sink at path next to the console. Without a
// usable path the console logger is returned alone.
func teeToFile(console *zap.Logger, path string) (*zap.Logger, func()) {
	if path == "" {
		return console, func() {}
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		console.Warn("cannot open upload log file; logging to console only", zap.String("path", path), zap.Error(err))
		return console, func() {}
	}

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.EncodeTime = zapcore.TimeEncoderOfLayout(time.DateTime)
	encCfg.EncodeLevel = zapcore.CapitalLevelEncoder
	fileCore := zapcore.NewCore(zapcore.NewConsoleEncoder(encCfg), zapcore.AddSync(f), zap.InfoLevel)

	log := console.WithOptions(zap.WrapCore(func(c zapcore.Core) zapcore.Core {
		return zapcore.NewTee(c, fileCore)
	}))
	return log, func() { _ = f.Close() }
}

// handleVersion prints build metadata and exits when -v/--version is provided.
func handleVersion() {
	v := flag.Bool("v", false, "print version and exit")
	flag.BoolVar(v, "version", false, "print version and exit")
	flag.Parse()

	if *v {
		fmt.Printf("camrec-upload %s (commit %s, built %s)\n", config.Version, config.GitCommit, config.BuildDate)
		os.Exit(0)
	}
}

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
