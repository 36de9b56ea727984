package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/secure"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/edirooss/camrec/internal/config"
	"github.com/edirooss/camrec/internal/domain/principal"
	"github.com/edirooss/camrec/internal/http/handler"
	mw "github.com/edirooss/camrec/internal/http/middleware"
	"github.com/edirooss/camrec/internal/metrics"
	"github.com/edirooss/camrec/internal/repo"
	"github.com/edirooss/camrec/internal/service"
)

var settingsPath = flag.String("settings", envOr("CAMREC_SERVER_SETTINGS", "camrec-server.yaml"), "server settings (YAML, optional)")

func init() {
	// Handle version display
	handleVersion()
}

func main() {
	// Read env
	isDev := os.Getenv("ENV") == "dev"

	// Load config
	settings, err := config.LoadServerSettings(*settingsPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Create Zap logger
	log := buildLogger()
	defer log.Sync()
	log = log.Named("main")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Create Gin router
	if !isDev {
		gin.SetMode(gin.ReleaseMode)
	}
	gin.DefaultWriter = zap.NewStdLog(log.Named("gin")).Writer() // Configure Gin's logger to use Zap
	r := gin.New()

	rdb := repo.NewRedisClient(ctx, log, settings.RedisAddr, 0)
	defer rdb.Close()

	store := service.NewConfigStore(log, settings.ConfigPath)
	authsvc := service.NewAuthService(log, repo.NewPrincipalRepository(log, rdb), store)
	units, closeUnits, err := service.NewUnitManager(settings.UnitBackend, settings.UseSudo)
	if err != nil {
		log.Fatal("unit manager creation failed", zap.Error(err), zap.String("backend", settings.UnitBackend))
	}
	defer closeUnits()

	// Apply Gin middlewares
	{
		r.Use(gin.Recovery()) // Recovery first (outermost)
		r.Use(mw.RequestID())

		if isDev { // Enable CORS for a local UI dev server
			origins := settings.AllowOrigins
			if len(origins) == 0 {
				origins = []string{"http://localhost:5173", "http://127.0.0.1:5173", "http://localhost:3000"}
			}
			r.Use(cors.New(cors.Config{
				AllowOrigins:  origins,
				AllowMethods:  []string{"GET", "POST", "OPTIONS"},
				AllowHeaders:  []string{"X-Request-ID", "Content-Type", "Authorization"},
				ExposeHeaders: []string{"X-Request-ID", "X-Total-Count", "Retry-After"},
				MaxAge:        12 * time.Hour,
			}))
		} else { // Behind a reverse proxy + TLS
			r.SetTrustedProxies([]string{"127.0.0.1"})
			r.Use(secure.New(secure.Config{
				SSLProxyHeaders: map[string]string{
					"X-Forwarded-Proto": "https",
				},
				FrameDeny:          true,
				ContentTypeNosniff: true,
			}))
		}

		r.Use(accessLog(log.Named("http"), authsvc))

		r.Use(func(c *gin.Context) {
			// Hard 1MB cap on request bodies
			c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, handler.MaxConfigBody)
			c.Next()
		})
	}

	// Register route handlers
	{
		// --- Public endpoints (no auth) ---
		r.GET("/api/health", handler.Health)
		r.GET("/metrics", gin.WrapH(promhttp.Handler()))

		// --- Protected endpoints (auth required) ---
		authed := r.Group("", mw.Authentication(authsvc))                      // any allow-listed principal (admin|viewer)
		admins := authed.Group("", mw.Authorization(authsvc, principal.Admin)) // only admins

		cfghndlr := handler.NewConfigHandler(log, store)
		authed.GET("/api/config", cfghndlr.GetConfig)
		admins.POST("/api/config", mw.RateLimit(mw.RateLimitConfig{
			GlobalRate:  rate.Limit(settings.WriteRate),
			GlobalBurst: settings.WriteBurst,
			PerIPRate:   rate.Limit(settings.WriteRate),
			PerIPBurst:  settings.WriteBurst,
		}), cfghndlr.SaveConfig)

		hostnet := service.NewHostNetwork(service.HostNetworkOptions{})
		rechndlr := handler.NewRecorderHandler(log, units, settings.ServiceName, store, hostnet)
		admins.POST("/api/recorder/restart", mw.ExclusiveOperation(), rechndlr.Restart)
		authed.GET("/api/recorder/status", rechndlr.Status)
		authed.GET("/api/recorder/cameras", rechndlr.Cameras)

		// --- System ---
		admins.GET("/api/system/net/localaddrs", handler.LocalAddrs(hostnet))
	}

	httpsrv := &http.Server{
		Addr:              settings.Address + ":" + settings.Port,
		Handler:           r,
		ReadHeaderTimeout: 2 * time.Second,  // kills header-drip Slowloris
		ReadTimeout:       10 * time.Second, // full request read (incl. body)
		WriteTimeout:      30 * time.Second, // restarts can take a while
		IdleTimeout:       60 * time.Second, // keep-alive cap
		MaxHeaderBytes:    1 << 20,          // 1MB cap
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("running HTTP server", zap.String("addr", httpsrv.Addr), zap.String("config", store.Path()))
		if err := httpsrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return httpsrv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Fatal("server failed", zap.Error(err))
	}
	log.Info("server closed")
}

// handleVersion prints build metadata and exits when -v/--version is provided.
func handleVersion() {
	v := flag.Bool("v", false, "print version and exit")
	flag.BoolVar(v, "version", false, "print version and exit")
	flag.Parse()

	if *v {
		fmt.Printf("camrec-server %s (commit %s, built %s)\n", config.Version, config.GitCommit, config.BuildDate)
		os.Exit(0)
	}
}

// accessLog is a Gin middleware that records HTTP request/response details
// with Zap after handling and counts them in camrec_api_requests_total.
func accessLog(log *zap.Logger, authsvc *service.AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		latency := time.Since(start)
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		metrics.APIRequests.WithLabelValues(c.Request.Method, route, strconv.Itoa(status)).Inc()

		// collect all errors from Gin context
		var errs []error
		for _, ge := range c.Errors {
			if ge.Err != nil {
				errs = append(errs, ge.Err)
			}
		}
		joinedErr := errors.Join(errs...)

		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", status),
			zap.String("client_ip", c.ClientIP()),
			zap.String("request_id", mw.GetRequestID(c)),
			zap.Duration("latency", latency),
		}
		if p := authsvc.WhoAmI(c); p != nil {
			fields = append(fields, zap.Dict("auth",
				zap.String("id", p.ID),
				zap.String("kind", p.Kind.String()),
			))
		}
		if joinedErr != nil {
			fields = append(fields, zap.Error(joinedErr))
		}

		switch {
		case status >= 500:
			log.Error("request", fields...)
		case status >= 400:
			log.Warn("request", fields...)
		default:
			log.Info("request", fields...)
		}
	}
}

// helpers

func buildLogger() *zap.Logger {
	logConfig := zap.NewDevelopmentConfig()
	logConfig.EncoderConfig.TimeKey = ""
	logConfig.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	logConfig.DisableStacktrace = true
	logConfig.DisableCaller = true
	logConfig.Level.SetLevel(zap.DebugLevel)
	return zap.Must(logConfig.Build())
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
