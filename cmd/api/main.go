package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/malaeb-app/app-messaging/internal/config"
	"github.com/malaeb-app/app-messaging/internal/delivery"
	"github.com/malaeb-app/app-messaging/internal/handlers"
	"github.com/malaeb-app/app-messaging/internal/httpclient"
	"github.com/malaeb-app/app-messaging/internal/logging"
	"github.com/malaeb-app/app-messaging/internal/middleware"
	"github.com/malaeb-app/app-messaging/internal/models"
	"github.com/malaeb-app/app-messaging/internal/observability"
	"github.com/malaeb-app/app-messaging/internal/otp"
	"github.com/malaeb-app/app-messaging/internal/phone"
	"github.com/malaeb-app/app-messaging/internal/providers"
	"github.com/malaeb-app/app-messaging/internal/ratelimit"
	"github.com/malaeb-app/app-messaging/internal/template"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// @title           Messaging API
// @version         1.0
// @description     Transactional messaging delivery API: multi-channel sends, phone verification codes and per-recipient rate limiting.

// @host      localhost:8080
// @BasePath  /v1

func main() {
	// Initialize logger first
	if err := logging.InitLogger(); err != nil {
		panic(fmt.Sprintf("failed to initialize logger: %v", err))
	}

	// Load configuration
	if err := config.LoadConfig(); err != nil {
		logging.Logger.Fatal("failed to load config", zap.Error(err))
	}
	cfg := config.AppConfig

	// Initialize observability
	observability.InitTracer()
	defer observability.ShutdownTracer()

	// Optional shared challenge store
	config.InitRedis()

	// Outbound gateway clients
	pool := httpclient.NewPool(20, cfg.GatewayTimeout)
	defer pool.Close()

	smsAdapter := providers.NewSMSAdapter(providers.SMSConfig{
		BaseURL:    cfg.GatewayBaseURL,
		Token:      cfg.GatewayToken,
		SenderName: cfg.GatewaySenderName,
		Language:   cfg.GatewayLanguage,
		Timeout:    cfg.GatewayTimeout,
	}, pool)
	chatAdapter := providers.NewChatAdapter(providers.ChatConfig{
		BaseURL: cfg.ChatBaseURL,
		Token:   cfg.ChatToken,
	}, smsAdapter)

	// Delivery pipeline
	limiter := ratelimit.NewLimiter(cfg.RateSweepEvery)
	defer limiter.Close()

	router := delivery.NewRouter(
		phone.NewNormalizer(cfg.DefaultDialCode),
		limiter,
		template.NewEngine(cfg.Templates),
		map[models.Channel]providers.Adapter{
			models.ChannelSMS:  smsAdapter,
			models.ChannelChat: chatAdapter,
		},
		delivery.WithRetryBackoff(cfg.RetryBackoff),
	)

	var store otp.ChallengeStore = otp.NewMemoryStore()
	if config.Redis != nil {
		store = otp.NewRedisStore(config.Redis)
	}

	otpService := otp.NewService(router, store, otp.Config{
		CodeLength:  cfg.OTPCodeLength,
		TTL:         cfg.OTPTTL,
		MaxAttempts: cfg.OTPMaxAttempts,
		TemplateID:  cfg.OTPTemplateID,
		RatePolicy: ratelimit.Policy{
			Name:        "otp",
			Window:      cfg.OTPRatePolicy.Window,
			Max:         cfg.OTPRatePolicy.Max,
			MinInterval: cfg.OTPRatePolicy.MinInterval,
		},
	})

	handler := handlers.NewHandler(router, otpService, ratelimit.Policy{
		Name:        "notify",
		Window:      cfg.NotifyRatePolicy.Window,
		Max:         cfg.NotifyRatePolicy.Max,
		MinInterval: cfg.NotifyRatePolicy.MinInterval,
	})

	// Set Gin mode
	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	// Create router with middleware
	engine := gin.New()
	engine.Use(
		gin.Recovery(),
		middleware.RequestID(),
		middleware.RequestLogger(),
		middleware.RequestTracker(),
		cors.Default(),
	)

	// Metrics endpoint
	engine.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// API v1 routes
	v1 := engine.Group("/v1")
	{
		v1.GET("/health", handlers.HealthCheck)

		v1.POST("/messages", handler.SendMessage)
		v1.POST("/otp", handler.SendOTP)
		v1.POST("/otp/verify", handler.VerifyOTP)
	}

	// Create server with timeouts
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      engine,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		logging.Logger.Info("starting server",
			zap.Int("port", cfg.Port),
			zap.String("environment", cfg.Environment),
		)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logging.Logger.Fatal("failed to start server", zap.Error(err))
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	// Graceful shutdown
	logging.Logger.Info("shutting down server...")
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logging.Logger.Fatal("server forced to shutdown", zap.Error(err))
	}

	logging.Logger.Info("server exited gracefully")
}
