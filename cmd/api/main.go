package main

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/nimasrn/voucher-wallet/internal/config"
	"github.com/nimasrn/voucher-wallet/internal/events"
	"github.com/nimasrn/voucher-wallet/internal/handlers"
	"github.com/nimasrn/voucher-wallet/internal/pricing"
	"github.com/nimasrn/voucher-wallet/internal/queue"
	"github.com/nimasrn/voucher-wallet/internal/repository"
	"github.com/nimasrn/voucher-wallet/internal/services"
	xhttp "github.com/nimasrn/voucher-wallet/pkg/http"
	"github.com/nimasrn/voucher-wallet/pkg/logger"
	"github.com/nimasrn/voucher-wallet/pkg/pg"
	"github.com/nimasrn/voucher-wallet/pkg/prom"
	"github.com/nimasrn/voucher-wallet/pkg/redis"
	"github.com/nimasrn/voucher-wallet/pkg/tracing"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {

	err := config.Load(argContainsEnvPath())
	if err != nil {
		logger.Error("failed to load config", "error", err)
		return
	}
	cfg := config.Get()

	if _, err = logger.Configure(logger.Options{
		Env:        cfg.AppEnv,
		Level:      cfg.LogLevel,
		File:       cfg.LogFile,
		MaxSizeMB:  cfg.LogMaxSizeMB,
		MaxBackups: cfg.LogMaxBackups,
	}); err != nil {
		logger.Error("failed to configure logger", "error", err)
		return
	}
	defer logger.Sync()
	logger.Info("starting api", "version", version, "commit", commit, "date", date)

	if cfg.AuthJWTSecret == "" {
		logger.Error("AUTH_JWT_SECRET is required")
		return
	}

	shutdownTracing, err := tracing.Init(context.Background(), cfg.AppName+"-api", cfg.AppEnv, cfg.OtelExporterEndpoint)
	if err != nil {
		logger.Error("failed to init tracing", "error", err)
		return
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = shutdownTracing(ctx)
	}()

	// transport (tcp for now)
	s := xhttp.NewServer(xhttp.ServerOption{
		Name:               cfg.AppName,
		ReadTimeout:        cfg.HttpReadTimeout,
		WriteTimeout:       cfg.HttpWriteTimeout,
		RequestTimeout:     cfg.HttpRequestTimeout,
		MaxRequestBodySize: cfg.HttpMaxBodyBytes,
	})
	s.Use(xhttp.CompressMiddleware(s.Option().CompressionLevel))
	s.Use(xhttp.TimeoutMiddleware(s.Option().RequestTimeout))
	s.Use(xhttp.RequestIDMiddleware)
	s.Use(xhttp.RequestLoggerMiddleware)
	s.Use(xhttp.RecoverMiddleware)
	s.Use(xhttp.JWTAuthMiddleware([]byte(cfg.AuthJWTSecret), "/api/v1/health", "/api/v1/accounts"))

	db, err := pg.CreateReadWrite(cfg.PostgresRead(), cfg.PostgresWrite(), cfg.AppEnv == "dev")
	if err != nil {
		logger.Error("failed connecting to pg", "error", err)
		return
	}

	redisAdap, err := redis.NewRedisAdapter("default", cfg.RedisUniversalKeyPrefix, &redis.Options{
		Addrs:      []string{cfg.RedisAddr},
		ClientName: "default",
		DB:         cfg.RedisDatabase,
		Username:   cfg.RedisUsername,
		Password:   cfg.RedisPassword,
	})
	if err != nil {
		logger.Error("failed connecting to redis", "error", err)
		return
	}

	publisher, err := newPublisher(cfg, redisAdap)
	if err != nil {
		logger.Error("failed creating event publisher", "error", err)
		return
	}
	defer publisher.Close()

	hostname, err := os.Hostname()
	if err != nil {
		hostname = "unknown"
	}
	if err = prom.Create(hostname, cfg.AppEnv, cfg.PromNamespace); err != nil {
		logger.Error("failed to create prometheus metrics", "error", err)
		return
	}
	go func() {
		prom.ListenAndServer(cfg.MetricsAddr, "/metrics")
	}()

	userRepo := repository.NewUserRepository(db)
	merchantRepo := repository.NewMerchantRepository(db)
	walletRepo := repository.NewWalletRepository(db)
	voucherRepo := repository.NewVoucherRepository(db)
	redemptionRepo := repository.NewRedemptionRepository(db)
	settingRepo := repository.NewSettingRepository(db)

	resolver := pricing.NewResolver(settingRepo, cfg.DefaultCost(), pricing.WithCache(redisAdap, cfg.PricingCacheTTL))

	// services
	accountService := services.NewAccountService(db, userRepo, merchantRepo, walletRepo, cfg.OpeningBalance())
	walletService := services.NewWalletService(walletRepo)
	voucherService := services.NewVoucherService(db, voucherRepo, walletRepo, merchantRepo, resolver)
	purchaseService := services.NewPurchaseService(db, voucherRepo, walletRepo, redemptionRepo, resolver,
		services.WithValidity(cfg.VoucherValidity()),
		services.WithPublisher(publisher),
	)
	settingsService := services.NewSettingsService(settingRepo, resolver)
	healthService := services.NewHealthService(map[string]services.Pinger{
		"postgres": db,
		"redis":    redisAdap,
	})

	// v1 handlers
	g := s.Router.Group("/api/v1")
	handlers.RegisterAccountRoutes(g, handlers.NewAccountHandler(accountService))
	handlers.RegisterWalletRoutes(g, handlers.NewWalletHandler(walletService))
	handlers.RegisterVoucherRoutes(g, handlers.NewVoucherHandler(voucherService))
	handlers.RegisterPurchaseRoutes(g, handlers.NewPurchaseHandler(purchaseService))
	handlers.RegisterSettingsRoutes(g, handlers.NewSettingsHandler(settingsService))
	handlers.RegisterHealthRoutes(g, handlers.NewHealthHandler(healthService))

	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)

	go func() {
		var err = s.ListenAndServe(cfg.HttpListenAddr)
		if err != nil {
			logger.Error("error in running http-server", "error", err)
		}
	}()

	<-c
	s.Shutdown()
}

// newPublisher picks the lifecycle event sink named by EVENT_BACKEND.
func newPublisher(cfg *config.Config, adapter redis.RedisAdapter) (events.Publisher, error) {
	switch strings.ToLower(cfg.EventBackend) {
	case events.BackendKafka:
		return events.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopic), nil
	case events.BackendNone:
		return events.NopPublisher{}, nil
	default:
		q, err := queue.New(context.Background(), adapter, queue.Config{
			Name:          cfg.QueueName,
			ConsumerGroup: cfg.QueueConsumerGroup,
			MaxLen:        cfg.QueueMaxLen,
			EnableDLQ:     cfg.QueueEnableDLQ,
		})
		if err != nil {
			return nil, err
		}
		return events.NewQueuePublisher(q), nil
	}
}

func argContainsEnvPath() string {
	for _, v := range os.Args {
		if strings.Contains(v, "--env=") {
			s := strings.Split(v, "=")
			if _, err := os.Open(s[1]); err != nil {
				logger.Error("failed to open the passed env file, got error" + err.Error())
				return ""
			}
			return s[1]
		}
	}
	return ""
}
