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
	gateway "github.com/nimasrn/voucher-wallet/internal/gateways"
	"github.com/nimasrn/voucher-wallet/internal/pricing"
	"github.com/nimasrn/voucher-wallet/internal/processor"
	"github.com/nimasrn/voucher-wallet/internal/queue"
	"github.com/nimasrn/voucher-wallet/internal/repository"
	"github.com/nimasrn/voucher-wallet/internal/services"
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
	logger.Info("starting processor", "version", version, "commit", commit, "date", date)

	shutdownTracing, err := tracing.Init(context.Background(), cfg.AppName+"-processor", cfg.AppEnv, cfg.OtelExporterEndpoint)
	if err != nil {
		logger.Error("failed to init tracing", "error", err)
		return
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = shutdownTracing(ctx)
	}()

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

	client, err := gateway.NewNotifierClient(gateway.Config{
		URL:                     cfg.NotifierURL,
		Timeout:                 cfg.NotifierTimeout,
		MaxRetries:              3,
		RetryDelay:              time.Millisecond * 100,
		MaxConns:                1000,
		CircuitBreakerThreshold: 5,
		CircuitBreakerTimeout:   60 * time.Second,
	})
	if err != nil {
		logger.Error("failed to create notifier client", "error", err)
		return
	}
	defer client.Close()

	idempotencyService := processor.NewIdempotencyService(redisAdap, processor.DefaultIdempotencyConfig())

	// The sweeper expires records directly; its events go to the same stream
	// the processor consumes.
	resolver := pricing.NewResolver(repository.NewSettingRepository(db), cfg.DefaultCost())
	stream, err := queue.New(context.Background(), redisAdap, queue.Config{
		Name:          cfg.QueueName,
		ConsumerGroup: cfg.QueueConsumerGroup,
		MaxLen:        cfg.QueueMaxLen,
		EnableDLQ:     cfg.QueueEnableDLQ,
	})
	if err != nil {
		logger.Error("failed creating queue", "error", err)
		return
	}
	purchaseService := services.NewPurchaseService(db,
		repository.NewVoucherRepository(db),
		repository.NewWalletRepository(db),
		repository.NewRedemptionRepository(db),
		resolver,
		services.WithValidity(cfg.VoucherValidity()),
		services.WithPublisher(events.NewQueuePublisher(stream)),
	)

	service := processor.NewProcessorService(redisAdap, processor.NewNotificationProcessor(client, idempotencyService), processor.Options{
		Queue: queue.Config{
			Name:              cfg.QueueName,
			ConsumerGroup:     cfg.QueueConsumerGroup,
			ConsumerName:      consumerName(cfg.QueueConsumerName),
			MaxRetries:        cfg.QueueMaxRetries,
			VisibilityTimeout: cfg.QueueVisibilityTimeout,
			PollInterval:      cfg.QueuePollInterval,
			BatchSize:         cfg.QueueBatchSize,
			MaxLen:            cfg.QueueMaxLen,
			EnableDLQ:         cfg.QueueEnableDLQ,
		},
		Consumers: cfg.QueueConsumers,
		Workers:   cfg.WorkerCount,
	}).WithSweeper(processor.NewExpirySweeper(purchaseService, redisAdap, cfg.ExpirySweepInterval))

	hostname, err := os.Hostname()
	if err != nil {
		hostname = "unknown"
	}
	err = prom.Create(hostname, cfg.AppEnv, cfg.PromNamespace)
	if err != nil {
		logger.Error("failed to create prometheus metrics", "error", err)
		return
	}

	go func() {
		prom.ListenAndServer(cfg.MetricsAddr, "/metrics")
	}()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := service.Start(ctx); err != nil {
		logger.Error("failed to start processor", "error", err)
		return
	}

	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	<-c
	service.Stop()
}

func consumerName(configured string) string {
	if configured != "" {
		return configured
	}
	hostname, err := os.Hostname()
	if err != nil {
		return "processor"
	}
	return hostname
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
