package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/nimasrn/voucher-wallet/internal/config"
	"github.com/nimasrn/voucher-wallet/internal/events"
	"github.com/nimasrn/voucher-wallet/internal/model"
	"github.com/nimasrn/voucher-wallet/internal/pricing"
	"github.com/nimasrn/voucher-wallet/internal/queue"
	"github.com/nimasrn/voucher-wallet/internal/repository"
	"github.com/nimasrn/voucher-wallet/internal/services"
	"github.com/nimasrn/voucher-wallet/pkg/logger"
	"github.com/nimasrn/voucher-wallet/pkg/pg"
	"github.com/nimasrn/voucher-wallet/pkg/redis"
	"gopkg.in/yaml.v3"
)

const usage = `usage: cli <command> [--env=.env]

commands:
  migrate [--dir=./migrations]    apply pending migrations
  rollback [--dir=./migrations]   revert the latest migration
  status [--dir=./migrations]     show migration status
  expire [--dry-run]              expire every purchase past its expiry date
  seed-settings --file=<yaml>     upsert site settings from a yaml list`

// main.go migrate --dir=./migrations
func main() {
	if len(os.Args) < 2 || strings.HasPrefix(os.Args[1], "-") {
		fmt.Println(usage)
		os.Exit(2)
	}

	err := config.Load(getEnvPath())
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	pgConf := config.Get().PostgresWrite()

	ctx := context.Background()
	switch os.Args[1] {
	case "migrate":
		err = pg.Migrate(pgConf, getMigrationPath())
	case "rollback":
		err = pg.Rollback(pgConf, getMigrationPath())
	case "status":
		err = pg.MigrationStatus(pgConf, getMigrationPath())
	case "expire":
		err = expire(ctx, pgConf, hasFlag("--dry-run"))
	case "seed-settings":
		err = seedSettings(ctx, pgConf, flagValue("--file="))
	default:
		fmt.Println(usage)
		os.Exit(2)
	}
	if err != nil {
		logger.Error("cli: "+os.Args[1]+" failed", "error", err)
		os.Exit(1)
	}
}

func expire(ctx context.Context, pgConf pg.Config, dryRun bool) error {
	db, err := pg.CreateReadWrite(pgConf, pgConf, false)
	if err != nil {
		return err
	}

	opts := []services.PurchaseOption{services.WithValidity(config.Get().VoucherValidity())}
	if !dryRun {
		publisher, err := streamPublisher(ctx)
		if err != nil {
			logger.Warn("expiry events will not be published", "error", err)
		} else {
			opts = append(opts, services.WithPublisher(publisher))
		}
	}

	svc := services.NewPurchaseService(db,
		repository.NewVoucherRepository(db),
		repository.NewWalletRepository(db),
		repository.NewRedemptionRepository(db),
		pricing.NewResolver(repository.NewSettingRepository(db), config.Get().DefaultCost()),
		opts...,
	)

	if dryRun {
		preview, err := svc.PreviewExpiry(ctx)
		if err != nil {
			return err
		}
		fmt.Printf("%d purchase(s) would expire\n", preview.Count)
		for _, r := range preview.Sample {
			fmt.Printf("  #%d user=%d voucher=%d ref=%s expired=%s\n", r.ID, r.UserID, r.VoucherID, r.PurchaseReference, r.ExpiryDate.Format("2006-01-02"))
		}
		return nil
	}

	n, err := svc.ExpireDue(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("expired %d purchase(s)\n", n)
	return nil
}

func streamPublisher(ctx context.Context) (events.Publisher, error) {
	cfg := config.Get()
	if !strings.EqualFold(cfg.EventBackend, events.BackendRedis) {
		return events.NopPublisher{}, nil
	}
	adapter, err := redis.NewRedisAdapter("cli", cfg.RedisUniversalKeyPrefix, &redis.Options{
		Addrs:    []string{cfg.RedisAddr},
		DB:       cfg.RedisDatabase,
		Username: cfg.RedisUsername,
		Password: cfg.RedisPassword,
	})
	if err != nil {
		return nil, err
	}
	q, err := queue.New(ctx, adapter, queue.Config{
		Name:          cfg.QueueName,
		ConsumerGroup: cfg.QueueConsumerGroup,
		MaxLen:        cfg.QueueMaxLen,
	})
	if err != nil {
		return nil, err
	}
	return events.NewQueuePublisher(q), nil
}

func seedSettings(ctx context.Context, pgConf pg.Config, path string) error {
	if path == "" {
		return fmt.Errorf("--file is required")
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	var settings []model.SiteSetting
	if err := yaml.Unmarshal(raw, &settings); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}

	db, err := pg.CreateReadWrite(pgConf, pgConf, false)
	if err != nil {
		return err
	}
	// No price cache here, cached prices age out after PRICING_CACHE_TTL.
	svc := services.NewSettingsService(repository.NewSettingRepository(db), nil)
	for _, s := range settings {
		if _, err := svc.Set(ctx, s); err != nil {
			return fmt.Errorf("setting %q: %w", s.Key, err)
		}
		logger.Info("setting stored", "key", s.Key, "value", s.Value)
	}
	fmt.Printf("stored %d setting(s)\n", len(settings))
	return nil
}

func hasFlag(name string) bool {
	for _, v := range os.Args[2:] {
		if v == name {
			return true
		}
	}
	return false
}

func flagValue(prefix string) string {
	for _, v := range os.Args[2:] {
		if strings.HasPrefix(v, prefix) {
			return strings.TrimPrefix(v, prefix)
		}
	}
	return ""
}

func getEnvPath() string {
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
	if _, err := os.Stat(".env"); err != nil {
		return ""
	}
	return ".env"
}

func getMigrationPath() string {
	if dir := flagValue("--dir="); dir != "" {
		if _, err := os.Stat(dir); err != nil {
			logger.Error("failed to open the migrations dir, got error" + err.Error())
			return ""
		}
		return dir
	}
	return "./migrations"
}
