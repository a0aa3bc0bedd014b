package main

import (
	"context"
	"flag"
	"time"

	"elearning-billing/internal/config"
	"elearning-billing/internal/infra/db/postgres"
	"elearning-billing/internal/infra/logging"
	"elearning-billing/internal/infra/redis"
)

// e2e-setup puts the database and Redis into a clean, predictable state for
// manual end-to-end testing. Run cmd/seed afterwards to load plans and a student.
func main() {
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	all := flag.Bool("all", false, "also wipe students and plans")
	flag.Parse()

	cfg, err := config.LoadConfig(*cfgPath, true)
	if err != nil {
		boot := logging.New(config.LogConfig{Level: "info", Format: "console"}, true)
		boot.Fatal().Err(err).Msg("config load")
	}
	logger := logging.New(config.LogConfig{Level: "info", Format: "console"}, true)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pool, err := postgres.NewPgxPool(ctx, cfg.Database.URL, 2)
	if err != nil {
		logger.Fatal().Err(err).Msg("postgres connection failed")
	}
	defer pool.Close()

	redisClient, err := redis.NewClient(ctx, &cfg.Redis)
	if err != nil {
		logger.Fatal().Err(err).Msg("redis connection failed")
	}
	defer redisClient.Close()

	logger.Info().Msg("[1/2] wiping redis (plan cache, rate limits, locks, outbox)")
	if err := redisClient.FlushDB(ctx); err != nil {
		logger.Fatal().Err(err).Msg("flush redis")
	}

	tables := "webhook_events, audit_log, payments, pix_payments, subscriptions, payment_settings"
	if *all {
		tables += ", plans, students"
	}
	logger.Info().Str("tables", tables).Msg("[2/2] truncating billing tables")
	if _, err := pool.Exec(ctx, "TRUNCATE "+tables+" CASCADE"); err != nil {
		logger.Fatal().Err(err).Msg("truncate")
	}

	logger.Info().Msg("e2e environment reset")
}
