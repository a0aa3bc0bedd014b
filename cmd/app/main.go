package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/shopspring/decimal"

	"elearning-billing/internal/config"
	"elearning-billing/internal/domain/model"
	"elearning-billing/internal/domain/ports/adapter"
	"elearning-billing/internal/infra/adapters/gateway"
	"elearning-billing/internal/infra/api"
	"elearning-billing/internal/infra/api/apiv1"
	pg "elearning-billing/internal/infra/db/postgres"
	"elearning-billing/internal/infra/logging"
	"elearning-billing/internal/infra/metrics"
	red "elearning-billing/internal/infra/redis"
	"elearning-billing/internal/infra/sched"
	"elearning-billing/internal/infra/worker"
	"elearning-billing/internal/usecase"
)

// Set with -ldflags "-X main.version=... -X main.commit=...".
var (
	version = "dev"
	commit  = "none"
)

func main() {
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	devMode := flag.Bool("dev", false, "developer mode: console logs and the sandbox gateway")
	flag.Parse()

	cfg, err := config.LoadConfig(*cfgPath, *devMode)
	if err != nil {
		boot := logging.New(config.LogConfig{Level: "info", Format: "console"}, true)
		boot.Fatal().Err(err).Msg("config")
	}
	logger := logging.New(cfg.Log, cfg.Runtime.Dev)
	if cfg.Runtime.Dev {
		logger.Warn().Msg("developer mode enabled")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	metrics.MustRegister()

	// ---- Postgres ----
	pool, err := pg.NewPgxPool(ctx, cfg.Database.URL, cfg.Database.MaxConns)
	if err != nil {
		logger.Fatal().Err(err).Msg("postgres")
	}
	defer pool.Close()

	// ---- Redis ----
	redisClient, err := red.NewClient(ctx, &cfg.Redis)
	if err != nil {
		logger.Fatal().Err(err).Msg("redis")
	}
	defer redisClient.Close()

	// ---- Gateway ----
	var gw adapter.PaymentGateway
	if cfg.Gateway.Sandbox || cfg.Runtime.Dev {
		gw = gateway.NewSandboxGateway(cfg.Gateway.WebhookSecret)
		logger.Warn().Msg("using the in-memory sandbox gateway")
	} else {
		gw, err = gateway.NewHTTPGateway(cfg.Gateway)
		if err != nil {
			logger.Fatal().Err(err).Msg("gateway")
		}
	}
	metrics.SetBuildInfo(version, commit, gw.Name())

	// ---- Repositories ----
	tm := pg.NewTxManager(pool)
	studentRepo := pg.NewPostgresStudentRepo(pool)
	planRepo := pg.NewPlanRepoCacheDecorator(pg.NewPostgresPlanRepo(pool), redisClient, cfg.Redis.TTL, logger)
	subRepo := pg.NewPostgresSubscriptionRepo(pool)
	payRepo := pg.NewPaymentRepo(pool)
	pixRepo := pg.NewPostgresPixPaymentRepo(pool)
	settingsRepo := pg.NewPostgresSettingsRepo(pool)
	auditRepo := pg.NewPostgresAuditRepo(pool)
	eventRepo := pg.NewPostgresWebhookEventRepo(pool)

	// ---- Notifications: worker pool -> Redis outbox ----
	notifyPool := worker.NewPool(cfg.Workers.Notifications, logger)
	// not bound to ctx so Stop can drain queued notifications
	notifyPool.Start(context.Background())
	notifier := worker.NewAsyncNotifier(red.NewNotificationOutbox(redisClient), notifyPool, logger)

	var limiter adapter.CheckoutLimiter
	if cfg.Checkout.RateLimit > 0 {
		limiter = red.NewCheckoutLimiter(redisClient, cfg.Checkout.RateLimit, cfg.Checkout.RateWindow)
	}

	// ---- Use cases ----
	d := cfg.Payment.Defaults
	settingsUC := usecase.NewSettingsUseCase(settingsRepo, auditRepo, tm, model.PaymentSettings{
		MaxInstallments:             d.MaxInstallments,
		PixDiscountPercent:          decimal.NewFromFloat(d.PixDiscountPercent),
		InstallmentsWithoutInterest: d.InstallmentsWithoutInterest,
		PixExpirationMinutes:        d.PixExpirationMinutes,
		UpdatedBy:                   "config",
	}, logger)
	pixUC := usecase.NewPixUseCase(pixRepo, payRepo, subRepo, planRepo, tm, gw, notifier, logger)
	checkoutUC := usecase.NewCheckoutUseCase(studentRepo, planRepo, subRepo, settingsUC, pixUC, gw, limiter, logger)
	subUC := usecase.NewSubscriptionUseCase(subRepo, planRepo, studentRepo, tm, checkoutUC, gw, notifier, logger)
	webhookUC := usecase.NewWebhookUseCase(eventRepo, subRepo, payRepo, pixRepo, pixUC, tm, gw, notifier, logger)
	reconUC := usecase.NewReconciliationUseCase(payRepo, gw, logger)
	notifUC := usecase.NewNotificationUseCase(subRepo, notifier, red.NewOnceMarker(redisClient), logger)
	planUC := usecase.NewPlanUseCase(planRepo)

	// ---- Background jobs ----
	locker := red.NewLocker(redisClient)
	sc := cfg.Scheduler
	jobs := []*sched.Job{
		sched.NewExpiryWorker(sc.PixExpiryInterval, pixUC, locker, logger).Job,
		sched.NewPaymentReconciler(pixUC, sc.PixReconcileInterval, sc.PixReconcileStale, locker, logger).Job,
		sched.NewNotificationWorker(sc.ReminderInterval, sc.ReminderWithinDays, notifUC, locker, logger).Job,
		sched.NewGaugeWorker(sc.GaugeInterval, subUC, pool, logger).Job,
	}
	var wg sync.WaitGroup
	for _, j := range jobs {
		wg.Add(1)
		go func(j *sched.Job) {
			defer wg.Done()
			_ = j.Run(ctx)
		}(j)
	}

	// ---- HTTP ----
	auth := apiv1.NewAuthManager(cfg.Auth.JWTSecret, cfg.Auth.Issuer, 0)
	v1 := apiv1.NewServer(apiv1.Deps{
		Checkout:       checkoutUC,
		Pix:            pixUC,
		Webhooks:       webhookUC,
		Subscriptions:  subUC,
		Settings:       settingsUC,
		Reconciliation: reconUC,
		Plans:          planUC,
	}, auth, logger)
	srv := api.NewServer(cfg.Server, v1, map[string]api.HealthCheck{
		"postgres": pool.Ping,
		"redis":    redisClient.Ping,
	}, logger)

	go func() {
		if err := srv.Start(); err != nil {
			logger.Error().Err(err).Msg("http server stopped")
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info().Msg("shutdown requested")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("http shutdown")
	}
	wg.Wait()
	notifyPool.Stop()
	logger.Info().Msg("bye")
}
