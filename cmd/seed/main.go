package main

import (
	"context"
	"flag"
	"fmt"
	"time"

	"github.com/google/uuid"

	"elearning-billing/internal/config"
	"elearning-billing/internal/domain/model"
	"elearning-billing/internal/infra/api/apiv1"
	pg "elearning-billing/internal/infra/db/postgres"
	"elearning-billing/internal/infra/logging"
	"elearning-billing/internal/usecase"
)

// seed loads a small catalog and a demo student for local development and prints
// bearer tokens for the demo student and an admin.
func main() {
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	flag.Parse()

	cfg, err := config.LoadConfig(*cfgPath, true)
	if err != nil {
		boot := logging.New(config.LogConfig{Level: "info", Format: "console"}, true)
		boot.Fatal().Err(err).Msg("load config")
	}
	logger := logging.New(cfg.Log, true)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pg.NewPgxPool(ctx, cfg.Database.URL, 4)
	if err != nil {
		logger.Fatal().Err(err).Msg("postgres")
	}
	defer pool.Close()

	planUC := usecase.NewPlanUseCase(pg.NewPostgresPlanRepo(pool))
	students := pg.NewPostgresStudentRepo(pool)

	plans, err := planUC.ListActive(ctx)
	if err != nil {
		logger.Fatal().Err(err).Msg("list plans")
	}
	if len(plans) > 0 {
		fmt.Printf("%d plans already present. No changes.\n", len(plans))
		for _, p := range plans {
			fmt.Printf("  - %s (id=%s, %s %d/%s)\n", p.Name, p.ID, p.Currency, p.PriceCents, p.Interval)
		}
	} else {
		seed := []struct {
			Name     string
			Cents    int64
			Interval model.BillingInterval
		}{
			{"Monthly", 9990, model.BillingIntervalMonth},
			{"Yearly", 99900, model.BillingIntervalYear},
		}
		for _, s := range seed {
			p, err := model.NewPlan(uuid.NewString(), s.Name, s.Cents, cfg.Payment.Currency, s.Interval)
			if err != nil {
				logger.Fatal().Err(err).Str("plan", s.Name).Msg("build plan")
			}
			if err := planUC.Save(ctx, p); err != nil {
				logger.Fatal().Err(err).Str("plan", s.Name).Msg("save plan")
			}
			fmt.Printf("seeded: %s (id=%s, price=%s %s)\n", p.Name, p.ID, model.CentsToDecimal(p.PriceCents).StringFixed(2), p.Currency)
		}
	}

	studentID := uuid.NewString()
	if err := students.Upsert(ctx, nil, studentID, "student+"+studentID[:8]+"@example.com", "Demo Student"); err != nil {
		logger.Fatal().Err(err).Msg("seed student")
	}

	auth := apiv1.NewAuthManager(cfg.Auth.JWTSecret, cfg.Auth.Issuer, 24*time.Hour)
	studentTok, err := auth.Mint(studentID, apiv1.RoleStudent)
	if err != nil {
		logger.Fatal().Err(err).Msg("mint student token")
	}
	adminTok, err := auth.Mint("admin", apiv1.RoleAdmin)
	if err != nil {
		logger.Fatal().Err(err).Msg("mint admin token")
	}
	fmt.Printf("student id: %s\nstudent token: %s\nadmin token: %s\n", studentID, studentTok, adminTok)
}
