package usecase

import (
	"context"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"elearning-billing/internal/domain"
	"elearning-billing/internal/domain/model"
	"elearning-billing/internal/domain/ports/adapter"
	"elearning-billing/internal/domain/ports/repository"
)

var _ ReconciliationUseCase = (*reconciliationUC)(nil)

// ReconciliationUseCase compares the local ledger with the gateway. It never writes.
type ReconciliationUseCase interface {
	Report(ctx context.Context, from, to time.Time) (*model.ReconciliationReport, error)
}

type reconciliationUC struct {
	payments repository.PaymentRepository
	gateway  adapter.PaymentGateway
	log      *zerolog.Logger
}

func NewReconciliationUseCase(payments repository.PaymentRepository, gateway adapter.PaymentGateway, logger *zerolog.Logger) *reconciliationUC {
	l := logger.With().Str("component", "ReconciliationUC").Logger()
	return &reconciliationUC{payments: payments, gateway: gateway, log: &l}
}

func (u *reconciliationUC) Report(ctx context.Context, from, to time.Time) (*model.ReconciliationReport, error) {
	if from.IsZero() || to.IsZero() || !from.Before(to) {
		return nil, domain.ErrInvalidArgument
	}

	local, err := u.payments.ListPaidBetween(ctx, repository.NoTX, from, to)
	if err != nil {
		return nil, err
	}
	remote, err := u.gateway.ListCharges(ctx, from, to)
	if err != nil {
		return nil, err
	}

	rep := &model.ReconciliationReport{
		From:               from,
		To:                 to,
		LocalCount:         len(local),
		GatewayCount:       len(remote),
		LocalByMethodCents: make(map[model.PaymentMethod]int64),
		Items:              []model.ReconciliationItem{},
	}

	byCharge := make(map[string]*model.Payment, len(local))
	for _, p := range local {
		rep.LocalTotalCents += p.AmountCents
		rep.LocalByMethodCents[p.Method] += p.AmountCents
		byCharge[p.GatewayChargeID] = p
	}

	seen := make(map[string]bool, len(remote))
	for _, c := range remote {
		rep.GatewayTotalCents += c.AmountCents
		seen[c.ID] = true
		p, ok := byCharge[c.ID]
		switch {
		case !ok:
			rep.Items = append(rep.Items, model.ReconciliationItem{
				Kind:               model.MismatchMissingLocal,
				GatewayChargeID:    c.ID,
				GatewayAmountCents: c.AmountCents,
			})
		case p.AmountCents != c.AmountCents:
			rep.Items = append(rep.Items, model.ReconciliationItem{
				Kind:               model.MismatchAmount,
				GatewayChargeID:    c.ID,
				PaymentID:          p.ID,
				LocalAmountCents:   p.AmountCents,
				GatewayAmountCents: c.AmountCents,
			})
		}
	}
	for _, p := range local {
		if seen[p.GatewayChargeID] {
			continue
		}
		rep.Items = append(rep.Items, model.ReconciliationItem{
			Kind:             model.MismatchMissingGateway,
			GatewayChargeID:  p.GatewayChargeID,
			PaymentID:        p.ID,
			LocalAmountCents: p.AmountCents,
		})
	}
	sort.SliceStable(rep.Items, func(i, j int) bool {
		if rep.Items[i].Kind != rep.Items[j].Kind {
			return rep.Items[i].Kind < rep.Items[j].Kind
		}
		return rep.Items[i].GatewayChargeID < rep.Items[j].GatewayChargeID
	})

	u.log.Info().
		Time("from", from).
		Time("to", to).
		Int("local", rep.LocalCount).
		Int("gateway", rep.GatewayCount).
		Int("mismatches", len(rep.Items)).
		Msg("reconciliation report built")
	return rep, nil
}
