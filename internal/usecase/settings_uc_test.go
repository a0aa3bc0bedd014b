//go:build !integration

package usecase_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/shopspring/decimal"

	"elearning-billing/internal/domain"
	"elearning-billing/internal/domain/model"
)

func validInput() model.PaymentSettingsInput {
	return model.PaymentSettingsInput{
		MaxInstallments:             10,
		PixDiscountPercent:          decimal.RequireFromString("12.5"),
		InstallmentsWithoutInterest: 4,
		PixExpirationMinutes:        45,
	}
}

func TestSettingsUseCase_Current(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	cur, err := f.settings.Current(ctx)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if cur.Version != 0 || cur.MaxInstallments != 12 || !cur.PixDiscountPercent.Equal(decimal.NewFromInt(10)) {
		t.Errorf("expected configured defaults, got %+v", cur)
	}

	// callers get a private copy
	cur.MaxInstallments = 1
	again, _ := f.settings.Current(ctx)
	if again.MaxInstallments != 12 {
		t.Error("mutating a returned snapshot must not leak")
	}
}

func TestSettingsUseCase_Update(t *testing.T) {
	ctx := context.Background()

	t.Run("should write consecutive versions with an audit entry each", func(t *testing.T) {
		f := newFixture(t)
		first, err := f.settings.Update(ctx, "admin-1", validInput())
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		second, err := f.settings.Update(ctx, "admin-2", validInput())
		if err != nil {
			t.Fatal(err)
		}
		if first.Version != 1 || second.Version != 2 {
			t.Errorf("expected versions 1 and 2, got %d and %d", first.Version, second.Version)
		}
		if second.UpdatedBy != "admin-2" {
			t.Errorf("expected updated_by admin-2, got %q", second.UpdatedBy)
		}
		f.store.mu.Lock()
		audits := len(f.store.audit)
		f.store.mu.Unlock()
		if audits != 2 {
			t.Errorf("expected 2 audit entries, got %d", audits)
		}

		cur, _ := f.settings.Current(ctx)
		if cur.Version != 2 || !cur.PixDiscountPercent.Equal(decimal.RequireFromString("12.5")) {
			t.Errorf("unexpected current settings %+v", cur)
		}
	})

	t.Run("should reject invalid input", func(t *testing.T) {
		f := newFixture(t)
		bad := []func(*model.PaymentSettingsInput){
			func(in *model.PaymentSettingsInput) { in.MaxInstallments = 0 },
			func(in *model.PaymentSettingsInput) { in.MaxInstallments = model.MaxInstallmentsCeiling + 1 },
			func(in *model.PaymentSettingsInput) { in.PixDiscountPercent = decimal.NewFromInt(100) },
			func(in *model.PaymentSettingsInput) { in.PixDiscountPercent = decimal.NewFromInt(-1) },
			func(in *model.PaymentSettingsInput) { in.InstallmentsWithoutInterest = 11 },
			func(in *model.PaymentSettingsInput) { in.PixExpirationMinutes = 0 },
		}
		for i, mutate := range bad {
			in := validInput()
			mutate(&in)
			if _, err := f.settings.Update(ctx, "admin-1", in); !errors.Is(err, domain.ErrInvalidPaymentSetting) {
				t.Errorf("case %d: expected ErrInvalidPaymentSetting, got %v", i, err)
			}
		}
		if cur, _ := f.settings.Current(ctx); cur.Version != 0 {
			t.Error("rejected updates must not write a version")
		}
	})

	t.Run("should require an actor", func(t *testing.T) {
		f := newFixture(t)
		if _, err := f.settings.Update(ctx, "", validInput()); !errors.Is(err, domain.ErrUnauthorized) {
			t.Fatalf("expected ErrUnauthorized, got %v", err)
		}
	})

	t.Run("concurrent writers get distinct versions", func(t *testing.T) {
		f := newFixture(t)
		var wg sync.WaitGroup
		for i := 0; i < 5; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if _, err := f.settings.Update(ctx, "admin", validInput()); err != nil {
					t.Errorf("unexpected error: %v", err)
				}
			}()
		}
		wg.Wait()
		if cur, _ := f.settings.Current(ctx); cur.Version != 5 {
			t.Errorf("expected version 5, got %d", cur.Version)
		}
	})
}
