//go:build !integration

package usecase_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"elearning-billing/internal/domain/model"
)

func TestNotificationUseCase_RemindExpiring(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	soon := time.Now().Add(48 * time.Hour)
	later := time.Now().Add(20 * 24 * time.Hour)
	expiring := &model.Subscription{
		ID: uuid.NewString(), StudentID: f.studentID, PlanID: f.plan.ID,
		Status: model.SubscriptionStatusActive, CurrentPeriodEnd: &soon,
	}
	f.store.putSub(expiring)

	other := uuid.NewString()
	f.store.addStudent(other)
	f.store.putSub(&model.Subscription{
		ID: uuid.NewString(), StudentID: other, PlanID: f.plan.ID,
		Status: model.SubscriptionStatusActive, CurrentPeriodEnd: &later,
	})

	sent, err := f.reminders.RemindExpiring(ctx, 3)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if sent != 1 {
		t.Fatalf("expected one reminder, got %d", sent)
	}
	if f.notifier.Sent[0].SubscriptionID != expiring.ID || f.notifier.Sent[0].Kind != model.NotificationRenewalReminder {
		t.Errorf("unexpected notification %+v", f.notifier.Sent[0])
	}

	// a second run for the same period sends nothing
	sent, err = f.reminders.RemindExpiring(ctx, 3)
	if err != nil || sent != 0 {
		t.Errorf("expected no repeat reminder, got %d, %v", sent, err)
	}
}

func TestNotificationUseCase_DeliveryFailureIsNotFatal(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	soon := time.Now().Add(time.Hour)
	f.store.putSub(&model.Subscription{
		ID: uuid.NewString(), StudentID: f.studentID, PlanID: f.plan.ID,
		Status: model.SubscriptionStatusActive, CurrentPeriodEnd: &soon,
	})
	f.notifier.NotifyFunc = func(context.Context, model.Notification) error { return errors.New("queue down") }

	sent, err := f.reminders.RemindExpiring(ctx, 1)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if sent != 0 {
		t.Errorf("expected nothing counted as sent, got %d", sent)
	}
}
