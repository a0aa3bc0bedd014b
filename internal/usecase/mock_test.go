//go:build !integration

package usecase_test

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"elearning-billing/internal/domain"
	"elearning-billing/internal/domain/model"
	"elearning-billing/internal/domain/ports/adapter"
	"elearning-billing/internal/domain/ports/repository"
	"elearning-billing/internal/infra/adapters/gateway"
	"elearning-billing/internal/usecase"
)

// =============================
// In-memory store
// =============================

// memStore backs every mock repository. It enforces the same guards the
// Postgres schema does: one active subscription per student, unique gateway
// charge ids, unique settings versions and unique webhook event ids.
type memStore struct {
	mu       sync.Mutex
	students map[string]bool
	plans    map[string]model.Plan
	subs     map[string]model.Subscription
	payments map[string]model.Payment
	pixes    map[string]model.PixPayment
	settings []model.PaymentSettings
	audit    []model.AuditEntry
	events   map[string]bool
}

func newMemStore() *memStore {
	return &memStore{
		students: map[string]bool{},
		plans:    map[string]model.Plan{},
		subs:     map[string]model.Subscription{},
		payments: map[string]model.Payment{},
		pixes:    map[string]model.PixPayment{},
		events:   map[string]bool{},
	}
}

type memSnapshot struct {
	plans    map[string]model.Plan
	subs     map[string]model.Subscription
	payments map[string]model.Payment
	pixes    map[string]model.PixPayment
	settings []model.PaymentSettings
	audit    []model.AuditEntry
	events   map[string]bool
}

func copyMap[K comparable, V any](in map[K]V) map[K]V {
	out := make(map[K]V, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

func (s *memStore) snapshot() memSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return memSnapshot{
		plans:    copyMap(s.plans),
		subs:     copyMap(s.subs),
		payments: copyMap(s.payments),
		pixes:    copyMap(s.pixes),
		settings: append([]model.PaymentSettings(nil), s.settings...),
		audit:    append([]model.AuditEntry(nil), s.audit...),
		events:   copyMap(s.events),
	}
}

func (s *memStore) restore(snap memSnapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.plans = snap.plans
	s.subs = snap.subs
	s.payments = snap.payments
	s.pixes = snap.pixes
	s.settings = snap.settings
	s.audit = snap.audit
	s.events = snap.events
}

func (s *memStore) addStudent(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.students[id] = true
}

func (s *memStore) putPlan(p *model.Plan) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.plans[p.ID] = *p
}

func (s *memStore) putSub(sub *model.Subscription) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subs[sub.ID] = *sub
}

func (s *memStore) putPix(p *model.PixPayment) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pixes[p.ID] = *p
}

func (s *memStore) sub(id string) model.Subscription {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.subs[id]
}

func (s *memStore) pix(id string) model.PixPayment {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pixes[id]
}

func (s *memStore) subsOf(studentID string) []model.Subscription {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.Subscription
	for _, sub := range s.subs {
		if sub.StudentID == studentID {
			out = append(out, sub)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

func (s *memStore) activeCount(studentID string) int {
	n := 0
	for _, sub := range s.subsOf(studentID) {
		if sub.Status == model.SubscriptionStatusActive {
			n++
		}
	}
	return n
}

func (s *memStore) allPayments() []model.Payment {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.Payment, 0, len(s.payments))
	for _, p := range s.payments {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].GatewayChargeID < out[j].GatewayChargeID })
	return out
}

func (s *memStore) pixCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pixes)
}

// ---- Mock TransactionManager ----

// MockTxManager serializes transactions, which stands in for row locks, and
// restores the store when fn fails.
type MockTxManager struct {
	store *memStore
	txMu  sync.Mutex

	WithTxFunc func(ctx context.Context, txOpt pgx.TxOptions, fn func(ctx context.Context, tx repository.Tx) error) error
}

var _ repository.TransactionManager = (*MockTxManager)(nil)

type memTx struct{}

func NewMockTxManager(store *memStore) *MockTxManager {
	return &MockTxManager{store: store}
}

func (m *MockTxManager) WithTx(ctx context.Context, txOpt pgx.TxOptions, fn func(ctx context.Context, tx repository.Tx) error) error {
	if m.WithTxFunc != nil {
		return m.WithTxFunc(ctx, txOpt, fn)
	}
	m.txMu.Lock()
	defer m.txMu.Unlock()

	snap := m.store.snapshot()
	if err := fn(ctx, &memTx{}); err != nil {
		m.store.restore(snap)
		return err
	}
	return nil
}

// ---- Mock StudentRepository ----

type MockStudentRepo struct{ s *memStore }

var _ repository.StudentRepository = (*MockStudentRepo)(nil)

func (r *MockStudentRepo) Exists(ctx context.Context, tx repository.Tx, id string) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return r.s.students[id], nil
}

// ---- Mock PlanRepository ----

type MockPlanRepo struct{ s *memStore }

var _ repository.PlanRepository = (*MockPlanRepo)(nil)

func (r *MockPlanRepo) Save(ctx context.Context, tx repository.Tx, p *model.Plan) error {
	r.s.putPlan(p)
	return nil
}

func (r *MockPlanRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Plan, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	p, ok := r.s.plans[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &p, nil
}

func (r *MockPlanRepo) ListActive(ctx context.Context, tx repository.Tx) ([]*model.Plan, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*model.Plan
	for _, p := range r.s.plans {
		if p.Active {
			cp := p
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PriceCents < out[j].PriceCents })
	return out, nil
}

// ---- Mock SubscriptionRepository ----

type MockSubscriptionRepo struct {
	s *memStore

	SaveFunc func(ctx context.Context, tx repository.Tx, sub *model.Subscription) error
}

var _ repository.SubscriptionRepository = (*MockSubscriptionRepo)(nil)

func (r *MockSubscriptionRepo) activeOtherLocked(studentID, exceptID string) bool {
	for _, sub := range r.s.subs {
		if sub.StudentID == studentID && sub.ID != exceptID && sub.Status == model.SubscriptionStatusActive {
			return true
		}
	}
	return false
}

func (r *MockSubscriptionRepo) Save(ctx context.Context, tx repository.Tx, sub *model.Subscription) error {
	if r.SaveFunc != nil {
		return r.SaveFunc(ctx, tx, sub)
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, dup := r.s.subs[sub.ID]; dup {
		return domain.ErrAlreadyExists
	}
	if sub.Status == model.SubscriptionStatusActive && r.activeOtherLocked(sub.StudentID, sub.ID) {
		return domain.ErrAlreadySubscribed
	}
	if sub.GatewaySubscriptionID != nil {
		for _, other := range r.s.subs {
			if other.GatewaySubscriptionID != nil && *other.GatewaySubscriptionID == *sub.GatewaySubscriptionID {
				return domain.ErrAlreadyExists
			}
		}
	}
	r.s.subs[sub.ID] = *sub
	return nil
}

func (r *MockSubscriptionRepo) first(match func(model.Subscription) bool, less func(a, b model.Subscription) bool) (*model.Subscription, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var found []model.Subscription
	for _, sub := range r.s.subs {
		if match(sub) {
			found = append(found, sub)
		}
	}
	if len(found) == 0 {
		return nil, domain.ErrNotFound
	}
	if less != nil {
		sort.Slice(found, func(i, j int) bool { return less(found[i], found[j]) })
	}
	out := found[0]
	return &out, nil
}

func newestFirst(a, b model.Subscription) bool { return a.CreatedAt.After(b.CreatedAt) }

func (r *MockSubscriptionRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Subscription, error) {
	return r.first(func(s model.Subscription) bool { return s.ID == id }, nil)
}

func (r *MockSubscriptionRepo) FindByGatewayID(ctx context.Context, tx repository.Tx, gatewayID string) (*model.Subscription, error) {
	return r.first(func(s model.Subscription) bool {
		return s.GatewaySubscriptionID != nil && *s.GatewaySubscriptionID == gatewayID
	}, nil)
}

func (r *MockSubscriptionRepo) FindActiveByStudent(ctx context.Context, tx repository.Tx, studentID string) (*model.Subscription, error) {
	return r.first(func(s model.Subscription) bool {
		return s.StudentID == studentID && s.Status == model.SubscriptionStatusActive
	}, nil)
}

func (r *MockSubscriptionRepo) FindPendingByStudentAndPlan(ctx context.Context, tx repository.Tx, studentID, planID string) (*model.Subscription, error) {
	return r.first(func(s model.Subscription) bool {
		return s.StudentID == studentID && s.PlanID == planID && s.Status == model.SubscriptionStatusPending && s.GatewaySubscriptionID == nil
	}, newestFirst)
}

func (r *MockSubscriptionRepo) FindCurrentByStudent(ctx context.Context, tx repository.Tx, studentID string) (*model.Subscription, error) {
	return r.first(func(s model.Subscription) bool { return s.StudentID == studentID }, func(a, b model.Subscription) bool {
		aa, ba := a.Status == model.SubscriptionStatusActive, b.Status == model.SubscriptionStatusActive
		if aa != ba {
			return aa
		}
		return a.UpdatedAt.After(b.UpdatedAt)
	})
}

func (r *MockSubscriptionRepo) UpdateIf(ctx context.Context, tx repository.Tx, id string, upd model.SubscriptionUpdate) (bool, error) {
	if len(upd.From) == 0 {
		return false, domain.ErrInvalidArgument
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	sub, ok := r.s.subs[id]
	if !ok {
		return false, nil
	}
	allowed := false
	for _, f := range upd.From {
		if sub.Status == f {
			allowed = true
		}
	}
	if !allowed {
		return false, nil
	}
	if !upd.IgnoreOrder && upd.EventAt != nil && sub.GatewayEventAt != nil && sub.GatewayEventAt.After(*upd.EventAt) {
		return false, nil
	}
	if upd.Status == model.SubscriptionStatusActive && r.activeOtherLocked(sub.StudentID, sub.ID) {
		return false, domain.ErrAlreadySubscribed
	}

	sub.Status = upd.Status
	if upd.ClearGatewayID {
		sub.GatewaySubscriptionID = nil
	} else if upd.GatewayID != nil {
		gid := *upd.GatewayID
		sub.GatewaySubscriptionID = &gid
	}
	if upd.PeriodStart != nil {
		sub.CurrentPeriodStart = upd.PeriodStart
	}
	if upd.PeriodEnd != nil {
		sub.CurrentPeriodEnd = upd.PeriodEnd
	}
	if upd.ClearCancelledAt {
		sub.CancelledAt = nil
	} else if upd.CancelledAt != nil {
		sub.CancelledAt = upd.CancelledAt
	}
	if upd.EventAt != nil && (sub.GatewayEventAt == nil || upd.EventAt.After(*sub.GatewayEventAt)) {
		at := *upd.EventAt
		sub.GatewayEventAt = &at
	}
	sub.UpdatedAt = time.Now()
	r.s.subs[id] = sub
	return true, nil
}

func (r *MockSubscriptionRepo) ListActiveEndingBetween(ctx context.Context, tx repository.Tx, from, to time.Time) ([]*model.Subscription, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*model.Subscription
	for _, sub := range r.s.subs {
		if sub.Status != model.SubscriptionStatusActive || sub.CurrentPeriodEnd == nil {
			continue
		}
		if sub.CurrentPeriodEnd.Before(from) || !sub.CurrentPeriodEnd.Before(to) {
			continue
		}
		cp := sub
		out = append(out, &cp)
	}
	return out, nil
}

func (r *MockSubscriptionRepo) CountByStatus(ctx context.Context, tx repository.Tx) (map[model.SubscriptionStatus]int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := map[model.SubscriptionStatus]int{}
	for _, sub := range r.s.subs {
		out[sub.Status]++
	}
	return out, nil
}

// ---- Mock PaymentRepository ----

type MockPaymentRepo struct{ s *memStore }

var _ repository.PaymentRepository = (*MockPaymentRepo)(nil)

func (r *MockPaymentRepo) Insert(ctx context.Context, tx repository.Tx, p *model.Payment) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, existing := range r.s.payments {
		if existing.GatewayChargeID == p.GatewayChargeID {
			return false, nil
		}
	}
	r.s.payments[p.ID] = *p
	return true, nil
}

func (r *MockPaymentRepo) FindByGatewayChargeID(ctx context.Context, tx repository.Tx, chargeID string) (*model.Payment, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, p := range r.s.payments {
		if p.GatewayChargeID == chargeID {
			cp := p
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (r *MockPaymentRepo) UpdateStatusIf(ctx context.Context, tx repository.Tx, id string, status model.PaymentStatus, from []model.PaymentStatus, paidAt *time.Time) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	p, ok := r.s.payments[id]
	if !ok {
		return false, nil
	}
	for _, f := range from {
		if !f.CanTransitionTo(status) {
			return false, domain.ErrInvalidArgument
		}
		if p.Status == f {
			p.Status = status
			if paidAt != nil {
				p.PaidAt = paidAt
			}
			r.s.payments[id] = p
			return true, nil
		}
	}
	return false, nil
}

func (r *MockPaymentRepo) ListPaidBetween(ctx context.Context, tx repository.Tx, from, to time.Time) ([]*model.Payment, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*model.Payment
	for _, p := range r.s.payments {
		if p.Status != model.PaymentStatusPaid && p.Status != model.PaymentStatusRefunded {
			continue
		}
		if p.PaidAt == nil || p.PaidAt.Before(from) || !p.PaidAt.Before(to) {
			continue
		}
		cp := p
		out = append(out, &cp)
	}
	return out, nil
}

// ---- Mock PixPaymentRepository ----

type MockPixRepo struct{ s *memStore }

var _ repository.PixPaymentRepository = (*MockPixRepo)(nil)

func (r *MockPixRepo) Save(ctx context.Context, tx repository.Tx, p *model.PixPayment) error {
	r.s.putPix(p)
	return nil
}

func (r *MockPixRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.PixPayment, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	p, ok := r.s.pixes[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &p, nil
}

func (r *MockPixRepo) FindByGatewayChargeID(ctx context.Context, tx repository.Tx, chargeID string) (*model.PixPayment, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, p := range r.s.pixes {
		if p.GatewayChargeID == chargeID {
			cp := p
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (r *MockPixRepo) setStatusIf(id string, to model.PixStatus, ok func(model.PixPayment) bool, paidAt *time.Time) bool {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	p, found := r.s.pixes[id]
	if !found || !ok(p) {
		return false
	}
	p.Status = to
	if paidAt != nil {
		p.PaidAt = paidAt
	}
	r.s.pixes[id] = p
	return true
}

func (r *MockPixRepo) MarkPaid(ctx context.Context, tx repository.Tx, id string, paidAt time.Time) (bool, error) {
	return r.setStatusIf(id, model.PixStatusPaid, func(p model.PixPayment) bool {
		return p.Status == model.PixStatusPending || p.Status == model.PixStatusExpired
	}, &paidAt), nil
}

func (r *MockPixRepo) Expire(ctx context.Context, tx repository.Tx, id string) (bool, error) {
	return r.setStatusIf(id, model.PixStatusExpired, func(p model.PixPayment) bool {
		return p.Status == model.PixStatusPending
	}, nil), nil
}

func (r *MockPixRepo) ExpireIfOverdue(ctx context.Context, tx repository.Tx, id string, now time.Time) (bool, error) {
	return r.setStatusIf(id, model.PixStatusExpired, func(p model.PixPayment) bool {
		return p.Status == model.PixStatusPending && p.ExpiresAt.Before(now)
	}, nil), nil
}

func (r *MockPixRepo) ExpireOverdue(ctx context.Context, tx repository.Tx, now time.Time) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var n int64
	for id, p := range r.s.pixes {
		if p.Status == model.PixStatusPending && p.ExpiresAt.Before(now) {
			p.Status = model.PixStatusExpired
			r.s.pixes[id] = p
			n++
		}
	}
	return n, nil
}

func (r *MockPixRepo) ListPendingOlderThan(ctx context.Context, tx repository.Tx, olderThan time.Time, limit int) ([]*model.PixPayment, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*model.PixPayment
	for _, p := range r.s.pixes {
		if p.Status == model.PixStatusPending && p.CreatedAt.Before(olderThan) {
			cp := p
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// ---- Mock settings and audit repositories ----

type MockSettingsRepo struct{ s *memStore }

var _ repository.PaymentSettingsRepository = (*MockSettingsRepo)(nil)

func (r *MockSettingsRepo) Latest(ctx context.Context, tx repository.Tx) (*model.PaymentSettings, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if len(r.s.settings) == 0 {
		return nil, domain.ErrNotFound
	}
	out := r.s.settings[len(r.s.settings)-1]
	return &out, nil
}

func (r *MockSettingsRepo) Insert(ctx context.Context, tx repository.Tx, s *model.PaymentSettings) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, existing := range r.s.settings {
		if existing.Version == s.Version {
			return domain.ErrConflict
		}
	}
	r.s.settings = append(r.s.settings, *s)
	return nil
}

type MockAuditRepo struct{ s *memStore }

var _ repository.AuditRepository = (*MockAuditRepo)(nil)

func (r *MockAuditRepo) Append(ctx context.Context, tx repository.Tx, e *model.AuditEntry) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.audit = append(r.s.audit, *e)
	return nil
}

// ---- Mock WebhookEventRepository ----

type MockWebhookEventRepo struct{ s *memStore }

var _ repository.WebhookEventRepository = (*MockWebhookEventRepo)(nil)

func (r *MockWebhookEventRepo) Record(ctx context.Context, tx repository.Tx, ev *model.WebhookEvent) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.events[ev.ID] {
		return false, nil
	}
	r.s.events[ev.ID] = true
	return true, nil
}

// =============================
// Adapters
// =============================

// ---- Mock Notifier ----

type MockNotifier struct {
	mu   sync.Mutex
	Sent []model.Notification

	NotifyFunc func(ctx context.Context, n model.Notification) error
}

var _ adapter.Notifier = (*MockNotifier)(nil)

func (m *MockNotifier) Notify(ctx context.Context, n model.Notification) error {
	if m.NotifyFunc != nil {
		return m.NotifyFunc(ctx, n)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Sent = append(m.Sent, n)
	return nil
}

func (m *MockNotifier) Kinds() []model.NotificationKind {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]model.NotificationKind, len(m.Sent))
	for i, n := range m.Sent {
		out[i] = n.Kind
	}
	return out
}

// ---- Mock CheckoutLimiter ----

type MockLimiter struct {
	AllowFunc func(ctx context.Context, studentID string) (bool, error)
}

func (m *MockLimiter) AllowCheckout(ctx context.Context, studentID string) (bool, error) {
	if m.AllowFunc != nil {
		return m.AllowFunc(ctx, studentID)
	}
	return true, nil
}

// ---- In-memory OnceMarker ----

type MockOnce struct {
	mu   sync.Mutex
	seen map[string]bool
}

func NewMockOnce() *MockOnce { return &MockOnce{seen: map[string]bool{}} }

func (m *MockOnce) MarkOnce(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.seen[key] {
		return false, nil
	}
	m.seen[key] = true
	return true, nil
}

// =============================
// Fixture: every use case wired over one store
// =============================

const testWebhookSecret = "whsec_test"

type fixture struct {
	store    *memStore
	tm       *MockTxManager
	subsRepo *MockSubscriptionRepo
	gateway  *gateway.SandboxGateway
	notifier *MockNotifier
	limiter  *MockLimiter

	settings     usecase.SettingsUseCase
	pix          usecase.PixUseCase
	checkout     usecase.CheckoutUseCase
	webhook      usecase.WebhookUseCase
	subscription usecase.SubscriptionUseCase
	recon        usecase.ReconciliationUseCase
	reminders    usecase.NotificationUseCase

	studentID string
	plan      *model.Plan
}

func defaultSettings() model.PaymentSettings {
	return model.PaymentSettings{
		MaxInstallments:             12,
		PixDiscountPercent:          decimal.NewFromInt(10),
		InstallmentsWithoutInterest: 3,
		PixExpirationMinutes:        30,
		UpdatedBy:                   "config",
	}
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	log := newTestLogger()
	store := newMemStore()

	f := &fixture{
		store:    store,
		tm:       NewMockTxManager(store),
		subsRepo: &MockSubscriptionRepo{s: store},
		gateway:  gateway.NewSandboxGateway(testWebhookSecret),
		notifier: &MockNotifier{},
		limiter:  &MockLimiter{},
	}
	students := &MockStudentRepo{s: store}
	plans := &MockPlanRepo{s: store}
	payments := &MockPaymentRepo{s: store}
	pixes := &MockPixRepo{s: store}

	f.settings = usecase.NewSettingsUseCase(&MockSettingsRepo{s: store}, &MockAuditRepo{s: store}, f.tm, defaultSettings(), log)
	f.pix = usecase.NewPixUseCase(pixes, payments, f.subsRepo, plans, f.tm, f.gateway, f.notifier, log)
	f.checkout = usecase.NewCheckoutUseCase(students, plans, f.subsRepo, f.settings, f.pix, f.gateway, f.limiter, log)
	f.webhook = usecase.NewWebhookUseCase(&MockWebhookEventRepo{s: store}, f.subsRepo, payments, pixes, f.pix, f.tm, f.gateway, f.notifier, log)
	f.subscription = usecase.NewSubscriptionUseCase(f.subsRepo, plans, students, f.tm, f.checkout, f.gateway, f.notifier, log)
	f.recon = usecase.NewReconciliationUseCase(payments, f.gateway, log)
	f.reminders = usecase.NewNotificationUseCase(f.subsRepo, f.notifier, NewMockOnce(), log)

	f.studentID = uuid.NewString()
	store.addStudent(f.studentID)
	plan, err := model.NewPlan(uuid.NewString(), "Pro", 9990, "BRL", model.BillingIntervalMonth)
	if err != nil {
		t.Fatal(err)
	}
	store.putPlan(plan)
	f.plan = plan
	return f
}

func intPtr(n int) *int { return &n }

// deliver signs and hands a webhook to the use case.
func (f *fixture) deliver(t *testing.T, payload []byte) (usecase.Outcome, error) {
	t.Helper()
	return f.webhook.HandleEvent(context.Background(), payload, f.gateway.SignPayload(payload))
}

// event builds a gateway envelope.
func event(t *testing.T, id, typ string, created time.Time, object any) []byte {
	t.Helper()
	b, err := json.Marshal(map[string]any{
		"id":      id,
		"type":    typ,
		"created": created.Unix(),
		"data":    map[string]any{"object": object},
	})
	if err != nil {
		t.Fatal(err)
	}
	return b
}

func subscriptionObject(gatewayID, status string, meta map[string]string, periodStart, periodEnd time.Time) map[string]any {
	return map[string]any{
		"id":                   gatewayID,
		"status":               status,
		"current_period_start": periodStart.Unix(),
		"current_period_end":   periodEnd.Unix(),
		"metadata":             meta,
	}
}

func invoiceObject(invoiceID, gatewaySubID string, attempt int, amount int64) map[string]any {
	return map[string]any{
		"id":            invoiceID,
		"subscription":  gatewaySubID,
		"charge":        fmt.Sprintf("ch_%s_%d", invoiceID, attempt),
		"attempt_count": attempt,
		"amount_paid":   amount,
		"currency":      "brl",
	}
}

// newTestLogger creates a silent zerolog.Logger for use in tests.
func newTestLogger() *zerolog.Logger {
	logger := zerolog.New(io.Discard)
	return &logger
}
