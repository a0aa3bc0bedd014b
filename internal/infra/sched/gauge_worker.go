package sched

import (
	"context"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/rs/zerolog"

	"elearning-billing/internal/domain/model"
	"elearning-billing/internal/infra/metrics"
)

type statusCounter interface {
	CountByStatus(ctx context.Context) (map[model.SubscriptionStatus]int, error)
}

type poolStater interface {
	Stat() *pgxpool.Stat
}

// GaugeWorker refreshes gauges that are cheaper to sample than to track.
// It runs on every replica.
type GaugeWorker struct {
	*Job
	subs statusCounter
	pool poolStater
}

// NewGaugeWorker accepts a nil pool.
func NewGaugeWorker(interval time.Duration, subs statusCounter, pool poolStater, logger *zerolog.Logger) *GaugeWorker {
	w := &GaugeWorker{subs: subs, pool: pool}
	w.Job = NewJob("gauges", interval, w.sample, nil, logger)
	return w
}

func (w *GaugeWorker) sample(ctx context.Context) error {
	if w.pool != nil {
		if st := w.pool.Stat(); st != nil {
			metrics.SetDBPoolStats(st.TotalConns(), st.IdleConns(), st.AcquiredConns(), st.MaxConns(), st.AcquireCount())
		}
	}
	counts, err := w.subs.CountByStatus(ctx)
	if err != nil {
		return err
	}
	metrics.SetSubscriptionsTotal(counts)
	return nil
}
