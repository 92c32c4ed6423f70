// Package reconciliation refetches positions from the position service and feeds
// them to the state manager, which drops anything older than what it holds.
package reconciliation

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"terminal-core/internal/monitor"
	"terminal-core/internal/position"
	"terminal-core/internal/state"
	"terminal-core/pkg/i18n"
	"terminal-core/pkg/logger"
)

// PositionSource fetches the authoritative snapshot of one position.
type PositionSource interface {
	FetchPosition(ctx context.Context, id string) (position.Entity, error)
}

// Service handles on-demand and periodic position refreshes.
type Service struct {
	source   PositionSource
	stateMgr *state.Manager
	metrics  *monitor.Metrics
	interval time.Duration
	log      *zap.Logger
	mu       sync.Mutex
}

// Result is the outcome of one refresh.
type Result struct {
	Position position.Entity
	Applied  bool
}

// Report summarises one periodic pass.
type Report struct {
	Timestamp time.Time
	Applied   []string
	Stale     []string
	Failed    map[string]error
}

// NewService creates a new reconciliation service
func NewService(source PositionSource, stateMgr *state.Manager, metrics *monitor.Metrics, interval time.Duration) *Service {
	return &Service{
		source:   source,
		stateMgr: stateMgr,
		metrics:  metrics,
		interval: interval,
		log:      logger.Named("reconciliation"),
	}
}

// Refresh refetches one position and applies it. A stale fetch is not an error;
// Applied reports whether the state manager accepted it.
func (s *Service) Refresh(ctx context.Context, id string) (Result, error) {
	e, err := s.source.FetchPosition(ctx, id)
	if err != nil {
		s.metrics.PositionRefresh(monitor.RefreshError)
		s.log.Warn(i18n.Format("PositionRefreshError", id, err))
		return Result{}, err
	}
	applied, err := s.stateMgr.Apply(ctx, e)
	if err != nil {
		s.metrics.PositionRefresh(monitor.RefreshError)
		s.log.Warn(i18n.Format("PositionRefreshError", id, err))
		return Result{}, err
	}
	if applied {
		s.metrics.PositionRefresh(monitor.RefreshApplied)
		s.log.Debug(i18n.Format("PositionRefreshed", id, e.Version))
	} else {
		s.metrics.PositionRefresh(monitor.RefreshStale)
	}
	return Result{Position: e, Applied: applied}, nil
}

// Reconcile refreshes every open position the state manager knows.
func (s *Service) Reconcile(ctx context.Context) *Report {
	s.mu.Lock()
	defer s.mu.Unlock()

	report := &Report{Timestamp: time.Now(), Failed: make(map[string]error)}
	for _, p := range s.stateMgr.Positions() {
		if p.Closed || p.Status == position.StatusClosed {
			continue
		}
		res, err := s.Refresh(ctx, p.ID)
		switch {
		case err != nil:
			report.Failed[p.ID] = err
		case res.Applied:
			report.Applied = append(report.Applied, p.ID)
		default:
			report.Stale = append(report.Stale, p.ID)
		}
	}
	return report
}

// Start begins periodic reconciliation
func (s *Service) Start(ctx context.Context) {
	if s.interval <= 0 {
		return
	}
	ticker := time.NewTicker(s.interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				report := s.Reconcile(ctx)
				if len(report.Failed) > 0 {
					s.log.Warn(i18n.Format("ReconFailed", len(report.Failed)), zap.Strings("applied", report.Applied))
				}
			case <-ctx.Done():
				return
			}
		}
	}()

	s.log.Info(i18n.Format("ReconStarted", s.interval))
}
