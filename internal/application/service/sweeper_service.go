package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/tablelane/tablelane-api/internal/domain/entity"
	"github.com/tablelane/tablelane-api/internal/domain/repository"
	"go.uber.org/zap"
)

const abandonedReason = "abandoned before payment"

// SweeperService cancels QR orders whose guests walked away without
// paying. It relies on the same pending-only guard as the payment
// transition, so a sweep racing a late confirmation can never cancel
// an order that just got paid.
type SweeperService struct {
	orderRepo repository.OrderRepository
	maxAge    time.Duration
	interval  time.Duration
	logger    *zap.Logger

	stop chan struct{}
}

// NewSweeperService creates a sweeper. maxAge is how long an order may
// stay pending; interval is how often the sweep runs.
func NewSweeperService(orderRepo repository.OrderRepository, maxAge, interval time.Duration, logger *zap.Logger) *SweeperService {
	if maxAge <= 0 {
		maxAge = 30 * time.Minute
	}
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	return &SweeperService{
		orderRepo: orderRepo,
		maxAge:    maxAge,
		interval:  interval,
		logger:    logger,
		stop:      make(chan struct{}),
	}
}

// Sweep cancels every pending order older than maxAge and returns how
// many it cancelled. A uuid.Nil tenantID spans all tenants and is
// reserved for the background timer; the admin endpoint always passes
// the caller's own tenant. A non-positive maxAge falls back to the
// configured default.
func (s *SweeperService) Sweep(ctx context.Context, tenantID uuid.UUID, maxAge time.Duration) (int64, error) {
	if maxAge <= 0 {
		maxAge = s.maxAge
	}
	cutoff := time.Now().Add(-maxAge)
	swept, err := s.orderRepo.CancelAbandoned(ctx, tenantID, cutoff, abandonedReason)
	if err != nil {
		return 0, err
	}
	if swept > 0 {
		s.logger.Info("swept abandoned orders", zap.Int64("count", swept))
	}
	return swept, nil
}

// PendingCount reports how many of the tenant's orders currently await
// payment.
func (s *SweeperService) PendingCount(ctx context.Context, tenantID uuid.UUID) (int64, error) {
	return s.orderRepo.CountPending(ctx, tenantID)
}

// ListAbandoned previews the orders a sweep with the given maxAge would
// cancel for the tenant. A non-positive maxAge falls back to the
// configured default.
func (s *SweeperService) ListAbandoned(ctx context.Context, tenantID uuid.UUID, maxAge time.Duration) ([]entity.Order, error) {
	if maxAge <= 0 {
		maxAge = s.maxAge
	}
	cutoff := time.Now().Add(-maxAge)
	return s.orderRepo.ListPendingBefore(ctx, tenantID, cutoff)
}

// Start runs the sweep loop in the background until Stop is called.
func (s *SweeperService) Start() {
	go func() {
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
				if _, err := s.Sweep(ctx, uuid.Nil, 0); err != nil {
					s.logger.Error("sweep failed", zap.Error(err))
				}
				cancel()
			case <-s.stop:
				return
			}
		}
	}()
}

// Stop terminates the sweep loop.
func (s *SweeperService) Stop() {
	close(s.stop)
}
