// Package relayer drives claimed bounties to their outcome. A periodic sweep
// fetches claimed bounties in claim order and runs the lifecycle completion
// for each one, strictly sequentially against the single relayer identity.
package relayer

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/octobounty/escrow-middleware/internal/metrics"
	"github.com/octobounty/escrow-middleware/pkg/bounty"
	"github.com/octobounty/escrow-middleware/pkg/config"
	"github.com/octobounty/escrow-middleware/pkg/ghverify"
)

// Completer is the lifecycle slice the sweep drives.
type Completer interface {
	Complete(ctx context.Context, id string) (*bounty.Bounty, error)
}

// ClaimedLister fetches the sweep working set.
type ClaimedLister interface {
	ListClaimedBounties(ctx context.Context, limit int) ([]*bounty.Bounty, error)
}

// Sweeper periodically drives claimed bounties to completed or
// failed_verification.
type Sweeper struct {
	service Completer
	store   ClaimedLister
	cfg     config.SweepConfig
	logger  *zap.Logger

	running bool
	mu      sync.Mutex

	stopCh chan struct{}
	wg     sync.WaitGroup
}

// NewSweeper creates a sweeper from the relayer sweep settings.
func NewSweeper(svc Completer, store ClaimedLister, cfg config.SweepConfig, logger *zap.Logger) *Sweeper {
	if cfg.BatchLimit <= 0 {
		cfg.BatchLimit = 50
	}
	return &Sweeper{
		service: svc,
		store:   store,
		cfg:     cfg,
		logger:  logger,
		stopCh:  make(chan struct{}),
	}
}

// Start launches the periodic sweep loop.
func (s *Sweeper) Start(ctx context.Context) {
	s.logger.Info("Starting relayer sweep",
		zap.Duration("interval", s.cfg.Interval.Std()),
		zap.Int("batch_limit", s.cfg.BatchLimit))

	s.wg.Add(1)
	go s.loop(ctx)
}

// Stop stops the sweep loop and waits for an in-flight cycle to finish.
func (s *Sweeper) Stop() {
	s.logger.Info("Stopping relayer sweep")
	close(s.stopCh)
	s.wg.Wait()
	s.logger.Info("Relayer sweep stopped")
}

func (s *Sweeper) loop(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.cfg.Interval.Std())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stopCh:
			return
		case <-ticker.C:
			if err := s.Sweep(ctx); err != nil {
				s.logger.Error("Sweep cycle failed", zap.Error(err))
				metrics.SweepCycles.WithLabelValues("failed").Inc()
			} else {
				metrics.SweepCycles.WithLabelValues("ok").Inc()
			}
		}
	}
}

// Sweep runs one cycle: list claimed bounties FIFO and complete each in turn.
// One bounty's failure never aborts the batch. Overlapping cycles are
// rejected; the caller's ticker simply skips a beat.
func (s *Sweeper) Sweep(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		s.logger.Warn("Sweep already in progress, skipping cycle")
		return nil
	}
	s.running = true
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
	}()

	start := time.Now()
	claimed, err := s.store.ListClaimedBounties(ctx, s.cfg.BatchLimit)
	if err != nil {
		return err
	}
	if len(claimed) == 0 {
		return nil
	}

	var completed, failed, retried int
	for i, b := range claimed {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-s.stopCh:
			return nil
		default:
		}

		// A fixed gap between bounties keeps relayer nonces sequential and
		// the GitHub call rate bounded.
		if i > 0 {
			select {
			case <-time.After(s.cfg.ItemDelay.Std()):
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		outcome := s.process(ctx, b)
		switch outcome {
		case "completed":
			completed++
		case "failed_verification":
			failed++
		default:
			retried++
		}
		metrics.SweepProcessed.WithLabelValues(outcome).Inc()
	}

	metrics.SweepDuration.Observe(time.Since(start).Seconds())
	s.logger.Info("Sweep cycle summary",
		zap.Int("claimed", len(claimed)),
		zap.Int("completed", completed),
		zap.Int("failed_verification", failed),
		zap.Int("retried", retried),
		zap.Duration("duration", time.Since(start)))
	return nil
}

// process completes a single bounty and maps its result to a sweep outcome.
func (s *Sweeper) process(ctx context.Context, b *bounty.Bounty) string {
	result, err := s.service.Complete(ctx, b.ID)
	if err != nil {
		if errors.Is(err, ghverify.ErrTransient) {
			s.logger.Info("Verification not conclusive yet, will retry",
				zap.String("bounty_id", b.ID),
				zap.String("issue", b.Reference()),
				zap.Error(err))
			return "retried"
		}
		s.logger.Error("Failed to complete bounty",
			zap.String("bounty_id", b.ID),
			zap.String("issue", b.Reference()),
			zap.Error(err))
		metrics.ErrorsTotal.WithLabelValues("sweeper", "complete").Inc()
		return "error"
	}

	// A nil bounty with no error means the retry budget ran out inside the
	// completion call; the row is already marked failed_verification.
	if result == nil || result.Status == bounty.StatusFailedVerification {
		return "failed_verification"
	}

	if result.Status == bounty.StatusCompleted {
		metrics.BountiesTotal.WithLabelValues(string(bounty.StatusCompleted)).Inc()
		f, _ := result.Fees.Payout.Float64()
		metrics.PayoutAmount.WithLabelValues(string(result.Currency)).Observe(f)
		return "completed"
	}
	return string(result.Status)
}
