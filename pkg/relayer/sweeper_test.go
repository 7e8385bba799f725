package relayer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/octobounty/escrow-middleware/pkg/bounty"
	"github.com/octobounty/escrow-middleware/pkg/config"
	"github.com/octobounty/escrow-middleware/pkg/ghverify"
)

func sweepConfig() config.SweepConfig {
	return config.SweepConfig{
		Interval:   config.Duration(10 * time.Millisecond),
		ItemDelay:  config.Duration(time.Millisecond),
		BatchLimit: 50,
	}
}

func claimedBounty(id string) *bounty.Bounty {
	return &bounty.Bounty{
		ID:          id,
		RepoOwner:   "octocat",
		RepoName:    "hello",
		IssueNumber: 42,
		Status:      bounty.StatusClaimed,
	}
}

func TestSweeper_ProcessesAllClaimedInOrder(t *testing.T) {
	var order []string
	store := &MockClaimedLister{
		ListClaimedBountiesFunc: func(_ context.Context, limit int) ([]*bounty.Bounty, error) {
			if limit != 50 {
				t.Fatalf("unexpected batch limit %d", limit)
			}
			return []*bounty.Bounty{claimedBounty("b-1"), claimedBounty("b-2"), claimedBounty("b-3")}, nil
		},
	}
	svc := &MockCompleter{
		CompleteFunc: func(_ context.Context, id string) (*bounty.Bounty, error) {
			order = append(order, id)
			b := claimedBounty(id)
			b.Status = bounty.StatusCompleted
			return b, nil
		},
	}
	s := NewSweeper(svc, store, sweepConfig(), zap.NewNop())

	if err := s.Sweep(context.Background()); err != nil {
		t.Fatalf("Sweep() failed: %v", err)
	}
	if len(order) != 3 || order[0] != "b-1" || order[1] != "b-2" || order[2] != "b-3" {
		t.Fatalf("expected FIFO processing, got %v", order)
	}
}

func TestSweeper_IsolatesPerBountyFailures(t *testing.T) {
	var processed []string
	svc := &MockCompleter{
		CompleteFunc: func(_ context.Context, id string) (*bounty.Bounty, error) {
			processed = append(processed, id)
			if id == "b-2" {
				return nil, errors.New("escrow call reverted")
			}
			b := claimedBounty(id)
			b.Status = bounty.StatusCompleted
			return b, nil
		},
	}
	store := &MockClaimedLister{
		ListClaimedBountiesFunc: func(_ context.Context, _ int) ([]*bounty.Bounty, error) {
			return []*bounty.Bounty{claimedBounty("b-1"), claimedBounty("b-2"), claimedBounty("b-3")}, nil
		},
	}
	s := NewSweeper(svc, store, sweepConfig(), zap.NewNop())

	if err := s.Sweep(context.Background()); err != nil {
		t.Fatalf("one bounty's failure must not abort the sweep: %v", err)
	}
	if len(processed) != 3 {
		t.Fatalf("expected all 3 bounties processed, got %v", processed)
	}
}

func TestSweeper_TransientOutcomeKeepsBounty(t *testing.T) {
	svc := &MockCompleter{
		CompleteFunc: func(_ context.Context, _ string) (*bounty.Bounty, error) {
			return nil, fmt.Errorf("verification attempt 1/5: github 502: %w", ghverify.ErrTransient)
		},
	}
	store := &MockClaimedLister{
		ListClaimedBountiesFunc: func(_ context.Context, _ int) ([]*bounty.Bounty, error) {
			return []*bounty.Bounty{claimedBounty("b-1")}, nil
		},
	}
	s := NewSweeper(svc, store, sweepConfig(), zap.NewNop())

	if err := s.Sweep(context.Background()); err != nil {
		t.Fatalf("transient outcomes must not fail the cycle: %v", err)
	}
}

func TestSweeper_ListFailureFailsCycle(t *testing.T) {
	listErr := errors.New("db unavailable")
	store := &MockClaimedLister{
		ListClaimedBountiesFunc: func(_ context.Context, _ int) ([]*bounty.Bounty, error) {
			return nil, listErr
		},
	}
	s := NewSweeper(&MockCompleter{}, store, sweepConfig(), zap.NewNop())

	if err := s.Sweep(context.Background()); !errors.Is(err, listErr) {
		t.Fatalf("expected the list error, got %v", err)
	}
}

func TestSweeper_SingleFlight(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{})
	var calls int
	var mu sync.Mutex

	svc := &MockCompleter{
		CompleteFunc: func(_ context.Context, id string) (*bounty.Bounty, error) {
			mu.Lock()
			calls++
			mu.Unlock()
			close(started)
			<-release
			b := claimedBounty(id)
			b.Status = bounty.StatusCompleted
			return b, nil
		},
	}
	store := &MockClaimedLister{
		ListClaimedBountiesFunc: func(_ context.Context, _ int) ([]*bounty.Bounty, error) {
			return []*bounty.Bounty{claimedBounty("b-1")}, nil
		},
	}
	s := NewSweeper(svc, store, sweepConfig(), zap.NewNop())

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_ = s.Sweep(context.Background())
	}()

	<-started
	// A second cycle while the first is in flight is a silent no-op.
	if err := s.Sweep(context.Background()); err != nil {
		t.Fatalf("overlapping sweep must be skipped, not fail: %v", err)
	}
	close(release)
	wg.Wait()

	mu.Lock()
	defer mu.Unlock()
	if calls != 1 {
		t.Fatalf("expected exactly one completion call, got %d", calls)
	}
}

func TestSweeper_StartStop(t *testing.T) {
	var mu sync.Mutex
	cycles := 0
	store := &MockClaimedLister{
		ListClaimedBountiesFunc: func(_ context.Context, _ int) ([]*bounty.Bounty, error) {
			mu.Lock()
			cycles++
			mu.Unlock()
			return nil, nil
		},
	}
	s := NewSweeper(&MockCompleter{}, store, sweepConfig(), zap.NewNop())

	s.Start(context.Background())
	time.Sleep(60 * time.Millisecond)
	s.Stop()

	mu.Lock()
	defer mu.Unlock()
	if cycles == 0 {
		t.Fatal("expected at least one sweep cycle before stop")
	}
}

func TestSweeper_ExhaustedRetriesCountAsFailed(t *testing.T) {
	// A nil bounty with nil error is the exhausted-retries signal.
	svc := &MockCompleter{
		CompleteFunc: func(_ context.Context, _ string) (*bounty.Bounty, error) {
			return nil, nil
		},
	}
	store := &MockClaimedLister{
		ListClaimedBountiesFunc: func(_ context.Context, _ int) ([]*bounty.Bounty, error) {
			return []*bounty.Bounty{claimedBounty("b-1")}, nil
		},
	}
	s := NewSweeper(svc, store, sweepConfig(), zap.NewNop())

	if err := s.Sweep(context.Background()); err != nil {
		t.Fatalf("Sweep() failed: %v", err)
	}
}
