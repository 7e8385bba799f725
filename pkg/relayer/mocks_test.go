package relayer

import (
	"context"

	"github.com/octobounty/escrow-middleware/pkg/bounty"
)

// MockCompleter is a mock implementation of Completer
type MockCompleter struct {
	CompleteFunc func(ctx context.Context, id string) (*bounty.Bounty, error)
}

func (m *MockCompleter) Complete(ctx context.Context, id string) (*bounty.Bounty, error) {
	if m.CompleteFunc != nil {
		return m.CompleteFunc(ctx, id)
	}
	return nil, nil
}

// MockClaimedLister is a mock implementation of ClaimedLister
type MockClaimedLister struct {
	ListClaimedBountiesFunc func(ctx context.Context, limit int) ([]*bounty.Bounty, error)
}

func (m *MockClaimedLister) ListClaimedBounties(ctx context.Context, limit int) ([]*bounty.Bounty, error) {
	if m.ListClaimedBountiesFunc != nil {
		return m.ListClaimedBountiesFunc(ctx, limit)
	}
	return nil, nil
}
