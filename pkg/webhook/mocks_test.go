package webhook

import (
	"context"

	"github.com/octobounty/escrow-middleware/pkg/bounty"
	"github.com/octobounty/escrow-middleware/pkg/bounty/service"
	"github.com/octobounty/escrow-middleware/pkg/bountystore"
)

// MockDeliveryStore is a mock implementation of DeliveryStore
type MockDeliveryStore struct {
	RecordWebhookDeliveryFunc    func(ctx context.Context, deliveryID string, meta bountystore.DeliveryMeta) (bool, error)
	SetWebhookDeliveryStatusFunc func(ctx context.Context, deliveryID string, status bountystore.DeliveryStatus) error
}

func (m *MockDeliveryStore) RecordWebhookDelivery(ctx context.Context, deliveryID string, meta bountystore.DeliveryMeta) (bool, error) {
	if m.RecordWebhookDeliveryFunc != nil {
		return m.RecordWebhookDeliveryFunc(ctx, deliveryID, meta)
	}
	return true, nil
}

func (m *MockDeliveryStore) SetWebhookDeliveryStatus(ctx context.Context, deliveryID string, status bountystore.DeliveryStatus) error {
	if m.SetWebhookDeliveryStatusFunc != nil {
		return m.SetWebhookDeliveryStatusFunc(ctx, deliveryID, status)
	}
	return nil
}

// MockService is a mock implementation of service.Service
type MockService struct {
	CreateFunc      func(ctx context.Context, req *service.CreateRequest) (*bounty.Bounty, error)
	ClaimFunc       func(ctx context.Context, id, claimerLogin string, prNumber int, prURL string) (*bounty.Bounty, error)
	GetForIssueFunc func(ctx context.Context, repoOwner, repoName string, issueNumber int) (*bounty.Bounty, error)
}

func (m *MockService) Create(ctx context.Context, req *service.CreateRequest) (*bounty.Bounty, error) {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, req)
	}
	return nil, nil
}

func (m *MockService) Fund(ctx context.Context, id, callerLogin string) (*bounty.Bounty, error) {
	return nil, nil
}

func (m *MockService) Claim(ctx context.Context, id, claimerLogin string, prNumber int, prURL string) (*bounty.Bounty, error) {
	if m.ClaimFunc != nil {
		return m.ClaimFunc(ctx, id, claimerLogin, prNumber, prURL)
	}
	return nil, nil
}

func (m *MockService) Complete(ctx context.Context, id string) (*bounty.Bounty, error) {
	return nil, nil
}

func (m *MockService) Refund(ctx context.Context, id, callerLogin string) (*bounty.Bounty, error) {
	return nil, nil
}

func (m *MockService) Expire(ctx context.Context, id, callerLogin string) (*bounty.Bounty, error) {
	return nil, nil
}

func (m *MockService) Get(ctx context.Context, id string) (*bounty.Bounty, error) {
	return nil, nil
}

func (m *MockService) GetForIssue(ctx context.Context, repoOwner, repoName string, issueNumber int) (*bounty.Bounty, error) {
	if m.GetForIssueFunc != nil {
		return m.GetForIssueFunc(ctx, repoOwner, repoName, issueNumber)
	}
	return nil, nil
}

func (m *MockService) List(ctx context.Context, q *service.ListQuery) ([]*bounty.Bounty, int, error) {
	return nil, 0, nil
}

func (m *MockService) Leaderboard(ctx context.Context, limit int) ([]*bounty.LeaderboardEntry, error) {
	return nil, nil
}

func (m *MockService) RegisterAttempt(ctx context.Context, login, repoOwner, repoName string, issueNumber int) (*bounty.Attempt, error) {
	return nil, nil
}

func (m *MockService) LinkWallet(ctx context.Context, req *service.LinkWalletRequest) (*bounty.Wallet, error) {
	return nil, nil
}
