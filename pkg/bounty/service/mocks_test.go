package service

import (
	"context"
	"crypto/ecdsa"
	"time"

	"github.com/shopspring/decimal"

	"github.com/octobounty/escrow-middleware/pkg/bounty"
	"github.com/octobounty/escrow-middleware/pkg/bountystore"
	"github.com/octobounty/escrow-middleware/pkg/escrow"
	"github.com/octobounty/escrow-middleware/pkg/ghverify"
)

// MockStore is a mock implementation of Store
type MockStore struct {
	CreateBountyFunc           func(ctx context.Context, b *bounty.Bounty) (*bounty.Bounty, error)
	GetBountyFunc              func(ctx context.Context, id string) (*bounty.Bounty, error)
	GetActiveBountyFunc        func(ctx context.Context, repoOwner, repoName string, issueNumber int) (*bounty.Bounty, error)
	ListBountiesFunc           func(ctx context.Context, opts ...bountystore.QueryOption) ([]*bounty.Bounty, int, error)
	RecordFundingFunc          func(ctx context.Context, id string, info bountystore.FundingInfo) (*bounty.Bounty, error)
	ClaimBountyFunc            func(ctx context.Context, id, claimerLogin string, prNumber int, prURL string) (*bounty.Bounty, error)
	RecordCompletionFunc       func(ctx context.Context, id string, info bountystore.CompletionInfo) (*bounty.Bounty, error)
	MarkVerificationFailedFunc func(ctx context.Context, id, reason string) error
	BumpVerifyAttemptsFunc     func(ctx context.Context, id string) (int, error)
	RecordRefundFunc           func(ctx context.Context, id, txHash string) (*bounty.Bounty, error)
	MarkExpiredFunc            func(ctx context.Context, id string) (*bounty.Bounty, error)
	RecordPayoutFunc           func(ctx context.Context, p *bounty.Payout) (*bounty.Payout, error)
	GetPayoutFunc              func(ctx context.Context, settlementKey string) (*bounty.Payout, error)
	LeaderboardFunc            func(ctx context.Context, limit int) ([]*bounty.LeaderboardEntry, error)
	CreateAttemptFunc          func(ctx context.Context, a *bounty.Attempt) (*bounty.Attempt, error)
	ReleaseAttemptFunc         func(ctx context.Context, userLogin, repoOwner, repoName string, issueNumber int) error
	CreateWalletFunc           func(ctx context.Context, w *bounty.Wallet) error
	GetWalletFunc              func(ctx context.Context, githubLogin string) (*bounty.Wallet, error)
}

func (m *MockStore) CreateBounty(ctx context.Context, b *bounty.Bounty) (*bounty.Bounty, error) {
	if m.CreateBountyFunc != nil {
		return m.CreateBountyFunc(ctx, b)
	}
	return b, nil
}

func (m *MockStore) GetBounty(ctx context.Context, id string) (*bounty.Bounty, error) {
	if m.GetBountyFunc != nil {
		return m.GetBountyFunc(ctx, id)
	}
	return nil, bountystore.ErrBountyNotFound
}

func (m *MockStore) GetActiveBounty(ctx context.Context, repoOwner, repoName string, issueNumber int) (*bounty.Bounty, error) {
	if m.GetActiveBountyFunc != nil {
		return m.GetActiveBountyFunc(ctx, repoOwner, repoName, issueNumber)
	}
	return nil, bountystore.ErrBountyNotFound
}

func (m *MockStore) ListBounties(ctx context.Context, opts ...bountystore.QueryOption) ([]*bounty.Bounty, int, error) {
	if m.ListBountiesFunc != nil {
		return m.ListBountiesFunc(ctx, opts...)
	}
	return nil, 0, nil
}

func (m *MockStore) RecordFunding(ctx context.Context, id string, info bountystore.FundingInfo) (*bounty.Bounty, error) {
	if m.RecordFundingFunc != nil {
		return m.RecordFundingFunc(ctx, id, info)
	}
	return nil, nil
}

func (m *MockStore) ClaimBounty(ctx context.Context, id, claimerLogin string, prNumber int, prURL string) (*bounty.Bounty, error) {
	if m.ClaimBountyFunc != nil {
		return m.ClaimBountyFunc(ctx, id, claimerLogin, prNumber, prURL)
	}
	return nil, nil
}

func (m *MockStore) RecordCompletion(ctx context.Context, id string, info bountystore.CompletionInfo) (*bounty.Bounty, error) {
	if m.RecordCompletionFunc != nil {
		return m.RecordCompletionFunc(ctx, id, info)
	}
	return nil, nil
}

func (m *MockStore) MarkVerificationFailed(ctx context.Context, id, reason string) error {
	if m.MarkVerificationFailedFunc != nil {
		return m.MarkVerificationFailedFunc(ctx, id, reason)
	}
	return nil
}

func (m *MockStore) BumpVerifyAttempts(ctx context.Context, id string) (int, error) {
	if m.BumpVerifyAttemptsFunc != nil {
		return m.BumpVerifyAttemptsFunc(ctx, id)
	}
	return 0, nil
}

func (m *MockStore) RecordRefund(ctx context.Context, id, txHash string) (*bounty.Bounty, error) {
	if m.RecordRefundFunc != nil {
		return m.RecordRefundFunc(ctx, id, txHash)
	}
	return nil, nil
}

func (m *MockStore) MarkExpired(ctx context.Context, id string) (*bounty.Bounty, error) {
	if m.MarkExpiredFunc != nil {
		return m.MarkExpiredFunc(ctx, id)
	}
	return nil, nil
}

func (m *MockStore) RecordPayout(ctx context.Context, p *bounty.Payout) (*bounty.Payout, error) {
	if m.RecordPayoutFunc != nil {
		return m.RecordPayoutFunc(ctx, p)
	}
	return p, nil
}

func (m *MockStore) GetPayout(ctx context.Context, settlementKey string) (*bounty.Payout, error) {
	if m.GetPayoutFunc != nil {
		return m.GetPayoutFunc(ctx, settlementKey)
	}
	return nil, bountystore.ErrPayoutNotFound
}

func (m *MockStore) Leaderboard(ctx context.Context, limit int) ([]*bounty.LeaderboardEntry, error) {
	if m.LeaderboardFunc != nil {
		return m.LeaderboardFunc(ctx, limit)
	}
	return nil, nil
}

func (m *MockStore) CreateAttempt(ctx context.Context, a *bounty.Attempt) (*bounty.Attempt, error) {
	if m.CreateAttemptFunc != nil {
		return m.CreateAttemptFunc(ctx, a)
	}
	return a, nil
}

func (m *MockStore) ReleaseAttempt(ctx context.Context, userLogin, repoOwner, repoName string, issueNumber int) error {
	if m.ReleaseAttemptFunc != nil {
		return m.ReleaseAttemptFunc(ctx, userLogin, repoOwner, repoName, issueNumber)
	}
	return nil
}

func (m *MockStore) CreateWallet(ctx context.Context, w *bounty.Wallet) error {
	if m.CreateWalletFunc != nil {
		return m.CreateWalletFunc(ctx, w)
	}
	return nil
}

func (m *MockStore) GetWallet(ctx context.Context, githubLogin string) (*bounty.Wallet, error) {
	if m.GetWalletFunc != nil {
		return m.GetWalletFunc(ctx, githubLogin)
	}
	return nil, bountystore.ErrWalletNotFound
}

// MockService is a mock implementation of Service
type MockService struct {
	CreateFunc          func(ctx context.Context, req *CreateRequest) (*bounty.Bounty, error)
	FundFunc            func(ctx context.Context, id, callerLogin string) (*bounty.Bounty, error)
	ClaimFunc           func(ctx context.Context, id, claimerLogin string, prNumber int, prURL string) (*bounty.Bounty, error)
	CompleteFunc        func(ctx context.Context, id string) (*bounty.Bounty, error)
	RefundFunc          func(ctx context.Context, id, callerLogin string) (*bounty.Bounty, error)
	ExpireFunc          func(ctx context.Context, id, callerLogin string) (*bounty.Bounty, error)
	GetFunc             func(ctx context.Context, id string) (*bounty.Bounty, error)
	GetForIssueFunc     func(ctx context.Context, repoOwner, repoName string, issueNumber int) (*bounty.Bounty, error)
	ListFunc            func(ctx context.Context, q *ListQuery) ([]*bounty.Bounty, int, error)
	LeaderboardFunc     func(ctx context.Context, limit int) ([]*bounty.LeaderboardEntry, error)
	RegisterAttemptFunc func(ctx context.Context, login, repoOwner, repoName string, issueNumber int) (*bounty.Attempt, error)
	LinkWalletFunc      func(ctx context.Context, req *LinkWalletRequest) (*bounty.Wallet, error)
}

func (m *MockService) Create(ctx context.Context, req *CreateRequest) (*bounty.Bounty, error) {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, req)
	}
	return nil, nil
}

func (m *MockService) Fund(ctx context.Context, id, callerLogin string) (*bounty.Bounty, error) {
	if m.FundFunc != nil {
		return m.FundFunc(ctx, id, callerLogin)
	}
	return nil, nil
}

func (m *MockService) Claim(ctx context.Context, id, claimerLogin string, prNumber int, prURL string) (*bounty.Bounty, error) {
	if m.ClaimFunc != nil {
		return m.ClaimFunc(ctx, id, claimerLogin, prNumber, prURL)
	}
	return nil, nil
}

func (m *MockService) Complete(ctx context.Context, id string) (*bounty.Bounty, error) {
	if m.CompleteFunc != nil {
		return m.CompleteFunc(ctx, id)
	}
	return nil, nil
}

func (m *MockService) Refund(ctx context.Context, id, callerLogin string) (*bounty.Bounty, error) {
	if m.RefundFunc != nil {
		return m.RefundFunc(ctx, id, callerLogin)
	}
	return nil, nil
}

func (m *MockService) Expire(ctx context.Context, id, callerLogin string) (*bounty.Bounty, error) {
	if m.ExpireFunc != nil {
		return m.ExpireFunc(ctx, id, callerLogin)
	}
	return nil, nil
}

func (m *MockService) Get(ctx context.Context, id string) (*bounty.Bounty, error) {
	if m.GetFunc != nil {
		return m.GetFunc(ctx, id)
	}
	return nil, nil
}

func (m *MockService) GetForIssue(ctx context.Context, repoOwner, repoName string, issueNumber int) (*bounty.Bounty, error) {
	if m.GetForIssueFunc != nil {
		return m.GetForIssueFunc(ctx, repoOwner, repoName, issueNumber)
	}
	return nil, nil
}

func (m *MockService) List(ctx context.Context, q *ListQuery) ([]*bounty.Bounty, int, error) {
	if m.ListFunc != nil {
		return m.ListFunc(ctx, q)
	}
	return nil, 0, nil
}

func (m *MockService) Leaderboard(ctx context.Context, limit int) ([]*bounty.LeaderboardEntry, error) {
	if m.LeaderboardFunc != nil {
		return m.LeaderboardFunc(ctx, limit)
	}
	return nil, nil
}

func (m *MockService) RegisterAttempt(ctx context.Context, login, repoOwner, repoName string, issueNumber int) (*bounty.Attempt, error) {
	if m.RegisterAttemptFunc != nil {
		return m.RegisterAttemptFunc(ctx, login, repoOwner, repoName, issueNumber)
	}
	return nil, nil
}

func (m *MockService) LinkWallet(ctx context.Context, req *LinkWalletRequest) (*bounty.Wallet, error) {
	if m.LinkWalletFunc != nil {
		return m.LinkWalletFunc(ctx, req)
	}
	return nil, nil
}

// MockLedger is a mock implementation of Ledger
type MockLedger struct {
	CreateBountyFunc   func(ctx context.Context, payerKey *ecdsa.PrivateKey, currency bounty.Currency, totalPaid decimal.Decimal, expiry time.Time) (*escrow.FundingReceipt, error)
	CompleteBountyFunc func(ctx context.Context, onChainID, recipient string) (string, error)
	RefundBountyFunc   func(ctx context.Context, payerKey *ecdsa.PrivateKey, onChainID string) (string, error)
}

func (m *MockLedger) CreateBounty(ctx context.Context, payerKey *ecdsa.PrivateKey, currency bounty.Currency, totalPaid decimal.Decimal, expiry time.Time) (*escrow.FundingReceipt, error) {
	if m.CreateBountyFunc != nil {
		return m.CreateBountyFunc(ctx, payerKey, currency, totalPaid, expiry)
	}
	return &escrow.FundingReceipt{}, nil
}

func (m *MockLedger) CompleteBounty(ctx context.Context, onChainID, recipient string) (string, error) {
	if m.CompleteBountyFunc != nil {
		return m.CompleteBountyFunc(ctx, onChainID, recipient)
	}
	return "", nil
}

func (m *MockLedger) RefundBounty(ctx context.Context, payerKey *ecdsa.PrivateKey, onChainID string) (string, error) {
	if m.RefundBountyFunc != nil {
		return m.RefundBountyFunc(ctx, payerKey, onChainID)
	}
	return "", nil
}

// MockVerifier is a mock implementation of Verifier
type MockVerifier struct {
	VerifyFunc func(ctx context.Context, owner, repo string, prNumber, issueNumber int) (*ghverify.Result, error)
}

func (m *MockVerifier) Verify(ctx context.Context, owner, repo string, prNumber, issueNumber int) (*ghverify.Result, error) {
	if m.VerifyFunc != nil {
		return m.VerifyFunc(ctx, owner, repo, prNumber, issueNumber)
	}
	return &ghverify.Result{Verified: true}, nil
}

// MockCipher is a mock implementation of KeyCipher
type MockCipher struct {
	EncryptPrivateKeyFunc func(login string, privateKey []byte) (string, error)
	DecryptPrivateKeyFunc func(login, encrypted string) ([]byte, error)
}

func (m *MockCipher) EncryptPrivateKey(login string, privateKey []byte) (string, error) {
	if m.EncryptPrivateKeyFunc != nil {
		return m.EncryptPrivateKeyFunc(login, privateKey)
	}
	return "", nil
}

func (m *MockCipher) DecryptPrivateKey(login, encrypted string) ([]byte, error) {
	if m.DecryptPrivateKeyFunc != nil {
		return m.DecryptPrivateKeyFunc(login, encrypted)
	}
	return nil, nil
}
