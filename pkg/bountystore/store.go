// Package bountystore persists bounty lifecycle state in Postgres. All state
// transitions are single-transaction operations so that concurrent webhook,
// HTTP and relayer callers observe exactly one winner.
package bountystore

import (
	"context"
	"errors"
	"fmt"

	"github.com/octobounty/escrow-middleware/pkg/bounty"
)

// Sentinel errors. Callers branch on these with errors.Is.
var (
	ErrBountyNotFound        = errors.New("bounty not found")
	ErrWalletNotFound        = errors.New("wallet not found")
	ErrPayoutNotFound        = errors.New("payout not found")
	ErrInvalidTransition     = errors.New("invalid status transition")
	ErrNotClaimable          = errors.New("bounty is not claimable")
	ErrNotExpired            = errors.New("bounty has not expired")
	ErrAlreadyProcessed      = errors.New("already processed")
	ErrDuplicateActiveBounty = errors.New("active bounty already exists for this issue")
)

// DuplicateActiveBountyError reports a create collision and carries the
// existing bounty so callers can surface its summary instead of a bare error.
type DuplicateActiveBountyError struct {
	Existing *bounty.Bounty
}

func (e *DuplicateActiveBountyError) Error() string {
	return fmt.Sprintf("active bounty %s already exists for %s (status %s, created by %s)",
		e.Existing.ID, e.Existing.Reference(), e.Existing.Status, e.Existing.CreatorLogin)
}

// Is makes errors.Is(err, ErrDuplicateActiveBounty) succeed.
func (e *DuplicateActiveBountyError) Is(target error) bool {
	return target == ErrDuplicateActiveBounty
}

// NotClaimableError reports a lost or invalid claim and carries the
// authoritative state observed inside the claim transaction.
type NotClaimableError struct {
	Status       bounty.Status
	ClaimerLogin string
}

func (e *NotClaimableError) Error() string {
	if e.ClaimerLogin != "" {
		return fmt.Sprintf("bounty is not claimable: status %s, claimed by %s", e.Status, e.ClaimerLogin)
	}
	return fmt.Sprintf("bounty is not claimable: status %s", e.Status)
}

// Is makes errors.Is(err, ErrNotClaimable) succeed.
func (e *NotClaimableError) Is(target error) bool {
	return target == ErrNotClaimable
}

// FundingInfo is the verified on-chain correlation recorded when the escrow
// deposit confirms.
type FundingInfo struct {
	TxHash      string
	OnChainID   string
	BlockNumber int64
}

// CompletionInfo is the settled payout recorded when the escrow completes.
type CompletionInfo struct {
	TxHash    string
	Recipient string
}

// DeliveryStatus is the processing state of an inbound webhook delivery.
type DeliveryStatus string

const (
	DeliveryProcessing DeliveryStatus = "processing"
	DeliveryCompleted  DeliveryStatus = "completed"
	DeliveryFailed     DeliveryStatus = "failed"
	DeliveryIgnored    DeliveryStatus = "ignored"
)

// DeliveryMeta describes an inbound webhook delivery for audit purposes.
// It is never consulted for state decisions.
type DeliveryMeta struct {
	EventType    string
	Action       string
	RepoFullName string
	IssueNumber  int
}

// Store defines the persistence operations of the bounty lifecycle.
type Store interface {
	CreateBounty(ctx context.Context, b *bounty.Bounty) (*bounty.Bounty, error)
	GetBounty(ctx context.Context, id string) (*bounty.Bounty, error)
	GetActiveBounty(ctx context.Context, repoOwner, repoName string, issueNumber int) (*bounty.Bounty, error)
	ListBounties(ctx context.Context, opts ...QueryOption) ([]*bounty.Bounty, int, error)
	ListClaimedBounties(ctx context.Context, limit int) ([]*bounty.Bounty, error)

	RecordFunding(ctx context.Context, id string, info FundingInfo) (*bounty.Bounty, error)
	ClaimBounty(ctx context.Context, id, claimerLogin string, prNumber int, prURL string) (*bounty.Bounty, error)
	RecordCompletion(ctx context.Context, id string, info CompletionInfo) (*bounty.Bounty, error)
	MarkVerificationFailed(ctx context.Context, id, reason string) error
	BumpVerifyAttempts(ctx context.Context, id string) (int, error)
	RecordRefund(ctx context.Context, id, txHash string) (*bounty.Bounty, error)
	MarkExpired(ctx context.Context, id string) (*bounty.Bounty, error)

	RecordWebhookDelivery(ctx context.Context, deliveryID string, meta DeliveryMeta) (bool, error)
	SetWebhookDeliveryStatus(ctx context.Context, deliveryID string, status DeliveryStatus) error

	RecordPayout(ctx context.Context, p *bounty.Payout) (*bounty.Payout, error)
	GetPayout(ctx context.Context, settlementKey string) (*bounty.Payout, error)
	Leaderboard(ctx context.Context, limit int) ([]*bounty.LeaderboardEntry, error)

	CreateAttempt(ctx context.Context, a *bounty.Attempt) (*bounty.Attempt, error)
	ReleaseAttempt(ctx context.Context, userLogin, repoOwner, repoName string, issueNumber int) error

	CreateWallet(ctx context.Context, w *bounty.Wallet) error
	GetWallet(ctx context.Context, githubLogin string) (*bounty.Wallet, error)
}
