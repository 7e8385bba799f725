// Package bounty defines the core domain model for GitHub issue bounties:
// lifecycle statuses, supported currencies, fee math and comment commands.
package bounty

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Status is the lifecycle state of a bounty.
type Status string

const (
	StatusPendingPayment     Status = "pending_payment"
	StatusFunded             Status = "funded"
	StatusClaimed            Status = "claimed"
	StatusCompleted          Status = "completed"
	StatusRefunded           Status = "refunded"
	StatusExpired            Status = "expired"
	StatusFailedVerification Status = "failed_verification"
)

// Terminal reports whether no further transition is possible from s.
func (s Status) Terminal() bool {
	switch s {
	case StatusCompleted, StatusRefunded, StatusExpired, StatusFailedVerification:
		return true
	}
	return false
}

// Valid reports whether s is a known lifecycle status.
func (s Status) Valid() bool {
	switch s {
	case StatusPendingPayment, StatusFunded, StatusClaimed, StatusCompleted,
		StatusRefunded, StatusExpired, StatusFailedVerification:
		return true
	}
	return false
}

// Active reports whether s still blocks a new bounty on the same issue.
// Refunded and expired bounties release the (repo, issue) slot.
func (s Status) Active() bool {
	return s != StatusRefunded && s != StatusExpired
}

// Currency is one of the supported escrow tokens. Values are case-sensitive
// uppercase token symbols.
type Currency string

const (
	CurrencyUSDC Currency = "USDC"
	CurrencyUSDT Currency = "USDT"
	CurrencyDAI  Currency = "DAI"
)

// Currencies returns the closed set of supported tokens.
func Currencies() []Currency {
	return []Currency{CurrencyUSDC, CurrencyUSDT, CurrencyDAI}
}

// ParseCurrency validates a token symbol. Matching is exact: lowercase or
// mixed-case symbols are rejected.
func ParseCurrency(s string) (Currency, bool) {
	switch Currency(s) {
	case CurrencyUSDC, CurrencyUSDT, CurrencyDAI:
		return Currency(s), true
	}
	return "", false
}

// Bounty is a funding request tied to exactly one (repo, issue) pair.
type Bounty struct {
	ID string

	RepoOwner   string
	RepoName    string
	IssueNumber int
	IssueID     int64
	IssueURL    string
	Title       string
	Description string

	CreatorLogin string
	Amount       decimal.Decimal
	Currency     Currency
	Fees         Breakdown
	Status       Status

	// On-chain correlation, set when the escrow deposit is confirmed.
	EscrowTxHash string
	OnChainID    string
	BlockNumber  int64

	ClaimerLogin string
	PRNumber     int
	PRURL        string
	ClaimedAt    *time.Time

	PayoutTxHash    string
	PayoutRecipient string
	PaidAt          *time.Time

	RefundTxHash string
	RefundedAt   *time.Time

	ExpiresAt      *time.Time
	VerifyAttempts int

	// Meta is display-only extension data. It is never consulted for state
	// decisions.
	Meta map[string]string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Reference returns the settlement key for the bounty's issue,
// e.g. "octocat/hello#42".
func (b *Bounty) Reference() string {
	return fmt.Sprintf("%s/%s#%d", b.RepoOwner, b.RepoName, b.IssueNumber)
}

// Expirable reports whether the bounty can be refunded or expired at t.
func (b *Bounty) Expirable(t time.Time) bool {
	return b.ExpiresAt != nil && t.After(*b.ExpiresAt)
}

// Payout is the append-only settlement record for a paid bounty.
// Its settlement key carries the at-most-once guarantee.
type Payout struct {
	ID            int64
	SettlementKey string
	BountyID      string
	ClaimerLogin  string
	Recipient     string
	Currency      Currency
	Fees          Breakdown
	TxHash        string
	CreatedAt     time.Time
}

// Attempt is a non-binding signal that a contributor is working an issue.
type Attempt struct {
	ID          int64
	UserLogin   string
	RepoOwner   string
	RepoName    string
	IssueNumber int
	Active      bool
	CreatedAt   time.Time
}

// Wallet links a GitHub identity to a payout-capable EVM account. The signing
// key is held custodially, encrypted under the service master key.
type Wallet struct {
	GithubLogin  string
	Address      string
	EncryptedKey string
	CreatedAt    time.Time
}

// LeaderboardEntry aggregates completed bounties per claimer.
type LeaderboardEntry struct {
	Login            string                     `json:"login"`
	CompletedCount   int                        `json:"completed_count"`
	TotalsByCurrency map[Currency]decimal.Decimal `json:"totals_by_currency"`
}
