package bountystore

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/uptrace/bun"

	"github.com/octobounty/escrow-middleware/pkg/bounty"
)

// BountyDao maps to the 'bounties' table. A partial unique index on
// (repo_owner, repo_name, issue_number) for non-released statuses backs the
// one-active-bounty-per-issue invariant.
type BountyDao struct {
	bun.BaseModel `bun:"table:bounties,alias:b"`

	ID          string `bun:"id,pk,type:uuid"`
	RepoOwner   string `bun:"repo_owner,notnull,type:varchar(100)"`
	RepoName    string `bun:"repo_name,notnull,type:varchar(150)"`
	IssueNumber int    `bun:"issue_number,notnull"`
	IssueID     int64  `bun:"issue_id,notnull"`
	IssueURL    string `bun:"issue_url,notnull,type:text"`
	Title       string `bun:"title,notnull,type:text"`
	Description *string `bun:"description,type:text"`

	CreatorLogin string `bun:"creator_login,notnull,type:varchar(100)"`

	Amount         decimal.Decimal `bun:"amount,notnull,type:numeric(30,8)"`
	ClientFee      decimal.Decimal `bun:"client_fee,notnull,type:numeric(30,8)"`
	ContributorFee decimal.Decimal `bun:"contributor_fee,notnull,type:numeric(30,8)"`
	TotalFee       decimal.Decimal `bun:"total_fee,notnull,type:numeric(30,8)"`
	TotalPaid      decimal.Decimal `bun:"total_paid,notnull,type:numeric(30,8)"`
	PayoutAmount   decimal.Decimal `bun:"payout_amount,notnull,type:numeric(30,8)"`
	Currency       string          `bun:"currency,notnull,type:varchar(8)"`

	Status string `bun:"status,notnull,type:varchar(32)"`

	EscrowTxHash *string `bun:"escrow_tx_hash,type:varchar(66)"`
	OnChainID    *string `bun:"on_chain_id,type:varchar(80)"`
	BlockNumber  *int64  `bun:"block_number"`

	ClaimerLogin *string    `bun:"claimer_login,type:varchar(100)"`
	PRNumber     *int       `bun:"pr_number"`
	PRURL        *string    `bun:"pr_url,type:text"`
	ClaimedAt    *time.Time `bun:"claimed_at"`

	PayoutTxHash    *string    `bun:"payout_tx_hash,type:varchar(66)"`
	PayoutRecipient *string    `bun:"payout_recipient,type:varchar(42)"`
	PaidAt          *time.Time `bun:"paid_at"`

	RefundTxHash *string    `bun:"refund_tx_hash,type:varchar(66)"`
	RefundedAt   *time.Time `bun:"refunded_at"`

	ExpiresAt        *time.Time `bun:"expires_at"`
	VerifyAttempts   int        `bun:"verify_attempts,notnull,default:0"`
	VerifyFailReason *string    `bun:"verify_fail_reason,type:text"`

	Meta map[string]string `bun:"meta,type:jsonb"`

	CreatedAt time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt time.Time `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}

// PayoutDao maps to the 'payouts' table. The unique settlement key is the
// at-most-once payout guarantee.
type PayoutDao struct {
	bun.BaseModel `bun:"table:payouts,alias:p"`

	ID            int64  `bun:"id,pk,autoincrement"`
	SettlementKey string `bun:"settlement_key,unique,notnull,type:varchar(255)"`
	BountyID      string `bun:"bounty_id,notnull,type:uuid"`
	ClaimerLogin  string `bun:"claimer_login,notnull,type:varchar(100)"`
	Recipient     string `bun:"recipient,notnull,type:varchar(42)"`
	Currency      string `bun:"currency,notnull,type:varchar(8)"`

	Amount         decimal.Decimal `bun:"amount,notnull,type:numeric(30,8)"`
	ClientFee      decimal.Decimal `bun:"client_fee,notnull,type:numeric(30,8)"`
	ContributorFee decimal.Decimal `bun:"contributor_fee,notnull,type:numeric(30,8)"`
	TotalFee       decimal.Decimal `bun:"total_fee,notnull,type:numeric(30,8)"`
	TotalPaid      decimal.Decimal `bun:"total_paid,notnull,type:numeric(30,8)"`
	PayoutAmount   decimal.Decimal `bun:"payout_amount,notnull,type:numeric(30,8)"`

	TxHash    string    `bun:"tx_hash,notnull,type:varchar(66)"`
	CreatedAt time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp"`
}

// WebhookDeliveryDao maps to the 'webhook_deliveries' table. The unique
// delivery id makes the insert the exactly-once primitive for webhooks.
type WebhookDeliveryDao struct {
	bun.BaseModel `bun:"table:webhook_deliveries,alias:wd"`

	ID           int64     `bun:"id,pk,autoincrement"`
	DeliveryID   string    `bun:"delivery_id,unique,notnull,type:varchar(100)"`
	EventType    string    `bun:"event_type,notnull,type:varchar(50)"`
	Action       string    `bun:"action,type:varchar(50)"`
	RepoFullName string    `bun:"repo_full_name,type:varchar(255)"`
	IssueNumber  *int      `bun:"issue_number"`
	Status       string    `bun:"status,notnull,type:varchar(20)"`
	CreatedAt    time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt    time.Time `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}

// AttemptDao maps to the 'attempts' table. A partial unique index on
// (user_login, repo_owner, repo_name, issue_number) WHERE active backs the
// one-active-attempt-per-user-per-issue invariant.
type AttemptDao struct {
	bun.BaseModel `bun:"table:attempts,alias:a"`

	ID          int64     `bun:"id,pk,autoincrement"`
	UserLogin   string    `bun:"user_login,notnull,type:varchar(100)"`
	RepoOwner   string    `bun:"repo_owner,notnull,type:varchar(100)"`
	RepoName    string    `bun:"repo_name,notnull,type:varchar(150)"`
	IssueNumber int       `bun:"issue_number,notnull"`
	Active      bool      `bun:"active,notnull,default:true"`
	CreatedAt   time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp"`
}

// WalletDao maps to the 'wallets' table: GitHub identity to payout account,
// with the custodial signing key encrypted under the service master key.
type WalletDao struct {
	bun.BaseModel `bun:"table:wallets,alias:w"`

	ID           int64     `bun:"id,pk,autoincrement"`
	GithubLogin  string    `bun:"github_login,unique,notnull,type:varchar(100)"`
	Address      string    `bun:"address,notnull,type:varchar(42)"`
	EncryptedKey string    `bun:"encrypted_key,notnull,type:text"`
	CreatedAt    time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp"`
}

func toBountyDao(b *bounty.Bounty) *BountyDao {
	dao := &BountyDao{
		ID:             b.ID,
		RepoOwner:      b.RepoOwner,
		RepoName:       b.RepoName,
		IssueNumber:    b.IssueNumber,
		IssueID:        b.IssueID,
		IssueURL:       b.IssueURL,
		Title:          b.Title,
		CreatorLogin:   b.CreatorLogin,
		Amount:         b.Amount,
		ClientFee:      b.Fees.ClientFee,
		ContributorFee: b.Fees.ContributorFee,
		TotalFee:       b.Fees.TotalFee,
		TotalPaid:      b.Fees.TotalPaid,
		PayoutAmount:   b.Fees.Payout,
		Currency:       string(b.Currency),
		Status:         string(b.Status),
		VerifyAttempts: b.VerifyAttempts,
		ExpiresAt:      b.ExpiresAt,
		Meta:           b.Meta,
		CreatedAt:      b.CreatedAt,
		UpdatedAt:      b.UpdatedAt,
	}

	if b.Description != "" {
		dao.Description = &b.Description
	}
	if b.EscrowTxHash != "" {
		dao.EscrowTxHash = &b.EscrowTxHash
	}
	if b.OnChainID != "" {
		dao.OnChainID = &b.OnChainID
	}
	if b.BlockNumber != 0 {
		dao.BlockNumber = &b.BlockNumber
	}
	if b.ClaimerLogin != "" {
		dao.ClaimerLogin = &b.ClaimerLogin
	}
	if b.PRNumber != 0 {
		dao.PRNumber = &b.PRNumber
	}
	if b.PRURL != "" {
		dao.PRURL = &b.PRURL
	}
	dao.ClaimedAt = b.ClaimedAt
	if b.PayoutTxHash != "" {
		dao.PayoutTxHash = &b.PayoutTxHash
	}
	if b.PayoutRecipient != "" {
		dao.PayoutRecipient = &b.PayoutRecipient
	}
	dao.PaidAt = b.PaidAt
	if b.RefundTxHash != "" {
		dao.RefundTxHash = &b.RefundTxHash
	}
	dao.RefundedAt = b.RefundedAt

	return dao
}

func toBounty(dao *BountyDao) *bounty.Bounty {
	b := &bounty.Bounty{
		ID:           dao.ID,
		RepoOwner:    dao.RepoOwner,
		RepoName:     dao.RepoName,
		IssueNumber:  dao.IssueNumber,
		IssueID:      dao.IssueID,
		IssueURL:     dao.IssueURL,
		Title:        dao.Title,
		CreatorLogin: dao.CreatorLogin,
		Amount:       dao.Amount,
		Currency:     bounty.Currency(dao.Currency),
		Fees: bounty.Breakdown{
			Base:           dao.Amount,
			ClientFee:      dao.ClientFee,
			ContributorFee: dao.ContributorFee,
			TotalFee:       dao.TotalFee,
			TotalPaid:      dao.TotalPaid,
			Payout:         dao.PayoutAmount,
		},
		Status:         bounty.Status(dao.Status),
		VerifyAttempts: dao.VerifyAttempts,
		ExpiresAt:      dao.ExpiresAt,
		ClaimedAt:      dao.ClaimedAt,
		PaidAt:         dao.PaidAt,
		RefundedAt:     dao.RefundedAt,
		Meta:           dao.Meta,
		CreatedAt:      dao.CreatedAt,
		UpdatedAt:      dao.UpdatedAt,
	}

	if dao.Description != nil {
		b.Description = *dao.Description
	}
	if dao.EscrowTxHash != nil {
		b.EscrowTxHash = *dao.EscrowTxHash
	}
	if dao.OnChainID != nil {
		b.OnChainID = *dao.OnChainID
	}
	if dao.BlockNumber != nil {
		b.BlockNumber = *dao.BlockNumber
	}
	if dao.ClaimerLogin != nil {
		b.ClaimerLogin = *dao.ClaimerLogin
	}
	if dao.PRNumber != nil {
		b.PRNumber = *dao.PRNumber
	}
	if dao.PRURL != nil {
		b.PRURL = *dao.PRURL
	}
	if dao.PayoutTxHash != nil {
		b.PayoutTxHash = *dao.PayoutTxHash
	}
	if dao.PayoutRecipient != nil {
		b.PayoutRecipient = *dao.PayoutRecipient
	}
	if dao.RefundTxHash != nil {
		b.RefundTxHash = *dao.RefundTxHash
	}

	return b
}

func toPayoutDao(p *bounty.Payout) *PayoutDao {
	return &PayoutDao{
		SettlementKey:  p.SettlementKey,
		BountyID:       p.BountyID,
		ClaimerLogin:   p.ClaimerLogin,
		Recipient:      p.Recipient,
		Currency:       string(p.Currency),
		Amount:         p.Fees.Base,
		ClientFee:      p.Fees.ClientFee,
		ContributorFee: p.Fees.ContributorFee,
		TotalFee:       p.Fees.TotalFee,
		TotalPaid:      p.Fees.TotalPaid,
		PayoutAmount:   p.Fees.Payout,
		TxHash:         p.TxHash,
	}
}

func toPayout(dao *PayoutDao) *bounty.Payout {
	return &bounty.Payout{
		ID:            dao.ID,
		SettlementKey: dao.SettlementKey,
		BountyID:      dao.BountyID,
		ClaimerLogin:  dao.ClaimerLogin,
		Recipient:     dao.Recipient,
		Currency:      bounty.Currency(dao.Currency),
		Fees: bounty.Breakdown{
			Base:           dao.Amount,
			ClientFee:      dao.ClientFee,
			ContributorFee: dao.ContributorFee,
			TotalFee:       dao.TotalFee,
			TotalPaid:      dao.TotalPaid,
			Payout:         dao.PayoutAmount,
		},
		TxHash:    dao.TxHash,
		CreatedAt: dao.CreatedAt,
	}
}

func toAttemptDao(a *bounty.Attempt) *AttemptDao {
	return &AttemptDao{
		UserLogin:   a.UserLogin,
		RepoOwner:   a.RepoOwner,
		RepoName:    a.RepoName,
		IssueNumber: a.IssueNumber,
		Active:      true,
	}
}

func toAttempt(dao *AttemptDao) *bounty.Attempt {
	return &bounty.Attempt{
		ID:          dao.ID,
		UserLogin:   dao.UserLogin,
		RepoOwner:   dao.RepoOwner,
		RepoName:    dao.RepoName,
		IssueNumber: dao.IssueNumber,
		Active:      dao.Active,
		CreatedAt:   dao.CreatedAt,
	}
}

func toWalletDao(w *bounty.Wallet) *WalletDao {
	return &WalletDao{
		GithubLogin:  w.GithubLogin,
		Address:      w.Address,
		EncryptedKey: w.EncryptedKey,
	}
}

func toWallet(dao *WalletDao) *bounty.Wallet {
	return &bounty.Wallet{
		GithubLogin:  dao.GithubLogin,
		Address:      dao.Address,
		EncryptedKey: dao.EncryptedKey,
		CreatedAt:    dao.CreatedAt,
	}
}
