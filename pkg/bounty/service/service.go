// Package service coordinates the bounty lifecycle across the store, the
// escrow chain and GitHub verification. All state decisions live here; the
// HTTP and webhook surfaces only translate requests.
package service

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	apperrors "github.com/octobounty/escrow-middleware/pkg/app/errors"
	"github.com/octobounty/escrow-middleware/pkg/auth"
	"github.com/octobounty/escrow-middleware/pkg/bounty"
	"github.com/octobounty/escrow-middleware/pkg/bountystore"
	"github.com/octobounty/escrow-middleware/pkg/escrow"
	"github.com/octobounty/escrow-middleware/pkg/ghverify"
	"github.com/octobounty/escrow-middleware/pkg/keys"
)

var (
	ErrWalletRequired = errors.New("no payout wallet linked")
	ErrNotCustodial   = errors.New("wallet has no custodial signing key")
)

// Store is the narrow persistence interface of the coordinator.
type Store interface {
	CreateBounty(ctx context.Context, b *bounty.Bounty) (*bounty.Bounty, error)
	GetBounty(ctx context.Context, id string) (*bounty.Bounty, error)
	GetActiveBounty(ctx context.Context, repoOwner, repoName string, issueNumber int) (*bounty.Bounty, error)
	ListBounties(ctx context.Context, opts ...bountystore.QueryOption) ([]*bounty.Bounty, int, error)
	RecordFunding(ctx context.Context, id string, info bountystore.FundingInfo) (*bounty.Bounty, error)
	ClaimBounty(ctx context.Context, id, claimerLogin string, prNumber int, prURL string) (*bounty.Bounty, error)
	RecordCompletion(ctx context.Context, id string, info bountystore.CompletionInfo) (*bounty.Bounty, error)
	MarkVerificationFailed(ctx context.Context, id, reason string) error
	BumpVerifyAttempts(ctx context.Context, id string) (int, error)
	RecordRefund(ctx context.Context, id, txHash string) (*bounty.Bounty, error)
	MarkExpired(ctx context.Context, id string) (*bounty.Bounty, error)
	RecordPayout(ctx context.Context, p *bounty.Payout) (*bounty.Payout, error)
	GetPayout(ctx context.Context, settlementKey string) (*bounty.Payout, error)
	Leaderboard(ctx context.Context, limit int) ([]*bounty.LeaderboardEntry, error)
	CreateAttempt(ctx context.Context, a *bounty.Attempt) (*bounty.Attempt, error)
	ReleaseAttempt(ctx context.Context, userLogin, repoOwner, repoName string, issueNumber int) error
	CreateWallet(ctx context.Context, w *bounty.Wallet) error
	GetWallet(ctx context.Context, githubLogin string) (*bounty.Wallet, error)
}

// Ledger is the escrow chain interface of the coordinator.
type Ledger interface {
	CreateBounty(ctx context.Context, payerKey *ecdsa.PrivateKey, currency bounty.Currency, totalPaid decimal.Decimal, expiry time.Time) (*escrow.FundingReceipt, error)
	CompleteBounty(ctx context.Context, onChainID, recipient string) (string, error)
	RefundBounty(ctx context.Context, payerKey *ecdsa.PrivateKey, onChainID string) (string, error)
}

// Verifier concludes whether a pull request resolves an issue.
type Verifier interface {
	Verify(ctx context.Context, owner, repo string, prNumber, issueNumber int) (*ghverify.Result, error)
}

// KeyCipher protects custodial signing keys at rest.
type KeyCipher interface {
	EncryptPrivateKey(login string, privateKey []byte) (string, error)
	DecryptPrivateKey(login, encrypted string) ([]byte, error)
}

// CreateRequest describes a new bounty on a GitHub issue.
type CreateRequest struct {
	RepoOwner    string
	RepoName     string
	IssueNumber  int
	IssueID      int64
	IssueURL     string
	Title        string
	Description  string
	CreatorLogin string
	Amount       decimal.Decimal
	Currency     string
	ExpiresAt    *time.Time
	Pool         bool
}

// LinkWalletRequest links a payout account to a GitHub login. With an address
// and signature the user's own account is linked; with neither, a custodial
// account is provisioned.
type LinkWalletRequest struct {
	Login     string
	Address   string
	Signature string
}

// ListQuery filters the bounty listing.
type ListQuery struct {
	Status    string
	Currency  string
	RepoOwner string
	RepoName  string
	Creator   string
	Limit     int
	Offset    int
}

// Service is the bounty lifecycle API.
type Service interface {
	Create(ctx context.Context, req *CreateRequest) (*bounty.Bounty, error)
	Fund(ctx context.Context, id, callerLogin string) (*bounty.Bounty, error)
	Claim(ctx context.Context, id, claimerLogin string, prNumber int, prURL string) (*bounty.Bounty, error)
	Complete(ctx context.Context, id string) (*bounty.Bounty, error)
	Refund(ctx context.Context, id, callerLogin string) (*bounty.Bounty, error)
	Expire(ctx context.Context, id, callerLogin string) (*bounty.Bounty, error)
	Get(ctx context.Context, id string) (*bounty.Bounty, error)
	GetForIssue(ctx context.Context, repoOwner, repoName string, issueNumber int) (*bounty.Bounty, error)
	List(ctx context.Context, q *ListQuery) ([]*bounty.Bounty, int, error)
	Leaderboard(ctx context.Context, limit int) ([]*bounty.LeaderboardEntry, error)
	RegisterAttempt(ctx context.Context, login, repoOwner, repoName string, issueNumber int) (*bounty.Attempt, error)
	LinkWallet(ctx context.Context, req *LinkWalletRequest) (*bounty.Wallet, error)
}

type coordinator struct {
	store             Store
	ledger            Ledger
	verifier          Verifier
	cipher            KeyCipher
	logger            *zap.Logger
	maxVerifyAttempts int
}

// NewService creates the lifecycle coordinator.
func NewService(store Store, ledger Ledger, verifier Verifier, cipher KeyCipher, maxVerifyAttempts int, logger *zap.Logger) Service {
	if maxVerifyAttempts <= 0 {
		maxVerifyAttempts = 5
	}
	return &coordinator{
		store:             store,
		ledger:            ledger,
		verifier:          verifier,
		cipher:            cipher,
		logger:            logger,
		maxVerifyAttempts: maxVerifyAttempts,
	}
}

func (c *coordinator) Create(ctx context.Context, req *CreateRequest) (*bounty.Bounty, error) {
	currency, ok := bounty.ParseCurrency(req.Currency)
	if !ok {
		return nil, apperrors.BadRequestError(nil, "unsupported currency "+req.Currency)
	}

	fees, err := bounty.Fees(req.Amount)
	if err != nil {
		return nil, apperrors.BadRequestError(err, "invalid bounty amount")
	}

	if req.RepoOwner == "" || req.RepoName == "" || req.IssueNumber <= 0 {
		return nil, apperrors.BadRequestError(nil, "repository and issue number are required")
	}
	if req.CreatorLogin == "" {
		return nil, apperrors.BadRequestError(nil, "creator login is required")
	}

	b := &bounty.Bounty{
		RepoOwner:    req.RepoOwner,
		RepoName:     req.RepoName,
		IssueNumber:  req.IssueNumber,
		IssueID:      req.IssueID,
		IssueURL:     req.IssueURL,
		Title:        req.Title,
		Description:  req.Description,
		CreatorLogin: req.CreatorLogin,
		Amount:       req.Amount,
		Currency:     currency,
		Fees:         fees,
		ExpiresAt:    req.ExpiresAt,
	}
	if req.Pool {
		b.Meta = map[string]string{"pool": "true"}
	}

	created, err := c.store.CreateBounty(ctx, b)
	if err != nil {
		var dup *bountystore.DuplicateActiveBountyError
		if errors.As(err, &dup) {
			return nil, apperrors.ConflictError(err, fmt.Sprintf(
				"issue %s already has an active bounty (%s, created by %s)",
				dup.Existing.Reference(), dup.Existing.Status, dup.Existing.CreatorLogin))
		}
		if errors.Is(err, bountystore.ErrDuplicateActiveBounty) {
			return nil, apperrors.ConflictError(err, "issue already has an active bounty")
		}
		return nil, fmt.Errorf("failed to create bounty: %w", err)
	}
	return created, nil
}

// payerKey loads and decrypts the custodial signing key of a login's wallet.
func (c *coordinator) payerKey(ctx context.Context, login string) (*ecdsa.PrivateKey, error) {
	wallet, err := c.store.GetWallet(ctx, login)
	if err != nil {
		if errors.Is(err, bountystore.ErrWalletNotFound) {
			return nil, apperrors.BadRequestError(ErrWalletRequired, "no wallet provisioned for "+login)
		}
		return nil, fmt.Errorf("failed to load wallet: %w", err)
	}
	if wallet.EncryptedKey == "" {
		return nil, apperrors.BadRequestError(ErrNotCustodial, "wallet of "+login+" cannot sign escrow transactions")
	}

	raw, err := c.cipher.DecryptPrivateKey(login, wallet.EncryptedKey)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt signing key: %w", err)
	}
	key, err := crypto.ToECDSA(raw)
	if err != nil {
		return nil, fmt.Errorf("failed to parse signing key: %w", err)
	}
	return key, nil
}

func (c *coordinator) Fund(ctx context.Context, id, callerLogin string) (*bounty.Bounty, error) {
	b, err := c.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if b.CreatorLogin != callerLogin {
		return nil, apperrors.ForbiddenError(nil, "only the bounty creator can fund it")
	}
	if b.Status == bounty.StatusFunded {
		// Idempotent re-fund: report the already funded bounty.
		return b, nil
	}
	if b.Status != bounty.StatusPendingPayment {
		return nil, apperrors.ConflictError(bountystore.ErrInvalidTransition,
			fmt.Sprintf("bounty is %s and cannot be funded", b.Status))
	}

	key, err := c.payerKey(ctx, callerLogin)
	if err != nil {
		return nil, err
	}

	expiry := time.Now().UTC().Add(90 * 24 * time.Hour)
	if b.ExpiresAt != nil {
		expiry = *b.ExpiresAt
	}

	// The escrow locks the full charged amount, base plus the client fee.
	receipt, err := c.ledger.CreateBounty(ctx, key, b.Currency, b.Fees.TotalPaid, expiry)
	if err != nil {
		return nil, apperrors.DependencyFailureError(err, "escrow deposit was not confirmed")
	}

	funded, err := c.store.RecordFunding(ctx, id, bountystore.FundingInfo{
		TxHash:      receipt.TxHash,
		OnChainID:   receipt.OnChainID,
		BlockNumber: receipt.BlockNumber,
	})
	if err != nil {
		// The deposit is on chain but the row did not advance. Surface loudly;
		// the tx hash in the log is the recovery handle.
		c.logger.Error("Escrow deposit confirmed but funding not recorded",
			zap.String("bounty_id", id),
			zap.String("tx_hash", receipt.TxHash),
			zap.Error(err))
		return nil, fmt.Errorf("failed to record funding: %w", err)
	}
	return funded, nil
}

func (c *coordinator) Claim(ctx context.Context, id, claimerLogin string, prNumber int, prURL string) (*bounty.Bounty, error) {
	if claimerLogin == "" || prNumber <= 0 {
		return nil, apperrors.BadRequestError(nil, "claimer login and pull request number are required")
	}

	// A payout-capable wallet must exist before the claim locks the bounty.
	if _, err := c.store.GetWallet(ctx, claimerLogin); err != nil {
		if errors.Is(err, bountystore.ErrWalletNotFound) {
			return nil, apperrors.BadRequestError(ErrWalletRequired, "link a payout wallet before claiming")
		}
		return nil, fmt.Errorf("failed to load wallet: %w", err)
	}

	claimed, err := c.store.ClaimBounty(ctx, id, claimerLogin, prNumber, prURL)
	if err != nil {
		var nc *bountystore.NotClaimableError
		if errors.As(err, &nc) {
			msg := fmt.Sprintf("bounty is %s", nc.Status)
			if nc.ClaimerLogin != "" {
				msg = fmt.Sprintf("bounty is %s, already claimed by %s", nc.Status, nc.ClaimerLogin)
			}
			return nil, apperrors.ConflictError(err, msg)
		}
		if errors.Is(err, bountystore.ErrBountyNotFound) {
			return nil, apperrors.ResourceNotFoundError(err, "bounty not found")
		}
		return nil, fmt.Errorf("failed to claim bounty: %w", err)
	}
	return claimed, nil
}

// Complete verifies the claimed pull request and, when it holds up, releases
// the escrowed payout. A transient verification failure keeps the bounty
// claimed and returns an error wrapping ghverify.ErrTransient; a terminal
// failure marks the bounty failed_verification and returns it with no error.
func (c *coordinator) Complete(ctx context.Context, id string) (*bounty.Bounty, error) {
	b, err := c.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if b.Status == bounty.StatusCompleted {
		return b, nil
	}
	if b.Status != bounty.StatusClaimed {
		return nil, apperrors.ConflictError(bountystore.ErrInvalidTransition,
			fmt.Sprintf("bounty is %s and cannot be completed", b.Status))
	}

	result, err := c.verifier.Verify(ctx, b.RepoOwner, b.RepoName, b.PRNumber, b.IssueNumber)
	if err != nil {
		if errors.Is(err, ghverify.ErrTransient) {
			return nil, c.recordTransientFailure(ctx, b, err.Error())
		}
		return nil, fmt.Errorf("verification failed: %w", err)
	}

	if !result.Verified {
		if err := c.store.MarkVerificationFailed(ctx, id, result.Reason); err != nil {
			return nil, fmt.Errorf("failed to record verification failure: %w", err)
		}
		c.logger.Warn("Bounty failed verification",
			zap.String("bounty_id", id),
			zap.String("reason", result.Reason))
		return c.Get(ctx, id)
	}

	wallet, err := c.store.GetWallet(ctx, b.ClaimerLogin)
	if err != nil {
		if errors.Is(err, bountystore.ErrWalletNotFound) {
			// The wallet disappeared after the claim. Retryable; the
			// contributor can relink before attempts run out.
			return nil, c.recordTransientFailure(ctx, b, "claimer has no payout wallet")
		}
		return nil, fmt.Errorf("failed to load claimer wallet: %w", err)
	}

	settled, err := c.settle(ctx, b, wallet.Address)
	if err != nil {
		return nil, err
	}

	completed, err := c.store.RecordCompletion(ctx, id, bountystore.CompletionInfo{
		TxHash:    settled.TxHash,
		Recipient: settled.Recipient,
	})
	if err != nil {
		// The payout row persists, so a retried completion finds it and
		// finishes the bookkeeping without touching the chain.
		return nil, fmt.Errorf("failed to record completion: %w", err)
	}

	// Best effort; the attempt slot is advisory.
	if err := c.store.ReleaseAttempt(ctx, b.ClaimerLogin, b.RepoOwner, b.RepoName, b.IssueNumber); err != nil {
		c.logger.Warn("Failed to release attempt after completion",
			zap.String("bounty_id", id), zap.Error(err))
	}

	c.logger.Info("Bounty completed",
		zap.String("bounty_id", id),
		zap.String("claimer", b.ClaimerLogin),
		zap.String("tx_hash", settled.TxHash),
		zap.String("payout", b.Fees.Payout.String()))

	return completed, nil
}

// settle pays out a verified claim exactly once per settlement key. The payout
// table is consulted before the ledger is driven: an existing row means the
// funds already moved (a completion whose bookkeeping was interrupted) and its
// recorded tx hash is reused with no new on-chain call.
func (c *coordinator) settle(ctx context.Context, b *bounty.Bounty, recipient string) (*bounty.Payout, error) {
	key := b.Reference()

	existing, err := c.store.GetPayout(ctx, key)
	if err == nil {
		c.logger.Warn("Reusing recorded payout for interrupted completion",
			zap.String("bounty_id", b.ID),
			zap.String("settlement_key", key),
			zap.String("tx_hash", existing.TxHash))
		return existing, nil
	}
	if !errors.Is(err, bountystore.ErrPayoutNotFound) {
		return nil, fmt.Errorf("failed to load payout record: %w", err)
	}

	txHash, err := c.ledger.CompleteBounty(ctx, b.OnChainID, recipient)
	if err != nil {
		if errors.Is(err, escrow.ErrUnauthorized) {
			return nil, apperrors.ForbiddenError(err, "relayer is not authorized on the escrow contract")
		}
		return nil, apperrors.DependencyFailureError(err, "escrow completion was not confirmed")
	}

	payout, err := c.store.RecordPayout(ctx, &bounty.Payout{
		SettlementKey: key,
		BountyID:      b.ID,
		ClaimerLogin:  b.ClaimerLogin,
		Recipient:     recipient,
		Currency:      b.Currency,
		Fees:          b.Fees,
		TxHash:        txHash,
	})
	if err != nil {
		if errors.Is(err, bountystore.ErrAlreadyProcessed) {
			// Lost an insert race on the key. The recorded row is the
			// authoritative settlement; surface it rather than our tx.
			recorded, lookupErr := c.store.GetPayout(ctx, key)
			if lookupErr != nil {
				return nil, fmt.Errorf("payout for %s already recorded but not readable: %w", key, lookupErr)
			}
			c.logger.Error("Duplicate settlement detected, recorded payout wins",
				zap.String("bounty_id", b.ID),
				zap.String("settlement_key", key),
				zap.String("recorded_tx_hash", recorded.TxHash),
				zap.String("duplicate_tx_hash", txHash))
			return recorded, nil
		}
		return nil, fmt.Errorf("failed to record payout: %w", err)
	}
	return payout, nil
}

// recordTransientFailure bumps the retry counter and converts an exhausted
// budget into a terminal verification failure.
func (c *coordinator) recordTransientFailure(ctx context.Context, b *bounty.Bounty, cause string) error {
	attempts, err := c.store.BumpVerifyAttempts(ctx, b.ID)
	if err != nil {
		return fmt.Errorf("failed to bump verify attempts: %w", err)
	}

	if attempts >= c.maxVerifyAttempts {
		reason := fmt.Sprintf("verification retries exhausted after %d attempts: %s", attempts, cause)
		if err := c.store.MarkVerificationFailed(ctx, b.ID, reason); err != nil {
			return fmt.Errorf("failed to record verification failure: %w", err)
		}
		c.logger.Warn("Bounty failed verification after exhausting retries",
			zap.String("bounty_id", b.ID),
			zap.Int("attempts", attempts),
			zap.String("cause", cause))
		return nil
	}

	return fmt.Errorf("verification attempt %d/%d: %s: %w",
		attempts, c.maxVerifyAttempts, cause, ghverify.ErrTransient)
}

func (c *coordinator) Refund(ctx context.Context, id, callerLogin string) (*bounty.Bounty, error) {
	b, err := c.refundable(ctx, id, callerLogin)
	if err != nil {
		return nil, err
	}

	key, err := c.payerKey(ctx, callerLogin)
	if err != nil {
		return nil, err
	}

	txHash, err := c.ledger.RefundBounty(ctx, key, b.OnChainID)
	if err != nil {
		return nil, apperrors.DependencyFailureError(err, "escrow refund was not confirmed")
	}

	refunded, err := c.store.RecordRefund(ctx, id, txHash)
	if err != nil {
		c.logger.Error("Escrow refund confirmed but not recorded",
			zap.String("bounty_id", id),
			zap.String("tx_hash", txHash),
			zap.Error(err))
		return nil, fmt.Errorf("failed to record refund: %w", err)
	}
	return refunded, nil
}

func (c *coordinator) Expire(ctx context.Context, id, callerLogin string) (*bounty.Bounty, error) {
	if _, err := c.refundable(ctx, id, callerLogin); err != nil {
		return nil, err
	}

	expired, err := c.store.MarkExpired(ctx, id)
	if err != nil {
		if errors.Is(err, bountystore.ErrNotExpired) {
			return nil, apperrors.ConflictError(err, "bounty has not reached its expiry")
		}
		if errors.Is(err, bountystore.ErrInvalidTransition) {
			return nil, apperrors.ConflictError(err, "bounty cannot be expired in its current status")
		}
		return nil, fmt.Errorf("failed to expire bounty: %w", err)
	}
	return expired, nil
}

// refundable checks the creator-only, funded and post-expiry guards shared by
// both refund-style exits.
func (c *coordinator) refundable(ctx context.Context, id, callerLogin string) (*bounty.Bounty, error) {
	b, err := c.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if b.CreatorLogin != callerLogin {
		return nil, apperrors.ForbiddenError(nil, "only the bounty creator can release it")
	}
	if b.Status != bounty.StatusFunded {
		return nil, apperrors.ConflictError(bountystore.ErrInvalidTransition,
			fmt.Sprintf("bounty is %s and cannot be released", b.Status))
	}
	if !b.Expirable(time.Now().UTC()) {
		return nil, apperrors.ConflictError(bountystore.ErrNotExpired, "bounty has not reached its expiry")
	}
	return b, nil
}

func (c *coordinator) Get(ctx context.Context, id string) (*bounty.Bounty, error) {
	b, err := c.store.GetBounty(ctx, id)
	if err != nil {
		if errors.Is(err, bountystore.ErrBountyNotFound) {
			return nil, apperrors.ResourceNotFoundError(err, "bounty not found")
		}
		return nil, fmt.Errorf("failed to get bounty: %w", err)
	}
	return b, nil
}

func (c *coordinator) GetForIssue(ctx context.Context, repoOwner, repoName string, issueNumber int) (*bounty.Bounty, error) {
	b, err := c.store.GetActiveBounty(ctx, repoOwner, repoName, issueNumber)
	if err != nil {
		if errors.Is(err, bountystore.ErrBountyNotFound) {
			return nil, apperrors.ResourceNotFoundError(err, "issue has no active bounty")
		}
		return nil, fmt.Errorf("failed to get bounty for issue: %w", err)
	}
	return b, nil
}

func (c *coordinator) List(ctx context.Context, q *ListQuery) ([]*bounty.Bounty, int, error) {
	var opts []bountystore.QueryOption

	if q.Status != "" {
		status := bounty.Status(q.Status)
		if !status.Valid() {
			return nil, 0, apperrors.BadRequestError(nil, "unknown status filter")
		}
		opts = append(opts, bountystore.WithStatus(status))
	}
	if q.Currency != "" {
		currency, ok := bounty.ParseCurrency(q.Currency)
		if !ok {
			return nil, 0, apperrors.BadRequestError(nil, "unknown currency filter")
		}
		opts = append(opts, bountystore.WithCurrency(currency))
	}
	if q.RepoOwner != "" && q.RepoName != "" {
		opts = append(opts, bountystore.WithRepo(q.RepoOwner, q.RepoName))
	}
	if q.Creator != "" {
		opts = append(opts, bountystore.WithCreator(q.Creator))
	}
	opts = append(opts, bountystore.WithPage(q.Limit, q.Offset))

	return c.store.ListBounties(ctx, opts...)
}

func (c *coordinator) Leaderboard(ctx context.Context, limit int) ([]*bounty.LeaderboardEntry, error) {
	return c.store.Leaderboard(ctx, limit)
}

func (c *coordinator) RegisterAttempt(ctx context.Context, login, repoOwner, repoName string, issueNumber int) (*bounty.Attempt, error) {
	if login == "" {
		return nil, apperrors.BadRequestError(nil, "login is required")
	}

	attempt, err := c.store.CreateAttempt(ctx, &bounty.Attempt{
		UserLogin:   login,
		RepoOwner:   repoOwner,
		RepoName:    repoName,
		IssueNumber: issueNumber,
	})
	if err != nil {
		if errors.Is(err, bountystore.ErrAlreadyProcessed) {
			return nil, apperrors.ConflictError(err, "an active attempt already exists for this issue")
		}
		return nil, fmt.Errorf("failed to register attempt: %w", err)
	}
	return attempt, nil
}

func (c *coordinator) LinkWallet(ctx context.Context, req *LinkWalletRequest) (*bounty.Wallet, error) {
	if req.Login == "" {
		return nil, apperrors.BadRequestError(nil, "login is required")
	}

	wallet := &bounty.Wallet{GithubLogin: req.Login}

	switch {
	case req.Address != "" && req.Signature != "":
		// The user links their own account by proving control of it.
		if err := auth.VerifyWalletLink(req.Login, req.Address, req.Signature); err != nil {
			return nil, apperrors.BadRequestError(err, "wallet ownership signature is invalid")
		}
		wallet.Address = auth.NormalizeAddress(req.Address)

	case req.Address == "" && req.Signature == "":
		// Provision a custodial account; its signing key stays encrypted in
		// the wallet row.
		wk, err := keys.GenerateWalletKey()
		if err != nil {
			return nil, fmt.Errorf("failed to generate wallet key: %w", err)
		}
		encrypted, err := c.cipher.EncryptPrivateKey(req.Login, wk.PrivateKey)
		if err != nil {
			return nil, fmt.Errorf("failed to encrypt wallet key: %w", err)
		}
		wallet.Address = wk.Address
		wallet.EncryptedKey = encrypted

	default:
		return nil, apperrors.BadRequestError(nil, "address and signature must be provided together")
	}

	if err := c.store.CreateWallet(ctx, wallet); err != nil {
		if errors.Is(err, bountystore.ErrAlreadyProcessed) {
			return nil, apperrors.ConflictError(err, "a wallet is already linked for this login")
		}
		return nil, fmt.Errorf("failed to store wallet: %w", err)
	}

	c.logger.Info("Wallet linked",
		zap.String("login", req.Login),
		zap.String("address", wallet.Address),
		zap.Bool("custodial", wallet.EncryptedKey != ""))

	return wallet, nil
}
