package bountystore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/uptrace/bun"

	"github.com/octobounty/escrow-middleware/pkg/bounty"
	"github.com/octobounty/escrow-middleware/pkg/pgutil"
)

const (
	defaultListLimit = 50
	maxListLimit     = 100
)

// releasedStatuses no longer hold the (repo, issue) slot.
var releasedStatuses = []string{string(bounty.StatusRefunded), string(bounty.StatusExpired)}

type pgStore struct {
	db *bun.DB
}

// NewStore creates a new postgres implementation of the bounty store.
func NewStore(db *bun.DB) *pgStore {
	return &pgStore{db: db}
}

func (s *pgStore) CreateBounty(ctx context.Context, b *bounty.Bounty) (*bounty.Bounty, error) {
	dao := toBountyDao(b)
	if dao.ID == "" {
		dao.ID = uuid.NewString()
	}
	dao.Status = string(bounty.StatusPendingPayment)

	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		existing := new(BountyDao)
		err := tx.NewSelect().
			Model(existing).
			Where("repo_owner = ?", dao.RepoOwner).
			Where("repo_name = ?", dao.RepoName).
			Where("issue_number = ?", dao.IssueNumber).
			Where("status NOT IN (?)", bun.In(releasedStatuses)).
			Limit(1).
			Scan(ctx)
		if err == nil {
			return &DuplicateActiveBountyError{Existing: toBounty(existing)}
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("check active bounty: %w", err)
		}

		if _, err := tx.NewInsert().Model(dao).Returning("*").Exec(ctx); err != nil {
			if pgutil.IsUniqueViolation(err) {
				// Lost an insert race; the partial unique index held the invariant.
				return ErrDuplicateActiveBounty
			}
			return fmt.Errorf("insert bounty: %w", err)
		}
		return nil
	})
	if err != nil {
		var dup *DuplicateActiveBountyError
		if errors.As(err, &dup) {
			return nil, err
		}
		if errors.Is(err, ErrDuplicateActiveBounty) {
			if winner, ferr := s.findActiveBounty(ctx, b.RepoOwner, b.RepoName, b.IssueNumber); ferr == nil {
				return nil, &DuplicateActiveBountyError{Existing: winner}
			}
			return nil, err
		}
		return nil, err
	}

	return toBounty(dao), nil
}

// GetActiveBounty returns the bounty currently holding the issue's slot, if
// any.
func (s *pgStore) GetActiveBounty(ctx context.Context, repoOwner, repoName string, issueNumber int) (*bounty.Bounty, error) {
	return s.findActiveBounty(ctx, repoOwner, repoName, issueNumber)
}

func (s *pgStore) findActiveBounty(ctx context.Context, owner, name string, issueNumber int) (*bounty.Bounty, error) {
	dao := new(BountyDao)
	err := s.db.NewSelect().
		Model(dao).
		Where("repo_owner = ?", owner).
		Where("repo_name = ?", name).
		Where("issue_number = ?", issueNumber).
		Where("status NOT IN (?)", bun.In(releasedStatuses)).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrBountyNotFound
		}
		return nil, fmt.Errorf("find active bounty: %w", err)
	}
	return toBounty(dao), nil
}

func (s *pgStore) GetBounty(ctx context.Context, id string) (*bounty.Bounty, error) {
	dao := new(BountyDao)
	err := s.db.NewSelect().Model(dao).Where("id = ?", id).Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrBountyNotFound
		}
		return nil, fmt.Errorf("get bounty: %w", err)
	}
	return toBounty(dao), nil
}

func (s *pgStore) ListBounties(ctx context.Context, opts ...QueryOption) ([]*bounty.Bounty, int, error) {
	options := &QueryOptions{Limit: defaultListLimit}
	for _, opt := range opts {
		opt(options)
	}
	options.Limit, options.Offset = NormalizePage(options.Limit, options.Offset)

	var daos []BountyDao
	query := s.db.NewSelect().Model(&daos)

	if options.Status != nil {
		query = query.Where("status = ?", string(*options.Status))
	}
	if options.Currency != nil {
		query = query.Where("currency = ?", string(*options.Currency))
	}
	if options.RepoOwner != nil {
		query = query.Where("repo_owner = ?", *options.RepoOwner)
	}
	if options.RepoName != nil {
		query = query.Where("repo_name = ?", *options.RepoName)
	}
	if options.Creator != nil {
		query = query.Where("creator_login = ?", *options.Creator)
	}

	total, err := query.
		Order("created_at DESC").
		Limit(options.Limit).
		Offset(options.Offset).
		ScanAndCount(ctx)
	if err != nil {
		return nil, 0, fmt.Errorf("list bounties: %w", err)
	}

	bounties := make([]*bounty.Bounty, len(daos))
	for i := range daos {
		bounties[i] = toBounty(&daos[i])
	}
	return bounties, total, nil
}

// ListClaimedBounties returns claimed bounties in claim order (FIFO) for the
// relayer sweep.
func (s *pgStore) ListClaimedBounties(ctx context.Context, limit int) ([]*bounty.Bounty, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}

	var daos []BountyDao
	err := s.db.NewSelect().
		Model(&daos).
		Where("status = ?", string(bounty.StatusClaimed)).
		Order("claimed_at ASC").
		Limit(limit).
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("list claimed bounties: %w", err)
	}

	bounties := make([]*bounty.Bounty, len(daos))
	for i := range daos {
		bounties[i] = toBounty(&daos[i])
	}
	return bounties, nil
}

// lockBounty loads a bounty row under FOR UPDATE within tx.
func lockBounty(ctx context.Context, tx bun.Tx, id string) (*BountyDao, error) {
	dao := new(BountyDao)
	err := tx.NewSelect().Model(dao).Where("id = ?", id).For("UPDATE").Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrBountyNotFound
		}
		return nil, fmt.Errorf("lock bounty: %w", err)
	}
	return dao, nil
}

func (s *pgStore) RecordFunding(ctx context.Context, id string, info FundingInfo) (*bounty.Bounty, error) {
	var result *bounty.Bounty
	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		dao, err := lockBounty(ctx, tx, id)
		if err != nil {
			return err
		}
		if bounty.Status(dao.Status) != bounty.StatusPendingPayment {
			return fmt.Errorf("%w: funding requires %s, bounty is %s",
				ErrInvalidTransition, bounty.StatusPendingPayment, dao.Status)
		}

		dao.Status = string(bounty.StatusFunded)
		dao.EscrowTxHash = &info.TxHash
		dao.OnChainID = &info.OnChainID
		dao.BlockNumber = &info.BlockNumber
		dao.UpdatedAt = time.Now().UTC()

		if _, err := tx.NewUpdate().
			Model(dao).
			WherePK().
			Column("status", "escrow_tx_hash", "on_chain_id", "block_number", "updated_at").
			Exec(ctx); err != nil {
			return fmt.Errorf("record funding: %w", err)
		}

		result = toBounty(dao)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// ClaimBounty writes the claim under an exclusive row lock. Of any number of
// concurrent claimants exactly one wins; losers get NotClaimableError carrying
// the authoritative state.
func (s *pgStore) ClaimBounty(ctx context.Context, id, claimerLogin string, prNumber int, prURL string) (*bounty.Bounty, error) {
	var result *bounty.Bounty
	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		dao, err := lockBounty(ctx, tx, id)
		if err != nil {
			return err
		}
		if bounty.Status(dao.Status) != bounty.StatusFunded {
			claimer := ""
			if dao.ClaimerLogin != nil {
				claimer = *dao.ClaimerLogin
			}
			return &NotClaimableError{Status: bounty.Status(dao.Status), ClaimerLogin: claimer}
		}

		now := time.Now().UTC()
		dao.Status = string(bounty.StatusClaimed)
		dao.ClaimerLogin = &claimerLogin
		dao.PRNumber = &prNumber
		dao.PRURL = &prURL
		dao.ClaimedAt = &now
		dao.UpdatedAt = now

		if _, err := tx.NewUpdate().
			Model(dao).
			WherePK().
			Column("status", "claimer_login", "pr_number", "pr_url", "claimed_at", "updated_at").
			Exec(ctx); err != nil {
			return fmt.Errorf("record claim: %w", err)
		}

		result = toBounty(dao)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *pgStore) RecordCompletion(ctx context.Context, id string, info CompletionInfo) (*bounty.Bounty, error) {
	var result *bounty.Bounty
	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		dao, err := lockBounty(ctx, tx, id)
		if err != nil {
			return err
		}
		if bounty.Status(dao.Status) != bounty.StatusClaimed {
			return fmt.Errorf("%w: completion requires %s, bounty is %s",
				ErrInvalidTransition, bounty.StatusClaimed, dao.Status)
		}

		now := time.Now().UTC()
		dao.Status = string(bounty.StatusCompleted)
		dao.PayoutTxHash = &info.TxHash
		dao.PayoutRecipient = &info.Recipient
		dao.PaidAt = &now
		dao.UpdatedAt = now

		if _, err := tx.NewUpdate().
			Model(dao).
			WherePK().
			Column("status", "payout_tx_hash", "payout_recipient", "paid_at", "updated_at").
			Exec(ctx); err != nil {
			return fmt.Errorf("record completion: %w", err)
		}

		result = toBounty(dao)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *pgStore) MarkVerificationFailed(ctx context.Context, id, reason string) error {
	return s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		dao, err := lockBounty(ctx, tx, id)
		if err != nil {
			return err
		}
		if bounty.Status(dao.Status) != bounty.StatusClaimed {
			return fmt.Errorf("%w: verification failure requires %s, bounty is %s",
				ErrInvalidTransition, bounty.StatusClaimed, dao.Status)
		}

		dao.Status = string(bounty.StatusFailedVerification)
		dao.VerifyFailReason = &reason
		dao.UpdatedAt = time.Now().UTC()

		if _, err := tx.NewUpdate().
			Model(dao).
			WherePK().
			Column("status", "verify_fail_reason", "updated_at").
			Exec(ctx); err != nil {
			return fmt.Errorf("mark verification failed: %w", err)
		}
		return nil
	})
}

// BumpVerifyAttempts increments the transient-failure counter of a claimed
// bounty and returns the new count.
func (s *pgStore) BumpVerifyAttempts(ctx context.Context, id string) (int, error) {
	var attempts int
	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		dao, err := lockBounty(ctx, tx, id)
		if err != nil {
			return err
		}
		if bounty.Status(dao.Status) != bounty.StatusClaimed {
			return fmt.Errorf("%w: verify attempt requires %s, bounty is %s",
				ErrInvalidTransition, bounty.StatusClaimed, dao.Status)
		}

		dao.VerifyAttempts++
		dao.UpdatedAt = time.Now().UTC()

		if _, err := tx.NewUpdate().
			Model(dao).
			WherePK().
			Column("verify_attempts", "updated_at").
			Exec(ctx); err != nil {
			return fmt.Errorf("bump verify attempts: %w", err)
		}

		attempts = dao.VerifyAttempts
		return nil
	})
	if err != nil {
		return 0, err
	}
	return attempts, nil
}

func (s *pgStore) RecordRefund(ctx context.Context, id, txHash string) (*bounty.Bounty, error) {
	var result *bounty.Bounty
	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		dao, err := lockBounty(ctx, tx, id)
		if err != nil {
			return err
		}
		if bounty.Status(dao.Status) != bounty.StatusFunded {
			return fmt.Errorf("%w: refund requires %s, bounty is %s",
				ErrInvalidTransition, bounty.StatusFunded, dao.Status)
		}
		if dao.ExpiresAt == nil || !time.Now().UTC().After(*dao.ExpiresAt) {
			return ErrNotExpired
		}

		now := time.Now().UTC()
		dao.Status = string(bounty.StatusRefunded)
		dao.RefundTxHash = &txHash
		dao.RefundedAt = &now
		dao.UpdatedAt = now

		if _, err := tx.NewUpdate().
			Model(dao).
			WherePK().
			Column("status", "refund_tx_hash", "refunded_at", "updated_at").
			Exec(ctx); err != nil {
			return fmt.Errorf("record refund: %w", err)
		}

		result = toBounty(dao)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *pgStore) MarkExpired(ctx context.Context, id string) (*bounty.Bounty, error) {
	var result *bounty.Bounty
	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		dao, err := lockBounty(ctx, tx, id)
		if err != nil {
			return err
		}
		if bounty.Status(dao.Status) != bounty.StatusFunded {
			return fmt.Errorf("%w: expiry requires %s, bounty is %s",
				ErrInvalidTransition, bounty.StatusFunded, dao.Status)
		}
		if dao.ExpiresAt == nil || !time.Now().UTC().After(*dao.ExpiresAt) {
			return ErrNotExpired
		}

		dao.Status = string(bounty.StatusExpired)
		dao.UpdatedAt = time.Now().UTC()

		if _, err := tx.NewUpdate().
			Model(dao).
			WherePK().
			Column("status", "updated_at").
			Exec(ctx); err != nil {
			return fmt.Errorf("mark expired: %w", err)
		}

		result = toBounty(dao)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// RecordWebhookDelivery atomically claims an inbound delivery id. Only the
// first caller for a given id gets true; everyone else gets false with no
// side effects.
func (s *pgStore) RecordWebhookDelivery(ctx context.Context, deliveryID string, meta DeliveryMeta) (bool, error) {
	dao := &WebhookDeliveryDao{
		DeliveryID:   deliveryID,
		EventType:    meta.EventType,
		Action:       meta.Action,
		RepoFullName: meta.RepoFullName,
		Status:       string(DeliveryProcessing),
	}
	if meta.IssueNumber != 0 {
		dao.IssueNumber = &meta.IssueNumber
	}

	res, err := s.db.NewInsert().
		Model(dao).
		On("CONFLICT (delivery_id) DO NOTHING").
		Exec(ctx)
	if err != nil {
		return false, fmt.Errorf("record webhook delivery: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("record webhook delivery: %w", err)
	}
	return affected > 0, nil
}

func (s *pgStore) SetWebhookDeliveryStatus(ctx context.Context, deliveryID string, status DeliveryStatus) error {
	_, err := s.db.NewUpdate().
		Model((*WebhookDeliveryDao)(nil)).
		Set("status = ?", string(status)).
		Set("updated_at = NOW()").
		Where("delivery_id = ?", deliveryID).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("set webhook delivery status: %w", err)
	}
	return nil
}

// RecordPayout appends the settlement record. The unique settlement key makes
// a duplicate payout attempt fail with ErrAlreadyProcessed instead of paying
// twice.
func (s *pgStore) RecordPayout(ctx context.Context, p *bounty.Payout) (*bounty.Payout, error) {
	dao := toPayoutDao(p)

	if _, err := s.db.NewInsert().Model(dao).Returning("*").Exec(ctx); err != nil {
		if pgutil.IsUniqueViolation(err) {
			return nil, fmt.Errorf("payout for %s: %w", p.SettlementKey, ErrAlreadyProcessed)
		}
		return nil, fmt.Errorf("record payout: %w", err)
	}
	return toPayout(dao), nil
}

// GetPayout looks up the settlement record for a key. Callers consult this
// before driving the ledger so a key is paid out at most once.
func (s *pgStore) GetPayout(ctx context.Context, settlementKey string) (*bounty.Payout, error) {
	dao := new(PayoutDao)
	err := s.db.NewSelect().Model(dao).Where("settlement_key = ?", settlementKey).Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrPayoutNotFound
		}
		return nil, fmt.Errorf("get payout: %w", err)
	}
	return toPayout(dao), nil
}

func (s *pgStore) Leaderboard(ctx context.Context, limit int) ([]*bounty.LeaderboardEntry, error) {
	if limit <= 0 || limit > maxListLimit {
		limit = 10
	}

	var rows []struct {
		ClaimerLogin string          `bun:"claimer_login"`
		Currency     string          `bun:"currency"`
		Count        int             `bun:"count"`
		Total        decimal.Decimal `bun:"total"`
	}

	err := s.db.NewSelect().
		Model((*PayoutDao)(nil)).
		Column("claimer_login", "currency").
		ColumnExpr("COUNT(*) AS count").
		ColumnExpr("SUM(payout_amount) AS total").
		Group("claimer_login", "currency").
		Scan(ctx, &rows)
	if err != nil {
		return nil, fmt.Errorf("leaderboard: %w", err)
	}

	byLogin := make(map[string]*bounty.LeaderboardEntry)
	for _, row := range rows {
		entry, ok := byLogin[row.ClaimerLogin]
		if !ok {
			entry = &bounty.LeaderboardEntry{
				Login:            row.ClaimerLogin,
				TotalsByCurrency: make(map[bounty.Currency]decimal.Decimal),
			}
			byLogin[row.ClaimerLogin] = entry
		}
		entry.CompletedCount += row.Count
		entry.TotalsByCurrency[bounty.Currency(row.Currency)] = row.Total
	}

	entries := make([]*bounty.LeaderboardEntry, 0, len(byLogin))
	for _, entry := range byLogin {
		entries = append(entries, entry)
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].CompletedCount != entries[j].CompletedCount {
			return entries[i].CompletedCount > entries[j].CompletedCount
		}
		return entries[i].Login < entries[j].Login
	})
	if len(entries) > limit {
		entries = entries[:limit]
	}
	return entries, nil
}

func (s *pgStore) CreateAttempt(ctx context.Context, a *bounty.Attempt) (*bounty.Attempt, error) {
	dao := toAttemptDao(a)

	if _, err := s.db.NewInsert().Model(dao).Returning("*").Exec(ctx); err != nil {
		if pgutil.IsUniqueViolation(err) {
			return nil, fmt.Errorf("attempt by %s on %s/%s#%d: %w",
				a.UserLogin, a.RepoOwner, a.RepoName, a.IssueNumber, ErrAlreadyProcessed)
		}
		return nil, fmt.Errorf("create attempt: %w", err)
	}
	return toAttempt(dao), nil
}

func (s *pgStore) ReleaseAttempt(ctx context.Context, userLogin, repoOwner, repoName string, issueNumber int) error {
	_, err := s.db.NewUpdate().
		Model((*AttemptDao)(nil)).
		Set("active = FALSE").
		Where("user_login = ?", userLogin).
		Where("repo_owner = ?", repoOwner).
		Where("repo_name = ?", repoName).
		Where("issue_number = ?", issueNumber).
		Where("active").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("release attempt: %w", err)
	}
	return nil
}

func (s *pgStore) CreateWallet(ctx context.Context, w *bounty.Wallet) error {
	dao := toWalletDao(w)

	if _, err := s.db.NewInsert().Model(dao).Exec(ctx); err != nil {
		if pgutil.IsUniqueViolation(err) {
			return fmt.Errorf("wallet for %s: %w", w.GithubLogin, ErrAlreadyProcessed)
		}
		return fmt.Errorf("create wallet: %w", err)
	}
	return nil
}

func (s *pgStore) GetWallet(ctx context.Context, githubLogin string) (*bounty.Wallet, error) {
	dao := new(WalletDao)
	err := s.db.NewSelect().Model(dao).Where("github_login = ?", githubLogin).Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrWalletNotFound
		}
		return nil, fmt.Errorf("get wallet: %w", err)
	}
	return toWallet(dao), nil
}
