package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/octobounty/escrow-middleware/pkg/bounty"
)

const serviceName = "BountyService"

// logService wraps Service with automatic logging of all method calls
type logService struct {
	svc    Service
	logger *zap.Logger
}

// NewLog creates a logging decorator for the bounty Service.
// It logs method entry/exit, duration and errors.
func NewLog(svc Service, logger *zap.Logger) Service {
	return &logService{
		svc:    svc,
		logger: logger,
	}
}

// finish logs the outcome of a method call from a deferred context.
func (ls *logService) finish(method string, start time.Time, err *error, fields ...zap.Field) {
	duration := time.Since(start)
	fields = append(fields,
		zap.String("service", serviceName),
		zap.String("method", method),
		zap.Duration("duration", duration),
	)

	if *err != nil {
		ls.logger.Error(method+" failed", append(fields, zap.Error(*err))...)
		return
	}
	ls.logger.Info(method+" completed", fields...)
}

func (ls *logService) Create(ctx context.Context, req *CreateRequest) (b *bounty.Bounty, err error) {
	start := time.Now()
	ls.logger.Info("Create started",
		zap.String("service", serviceName),
		zap.String("repo", req.RepoOwner+"/"+req.RepoName),
		zap.Int("issue", req.IssueNumber),
		zap.String("creator", req.CreatorLogin),
		zap.String("amount", req.Amount.String()),
		zap.String("currency", req.Currency),
	)
	defer func() {
		ls.finish("Create", start, &err,
			zap.String("repo", req.RepoOwner+"/"+req.RepoName),
			zap.Int("issue", req.IssueNumber))
	}()
	return ls.svc.Create(ctx, req)
}

func (ls *logService) Fund(ctx context.Context, id, callerLogin string) (b *bounty.Bounty, err error) {
	start := time.Now()
	ls.logger.Info("Fund started",
		zap.String("service", serviceName),
		zap.String("bounty_id", id),
		zap.String("caller", callerLogin),
	)
	defer func() { ls.finish("Fund", start, &err, zap.String("bounty_id", id)) }()
	return ls.svc.Fund(ctx, id, callerLogin)
}

func (ls *logService) Claim(ctx context.Context, id, claimerLogin string, prNumber int, prURL string) (b *bounty.Bounty, err error) {
	start := time.Now()
	ls.logger.Info("Claim started",
		zap.String("service", serviceName),
		zap.String("bounty_id", id),
		zap.String("claimer", claimerLogin),
		zap.Int("pr_number", prNumber),
	)
	defer func() { ls.finish("Claim", start, &err, zap.String("bounty_id", id)) }()
	return ls.svc.Claim(ctx, id, claimerLogin, prNumber, prURL)
}

func (ls *logService) Complete(ctx context.Context, id string) (b *bounty.Bounty, err error) {
	start := time.Now()
	ls.logger.Info("Complete started",
		zap.String("service", serviceName),
		zap.String("bounty_id", id),
	)
	defer func() { ls.finish("Complete", start, &err, zap.String("bounty_id", id)) }()
	return ls.svc.Complete(ctx, id)
}

func (ls *logService) Refund(ctx context.Context, id, callerLogin string) (b *bounty.Bounty, err error) {
	start := time.Now()
	ls.logger.Info("Refund started",
		zap.String("service", serviceName),
		zap.String("bounty_id", id),
		zap.String("caller", callerLogin),
	)
	defer func() { ls.finish("Refund", start, &err, zap.String("bounty_id", id)) }()
	return ls.svc.Refund(ctx, id, callerLogin)
}

func (ls *logService) Expire(ctx context.Context, id, callerLogin string) (b *bounty.Bounty, err error) {
	start := time.Now()
	ls.logger.Info("Expire started",
		zap.String("service", serviceName),
		zap.String("bounty_id", id),
		zap.String("caller", callerLogin),
	)
	defer func() { ls.finish("Expire", start, &err, zap.String("bounty_id", id)) }()
	return ls.svc.Expire(ctx, id, callerLogin)
}

func (ls *logService) Get(ctx context.Context, id string) (*bounty.Bounty, error) {
	return ls.svc.Get(ctx, id)
}

func (ls *logService) GetForIssue(ctx context.Context, repoOwner, repoName string, issueNumber int) (*bounty.Bounty, error) {
	return ls.svc.GetForIssue(ctx, repoOwner, repoName, issueNumber)
}

func (ls *logService) List(ctx context.Context, q *ListQuery) ([]*bounty.Bounty, int, error) {
	return ls.svc.List(ctx, q)
}

func (ls *logService) Leaderboard(ctx context.Context, limit int) ([]*bounty.LeaderboardEntry, error) {
	return ls.svc.Leaderboard(ctx, limit)
}

func (ls *logService) RegisterAttempt(ctx context.Context, login, repoOwner, repoName string, issueNumber int) (a *bounty.Attempt, err error) {
	start := time.Now()
	defer func() {
		ls.finish("RegisterAttempt", start, &err,
			zap.String("login", login),
			zap.String("repo", repoOwner+"/"+repoName),
			zap.Int("issue", issueNumber))
	}()
	return ls.svc.RegisterAttempt(ctx, login, repoOwner, repoName, issueNumber)
}

func (ls *logService) LinkWallet(ctx context.Context, req *LinkWalletRequest) (w *bounty.Wallet, err error) {
	start := time.Now()
	ls.logger.Info("LinkWallet started",
		zap.String("service", serviceName),
		zap.String("login", req.Login),
		zap.Bool("custodial", req.Address == ""),
	)
	defer func() { ls.finish("LinkWallet", start, &err, zap.String("login", req.Login)) }()
	return ls.svc.LinkWallet(ctx, req)
}
