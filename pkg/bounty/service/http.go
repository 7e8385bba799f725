package service

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	apperrors "github.com/octobounty/escrow-middleware/pkg/app/errors"
	apphttp "github.com/octobounty/escrow-middleware/pkg/app/http"
	"github.com/octobounty/escrow-middleware/pkg/auth"
	"github.com/octobounty/escrow-middleware/pkg/bounty"
	"github.com/octobounty/escrow-middleware/pkg/bountystore"
)

// HTTP wraps the Service to provide HTTP endpoints
type HTTP struct {
	service Service
	logger  *zap.Logger
}

// RegisterRoutes registers the bounty endpoints on the given chi router.
// Mutating endpoints require a session; reads are public.
func RegisterRoutes(r chi.Router, service Service, issuer *auth.Issuer, logger *zap.Logger) {
	h := &HTTP{
		service: service,
		logger:  logger,
	}

	r.Get("/bounties", apphttp.HandleError(h.list))
	r.Get("/bounties/leaderboard", apphttp.HandleError(h.leaderboard))
	r.Get("/bounties/{id}", apphttp.HandleError(h.get))

	r.Group(func(r chi.Router) {
		r.Use(issuer.Middleware)
		r.Post("/bounties", apphttp.HandleError(h.create))
		r.Post("/bounties/{id}/pay", apphttp.HandleError(h.fund))
		r.Post("/bounties/{id}/claim", apphttp.HandleError(h.claim))
		r.Post("/bounties/{id}/refund", apphttp.HandleError(h.refund))
		r.Post("/bounties/{id}/expire", apphttp.HandleError(h.expire))
		r.Post("/bounties/{id}/attempts", apphttp.HandleError(h.attempt))
		r.Post("/wallets", apphttp.HandleError(h.linkWallet))
	})
}

type createBountyRequest struct {
	RepoOwner   string `json:"repo_owner"`
	RepoName    string `json:"repo_name"`
	IssueNumber int    `json:"issue_number"`
	IssueID     int64  `json:"issue_id"`
	IssueURL    string `json:"issue_url"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Amount      string `json:"amount"`
	Currency    string `json:"currency"`
	ExpiresAt   string `json:"expires_at,omitempty"`
	Pool        bool   `json:"pool,omitempty"`
}

type claimRequest struct {
	PRNumber int    `json:"pr_number"`
	PRURL    string `json:"pr_url"`
}

type linkWalletRequest struct {
	Address   string `json:"address,omitempty"`
	Signature string `json:"signature,omitempty"`
}

type bountyResponse struct {
	ID          string `json:"id"`
	RepoOwner   string `json:"repo_owner"`
	RepoName    string `json:"repo_name"`
	IssueNumber int    `json:"issue_number"`
	IssueURL    string `json:"issue_url,omitempty"`
	Title       string `json:"title,omitempty"`

	CreatorLogin string           `json:"creator_login"`
	Amount       string           `json:"amount"`
	Currency     string           `json:"currency"`
	Fees         bounty.Breakdown `json:"fees"`
	Status       string           `json:"status"`

	EscrowTxHash string `json:"escrow_tx_hash,omitempty"`
	OnChainID    string `json:"on_chain_id,omitempty"`

	ClaimerLogin string `json:"claimer_login,omitempty"`
	PRNumber     int    `json:"pr_number,omitempty"`
	PRURL        string `json:"pr_url,omitempty"`

	PayoutTxHash    string `json:"payout_tx_hash,omitempty"`
	PayoutRecipient string `json:"payout_recipient,omitempty"`
	RefundTxHash    string `json:"refund_tx_hash,omitempty"`

	ExpiresAt *time.Time `json:"expires_at,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

type listResponse struct {
	Bounties []*bountyResponse `json:"bounties"`
	Total    int               `json:"total"`
	Limit    int               `json:"limit"`
	Offset   int               `json:"offset"`
}

type attemptResponse struct {
	ID          int64     `json:"id"`
	UserLogin   string    `json:"user_login"`
	RepoOwner   string    `json:"repo_owner"`
	RepoName    string    `json:"repo_name"`
	IssueNumber int       `json:"issue_number"`
	CreatedAt   time.Time `json:"created_at"`
}

type walletResponse struct {
	Login     string `json:"login"`
	Address   string `json:"address"`
	Custodial bool   `json:"custodial"`
}

func toBountyResponse(b *bounty.Bounty) *bountyResponse {
	return &bountyResponse{
		ID:              b.ID,
		RepoOwner:       b.RepoOwner,
		RepoName:        b.RepoName,
		IssueNumber:     b.IssueNumber,
		IssueURL:        b.IssueURL,
		Title:           b.Title,
		CreatorLogin:    b.CreatorLogin,
		Amount:          b.Amount.String(),
		Currency:        string(b.Currency),
		Fees:            b.Fees,
		Status:          string(b.Status),
		EscrowTxHash:    b.EscrowTxHash,
		OnChainID:       b.OnChainID,
		ClaimerLogin:    b.ClaimerLogin,
		PRNumber:        b.PRNumber,
		PRURL:           b.PRURL,
		PayoutTxHash:    b.PayoutTxHash,
		PayoutRecipient: b.PayoutRecipient,
		RefundTxHash:    b.RefundTxHash,
		ExpiresAt:       b.ExpiresAt,
		CreatedAt:       b.CreatedAt,
		UpdatedAt:       b.UpdatedAt,
	}
}

// decode reads and parses a JSON body with a size cap.
func decode(r *http.Request, dst any) error {
	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		return apperrors.BadRequestError(err, "failed to read request")
	}
	if err := json.Unmarshal(body, dst); err != nil {
		return apperrors.BadRequestError(err, "invalid JSON")
	}
	return nil
}

func login(r *http.Request) (string, error) {
	l, ok := auth.LoginFromContext(r.Context())
	if !ok || l == "" {
		return "", apperrors.UnAuthorizedError(nil, "authentication required")
	}
	return l, nil
}

func (h *HTTP) create(w http.ResponseWriter, r *http.Request) error {
	caller, err := login(r)
	if err != nil {
		return err
	}

	var req createBountyRequest
	if err := decode(r, &req); err != nil {
		return err
	}

	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		return apperrors.BadRequestError(err, "amount must be a decimal string")
	}

	var expiresAt *time.Time
	if req.ExpiresAt != "" {
		ts, err := time.Parse(time.RFC3339, req.ExpiresAt)
		if err != nil {
			return apperrors.BadRequestError(err, "expires_at must be RFC 3339")
		}
		expiresAt = &ts
	}

	created, err := h.service.Create(r.Context(), &CreateRequest{
		RepoOwner:    req.RepoOwner,
		RepoName:     req.RepoName,
		IssueNumber:  req.IssueNumber,
		IssueID:      req.IssueID,
		IssueURL:     req.IssueURL,
		Title:        req.Title,
		Description:  req.Description,
		CreatorLogin: caller,
		Amount:       amount,
		Currency:     req.Currency,
		ExpiresAt:    expiresAt,
		Pool:         req.Pool,
	})
	if err != nil {
		return err
	}

	h.writeJSON(w, http.StatusCreated, toBountyResponse(created))
	return nil
}

func (h *HTTP) fund(w http.ResponseWriter, r *http.Request) error {
	caller, err := login(r)
	if err != nil {
		return err
	}

	funded, err := h.service.Fund(r.Context(), chi.URLParam(r, "id"), caller)
	if err != nil {
		return err
	}

	h.writeJSON(w, http.StatusOK, toBountyResponse(funded))
	return nil
}

func (h *HTTP) claim(w http.ResponseWriter, r *http.Request) error {
	caller, err := login(r)
	if err != nil {
		return err
	}

	var req claimRequest
	if err := decode(r, &req); err != nil {
		return err
	}

	claimed, err := h.service.Claim(r.Context(), chi.URLParam(r, "id"), caller, req.PRNumber, req.PRURL)
	if err != nil {
		return err
	}

	h.writeJSON(w, http.StatusOK, toBountyResponse(claimed))
	return nil
}

func (h *HTTP) refund(w http.ResponseWriter, r *http.Request) error {
	caller, err := login(r)
	if err != nil {
		return err
	}

	refunded, err := h.service.Refund(r.Context(), chi.URLParam(r, "id"), caller)
	if err != nil {
		return err
	}

	h.writeJSON(w, http.StatusOK, toBountyResponse(refunded))
	return nil
}

func (h *HTTP) expire(w http.ResponseWriter, r *http.Request) error {
	caller, err := login(r)
	if err != nil {
		return err
	}

	expired, err := h.service.Expire(r.Context(), chi.URLParam(r, "id"), caller)
	if err != nil {
		return err
	}

	h.writeJSON(w, http.StatusOK, toBountyResponse(expired))
	return nil
}

func (h *HTTP) get(w http.ResponseWriter, r *http.Request) error {
	b, err := h.service.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		return err
	}

	h.writeJSON(w, http.StatusOK, toBountyResponse(b))
	return nil
}

func (h *HTTP) list(w http.ResponseWriter, r *http.Request) error {
	q := r.URL.Query()

	limit, _ := strconv.Atoi(q.Get("limit"))
	offset, _ := strconv.Atoi(q.Get("offset"))
	limit, offset = bountystore.NormalizePage(limit, offset)

	bounties, total, err := h.service.List(r.Context(), &ListQuery{
		Status:    q.Get("status"),
		Currency:  q.Get("currency"),
		RepoOwner: q.Get("repo_owner"),
		RepoName:  q.Get("repo_name"),
		Creator:   q.Get("creator"),
		Limit:     limit,
		Offset:    offset,
	})
	if err != nil {
		return err
	}

	resp := &listResponse{Total: total, Limit: limit, Offset: offset, Bounties: make([]*bountyResponse, len(bounties))}
	for i, b := range bounties {
		resp.Bounties[i] = toBountyResponse(b)
	}

	h.writeJSON(w, http.StatusOK, resp)
	return nil
}

func (h *HTTP) leaderboard(w http.ResponseWriter, r *http.Request) error {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	entries, err := h.service.Leaderboard(r.Context(), limit)
	if err != nil {
		return err
	}

	h.writeJSON(w, http.StatusOK, entries)
	return nil
}

func (h *HTTP) attempt(w http.ResponseWriter, r *http.Request) error {
	caller, err := login(r)
	if err != nil {
		return err
	}

	b, err := h.service.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		return err
	}

	attempt, err := h.service.RegisterAttempt(r.Context(), caller, b.RepoOwner, b.RepoName, b.IssueNumber)
	if err != nil {
		return err
	}

	h.writeJSON(w, http.StatusCreated, &attemptResponse{
		ID:          attempt.ID,
		UserLogin:   attempt.UserLogin,
		RepoOwner:   attempt.RepoOwner,
		RepoName:    attempt.RepoName,
		IssueNumber: attempt.IssueNumber,
		CreatedAt:   attempt.CreatedAt,
	})
	return nil
}

func (h *HTTP) linkWallet(w http.ResponseWriter, r *http.Request) error {
	caller, err := login(r)
	if err != nil {
		return err
	}

	var req linkWalletRequest
	if err := decode(r, &req); err != nil {
		return err
	}

	wallet, err := h.service.LinkWallet(r.Context(), &LinkWalletRequest{
		Login:     caller,
		Address:   req.Address,
		Signature: req.Signature,
	})
	if err != nil {
		return err
	}

	h.writeJSON(w, http.StatusCreated, &walletResponse{
		Login:     wallet.GithubLogin,
		Address:   wallet.Address,
		Custodial: wallet.EncryptedKey != "",
	})
	return nil
}

func (h *HTTP) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}
