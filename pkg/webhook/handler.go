// Package webhook receives GitHub events and turns issue comments into
// bounty lifecycle calls. Every delivery is recorded before any side effect,
// so a redelivered event is acknowledged without running twice.
package webhook

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/go-github/v69/github"
	"go.uber.org/zap"

	"github.com/octobounty/escrow-middleware/internal/metrics"
	apperrors "github.com/octobounty/escrow-middleware/pkg/app/errors"
	apphttp "github.com/octobounty/escrow-middleware/pkg/app/http"
	"github.com/octobounty/escrow-middleware/pkg/bounty"
	"github.com/octobounty/escrow-middleware/pkg/bounty/service"
	"github.com/octobounty/escrow-middleware/pkg/bountystore"
)

// DeliveryStore is the delivery bookkeeping slice of the bounty store.
type DeliveryStore interface {
	RecordWebhookDelivery(ctx context.Context, deliveryID string, meta bountystore.DeliveryMeta) (bool, error)
	SetWebhookDeliveryStatus(ctx context.Context, deliveryID string, status bountystore.DeliveryStatus) error
}

// Handler processes GitHub webhook deliveries.
type Handler struct {
	service service.Service
	store   DeliveryStore
	secret  []byte
	logger  *zap.Logger
}

// NewHandler creates the webhook handler. The secret is the shared HMAC
// secret configured on the GitHub webhook.
func NewHandler(svc service.Service, store DeliveryStore, secret string, logger *zap.Logger) *Handler {
	return &Handler{
		service: svc,
		store:   store,
		secret:  []byte(secret),
		logger:  logger,
	}
}

// RegisterRoutes registers the webhook endpoint on the given chi router.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/webhooks/github", apphttp.HandleError(h.receive))
}

type ackResponse struct {
	Status   string `json:"status"`
	BountyID string `json:"bounty_id,omitempty"`
}

func (h *Handler) receive(w http.ResponseWriter, r *http.Request) error {
	payload, err := github.ValidatePayload(r, h.secret)
	if err != nil {
		return apperrors.UnAuthorizedError(err, "webhook signature validation failed")
	}

	deliveryID := github.DeliveryID(r)
	if deliveryID == "" {
		return apperrors.BadRequestError(nil, "missing delivery id")
	}

	eventType := github.WebHookType(r)
	event, err := github.ParseWebHook(eventType, payload)
	if err != nil {
		return apperrors.BadRequestError(err, "unparseable webhook payload")
	}

	meta := bountystore.DeliveryMeta{EventType: eventType}
	comment, ok := event.(*github.IssueCommentEvent)
	if ok {
		meta.Action = comment.GetAction()
		meta.RepoFullName = comment.GetRepo().GetFullName()
		meta.IssueNumber = comment.GetIssue().GetNumber()
	}

	// The insert is the idempotency gate: only the first delivery with this
	// id proceeds past here.
	first, err := h.store.RecordWebhookDelivery(r.Context(), deliveryID, meta)
	if err != nil {
		return fmt.Errorf("failed to record delivery: %w", err)
	}
	if !first {
		h.logger.Info("Duplicate webhook delivery acknowledged",
			zap.String("delivery_id", deliveryID))
		metrics.WebhookDeliveries.WithLabelValues("duplicate").Inc()
		return h.ack(w, &ackResponse{Status: "duplicate"})
	}

	if !ok || comment.GetAction() != "created" {
		h.conclude(r.Context(), deliveryID, bountystore.DeliveryIgnored)
		return h.ack(w, &ackResponse{Status: "ignored"})
	}

	resp, err := h.dispatch(r.Context(), comment)
	if err != nil {
		h.conclude(r.Context(), deliveryID, bountystore.DeliveryFailed)
		return err
	}
	if resp.Status == "ignored" {
		h.conclude(r.Context(), deliveryID, bountystore.DeliveryIgnored)
	} else {
		h.conclude(r.Context(), deliveryID, bountystore.DeliveryCompleted)
	}
	return h.ack(w, resp)
}

// dispatch parses the comment body and runs the matching lifecycle call.
// A comment that is not a command is ignored, never an error.
func (h *Handler) dispatch(ctx context.Context, event *github.IssueCommentEvent) (*ackResponse, error) {
	cmd := bounty.ParseCommand(event.GetComment().GetBody())
	if cmd == nil {
		return &ackResponse{Status: "ignored"}, nil
	}

	owner := event.GetRepo().GetOwner().GetLogin()
	repo := event.GetRepo().GetName()
	issueNumber := event.GetIssue().GetNumber()
	commenter := event.GetComment().GetUser().GetLogin()

	switch cmd.Kind {
	case bounty.CommandCreate, bounty.CommandCreatePool:
		created, err := h.service.Create(ctx, &service.CreateRequest{
			RepoOwner:    owner,
			RepoName:     repo,
			IssueNumber:  issueNumber,
			IssueID:      event.GetIssue().GetID(),
			IssueURL:     event.GetIssue().GetHTMLURL(),
			Title:        event.GetIssue().GetTitle(),
			CreatorLogin: commenter,
			Amount:       cmd.Amount,
			Currency:     string(cmd.Currency),
			Pool:         cmd.Kind == bounty.CommandCreatePool,
		})
		if err != nil {
			return nil, err
		}
		h.logger.Info("Bounty created from comment",
			zap.String("bounty_id", created.ID),
			zap.String("issue", created.Reference()),
			zap.String("creator", commenter))
		return &ackResponse{Status: "created", BountyID: created.ID}, nil

	case bounty.CommandClaim:
		active, err := h.service.GetForIssue(ctx, owner, repo, issueNumber)
		if err != nil {
			return nil, err
		}
		prURL := fmt.Sprintf("https://github.com/%s/%s/pull/%d", owner, repo, cmd.PRNumber)
		claimed, err := h.service.Claim(ctx, active.ID, commenter, cmd.PRNumber, prURL)
		if err != nil {
			return nil, err
		}
		h.logger.Info("Bounty claimed from comment",
			zap.String("bounty_id", claimed.ID),
			zap.String("claimer", commenter),
			zap.Int("pr_number", cmd.PRNumber))
		return &ackResponse{Status: "claimed", BountyID: claimed.ID}, nil

	case bounty.CommandStatus:
		active, err := h.service.GetForIssue(ctx, owner, repo, issueNumber)
		if err != nil {
			return nil, err
		}
		h.logger.Info("Bounty status requested",
			zap.String("bounty_id", active.ID),
			zap.String("status", string(active.Status)))
		return &ackResponse{Status: string(active.Status), BountyID: active.ID}, nil

	case bounty.CommandRequest:
		// A bare funding request carries no amount; nothing to persist.
		h.logger.Info("Bounty requested without funding",
			zap.String("issue", fmt.Sprintf("%s/%s#%d", owner, repo, issueNumber)))
		return &ackResponse{Status: "ignored"}, nil
	}

	return &ackResponse{Status: "ignored"}, nil
}

// conclude records the delivery outcome. Failures here are logged, not
// surfaced; the delivery row already exists and the response is authoritative.
func (h *Handler) conclude(ctx context.Context, deliveryID string, status bountystore.DeliveryStatus) {
	metrics.WebhookDeliveries.WithLabelValues(string(status)).Inc()
	if err := h.store.SetWebhookDeliveryStatus(ctx, deliveryID, status); err != nil {
		h.logger.Warn("Failed to update delivery status",
			zap.String("delivery_id", deliveryID),
			zap.String("status", string(status)),
			zap.Error(err))
	}
}

func (h *Handler) ack(w http.ResponseWriter, resp *ackResponse) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(resp)
	return nil
}
