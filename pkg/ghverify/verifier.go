// Package ghverify checks that a pull request genuinely resolves the issue a
// bounty is attached to before any payout is attempted.
package ghverify

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"time"

	"github.com/google/go-github/v69/github"
	"go.uber.org/zap"
	"golang.org/x/oauth2"

	"github.com/octobounty/escrow-middleware/pkg/config"
)

// ErrTransient reports a verification that could not be concluded either way.
// Callers keep the bounty claimed and retry on a later sweep.
var ErrTransient = errors.New("transient verification failure")

const defaultCallTimeout = 30 * time.Second

// closingPattern matches GitHub's closing keywords followed by an issue
// reference, e.g. "Fixes #42", "closed: #7", "Resolve #3".
var closingPattern = regexp.MustCompile(`(?i)\b(?:close[sd]?|fix(?:e[sd])?|resolve[sd]?)\s*:?\s+#(\d+)\b`)

// Result is a concluded verification. Reason is set when Verified is false.
type Result struct {
	Verified bool
	Reason   string
}

// Verifier checks pull request state through the GitHub API.
type Verifier struct {
	client  *github.Client
	timeout time.Duration
	logger  *zap.Logger
}

// NewVerifier builds a Verifier from the GitHub configuration. An empty token
// leaves the client unauthenticated, which only suits public repositories and
// low rates.
func NewVerifier(cfg *config.GitHubConfig, logger *zap.Logger) (*Verifier, error) {
	var httpClient *http.Client
	if cfg.Token != "" {
		httpClient = oauth2.NewClient(context.Background(),
			oauth2.StaticTokenSource(&oauth2.Token{AccessToken: cfg.Token}))
	}

	client := github.NewClient(httpClient)
	if cfg.APIBaseURL != "" {
		var err error
		client, err = client.WithEnterpriseURLs(cfg.APIBaseURL, cfg.APIBaseURL)
		if err != nil {
			return nil, fmt.Errorf("failed to set GitHub base URL: %w", err)
		}
	}

	timeout := cfg.CallTimeout.Std()
	if timeout <= 0 {
		timeout = defaultCallTimeout
	}

	return &Verifier{client: client, timeout: timeout, logger: logger}, nil
}

// Verify checks that the pull request exists, is merged, and resolves the
// given issue. A definitive mismatch returns Verified=false with a reason;
// an inconclusive check returns an error wrapping ErrTransient.
func (v *Verifier) Verify(ctx context.Context, owner, repo string, prNumber, issueNumber int) (*Result, error) {
	ctx, cancel := context.WithTimeout(ctx, v.timeout)
	defer cancel()

	pr, resp, err := v.client.PullRequests.Get(ctx, owner, repo, prNumber)
	if err != nil {
		if isNotFound(resp) {
			return &Result{Verified: false, Reason: fmt.Sprintf("pull request #%d not found", prNumber)}, nil
		}
		return nil, transient("fetch pull request", err)
	}

	if !pr.GetMerged() {
		if pr.GetState() == "closed" {
			return &Result{Verified: false, Reason: fmt.Sprintf("pull request #%d was closed without merging", prNumber)}, nil
		}
		return &Result{Verified: false, Reason: fmt.Sprintf("pull request #%d is not merged", prNumber)}, nil
	}

	if referencesIssue(pr.GetTitle(), issueNumber) || referencesIssue(pr.GetBody(), issueNumber) {
		return &Result{Verified: true}, nil
	}

	linked, err := v.timelineLinked(ctx, owner, repo, prNumber, issueNumber)
	if err != nil {
		return nil, err
	}
	if linked {
		return &Result{Verified: true}, nil
	}

	return &Result{
		Verified: false,
		Reason:   fmt.Sprintf("pull request #%d does not reference issue #%d", prNumber, issueNumber),
	}, nil
}

// timelineLinked walks the issue timeline looking for a connection to the
// pull request, covering manual "Development" links with no closing keyword.
func (v *Verifier) timelineLinked(ctx context.Context, owner, repo string, prNumber, issueNumber int) (bool, error) {
	opts := &github.ListOptions{PerPage: 100}
	for {
		events, resp, err := v.client.Issues.ListIssueTimeline(ctx, owner, repo, issueNumber, opts)
		if err != nil {
			if isNotFound(resp) {
				return false, nil
			}
			return false, transient("fetch issue timeline", err)
		}

		for _, event := range events {
			switch event.GetEvent() {
			case "cross-referenced":
				source := event.GetSource().GetIssue()
				if source.IsPullRequest() && source.GetNumber() == prNumber {
					return true, nil
				}
			case "connected", "closed":
				// Connected and closed events do not carry the source PR in
				// all API versions; treat a matching cross-reference as the
				// authoritative signal and skip these.
			}
		}

		if resp.NextPage == 0 {
			return false, nil
		}
		opts.Page = resp.NextPage
	}
}

// referencesIssue reports whether text contains a closing keyword aimed at
// the issue number.
func referencesIssue(text string, issueNumber int) bool {
	for _, match := range closingPattern.FindAllStringSubmatch(text, -1) {
		if match[1] == fmt.Sprintf("%d", issueNumber) {
			return true
		}
	}
	return false
}

func isNotFound(resp *github.Response) bool {
	return resp != nil && resp.StatusCode == http.StatusNotFound
}

// transient classifies an API failure. Rate limits, server errors and network
// failures are retryable; everything else still wraps ErrTransient because an
// unknown failure must never burn a bounty.
func transient(op string, err error) error {
	var rateErr *github.RateLimitError
	var abuseErr *github.AbuseRateLimitError
	switch {
	case errors.As(err, &rateErr), errors.As(err, &abuseErr):
		return fmt.Errorf("%s: rate limited: %w", op, ErrTransient)
	default:
		return fmt.Errorf("%s: %v: %w", op, err, ErrTransient)
	}
}
