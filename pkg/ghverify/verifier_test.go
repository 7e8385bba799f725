package ghverify

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/google/go-github/v69/github"
	"go.uber.org/zap"
)

func newTestVerifier(t *testing.T, handler http.Handler) *Verifier {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	client := github.NewClient(nil)
	base, err := url.Parse(srv.URL + "/")
	if err != nil {
		t.Fatalf("failed to parse test server url: %v", err)
	}
	client.BaseURL = base

	return &Verifier{client: client, timeout: 5 * time.Second, logger: zap.NewNop()}
}

func prResponse(merged bool, state, title, body string) string {
	return fmt.Sprintf(`{"number": 5, "merged": %t, "state": %q, "title": %q, "body": %q}`,
		merged, state, title, body)
}

func TestVerify_MergedWithClosingKeyword(t *testing.T) {
	v := newTestVerifier(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/repos/octocat/hello-world/pulls/5" {
			t.Fatalf("unexpected request path: %s", r.URL.Path)
		}
		fmt.Fprint(w, prResponse(true, "closed", "Fix widget", "Fixes #7 properly"))
	}))

	res, err := v.Verify(context.Background(), "octocat", "hello-world", 5, 7)
	if err != nil {
		t.Fatalf("Verify() failed: %v", err)
	}
	if !res.Verified {
		t.Fatalf("expected verified, got reason %q", res.Reason)
	}
}

func TestVerify_KeywordVariants(t *testing.T) {
	cases := []struct {
		text  string
		match bool
	}{
		{"Closes #7", true},
		{"closed: #7", true},
		{"RESOLVES #7", true},
		{"fixed #7", true},
		{"Fixe #7", false},
		{"Fixes #70", false},
		{"relates to #7", false},
		{"Fixes#7", false},
	}
	for _, tc := range cases {
		if got := referencesIssue(tc.text, 7); got != tc.match {
			t.Fatalf("referencesIssue(%q, 7) = %v, want %v", tc.text, got, tc.match)
		}
	}
}

func TestVerify_ClosedWithoutMerging(t *testing.T) {
	v := newTestVerifier(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, prResponse(false, "closed", "Fix widget", "Fixes #7"))
	}))

	res, err := v.Verify(context.Background(), "octocat", "hello-world", 5, 7)
	if err != nil {
		t.Fatalf("Verify() failed: %v", err)
	}
	if res.Verified {
		t.Fatalf("expected unverified")
	}
	if !strings.Contains(res.Reason, "closed without merging") {
		t.Fatalf("unexpected reason: %q", res.Reason)
	}
}

func TestVerify_OpenPullRequest(t *testing.T) {
	v := newTestVerifier(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, prResponse(false, "open", "Fix widget", "Fixes #7"))
	}))

	res, err := v.Verify(context.Background(), "octocat", "hello-world", 5, 7)
	if err != nil {
		t.Fatalf("Verify() failed: %v", err)
	}
	if res.Verified {
		t.Fatalf("expected unverified for open pull request")
	}
	if !strings.Contains(res.Reason, "not merged") {
		t.Fatalf("unexpected reason: %q", res.Reason)
	}
}

func TestVerify_PullRequestNotFound(t *testing.T) {
	v := newTestVerifier(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		fmt.Fprint(w, `{"message": "Not Found"}`)
	}))

	res, err := v.Verify(context.Background(), "octocat", "hello-world", 5, 7)
	if err != nil {
		t.Fatalf("Verify() failed: %v", err)
	}
	if res.Verified {
		t.Fatalf("expected unverified for missing pull request")
	}
	if !strings.Contains(res.Reason, "not found") {
		t.Fatalf("unexpected reason: %q", res.Reason)
	}
}

func TestVerify_TimelineLinkage(t *testing.T) {
	v := newTestVerifier(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/repos/octocat/hello-world/pulls/5":
			fmt.Fprint(w, prResponse(true, "closed", "Fix widget", "no keyword here"))
		case "/repos/octocat/hello-world/issues/7/timeline":
			fmt.Fprint(w, `[
				{"event": "labeled"},
				{"event": "cross-referenced", "source": {"issue": {"number": 5, "pull_request": {"url": "https://api.github.com/repos/octocat/hello-world/pulls/5"}}}}
			]`)
		default:
			t.Fatalf("unexpected request path: %s", r.URL.Path)
		}
	}))

	res, err := v.Verify(context.Background(), "octocat", "hello-world", 5, 7)
	if err != nil {
		t.Fatalf("Verify() failed: %v", err)
	}
	if !res.Verified {
		t.Fatalf("expected timeline linkage to verify, got reason %q", res.Reason)
	}
}

func TestVerify_NoLinkage(t *testing.T) {
	v := newTestVerifier(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/repos/octocat/hello-world/pulls/5":
			fmt.Fprint(w, prResponse(true, "closed", "Fix widget", "unrelated change"))
		case "/repos/octocat/hello-world/issues/7/timeline":
			fmt.Fprint(w, `[{"event": "cross-referenced", "source": {"issue": {"number": 99, "pull_request": {"url": "https://api.github.com/repos/octocat/hello-world/pulls/99"}}}}]`)
		default:
			t.Fatalf("unexpected request path: %s", r.URL.Path)
		}
	}))

	res, err := v.Verify(context.Background(), "octocat", "hello-world", 5, 7)
	if err != nil {
		t.Fatalf("Verify() failed: %v", err)
	}
	if res.Verified {
		t.Fatalf("expected unverified without issue linkage")
	}
	if !strings.Contains(res.Reason, "does not reference issue #7") {
		t.Fatalf("unexpected reason: %q", res.Reason)
	}
}

func TestVerify_ServerErrorIsTransient(t *testing.T) {
	v := newTestVerifier(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))

	_, err := v.Verify(context.Background(), "octocat", "hello-world", 5, 7)
	if !errors.Is(err, ErrTransient) {
		t.Fatalf("expected transient error, got: %v", err)
	}
}

func TestVerify_RateLimitIsTransient(t *testing.T) {
	v := newTestVerifier(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-RateLimit-Limit", "60")
		w.Header().Set("X-RateLimit-Remaining", "0")
		w.Header().Set("X-RateLimit-Reset", fmt.Sprintf("%d", time.Now().Add(time.Hour).Unix()))
		w.WriteHeader(http.StatusForbidden)
		fmt.Fprint(w, `{"message": "API rate limit exceeded"}`)
	}))

	_, err := v.Verify(context.Background(), "octocat", "hello-world", 5, 7)
	if !errors.Is(err, ErrTransient) {
		t.Fatalf("expected transient error for rate limit, got: %v", err)
	}
}
