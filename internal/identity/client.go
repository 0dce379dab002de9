// Package identity resolves the current operator and their group memberships
// from the remote list service.
//
// The remote service wraps every payload in a verbose-JSON envelope (a single
// "d" field, with list results nested under "results"). That wrapper is a
// transport quirk, not a semantic structure, so it is unwrapped here and the
// rest of the system never sees it.
package identity

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/calejo/formgate/internal/metrics"
	"github.com/calejo/formgate/internal/models"
)

// ErrLookupFailed is matched by every identity or group lookup failure.
// Callers treat a failed lookup as "no identity" / "no groups" so that
// authorization stays fail-closed.
var ErrLookupFailed = errors.New("identity lookup failed")

// acceptHeader asks the remote service for its verbose JSON representation.
const acceptHeader = "application/json;odata=verbose"

// LookupError describes a failed identity or group query. It matches
// ErrLookupFailed via errors.Is and carries a human-readable message.
type LookupError struct {
	// Op names the failed operation ("current user", "groups").
	Op string
	// Message is a human-readable description suitable for surfacing.
	Message string
	// Err is the underlying cause, if any.
	Err error
}

func (e *LookupError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s lookup failed: %s: %v", e.Op, e.Message, e.Err)
	}
	return fmt.Sprintf("%s lookup failed: %s", e.Op, e.Message)
}

func (e *LookupError) Unwrap() error { return e.Err }

// Is lets errors.Is(err, ErrLookupFailed) match any LookupError.
func (e *LookupError) Is(target error) bool { return target == ErrLookupFailed }

// Client issues read-only identity queries against the remote service.
// It performs no caching and no retries; both are caller concerns. A Client
// is safe for concurrent use.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient creates an identity client for the service at baseURL.
// If httpClient is nil, http.DefaultClient is used.
func NewClient(baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{baseURL: baseURL, http: httpClient}
}

// currentUserPayload mirrors the remote current-user document.
type currentUserPayload struct {
	ID         int64  `json:"id"`
	LoginName  string `json:"loginName"`
	Title      string `json:"title"`
	Email      string `json:"email"`
	Department string `json:"department"`
	JobTitle   string `json:"jobTitle"`
}

// groupPayload mirrors one remote group document.
type groupPayload struct {
	ID    int64  `json:"id"`
	Title string `json:"title"`
}

// CurrentUser resolves the identity of the active operator.
//
// The returned user has an empty group list; group memberships require the
// user's id and are resolved separately via Groups when an authorization
// decision actually needs them. On any failure no partial user is produced.
func (c *Client) CurrentUser(ctx context.Context) (*models.CurrentUser, error) {
	body, err := c.get(ctx, c.baseURL+"/current-user")
	if err != nil {
		metrics.IdentityLookups.WithLabelValues("user", "error").Inc()
		return nil, &LookupError{Op: "current user", Message: "could not reach identity endpoint", Err: err}
	}

	var payload currentUserPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		metrics.IdentityLookups.WithLabelValues("user", "error").Inc()
		return nil, &LookupError{Op: "current user", Message: "malformed identity payload", Err: err}
	}
	if payload.ID == 0 || payload.LoginName == "" {
		metrics.IdentityLookups.WithLabelValues("user", "error").Inc()
		return nil, &LookupError{Op: "current user", Message: "identity payload missing id or login"}
	}

	metrics.IdentityLookups.WithLabelValues("user", "ok").Inc()
	return &models.CurrentUser{
		ID:         payload.ID,
		Login:      payload.LoginName,
		Title:      payload.Title,
		Email:      payload.Email,
		Department: payload.Department,
		JobTitle:   payload.JobTitle,
	}, nil
}

// Groups resolves the group memberships of the user with the given id,
// in the order the service returns them. No re-sorting is applied.
func (c *Client) Groups(ctx context.Context, userID int64) ([]models.Group, error) {
	body, err := c.get(ctx, fmt.Sprintf("%s/users/%d/groups", c.baseURL, userID))
	if err != nil {
		metrics.IdentityLookups.WithLabelValues("groups", "error").Inc()
		return nil, &LookupError{Op: "groups", Message: "could not reach group endpoint", Err: err}
	}

	var payloads []groupPayload
	if err := json.Unmarshal(unwrapResults(body), &payloads); err != nil {
		metrics.IdentityLookups.WithLabelValues("groups", "error").Inc()
		return nil, &LookupError{Op: "groups", Message: "malformed group payload", Err: err}
	}

	groups := make([]models.Group, len(payloads))
	for i, p := range payloads {
		groups[i] = models.Group{ID: p.ID, Title: p.Title}
	}

	metrics.IdentityLookups.WithLabelValues("groups", "ok").Inc()
	return groups, nil
}

// get issues a read-only request and returns the response body with the
// "d" envelope already removed.
func (c *Client) get(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", acceptHeader)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}
	return unwrapEnvelope(body), nil
}

// unwrapEnvelope strips the single "d" wrapper if present. Payloads without
// the wrapper pass through untouched.
func unwrapEnvelope(body []byte) []byte {
	var env struct {
		D json.RawMessage `json:"d"`
	}
	if err := json.Unmarshal(body, &env); err == nil && len(env.D) > 0 {
		return env.D
	}
	return body
}

// unwrapResults strips the nested "results" wrapper around list payloads.
func unwrapResults(body []byte) []byte {
	var env struct {
		Results json.RawMessage `json:"results"`
	}
	if err := json.Unmarshal(body, &env); err == nil && len(env.Results) > 0 {
		return env.Results
	}
	return body
}
