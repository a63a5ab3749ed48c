package restapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/maildeck/maildeck/internal/models"
)

// MaxPageLimit is the server-enforced maximum page size. Requested limits
// are clamped to this value before every listing request.
const MaxPageLimit = 100

// AuthError indicates the bearer credential was rejected (HTTP 401).
// It is a session-layer concern: callers propagate it to the session layer
// (logout) instead of retrying or surfacing it as an ordinary failure.
type AuthError struct {
	Operation string
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("authentication failed (401) on %s", e.Operation)
}

// IsAuthError reports whether err (or any error in its chain) is an AuthError.
func IsAuthError(err error) bool {
	var authErr *AuthError
	return errors.As(err, &authErr)
}

// Client is a thin typed client for the mail backend's REST API.
// It handles bearer authentication, JSON marshaling, and client-side
// request pacing. Every call is a single attempt: mutations are
// at-most-once by design, so there is no retry loop.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	limiter    *rate.Limiter
}

// NewClient creates a backend API client. baseURL is the root of the
// versioned API (e.g. https://mail.example.com/api/v1); token is the bearer
// credential attached to every request.
func NewClient(baseURL, token string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		// 10 req/s with small bursts keeps autosave ticks and rapid
		// optimistic mutations from hammering the backend.
		limiter: rate.NewLimiter(rate.Limit(10), 20),
	}
}

// ListQuery holds the filter inputs for paginated email/thread listings.
type ListQuery struct {
	Limit     int
	Offset    int
	Folder    string
	Category  string
	Search    string
	AccountID string
}

func (q ListQuery) values() url.Values {
	limit := q.Limit
	if limit <= 0 || limit > MaxPageLimit {
		limit = MaxPageLimit
	}
	v := url.Values{}
	v.Set("limit", strconv.Itoa(limit))
	v.Set("offset", strconv.Itoa(q.Offset))
	if q.Folder != "" {
		v.Set("folder", q.Folder)
	}
	if q.Category != "" {
		v.Set("category", q.Category)
	}
	if q.Search != "" {
		v.Set("search", q.Search)
	}
	if q.AccountID != "" {
		v.Set("account_id", q.AccountID)
	}
	return v
}

// ListEmails returns a page of AI-indexed emails for the given filters.
func (c *Client) ListEmails(ctx context.Context, q ListQuery) (*models.EmailPage, error) {
	var page models.EmailPage
	if err := c.do(ctx, http.MethodGet, "/emails?"+q.values().Encode(), nil, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

// ListThreads returns a page of threads for the given filters. Thread and
// flat views are mutually exclusive per fetch.
func (c *Client) ListThreads(ctx context.Context, q ListQuery) (*models.ThreadPage, error) {
	var page models.ThreadPage
	if err := c.do(ctx, http.MethodGet, "/emails/threads/list?"+q.values().Encode(), nil, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

// ListUnindexed returns a page of not-yet-indexed emails, sorted by date.
func (c *Client) ListUnindexed(ctx context.Context, q ListQuery) (*models.EmailPage, error) {
	var page models.EmailPage
	if err := c.do(ctx, http.MethodGet, "/emails/unindexed?"+q.values().Encode(), nil, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

// ListAccounts returns the connected mailbox accounts.
func (c *Client) ListAccounts(ctx context.Context) ([]models.Account, error) {
	var accounts []models.Account
	if err := c.do(ctx, http.MethodGet, "/accounts", nil, &accounts); err != nil {
		return nil, err
	}
	return accounts, nil
}

// Star adds the star flag to an email.
func (c *Client) Star(ctx context.Context, emailID string) error {
	return c.do(ctx, http.MethodPost, "/emails/"+url.PathEscape(emailID)+"/star", nil, nil)
}

// Unstar removes the star flag from an email.
func (c *Client) Unstar(ctx context.Context, emailID string) error {
	return c.do(ctx, http.MethodDelete, "/emails/"+url.PathEscape(emailID)+"/star", nil, nil)
}

// Archive moves an email out of the active view into the archive.
func (c *Client) Archive(ctx context.Context, emailID string) error {
	return c.do(ctx, http.MethodPost, "/emails/"+url.PathEscape(emailID)+"/archive", nil, nil)
}

// Trash moves an email to the trash.
func (c *Client) Trash(ctx context.Context, emailID string) error {
	return c.do(ctx, http.MethodPost, "/emails/"+url.PathEscape(emailID)+"/trash", nil, nil)
}

// MarkRead marks an email as read.
func (c *Client) MarkRead(ctx context.Context, emailID string) error {
	return c.do(ctx, http.MethodPatch, "/emails/"+url.PathEscape(emailID)+"/read", nil, nil)
}

// ListDrafts returns all drafts for an account.
func (c *Client) ListDrafts(ctx context.Context, accountID string) (*models.DraftList, error) {
	var list models.DraftList
	if err := c.do(ctx, http.MethodGet, "/drafts/"+url.PathEscape(accountID), nil, &list); err != nil {
		return nil, err
	}
	return &list, nil
}

// CreateDraft creates a new draft and returns it with the backend-assigned id.
func (c *Client) CreateDraft(ctx context.Context, accountID string, payload models.DraftPayload) (*models.Draft, error) {
	var draft models.Draft
	if err := c.do(ctx, http.MethodPost, "/drafts/"+url.PathEscape(accountID), payload, &draft); err != nil {
		return nil, err
	}
	return &draft, nil
}

// UpdateDraft updates an existing draft in place.
func (c *Client) UpdateDraft(ctx context.Context, accountID, draftID string, payload models.DraftPayload) error {
	path := "/drafts/" + url.PathEscape(accountID) + "/" + url.PathEscape(draftID)
	return c.do(ctx, http.MethodPut, path, payload, nil)
}

// DeleteDraft deletes a draft.
func (c *Client) DeleteDraft(ctx context.Context, accountID, draftID string) error {
	path := "/drafts/" + url.PathEscape(accountID) + "/" + url.PathEscape(draftID)
	return c.do(ctx, http.MethodDelete, path, nil, nil)
}

// SendMessage submits an assembled raw MIME message for delivery through
// the backend.
func (c *Client) SendMessage(ctx context.Context, accountID string, rawMIME []byte) error {
	body := map[string]string{
		"account_id": accountID,
		"raw":        string(rawMIME),
	}
	return c.do(ctx, http.MethodPost, "/emails/send", body, nil)
}

// Sync asks the backend to pull new mail from the upstream provider.
func (c *Client) Sync(ctx context.Context, maxResults int) (*models.SyncResult, error) {
	var result models.SyncResult
	path := fmt.Sprintf("/emails/sync?max_results=%d", maxResults)
	if err := c.do(ctx, http.MethodPost, path, nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// do builds the request, attaches the bearer credential, waits on the rate
// limiter, and handles JSON (de)serialization. A 401 is mapped to AuthError;
// any other non-2xx status becomes an ordinary error.
func (c *Client) do(ctx context.Context, method, path string, body, result interface{}) error {
	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshaling request body: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("waiting for rate limiter: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("executing request %s %s: %w", method, path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading response body: %w", err)
	}

	if resp.StatusCode == http.StatusUnauthorized {
		return &AuthError{Operation: method + " " + path}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("unexpected status %d on %s %s: %s",
			resp.StatusCode, method, path, strings.TrimSpace(string(respBody)))
	}

	if result == nil || resp.StatusCode == http.StatusNoContent || len(respBody) == 0 {
		return nil
	}

	if err := json.Unmarshal(respBody, result); err != nil {
		return fmt.Errorf("unmarshaling response from %s %s: %w", method, path, err)
	}

	return nil
}
