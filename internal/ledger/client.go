// Package ledger is the HTTP client for the remote smart-accounting service.
// It maps the service's responses onto the pipeline's error taxonomy so the
// delivery pool can decide between refresh-and-retry, backoff-and-retry, and
// permanent failure without inspecting HTTP details.
package ledger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Error taxonomy. Callers branch with errors.Is.
var (
	// ErrUnauthorized: the bearer token was rejected. Refresh and retry once.
	ErrUnauthorized = errors.New("ledger: unauthorized")
	// ErrTransient: network failure or 5xx. Retry with backoff.
	ErrTransient = errors.New("ledger: transient failure")
	// ErrRejected: the service explicitly rejected the content. Never retry.
	ErrRejected = errors.New("ledger: request rejected")
)

// Client calls the ledger service.
type Client struct {
	baseURL string
	httpc   *http.Client
}

// NewClient creates a ledger client for serverURL.
func NewClient(serverURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(serverURL, "/"),
		httpc:   &http.Client{Timeout: timeout},
	}
}

// User identifies the authenticated subject.
type User struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
}

// LoginResult is a successful login response.
type LoginResult struct {
	Token string `json:"token"`
	User  User   `json:"user"`
}

// Login exchanges credentials for a bearer token.
func (c *Client) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	body, err := json.Marshal(map[string]string{"email": email, "password": password})
	if err != nil {
		return nil, fmt.Errorf("encode login request: %w", err)
	}

	resp, err := c.post(ctx, "/api/auth/login", "", body)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return nil, fmt.Errorf("%w: login rejected", ErrUnauthorized)
	case resp.StatusCode >= 500:
		return nil, fmt.Errorf("%w: login returned %d", ErrTransient, resp.StatusCode)
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("%w: login returned %d", ErrRejected, resp.StatusCode)
	}

	var out LoginResult
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode login response: %w", err)
	}
	if out.Token == "" {
		return nil, fmt.Errorf("%w: login response carried no token", ErrRejected)
	}
	return &out, nil
}

// AccountBook is one ledger book the subject can post into.
type AccountBook struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Type      string `json:"type"`
	IsDefault bool   `json:"isDefault"`
}

// AccountBooks lists the subject's books. Used by the login command to let
// the operator pick a book ID for the config.
func (c *Client) AccountBooks(ctx context.Context, token string) ([]AccountBook, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/account-books", nil)
	if err != nil {
		return nil, fmt.Errorf("build account-books request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.httpc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTransient, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return nil, ErrUnauthorized
	case resp.StatusCode >= 500:
		return nil, fmt.Errorf("%w: account-books returned %d", ErrTransient, resp.StatusCode)
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("%w: account-books returned %d", ErrRejected, resp.StatusCode)
	}

	var out struct {
		Data []AccountBook `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode account-books response: %w", err)
	}
	return out.Data, nil
}

// Outcome is the business result of one accounting submission.
type Outcome struct {
	// ResultText is the human-readable reply to send back into the chat.
	ResultText string
	// Unrelated is true when the service decided the message has nothing
	// to do with accounting. Counted as success; suppresses the reply.
	Unrelated bool
}

// SmartAccounting submits one admitted message to the accounting endpoint.
// Error mapping: 401 -> ErrUnauthorized, network/5xx -> ErrTransient, 400
// with the "unrelated" business code -> success with Unrelated set, any
// other 4xx -> ErrRejected carrying the service's message.
func (c *Client) SmartAccounting(ctx context.Context, token, bookID, description, sender string) (*Outcome, error) {
	payload := map[string]string{
		"description":   description,
		"accountBookId": bookID,
	}
	if sender != "" {
		payload["userName"] = sender
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode accounting request: %w", err)
	}

	resp, err := c.post(ctx, "/api/ai/smart-accounting/direct", token, body)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("%w: read accounting response: %v", ErrTransient, err)
	}

	switch {
	case resp.StatusCode == http.StatusOK || resp.StatusCode == http.StatusCreated:
		return parseAccountingResponse(raw), nil
	case resp.StatusCode == http.StatusUnauthorized:
		return nil, ErrUnauthorized
	case resp.StatusCode >= 500:
		return nil, fmt.Errorf("%w: accounting returned %d", ErrTransient, resp.StatusCode)
	case resp.StatusCode == http.StatusBadRequest:
		return parseBadRequest(raw)
	default:
		return nil, fmt.Errorf("%w: accounting returned %d: %s", ErrRejected, resp.StatusCode, snippet(raw))
	}
}

// parseBadRequest distinguishes the "unrelated to accounting" business
// outcome from genuine rejections. The service reports both as 400.
func parseBadRequest(raw []byte) (*Outcome, error) {
	var body struct {
		Info  string `json:"info"`
		Error string `json:"error"`
	}
	_ = json.Unmarshal(raw, &body)

	if strings.Contains(body.Info, "记账无关") {
		return &Outcome{ResultText: "信息与记账无关", Unrelated: true}, nil
	}
	if body.Error != "" {
		return nil, fmt.Errorf("%w: %s", ErrRejected, body.Error)
	}
	return nil, fmt.Errorf("%w: malformed request: %s", ErrRejected, snippet(raw))
}

func (c *Client) post(ctx context.Context, path, token string, body []byte) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build request %s: %w", path, err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTransient, err)
	}
	return resp, nil
}

func snippet(raw []byte) string {
	const max = 200
	s := string(raw)
	if len(s) > max {
		s = s[:max] + "..."
	}
	return s
}
