package wechat

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"
)

// Driver is the narrow contract against the automation bridge. The rest of
// the pipeline only ever sees (value, error); the boundary quirks of the
// underlying automation library stay inside the implementation.
type Driver interface {
	// ListMessages returns the currently visible records of a conversation.
	// The result may mix old and new records in any proportion.
	ListMessages(ctx context.Context, conversation string) ([]RawRecord, error)

	// SendMessage sends a text message into a conversation. A nil error
	// means the send succeeded; the bridge's own result payload is
	// unreliable and must not be interpreted.
	SendMessage(ctx context.Context, conversation, text string) error
}

// BridgeClient talks to the local automation bridge over HTTP.
type BridgeClient struct {
	baseURL string
	httpc   *http.Client
}

// NewBridgeClient creates a client for the bridge at baseURL
// (e.g. "http://127.0.0.1:9910").
func NewBridgeClient(baseURL string, timeout time.Duration) *BridgeClient {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &BridgeClient{
		baseURL: trimTrailingSlash(baseURL),
		httpc:   &http.Client{Timeout: timeout},
	}
}

func trimTrailingSlash(s string) string {
	for len(s) > 0 && s[len(s)-1] == '/' {
		s = s[:len(s)-1]
	}
	return s
}

// ListMessages implements Driver.
func (c *BridgeClient) ListMessages(ctx context.Context, conversation string) ([]RawRecord, error) {
	u := fmt.Sprintf("%s/chats/%s/messages", c.baseURL, url.PathEscape(conversation))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("build list request: %w", err)
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("list messages: bridge returned %d: %s", resp.StatusCode, body)
	}

	var out struct {
		Messages []RawRecord `json:"messages"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode message list: %w", err)
	}
	return out.Messages, nil
}

// SendMessage implements Driver. Success is determined solely by the absence
// of a fault (transport error or non-2xx status). The bridge forwards the
// automation library's own return value in the response body, but that value
// has been observed to be false/null on sends that actually went through, so
// it is logged for diagnostics and never branched on.
func (c *BridgeClient) SendMessage(ctx context.Context, conversation, text string) error {
	payload, err := json.Marshal(map[string]string{"text": text})
	if err != nil {
		return fmt.Errorf("encode send payload: %w", err)
	}

	u := fmt.Sprintf("%s/chats/%s/send", c.baseURL, url.PathEscape(conversation))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build send request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpc.Do(req)
	if err != nil {
		return fmt.Errorf("send message: %w", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("send message: bridge returned %d: %s", resp.StatusCode, body)
	}

	// Raw driver result, for diagnostics only.
	slog.Debug("bridge send result", "conversation", conversation, "raw", string(body))
	return nil
}

// Ping checks bridge reachability. Used by the doctor command and at startup.
func (c *BridgeClient) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return fmt.Errorf("build ping request: %w", err)
	}
	resp, err := c.httpc.Do(req)
	if err != nil {
		return fmt.Errorf("ping bridge: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("ping bridge: status %d", resp.StatusCode)
	}
	return nil
}
