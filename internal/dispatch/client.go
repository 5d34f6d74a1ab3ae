package dispatch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"server/internal/callback"
)

const (
	headerTimestamp = "X-Callback-Timestamp"
	headerSignature = "X-Callback-Signature"
)

// PreviewPayload is the body of a preview callback.
type PreviewPayload struct {
	PreviewURL string `json:"preview_url"`
}

// CompletePayload is the body of a complete callback.
type CompletePayload struct {
	FinalURLs  []string `json:"final_urls"`
	ActualCost int      `json:"actual_cost"`
	Provider   string   `json:"provider"`
	SizeBytes  int64    `json:"size_bytes"`
}

// FailPayload is the body of a fail callback.
type FailPayload struct {
	Message string `json:"message"`
}

// CallbackClient posts signed transition callbacks to the API. Each request
// carries the timestamp and HMAC signature headers the authenticator verifies.
type CallbackClient struct {
	baseURL string
	secret  string
	client  *http.Client
	now     func() time.Time
}

func NewCallbackClient(baseURL, secret string) *CallbackClient {
	return &CallbackClient{
		baseURL: baseURL,
		secret:  secret,
		client:  &http.Client{Timeout: 30 * time.Second},
		now:     time.Now,
	}
}

func (c *CallbackClient) Preview(ctx context.Context, jobID string, p PreviewPayload) error {
	return c.post(ctx, jobID, "preview", p)
}

func (c *CallbackClient) Complete(ctx context.Context, jobID string, p CompletePayload) error {
	return c.post(ctx, jobID, "complete", p)
}

func (c *CallbackClient) Fail(ctx context.Context, jobID string, p FailPayload) error {
	return c.post(ctx, jobID, "fail", p)
}

func (c *CallbackClient) post(ctx context.Context, jobID, phase string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("callback %s: encode payload: %w", phase, err)
	}
	url := fmt.Sprintf("%s/v1/internal/callbacks/%s/%s", c.baseURL, jobID, phase)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("callback %s: build request: %w", phase, err)
	}
	ts := c.now().Unix()
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(headerTimestamp, fmt.Sprintf("%d", ts))
	req.Header.Set(headerSignature, callback.Sign(c.secret, jobID, ts, body))

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("callback %s: %w", phase, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("callback %s: unexpected status %d: %s", phase, resp.StatusCode, snippet)
	}
	return nil
}
