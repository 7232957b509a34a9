package custodian

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// ValidateParams asks the custodian to place a hold on a disputed service
// and assemble a jury. The field names match the outbox payload written at
// dispute creation.
type ValidateParams struct {
	DisputeID     int64    `json:"dispute_id"`
	Applicant     string   `json:"applicant"`
	Accused       string   `json:"accused"`
	ServiceRef    string   `json:"service_ref"`
	JudgeQuota    int      `json:"judge_quota"`
	Exclude       []string `json:"exclude"`
	CallbackToken string   `json:"callback_token"`
}

// ReleaseParams asks the custodian to release the escrowed service to the
// dispute winner.
type ReleaseParams struct {
	DisputeID     int64  `json:"dispute_id"`
	ServiceRef    string `json:"service_ref"`
	Winner        string `json:"winner"`
	CallbackToken string `json:"callback_token"`
}

// Client talks to the external custodian service over HTTP.
type Client struct {
	baseURL string
	http    *http.Client
}

func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 10 * time.Second},
	}
}

func (c *Client) ValidateDispute(ctx context.Context, params ValidateParams) error {
	return c.post(ctx, "/disputes/validate", params)
}

func (c *Client) ReleaseService(ctx context.Context, params ReleaseParams) error {
	return c.post(ctx, "/services/release", params)
}

func (c *Client) post(ctx context.Context, path string, body any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("custodian: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("custodian: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("custodian: post %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("custodian: post %s: status %d", path, resp.StatusCode)
	}
	return nil
}
