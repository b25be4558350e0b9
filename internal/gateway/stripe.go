package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// StripeClient talks to the Stripe REST API directly (no SDK dependency).
type StripeClient struct {
	secretKey  string
	httpClient *http.Client
	baseURL    string
}

var _ PaymentGateway = (*StripeClient)(nil)

// StripeConfig configures the client.
type StripeConfig struct {
	SecretKey string
	BaseURL   string
	Timeout   time.Duration
}

// NewStripeClient creates a Stripe API client. The timeout bounds every call
// so a stuck gateway never holds a request open indefinitely.
func NewStripeClient(cfg StripeConfig) *StripeClient {
	baseURL := strings.TrimSuffix(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://api.stripe.com/v1"
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	return &StripeClient{
		secretKey:  cfg.SecretKey,
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    baseURL,
	}
}

// CreateIntent opens a payment intent for the given amount.
func (c *StripeClient) CreateIntent(ctx context.Context, req CreateIntentRequest) (Intent, error) {
	data := url.Values{}
	data.Set("amount", strconv.FormatInt(req.AmountMinorUnits, 10))
	data.Set("currency", req.Currency)
	data.Set("automatic_payment_methods[enabled]", "true")
	if req.ReceiptEmail != "" {
		data.Set("receipt_email", req.ReceiptEmail)
	}
	for k, v := range req.Metadata {
		data.Set(fmt.Sprintf("metadata[%s]", k), v)
	}

	resp, err := c.post(ctx, "/payment_intents", data)
	if err != nil {
		return Intent{}, err
	}
	intent := intentFromResponse(resp)
	if intent.ID == "" {
		return Intent{}, fmt.Errorf("create payment intent: missing id in response")
	}
	return intent, nil
}

// GetIntent retrieves the current state of an intent.
func (c *StripeClient) GetIntent(ctx context.Context, intentID string) (Intent, error) {
	resp, err := c.get(ctx, "/payment_intents/"+url.PathEscape(intentID))
	if err != nil {
		return Intent{}, err
	}
	intent := intentFromResponse(resp)
	if intent.ID == "" {
		return Intent{}, fmt.Errorf("retrieve payment intent %s: missing id in response", intentID)
	}
	return intent, nil
}

func intentFromResponse(resp map[string]interface{}) Intent {
	intent := Intent{}
	intent.ID, _ = resp["id"].(string)
	intent.ClientSecret, _ = resp["client_secret"].(string)
	intent.Status, _ = resp["status"].(string)
	intent.Currency, _ = resp["currency"].(string)
	if amount, ok := resp["amount"].(float64); ok {
		intent.AmountMinorUnits = int64(amount)
	}
	if meta, ok := resp["metadata"].(map[string]interface{}); ok {
		intent.Metadata = make(map[string]string, len(meta))
		for k, v := range meta {
			if s, ok := v.(string); ok {
				intent.Metadata[k] = s
			}
		}
	}
	return intent
}

// HTTP helpers

func (c *StripeClient) post(ctx context.Context, path string, data url.Values) (map[string]interface{}, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, strings.NewReader(data.Encode()))
	if err != nil {
		return nil, err
	}
	req.SetBasicAuth(c.secretKey, "")
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return c.doRequest(req)
}

func (c *StripeClient) get(ctx context.Context, path string) (map[string]interface{}, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, err
	}
	req.SetBasicAuth(c.secretKey, "")
	return c.doRequest(req)
}

func (c *StripeClient) doRequest(req *http.Request) (map[string]interface{}, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: read response: %v", ErrUnavailable, err)
	}

	if resp.StatusCode >= 500 {
		return nil, fmt.Errorf("%w: gateway returned %d", ErrUnavailable, resp.StatusCode)
	}

	var result map[string]interface{}
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("parse gateway response: %w", err)
	}

	if resp.StatusCode >= 400 {
		msg := "unknown error"
		if errObj, ok := result["error"].(map[string]interface{}); ok {
			if m, ok := errObj["message"].(string); ok {
				msg = m
			}
		}
		return nil, fmt.Errorf("gateway error (%d): %s", resp.StatusCode, msg)
	}

	return result, nil
}
