// Package billing wraps the payment processor's session-creation API.
//
// Only two calls are needed: create a checkout session for the paid plan and
// create a billing-portal session for an existing customer. Both return a
// redirect URL; everything else (payment state, invoicing, webhooks) stays
// on the processor's side. The API speaks form-encoded POSTs authenticated
// with a bearer secret key, so a thin net/http client suffices.
package billing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/tbourn/go-docchat-backend/internal/config"
)

// SessionCreator is the contract consumed by the billing service.
type SessionCreator interface {
	// CreateCheckoutSession starts a subscription checkout for priceID and
	// returns the hosted page URL.
	CreateCheckoutSession(ctx context.Context, p CheckoutParams) (string, error)
	// CreateBillingPortalSession opens the self-serve portal for customerID
	// and returns its URL.
	CreateBillingPortalSession(ctx context.Context, customerID, returnURL string) (string, error)
}

// CheckoutParams carries the inputs for a new subscription checkout.
type CheckoutParams struct {
	PriceID    string
	SuccessURL string
	CancelURL  string
	UserID     string // recorded as session metadata for webhook correlation
}

// Client is a minimal Stripe API client covering session creation.
type Client struct {
	apiBase    string
	secretKey  string
	httpClient *http.Client
}

// NewClient builds a Client from configuration.
func NewClient(cfg config.BillingConfig) *Client {
	return &Client{
		apiBase:    strings.TrimRight(strings.TrimSpace(cfg.APIBase), "/"),
		secretKey:  strings.TrimSpace(cfg.SecretKey),
		httpClient: &http.Client{Timeout: 15 * time.Second},
	}
}

type session struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

type stripeError struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

// CreateCheckoutSession implements SessionCreator.
func (c *Client) CreateCheckoutSession(ctx context.Context, p CheckoutParams) (string, error) {
	if p.PriceID == "" {
		return "", errors.New("billing: price id is required")
	}
	form := url.Values{}
	form.Set("mode", "subscription")
	form.Set("success_url", p.SuccessURL)
	form.Set("cancel_url", p.CancelURL)
	form.Set("billing_address_collection", "auto")
	form.Set("payment_method_types[0]", "card")
	form.Set("payment_method_types[1]", "paypal")
	form.Set("line_items[0][price]", p.PriceID)
	form.Set("line_items[0][quantity]", "1")
	if p.UserID != "" {
		form.Set("metadata[userId]", p.UserID)
	}

	var s session
	if err := c.post(ctx, "/v1/checkout/sessions", form, &s); err != nil {
		return "", err
	}
	if s.URL == "" {
		return "", errors.New("billing: checkout session has no url")
	}
	return s.URL, nil
}

// CreateBillingPortalSession implements SessionCreator.
func (c *Client) CreateBillingPortalSession(ctx context.Context, customerID, returnURL string) (string, error) {
	if customerID == "" {
		return "", errors.New("billing: customer id is required")
	}
	form := url.Values{}
	form.Set("customer", customerID)
	form.Set("return_url", returnURL)

	var s session
	if err := c.post(ctx, "/v1/billing_portal/sessions", form, &s); err != nil {
		return "", err
	}
	if s.URL == "" {
		return "", errors.New("billing: portal session has no url")
	}
	return s.URL, nil
}

// post sends a form-encoded request and decodes the JSON response into out.
func (c *Client) post(ctx context.Context, path string, form url.Values, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiBase+path, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("billing: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Authorization", "Bearer "+c.secretKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("billing: request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("billing: read response: %w", err)
	}
	if resp.StatusCode >= 400 {
		var apiErr stripeError
		_ = json.Unmarshal(body, &apiErr)
		if apiErr.Error.Message != "" {
			return fmt.Errorf("billing: api error: %s", apiErr.Error.Message)
		}
		return fmt.Errorf("billing: api returned %s", resp.Status)
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("billing: decode response: %w", err)
	}
	return nil
}
