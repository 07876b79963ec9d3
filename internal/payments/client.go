package payments

import (
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

	"go.uber.org/zap"
)

// Typed failures the state machine cares about. Everything else surfaces as a
// generic gateway error and aborts the transition.
var (
	// ErrAlreadyRefunded means the processor reports the charge as refunded
	// already. Callers treat this as success.
	ErrAlreadyRefunded = errors.New("charge already refunded")

	// ErrDestinationNotOnboarded means the payee has no connected payout
	// account, so a transfer cannot be created until onboarding completes.
	ErrDestinationNotOnboarded = errors.New("payout destination not onboarded")

	// ErrGatewayFailure covers processor outages and unclassified API errors.
	ErrGatewayFailure = errors.New("payment processor error")
)

// Client is a thin typed wrapper around the payment processor's REST API.
// It holds no local state and never retries: retry policy belongs to callers,
// which must stay idempotency-aware.
type Client struct {
	baseURL    string
	secretKey  string
	httpClient *http.Client
	log        *zap.Logger
}

func NewClient(baseURL, secretKey string, log *zap.Logger) *Client {
	return &Client{
		baseURL:   strings.TrimRight(baseURL, "/"),
		secretKey: secretKey,
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
		log: log,
	}
}

// Checkout is a hosted-payment session created for an evaluation request.
type Checkout struct {
	Reference string `json:"id"`
	URL       string `json:"url"`
}

type CheckoutParams struct {
	AmountCents int64
	SuccessURL  string
	CancelURL   string
	Metadata    map[string]string
}

// CreateCheckout opens a hosted checkout for the given amount. Metadata must
// carry the evaluation id so webhook events can be mapped back to the row.
func (c *Client) CreateCheckout(ctx context.Context, p CheckoutParams) (*Checkout, error) {
	form := url.Values{}
	form.Set("amount", strconv.FormatInt(p.AmountCents, 10))
	form.Set("currency", "usd")
	form.Set("success_url", p.SuccessURL)
	form.Set("cancel_url", p.CancelURL)
	for k, v := range p.Metadata {
		form.Set("metadata["+k+"]", v)
	}

	var out Checkout
	if err := c.post(ctx, "/v1/checkout/sessions", form, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Refund asks the processor to return a captured charge. Returns the refund
// reference, or ErrAlreadyRefunded when the processor has already done it.
func (c *Client) Refund(ctx context.Context, paymentRef, reason string) (string, error) {
	form := url.Values{}
	form.Set("payment_intent", paymentRef)
	form.Set("reason", reason)

	var out struct {
		ID string `json:"id"`
	}
	if err := c.post(ctx, "/v1/refunds", form, &out); err != nil {
		return "", err
	}
	return out.ID, nil
}

// Transfer moves funds from the platform balance to a connected payout
// account. Returns the transfer reference.
func (c *Client) Transfer(ctx context.Context, amountCents int64, destination string, metadata map[string]string) (string, error) {
	form := url.Values{}
	form.Set("amount", strconv.FormatInt(amountCents, 10))
	form.Set("currency", "usd")
	form.Set("destination", destination)
	for k, v := range metadata {
		form.Set("metadata["+k+"]", v)
	}

	var out struct {
		ID string `json:"id"`
	}
	if err := c.post(ctx, "/v1/transfers", form, &out); err != nil {
		return "", err
	}
	return out.ID, nil
}

type apiError struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func (c *Client) post(ctx context.Context, path string, form url.Values, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.secretKey)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrGatewayFailure, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%w: read response: %v", ErrGatewayFailure, err)
	}

	if resp.StatusCode >= 400 {
		var apiErr apiError
		if jsonErr := json.Unmarshal(body, &apiErr); jsonErr == nil {
			switch apiErr.Error.Code {
			case "charge_already_refunded":
				return ErrAlreadyRefunded
			case "account_not_onboarded", "no_external_account":
				return ErrDestinationNotOnboarded
			}
			if apiErr.Error.Message != "" {
				return fmt.Errorf("%w: status %d: %s", ErrGatewayFailure, resp.StatusCode, apiErr.Error.Message)
			}
		}
		return fmt.Errorf("%w: status %d: %s", ErrGatewayFailure, resp.StatusCode, string(body))
	}

	if out != nil {
		if err := json.Unmarshal(body, out); err != nil {
			return fmt.Errorf("decode processor response: %w", err)
		}
	}
	return nil
}
