// Package paypal is a small client for the PayPal Orders v2 REST API.
package paypal

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"
)

const (
	defaultBaseURL  = "https://api-m.sandbox.paypal.com"
	tokenExpirySkew = 30 * time.Second

	responseBodyReadLimit int64 = 1024
)

// Order and capture statuses reported by PayPal.
const (
	StatusCreated     = "CREATED"
	StatusPayerAction = "PAYER_ACTION_REQUIRED"
	StatusApproved    = "APPROVED"
	StatusCompleted   = "COMPLETED"
	StatusDeclined    = "DECLINED"
	StatusVoided      = "VOIDED"

	IntentCapture = "CAPTURE"
)

var (
	errClientIDRequired     = errors.New("paypal client id is required")
	errClientSecretRequired = errors.New("paypal client secret is required")

	// ErrMalformedResponse marks a successful HTTP response whose body could
	// not be interpreted.
	ErrMalformedResponse = errors.New("malformed paypal response")

	// ErrAuthentication marks a failure to obtain an access token. No order
	// call was made.
	ErrAuthentication = errors.New("paypal authentication failed")
)

// Error reports a failed PayPal call. StatusCode is zero when the request
// never produced a response (network failure or deadline).
type Error struct {
	Op         string
	StatusCode int
	Body       string
	Err        error
}

func (e *Error) Error() string {
	switch {
	case e.StatusCode == 0 && e.Err != nil:
		return fmt.Sprintf("paypal %s: %v", e.Op, e.Err)
	case e.Err != nil && e.Body != "":
		return fmt.Sprintf("paypal %s: status %d: %v: %s", e.Op, e.StatusCode, e.Err, e.Body)
	case e.Err != nil:
		return fmt.Sprintf("paypal %s: status %d: %v", e.Op, e.StatusCode, e.Err)
	default:
		return fmt.Sprintf("paypal %s: status %d: %s", e.Op, e.StatusCode, e.Body)
	}
}

func (e *Error) Unwrap() error {
	return e.Err
}

// HTTPStatus returns the response status, or 0 for transport failures.
func (e *Error) HTTPStatus() int {
	return e.StatusCode
}

// Transient reports whether the failure is worth retrying.
func (e *Error) Transient() bool {
	return e.StatusCode == 0 || e.StatusCode >= http.StatusInternalServerError
}

// Client talks to the PayPal Orders v2 API using client-credential OAuth.
type Client struct {
	httpClient   *http.Client
	baseURL      string
	clientID     string
	clientSecret string
	now          func() time.Time

	mu          sync.Mutex
	token       string
	tokenExpiry time.Time
}

// Option configures optional client behavior.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithBaseURL overrides the API host (sandbox by default).
func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		trimmed := strings.TrimSpace(baseURL)
		if trimmed != "" {
			c.baseURL = strings.TrimRight(trimmed, "/")
		}
	}
}

// NewClient builds a PayPal client from REST app credentials.
func NewClient(clientID, clientSecret string, opts ...Option) (*Client, error) {
	id := strings.TrimSpace(clientID)
	if id == "" {
		return nil, errClientIDRequired
	}
	secret := strings.TrimSpace(clientSecret)
	if secret == "" {
		return nil, errClientSecretRequired
	}

	client := &Client{
		httpClient:   &http.Client{Timeout: 15 * time.Second},
		baseURL:      defaultBaseURL,
		clientID:     id,
		clientSecret: secret,
		now:          time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(client)
		}
	}
	return client, nil
}

// Amount mirrors PayPal's money object.
type Amount struct {
	CurrencyCode string `json:"currency_code"`
	Value        string `json:"value"`
}

// PurchaseUnit is the single unit sent per order.
type PurchaseUnit struct {
	ReferenceID string `json:"reference_id"`
	CustomID    string `json:"custom_id,omitempty"`
	Amount      Amount `json:"amount"`
}

// CreateOrderRequest is the body of POST /v2/checkout/orders.
type CreateOrderRequest struct {
	Intent        string         `json:"intent"`
	PurchaseUnits []PurchaseUnit `json:"purchase_units"`
}

// Order is the subset of the order resource returned on create.
type Order struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

// CaptureResult is the normalized capture response.
type CaptureResult struct {
	OrderID     string
	Status      string
	ReferenceID string
	CustomID    string
	CaptureID   string
	Amount      Amount
}

// CreateOrder opens a checkout order with intent CAPTURE.
func (c *Client) CreateOrder(ctx context.Context, req CreateOrderRequest) (*Order, error) {
	if req.Intent == "" {
		req.Intent = IntentCapture
	}
	token, err := c.accessToken(ctx)
	if err != nil {
		return nil, err
	}

	payload, err := json.Marshal(req)
	if err != nil {
		return nil, &Error{Op: "create order", Err: err}
	}

	resp, err := c.do(ctx, http.MethodPost, c.baseURL+"/v2/checkout/orders", token, bytes.NewReader(payload))
	if err != nil {
		return nil, &Error{Op: "create order", Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return nil, statusError("create order", resp)
	}

	var order Order
	if err := json.NewDecoder(resp.Body).Decode(&order); err != nil || order.ID == "" {
		return nil, &Error{Op: "create order", StatusCode: resp.StatusCode, Err: ErrMalformedResponse}
	}
	if order.Status == "" {
		order.Status = StatusCreated
	}
	return &order, nil
}

// CaptureOrder captures an approved checkout order.
func (c *Client) CaptureOrder(ctx context.Context, orderID string) (*CaptureResult, error) {
	trimmed := strings.TrimSpace(orderID)
	if trimmed == "" {
		return nil, &Error{Op: "capture order", StatusCode: http.StatusBadRequest, Err: errors.New("order id is required")}
	}
	token, err := c.accessToken(ctx)
	if err != nil {
		return nil, err
	}

	endpoint := fmt.Sprintf("%s/v2/checkout/orders/%s/capture", c.baseURL, url.PathEscape(trimmed))
	resp, err := c.do(ctx, http.MethodPost, endpoint, token, nil)
	if err != nil {
		return nil, &Error{Op: "capture order", Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return nil, statusError("capture order", resp)
	}

	var apiResp struct {
		ID            string `json:"id"`
		Status        string `json:"status"`
		PurchaseUnits []struct {
			ReferenceID string `json:"reference_id"`
			CustomID    string `json:"custom_id"`
			Payments    struct {
				Captures []struct {
					ID       string `json:"id"`
					Status   string `json:"status"`
					CustomID string `json:"custom_id"`
					Amount   Amount `json:"amount"`
				} `json:"captures"`
			} `json:"payments"`
		} `json:"purchase_units"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&apiResp); err != nil {
		return nil, &Error{Op: "capture order", StatusCode: resp.StatusCode, Err: ErrMalformedResponse}
	}

	result := &CaptureResult{OrderID: apiResp.ID, Status: apiResp.Status}
	if len(apiResp.PurchaseUnits) == 0 || len(apiResp.PurchaseUnits[0].Payments.Captures) == 0 {
		// A non-completed capture may legitimately omit the captures list.
		if result.Status == StatusCompleted {
			return nil, &Error{Op: "capture order", StatusCode: resp.StatusCode, Err: ErrMalformedResponse}
		}
		return result, nil
	}

	unit := apiResp.PurchaseUnits[0]
	capture := unit.Payments.Captures[0]
	result.ReferenceID = unit.ReferenceID
	result.CustomID = unit.CustomID
	if result.CustomID == "" {
		result.CustomID = capture.CustomID
	}
	result.CaptureID = capture.ID
	result.Amount = capture.Amount
	return result, nil
}

func (c *Client) accessToken(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.token != "" && c.now().Before(c.tokenExpiry) {
		return c.token, nil
	}

	form := url.Values{"grant_type": {"client_credentials"}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/oauth2/token", strings.NewReader(form.Encode()))
	if err != nil {
		return "", &Error{Op: "oauth token", Err: err}
	}
	req.SetBasicAuth(c.clientID, c.clientSecret)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", &Error{Op: "oauth token", Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		apiErr := statusError("oauth token", resp)
		if !apiErr.Transient() {
			apiErr.Err = ErrAuthentication
		}
		return "", apiErr
	}

	var body struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int    `json:"expires_in"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil || body.AccessToken == "" {
		return "", &Error{Op: "oauth token", StatusCode: resp.StatusCode, Err: fmt.Errorf("%w: %w", ErrAuthentication, ErrMalformedResponse)}
	}

	c.token = body.AccessToken
	c.tokenExpiry = c.now().Add(time.Duration(body.ExpiresIn)*time.Second - tokenExpirySkew)
	return c.token, nil
}

func (c *Client) do(ctx context.Context, method, endpoint, token string, body io.Reader) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	return c.httpClient.Do(req)
}

func statusError(op string, resp *http.Response) *Error {
	msg, _ := io.ReadAll(io.LimitReader(resp.Body, responseBodyReadLimit))
	return &Error{Op: op, StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(msg))}
}
