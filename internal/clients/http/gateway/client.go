package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/Apurer/course-marketplace-api/internal/platform/signature"
)

var (
	// ErrUnavailable covers network failures, timeouts and 5xx answers; callers may retry.
	ErrUnavailable = errors.New("payment provider unavailable")
	// ErrRejected covers 4xx answers and non-success envelope codes.
	ErrRejected = errors.New("payment provider rejected request")
	// ErrOrderNotFound means the provider no longer knows the order code.
	ErrOrderNotFound = errors.New("payment provider does not know the order")
)

const defaultTimeout = 10 * time.Second

// Config carries the merchant credentials.
type Config struct {
	BaseURL     string
	ClientID    string
	APIKey      string
	ChecksumKey string
	ReturnURL   string
	CancelURL   string
	// Timeout bounds every call; zero means 10s.
	Timeout    time.Duration
	HTTPClient *http.Client
}

// Client calls the payment provider's REST API. It never retries.
type Client struct {
	baseURL   string
	clientID  string
	apiKey    string
	returnURL string
	cancelURL string
	timeout   time.Duration
	signer    *signature.HMAC
	http      *http.Client
}

// NewClient validates cfg and instruments the transport with OpenTelemetry.
func NewClient(cfg Config) (*Client, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		return nil, errors.New("payment gateway base URL is required")
	}
	if strings.TrimSpace(cfg.ChecksumKey) == "" {
		return nil, errors.New("payment gateway checksum key is required")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)}
	}
	return &Client{
		baseURL:   baseURL,
		clientID:  cfg.ClientID,
		apiKey:    cfg.APIKey,
		returnURL: cfg.ReturnURL,
		cancelURL: cfg.CancelURL,
		timeout:   timeout,
		signer:    signature.New(cfg.ChecksumKey),
		http:      httpClient,
	}, nil
}

// CreatePaymentLink opens a checkout for the order.
func (c *Client) CreatePaymentLink(ctx context.Context, req CreatePaymentRequest) (*PaymentLink, error) {
	if c == nil {
		return nil, errors.New("payment gateway client not configured")
	}
	if req.ReturnURL == "" {
		req.ReturnURL = c.returnURL
	}
	if req.CancelURL == "" {
		req.CancelURL = c.cancelURL
	}
	req.Signature = c.signer.SignFields(map[string]string{
		"amount":      strconv.FormatInt(req.Amount, 10),
		"cancelUrl":   req.CancelURL,
		"description": req.Description,
		"orderCode":   strconv.FormatInt(req.OrderCode, 10),
		"returnUrl":   req.ReturnURL,
	})
	var link PaymentLink
	if err := c.do(ctx, http.MethodPost, "/v2/payment-requests", req, &link); err != nil {
		return nil, err
	}
	return &link, nil
}

// GetPaymentInfo returns the provider's state for orderCode.
func (c *Client) GetPaymentInfo(ctx context.Context, orderCode int64) (*PaymentInfo, error) {
	if c == nil {
		return nil, errors.New("payment gateway client not configured")
	}
	var info PaymentInfo
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/v2/payment-requests/%d", orderCode), nil, &info); err != nil {
		return nil, err
	}
	return &info, nil
}

// CancelPaymentLink closes the checkout for orderCode.
func (c *Client) CancelPaymentLink(ctx context.Context, orderCode int64, reason string) (*PaymentInfo, error) {
	if c == nil {
		return nil, errors.New("payment gateway client not configured")
	}
	var info PaymentInfo
	path := fmt.Sprintf("/v2/payment-requests/%d/cancel", orderCode)
	if err := c.do(ctx, http.MethodPost, path, cancelRequest{CancellationReason: reason}, &info); err != nil {
		return nil, err
	}
	return &info, nil
}

func (c *Client) do(ctx context.Context, method, path string, body any, out any) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode payment gateway request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build payment gateway request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("x-client-id", c.clientID)
	req.Header.Set("x-api-key", c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("%w: read body: %w", ErrUnavailable, err)
	}
	switch {
	case resp.StatusCode >= http.StatusInternalServerError || resp.StatusCode == http.StatusTooManyRequests:
		return fmt.Errorf("%w: %s", ErrUnavailable, resp.Status)
	case resp.StatusCode == http.StatusNotFound:
		return ErrOrderNotFound
	case resp.StatusCode >= http.StatusBadRequest:
		return fmt.Errorf("%w: %s", ErrRejected, resp.Status)
	}

	env := envelope[json.RawMessage]{}
	if err := json.Unmarshal(raw, &env); err != nil {
		return fmt.Errorf("%w: decode envelope: %w", ErrUnavailable, err)
	}
	switch env.Code {
	case CodeSuccess:
	case CodeOrderNotFound:
		return ErrOrderNotFound
	default:
		return fmt.Errorf("%w: code %s: %s", ErrRejected, env.Code, env.Desc)
	}
	if env.Data == nil || out == nil {
		return nil
	}
	if err := json.Unmarshal(*env.Data, out); err != nil {
		return fmt.Errorf("%w: decode data: %w", ErrUnavailable, err)
	}
	return nil
}
