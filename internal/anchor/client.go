package anchor

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/Veraticus/offramp/internal/common"
	"github.com/Veraticus/offramp/internal/model"
	"github.com/google/uuid"
	"golang.org/x/oauth2"
)

const (
	defaultTimeout = 30 * time.Second
	maxErrorBody   = 4096
)

// Config holds the HTTP client settings.
type Config struct {
	// Base is the transport under the bearer-token layer. Nil means http.DefaultTransport.
	Base        http.RoundTripper
	BaseURL     string
	AccessToken string
	PublicKey   string
	Timeout     time.Duration
	Retry       common.RetryOptions
}

// Client implements Gateway and BalanceFetcher over the backend's HTTP API.
type Client struct {
	httpClient *http.Client
	baseURL    *url.URL
	publicKey  string
	retry      common.RetryOptions
}

// Wire types.
type withdrawRequest struct {
	AssetCode string `json:"asset_code"`
}

type withdrawResponse struct {
	ID   string `json:"id"`
	URL  string `json:"url"`
	Type string `json:"type"`
}

type transactionRecord struct {
	ID        string `json:"id"`
	Status    string `json:"status"`
	AmountIn  string `json:"amount_in"`
	AmountFee string `json:"amount_fee"`
	AmountOut string `json:"amount_out"`
	Message   string `json:"message"`
}

type transactionEnvelope struct {
	Transaction *transactionRecord `json:"transaction"`
	transactionRecord
}

type confirmRequest struct {
	TransactionID string `json:"transactionId"`
	AssetCode     string `json:"assetCode"`
}

type balanceLine struct {
	AssetCode   string `json:"asset_code"`
	AssetIssuer string `json:"asset_issuer"`
	Balance     string `json:"balance"`
}

type balancesResponse struct {
	Balances []balanceLine `json:"balances"`
}

type errorEnvelope struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// NewClient creates a backend client. Requests carry the access token as a
// bearer token and the account's public key in X-Public-Key.
func NewClient(cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		return nil, fmt.Errorf("%w: anchor base URL", common.ErrMissingConfig)
	}
	base, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("%w: anchor base URL: %w", common.ErrInvalidConfig, err)
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	transport := cfg.Base
	if transport == nil {
		transport = http.DefaultTransport
	}
	if cfg.AccessToken != "" {
		transport = &oauth2.Transport{
			Source: oauth2.StaticTokenSource(&oauth2.Token{
				AccessToken: cfg.AccessToken,
				TokenType:   "Bearer",
			}),
			Base: transport,
		}
	}

	return &Client{
		httpClient: &http.Client{
			Transport: transport,
			Timeout:   timeout,
		},
		baseURL:   base,
		publicKey: cfg.PublicKey,
		retry:     cfg.Retry,
	}, nil
}

// OpenInteractive implements Gateway.
func (c *Client) OpenInteractive(ctx context.Context, assetCode string) (Interactive, error) {
	var out withdrawResponse
	if err := c.do(ctx, http.MethodPost, "/anchor/withdraw", nil, withdrawRequest{AssetCode: assetCode}, &out); err != nil {
		return Interactive{}, fmt.Errorf("%w: %w", common.ErrAnchorConnectFailed, err)
	}
	if out.ID == "" || out.URL == "" {
		return Interactive{}, fmt.Errorf("%w: response is missing id or url", common.ErrAnchorConnectFailed)
	}

	slog.Debug("Opened interactive withdrawal",
		"asset_code", assetCode,
		"transaction_id", out.ID,
		"type", out.Type)

	return Interactive{ID: out.ID, URL: out.URL, Type: out.Type}, nil
}

// GetStatus implements Gateway.
func (c *Client) GetStatus(ctx context.Context, transactionID, assetCode string) (model.TransactionDetail, error) {
	query := url.Values{}
	query.Set("id", transactionID)
	query.Set("assetCode", assetCode)

	var env transactionEnvelope
	if err := c.do(ctx, http.MethodGet, "/anchor/transaction", query, nil, &env); err != nil {
		return model.TransactionDetail{}, fmt.Errorf("%w: %w", common.ErrPollFailed, err)
	}

	record := env.transactionRecord
	if env.Transaction != nil {
		record = *env.Transaction
	}
	if record.Status == "" {
		return model.TransactionDetail{}, fmt.Errorf("%w: transaction %s has no status", common.ErrPollFailed, transactionID)
	}

	detail, err := record.toDetail()
	if err != nil {
		return model.TransactionDetail{}, fmt.Errorf("%w: %w", common.ErrPollFailed, err)
	}
	return detail, nil
}

// ConfirmWithdraw implements Gateway.
func (c *Client) ConfirmWithdraw(ctx context.Context, transactionID, assetCode string) error {
	body := confirmRequest{TransactionID: transactionID, AssetCode: assetCode}
	if err := c.do(ctx, http.MethodPost, "/anchor/withdraw-confirm", nil, body, nil); err != nil {
		return fmt.Errorf("%w: %w", common.ErrUnknownConfirm, err)
	}
	return nil
}

// Balances implements BalanceFetcher. Transient failures are retried.
func (c *Client) Balances(ctx context.Context) ([]model.Asset, error) {
	var out balancesResponse
	err := common.WithRetry(ctx, func() error {
		return c.do(ctx, http.MethodGet, "/account/balances", nil, nil, &out)
	}, c.retry)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch balances: %w", err)
	}

	assets := make([]model.Asset, 0, len(out.Balances))
	for _, line := range out.Balances {
		balance, err := model.ParseAmount(line.Balance)
		if err != nil {
			return nil, fmt.Errorf("balance for %s: %w", line.AssetCode, err)
		}
		assets = append(assets, model.Asset{
			Code:    line.AssetCode,
			Issuer:  line.AssetIssuer,
			Balance: balance,
		})
	}
	return assets, nil
}

func (r transactionRecord) toDetail() (model.TransactionDetail, error) {
	in, err := model.ParseAmount(r.AmountIn)
	if err != nil {
		return model.TransactionDetail{}, fmt.Errorf("amount_in: %w", err)
	}
	fee, err := model.ParseAmount(r.AmountFee)
	if err != nil {
		return model.TransactionDetail{}, fmt.Errorf("amount_fee: %w", err)
	}
	out, err := model.ParseAmount(r.AmountOut)
	if err != nil {
		return model.TransactionDetail{}, fmt.Errorf("amount_out: %w", err)
	}
	return model.TransactionDetail{
		Status:    model.TransactionStatus(r.Status),
		Message:   r.Message,
		AmountIn:  in,
		AmountFee: fee,
		AmountOut: out,
	}, nil
}

// do sends one JSON request. Server errors and transport failures are
// marked retryable; 4xx answers are not.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, in, out any) error {
	u := *c.baseURL
	u.Path = strings.TrimRight(u.Path, "/") + path
	if query != nil {
		u.RawQuery = query.Encode()
	}

	var body io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.publicKey != "" {
		req.Header.Set("X-Public-Key", c.publicKey)
	}
	requestID := uuid.NewString()
	req.Header.Set("X-Request-ID", requestID)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &common.RetryableError{Err: fmt.Errorf("%s %s: %w", method, path, err), Retryable: true}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := decodeError(resp)
		slog.Debug("Anchor API error",
			"method", method,
			"path", path,
			"status", resp.StatusCode,
			"request_id", requestID)
		retry := &common.RetryableError{
			Err:        apiErr,
			Retryable:  resp.StatusCode >= 500,
			RetryAfter: retryAfter(resp.Header.Get("Retry-After"), time.Now()),
		}
		if resp.StatusCode == http.StatusTooManyRequests {
			retry.Err = fmt.Errorf("%w: %w", common.ErrRateLimit, apiErr)
			retry.Retryable = true
		}
		return retry
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// retryAfter reads a Retry-After value given in seconds or as an HTTP date.
func retryAfter(value string, now time.Time) time.Duration {
	if value == "" {
		return 0
	}
	if secs, err := strconv.Atoi(value); err == nil {
		return max(time.Duration(secs)*time.Second, 0)
	}
	if at, err := http.ParseTime(value); err == nil {
		return max(at.Sub(now), 0)
	}
	return 0
}

func decodeError(resp *http.Response) *Error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	apiErr := &Error{StatusCode: resp.StatusCode}

	var env errorEnvelope
	if err := json.Unmarshal(raw, &env); err == nil {
		apiErr.Message = env.Error
		if apiErr.Message == "" {
			apiErr.Message = env.Message
		}
		return apiErr
	}

	apiErr.Message = strings.TrimSpace(string(raw))
	return apiErr
}

// APIMessage extracts the backend's message from err, if any.
func APIMessage(err error) string {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.Message
	}
	return ""
}

var (
	_ Gateway        = (*Client)(nil)
	_ BalanceFetcher = (*Client)(nil)
)
