package exec

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/web3guy0/signalrouter/types"
)

// ═══════════════════════════════════════════════════════════════════════════════
// EXECUTION CLIENT
// ═══════════════════════════════════════════════════════════════════════════════
//
// Places maker/limit/market orders against the execution gateway's CLOB
// REST API. Authentication/signing lives in the gateway, not here.
//
// ═══════════════════════════════════════════════════════════════════════════════

// Backend places orders, one method per placement path
type Backend interface {
	MakerBuy(ctx context.Context, o OrderParams) (types.OrderResult, error)
	MakerSell(ctx context.Context, o OrderParams) (types.OrderResult, error)
	LimitBuy(ctx context.Context, o OrderParams) (types.OrderResult, error)
	LimitSell(ctx context.Context, o OrderParams) (types.OrderResult, error)
	MarketBuy(ctx context.Context, o OrderParams) (types.OrderResult, error)
	MarketSell(ctx context.Context, o OrderParams) (types.OrderResult, error)
}

// OrderParams carries everything a placement call needs
type OrderParams struct {
	Platform    string
	MarketID    string
	OutcomeID   string
	Price       decimal.Decimal
	Size        decimal.Decimal
	MaxSlippage decimal.Decimal // fraction, 0.02 = 2%
}

// Client is the HTTP implementation of Backend
type Client struct {
	baseURL    string
	apiKey     string
	passphrase string
	httpClient *http.Client
}

// NewClient creates a new execution client
func NewClient(baseURL, apiKey, passphrase string) *Client {
	client := &Client{
		baseURL:    baseURL,
		apiKey:     apiKey,
		passphrase: passphrase,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}

	log.Info().
		Str("url", baseURL).
		Msg("🚀 Execution client initialized")

	return client
}

func (c *Client) MakerBuy(ctx context.Context, o OrderParams) (types.OrderResult, error) {
	return c.placeOrder(ctx, o, "BUY", "GTC", true)
}

func (c *Client) MakerSell(ctx context.Context, o OrderParams) (types.OrderResult, error) {
	return c.placeOrder(ctx, o, "SELL", "GTC", true)
}

func (c *Client) LimitBuy(ctx context.Context, o OrderParams) (types.OrderResult, error) {
	return c.placeOrder(ctx, o, "BUY", "GTC", false)
}

func (c *Client) LimitSell(ctx context.Context, o OrderParams) (types.OrderResult, error) {
	return c.placeOrder(ctx, o, "SELL", "GTC", false)
}

func (c *Client) MarketBuy(ctx context.Context, o OrderParams) (types.OrderResult, error) {
	return c.placeOrder(ctx, o, "BUY", "FOK", false)
}

func (c *Client) MarketSell(ctx context.Context, o OrderParams) (types.OrderResult, error) {
	return c.placeOrder(ctx, o, "SELL", "FOK", false)
}

// placeOrder builds and posts one order to the gateway
func (c *Client) placeOrder(ctx context.Context, o OrderParams, side, orderType string, postOnly bool) (types.OrderResult, error) {
	order := map[string]interface{}{
		"platform":     o.Platform,
		"market":       o.MarketID,
		"outcome":      o.OutcomeID,
		"price":        o.Price.String(),
		"size":         o.Size.String(),
		"side":         side,
		"orderType":    orderType,
		"postOnly":     postOnly,
		"maxSlippage":  o.MaxSlippage.String(),
		"nonce":        time.Now().UnixNano(),
	}

	resp, err := c.post(ctx, "/order", order)
	if err != nil {
		return types.OrderResult{}, err
	}

	var result struct {
		OrderID string `json:"orderID"`
		Status  string `json:"status"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal(resp, &result); err != nil {
		return types.OrderResult{}, fmt.Errorf("parse response: %w", err)
	}

	if result.Error != "" {
		return types.OrderResult{}, fmt.Errorf("API error: %s", result.Error)
	}

	log.Info().
		Str("order_id", result.OrderID).
		Str("side", side).
		Str("type", orderType).
		Bool("post_only", postOnly).
		Str("status", result.Status).
		Msg("✅ Order placed")

	return types.OrderResult{OrderID: result.OrderID, Status: result.Status}, nil
}

// CancelOrder cancels an existing order
func (c *Client) CancelOrder(ctx context.Context, orderID string) error {
	_, err := c.delete(ctx, "/order/"+orderID)
	return err
}

// GetBalance returns the current collateral balance
func (c *Client) GetBalance(ctx context.Context) (decimal.Decimal, error) {
	resp, err := c.get(ctx, "/balance")
	if err != nil {
		return decimal.Zero, err
	}

	var result struct {
		Balance string `json:"balance"`
	}
	if err := json.Unmarshal(resp, &result); err != nil {
		return decimal.Zero, err
	}

	balance, err := decimal.NewFromString(result.Balance)
	if err != nil {
		return decimal.Zero, fmt.Errorf("parse balance: %w", err)
	}
	return balance, nil
}

// ═══════════════════════════════════════════════════════════════════════════════
// HTTP HELPERS
// ═══════════════════════════════════════════════════════════════════════════════

func (c *Client) get(ctx context.Context, path string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", c.baseURL+path, nil)
	if err != nil {
		return nil, err
	}
	c.addHeaders(req)
	return c.doRequest(req)
}

func (c *Client) post(ctx context.Context, path string, body interface{}) ([]byte, error) {
	jsonBody, _ := json.Marshal(body)
	req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+path, bytes.NewBuffer(jsonBody))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	c.addHeaders(req)
	return c.doRequest(req)
}

func (c *Client) delete(ctx context.Context, path string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, "DELETE", c.baseURL+path, nil)
	if err != nil {
		return nil, err
	}
	c.addHeaders(req)
	return c.doRequest(req)
}

func (c *Client) addHeaders(req *http.Request) {
	req.Header.Set("X-API-KEY", c.apiKey)
	req.Header.Set("X-TIMESTAMP", fmt.Sprintf("%d", time.Now().Unix()))
	if c.passphrase != "" {
		req.Header.Set("X-PASSPHRASE", c.passphrase)
	}
}

func (c *Client) doRequest(req *http.Request) ([]byte, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("HTTP %d: %s", resp.StatusCode, string(body))
	}

	return body, nil
}
