package bridge

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/tidwall/gjson"
)

// Client talks to the brokerage bridge over its REST API. Payload parsing
// is deliberately tolerant: bridges from different brokers disagree on
// casing and optional fields, so fields are extracted by path instead of
// strict struct decoding.
type Client struct {
	http *resty.Client
}

type Config struct {
	BaseURL  string
	APIToken string
	Timeout  time.Duration
}

func NewClient(cfg Config) (*Client, error) {
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if base == "" {
		return nil, fmt.Errorf("bridge base url is required")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	http := resty.New().
		SetBaseURL(base).
		SetTimeout(timeout).
		SetHeader("Accept", "application/json")
	if token := strings.TrimSpace(cfg.APIToken); token != "" {
		http.SetAuthToken(token)
	}
	return &Client{http: http}, nil
}

func (c *Client) GetAccount(ctx context.Context) (Account, error) {
	body, err := c.get(ctx, "/api/v1/account")
	if err != nil {
		return Account{}, err
	}
	root := gjson.ParseBytes(body)
	return Account{
		Balance:       root.Get("balance").Float(),
		Equity:        root.Get("equity").Float(),
		BuyingPower:   root.Get("buying_power").Float(),
		UnrealizedPnL: root.Get("unrealized_pnl").Float(),
		DailyPnL:      root.Get("daily_pnl").Float(),
		OpenRiskPct:   root.Get("open_risk_pct").Float(),
	}, nil
}

func (c *Client) GetPositions(ctx context.Context) ([]Position, error) {
	body, err := c.get(ctx, "/api/v1/positions")
	if err != nil {
		return nil, err
	}
	items := gjson.ParseBytes(body).Get("positions")
	if !items.Exists() {
		items = gjson.ParseBytes(body)
	}
	out := make([]Position, 0)
	items.ForEach(func(_, item gjson.Result) bool {
		sym := strings.ToUpper(item.Get("symbol").String())
		if sym == "" {
			return true
		}
		out = append(out, Position{
			Symbol:        sym,
			Quantity:      item.Get("quantity").Float(),
			AvgPrice:      item.Get("avg_price").Float(),
			MarketPrice:   item.Get("market_price").Float(),
			UnrealizedPnL: item.Get("unrealized_pnl").Float(),
			Exposure:      item.Get("exposure").Float(),
		})
		return true
	})
	return out, nil
}

func (c *Client) GetOrders(ctx context.Context) ([]Order, error) {
	body, err := c.get(ctx, "/api/v1/orders")
	if err != nil {
		return nil, err
	}
	items := gjson.ParseBytes(body).Get("orders")
	if !items.Exists() {
		items = gjson.ParseBytes(body)
	}
	out := make([]Order, 0)
	items.ForEach(func(_, item gjson.Result) bool {
		out = append(out, Order{
			ID:       item.Get("id").String(),
			Symbol:   strings.ToUpper(item.Get("symbol").String()),
			Side:     strings.ToLower(item.Get("side").String()),
			Quantity: item.Get("quantity").Float(),
			Price:    item.Get("price").Float(),
			Status:   strings.ToLower(item.Get("status").String()),
		})
		return true
	})
	return out, nil
}

// GetHealth never returns an error: an unreachable bridge reports as
// disconnected.
func (c *Client) GetHealth(ctx context.Context) Health {
	body, err := c.get(ctx, "/api/v1/health")
	if err != nil {
		return Health{}
	}
	root := gjson.ParseBytes(body)
	return Health{
		Connected:     root.Get("connected").Bool(),
		Authenticated: root.Get("authenticated").Bool(),
	}
}

func (c *Client) get(ctx context.Context, path string) ([]byte, error) {
	resp, err := c.http.R().SetContext(ctx).Get(path)
	if err != nil {
		return nil, fmt.Errorf("bridge %s: %w", path, err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("bridge %s: status %d", path, resp.StatusCode())
	}
	return resp.Body(), nil
}
