package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"cartsync/internal/domain/model"
	"cartsync/internal/gateway"
)

const (
	apiPrefix = "/api/v1"

	langHeader        = "x-custom-lang"
	idempotencyHeader = "X-Idempotency-Key"
)

var (
	_ gateway.CartGateway    = (*Client)(nil)
	_ gateway.CatalogGateway = (*Client)(nil)
	_ gateway.OrderGateway   = (*Client)(nil)
)

type Config struct {
	BaseURL string
	Lang    string
	Tokens  TokenSource

	// 0なら 8s / 10s
	DialTimeout time.Duration
	CallTimeout time.Duration

	HTTPClient *http.Client
	Logger     *slog.Logger
	Now        func() time.Time
}

// Client はカートAPIのRESTクライアント。
// 401 は AuthExpired、それ以外の4xx/5xxは ServerRejected、通信失敗は Network にする。
type Client struct {
	baseURL string
	lang    string
	tokens  TokenSource
	http    *http.Client
	log     *slog.Logger
	now     func() time.Time
}

// DI
func New(cfg Config) (*Client, error) {
	base := strings.TrimSuffix(strings.TrimSpace(cfg.BaseURL), "/")
	if base == "" {
		return nil, fmt.Errorf("base URL is required")
	}
	if _, err := url.ParseRequestURI(base); err != nil {
		return nil, fmt.Errorf("invalid base URL: %w", err)
	}
	if cfg.Tokens == nil {
		return nil, fmt.Errorf("token source is required")
	}

	dial := cfg.DialTimeout
	if dial <= 0 {
		dial = 8 * time.Second
	}
	call := cfg.CallTimeout
	if call <= 0 {
		call = 10 * time.Second
	}

	hc := cfg.HTTPClient
	if hc == nil {
		hc = &http.Client{
			Timeout: call,
			Transport: &http.Transport{
				Proxy:                 http.ProxyFromEnvironment,
				DialContext:           (&net.Dialer{Timeout: dial}).DialContext,
				TLSHandshakeTimeout:   dial,
				ResponseHeaderTimeout: dial,
				IdleConnTimeout:       90 * time.Second,
				MaxIdleConnsPerHost:   4,
			},
		}
	}
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	return &Client{
		baseURL: base,
		lang:    cfg.Lang,
		tokens:  cfg.Tokens,
		http:    hc,
		log:     log,
		now:     now,
	}, nil
}

func (c *Client) FetchCart(ctx context.Context) (model.RemoteCart, error) {
	return c.cartCall(ctx, "fetch cart", http.MethodGet, "/carts/me", nil)
}

func (c *Client) AddItem(ctx context.Context, productID string, quantity int64) (model.RemoteCart, error) {
	return c.cartCall(ctx, "add item", http.MethodPost, "/carts/add/item",
		AddItemRequest{ProductID: productID, Quantity: quantity})
}

func (c *Client) UpdateItem(ctx context.Context, productID string, quantity int64) (model.RemoteCart, error) {
	return c.cartCall(ctx, "update item", http.MethodPut, "/carts/"+url.PathEscape(productID),
		UpdateItemRequest{Quantity: quantity})
}

func (c *Client) RemoveItem(ctx context.Context, productID string) (model.RemoteCart, error) {
	return c.cartCall(ctx, "remove item", http.MethodDelete, "/carts/"+url.PathEscape(productID), nil)
}

func (c *Client) ClearCart(ctx context.Context) (model.RemoteCart, error) {
	return c.cartCall(ctx, "clear cart", http.MethodDelete, "/carts/clear", nil)
}

func (c *Client) GetProduct(ctx context.Context, productID string) (model.Product, error) {
	var out ProductDTO
	err := c.do(ctx, request{
		op:       "get product",
		method:   http.MethodGet,
		path:     "/products/" + url.PathEscape(productID),
		notFound: "product",
	}, &out)
	if err != nil {
		return model.Product{}, err
	}
	return out.toProduct(), nil
}

func (c *Client) PlaceOrder(ctx context.Context, req model.OrderRequest) (model.OrderReceipt, error) {
	var out OrderDTO
	err := c.do(ctx, request{
		op:     "place order",
		method: http.MethodPost,
		path:   "/orders/custom",
		body: OrderRequestDTO{
			CartID:     req.CartID,
			ProductIDs: req.ProductIDs,
			Notes:      req.Notes,
		},
		idempotencyKey: req.IdempotencyKey,
	}, &out)
	if err != nil {
		return model.OrderReceipt{}, err
	}
	return out.toReceipt(), nil
}

func (c *Client) cartCall(ctx context.Context, op, method, path string, body any) (model.RemoteCart, error) {
	var out CartEnvelope
	if err := c.do(ctx, request{op: op, method: method, path: path, body: body}, &out); err != nil {
		return model.RemoteCart{}, err
	}
	return out.Cart.toRemote(), nil
}

type request struct {
	op             string
	method         string
	path           string
	body           any
	idempotencyKey string
	notFound       string // 404 を NotFound にするときの対象名
}

func (c *Client) do(ctx context.Context, r request, out any) error {
	token, err := c.tokens.Token(ctx)
	if err != nil {
		return model.NewAuthExpiredError(err.Error())
	}
	if err := checkExpiry(token, c.now()); err != nil {
		return err
	}

	var body io.Reader
	if r.body != nil {
		b, err := json.Marshal(r.body)
		if err != nil {
			return fmt.Errorf("marshal %s request: %w", r.op, err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, r.method, c.baseURL+apiPrefix+r.path, body)
	if err != nil {
		return fmt.Errorf("create %s request: %w", r.op, err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)
	if r.body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.lang != "" {
		req.Header.Set(langHeader, c.lang)
	}
	if r.idempotencyKey != "" {
		req.Header.Set(idempotencyHeader, r.idempotencyKey)
	}

	start := c.now()
	resp, err := c.http.Do(req)
	if err != nil {
		return model.NewNetworkError(r.op, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return model.NewNetworkError(r.op, err)
	}
	c.log.Debug("cart api", "op", r.op, "method", r.method, "path", r.path,
		"status", resp.StatusCode, "elapsed", c.now().Sub(start))

	if resp.StatusCode >= 400 {
		return c.statusError(r, resp.StatusCode, raw)
	}
	if out == nil || len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return model.NewNetworkError(r.op, fmt.Errorf("decode response: %w", err))
	}
	return nil
}

func (c *Client) statusError(r request, status int, raw []byte) error {
	var eb ErrorBody
	_ = json.Unmarshal(raw, &eb)
	msg := eb.Text()
	if msg == "" {
		msg = http.StatusText(status)
	}

	switch {
	case status == http.StatusUnauthorized:
		return model.NewAuthExpiredError(msg)
	case status == http.StatusNotFound && r.notFound != "":
		return model.NewNotFoundError(r.notFound)
	default:
		return model.NewServerRejectedError(status, msg)
	}
}
