// Package gateway implements the REST client for the orders backend.
package gateway

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	json "github.com/goccy/go-json"
	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/danielCarlosRodriguez/utilesApp/errs"
	"github.com/danielCarlosRodriguez/utilesApp/internal/domain/schema"
	infracfg "github.com/danielCarlosRodriguez/utilesApp/internal/infra/config"
	"github.com/danielCarlosRodriguez/utilesApp/internal/observability"
	"github.com/danielCarlosRodriguez/utilesApp/internal/telemetry"
)

const (
	component        = "gateway"
	userAgent        = "utiles-orders/1.0"
	requestIDHeader  = "X-Request-ID"
	errorBodyLimit   = 4 << 10
	defaultTimeout   = 10 * time.Second
	opListOrders     = "list_orders"
	opGetOrder       = "get_order"
	opListProducts   = "list_products"
	opSetOrderStatus = "set_order_status"
	opRegisterDevice = "register_device"
)

// Gateway is the full set of backend operations.
type Gateway interface {
	ListOrders(ctx context.Context) Result[[]schema.Order]
	GetOrder(ctx context.Context, id string) Result[*schema.Order]
	ListProducts(ctx context.Context) Result[[]schema.Product]
	SetOrderStatus(ctx context.Context, id string, status schema.OrderStatus, actor string) Result[*schema.Order]
	RegisterDevice(ctx context.Context, token, deviceName string) Result[bool]
}

var _ Gateway = (*Client)(nil)

// Options configures a Client.
type Options struct {
	BaseURL    string
	Paths      infracfg.EndpointPaths
	Timeout    time.Duration
	RateLimit  float64
	RateBurst  int
	HTTPClient *http.Client
}

// OptionsFromConfig maps the backend section of the application config.
func OptionsFromConfig(cfg infracfg.BackendConfig) Options {
	return Options{
		BaseURL:    cfg.BaseURL,
		Paths:      cfg.Paths,
		Timeout:    cfg.Timeout,
		RateLimit:  cfg.RateLimit,
		RateBurst:  cfg.RateBurst,
		HTTPClient: nil,
	}
}

// Client talks to the orders backend over HTTP. It never retries; pacing is optional.
type Client struct {
	baseURL string
	paths   infracfg.EndpointPaths
	http    *http.Client
	limiter *rate.Limiter
	metrics *telemetry.GatewayMetrics
}

// New constructs a Client. Empty paths fall back to the backend defaults.
func New(opts Options) *Client {
	httpClient := opts.HTTPClient
	if httpClient == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = defaultTimeout
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	var limiter *rate.Limiter
	if opts.RateLimit > 0 {
		burst := opts.RateBurst
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(opts.RateLimit), burst)
	}
	return &Client{
		baseURL: strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/"),
		paths:   withDefaultPaths(opts.Paths),
		http:    httpClient,
		limiter: limiter,
		metrics: telemetry.NewGatewayMetrics(),
	}
}

func withDefaultPaths(p infracfg.EndpointPaths) infracfg.EndpointPaths {
	if p.Orders == "" {
		p.Orders = "/api/utiles/orders"
	}
	if p.Products == "" {
		p.Products = "/api/utiles/products"
	}
	if p.OrderStatus == "" {
		p.OrderStatus = "/api/order"
	}
	if p.PushRegister == "" {
		p.PushRegister = "/api/push/register"
	}
	return p
}

// ListOrders fetches every order.
func (c *Client) ListOrders(ctx context.Context) Result[[]schema.Order] {
	res := fetch[[]schema.Order](ctx, c, opListOrders, http.MethodGet, c.paths.Orders, nil)
	if res.Err == nil && res.Value == nil {
		res.Value = []schema.Order{}
	}
	return res
}

// GetOrder fetches a single order by its persistent id.
func (c *Client) GetOrder(ctx context.Context, id string) Result[*schema.Order] {
	id = strings.TrimSpace(id)
	if id == "" {
		return c.reject(ctx, opGetOrder, "order id required")
	}
	return fetch[*schema.Order](ctx, c, opGetOrder, http.MethodGet, c.paths.Orders+"/"+url.PathEscape(id), nil)
}

// ListProducts fetches the product catalog.
func (c *Client) ListProducts(ctx context.Context) Result[[]schema.Product] {
	res := fetch[[]schema.Product](ctx, c, opListProducts, http.MethodGet, c.paths.Products, nil)
	if res.Err == nil && res.Value == nil {
		res.Value = []schema.Product{}
	}
	return res
}

// SetOrderStatus requests a status transition. actor is reported as the delivering
// device and only sent for the delivered transition.
func (c *Client) SetOrderStatus(ctx context.Context, id string, status schema.OrderStatus, actor string) Result[*schema.Order] {
	id = strings.TrimSpace(id)
	if id == "" {
		return c.reject(ctx, opSetOrderStatus, "order id required")
	}
	if !status.Valid() {
		return c.reject(ctx, opSetOrderStatus, fmt.Sprintf("unknown status %q", status))
	}
	endpoint := c.paths.OrderStatus + "/" + url.PathEscape(id) + "/" + string(status)
	if actor = strings.TrimSpace(actor); actor != "" && status == schema.StatusDelivered {
		endpoint += "?" + url.Values{"device": {actor}}.Encode()
	}
	return fetch[*schema.Order](ctx, c, opSetOrderStatus, http.MethodGet, endpoint, nil)
}

type registerRequest struct {
	Token      string `json:"token"`
	DeviceName string `json:"deviceName"`
}

// RegisterDevice registers a push token for this device. Only the envelope's success
// flag is considered.
func (c *Client) RegisterDevice(ctx context.Context, token, deviceName string) Result[bool] {
	token = strings.TrimSpace(token)
	if token == "" {
		err := errs.New(component, errs.CodeInvalid, errs.WithMessage("push token required"))
		c.observe(ctx, opRegisterDevice, "", err, 0)
		return Result[bool]{Value: false, Err: err}
	}
	body := registerRequest{Token: token, DeviceName: deviceName}
	start := time.Now()
	requestID := uuid.NewString()
	_, err := c.call(ctx, opRegisterDevice, requestID, http.MethodPost, c.paths.PushRegister, body, false)
	c.observe(ctx, opRegisterDevice, requestID, err, time.Since(start))
	if err != nil {
		return Result[bool]{Value: false, Err: err}
	}
	return ok(true)
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data,omitempty"`
	Error   string          `json:"error,omitempty"`
	Message string          `json:"message,omitempty"`
}

func (e envelope) reason() string {
	if e.Error != "" {
		return e.Error
	}
	if e.Message != "" {
		return e.Message
	}
	return "request unsuccessful"
}

func fetch[T any](ctx context.Context, c *Client, operation, method, path string, body any) Result[T] {
	start := time.Now()
	requestID := uuid.NewString()
	data, err := c.call(ctx, operation, requestID, method, path, body, true)
	if err == nil {
		var value T
		if decodeErr := json.Unmarshal(data, &value); decodeErr != nil {
			err = errs.New(component, errs.CodeDecode,
				errs.WithMessage("decode response data"),
				errs.WithField("operation", operation),
				errs.WithCause(decodeErr))
		} else {
			c.observe(ctx, operation, requestID, nil, time.Since(start))
			return ok(value)
		}
	}
	c.observe(ctx, operation, requestID, err, time.Since(start))
	return failed[T](err)
}

func (c *Client) call(ctx context.Context, operation, requestID, method, path string, body any, requireData bool) (json.RawMessage, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, errs.New(component, errs.CodeNetwork,
				errs.WithMessage("rate limiter wait"),
				errs.WithField("operation", operation),
				errs.WithCause(err))
		}
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, errs.New(component, errs.CodeInvalid,
				errs.WithMessage("encode request body"),
				errs.WithField("operation", operation),
				errs.WithCause(err))
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, errs.New(component, errs.CodeInvalid,
			errs.WithMessage("create request"),
			errs.WithField("operation", operation),
			errs.WithCause(err))
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set(requestIDHeader, requestID)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, errs.New(component, errs.CodeNetwork,
			errs.WithMessage("request failed"),
			errs.WithField("operation", operation),
			errs.WithCause(err))
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, errorBodyLimit))
		code := errs.CodeUpstream
		if resp.StatusCode == http.StatusNotFound {
			code = errs.CodeNotFound
		}
		return nil, errs.New(component, code,
			errs.WithHTTP(resp.StatusCode),
			errs.WithMessage(fmt.Sprintf("unexpected status: %s", strings.TrimSpace(string(snippet)))),
			errs.WithField("operation", operation))
	}

	var payload envelope
	decoder := json.NewDecoder(resp.Body)
	if err := decoder.Decode(&payload); err != nil {
		return nil, errs.New(component, errs.CodeDecode,
			errs.WithHTTP(resp.StatusCode),
			errs.WithMessage("decode response envelope"),
			errs.WithField("operation", operation),
			errs.WithCause(err))
	}
	if !payload.Success {
		return nil, errs.New(component, errs.CodeUpstream,
			errs.WithHTTP(resp.StatusCode),
			errs.WithMessage(payload.reason()),
			errs.WithField("operation", operation))
	}
	if requireData && isEmptyData(payload.Data) {
		return nil, errs.New(component, errs.CodeNotFound,
			errs.WithHTTP(resp.StatusCode),
			errs.WithMessage("response carried no data"),
			errs.WithField("operation", operation))
	}
	return payload.Data, nil
}

func isEmptyData(data json.RawMessage) bool {
	trimmed := bytes.TrimSpace(data)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null"))
}

func (c *Client) reject(ctx context.Context, operation, message string) Result[*schema.Order] {
	err := errs.New(component, errs.CodeInvalid, errs.WithMessage(message), errs.WithField("operation", operation))
	c.observe(ctx, operation, "", err, 0)
	return failed[*schema.Order](err)
}

func (c *Client) observe(ctx context.Context, operation, requestID string, err error, elapsed time.Duration) {
	if err == nil {
		c.metrics.Record(ctx, operation, "", elapsed)
		observability.Log().Debug("gateway request completed",
			observability.F("operation", operation),
			observability.F("request_id", requestID),
			observability.F("elapsed", elapsed))
		return
	}
	c.metrics.Record(ctx, operation, string(errs.CodeOf(err)), elapsed)
	observability.Log().Error("gateway request failed",
		observability.F("operation", operation),
		observability.F("request_id", requestID),
		observability.F("error", err))
}
