// Package dashboard keeps the orders and catalog behind the analytics view and
// recomputes the aggregates on demand.
package dashboard

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/sourcegraph/conc"

	"github.com/danielCarlosRodriguez/utilesApp/errs"
	"github.com/danielCarlosRodriguez/utilesApp/internal/analytics"
	"github.com/danielCarlosRodriguez/utilesApp/internal/domain/schema"
	"github.com/danielCarlosRodriguez/utilesApp/internal/gateway"
	"github.com/danielCarlosRodriguez/utilesApp/internal/observability"
	"github.com/danielCarlosRodriguez/utilesApp/internal/orderlist"
	"github.com/danielCarlosRodriguez/utilesApp/internal/telemetry"
)

// ErrNoData reports that orders could not be fetched and nothing was held from an
// earlier refresh. Calling Refresh again is the retry.
var ErrNoData = errors.New("dashboard: no data available")

// Source provides the two lists the dashboard aggregates.
type Source interface {
	ListOrders(ctx context.Context) gateway.Result[[]schema.Order]
	ListProducts(ctx context.Context) gateway.Result[[]schema.Product]
}

// Option customises a Controller.
type Option func(*Controller)

// WithLocale sets the labels and number separators used in the aggregates.
func WithLocale(loc analytics.Locale) Option {
	return func(c *Controller) { c.locale = loc }
}

// WithPeriod sets the initial period. Invalid periods are ignored.
func WithPeriod(p analytics.Period) Option {
	return func(c *Controller) {
		if parsed, err := analytics.ParsePeriod(string(p)); err == nil {
			c.period = parsed
		}
	}
}

// WithClock replaces time.Now, mostly for tests.
func WithClock(now func() time.Time) Option {
	return func(c *Controller) {
		if now != nil {
			c.now = now
		}
	}
}

// Controller owns the dashboard state. Mutations are serialised by mu.
type Controller struct {
	source  Source
	locale  analytics.Locale
	now     func() time.Time
	metrics *telemetry.DashboardMetrics

	mu        sync.RWMutex
	orders    []schema.Order
	products  []schema.Product
	hasOrders bool
	period    analytics.Period
	inflight  int
	err       error
}

// New creates a controller with no data and the default period.
func New(source Source, opts ...Option) *Controller {
	c := &Controller{
		source:  source,
		locale:  analytics.LocaleES,
		now:     time.Now,
		metrics: telemetry.NewDashboardMetrics(),
		period:  analytics.DefaultPeriod,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c
}

// Refresh fetches orders and products in parallel. A side that fails keeps its
// previous value. The returned error is the orders failure, if any; Err only reports
// it when no orders were ever loaded.
func (c *Controller) Refresh(ctx context.Context) error {
	c.mu.Lock()
	c.inflight++
	c.mu.Unlock()

	var (
		orders   gateway.Result[[]schema.Order]
		products gateway.Result[[]schema.Product]
		wg       conc.WaitGroup
	)
	wg.Go(func() { orders = c.source.ListOrders(ctx) })
	wg.Go(func() { products = c.source.ListProducts(ctx) })
	wg.Wait()

	c.mu.Lock()
	defer c.mu.Unlock()
	c.inflight--

	if products.Err != nil {
		observability.Log().Info("dashboard products unavailable, titles fall back to reference ids",
			observability.F("error", products.Err))
	} else {
		c.products = products.Value
	}

	if orders.Err == nil {
		c.orders = orders.Value
		c.hasOrders = true
		c.err = nil
		return nil
	}
	if c.hasOrders {
		observability.Log().Info("dashboard orders refresh failed, keeping previous list",
			observability.F("error", orders.Err))
		return orders.Err
	}
	c.err = errs.New("dashboard", errs.CodeUnavailable,
		errs.WithMessage("no dashboard data"),
		errs.WithCause(errors.Join(ErrNoData, orders.Err)))
	return c.err
}

// SetPeriod changes the revenue bucketing.
func (c *Controller) SetPeriod(p analytics.Period) error {
	parsed, err := analytics.ParsePeriod(string(p))
	if err != nil {
		return err
	}
	c.mu.Lock()
	c.period = parsed
	c.mu.Unlock()
	return nil
}

// Period returns the selected period.
func (c *Controller) Period() analytics.Period {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.period
}

// Loading reports whether any refresh is in flight.
func (c *Controller) Loading() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.inflight > 0
}

// Err returns the top-level error, wrapping ErrNoData, or nil.
func (c *Controller) Err() error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.err
}

// Data recomputes the aggregates from the held lists. It returns nil until a refresh
// has loaded orders.
func (c *Controller) Data() *analytics.DashboardData {
	c.mu.RLock()
	if !c.hasOrders {
		c.mu.RUnlock()
		return nil
	}
	orders, products, period := c.orders, c.products, c.period
	c.mu.RUnlock()

	start := time.Now()
	data := analytics.Aggregate(orders, products, period, c.now(), c.locale)
	c.metrics.Aggregated(context.Background(), string(period), time.Since(start))
	return &data
}

// Apply patches the held orders with a realtime status update.
func (c *Controller) Apply(evt schema.OrderUpdated) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	patched, ok := orderlist.ApplyStatus(c.orders, evt)
	if ok {
		c.orders = patched
	}
	return ok
}

// Follow drains updates into Apply until the channel closes or ctx ends.
func (c *Controller) Follow(ctx context.Context, updates <-chan schema.OrderUpdated) {
	for {
		select {
		case <-ctx.Done():
			return
		case evt, ok := <-updates:
			if !ok {
				return
			}
			c.Apply(evt)
		}
	}
}
