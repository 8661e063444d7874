package dashboard

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/danielCarlosRodriguez/utilesApp/errs"
	"github.com/danielCarlosRodriguez/utilesApp/internal/analytics"
	"github.com/danielCarlosRodriguez/utilesApp/internal/domain/schema"
	"github.com/danielCarlosRodriguez/utilesApp/internal/gateway"
)

type fakeSource struct {
	mu       sync.Mutex
	orders   gateway.Result[[]schema.Order]
	products gateway.Result[[]schema.Product]
}

func (f *fakeSource) ListOrders(context.Context) gateway.Result[[]schema.Order] {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.orders
}

func (f *fakeSource) ListProducts(context.Context) gateway.Result[[]schema.Product] {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.products
}

func (f *fakeSource) set(orders gateway.Result[[]schema.Order], products gateway.Result[[]schema.Product]) {
	f.mu.Lock()
	f.orders, f.products = orders, products
	f.mu.Unlock()
}

var now = time.Date(2025, time.March, 12, 10, 0, 0, 0, time.UTC)

func delivered(id string, total int64) schema.Order {
	return schema.Order{
		ID:        id,
		Status:    schema.StatusDelivered,
		Totals:    &schema.Totals{Total: decimal.NewFromInt(total)},
		CreatedAt: schema.NewTimestamp(now),
		Items:     []schema.LineItem{{RefID: "P1", Quantity: 2, Subtotal: decimal.NewFromInt(total)}},
	}
}

func newController(src Source, opts ...Option) *Controller {
	return New(src, append([]Option{WithClock(func() time.Time { return now })}, opts...)...)
}

func TestDataIsNilBeforeRefresh(t *testing.T) {
	c := newController(&fakeSource{})
	require.Nil(t, c.Data())
	require.NoError(t, c.Err())
	require.False(t, c.Loading())
	require.Equal(t, analytics.PeriodMonth, c.Period())
}

func TestRefreshAggregates(t *testing.T) {
	src := &fakeSource{}
	src.set(
		gateway.Result[[]schema.Order]{Value: []schema.Order{delivered("a", 1000)}},
		gateway.Result[[]schema.Product]{Value: []schema.Product{{RefID: "P1", Description: "Lápiz"}}},
	)
	c := newController(src, WithPeriod(analytics.PeriodWeek))
	require.NoError(t, c.Refresh(context.Background()))

	data := c.Data()
	require.NotNil(t, data)
	require.Equal(t, analytics.PeriodWeek, data.Period)
	require.Len(t, data.RevenueByPeriod, 7)
	require.True(t, decimal.NewFromInt(1000).Equal(data.KPIs.TotalRevenue))
	require.Equal(t, "Lápiz", data.TopProducts[0].Title)
	require.False(t, c.Loading())
}

func TestProductsFailureFallsBackToReferenceIDs(t *testing.T) {
	src := &fakeSource{}
	src.set(
		gateway.Result[[]schema.Order]{Value: []schema.Order{delivered("a", 10)}},
		gateway.Result[[]schema.Product]{Err: errs.New("gateway", errs.CodeNetwork)},
	)
	c := newController(src)
	require.NoError(t, c.Refresh(context.Background()))
	require.NoError(t, c.Err())
	require.Equal(t, "P1", c.Data().TopProducts[0].Title)
}

func TestOrdersFailureWithoutPriorDataSurfacesErrNoData(t *testing.T) {
	failure := errs.New("gateway", errs.CodeNetwork)
	src := &fakeSource{}
	src.set(
		gateway.Result[[]schema.Order]{Err: failure},
		gateway.Result[[]schema.Product]{Err: failure},
	)
	c := newController(src)

	err := c.Refresh(context.Background())
	require.ErrorIs(t, err, ErrNoData)
	require.ErrorIs(t, c.Err(), ErrNoData)
	require.ErrorIs(t, c.Err(), failure)
	require.Nil(t, c.Data())

	src.set(gateway.Result[[]schema.Order]{Value: []schema.Order{}}, gateway.Result[[]schema.Product]{})
	require.NoError(t, c.Refresh(context.Background()))
	require.NoError(t, c.Err())
	require.NotNil(t, c.Data())
}

func TestOrdersFailureKeepsPreviousData(t *testing.T) {
	src := &fakeSource{}
	src.set(gateway.Result[[]schema.Order]{Value: []schema.Order{delivered("a", 700)}}, gateway.Result[[]schema.Product]{})
	c := newController(src)
	require.NoError(t, c.Refresh(context.Background()))

	failure := errs.New("gateway", errs.CodeUpstream)
	src.set(gateway.Result[[]schema.Order]{Err: failure}, gateway.Result[[]schema.Product]{})
	require.ErrorIs(t, c.Refresh(context.Background()), failure)
	require.NoError(t, c.Err())
	require.True(t, decimal.NewFromInt(700).Equal(c.Data().KPIs.TotalRevenue))
}

type gatedSource struct {
	fakeSource
	release map[string]chan struct{}
	started chan string
}

func (g *gatedSource) ListOrders(ctx context.Context) gateway.Result[[]schema.Order] {
	id, _ := ctx.Value(refreshKey{}).(string)
	g.started <- id
	<-g.release[id]
	return g.fakeSource.ListOrders(ctx)
}

type refreshKey struct{}

func TestLoadingStaysSetWhileAnyRefreshRuns(t *testing.T) {
	src := &gatedSource{
		release: map[string]chan struct{}{"first": make(chan struct{}), "second": make(chan struct{})},
		started: make(chan string, 2),
	}
	src.set(gateway.Result[[]schema.Order]{Value: []schema.Order{delivered("a", 10)}}, gateway.Result[[]schema.Product]{})
	c := newController(src)

	results := make(chan error, 2)
	for _, id := range []string{"first", "second"} {
		ctx := context.WithValue(context.Background(), refreshKey{}, id)
		go func() { results <- c.Refresh(ctx) }()
	}
	<-src.started
	<-src.started
	require.True(t, c.Loading())

	close(src.release["first"])
	require.NoError(t, <-results)
	require.True(t, c.Loading(), "second refresh is still running")

	close(src.release["second"])
	require.NoError(t, <-results)
	require.False(t, c.Loading())
}

func TestSetPeriod(t *testing.T) {
	c := newController(&fakeSource{})
	require.NoError(t, c.SetPeriod(analytics.PeriodYear))
	require.Equal(t, analytics.PeriodYear, c.Period())

	err := c.SetPeriod("decade")
	require.True(t, errs.Is(err, errs.CodeInvalid))
	require.Equal(t, analytics.PeriodYear, c.Period())
}

func TestApplyAndFollowPatchHeldOrders(t *testing.T) {
	pending := delivered("a", 300)
	pending.Status = schema.StatusPending
	src := &fakeSource{}
	src.set(gateway.Result[[]schema.Order]{Value: []schema.Order{pending}}, gateway.Result[[]schema.Product]{})
	c := newController(src)
	require.NoError(t, c.Refresh(context.Background()))
	require.True(t, c.Data().KPIs.TotalRevenue.IsZero())

	require.False(t, c.Apply(schema.OrderUpdated{OrderID: "other", Status: schema.StatusDelivered}))

	updates := make(chan schema.OrderUpdated, 1)
	updates <- schema.OrderUpdated{OrderID: "a", Status: schema.StatusDelivered}
	close(updates)
	c.Follow(context.Background(), updates)

	require.True(t, decimal.NewFromInt(300).Equal(c.Data().KPIs.TotalRevenue))
}

func TestFollowStopsOnContext(t *testing.T) {
	c := newController(&fakeSource{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	done := make(chan struct{})
	go func() {
		defer close(done)
		c.Follow(ctx, make(chan schema.OrderUpdated))
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("expected Follow to return once the context ends")
	}
}
