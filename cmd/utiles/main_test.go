package main

import (
	"bytes"
	"context"
	"log"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sourcegraph/conc"
	"github.com/stretchr/testify/require"

	"github.com/danielCarlosRodriguez/utilesApp/internal/analytics"
	"github.com/danielCarlosRodriguez/utilesApp/internal/dashboard"
	"github.com/danielCarlosRodriguez/utilesApp/internal/domain/schema"
	"github.com/danielCarlosRodriguez/utilesApp/internal/gateway"
	"github.com/danielCarlosRodriguez/utilesApp/internal/orderlist"
	"github.com/danielCarlosRodriguez/utilesApp/internal/selection"
)

func TestResolveConfigPath(t *testing.T) {
	require.Equal(t, "config/app.yaml", resolveConfigPath(""))
	require.Equal(t, "/etc/utiles.yaml", resolveConfigPath("/etc/utiles.yaml"))
}

func TestResolvePeriod(t *testing.T) {
	p, err := resolvePeriod("", "")
	require.NoError(t, err)
	require.Equal(t, analytics.PeriodMonth, p)

	p, err = resolvePeriod("", "year")
	require.NoError(t, err)
	require.Equal(t, analytics.PeriodYear, p)

	p, err = resolvePeriod("week", "year")
	require.NoError(t, err)
	require.Equal(t, analytics.PeriodWeek, p)

	_, err = resolvePeriod("fortnight", "")
	require.Error(t, err)
}

func TestPrintDashboard(t *testing.T) {
	buf := new(bytes.Buffer)
	printDashboard(buf, nil, analytics.LocaleES)
	require.Equal(t, "dashboard: no data\n", buf.String())

	now := time.Date(2025, time.March, 12, 12, 0, 0, 0, time.Local)
	orders := []schema.Order{{
		ID:           "65f0c0ffee",
		CustomerName: "Ana",
		Status:       schema.StatusDelivered,
		Totals:       &schema.Totals{Total: decimal.NewFromInt(12450)},
		CreatedAt:    schema.NewTimestamp(now),
		Items:        []schema.LineItem{{RefID: "L1", Title: "Lápiz", Quantity: 3, Subtotal: decimal.NewFromInt(12450)}},
	}}
	data := analytics.Aggregate(orders, nil, analytics.PeriodWeek, now, analytics.LocaleES)

	buf.Reset()
	printDashboard(buf, &data, analytics.LocaleES)
	out := buf.String()
	require.Contains(t, out, "== dashboard (week) ==")
	require.Contains(t, out, "revenue $ 12.450 | orders 1 | average $ 12.450")
	require.Contains(t, out, "Entregado")
	require.Contains(t, out, "1. L1 x3 $ 12.450")
	require.Contains(t, out, "#c0ffee Ana Entregado 12/03")
}

func TestPrintOrderUsesPlaceholders(t *testing.T) {
	buf := new(bytes.Buffer)
	printOrder(buf, schema.Order{ID: "abc", Status: schema.StatusShipped}, analytics.LocaleES)
	out := buf.String()
	require.Contains(t, out, "== order #abc ==")
	require.Contains(t, out, "status:   En Camino")
	require.Contains(t, out, "customer: Desconocido")
	require.Contains(t, out, "total:    $ 0")
	require.NotContains(t, out, "note:")
}

func TestReadURLsSkipsBlankLines(t *testing.T) {
	var lifecycle conc.WaitGroup
	urls := readURLs(context.Background(), &lifecycle, strings.NewReader("utilesapp://order/a\n\n  \nutilesapp://order/b\n"))

	var got []string
	for u := range urls {
		got = append(got, u)
	}
	lifecycle.Wait()
	require.Equal(t, []string{"utilesapp://order/a", "utilesapp://order/b"}, got)
}

func TestRefreshAllLoadsOrdersAndDashboard(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/api/utiles/orders":
			_, _ = w.Write([]byte(`{"success":true,"data":[{"_id":"o1","status":"delivered","totals":{"total":500}}]}`))
		case "/api/utiles/products":
			_, _ = w.Write([]byte(`{"success":true,"data":[]}`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	gw := gateway.New(gateway.Options{BaseURL: server.URL, HTTPClient: server.Client()})
	orders := orderlist.NewStore()
	dash := dashboard.New(gw)
	logBuf := new(bytes.Buffer)

	refreshAll(context.Background(), log.New(logBuf, "", 0), orders, dash, gw)
	require.Equal(t, 1, orders.Len())
	require.NotNil(t, dash.Data())
	require.True(t, decimal.NewFromInt(500).Equal(dash.Data().KPIs.TotalRevenue))
	require.Contains(t, logBuf.String(), "orders loaded: 1")
}

func TestPerformGracefulShutdown(t *testing.T) {
	buf := new(bytes.Buffer)
	logger := log.New(buf, "", 0)

	cancelled := false
	var lifecycle conc.WaitGroup
	lifecycle.Go(func() {})

	performGracefulShutdown(context.Background(), logger, gracefulShutdownConfig{
		mainCancel: func() { cancelled = true },
		selection:  selection.New(nil),
		lifecycle:  &lifecycle,
	})
	require.True(t, cancelled)
	require.Contains(t, buf.String(), "shutdown: stopping deep-link watchers completed")
	require.Contains(t, buf.String(), "shutdown: waiting for lifecycle goroutines completed")
	require.NotContains(t, buf.String(), "failed")
}
