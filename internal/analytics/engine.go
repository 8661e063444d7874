// Package analytics turns order and catalog snapshots into dashboard aggregates.
// Every function here is pure: the clock and locale are passed in.
package analytics

import (
	"cmp"
	"slices"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/danielCarlosRodriguez/utilesApp/errs"
	"github.com/danielCarlosRodriguez/utilesApp/internal/domain/schema"
)

const (
	topProductsLimit  = 5
	recentOrdersLimit = 5
	weekBuckets       = 7
	monthBuckets      = 4
	yearBuckets       = 12
)

// Period selects the revenue bucketing.
type Period string

const (
	PeriodWeek  Period = "week"
	PeriodMonth Period = "month"
	PeriodYear  Period = "year"

	// DefaultPeriod is shown when nothing else was chosen.
	DefaultPeriod = PeriodMonth
)

// ParsePeriod accepts week, month or year in any case.
func ParsePeriod(raw string) (Period, error) {
	switch p := Period(strings.ToLower(strings.TrimSpace(raw))); p {
	case PeriodWeek, PeriodMonth, PeriodYear:
		return p, nil
	default:
		return "", errs.New("analytics", errs.CodeInvalid,
			errs.WithMessage("period must be one of week, month, year"),
			errs.WithField("period", raw))
	}
}

// Buckets returns how many revenue buckets the period produces.
func (p Period) Buckets() int {
	switch p {
	case PeriodWeek:
		return weekBuckets
	case PeriodYear:
		return yearBuckets
	default:
		return monthBuckets
	}
}

// KPIs summarises revenue over delivered orders.
type KPIs struct {
	TotalRevenue      decimal.Decimal
	TotalOrders       int
	AverageOrderValue decimal.Decimal
}

// StatusCount is one slice of the per-status breakdown.
type StatusCount struct {
	Status schema.OrderStatus
	Label  string
	Count  int
	Color  string
}

// PeriodRevenue is one revenue bucket. Start and End bound the bucket in local time;
// End is inclusive.
type PeriodRevenue struct {
	Label   string
	Start   time.Time
	End     time.Time
	Revenue decimal.Decimal
	Orders  int
}

// TopProduct is a product ranked by quantity sold.
type TopProduct struct {
	Title        string
	RefID        string
	QuantitySold int
	Revenue      decimal.Decimal
}

// DashboardData is the full derived view. It is recomputed on every call.
type DashboardData struct {
	Period          Period
	KPIs            KPIs
	OrdersByStatus  []StatusCount
	RevenueByPeriod []PeriodRevenue
	TopProducts     []TopProduct
	RecentOrders    []schema.Order
}

// Aggregate computes the dashboard for orders as seen at now. now's location decides
// calendar-day boundaries.
func Aggregate(orders []schema.Order, products []schema.Product, period Period, now time.Time, loc Locale) DashboardData {
	if _, err := ParsePeriod(string(period)); err != nil {
		period = DefaultPeriod
	}
	return DashboardData{
		Period:          period,
		KPIs:            ComputeKPIs(orders),
		OrdersByStatus:  CountByStatus(orders, loc),
		RevenueByPeriod: RevenueByPeriod(orders, period, now, loc),
		TopProducts:     TopProducts(orders, schema.NewCatalog(products)),
		RecentOrders:    RecentOrders(orders),
	}
}

// ComputeKPIs sums delivered revenue. The average is rounded half away from zero to a
// whole amount and is zero when nothing was delivered.
func ComputeKPIs(orders []schema.Order) KPIs {
	revenue := decimal.Zero
	delivered := 0
	for i := range orders {
		if orders[i].Status != schema.StatusDelivered {
			continue
		}
		revenue = revenue.Add(orders[i].Revenue())
		delivered++
	}
	average := decimal.Zero
	if delivered > 0 {
		average = revenue.Div(decimal.NewFromInt(int64(delivered))).Round(0)
	}
	return KPIs{TotalRevenue: revenue, TotalOrders: len(orders), AverageOrderValue: average}
}

// CountByStatus tallies orders by effective status in canonical order, zeros included.
func CountByStatus(orders []schema.Order, loc Locale) []StatusCount {
	counts := make(map[schema.OrderStatus]int, len(schema.AllStatuses))
	for i := range orders {
		counts[orders[i].EffectiveStatus()]++
	}
	out := make([]StatusCount, 0, len(schema.AllStatuses))
	for _, status := range schema.AllStatuses {
		out = append(out, StatusCount{
			Status: status,
			Label:  loc.StatusLabel(status),
			Count:  counts[status],
			Color:  status.Style().Color,
		})
	}
	return out
}

// RevenueByPeriod buckets non-cancelled orders by creation time, oldest bucket first.
// Orders without a creation time never match a bucket.
func RevenueByPeriod(orders []schema.Order, period Period, now time.Time, loc Locale) []PeriodRevenue {
	buckets := periodBuckets(period, now, loc)
	tz := now.Location()
	for i := range orders {
		order := &orders[i]
		if order.Status == schema.StatusCancelled || !order.CreatedAt.Present() {
			continue
		}
		created := order.CreatedAt.In(tz)
		for b := range buckets {
			if !matches(period, buckets[b], created) {
				continue
			}
			buckets[b].Revenue = buckets[b].Revenue.Add(order.Revenue())
			buckets[b].Orders++
		}
	}
	return buckets
}

func periodBuckets(period Period, now time.Time, loc Locale) []PeriodRevenue {
	tz := now.Location()
	switch period {
	case PeriodWeek:
		out := make([]PeriodRevenue, 0, weekBuckets)
		for i := weekBuckets - 1; i >= 0; i-- {
			day := now.AddDate(0, 0, -i)
			start := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, tz)
			out = append(out, PeriodRevenue{
				Label:   loc.DayNames[day.Weekday()],
				Start:   start,
				End:     start.AddDate(0, 0, 1).Add(-time.Nanosecond),
				Revenue: decimal.Zero,
			})
		}
		return out
	case PeriodYear:
		out := make([]PeriodRevenue, 0, yearBuckets)
		for m := yearBuckets - 1; m >= 0; m-- {
			start := time.Date(now.Year(), now.Month()-time.Month(m), 1, 0, 0, 0, 0, tz)
			out = append(out, PeriodRevenue{
				Label:   loc.MonthNames[start.Month()-1],
				Start:   start,
				End:     start.AddDate(0, 1, 0).Add(-time.Nanosecond),
				Revenue: decimal.Zero,
			})
		}
		return out
	default:
		// Windows keep now's clock time at both ends, so the span between one
		// window's end and the next window's start belongs to neither.
		out := make([]PeriodRevenue, 0, monthBuckets)
		for w := monthBuckets - 1; w >= 0; w-- {
			out = append(out, PeriodRevenue{
				Label:   loc.Week(monthBuckets - w),
				Start:   now.AddDate(0, 0, -(w*7 + 6)),
				End:     now.AddDate(0, 0, -w*7),
				Revenue: decimal.Zero,
			})
		}
		return out
	}
}

func matches(period Period, bucket PeriodRevenue, created time.Time) bool {
	switch period {
	case PeriodWeek:
		y, m, d := created.Date()
		by, bm, bd := bucket.Start.Date()
		return y == by && m == bm && d == bd
	case PeriodYear:
		return created.Year() == bucket.Start.Year() && created.Month() == bucket.Start.Month()
	default:
		return !created.Before(bucket.Start) && !created.After(bucket.End)
	}
}

// TopProducts ranks line items of non-cancelled orders by quantity sold. Items without a
// reference id share the empty key. Ties keep first-seen order.
func TopProducts(orders []schema.Order, catalog schema.Catalog) []TopProduct {
	index := make(map[string]int)
	var ranked []TopProduct
	for i := range orders {
		if orders[i].Status == schema.StatusCancelled {
			continue
		}
		for _, item := range orders[i].Items {
			ref := item.RefID.String()
			pos, seen := index[ref]
			if !seen {
				pos = len(ranked)
				index[ref] = pos
				ranked = append(ranked, TopProduct{RefID: ref, Revenue: decimal.Zero})
			}
			ranked[pos].QuantitySold += item.Quantity
			ranked[pos].Revenue = ranked[pos].Revenue.Add(item.Subtotal)
		}
	}
	for i := range ranked {
		ranked[i].Title = catalog.Title(ranked[i].RefID)
	}
	slices.SortStableFunc(ranked, func(a, b TopProduct) int {
		return cmp.Compare(b.QuantitySold, a.QuantitySold)
	})
	if len(ranked) > topProductsLimit {
		ranked = ranked[:topProductsLimit]
	}
	if ranked == nil {
		ranked = []TopProduct{}
	}
	return ranked
}

// RecentOrders returns the newest orders by creation time. Orders without a creation
// time sort last; ties keep input order.
func RecentOrders(orders []schema.Order) []schema.Order {
	sorted := make([]schema.Order, len(orders))
	for i := range orders {
		sorted[i] = orders[i].Clone()
	}
	slices.SortStableFunc(sorted, func(a, b schema.Order) int {
		return cmp.Compare(createdMillis(b), createdMillis(a))
	})
	if len(sorted) > recentOrdersLimit {
		sorted = sorted[:recentOrdersLimit]
	}
	return sorted
}

func createdMillis(o schema.Order) int64 {
	if !o.CreatedAt.Present() {
		return 0
	}
	return o.CreatedAt.UnixMilli()
}
