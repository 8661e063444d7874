// Package selection holds the order currently shown in detail and loads it from ids,
// deep links and push notification taps.
package selection

import (
	"context"
	"strconv"
	"strings"
	"sync"

	"github.com/sourcegraph/conc"

	"github.com/danielCarlosRodriguez/utilesApp/errs"
	"github.com/danielCarlosRodriguez/utilesApp/internal/deeplink"
	"github.com/danielCarlosRodriguez/utilesApp/internal/domain/schema"
	"github.com/danielCarlosRodriguez/utilesApp/internal/gateway"
	"github.com/danielCarlosRodriguez/utilesApp/internal/observability"
)

const component = "selection"

// Gateway is the subset of backend operations the store needs.
type Gateway interface {
	GetOrder(ctx context.Context, id string) gateway.Result[*schema.Order]
	SetOrderStatus(ctx context.Context, id string, status schema.OrderStatus, actor string) gateway.Result[*schema.Order]
}

// Option customises a Store.
type Option func(*Store)

// OnSelect registers a callback invoked after every selection change, outside the lock.
func OnSelect(fn func(schema.Order)) Option {
	return func(s *Store) { s.onSelect = fn }
}

// Store owns the selected order. Writes are serialised by mu.
type Store struct {
	gw       Gateway
	onSelect func(schema.Order)

	mu       sync.RWMutex
	selected *schema.Order
	inflight int
	closed   bool
	cancels  []context.CancelFunc
	watchers conc.WaitGroup
}

// New creates an empty store.
func New(gw Gateway, opts ...Option) *Store {
	s := &Store{gw: gw}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// Close stops every watcher and waits for them to return. It is idempotent.
func (s *Store) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	cancels := s.cancels
	s.cancels = nil
	s.mu.Unlock()

	for _, cancel := range cancels {
		cancel()
	}
	s.watchers.Wait()
}

// Selected returns the selected order, if any.
func (s *Store) Selected() (schema.Order, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.selected == nil {
		return schema.Order{}, false
	}
	return s.selected.Clone(), true
}

// Loading reports whether a load is in flight.
func (s *Store) Loading() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.inflight > 0
}

// SelectOrder replaces the selection without validation.
func (s *Store) SelectOrder(order schema.Order) {
	s.replace(order)
}

func (s *Store) replace(order schema.Order) {
	held := order.Clone()
	s.mu.Lock()
	s.selected = &held
	s.mu.Unlock()
	if s.onSelect != nil {
		s.onSelect(held.Clone())
	}
}

func (s *Store) beginLoad() func() {
	s.mu.Lock()
	s.inflight++
	s.mu.Unlock()
	return func() {
		s.mu.Lock()
		s.inflight--
		s.mu.Unlock()
	}
}

// LoadOrderByID fetches the order and selects it. Loading is cleared on every exit
// path. On failure the previous selection stays and the error is returned; results of
// a cancelled ctx are discarded.
func (s *Store) LoadOrderByID(ctx context.Context, id string) error {
	defer s.beginLoad()()

	res := s.gw.GetOrder(ctx, id)
	if err := ctx.Err(); err != nil {
		return err
	}
	order, err := res.Get()
	if err == nil && order == nil {
		err = errs.New(component, errs.CodeNotFound, errs.WithField("order_id", id))
	}
	if err != nil {
		observability.Log().Info("order load failed, keeping selection",
			observability.F("order_id", id),
			observability.F("error", err))
		return err
	}
	s.replace(*order)
	return nil
}

// LoadOrderFromReference loads the order a deep-link reference points at.
func (s *Store) LoadOrderFromReference(ctx context.Context, ref deeplink.Reference) error {
	return s.LoadOrderByID(ctx, ref.ID)
}

// HandleURL decodes a deep link and loads its order. Links without a usable reference
// are logged and ignored.
func (s *Store) HandleURL(ctx context.Context, rawURL string) error {
	ref, err := deeplink.ParseURL(rawURL)
	if err != nil {
		observability.Log().Debug("deep link ignored",
			observability.F("url", rawURL),
			observability.F("error", err))
		return nil
	}
	return s.LoadOrderFromReference(ctx, ref)
}

// Watch handles launchURL, when set, and then every URL received on urls until the
// channel closes, ctx ends or the store is closed.
func (s *Store) Watch(ctx context.Context, launchURL string, urls <-chan string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return errs.New(component, errs.CodeUnavailable, errs.WithMessage("store closed"))
	}
	wctx, cancel := context.WithCancel(ctx)
	s.cancels = append(s.cancels, cancel)
	s.watchers.Go(func() {
		defer cancel()
		if strings.TrimSpace(launchURL) != "" {
			_ = s.HandleURL(wctx, launchURL)
		}
		for {
			select {
			case <-wctx.Done():
				return
			case raw, ok := <-urls:
				if !ok {
					return
				}
				_ = s.HandleURL(wctx, raw)
			}
		}
	})
	return nil
}

// HandleNotification loads the order named by the "orderId" entry of a tapped push
// notification's data. Payloads without one are ignored.
func (s *Store) HandleNotification(ctx context.Context, data map[string]any) error {
	id := notificationOrderID(data)
	if id == "" {
		observability.Log().Debug("notification without order id ignored")
		return nil
	}
	return s.LoadOrderByID(ctx, id)
}

func notificationOrderID(data map[string]any) string {
	switch v := data["orderId"].(type) {
	case string:
		return strings.TrimSpace(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case int:
		return strconv.Itoa(v)
	case int64:
		return strconv.FormatInt(v, 10)
	default:
		return ""
	}
}

// UpdateStatus asks the backend to move the selected order to status. On success the
// returned order replaces the selection; on failure the displayed status is kept.
// Cancelled orders are refused without a request.
func (s *Store) UpdateStatus(ctx context.Context, status schema.OrderStatus, actor string) error {
	current, ok := s.Selected()
	if !ok {
		return errs.New(component, errs.CodeInvalid, errs.WithMessage("no order selected"))
	}
	if !current.CanTransition() {
		return errs.New(component, errs.CodeInvalid,
			errs.WithMessage("order is cancelled"),
			errs.WithField("order_id", current.ID))
	}

	res := s.gw.SetOrderStatus(ctx, current.ID, status, actor)
	updated, err := res.Get()
	if err == nil && updated == nil {
		err = errs.New(component, errs.CodeNotFound, errs.WithField("order_id", current.ID))
	}
	if err != nil {
		observability.Log().Error("status update failed",
			observability.F("order_id", current.ID),
			observability.F("status", string(status)),
			observability.F("error", err))
		return err
	}
	s.replace(*updated)
	return nil
}
