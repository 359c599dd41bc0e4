package order

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/foodcourt/storefront/internal/domain/feed"
	"github.com/foodcourt/storefront/internal/domain/order"
	"github.com/foodcourt/storefront/internal/domain/shared"
	"github.com/foodcourt/storefront/internal/infrastructure/telemetry"
)

// DefaultPollInterval is the polling period of order views
const DefaultPollInterval = 5 * time.Second

// UpdateSource tells what produced a view update
type UpdateSource string

const (
	SourceInitial UpdateSource = "initial"
	SourceFeed    UpdateSource = "feed"
	SourcePoll    UpdateSource = "poll"
)

// ViewUpdate is a snapshot published by an order view. Detail views fill
// Order and Tracking; active-order views fill Orders.
type ViewUpdate struct {
	Source   UpdateSource
	Order    *order.Order
	Tracking *order.DeliveryTracking
	Orders   []*order.Order
	// Deleted is set by a detail view once its order no longer exists; no
	// further updates follow.
	Deleted bool
}

// ViewConfig configures order views
type ViewConfig struct {
	PollInterval time.Duration
	// Buffer is the number of undelivered updates kept per view; when full the
	// oldest is dropped
	Buffer int
}

// ViewFactory opens live order views backed by the change feed and a
// polling fallback
type ViewFactory struct {
	orders   order.Repository
	tracking order.TrackingRepository
	feed     feed.Feed
	config   ViewConfig
	metrics  *telemetry.SyncMetrics
	logger   *zap.Logger
}

// NewViewFactory creates a view factory. A nil feed leaves views on polling
// alone.
func NewViewFactory(orders order.Repository, tracking order.TrackingRepository, f feed.Feed, config ViewConfig, logger *zap.Logger) *ViewFactory {
	if logger == nil {
		logger = zap.NewNop()
	}
	if config.PollInterval <= 0 {
		config.PollInterval = DefaultPollInterval
	}
	if config.Buffer <= 0 {
		config.Buffer = 8
	}
	return &ViewFactory{
		orders:   orders,
		tracking: tracking,
		feed:     f,
		config:   config,
		logger:   logger,
	}
}

// SetMetrics records applied feed events and poll reconciliations
func (f *ViewFactory) SetMetrics(m *telemetry.SyncMetrics) {
	f.metrics = m
}

// ==================== Loop ====================

// viewHandler is the per-view logic driven by a viewLoop. Both methods
// return true when the view has ended.
type viewHandler interface {
	apply(ctx context.Context, c feed.Change) bool
	poll(ctx context.Context) bool
}

// viewLoop owns the subscriptions, the polling ticker and the goroutine
// of one view
type viewLoop struct {
	factory  *ViewFactory
	logger   *zap.Logger
	channels []feed.Channel
	updates  chan ViewUpdate

	ctx       context.Context
	cancel    context.CancelFunc
	done      chan struct{}
	closeOnce sync.Once
}

func newViewLoop(f *ViewFactory, logger *zap.Logger) *viewLoop {
	ctx, cancel := context.WithCancel(context.Background())
	return &viewLoop{
		factory: f,
		logger:  logger,
		updates: make(chan ViewUpdate, f.config.Buffer),
		ctx:     ctx,
		cancel:  cancel,
		done:    make(chan struct{}),
	}
}

// subscribe opens the subscriptions for the lifetime of the view. A failed
// subscription is logged and left to the polling fallback.
func (l *viewLoop) subscribe(subs ...feed.Subscription) {
	if l.factory.feed == nil {
		return
	}
	for _, sub := range subs {
		ch, err := l.factory.feed.Subscribe(l.ctx, sub)
		if err != nil {
			l.logger.Warn("change feed subscription failed, relying on polling",
				zap.String("entity", string(sub.Entity)),
				zap.Error(err),
			)
			continue
		}
		l.channels = append(l.channels, ch)
	}
}

// merged forwards every subscription into one channel until the loop ends
func (l *viewLoop) merged() <-chan feed.Change {
	out := make(chan feed.Change)
	var wg sync.WaitGroup
	for _, ch := range l.channels {
		wg.Add(1)
		go func(in <-chan feed.Change) {
			defer wg.Done()
			for {
				select {
				case <-l.ctx.Done():
					return
				case c, ok := <-in:
					if !ok {
						return
					}
					select {
					case out <- c:
					case <-l.ctx.Done():
						return
					}
				}
			}
		}(ch.C())
	}
	go func() {
		wg.Wait()
		close(out)
	}()
	return out
}

func (l *viewLoop) start(h viewHandler) {
	changes := l.merged()
	go func() {
		defer close(l.done)
		defer close(l.updates)
		defer l.cancel()

		ticker := time.NewTicker(l.factory.config.PollInterval)
		defer ticker.Stop()

		for {
			select {
			case <-l.ctx.Done():
				return
			case c, ok := <-changes:
				if !ok {
					// every channel closed; keep polling
					changes = nil
					continue
				}
				if h.apply(l.ctx, c) {
					return
				}
			case <-ticker.C:
				if h.poll(l.ctx) {
					return
				}
			}
		}
	}()
}

// emit delivers an update without blocking; when the buffer is full the
// oldest update is dropped. Only the loop goroutine emits after start.
func (l *viewLoop) emit(u ViewUpdate) {
	select {
	case l.updates <- u:
		return
	default:
	}
	select {
	case <-l.updates:
	default:
	}
	select {
	case l.updates <- u:
	default:
	}
}

// close tears the view down synchronously: the loop has exited and every
// subscription is closed when it returns
func (l *viewLoop) close() error {
	var errs []error
	l.closeOnce.Do(func() {
		l.cancel()
		<-l.done
		for _, ch := range l.channels {
			if err := ch.Close(); err != nil {
				errs = append(errs, err)
			}
		}
	})
	return errors.Join(errs...)
}

// abort releases a view that failed to open before its loop started
func (l *viewLoop) abort() {
	l.closeOnce.Do(func() {
		l.cancel()
		close(l.done)
		close(l.updates)
		for _, ch := range l.channels {
			_ = ch.Close()
		}
	})
}

func (l *viewLoop) recordFeed(ctx context.Context, c feed.Change) {
	l.factory.metrics.FeedEvent(ctx, string(c.Entity), string(c.Type))
}

// ==================== Detail view ====================

// DetailView follows one order, its items and its delivery tracking
type DetailView struct {
	loop    *viewLoop
	orderID uuid.UUID

	mu       sync.Mutex
	current  *order.Order
	tracking *order.DeliveryTracking
	deleted  bool
}

// OpenDetail opens a view of one order. The requester must be a party of
// the order.
func (f *ViewFactory) OpenDetail(ctx context.Context, orderID uuid.UUID, req Requester) (*DetailView, error) {
	v := &DetailView{
		loop:    newViewLoop(f, f.logger.With(zap.String("view", "detail"), zap.String("order_id", orderID.String()))),
		orderID: orderID,
	}
	id := orderID.String()
	v.loop.subscribe(
		feed.Subscription{Entity: feed.EntityOrder, Filter: feed.Eq("id", id)},
		feed.Subscription{Entity: feed.EntityOrderItem, Filter: feed.Eq("order_id", id)},
		feed.Subscription{Entity: feed.EntityDeliveryTracking, Filter: feed.Eq("order_id", id)},
	)

	o, err := f.orders.FindByID(ctx, orderID)
	if err == nil {
		err = authorize(o, req)
	}
	var t *order.DeliveryTracking
	if err == nil {
		t, err = f.findTracking(ctx, orderID)
	}
	if err != nil {
		v.loop.abort()
		return nil, err
	}

	v.current = o
	v.tracking = t
	v.loop.emit(v.snapshotLocked(SourceInitial))
	v.loop.start(v)
	return v, nil
}

func (f *ViewFactory) findTracking(ctx context.Context, orderID uuid.UUID) (*order.DeliveryTracking, error) {
	t, err := f.tracking.FindTracking(ctx, orderID)
	if errors.Is(err, shared.ErrNotFound) {
		return nil, nil
	}
	return t, err
}

// Updates delivers snapshots. It is closed when the view ends.
func (v *DetailView) Updates() <-chan ViewUpdate {
	return v.loop.updates
}

// Snapshot returns the current state
func (v *DetailView) Snapshot() ViewUpdate {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.snapshotLocked(SourceInitial)
}

func (v *DetailView) snapshotLocked(source UpdateSource) ViewUpdate {
	u := ViewUpdate{Source: source, Deleted: v.deleted}
	if v.current != nil {
		u.Order = v.current.Clone()
	}
	if v.tracking != nil {
		t := *v.tracking
		u.Tracking = &t
	}
	return u
}

// Close unsubscribes and stops polling. It returns after the loop exited.
func (v *DetailView) Close() error {
	return v.loop.close()
}

func (v *DetailView) publish(source UpdateSource) {
	v.mu.Lock()
	u := v.snapshotLocked(source)
	v.mu.Unlock()
	v.loop.emit(u)
}

func (v *DetailView) markDeleted(source UpdateSource) bool {
	v.mu.Lock()
	v.deleted = true
	v.mu.Unlock()
	v.publish(source)
	v.loop.logger.Info("order deleted, closing view")
	return true
}

func (v *DetailView) apply(ctx context.Context, c feed.Change) bool {
	v.loop.recordFeed(ctx, c)
	switch c.Entity {
	case feed.EntityOrder:
		if c.Type == feed.EventDelete {
			return v.markDeleted(SourceFeed)
		}
		row, err := feed.DecodeRow[feed.OrderRow](c.New)
		if err != nil {
			v.loop.logger.Debug("ignoring malformed order row", zap.Error(err))
			return false
		}
		v.mu.Lock()
		candidate := applyOrderRow(v.current, row)
		if v.current.IsNewerThan(candidate) {
			v.mu.Unlock()
			return false
		}
		v.current = candidate
		v.mu.Unlock()

	case feed.EntityOrderItem:
		// items are refetched as a whole, never merged row by row
		items, err := v.loop.factory.orders.FindItems(ctx, v.orderID)
		if err != nil {
			v.loop.logger.Warn("refetching order items failed", zap.Error(err))
			return false
		}
		v.mu.Lock()
		next := v.current.Clone()
		next.Items = items
		v.current = next
		v.mu.Unlock()

	case feed.EntityDeliveryTracking:
		v.mu.Lock()
		if c.Type == feed.EventDelete {
			v.tracking = nil
			v.mu.Unlock()
			break
		}
		row, err := feed.DecodeRow[feed.DeliveryTrackingRow](c.New)
		if err != nil {
			v.mu.Unlock()
			v.loop.logger.Debug("ignoring malformed tracking row", zap.Error(err))
			return false
		}
		if v.tracking != nil && v.tracking.UpdatedAt.After(row.UpdatedAt) {
			v.mu.Unlock()
			return false
		}
		v.tracking = &order.DeliveryTracking{
			ID:               row.ID,
			OrderID:          row.OrderID,
			Status:           row.Status,
			EstimatedMinutes: row.EstimatedMinutes,
			UpdatedAt:        row.UpdatedAt,
		}
		v.mu.Unlock()

	default:
		return false
	}
	v.publish(SourceFeed)
	return false
}

func (v *DetailView) poll(ctx context.Context) bool {
	f := v.loop.factory
	remote, err := f.orders.FindByID(ctx, v.orderID)
	if errors.Is(err, shared.ErrNotFound) {
		return v.markDeleted(SourcePoll)
	}
	if err != nil {
		v.loop.logger.Debug("order poll failed", zap.Error(err))
		return false
	}
	t, terr := f.findTracking(ctx, v.orderID)

	v.mu.Lock()
	replaced := false
	if remote.IsNewerThan(v.current) || len(remote.Items) != len(v.current.Items) {
		v.current = remote
		replaced = true
	}
	if terr == nil && trackingChanged(v.tracking, t) {
		v.tracking = t
		replaced = true
	}
	v.mu.Unlock()

	if replaced {
		f.metrics.PollReconciliation(ctx, attribute.String("view", "detail"))
		v.publish(SourcePoll)
	}
	return false
}

func trackingChanged(local, remote *order.DeliveryTracking) bool {
	switch {
	case local == nil && remote == nil:
		return false
	case local == nil || remote == nil:
		return true
	default:
		return remote.UpdatedAt.After(local.UpdatedAt)
	}
}

// ==================== Active orders view ====================

// ActiveOrdersView follows the non-terminal orders of one customer
type ActiveOrdersView struct {
	loop       *viewLoop
	customerID uuid.UUID

	mu     sync.Mutex
	orders map[uuid.UUID]*order.Order
}

// activeSubscriptions scopes the order and item feeds of a customer
func activeSubscriptions(customerID uuid.UUID) []feed.Subscription {
	byCustomer := feed.Eq("customer_id", customerID.String())
	return []feed.Subscription{
		{Entity: feed.EntityOrder, Filter: byCustomer},
		{Entity: feed.EntityOrderItem, Filter: byCustomer},
	}
}

// OpenActive opens the active-orders view of a customer
func (f *ViewFactory) OpenActive(ctx context.Context, customerID uuid.UUID) (*ActiveOrdersView, error) {
	if customerID == uuid.Nil {
		return nil, shared.ErrUnauthorized
	}
	v := &ActiveOrdersView{
		loop:       newViewLoop(f, f.logger.With(zap.String("view", "active"), zap.String("customer_id", customerID.String()))),
		customerID: customerID,
		orders:     make(map[uuid.UUID]*order.Order),
	}
	v.loop.subscribe(activeSubscriptions(customerID)...)

	list, err := f.orders.FindActiveByCustomer(ctx, customerID)
	if err != nil {
		v.loop.abort()
		return nil, err
	}
	for _, o := range list {
		v.orders[o.ID] = o
	}
	v.loop.emit(v.snapshotLocked(SourceInitial))
	v.loop.start(v)
	return v, nil
}

// Updates delivers snapshots. It is closed when the view ends.
func (v *ActiveOrdersView) Updates() <-chan ViewUpdate {
	return v.loop.updates
}

// Snapshot returns the current list, newest first
func (v *ActiveOrdersView) Snapshot() ViewUpdate {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.snapshotLocked(SourceInitial)
}

func (v *ActiveOrdersView) snapshotLocked(source UpdateSource) ViewUpdate {
	list := make([]*order.Order, 0, len(v.orders))
	for _, o := range v.orders {
		list = append(list, o.Clone())
	}
	sort.Slice(list, func(i, j int) bool {
		return list[i].CreatedAt.After(list[j].CreatedAt)
	})
	return ViewUpdate{Source: source, Orders: list}
}

// Close unsubscribes and stops polling. It returns after the loop exited.
func (v *ActiveOrdersView) Close() error {
	return v.loop.close()
}

func (v *ActiveOrdersView) publish(source UpdateSource) {
	v.mu.Lock()
	u := v.snapshotLocked(source)
	v.mu.Unlock()
	v.loop.emit(u)
}

func (v *ActiveOrdersView) apply(ctx context.Context, c feed.Change) bool {
	switch c.Entity {
	case feed.EntityOrder:
		v.loop.recordFeed(ctx, c)
		if !v.applyOrder(ctx, c) {
			return false
		}
	case feed.EntityOrderItem:
		row, err := feed.DecodeRow[feed.OrderItemRow](c.Row())
		if err != nil {
			return false
		}
		v.mu.Lock()
		_, tracked := v.orders[row.OrderID]
		v.mu.Unlock()
		if !tracked {
			return false
		}
		v.loop.recordFeed(ctx, c)
		items, err := v.loop.factory.orders.FindItems(ctx, row.OrderID)
		if err != nil {
			v.loop.logger.Warn("refetching order items failed", zap.Error(err))
			return false
		}
		v.mu.Lock()
		if o, ok := v.orders[row.OrderID]; ok {
			next := o.Clone()
			next.Items = items
			v.orders[row.OrderID] = next
		}
		v.mu.Unlock()
	default:
		return false
	}
	v.publish(SourceFeed)
	return false
}

// applyOrder applies an order row change and reports whether the list changed
func (v *ActiveOrdersView) applyOrder(ctx context.Context, c feed.Change) bool {
	if c.Type == feed.EventDelete {
		id := feed.RowID(c.Old)
		v.mu.Lock()
		defer v.mu.Unlock()
		if _, ok := v.orders[id]; !ok {
			return false
		}
		delete(v.orders, id)
		return true
	}

	row, err := feed.DecodeRow[feed.OrderRow](c.New)
	if err != nil {
		v.loop.logger.Debug("ignoring malformed order row", zap.Error(err))
		return false
	}

	v.mu.Lock()
	existing, ok := v.orders[row.ID]
	v.mu.Unlock()

	if order.Status(row.Status).IsTerminal() {
		if !ok {
			return false
		}
		v.mu.Lock()
		delete(v.orders, row.ID)
		v.mu.Unlock()
		return true
	}

	var next *order.Order
	if ok {
		next = applyOrderRow(existing, row)
		if existing.IsNewerThan(next) {
			return false
		}
	} else {
		// a new order; load its items
		full, err := v.loop.factory.orders.FindByID(ctx, row.ID)
		if err != nil {
			next = orderFromRow(row)
		} else {
			next = full
		}
	}

	v.mu.Lock()
	v.orders[row.ID] = next
	v.mu.Unlock()
	return true
}

func (v *ActiveOrdersView) poll(ctx context.Context) bool {
	f := v.loop.factory
	list, err := f.orders.FindActiveByCustomer(ctx, v.customerID)
	if err != nil {
		v.loop.logger.Debug("active orders poll failed", zap.Error(err))
		return false
	}

	remote := make(map[uuid.UUID]*order.Order, len(list))
	for _, o := range list {
		remote[o.ID] = o
	}

	v.mu.Lock()
	changed := len(remote) != len(v.orders)
	for id, r := range remote {
		local, ok := v.orders[id]
		if !ok || r.IsNewerThan(local) || len(r.Items) != len(local.Items) {
			changed = true
			break
		}
	}
	if changed {
		v.orders = remote
	}
	v.mu.Unlock()

	if changed {
		f.metrics.PollReconciliation(ctx, attribute.String("view", "active"))
		v.publish(SourcePoll)
	}
	return false
}
