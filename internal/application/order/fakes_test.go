package order

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"github.com/foodcourt/storefront/internal/domain/cart"
	"github.com/foodcourt/storefront/internal/domain/order"
	"github.com/foodcourt/storefront/internal/domain/shared"
)

// memoryRepo is an in-memory order and tracking store with version CAS
type memoryRepo struct {
	mu       sync.Mutex
	orders   map[uuid.UUID]*order.Order
	tracking map[uuid.UUID]*order.DeliveryTracking
	findErr  error
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{
		orders:   make(map[uuid.UUID]*order.Order),
		tracking: make(map[uuid.UUID]*order.DeliveryTracking),
	}
}

func (r *memoryRepo) Create(_ context.Context, o *order.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored := o.Clone()
	stored.ClearDomainEvents()
	r.orders[o.ID] = stored
	return nil
}

func (r *memoryRepo) FindByID(_ context.Context, id uuid.UUID) (*order.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.findErr != nil {
		return nil, r.findErr
	}
	o, ok := r.orders[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	return o.Clone(), nil
}

func (r *memoryRepo) FindItems(_ context.Context, orderID uuid.UUID) ([]order.OrderItem, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[orderID]
	if !ok {
		return nil, nil
	}
	return append([]order.OrderItem(nil), o.Items...), nil
}

func (r *memoryRepo) list(match func(*order.Order) bool) []*order.Order {
	var out []*order.Order
	for _, o := range r.orders {
		if match(o) {
			out = append(out, o.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}

func (r *memoryRepo) FindActiveByCustomer(_ context.Context, customerID uuid.UUID) ([]*order.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.findErr != nil {
		return nil, r.findErr
	}
	return r.list(func(o *order.Order) bool { return o.CustomerID == customerID && o.IsActive() }), nil
}

func (r *memoryRepo) FindByVendor(_ context.Context, vendorID uuid.UUID, activeOnly bool) ([]*order.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.list(func(o *order.Order) bool { return o.VendorID == vendorID && (!activeOnly || o.IsActive()) }), nil
}

func (r *memoryRepo) FindPendingPayment(_ context.Context, createdBefore time.Time, limit int) ([]*order.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := r.list(func(o *order.Order) bool {
		return o.PaymentStatus == order.PaymentPending && o.IsActive() && o.CreatedAt.Before(createdBefore)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *memoryRepo) SaveWithLock(_ context.Context, o *order.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.orders[o.ID]
	if !ok {
		return shared.ErrNotFound
	}
	if stored.Version != o.Version {
		return shared.ErrConcurrencyConflict
	}
	o.Version++
	next := o.Clone()
	next.ClearDomainEvents()
	r.orders[o.ID] = next
	return nil
}

func (r *memoryRepo) Delete(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.orders[id]; !ok {
		return shared.ErrNotFound
	}
	delete(r.orders, id)
	delete(r.tracking, id)
	return nil
}

func (r *memoryRepo) FindTracking(_ context.Context, orderID uuid.UUID) (*order.DeliveryTracking, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tracking[orderID]
	if !ok {
		return nil, shared.ErrNotFound
	}
	c := *t
	return &c, nil
}

func (r *memoryRepo) SaveTracking(_ context.Context, t *order.DeliveryTracking) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, existed := r.tracking[t.OrderID]
	c := *t
	r.tracking[t.OrderID] = &c
	return !existed, nil
}

// mutate changes a stored order behind the service's back, the way another
// writer would, bumping its version
func (r *memoryRepo) mutate(id uuid.UUID, fn func(o *order.Order)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o := r.orders[id]
	fn(o)
	o.Version++
	o.UpdatedAt = o.UpdatedAt.Add(time.Second)
}

// placeOrder stores a new pending order
func placeOrder(r *memoryRepo, customerID, vendorID uuid.UUID, lines ...cart.CartLine) *order.Order {
	if len(lines) == 0 {
		lines = []cart.CartLine{{ProductID: uuid.New(), VendorID: vendorID, Name: "Pho", UnitPrice: 10000, Quantity: 2}}
	}
	o, err := order.NewOrder(customerID, vendorID, lines, "", time.Now())
	if err != nil {
		panic(err)
	}
	_ = r.Create(context.Background(), o)
	o.ClearDomainEvents()
	return o
}

// capturePublisher records domain events
type capturePublisher struct {
	mu     sync.Mutex
	events []shared.DomainEvent
}

func (c *capturePublisher) Publish(_ context.Context, events ...shared.DomainEvent) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, events...)
	return nil
}

func (c *capturePublisher) types() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, len(c.events))
	for i, e := range c.events {
		out[i] = e.EventType()
	}
	return out
}

// MockPaymentGateway is a mock implementation of order.PaymentGateway
type MockPaymentGateway struct {
	mock.Mock
}

func (m *MockPaymentGateway) CreatePaymentLink(ctx context.Context, req order.PaymentLinkRequest) (order.PaymentLink, error) {
	args := m.Called(ctx, req)
	return args.Get(0).(order.PaymentLink), args.Error(1)
}

func (m *MockPaymentGateway) GetPaymentStatus(ctx context.Context, orderID uuid.UUID) (order.PaymentResult, error) {
	args := m.Called(ctx, orderID)
	return args.Get(0).(order.PaymentResult), args.Error(1)
}
