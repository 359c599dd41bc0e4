package cart

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"github.com/foodcourt/storefront/internal/domain/cart"
	"github.com/foodcourt/storefront/internal/domain/feed"
	"github.com/foodcourt/storefront/internal/domain/order"
	"github.com/foodcourt/storefront/internal/domain/shared"
)

var errUnreachable = shared.NewNetworkError("remote cart unreachable", errors.New("connection refused"))

// fakeLocal is an in-memory LocalCache whose writes can be made to fail
type fakeLocal struct {
	mu     sync.Mutex
	data   map[string][]byte
	setErr error
}

func newFakeLocal() *fakeLocal {
	return &fakeLocal{data: make(map[string][]byte)}
}

func (f *fakeLocal) Get(_ context.Context, key string) ([]byte, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	d, ok := f.data[key]
	return d, ok, nil
}

func (f *fakeLocal) Set(_ context.Context, key string, data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.setErr != nil {
		return f.setErr
	}
	f.data[key] = data
	return nil
}

func (f *fakeLocal) Remove(_ context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.data, key)
	return nil
}

func (f *fakeLocal) has(key string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.data[key]
	return ok
}

func (f *fakeLocal) snapshot(key string) (cart.Snapshot, bool) {
	f.mu.Lock()
	d, ok := f.data[key]
	f.mu.Unlock()
	if !ok {
		return cart.Snapshot{}, false
	}
	s, err := cart.DecodeSnapshot(d)
	if err != nil {
		return cart.Snapshot{}, false
	}
	return s, true
}

// fakeRemote is an in-memory RemoteStore recording every write
type fakeRemote struct {
	mu            sync.Mutex
	lines         map[uuid.UUID]map[uuid.UUID]cart.CartLine
	upserts       [][]cart.CartLine
	deletes       [][]uuid.UUID
	vendorDeletes []uuid.UUID
	clears        int
	listErr       error
	writeErr      error
}

func newFakeRemote() *fakeRemote {
	return &fakeRemote{lines: make(map[uuid.UUID]map[uuid.UUID]cart.CartLine)}
}

func (f *fakeRemote) seed(customerID uuid.UUID, lines ...cart.CartLine) {
	f.mu.Lock()
	defer f.mu.Unlock()
	m := f.customer(customerID)
	for _, l := range lines {
		m[l.ProductID] = l
	}
}

func (f *fakeRemote) customer(id uuid.UUID) map[uuid.UUID]cart.CartLine {
	m, ok := f.lines[id]
	if !ok {
		m = make(map[uuid.UUID]cart.CartLine)
		f.lines[id] = m
	}
	return m
}

func (f *fakeRemote) setWriteErr(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.writeErr = err
}

func (f *fakeRemote) setListErr(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listErr = err
}

func (f *fakeRemote) ListActive(_ context.Context, customerID uuid.UUID) ([]cart.CartLine, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, f.listErr
	}
	var out []cart.CartLine
	for _, l := range f.lines[customerID] {
		out = append(out, l)
	}
	return out, nil
}

func (f *fakeRemote) Upsert(_ context.Context, customerID uuid.UUID, lines ...cart.CartLine) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.writeErr != nil {
		return f.writeErr
	}
	f.upserts = append(f.upserts, append([]cart.CartLine(nil), lines...))
	m := f.customer(customerID)
	for _, l := range lines {
		m[l.ProductID] = l
	}
	return nil
}

func (f *fakeRemote) Delete(_ context.Context, customerID uuid.UUID, productIDs ...uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.writeErr != nil {
		return f.writeErr
	}
	f.deletes = append(f.deletes, append([]uuid.UUID(nil), productIDs...))
	m := f.customer(customerID)
	for _, id := range productIDs {
		delete(m, id)
	}
	return nil
}

func (f *fakeRemote) DeleteForVendor(_ context.Context, customerID, vendorID uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.writeErr != nil {
		return f.writeErr
	}
	f.vendorDeletes = append(f.vendorDeletes, vendorID)
	m := f.customer(customerID)
	for id, l := range m {
		if l.VendorID == vendorID {
			delete(m, id)
		}
	}
	return nil
}

func (f *fakeRemote) DeleteAll(_ context.Context, customerID uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.writeErr != nil {
		return f.writeErr
	}
	f.clears++
	delete(f.lines, customerID)
	return nil
}

func (f *fakeRemote) quantity(customerID, productID uuid.UUID) (int, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	l, ok := f.lines[customerID][productID]
	return l.Quantity, ok
}

func (f *fakeRemote) upsertCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.upserts)
}

func (f *fakeRemote) writeCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.upserts) + len(f.deletes) + f.clears
}

// MockOrderRepository is a mock implementation of order.Repository
type MockOrderRepository struct {
	mock.Mock
}

func (m *MockOrderRepository) Create(ctx context.Context, o *order.Order) error {
	args := m.Called(ctx, o)
	return args.Error(0)
}

func (m *MockOrderRepository) FindByID(ctx context.Context, id uuid.UUID) (*order.Order, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*order.Order), args.Error(1)
}

func (m *MockOrderRepository) FindItems(ctx context.Context, orderID uuid.UUID) ([]order.OrderItem, error) {
	args := m.Called(ctx, orderID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]order.OrderItem), args.Error(1)
}

func (m *MockOrderRepository) FindActiveByCustomer(ctx context.Context, customerID uuid.UUID) ([]*order.Order, error) {
	args := m.Called(ctx, customerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*order.Order), args.Error(1)
}

func (m *MockOrderRepository) FindByVendor(ctx context.Context, vendorID uuid.UUID, activeOnly bool) ([]*order.Order, error) {
	args := m.Called(ctx, vendorID, activeOnly)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*order.Order), args.Error(1)
}

func (m *MockOrderRepository) FindPendingPayment(ctx context.Context, createdBefore time.Time, limit int) ([]*order.Order, error) {
	args := m.Called(ctx, createdBefore, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*order.Order), args.Error(1)
}

func (m *MockOrderRepository) SaveWithLock(ctx context.Context, o *order.Order) error {
	args := m.Called(ctx, o)
	return args.Error(0)
}

func (m *MockOrderRepository) Delete(ctx context.Context, id uuid.UUID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
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

// recordingFeed collects published changes
type recordingFeed struct {
	mu      sync.Mutex
	changes []feed.Change
}

func (r *recordingFeed) Publish(_ context.Context, c feed.Change) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.changes = append(r.changes, c)
	return nil
}

func (r *recordingFeed) entities() []feed.Entity {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]feed.Entity, len(r.changes))
	for i, c := range r.changes {
		out[i] = c.Entity
	}
	return out
}

func line(vendorID uuid.UUID, price int64, qty int) cart.CartLine {
	return cart.CartLine{
		ProductID: uuid.New(),
		VendorID:  vendorID,
		Name:      "Dish",
		UnitPrice: price,
		Quantity:  qty,
	}
}
