// Package cart keeps one client's cart consistent between the in-memory
// aggregate, the local cart cache and the remote cart store.
//
// Every mutation is written to the local cache before it returns. Remote
// write-back is debounced and only happens for authenticated owners; the
// remote store is last-writer-wins per (customer, product).
package cart

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/foodcourt/storefront/internal/domain/cart"
	"github.com/foodcourt/storefront/internal/domain/shared"
	"github.com/foodcourt/storefront/internal/infrastructure/scheduler"
	"github.com/foodcourt/storefront/internal/infrastructure/telemetry"
)

const (
	DefaultDebounceWindow = 500 * time.Millisecond
	DefaultRemoteTimeout  = 5 * time.Second
)

// ErrControllerClosed is returned by operations on a closed controller
var ErrControllerClosed = shared.NewDomainError(shared.CodeInvalidState, "cart session is closed")

// SyncController owns the cart of one client session
type SyncController struct {
	local         cart.LocalCache
	remote        cart.RemoteStore
	logger        *zap.Logger
	metrics       *telemetry.SyncMetrics
	now           func() time.Time
	window        time.Duration
	remoteTimeout time.Duration

	// identityMu serializes SetIdentity; pushMu serializes remote writes
	identityMu sync.Mutex
	pushMu     sync.Mutex

	mu         sync.Mutex
	cart       *cart.Cart
	status     SyncStatus
	pushErr    error
	lastActive time.Time
	closed     bool
	// pending holds a guest cart whose merge waits for the remote store
	pending *pendingMerge

	debouncer *scheduler.Debouncer
}

// pendingMerge is a guest-to-user merge that could not read the user's remote
// cart. The guest cache entry is kept until the merge completes.
type pendingMerge struct {
	owner cart.Owner
	guest []cart.CartLine
}

// Option configures a SyncController
type Option func(*SyncController)

// WithLogger sets the logger
func WithLogger(logger *zap.Logger) Option {
	return func(c *SyncController) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithDebounceWindow sets the quiet period before a remote write-back
func WithDebounceWindow(d time.Duration) Option {
	return func(c *SyncController) {
		if d > 0 {
			c.window = d
		}
	}
}

// WithRemoteTimeout bounds each remote store call
func WithRemoteTimeout(d time.Duration) Option {
	return func(c *SyncController) {
		if d > 0 {
			c.remoteTimeout = d
		}
	}
}

// WithMetrics records write-backs and merges
func WithMetrics(m *telemetry.SyncMetrics) Option {
	return func(c *SyncController) {
		c.metrics = m
	}
}

// WithClock replaces time.Now
func WithClock(now func() time.Time) Option {
	return func(c *SyncController) {
		c.now = now
	}
}

// NewSyncController creates a controller holding an empty guest cart. Call
// Load to read the guest cart from the local cache.
func NewSyncController(local cart.LocalCache, remote cart.RemoteStore, opts ...Option) *SyncController {
	c := &SyncController{
		local:         local,
		remote:        remote,
		logger:        zap.NewNop(),
		now:           time.Now,
		window:        DefaultDebounceWindow,
		remoteTimeout: DefaultRemoteTimeout,
		cart:          cart.New(cart.GuestOwner),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.status = SyncStatus{Owner: cart.GuestOwner.String()}
	c.lastActive = c.now()
	c.debouncer = scheduler.NewDebouncer(c.window, c.writeBack, c.logger)
	return c
}

// ==================== Identity ====================

// Load reads the cart of the current owner: the local cache for guests, the
// remote store (falling back to the cache) for users.
func (c *SyncController) Load(ctx context.Context) error {
	c.identityMu.Lock()
	defer c.identityMu.Unlock()

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrControllerClosed
	}
	owner := c.cart.Owner()
	merging := c.pending != nil
	c.mu.Unlock()

	if merging {
		if err := c.pushChanges(ctx); err != nil && shared.KindOf(err) != shared.KindNetwork {
			return err
		}
		return nil
	}

	lines, fallbackErr, err := c.loadLines(ctx, owner)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.cart = cart.FromLines(owner, lines)
	c.resetStatus(owner, fallbackErr)
	return nil
}

// SetIdentity switches the cart to a new owner. Pending writes of the old
// owner are flushed first. Moving from guest to user merges the guest cart
// into the user's remote cart exactly once and discards the guest cart. When
// the remote cart cannot be read the merge is deferred to the next write-back
// and the guest cart stays cached.
func (c *SyncController) SetIdentity(ctx context.Context, owner cart.Owner) error {
	c.identityMu.Lock()
	defer c.identityMu.Unlock()

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrControllerClosed
	}
	current := c.cart.Owner()
	c.mu.Unlock()

	if current == owner {
		return nil
	}

	if err := c.Flush(ctx); err != nil {
		c.logger.Warn("flush before identity change failed",
			zap.String("from", current.String()),
			zap.String("to", owner.String()),
			zap.Error(err),
		)
	}

	lines, fallbackErr, err := c.loadLines(ctx, owner)
	if err != nil {
		return err
	}

	c.mu.Lock()
	c.pending = nil
	merging := current.IsGuest() && !owner.IsGuest()
	var guestLines []cart.CartLine
	if merging {
		guestLines = c.cart.Lines()
	}

	switch {
	case len(guestLines) == 0:
		c.cart = cart.FromLines(owner, lines)
	case fallbackErr != nil:
		// shown merged with the cached copy; nothing is written until the
		// remote cart has been read
		c.cart = cart.FromLines(owner, cart.Merge(lines, guestLines))
		c.pending = &pendingMerge{owner: owner, guest: guestLines}
		c.logger.Warn("guest cart merge deferred, remote cart unreachable",
			zap.String("owner", owner.String()),
			zap.Int("guest_lines", len(guestLines)),
		)
	default:
		merged := cart.Merge(lines, guestLines)
		c.cart = cart.FromLines(owner, merged)
		changed := make([]cart.LineChange, 0)
		for _, l := range cart.Diff(lines, merged) {
			changed = append(changed, cart.LineChange{ProductID: l.ProductID})
		}
		c.cart.Restore(cart.Changes{Lines: changed})
		c.metrics.Merge(ctx)
		c.logger.Info("guest cart merged",
			zap.String("owner", owner.String()),
			zap.Int("guest_lines", len(guestLines)),
			zap.Int("changed_lines", len(changed)),
		)
	}
	c.resetStatus(owner, fallbackErr)
	c.status.PendingRemote = c.cart.Dirty() || c.pending != nil
	c.lastActive = c.now()
	if c.pending == nil {
		if !owner.IsGuest() {
			c.writeLocal(ctx, owner, c.cart.Lines())
		}
		if merging {
			c.removeLocal(ctx, cart.GuestOwner)
		}
	}
	dirty := c.cart.Dirty()
	c.mu.Unlock()

	if dirty {
		// the merge itself succeeded; a failed push stays pending
		_ = c.pushChanges(ctx)
	}
	return nil
}

// Owner returns the current owner
func (c *SyncController) Owner() cart.Owner {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cart.Owner()
}

// loadLines reads the lines of owner. fallbackErr is set when the remote
// store was unreachable and the local cache was used instead.
func (c *SyncController) loadLines(ctx context.Context, owner cart.Owner) (lines []cart.CartLine, fallbackErr, err error) {
	if owner.IsGuest() {
		return c.readLocal(ctx, owner), nil, nil
	}

	rctx, cancel := context.WithTimeout(ctx, c.remoteTimeout)
	defer cancel()
	lines, err = c.remote.ListActive(rctx, owner.UserID())
	if err == nil {
		return lines, nil, nil
	}
	if shared.KindOf(err) != shared.KindNetwork {
		return nil, nil, err
	}

	c.logger.Warn("remote cart unreachable, using local cache",
		zap.String("owner", owner.String()),
		zap.Error(err),
	)
	return c.readLocal(ctx, owner), err, nil
}

// resetStatus starts a fresh status for owner. Callers hold mu.
func (c *SyncController) resetStatus(owner cart.Owner, fallbackErr error) {
	c.status = SyncStatus{Owner: owner.String(), Stale: fallbackErr != nil}
	if fallbackErr != nil {
		c.recordError(fallbackErr)
	}
}

// ==================== Mutations ====================

// Add puts a product into the cart or raises its quantity
func (c *SyncController) Add(ctx context.Context, line cart.CartLine) error {
	if err := line.Validate(); err != nil {
		return err
	}
	return c.mutate(ctx, func(ct *cart.Cart) { ct.Add(line) })
}

// Remove deletes a product from the cart
func (c *SyncController) Remove(ctx context.Context, productID uuid.UUID) error {
	return c.mutate(ctx, func(ct *cart.Cart) { ct.Remove(productID) })
}

// Increment raises a product's quantity by one
func (c *SyncController) Increment(ctx context.Context, productID uuid.UUID) error {
	return c.mutate(ctx, func(ct *cart.Cart) { ct.Increment(productID) })
}

// Decrement lowers a product's quantity by one, removing it at zero
func (c *SyncController) Decrement(ctx context.Context, productID uuid.UUID) error {
	return c.mutate(ctx, func(ct *cart.Cart) { ct.Decrement(productID) })
}

// Clear empties the cart
func (c *SyncController) Clear(ctx context.Context) error {
	return c.mutate(ctx, func(ct *cart.Cart) { ct.Clear() })
}

// RemoveVendor deletes one vendor's lines and returns them
func (c *SyncController) RemoveVendor(ctx context.Context, vendorID uuid.UUID) ([]cart.CartLine, error) {
	var removed []cart.CartLine
	err := c.mutate(ctx, func(ct *cart.Cart) { removed = ct.RemoveVendor(vendorID) })
	return removed, err
}

func (c *SyncController) mutate(ctx context.Context, fn func(*cart.Cart)) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrControllerClosed
	}
	fn(c.cart)
	c.lastActive = c.now()
	if !c.cart.Dirty() {
		c.mu.Unlock()
		return nil
	}

	owner := c.cart.Owner()
	// the user cache must not hold guest lines a later merge would add again
	if c.pending == nil {
		c.writeLocal(ctx, owner, c.cart.Lines())
	}
	if owner.IsGuest() {
		c.cart.TakeChanges()
		c.mu.Unlock()
		return nil
	}
	c.status.PendingRemote = true
	c.mu.Unlock()

	if err := c.debouncer.Trigger(); err != nil {
		return ErrControllerClosed
	}
	return nil
}

// ==================== Remote write-back ====================

// Flush writes pending changes to the remote store now
func (c *SyncController) Flush(ctx context.Context) error {
	if c.debouncer.Flush(ctx) {
		c.mu.Lock()
		defer c.mu.Unlock()
		return c.pushErr
	}
	return c.pushChanges(ctx)
}

func (c *SyncController) writeBack(ctx context.Context) {
	_ = c.pushChanges(ctx)
}

// pushChanges drains the dirty signal and applies it remotely. On failure the
// changes are put back so the next flush retries them.
func (c *SyncController) pushChanges(ctx context.Context) error {
	c.pushMu.Lock()
	defer c.pushMu.Unlock()

	if err := c.completeMerge(ctx); err != nil {
		return err
	}

	c.mu.Lock()
	owner := c.cart.Owner()
	if owner.IsGuest() || !c.cart.Dirty() {
		c.cart.TakeChanges()
		c.status.PendingRemote = false
		c.pushErr = nil
		c.mu.Unlock()
		return nil
	}
	changes := c.cart.TakeChanges()
	var (
		upserts []cart.CartLine
		deletes []uuid.UUID
	)
	for _, lc := range changes.Lines {
		if lc.Removed {
			deletes = append(deletes, lc.ProductID)
			continue
		}
		if l, ok := c.cart.Line(lc.ProductID); ok {
			upserts = append(upserts, l)
		}
	}
	c.mu.Unlock()

	start := time.Now()
	err := c.applyRemote(ctx, owner.UserID(), changes.Cleared, deletes, upserts)
	c.metrics.RemoteWrite(ctx, time.Since(start), string(shared.KindOf(err)))

	c.mu.Lock()
	defer c.mu.Unlock()
	c.pushErr = err
	if err != nil {
		if c.cart.Owner() == owner {
			c.cart.Restore(changes)
		}
		c.recordError(err)
		c.status.PendingRemote = c.cart.Dirty()
		c.logger.Warn("cart write-back failed",
			zap.String("owner", owner.String()),
			zap.String("kind", string(shared.KindOf(err))),
			zap.Error(err),
		)
		return err
	}

	now := c.now()
	c.status.LastSyncAt = &now
	c.status.LastError = ""
	c.status.LastErrorKind = shared.KindNone
	c.status.LastErrorAt = nil
	c.status.Stale = false
	c.status.PendingRemote = c.cart.Dirty()
	c.logger.Debug("cart written back",
		zap.String("owner", owner.String()),
		zap.Bool("cleared", changes.Cleared),
		zap.Int("upserts", len(upserts)),
		zap.Int("deletes", len(deletes)),
	)
	return nil
}

// completeMerge finishes a deferred merge against the remote cart. Lines
// mutated since login keep their local state; every other line is the union
// of the remote and guest carts. The result is left dirty for the push.
func (c *SyncController) completeMerge(ctx context.Context) error {
	c.mu.Lock()
	pending := c.pending
	c.mu.Unlock()
	if pending == nil {
		return nil
	}

	rctx, cancel := context.WithTimeout(ctx, c.remoteTimeout)
	remoteLines, err := c.remote.ListActive(rctx, pending.owner.UserID())
	cancel()

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.pending != pending {
		return nil
	}
	if err != nil {
		c.pushErr = err
		c.recordError(err)
		c.status.PendingRemote = true
		c.logger.Warn("guest cart merge still pending",
			zap.String("owner", pending.owner.String()),
			zap.Error(err),
		)
		return err
	}

	touched := c.cart.TakeChanges()
	merged := cart.Merge(remoteLines, pending.guest)
	if touched.Cleared {
		merged = nil
	}
	merged = overlay(merged, c.cart, touched.Lines)

	c.cart = cart.FromLines(pending.owner, merged)
	c.cart.Restore(cart.Changes{Lines: remoteChanges(remoteLines, merged)})
	c.pending = nil
	c.status.Stale = false
	c.writeLocal(ctx, pending.owner, merged)
	c.removeLocal(ctx, cart.GuestOwner)
	c.metrics.Merge(ctx)
	c.logger.Info("deferred guest cart merge completed",
		zap.String("owner", pending.owner.String()),
		zap.Int("guest_lines", len(pending.guest)),
	)
	return nil
}

// overlay replaces the touched products of base with their state in current
func overlay(base []cart.CartLine, current *cart.Cart, touched []cart.LineChange) []cart.CartLine {
	index := make(map[uuid.UUID]int, len(base))
	for i, l := range base {
		index[l.ProductID] = i
	}
	gone := make(map[uuid.UUID]bool)
	for _, lc := range touched {
		l, ok := current.Line(lc.ProductID)
		i, exists := index[lc.ProductID]
		switch {
		case !ok:
			gone[lc.ProductID] = true
		case exists:
			base[i] = l
		default:
			index[l.ProductID] = len(base)
			base = append(base, l)
		}
	}
	out := base[:0]
	for _, l := range base {
		if !gone[l.ProductID] {
			out = append(out, l)
		}
	}
	return out
}

// remoteChanges lists what turns the remote lines into next
func remoteChanges(remote, next []cart.CartLine) []cart.LineChange {
	var out []cart.LineChange
	for _, l := range cart.Diff(remote, next) {
		out = append(out, cart.LineChange{ProductID: l.ProductID})
	}
	kept := make(map[uuid.UUID]bool, len(next))
	for _, l := range next {
		kept[l.ProductID] = true
	}
	for _, l := range remote {
		if !kept[l.ProductID] {
			out = append(out, cart.LineChange{ProductID: l.ProductID, Removed: true})
		}
	}
	return out
}

func (c *SyncController) applyRemote(ctx context.Context, customerID uuid.UUID, cleared bool, deletes []uuid.UUID, upserts []cart.CartLine) error {
	ctx, cancel := context.WithTimeout(ctx, c.remoteTimeout)
	defer cancel()

	if cleared {
		if err := c.remote.DeleteAll(ctx, customerID); err != nil {
			return err
		}
	}
	if len(deletes) > 0 {
		if err := c.remote.Delete(ctx, customerID, deletes...); err != nil {
			return err
		}
	}
	if len(upserts) > 0 {
		if err := c.remote.Upsert(ctx, customerID, upserts...); err != nil {
			return err
		}
	}
	return nil
}

// ==================== Local cache ====================

// readLocal returns the cached lines of owner. A missing, unreadable or
// foreign snapshot yields no lines.
func (c *SyncController) readLocal(ctx context.Context, owner cart.Owner) []cart.CartLine {
	data, found, err := c.local.Get(ctx, owner.CacheKey())
	if err != nil {
		c.logger.Warn("cart cache read failed", zap.String("key", owner.CacheKey()), zap.Error(err))
		return nil
	}
	if !found {
		return nil
	}
	snap, err := cart.DecodeSnapshot(data)
	if err != nil {
		c.logger.Warn("discarding unreadable cart snapshot", zap.String("key", owner.CacheKey()), zap.Error(err))
		return nil
	}
	if snap.Owner != owner.String() {
		return nil
	}
	return snap.Lines
}

// writeLocal stores the cart snapshot. Failures are logged and swallowed;
// the in-memory cart stays authoritative. Callers hold mu.
func (c *SyncController) writeLocal(ctx context.Context, owner cart.Owner, lines []cart.CartLine) {
	data, err := cart.EncodeSnapshot(owner, lines, c.now())
	if err == nil {
		err = c.local.Set(ctx, owner.CacheKey(), data)
	}
	if err != nil {
		perr := shared.NewPersistenceError("cart cache write failed", err)
		c.recordError(perr)
		c.logger.Warn("cart cache write failed", zap.String("key", owner.CacheKey()), zap.Error(err))
	}
}

func (c *SyncController) removeLocal(ctx context.Context, owner cart.Owner) {
	if err := c.local.Remove(ctx, owner.CacheKey()); err != nil {
		c.logger.Warn("cart cache remove failed", zap.String("key", owner.CacheKey()), zap.Error(err))
	}
}

// recordError stores err in the status. Callers hold mu.
func (c *SyncController) recordError(err error) {
	now := c.now()
	c.status.LastError = err.Error()
	c.status.LastErrorKind = shared.KindOf(err)
	c.status.LastErrorAt = &now
}

// ==================== Reads ====================

// Snapshot returns a copy of the cart
func (c *SyncController) Snapshot() CartView {
	c.mu.Lock()
	defer c.mu.Unlock()
	return CartView{
		Owner:     c.cart.Owner(),
		Lines:     c.cart.Lines(),
		Total:     c.cart.Total(),
		ItemCount: c.cart.ItemCount(),
	}
}

// Groups returns the cart grouped by vendor
func (c *SyncController) Groups() []cart.VendorGroup {
	return cart.GroupByVendor(c.Snapshot().Lines)
}

// Group returns one vendor's share of the cart
func (c *SyncController) Group(vendorID uuid.UUID) (cart.VendorGroup, bool) {
	return cart.ForVendor(c.Snapshot().Lines, vendorID)
}

// Status returns the write-back status
func (c *SyncController) Status() SyncStatus {
	c.mu.Lock()
	s := c.status
	s.PendingRemote = s.PendingRemote || c.cart.Dirty()
	c.mu.Unlock()
	if c.debouncer.Pending() {
		s.PendingRemote = true
	}
	return s
}

// LastActive returns the time of the last mutation or identity change
func (c *SyncController) LastActive() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastActive
}

// Close stops the debouncer and writes anything still pending. Further
// operations return ErrControllerClosed.
func (c *SyncController) Close(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.mu.Unlock()

	c.debouncer.Stop(ctx, false)
	return c.pushChanges(ctx)
}
