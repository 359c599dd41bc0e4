package cart

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/foodcourt/storefront/internal/domain/cart"
	"github.com/foodcourt/storefront/internal/domain/shared"
)

func newTestController(t *testing.T, local *fakeLocal, remote *fakeRemote, opts ...Option) *SyncController {
	t.Helper()
	opts = append([]Option{WithDebounceWindow(time.Hour)}, opts...)
	c := NewSyncController(local, remote, opts...)
	require.NoError(t, c.Load(context.Background()))
	t.Cleanup(func() { _ = c.Close(context.Background()) })
	return c
}

func TestSyncController_AddAccumulatesQuantity(t *testing.T) {
	ctx := context.Background()
	local := newFakeLocal()
	c := newTestController(t, local, newFakeRemote())

	l := line(uuid.New(), 1200, 1)
	require.NoError(t, c.Add(ctx, l))
	require.NoError(t, c.Add(ctx, l))

	view := c.Snapshot()
	require.Len(t, view.Lines, 1)
	assert.Equal(t, 2, view.Lines[0].Quantity)
	assert.Equal(t, int64(2400), view.Total)
	assert.Equal(t, 2, view.ItemCount)

	snap, ok := local.snapshot("cart_guest")
	require.True(t, ok, "mutation must be in the local cache before Add returns")
	require.Len(t, snap.Lines, 1)
	assert.Equal(t, 2, snap.Lines[0].Quantity)
}

func TestSyncController_AddRejectsInvalidLine(t *testing.T) {
	c := newTestController(t, newFakeLocal(), newFakeRemote())

	err := c.Add(context.Background(), cart.CartLine{ProductID: uuid.New(), VendorID: uuid.New(), Quantity: 0})
	require.Error(t, err)
	assert.Equal(t, shared.KindValidation, shared.KindOf(err))
	assert.Empty(t, c.Snapshot().Lines)
}

func TestSyncController_GuestNeverWritesRemote(t *testing.T) {
	ctx := context.Background()
	remote := newFakeRemote()
	c := newTestController(t, newFakeLocal(), remote)

	l := line(uuid.New(), 500, 2)
	require.NoError(t, c.Add(ctx, l))
	require.NoError(t, c.Decrement(ctx, l.ProductID))
	require.NoError(t, c.Flush(ctx))

	assert.Equal(t, 0, remote.writeCalls())
	assert.False(t, c.Status().PendingRemote)
}

func TestSyncController_DecrementToZeroDeletesRemotely(t *testing.T) {
	ctx := context.Background()
	user := uuid.New()
	remote := newFakeRemote()
	c := newTestController(t, newFakeLocal(), remote)
	require.NoError(t, c.SetIdentity(ctx, cart.UserOwner(user)))

	l := line(uuid.New(), 800, 1)
	require.NoError(t, c.Add(ctx, l))
	require.NoError(t, c.Flush(ctx))
	q, ok := remote.quantity(user, l.ProductID)
	require.True(t, ok)
	assert.Equal(t, 1, q)

	require.NoError(t, c.Decrement(ctx, l.ProductID))
	assert.True(t, c.Status().PendingRemote)
	require.NoError(t, c.Flush(ctx))

	_, ok = remote.quantity(user, l.ProductID)
	assert.False(t, ok)
	require.Len(t, remote.deletes, 1)
	assert.Equal(t, []uuid.UUID{l.ProductID}, remote.deletes[0])
	assert.False(t, c.Status().PendingRemote)
	assert.NotNil(t, c.Status().LastSyncAt)
}

func TestSyncController_DebounceCoalescesBursts(t *testing.T) {
	ctx := context.Background()
	user := uuid.New()
	remote := newFakeRemote()
	c := newTestController(t, newFakeLocal(), remote, WithDebounceWindow(40*time.Millisecond))
	require.NoError(t, c.SetIdentity(ctx, cart.UserOwner(user)))

	l := line(uuid.New(), 300, 1)
	require.NoError(t, c.Add(ctx, l))
	for i := 0; i < 4; i++ {
		require.NoError(t, c.Increment(ctx, l.ProductID))
	}
	assert.True(t, c.Status().PendingRemote)

	assert.Eventually(t, func() bool {
		q, ok := remote.quantity(user, l.ProductID)
		return ok && q == 5
	}, time.Second, 10*time.Millisecond)
	assert.Equal(t, 1, remote.upsertCalls())
	assert.Eventually(t, func() bool { return !c.Status().PendingRemote }, time.Second, 10*time.Millisecond)
}

func TestSyncController_ClearDeletesAllRemotely(t *testing.T) {
	ctx := context.Background()
	user := uuid.New()
	remote := newFakeRemote()
	remote.seed(user, line(uuid.New(), 100, 1), line(uuid.New(), 200, 2))
	c := newTestController(t, newFakeLocal(), remote)
	require.NoError(t, c.SetIdentity(ctx, cart.UserOwner(user)))
	require.Len(t, c.Snapshot().Lines, 2)

	require.NoError(t, c.Clear(ctx))
	require.NoError(t, c.Flush(ctx))

	assert.Equal(t, 1, remote.clears)
	lines, err := remote.ListActive(ctx, user)
	require.NoError(t, err)
	assert.Empty(t, lines)
}

func TestSyncController_LoginMergesGuestCart(t *testing.T) {
	ctx := context.Background()
	user := uuid.New()
	vendor := uuid.New()
	p1 := line(vendor, 1000, 1)
	p2 := line(vendor, 400, 3)

	local := newFakeLocal()
	remote := newFakeRemote()
	remote.seed(user, p1, p2)

	c := newTestController(t, local, remote)
	guestP1 := p1
	guestP1.Quantity = 2
	require.NoError(t, c.Add(ctx, guestP1))
	require.True(t, local.has("cart_guest"))

	require.NoError(t, c.SetIdentity(ctx, cart.UserOwner(user)))

	view := c.Snapshot()
	assert.Equal(t, cart.UserOwner(user), view.Owner)
	quantities := map[uuid.UUID]int{}
	for _, l := range view.Lines {
		quantities[l.ProductID] = l.Quantity
	}
	assert.Equal(t, map[uuid.UUID]int{p1.ProductID: 3, p2.ProductID: 3}, quantities)

	// only the line whose quantity changed is written back
	require.Equal(t, 1, remote.upsertCalls())
	require.Len(t, remote.upserts[0], 1)
	assert.Equal(t, p1.ProductID, remote.upserts[0][0].ProductID)
	assert.Equal(t, 3, remote.upserts[0][0].Quantity)

	assert.False(t, local.has("cart_guest"), "guest cart is discarded after the merge")
	snap, ok := local.snapshot("cart_" + user.String())
	require.True(t, ok)
	assert.Len(t, snap.Lines, 2)
}

func TestSyncController_RepeatedLoginDoesNotMergeTwice(t *testing.T) {
	ctx := context.Background()
	user := uuid.New()
	remote := newFakeRemote()
	c := newTestController(t, newFakeLocal(), remote)

	l := line(uuid.New(), 700, 2)
	require.NoError(t, c.Add(ctx, l))
	require.NoError(t, c.SetIdentity(ctx, cart.UserOwner(user)))
	require.NoError(t, c.SetIdentity(ctx, cart.UserOwner(user)))

	q, ok := remote.quantity(user, l.ProductID)
	require.True(t, ok)
	assert.Equal(t, 2, q)
	assert.Equal(t, 1, remote.upsertCalls())

	// logging out and in again finds an empty guest cart
	require.NoError(t, c.SetIdentity(ctx, cart.GuestOwner))
	assert.Empty(t, c.Snapshot().Lines)
	require.NoError(t, c.SetIdentity(ctx, cart.UserOwner(user)))
	q, _ = remote.quantity(user, l.ProductID)
	assert.Equal(t, 2, q)
	assert.Equal(t, 1, remote.upsertCalls())
}

func TestSyncController_UnreachableRemoteFallsBackToCache(t *testing.T) {
	ctx := context.Background()
	user := uuid.New()
	owner := cart.UserOwner(user)
	cached := line(uuid.New(), 900, 4)

	local := newFakeLocal()
	data, err := cart.EncodeSnapshot(owner, []cart.CartLine{cached}, time.Now())
	require.NoError(t, err)
	require.NoError(t, local.Set(ctx, owner.CacheKey(), data))

	remote := newFakeRemote()
	remote.listErr = errUnreachable

	c := newTestController(t, local, remote)
	require.NoError(t, c.SetIdentity(ctx, owner))

	view := c.Snapshot()
	require.Len(t, view.Lines, 1)
	assert.Equal(t, cached.ProductID, view.Lines[0].ProductID)

	status := c.Status()
	assert.True(t, status.Stale)
	assert.Equal(t, shared.KindNetwork, status.LastErrorKind)
	assert.NotNil(t, status.LastErrorAt)
}

func TestSyncController_LoginWhileRemoteUnreachableDefersMerge(t *testing.T) {
	ctx := context.Background()
	user := uuid.New()
	owner := cart.UserOwner(user)
	vendor := uuid.New()
	p1 := line(vendor, 1000, 1)
	p2 := line(vendor, 400, 3)

	local := newFakeLocal()
	remote := newFakeRemote()
	remote.seed(user, p1, p2)

	c := newTestController(t, local, remote)
	guestP1 := p1
	guestP1.Quantity = 2
	require.NoError(t, c.Add(ctx, guestP1))

	remote.setListErr(errUnreachable)
	require.NoError(t, c.SetIdentity(ctx, owner))

	assert.Equal(t, 0, remote.writeCalls(), "nothing is written before the remote cart is read")
	assert.True(t, local.has("cart_guest"), "guest cart is kept until the merge completes")
	status := c.Status()
	assert.True(t, status.Stale)
	assert.True(t, status.PendingRemote)

	// still unreachable: the merge stays pending
	err := c.Flush(ctx)
	require.Error(t, err)
	assert.Equal(t, shared.KindNetwork, shared.KindOf(err))
	assert.True(t, local.has("cart_guest"))
	q, _ := remote.quantity(user, p1.ProductID)
	assert.Equal(t, 1, q)

	remote.setListErr(nil)
	require.NoError(t, c.Flush(ctx))

	q, ok := remote.quantity(user, p1.ProductID)
	require.True(t, ok)
	assert.Equal(t, 3, q)
	q, ok = remote.quantity(user, p2.ProductID)
	require.True(t, ok)
	assert.Equal(t, 3, q)
	assert.Len(t, c.Snapshot().Lines, 2)
	assert.False(t, local.has("cart_guest"))
	assert.False(t, c.Status().PendingRemote)
}

func TestSyncController_DeferredMergeKeepsLaterMutations(t *testing.T) {
	ctx := context.Background()
	user := uuid.New()
	vendor := uuid.New()
	p1 := line(vendor, 1000, 1)
	p2 := line(vendor, 400, 3)

	remote := newFakeRemote()
	remote.seed(user, p1, p2)

	c := newTestController(t, newFakeLocal(), remote)
	guestP1 := p1
	guestP1.Quantity = 2
	require.NoError(t, c.Add(ctx, guestP1))

	remote.setListErr(errUnreachable)
	require.NoError(t, c.SetIdentity(ctx, cart.UserOwner(user)))

	extra := line(vendor, 250, 1)
	require.NoError(t, c.Add(ctx, extra))

	remote.setListErr(nil)
	require.NoError(t, c.Flush(ctx))

	q, _ := remote.quantity(user, p1.ProductID)
	assert.Equal(t, 3, q)
	q, _ = remote.quantity(user, p2.ProductID)
	assert.Equal(t, 3, q)
	q, ok := remote.quantity(user, extra.ProductID)
	require.True(t, ok)
	assert.Equal(t, 1, q)
	assert.Len(t, c.Snapshot().Lines, 3)
}

func TestSyncController_LogoutDuringDeferredMergeRestoresGuestCart(t *testing.T) {
	ctx := context.Background()
	remote := newFakeRemote()
	c := newTestController(t, newFakeLocal(), remote)

	l := line(uuid.New(), 700, 2)
	require.NoError(t, c.Add(ctx, l))

	remote.setListErr(errUnreachable)
	require.NoError(t, c.SetIdentity(ctx, cart.UserOwner(uuid.New())))
	require.NoError(t, c.SetIdentity(ctx, cart.GuestOwner))

	view := c.Snapshot()
	require.Len(t, view.Lines, 1)
	assert.Equal(t, l.ProductID, view.Lines[0].ProductID)
	assert.Equal(t, 2, view.Lines[0].Quantity)
}

func TestSyncController_RemoteLoadFailureOtherThanNetworkIsReturned(t *testing.T) {
	remote := newFakeRemote()
	remote.listErr = shared.ErrForbidden
	c := newTestController(t, newFakeLocal(), remote)

	err := c.SetIdentity(context.Background(), cart.UserOwner(uuid.New()))
	require.Error(t, err)
	assert.True(t, errors.Is(err, shared.ErrForbidden))
	assert.True(t, c.Owner().IsGuest())
}

func TestSyncController_FailedWriteBackIsRetriedOnNextFlush(t *testing.T) {
	ctx := context.Background()
	user := uuid.New()
	remote := newFakeRemote()
	c := newTestController(t, newFakeLocal(), remote)
	require.NoError(t, c.SetIdentity(ctx, cart.UserOwner(user)))

	remote.setWriteErr(errUnreachable)
	l := line(uuid.New(), 250, 1)
	require.NoError(t, c.Add(ctx, l))

	err := c.Flush(ctx)
	require.Error(t, err)
	assert.Equal(t, shared.KindNetwork, shared.KindOf(err))
	status := c.Status()
	assert.True(t, status.PendingRemote)
	assert.Equal(t, shared.KindNetwork, status.LastErrorKind)

	remote.setWriteErr(nil)
	require.NoError(t, c.Flush(ctx))
	q, ok := remote.quantity(user, l.ProductID)
	require.True(t, ok)
	assert.Equal(t, 1, q)
	status = c.Status()
	assert.False(t, status.PendingRemote)
	assert.Empty(t, status.LastError)
}

func TestSyncController_CacheWriteFailureIsSwallowed(t *testing.T) {
	ctx := context.Background()
	local := newFakeLocal()
	local.setErr = errors.New("disk full")
	c := newTestController(t, local, newFakeRemote())

	require.NoError(t, c.Add(ctx, line(uuid.New(), 100, 1)))
	assert.Len(t, c.Snapshot().Lines, 1)
	assert.Equal(t, shared.KindPersistence, c.Status().LastErrorKind)
}

func TestSyncController_IgnoresForeignSnapshot(t *testing.T) {
	ctx := context.Background()
	local := newFakeLocal()
	other := cart.UserOwner(uuid.New())
	data, err := cart.EncodeSnapshot(other, []cart.CartLine{line(uuid.New(), 100, 1)}, time.Now())
	require.NoError(t, err)
	require.NoError(t, local.Set(ctx, "cart_guest", data))

	c := newTestController(t, local, newFakeRemote())
	assert.Empty(t, c.Snapshot().Lines)
}

func TestSyncController_RemoveVendorKeepsOtherVendors(t *testing.T) {
	ctx := context.Background()
	c := newTestController(t, newFakeLocal(), newFakeRemote())
	a, b := uuid.New(), uuid.New()
	require.NoError(t, c.Add(ctx, line(a, 100, 1)))
	require.NoError(t, c.Add(ctx, line(a, 200, 1)))
	require.NoError(t, c.Add(ctx, line(b, 300, 2)))

	removed, err := c.RemoveVendor(ctx, a)
	require.NoError(t, err)
	assert.Len(t, removed, 2)

	groups := c.Groups()
	require.Len(t, groups, 1)
	assert.Equal(t, b, groups[0].VendorID)
	_, ok := c.Group(a)
	assert.False(t, ok)
}

func TestSyncController_CloseFlushesAndRejectsMutations(t *testing.T) {
	ctx := context.Background()
	user := uuid.New()
	remote := newFakeRemote()
	c := NewSyncController(newFakeLocal(), remote, WithDebounceWindow(time.Hour))
	require.NoError(t, c.Load(ctx))
	require.NoError(t, c.SetIdentity(ctx, cart.UserOwner(user)))

	l := line(uuid.New(), 100, 1)
	require.NoError(t, c.Add(ctx, l))
	require.NoError(t, c.Close(ctx))

	_, ok := remote.quantity(user, l.ProductID)
	assert.True(t, ok)
	assert.ErrorIs(t, c.Add(ctx, l), ErrControllerClosed)
	assert.NoError(t, c.Close(ctx))
}
