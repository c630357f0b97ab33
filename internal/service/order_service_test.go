package service

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ninerxsolution/trading-market/internal/models"
	"github.com/ninerxsolution/trading-market/internal/pkg/apperror"
	"github.com/ninerxsolution/trading-market/internal/realtime"
)

type orderFixture struct {
	store  *memStore
	hub    *realtime.Hub
	chat   *ChatService
	svc    *OrderService
	seller models.Identity
	buyer  models.Identity
	admin  models.Identity
	now    time.Time
}

func newOrderFixture(t *testing.T) *orderFixture {
	t.Helper()
	store := newMemStore()
	hub := realtime.NewHub(64)
	chat := NewChatService(store, store, hub)
	svc := NewOrderService(store, chat, hub, OrderServiceConfig{
		ReservationTTL:       72 * time.Hour,
		DisputeCancelPenalty: 5,
	})
	now := time.Now().UTC().Truncate(time.Second)
	svc.now = func() time.Time { return now }

	return &orderFixture{
		store:  store,
		hub:    hub,
		chat:   chat,
		svc:    svc,
		seller: models.NewIdentity(uuid.New(), models.RoleUser),
		buyer:  models.NewIdentity(uuid.New(), models.RoleUser),
		admin:  models.NewIdentity(uuid.New(), models.RoleAdmin),
		now:    now,
	}
}

func (f *orderFixture) reserve(t *testing.T, stock, quantity int) (*models.Order, models.Listing) {
	t.Helper()
	listing := f.store.addListing(f.seller.UserID, 100, stock)
	order, err := f.svc.Reserve(context.Background(), f.buyer, ReserveInput{ListingID: listing.ID, Quantity: quantity})
	require.NoError(t, err)
	return order, listing
}

func collect(sub *realtime.Subscription) []realtime.Event {
	var out []realtime.Event
	for {
		select {
		case ev, ok := <-sub.Events():
			if !ok {
				return out
			}
			out = append(out, ev)
		default:
			return out
		}
	}
}

func TestOrderService_Reserve_DoesNotTouchStock(t *testing.T) {
	f := newOrderFixture(t)
	sellerSub := f.hub.Subscribe(f.seller.UserID)
	buyerSub := f.hub.Subscribe(f.buyer.UserID)

	order, listing := f.reserve(t, 3, 1)

	assert.Equal(t, models.OrderStatusReserved, order.Status)
	assert.Equal(t, 100.0, order.Price)
	assert.Equal(t, listing.ItemID, order.ItemID)
	require.NotNil(t, order.ExpiresAt)
	assert.Equal(t, f.now.Add(72*time.Hour), *order.ExpiresAt)
	assert.Equal(t, 3, f.store.listing(listing.ID).Stock)

	msgs := f.store.chatLog()
	require.Len(t, msgs, 1)
	assert.Contains(t, msgs[0].Message, "Order Reserved")
	assert.Equal(t, f.buyer.UserID, msgs[0].SenderID)
	assert.Equal(t, f.seller.UserID, msgs[0].ReceiverID)
	require.NotNil(t, msgs[0].OrderID)
	assert.Equal(t, order.ID, *msgs[0].OrderID)

	// Сообщение и заказ доходят обоим.
	for _, sub := range []*realtime.Subscription{sellerSub, buyerSub} {
		events := collect(sub)
		require.Len(t, events, 2)
		assert.Equal(t, realtime.EventMessage, events[0].Type)
		assert.Equal(t, realtime.EventOrder, events[1].Type)
		assert.Equal(t, order.ID, events[1].Order.ID)
	}
}

func TestOrderService_Reserve_ConcurrentSingleWinner(t *testing.T) {
	f := newOrderFixture(t)
	listing := f.store.addListing(f.seller.UserID, 50, 1)

	const n = 25
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		success  int
		reserved int
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			buyer := models.NewIdentity(uuid.New(), models.RoleUser)
			_, err := f.svc.Reserve(context.Background(), buyer, ReserveInput{ListingID: listing.ID, Quantity: 1})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				success++
			case apperror.CodeOf(err) == apperror.ErrCodeAlreadyReserved:
				reserved++
			default:
				t.Errorf("неожиданная ошибка: %v", err)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, success)
	assert.Equal(t, n-1, reserved)
}

func TestOrderService_Reserve_Preconditions(t *testing.T) {
	f := newOrderFixture(t)
	ctx := context.Background()
	active := f.store.addListing(f.seller.UserID, 10, 2)
	soldOut := f.store.addListing(f.seller.UserID, 10, 0)

	_, err := f.svc.Reserve(ctx, f.buyer, ReserveInput{ListingID: active.ID, Quantity: 0})
	assert.True(t, apperror.IsValidation(err))

	_, err = f.svc.Reserve(ctx, f.buyer, ReserveInput{ListingID: uuid.New(), Quantity: 1})
	assert.ErrorIs(t, err, apperror.ErrListingNotFound)

	_, err = f.svc.Reserve(ctx, f.seller, ReserveInput{ListingID: active.ID, Quantity: 1})
	assert.True(t, apperror.IsForbidden(err))

	_, err = f.svc.Reserve(ctx, f.buyer, ReserveInput{ListingID: soldOut.ID, Quantity: 1})
	assert.True(t, apperror.IsValidation(err))

	_, err = f.svc.Reserve(ctx, f.buyer, ReserveInput{ListingID: active.ID, Quantity: 3})
	assert.ErrorIs(t, err, apperror.ErrInsufficientStock)

	assert.Empty(t, f.store.chatLog())
}

func TestOrderService_Reserve_ListingWithActiveOrderIsBusy(t *testing.T) {
	f := newOrderFixture(t)
	_, listing := f.reserve(t, 5, 1)

	other := models.NewIdentity(uuid.New(), models.RoleUser)
	_, err := f.svc.Reserve(context.Background(), other, ReserveInput{ListingID: listing.ID, Quantity: 1})
	assert.ErrorIs(t, err, apperror.ErrAlreadyReserved)
}

func TestOrderService_SellerMarksSent(t *testing.T) {
	f := newOrderFixture(t)
	order, _ := f.reserve(t, 3, 1)
	buyerSub := f.hub.Subscribe(f.buyer.UserID)

	updated, err := f.svc.UpdateStatus(context.Background(), f.seller, order.ID, StatusUpdateInput{
		Status:      "AWAITING_BUYER_CONFIRM",
		ProofImages: []string{"https://blob.example/proof-1.jpg"},
	})
	require.NoError(t, err)

	assert.Equal(t, models.OrderStatusAwaitingBuyerConfirm, updated.Status)
	assert.Equal(t, []string{"https://blob.example/proof-1.jpg"}, []string(updated.ProofImages))
	assert.NotNil(t, updated.ExpiresAt)

	msgs := f.store.chatLog()
	require.Len(t, msgs, 2)
	last := msgs[1]
	assert.Contains(t, last.Message, "marked as sent")
	assert.Equal(t, f.seller.UserID, last.SenderID)
	assert.Equal(t, f.buyer.UserID, last.ReceiverID)

	events := collect(buyerSub)
	require.Len(t, events, 2)
	assert.Equal(t, models.OrderStatusAwaitingBuyerConfirm, events[1].Order.Status)
}

func TestOrderService_RejectsBadProofImages(t *testing.T) {
	f := newOrderFixture(t)
	order, _ := f.reserve(t, 3, 1)

	_, err := f.svc.UpdateStatus(context.Background(), f.seller, order.ID, StatusUpdateInput{
		Status:      "AWAITING_BUYER_CONFIRM",
		ProofImages: []string{"not a link"},
	})
	assert.True(t, apperror.IsValidation(err))
	assert.Equal(t, models.OrderStatusReserved, f.store.order(order.ID).Status)
}

func TestOrderService_BuyerCannotMarkSent(t *testing.T) {
	f := newOrderFixture(t)
	order, _ := f.reserve(t, 3, 1)

	_, err := f.svc.UpdateStatus(context.Background(), f.buyer, order.ID, StatusUpdateInput{Status: "AWAITING_BUYER_CONFIRM"})
	assert.True(t, apperror.IsForbidden(err))
	assert.Equal(t, models.OrderStatusReserved, f.store.order(order.ID).Status)
}

func TestOrderService_StrangerIsForbidden(t *testing.T) {
	f := newOrderFixture(t)
	order, _ := f.reserve(t, 3, 1)
	stranger := models.NewIdentity(uuid.New(), models.RoleUser)

	_, err := f.svc.UpdateStatus(context.Background(), stranger, order.ID, StatusUpdateInput{Status: "CANCELLED"})
	assert.True(t, apperror.IsForbidden(err))

	_, err = f.svc.GetOrder(context.Background(), stranger, order.ID)
	assert.True(t, apperror.IsForbidden(err))

	got, err := f.svc.GetOrder(context.Background(), f.admin, order.ID)
	require.NoError(t, err)
	assert.Equal(t, order.ID, got.ID)
}

func TestOrderService_UnknownStatusIsValidationError(t *testing.T) {
	f := newOrderFixture(t)
	order, _ := f.reserve(t, 3, 1)

	_, err := f.svc.UpdateStatus(context.Background(), f.seller, order.ID, StatusUpdateInput{Status: "SHIPPED"})
	assert.True(t, apperror.IsValidation(err))
}

func TestOrderService_Complete_SettlesStockOnce(t *testing.T) {
	f := newOrderFixture(t)
	ctx := context.Background()
	order, listing := f.reserve(t, 3, 2)

	_, err := f.svc.UpdateStatus(ctx, f.seller, order.ID, StatusUpdateInput{Status: "AWAITING_BUYER_CONFIRM"})
	require.NoError(t, err)

	done, err := f.svc.UpdateStatus(ctx, f.buyer, order.ID, StatusUpdateInput{Status: "COMPLETED"})
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusCompleted, done.Status)
	assert.Nil(t, done.ExpiresAt)

	l := f.store.listing(listing.ID)
	assert.Equal(t, 1, l.Stock)
	assert.Equal(t, models.ListingStatusActive, l.Status)
	assert.Equal(t, 1, f.store.tradeCount(order.ID))

	msgs := f.store.chatLog()
	assert.Contains(t, msgs[len(msgs)-1].Message, "completed")

	_, err = f.svc.UpdateStatus(ctx, f.buyer, order.ID, StatusUpdateInput{Status: "COMPLETED"})
	assert.True(t, apperror.IsInvalidTransition(err))
	assert.Equal(t, 1, f.store.listing(listing.ID).Stock)
	assert.Equal(t, 1, f.store.tradeCount(order.ID))
}

func TestOrderService_Complete_LastUnitSellsOut(t *testing.T) {
	f := newOrderFixture(t)
	order, listing := f.reserve(t, 1, 1)

	_, err := f.svc.UpdateStatus(context.Background(), f.buyer, order.ID, StatusUpdateInput{Status: "completed"})
	require.NoError(t, err)

	l := f.store.listing(listing.ID)
	assert.Equal(t, 0, l.Stock)
	assert.Equal(t, models.ListingStatusSoldOut, l.Status)
}

func TestOrderService_Complete_InsufficientStockLeavesOrderUnchanged(t *testing.T) {
	f := newOrderFixture(t)
	order, listing := f.reserve(t, 3, 2)
	f.store.setStock(listing.ID, 1)

	_, err := f.svc.UpdateStatus(context.Background(), f.buyer, order.ID, StatusUpdateInput{Status: "COMPLETED"})
	assert.ErrorIs(t, err, apperror.ErrInsufficientStock)

	assert.Equal(t, models.OrderStatusReserved, f.store.order(order.ID).Status)
	assert.Equal(t, 1, f.store.listing(listing.ID).Stock)
	assert.Equal(t, 0, f.store.tradeCount(order.ID))
}

func TestOrderService_CancelStoresReasonAndClearsExpiry(t *testing.T) {
	f := newOrderFixture(t)
	order, listing := f.reserve(t, 3, 1)
	reason := "  передумал  "

	cancelled, err := f.svc.UpdateStatus(context.Background(), f.buyer, order.ID, StatusUpdateInput{
		Status:        "CANCELLED",
		DisputeReason: &reason,
	})
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusCancelled, cancelled.Status)
	assert.Nil(t, cancelled.ExpiresAt)
	require.NotNil(t, cancelled.DisputeReason)
	assert.Equal(t, "передумал", *cancelled.DisputeReason)
	assert.Equal(t, 3, f.store.listing(listing.ID).Stock)

	// Отменённый заказ больше не блокирует объявление.
	_, err = f.svc.Reserve(context.Background(), f.buyer, ReserveInput{ListingID: listing.ID, Quantity: 1})
	assert.NoError(t, err)
}

func TestOrderService_ResolveDispute(t *testing.T) {
	f := newOrderFixture(t)
	ctx := context.Background()
	order, _ := f.reserve(t, 3, 1)

	_, err := f.svc.Resolve(ctx, f.admin, order.ID, ResolveInput{Status: "CANCELLED"})
	assert.True(t, apperror.IsInvalidTransition(err), "спора ещё нет")

	_, err = f.svc.UpdateStatus(ctx, f.seller, order.ID, StatusUpdateInput{Status: "DISPUTE"})
	require.NoError(t, err)

	_, err = f.svc.UpdateStatus(ctx, f.buyer, order.ID, StatusUpdateInput{Status: "COMPLETED"})
	assert.True(t, apperror.IsForbidden(err), "спор решает только администратор")

	_, err = f.svc.Resolve(ctx, f.buyer, order.ID, ResolveInput{Status: "CANCELLED"})
	assert.True(t, apperror.IsForbidden(err))

	_, err = f.svc.Resolve(ctx, f.admin, order.ID, ResolveInput{Status: "RESERVED"})
	assert.True(t, apperror.IsValidation(err))

	notes := "обе стороны нарушили правила"
	resolved, err := f.svc.Resolve(ctx, f.admin, order.ID, ResolveInput{
		Status:       "CANCELLED",
		AdminNotes:   &notes,
		ApplyPenalty: true,
	})
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusCancelled, resolved.Status)
	require.NotNil(t, resolved.AdminNotes)
	assert.Equal(t, notes, *resolved.AdminNotes)

	assert.Equal(t, 95, f.store.reputation[f.buyer.UserID])
	assert.Equal(t, 95, f.store.reputation[f.seller.UserID])
}

func TestOrderService_AdminCompletesDispute(t *testing.T) {
	f := newOrderFixture(t)
	ctx := context.Background()
	order, listing := f.reserve(t, 2, 2)

	_, err := f.svc.UpdateStatus(ctx, f.buyer, order.ID, StatusUpdateInput{Status: "DISPUTE"})
	require.NoError(t, err)

	resolved, err := f.svc.Resolve(ctx, f.admin, order.ID, ResolveInput{Status: "COMPLETED", ApplyPenalty: true})
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusCompleted, resolved.Status)
	assert.Equal(t, models.ListingStatusSoldOut, f.store.listing(listing.ID).Status)
	assert.Equal(t, 1, f.store.tradeCount(order.ID))
	assert.Empty(t, f.store.reputation, "штраф только при отмене")
}

func TestOrderService_NarrativeFailureDoesNotFailTransition(t *testing.T) {
	f := newOrderFixture(t)
	order, _ := f.reserve(t, 3, 1)
	f.store.failChat = errStorageDown

	updated, err := f.svc.UpdateStatus(context.Background(), f.seller, order.ID, StatusUpdateInput{Status: "AWAITING_BUYER_CONFIRM"})
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusAwaitingBuyerConfirm, updated.Status)
}

func TestOrderService_ListOrdersEscalatesExpired(t *testing.T) {
	f := newOrderFixture(t)
	ctx := context.Background()
	escalator := NewExpiryEscalator(f.store, f.hub, 72*time.Hour)
	f.svc.SetSweeper(escalator)

	expired, _ := f.reserve(t, 3, 1)
	fresh, _ := f.reserve(t, 3, 1)
	f.store.expireOrder(expired.ID, time.Now().Add(-time.Minute))

	orders, err := f.svc.ListOrders(ctx, f.buyer, ListOrdersInput{})
	require.NoError(t, err)
	require.Len(t, orders, 2)

	byID := map[uuid.UUID]models.Order{}
	for _, o := range orders {
		byID[o.ID] = o
	}
	assert.Equal(t, models.OrderStatusDispute, byID[expired.ID].Status)
	require.NotNil(t, byID[expired.ID].DisputeReason)
	assert.Equal(t, "Order expired after 72 hours", *byID[expired.ID].DisputeReason)
	assert.Nil(t, byID[expired.ID].ExpiresAt)
	assert.Equal(t, models.OrderStatusReserved, byID[fresh.ID].Status)

	n, err := escalator.Sweep(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestOrderService_ListOrdersFilters(t *testing.T) {
	f := newOrderFixture(t)
	ctx := context.Background()
	f.reserve(t, 3, 1)

	asSeller, err := f.svc.ListOrders(ctx, f.seller, ListOrdersInput{Side: "seller"})
	require.NoError(t, err)
	assert.Len(t, asSeller, 1)

	asBuyer, err := f.svc.ListOrders(ctx, f.seller, ListOrdersInput{Side: "BUYER"})
	require.NoError(t, err)
	assert.Empty(t, asBuyer)

	_, err = f.svc.ListOrders(ctx, f.seller, ListOrdersInput{Side: "owner"})
	assert.True(t, apperror.IsValidation(err))

	_, err = f.svc.ListOrders(ctx, f.seller, ListOrdersInput{Status: "LOST"})
	assert.True(t, apperror.IsValidation(err))

	all, err := f.svc.ListOrders(ctx, f.admin, ListOrdersInput{Status: "reserved"})
	require.NoError(t, err)
	assert.Len(t, all, 1)

	stranger := models.NewIdentity(uuid.New(), models.RoleUser)
	none, err := f.svc.ListOrders(ctx, stranger, ListOrdersInput{})
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestOrderService_MirrorsStatusChanges(t *testing.T) {
	f := newOrderFixture(t)
	mirror := &recordingMirror{}
	f.svc.SetMirror(mirror)

	order, _ := f.reserve(t, 3, 1)
	_, err := f.svc.UpdateStatus(context.Background(), f.seller, order.ID, StatusUpdateInput{Status: "AWAITING_SELLER_CONFIRM"})
	require.NoError(t, err)

	require.Len(t, mirror.changes, 2)
	assert.Equal(t, "->"+string(models.OrderStatusReserved), mirror.changes[0])
	assert.Equal(t, "RESERVED->AWAITING_SELLER_CONFIRM", mirror.changes[1])
}

type recordingMirror struct {
	mu      sync.Mutex
	changes []string
}

func (m *recordingMirror) OrderStatusChanged(o *models.Order, from models.OrderStatus) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.changes = append(m.changes, strings.Join([]string{string(from), string(o.Status)}, "->"))
}
