package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"storefront-service/internal/models"
	"storefront-service/internal/payment"
	"storefront-service/internal/redisclient"
	"storefront-service/internal/store"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

const testWebhookSecret = "whsec_test"

func capturedBody(providerOrderID, paymentID string) []byte {
	return []byte(fmt.Sprintf(
		`{"entity":"event","event":"payment.captured","payload":{"payment":{"entity":{"id":%q,"order_id":%q,"amount":4999,"currency":"INR","status":"captured"}}}}`,
		paymentID, providerOrderID))
}

func signed(body []byte) Notification {
	return Notification{Body: body, Signature: payment.Sign(testWebhookSecret, body)}
}

func seedPendingOrder(t *testing.T, repo *store.MemoryStore, providerOrderID string) *models.Order {
	t.Helper()
	order := &models.Order{
		Title:           "Shoe",
		Price:           49.99,
		Image:           "https://x.com/a.png",
		Category:        "footwear",
		ProviderOrderID: providerOrderID,
	}
	require.NoError(t, repo.CreateOrder(context.Background(), order))
	return order
}

func newTestReconciler(repo OrderRepository, deduper EventDeduper) (*ReconciliationService, *fakePublisher) {
	publisher := &fakePublisher{}
	return NewReconciliationService(repo, publisher, deduper, nil, testWebhookSecret, time.Hour), publisher
}

func TestHandleWebhookPaymentCaptured(t *testing.T) {
	repo := store.NewMemoryStore()
	order := seedPendingOrder(t, repo, "order_ABC")
	svc, publisher := newTestReconciler(repo, nil)

	result, err := svc.HandleWebhook(context.Background(), signed(capturedBody("order_ABC", "pay_XYZ")))
	require.NoError(t, err)
	assert.Equal(t, OutcomeCompleted, result.Outcome)
	assert.Equal(t, order.ID, result.OrderID)

	got, err := repo.GetOrderByID(context.Background(), order.ID)
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusCompleted, got.Status)
	require.NotNil(t, got.ProviderPaymentID)
	assert.Equal(t, "pay_XYZ", *got.ProviderPaymentID)

	require.Len(t, publisher.completed, 1)
	assert.Equal(t, order.ID, publisher.completed[0].OrderID)
	assert.Equal(t, "pay_XYZ", publisher.completed[0].ProviderPaymentID)
}

func TestHandleWebhookReplayIsIdempotent(t *testing.T) {
	repo := store.NewMemoryStore()
	order := seedPendingOrder(t, repo, "order_ABC")
	svc, publisher := newTestReconciler(repo, nil)
	n := signed(capturedBody("order_ABC", "pay_XYZ"))

	_, err := svc.HandleWebhook(context.Background(), n)
	require.NoError(t, err)
	first, err := repo.GetOrderByID(context.Background(), order.ID)
	require.NoError(t, err)

	result, err := svc.HandleWebhook(context.Background(), n)
	require.NoError(t, err)
	assert.Equal(t, OutcomeReplayed, result.Outcome)

	second, err := repo.GetOrderByID(context.Background(), order.ID)
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Len(t, publisher.completed, 1)
}

func TestHandleWebhookConcurrentDeliveries(t *testing.T) {
	repo := store.NewMemoryStore()
	seedPendingOrder(t, repo, "order_ABC")
	svc, publisher := newTestReconciler(repo, nil)
	n := signed(capturedBody("order_ABC", "pay_XYZ"))

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.HandleWebhook(context.Background(), n)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Len(t, publisher.completed, 1)
}

func TestHandleWebhookSignatureFailures(t *testing.T) {
	body := capturedBody("order_ABC", "pay_XYZ")

	tests := []struct {
		name      string
		signature string
		wantErr   error
	}{
		{name: "missing", signature: "", wantErr: payment.ErrMissingSignature},
		{name: "wrong secret", signature: payment.Sign("other", body), wantErr: payment.ErrInvalidSignature},
		{name: "garbage", signature: "deadbeef", wantErr: payment.ErrInvalidSignature},
		{name: "not hex", signature: "zz-not-hex", wantErr: payment.ErrInvalidSignature},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := store.NewMemoryStore()
			order := seedPendingOrder(t, repo, "order_ABC")
			svc, publisher := newTestReconciler(repo, nil)

			_, err := svc.HandleWebhook(context.Background(), Notification{Body: body, Signature: tt.signature})
			assert.ErrorIs(t, err, tt.wantErr)

			got, err := repo.GetOrderByID(context.Background(), order.ID)
			require.NoError(t, err)
			assert.Equal(t, models.OrderStatusPending, got.Status)
			assert.Nil(t, got.ProviderPaymentID)
			assert.Empty(t, publisher.completed)
		})
	}
}

func TestHandleWebhookTamperedBody(t *testing.T) {
	repo := store.NewMemoryStore()
	order := seedPendingOrder(t, repo, "order_ABC")
	svc, _ := newTestReconciler(repo, nil)

	n := signed(capturedBody("order_OTHER", "pay_XYZ"))
	n.Body = capturedBody("order_ABC", "pay_XYZ")

	_, err := svc.HandleWebhook(context.Background(), n)
	assert.ErrorIs(t, err, payment.ErrInvalidSignature)

	got, err := repo.GetOrderByID(context.Background(), order.ID)
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusPending, got.Status)
}

func TestHandleWebhookOtherEventsAcknowledged(t *testing.T) {
	repo := store.NewMemoryStore()
	order := seedPendingOrder(t, repo, "order_ABC")
	svc, publisher := newTestReconciler(repo, nil)

	body := []byte(`{"entity":"event","event":"payment.failed","payload":{"payment":{"entity":{"id":"pay_1","order_id":"order_ABC"}}}}`)
	result, err := svc.HandleWebhook(context.Background(), signed(body))
	require.NoError(t, err)
	assert.Equal(t, OutcomeIgnored, result.Outcome)
	assert.Equal(t, payment.EventPaymentFailed, result.Event)

	got, err := repo.GetOrderByID(context.Background(), order.ID)
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusPending, got.Status)
	assert.Empty(t, publisher.completed)
}

func TestHandleWebhookUnknownOrder(t *testing.T) {
	repo := store.NewMemoryStore()
	svc, publisher := newTestReconciler(repo, nil)

	result, err := svc.HandleWebhook(context.Background(), signed(capturedBody("order_UNKNOWN", "pay_1")))
	require.NoError(t, err)
	assert.Equal(t, OutcomeUnmatched, result.Outcome)
	assert.Empty(t, publisher.completed)
	assert.Equal(t, 0, repo.Count())
}

func TestHandleWebhookCapturedWithoutPayment(t *testing.T) {
	svc, _ := newTestReconciler(store.NewMemoryStore(), nil)
	core, logs := observer.New(zap.ErrorLevel)
	svc.logger = zap.New(core)

	body := []byte(`{"entity":"event","event":"payment.captured","payload":{}}`)
	n := signed(body)
	n.EventID = "evt_empty"

	result, err := svc.HandleWebhook(context.Background(), n)
	require.NoError(t, err)
	assert.Equal(t, OutcomeUnmatched, result.Outcome)

	entries := logs.FilterField(zap.String("event_id", "evt_empty")).All()
	require.Len(t, entries, 1)
	assert.Equal(t, "payment.captured without payment entity", entries[0].Message)
}

func TestHandleWebhookMalformedBody(t *testing.T) {
	svc, _ := newTestReconciler(store.NewMemoryStore(), nil)

	for _, body := range [][]byte{[]byte(`not json`), []byte(`{"payload":{}}`)} {
		_, err := svc.HandleWebhook(context.Background(), signed(body))
		assert.ErrorIs(t, err, ErrMalformedEvent)
	}
}

type errorRepo struct {
	*store.MemoryStore
}

func (errorRepo) CompletePayment(ctx context.Context, providerOrderID, providerPaymentID string) (*models.Order, bool, error) {
	return nil, false, errors.New("connection reset")
}

func TestHandleWebhookStoreFailure(t *testing.T) {
	svc, publisher := newTestReconciler(errorRepo{store.NewMemoryStore()}, nil)

	_, err := svc.HandleWebhook(context.Background(), signed(capturedBody("order_ABC", "pay_1")))
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrMalformedEvent)
	assert.Contains(t, err.Error(), "connection reset")
	assert.Empty(t, publisher.completed)
}

func TestHandleWebhookDedupeByEventID(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redisclient.NewClientFromRedis(redis.NewClient(&redis.Options{Addr: mr.Addr()}))

	repo := store.NewMemoryStore()
	seedPendingOrder(t, repo, "order_ABC")
	svc, publisher := newTestReconciler(repo, rdb)

	n := signed(capturedBody("order_ABC", "pay_XYZ"))
	n.EventID = "evt_1"

	result, err := svc.HandleWebhook(context.Background(), n)
	require.NoError(t, err)
	assert.Equal(t, OutcomeCompleted, result.Outcome)
	assert.True(t, mr.Exists("idempotency:webhook:evt_1"))

	result, err = svc.HandleWebhook(context.Background(), n)
	require.NoError(t, err)
	assert.Equal(t, OutcomeDuplicate, result.Outcome)
	assert.Len(t, publisher.completed, 1)

	n.EventID = "evt_2"
	result, err = svc.HandleWebhook(context.Background(), n)
	require.NoError(t, err)
	assert.Equal(t, OutcomeReplayed, result.Outcome)
}

func TestHandleWebhookCachesCompletedStatusWhenPublishFails(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redisclient.NewClientFromRedis(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
	ctx := context.Background()

	repo := store.NewMemoryStore()
	order := seedPendingOrder(t, repo, "order_ABC")
	require.NoError(t, rdb.SetOrderStatus(ctx, order.ID, models.OrderStatusPending, time.Hour))

	publisher := &fakePublisher{err: errors.New("broker down")}
	reconciler := NewReconciliationService(repo, publisher, nil, rdb, testWebhookSecret, time.Hour)
	orders := NewOrderService(repo, &fakeProvider{}, publisher, OrderServiceConfig{StatusCache: rdb})

	result, err := reconciler.HandleWebhook(ctx, signed(capturedBody("order_ABC", "pay_XYZ")))
	require.NoError(t, err)
	assert.Equal(t, OutcomeCompleted, result.Outcome)

	cached, found, err := rdb.GetOrderStatus(ctx, order.ID)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, models.OrderStatusCompleted, cached)

	status, err := orders.GetOrderStatus(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusCompleted, status)
}

func TestHandleWebhookReplayRefreshesStatusCache(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redisclient.NewClientFromRedis(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
	ctx := context.Background()

	repo := store.NewMemoryStore()
	order := seedPendingOrder(t, repo, "order_ABC")
	_, _, err := repo.CompletePayment(ctx, "order_ABC", "pay_XYZ")
	require.NoError(t, err)

	reconciler := NewReconciliationService(repo, &fakePublisher{}, nil, rdb, testWebhookSecret, time.Hour)
	result, err := reconciler.HandleWebhook(ctx, signed(capturedBody("order_ABC", "pay_XYZ")))
	require.NoError(t, err)
	assert.Equal(t, OutcomeReplayed, result.Outcome)

	cached, found, err := rdb.GetOrderStatus(ctx, order.ID)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, models.OrderStatusCompleted, cached)
}
