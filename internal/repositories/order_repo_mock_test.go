package repositories_test

import (
	"errors"
	"sync"
	"testing"

	"rishe/internal/models"
	"rishe/internal/repositories"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newOrder() *models.Order {
	return &models.Order{
		OwnerID: "owner-1",
		Items: []models.OrderItem{
			{ProductID: "p1", ProductName: "Oxford Shirt", Color: "white", Size: "M", Quantity: 2, UnitPrice: 999},
		},
		DeclaredTotal: 1998,
		Currency:      "INR",
		Status:        models.OrderStatusCreated,
	}
}

func TestMockOrderRepository_CreateAndGet(t *testing.T) {
	repo := repositories.NewMockOrderRepository()
	order := newOrder()

	require.NoError(t, repo.Create(order))
	assert.NotEmpty(t, order.ID)

	got, err := repo.GetByID(order.ID)
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusCreated, got.Status)
	assert.Equal(t, 1998.0, got.DeclaredTotal)

	_, err = repo.GetByID("missing")
	assert.ErrorIs(t, err, repositories.ErrOrderNotFound)
}

func TestMockOrderRepository_GetReturnsIndependentCopy(t *testing.T) {
	repo := repositories.NewMockOrderRepository()
	order := newOrder()
	require.NoError(t, repo.Create(order))

	got, err := repo.GetByID(order.ID)
	require.NoError(t, err)
	got.Items[0].UnitPrice = 1
	got.DeclaredTotal = 1

	again, err := repo.GetByID(order.ID)
	require.NoError(t, err)
	assert.Equal(t, 999.0, again.Items[0].UnitPrice)
	assert.Equal(t, 1998.0, again.DeclaredTotal)
}

func TestMockOrderRepository_CompareAndSetStatus(t *testing.T) {
	repo := repositories.NewMockOrderRepository()
	order := newOrder()
	require.NoError(t, repo.Create(order))

	err := repo.CompareAndSetStatus(order.ID, models.OrderStatusCreated, models.OrderStatusAwaitingPayment,
		&repositories.TransitionExtra{GatewayReference: "sess_R1"})
	require.NoError(t, err)

	got, err := repo.GetByID(order.ID)
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusAwaitingPayment, got.Status)
	assert.Equal(t, "sess_R1", got.GatewayReference)

	// A second transition from the stale expected status must fail.
	err = repo.CompareAndSetStatus(order.ID, models.OrderStatusCreated, models.OrderStatusAwaitingPayment,
		&repositories.TransitionExtra{GatewayReference: "sess_R2"})
	assert.ErrorIs(t, err, repositories.ErrConflict)

	// The losing call changed nothing.
	got, err = repo.GetByID(order.ID)
	require.NoError(t, err)
	assert.Equal(t, "sess_R1", got.GatewayReference)

	err = repo.CompareAndSetStatus("missing", models.OrderStatusCreated, models.OrderStatusAwaitingPayment, nil)
	assert.ErrorIs(t, err, repositories.ErrOrderNotFound)
}

func TestMockOrderRepository_ConcurrentCASAppliesOnce(t *testing.T) {
	repo := repositories.NewMockOrderRepository()
	order := newOrder()
	require.NoError(t, repo.Create(order))

	const racers = 16
	var wg sync.WaitGroup
	var winners, losers int
	var mu sync.Mutex

	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := repo.CompareAndSetStatus(order.ID, models.OrderStatusCreated, models.OrderStatusAwaitingPayment,
				&repositories.TransitionExtra{GatewayReference: "sess_R1"})
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				winners++
			} else if errors.Is(err, repositories.ErrConflict) {
				losers++
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, winners)
	assert.Equal(t, racers-1, losers)
}

func TestMockOrderRepository_TransitionsAuditTrail(t *testing.T) {
	repo := repositories.NewMockOrderRepository()
	order := newOrder()
	require.NoError(t, repo.Create(order))

	require.NoError(t, repo.CompareAndSetStatus(order.ID, models.OrderStatusCreated, models.OrderStatusAwaitingPayment,
		&repositories.TransitionExtra{GatewayReference: "sess_R1"}))
	require.NoError(t, repo.CompareAndSetStatus(order.ID, models.OrderStatusAwaitingPayment, models.OrderStatusPaid,
		&repositories.TransitionExtra{Payment: &models.PaymentRecord{GatewayPaymentID: "pay_1", Signature: "sig"}}))

	trail, err := repo.Transitions(order.ID)
	require.NoError(t, err)
	require.Len(t, trail, 3)
	assert.Equal(t, models.OrderStatusCreated, trail[0].ToStatus)
	assert.Equal(t, models.OrderStatusCreated, trail[1].FromStatus)
	assert.Equal(t, models.OrderStatusAwaitingPayment, trail[1].ToStatus)
	assert.Equal(t, models.OrderStatusPaid, trail[2].ToStatus)
}

func TestMockOrderRepository_ListByOwnerAndStatus(t *testing.T) {
	repo := repositories.NewMockOrderRepository()
	first := newOrder()
	require.NoError(t, repo.Create(first))
	second := newOrder()
	second.OwnerID = "owner-2"
	require.NoError(t, repo.Create(second))

	mine, err := repo.ListByOwner("owner-1")
	require.NoError(t, err)
	assert.Len(t, mine, 1)
	assert.Equal(t, first.ID, mine[0].ID)

	created, err := repo.ListByStatus(models.OrderStatusCreated)
	require.NoError(t, err)
	assert.Len(t, created, 2)

	paid, err := repo.ListByStatus(models.OrderStatusPaid)
	require.NoError(t, err)
	assert.Empty(t, paid)
}
