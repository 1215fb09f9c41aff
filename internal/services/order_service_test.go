package services_test

import (
	"fmt"
	"testing"
	"time"

	"rishe/internal/cart"
	"rishe/internal/models"
	"rishe/internal/repositories"
	"rishe/internal/services"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockProductRepository is a mock implementation of repositories.ProductRepository
type MockProductRepository struct {
	mock.Mock
}

func (m *MockProductRepository) GetAll() ([]models.Product, error) {
	args := m.Called()
	return args.Get(0).([]models.Product), args.Error(1)
}

func (m *MockProductRepository) ListFeatured() ([]models.Product, error) {
	args := m.Called()
	return args.Get(0).([]models.Product), args.Error(1)
}

func (m *MockProductRepository) GetByID(id string) (*models.Product, error) {
	args := m.Called(id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Product), args.Error(1)
}

func (m *MockProductRepository) Create(product *models.Product) error {
	args := m.Called(product)
	return args.Error(0)
}

func testOwner() services.Principal {
	return services.Principal{OwnerID: "user-1", DisplayName: "Test Shopper", Email: "shopper@example.com"}
}

func testShipping() models.ShippingAddress {
	return models.ShippingAddress{
		Name:         "Test Shopper",
		Phone:        "+911234567890",
		AddressLine1: "1 MG Road",
		City:         "Bengaluru",
		State:        "Karnataka",
		PostalCode:   "560001",
	}
}

func staleSnapshot(items ...cart.Item) cart.Snapshot {
	// Zero CapturedAt forces repricing from the catalog.
	return cart.Snapshot{Items: items}
}

func TestOrderService_CreateOrderComputesTotalServerSide(t *testing.T) {
	orderRepo := repositories.NewMockOrderRepository()
	productRepo := new(MockProductRepository)
	service := services.NewOrderService(orderRepo, productRepo, nil, 5*time.Minute)

	productRepo.On("GetByID", "p1").Return(&models.Product{ID: "p1", Name: "Oxford Shirt", Price: 999}, nil).Once()

	snap := staleSnapshot(cart.Item{ProductID: "p1", Color: "white", Size: "M", Quantity: 2, UnitPrice: 5}) // client price ignored
	order, err := service.CreateOrder(testOwner(), snap, testShipping(), nil)
	require.NoError(t, err)

	assert.Equal(t, 1998.0, order.DeclaredTotal)
	assert.Equal(t, models.OrderStatusCreated, order.Status)
	assert.Equal(t, "INR", order.Currency)
	assert.Equal(t, "Oxford Shirt", order.Items[0].ProductName)
	assert.Equal(t, 999.0, order.Items[0].UnitPrice)
	assert.Equal(t, "India", order.ShippingAddress.Country)
	productRepo.AssertExpectations(t)
}

func TestOrderService_DeclaredTotalImmutableAfterCatalogEdit(t *testing.T) {
	orderRepo := repositories.NewMockOrderRepository()
	productRepo := new(MockProductRepository)
	service := services.NewOrderService(orderRepo, productRepo, nil, 5*time.Minute)

	productRepo.On("GetByID", "p1").Return(&models.Product{ID: "p1", Name: "Oxford Shirt", Price: 999}, nil).Once()

	order, err := service.CreateOrder(testOwner(),
		staleSnapshot(cart.Item{ProductID: "p1", Quantity: 2}), testShipping(), nil)
	require.NoError(t, err)

	// A later catalog price change must not leak into the stored order.
	stored, err := orderRepo.GetByID(order.ID)
	require.NoError(t, err)
	assert.Equal(t, 1998.0, stored.DeclaredTotal)
	assert.Equal(t, 999.0, stored.Items[0].UnitPrice)

	// No further product reads happen once the order exists.
	productRepo.AssertExpectations(t)
}

func TestOrderService_FreshSnapshotPricesTrusted(t *testing.T) {
	orderRepo := repositories.NewMockOrderRepository()
	productRepo := new(MockProductRepository)
	service := services.NewOrderService(orderRepo, productRepo, nil, 5*time.Minute)

	// A snapshot captured within the staleness window keeps its prices;
	// the catalog is not consulted at all.
	snap := cart.Snapshot{
		Items:      []cart.Item{{ProductID: "p1", ProductName: "Oxford Shirt", Quantity: 2, UnitPrice: 999}},
		CapturedAt: time.Now(),
	}
	order, err := service.CreateOrder(testOwner(), snap, testShipping(), nil)
	require.NoError(t, err)
	assert.Equal(t, 1998.0, order.DeclaredTotal)
	productRepo.AssertNotCalled(t, "GetByID", mock.Anything)
}

func TestOrderService_StaleSnapshotIsRepriced(t *testing.T) {
	orderRepo := repositories.NewMockOrderRepository()
	productRepo := new(MockProductRepository)
	service := services.NewOrderService(orderRepo, productRepo, nil, 5*time.Minute)

	productRepo.On("GetByID", "p1").Return(&models.Product{ID: "p1", Name: "Oxford Shirt", Price: 1099}, nil).Once()

	snap := cart.Snapshot{
		Items:      []cart.Item{{ProductID: "p1", Quantity: 1, UnitPrice: 999}},
		CapturedAt: time.Now().Add(-10 * time.Minute),
	}
	order, err := service.CreateOrder(testOwner(), snap, testShipping(), nil)
	require.NoError(t, err)
	assert.Equal(t, 1099.0, order.DeclaredTotal)
	productRepo.AssertExpectations(t)
}

func TestOrderService_EmptyCartRejected(t *testing.T) {
	orderRepo := repositories.NewMockOrderRepository()
	productRepo := new(MockProductRepository)
	service := services.NewOrderService(orderRepo, productRepo, nil, 5*time.Minute)

	_, err := service.CreateOrder(testOwner(), cart.Snapshot{}, testShipping(), nil)
	assert.ErrorIs(t, err, services.ErrEmptyCart)
}

func TestOrderService_MissingShippingFieldRejected(t *testing.T) {
	orderRepo := repositories.NewMockOrderRepository()
	productRepo := new(MockProductRepository)
	service := services.NewOrderService(orderRepo, productRepo, nil, 5*time.Minute)

	shipping := testShipping()
	shipping.City = ""

	_, err := service.CreateOrder(testOwner(),
		staleSnapshot(cart.Item{ProductID: "p1", Quantity: 1}), shipping, nil)
	assert.ErrorIs(t, err, services.ErrValidation)
	assert.Contains(t, err.Error(), "city")

	// Nothing was persisted.
	orders, listErr := orderRepo.ListByOwner("user-1")
	require.NoError(t, listErr)
	assert.Empty(t, orders)
}

func TestOrderService_ClientTotalDeviationRejected(t *testing.T) {
	orderRepo := repositories.NewMockOrderRepository()
	productRepo := new(MockProductRepository)
	service := services.NewOrderService(orderRepo, productRepo, nil, 5*time.Minute)

	productRepo.On("GetByID", "p1").Return(&models.Product{ID: "p1", Name: "Oxford Shirt", Price: 999}, nil)

	wrongTotal := 42.0
	_, err := service.CreateOrder(testOwner(),
		staleSnapshot(cart.Item{ProductID: "p1", Quantity: 2}), testShipping(), &wrongTotal)
	assert.ErrorIs(t, err, services.ErrValidation)
	assert.Contains(t, err.Error(), "deviates")

	rightTotal := 1998.0
	order, err := service.CreateOrder(testOwner(),
		staleSnapshot(cart.Item{ProductID: "p1", Quantity: 2}), testShipping(), &rightTotal)
	require.NoError(t, err)
	assert.Equal(t, 1998.0, order.DeclaredTotal)
}

func TestOrderService_UnknownProductRejected(t *testing.T) {
	orderRepo := repositories.NewMockOrderRepository()
	productRepo := new(MockProductRepository)
	service := services.NewOrderService(orderRepo, productRepo, nil, 5*time.Minute)

	productRepo.On("GetByID", "ghost").Return(nil, fmt.Errorf("product with ID ghost not found")).Once()

	_, err := service.CreateOrder(testOwner(),
		staleSnapshot(cart.Item{ProductID: "ghost", Quantity: 1}), testShipping(), nil)
	assert.ErrorIs(t, err, services.ErrValidation)
	productRepo.AssertExpectations(t)
}

func TestOrderService_OwnershipEnforced(t *testing.T) {
	orderRepo := repositories.NewMockOrderRepository()
	productRepo := new(MockProductRepository)
	service := services.NewOrderService(orderRepo, productRepo, nil, 5*time.Minute)

	productRepo.On("GetByID", "p1").Return(&models.Product{ID: "p1", Name: "Oxford Shirt", Price: 999}, nil).Once()

	order, err := service.CreateOrder(testOwner(),
		staleSnapshot(cart.Item{ProductID: "p1", Quantity: 1}), testShipping(), nil)
	require.NoError(t, err)

	stranger := services.Principal{OwnerID: "user-2"}
	_, err = service.GetOrderForOwner(stranger, order.ID)
	assert.ErrorIs(t, err, services.ErrOrderNotFound)

	got, err := service.GetOrderForOwner(testOwner(), order.ID)
	require.NoError(t, err)
	assert.Equal(t, order.ID, got.ID)
}
