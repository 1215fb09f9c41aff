package services_test

import (
	"fmt"
	"testing"

	"rishe/internal/models"
	"rishe/internal/services"

	"github.com/stretchr/testify/assert"
)

func TestProductService_GetAllProducts(t *testing.T) {
	mockRepo := new(MockProductRepository)
	service := services.NewProductService(mockRepo)

	expectedProducts := []models.Product{
		{ID: "1", Name: "Oxford Shirt", Price: 999.0, Stock: 100},
		{ID: "2", Name: "Linen Shirt", Price: 1299.0, Stock: 50},
	}

	mockRepo.On("GetAll").Return(expectedProducts, nil).Once()

	products, err := service.GetAllProducts()

	assert.NoError(t, err)
	assert.Len(t, products, 2)
	assert.Equal(t, expectedProducts, products)
	mockRepo.AssertExpectations(t)
}

func TestProductService_GetFeaturedProducts(t *testing.T) {
	mockRepo := new(MockProductRepository)
	service := services.NewProductService(mockRepo)

	featured := []models.Product{
		{ID: "1", Name: "Oxford Shirt", Price: 999.0, Stock: 100, Featured: true},
	}

	mockRepo.On("ListFeatured").Return(featured, nil).Once()

	products, err := service.GetFeaturedProducts()

	assert.NoError(t, err)
	assert.Len(t, products, 1)
	assert.True(t, products[0].Featured)
	mockRepo.AssertExpectations(t)
}

func TestProductService_GetProductByID(t *testing.T) {
	mockRepo := new(MockProductRepository)
	service := services.NewProductService(mockRepo)

	expectedProduct := &models.Product{ID: "1", Name: "Oxford Shirt", Price: 999.0, Stock: 100}

	// Test successful retrieval
	mockRepo.On("GetByID", "1").Return(expectedProduct, nil).Once()
	product, err := service.GetProductByID("1")
	assert.NoError(t, err)
	assert.Equal(t, expectedProduct, product)
	mockRepo.AssertExpectations(t)

	// Test product not found
	mockRepo.On("GetByID", "99").Return(nil, fmt.Errorf("product with ID 99 not found")).Once()
	product, err = service.GetProductByID("99")
	assert.Error(t, err)
	assert.Nil(t, product)
	assert.Contains(t, err.Error(), "not found")
	mockRepo.AssertExpectations(t)
}

func TestProductService_CreateProduct(t *testing.T) {
	mockRepo := new(MockProductRepository)
	service := services.NewProductService(mockRepo)

	newProduct := &models.Product{Name: "Flannel Shirt", Price: 1499.0, Stock: 20}

	// Test successful creation
	mockRepo.On("Create", newProduct).Return(nil).Once()
	err := service.CreateProduct(newProduct)
	assert.NoError(t, err)
	mockRepo.AssertExpectations(t)

	// Test creation failure (e.g., database error)
	mockRepo.On("Create", newProduct).Return(fmt.Errorf("database error")).Once()
	err = service.CreateProduct(newProduct)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "database error")
	mockRepo.AssertExpectations(t)
}

func TestProductService_UnitPrice(t *testing.T) {
	mockRepo := new(MockProductRepository)
	service := services.NewProductService(mockRepo)

	mockRepo.On("GetByID", "1").Return(&models.Product{ID: "1", Name: "Oxford Shirt", Price: 999.0}, nil).Once()
	price, err := service.UnitPrice("1")
	assert.NoError(t, err)
	assert.Equal(t, 999.0, price)
	mockRepo.AssertExpectations(t)

	mockRepo.On("GetByID", "99").Return(nil, fmt.Errorf("product with ID 99 not found")).Once()
	_, err = service.UnitPrice("99")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "price lookup failed")
	mockRepo.AssertExpectations(t)
}
