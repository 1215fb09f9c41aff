package services

import (
	"fmt"

	"rishe/internal/models"
	"rishe/internal/repositories"
)

// ProductService handles catalog reads. The checkout workflow uses it as
// the authoritative price source when an order must be repriced.
type ProductService struct {
	repo repositories.ProductRepository
}

// NewProductService creates a new ProductService.
func NewProductService(repo repositories.ProductRepository) *ProductService {
	return &ProductService{
		repo: repo,
	}
}

// GetAllProducts retrieves all products.
func (s *ProductService) GetAllProducts() ([]models.Product, error) {
	return s.repo.GetAll()
}

// GetFeaturedProducts retrieves the products flagged for the landing page.
func (s *ProductService) GetFeaturedProducts() ([]models.Product, error) {
	return s.repo.ListFeatured()
}

// GetProductByID retrieves a single product by its ID.
func (s *ProductService) GetProductByID(id string) (*models.Product, error) {
	return s.repo.GetByID(id)
}

// CreateProduct adds a product to the catalog.
func (s *ProductService) CreateProduct(product *models.Product) error {
	return s.repo.Create(product)
}

// UnitPrice returns the current catalog price for a product.
func (s *ProductService) UnitPrice(id string) (float64, error) {
	product, err := s.repo.GetByID(id)
	if err != nil {
		return 0, fmt.Errorf("price lookup failed: %w", err)
	}
	return product.Price, nil
}
