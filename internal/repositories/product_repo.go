package repositories

import (
	"rishe/internal/models"
)

// ProductRepository defines the interface for catalog data access. The
// checkout workflow only ever reads from it (price lookups for repricing);
// Create exists for seeding and catalog management.
type ProductRepository interface {
	GetAll() ([]models.Product, error)
	ListFeatured() ([]models.Product, error)
	GetByID(id string) (*models.Product, error)
	Create(product *models.Product) error
}
