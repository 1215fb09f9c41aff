package repositories

import (
	"encoding/json"
	"fmt"
	"time"

	"rishe/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GORMOrderRepository is a GORM implementation of OrderRepository. The
// compare-and-set is an UPDATE guarded by the expected status in the WHERE
// clause; the database serializes racing transitions, and RowsAffected == 0
// tells the loser apart from a missing order.
type GORMOrderRepository struct {
	db *gorm.DB
}

// NewGORMOrderRepository creates a new instance of GORMOrderRepository.
func NewGORMOrderRepository(db *gorm.DB) *GORMOrderRepository {
	return &GORMOrderRepository{
		db: db,
	}
}

// Create persists a new order and its initial audit record.
func (r *GORMOrderRepository) Create(order *models.Order) error {
	if order.ID == "" {
		order.ID = uuid.New().String()
	}
	return r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(order).Error; err != nil {
			return fmt.Errorf("failed to create order: %w", err)
		}
		transition := models.OrderTransition{
			OrderID:  order.ID,
			ToStatus: order.Status,
			At:       time.Now(),
		}
		if err := tx.Create(&transition).Error; err != nil {
			return fmt.Errorf("failed to record order creation transition: %w", err)
		}
		return nil
	})
}

// GetByID retrieves a single order by its ID.
func (r *GORMOrderRepository) GetByID(id string) (*models.Order, error) {
	var order models.Order
	if err := r.db.First(&order, "id = ?", id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, fmt.Errorf("order with ID %s: %w", id, ErrOrderNotFound)
		}
		return nil, fmt.Errorf("failed to get order by ID %s: %w", id, err)
	}
	return &order, nil
}

// ListByOwner retrieves all orders for an owner, newest first.
func (r *GORMOrderRepository) ListByOwner(ownerID string) ([]models.Order, error) {
	var orders []models.Order
	if err := r.db.Where("owner_id = ?", ownerID).Order("created_at DESC").Find(&orders).Error; err != nil {
		return nil, fmt.Errorf("failed to list orders for owner %s: %w", ownerID, err)
	}
	return orders, nil
}

// ListByStatus retrieves all orders currently in the given status.
func (r *GORMOrderRepository) ListByStatus(status models.OrderStatus) ([]models.Order, error) {
	var orders []models.Order
	if err := r.db.Where("status = ?", status).Find(&orders).Error; err != nil {
		return nil, fmt.Errorf("failed to list orders with status %s: %w", status, err)
	}
	return orders, nil
}

// CompareAndSetStatus transitions the order only if its stored status still
// equals expected, persisting the extra fields and the audit record in the
// same transaction.
func (r *GORMOrderRepository) CompareAndSetStatus(id string, expected, next models.OrderStatus, extra *TransitionExtra) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		now := time.Now()
		values := map[string]interface{}{
			"status":     next,
			"updated_at": now,
		}
		if extra != nil {
			if extra.GatewayReference != "" {
				values["gateway_reference"] = extra.GatewayReference
			}
			if extra.Payment != nil {
				// The payment column is JSON-serialized; marshal here so
				// the map-based update matches what the serializer writes.
				payment, err := json.Marshal(extra.Payment)
				if err != nil {
					return fmt.Errorf("failed to marshal payment record: %w", err)
				}
				values["payment"] = string(payment)
			}
		}

		res := tx.Model(&models.Order{}).
			Where("id = ? AND status = ?", id, expected).
			Updates(values)
		if res.Error != nil {
			return fmt.Errorf("failed to update order %s status: %w", id, res.Error)
		}
		if res.RowsAffected == 0 {
			// Either the order is gone or another transition won the race.
			var count int64
			if err := tx.Model(&models.Order{}).Where("id = ?", id).Count(&count).Error; err != nil {
				return fmt.Errorf("failed to check order %s existence: %w", id, err)
			}
			if count == 0 {
				return fmt.Errorf("order with ID %s: %w", id, ErrOrderNotFound)
			}
			return fmt.Errorf("order %s no longer in status %s: %w", id, expected, ErrConflict)
		}

		transition := models.OrderTransition{
			OrderID:    id,
			FromStatus: expected,
			ToStatus:   next,
			At:         now,
		}
		if err := tx.Create(&transition).Error; err != nil {
			return fmt.Errorf("failed to record order transition: %w", err)
		}
		return nil
	})
}

// Transitions returns the audit trail for an order, oldest first.
func (r *GORMOrderRepository) Transitions(orderID string) ([]models.OrderTransition, error) {
	var trail []models.OrderTransition
	if err := r.db.Where("order_id = ?", orderID).Order("id ASC").Find(&trail).Error; err != nil {
		return nil, fmt.Errorf("failed to get transitions for order %s: %w", orderID, err)
	}
	return trail, nil
}
