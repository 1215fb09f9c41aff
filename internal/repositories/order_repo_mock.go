package repositories

import (
	"fmt"
	"sync"
	"time"

	"rishe/internal/models"

	"github.com/google/uuid"
)

// MockOrderRepository is an in-memory implementation of OrderRepository.
// The mutex makes CompareAndSetStatus genuinely atomic, so the concurrency
// guarantees of the checkout workflow hold here exactly as they do against
// a real database.
type MockOrderRepository struct {
	orders      map[string]models.Order
	transitions map[string][]models.OrderTransition
	mu          sync.RWMutex
}

// NewMockOrderRepository creates a new instance of MockOrderRepository.
func NewMockOrderRepository() *MockOrderRepository {
	return &MockOrderRepository{
		orders:      make(map[string]models.Order),
		transitions: make(map[string][]models.OrderTransition),
	}
}

// copyOrder deep-copies an order so callers never share line items or the
// payment record with the stored value.
func copyOrder(order models.Order) models.Order {
	out := order
	out.Items = make([]models.OrderItem, len(order.Items))
	copy(out.Items, order.Items)
	if order.Payment != nil {
		payment := *order.Payment
		out.Payment = &payment
	}
	return out
}

// Create adds a new order and records the initial transition into its
// created status.
func (r *MockOrderRepository) Create(order *models.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if order.ID == "" {
		order.ID = uuid.New().String()
	}
	if _, exists := r.orders[order.ID]; exists {
		return fmt.Errorf("order with ID %s already exists", order.ID)
	}
	now := time.Now()
	order.CreatedAt = now
	order.UpdatedAt = now
	r.orders[order.ID] = copyOrder(*order)
	r.transitions[order.ID] = append(r.transitions[order.ID], models.OrderTransition{
		OrderID:  order.ID,
		ToStatus: order.Status,
		At:       now,
	})
	return nil
}

// GetByID returns a deep copy of the order.
func (r *MockOrderRepository) GetByID(id string) (*models.Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	order, ok := r.orders[id]
	if !ok {
		return nil, fmt.Errorf("order with ID %s: %w", id, ErrOrderNotFound)
	}
	out := copyOrder(order)
	return &out, nil
}

// ListByOwner returns all orders belonging to the given owner.
func (r *MockOrderRepository) ListByOwner(ownerID string) ([]models.Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var orders []models.Order
	for _, order := range r.orders {
		if order.OwnerID == ownerID {
			orders = append(orders, copyOrder(order))
		}
	}
	return orders, nil
}

// ListByStatus returns all orders currently in the given status.
func (r *MockOrderRepository) ListByStatus(status models.OrderStatus) ([]models.Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var orders []models.Order
	for _, order := range r.orders {
		if order.Status == status {
			orders = append(orders, copyOrder(order))
		}
	}
	return orders, nil
}

// CompareAndSetStatus applies the transition only if the stored status still
// equals expected; otherwise it fails with ErrConflict and changes nothing.
func (r *MockOrderRepository) CompareAndSetStatus(id string, expected, next models.OrderStatus, extra *TransitionExtra) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	order, ok := r.orders[id]
	if !ok {
		return fmt.Errorf("order with ID %s: %w", id, ErrOrderNotFound)
	}
	if order.Status != expected {
		return fmt.Errorf("order %s is %s, expected %s: %w", id, order.Status, expected, ErrConflict)
	}

	order.Status = next
	order.UpdatedAt = time.Now()
	if extra != nil {
		if extra.GatewayReference != "" {
			order.GatewayReference = extra.GatewayReference
		}
		if extra.Payment != nil {
			payment := *extra.Payment
			order.Payment = &payment
		}
	}
	r.orders[id] = order
	r.transitions[id] = append(r.transitions[id], models.OrderTransition{
		OrderID:    id,
		FromStatus: expected,
		ToStatus:   next,
		At:         order.UpdatedAt,
	})
	return nil
}

// Transitions returns the audit trail for an order, oldest first.
func (r *MockOrderRepository) Transitions(orderID string) ([]models.OrderTransition, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	trail := r.transitions[orderID]
	out := make([]models.OrderTransition, len(trail))
	copy(out, trail)
	return out, nil
}
