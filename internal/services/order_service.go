package services

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"math"
	"time"

	"rishe/internal/cart"
	"rishe/internal/models"
	"rishe/internal/repositories"

	"github.com/google/uuid"
)

// Orders are settled in a single fixed currency.
const OrderCurrency = "INR"

// totalTolerance absorbs float rounding when comparing a client-echoed
// total against the server-side one.
const totalTolerance = 0.01

// OrderService builds immutable order records from cart snapshots. The
// declared total is always computed server-side; the only question is
// whether the snapshot's captured prices are fresh enough to use or the
// catalog must be re-read.
type OrderService struct {
	orderRepo       repositories.OrderRepository
	productRepo     repositories.ProductRepository
	mqClient        OrderEventPublisher
	stalenessWindow time.Duration
}

// NewOrderService creates a new OrderService. Snapshots older than
// stalenessWindow are repriced from the catalog at order creation time.
func NewOrderService(orderRepo repositories.OrderRepository, productRepo repositories.ProductRepository, mqClient OrderEventPublisher, stalenessWindow time.Duration) *OrderService {
	return &OrderService{
		orderRepo:       orderRepo,
		productRepo:     productRepo,
		mqClient:        mqClient,
		stalenessWindow: stalenessWindow,
	}
}

// validateShipping checks required-field presence on the shipping address.
func validateShipping(addr models.ShippingAddress) error {
	required := map[string]string{
		"name":          addr.Name,
		"phone":         addr.Phone,
		"address_line1": addr.AddressLine1,
		"city":          addr.City,
		"state":         addr.State,
		"postal_code":   addr.PostalCode,
	}
	for field, value := range required {
		if value == "" {
			return fmt.Errorf("shipping address field '%s' is required: %w", field, ErrValidation)
		}
	}
	return nil
}

// CreateOrder converts a cart snapshot and shipping destination into a
// durable order with status created. Line items are deep-copied: later cart
// edits or catalog price changes never alter the order. If clientTotal is
// non-nil it is cross-checked against the server-side total and any
// deviation is rejected; it is never used as the authoritative amount.
func (s *OrderService) CreateOrder(owner Principal, snapshot cart.Snapshot, shipping models.ShippingAddress, clientTotal *float64) (*models.Order, error) {
	if owner.OwnerID == "" {
		return nil, fmt.Errorf("order owner is required: %w", ErrValidation)
	}
	if len(snapshot.Items) == 0 {
		return nil, ErrEmptyCart
	}
	if err := validateShipping(shipping); err != nil {
		return nil, err
	}
	if shipping.Country == "" {
		shipping.Country = "India"
	}

	// Snapshot prices are trusted only when the snapshot comes from a
	// recent trusted read. Anything older (or unstamped, as every
	// client-supplied snapshot is) gets repriced from the catalog.
	reprice := snapshot.CapturedAt.IsZero() || time.Since(snapshot.CapturedAt) > s.stalenessWindow

	var total float64
	items := make([]models.OrderItem, 0, len(snapshot.Items))
	for _, line := range snapshot.Items {
		if line.Quantity <= 0 {
			return nil, fmt.Errorf("quantity for product %s must be positive: %w", line.ProductID, ErrValidation)
		}

		unitPrice := line.UnitPrice
		name := line.ProductName
		if reprice {
			product, err := s.productRepo.GetByID(line.ProductID)
			if err != nil {
				return nil, fmt.Errorf("product %s: %w", line.ProductID, ErrValidation)
			}
			unitPrice = product.Price
			name = product.Name
		}

		items = append(items, models.OrderItem{
			ProductID:   line.ProductID,
			ProductName: name,
			Color:       line.Color,
			Size:        line.Size,
			Quantity:    line.Quantity,
			UnitPrice:   unitPrice,
		})
		total += unitPrice * float64(line.Quantity)
	}

	if clientTotal != nil && math.Abs(*clientTotal-total) > totalTolerance {
		return nil, fmt.Errorf("client total %.2f deviates from computed total %.2f: %w", *clientTotal, total, ErrValidation)
	}

	order := &models.Order{
		ID:              uuid.New().String(),
		OwnerID:         owner.OwnerID,
		OwnerEmail:      owner.Email,
		Items:           items,
		ShippingAddress: shipping,
		DeclaredTotal:   total,
		Currency:        OrderCurrency,
		Status:          models.OrderStatusCreated,
	}

	if err := s.orderRepo.Create(order); err != nil {
		return nil, fmt.Errorf("failed to persist order: %w", err)
	}

	s.publishOrderEvent("order.created", order)
	return order, nil
}

// GetOrderForOwner retrieves an order, enforcing that it belongs to the
// requesting principal.
func (s *OrderService) GetOrderForOwner(owner Principal, orderID string) (*models.Order, error) {
	order, err := s.orderRepo.GetByID(orderID)
	if err != nil {
		return nil, mapRepoError(err)
	}
	if order.OwnerID != owner.OwnerID {
		// Revealing another owner's order existence is as bad as leaking
		// it, so respond as if it does not exist.
		return nil, ErrOrderNotFound
	}
	return order, nil
}

// ListOrdersForOwner retrieves all orders belonging to the principal.
func (s *OrderService) ListOrdersForOwner(owner Principal) ([]models.Order, error) {
	return s.orderRepo.ListByOwner(owner.OwnerID)
}

// OrderTransitions returns the audit trail for one of the owner's orders.
func (s *OrderService) OrderTransitions(owner Principal, orderID string) ([]models.OrderTransition, error) {
	if _, err := s.GetOrderForOwner(owner, orderID); err != nil {
		return nil, err
	}
	return s.orderRepo.Transitions(orderID)
}

// publishOrderEvent publishes an order lifecycle event. Publish failures
// are logged and never fail the order workflow.
func (s *OrderService) publishOrderEvent(event string, order *models.Order) {
	if s.mqClient == nil {
		log.Println("RabbitMQ client is not initialized. Skipping message publication.")
		return
	}

	message := map[string]interface{}{
		"event":    event,
		"order_id": order.ID,
		"owner_id": order.OwnerID,
		"status":   order.Status,
		"total":    order.DeclaredTotal,
		"currency": order.Currency,
	}
	body, err := json.Marshal(message)
	if err != nil {
		log.Printf("Failed to marshal %s event for order %s: %v", event, order.ID, err)
		return
	}
	if err := s.mqClient.Publish(event, body); err != nil {
		log.Printf("Warning: Failed to publish %s event for order %s: %v", event, order.ID, err)
		return
	}
	log.Printf("Published %s event for order %s", event, order.ID)
}

// mapRepoError converts repository sentinels into workflow errors.
func mapRepoError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, repositories.ErrOrderNotFound) {
		return fmt.Errorf("%v: %w", err, ErrOrderNotFound)
	}
	return err
}
