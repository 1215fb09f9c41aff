package models

import "time"

// OrderStatus is the lifecycle state of an order.
type OrderStatus string

const (
	OrderStatusCreated            OrderStatus = "created"
	OrderStatusAwaitingPayment    OrderStatus = "awaiting_payment"
	OrderStatusPaid               OrderStatus = "paid"
	OrderStatusVerificationFailed OrderStatus = "verification_failed"
	OrderStatusExpired            OrderStatus = "expired"
)

// IsTerminal reports whether no further transitions may leave this status.
func (s OrderStatus) IsTerminal() bool {
	return s == OrderStatusPaid || s == OrderStatusVerificationFailed || s == OrderStatusExpired
}

func (s OrderStatus) String() string {
	return string(s)
}

// OrderItem is a single purchased line. UnitPrice is the price at order
// creation time and never changes afterwards, regardless of catalog edits.
type OrderItem struct {
	ProductID   string  `json:"product_id"`
	ProductName string  `json:"product_name"`
	Color       string  `json:"color"`
	Size        string  `json:"size"`
	Quantity    int     `json:"quantity"`
	UnitPrice   float64 `json:"unit_price"`
}

// ShippingAddress is the destination for a fulfilled order.
type ShippingAddress struct {
	Name         string `json:"name" validate:"required"`
	Phone        string `json:"phone" validate:"required"`
	AddressLine1 string `json:"address_line1" validate:"required"`
	AddressLine2 string `json:"address_line2"`
	City         string `json:"city" validate:"required"`
	State        string `json:"state" validate:"required"`
	PostalCode   string `json:"postal_code" validate:"required"`
	Country      string `json:"country"`
}

// PaymentRecord is set exactly once, on the transition to paid. It is kept
// for audit and for detecting idempotent replays of the gateway callback.
type PaymentRecord struct {
	GatewayPaymentID string `json:"gateway_payment_id"`
	Signature        string `json:"signature"`
}

// Order is the durable record of one checkout attempt.
type Order struct {
	ID               string          `json:"id" gorm:"primaryKey;type:varchar(36)"`
	OwnerID          string          `json:"owner_id" gorm:"index;type:varchar(36)"`
	OwnerEmail       string          `json:"owner_email"`
	Items            []OrderItem     `json:"items" gorm:"serializer:json"`
	ShippingAddress  ShippingAddress `json:"shipping_address" gorm:"serializer:json"`
	DeclaredTotal    float64         `json:"declared_total"`
	Currency         string          `json:"currency"`
	GatewayReference string          `json:"gateway_reference"`
	Status           OrderStatus     `json:"status" gorm:"type:varchar(32)"`
	Payment          *PaymentRecord  `json:"payment,omitempty" gorm:"serializer:json"`
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"`
}

// OrderTransition is one entry of the per-order audit trail. Transitions are
// append-only and retained indefinitely for dispute resolution.
type OrderTransition struct {
	ID         uint        `json:"-" gorm:"primaryKey;autoIncrement"`
	OrderID    string      `json:"order_id" gorm:"index;type:varchar(36)"`
	FromStatus OrderStatus `json:"from_status" gorm:"type:varchar(32)"`
	ToStatus   OrderStatus `json:"to_status" gorm:"type:varchar(32)"`
	At         time.Time   `json:"at"`
}

// PaymentCallback is the untrusted payload delivered by the payment gateway
// after the shopper completes the widget flow. It is never persisted as-is;
// only the verified facts end up in PaymentRecord.
type PaymentCallback struct {
	OrderID          string `json:"order_id" validate:"required"`
	GatewayOrderRef  string `json:"gateway_order_ref" validate:"required"`
	GatewayPaymentID string `json:"gateway_payment_id" validate:"required"`
	Signature        string `json:"signature" validate:"required"`
}
