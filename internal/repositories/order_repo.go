package repositories

import (
	"errors"

	"rishe/internal/models"
)

// Sentinel errors shared by all repository implementations. Callers match
// with errors.Is to decide between reconciling and surfacing the failure.
var (
	// ErrOrderNotFound indicates the order id does not exist.
	ErrOrderNotFound = errors.New("order not found")
	// ErrConflict indicates a compare-and-set lost a race: the stored
	// status no longer matched the expected one. The caller re-reads the
	// order and decides whether the observed state already satisfies its
	// goal (idempotent replay) or is a genuine failure.
	ErrConflict = errors.New("order status conflict")
)

// TransitionExtra carries the fields persisted atomically with a status
// transition: the gateway reference on created -> awaiting_payment, the
// payment record on awaiting_payment -> paid.
type TransitionExtra struct {
	GatewayReference string
	Payment          *models.PaymentRecord
}

// OrderRepository is the single source of truth for orders. Every status
// change goes through CompareAndSetStatus; there is no unconditional update
// path, so concurrent workflows cannot clobber each other's transitions.
type OrderRepository interface {
	Create(order *models.Order) error
	GetByID(id string) (*models.Order, error)
	ListByOwner(ownerID string) ([]models.Order, error)
	ListByStatus(status models.OrderStatus) ([]models.Order, error)
	// CompareAndSetStatus transitions the order from expected to next and
	// applies extra in the same atomic step, appending an audit record.
	// Returns ErrConflict if the stored status differs from expected.
	CompareAndSetStatus(id string, expected, next models.OrderStatus, extra *TransitionExtra) error
	// Transitions returns the append-only audit trail for an order,
	// oldest first.
	Transitions(orderID string) ([]models.OrderTransition, error)
}
