package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"rishe/internal/gateway"
	"rishe/internal/models"
	"rishe/internal/repositories"
)

// PaymentSession is what the client needs to drive the gateway's widget.
type PaymentSession struct {
	GatewayReference string  `json:"gateway_reference"`
	Amount           float64 `json:"amount"`
	Currency         string  `json:"currency"`
}

// VerificationResult reports the outcome of a callback verification.
type VerificationResult struct {
	OrderID string             `json:"order_id"`
	Status  models.OrderStatus `json:"status"`
	// Replayed is true when this callback had already been applied and
	// the prior success was returned idempotently.
	Replayed bool `json:"replayed,omitempty"`
}

// PaymentService orchestrates the gateway session lifecycle and verifies
// the gateway's asynchronous payment callbacks. Every state transition runs
// through the order repository's compare-and-set, so concurrent retries,
// double-submits, and duplicate callback deliveries all collapse to exactly
// one applied effect per order.
type PaymentService struct {
	orderRepo      repositories.OrderRepository
	gateway        gateway.SessionCreator
	signer         *gateway.Signer
	mqClient       OrderEventPublisher
	gatewayTimeout time.Duration
	sessionTTL     time.Duration
}

// OrderEventPublisher is the slice of the RabbitMQ client the checkout
// workflow needs.
type OrderEventPublisher interface {
	Publish(routingKey string, body []byte) error
}

// NewPaymentService creates a new PaymentService. A zero gatewayTimeout
// defaults to 10s, a zero sessionTTL to 30m.
func NewPaymentService(orderRepo repositories.OrderRepository, gw gateway.SessionCreator, signer *gateway.Signer, mqClient OrderEventPublisher) *PaymentService {
	return &PaymentService{
		orderRepo:      orderRepo,
		gateway:        gw,
		signer:         signer,
		mqClient:       mqClient,
		gatewayTimeout: 10 * time.Second,
		sessionTTL:     30 * time.Minute,
	}
}

// SetSessionTTL overrides how long an awaiting_payment order stays open
// before the expiry sweep closes it.
func (s *PaymentService) SetSessionTTL(ttl time.Duration) {
	if ttl > 0 {
		s.sessionTTL = ttl
	}
}

// OpenSession mints a gateway payment session for the order, or returns the
// already-minted one. Calling it twice while the order is created or
// awaiting_payment yields the same gateway reference both times: the
// created -> awaiting_payment compare-and-set persists the reference
// atomically, so exactly one of several racing calls performs the real
// gateway call and the rest return the winner's reference.
func (s *PaymentService) OpenSession(ctx context.Context, orderID string) (*PaymentSession, error) {
	order, err := s.orderRepo.GetByID(orderID)
	if err != nil {
		return nil, mapRepoError(err)
	}

	switch order.Status {
	case models.OrderStatusAwaitingPayment:
		// Session already exists; hand back the same reference instead
		// of double-charging a retrying client.
		return &PaymentSession{
			GatewayReference: order.GatewayReference,
			Amount:           order.DeclaredTotal,
			Currency:         order.Currency,
		}, nil
	case models.OrderStatusCreated:
		// Fall through to mint a session.
	default:
		return nil, fmt.Errorf("order %s is %s: %w", orderID, order.Status, ErrOrderTerminal)
	}

	gwCtx, cancel := context.WithTimeout(ctx, s.gatewayTimeout)
	defer cancel()
	session, err := s.gateway.CreateSession(gwCtx, order.ID, order.DeclaredTotal, order.Currency)
	if err != nil {
		return nil, fmt.Errorf("%v: %w", err, ErrGatewayUnavailable)
	}

	err = s.orderRepo.CompareAndSetStatus(orderID, models.OrderStatusCreated, models.OrderStatusAwaitingPayment,
		&repositories.TransitionExtra{GatewayReference: session.Reference})
	if err == nil {
		return &PaymentSession{
			GatewayReference: session.Reference,
			Amount:           order.DeclaredTotal,
			Currency:         order.Currency,
		}, nil
	}
	if !errors.Is(err, repositories.ErrConflict) {
		return nil, mapRepoError(err)
	}

	// Lost the race: a concurrent call opened the session first. Re-read
	// and return the winner's reference; the session minted above goes
	// unused, which the gateway tolerates (unpaid sessions lapse).
	current, err := s.orderRepo.GetByID(orderID)
	if err != nil {
		return nil, mapRepoError(err)
	}
	if current.Status != models.OrderStatusAwaitingPayment {
		return nil, fmt.Errorf("order %s is %s: %w", orderID, current.Status, ErrOrderTerminal)
	}
	return &PaymentSession{
		GatewayReference: current.GatewayReference,
		Amount:           current.DeclaredTotal,
		Currency:         current.Currency,
	}, nil
}

// VerifyPayment authenticates a gateway callback and performs the single
// atomic transition from awaiting_payment to paid. The callback is
// untrusted input: the expected signature is recomputed from the stored
// gateway reference and the claimed payment id, never taken from the
// payload.
func (s *PaymentService) VerifyPayment(ctx context.Context, callback models.PaymentCallback) (*VerificationResult, error) {
	order, err := s.orderRepo.GetByID(callback.OrderID)
	if err != nil {
		return nil, mapRepoError(err)
	}

	switch order.Status {
	case models.OrderStatusPaid:
		return s.reconcilePaid(order, callback)
	case models.OrderStatusVerificationFailed, models.OrderStatusExpired:
		return nil, fmt.Errorf("order %s is %s: %w", order.ID, order.Status, ErrOrderTerminal)
	case models.OrderStatusCreated:
		// No gateway session was ever opened, so no genuine callback can
		// exist for this order.
		return nil, fmt.Errorf("order %s has no open payment session: %w", order.ID, ErrValidation)
	}

	if !s.signer.Verify(order.GatewayReference, callback.GatewayPaymentID, callback.Signature) {
		return s.failVerification(order, callback)
	}

	payment := &models.PaymentRecord{
		GatewayPaymentID: callback.GatewayPaymentID,
		Signature:        callback.Signature,
	}
	err = s.orderRepo.CompareAndSetStatus(order.ID, models.OrderStatusAwaitingPayment, models.OrderStatusPaid,
		&repositories.TransitionExtra{Payment: payment})
	if err == nil {
		// The single commit point. The caller clears the shopper's cart
		// on this result; the order is the durable proof of purchase.
		s.publishPaid(order.ID)
		return &VerificationResult{OrderID: order.ID, Status: models.OrderStatusPaid}, nil
	}
	if !errors.Is(err, repositories.ErrConflict) {
		return nil, mapRepoError(err)
	}

	// A concurrent verification got there first. Absorb the loss only if
	// it applied this exact payment; anything else is a real outcome we
	// must not mask.
	current, err := s.orderRepo.GetByID(order.ID)
	if err != nil {
		return nil, mapRepoError(err)
	}
	if current.Status == models.OrderStatusPaid {
		return s.reconcilePaid(current, callback)
	}
	return nil, fmt.Errorf("order %s is %s: %w", order.ID, current.Status, ErrOrderTerminal)
}

// reconcilePaid handles a callback for an order that is already paid. A
// callback carrying the recorded payment id and a genuine signature is a
// duplicate delivery and returns the prior success without touching the
// payment record. A matching payment id with a tampered signature fails
// verification; any other payment id is an anomaly. Neither is ever
// re-applied.
func (s *PaymentService) reconcilePaid(order *models.Order, callback models.PaymentCallback) (*VerificationResult, error) {
	if order.Payment != nil && order.Payment.GatewayPaymentID == callback.GatewayPaymentID {
		if s.signer.Verify(order.GatewayReference, callback.GatewayPaymentID, callback.Signature) {
			return &VerificationResult{OrderID: order.ID, Status: models.OrderStatusPaid, Replayed: true}, nil
		}
		log.Printf("Replay anomaly on paid order %s: callback for payment %s carries a tampered signature",
			order.ID, callback.GatewayPaymentID)
		return nil, fmt.Errorf("order %s: %w", order.ID, ErrSignatureInvalid)
	}
	log.Printf("Replay anomaly on paid order %s: callback payment %s does not match recorded payment",
		order.ID, callback.GatewayPaymentID)
	return nil, fmt.Errorf("order %s already paid with a different payment: %w", order.ID, ErrReplayAnomaly)
}

// failVerification moves the order to verification_failed. The transition
// is terminal: the same session accepts no further callbacks and the
// shopper must open a fresh payment attempt.
func (s *PaymentService) failVerification(order *models.Order, callback models.PaymentCallback) (*VerificationResult, error) {
	log.Printf("Signature mismatch for order %s (payment %s)", order.ID, callback.GatewayPaymentID)
	err := s.orderRepo.CompareAndSetStatus(order.ID, models.OrderStatusAwaitingPayment, models.OrderStatusVerificationFailed, nil)
	if err != nil && errors.Is(err, repositories.ErrConflict) {
		// Someone else resolved the order first; the stored outcome
		// stands and this tampered callback is simply rejected.
		return nil, fmt.Errorf("order %s: %w", order.ID, ErrSignatureInvalid)
	}
	if err != nil {
		return nil, mapRepoError(err)
	}
	return nil, fmt.Errorf("order %s: %w", order.ID, ErrSignatureInvalid)
}

// publishPaid emits the order.paid event; failures are logged, never
// surfaced, so the commit point cannot be blocked by the broker.
func (s *PaymentService) publishPaid(orderID string) {
	if s.mqClient == nil {
		return
	}
	body, err := json.Marshal(map[string]interface{}{
		"event":    "order.paid",
		"order_id": orderID,
	})
	if err != nil {
		log.Printf("Failed to marshal order.paid event for order %s: %v", orderID, err)
		return
	}
	if err := s.mqClient.Publish("order.paid", body); err != nil {
		log.Printf("Warning: Failed to publish order.paid event for order %s: %v", orderID, err)
	}
}

// ExpireStaleSessions closes payment sessions that have been awaiting
// payment longer than the session TTL. Losing the compare-and-set to a
// late verification is fine; the sweep just moves on.
func (s *PaymentService) ExpireStaleSessions() {
	orders, err := s.orderRepo.ListByStatus(models.OrderStatusAwaitingPayment)
	if err != nil {
		log.Printf("Expiry sweep failed to list awaiting orders: %v", err)
		return
	}
	cutoff := time.Now().Add(-s.sessionTTL)
	for _, order := range orders {
		if order.UpdatedAt.After(cutoff) {
			continue
		}
		err := s.orderRepo.CompareAndSetStatus(order.ID, models.OrderStatusAwaitingPayment, models.OrderStatusExpired, nil)
		if err != nil && !errors.Is(err, repositories.ErrConflict) {
			log.Printf("Expiry sweep failed for order %s: %v", order.ID, err)
			continue
		}
		if err == nil {
			log.Printf("Expired payment session for order %s", order.ID)
		}
	}
}

// RunExpirySweeper runs ExpireStaleSessions on the given interval until the
// context is cancelled.
func (s *PaymentService) RunExpirySweeper(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.ExpireStaleSessions()
		}
	}
}
