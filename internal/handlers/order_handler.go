package handlers

import (
	"errors"
	"fmt"
	"log"

	"rishe/internal/cart"
	"rishe/internal/middleware"
	"rishe/internal/models"
	"rishe/internal/services"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
)

// OrderHandler exposes the checkout workflow over HTTP: order creation,
// payment session opening, and callback verification.
type OrderHandler struct {
	orderService   *services.OrderService
	paymentService *services.PaymentService
	validate       *validator.Validate
}

// NewOrderHandler creates a new OrderHandler.
func NewOrderHandler(orderService *services.OrderService, paymentService *services.PaymentService) *OrderHandler {
	return &OrderHandler{
		orderService:   orderService,
		paymentService: paymentService,
		validate:       validator.New(),
	}
}

// RegisterRoutes registers the order routes with the Fiber app.
func (h *OrderHandler) RegisterRoutes(router fiber.Router) {
	orderRoutes := router.Group("/orders")
	orderRoutes.Post("/", h.HandleCreateOrder)
	orderRoutes.Get("/", h.HandleListOrders)
	orderRoutes.Post("/verify-payment", h.HandleVerifyPayment)
	orderRoutes.Get("/:id", h.HandleGetOrder)
	orderRoutes.Post("/:id/payment-session", h.HandleOpenPaymentSession)
	orderRoutes.Get("/:id/transitions", h.HandleGetTransitions)
}

// lineItemRequest mirrors one cart line. Unit prices echoed by the client
// are informational only; the server reprices from the catalog.
type lineItemRequest struct {
	ProductID string  `json:"product_id" validate:"required"`
	Color     string  `json:"color"`
	Size      string  `json:"size"`
	Quantity  int     `json:"quantity" validate:"required,gt=0"`
	UnitPrice float64 `json:"unit_price"`
}

type createOrderRequest struct {
	Items           []lineItemRequest      `json:"line_items" validate:"required,min=1,dive"`
	ShippingAddress models.ShippingAddress `json:"shipping_address" validate:"required"`
	ClientTotal     *float64               `json:"total_amount"`
}

// HandleCreateOrder builds a durable order from the submitted cart lines.
func (h *OrderHandler) HandleCreateOrder(c *fiber.Ctx) error {
	principal, ok := middleware.PrincipalFromCtx(c)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"message": "Authentication required",
		})
	}

	var req createOrderRequest
	if err := c.BodyParser(&req); err != nil {
		log.Printf("Error parsing create order request body: %v", err)
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": "Invalid request body",
			"error":   err.Error(),
		})
	}

	if err := h.validate.Struct(req); err != nil {
		validationErrors := err.(validator.ValidationErrors)
		errorMessages := make(map[string]string)
		for _, e := range validationErrors {
			errorMessages[e.Field()] = fmt.Sprintf("Field '%s' failed on the '%s' tag", e.Field(), e.Tag())
		}
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": "Validation failed",
			"errors":  errorMessages,
		})
	}

	// Build an unstamped snapshot: client-supplied prices are never
	// trusted, so order creation reprices everything from the catalog.
	snapshot := cart.Snapshot{Items: make([]cart.Item, 0, len(req.Items))}
	for _, line := range req.Items {
		snapshot.Items = append(snapshot.Items, cart.Item{
			ProductID: line.ProductID,
			Color:     line.Color,
			Size:      line.Size,
			Quantity:  line.Quantity,
			UnitPrice: line.UnitPrice,
		})
	}

	order, err := h.orderService.CreateOrder(principal, snapshot, req.ShippingAddress, req.ClientTotal)
	if err != nil {
		log.Printf("Error creating order for owner %s: %v", principal.OwnerID, err)
		switch {
		case errors.Is(err, services.ErrEmptyCart), errors.Is(err, services.ErrValidation):
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"message": "Order creation failed",
				"error":   err.Error(),
			})
		default:
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"message": "Could not create order",
				"error":   err.Error(),
			})
		}
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"order_id":       order.ID,
		"declared_total": order.DeclaredTotal,
		"currency":       order.Currency,
		"status":         order.Status,
	})
}

// HandleOpenPaymentSession mints (or returns the existing) gateway session
// for an order.
func (h *OrderHandler) HandleOpenPaymentSession(c *fiber.Ctx) error {
	principal, ok := middleware.PrincipalFromCtx(c)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"message": "Authentication required",
		})
	}

	orderID := c.Params("id")
	// Ownership check before touching the gateway.
	if _, err := h.orderService.GetOrderForOwner(principal, orderID); err != nil {
		return h.orderErrorResponse(c, orderID, err)
	}

	session, err := h.paymentService.OpenSession(c.Context(), orderID)
	if err != nil {
		log.Printf("Error opening payment session for order %s: %v", orderID, err)
		return h.orderErrorResponse(c, orderID, err)
	}

	return c.JSON(session)
}

// HandleVerifyPayment authenticates the gateway callback and commits the
// paid transition. On success the client is expected to clear its cart.
func (h *OrderHandler) HandleVerifyPayment(c *fiber.Ctx) error {
	if _, ok := middleware.PrincipalFromCtx(c); !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"message": "Authentication required",
		})
	}

	var callback models.PaymentCallback
	if err := c.BodyParser(&callback); err != nil {
		log.Printf("Error parsing verify payment request body: %v", err)
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": "Invalid request body",
			"error":   err.Error(),
		})
	}

	if err := h.validate.Struct(callback); err != nil {
		validationErrors := err.(validator.ValidationErrors)
		errorMessages := make(map[string]string)
		for _, e := range validationErrors {
			errorMessages[e.Field()] = fmt.Sprintf("Field '%s' failed on the '%s' tag", e.Field(), e.Tag())
		}
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": "Validation failed",
			"errors":  errorMessages,
		})
	}

	result, err := h.paymentService.VerifyPayment(c.Context(), callback)
	if err != nil {
		log.Printf("Payment verification failed for order %s: %v", callback.OrderID, err)
		switch {
		case errors.Is(err, services.ErrSignatureInvalid):
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"message": "Payment verification failed, please start a new payment",
				"error":   err.Error(),
			})
		case errors.Is(err, services.ErrReplayAnomaly):
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{
				"message": "Payment callback rejected",
				"error":   err.Error(),
			})
		default:
			return h.orderErrorResponse(c, callback.OrderID, err)
		}
	}

	return c.JSON(fiber.Map{
		"status":     result.Status,
		"order_id":   result.OrderID,
		"message":    "Payment verified successfully",
		"clear_cart": true,
		"replayed":   result.Replayed,
	})
}

// HandleListOrders returns the authenticated principal's orders.
func (h *OrderHandler) HandleListOrders(c *fiber.Ctx) error {
	principal, ok := middleware.PrincipalFromCtx(c)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"message": "Authentication required",
		})
	}

	orders, err := h.orderService.ListOrdersForOwner(principal)
	if err != nil {
		log.Printf("Error listing orders for owner %s: %v", principal.OwnerID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"message": "Could not retrieve orders",
			"error":   err.Error(),
		})
	}
	return c.JSON(orders)
}

// HandleGetOrder returns a single order owned by the principal.
func (h *OrderHandler) HandleGetOrder(c *fiber.Ctx) error {
	principal, ok := middleware.PrincipalFromCtx(c)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"message": "Authentication required",
		})
	}

	orderID := c.Params("id")
	order, err := h.orderService.GetOrderForOwner(principal, orderID)
	if err != nil {
		return h.orderErrorResponse(c, orderID, err)
	}
	return c.JSON(order)
}

// HandleGetTransitions returns the audit trail for one of the principal's
// orders.
func (h *OrderHandler) HandleGetTransitions(c *fiber.Ctx) error {
	principal, ok := middleware.PrincipalFromCtx(c)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"message": "Authentication required",
		})
	}

	orderID := c.Params("id")
	trail, err := h.orderService.OrderTransitions(principal, orderID)
	if err != nil {
		return h.orderErrorResponse(c, orderID, err)
	}
	return c.JSON(trail)
}

// orderErrorResponse maps workflow errors to HTTP statuses.
func (h *OrderHandler) orderErrorResponse(c *fiber.Ctx, orderID string, err error) error {
	switch {
	case errors.Is(err, services.ErrOrderNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"message": fmt.Sprintf("Order with ID %s not found", orderID),
		})
	case errors.Is(err, services.ErrOrderTerminal):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"message": "Order is already resolved",
			"error":   err.Error(),
		})
	case errors.Is(err, services.ErrGatewayUnavailable):
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"message": "Payment gateway unavailable, please retry",
			"error":   err.Error(),
		})
	case errors.Is(err, services.ErrValidation):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": "Invalid request",
			"error":   err.Error(),
		})
	default:
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"message": "Could not process order request",
			"error":   err.Error(),
		})
	}
}
