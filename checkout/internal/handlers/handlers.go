package handlers

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/dylan-murrayy/Rabbit-Demo/checkout/internal/service"
	"github.com/dylan-murrayy/Rabbit-Demo/pkg/models"
)

// CheckoutHandler serves the checkout HTTP surface.
type CheckoutHandler struct {
	serviceName string
	dispatcher  *service.Dispatcher
}

func NewCheckoutHandler(serviceName string, dispatcher *service.Dispatcher) *CheckoutHandler {
	return &CheckoutHandler{
		serviceName: serviceName,
		dispatcher:  dispatcher,
	}
}

func (h *CheckoutHandler) RegisterRoutes(e *echo.Echo) {
	e.GET("/", h.Root)
	e.POST("/checkout", h.Checkout)
}

// Checkout answers with the payment result in SYNC mode and with an
// acceptance acknowledgment in ASYNC mode.
func (h *CheckoutHandler) Checkout(c echo.Context) error {
	var order models.OrderRequest
	if err := c.Bind(&order); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request body")
	}
	if err := order.Validate(); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	outcome, err := h.dispatcher.Submit(c.Request().Context(), order)
	if err != nil {
		var dispatchErr *service.DispatchError
		if errors.As(err, &dispatchErr) {
			return echo.NewHTTPError(dispatchErr.Status, dispatchErr.Detail)
		}
		return echo.NewHTTPError(http.StatusInternalServerError, "Checkout failed")
	}

	if outcome.Accepted != nil {
		return c.JSON(http.StatusOK, outcome.Accepted)
	}
	return c.JSONBlob(http.StatusOK, outcome.Payment)
}

func (h *CheckoutHandler) Root(c echo.Context) error {
	return c.JSON(http.StatusOK, models.ServiceInfo{
		Service: h.serviceName,
		Mode:    h.dispatcher.Mode(),
	})
}
