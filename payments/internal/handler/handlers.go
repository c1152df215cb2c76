package handlers

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/dylan-murrayy/Rabbit-Demo/payments/internal/services"
	"github.com/dylan-murrayy/Rabbit-Demo/pkg/metrics"
	"github.com/dylan-murrayy/Rabbit-Demo/pkg/models"
)

type Handler struct {
	serviceName string
	mode        string
	payments    *services.PaymentService
	metrics     *metrics.Metrics
}

func NewHandler(serviceName, mode string, payments *services.PaymentService, m *metrics.Metrics) *Handler {
	return &Handler{
		serviceName: serviceName,
		mode:        mode,
		payments:    payments,
		metrics:     m,
	}
}

func (h *Handler) RegisterRoutes(e *echo.Echo) {
	e.GET("/", h.Root)
	e.POST("/pay", h.Pay)
}

// Pay executes the payment on the request goroutine and returns the result.
func (h *Handler) Pay(c echo.Context) error {
	var order models.OrderRequest
	if err := c.Bind(&order); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request body")
	}
	if err := order.Validate(); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	start := time.Now()
	result := h.payments.Execute(c.Request().Context(), order)
	h.metrics.ObservePayment("http", time.Since(start))

	return c.JSON(http.StatusOK, result)
}

func (h *Handler) Root(c echo.Context) error {
	return c.JSON(http.StatusOK, models.ServiceInfo{
		Service: h.serviceName,
		Mode:    h.mode,
	})
}
