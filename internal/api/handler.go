package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"travel-sales-service/internal/service"
	"travel-sales-service/internal/store"
	"travel-sales-service/internal/util"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Handler contains HTTP handlers
type Handler struct {
	saleService    *service.SaleService
	ledgerService  *service.LedgerService
	gatewayService *service.GatewayService
}

// NewHandler creates a new HTTP handler
func NewHandler(saleService *service.SaleService, ledgerService *service.LedgerService, gatewayService *service.GatewayService) *Handler {
	return &Handler{
		saleService:    saleService,
		ledgerService:  ledgerService,
		gatewayService: gatewayService,
	}
}

// SetupRoutes sets up HTTP routes
func (h *Handler) SetupRoutes(router *gin.Engine) {
	router.Use(gin.Recovery())
	router.Use(prometheusMiddleware())
	router.Use(gin.Logger())

	router.GET("/health", h.healthCheck)
	router.GET("/ready", h.readinessCheck)

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := router.Group("/api/v1")
	{
		v1.POST("/sales", h.createSale)
		v1.GET("/sales/:id", h.getSale)
		v1.POST("/sales/:id/cancel", h.cancelSale)

		v1.POST("/payments", h.recordPayment)
		v1.POST("/payments/qr", h.createQRPayment)
		v1.GET("/payments/:id/status", h.paymentStatus)
		v1.POST("/payments/:id/review", h.resolveReview)

		v1.GET("/installments/overdue", h.listOverdue)
		v1.GET("/installments/due", h.listDueSoon)

		v1.POST("/gateway/callback", h.gatewayCallback)
	}
}

// healthCheck handles health check requests
func (h *Handler) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "healthy",
		"time":   time.Now().Unix(),
	})
}

// readinessCheck handles readiness check requests
func (h *Handler) readinessCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ready",
		"time":   time.Now().Unix(),
	})
}

// createSale handles sale creation
func (h *Handler) createSale(c *gin.Context) {
	var req service.CreateSaleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request body",
			"details": err.Error(),
		})
		return
	}

	detail, err := h.saleService.CreateSale(c.Request.Context(), &req)
	if err != nil {
		respondError(c, err, "Failed to create sale")
		return
	}

	c.JSON(http.StatusCreated, decorateSaleDetail(detail))
}

// getSale handles get sale by ID
func (h *Handler) getSale(c *gin.Context) {
	saleID, ok := pathID(c)
	if !ok {
		return
	}

	detail, err := h.saleService.GetSale(c.Request.Context(), saleID)
	if err != nil {
		respondError(c, err, "Failed to load sale")
		return
	}

	c.JSON(http.StatusOK, decorateSaleDetail(detail))
}

// cancelSale handles sale cancellation
func (h *Handler) cancelSale(c *gin.Context) {
	saleID, ok := pathID(c)
	if !ok {
		return
	}

	var req struct {
		Reason  string `json:"reason,omitempty"`
		ActorID int64  `json:"actor_id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request body",
			"details": err.Error(),
		})
		return
	}

	if err := h.saleService.CancelSale(c.Request.Context(), saleID, req.Reason, req.ActorID); err != nil {
		respondError(c, err, "Failed to cancel sale")
		return
	}

	c.JSON(http.StatusOK, gin.H{"cancelled": true})
}

// recordPayment handles staff-entered payments
func (h *Handler) recordPayment(c *gin.Context) {
	var req service.RecordPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request body",
			"details": err.Error(),
		})
		return
	}

	payment, err := h.ledgerService.RecordPayment(c.Request.Context(), &req)
	if err != nil {
		respondError(c, err, "Failed to record payment")
		return
	}

	c.JSON(http.StatusCreated, payment)
}

// createQRPayment requests a QR from the gateway
func (h *Handler) createQRPayment(c *gin.Context) {
	var req service.CreateQRPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request body",
			"details": err.Error(),
		})
		return
	}

	payment, err := h.gatewayService.CreateQRPayment(c.Request.Context(), &req)
	if err != nil {
		respondError(c, err, "Failed to create QR payment")
		return
	}

	c.JSON(http.StatusCreated, payment)
}

// resolveReview handles the operator resolution of a REVIEW payment
func (h *Handler) resolveReview(c *gin.Context) {
	paymentID, ok := pathID(c)
	if !ok {
		return
	}

	var req struct {
		Resolution string `json:"resolution" binding:"required"`
		ActorID    int64  `json:"actor_id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request body",
			"details": err.Error(),
		})
		return
	}

	payment, err := h.ledgerService.ResolveReviewPayment(c.Request.Context(), paymentID, req.Resolution, req.ActorID)
	if err != nil {
		respondError(c, err, "Failed to resolve payment")
		return
	}

	c.JSON(http.StatusOK, payment)
}

// listOverdue returns overdue installments, sweeping first
func (h *Handler) listOverdue(c *gin.Context) {
	rows, err := h.ledgerService.ListOverdue(c.Request.Context())
	if err != nil {
		respondError(c, err, "Failed to list overdue installments")
		return
	}
	c.JSON(http.StatusOK, gin.H{"installments": decorateInstallments(rows)})
}

// listDueSoon returns installments due within ?days (default 7)
func (h *Handler) listDueSoon(c *gin.Context) {
	days := 7
	if raw := c.Query("days"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid days parameter"})
			return
		}
		days = parsed
	}

	rows, err := h.ledgerService.ListDueSoon(c.Request.Context(), days)
	if err != nil {
		respondError(c, err, "Failed to list due installments")
		return
	}
	c.JSON(http.StatusOK, gin.H{"installments": decorateInstallments(rows)})
}

func pathID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid ID"})
		return 0, false
	}
	return id, true
}

// respondError maps the service error taxonomy onto HTTP statuses
func respondError(c *gin.Context, err error, msg string) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, store.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, service.ErrInvalidInput):
		status = http.StatusBadRequest
	case errors.Is(err, service.ErrExceedsBalance):
		status = http.StatusUnprocessableEntity
	case errors.Is(err, service.ErrSaleHasPayments),
		errors.Is(err, store.ErrInsufficientSeats):
		status = http.StatusConflict
	case errors.Is(err, service.ErrGatewayUnavailable):
		status = http.StatusBadGateway
	}

	c.JSON(status, gin.H{
		"error":   msg,
		"details": err.Error(),
	})
}

// prometheusMiddleware collects HTTP metrics
func prometheusMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(c.Writer.Status())

		util.HTTPRequestDuration.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			status,
		).Observe(duration)

		util.HTTPRequestsTotal.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			status,
		).Inc()
	}
}
