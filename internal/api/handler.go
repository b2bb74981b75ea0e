package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"storefront-service/internal/catalog"
	"storefront-service/internal/payment"
	"storefront-service/internal/service"
	"storefront-service/internal/store"
	"storefront-service/internal/util"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

const (
	defaultSignatureHeader = "X-Razorpay-Signature"
	eventIDHeader          = "X-Razorpay-Event-Id"
)

// Pinger reports whether a backing dependency is reachable
type Pinger interface {
	Ping(ctx context.Context) error
}

// Handler contains HTTP handlers
type Handler struct {
	orderService    *service.OrderService
	reconciler      *service.ReconciliationService
	catalog         *catalog.Service
	readiness       Pinger
	signatureHeader string
	exposeErrors    bool
	logger          *zap.Logger
}

// HandlerOptions tunes error exposure and webhook header names
type HandlerOptions struct {
	Readiness       Pinger
	SignatureHeader string
	ExposeErrors    bool
}

// NewHandler creates a new HTTP handler
func NewHandler(
	orderService *service.OrderService,
	reconciler *service.ReconciliationService,
	catalogService *catalog.Service,
	opts HandlerOptions,
) *Handler {
	if opts.SignatureHeader == "" {
		opts.SignatureHeader = defaultSignatureHeader
	}

	return &Handler{
		orderService:    orderService,
		reconciler:      reconciler,
		catalog:         catalogService,
		readiness:       opts.Readiness,
		signatureHeader: opts.SignatureHeader,
		exposeErrors:    opts.ExposeErrors,
		logger:          util.GetLogger(),
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

	legacy := router.Group("/api")
	{
		legacy.POST("/order", h.createOrder)
		legacy.POST("/webhook/razorpay", h.razorpayWebhook)
	}

	v1 := router.Group("/api/v1")
	{
		v1.POST("/orders", h.createOrder)
		v1.GET("/orders/:id", h.getOrder)
		v1.GET("/orders/:id/status", h.getOrderStatus)
		v1.POST("/webhooks/razorpay", h.razorpayWebhook)

		if h.catalog != nil {
			v1.GET("/products", h.listProducts)
			v1.GET("/products/:id", h.getProduct)
		}
	}
}

// healthCheck handles health check requests
func (h *Handler) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "healthy",
		"time":   time.Now().Unix(),
	})
}

// readinessCheck reports ready once the order store answers
func (h *Handler) readinessCheck(c *gin.Context) {
	if h.readiness != nil {
		if err := h.readiness.Ping(c.Request.Context()); err != nil {
			h.logger.Warn("Readiness check failed", zap.Error(err))
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status": "unavailable",
				"time":   time.Now().Unix(),
			})
			return
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"status": "ready",
		"time":   time.Now().Unix(),
	})
}

// createOrder opens a payment intent and records the pending order
func (h *Handler) createOrder(c *gin.Context) {
	var req service.CreateOrderRequest

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": bindErrorMessage(err)})
		return
	}

	resp, err := h.orderService.CreateOrder(c.Request.Context(), &req)
	if err != nil {
		var verr *service.ValidationError
		if errors.As(err, &verr) {
			c.JSON(http.StatusBadRequest, gin.H{"error": verr.Message()})
			return
		}

		h.logger.Error("Order creation failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": h.internalMessage(err, "Failed to create order")})
		return
	}

	c.JSON(http.StatusOK, resp)
}

// razorpayWebhook verifies the signature over the raw body before anything else
func (h *Handler) razorpayWebhook(c *gin.Context) {
	body, err := c.GetRawData()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	result, err := h.reconciler.HandleWebhook(c.Request.Context(), service.Notification{
		Body:      body,
		Signature: c.GetHeader(h.signatureHeader),
		EventID:   c.GetHeader(eventIDHeader),
	})
	switch {
	case errors.Is(err, payment.ErrMissingSignature):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing signature"})
		return
	case errors.Is(err, payment.ErrInvalidSignature):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid signature"})
		return
	case err != nil:
		h.logger.Error("Webhook processing failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Webhook processing failed"})
		return
	}

	h.logger.Debug("Webhook processed",
		zap.String("event", result.Event),
		zap.String("outcome", result.Outcome))
	c.JSON(http.StatusOK, gin.H{"received": true})
}

// getOrder handles get order by ID
func (h *Handler) getOrder(c *gin.Context) {
	order, err := h.orderService.GetOrder(c.Request.Context(), c.Param("id"))
	if errors.Is(err, store.ErrOrderNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Order not found"})
		return
	}
	if err != nil {
		h.logger.Error("Failed to load order", zap.String("order_id", c.Param("id")), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": h.internalMessage(err, "Failed to load order")})
		return
	}

	c.JSON(http.StatusOK, order)
}

func (h *Handler) getOrderStatus(c *gin.Context) {
	orderID := c.Param("id")
	status, err := h.orderService.GetOrderStatus(c.Request.Context(), orderID)
	if errors.Is(err, store.ErrOrderNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Order not found"})
		return
	}
	if err != nil {
		h.logger.Error("Failed to load order status", zap.String("order_id", orderID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": h.internalMessage(err, "Failed to load order")})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"orderId": orderID,
		"status":  status,
	})
}

func (h *Handler) listProducts(c *gin.Context) {
	products, err := h.catalog.ListProducts(c.Request.Context())
	if err != nil {
		h.logger.Error("Failed to fetch products", zap.Error(err))
		c.JSON(http.StatusBadGateway, gin.H{"error": "Error fetching products"})
		return
	}

	c.JSON(http.StatusOK, products)
}

func (h *Handler) getProduct(c *gin.Context) {
	productID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || productID <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid product ID"})
		return
	}

	product, err := h.catalog.GetProduct(c.Request.Context(), productID)
	if errors.Is(err, catalog.ErrProductNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Product not found"})
		return
	}
	if err != nil {
		h.logger.Error("Failed to fetch product", zap.Int64("product_id", productID), zap.Error(err))
		c.JSON(http.StatusBadGateway, gin.H{"error": "Error fetching products"})
		return
	}

	c.JSON(http.StatusOK, product)
}

func (h *Handler) internalMessage(err error, fallback string) string {
	if h.exposeErrors {
		return err.Error()
	}
	return fallback
}

func bindErrorMessage(err error) string {
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) && typeErr.Field == "price" {
		return "Invalid price value"
	}
	if errors.Is(err, io.EOF) {
		return "Missing required fields (title, price, image, category)"
	}
	return "Invalid request body"
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
