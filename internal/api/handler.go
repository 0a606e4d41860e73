package api

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"gallery-store/internal/ratelimit"
	"gallery-store/internal/service"
	"gallery-store/internal/util"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Services groups the business services the handlers call
type Services struct {
	Users     *service.UserService
	Products  *service.ProductService
	Carts     *service.CartService
	OTPs      *service.OTPService
	Orders    *service.OrderService
	Analytics *service.AnalyticsService
}

// Pinger reports whether the backing store is reachable
type Pinger interface {
	Ping(ctx context.Context) error
}

// LiveFeed serves the admin websocket feed
type LiveFeed interface {
	ServeWS(c *gin.Context)
}

// Options tunes the HTTP surface
type Options struct {
	CORSOrigins   []string
	RateLimit     *ratelimit.Config
	ExposeOTPCode bool
	CookieSecure  bool
}

// Handler contains HTTP handlers
type Handler struct {
	svc     Services
	pinger  Pinger
	live    LiveFeed
	opts    Options
	limiter *ratelimit.KeyedLimiter
	logger  *zap.Logger
}

// NewHandler creates a new HTTP handler. live may be nil.
func NewHandler(svc Services, pinger Pinger, live LiveFeed, opts Options) *Handler {
	registerValidation()

	h := &Handler{
		svc:    svc,
		pinger: pinger,
		live:   live,
		opts:   opts,
		logger: util.GetLogger(),
	}
	if opts.RateLimit != nil {
		h.limiter = ratelimit.NewKeyedLimiter(*opts.RateLimit)
	}
	return h
}

// SetupRoutes sets up HTTP routes
func (h *Handler) SetupRoutes(router *gin.Engine) {
	router.Use(gin.Recovery())
	router.Use(prometheusMiddleware())
	router.Use(requestLogger(h.logger))
	if c, ok := corsConfig(h.opts.CORSOrigins); ok {
		router.Use(cors.New(c))
	}

	router.GET("/health", h.healthCheck)
	router.GET("/ready", h.readinessCheck)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := router.Group("/api", h.rateLimit())
	{
		api.POST("/register", h.register)
		api.POST("/login", h.login)
		api.POST("/logout", h.logout)

		api.GET("/products", h.listProducts)
		api.GET("/products/:id", h.getProduct)
	}

	authed := api.Group("", h.requireAuth())
	{
		authed.GET("/user", h.currentUser)
		authed.POST("/verify-otp", h.verifyOTP)
		authed.GET("/orders", h.listMyOrders)
		authed.GET("/orders/:id", h.getOrder)
	}

	shop := api.Group("", h.requireShopper())
	{
		shop.GET("/cart", h.getCart)
		shop.POST("/cart", h.addToCart)
		shop.DELETE("/cart", h.clearCart)
		shop.GET("/cart/summary", h.cartSummary)
		shop.PATCH("/cart/:productId", h.updateCartItem)
		shop.DELETE("/cart/:productId", h.removeCartItem)
		shop.POST("/generate-checkout-otp", h.generateCheckoutOTP)
		shop.POST("/orders", h.placeOrder)
	}

	admin := api.Group("", h.requireAdmin())
	{
		admin.POST("/products", h.createProduct)
		admin.PATCH("/products/:id", h.updateProduct)
		admin.DELETE("/products/:id", h.deleteProduct)

		admin.GET("/analytics/revenue", h.revenue)
		admin.GET("/analytics/order-status", h.orderStatus)
		admin.GET("/analytics/summary", h.summary)
		admin.GET("/analytics/export", h.export)

		admin.GET("/admin/orders", h.listAllOrders)
		admin.PATCH("/admin/orders/:id", h.updateOrderStatus)
		if h.live != nil {
			admin.GET("/admin/orders/live", h.live.ServeWS)
		}
	}
}

func corsConfig(origins []string) (cors.Config, bool) {
	if len(origins) == 0 {
		return cors.Config{}, false
	}

	c := cors.Config{
		AllowMethods:     []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
		ExposeHeaders:    []string{"Content-Length", "Content-Disposition"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	for _, o := range origins {
		if o == "*" {
			c.AllowAllOrigins = true
			c.AllowCredentials = false
			return c, true
		}
	}
	c.AllowOrigins = origins
	return c, true
}

// healthCheck handles health check requests
func (h *Handler) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "healthy",
		"time":   time.Now().Unix(),
	})
}

// readinessCheck reports ready only when the store answers
func (h *Handler) readinessCheck(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	if err := h.pinger.Ping(ctx); err != nil {
		h.logger.Warn("Readiness check failed", zap.Error(err))
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status": "unavailable",
			"time":   time.Now().Unix(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status": "ready",
		"time":   time.Now().Unix(),
	})
}

// prometheusMiddleware collects HTTP metrics
func prometheusMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(c.Writer.Status())
		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}

		util.HTTPRequestDuration.WithLabelValues(c.Request.Method, path, status).Observe(duration)
		util.HTTPRequestsTotal.WithLabelValues(c.Request.Method, path, status).Inc()
	}
}

// requestLogger writes one line per request
func requestLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		logger.Info("HTTP request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("client_ip", c.ClientIP()))
	}
}
