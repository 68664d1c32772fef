package main

import (
	"context"
	"fmt"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// NotificationRequest mirrors the body the processor posts for every voucher
// lifecycle event.
type NotificationRequest struct {
	EventID           string    `json:"event_id" binding:"required"`
	Type              string    `json:"type" binding:"required"`
	UserID            int64     `json:"user_id" binding:"required"`
	VoucherID         int64     `json:"voucher_id"`
	RedemptionID      int64     `json:"redemption_id"`
	PurchaseReference string    `json:"purchase_reference"`
	Amount            string    `json:"amount"`
	Status            string    `json:"status"`
	OccurredAt        time.Time `json:"occurred_at"`
}

type NotificationResponse struct {
	EventID    string    `json:"event_id"`
	Accepted   bool      `json:"accepted"`
	ReceivedAt time.Time `json:"received_at"`
	ReceiptID  string    `json:"receipt_id"`
	Duplicate  bool      `json:"duplicate,omitempty"`
}

type HealthResponse struct {
	Status      string    `json:"status"`
	SinkID      string    `json:"sink_id"`
	Timestamp   time.Time `json:"timestamp"`
	FailureRate float64   `json:"failure_rate"`
	Received    int       `json:"received"`
}

// MockSink accepts notifications and keeps them in memory. A configurable
// share of requests fails with 503 so the processor retry path gets exercised.
type MockSink struct {
	mu          sync.Mutex
	failureRate float64
	minDelay    time.Duration
	maxDelay    time.Duration
	sinkID      string
	rng         *rand.Rand
	received    map[string]NotificationResponse
}

func NewMockSink(failureRate float64, minDelay, maxDelay time.Duration) *MockSink {
	return &MockSink{
		failureRate: failureRate,
		minDelay:    minDelay,
		maxDelay:    maxDelay,
		sinkID:      "MOCK_NOTIFIER_" + uuid.New().String()[:8],
		rng:         rand.New(rand.NewSource(time.Now().UnixNano())),
		received:    make(map[string]NotificationResponse),
	}
}

func (m *MockSink) randomDelay() time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	delta := m.maxDelay - m.minDelay
	if delta <= 0 {
		return m.minDelay
	}
	return m.minDelay + time.Duration(m.rng.Int63n(int64(delta)))
}

func (m *MockSink) shouldFail() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.rng.Float64() < m.failureRate
}

// accept stores req once. Redelivered event ids return the first receipt.
func (m *MockSink) accept(req *NotificationRequest) NotificationResponse {
	m.mu.Lock()
	defer m.mu.Unlock()
	if prev, ok := m.received[req.EventID]; ok {
		prev.Duplicate = true
		return prev
	}
	resp := NotificationResponse{
		EventID:    req.EventID,
		Accepted:   true,
		ReceivedAt: time.Now().UTC(),
		ReceiptID:  uuid.New().String(),
	}
	m.received[req.EventID] = resp
	return resp
}

func (m *MockSink) lookup(eventID string) (NotificationResponse, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	resp, ok := m.received[eventID]
	return resp, ok
}

func (m *MockSink) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.received)
}

type Handler struct {
	sink *MockSink
}

func NewHandler(sink *MockSink) *Handler {
	return &Handler{sink: sink}
}

func (h *Handler) Notify(c *gin.Context) {
	var req NotificationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request",
			"details": err.Error(),
		})
		return
	}

	time.Sleep(h.sink.randomDelay())

	if h.sink.shouldFail() {
		log.Warn().
			Str("event_id", req.EventID).
			Str("type", req.Type).
			Msg("Notification rejected (simulated outage)")
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "notifier temporarily unavailable"})
		return
	}

	resp := h.sink.accept(&req)
	log.Info().
		Str("event_id", req.EventID).
		Str("type", req.Type).
		Int64("user_id", req.UserID).
		Str("reference", req.PurchaseReference).
		Bool("duplicate", resp.Duplicate).
		Msg("Notification received")

	c.JSON(http.StatusOK, resp)
}

func (h *Handler) GetNotification(c *gin.Context) {
	resp, ok := h.sink.lookup(c.Param("event_id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "notification not found"})
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *Handler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, HealthResponse{
		Status:      "healthy",
		SinkID:      h.sink.sinkID,
		Timestamp:   time.Now(),
		FailureRate: h.sink.failureRate,
		Received:    h.sink.count(),
	})
}

// UpdateConfig changes the simulated failure rate at runtime.
func (h *Handler) UpdateConfig(c *gin.Context) {
	var config struct {
		FailureRate *float64 `json:"failure_rate"`
	}

	if err := c.ShouldBindJSON(&config); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request",
			"details": err.Error(),
		})
		return
	}

	if config.FailureRate != nil && *config.FailureRate >= 0 && *config.FailureRate <= 1.0 {
		h.sink.mu.Lock()
		h.sink.failureRate = *config.FailureRate
		h.sink.mu.Unlock()
		log.Info().Float64("rate", *config.FailureRate).Msg("Updated failure rate")
	}

	c.JSON(http.StatusOK, gin.H{
		"message":      "Configuration updated",
		"failure_rate": h.sink.failureRate,
	})
}

func SetupRouter(handler *Handler) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())

	router.Use(func(c *gin.Context) {
		start := time.Now()
		c.Next()

		log.Info().
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", c.Writer.Status()).
			Dur("duration", time.Since(start)).
			Msg("Request processed")
	})

	v1 := router.Group("/api/v1")
	{
		v1.POST("/notifications", handler.Notify)
		v1.GET("/notifications/:event_id", handler.GetNotification)
		v1.GET("/health", handler.HealthCheck)
		v1.PUT("/config", handler.UpdateConfig)
	}

	router.GET("/health", handler.HealthCheck)

	return router
}

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	port := getEnv("PORT", "8081")
	failureRate := getEnvFloat("FAILURE_RATE", 0)
	minDelay := getEnvDuration("MIN_DELAY", 10*time.Millisecond)
	maxDelay := getEnvDuration("MAX_DELAY", 200*time.Millisecond)

	log.Info().
		Str("port", port).
		Float64("failure_rate", failureRate).
		Dur("min_delay", minDelay).
		Dur("max_delay", maxDelay).
		Msg("Starting mock notifier")

	router := SetupRouter(NewHandler(NewMockSink(failureRate, minDelay, maxDelay)))

	srv := &http.Server{
		Addr:         ":" + port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Str("addr", srv.Addr).Msg("Server started")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server exited")
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		var f float64
		if _, err := fmt.Sscanf(value, "%f", &f); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
