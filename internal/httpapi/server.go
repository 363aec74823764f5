// Package httpapi exposes the Telegram webhook and the bonus-code REST API.
package httpapi

import (
	"context"
	"net/http"
	"time"

	"bonus-drops/internal/ingest"
	"bonus-drops/internal/models"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gopkg.in/telebot.v4"
)

const maxBodyBytes = 1 << 20

type Store interface {
	List(ctx context.Context, f models.BonusCodeFilters) ([]models.BonusCode, error)
	GetByID(ctx context.Context, id string) (*models.BonusCode, error)
	Create(ctx context.Context, b *models.BonusCode) error
	Update(ctx context.Context, id string, u models.BonusCodeUpdate) error
	Delete(ctx context.Context, id string) error
	DeactivateExpired(ctx context.Context, now time.Time) (int, error)
}

type Ingester interface {
	HandleMessage(ctx context.Context, msg models.RawMessage) (ingest.Outcome, error)
}

// UpdateProcessor receives every webhook update, e.g. the admin bot.
type UpdateProcessor interface {
	ProcessUpdate(u telebot.Update)
}

type Pinger interface {
	Ping(ctx context.Context) error
}

type Server struct {
	store         Store
	ingester      Ingester
	updates       UpdateProcessor
	pinger        Pinger
	adminToken    string
	webhookSecret string
	limiter       *RateLimiter
	now           func() time.Time
}

type Option func(*Server)

func WithAdminToken(token string) Option {
	return func(s *Server) { s.adminToken = token }
}

func WithWebhookSecret(secret string) Option {
	return func(s *Server) { s.webhookSecret = secret }
}

func WithRateLimit(rps float64, burst int) Option {
	return func(s *Server) { s.limiter = NewRateLimiter(rps, burst) }
}

func WithUpdateProcessor(p UpdateProcessor) Option {
	return func(s *Server) { s.updates = p }
}

func WithPinger(p Pinger) Option {
	return func(s *Server) { s.pinger = p }
}

func WithClock(now func() time.Time) Option {
	return func(s *Server) { s.now = now }
}

func New(store Store, ingester Ingester, opts ...Option) *Server {
	s := &Server{
		store:    store,
		ingester: ingester,
		limiter:  NewRateLimiter(5, 10),
		now:      time.Now,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Router builds the gin engine. Middleware order: request id, access log,
// recovery, body limit, metrics.
func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.HandleMethodNotAllowed = true

	r.Use(RequestID())
	r.Use(AccessLog())
	r.Use(Recovery())
	r.Use(limitBody(maxBodyBytes))
	r.Use(Metrics())

	r.NoRoute(func(c *gin.Context) { fail(c, http.StatusNotFound, "route not found") })
	r.NoMethod(func(c *gin.Context) { fail(c, http.StatusMethodNotAllowed, "method not allowed") })

	r.GET("/healthz", s.health)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	r.POST("/telegram/webhook", WebhookSecret(s.webhookSecret), s.webhook)

	api := r.Group("/api/bonus-codes")
	{
		api.GET("", s.listBonusCodes)
		api.GET("/active", s.listActiveBonusCodes)
		api.GET("/:id", s.getBonusCode)

		admin := api.Group("", s.limiter.Handler(), AdminAuth(s.adminToken))
		admin.POST("", s.createBonusCode)
		admin.POST("/cleanup", s.cleanupExpired)
		admin.PUT("/:id", s.updateBonusCode)
		admin.DELETE("/:id", s.deleteBonusCode)
	}

	return r
}

func limitBody(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}

func (s *Server) health(c *gin.Context) {
	if s.pinger != nil {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()

		if err := s.pinger.Ping(ctx); err != nil {
			fail(c, http.StatusServiceUnavailable, "database unavailable")
			return
		}
	}
	ok(c, http.StatusOK, gin.H{"status": "ok"})
}
