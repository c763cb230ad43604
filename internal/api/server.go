// Package api exposes the HTTP surface: the Twilio webhook, a direct chat
// endpoint, and the authenticated management API for cars, financing,
// knowledge and sessions.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/autoventa/dealerbot/internal/agent"
	"github.com/autoventa/dealerbot/internal/auth"
	"github.com/autoventa/dealerbot/internal/catalog"
	"github.com/autoventa/dealerbot/internal/financing"
	"github.com/autoventa/dealerbot/internal/knowledge"
	"github.com/autoventa/dealerbot/internal/ledger"
	"github.com/autoventa/dealerbot/internal/queue"
	"github.com/autoventa/dealerbot/internal/session"
)

// Catalog is the catalog surface the handlers need. *catalog.Service
// satisfies it.
type Catalog interface {
	Search(ctx context.Context, f catalog.Filter) ([]catalog.Car, error)
	Repo() catalog.Repository
}

// KnowledgeStore is the knowledge-base surface the handlers need.
// *knowledge.Store satisfies it.
type KnowledgeStore interface {
	IngestText(ctx context.Context, text, sourceURL string) (int, error)
	IngestURL(ctx context.Context, pageURL string) (int, error)
	Search(ctx context.Context, query string, topK int) ([]knowledge.SearchResult, error)
	List(ctx context.Context, sourceURL string, limit int) ([]knowledge.Document, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

// Config holds HTTP-layer settings.
type Config struct {
	// TwilioAuthToken signs webhook requests. Empty disables signature
	// validation (local development only).
	TwilioAuthToken string

	// PublicURL is the externally visible base URL Twilio signed against,
	// e.g. "https://bot.example.com".
	PublicURL string

	// ChatTimeout bounds the synchronous chat endpoint (default 60s).
	ChatTimeout time.Duration
}

// Server wires the handlers to their collaborators.
type Server struct {
	cfg       Config
	queue     *queue.Queue
	sessions  *session.Store
	gateway   agent.Gateway
	records   ledger.Ledger
	catalog   Catalog
	calc      *financing.Calculator
	knowledge KnowledgeStore
	tokens    *auth.JWTManager
	creds     auth.Credentials
}

// NewServer creates the HTTP server.
func NewServer(cfg Config, q *queue.Queue, sessions *session.Store,
	gateway agent.Gateway, records ledger.Ledger, cat Catalog,
	calc *financing.Calculator, kb KnowledgeStore,
	tokens *auth.JWTManager, creds auth.Credentials) *Server {
	if cfg.ChatTimeout <= 0 {
		cfg.ChatTimeout = 60 * time.Second
	}
	return &Server{
		cfg:       cfg,
		queue:     q,
		sessions:  sessions,
		gateway:   gateway,
		records:   records,
		catalog:   cat,
		calc:      calc,
		knowledge: kb,
		tokens:    tokens,
		creds:     creds,
	}
}

// Router builds the gin engine with all routes registered.
func (s *Server) Router() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())

	router.GET("/health", s.handleHealth)

	v1 := router.Group("/api/v1")
	v1.POST("/auth/login", s.handleLogin)
	v1.POST("/chat/webhooks/twilio", s.handleWebhook)

	protected := v1.Group("", auth.Middleware(s.tokens))
	{
		protected.POST("/chat/message", s.handleChatMessage)
		protected.GET("/chat/sessions/:phone", s.handleGetSession)
		protected.DELETE("/chat/sessions/:phone", s.handleDeleteSession)

		protected.GET("/cars", s.handleSearchCars)
		protected.POST("/cars", s.handleCreateCar)
		protected.POST("/cars/bulk", s.handleCreateCarsBulk)
		protected.GET("/cars/:id", s.handleGetCar)
		protected.PUT("/cars/:id", s.handleUpdateCar)
		protected.DELETE("/cars/:id", s.handleDeleteCar)

		protected.POST("/financing/calculate", s.handleFinancing)

		protected.GET("/knowledge", s.handleListKnowledge)
		protected.POST("/knowledge", s.handleIngestKnowledge)
		protected.POST("/knowledge/scrape", s.handleScrapeKnowledge)
		protected.POST("/knowledge/search", s.handleSearchKnowledge)
		protected.DELETE("/knowledge/:id", s.handleDeleteKnowledge)
	}

	return router
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":         "ok",
		"queue_depth":    s.queue.Len(),
		"queue_capacity": s.queue.Cap(),
		"sessions":       s.sessions.Len(),
	})
}

type loginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

func (s *Server) handleLogin(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "username and password required"})
		return
	}

	if err := s.creds.Check(req.Username, req.Password); err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "bad credentials"})
		return
	}

	token, err := s.tokens.Generate(req.Username)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not issue token"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"access_token": token, "token_type": "bearer"})
}
