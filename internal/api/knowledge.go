package api

import (
	"errors"
	"net/http"
	"net/url"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/autoventa/dealerbot/internal/financing"
	"github.com/autoventa/dealerbot/internal/knowledge"
)

type financingRequest struct {
	CarPrice    float64 `json:"car_price" binding:"required"`
	DownPayment float64 `json:"down_payment"`
}

func (s *Server) handleFinancing(c *gin.Context) {
	var req financingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "car_price required"})
		return
	}

	down := req.DownPayment
	if down <= 0 {
		down = s.calc.DefaultDownPayment(req.CarPrice)
	}

	plans, err := s.calc.Plans(req.CarPrice, down, 0, 0)
	if err != nil {
		if errors.Is(err, financing.ErrDownPaymentTooHigh) {
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"car_price":    req.CarPrice,
		"down_payment": down,
		"annual_rate":  s.calc.AnnualRate,
		"plans":        plans,
	})
}

type ingestRequest struct {
	Content   string `json:"content" binding:"required"`
	SourceURL string `json:"source_url"`
}

func (s *Server) handleIngestKnowledge(c *gin.Context) {
	var req ingestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "content required"})
		return
	}

	chunks, err := s.knowledge.IngestText(c.Request.Context(), req.Content, req.SourceURL)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "ingest failed"})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"chunks": chunks})
}

type scrapeRequest struct {
	URL string `json:"url" binding:"required"`
}

// handleScrapeKnowledge fetches a web page and ingests its visible text.
func (s *Server) handleScrapeKnowledge(c *gin.Context) {
	var req scrapeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "url required"})
		return
	}
	parsed, err := url.Parse(req.URL)
	if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") {
		c.JSON(http.StatusBadRequest, gin.H{"error": "url must be http or https"})
		return
	}

	chunks, err := s.knowledge.IngestURL(c.Request.Context(), req.URL)
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"chunks": chunks, "source_url": req.URL})
}

func (s *Server) handleListKnowledge(c *gin.Context) {
	docs, err := s.knowledge.List(c.Request.Context(), c.Query("source_url"), atoi(c.Query("limit")))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"documents": docs, "count": len(docs)})
}

type knowledgeSearchRequest struct {
	Query string `json:"query" binding:"required"`
	TopK  int    `json:"top_k"`
}

func (s *Server) handleSearchKnowledge(c *gin.Context) {
	var req knowledgeSearchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "query required"})
		return
	}

	results, err := s.knowledge.Search(c.Request.Context(), req.Query, req.TopK)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "search failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"results": results})
}

func (s *Server) handleDeleteKnowledge(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid document id"})
		return
	}

	if err := s.knowledge.Delete(c.Request.Context(), id); err != nil {
		if errors.Is(err, knowledge.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "document not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "delete failed"})
		return
	}
	c.Status(http.StatusNoContent)
}
