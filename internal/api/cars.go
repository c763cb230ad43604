package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/autoventa/dealerbot/internal/catalog"
)

func (s *Server) handleSearchCars(c *gin.Context) {
	filter := catalog.Filter{
		Make:     c.Query("make"),
		Model:    c.Query("model"),
		Year:     atoi(c.Query("year")),
		MinYear:  atoi(c.Query("min_year")),
		MaxYear:  atoi(c.Query("max_year")),
		MinPrice: atof(c.Query("min_price")),
		MaxPrice: atof(c.Query("max_price")),
		Limit:    atoi(c.Query("limit")),
	}

	cars, err := s.catalog.Search(c.Request.Context(), filter)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "search failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"cars": cars, "count": len(cars)})
}

func (s *Server) handleCreateCar(c *gin.Context) {
	var car catalog.Car
	if err := c.ShouldBindJSON(&car); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if msg := validateCar(&car); msg != "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": msg})
		return
	}
	normalizeCar(&car)

	if err := s.catalog.Repo().Create(c.Request.Context(), &car); err != nil {
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, car)
}

func (s *Server) handleCreateCarsBulk(c *gin.Context) {
	var cars []catalog.Car
	if err := c.ShouldBindJSON(&cars); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	for i := range cars {
		if msg := validateCar(&cars[i]); msg != "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": msg, "index": i})
			return
		}
		normalizeCar(&cars[i])
	}

	inserted, err := s.catalog.Repo().CreateBulk(c.Request.Context(), cars)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"inserted": inserted})
}

// handleGetCar resolves :id as a UUID first, then as a stock ID.
func (s *Server) handleGetCar(c *gin.Context) {
	idParam := c.Param("id")

	var car *catalog.Car
	var err error
	if id, parseErr := uuid.Parse(idParam); parseErr == nil {
		car, err = s.catalog.Repo().GetByID(c.Request.Context(), id)
	} else {
		car, err = s.catalog.Repo().GetByStockID(c.Request.Context(), idParam)
	}

	if err != nil {
		if errors.Is(err, catalog.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "car not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "lookup failed"})
		return
	}
	c.JSON(http.StatusOK, car)
}

func (s *Server) handleUpdateCar(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid car id"})
		return
	}

	var car catalog.Car
	if err := c.ShouldBindJSON(&car); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if msg := validateCar(&car); msg != "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": msg})
		return
	}
	car.ID = id
	normalizeCar(&car)

	if err := s.catalog.Repo().Update(c.Request.Context(), &car); err != nil {
		if errors.Is(err, catalog.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "car not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "update failed"})
		return
	}
	c.JSON(http.StatusOK, car)
}

func (s *Server) handleDeleteCar(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid car id"})
		return
	}

	if err := s.catalog.Repo().Delete(c.Request.Context(), id); err != nil {
		if errors.Is(err, catalog.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "car not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "delete failed"})
		return
	}
	c.Status(http.StatusNoContent)
}

func validateCar(car *catalog.Car) string {
	switch {
	case car.StockID == "":
		return "stock_id is required"
	case car.Make == "":
		return "make is required"
	case car.Model == "":
		return "model is required"
	case car.Year < 1990 || car.Year > 2100:
		return "year out of range"
	case car.Price <= 0:
		return "price must be positive"
	default:
		return ""
	}
}

func normalizeCar(car *catalog.Car) {
	car.Make = catalog.NormalizeBrand(car.Make)
	car.Model = catalog.NormalizeText(car.Model)
}

func atoi(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}

func atof(s string) float64 {
	f, _ := strconv.ParseFloat(s, 64)
	return f
}
