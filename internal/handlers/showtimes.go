package handlers

import (
	"log/slog"
	"net/http"
	"strconv"

	"cinebook/internal/models"

	"github.com/gin-gonic/gin"
)

// CreateShowtime - POST /api/showtimes
// Indexes a showtime into the catalog.
func (h *Handlers) CreateShowtime(c *gin.Context) {
	var req models.CreateShowtimeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	showtime, err := h.services.Showtimes.Create(c.Request.Context(), req)
	if err != nil {
		slog.Error("Failed to create showtime", "movie_id", req.MovieID, "error", err)
		writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, models.CreateShowtimeResponse{ID: showtime.ID})
}

// GetShowtime - GET /api/showtimes/:id
func (h *Handlers) GetShowtime(c *gin.Context) {
	showtime, err := h.services.Showtimes.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, showtime)
}

// ListShowtimes - GET /api/showtimes
// Supports query (movie title), cinema_id and date filters with pagination.
func (h *Handlers) ListShowtimes(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))

	showtimes, total, err := h.services.Showtimes.Search(c.Request.Context(),
		c.Query("query"), c.Query("cinema_id"), c.Query("date"), page, pageSize)
	if err != nil {
		slog.Error("Failed to search showtimes", "error", err)
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"showtimes": showtimes,
		"total":     total,
		"page":      page,
		"page_size": pageSize,
	})
}
