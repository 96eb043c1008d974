package handlers

import (
	"log/slog"
	"net/http"
	"strconv"

	"cinebook/internal/models"

	"github.com/gin-gonic/gin"
)

// CreateReservation - POST /api/reservations
// Reserves seats: creates the booking and its seat lock atomically.
func (h *Handlers) CreateReservation(c *gin.Context) {
	userID, ok := authedUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	var req models.ReserveSeatsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	response, err := h.services.Bookings.Reserve(c.Request.Context(), userID, req)
	if err != nil {
		slog.Error("Failed to reserve seats", "user_id", userID, "error", err)
		writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, response)
}

// ListBookings - GET /api/bookings
func (h *Handlers) ListBookings(c *gin.Context) {
	userID, ok := authedUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	bookings, err := h.services.Bookings.List(c.Request.Context(), userID, limit, offset)
	if err != nil {
		slog.Error("Failed to list bookings", "user_id", userID, "error", err)
		writeError(c, err)
		return
	}

	response := make(models.ListBookingsResponse, 0, len(bookings))
	for _, b := range bookings {
		response = append(response, models.ListBookingsResponseItem{
			ID:          b.ID,
			ShowtimeID:  b.ShowtimeID,
			Seats:       b.Seats,
			Status:      b.Status,
			TotalAmount: b.TotalAmount,
			CreatedAt:   b.CreatedAt,
		})
	}

	c.JSON(http.StatusOK, response)
}

// GetBooking - GET /api/bookings/:id
func (h *Handlers) GetBooking(c *gin.Context) {
	userID, ok := authedUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	booking, err := h.services.Bookings.Get(c.Request.Context(), userID, c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, booking)
}

// requireOwnedBooking checks that the booking exists and belongs to the
// authenticated user. Foreign bookings read as absent, same as GetBooking.
func (h *Handlers) requireOwnedBooking(c *gin.Context, bookingID string) bool {
	userID, ok := authedUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return false
	}

	if _, err := h.services.Bookings.Get(c.Request.Context(), userID, bookingID); err != nil {
		writeError(c, err)
		return false
	}
	return true
}

// ConfirmBooking - PATCH /api/bookings/confirm
// Finalizes a pending booking after a successful payment.
func (h *Handlers) ConfirmBooking(c *gin.Context) {
	var req models.ConfirmBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if !h.requireOwnedBooking(c, req.BookingID) {
		return
	}

	booking, err := h.services.Bookings.Confirm(c.Request.Context(), req.BookingID, req.TransactionID)
	if err != nil {
		slog.Error("Failed to confirm booking", "booking_id", req.BookingID, "error", err)
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, booking)
}

// CancelBooking - PATCH /api/bookings/cancel
func (h *Handlers) CancelBooking(c *gin.Context) {
	var req models.CancelBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if !h.requireOwnedBooking(c, req.BookingID) {
		return
	}

	booking, err := h.services.Bookings.Cancel(c.Request.Context(), req.BookingID, req.Reason)
	if err != nil {
		slog.Error("Failed to cancel booking", "booking_id", req.BookingID, "error", err)
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, booking)
}

// RequestRefund - PATCH /api/bookings/refund
// Starts the refund path for a confirmed booking.
func (h *Handlers) RequestRefund(c *gin.Context) {
	var req models.RefundRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if !h.requireOwnedBooking(c, req.BookingID) {
		return
	}

	booking, err := h.services.Bookings.RequestRefund(c.Request.Context(), req.BookingID)
	if err != nil {
		slog.Error("Failed to request refund", "booking_id", req.BookingID, "error", err)
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, booking)
}

// CompleteRefund - PATCH /api/bookings/refund/complete
// Operator endpoint closing a refund when the gateway callback never arrives.
func (h *Handlers) CompleteRefund(c *gin.Context) {
	var req models.RefundRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if !h.requireOwnedBooking(c, req.BookingID) {
		return
	}

	booking, err := h.services.Bookings.CompleteRefund(c.Request.Context(), req.BookingID)
	if err != nil {
		slog.Error("Failed to complete refund", "booking_id", req.BookingID, "error", err)
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, booking)
}
