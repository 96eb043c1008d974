package handlers

import (
	"log/slog"
	"net/http"

	"cinebook/internal/models"

	"github.com/gin-gonic/gin"
)

// InitiatePayment - POST /api/payments/initiate
// Opens a gateway payment for a pending booking.
func (h *Handlers) InitiatePayment(c *gin.Context) {
	userID, ok := authedUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	var req models.InitiatePaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	response, err := h.services.Bookings.InitiatePayment(c.Request.Context(), userID, req)
	if err != nil {
		slog.Error("Failed to initiate payment", "booking_id", req.BookingID, "error", err)
		writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, response)
}

// RecordPaymentAttempt - POST /api/payments/attempts
// Opens a pending ledger entry; duplicate transaction ids are rejected.
func (h *Handlers) RecordPaymentAttempt(c *gin.Context) {
	var req models.RecordAttemptRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	entry, err := h.services.Ledger.RecordAttempt(c.Request.Context(), req)
	if err != nil {
		slog.Error("Failed to record payment attempt",
			"transaction_id", req.TransactionID, "error", err)
		writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, entry)
}

// PaymentNotification - POST /api/payments/notifications
// Gateway webhook: closes the ledger entry and drives the booking transition.
func (h *Handlers) PaymentNotification(c *gin.Context) {
	var req models.PaymentResultRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	entry, err := h.services.Bookings.HandlePaymentResult(c.Request.Context(), req)
	if err != nil {
		slog.Error("Failed to handle payment result",
			"transaction_id", req.TransactionID, "error", err)
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, entry)
}

// GetTransaction - GET /api/payments/:transaction_id
func (h *Handlers) GetTransaction(c *gin.Context) {
	entry, err := h.services.Ledger.Get(c.Request.Context(), c.Param("transaction_id"))
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, entry)
}

// ListBookingTransactions - GET /api/bookings/:id/transactions
func (h *Handlers) ListBookingTransactions(c *gin.Context) {
	entries, err := h.services.Ledger.ListByBooking(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, entries)
}
