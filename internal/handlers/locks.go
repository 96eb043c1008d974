package handlers

import (
	"log/slog"
	"net/http"

	"cinebook/internal/models"

	"github.com/gin-gonic/gin"
)

// GetLock - GET /api/locks/:id
func (h *Handlers) GetLock(c *gin.Context) {
	lock, err := h.services.Locks.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, models.LockResponse{
		LockID:    lock.ID,
		ExpiresAt: lock.ExpiresAt,
		Released:  lock.ReleasedAt != nil,
	})
}

// ExtendLock - PATCH /api/locks/extend
// Pushes an active lock's expiry further out; expired locks cannot be
// revived.
func (h *Handlers) ExtendLock(c *gin.Context) {
	var req models.ExtendLockRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	lock, err := h.services.Locks.Extend(c.Request.Context(), req.LockID, 0)
	if err != nil {
		slog.Error("Failed to extend lock", "lock_id", req.LockID, "error", err)
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, models.LockResponse{
		LockID:    lock.ID,
		ExpiresAt: lock.ExpiresAt,
		Released:  lock.ReleasedAt != nil,
	})
}

// ReleaseLock - PATCH /api/locks/release
// Idempotent: releasing an unknown, expired or already released lock reports
// released=false with 200.
func (h *Handlers) ReleaseLock(c *gin.Context) {
	var req models.ReleaseLockRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	released, err := h.services.Locks.Release(c.Request.Context(), req.LockID)
	if err != nil {
		slog.Error("Failed to release lock", "lock_id", req.LockID, "error", err)
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"released": released})
}
