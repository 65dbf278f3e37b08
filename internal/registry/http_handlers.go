package registry

import (
	"errors"
	"net/http"

	"call-bridge/pkg/logger"

	"github.com/gin-gonic/gin"
)

// Handlers exposes the registry for the configuration UI.
// Keep these thin: this surface is CRUD pass-through only.
type Handlers struct {
	Store Store
}

// GetAll returns every set in storage order.
func (h Handlers) GetAll(c *gin.Context) {
	if h.Store == nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "registry not configured"})
		return
	}
	snap, err := h.Store.Snapshot(c.Request.Context())
	if err != nil {
		logger.FromGin(c).Error("registry read failed", "err", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch data"})
		return
	}
	c.JSON(http.StatusOK, snap)
}

// ReplaceAll overwrites each set present in the body; absent sets are untouched.
func (h Handlers) ReplaceAll(c *gin.Context) {
	if h.Store == nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "registry not configured"})
		return
	}
	var req Replacement
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if err := h.Store.Replace(c.Request.Context(), req); err != nil {
		if errors.Is(err, ErrInvalidSnapshot) {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		logger.FromGin(c).Error("registry write failed", "err", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Failed to update config"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}
