package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

func (h *Handler) Health(c *gin.Context) {
	snap := h.engine.Snapshot()
	c.JSON(http.StatusOK, gin.H{
		"status":       "healthy",
		"time":         time.Now().Unix(),
		"checks":       len(snap.Checks),
		"deployment":   !h.engine.Deployment().Empty(),
		"is_checking":  snap.Checking,
		"last_updated": snap.UpdatedAt,
	})
}
