package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cast"
	"go.uber.org/zap"

	"github.com/leozw/zone-health/internal/core"
	"github.com/leozw/zone-health/internal/scheduler"
)

func (h *Handler) GetStatus(c *gin.Context) {
	c.JSON(http.StatusOK, h.engine.Snapshot())
}

// CheckView is one row of the check listing.
type CheckView struct {
	core.Info
	Outcome core.Outcome `json:"outcome"`
}

func (h *Handler) ListChecks(c *gin.Context) {
	snap := h.engine.Snapshot()

	var filter core.Status
	if raw := c.Query("status"); raw != "" {
		s, err := core.ParseStatus(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		filter = s
	}

	views := make([]CheckView, 0, len(snap.Checks))
	for _, info := range snap.Checks {
		result := snap.Results[info.ID]
		if filter != "" && result.Outcome.Status != filter {
			continue
		}
		views = append(views, CheckView{Info: result.Check, Outcome: result.Outcome})
	}

	c.JSON(http.StatusOK, gin.H{
		"checks":          views,
		"total":           len(views),
		"status_counters": snap.Counters,
	})
}

func (h *Handler) GetCheck(c *gin.Context) {
	result, ok := h.engine.Result(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "Check not found"})
		return
	}
	c.JSON(http.StatusOK, CheckView{Info: result.Check, Outcome: result.Outcome})
}

// RunAll starts a full run. With wait=true it answers with the published
// snapshot, otherwise it returns 202 immediately.
func (h *Handler) RunAll(c *gin.Context) {
	if cast.ToBool(c.Query("wait")) {
		snap, err := h.engine.RunAll(c.Request.Context())
		if err != nil {
			h.writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, snap)
		return
	}

	go func() {
		if _, err := h.engine.RunAll(h.background); err != nil && !errors.Is(err, scheduler.ErrSuperseded) {
			h.logger.Warn("Run of all checks failed", zap.Error(err))
		}
	}()
	c.JSON(http.StatusAccepted, gin.H{"message": "Running all checks"})
}

func (h *Handler) RunCheck(c *gin.Context) {
	id := c.Param("id")
	out, err := h.engine.RunOne(c.Request.Context(), id)
	if err != nil {
		h.writeError(c, err)
		return
	}

	result, _ := h.engine.Result(id)
	c.JSON(http.StatusOK, CheckView{Info: result.Check, Outcome: out})
}

type activeRequest struct {
	Active *bool `json:"active" binding:"required"`
}

func (h *Handler) SetActive(c *gin.Context) {
	var req activeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	h.applied(c, h.engine.SetActive(c.Request.Context(), c.Param("id"), *req.Active))
}

type intervalRequest struct {
	// Accepts a number or a numeric string.
	Interval any `json:"interval_in_seconds" binding:"required"`
}

func (h *Handler) SetInterval(c *gin.Context) {
	var req intervalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	seconds, err := toSeconds(req.Interval)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": scheduler.ErrInvalidInterval.Error()})
		return
	}

	h.applied(c, h.engine.SetInterval(c.Request.Context(), c.Param("id"), seconds))
}

// toSeconds rejects fractions instead of truncating them.
func toSeconds(v any) (int, error) {
	f, err := cast.ToFloat64E(v)
	if err != nil {
		return 0, err
	}
	if f > core.MaxIntervalSeconds || f < -core.MaxIntervalSeconds {
		return 0, errors.New("interval out of range")
	}
	if f != float64(int(f)) {
		return 0, errors.New("interval must be a whole number of seconds")
	}
	return int(f), nil
}

// applied answers a mutation. A persistence failure still reports the new
// state, since it took effect in memory; any other error is answered as such.
func (h *Handler) applied(c *gin.Context, err error) {
	if err != nil && !errors.Is(err, scheduler.ErrNotPersisted) {
		h.writeError(c, err)
		return
	}

	persisted := err == nil
	if !persisted {
		h.logger.Warn("Override not persisted", zap.String("check_id", c.Param("id")), zap.Error(err))
	}

	result, _ := h.engine.Result(c.Param("id"))
	body := gin.H{
		"check":     CheckView{Info: result.Check, Outcome: result.Outcome},
		"persisted": persisted,
	}
	if err != nil {
		body["error"] = err.Error()
	}
	c.JSON(http.StatusOK, body)
}

func (h *Handler) writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, scheduler.ErrUnknownCheck):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, scheduler.ErrCheckInactive), errors.Is(err, scheduler.ErrSuperseded):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, scheduler.ErrInvalidInterval):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, scheduler.ErrStopped):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
	default:
		h.logger.Error("Request failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
	}
}

func (h *Handler) GetDeployment(c *gin.Context) {
	d := h.engine.Deployment()
	if d.Empty() {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Deployment inventory not loaded yet"})
		return
	}
	c.JSON(http.StatusOK, d)
}
