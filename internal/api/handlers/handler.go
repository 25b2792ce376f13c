package handlers

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/leozw/zone-health/internal/core"
	"github.com/leozw/zone-health/internal/scheduler"
)

// Engine is the part of the scheduler the API drives.
type Engine interface {
	Snapshot() scheduler.Snapshot
	Result(id string) (scheduler.Result, bool)
	RunAll(ctx context.Context) (scheduler.Snapshot, error)
	RunOne(ctx context.Context, id string) (core.Outcome, error)
	SetActive(ctx context.Context, id string, active bool) error
	SetInterval(ctx context.Context, id string, seconds int) error
	Subscribe() (<-chan time.Time, func())
	Deployment() core.Deployment
}

type Handler struct {
	engine Engine
	logger *zap.Logger
	// background outlives requests; asynchronous runs use it.
	background context.Context
}

func NewHandler(ctx context.Context, engine Engine, logger *zap.Logger) *Handler {
	return &Handler{
		engine:     engine,
		logger:     logger,
		background: ctx,
	}
}
