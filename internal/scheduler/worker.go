package scheduler

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/leozw/zone-health/internal/core"
)

// FailureMessage is shown for a check whose checker failed.
const FailureMessage = "Error when running the check."

// execute runs one check under the version gate. Checker errors and panics
// become an error outcome; they never reach the caller.
func (s *Scheduler) execute(ctx context.Context, def core.Definition, ec core.ExecutionContext) (out core.Outcome) {
	start := s.clock.Now()
	logger := s.logger.With(zap.String("check_id", def.ID), zap.String("check_name", def.Name))

	defer func() {
		if r := recover(); r != nil {
			logger.Error("Check panicked", zap.Any("panic", r))
			out = core.Failed(FailureMessage)
		}
		out.Timestamp = s.clock.Now()
		took := out.Timestamp.Sub(start)
		s.recorder.ObserveRun(def, out, took)

		logger.Debug("Check completed",
			zap.String("status", string(out.Status)),
			zap.Duration("duration", took),
		)
	}()

	eligibility, err := def.Eligibility(ec.Deployment.ServerVersions)
	if err != nil {
		logger.Error("Failed to evaluate version range", zap.Error(err))
		return core.Failed(FailureMessage)
	}
	if !eligibility.Eligible {
		return core.Outcome{Status: core.StatusUnavailable, Message: eligibility.Message()}
	}

	runCtx, cancel := context.WithTimeout(ctx, s.checkTimeout)
	defer cancel()

	result, err := def.Checker.Run(runCtx, ec)
	if err != nil {
		logger.Error("Check failed", zap.Error(err))
		return core.Failed(FailureMessage)
	}
	if !result.Status.Reportable() {
		logger.Error("Check returned an invalid status",
			zap.Error(fmt.Errorf("status %q is reserved", result.Status)))
		return core.Failed(FailureMessage)
	}
	return result
}

