package checks

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/leozw/zone-health/internal/core"
)

var errNoRESTURL = errors.New("REST API location is not configured")

// RESTAuthChecker probes the REST API /auth endpoint. Any answer below 500
// means the endpoint is up, including an authentication failure.
type RESTAuthChecker struct {
	client *http.Client
}

func (c *RESTAuthChecker) Run(ctx context.Context, ec core.ExecutionContext) (core.Outcome, error) {
	if ec.RESTBaseURL == "" {
		return core.Outcome{}, errNoRESTURL
	}

	ctx, cancel := withRESTTimeout(ctx, ec)
	defer cancel()

	url := strings.TrimRight(ec.RESTBaseURL, "/") + "/auth"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, nil)
	if err != nil {
		return core.Outcome{}, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return core.Failed("/auth endpoint is down."), nil
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= http.StatusInternalServerError {
		return core.Failed("/auth endpoint is down."), nil
	}
	return core.Healthy("/auth endpoint is running normally."), nil
}

func withRESTTimeout(ctx context.Context, ec core.ExecutionContext) (context.Context, context.CancelFunc) {
	if ec.RESTTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, ec.RESTTimeout)
}
