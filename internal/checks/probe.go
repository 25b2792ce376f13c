package checks

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/itchyny/gojq"

	"github.com/leozw/zone-health/internal/core"
)

const maxBodyBytes = 4 << 20

// HTTPProbe sends one request and checks the status code and body.
type HTTPProbe struct {
	client  *http.Client
	timeout time.Duration
	request RequestSpec
	expect  ExpectSpec
}

func (h *HTTPProbe) Run(ctx context.Context, ec core.ExecutionContext) (core.Outcome, error) {
	body, out, err := h.do(ctx, ec)
	if err != nil || out != nil {
		return deref(out), err
	}

	if h.expect.Contains != "" && !strings.Contains(string(body), h.expect.Contains) {
		return core.Failed("Search string not found in response."), nil
	}
	return core.Healthy(h.message("Endpoint responded as expected.")), nil
}

// do executes the request. A non-nil outcome means the probe already failed.
func (h *HTTPProbe) do(ctx context.Context, ec core.ExecutionContext) ([]byte, *core.Outcome, error) {
	target, err := h.target(ec)
	if err != nil {
		return nil, nil, err
	}

	if h.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.timeout)
		defer cancel()
	} else {
		var cancel context.CancelFunc
		ctx, cancel = withRESTTimeout(ctx, ec)
		defer cancel()
	}

	var reqBody io.Reader
	if h.request.Body != "" {
		reqBody = strings.NewReader(h.request.Body)
	}

	req, err := http.NewRequestWithContext(ctx, h.request.Method, target, reqBody)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create request: %w", err)
	}
	for k, v := range h.request.Headers {
		req.Header.Set(k, v)
	}

	resp, err := h.client.Do(req)
	if err != nil {
		out := core.Failed(fmt.Sprintf("Request failed: %v", err))
		return nil, &out, nil
	}
	defer resp.Body.Close()

	if !h.statusExpected(resp.StatusCode) {
		out := core.Failed(fmt.Sprintf("Unexpected status code: %d", resp.StatusCode))
		return nil, &out, nil
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		out := core.Warning(fmt.Sprintf("Failed to read response body: %v", err))
		return nil, &out, nil
	}
	return body, nil, nil
}

func (h *HTTPProbe) target(ec core.ExecutionContext) (string, error) {
	if h.request.URL != "" {
		return h.request.URL, nil
	}
	if ec.RESTBaseURL == "" {
		return "", errNoRESTURL
	}
	return strings.TrimRight(ec.RESTBaseURL, "/") + "/" + strings.TrimLeft(h.request.Path, "/"), nil
}

func (h *HTTPProbe) statusExpected(code int) bool {
	for _, expected := range h.expect.StatusCodes {
		if code == expected {
			return true
		}
	}
	return false
}

func (h *HTTPProbe) message(fallback string) string {
	if h.expect.Message != "" {
		return h.expect.Message
	}
	return fallback
}

// JQProbe runs a jq program over the JSON response. The program may yield a
// boolean, a status name, or an object with status and message fields.
type JQProbe struct {
	*HTTPProbe
	code     *gojq.Code
	severity core.Status
}

func (j *JQProbe) Run(ctx context.Context, ec core.ExecutionContext) (core.Outcome, error) {
	body, out, err := j.do(ctx, ec)
	if err != nil || out != nil {
		return deref(out), err
	}

	var doc any
	if err := json.Unmarshal(body, &doc); err != nil {
		return core.Failed("Response is not valid JSON."), nil
	}

	result, ok := j.code.RunWithContext(ctx, doc).Next()
	if !ok {
		return core.Outcome{Status: j.severity, Message: j.message("Query returned no result.")}, nil
	}
	if err, isErr := result.(error); isErr {
		return core.Outcome{}, fmt.Errorf("jq query error: %w", err)
	}

	switch v := result.(type) {
	case bool:
		if v {
			return core.Healthy(j.message("Query matched.")), nil
		}
		return core.Outcome{Status: j.severity, Message: j.message("Query did not match.")}, nil
	case string:
		status, err := core.ParseStatus(v)
		if err != nil || !status.Reportable() {
			return core.Outcome{}, fmt.Errorf("query returned unknown status %q", v)
		}
		return core.Outcome{Status: status, Message: j.message("Query reported " + v + ".")}, nil
	case map[string]any:
		raw, _ := v["status"].(string)
		status, err := core.ParseStatus(raw)
		if err != nil || !status.Reportable() {
			return core.Outcome{}, fmt.Errorf("query returned unknown status %q", raw)
		}
		msg, _ := v["message"].(string)
		return core.Outcome{Status: status, Message: j.message(msg)}, nil
	case nil:
		return core.Outcome{Status: j.severity, Message: j.message("Query returned null.")}, nil
	}
	return core.Outcome{}, fmt.Errorf("query returned unsupported %T", result)
}

func deref(out *core.Outcome) core.Outcome {
	if out == nil {
		return core.Outcome{}
	}
	return *out
}
