package metrics

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang/snappy"
	"github.com/prometheus/prometheus/prompb"
	"go.uber.org/zap"

	"github.com/leozw/zone-health/internal/config"
	"github.com/leozw/zone-health/internal/core"

	. "github.com/onsi/gomega"
)

func TestRemoteWriter_Flush(t *testing.T) {
	g := NewWithT(t)

	received := make(chan prompb.WriteRequest, 10)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		g.Expect(r.URL.Path).To(Equal("/api/v1/push"))
		g.Expect(r.Header.Get("X-Scope-OrgID")).To(Equal("zone-a"))
		g.Expect(r.Header.Get("Content-Encoding")).To(Equal("snappy"))

		body, err := io.ReadAll(r.Body)
		g.Expect(err).ToNot(HaveOccurred())
		data, err := snappy.Decode(nil, body)
		g.Expect(err).ToNot(HaveOccurred())

		var req prompb.WriteRequest
		g.Expect(req.Unmarshal(data)).To(Succeed())
		received <- req
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	c := NewCollector()
	c.ObserveRun(core.Definition{ID: "zmt-0", Name: "auth"}, core.Outcome{Status: core.StatusHealthy, Timestamp: time.Now()}, time.Second)

	w := NewRemoteWriter(c.Gatherer(), config.MimirConfig{
		URL:       srv.URL,
		TenantID:  "zone-a",
		BatchSize: 100000,
	}, zap.NewNop())

	g.Expect(w.Flush(context.Background())).To(Succeed())

	var req prompb.WriteRequest
	g.Eventually(received).Should(Receive(&req))

	names := map[string]bool{}
	for _, ts := range req.Timeseries {
		for _, l := range ts.Labels {
			if l.Name == "__name__" {
				names[l.Value] = true
			}
		}
	}
	g.Expect(names).To(HaveKey("zonehealth_check_runs_total"))
	g.Expect(names).To(HaveKey("zonehealth_check_duration_seconds_bucket"))
	g.Expect(names).To(HaveKey("zonehealth_check_duration_seconds_count"))
}

func TestRemoteWriter_FlushFailure(t *testing.T) {
	g := NewWithT(t)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	w := NewRemoteWriter(NewCollector().Gatherer(), config.MimirConfig{URL: srv.URL}, zap.NewNop())
	g.Expect(w.Flush(context.Background())).To(MatchError(ContainSubstring("status 400")))
}
