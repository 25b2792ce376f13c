package metrics

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/prometheus/prompb"
	"go.uber.org/zap"

	"github.com/leozw/zone-health/internal/config"
)

// RemoteWriter periodically ships everything in a gatherer to Mimir.
type RemoteWriter struct {
	gatherer prometheus.Gatherer
	client   *MimirClient
	config   config.MimirConfig
	logger   *zap.Logger
	now      func() time.Time
}

func NewRemoteWriter(gatherer prometheus.Gatherer, cfg config.MimirConfig, logger *zap.Logger) *RemoteWriter {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 1000
	}
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = 30 * time.Second
	}
	return &RemoteWriter{
		gatherer: gatherer,
		client:   NewMimirClient(cfg),
		config:   cfg,
		logger:   logger,
		now:      time.Now,
	}
}

func (w *RemoteWriter) Start(ctx context.Context) {
	ticker := time.NewTicker(w.config.FlushInterval)
	defer ticker.Stop()

	w.logger.Info("Starting remote write",
		zap.String("url", w.config.URL),
		zap.Duration("flush_interval", w.config.FlushInterval),
	)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := w.Flush(ctx); err != nil {
				w.logger.Warn("Remote write failed", zap.Error(err))
			}
		}
	}
}

// Flush gathers once and pushes in batches.
func (w *RemoteWriter) Flush(ctx context.Context) error {
	mfs, err := w.gatherer.Gather()
	if err != nil {
		return fmt.Errorf("failed to gather metrics: %w", err)
	}

	samples := w.metricsToSamples(mfs)
	if len(samples) == 0 {
		return nil
	}

	for i := 0; i < len(samples); i += w.config.BatchSize {
		end := i + w.config.BatchSize
		if end > len(samples) {
			end = len(samples)
		}

		if err := w.client.Push(ctx, samples[i:end]); err != nil {
			return fmt.Errorf("failed to send batch: %w", err)
		}
	}

	return nil
}

func (w *RemoteWriter) metricsToSamples(mfs []*dto.MetricFamily) []prompb.TimeSeries {
	var samples []prompb.TimeSeries
	ts := w.now().UnixNano() / int64(time.Millisecond)

	series := func(name string, labels []prompb.Label, value float64, extra ...prompb.Label) prompb.TimeSeries {
		all := make([]prompb.Label, 0, len(labels)+len(extra)+1)
		all = append(all, prompb.Label{Name: "__name__", Value: name})
		all = append(all, labels...)
		all = append(all, extra...)
		return prompb.TimeSeries{
			Labels:  all,
			Samples: []prompb.Sample{{Value: value, Timestamp: ts}},
		}
	}

	for _, mf := range mfs {
		name := mf.GetName()
		for _, m := range mf.Metric {
			labels := make([]prompb.Label, 0, len(m.Label))
			for _, l := range m.Label {
				labels = append(labels, prompb.Label{
					Name:  l.GetName(),
					Value: l.GetValue(),
				})
			}

			switch mf.GetType() {
			case dto.MetricType_COUNTER:
				samples = append(samples, series(name, labels, m.Counter.GetValue()))
			case dto.MetricType_GAUGE:
				samples = append(samples, series(name, labels, m.Gauge.GetValue()))
			case dto.MetricType_UNTYPED:
				samples = append(samples, series(name, labels, m.Untyped.GetValue()))
			case dto.MetricType_HISTOGRAM:
				hist := m.Histogram
				for _, bucket := range hist.Bucket {
					samples = append(samples, series(name+"_bucket", labels, float64(bucket.GetCumulativeCount()),
						prompb.Label{Name: "le", Value: fmt.Sprintf("%g", bucket.GetUpperBound())}))
				}
				samples = append(samples, series(name+"_bucket", labels, float64(hist.GetSampleCount()),
					prompb.Label{Name: "le", Value: "+Inf"}))
				samples = append(samples, series(name+"_sum", labels, hist.GetSampleSum()))
				samples = append(samples, series(name+"_count", labels, float64(hist.GetSampleCount())))
			}
		}
	}

	return samples
}
