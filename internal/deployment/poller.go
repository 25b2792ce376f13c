package deployment

import (
	"context"
	"net"
	"sort"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"
	"k8s.io/utils/clock"

	"github.com/leozw/zone-health/internal/core"
)

// Sink receives every successfully fetched inventory.
type Sink interface {
	SetDeployment(d core.Deployment) bool
}

// Recorder observes poll results.
type Recorder interface {
	RecordDeployment(d core.Deployment, err error)
}

// Prober reports which hosts accept connections.
type Prober interface {
	Reachable(ctx context.Context, hosts []string) []string
}

// TCPProber dials each host on the server port.
type TCPProber struct {
	Port    int
	Timeout time.Duration
}

func (p TCPProber) Reachable(ctx context.Context, hosts []string) []string {
	var (
		mu        sync.Mutex
		wg        sync.WaitGroup
		reachable []string
	)
	dialer := &net.Dialer{Timeout: p.Timeout}

	for _, host := range hosts {
		wg.Add(1)
		go func(host string) {
			defer wg.Done()
			conn, err := dialer.DialContext(ctx, "tcp", net.JoinHostPort(host, strconv.Itoa(p.Port)))
			if err != nil {
				return
			}
			_ = conn.Close()

			mu.Lock()
			reachable = append(reachable, host)
			mu.Unlock()
		}(host)
	}
	wg.Wait()

	sort.Strings(reachable)
	return reachable
}

type Poller struct {
	client   *Client
	prober   Prober
	sink     Sink
	recorder Recorder
	interval time.Duration
	clock    clock.WithTicker
	logger   *zap.Logger
}

func NewPoller(client *Client, prober Prober, sink Sink, recorder Recorder, interval time.Duration, logger *zap.Logger) *Poller {
	return &Poller{
		client:   client,
		prober:   prober,
		sink:     sink,
		recorder: recorder,
		interval: interval,
		clock:    clock.RealClock{},
		logger:   logger,
	}
}

// Run polls immediately and then on every interval until ctx is done.
func (p *Poller) Run(ctx context.Context) {
	p.logger.Info("Starting deployment poller", zap.Duration("interval", p.interval))

	ticker := p.clock.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		if _, err := p.Poll(ctx); err != nil && ctx.Err() == nil {
			p.logger.Warn("Failed to refresh deployment inventory", zap.Error(err))
		}

		select {
		case <-ctx.Done():
			p.logger.Info("Stopping deployment poller")
			return
		case <-ticker.C():
		}
	}
}

// Poll fetches the zone report, probes its hosts and publishes the result.
// On failure the previously published inventory is kept.
func (p *Poller) Poll(ctx context.Context) (core.Deployment, error) {
	report, err := p.client.ZoneReport(ctx)
	if err != nil {
		if p.recorder != nil {
			p.recorder.RecordDeployment(core.Deployment{}, err)
		}
		return core.Deployment{}, err
	}

	d := report.Deployment(p.clock.Now())

	hosts := d.Hosts()
	for _, res := range d.Resources {
		if res.Host != "" && res.Host != "EMPTY_RESC_HOST" {
			hosts = append(hosts, res.Host)
		}
	}
	if p.prober != nil {
		d.ReachableHosts = p.prober.Reachable(ctx, dedupe(hosts))
	}

	if p.recorder != nil {
		p.recorder.RecordDeployment(d, nil)
	}
	triggered := p.sink.SetDeployment(d)

	p.logger.Debug("Deployment inventory refreshed",
		zap.Int("zones", len(d.Zones)),
		zap.Int("resources", len(d.Resources)),
		zap.Int("reachable_hosts", len(d.ReachableHosts)),
		zap.Bool("triggered_run", triggered),
	)
	return d, nil
}

func dedupe(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}
