package checks_test

import (
	"context"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/miekg/dns"
	testingclock "k8s.io/utils/clock/testing"

	"github.com/leozw/zone-health/internal/checks"
	"github.com/leozw/zone-health/internal/core"
	"github.com/leozw/zone-health/internal/registry"

	. "github.com/onsi/gomega"
)

func execContext(url string) core.ExecutionContext {
	return core.ExecutionContext{RESTBaseURL: url, RESTTimeout: 5 * time.Second}
}

func TestBuiltin_RegistersCleanly(t *testing.T) {
	g := NewWithT(t)

	defs := checks.Builtin(checks.Options{})
	r, err := registry.Load(defs, nil)
	g.Expect(err).ToNot(HaveOccurred())
	g.Expect(r.Len()).To(Equal(len(defs)))

	auth, ok := r.Get("zmt-0")
	g.Expect(ok).To(BeTrue())
	g.Expect(auth.MinServerVersion).To(Equal("4.2.0"))
	g.Expect(auth.MaxServerVersion).To(Equal("4.2.10"))
	g.Expect(auth.Interval()).To(Equal(core.DefaultIntervalSeconds))
}

func TestRESTAuth(t *testing.T) {
	tests := []struct {
		name   string
		code   int
		status core.Status
	}{
		{name: "unauthorized means up", code: http.StatusUnauthorized, status: core.StatusHealthy},
		{name: "ok", code: http.StatusOK, status: core.StatusHealthy},
		{name: "server error", code: http.StatusBadGateway, status: core.StatusError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := NewWithT(t)

			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				g.Expect(r.Method).To(Equal(http.MethodPost))
				g.Expect(r.URL.Path).To(Equal("/irods-rest/1.0.0/auth"))
				w.WriteHeader(tt.code)
			}))
			defer srv.Close()

			auth := checks.Builtin(checks.Options{HTTPClient: srv.Client()})[0]
			out, err := auth.Checker.Run(context.Background(), execContext(srv.URL+"/irods-rest/1.0.0/"))
			g.Expect(err).ToNot(HaveOccurred())
			g.Expect(out.Status).To(Equal(tt.status))
		})
	}
}

func TestRESTAuth_Unreachable(t *testing.T) {
	g := NewWithT(t)

	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	auth := checks.Builtin(checks.Options{})[0]
	out, err := auth.Checker.Run(context.Background(), execContext(url))
	g.Expect(err).ToNot(HaveOccurred())
	g.Expect(out.Status).To(Equal(core.StatusError))
	g.Expect(out.Message).To(Equal("/auth endpoint is down."))
}

func TestTLS(t *testing.T) {
	g := NewWithT(t)

	srv := httptest.NewTLSServer(http.NotFoundHandler())
	defer srv.Close()
	notAfter := srv.Certificate().NotAfter

	clk := testingclock.NewFakePassiveClock(notAfter.Add(-90 * 24 * time.Hour))
	out, err := checks.NewInsecureTLSChecker(clk, 30).Run(context.Background(), execContext(srv.URL))
	g.Expect(err).ToNot(HaveOccurred())
	g.Expect(out.Status).To(Equal(core.StatusHealthy))

	clk.SetTime(notAfter.Add(-10 * 24 * time.Hour))
	out, err = checks.NewInsecureTLSChecker(clk, 30).Run(context.Background(), execContext(srv.URL))
	g.Expect(err).ToNot(HaveOccurred())
	g.Expect(out.Status).To(Equal(core.StatusWarning))

	clk.SetTime(notAfter.Add(time.Hour))
	out, err = checks.NewInsecureTLSChecker(clk, 30).Run(context.Background(), execContext(srv.URL))
	g.Expect(err).ToNot(HaveOccurred())
	g.Expect(out.Status).To(Equal(core.StatusError))
}

func TestTLS_PlainHTTPWarns(t *testing.T) {
	g := NewWithT(t)

	out, err := checks.NewInsecureTLSChecker(testingclock.NewFakePassiveClock(time.Now()), 30).
		Run(context.Background(), execContext("http://rest.example.org"))
	g.Expect(err).ToNot(HaveOccurred())
	g.Expect(out.Status).To(Equal(core.StatusWarning))
}

func zone(servers ...core.Server) core.Deployment {
	return core.Deployment{Zones: []core.Zone{{Name: "tempZone", Servers: servers}}}
}

func TestVersionConsistency(t *testing.T) {
	g := NewWithT(t)
	c := checks.VersionConsistencyChecker{}

	out, err := c.Run(context.Background(), core.ExecutionContext{Deployment: zone(
		core.Server{Hostname: "icat", Version: "4.3.1"},
		core.Server{Hostname: "resc1", Version: "v4.3.1"},
	)})
	g.Expect(err).ToNot(HaveOccurred())
	g.Expect(out.Status).To(Equal(core.StatusHealthy))

	out, err = c.Run(context.Background(), core.ExecutionContext{Deployment: zone(
		core.Server{Hostname: "icat", Version: "4.3.1"},
		core.Server{Hostname: "resc1", Version: "4.2.11"},
	)})
	g.Expect(err).ToNot(HaveOccurred())
	g.Expect(out.Status).To(Equal(core.StatusWarning))
	g.Expect(out.Message).To(ContainSubstring("4.2.11 (resc1)"))

	out, err = c.Run(context.Background(), core.ExecutionContext{})
	g.Expect(err).ToNot(HaveOccurred())
	g.Expect(out.Status).To(Equal(core.StatusUnavailable))
}

func TestResources(t *testing.T) {
	g := NewWithT(t)
	c := checks.Builtin(checks.Options{LowFreeSpace: 100})[3].Checker

	d := core.Deployment{
		Resources: []core.Resource{
			{Name: "demoResc", Host: "icat", FreeSpace: 1000},
			{Name: "repl", Host: "EMPTY_RESC_HOST"},
		},
		ReachableHosts: []string{"icat"},
	}
	out, err := c.Run(context.Background(), core.ExecutionContext{Deployment: d})
	g.Expect(err).ToNot(HaveOccurred())
	g.Expect(out.Status).To(Equal(core.StatusHealthy))

	d.Resources = append(d.Resources, core.Resource{Name: "small", Host: "icat", FreeSpace: 10})
	out, err = c.Run(context.Background(), core.ExecutionContext{Deployment: d})
	g.Expect(err).ToNot(HaveOccurred())
	g.Expect(out.Status).To(Equal(core.StatusWarning))

	d.Resources = append(d.Resources, core.Resource{Name: "far", Host: "resc9"})
	out, err = c.Run(context.Background(), core.ExecutionContext{Deployment: d})
	g.Expect(err).ToNot(HaveOccurred())
	g.Expect(out.Status).To(Equal(core.StatusError))
	g.Expect(out.Message).To(ContainSubstring("far (resc9)"))
}

func TestDNS(t *testing.T) {
	g := NewWithT(t)

	pc, err := net.ListenPacket("udp", "127.0.0.1:0")
	g.Expect(err).ToNot(HaveOccurred())

	mux := dns.NewServeMux()
	mux.HandleFunc(".", func(w dns.ResponseWriter, r *dns.Msg) {
		m := new(dns.Msg)
		m.SetReply(r)
		q := r.Question[0]
		if q.Name == "icat.example.org." && q.Qtype == dns.TypeA {
			rr, _ := dns.NewRR("icat.example.org. 60 IN A 10.0.0.1")
			m.Answer = append(m.Answer, rr)
		} else if q.Name != "icat.example.org." {
			m.Rcode = dns.RcodeNameError
		}
		_ = w.WriteMsg(m)
	})

	started := make(chan struct{})
	srv := &dns.Server{PacketConn: pc, Handler: mux, NotifyStartedFunc: func() { close(started) }}
	go func() { _ = srv.ActivateAndServe() }()
	defer func() { _ = srv.Shutdown() }()
	<-started

	c := checks.NewDNSChecker(pc.LocalAddr().String())

	out, err := c.Run(context.Background(), core.ExecutionContext{
		Deployment: zone(core.Server{Hostname: "icat.example.org"}, core.Server{Hostname: "10.0.0.2"}),
	})
	g.Expect(err).ToNot(HaveOccurred())
	g.Expect(out.Status).To(Equal(core.StatusHealthy))

	out, err = c.Run(context.Background(), core.ExecutionContext{
		Deployment: zone(core.Server{Hostname: "icat.example.org"}, core.Server{Hostname: "gone.example.org"}),
	})
	g.Expect(err).ToNot(HaveOccurred())
	g.Expect(out.Status).To(Equal(core.StatusError))
	g.Expect(out.Message).To(ContainSubstring("gone.example.org"))
}

const whoisRecord = `Domain Name: EXAMPLE.ORG
Registry Domain ID: D1234-LROR
Registrar WHOIS Server: whois.example-registrar.net
Updated Date: 2023-01-01T00:00:00Z
Creation Date: 2000-01-01T00:00:00Z
Registry Expiry Date: 2030-01-01T00:00:00Z
Registrar: Example Registrar, Inc.
Domain Status: clientTransferProhibited https://icann.org/epp#clientTransferProhibited
Name Server: NS1.EXAMPLE.ORG
`

func TestDomain(t *testing.T) {
	g := NewWithT(t)

	var looked string
	lookup := func(domain string) (string, error) {
		looked = domain
		return whoisRecord, nil
	}

	clk := testingclock.NewFakePassiveClock(time.Date(2029, 1, 1, 0, 0, 0, 0, time.UTC))
	c := checks.NewDomainChecker(clk, 60, lookup)

	out, err := c.Run(context.Background(), execContext("https://rest.example.org/irods-rest"))
	g.Expect(err).ToNot(HaveOccurred())
	g.Expect(looked).To(Equal("example.org"))
	g.Expect(out.Status).To(Equal(core.StatusHealthy))

	clk.SetTime(time.Date(2029, 12, 1, 0, 0, 0, 0, time.UTC))
	out, err = c.Run(context.Background(), execContext("https://rest.example.org"))
	g.Expect(err).ToNot(HaveOccurred())
	g.Expect(out.Status).To(Equal(core.StatusWarning))

	out, err = c.Run(context.Background(), execContext("https://10.0.0.1"))
	g.Expect(err).ToNot(HaveOccurred())
	g.Expect(out.Status).To(Equal(core.StatusUnavailable))
}
