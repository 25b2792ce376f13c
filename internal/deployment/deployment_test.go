package deployment_test

import (
	"context"
	"net"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/leozw/zone-health/internal/config"
	"github.com/leozw/zone-health/internal/core"
	"github.com/leozw/zone-health/internal/deployment"

	. "github.com/onsi/gomega"
)

const zoneReport = `{
  "zones": [{
    "icat_server": {
      "host_system_information": {
        "hostname": "icat.example.org",
        "os_distribution_name": "Ubuntu",
        "os_distribution_version": "22.04",
        "service_account_user_name": "irods",
        "service_account_group_name": "irods"
      },
      "server_config": {"zone_name": "tempZone"},
      "version": {"irods_version": "4.3.1"},
      "resources": [
        {"name": "demoResc", "type": "unixfilesystem", "host": "icat.example.org", "vault_path": "/var/lib/irods/Vault", "free_space": "123456"},
        {"name": "replResc", "type": "replication", "host": "EMPTY_RESC_HOST"}
      ]
    },
    "servers": [{
      "host_system_information": {"hostname": "resc1.example.org"},
      "version": {"irods_version": "4.2.11"},
      "resources": [
        {"name": "demoResc", "host": "icat.example.org"},
        {"name": "s3Resc", "type": "s3", "host": "resc1.example.org", "free_space": 42}
      ]
    }]
  }]
}`

type sink struct {
	mu    sync.Mutex
	calls []core.Deployment
}

func (s *sink) SetDeployment(d core.Deployment) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, d)
	return len(s.calls) == 1
}

type prober struct{ reachable []string }

func (p prober) Reachable(context.Context, []string) []string { return p.reachable }

func restServer(t *testing.T, code int, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/irods-rest/1.0.0/zone_report" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		if r.Header.Get("Authorization") != "token" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.WriteHeader(code)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func client(url string) *deployment.Client {
	return deployment.NewClient(config.DeploymentConfig{
		RESTURL:           url + "/irods-rest/1.0.0/",
		Token:             "token",
		Timeout:           time.Second,
		RequestsPerSecond: 100,
	}, zap.NewNop())
}

func TestPoll_PublishesInventory(t *testing.T) {
	g := NewWithT(t)
	srv := restServer(t, http.StatusOK, zoneReport)

	s := &sink{}
	p := deployment.NewPoller(client(srv.URL), prober{reachable: []string{"icat.example.org"}}, s, nil, time.Minute, zap.NewNop())

	d, err := p.Poll(context.Background())
	g.Expect(err).ToNot(HaveOccurred())

	g.Expect(d.Zones).To(HaveLen(1))
	g.Expect(d.Zones[0].Name).To(Equal("tempZone"))
	g.Expect(d.Zones[0].Servers).To(HaveLen(2))
	g.Expect(d.Zones[0].Servers[0].Role).To(Equal(deployment.RoleCatalog))
	g.Expect(d.Zones[0].Servers[0].OSName).To(Equal("Ubuntu"))
	g.Expect(d.ServerVersions).To(Equal([]string{"4.3.1", "4.2.11"}))
	g.Expect(d.Resources).To(HaveLen(3))
	g.Expect(d.Resources[0].FreeSpace).To(Equal(int64(123456)))
	g.Expect(d.Resources[2].FreeSpace).To(Equal(int64(42)))
	g.Expect(d.ReachableHosts).To(Equal([]string{"icat.example.org"}))
	g.Expect(s.calls).To(HaveLen(1))
}

func TestPoll_FailureKeepsPreviousInventory(t *testing.T) {
	g := NewWithT(t)
	srv := restServer(t, http.StatusInternalServerError, "boom")

	s := &sink{}
	p := deployment.NewPoller(client(srv.URL), nil, s, nil, time.Minute, zap.NewNop())

	_, err := p.Poll(context.Background())
	g.Expect(err).To(MatchError(ContainSubstring("500")))
	g.Expect(s.calls).To(BeEmpty())
}

func TestClient_NotConfigured(t *testing.T) {
	g := NewWithT(t)

	c := deployment.NewClient(config.DeploymentConfig{}, zap.NewNop())
	_, err := c.ZoneReport(context.Background())
	g.Expect(err).To(HaveOccurred())
}

func TestTCPProber(t *testing.T) {
	g := NewWithT(t)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	g.Expect(err).ToNot(HaveOccurred())
	defer ln.Close()
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			_ = conn.Close()
		}
	}()

	_, portStr, _ := net.SplitHostPort(ln.Addr().String())
	port, _ := strconv.Atoi(portStr)

	p := deployment.TCPProber{Port: port, Timeout: time.Second}
	g.Expect(p.Reachable(context.Background(), []string{"127.0.0.1"})).To(Equal([]string{"127.0.0.1"}))
}
