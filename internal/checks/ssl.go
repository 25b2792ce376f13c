package checks

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/url"
	"time"

	"k8s.io/utils/clock"

	"github.com/leozw/zone-health/internal/core"
)

// TLSChecker validates the certificate served by the REST API.
type TLSChecker struct {
	clock    clock.PassiveClock
	warnDays int
	// insecure skips chain verification so expiry can still be reported on
	// self-signed deployments. Used by tests.
	insecure bool
}

func (s *TLSChecker) Run(ctx context.Context, ec core.ExecutionContext) (core.Outcome, error) {
	if ec.RESTBaseURL == "" {
		return core.Outcome{}, errNoRESTURL
	}

	u, err := url.Parse(ec.RESTBaseURL)
	if err != nil {
		return core.Outcome{}, fmt.Errorf("invalid REST API URL: %w", err)
	}
	if u.Scheme != "https" {
		return core.Warning(fmt.Sprintf("REST API is served over %s, not https.", u.Scheme)), nil
	}

	hostname := u.Hostname()
	port := u.Port()
	if port == "" {
		port = "443"
	}

	ctx, cancel := withRESTTimeout(ctx, ec)
	defer cancel()

	dialer := &tls.Dialer{
		NetDialer: &net.Dialer{},
		Config: &tls.Config{
			ServerName:         hostname,
			InsecureSkipVerify: s.insecure,
		},
	}
	conn, err := dialer.DialContext(ctx, "tcp", net.JoinHostPort(hostname, port))
	if err != nil {
		return core.Failed(fmt.Sprintf("TLS connection failed: %v", err)), nil
	}
	defer conn.Close()

	certs := conn.(*tls.Conn).ConnectionState().PeerCertificates
	if len(certs) == 0 {
		return core.Failed("No certificates found."), nil
	}
	cert := certs[0]

	now := s.clock.Now()
	if now.Before(cert.NotBefore) {
		return core.Failed("Certificate not yet valid."), nil
	}
	if now.After(cert.NotAfter) {
		return core.Failed(fmt.Sprintf("Certificate expired on %s.", cert.NotAfter.Format(time.RFC3339))), nil
	}

	daysUntilExpiry := int(cert.NotAfter.Sub(now).Hours() / 24)
	if daysUntilExpiry < s.warnDays {
		return core.Warning(fmt.Sprintf("Certificate expires in %d days.", daysUntilExpiry)), nil
	}
	return core.Healthy(fmt.Sprintf("Certificate valid for %d more days.", daysUntilExpiry)), nil
}
