// Package checks provides the built-in check set and the custom catalog
// loader.
package checks

import (
	"crypto/tls"
	"fmt"
	"net/http"
	"time"

	"k8s.io/utils/clock"

	"github.com/leozw/zone-health/internal/core"
)

// Options tunes the built-in checks.
type Options struct {
	HTTPClient *http.Client
	Clock      clock.PassiveClock

	// DNSServer is the resolver queried by the host resolution check.
	DNSServer string
	// CertWarnDays is how close to expiry a certificate turns a warning.
	CertWarnDays int
	// DomainWarnDays is how close to expiry a domain registration turns a
	// warning.
	DomainWarnDays int
	// LowFreeSpace is the free space in bytes under which a resource warns.
	LowFreeSpace int64

	whois func(domain string) (string, error)
}

func (o Options) withDefaults() Options {
	if o.HTTPClient == nil {
		o.HTTPClient = NewHTTPClient()
	}
	if o.Clock == nil {
		o.Clock = clock.RealClock{}
	}
	if o.DNSServer == "" {
		o.DNSServer = "8.8.8.8:53"
	}
	if o.CertWarnDays <= 0 {
		o.CertWarnDays = 30
	}
	if o.DomainWarnDays <= 0 {
		o.DomainWarnDays = 60
	}
	if o.LowFreeSpace <= 0 {
		o.LowFreeSpace = 1 << 30
	}
	if o.whois == nil {
		o.whois = lookupWhois
	}
	return o
}

func NewHTTPClient() *http.Client {
	return &http.Client{
		Timeout: 30 * time.Second,
		Transport: &http.Transport{
			TLSClientConfig: &tls.Config{
				InsecureSkipVerify: false,
			},
		},
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= 10 {
				return fmt.Errorf("stopped after 10 redirects")
			}
			return nil
		},
	}
}

// Builtin returns the built-in checks in their fixed order.
func Builtin(opts Options) []core.Definition {
	opts = opts.withDefaults()

	return []core.Definition{
		{
			Name:             "iRODS Client REST API - /auth endpoint",
			Description:      "/auth endpoint should return a status code rather than 5xx.",
			MinServerVersion: "4.2.0",
			MaxServerVersion: "4.2.10",
			Active:           true,
			Checker:          &RESTAuthChecker{client: opts.HTTPClient},
		},
		{
			Name:        "REST API TLS certificate",
			Description: "The REST API certificate should be valid and not close to expiry.",
			Active:      true,
			Checker:     &TLSChecker{clock: opts.Clock, warnDays: opts.CertWarnDays},
		},
		{
			Name:        "Server version consistency",
			Description: "Every server in the zone should run the same iRODS version.",
			Active:      true,
			Checker:     &VersionConsistencyChecker{},
		},
		{
			Name:        "Resource hosts",
			Description: "Every storage resource host should be reachable and have free space.",
			Active:      true,
			Checker:     &ResourceChecker{lowFreeSpace: opts.LowFreeSpace},
		},
		{
			Name:            "Server host resolution",
			Description:     "Every server hostname in the zone report should resolve in DNS.",
			IntervalSeconds: 600,
			Active:          true,
			Checker:         &DNSChecker{server: opts.DNSServer},
		},
		{
			Name:            "REST API domain registration",
			Description:     "The REST API domain registration should not be close to expiry.",
			IntervalSeconds: 86400,
			Active:          false,
			Checker:         &DomainChecker{clock: opts.Clock, warnDays: opts.DomainWarnDays, lookup: opts.whois},
		},
	}
}
