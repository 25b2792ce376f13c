package checks

import (
	"context"
	"fmt"
	"net"
	"net/url"
	"strings"
	"time"

	"github.com/likexian/whois"
	whoisparser "github.com/likexian/whois-parser"
	"k8s.io/utils/clock"

	"github.com/leozw/zone-health/internal/core"
)

// DomainChecker looks up the WHOIS registration of the REST API domain.
type DomainChecker struct {
	clock    clock.PassiveClock
	warnDays int
	lookup   func(domain string) (string, error)
}

func lookupWhois(domain string) (string, error) {
	return whois.Whois(domain)
}

func (d *DomainChecker) Run(ctx context.Context, ec core.ExecutionContext) (core.Outcome, error) {
	if ec.RESTBaseURL == "" {
		return core.Outcome{}, errNoRESTURL
	}
	u, err := url.Parse(ec.RESTBaseURL)
	if err != nil {
		return core.Outcome{}, fmt.Errorf("invalid REST API URL: %w", err)
	}

	domain := registeredDomain(u.Hostname())
	if domain == "" {
		return core.Outcome{Status: core.StatusUnavailable, Message: "REST API host is not a registered domain."}, nil
	}

	type lookupResult struct {
		raw string
		err error
	}
	done := make(chan lookupResult, 1)
	go func() {
		raw, err := d.lookup(domain)
		done <- lookupResult{raw, err}
	}()

	var raw string
	select {
	case <-ctx.Done():
		return core.Outcome{}, ctx.Err()
	case res := <-done:
		if res.err != nil {
			return core.Outcome{}, fmt.Errorf("whois lookup failed: %w", res.err)
		}
		raw = res.raw
	}

	info, err := whoisparser.Parse(raw)
	if err != nil {
		return core.Warning(fmt.Sprintf("Could not parse WHOIS data for %s.", domain)), nil
	}

	expiry, ok := expirationDate(info)
	if !ok {
		return core.Warning(fmt.Sprintf("Could not extract expiry date from WHOIS data for %s.", domain)), nil
	}

	now := d.clock.Now()
	if now.After(expiry) {
		return core.Failed(fmt.Sprintf("Domain %s has expired.", domain)), nil
	}

	daysUntilExpiry := int(expiry.Sub(now).Hours() / 24)
	if daysUntilExpiry < d.warnDays {
		return core.Warning(fmt.Sprintf("Domain %s expires in %d days.", domain, daysUntilExpiry)), nil
	}
	return core.Healthy(fmt.Sprintf("Domain %s is registered until %s.", domain, expiry.Format("2006-01-02"))), nil
}

func expirationDate(info whoisparser.WhoisInfo) (time.Time, bool) {
	if info.Domain == nil {
		return time.Time{}, false
	}
	if info.Domain.ExpirationDate == "" {
		return time.Time{}, false
	}
	t, err := parseWhoisDate(info.Domain.ExpirationDate)
	return t, err == nil
}

func parseWhoisDate(dateStr string) (time.Time, error) {
	formats := []string{
		time.RFC3339,
		"2006-01-02T15:04:05Z",
		"2006-01-02 15:04:05",
		"2006-01-02",
		"02-Jan-2006",
		"2006.01.02 15:04:05",
		"2006/01/02",
	}

	for _, format := range formats {
		if t, err := time.Parse(format, dateStr); err == nil {
			return t, nil
		}
	}

	return time.Time{}, fmt.Errorf("unable to parse date: %s", dateStr)
}

// registeredDomain keeps the last two labels of a hostname. IPs and single
// label hosts have no registration.
func registeredDomain(host string) string {
	if host == "" || net.ParseIP(host) != nil {
		return ""
	}
	labels := strings.Split(strings.TrimSuffix(host, "."), ".")
	if len(labels) < 2 {
		return ""
	}
	return strings.Join(labels[len(labels)-2:], ".")
}
