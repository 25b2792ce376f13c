package checks

import (
	"context"
	"fmt"
	"net"
	"sort"
	"strings"

	"github.com/miekg/dns"

	"github.com/leozw/zone-health/internal/core"
)

// DNSChecker resolves every server hostname from the zone report.
type DNSChecker struct {
	server string
}

func (d *DNSChecker) Run(ctx context.Context, ec core.ExecutionContext) (core.Outcome, error) {
	hosts := ec.Deployment.Hosts()
	if len(hosts) == 0 {
		return core.Outcome{Status: core.StatusUnavailable, Message: "No server hosts reported."}, nil
	}

	c := new(dns.Client)
	if ec.RESTTimeout > 0 {
		c.Timeout = ec.RESTTimeout
	}

	var failed []string
	for _, host := range hosts {
		if net.ParseIP(host) != nil {
			continue
		}
		if err := d.resolve(ctx, c, host); err != nil {
			failed = append(failed, fmt.Sprintf("%s (%v)", host, err))
		}
	}
	sort.Strings(failed)

	if len(failed) > 0 {
		return core.Failed("Hosts failed to resolve: " + strings.Join(failed, ", ") + "."), nil
	}
	return core.Healthy(fmt.Sprintf("All %d server hosts resolve.", len(hosts))), nil
}

func (d *DNSChecker) resolve(ctx context.Context, c *dns.Client, host string) error {
	for _, qtype := range []uint16{dns.TypeA, dns.TypeAAAA} {
		m := new(dns.Msg)
		m.SetQuestion(dns.Fqdn(host), qtype)

		r, _, err := c.ExchangeContext(ctx, m, d.server)
		if err != nil {
			return err
		}
		if r.Rcode != dns.RcodeSuccess {
			return fmt.Errorf("%s", dns.RcodeToString[r.Rcode])
		}

		for _, ans := range r.Answer {
			switch ans.(type) {
			case *dns.A, *dns.AAAA, *dns.CNAME:
				return nil
			}
		}
	}
	return fmt.Errorf("no address records")
}
