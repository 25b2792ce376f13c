package checks

import "k8s.io/utils/clock"

// WithWhois replaces the WHOIS lookup.
func WithWhois(o Options, lookup func(domain string) (string, error)) Options {
	o.whois = lookup
	return o
}

func NewInsecureTLSChecker(c clock.PassiveClock, warnDays int) *TLSChecker {
	return &TLSChecker{clock: c, warnDays: warnDays, insecure: true}
}

func NewDomainChecker(c clock.PassiveClock, warnDays int, lookup func(string) (string, error)) *DomainChecker {
	return &DomainChecker{clock: c, warnDays: warnDays, lookup: lookup}
}

func NewDNSChecker(server string) *DNSChecker {
	return &DNSChecker{server: server}
}
