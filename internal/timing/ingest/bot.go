package ingest

import (
	"net"
	"regexp"
	"time"
)

var (
	appleMailPrivacyProxyUA = regexp.MustCompile(`(?i)AppleWebKit.*Mail/`)
	genericBotUA            = regexp.MustCompile(`(?i)bot|crawler|spider`)
)

// scannerRanges are IP blocks known to run automated open/click scanners
// rather than human mail clients.
var scannerRanges = mustParseCIDRs(
	"17.0.0.0/8",    // Apple
	"66.102.0.0/16", // Google
	"66.249.0.0/16", // Google
)

func mustParseCIDRs(cidrs ...string) []*net.IPNet {
	out := make([]*net.IPNet, 0, len(cidrs))
	for _, c := range cidrs {
		_, n, err := net.ParseCIDR(c)
		if err != nil {
			panic(err)
		}
		out = append(out, n)
	}
	return out
}

// botEvidence inspects a single event's timing, user-agent, and source IP
// and returns the bot_reasons that apply. An empty slice means no evidence
// of bot traffic was found.
func botEvidence(isOpen bool, eventTimestamp, now time.Time, userAgent, sourceIP string) []string {
	var reasons []string

	if isOpen && now.Sub(eventTimestamp) >= 0 && now.Sub(eventTimestamp) < 2*time.Second {
		reasons = append(reasons, "instant_open")
	}
	if appleMailPrivacyProxyUA.MatchString(userAgent) {
		reasons = append(reasons, "apple_mail_privacy_proxy")
	}
	if ip := net.ParseIP(sourceIP); ip != nil {
		for _, r := range scannerRanges {
			if r.Contains(ip) {
				reasons = append(reasons, "scanner_ip_range")
				break
			}
		}
	}
	if genericBotUA.MatchString(userAgent) {
		reasons = append(reasons, "bot_user_agent")
	}
	return reasons
}
