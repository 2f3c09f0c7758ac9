package builtin

import (
	"context"
	"fmt"
	"net"
	"net/url"
	"time"
)

// blockedNetworks are the address ranges the fetch tool refuses to reach
// even after the gate approves the hostname. Approval covers the name,
// not whatever the name resolves to.
var blockedNetworks = []string{
	"127.0.0.0/8",    // loopback
	"10.0.0.0/8",     // RFC 1918
	"172.16.0.0/12",  // RFC 1918
	"192.168.0.0/16", // RFC 1918
	"169.254.0.0/16", // link-local
	"100.64.0.0/10",  // CGNAT
	"0.0.0.0/8",      // unspecified
	"::1/128",        // IPv6 loopback
	"fc00::/7",       // IPv6 ULA
	"fe80::/10",      // IPv6 link-local
}

var parsedBlockedNetworks []*net.IPNet

func init() {
	for _, cidr := range blockedNetworks {
		if _, network, _ := net.ParseCIDR(cidr); network != nil {
			parsedBlockedNetworks = append(parsedBlockedNetworks, network)
		}
	}
}

// checkFetchTarget validates that the URL is http(s) and does not point
// at a private or reserved address, either directly or through DNS.
func checkFetchTarget(ctx context.Context, rawURL string, allowedHosts []string) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("blocked scheme %q (only http and https allowed)", u.Scheme)
	}

	hostname := u.Hostname()
	for _, h := range allowedHosts {
		if hostname == h {
			return nil
		}
	}

	if ip := net.ParseIP(hostname); ip != nil {
		if isBlockedIP(ip) {
			return fmt.Errorf("blocked: %s is a private address", hostname)
		}
		return nil
	}

	resolveCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	ips, err := net.DefaultResolver.LookupIPAddr(resolveCtx, hostname)
	if err != nil {
		return fmt.Errorf("resolve %s: %w", hostname, err)
	}
	for _, addr := range ips {
		if isBlockedIP(addr.IP) {
			return fmt.Errorf("blocked: %s resolves to private address %s", hostname, addr.IP)
		}
	}
	return nil
}

func isBlockedIP(ip net.IP) bool {
	for _, network := range parsedBlockedNetworks {
		if network.Contains(ip) {
			return true
		}
	}
	return false
}
