package netutil

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/netip"
	"strings"
)

// lookupNetIP is swapped out in tests.
var lookupNetIP = net.DefaultResolver.LookupNetIP

// ResolveTarget turns an IP literal or hostname into a single address.
// Literals are returned as-is (IPv4-mapped IPv6 is unmapped). Hostnames
// resolve to their first IPv4 address, falling back to the first IPv6 one.
func ResolveTarget(ctx context.Context, target string) (netip.Addr, error) {
	target = strings.TrimSpace(target)
	if target == "" {
		return netip.Addr{}, errors.New("empty target")
	}
	if ip, err := netip.ParseAddr(target); err == nil {
		return ip.Unmap(), nil
	}

	ips, err := lookupNetIP(ctx, "ip", target)
	if err != nil {
		return netip.Addr{}, fmt.Errorf("lookup %s: %w", target, err)
	}
	var firstV6 netip.Addr
	for _, ip := range ips {
		ip = ip.Unmap()
		if ip.Is4() {
			return ip, nil
		}
		if !firstV6.IsValid() {
			firstV6 = ip
		}
	}
	if firstV6.IsValid() {
		return firstV6, nil
	}
	return netip.Addr{}, fmt.Errorf("no addresses found for host %s", target)
}
