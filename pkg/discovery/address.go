package discovery

import (
	"net"
	"sort"
)

// SortIPsByPreference sorts addresses for connecting to a home controller.
// Priority order (highest to lowest):
//  1. Private IPv4 (the controllers live on home Wi-Fi)
//  2. Other IPv4
//  3. IPv6 Unique Local Addresses (fc00::/7)
//  4. IPv6 link-local
//  5. Other IPv6
func SortIPsByPreference(ips []net.IP) []net.IP {
	if len(ips) <= 1 {
		return ips
	}

	sorted := make([]net.IP, len(ips))
	copy(sorted, ips)

	sort.SliceStable(sorted, func(i, j int) bool {
		return ipPriority(sorted[i]) < ipPriority(sorted[j])
	})

	return sorted
}

// ipPriority returns the priority of an IP address (lower is better).
func ipPriority(ip net.IP) int {
	norm := ip.To16()
	if norm == nil {
		return 99
	}

	if ip4 := norm.To4(); ip4 != nil {
		if ip4.IsLoopback() {
			return 80
		}
		if isPrivateIPv4(ip4) {
			return 0
		}
		return 1
	}

	if isUniqueLocal(norm) {
		return 2
	}
	if norm.IsLinkLocalUnicast() {
		return 3
	}
	if norm.IsLoopback() {
		return 80
	}
	if norm.IsMulticast() {
		return 90
	}
	return 10
}

func isPrivateIPv4(ip4 net.IP) bool {
	switch {
	case ip4[0] == 10:
		return true
	case ip4[0] == 172 && ip4[1] >= 16 && ip4[1] <= 31:
		return true
	case ip4[0] == 192 && ip4[1] == 168:
		return true
	}
	return false
}

// isUniqueLocal reports whether the IP is in the IPv6 ULA range fc00::/7.
func isUniqueLocal(ip net.IP) bool {
	ip = ip.To16()
	if ip == nil {
		return false
	}
	return ip[0] == 0xfc || ip[0] == 0xfd
}

// FilterIPv4 returns only IPv4 addresses from the slice.
func FilterIPv4(ips []net.IP) []net.IP {
	var result []net.IP
	for _, ip := range ips {
		if ip.To4() != nil {
			result = append(result, ip)
		}
	}
	return result
}

// FilterIPv6 returns only IPv6 addresses from the slice.
func FilterIPv6(ips []net.IP) []net.IP {
	var result []net.IP
	for _, ip := range ips {
		if ip.To4() == nil && ip.To16() != nil {
			result = append(result, ip)
		}
	}
	return result
}
