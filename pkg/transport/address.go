package transport

import (
	"net"
	"strconv"
)

// DeviceAddr resolves a controller's IP and UDP port into a net.UDPAddr.
func DeviceAddr(ip string, port int) (*net.UDPAddr, error) {
	addr, err := net.ResolveUDPAddr("udp", net.JoinHostPort(ip, strconv.Itoa(port)))
	if err != nil {
		return nil, err
	}
	return addr, nil
}
