package net

import (
	"log/slog"
	"net"
	"strconv"

	"InkBoard/internal/config"
)

// GetOutgoingIP finds the preferred local IP address for the hub to share.
func GetOutgoingIP() string {
	conn, err := net.Dial("udp", "8.8.8.8:80")
	if err != nil {
		// Offline networks still have a usable interface address.
		return firstIPv4().String()
	}
	defer conn.Close()
	return conn.LocalAddr().(*net.UDPAddr).IP.String()
}

func firstIPv4() net.IP {
	ifaces, _ := net.Interfaces()
	for _, iface := range ifaces {
		if iface.Flags&net.FlagUp == 0 || iface.Flags&net.FlagLoopback != 0 {
			continue
		}
		addrs, _ := iface.Addrs()
		for _, a := range addrs {
			if ipnet, ok := a.(*net.IPNet); ok && ipnet.IP.To4() != nil {
				return ipnet.IP.To4()
			}
		}
	}
	slog.Warn("no suitable local IP found, share link uses loopback")
	return net.IPv4(127, 0, 0, 1)
}

// ShareURL returns the URL other machines use to reach a hub bound to addr.
func ShareURL(addr string) string {
	host, portStr, err := net.SplitHostPort(addr)
	port, convErr := strconv.Atoi(portStr)
	if err != nil || convErr != nil {
		port = config.DefaultPort
	}
	if host == "" || host == "0.0.0.0" || host == "::" {
		host = GetOutgoingIP()
	}
	return HubURL(host, port, config.WSPath)
}

// ListenPort extracts the port from a listen address, defaulting to DefaultPort.
func ListenPort(addr string) int {
	_, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		return config.DefaultPort
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return config.DefaultPort
	}
	return port
}
