package utils

import (
	"net"
	"strconv"
)

// ReachableAddrs lists "ip:port" for every address of the up, non-loopback
// interfaces. It is used to log where a wildcard listener can be reached.
func ReachableAddrs(port int) ([]string, error) {
	ifaces, err := net.Interfaces()
	if err != nil {
		return nil, err
	}

	var out []string
	for _, iface := range ifaces {
		if iface.Flags&net.FlagUp == 0 || iface.Flags&net.FlagLoopback != 0 {
			continue
		}
		addrs, err := iface.Addrs()
		if err != nil {
			continue
		}
		for _, addr := range addrs {
			if ip := hostIP(addr); ip != nil {
				out = append(out, net.JoinHostPort(ip.String(), strconv.Itoa(port)))
			}
		}
	}
	return out, nil
}

func hostIP(addr net.Addr) net.IP {
	var ip net.IP
	switch a := addr.(type) {
	case *net.IPNet:
		ip = a.IP
	case *net.IPAddr:
		ip = a.IP
	}
	if ip == nil || ip.IsLoopback() || ip.IsLinkLocalUnicast() {
		return nil
	}
	return ip
}
