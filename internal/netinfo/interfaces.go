// Package netinfo provides the optional, informational collaborators around a
// run: local interface discovery for source-IP binding, and the public IP
// seen from a given interface. Nothing here ever affects probe outcomes.
package netinfo

import (
	"fmt"
	"net"
)

// LocalIPv4s lists the IPv4 addresses assigned to non-loopback interfaces
// that are up, in interface order. These are the candidate source IPs for a
// run.
func LocalIPv4s() ([]string, error) {
	ifaces, err := net.Interfaces()
	if err != nil {
		return nil, fmt.Errorf("list interfaces: %w", err)
	}

	var ips []string
	for _, iface := range ifaces {
		if iface.Flags&net.FlagUp == 0 || iface.Flags&net.FlagLoopback != 0 {
			continue
		}
		addrs, err := iface.Addrs()
		if err != nil {
			continue
		}
		for _, addr := range addrs {
			var ip net.IP
			switch a := addr.(type) {
			case *net.IPNet:
				ip = a.IP
			case *net.IPAddr:
				ip = a.IP
			}
			if ip4 := ip.To4(); ip4 != nil {
				ips = append(ips, ip4.String())
			}
		}
	}
	return ips, nil
}
