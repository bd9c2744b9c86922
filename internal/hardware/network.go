package hardware

import (
	"fmt"
	"net"
)

// interfaceAddrs lists the unicast addresses of one interface, or of every
// interface when name is empty.
type interfaceAddrs func(name string) ([]net.Addr, error)

func systemAddrs(name string) ([]net.Addr, error) {
	if name == "" {
		return net.InterfaceAddrs()
	}
	iface, err := net.InterfaceByName(name)
	if err != nil {
		return nil, fmt.Errorf("interface %q: %w", name, err)
	}
	return iface.Addrs()
}

// LocalIPv4 returns the first non-loopback IPv4 address of iface, or of any
// interface when iface is empty.
func LocalIPv4(iface string) (string, error) {
	return localIPv4(systemAddrs, iface)
}

func localIPv4(addrs interfaceAddrs, iface string) (string, error) {
	list, err := addrs(iface)
	if err != nil {
		return "", err
	}
	for _, a := range list {
		var ip net.IP
		switch v := a.(type) {
		case *net.IPNet:
			ip = v.IP
		case *net.IPAddr:
			ip = v.IP
		}
		if ip == nil || ip.IsLoopback() {
			continue
		}
		if v4 := ip.To4(); v4 != nil {
			return v4.String(), nil
		}
	}
	return "", fmt.Errorf("no IPv4 address on %q", iface)
}
