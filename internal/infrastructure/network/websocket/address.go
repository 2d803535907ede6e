package websocket

import (
	"fmt"
	"net"
	"strconv"

	ma "github.com/multiformats/go-multiaddr"
)

// Path is the http path peers connect to.
const Path = "/p2p"

// NewAddress returns the multiaddress of a node reachable at the given host
// and tcp port.
func NewAddress(host string, port int) (string, error) {
	proto := "dns4"
	if ip := net.ParseIP(host); ip != nil {
		proto = "ip4"
		if ip.To4() == nil {
			proto = "ip6"
		}
	}
	addr, err := ma.NewMultiaddr(fmt.Sprintf("/%s/%s/tcp/%d", proto, host, port))
	if err != nil {
		return "", err
	}
	return addr.String(), nil
}

// ParseAddress validates the multiaddress of a peer and returns its
// canonical form.
func ParseAddress(addr string) (string, error) {
	if _, _, err := hostPort(addr); err != nil {
		return "", err
	}
	maddr, _ := ma.NewMultiaddr(addr)
	return maddr.String(), nil
}

// ToURL returns the websocket url of the peer with the given multiaddress.
func ToURL(addr string) (string, error) {
	host, port, err := hostPort(addr)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("ws://%s%s", net.JoinHostPort(host, port), Path), nil
}

func hostPort(addr string) (string, string, error) {
	maddr, err := ma.NewMultiaddr(addr)
	if err != nil {
		return "", "", fmt.Errorf("invalid peer address %s: %w", addr, err)
	}

	var host string
	for _, code := range []int{ma.P_IP4, ma.P_IP6, ma.P_DNS4} {
		if v, err := maddr.ValueForProtocol(code); err == nil {
			host = v
			break
		}
	}
	if host == "" {
		return "", "", fmt.Errorf("invalid peer address %s: missing host", addr)
	}

	port, err := maddr.ValueForProtocol(ma.P_TCP)
	if err != nil {
		return "", "", fmt.Errorf("invalid peer address %s: missing tcp port", addr)
	}
	if _, err := strconv.Atoi(port); err != nil {
		return "", "", fmt.Errorf("invalid peer address %s: %w", addr, err)
	}
	return host, port, nil
}
