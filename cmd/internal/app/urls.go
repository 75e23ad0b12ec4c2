package app

import (
	"net"
	"strings"
)

// RPCURL returns the gateway URL a local client should dial for a listen address.
func RPCURL(httpAddr string) string {
	return wsBaseURL(runtimeBaseURL(httpAddr)) + "/rpc"
}

// runtimeBaseURL maps a listen address to a dialable http URL.
// Wildcard binds are reached through loopback.
func runtimeBaseURL(addr string) string {
	host, port, err := net.SplitHostPort(strings.TrimSpace(addr))
	if err != nil {
		return "http://" + strings.TrimSpace(addr)
	}
	switch host {
	case "", "0.0.0.0", "::":
		host = "127.0.0.1"
	}
	return "http://" + net.JoinHostPort(host, port)
}

func wsBaseURL(base string) string {
	switch {
	case strings.HasPrefix(base, "https://"):
		return "wss://" + strings.TrimPrefix(base, "https://")
	case strings.HasPrefix(base, "http://"):
		return "ws://" + strings.TrimPrefix(base, "http://")
	default:
		return "ws://" + base
	}
}
