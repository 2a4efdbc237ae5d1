package config

import (
	"net"
	"strings"
)

const (
	defaultAPIPort = "8000"
	apiSuffix      = "/api"
)

// ResolveAPIBase returns the commerce API base URL the kiosk talks to.
//
// An explicit value wins. Without one the URL is derived from the kiosk host
// (the API runs next to the kiosk on port 8000). Either way the result is
// normalized: a missing scheme is filled in (plain http for loopback, private
// and single-label hosts, https otherwise), trailing slashes are dropped and
// the /api suffix is appended when absent.
func ResolveAPIBase(raw, hostname string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		host := strings.TrimSpace(hostname)
		if host == "" {
			host = "localhost"
		}
		return "http://" + net.JoinHostPort(host, defaultAPIPort) + apiSuffix
	}

	if !strings.Contains(raw, "://") {
		raw = strings.TrimLeft(raw, "/")
		if isLocalHost(hostOf(raw)) {
			raw = "http://" + raw
		} else {
			raw = "https://" + raw
		}
	}

	raw = strings.TrimRight(raw, "/")
	if !strings.HasSuffix(raw, apiSuffix) {
		raw += apiSuffix
	}
	return raw
}

func hostOf(hostport string) string {
	if i := strings.IndexAny(hostport, "/?#"); i >= 0 {
		hostport = hostport[:i]
	}
	if h, _, err := net.SplitHostPort(hostport); err == nil {
		return h
	}
	return strings.Trim(hostport, "[]")
}

func isLocalHost(h string) bool {
	if h == "localhost" || (!strings.Contains(h, ".") && net.ParseIP(h) == nil) {
		return true
	}
	ip := net.ParseIP(h)
	if ip == nil {
		return strings.HasSuffix(h, ".local")
	}
	return ip.IsLoopback() || ip.IsPrivate()
}
