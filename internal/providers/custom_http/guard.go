package custom_http

import (
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/netip"
	"net/url"
	"strings"
	"syscall"
	"time"
)

var ErrBlockedHost = errors.New("custom api host not allowed")

// Reserved ranges the netip predicates do not cover.
var reservedPrefixes = []netip.Prefix{
	netip.MustParsePrefix("0.0.0.0/8"),
	netip.MustParsePrefix("100.64.0.0/10"),
	netip.MustParsePrefix("192.0.0.0/24"),
	netip.MustParsePrefix("198.18.0.0/15"),
	netip.MustParsePrefix("240.0.0.0/4"),
}

// Guard limits where user-defined adapters may send requests. Only public
// addresses are reachable unless AllowPrivate is set. A non-empty
// AllowedHosts further restricts host names; an entry also admits its
// subdomains.
type Guard struct {
	AllowedHosts []string
	AllowPrivate bool
}

// CheckURL validates scheme and host before any connection is made.
func (g *Guard) CheckURL(u *url.URL) error {
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%w: scheme %q", ErrBlockedHost, u.Scheme)
	}
	host := strings.TrimSuffix(strings.ToLower(u.Hostname()), ".")
	if host == "" {
		return fmt.Errorf("%w: empty host", ErrBlockedHost)
	}
	if len(g.AllowedHosts) > 0 && !g.hostListed(host) {
		return fmt.Errorf("%w: %s is not in CUSTOM_API_ALLOWED_HOSTS", ErrBlockedHost, host)
	}
	if addr, err := netip.ParseAddr(host); err == nil && !g.AllowPrivate && !publicAddr(addr) {
		return fmt.Errorf("%w: %s", ErrBlockedHost, addr)
	}
	return nil
}

func (g *Guard) hostListed(host string) bool {
	for _, h := range g.AllowedHosts {
		h = strings.TrimSuffix(strings.ToLower(strings.TrimSpace(h)), ".")
		if h != "" && (host == h || strings.HasSuffix(host, "."+h)) {
			return true
		}
	}
	return false
}

// control runs after name resolution, so it also catches host names that
// resolve to internal addresses and redirects to them.
func (g *Guard) control(_, address string, _ syscall.RawConn) error {
	if g.AllowPrivate {
		return nil
	}
	ap, err := netip.ParseAddrPort(address)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrBlockedHost, address)
	}
	if !publicAddr(ap.Addr()) {
		return fmt.Errorf("%w: %s", ErrBlockedHost, ap.Addr())
	}
	return nil
}

// HTTPClient dials through the guard, ignores proxy settings and checks
// every redirect target.
func (g *Guard) HTTPClient() *http.Client {
	dialer := &net.Dialer{
		Timeout:   10 * time.Second,
		KeepAlive: 30 * time.Second,
		Control:   g.control,
	}
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.Proxy = nil
	transport.DialContext = dialer.DialContext
	return &http.Client{
		Transport: transport,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= 5 {
				return errors.New("stopped after 5 redirects")
			}
			return g.CheckURL(req.URL)
		},
	}
}

func publicAddr(addr netip.Addr) bool {
	addr = addr.Unmap()
	if !addr.IsValid() || addr.IsLoopback() || addr.IsPrivate() || addr.IsUnspecified() ||
		addr.IsLinkLocalUnicast() || addr.IsLinkLocalMulticast() ||
		addr.IsInterfaceLocalMulticast() || addr.IsMulticast() {
		return false
	}
	for _, p := range reservedPrefixes {
		if p.Contains(addr) {
			return false
		}
	}
	return true
}
