// Package safeurl guards outbound HTTP calls made with user-supplied
// destinations (webhook URLs, upload endpoints): scheme and SSRF checks
// plus bounded body reads.
package safeurl

import (
	"errors"
	"fmt"
	"io"
	"net"
	"net/url"
	"strings"
)

// MaxResponseBody is the default cap for HTTP response body reads (1 MiB).
const MaxResponseBody int64 = 1 << 20

// ErrSSRF is returned when a URL targets a private/loopback address.
var ErrSSRF = errors.New("safeurl: URL targets a private or loopback address")

// ErrUnsafeScheme is returned when a URL uses a non-HTTP(S) scheme.
var ErrUnsafeScheme = errors.New("safeurl: only http and https schemes are allowed")

// Validate checks that rawURL uses http/https, has a hostname, and does
// not resolve to a private or loopback IP. DNS resolution is performed
// to catch rebinding via internal hostnames.
func Validate(rawURL string) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("safeurl: invalid URL: %w", err)
	}
	scheme := strings.ToLower(u.Scheme)
	if scheme != "http" && scheme != "https" {
		return ErrUnsafeScheme
	}
	host := u.Hostname()
	if host == "" {
		return fmt.Errorf("safeurl: URL has no host")
	}

	// Check literal IP first.
	if ip := net.ParseIP(host); ip != nil {
		if isPrivateIP(ip) {
			return ErrSSRF
		}
		return nil
	}

	addrs, err := net.LookupHost(host)
	if err != nil {
		// DNS failure: allow through. The host may be a valid external
		// name that is temporarily unresolvable, and the caller will get
		// a network error at connection time anyway.
		return nil
	}
	for _, a := range addrs {
		if ip := net.ParseIP(a); ip != nil && isPrivateIP(ip) {
			return ErrSSRF
		}
	}
	return nil
}

// LimitedReadAll reads at most maxBytes from r and errors past the cap.
func LimitedReadAll(r io.Reader, maxBytes int64) ([]byte, error) {
	lr := io.LimitReader(r, maxBytes+1)
	data, err := io.ReadAll(lr)
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > maxBytes {
		return nil, fmt.Errorf("safeurl: response exceeds %d bytes", maxBytes)
	}
	return data, nil
}

func isPrivateIP(ip net.IP) bool {
	if ip.IsLoopback() {
		return true
	}
	if ip.IsLinkLocalUnicast() || ip.IsLinkLocalMulticast() {
		return true
	}
	privateRanges := []string{
		"10.0.0.0/8",
		"172.16.0.0/12",
		"192.168.0.0/16",
		"fc00::/7",
		"169.254.0.0/16",
		"::1/128",
	}
	for _, pr := range privateRanges {
		_, cidr, err := net.ParseCIDR(pr)
		if err != nil {
			continue
		}
		if cidr.Contains(ip) {
			return true
		}
	}
	return false
}
