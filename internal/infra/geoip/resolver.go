// Package geoip resolves request countries for locale detection. Lookups are
// best effort; an unconfigured resolver simply reports ErrUnavailable and the
// middleware falls back to header hints.
package geoip

import (
	"errors"
	"fmt"
	"net"
	"strings"
	"sync"

	"github.com/oschwald/geoip2-golang"
)

// ErrUnavailable is returned when the resolver is not initialized or the
// database has no country for the address.
var ErrUnavailable = errors.New("geoip resolver unavailable")

// Resolver wraps a MaxMind GeoIP2 database. Results for repeated addresses
// are memoized; the working set is a handful of gateway IPs in practice.
type Resolver struct {
	reader *geoip2.Reader

	mu    sync.RWMutex
	cache map[string]string
}

// NewResolver opens the GeoIP database at the given path. An empty path
// yields a nil resolver, which callers treat as "headers only".
func NewResolver(path string) (*Resolver, error) {
	if strings.TrimSpace(path) == "" {
		return nil, nil
	}
	reader, err := geoip2.Open(path)
	if err != nil {
		return nil, fmt.Errorf("geoip: open database: %w", err)
	}
	return &Resolver{reader: reader, cache: make(map[string]string)}, nil
}

// CountryCode returns the ISO country code for the provided IP.
func (r *Resolver) CountryCode(ip string) (string, error) {
	if r == nil || r.reader == nil {
		return "", ErrUnavailable
	}

	r.mu.RLock()
	code, hit := r.cache[ip]
	r.mu.RUnlock()
	if hit {
		if code == "" {
			return "", ErrUnavailable
		}
		return code, nil
	}

	parsed := net.ParseIP(ip)
	if parsed == nil {
		return "", fmt.Errorf("geoip: invalid ip %q", ip)
	}
	record, err := r.reader.Country(parsed)
	if err != nil {
		return "", fmt.Errorf("geoip: lookup country: %w", err)
	}

	code = ""
	if record != nil {
		code = record.Country.IsoCode
	}
	r.mu.Lock()
	if len(r.cache) > 4096 {
		r.cache = make(map[string]string)
	}
	r.cache[ip] = code
	r.mu.Unlock()

	if code == "" {
		return "", ErrUnavailable
	}
	return code, nil
}

// Close releases the underlying database handle.
func (r *Resolver) Close() error {
	if r == nil || r.reader == nil {
		return nil
	}
	return r.reader.Close()
}
