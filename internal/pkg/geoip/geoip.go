// Package geoip resolves visitor IPs to a country and region.
//
// The GeoLite2 City database is optional: without it every lookup is empty.
package geoip

import (
	"log/slog"
	"net"
	"os"
	"sync"

	"github.com/oschwald/geoip2-golang"
)

// Resolver wraps a GeoLite2 City reader that can be swapped at runtime.
type Resolver struct {
	path   string
	logger *slog.Logger

	mu sync.RWMutex
	db *geoip2.Reader
}

// Open loads the database at path. A missing or unreadable file yields a
// resolver that answers every lookup with empty strings.
func Open(path string, logger *slog.Logger) *Resolver {
	r := &Resolver{path: path, logger: logger}
	r.db = r.open()
	return r
}

func (r *Resolver) open() *geoip2.Reader {
	if r.path == "" {
		r.logger.Debug("GeoIP database path not configured - GeoIP features disabled")
		return nil
	}

	info, err := os.Stat(r.path)
	if os.IsNotExist(err) {
		r.logger.Info("GeoLite2 database not found - GeoIP features disabled",
			slog.String("path", r.path),
			slog.String("hint", "Download from https://www.maxmind.com/en/geolite2/signup"))
		return nil
	} else if err != nil {
		r.logger.Warn("Error checking GeoLite2 database file",
			slog.String("path", r.path),
			slog.Any("error", err))
		return nil
	}

	db, err := geoip2.Open(r.path)
	if err != nil {
		r.logger.Error("Failed to open GeoLite2 database",
			slog.String("path", r.path),
			slog.Any("error", err))
		return nil
	}

	r.logger.Info("GeoLite2 database initialized",
		slog.String("path", r.path),
		slog.Int64("size_bytes", info.Size()),
		slog.String("db_type", db.Metadata().DatabaseType))
	return db
}

// Enabled reports whether a database is loaded.
func (r *Resolver) Enabled() bool {
	if r == nil {
		return false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.db != nil
}

// Lookup returns the English country and first subdivision names for ip.
// Private, malformed or unknown addresses return empty strings.
func (r *Resolver) Lookup(ip string) (country, region string) {
	if r == nil {
		return "", ""
	}
	parsed := net.ParseIP(ip)
	if parsed == nil || parsed.IsPrivate() || parsed.IsLoopback() {
		return "", ""
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.db == nil {
		return "", ""
	}

	record, err := r.db.City(parsed)
	if err != nil {
		r.logger.Debug("GeoIP lookup failed", slog.String("ip", ip), slog.Any("error", err))
		return "", ""
	}

	country = record.Country.Names["en"]
	if country == "" {
		country = record.Country.IsoCode
	}
	if len(record.Subdivisions) > 0 {
		region = record.Subdivisions[0].Names["en"]
	}
	return country, region
}

// Reload reopens the database from disk, e.g. after a new download.
func (r *Resolver) Reload() {
	next := r.open()

	r.mu.Lock()
	prev := r.db
	r.db = next
	r.mu.Unlock()

	if prev != nil {
		prev.Close()
	}
	if next != nil {
		r.logger.Info("GeoLite2 database reloaded")
	}
}

func (r *Resolver) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.db == nil {
		return nil
	}
	err := r.db.Close()
	r.db = nil
	return err
}
