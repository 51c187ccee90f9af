// Package geocode resolves coordinates to human-readable addresses with a
// small memoizing cache in front of a remote reverse-geocoding service.
// Resolution is best-effort: every failure path yields an empty string and
// the caller decides what label to fall back to.
package geocode

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"location-logger/internal/models"
	"location-logger/internal/observability"
)

// Resolver performs a remote reverse-geocode lookup.
type Resolver interface {
	Resolve(lat, lon float64) (string, error)
}

// Cache memoizes resolved addresses keyed by a quantized coordinate pair,
// tolerating minor GPS jitter. Entries live for the process lifetime; at the
// scale of one device the map never grows enough to need eviction.
type Cache struct {
	mu      sync.Mutex
	entries map[string]string
	remote  Resolver
	log     *slog.Logger
}

// NewCache creates a cache backed by the given remote resolver.
func NewCache(remote Resolver, log *slog.Logger) *Cache {
	return &Cache{
		entries: make(map[string]string),
		remote:  remote,
		log:     log.With("component", "geocode"),
	}
}

// quantize reduces a coordinate pair to ~11m precision for cache keying.
func quantize(lat, lon float64) string {
	return fmt.Sprintf("%.4f,%.4f", lat, lon)
}

// FromCache returns the cached address for the sample's location, or empty.
// Pure lookup, never blocks on I/O.
func (c *Cache) FromCache(loc *models.Location) string {
	c.mu.Lock()
	defer c.mu.Unlock()

	addr := c.entries[quantize(loc.Latitude, loc.Longitude)]
	if addr != "" {
		observability.GeocodeCacheHits.Inc()
	}
	return addr
}

// FromRemote resolves the sample's location through the remote service.
// Returns empty on any failure; geocoding never blocks a notification.
func (c *Cache) FromRemote(loc *models.Location) string {
	observability.GeocodeCacheMisses.Inc()

	addr, err := c.remote.Resolve(loc.Latitude, loc.Longitude)
	if err != nil {
		observability.GeocodeRemoteErrors.Inc()
		c.log.Warn("reverse geocode failed", "lat", loc.Latitude, "lon", loc.Longitude, "error", err)
		return ""
	}
	return addr
}

// AddToCache inserts or overwrites the mapping for the sample's location.
func (c *Cache) AddToCache(loc *models.Location, address string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[quantize(loc.Latitude, loc.Longitude)] = address
}

// NominatimClient resolves addresses against a Nominatim-compatible
// /reverse endpoint.
type NominatimClient struct {
	baseURL string
	httpc   *http.Client
}

// NewNominatimClient creates a client for the given base URL.
func NewNominatimClient(baseURL string) *NominatimClient {
	return &NominatimClient{
		baseURL: baseURL,
		httpc:   &http.Client{Timeout: 10 * time.Second},
	}
}

// Resolve looks up the display name for a coordinate pair.
func (c *NominatimClient) Resolve(lat, lon float64) (string, error) {
	url := fmt.Sprintf("%s/reverse?format=jsonv2&lat=%s&lon=%s",
		c.baseURL,
		strconv.FormatFloat(lat, 'f', -1, 64),
		strconv.FormatFloat(lon, 'f', -1, 64))

	resp, err := c.httpc.Get(url)
	if err != nil {
		return "", fmt.Errorf("reverse geocode request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("reverse geocode returned status %d", resp.StatusCode)
	}

	var result struct {
		DisplayName string `json:"display_name"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("failed to decode reverse geocode response: %w", err)
	}

	return result.DisplayName, nil
}
