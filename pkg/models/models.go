// Package models holds the wire types shared between the extraction
// pipeline and the HTTP front door.
package models

import "time"

// Priority orders admission into the browser pool: higher runs first.
type Priority int

// Priority levels (spec §6 internal constants).
const (
	PriorityNormal Priority = 0
	PriorityHigh   Priority = 10
)

// ParsePriority maps the wire string to a Priority, defaulting to normal.
func ParsePriority(s string) (Priority, error) {
	switch s {
	case "", "normal":
		return PriorityNormal, nil
	case "high":
		return PriorityHigh, nil
	default:
		return 0, &InvalidPriorityError{Value: s}
	}
}

// InvalidPriorityError reports an unrecognized priority string.
type InvalidPriorityError struct {
	Value string
}

func (e *InvalidPriorityError) Error() string {
	return "invalid priority: " + e.Value
}

// ExtractRequest is the JSON body of POST /extract.
type ExtractRequest struct {
	EmbedURL string `json:"embedUrl"`
	Timeout  int64  `json:"timeout,omitempty"`
	Priority string `json:"priority,omitempty"`
}

// ExtractResponse is the JSON body returned for POST /extract, used both on
// success and on "manifest not found" (both are HTTP 200 per spec §6).
type ExtractResponse struct {
	Success bool              `json:"success"`
	URL     string            `json:"url,omitempty"`
	M3U8URL string            `json:"m3u8Url,omitempty"`
	Headers map[string]string `json:"headers,omitempty"`
	Cookies *string           `json:"cookies,omitempty"`
	Error   string            `json:"error,omitempty"`
}

// ExtractionResult is the internal result of a successful extraction.
type ExtractionResult struct {
	ManifestURL string
	Headers     map[string]string
	Cookies     *string
}

// MemoryStats reports a coarse process memory snapshot for /health.
type MemoryStats struct {
	AllocBytes      uint64 `json:"allocBytes"`
	TotalAllocBytes uint64 `json:"totalAllocBytes"`
	SysBytes        uint64 `json:"sysBytes"`
	NumGoroutine    int    `json:"numGoroutine"`
}

// QueueStats reports pool occupancy for /health.
type QueueStats struct {
	Pending int `json:"pending"`
	Active  int `json:"active"`
}

// BrowserStatus reports circuit-breaker state for /health.
type BrowserStatus struct {
	CircuitOpen         bool    `json:"circuitOpen"`
	ConsecutiveFailures int     `json:"consecutiveFailures"`
	ReopenInSeconds     float64 `json:"reopenInSeconds,omitempty"`
}

// HealthResponse is the JSON body of GET /health.
type HealthResponse struct {
	Status    string        `json:"status"`
	Timestamp time.Time     `json:"timestamp"`
	Memory    MemoryStats   `json:"memory"`
	Queue     QueueStats    `json:"queue"`
	Browser   BrowserStatus `json:"browser"`
}
