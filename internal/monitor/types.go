// Package monitor runs the fetch, match, notify and mark-seen cycle.
package monitor

import (
	"context"
	"time"

	"tokenwatch/internal/discovery"
)

const (
	DefaultInterval = 10 * time.Second
	DefaultLimit    = discovery.DefaultLimit
	DefaultSuffix   = "BLV"

	EventCycle = "monitor.cycle"
)

type Fetcher interface {
	FetchNew(ctx context.Context, limit int) []discovery.Entity
}

type Notifier interface {
	Notify(ctx context.Context, e discovery.Entity) error
}

type Config struct {
	Suffix string
	Limit  int

	// CleanupChance in (0,1) runs seen-set cleanup on that fraction of cycles.
	// Any other value runs it every cycle; it is a no-op under the cap.
	CleanupChance float64
}

// CycleResult describes one cycle. It is published on the bus and handed to
// the cycle hook; nothing keeps it afterwards.
type CycleResult struct {
	ID         string             `json:"id"`
	Started    time.Time          `json:"started"`
	Duration   time.Duration      `json:"duration"`
	Fetched    int                `json:"fetched"`
	Matched    []discovery.Entity `json:"matched,omitempty"`
	Notified   []discovery.Entity `json:"notified,omitempty"`
	Failed     int                `json:"failed"`
	CleanupRan bool               `json:"cleanup_ran"`
	Evicted    int                `json:"evicted"`
	Tracked    int                `json:"tracked"`
	Skipped    bool               `json:"skipped,omitempty"`
	Panic      string             `json:"panic,omitempty"`
}
