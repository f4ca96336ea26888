package storage

import (
	"errors"
	"time"
)

var ErrDisabled = errors.New("storage disabled")

// Config configures storage.
//
// Driver values:
//   - "file": JSON Lines file next to Path (<prefix>.alerts.jsonl)
//   - "sqlite": SQLite database file (modernc.org/sqlite, no cgo)
//
// If Driver is empty or "none", storage is disabled.
type Config struct {
	Driver      string
	Path        string
	BusyTimeout time.Duration // sqlite only; 0 means default
}

// AlertRecord is one notification attempt.
type AlertRecord struct {
	At           time.Time `json:"at"`
	CycleID      string    `json:"cycle_id,omitempty"`
	Symbol       string    `json:"symbol"`
	TokenAddress string    `json:"token_address"`
	ChatID       string    `json:"chat_id"`
	MessageID    int       `json:"message_id,omitempty"`
	OK           bool      `json:"ok"`
	Error        string    `json:"error,omitempty"`
	LatencyMS    int64     `json:"latency_ms"`
}
