package notifier

import "time"

const (
	DefaultRatePerSec  = 3
	DefaultSendTimeout = 10 * time.Second
	DefaultTimeLayout  = "1/2/2006, 3:04:05 PM"

	historyLimit = 300
)

type Config struct {
	ChatID   string
	ThreadID int
	Suffix   string

	RatePerSec     int
	SendTimeout    time.Duration
	DisablePreview bool

	// TimeLayout and Location control the "Detected" line.
	TimeLayout string
	Location   *time.Location
}

type HistoryItem struct {
	At           time.Time
	Symbol       string
	TokenAddress string
	MessageID    int
}

// NotificationEvent is published on the bus as notifier.sent / notifier.failed.
type NotificationEvent struct {
	CycleID      string    `json:"cycle_id,omitempty"`
	Symbol       string    `json:"symbol"`
	TokenAddress string    `json:"token_address"`
	ChatID       string    `json:"chat_id"`
	MessageID    int       `json:"message_id,omitempty"`
	At           time.Time `json:"at"`
	Took         string    `json:"took"`
	Error        string    `json:"error,omitempty"`
}
