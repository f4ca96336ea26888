// Package notifier turns matched tokens into Telegram alerts.
//
// Each Notify call formats one Markdown message, waits for the pacing
// limiter, and sends it through a transport.Sender. The result is reported
// back to the caller, which only marks the token as seen on success.
//
// # History
//
// The service keeps the last alerts in memory for operator visibility and
// appends every attempt (sent or failed) to the audit store when one is
// configured.
package notifier
