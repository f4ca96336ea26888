// Package logx configures tokenwatch's structured logging.
//
// A small wrapper (logx.Logger) over zerolog keeps:
//   - Console output readable (short timestamp + short caller), or JSON for journald
//   - File output JSON-structured
//   - An optional Telegram ops sink (min-level + rate limiting), separate from token alerts
package logx
