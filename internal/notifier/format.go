package notifier

import (
	"strings"
	"time"

	"github.com/mr-tron/base58"

	"tokenwatch/internal/discovery"
)

const pumpFunCoinURL = "https://pump.fun/coin/"

var markdownEscaper = strings.NewReplacer(
	`_`, `\_`,
	`*`, `\*`,
	"`", "\\`",
	`[`, `\[`,
)

// FormatAlert renders the Markdown alert for e.
func FormatAlert(suffix string, e discovery.Entity, detected string) string {
	var b strings.Builder
	b.WriteString("🚀 NEW ")
	b.WriteString(markdownEscaper.Replace(suffix))
	b.WriteString(" TOKEN FOUND!\n\n")
	b.WriteString("📛 Symbol: ")
	b.WriteString(markdownEscaper.Replace(e.Symbol))
	b.WriteString("\n📋 Contract: `")
	b.WriteString(strings.ReplaceAll(e.TokenAddress, "`", ""))
	b.WriteString("`\n⏰ Detected: ")
	b.WriteString(detected)
	if IsSolanaAddress(e.TokenAddress) {
		b.WriteString("\n🔗 ")
		b.WriteString(pumpFunCoinURL)
		b.WriteString(e.TokenAddress)
	}
	return b.String()
}

// IsSolanaAddress reports whether s is a base58 encoded 32-byte public key.
func IsSolanaAddress(s string) bool {
	if len(s) < 32 || len(s) > 44 {
		return false
	}
	b, err := base58.Decode(s)
	return err == nil && len(b) == 32
}

func formatDetected(t time.Time, layout string, loc *time.Location) string {
	if layout == "" {
		layout = DefaultTimeLayout
	}
	if loc != nil {
		t = t.In(loc)
	}
	return t.Format(layout)
}
