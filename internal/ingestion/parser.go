package ingestion

import (
	"regexp"
	"strings"
	"time"

	"signal-backtest-lab/internal/domain"
)

// signalPattern matches "#COIN bullish" / "#COIN bearish" anywhere in a message.
var signalPattern = regexp.MustCompile(`(?i)#(\w+)\s+(bullish|bearish)`)

// ParseSignal extracts a signal from message text. The first match wins.
// Coin is upper-cased, direction canonicalized, and the trimmed text is kept
// as the raw message. Returns false when the text holds no signal.
func ParseSignal(text string, ts time.Time) (domain.Signal, bool) {
	raw := strings.TrimSpace(text)
	if raw == "" {
		return domain.Signal{}, false
	}

	m := signalPattern.FindStringSubmatch(raw)
	if m == nil {
		return domain.Signal{}, false
	}

	dir, ok := domain.ParseDirection(m[2])
	if !ok {
		return domain.Signal{}, false
	}

	return domain.Signal{
		Timestamp:  ts.UTC(),
		Coin:       strings.ToUpper(m[1]),
		Direction:  string(dir),
		RawMessage: raw,
	}, true
}
