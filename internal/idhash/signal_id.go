package idhash

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
)

// ComputeSignalID computes a deterministic signal_id using SHA256.
// Formula: SHA256(session_id|UPPER(coin)|lower(direction)|timestamp_ms|raw_message)
// Returns hex-encoded hash (64 characters).
func ComputeSignalID(
	sessionID string,
	coin string,
	direction string,
	timestampMs int64,
	rawMessage string,
) string {
	data := fmt.Sprintf("%s|%s|%s|%d|%s",
		sessionID,
		strings.ToUpper(strings.TrimSpace(coin)),
		strings.ToLower(strings.TrimSpace(direction)),
		timestampMs,
		rawMessage,
	)

	hash := sha256.Sum256([]byte(data))
	return hex.EncodeToString(hash[:])
}
