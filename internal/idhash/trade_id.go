package idhash

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// ComputeTradeID computes a deterministic trade_id using SHA256.
// Formula: SHA256(session_id|signal_id|params_id)
// params_id identifies the classifier parameters (see strategy.Params.ID),
// so re-running a session with different levels yields distinct trades.
// Returns hex-encoded hash (64 characters).
func ComputeTradeID(
	sessionID string,
	signalID string,
	paramsID string,
) string {
	data := fmt.Sprintf("%s|%s|%s",
		sessionID,
		signalID,
		paramsID,
	)

	hash := sha256.Sum256([]byte(data))
	return hex.EncodeToString(hash[:])
}
