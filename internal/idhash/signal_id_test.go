package idhash

import (
	"testing"
)

func TestComputeSignalID(t *testing.T) {
	tests := []struct {
		name      string
		sessionID string
		coin      string
		direction string
		ts        int64
		raw       string
	}{
		{
			name:      "bullish call",
			sessionID: "session-a",
			coin:      "BTC",
			direction: "Bullish",
			ts:        1704067200000,
			raw:       "#BTC bullish breakout",
		},
		{
			name:      "bearish call with empty message",
			sessionID: "session-b",
			coin:      "ETH",
			direction: "Bearish",
			ts:        1704067260000,
			raw:       "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ComputeSignalID(tt.sessionID, tt.coin, tt.direction, tt.ts, tt.raw)
			if len(got) != 64 {
				t.Errorf("ComputeSignalID() length = %d, want 64", len(got))
			}

			got2 := ComputeSignalID(tt.sessionID, tt.coin, tt.direction, tt.ts, tt.raw)
			if got != got2 {
				t.Errorf("ComputeSignalID() not deterministic: %s != %s", got, got2)
			}
		})
	}
}

func TestComputeSignalID_NormalizesCoinAndDirection(t *testing.T) {
	a := ComputeSignalID("s", "btc", "BULLISH", 1000, "msg")
	b := ComputeSignalID("s", " BTC ", "bullish", 1000, "msg")
	if a != b {
		t.Errorf("Expected case/whitespace-insensitive IDs, got %s != %s", a, b)
	}
}

func TestComputeSignalID_DifferentInputs(t *testing.T) {
	base := ComputeSignalID("s", "BTC", "Bullish", 1000, "msg")

	if base == ComputeSignalID("other", "BTC", "Bullish", 1000, "msg") {
		t.Error("Different session should produce different hash")
	}
	if base == ComputeSignalID("s", "ETH", "Bullish", 1000, "msg") {
		t.Error("Different coin should produce different hash")
	}
	if base == ComputeSignalID("s", "BTC", "Bearish", 1000, "msg") {
		t.Error("Different direction should produce different hash")
	}
	if base == ComputeSignalID("s", "BTC", "Bullish", 2000, "msg") {
		t.Error("Different timestamp should produce different hash")
	}
	if base == ComputeSignalID("s", "BTC", "Bullish", 1000, "other") {
		t.Error("Different message should produce different hash")
	}
}
