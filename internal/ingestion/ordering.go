package ingestion

import (
	"sort"

	"signal-backtest-lab/internal/domain"
)

// SortSignals orders signals by timestamp ASC; ties keep their input order.
func SortSignals(signals []domain.Signal) {
	sort.SliceStable(signals, func(i, j int) bool {
		return signals[i].Timestamp.Before(signals[j].Timestamp)
	})
}

// SortPricedSignals orders priced signals by timestamp ASC; ties keep their input order.
func SortPricedSignals(signals []*domain.PricedSignal) {
	sort.SliceStable(signals, func(i, j int) bool {
		return signals[i].Signal.Timestamp.Before(signals[j].Signal.Timestamp)
	})
}
