package ledger

import (
	"strings"
	"time"

	"github.com/arbot-io/arbot/internal/domain"
)

// Metrics summarizes ledger performance since inception plus rolling windows.
type Metrics struct {
	CurrentBalanceUSD float64 `json:"currentBalanceUsd"`
	InitialBalanceUSD float64 `json:"initialBalanceUsd"`
	ProfitUSD         float64 `json:"profitUsd"`
	ProfitPct         float64 `json:"profitPercent"`
	TotalTrades       int     `json:"totalTrades"`
	Wins              int     `json:"wins"`
	WinRate           float64 `json:"winRate"`
	TotalFeesUSD      float64 `json:"totalFeesUsd"`
	Profit24hUSD      float64 `json:"profit24hUsd"`
	Profit7dUSD       float64 `json:"profit7dUsd"`
	Profit30dUSD      float64 `json:"profit30dUsd"`
}

// Performance computes current metrics. Base asset inventory is valued at its
// last trade price; assets that never traded carry zero mark and do not
// contribute.
func (l *Ledger) Performance() Metrics {
	l.mu.Lock()
	var current float64
	for k, free := range l.balances {
		asset := k[strings.Index(k, "|")+1:]
		if asset == quoteAsset {
			current += free
			continue
		}
		current += free * l.marks[asset]
	}
	initial := l.initialUSD
	l.mu.Unlock()

	m := Metrics{
		CurrentBalanceUSD: current,
		InitialBalanceUSD: initial,
		ProfitUSD:         current - initial,
	}
	if initial > 0 {
		m.ProfitPct = m.ProfitUSD / initial * 100
	}

	now := time.Now().UTC()
	cut24h := now.Add(-24 * time.Hour)
	cut7d := now.Add(-7 * 24 * time.Hour)
	cut30d := now.Add(-30 * 24 * time.Hour)

	l.entriesMu.RLock()
	defer l.entriesMu.RUnlock()
	for _, e := range l.entries {
		m.TotalTrades++
		m.TotalFeesUSD += e.FeesUSD
		if e.Success && e.RealizedProfitUSD > 0 {
			m.Wins++
		}
		if e.Timestamp.After(cut24h) {
			m.Profit24hUSD += e.RealizedProfitUSD
		}
		if e.Timestamp.After(cut7d) {
			m.Profit7dUSD += e.RealizedProfitUSD
		}
		if e.Timestamp.After(cut30d) {
			m.Profit30dUSD += e.RealizedProfitUSD
		}
	}
	if m.TotalTrades > 0 {
		m.WinRate = float64(m.Wins) / float64(m.TotalTrades)
	}
	return m
}

// RecentTrades returns up to limit most recent entries, newest first.
func (l *Ledger) RecentTrades(limit int) []domain.LedgerEntry {
	l.entriesMu.RLock()
	defer l.entriesMu.RUnlock()
	n := len(l.entries)
	if limit <= 0 || limit > n {
		limit = n
	}
	out := make([]domain.LedgerEntry, 0, limit)
	for i := n - 1; i >= n-limit; i-- {
		out = append(out, l.entries[i])
	}
	return out
}
