// Package variant runs live A/B comparison of decision parameters. Exactly
// one variant is active at a time; outcomes accrue to whichever variant was
// active when the trade was decided.
package variant

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/arbot-io/arbot/internal/domain"
)

// Config holds the tester tunables.
type Config struct {
	RotationInterval time.Duration // how long each variant stays active
	MinSampleSize    int64         // trades required before a score is comparable
}

// DefaultConfig returns the calibrated defaults.
func DefaultConfig() Config {
	return Config{
		RotationInterval: time.Hour,
		MinSampleSize:    10,
	}
}

// Scored pairs a variant with its comparability and score.
type Scored struct {
	domain.Variant
	Eligible bool    `json:"eligible"`
	Score    float64 `json:"score"`
	Active   bool    `json:"active"`
}

// Tester owns the variant set and the active pointer. Variants rotate in
// insertion order; rotation moves only the pointer and ActiveSince, never the
// accumulators.
type Tester struct {
	cfg    Config
	mu     sync.Mutex
	order  []string
	byName map[string]*domain.Variant
	active int
	store  domain.VariantStore // optional persistence
	logger *slog.Logger
}

// NewTester creates a Tester with the given variants, in order. The first
// variant starts active.
func NewTester(cfg Config, variants []domain.Variant, logger *slog.Logger) (*Tester, error) {
	if len(variants) == 0 {
		return nil, fmt.Errorf("variant: at least one variant required")
	}
	t := &Tester{
		cfg:    cfg,
		byName: make(map[string]*domain.Variant, len(variants)),
		logger: logger.With(slog.String("component", "variant")),
	}
	for i := range variants {
		v := variants[i]
		if v.Name == "" {
			return nil, fmt.Errorf("variant: unnamed variant at index %d", i)
		}
		if _, dup := t.byName[v.Name]; dup {
			return nil, fmt.Errorf("variant: duplicate name %q", v.Name)
		}
		t.order = append(t.order, v.Name)
		t.byName[v.Name] = &v
	}
	t.byName[t.order[0]].ActiveSince = time.Now().UTC()
	return t, nil
}

// AttachStore enables persistence of accumulators across restarts.
func (t *Tester) AttachStore(store domain.VariantStore) {
	t.store = store
}

// Active returns a copy of the currently active variant.
func (t *Tester) Active() domain.Variant {
	t.mu.Lock()
	defer t.mu.Unlock()
	return *t.byName[t.order[t.active]]
}

// Params returns the active variant's decision parameters.
func (t *Tester) Params() domain.VariantParams {
	return t.Active().Params
}

// Rotate advances the active pointer to the next variant in insertion order,
// wrapping at the end. Only ActiveSince changes on the incoming variant.
func (t *Tester) Rotate(ctx context.Context) domain.Variant {
	t.mu.Lock()
	outgoing := t.order[t.active]
	t.active = (t.active + 1) % len(t.order)
	incoming := t.byName[t.order[t.active]]
	incoming.ActiveSince = time.Now().UTC()
	snapshot := *incoming
	t.mu.Unlock()

	t.logger.Info("variant rotated",
		slog.String("from", outgoing),
		slog.String("to", snapshot.Name),
	)
	t.persist(ctx, snapshot)
	return snapshot
}

// RecordOpportunity attributes one considered opportunity to the active
// variant.
func (t *Tester) RecordOpportunity(ctx context.Context) {
	t.mu.Lock()
	v := t.byName[t.order[t.active]]
	v.Opportunities++
	snapshot := *v
	t.mu.Unlock()
	t.persist(ctx, snapshot)
}

// RecordTrade attributes one completed trade to the active variant.
func (t *Tester) RecordTrade(ctx context.Context, profitUSD, feesUSD float64) {
	t.mu.Lock()
	v := t.byName[t.order[t.active]]
	v.Trades++
	if profitUSD > 0 {
		v.Wins++
	} else {
		v.Losses++
	}
	v.ProfitUSD += profitUSD
	v.FeesUSD += feesUSD
	snapshot := *v
	t.mu.Unlock()
	t.persist(ctx, snapshot)
}

// score ranks a variant by blended performance. Profit dominates; win rate
// and per-trade profit break ties between similar totals.
func score(v domain.Variant) float64 {
	return v.ProfitUSD*0.7 + v.WinRate()*100*0.2 + v.AvgProfitUSD()*0.1
}

// Report returns all variants in insertion order with their scores. A variant
// below MinSampleSize trades is marked ineligible and carries a zero score.
func (t *Tester) Report() []Scored {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]Scored, 0, len(t.order))
	for i, name := range t.order {
		v := *t.byName[name]
		s := Scored{Variant: v, Active: i == t.active}
		if v.Trades >= t.cfg.MinSampleSize {
			s.Eligible = true
			s.Score = score(v)
		}
		out = append(out, s)
	}
	return out
}

// Best returns the highest-scoring eligible variant. ok is false when no
// variant has reached MinSampleSize trades yet.
func (t *Tester) Best() (domain.Variant, bool) {
	var best domain.Variant
	var bestScore float64
	ok := false
	for _, s := range t.Report() {
		if !s.Eligible {
			continue
		}
		if !ok || s.Score > bestScore {
			best, bestScore, ok = s.Variant, s.Score, true
		}
	}
	return best, ok
}

// Load restores persisted accumulators into matching variants by name.
// Unknown persisted names are ignored; the configured variant set wins.
func (t *Tester) Load(ctx context.Context) error {
	if t.store == nil {
		return nil
	}
	persisted, err := t.store.Load(ctx)
	if err != nil {
		return fmt.Errorf("variant: load: %w", err)
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, p := range persisted {
		v, ok := t.byName[p.Name]
		if !ok {
			continue
		}
		params := v.Params // configured parameters override persisted ones
		*v = p
		v.Params = params
	}
	return nil
}

func (t *Tester) persist(ctx context.Context, v domain.Variant) {
	if t.store == nil {
		return
	}
	if err := t.store.Upsert(ctx, v); err != nil {
		t.logger.Warn("variant persist failed",
			slog.String("variant", v.Name),
			slog.String("error", err.Error()),
		)
	}
}
