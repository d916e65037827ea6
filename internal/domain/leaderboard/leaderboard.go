// Package leaderboard ranks device owners by their aggregate telemetry score.
package leaderboard

import (
	"context"
	"sort"

	"github.com/avian-io/roost/internal/domain/model"
	"github.com/avian-io/roost/internal/domain/scoring"
)

// Default builder configuration constants.
const (
	defaultLimit       = 20
	defaultPlaceholder = "unknown"
)

// DisplayNameResolver maps an owner id to a human-readable label.
type DisplayNameResolver func(ctx context.Context, ownerID string) (string, error)

// Option applies a configuration option to the Builder.
type Option func(*Builder)

// WithDefaultLimit sets the entry limit used when callers pass limit <= 0.
func WithDefaultLimit(n int) Option {
	return func(b *Builder) {
		if n > 0 {
			b.defaultLimit = n
		}
	}
}

// WithPlaceholderName sets the label used when display-name resolution fails.
func WithPlaceholderName(name string) Option {
	return func(b *Builder) {
		if name != "" {
			b.placeholder = name
		}
	}
}

// Builder computes ranked leaderboards from plain device and telemetry
// sequences. It holds no state across calls.
type Builder struct {
	defaultLimit int
	placeholder  string
}

// NewBuilder creates a Builder with configuration options.
func NewBuilder(opts ...Option) *Builder {
	b := &Builder{
		defaultLimit: defaultLimit,
		placeholder:  defaultPlaceholder,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Build groups telemetry by device owner, scores each group, resolves
// display names and returns at most limit entries sorted by score
// descending. Ties keep the owners' encounter order. Telemetry whose
// device has no known owner is silently excluded. Build never fails on
// empty input; it returns an empty slice.
func (b *Builder) Build(
	ctx context.Context,
	devices []model.Device,
	telemetry []model.TelemetryRecord,
	resolve DisplayNameResolver,
	limit int,
) []model.ScoreEntry {
	if limit <= 0 {
		limit = b.defaultLimit
	}

	ownerByDevice := make(map[string]string, len(devices))
	for _, d := range devices {
		ownerByDevice[d.DeviceID] = d.OwnerID
	}

	// Group by owner, remembering encounter order for stable ties.
	groups := make(map[string][]model.TelemetryRecord)
	var order []string
	for _, rec := range telemetry {
		owner, ok := ownerByDevice[rec.DeviceID]
		if !ok {
			continue // orphaned telemetry contributes to no one
		}
		if _, seen := groups[owner]; !seen {
			order = append(order, owner)
		}
		groups[owner] = append(groups[owner], rec)
	}

	entries := make([]model.ScoreEntry, 0, len(order))
	for _, owner := range order {
		records := groups[owner]
		entries = append(entries, model.ScoreEntry{
			OwnerID:     owner,
			DisplayName: b.displayName(ctx, resolve, owner),
			Score:       scoring.Score(records),
			RecordCount: len(records),
		})
	}

	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Score > entries[j].Score
	})

	if len(entries) > limit {
		entries = entries[:limit]
	}
	return entries
}

func (b *Builder) displayName(ctx context.Context, resolve DisplayNameResolver, ownerID string) string {
	if resolve == nil {
		return b.placeholder
	}
	name, err := resolve(ctx, ownerID)
	if err != nil || name == "" {
		return b.placeholder
	}
	return name
}
