package safety

import (
	"context"
	"fmt"
	"hash/fnv"
	"strings"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/querylens-ai/querylens-engine/pkg/apperrors"
	"github.com/querylens-ai/querylens-engine/pkg/models"
)

// Snapshot is an immutable view of the policy rule set at one version.
// Policy decisions are deterministic per (statement, role, snapshot version).
type Snapshot struct {
	// Version increments whenever a refresh observes a changed rule set.
	Version int64

	rowRules    map[string][]models.PolicyRule
	columnRules map[string][]models.PolicyRule
}

// emptySnapshot is served before the first successful refresh. Version 0
// with no rules: nothing is filtered, nothing is withheld.
var emptySnapshot = &Snapshot{
	rowRules:    map[string][]models.PolicyRule{},
	columnRules: map[string][]models.PolicyRule{},
}

// RowRules returns the row-scope rules binding for (table, role), in load order.
func (s *Snapshot) RowRules(table, role string) []models.PolicyRule {
	return filterByRole(s.rowRules[strings.ToLower(table)], role)
}

// ColumnRules returns the column-scope rules binding for (table, role).
func (s *Snapshot) ColumnRules(table, role string) []models.PolicyRule {
	return filterByRole(s.columnRules[strings.ToLower(table)], role)
}

func filterByRole(rules []models.PolicyRule, role string) []models.PolicyRule {
	var out []models.PolicyRule
	for i := range rules {
		if rules[i].AppliesTo(role) {
			out = append(out, rules[i])
		}
	}
	return out
}

// Cache holds the current policy snapshot and refreshes it on a timer.
// Readers get the snapshot via an atomic pointer load; a refresh failure
// leaves the last good snapshot in place.
type Cache struct {
	store        PolicyStore
	refreshEvery time.Duration
	logger       *zap.Logger

	current     atomic.Pointer[Snapshot]
	lastDigest  uint64
	nextVersion int64
}

// NewCache creates a policy cache. Call Refresh once at startup, then Run.
func NewCache(store PolicyStore, refreshEvery time.Duration, logger *zap.Logger) *Cache {
	return &Cache{
		store:        store,
		refreshEvery: refreshEvery,
		logger:       logger.Named("policy"),
	}
}

// Snapshot returns the current snapshot. Never nil and never blocks.
func (c *Cache) Snapshot() *Snapshot {
	if snap := c.current.Load(); snap != nil {
		return snap
	}
	return emptySnapshot
}

// Refresh reloads the rule set and publishes a new snapshot when it changed.
// Only called from Run's goroutine (or directly in tests and startup).
func (c *Cache) Refresh(ctx context.Context) error {
	rules, err := c.store.LoadRules(ctx)
	if err != nil {
		return apperrors.Wrap(apperrors.KindDependencyUnavailable,
			"policy rules could not be loaded", true, err)
	}

	digest := digestRules(rules)
	if c.current.Load() != nil && digest == c.lastDigest {
		return nil
	}

	c.nextVersion++
	snap := buildSnapshot(c.nextVersion, rules)
	c.current.Store(snap)
	c.lastDigest = digest

	c.logger.Info("policy snapshot published",
		zap.Int64("version", snap.Version),
		zap.Int("rules", len(rules)))
	return nil
}

// Run refreshes the snapshot on the configured interval until the context is
// cancelled.
func (c *Cache) Run(ctx context.Context) {
	ticker := time.NewTicker(c.refreshEvery)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := c.Refresh(ctx); err != nil {
				c.logger.Warn("keeping previous policy snapshot", zap.Error(err))
			}
		case <-ctx.Done():
			return
		}
	}
}

func buildSnapshot(version int64, rules []models.PolicyRule) *Snapshot {
	snap := &Snapshot{
		Version:     version,
		rowRules:    make(map[string][]models.PolicyRule),
		columnRules: make(map[string][]models.PolicyRule),
	}
	for _, r := range rules {
		table := strings.ToLower(r.TargetTable)
		switch r.Scope {
		case models.PolicyScopeRow:
			snap.rowRules[table] = append(snap.rowRules[table], r)
		case models.PolicyScopeColumn:
			snap.columnRules[table] = append(snap.columnRules[table], r)
		}
	}
	return snap
}

// digestRules fingerprints the rule set so an unchanged reload does not
// bump the version.
func digestRules(rules []models.PolicyRule) uint64 {
	h := fnv.New64a()
	for _, r := range rules {
		fmt.Fprintf(h, "%s|%s|%s|%s|%s|%s\n",
			r.ID, r.Scope, r.TargetTable, r.PredicateTemplate, r.ColumnName, r.AppliesToRole)
	}
	return h.Sum64()
}
