// Package progression tracks the town hall: the current tier, the cumulative
// task counters that gate the next tier, per-category building counts, and
// the multipliers and unlocks each tier grants.
package progression

import (
	"log/slog"

	"github.com/dustin/go-humanize"

	"github.com/talgya/homestead/internal/content"
	"github.com/talgya/homestead/internal/events"
)

// Funds is the part of the resource ledger progression needs.
type Funds interface {
	Balance() int
	TrySpend(amount int) bool
}

// Counters are the cumulative task totals.
type Counters struct {
	CropsHarvested     int `json:"crops_harvested"`
	StructuresBuilt    int `json:"structures_built"`
	MoneyEarned        int `json:"money_earned"`
	SeedsPlanted       int `json:"seeds_planted"`
	ContractsCompleted int `json:"contracts_completed"`
}

// Get returns the counter matching kind.
func (c Counters) Get(kind content.TaskKind) int {
	switch kind {
	case content.HarvestCrops:
		return c.CropsHarvested
	case content.BuildStructures:
		return c.StructuresBuilt
	case content.EarnMoney:
		return c.MoneyEarned
	case content.PlantSeeds:
		return c.SeedsPlanted
	case content.CompleteContracts:
		return c.ContractsCompleted
	}
	return 0
}

func (c *Counters) add(kind content.TaskKind, amount int) bool {
	var p *int
	switch kind {
	case content.HarvestCrops:
		p = &c.CropsHarvested
	case content.BuildStructures:
		p = &c.StructuresBuilt
	case content.EarnMoney:
		p = &c.MoneyEarned
	case content.PlantSeeds:
		p = &c.SeedsPlanted
	case content.CompleteContracts:
		p = &c.ContractsCompleted
	default:
		return false
	}
	*p = max(*p+amount, 0)
	return true
}

// State is the persisted progression shape.
type State struct {
	Level    int      `json:"level"`
	Counters Counters `json:"counters"`
}

// RequirementProgress is one row of the next-tier preview.
type RequirementProgress struct {
	Kind        content.TaskKind `json:"kind"`
	Description string           `json:"description"`
	Current     int              `json:"current"`
	Required    int              `json:"required"`
	Met         bool             `json:"met"`
}

// Ledger is the town hall. The tier only advances through TryLevelUp.
type Ledger struct {
	tiers    []content.TierDefinition
	funds    Funds
	level    int
	counters Counters
	counts   map[content.Category]int

	announced int // highest level for which level-up readiness was logged
	bus       events.Bus
}

// New creates a ledger at level 1 with zero counters.
func New(tiers []content.TierDefinition, funds Funds) *Ledger {
	return &Ledger{
		tiers:  tiers,
		funds:  funds,
		level:  1,
		counts: make(map[content.Category]int),
	}
}

// Events returns the bus on which LevelUp, LevelChanged and TaskProgress
// are published.
func (l *Ledger) Events() *events.Bus { return &l.bus }

// Level returns the current tier ordinal.
func (l *Ledger) Level() int { return l.level }

// Counters returns a copy of the task counters.
func (l *Ledger) Counters() Counters { return l.counters }

func (l *Ledger) tier(level int) *content.TierDefinition {
	if level < 1 || level > len(l.tiers) {
		return nil
	}
	return &l.tiers[level-1]
}

// CurrentTier returns the active tier, or nil when no tier data exists.
func (l *Ledger) CurrentTier() *content.TierDefinition { return l.tier(l.level) }

// NextTier returns the tier TryLevelUp would advance to, or nil at max level.
func (l *Ledger) NextTier() *content.TierDefinition { return l.tier(l.level + 1) }

// TierName returns the current tier's display name.
func (l *Ledger) TierName() string {
	if t := l.CurrentTier(); t != nil && t.Name != "" {
		return t.Name
	}
	return "Unknown"
}

// BuildingLimit returns the current tier's cap for a category, 0 without tier data.
func (l *Ledger) BuildingLimit(cat content.Category) int {
	t := l.CurrentTier()
	if t == nil {
		return 0
	}
	return t.Limits.For(cat)
}

// BuildingCount returns how many buildings of a category are registered.
func (l *Ledger) BuildingCount(cat content.Category) int { return l.counts[cat] }

// CanBuildMore reports whether the category is under its cap.
func (l *Ledger) CanBuildMore(cat content.Category) bool {
	return l.counts[cat] < l.BuildingLimit(cat)
}

// IsUnlocked reports whether spec is unlocked by the current tier or any
// earlier one.
func (l *Ledger) IsUnlocked(spec *content.BuildingSpec) bool {
	if spec == nil {
		return false
	}
	for lv := 1; lv <= l.level && lv <= len(l.tiers); lv++ {
		for _, id := range l.tiers[lv-1].Unlocks {
			if id == spec.ID {
				return true
			}
		}
	}
	return false
}

// Unlocked lists every building ID available at the current tier, in tier order.
func (l *Ledger) Unlocked() []string {
	var ids []string
	for lv := 1; lv <= l.level && lv <= len(l.tiers); lv++ {
		ids = append(ids, l.tiers[lv-1].Unlocks...)
	}
	return ids
}

// RegisterPlacement counts a newly committed building and folds it into
// the BuildStructures task.
func (l *Ledger) RegisterPlacement(spec *content.BuildingSpec) {
	if spec == nil {
		return
	}
	l.counts[spec.Category]++
	l.AddTaskProgress(content.BuildStructures, 1)
}

// RegisterRemoval uncounts a building. The count never drops below zero.
func (l *Ledger) RegisterRemoval(spec *content.BuildingSpec) {
	if spec == nil {
		return
	}
	if l.counts[spec.Category] > 0 {
		l.counts[spec.Category]--
	}
}

// AddTaskProgress adds amount to the matching counter. Negative amounts are
// only for callers reversing an earlier credit; counters stop at zero.
func (l *Ledger) AddTaskProgress(kind content.TaskKind, amount int) {
	if !l.counters.add(kind, amount) {
		return
	}
	l.bus.Publish(events.Event{Kind: events.TaskProgress, Task: kind.String(), Amount: amount})

	if l.announced < l.level && l.CanLevelUp() {
		l.announced = l.level
		next := l.NextTier()
		slog.Info("town hall can level up", "next", next.Name, "cost", humanize.Comma(int64(next.UpgradeCost)))
	}
}

// CompleteContract records one finished contract.
func (l *Ledger) CompleteContract() {
	l.AddTaskProgress(content.CompleteContracts, 1)
}

func (l *Ledger) requirementsMet(t *content.TierDefinition) bool {
	for _, req := range t.Requirements {
		if l.counters.Get(req.Kind) < req.Amount {
			return false
		}
	}
	return true
}

// CanLevelUp reports whether a next tier exists, its cost is affordable and
// every one of its requirements is met.
func (l *Ledger) CanLevelUp() bool {
	next := l.NextTier()
	if next == nil {
		return false
	}
	if l.funds == nil || l.funds.Balance() < next.UpgradeCost {
		return false
	}
	return l.requirementsMet(next)
}

// TryLevelUp spends the upgrade cost and advances exactly one tier.
// It returns false, with no side effects, when CanLevelUp does not hold or
// the spend is refused.
func (l *Ledger) TryLevelUp() bool {
	if !l.CanLevelUp() {
		return false
	}
	next := l.NextTier()
	if !l.funds.TrySpend(next.UpgradeCost) {
		return false
	}
	l.level++
	slog.Info("town hall leveled up", "level", l.level, "name", next.Name)
	l.bus.Publish(events.Event{Kind: events.LevelUp, Level: l.level, TierName: next.Name})
	l.bus.Publish(events.Event{Kind: events.LevelChanged, Level: l.level, TierName: next.Name})
	return true
}

// GrowthMultiplier returns the current tier's crop growth rate, 1.0 without tier data.
func (l *Ledger) GrowthMultiplier() float64 {
	if t := l.CurrentTier(); t != nil && t.GrowthMultiplier > 0 {
		return t.GrowthMultiplier
	}
	return 1.0
}

// MoneyMultiplier returns the current tier's income rate, 1.0 without tier data.
func (l *Ledger) MoneyMultiplier() float64 {
	if t := l.CurrentTier(); t != nil && t.MoneyMultiplier > 0 {
		return t.MoneyMultiplier
	}
	return 1.0
}

// DailyBonus returns the money credited at each day boundary.
func (l *Ledger) DailyBonus() int {
	if t := l.CurrentTier(); t != nil {
		return t.DailyBonus
	}
	return 0
}

// Requirements reports progress toward each requirement of the next tier.
func (l *Ledger) Requirements() []RequirementProgress {
	next := l.NextTier()
	if next == nil {
		return nil
	}
	rows := make([]RequirementProgress, 0, len(next.Requirements))
	for _, req := range next.Requirements {
		cur := l.counters.Get(req.Kind)
		rows = append(rows, RequirementProgress{
			Kind:        req.Kind,
			Description: req.Description,
			Current:     cur,
			Required:    req.Amount,
			Met:         cur >= req.Amount,
		})
	}
	return rows
}

// HandlePlotEvent folds plot lifecycle events into the task counters.
func (l *Ledger) HandlePlotEvent(ev events.Event) {
	switch ev.Kind {
	case events.CropHarvested:
		l.AddTaskProgress(content.HarvestCrops, 1)
		if ev.Money > 0 {
			l.AddTaskProgress(content.EarnMoney, ev.Money)
		}
	case events.CropPlanted:
		l.AddTaskProgress(content.PlantSeeds, 1)
	}
}

// Observe subscribes the ledger to a plot's event bus.
func (l *Ledger) Observe(b *events.Bus) events.Subscription {
	return b.Subscribe(l.HandlePlotEvent)
}

// State returns the persisted shape.
func (l *Ledger) State() State {
	return State{Level: l.level, Counters: l.counters}
}

// Restore replaces level, counters and building counts from a save. The
// counts are rebuilt by the caller from the restored placements.
func (l *Ledger) Restore(s State, counts map[content.Category]int) {
	l.level = max(s.Level, 1)
	l.counters = s.Counters
	l.counts = make(map[content.Category]int, len(counts))
	for cat, n := range counts {
		l.counts[cat] = max(n, 0)
	}
	l.announced = 0
	if l.CanLevelUp() {
		l.announced = l.level
	}
	l.bus.Publish(events.Event{Kind: events.LevelChanged, Level: l.level, TierName: l.TierName()})
}
