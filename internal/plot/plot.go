// Package plot runs the crop growth and soil health state machines of a
// single farm plot.
package plot

import (
	"fmt"
	"log/slog"
	"math"

	"github.com/talgya/homestead/internal/content"
	"github.com/talgya/homestead/internal/events"
	"github.com/talgya/homestead/internal/invariant"
	"github.com/talgya/homestead/internal/ledger"
)

// Phase is the lifecycle position of a plot.
type Phase uint8

const (
	Empty Phase = iota
	Growing
	Ready
	Destroyed
)

var phaseNames = [...]string{"empty", "growing", "ready", "destroyed"}

func (p Phase) String() string {
	if int(p) < len(phaseNames) {
		return phaseNames[p]
	}
	return fmt.Sprintf("phase(%d)", p)
}

// MarshalText implements encoding.TextMarshaler.
func (p Phase) MarshalText() ([]byte, error) { return []byte(p.String()), nil }

// Funds is the resource ledger surface a plot needs.
type Funds interface {
	TrySpend(amount int) bool
	Credit(amount int)
}

// Rates supplies the tier multipliers, read fresh on every use.
type Rates interface {
	GrowthMultiplier() float64
	MoneyMultiplier() float64
}

// Plot is one farm plot. Destroyed is terminal.
type Plot struct {
	id    string
	soil  content.SoilSettings
	funds Funds
	rates Rates

	phase   Phase
	crop    *content.CropSpec
	stage   int
	elapsed float64 // in the current stage, already multiplied
	health  float64
	idle    float64 // seconds since last plant or harvest

	bus events.Bus
}

// New creates an empty plot at full soil health.
func New(id string, soil content.SoilSettings, funds Funds, rates Rates) *Plot {
	if soil.MaxHealth <= 0 {
		soil.MaxHealth = 100
	}
	return &Plot{
		id:     id,
		soil:   soil,
		funds:  funds,
		rates:  rates,
		health: soil.MaxHealth,
	}
}

// ID returns the plot's identity (its placement ID).
func (p *Plot) ID() string { return p.id }

// Events returns the bus on which this plot's lifecycle events are published.
func (p *Plot) Events() *events.Bus { return &p.bus }

// Phase returns the current lifecycle phase.
func (p *Plot) Phase() Phase { return p.phase }

// Crop returns the planted crop, or nil.
func (p *Plot) Crop() *content.CropSpec { return p.crop }

// Stage returns the current growth stage index.
func (p *Plot) Stage() int { return p.stage }

// SoilHealth returns the absolute soil health.
func (p *Plot) SoilHealth() float64 { return p.health }

// SoilHealthPercent returns soil health in [0, 100].
func (p *Plot) SoilHealthPercent() float64 {
	return p.health / p.soil.MaxHealth * 100
}

// IsEmpty reports an empty, live plot.
func (p *Plot) IsEmpty() bool { return p.phase == Empty }

// IsReady reports a crop waiting for harvest.
func (p *Plot) IsReady() bool { return p.phase == Ready }

// IsDestroyed reports a dead plot.
func (p *Plot) IsDestroyed() bool { return p.phase == Destroyed }

func (p *Plot) growthMultiplier() float64 {
	if p.rates == nil {
		return 1
	}
	if m := p.rates.GrowthMultiplier(); m > 0 {
		return m
	}
	return 1
}

func (p *Plot) moneyMultiplier() float64 {
	if p.rates == nil {
		return 1
	}
	return p.rates.MoneyMultiplier()
}

// CanPlant reports whether Plant could succeed, ignoring funds.
func (p *Plot) CanPlant() bool {
	return p.phase == Empty && p.health > 0
}

// Plant spends the seed cost and starts growing crop at stage 0.
func (p *Plot) Plant(crop *content.CropSpec) bool {
	if crop == nil || len(crop.StageDurations) == 0 || !p.CanPlant() {
		return false
	}
	if !p.funds.TrySpend(crop.SeedCost) {
		return false
	}
	p.crop = crop
	p.phase = Growing
	p.stage = 0
	p.elapsed = 0
	p.idle = 0

	slog.Debug("crop planted", "plot", p.id, "crop", crop.ID, "seed_cost", crop.SeedCost)
	p.bus.Publish(events.Event{Kind: events.CropPlanted, Plot: p.id, Crop: crop.ID, Amount: crop.SeedCost})
	return true
}

// Tick advances the plot by dt seconds. Growth advances at most one stage
// per tick and leftover time is discarded. An empty plot regenerates soil
// once it has been idle for the regeneration delay.
func (p *Plot) Tick(dt float64) {
	switch p.phase {
	case Growing:
		p.elapsed += dt * p.growthMultiplier()
		if p.stage < len(p.crop.StageDurations) && p.elapsed >= p.crop.StageDurations[p.stage] {
			p.elapsed = 0
			p.stage++
			if p.stage >= len(p.crop.StageDurations) {
				p.phase = Ready
				slog.Debug("crop ready", "plot", p.id, "crop", p.crop.ID)
			}
		}
	case Empty:
		p.idle += dt
		if p.idle >= p.soil.RegenDelay && p.health < p.soil.MaxHealth {
			p.health = math.Min(p.soil.MaxHealth, p.health+p.soil.RegenRate*dt)
		}
	}
}

// Harvest sells a ready crop and applies its soil effect. It returns the
// money earned, or 0 when nothing was harvested. A harvest that drains the
// soil leaves the plot Destroyed rather than Empty.
func (p *Plot) Harvest() int {
	if p.phase != Ready {
		return 0
	}
	crop := p.crop
	money := ledger.Scale(crop.SellPrice, p.moneyMultiplier())
	p.funds.Credit(money)

	delta := p.soil.DeltaFor(crop)
	p.health = p.clamp(p.health + delta)
	p.idle = 0

	p.crop = nil
	p.stage = 0
	p.elapsed = 0
	p.phase = Empty

	slog.Debug("crop harvested", "plot", p.id, "crop", crop.ID, "money", money, "soil", p.health)
	p.bus.Publish(events.Event{Kind: events.CropHarvested, Plot: p.id, Crop: crop.ID, Money: money, SoilDelta: delta})
	if delta > 0 {
		p.bus.Publish(events.Event{Kind: events.SoilRestored, Plot: p.id, SoilDelta: delta})
	}

	if p.health <= 0 {
		p.phase = Destroyed
		slog.Info("plot destroyed, soil exhausted", "plot", p.id)
		p.bus.Publish(events.Event{Kind: events.PlotDestroyed, Plot: p.id})
	}
	return money
}

func (p *Plot) clamp(v float64) float64 {
	return math.Max(0, math.Min(p.soil.MaxHealth, v))
}

// RestoreSoil adds soil health, as fertilizer does.
func (p *Plot) RestoreSoil(amount float64) {
	if p.phase == Destroyed {
		invariant.Violated("restore soil on destroyed plot", "plot", p.id)
		return
	}
	before := p.health
	p.health = p.clamp(p.health + amount)
	if gained := p.health - before; gained > 0 {
		p.bus.Publish(events.Event{Kind: events.SoilRestored, Plot: p.id, SoilDelta: gained})
	}
}

// SetSoilHealth overwrites soil health, clamped to the valid range.
func (p *Plot) SetSoilHealth(v float64) {
	if p.phase == Destroyed {
		invariant.Violated("set soil on destroyed plot", "plot", p.id)
		return
	}
	p.health = p.clamp(v)
}

// HarvestWarning reports, for a ready crop on low soil, that the player
// should be warned, and whether the harvest would destroy the plot.
func (p *Plot) HarvestWarning() (low, fatal bool) {
	if p.phase != Ready {
		return false, false
	}
	if p.SoilHealthPercent() > p.soil.LowHealthPercent {
		return false, false
	}
	return true, p.health+p.soil.DeltaFor(p.crop) <= 0
}

// RemainingTime is the growth time left across unfinished stages at the
// current multiplier.
func (p *Plot) RemainingTime() float64 {
	if p.phase != Growing {
		return 0
	}
	remaining := 0.0
	for i := p.stage; i < len(p.crop.StageDurations); i++ {
		remaining += p.crop.StageDurations[i]
	}
	remaining -= p.elapsed
	return remaining / p.growthMultiplier()
}

// Status is the one-line summary shown to players.
func (p *Plot) Status() string {
	switch p.phase {
	case Destroyed:
		return "Destroyed"
	case Empty:
		return fmt.Sprintf("Empty (Health: %.0f%%)", p.SoilHealthPercent())
	case Ready:
		return p.crop.Name + " - Ready!"
	default:
		return fmt.Sprintf("%s - %ds", p.crop.Name, int(math.Ceil(p.RemainingTime())))
	}
}

// String implements fmt.Stringer.
func (p *Plot) String() string { return p.id + ": " + p.Status() }
