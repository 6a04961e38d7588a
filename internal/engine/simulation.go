// Farm ties together the grid, ledgers, placement and plots, and runs them each tick.
package engine

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/dustin/go-humanize"

	"github.com/talgya/homestead/internal/content"
	"github.com/talgya/homestead/internal/events"
	"github.com/talgya/homestead/internal/grid"
	"github.com/talgya/homestead/internal/ledger"
	"github.com/talgya/homestead/internal/placement"
	"github.com/talgya/homestead/internal/plot"
	"github.com/talgya/homestead/internal/progression"
)

// maxEvents bounds the in-memory event log.
const maxEvents = 1000

// Lookup failures returned by Farm actions.
var (
	ErrUnknownBuilding = errors.New("unknown building")
	ErrUnknownCrop     = errors.New("unknown crop")
	ErrUnknownPlot     = errors.New("unknown plot")
)

// Event is a notable occurrence on the farm.
type Event struct {
	Seq         uint64       `json:"seq"` // monotonic across saves
	Tick        uint64       `json:"tick"`
	Description string       `json:"description"`
	Category    string       `json:"category"` // "farm", "soil", "building", "progression", "economy"
	Detail      events.Event `json:"detail"`
}

// FarmStats tracks aggregate farm statistics.
type FarmStats struct {
	Money           int            `json:"money"`
	Level           int            `json:"level"`
	Tier            string         `json:"tier"`
	Buildings       map[string]int `json:"buildings"` // category → count
	Plots           int            `json:"plots"`
	Empty           int            `json:"empty"`
	Growing         int            `json:"growing"`
	Ready           int            `json:"ready"`
	Destroyed       int            `json:"destroyed"`
	Healthy         int            `json:"healthy"`  // soil above 50%
	Degraded        int            `json:"degraded"` // soil at or below the low-health threshold
	AvgSoil         float64        `json:"avg_soil"`
	PendingRespawns int            `json:"pending_respawns"`
	OccupiedCells   int            `json:"occupied_cells"`
}

// Farm holds the complete game state and wires components together.
// It is not safe for concurrent use: callers go through Engine.Do.
type Farm struct {
	Content     *content.Content
	Grid        *grid.Grid
	Ledger      *ledger.Ledger
	Progression *progression.Ledger
	Placement   *placement.Authority
	Scheduler   *Scheduler

	Events   []Event // Recent events, last maxEvents
	LastTick uint64  // Most recent tick processed
	Stats    FarmStats

	eventSeq uint64
	plots    map[string]*plot.Plot // placement ID → plot
	respawns map[grid.Cell]int     // origin → times respawned
	pending  map[string]TaskID     // placement ID → scheduled respawn

	feedMu  sync.Mutex
	feed    map[int]chan Event
	feedSeq int
}

// NewFarm creates an empty farm from content.
func NewFarm(c *content.Content) *Farm {
	g := grid.New(c.Grid.Rows, c.Grid.Columns, c.Grid.CellSize, grid.Vec3{})
	money := ledger.New(c.StartingMoney)
	prog := progression.New(c.Tiers, money)

	f := &Farm{
		Content:     c,
		Grid:        g,
		Ledger:      money,
		Progression: prog,
		Placement:   placement.New(g, money, prog),
		Scheduler:   &Scheduler{},
		plots:       make(map[string]*plot.Plot),
		respawns:    make(map[grid.Cell]int),
		pending:     make(map[string]TaskID),
		feed:        make(map[int]chan Event),
	}
	prog.Events().Subscribe(f.onProgressionEvent)
	f.Placement.Events().Subscribe(f.onPlacementEvent)
	f.updateStats()
	return f
}

// CurrentTick returns the most recently processed tick number.
func (f *Farm) CurrentTick() uint64 { return f.LastTick }

// Plot looks up a plot by its placement ID.
func (f *Farm) Plot(id string) (*plot.Plot, bool) {
	p, ok := f.plots[id]
	return p, ok
}

// Plots returns every plot in placement order.
func (f *Farm) Plots() []*plot.Plot {
	var out []*plot.Plot
	for _, pl := range f.Placement.Placements() {
		if p, ok := f.plots[pl.ID]; ok {
			out = append(out, p)
		}
	}
	return out
}

func (f *Farm) newPlot(id string) *plot.Plot {
	p := plot.New(id, f.Content.Soil, f.Ledger, f.Progression)
	f.Progression.Observe(p.Events())
	p.Events().Subscribe(f.onPlotEvent)
	f.plots[id] = p
	return p
}

// Place commits building at origin. The advisory checks run first so the
// caller gets the unlock and funds reasons; the commit checks follow.
func (f *Farm) Place(origin grid.Cell, buildingID string) (*placement.Placement, placement.Result, error) {
	spec, ok := f.Content.Building(buildingID)
	if !ok {
		return nil, placement.Result{}, fmt.Errorf("%w: %q", ErrUnknownBuilding, buildingID)
	}
	if res := f.Placement.CheckPlacement(spec); !res.CanPlace {
		return nil, res, nil
	}
	res := f.Placement.ValidateCommit(origin, spec)
	if !res.CanPlace {
		return nil, res, nil
	}
	p, placed := f.Placement.Place(origin, spec)
	if !placed {
		return nil, placement.Result{Status: placement.InsufficientFunds, Message: "Not enough money"}, nil
	}
	return p, res, nil
}

// PlaceAt snaps a world position to the grid and places there.
func (f *Farm) PlaceAt(pos grid.Vec3, buildingID string) (*placement.Placement, placement.Result, error) {
	return f.Place(f.Grid.WorldToCell(pos), buildingID)
}

// Remove demolishes a placement. It returns false for unknown IDs.
func (f *Farm) Remove(id string) bool {
	if _, ok := f.Placement.Get(id); !ok {
		return false
	}
	return f.Placement.Remove(id)
}

// Plant sows crop in a plot.
func (f *Farm) Plant(plotID, cropID string) (bool, error) {
	p, ok := f.plots[plotID]
	if !ok {
		return false, fmt.Errorf("%w: %q", ErrUnknownPlot, plotID)
	}
	crop, ok := f.Content.Crop(cropID)
	if !ok {
		return false, fmt.Errorf("%w: %q", ErrUnknownCrop, cropID)
	}
	return p.Plant(crop), nil
}

// Harvest sells a plot's ready crop and returns the money earned.
func (f *Farm) Harvest(plotID string) (int, error) {
	p, ok := f.plots[plotID]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrUnknownPlot, plotID)
	}
	return p.Harvest(), nil
}

// Fertilize restores soil health on a live plot.
func (f *Farm) Fertilize(plotID string, amount float64) (bool, error) {
	p, ok := f.plots[plotID]
	if !ok {
		return false, fmt.Errorf("%w: %q", ErrUnknownPlot, plotID)
	}
	if p.IsDestroyed() || amount <= 0 {
		return false, nil
	}
	p.RestoreSoil(amount)
	return true, nil
}

// RestoreAllSoil fertilizes every live plot.
func (f *Farm) RestoreAllSoil(amount float64) {
	for _, p := range f.plots {
		if !p.IsDestroyed() {
			p.RestoreSoil(amount)
		}
	}
	slog.Info("restored soil on all plots", "amount", amount)
}

// LevelUp attempts to advance the town hall one tier.
func (f *Farm) LevelUp() bool { return f.Progression.TryLevelUp() }

// CompleteContract records a finished contract.
func (f *Farm) CompleteContract() { f.Progression.CompleteContract() }

// Step runs every tick: deferred callbacks first, then plot growth.
func (f *Farm) Step(tick uint64, dt float64) {
	f.LastTick = tick
	f.Scheduler.Advance(dt)
	for _, p := range f.plots {
		p.Tick(dt)
	}
}

// TickMinute runs every sim-minute: statistics.
func (f *Farm) TickMinute(tick uint64) {
	f.updateStats()
}

// TickDay runs every farm day: the tier's daily bonus and a summary line.
func (f *Farm) TickDay(tick uint64) {
	if bonus := f.Progression.DailyBonus(); bonus > 0 {
		f.Ledger.Credit(bonus)
		f.record(events.Event{Kind: events.DailyBonus, Money: bonus, Level: f.Progression.Level()})
	}
	f.updateStats()

	slog.Info("daily report",
		"tick", tick,
		"time", SimTime(tick),
		"money", humanize.Comma(int64(f.Stats.Money)),
		"tier", f.Stats.Tier,
		"plots", f.Stats.Plots,
		"ready", f.Stats.Ready,
		"growing", f.Stats.Growing,
		"healthy", f.Stats.Healthy,
		"degraded", f.Stats.Degraded,
		"destroyed", f.Stats.Destroyed,
	)
}

func (f *Farm) updateStats() {
	st := FarmStats{
		Money:           f.Ledger.Balance(),
		Level:           f.Progression.Level(),
		Tier:            f.Progression.TierName(),
		Buildings:       make(map[string]int, len(content.Categories)),
		PendingRespawns: len(f.pending),
		OccupiedCells:   f.Grid.OccupiedCount(),
	}
	for _, cat := range content.Categories {
		st.Buildings[cat.String()] = f.Progression.BuildingCount(cat)
	}

	soilTotal := 0.0
	live := 0
	for _, p := range f.plots {
		st.Plots++
		switch p.Phase() {
		case plot.Empty:
			st.Empty++
		case plot.Growing:
			st.Growing++
		case plot.Ready:
			st.Ready++
		case plot.Destroyed:
			st.Destroyed++
			continue
		}
		live++
		pct := p.SoilHealthPercent()
		soilTotal += pct
		if pct > 50 {
			st.Healthy++
		} else if pct <= f.Content.Soil.LowHealthPercent {
			st.Degraded++
		}
	}
	if live > 0 {
		st.AvgSoil = soilTotal / float64(live)
	}
	f.Stats = st
}

// RefreshStats recomputes Stats immediately.
func (f *Farm) RefreshStats() FarmStats {
	f.updateStats()
	return f.Stats
}

func (f *Farm) onPlotEvent(ev events.Event) {
	f.record(ev)
	switch ev.Kind {
	case events.CropHarvested:
		p, ok := f.plots[ev.Plot]
		if ok && p.SoilHealth() > 0 && p.SoilHealthPercent() <= f.Content.Soil.LowHealthPercent {
			slog.Warn("soil health low", "plot", shortID(ev.Plot), "health", fmt.Sprintf("%.0f%%", p.SoilHealthPercent()))
		}
	case events.PlotDestroyed:
		f.onPlotDestroyed(ev.Plot)
	}
}

func (f *Farm) onProgressionEvent(ev events.Event) {
	if ev.Kind == events.LevelUp {
		f.record(ev)
	}
}

func (f *Farm) onPlacementEvent(ev events.Event) {
	switch ev.Kind {
	case events.BuildingPlaced:
		if spec, ok := f.Content.Building(ev.Building); ok && spec.IsPlot {
			f.newPlot(ev.Plot)
		}
	case events.BuildingRemoved:
		delete(f.plots, ev.Plot)
		if id, ok := f.pending[ev.Plot]; ok {
			f.Scheduler.Cancel(id)
			delete(f.pending, ev.Plot)
		}
	}
	f.record(ev)
}

// onPlotDestroyed keeps the footprint reserved and schedules fresh soil,
// until the position has been respawned too often; then the plot is removed.
func (f *Farm) onPlotDestroyed(id string) {
	pl, ok := f.Placement.Get(id)
	if !ok {
		return
	}
	count := f.respawns[pl.Origin]
	if count >= f.Content.Respawn.MaxPerPosition {
		slog.Info("plot destroyed too many times, clearing it", "plot", shortID(id), "origin", pl.Origin.String())
		f.Placement.Remove(id)
		return
	}
	f.respawns[pl.Origin] = count + 1
	f.schedulePlotRespawn(id, f.Content.Respawn.DelaySeconds)
}

func (f *Farm) schedulePlotRespawn(id string, delay float64) {
	f.pending[id] = f.Scheduler.After(delay, func() { f.respawnPlot(id) })
}

func (f *Farm) respawnPlot(id string) {
	delete(f.pending, id)
	pl, ok := f.Placement.Get(id)
	if !ok {
		return
	}
	old, ok := f.plots[id]
	if !ok || !old.IsDestroyed() {
		return
	}
	f.newPlot(id)
	slog.Info("new fertile soil", "plot", shortID(id), "origin", pl.Origin.String(), "respawns", f.respawns[pl.Origin])
	f.record(events.Event{Kind: events.PlotRespawned, Plot: id, Amount: f.respawns[pl.Origin]})
}

// record stamps an event, appends it to the log and fans it out.
func (f *Farm) record(ev events.Event) {
	if ev.Kind == events.TaskProgress {
		return
	}
	ev.Tick = f.LastTick
	f.eventSeq++
	e := Event{Seq: f.eventSeq, Tick: f.LastTick, Description: describe(f.Content, ev), Category: categoryOf(ev.Kind), Detail: ev}
	f.Events = append(f.Events, e)
	if len(f.Events) > maxEvents {
		f.Events = f.Events[len(f.Events)-maxEvents:]
	}
	f.broadcast(e)
}

// RecentEvents returns up to limit of the newest events, oldest first.
func (f *Farm) RecentEvents(limit int) []Event {
	start := 0
	if limit > 0 && len(f.Events) > limit {
		start = len(f.Events) - limit
	}
	out := make([]Event, len(f.Events)-start)
	copy(out, f.Events[start:])
	return out
}

// Subscribe registers a listener for new events. The channel is buffered;
// a slow listener misses events rather than stalling the simulation.
func (f *Farm) Subscribe() (int, <-chan Event) {
	f.feedMu.Lock()
	defer f.feedMu.Unlock()
	f.feedSeq++
	ch := make(chan Event, 64)
	f.feed[f.feedSeq] = ch
	return f.feedSeq, ch
}

// Unsubscribe closes and removes a listener.
func (f *Farm) Unsubscribe(id int) {
	f.feedMu.Lock()
	defer f.feedMu.Unlock()
	if ch, ok := f.feed[id]; ok {
		close(ch)
		delete(f.feed, id)
	}
}

func (f *Farm) broadcast(e Event) {
	f.feedMu.Lock()
	defer f.feedMu.Unlock()
	for _, ch := range f.feed {
		select {
		case ch <- e:
		default:
		}
	}
}

func categoryOf(k events.Kind) string {
	switch k {
	case events.CropPlanted, events.CropHarvested:
		return "farm"
	case events.PlotDestroyed, events.PlotRespawned, events.SoilRestored:
		return "soil"
	case events.BuildingPlaced, events.BuildingRemoved:
		return "building"
	case events.LevelUp, events.LevelChanged:
		return "progression"
	case events.DailyBonus:
		return "economy"
	}
	return "other"
}

func describe(c *content.Content, ev events.Event) string {
	name := func(id string) string {
		if cr, ok := c.Crop(id); ok && cr.Name != "" {
			return cr.Name
		}
		if b, ok := c.Building(id); ok && b.Name != "" {
			return b.Name
		}
		return id
	}
	switch ev.Kind {
	case events.CropPlanted:
		return fmt.Sprintf("Planted %s in plot %s", name(ev.Crop), shortID(ev.Plot))
	case events.CropHarvested:
		return fmt.Sprintf("Harvested %s for $%s", name(ev.Crop), humanize.Comma(int64(ev.Money)))
	case events.SoilRestored:
		return fmt.Sprintf("Soil in plot %s restored by %.0f", shortID(ev.Plot), ev.SoilDelta)
	case events.PlotDestroyed:
		return fmt.Sprintf("Plot %s destroyed, the soil is exhausted", shortID(ev.Plot))
	case events.PlotRespawned:
		return fmt.Sprintf("New fertile soil at plot %s (respawn %d)", shortID(ev.Plot), ev.Amount)
	case events.BuildingPlaced:
		return fmt.Sprintf("Built %s for $%s", name(ev.Building), humanize.Comma(int64(ev.Amount)))
	case events.BuildingRemoved:
		return fmt.Sprintf("Removed %s", name(ev.Building))
	case events.LevelUp:
		return fmt.Sprintf("Town hall reached level %d: %s", ev.Level, ev.TierName)
	case events.LevelChanged:
		return fmt.Sprintf("Town hall is level %d: %s", ev.Level, ev.TierName)
	case events.DailyBonus:
		return fmt.Sprintf("Daily bonus of $%s", humanize.Comma(int64(ev.Money)))
	}
	return string(ev.Kind)
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
