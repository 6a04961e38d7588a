// Package placement validates and commits buildings onto the grid. It is the
// only writer of grid occupancy.
package placement

import (
	"log/slog"
	"slices"

	"github.com/google/uuid"

	"github.com/talgya/homestead/internal/content"
	"github.com/talgya/homestead/internal/events"
	"github.com/talgya/homestead/internal/grid"
	"github.com/talgya/homestead/internal/invariant"
)

// Funds is the resource ledger surface placement needs.
type Funds interface {
	Balance() int
	CanAfford(amount int) bool
	TrySpend(amount int) bool
}

// Gate is the progression surface placement consults and notifies.
type Gate interface {
	IsUnlocked(spec *content.BuildingSpec) bool
	CanBuildMore(cat content.Category) bool
	BuildingCount(cat content.Category) int
	BuildingLimit(cat content.Category) int
	RegisterPlacement(spec *content.BuildingSpec)
	RegisterRemoval(spec *content.BuildingSpec)
}

// Placement is a committed building.
type Placement struct {
	ID       string    `json:"id"`
	Building string    `json:"building"`
	Origin   grid.Cell `json:"origin"`

	Spec *content.BuildingSpec `json:"-"`
}

// Authority owns placement validation and commit.
type Authority struct {
	grid  *grid.Grid
	funds Funds
	gate  Gate

	placements map[string]*Placement
	order      []string
	selected   *content.BuildingSpec

	bus events.Bus
}

// New wires an authority to its collaborators.
func New(g *grid.Grid, funds Funds, gate Gate) *Authority {
	return &Authority{
		grid:       g,
		funds:      funds,
		gate:       gate,
		placements: make(map[string]*Placement),
	}
}

// Events returns the bus on which BuildingPlaced and BuildingRemoved are published.
func (a *Authority) Events() *events.Bus { return &a.bus }

// Grid returns the occupancy index.
func (a *Authority) Grid() *grid.Grid { return a.grid }

// CheckPlacement is the advisory check shown while browsing the catalog:
// unlock, then category limit, then funds. It never touches the ledger.
func (a *Authority) CheckPlacement(spec *content.BuildingSpec) Result {
	if spec == nil {
		return fail(NotUnlocked, "No building selected")
	}
	if !a.gate.IsUnlocked(spec) {
		return fail(NotUnlocked, "Building not unlocked yet!")
	}
	if !a.gate.CanBuildMore(spec.Category) {
		return fail(LimitReached, "Limit reached: %d/%d",
			a.gate.BuildingCount(spec.Category), a.gate.BuildingLimit(spec.Category))
	}
	if !a.funds.CanAfford(spec.Cost) {
		return fail(InsufficientFunds, "Need $%d, have $%d", spec.Cost, a.funds.Balance())
	}
	return ok("Ready to place")
}

// ValidateCommit checks a concrete origin: category limit first, then each
// footprint cell row-major for bounds and occupancy. The first violating
// cell decides the result.
func (a *Authority) ValidateCommit(origin grid.Cell, spec *content.BuildingSpec) Result {
	if spec == nil {
		return fail(NotUnlocked, "No building selected")
	}
	if !a.gate.CanBuildMore(spec.Category) {
		return fail(LimitReached, "Building limit reached for %s!", spec.Category)
	}
	for _, c := range spec.Size.Cells(origin) {
		if !a.grid.IsValidCell(c) {
			return fail(OutOfBounds, "Cannot place building outside the grid!")
		}
		if a.grid.IsOccupied(c) {
			return fail(Occupied, "Space is already occupied!")
		}
	}
	return ok("Can place building here")
}

// Commit places spec at origin and reports success.
func (a *Authority) Commit(origin grid.Cell, spec *content.BuildingSpec) bool {
	_, placed := a.Place(origin, spec)
	return placed
}

// Place validates, spends, reserves and registers in that order. A refused
// spend aborts before the grid or progression is touched.
func (a *Authority) Place(origin grid.Cell, spec *content.BuildingSpec) (*Placement, bool) {
	if res := a.ValidateCommit(origin, spec); !res.CanPlace {
		return nil, false
	}
	if !a.funds.TrySpend(spec.Cost) {
		return nil, false
	}
	a.grid.Reserve(origin, spec.Size)
	a.gate.RegisterPlacement(spec)

	p := &Placement{ID: uuid.NewString(), Building: spec.ID, Origin: origin, Spec: spec}
	a.insert(p)

	slog.Debug("building placed", "building", spec.ID, "origin", origin.String(), "id", p.ID)
	a.bus.Publish(events.Event{Kind: events.BuildingPlaced, Building: spec.ID, Plot: p.ID, Amount: spec.Cost})
	return p, true
}

func (a *Authority) insert(p *Placement) {
	a.placements[p.ID] = p
	a.order = append(a.order, p.ID)
}

// Remove releases a placement's footprint and uncounts it. No refund is given.
func (a *Authority) Remove(id string) bool {
	p, found := a.placements[id]
	if !found {
		invariant.Violated("remove of unknown placement", "id", id)
		return false
	}
	a.grid.Release(p.Origin, p.Spec.Size)
	a.gate.RegisterRemoval(p.Spec)
	delete(a.placements, id)
	if i := slices.Index(a.order, id); i >= 0 {
		a.order = slices.Delete(a.order, i, i+1)
	}

	slog.Debug("building removed", "building", p.Building, "origin", p.Origin.String(), "id", id)
	a.bus.Publish(events.Event{Kind: events.BuildingRemoved, Building: p.Building, Plot: id})
	return true
}

// Get looks up a placement by ID.
func (a *Authority) Get(id string) (*Placement, bool) {
	p, found := a.placements[id]
	return p, found
}

// At returns the placement covering cell, if any.
func (a *Authority) At(c grid.Cell) (*Placement, bool) {
	if !a.grid.IsOccupied(c) {
		return nil, false
	}
	for _, id := range a.order {
		p := a.placements[id]
		if c.X >= p.Origin.X && c.X < p.Origin.X+p.Spec.Size.W &&
			c.Y >= p.Origin.Y && c.Y < p.Origin.Y+p.Spec.Size.H {
			return p, true
		}
	}
	return nil, false
}

// Placements lists committed placements in commit order.
func (a *Authority) Placements() []*Placement {
	out := make([]*Placement, 0, len(a.order))
	for _, id := range a.order {
		out = append(out, a.placements[id])
	}
	return out
}

// Select makes spec the pending building. Locked buildings are refused.
func (a *Authority) Select(spec *content.BuildingSpec) Result {
	if spec == nil || !a.gate.IsUnlocked(spec) {
		return fail(NotUnlocked, "Building not unlocked yet!")
	}
	a.selected = spec
	return a.CheckPlacement(spec)
}

// Selected returns the pending building, or nil.
func (a *Authority) Selected() *content.BuildingSpec { return a.selected }

// ClearSelection drops the pending building.
func (a *Authority) ClearSelection() { a.selected = nil }

// Available filters catalog to the unlocked buildings, keeping catalog order.
func (a *Authority) Available(catalog []*content.BuildingSpec) []*content.BuildingSpec {
	var out []*content.BuildingSpec
	for _, spec := range catalog {
		if a.gate.IsUnlocked(spec) {
			out = append(out, spec)
		}
	}
	return out
}

// Restore re-inserts saved placements without spending or recording
// progress, rebuilding grid occupancy from their footprints. A record that
// leaves the grid or overlaps an earlier one is dropped. It returns the
// per-category counts for the progression ledger.
func (a *Authority) Restore(records []*Placement) map[content.Category]int {
	a.placements = make(map[string]*Placement, len(records))
	a.order = a.order[:0]
	a.selected = nil
	a.grid.Clear()

	counts := make(map[content.Category]int)
	for _, p := range records {
		if p == nil || p.Spec == nil {
			continue
		}
		if reason := a.restoreConflict(p); reason != "" {
			slog.Warn("dropping saved placement", "id", p.ID, "building", p.Building,
				"origin", p.Origin.String(), "reason", reason)
			continue
		}
		a.grid.Reserve(p.Origin, p.Spec.Size)
		a.insert(p)
		counts[p.Spec.Category]++
	}
	return counts
}

func (a *Authority) restoreConflict(p *Placement) string {
	if _, dup := a.placements[p.ID]; dup {
		return "duplicate id"
	}
	cells := p.Spec.Size.Cells(p.Origin)
	if len(cells) == 0 {
		return "empty footprint"
	}
	for _, c := range cells {
		if !a.grid.IsValidCell(c) {
			return "outside grid"
		}
		if a.grid.IsOccupied(c) {
			return "overlaps another placement"
		}
	}
	return ""
}
