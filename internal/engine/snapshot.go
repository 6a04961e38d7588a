package engine

import (
	"bytes"
	"fmt"
	"log/slog"
	"sort"

	"github.com/talgya/homestead/internal/grid"
	"github.com/talgya/homestead/internal/placement"
	"github.com/talgya/homestead/internal/plot"
	"github.com/talgya/homestead/internal/progression"
)

// SnapshotVersion is bumped whenever the persisted shape changes.
const SnapshotVersion = 1

// Snapshot is the complete persisted game state.
type Snapshot struct {
	Version     int               `json:"version"`
	Tick        uint64            `json:"tick"`
	EventSeq    uint64            `json:"event_seq"`
	SimTime     float64           `json:"sim_time"`
	Money       int               `json:"money"`
	Progression progression.State `json:"progression"`
	Grid        []byte            `json:"grid"` // occupancy bitmap
	Placements  []PlacementRecord `json:"placements"`
	Plots       []plot.State      `json:"plots"`
	Respawns    []RespawnCount    `json:"respawns,omitempty"`
	Pending     []PendingRespawn  `json:"pending,omitempty"`
}

// PlacementRecord is a saved placement.
type PlacementRecord struct {
	ID       string    `json:"id"`
	Building string    `json:"building"`
	Origin   grid.Cell `json:"origin"`
}

// RespawnCount is how often the plot at an origin has come back.
type RespawnCount struct {
	Origin grid.Cell `json:"origin"`
	Count  int       `json:"count"`
}

// PendingRespawn is a scheduled respawn and the sim seconds it still waits.
type PendingRespawn struct {
	Plot      string  `json:"plot"`
	Remaining float64 `json:"remaining"`
}

// Store persists snapshots. The SQLite database and the save slots both
// implement it.
type Store interface {
	Save(s *Snapshot) error
	Load() (*Snapshot, error)
}

// Snapshot captures the farm for saving.
func (f *Farm) Snapshot() *Snapshot {
	s := &Snapshot{
		Version:     SnapshotVersion,
		Tick:        f.LastTick,
		EventSeq:    f.eventSeq,
		SimTime:     f.Scheduler.Now(),
		Money:       f.Ledger.Balance(),
		Progression: f.Progression.State(),
		Grid:        f.Grid.Bitmap(),
	}
	for _, pl := range f.Placement.Placements() {
		s.Placements = append(s.Placements, PlacementRecord{ID: pl.ID, Building: pl.Building, Origin: pl.Origin})
		if p, ok := f.plots[pl.ID]; ok {
			s.Plots = append(s.Plots, p.State())
		}
		if task, ok := f.pending[pl.ID]; ok {
			if rem, ok := f.Scheduler.Remaining(task); ok {
				s.Pending = append(s.Pending, PendingRespawn{Plot: pl.ID, Remaining: rem})
			}
		}
	}
	for origin, n := range f.respawns {
		s.Respawns = append(s.Respawns, RespawnCount{Origin: origin, Count: n})
	}
	sort.Slice(s.Respawns, func(i, j int) bool {
		a, b := s.Respawns[i].Origin, s.Respawns[j].Origin
		if a.X != b.X {
			return a.X < b.X
		}
		return a.Y < b.Y
	})
	return s
}

// Restore replaces the farm state with a snapshot. Placements whose
// building no longer exists in content are dropped.
func (f *Farm) Restore(s *Snapshot) error {
	if s == nil {
		return fmt.Errorf("restore: nil snapshot")
	}
	if s.Version > SnapshotVersion {
		return fmt.Errorf("restore: snapshot version %d is newer than %d", s.Version, SnapshotVersion)
	}

	saved := grid.New(f.Content.Grid.Rows, f.Content.Grid.Columns, f.Content.Grid.CellSize, grid.Vec3{})
	if err := saved.LoadBitmap(s.Grid); err != nil {
		return fmt.Errorf("restore grid: %w", err)
	}

	records := make([]*placement.Placement, 0, len(s.Placements))
	for _, r := range s.Placements {
		spec, ok := f.Content.Building(r.Building)
		if !ok {
			slog.Warn("dropping placement of unknown building", "id", r.ID, "building", r.Building)
			continue
		}
		records = append(records, &placement.Placement{ID: r.ID, Building: r.Building, Origin: r.Origin, Spec: spec})
	}

	// Occupancy is rebuilt from the placements; the saved bitmap is a cross-check.
	counts := f.Placement.Restore(records)
	kept := f.Placement.Placements()
	if !bytes.Equal(f.Grid.Bitmap(), saved.Bitmap()) {
		slog.Warn("saved occupancy disagrees with placements, using placements")
	}
	f.Ledger.Set(s.Money)
	f.Progression.Restore(s.Progression, counts)

	f.plots = make(map[string]*plot.Plot)
	f.pending = make(map[string]TaskID)
	f.respawns = make(map[grid.Cell]int, len(s.Respawns))
	f.Scheduler.Reset(s.SimTime)
	f.LastTick = s.Tick
	f.eventSeq = s.EventSeq

	plotStates := make(map[string]plot.State, len(s.Plots))
	for _, ps := range s.Plots {
		plotStates[ps.ID] = ps
	}
	for _, r := range kept {
		if !r.Spec.IsPlot {
			continue
		}
		p := f.newPlot(r.ID)
		if ps, ok := plotStates[r.ID]; ok {
			p.RestoreState(ps, f.Content.Crop)
		}
	}
	for _, rc := range s.Respawns {
		f.respawns[rc.Origin] = rc.Count
	}
	for _, pr := range s.Pending {
		if p, ok := f.plots[pr.Plot]; ok && p.IsDestroyed() {
			f.schedulePlotRespawn(pr.Plot, pr.Remaining)
		}
	}

	f.updateStats()
	slog.Info("farm restored",
		"tick", s.Tick,
		"money", s.Money,
		"level", s.Progression.Level,
		"placements", len(kept),
		"plots", len(f.plots),
	)
	return nil
}
