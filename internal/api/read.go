package api

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"

	"github.com/talgya/homestead/internal/content"
	"github.com/talgya/homestead/internal/engine"
	"github.com/talgya/homestead/internal/grid"
	"github.com/talgya/homestead/internal/placement"
	"github.com/talgya/homestead/internal/planner"
	"github.com/talgya/homestead/internal/plot"
	"github.com/talgya/homestead/internal/progression"
)

// PlotView is the API shape of a plot.
type PlotView struct {
	ID           string    `json:"id"`
	Building     string    `json:"building"`
	Origin       grid.Cell `json:"origin"`
	Phase        string    `json:"phase"`
	Crop         string    `json:"crop,omitempty"`
	Stage        int       `json:"stage"`
	Stages       int       `json:"stages"`
	SoilHealth   float64   `json:"soil_health"`
	SoilPercent  float64   `json:"soil_percent"`
	Remaining    float64   `json:"remaining"`
	LowSoil      bool      `json:"low_soil"`
	FatalHarvest bool      `json:"fatal_harvest"`
	Status       string    `json:"status"`
}

// BuildingView is a catalog entry with its current placement check.
type BuildingView struct {
	*content.BuildingSpec
	Check placement.Result `json:"check"`
}

// ProgressionView is the town hall panel.
type ProgressionView struct {
	Level            int                               `json:"level"`
	Tier             string                            `json:"tier"`
	NextTier         string                            `json:"next_tier,omitempty"`
	UpgradeCost      int                               `json:"upgrade_cost,omitempty"`
	CanLevelUp       bool                              `json:"can_level_up"`
	Counters         progression.Counters              `json:"counters"`
	Requirements     []progression.RequirementProgress `json:"requirements"`
	Limits           map[string]int                    `json:"limits"`
	Counts           map[string]int                    `json:"counts"`
	Unlocked         []string                          `json:"unlocked"`
	GrowthMultiplier float64                           `json:"growth_multiplier"`
	MoneyMultiplier  float64                           `json:"money_multiplier"`
	DailyBonus       int                               `json:"daily_bonus"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	var status map[string]any
	s.Eng.Do(func() {
		f := s.Farm
		status = map[string]any{
			"name":          "Homestead",
			"tick":          f.CurrentTick(),
			"sim_time":      engine.SimTime(f.CurrentTick()),
			"speed":         s.Eng.Speed(),
			"running":       s.Eng.Running(),
			"money":         f.Ledger.Balance(),
			"money_display": "$" + humanize.Comma(int64(f.Ledger.Balance())),
			"level":         f.Progression.Level(),
			"tier":          f.Progression.TierName(),
			"stats":         f.RefreshStats(),
		}
	})
	writeJSON(w, status)
}

func (s *Server) handleProgression(w http.ResponseWriter, r *http.Request) {
	var view ProgressionView
	s.Eng.Do(func() {
		p := s.Farm.Progression
		view = ProgressionView{
			Level:            p.Level(),
			Tier:             p.TierName(),
			CanLevelUp:       p.CanLevelUp(),
			Counters:         p.Counters(),
			Requirements:     p.Requirements(),
			Limits:           make(map[string]int, len(content.Categories)),
			Counts:           make(map[string]int, len(content.Categories)),
			Unlocked:         p.Unlocked(),
			GrowthMultiplier: p.GrowthMultiplier(),
			MoneyMultiplier:  p.MoneyMultiplier(),
			DailyBonus:       p.DailyBonus(),
		}
		if next := p.NextTier(); next != nil {
			view.NextTier = next.Name
			view.UpgradeCost = next.UpgradeCost
		}
		for _, cat := range content.Categories {
			view.Limits[cat.String()] = p.BuildingLimit(cat)
			view.Counts[cat.String()] = p.BuildingCount(cat)
		}
	})
	writeJSON(w, view)
}

func (s *Server) handleBuildings(w http.ResponseWriter, r *http.Request) {
	var out []BuildingView
	s.Eng.Do(func() {
		for _, spec := range s.Farm.Content.BuildingList() {
			out = append(out, BuildingView{BuildingSpec: spec, Check: s.Farm.Placement.CheckPlacement(spec)})
		}
	})
	writeJSON(w, out)
}

func (s *Server) handleCrops(w http.ResponseWriter, r *http.Request) {
	// Content is immutable after load.
	writeJSON(w, s.Farm.Content.Crops)
}

func (s *Server) handlePlacements(w http.ResponseWriter, r *http.Request) {
	var out []*placement.Placement
	s.Eng.Do(func() {
		out = s.Farm.Placement.Placements()
	})
	if out == nil {
		out = []*placement.Placement{}
	}
	writeJSON(w, out)
}

func (s *Server) plotView(p *plot.Plot) PlotView {
	v := PlotView{
		ID:          p.ID(),
		Phase:       p.Phase().String(),
		Stage:       p.Stage(),
		SoilHealth:  p.SoilHealth(),
		SoilPercent: p.SoilHealthPercent(),
		Remaining:   p.RemainingTime(),
		Status:      p.Status(),
	}
	if pl, ok := s.Farm.Placement.Get(p.ID()); ok {
		v.Building = pl.Building
		v.Origin = pl.Origin
	}
	if c := p.Crop(); c != nil {
		v.Crop = c.ID
		v.Stages = len(c.StageDurations)
	}
	v.LowSoil, v.FatalHarvest = p.HarvestWarning()
	return v
}

func (s *Server) handlePlots(w http.ResponseWriter, r *http.Request) {
	out := []PlotView{}
	s.Eng.Do(func() {
		for _, p := range s.Farm.Plots() {
			out = append(out, s.plotView(p))
		}
	})
	writeJSON(w, out)
}

func (s *Server) handlePlotDetail(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/api/v1/plot/")
	if id == "" {
		http.Error(w, "plot id required", http.StatusBadRequest)
		return
	}

	var (
		view  PlotView
		found bool
	)
	s.Eng.Do(func() {
		if p, ok := s.Farm.Plot(id); ok {
			view, found = s.plotView(p), true
		}
	})
	if !found {
		http.Error(w, "plot not found", http.StatusNotFound)
		return
	}
	writeJSON(w, view)
}

func (s *Server) handleGrid(w http.ResponseWriter, r *http.Request) {
	var resp map[string]any
	s.Eng.Do(func() {
		g := s.Farm.Grid
		rows := make([]string, g.Rows())
		line := make([]byte, g.Columns())
		for x := 0; x < g.Rows(); x++ {
			for y := 0; y < g.Columns(); y++ {
				line[y] = '.'
				if g.IsOccupied(grid.Cell{X: x, Y: y}) {
					line[y] = '#'
				}
			}
			rows[x] = string(line)
		}
		resp = map[string]any{
			"rows":      g.Rows(),
			"columns":   g.Columns(),
			"cell_size": g.CellSize(),
			"occupied":  g.OccupiedCount(),
			"cells":     rows,
		}
	})
	writeJSON(w, resp)
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if l := r.URL.Query().Get("limit"); l != "" {
		if n, err := strconv.Atoi(l); err == nil && n > 0 && n <= 500 {
			limit = n
		}
	}

	var events []engine.Event
	s.Eng.Do(func() {
		events = s.Farm.RecentEvents(limit)
	})

	// Optional category filter.
	if cat := r.URL.Query().Get("category"); cat != "" {
		filtered := events[:0]
		for _, e := range events {
			if e.Category == cat {
				filtered = append(filtered, e)
			}
		}
		events = filtered
	}
	writeJSON(w, events)
}

func (s *Server) handleSites(w http.ResponseWriter, r *http.Request) {
	if s.Fertility == nil {
		http.Error(w, "site planner not available", http.StatusServiceUnavailable)
		return
	}
	buildingID := r.URL.Query().Get("building")
	if buildingID == "" {
		buildingID = "farm_plot"
	}
	limit := 10
	if l := r.URL.Query().Get("limit"); l != "" {
		if n, err := strconv.Atoi(l); err == nil && n > 0 && n <= 100 {
			limit = n
		}
	}

	spec, ok := s.Farm.Content.Building(buildingID)
	if !ok {
		http.Error(w, "unknown building", http.StatusNotFound)
		return
	}

	var sites []planner.Site
	s.Eng.Do(func() {
		sites = planner.SuggestSites(s.Farm.Grid, s.Farm.Placement, s.Fertility, spec, limit)
	})
	if sites == nil {
		sites = []planner.Site{}
	}
	writeJSON(w, sites)
}
