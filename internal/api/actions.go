package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/talgya/homestead/internal/engine"
	"github.com/talgya/homestead/internal/grid"
	"github.com/talgya/homestead/internal/placement"
)

// actionError maps farm lookup failures to HTTP status codes.
func actionError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, engine.ErrUnknownBuilding), errors.Is(err, engine.ErrUnknownCrop):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, engine.ErrUnknownPlot):
		http.Error(w, err.Error(), http.StatusNotFound)
	default:
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func (s *Server) handlePlace(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Building string     `json:"building"`
		Origin   *grid.Cell `json:"origin"`
		Position *grid.Vec3 `json:"position"` // world position, snapped to the grid
	}
	if !decode(w, r, &req) {
		return
	}
	if req.Origin == nil && req.Position == nil {
		http.Error(w, "origin or position required", http.StatusBadRequest)
		return
	}

	var (
		pl  *placement.Placement
		res placement.Result
		err error
	)
	s.Eng.Do(func() {
		if req.Origin != nil {
			pl, res, err = s.Farm.Place(*req.Origin, req.Building)
		} else {
			pl, res, err = s.Farm.PlaceAt(*req.Position, req.Building)
		}
	})
	if err != nil {
		actionError(w, err)
		return
	}
	if !res.CanPlace || pl == nil {
		writeJSONStatus(w, http.StatusConflict, map[string]any{"result": res})
		return
	}
	writeJSON(w, map[string]any{"result": res, "placement": pl})
}

func (s *Server) handleRemove(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ID string `json:"id"`
	}
	if !decode(w, r, &req) {
		return
	}

	var removed bool
	s.Eng.Do(func() {
		removed = s.Farm.Remove(req.ID)
	})
	if !removed {
		http.Error(w, "placement not found", http.StatusNotFound)
		return
	}
	writeJSON(w, map[string]any{"removed": req.ID})
}

func (s *Server) handlePlant(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Plot string `json:"plot"`
		Crop string `json:"crop"`
	}
	if !decode(w, r, &req) {
		return
	}

	var (
		planted bool
		money   int
		err     error
	)
	s.Eng.Do(func() {
		planted, err = s.Farm.Plant(req.Plot, req.Crop)
		money = s.Farm.Ledger.Balance()
	})
	if err != nil {
		actionError(w, err)
		return
	}
	resp := map[string]any{"planted": planted, "money": money}
	if !planted {
		writeJSONStatus(w, http.StatusConflict, resp)
		return
	}
	writeJSON(w, resp)
}

func (s *Server) handleHarvest(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Plot string `json:"plot"`
	}
	if !decode(w, r, &req) {
		return
	}

	var (
		earned int
		view   PlotView
		err    error
	)
	s.Eng.Do(func() {
		earned, err = s.Farm.Harvest(req.Plot)
		if p, ok := s.Farm.Plot(req.Plot); ok {
			view = s.plotView(p)
		} else if err == nil {
			view = PlotView{ID: req.Plot, Phase: "removed"}
		}
	})
	if err != nil {
		actionError(w, err)
		return
	}
	resp := map[string]any{"earned": earned, "plot": view}
	if earned == 0 {
		writeJSONStatus(w, http.StatusConflict, resp)
		return
	}
	writeJSON(w, resp)
}

func (s *Server) handleLevelUp(w http.ResponseWriter, r *http.Request) {
	var (
		ok    bool
		level int
		tier  string
	)
	s.Eng.Do(func() {
		ok = s.Farm.LevelUp()
		level = s.Farm.Progression.Level()
		tier = s.Farm.Progression.TierName()
	})
	resp := map[string]any{"leveled_up": ok, "level": level, "tier": tier}
	if !ok {
		writeJSONStatus(w, http.StatusConflict, resp)
		return
	}
	writeJSON(w, resp)
}

func (s *Server) handleContract(w http.ResponseWriter, r *http.Request) {
	var completed int
	s.Eng.Do(func() {
		s.Farm.CompleteContract()
		completed = s.Farm.Progression.Counters().ContractsCompleted
	})
	writeJSON(w, map[string]any{"contracts_completed": completed})
}

func (s *Server) handleFertilize(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Plot   string  `json:"plot"` // empty fertilizes every plot
		Amount float64 `json:"amount"`
	}
	if !decode(w, r, &req) {
		return
	}
	if req.Amount <= 0 {
		http.Error(w, "amount must be positive", http.StatusBadRequest)
		return
	}

	if req.Plot == "" {
		s.Eng.Do(func() {
			s.Farm.RestoreAllSoil(req.Amount)
		})
		writeJSON(w, map[string]any{"fertilized": "all"})
		return
	}

	var (
		ok  bool
		err error
	)
	s.Eng.Do(func() {
		ok, err = s.Farm.Fertilize(req.Plot, req.Amount)
	})
	if err != nil {
		actionError(w, err)
		return
	}
	if !ok {
		writeJSONStatus(w, http.StatusConflict, map[string]any{"fertilized": false})
		return
	}
	writeJSON(w, map[string]any{"fertilized": req.Plot})
}

func (s *Server) handleSpeed(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Speed float64 `json:"speed"`
	}
	if !decode(w, r, &req) {
		return
	}
	if req.Speed < 0 || req.Speed > 1000 {
		http.Error(w, "speed must be 0-1000", http.StatusBadRequest)
		return
	}
	s.Eng.SetSpeed(req.Speed)
	slog.Info("speed changed", "speed", req.Speed)

	writeJSON(w, map[string]float64{"speed": s.Eng.Speed()})
}

func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	if s.Store == nil {
		http.Error(w, "store not available", http.StatusServiceUnavailable)
		return
	}

	var (
		snap   *engine.Snapshot
		events []engine.Event
	)
	s.Eng.Do(func() {
		snap = s.Farm.Snapshot()
		events = s.Farm.RecentEvents(0)
	})

	if err := s.Store.Save(snap); err != nil {
		slog.Error("snapshot save failed", "error", err)
		http.Error(w, "snapshot failed", http.StatusInternalServerError)
		return
	}
	if s.DB != nil {
		if err := s.DB.SaveEvents(events); err != nil {
			slog.Error("event save failed", "error", err)
		}
	}

	writeJSON(w, map[string]any{
		"tick":    snap.Tick,
		"message": "snapshot saved",
	})
}
