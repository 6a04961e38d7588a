package plot

import "github.com/talgya/homestead/internal/content"

// State is the persisted shape of a plot.
type State struct {
	ID           string  `json:"id"`
	Empty        bool    `json:"empty"`
	Crop         string  `json:"crop,omitempty"`
	Stage        int     `json:"stage"`
	StageElapsed float64 `json:"stage_elapsed"`
	Ready        bool    `json:"ready"`
	SoilHealth   float64 `json:"soil_health"`
	Idle         float64 `json:"idle"`
	Destroyed    bool    `json:"destroyed"`
}

// State captures the plot for saving.
func (p *Plot) State() State {
	s := State{
		ID:           p.id,
		Empty:        p.phase == Empty,
		Stage:        p.stage,
		StageElapsed: p.elapsed,
		Ready:        p.phase == Ready,
		SoilHealth:   p.health,
		Idle:         p.idle,
		Destroyed:    p.phase == Destroyed,
	}
	if p.crop != nil {
		s.Crop = p.crop.ID
	}
	return s
}

// RestoreState loads a saved plot. A crop that no longer exists in content
// leaves the plot empty.
func (p *Plot) RestoreState(s State, lookup func(id string) (*content.CropSpec, bool)) {
	p.health = p.clamp(s.SoilHealth)
	p.idle = s.Idle
	p.crop = nil
	p.stage = 0
	p.elapsed = 0

	switch {
	case s.Destroyed:
		p.phase = Destroyed
		return
	case s.Empty || s.Crop == "":
		p.phase = Empty
		return
	}

	crop, found := lookup(s.Crop)
	if !found || len(crop.StageDurations) == 0 {
		p.phase = Empty
		return
	}
	p.crop = crop
	p.stage = min(max(s.Stage, 0), len(crop.StageDurations))
	p.elapsed = s.StageElapsed
	if s.Ready || p.stage >= len(crop.StageDurations) {
		p.phase = Ready
		p.stage = len(crop.StageDurations)
		p.elapsed = 0
		return
	}
	p.phase = Growing
}
