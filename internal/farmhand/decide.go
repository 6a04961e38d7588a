package farmhand

import (
	"fmt"
	"sort"
)

// Decision is the action chosen for one cycle.
type Decision struct {
	Action    string         `json:"action"` // "none", "levelup", "harvest", "plant", "place"
	Rationale string         `json:"rationale"`
	Path      string         `json:"path,omitempty"`
	Body      map[string]any `json:"body,omitempty"`
	Target    string         `json:"target,omitempty"`
}

// Decide picks at most one action with fixed priorities: level up, harvest,
// plant, then expand. A harvest that would destroy its plot is postponed
// while anything else is worth doing. Targets that failed in the previous
// cycle are skipped once.
func Decide(snap *FarmSnapshot, h *FarmHealth, mem *CycleMemory) *Decision {
	skip := func(action, target string) bool {
		last, ok := mem.Last()
		return ok && !last.Success && last.Action == action && last.Target == target
	}

	if h.CanLevelUp && !skip("levelup", "") {
		return &Decision{
			Action:    "levelup",
			Rationale: fmt.Sprintf("requirements met for %s ($%d)", snap.Progression.NextTier, snap.Progression.UpgradeCost),
			Path:      "/api/v1/levelup",
		}
	}

	for _, p := range h.SafeReady {
		if skip("harvest", p.ID) {
			continue
		}
		return harvest(p, "crop is ready")
	}

	if d := decidePlant(snap, h, skip); d != nil {
		return d
	}
	if d := decidePlace(snap, h, skip); d != nil {
		return d
	}

	// Nothing safer to do: take the money even if the soil gives out.
	for _, p := range h.FatalReady {
		if skip("harvest", p.ID) {
			continue
		}
		return harvest(p, "nothing else to do, harvesting exhausted soil")
	}

	return &Decision{Action: "none", Rationale: "nothing to do (" + h.Condition + ")"}
}

func harvest(p PlotInfo, why string) *Decision {
	return &Decision{
		Action:    "harvest",
		Rationale: why,
		Path:      "/api/v1/harvest",
		Body:      map[string]any{"plot": p.ID},
		Target:    p.ID,
	}
}

func decidePlant(snap *FarmSnapshot, h *FarmHealth, skip func(string, string) bool) *Decision {
	for _, p := range h.Plantable {
		if skip("plant", p.ID) {
			continue
		}
		if c := bestCrop(snap.Crops, h.Money, false); c != nil {
			return plant(p, c, fmt.Sprintf("most profitable affordable crop (+$%d)", c.SellPrice-c.SeedCost))
		}
	}
	for _, p := range h.Depleted {
		if skip("plant", p.ID) {
			continue
		}
		if c := bestCrop(snap.Crops, h.Money, true); c != nil {
			return plant(p, c, fmt.Sprintf("soil at %.0f%%, planting a restoring crop", p.SoilPercent))
		}
	}
	return nil
}

func plant(p PlotInfo, c *CropInfo, why string) *Decision {
	return &Decision{
		Action:    "plant",
		Rationale: why,
		Path:      "/api/v1/plant",
		Body:      map[string]any{"plot": p.ID, "crop": c.ID},
		Target:    p.ID,
	}
}

// bestCrop returns the affordable crop with the highest margin. With
// restoring set only crops that give soil back qualify.
func bestCrop(crops []CropInfo, money int, restoring bool) *CropInfo {
	var candidates []*CropInfo
	for i := range crops {
		c := &crops[i]
		if c.SeedCost > money {
			continue
		}
		if restoring && (c.SoilDelta == nil || *c.SoilDelta <= 0) {
			continue
		}
		candidates = append(candidates, c)
	}
	if len(candidates) == 0 {
		return nil
	}
	sort.Slice(candidates, func(i, j int) bool {
		mi := candidates[i].SellPrice - candidates[i].SeedCost
		mj := candidates[j].SellPrice - candidates[j].SeedCost
		if mi != mj {
			return mi > mj
		}
		if candidates[i].SeedCost != candidates[j].SeedCost {
			return candidates[i].SeedCost < candidates[j].SeedCost
		}
		return candidates[i].ID < candidates[j].ID
	})
	return candidates[0]
}

func decidePlace(snap *FarmSnapshot, h *FarmHealth, skip func(string, string) bool) *Decision {
	if h.PlotSpec == nil || len(snap.Sites) == 0 {
		return nil
	}
	// Keep a seed's worth of money after building.
	if c := bestCrop(snap.Crops, h.Money-h.PlotSpec.Cost, false); c == nil {
		return nil
	}
	for _, s := range snap.Sites {
		target := fmt.Sprintf("%d,%d", s.Origin.X, s.Origin.Y)
		if skip("place", target) {
			continue
		}
		return &Decision{
			Action:    "place",
			Rationale: fmt.Sprintf("expanding with %s at the best site (score %.2f)", h.PlotSpec.Name, s.Score),
			Path:      "/api/v1/place",
			Body:      map[string]any{"building": h.PlotSpec.ID, "origin": map[string]int{"x": s.Origin.X, "y": s.Origin.Y}},
			Target:    target,
		}
	}
	return nil
}
