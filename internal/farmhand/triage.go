package farmhand

import "sort"

// lowSoilPercent matches the server's low-health threshold; plots at or
// below it get soil-restoring crops instead of cash crops.
const lowSoilPercent = 30.0

// FarmHealth holds derived signals computed from a FarmSnapshot.
type FarmHealth struct {
	Money      int
	SafeReady  []PlotInfo // ready plots that survive harvest
	FatalReady []PlotInfo // ready plots whose harvest destroys them
	Plantable  []PlotInfo // empty plots with healthy soil
	Depleted   []PlotInfo // empty plots at or below the low-soil threshold
	CanLevelUp bool
	PlotSpec   *BuildingInfo // the farm plot building, when it can be placed now
	Condition  string        // "THRIVING", "STABLE", "STRUGGLING", "BROKE"
}

// Triage computes a FarmHealth from the snapshot's data.
func Triage(snap *FarmSnapshot) *FarmHealth {
	h := &FarmHealth{
		Money:      snap.Status.Money,
		CanLevelUp: snap.Progression.CanLevelUp,
	}

	plots := append([]PlotInfo(nil), snap.Plots...)
	sort.Slice(plots, func(i, j int) bool { return plots[i].ID < plots[j].ID })
	for _, p := range plots {
		switch p.Phase {
		case "ready":
			if p.FatalHarvest {
				h.FatalReady = append(h.FatalReady, p)
			} else {
				h.SafeReady = append(h.SafeReady, p)
			}
		case "empty":
			if p.SoilPercent <= lowSoilPercent {
				h.Depleted = append(h.Depleted, p)
			} else {
				h.Plantable = append(h.Plantable, p)
			}
		}
	}

	for i := range snap.Buildings {
		b := &snap.Buildings[i]
		if b.IsPlot && b.Check.CanPlace {
			h.PlotSpec = b
			break
		}
	}

	cheapest := -1
	for _, c := range snap.Crops {
		if cheapest < 0 || c.SeedCost < cheapest {
			cheapest = c.SeedCost
		}
	}

	live := snap.Status.Stats.Plots - snap.Status.Stats.Destroyed
	switch {
	case cheapest >= 0 && h.Money < cheapest && len(h.SafeReady)+len(h.FatalReady) == 0:
		h.Condition = "BROKE"
	case live > 0 && snap.Status.Stats.Degraded*2 >= live:
		h.Condition = "STRUGGLING"
	case h.CanLevelUp || len(h.SafeReady) > 0:
		h.Condition = "THRIVING"
	default:
		h.Condition = "STABLE"
	}

	return h
}
