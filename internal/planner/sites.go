package planner

import (
	"sort"

	"github.com/talgya/homestead/internal/content"
	"github.com/talgya/homestead/internal/grid"
	"github.com/talgya/homestead/internal/placement"
)

// adjacencyWeight scales the bonus a farm plot earns for bordering
// existing buildings.
const adjacencyWeight = 0.25

// Validator is the commit-time check a site must pass.
type Validator interface {
	ValidateCommit(origin grid.Cell, spec *content.BuildingSpec) placement.Result
}

// Site is a suggested origin.
type Site struct {
	Origin    grid.Cell `json:"origin"`
	Score     float64   `json:"score"`
	Fertility float64   `json:"fertility"`
}

// SuggestSites scores every origin where spec could be committed now and
// returns the best, at most limit (all when limit <= 0). Farm plots favor
// fertile soil next to existing buildings; everything else favors poor
// soil, leaving the good land for crops.
func SuggestSites(g *grid.Grid, v Validator, fert *Fertility, spec *content.BuildingSpec, limit int) []Site {
	if spec == nil {
		return nil
	}
	var sites []Site
	for x := 0; x < g.Rows(); x++ {
		for y := 0; y < g.Columns(); y++ {
			origin := grid.Cell{X: x, Y: y}
			if !v.ValidateCommit(origin, spec).CanPlace {
				continue
			}
			mean := fert.Mean(origin, spec.Size)
			score := 1 - mean
			if spec.IsPlot {
				score = mean + adjacencyWeight*adjacency(g, origin, spec.Size)
			}
			sites = append(sites, Site{Origin: origin, Score: score, Fertility: mean})
		}
	}

	// Sort by score descending, then by position for stable output.
	sort.Slice(sites, func(i, j int) bool {
		if sites[i].Score != sites[j].Score {
			return sites[i].Score > sites[j].Score
		}
		if sites[i].Origin.X != sites[j].Origin.X {
			return sites[i].Origin.X < sites[j].Origin.X
		}
		return sites[i].Origin.Y < sites[j].Origin.Y
	})

	if limit > 0 && len(sites) > limit {
		sites = sites[:limit]
	}
	return sites
}

// adjacency is the fraction of the footprint's border cells that are occupied.
func adjacency(g *grid.Grid, origin grid.Cell, fp grid.Footprint) float64 {
	border, occupied := 0, 0
	check := func(c grid.Cell) {
		if !g.IsValidCell(c) {
			return
		}
		border++
		if g.IsOccupied(c) {
			occupied++
		}
	}
	for dx := 0; dx < fp.W; dx++ {
		check(origin.Add(dx, -1))
		check(origin.Add(dx, fp.H))
	}
	for dy := 0; dy < fp.H; dy++ {
		check(origin.Add(-1, dy))
		check(origin.Add(fp.W, dy))
	}
	if border == 0 {
		return 0
	}
	return float64(occupied) / float64(border)
}
