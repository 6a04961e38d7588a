// Package farmhand implements the autonomous farm helper.
// It observes the farm via the API, decides on one action per cycle with
// fixed priorities, and acts via the admin endpoints.
package farmhand

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// FarmSnapshot holds all data collected during an observation cycle.
type FarmSnapshot struct {
	Status      FarmStatus      `json:"status"`
	Progression ProgressionInfo `json:"progression"`
	Plots       []PlotInfo      `json:"plots"`
	Buildings   []BuildingInfo  `json:"buildings"`
	Crops       []CropInfo      `json:"crops"`
	Sites       []SiteInfo      `json:"sites"`
}

// FarmStatus mirrors GET /api/v1/status.
type FarmStatus struct {
	Name    string  `json:"name"`
	Tick    uint64  `json:"tick"`
	SimTime string  `json:"sim_time"`
	Speed   float64 `json:"speed"`
	Running bool    `json:"running"`
	Money   int     `json:"money"`
	Level   int     `json:"level"`
	Tier    string  `json:"tier"`
	Stats   struct {
		Plots     int     `json:"plots"`
		Empty     int     `json:"empty"`
		Growing   int     `json:"growing"`
		Ready     int     `json:"ready"`
		Destroyed int     `json:"destroyed"`
		Healthy   int     `json:"healthy"`
		Degraded  int     `json:"degraded"`
		AvgSoil   float64 `json:"avg_soil"`
	} `json:"stats"`
}

// ProgressionInfo mirrors GET /api/v1/progression.
type ProgressionInfo struct {
	Level        int    `json:"level"`
	Tier         string `json:"tier"`
	NextTier     string `json:"next_tier"`
	UpgradeCost  int    `json:"upgrade_cost"`
	CanLevelUp   bool   `json:"can_level_up"`
	Requirements []struct {
		Kind     string `json:"kind"`
		Current  int    `json:"current"`
		Required int    `json:"required"`
		Met      bool   `json:"met"`
	} `json:"requirements"`
}

// PlotInfo mirrors items from GET /api/v1/plots.
type PlotInfo struct {
	ID           string  `json:"id"`
	Phase        string  `json:"phase"`
	Crop         string  `json:"crop"`
	SoilPercent  float64 `json:"soil_percent"`
	Remaining    float64 `json:"remaining"`
	LowSoil      bool    `json:"low_soil"`
	FatalHarvest bool    `json:"fatal_harvest"`
}

// CheckInfo is a placement check as reported by the API.
type CheckInfo struct {
	CanPlace bool   `json:"can_place"`
	Status   string `json:"status"`
	Message  string `json:"message"`
}

// BuildingInfo mirrors items from GET /api/v1/buildings.
type BuildingInfo struct {
	ID       string    `json:"id"`
	Name     string    `json:"name"`
	Cost     int       `json:"cost"`
	Category string    `json:"category"`
	IsPlot   bool      `json:"farm_plot"`
	Check    CheckInfo `json:"check"`
}

// CropInfo mirrors items from GET /api/v1/crops.
type CropInfo struct {
	ID             string    `json:"id"`
	Name           string    `json:"name"`
	StageDurations []float64 `json:"stage_durations"`
	SeedCost       int       `json:"seed_cost"`
	SellPrice      int       `json:"sell_price"`
	SoilDelta      *float64  `json:"soil_delta"`
}

// SiteInfo mirrors items from GET /api/v1/sites.
type SiteInfo struct {
	Origin struct {
		X int `json:"x"`
		Y int `json:"y"`
	} `json:"origin"`
	Score float64 `json:"score"`
}

// Observer fetches farm state from the API.
type Observer struct {
	BaseURL    string
	HTTPClient *http.Client
	PlotType   string // building to suggest sites for
}

// NewObserver creates an Observer targeting the given API base URL.
func NewObserver(baseURL string) *Observer {
	return &Observer{
		BaseURL:  baseURL,
		PlotType: "farm_plot",
		HTTPClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// Observe fetches the farm endpoints and returns a FarmSnapshot. Site
// suggestions are optional: a server without a planner yields none.
func (o *Observer) Observe() (*FarmSnapshot, error) {
	snap := &FarmSnapshot{}

	if err := o.fetchJSON("/api/v1/status", &snap.Status); err != nil {
		return nil, fmt.Errorf("fetch status: %w", err)
	}
	if err := o.fetchJSON("/api/v1/progression", &snap.Progression); err != nil {
		return nil, fmt.Errorf("fetch progression: %w", err)
	}
	if err := o.fetchJSON("/api/v1/plots", &snap.Plots); err != nil {
		return nil, fmt.Errorf("fetch plots: %w", err)
	}
	if err := o.fetchJSON("/api/v1/buildings", &snap.Buildings); err != nil {
		return nil, fmt.Errorf("fetch buildings: %w", err)
	}
	if err := o.fetchJSON("/api/v1/crops", &snap.Crops); err != nil {
		return nil, fmt.Errorf("fetch crops: %w", err)
	}
	q := url.Values{"building": {o.PlotType}, "limit": {"3"}}
	if err := o.fetchJSON("/api/v1/sites?"+q.Encode(), &snap.Sites); err != nil {
		snap.Sites = nil
	}

	return snap, nil
}

// fetchJSON GETs a path and decodes the JSON response into target.
func (o *Observer) fetchJSON(path string, target any) error {
	resp, err := o.HTTPClient.Get(o.BaseURL + path)
	if err != nil {
		return fmt.Errorf("GET %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("GET %s returned %d: %s", path, resp.StatusCode, string(body))
	}

	if err := json.NewDecoder(resp.Body).Decode(target); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}
