// Package content holds the static, read-only game data: buildings, crops,
// town hall tiers, soil tuning and grid dimensions. Content is loaded once
// from YAML and shared by every simulation component.
package content

import (
	"fmt"
	"strings"

	"github.com/talgya/homestead/internal/grid"
)

// Category is the closed set of building categories. Caps are looked up by
// category, never by building subtype.
type Category uint8

const (
	Structure Category = iota
	FarmPlot
	Decoration
)

// Categories lists every category in display order.
var Categories = []Category{Structure, FarmPlot, Decoration}

var categoryNames = [...]string{"structure", "farm_plot", "decoration"}

func (c Category) String() string {
	if int(c) < len(categoryNames) {
		return categoryNames[c]
	}
	return fmt.Sprintf("category(%d)", c)
}

// MarshalText implements encoding.TextMarshaler (JSON map keys included).
func (c Category) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (c *Category) UnmarshalText(b []byte) error {
	v, err := ParseCategory(string(b))
	if err != nil {
		return err
	}
	*c = v
	return nil
}

// ParseCategory accepts the snake_case name of a category.
func ParseCategory(s string) (Category, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for i, name := range categoryNames {
		if name == s {
			return Category(i), nil
		}
	}
	return 0, fmt.Errorf("unknown building category %q", s)
}

// TaskKind identifies one of the cumulative progression counters.
type TaskKind uint8

const (
	HarvestCrops TaskKind = iota
	BuildStructures
	EarnMoney
	PlantSeeds
	CompleteContracts
)

// TaskKinds lists every task kind.
var TaskKinds = []TaskKind{HarvestCrops, BuildStructures, EarnMoney, PlantSeeds, CompleteContracts}

var taskNames = [...]string{"harvest_crops", "build_structures", "earn_money", "plant_seeds", "complete_contracts"}

func (k TaskKind) String() string {
	if int(k) < len(taskNames) {
		return taskNames[k]
	}
	return fmt.Sprintf("task(%d)", k)
}

// MarshalText implements encoding.TextMarshaler.
func (k TaskKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (k *TaskKind) UnmarshalText(b []byte) error {
	v, err := ParseTaskKind(string(b))
	if err != nil {
		return err
	}
	*k = v
	return nil
}

// ParseTaskKind accepts the snake_case name of a task kind.
func ParseTaskKind(s string) (TaskKind, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for i, name := range taskNames {
		if name == s {
			return TaskKind(i), nil
		}
	}
	return 0, fmt.Errorf("unknown task kind %q", s)
}

// BuildingSpec describes a placeable building. The ID is its identity for
// unlock checks.
type BuildingSpec struct {
	ID       string         `yaml:"id" json:"id"`
	Name     string         `yaml:"name" json:"name"`
	Size     grid.Footprint `yaml:"size" json:"size"`
	Cost     int            `yaml:"cost" json:"cost"`
	Category Category       `yaml:"category" json:"category"`
	IsPlot   bool           `yaml:"farm_plot" json:"farm_plot"`
}

// CropSpec describes a plantable crop.
type CropSpec struct {
	ID             string    `yaml:"id" json:"id"`
	Name           string    `yaml:"name" json:"name"`
	StageDurations []float64 `yaml:"stage_durations" json:"stage_durations"` // seconds, before growth multiplier
	StageModels    []string  `yaml:"stage_models" json:"stage_models,omitempty"`
	SeedCost       int       `yaml:"seed_cost" json:"seed_cost"`
	SellPrice      int       `yaml:"sell_price" json:"sell_price"`

	// SoilDelta is applied to soil health on harvest: negative depletes,
	// positive restores, zero leaves it alone. Nil means the plot's default
	// per-harvest loss applies.
	SoilDelta *float64 `yaml:"soil_delta" json:"soil_delta,omitempty"`
}

// TotalGrowthTime is the sum of all stage durations, before multipliers.
func (c *CropSpec) TotalGrowthTime() float64 {
	total := 0.0
	for _, d := range c.StageDurations {
		total += d
	}
	return total
}

// RestoresSoil reports whether harvesting this crop adds soil health.
func (c *CropSpec) RestoresSoil() bool {
	return c.SoilDelta != nil && *c.SoilDelta > 0
}

// TaskRequirement is one conjunctive condition for reaching a tier.
type TaskRequirement struct {
	Kind        TaskKind `yaml:"kind" json:"kind"`
	Amount      int      `yaml:"amount" json:"amount"`
	Description string   `yaml:"description" json:"description,omitempty"`
}

// Limits are the per-category building caps of a tier.
type Limits struct {
	FarmPlots   int `yaml:"farm_plots" json:"farm_plots"`
	Structures  int `yaml:"structures" json:"structures"`
	Decorations int `yaml:"decorations" json:"decorations"`
}

// For returns the cap for a category; unknown categories have no capacity.
func (l Limits) For(c Category) int {
	switch c {
	case FarmPlot:
		return l.FarmPlots
	case Structure:
		return l.Structures
	case Decoration:
		return l.Decorations
	default:
		return 0
	}
}

// TierDefinition is one town hall level.
type TierDefinition struct {
	Level            int               `yaml:"level" json:"level"`
	Name             string            `yaml:"name" json:"name"`
	UpgradeCost      int               `yaml:"upgrade_cost" json:"upgrade_cost"`
	Requirements     []TaskRequirement `yaml:"requirements" json:"requirements"`
	Limits           Limits            `yaml:"limits" json:"limits"`
	GrowthMultiplier float64           `yaml:"growth_multiplier" json:"growth_multiplier"`
	MoneyMultiplier  float64           `yaml:"money_multiplier" json:"money_multiplier"`
	DailyBonus       int               `yaml:"daily_bonus" json:"daily_bonus"`
	Unlocks          []string          `yaml:"unlocks" json:"unlocks"` // building IDs
}

// GridSettings sizes the build grid.
type GridSettings struct {
	Rows     int     `yaml:"rows" json:"rows"`
	Columns  int     `yaml:"columns" json:"columns"`
	CellSize float64 `yaml:"cell_size" json:"cell_size"`
}

// CropEffect tunes the default soil loss for one crop.
type CropEffect struct {
	Crop             string  `yaml:"crop" json:"crop"`
	LossMultiplier   float64 `yaml:"loss_multiplier" json:"loss_multiplier"`
	RestorationBonus float64 `yaml:"restoration_bonus" json:"restoration_bonus"`
}

// SoilSettings tunes the soil economy of every plot.
type SoilSettings struct {
	MaxHealth        float64      `yaml:"max_health" json:"max_health"`
	LossPerHarvest   float64      `yaml:"loss_per_harvest" json:"loss_per_harvest"`
	RegenRate        float64      `yaml:"regen_rate" json:"regen_rate"`               // health per second while empty
	RegenDelay       float64      `yaml:"regen_delay" json:"regen_delay"`             // idle seconds before regen starts
	LowHealthPercent float64      `yaml:"low_health_percent" json:"low_health_percent"` // harvest warning threshold
	CropEffects      []CropEffect `yaml:"crop_effects" json:"crop_effects,omitempty"`
}

// DefaultDelta is the soil change applied when a crop carries no explicit
// delta: the per-harvest loss scaled by the crop's loss multiplier, plus any
// restoration bonus.
func (s SoilSettings) DefaultDelta(cropID string) float64 {
	mult, bonus := 1.0, 0.0
	for _, e := range s.CropEffects {
		if e.Crop == cropID {
			if e.LossMultiplier > 0 {
				mult = e.LossMultiplier
			}
			bonus = e.RestorationBonus
			break
		}
	}
	return -s.LossPerHarvest*mult + bonus
}

// DeltaFor returns the effective harvest delta for a crop.
func (s SoilSettings) DeltaFor(c *CropSpec) float64 {
	if c == nil {
		return 0
	}
	if c.SoilDelta != nil {
		return *c.SoilDelta
	}
	return s.DefaultDelta(c.ID)
}

// RespawnSettings controls how destroyed plots come back.
type RespawnSettings struct {
	DelaySeconds   float64 `yaml:"delay_seconds" json:"delay_seconds"`
	MaxPerPosition int     `yaml:"max_per_position" json:"max_per_position"`
}
