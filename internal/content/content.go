package content

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"
)

//go:embed default.yaml
var defaultYAML []byte

//go:embed content.schema.json
var schemaJSON string

// Content is the complete static data set for one game.
type Content struct {
	StartingMoney int              `yaml:"starting_money" json:"starting_money"`
	Grid          GridSettings     `yaml:"grid" json:"grid"`
	Soil          SoilSettings     `yaml:"soil" json:"soil"`
	Respawn       RespawnSettings  `yaml:"respawn" json:"respawn"`
	Buildings     []BuildingSpec   `yaml:"buildings" json:"buildings"`
	Crops         []CropSpec       `yaml:"crops" json:"crops"`
	Tiers         []TierDefinition `yaml:"tiers" json:"tiers"`

	buildings map[string]*BuildingSpec
	crops     map[string]*CropSpec
}

var schema = jsonschema.MustCompileString("content.schema.json", schemaJSON)

// Default returns the built-in content set.
func Default() *Content {
	c, err := Parse(defaultYAML)
	if err != nil {
		panic(fmt.Sprintf("embedded default content: %v", err))
	}
	return c
}

// Load reads and parses a content file.
func Load(path string) (*Content, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read content %s: %w", path, err)
	}
	c, err := Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("content %s: %w", path, err)
	}
	return c, nil
}

// Parse validates raw YAML against the content schema, decodes it, fills
// defaults and checks cross references.
func Parse(raw []byte) (*Content, error) {
	var doc any
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("parse yaml: %w", err)
	}
	// The validator expects JSON-shaped values (float64 numbers, string keys).
	js, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("normalize yaml: %w", err)
	}
	var generic any
	if err := json.NewDecoder(bytes.NewReader(js)).Decode(&generic); err != nil {
		return nil, fmt.Errorf("normalize yaml: %w", err)
	}
	if err := schema.Validate(generic); err != nil {
		return nil, fmt.Errorf("schema: %w", err)
	}

	var c Content
	if err := yaml.Unmarshal(raw, &c); err != nil {
		return nil, fmt.Errorf("decode content: %w", err)
	}
	c.applyDefaults()
	if err := c.validate(); err != nil {
		return nil, err
	}
	c.index()
	return &c, nil
}

func (c *Content) applyDefaults() {
	if c.StartingMoney == 0 {
		c.StartingMoney = 1000
	}
	if c.Grid.Rows == 0 {
		c.Grid.Rows = 45
	}
	if c.Grid.Columns == 0 {
		c.Grid.Columns = 45
	}
	if c.Grid.CellSize == 0 {
		c.Grid.CellSize = 4
	}
	if c.Soil.MaxHealth == 0 {
		c.Soil.MaxHealth = 100
	}
	if c.Soil.LossPerHarvest == 0 {
		c.Soil.LossPerHarvest = 15
	}
	if c.Soil.RegenRate == 0 {
		c.Soil.RegenRate = 2
	}
	if c.Soil.RegenDelay == 0 {
		c.Soil.RegenDelay = 10
	}
	if c.Soil.LowHealthPercent == 0 {
		c.Soil.LowHealthPercent = 30
	}
	if c.Respawn.DelaySeconds == 0 {
		c.Respawn.DelaySeconds = 30
	}
	for i := range c.Tiers {
		if c.Tiers[i].GrowthMultiplier == 0 {
			c.Tiers[i].GrowthMultiplier = 1
		}
		if c.Tiers[i].MoneyMultiplier == 0 {
			c.Tiers[i].MoneyMultiplier = 1
		}
	}
}

func (c *Content) validate() error {
	var errs []error

	seen := make(map[string]bool)
	for _, b := range c.Buildings {
		if seen[b.ID] {
			errs = append(errs, fmt.Errorf("duplicate building id %q", b.ID))
		}
		seen[b.ID] = true
		if b.Size.Area() == 0 {
			errs = append(errs, fmt.Errorf("building %q: empty footprint", b.ID))
		}
		if b.IsPlot && b.Category != FarmPlot {
			errs = append(errs, fmt.Errorf("building %q: farm_plot flag on %s", b.ID, b.Category))
		}
	}

	cropSeen := make(map[string]bool)
	for _, cr := range c.Crops {
		if cropSeen[cr.ID] {
			errs = append(errs, fmt.Errorf("duplicate crop id %q", cr.ID))
		}
		cropSeen[cr.ID] = true
		if len(cr.StageDurations) == 0 {
			errs = append(errs, fmt.Errorf("crop %q: no growth stages", cr.ID))
		}
		for i, d := range cr.StageDurations {
			if d <= 0 {
				errs = append(errs, fmt.Errorf("crop %q: stage %d duration %v must be positive", cr.ID, i, d))
			}
		}
	}

	for i, t := range c.Tiers {
		if t.Level != i+1 {
			errs = append(errs, fmt.Errorf("tier %d: level %d out of sequence", i, t.Level))
		}
		for _, id := range t.Unlocks {
			if !seen[id] {
				errs = append(errs, fmt.Errorf("tier %d unlocks unknown building %q", t.Level, id))
			}
		}
	}

	for _, e := range c.Soil.CropEffects {
		if !cropSeen[e.Crop] {
			errs = append(errs, fmt.Errorf("soil effect for unknown crop %q", e.Crop))
		}
	}

	return errors.Join(errs...)
}

func (c *Content) index() {
	c.buildings = make(map[string]*BuildingSpec, len(c.Buildings))
	for i := range c.Buildings {
		c.buildings[c.Buildings[i].ID] = &c.Buildings[i]
	}
	c.crops = make(map[string]*CropSpec, len(c.Crops))
	for i := range c.Crops {
		c.crops[c.Crops[i].ID] = &c.Crops[i]
	}
}

// Building looks up a building spec by ID.
func (c *Content) Building(id string) (*BuildingSpec, bool) {
	b, ok := c.buildings[id]
	return b, ok
}

// Crop looks up a crop spec by ID.
func (c *Content) Crop(id string) (*CropSpec, bool) {
	cr, ok := c.crops[id]
	return cr, ok
}

// BuildingList returns pointers to every building in file order.
func (c *Content) BuildingList() []*BuildingSpec {
	out := make([]*BuildingSpec, len(c.Buildings))
	for i := range c.Buildings {
		out[i] = &c.Buildings[i]
	}
	return out
}
