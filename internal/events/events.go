// Package events carries domain notifications between farm components.
package events

// Kind identifies what happened.
type Kind string

const (
	CropPlanted     Kind = "crop_planted"
	CropHarvested   Kind = "crop_harvested"
	PlotDestroyed   Kind = "plot_destroyed"
	PlotRespawned   Kind = "plot_respawned"
	SoilRestored    Kind = "soil_restored"
	LevelUp         Kind = "level_up"
	LevelChanged    Kind = "level_changed"
	TaskProgress    Kind = "task_progress"
	BuildingPlaced  Kind = "building_placed"
	BuildingRemoved Kind = "building_removed"
	DailyBonus      Kind = "daily_bonus"
)

// Event is a single notification. Only the fields relevant to Kind are set.
type Event struct {
	Kind        Kind             `json:"kind"`
	Tick        uint64           `json:"tick,omitempty"`
	Plot        string           `json:"plot,omitempty"`
	Building    string           `json:"building,omitempty"`
	Crop        string           `json:"crop,omitempty"`
	Money       int              `json:"money,omitempty"`
	SoilDelta   float64          `json:"soil_delta,omitempty"`
	Level       int              `json:"level,omitempty"`
	TierName    string           `json:"tier_name,omitempty"`
	Task        string           `json:"task,omitempty"`
	Amount      int              `json:"amount,omitempty"`
	Description string           `json:"description,omitempty"`
}

// Handler receives published events.
type Handler func(Event)

// Emitter is anything events can be published to.
type Emitter interface {
	Publish(Event)
}

// EmitterFunc adapts a function to Emitter.
type EmitterFunc func(Event)

func (f EmitterFunc) Publish(ev Event) {
	if f == nil {
		return
	}
	f(ev)
}

type nopEmitter struct{}

func (nopEmitter) Publish(Event) {}

// Nop returns an emitter that drops everything.
func Nop() Emitter { return nopEmitter{} }
