package farmhand

import (
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talgya/homestead/internal/api"
	"github.com/talgya/homestead/internal/content"
	"github.com/talgya/homestead/internal/engine"
	"github.com/talgya/homestead/internal/planner"
)

func f64(v float64) *float64 { return &v }

func testCrops() []CropInfo {
	return []CropInfo{
		{ID: "wheat", SeedCost: 10, SellPrice: 25, SoilDelta: f64(-15)},
		{ID: "carrot", SeedCost: 12, SellPrice: 30, SoilDelta: f64(-12)},
		{ID: "beans", SeedCost: 8, SellPrice: 15, SoilDelta: f64(10)},
		{ID: "corn", SeedCost: 20, SellPrice: 60, SoilDelta: f64(-20)},
		{ID: "clover", SeedCost: 5, SellPrice: 5},
	}
}

func baseSnapshot() *FarmSnapshot {
	snap := &FarmSnapshot{Crops: testCrops()}
	snap.Status.Money = 500
	return snap
}

func decide(snap *FarmSnapshot, mem *CycleMemory) *Decision {
	return Decide(snap, Triage(snap), mem)
}

func TestDecideLevelUpFirst(t *testing.T) {
	snap := baseSnapshot()
	snap.Progression.CanLevelUp = true
	snap.Progression.NextTier = "Homestead"
	snap.Plots = []PlotInfo{{ID: "a", Phase: "ready"}}

	d := decide(snap, &CycleMemory{})
	assert.Equal(t, "levelup", d.Action)
	assert.Equal(t, "/api/v1/levelup", d.Path)
}

func TestDecideHarvestBeforePlant(t *testing.T) {
	snap := baseSnapshot()
	snap.Plots = []PlotInfo{
		{ID: "b", Phase: "empty", SoilPercent: 100},
		{ID: "a", Phase: "ready", SoilPercent: 80},
	}
	d := decide(snap, &CycleMemory{})
	assert.Equal(t, "harvest", d.Action)
	assert.Equal(t, "a", d.Target)
}

func TestDecideFatalHarvestPostponed(t *testing.T) {
	snap := baseSnapshot()
	snap.Plots = []PlotInfo{
		{ID: "a", Phase: "ready", SoilPercent: 10, LowSoil: true, FatalHarvest: true},
		{ID: "b", Phase: "empty", SoilPercent: 100},
	}
	d := decide(snap, &CycleMemory{})
	assert.Equal(t, "plant", d.Action, "planting is safer than killing plot a")
	assert.Equal(t, "b", d.Target)

	snap.Plots = snap.Plots[:1]
	d = decide(snap, &CycleMemory{})
	assert.Equal(t, "harvest", d.Action)
	assert.Equal(t, "a", d.Target)
}

func TestDecidePlantChoosesCrop(t *testing.T) {
	snap := baseSnapshot()
	snap.Plots = []PlotInfo{{ID: "a", Phase: "empty", SoilPercent: 90}}

	d := decide(snap, &CycleMemory{})
	require.Equal(t, "plant", d.Action)
	assert.Equal(t, "corn", d.Body["crop"])

	snap.Status.Money = 12
	d = decide(snap, &CycleMemory{})
	assert.Equal(t, "carrot", d.Body["crop"])

	snap.Plots[0].SoilPercent = 25
	d = decide(snap, &CycleMemory{})
	assert.Equal(t, "beans", d.Body["crop"], "depleted soil gets a restoring crop")

	snap.Status.Money = 4
	d = decide(snap, &CycleMemory{})
	assert.Equal(t, "none", d.Action)
}

func TestDecidePlace(t *testing.T) {
	snap := baseSnapshot()
	snap.Buildings = []BuildingInfo{
		{ID: "well", Cost: 80, Check: CheckInfo{CanPlace: true}},
		{ID: "farm_plot", Name: "Farm Plot", Cost: 50, IsPlot: true, Check: CheckInfo{CanPlace: true}},
	}
	snap.Sites = make([]SiteInfo, 2)
	snap.Sites[0].Origin.X, snap.Sites[0].Origin.Y = 4, 7
	snap.Sites[1].Origin.X, snap.Sites[1].Origin.Y = 9, 9

	d := decide(snap, &CycleMemory{})
	require.Equal(t, "place", d.Action)
	assert.Equal(t, "4,7", d.Target)
	assert.Equal(t, "farm_plot", d.Body["building"])

	mem := &CycleMemory{}
	mem.Record(CycleRecord{Action: "place", Target: "4,7", Success: false})
	d = decide(snap, mem)
	assert.Equal(t, "9,9", d.Target, "a failed site is skipped next cycle")

	snap.Status.Money = 54
	d = decide(snap, &CycleMemory{})
	assert.Equal(t, "none", d.Action, "keeps money for seeds")
}

func TestTriageCondition(t *testing.T) {
	snap := baseSnapshot()
	snap.Status.Money = 2
	assert.Equal(t, "BROKE", Triage(snap).Condition)

	snap.Status.Money = 100
	snap.Status.Stats.Plots = 2
	snap.Status.Stats.Degraded = 1
	assert.Equal(t, "STRUGGLING", Triage(snap).Condition)

	snap.Status.Stats.Degraded = 0
	assert.Equal(t, "STABLE", Triage(snap).Condition)
	snap.Progression.CanLevelUp = true
	assert.Equal(t, "THRIVING", Triage(snap).Condition)
}

func TestMemory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mem.json")
	mem := LoadMemory(path)
	_, ok := mem.Last()
	assert.False(t, ok)

	for i := 0; i < maxRecords+5; i++ {
		mem.Record(CycleRecord{Tick: uint64(i), Action: "harvest", Success: true})
	}
	mem.Record(CycleRecord{Action: "plant"})
	mem.Save(path)

	loaded := LoadMemory(path)
	require.Len(t, loaded.Records, maxRecords)
	last, ok := loaded.Last()
	require.True(t, ok)
	assert.Equal(t, "plant", last.Action)
	assert.Equal(t, "harvest=19 plant=1", loaded.Summary())
}

func TestRunCycleAgainstServer(t *testing.T) {
	c := content.Default()
	farm := engine.NewFarm(c)
	eng := engine.NewEngine()
	srv := &api.Server{
		Farm:      farm,
		Eng:       eng,
		Fertility: planner.NewFertility(c.Grid.Rows, c.Grid.Columns, 3),
		AdminKey:  "key",
	}
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	obs := NewObserver(ts.URL)
	act := NewActor(ts.URL, "key")
	mem := &CycleMemory{}

	d, err := RunCycle(obs, act, mem)
	require.NoError(t, err)
	assert.Equal(t, "place", d.Action)

	d, err = RunCycle(obs, act, mem)
	require.NoError(t, err)
	assert.Equal(t, "plant", d.Action)
	assert.Equal(t, "corn", d.Body["crop"])

	eng.Do(func() {
		for i := uint64(1); i <= 6; i++ {
			farm.Step(i, 20)
		}
	})

	d, err = RunCycle(obs, act, mem)
	require.NoError(t, err)
	assert.Equal(t, "harvest", d.Action)

	last, _ := mem.Last()
	assert.True(t, last.Success)
	eng.Do(func() {
		assert.Equal(t, 1000-50-20+60, farm.Ledger.Balance())
	})

	bad := NewActor(ts.URL, "wrong")
	_, err = RunCycle(obs, bad, mem)
	assert.Error(t, err)
}
