package progression

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talgya/homestead/internal/content"
	"github.com/talgya/homestead/internal/events"
	"github.com/talgya/homestead/internal/ledger"
)

func newTestLedger(t *testing.T, money int) (*Ledger, *ledger.Ledger, *content.Content) {
	t.Helper()
	c := content.Default()
	funds := ledger.New(money)
	return New(c.Tiers, funds), funds, c
}

func building(t *testing.T, c *content.Content, id string) *content.BuildingSpec {
	t.Helper()
	b, ok := c.Building(id)
	require.True(t, ok, id)
	return b
}

func TestStartsAtCottage(t *testing.T) {
	p, _, c := newTestLedger(t, 1000)

	assert.Equal(t, 1, p.Level())
	assert.Equal(t, "Cottage", p.TierName())
	assert.Equal(t, 5, p.BuildingLimit(content.FarmPlot))
	assert.Equal(t, 1.0, p.GrowthMultiplier())
	assert.Equal(t, 1.0, p.MoneyMultiplier())
	assert.True(t, p.IsUnlocked(building(t, c, "farm_plot")))
	assert.False(t, p.IsUnlocked(building(t, c, "barn")))
	assert.False(t, p.IsUnlocked(nil))
	assert.Equal(t, []string{"farm_plot", "well", "fence"}, p.Unlocked())
}

func TestLevelUpInsufficientMoney(t *testing.T) {
	p, funds, _ := newTestLedger(t, 100)
	p.AddTaskProgress(content.HarvestCrops, 10)
	p.AddTaskProgress(content.BuildStructures, 5)

	assert.False(t, p.CanLevelUp())
	assert.False(t, p.TryLevelUp())
	assert.Equal(t, 1, p.Level())
	assert.Equal(t, 100, funds.Balance())
}

func TestLevelUpRequiresEveryRequirement(t *testing.T) {
	p, funds, _ := newTestLedger(t, 1000)
	p.AddTaskProgress(content.HarvestCrops, 10)
	assert.False(t, p.CanLevelUp(), "build requirement still open")

	p.AddTaskProgress(content.BuildStructures, 5)
	assert.Equal(t, 1, p.Level(), "progress never levels up on its own")
	require.True(t, p.CanLevelUp())

	var got []events.Kind
	p.Events().Subscribe(func(ev events.Event) {
		if ev.Kind == events.LevelUp || ev.Kind == events.LevelChanged {
			got = append(got, ev.Kind)
			assert.Equal(t, 2, ev.Level)
			assert.Equal(t, "Homestead", ev.TierName)
		}
	})

	require.True(t, p.TryLevelUp())
	assert.Equal(t, 2, p.Level())
	assert.Equal(t, 500, funds.Balance())
	assert.Equal(t, []events.Kind{events.LevelUp, events.LevelChanged}, got)
	assert.Equal(t, 1.1, p.GrowthMultiplier())
	assert.Equal(t, 25, p.DailyBonus())
}

func TestUnlocksAreCumulative(t *testing.T) {
	p, _, c := newTestLedger(t, 10000)
	p.Restore(State{Level: 3}, nil)

	for _, id := range []string{"farm_plot", "well", "barn", "silo"} {
		assert.True(t, p.IsUnlocked(building(t, c, id)), id)
	}
	assert.False(t, p.IsUnlocked(building(t, c, "market_stall")))
}

func TestMaxLevel(t *testing.T) {
	p, _, _ := newTestLedger(t, 1_000_000)
	p.Restore(State{Level: 4}, nil)

	assert.Nil(t, p.NextTier())
	assert.Nil(t, p.Requirements())
	assert.False(t, p.CanLevelUp())
	assert.False(t, p.TryLevelUp())
	assert.Equal(t, 4, p.Level())
}

func TestBuildingCounts(t *testing.T) {
	p, _, c := newTestLedger(t, 1000)
	plot := building(t, c, "farm_plot")

	for i := 0; i < 5; i++ {
		require.True(t, p.CanBuildMore(content.FarmPlot))
		p.RegisterPlacement(plot)
	}
	assert.False(t, p.CanBuildMore(content.FarmPlot))
	assert.Equal(t, 5, p.Counters().StructuresBuilt)

	p.RegisterRemoval(plot)
	assert.True(t, p.CanBuildMore(content.FarmPlot))
	assert.Equal(t, 4, p.BuildingCount(content.FarmPlot))
	assert.Equal(t, 5, p.Counters().StructuresBuilt, "removal does not reverse progress")

	for i := 0; i < 10; i++ {
		p.RegisterRemoval(plot)
	}
	assert.Equal(t, 0, p.BuildingCount(content.FarmPlot))
}

func TestMissingTierData(t *testing.T) {
	p := New(nil, ledger.New(0))

	assert.Equal(t, 1.0, p.GrowthMultiplier())
	assert.Equal(t, 1.0, p.MoneyMultiplier())
	assert.Equal(t, 0, p.BuildingLimit(content.Structure))
	assert.False(t, p.CanBuildMore(content.Structure))
	assert.Empty(t, p.Unlocked())
	assert.Equal(t, 0, p.DailyBonus())
	assert.False(t, p.CanLevelUp())
}

func TestPlotEventsFoldIntoCounters(t *testing.T) {
	p, _, _ := newTestLedger(t, 0)
	var bus events.Bus
	p.Observe(&bus)

	bus.Publish(events.Event{Kind: events.CropPlanted, Crop: "wheat"})
	bus.Publish(events.Event{Kind: events.CropHarvested, Money: 25})
	bus.Publish(events.Event{Kind: events.CropHarvested, Money: 38})
	bus.Publish(events.Event{Kind: events.PlotDestroyed})
	p.CompleteContract()

	assert.Equal(t, Counters{
		CropsHarvested:     2,
		MoneyEarned:        63,
		SeedsPlanted:       1,
		ContractsCompleted: 1,
	}, p.Counters())
}

func TestRequirementsPreview(t *testing.T) {
	p, _, _ := newTestLedger(t, 0)
	p.AddTaskProgress(content.HarvestCrops, 12)

	rows := p.Requirements()
	require.Len(t, rows, 2)
	assert.Equal(t, content.HarvestCrops, rows[0].Kind)
	assert.True(t, rows[0].Met)
	assert.Equal(t, 12, rows[0].Current)
	assert.False(t, rows[1].Met)
	assert.Equal(t, 5, rows[1].Required)
}

func TestChecksAreIdempotent(t *testing.T) {
	p, funds, _ := newTestLedger(t, 600)
	p.AddTaskProgress(content.HarvestCrops, 10)
	p.AddTaskProgress(content.BuildStructures, 5)

	first := p.CanLevelUp()
	second := p.CanLevelUp()
	assert.Equal(t, first, second)
	assert.Equal(t, 600, funds.Balance())
	assert.Equal(t, 1, p.Level())
}

func TestLevelNeverDecreases(t *testing.T) {
	p, _, _ := newTestLedger(t, 100_000)
	last := p.Level()
	for i := 0; i < 50; i++ {
		p.AddTaskProgress(content.TaskKinds[i%len(content.TaskKinds)], 500)
		p.TryLevelUp()
		require.GreaterOrEqual(t, p.Level(), last)
		last = p.Level()
	}
	assert.Equal(t, 4, last)
}

func TestStateRoundTrip(t *testing.T) {
	p, _, _ := newTestLedger(t, 0)
	p.AddTaskProgress(content.EarnMoney, 700)
	s := p.State()

	q, _, _ := newTestLedger(t, 0)
	q.Restore(s, map[content.Category]int{content.FarmPlot: 3, content.Decoration: -2})

	assert.Equal(t, p.State(), q.State())
	assert.Equal(t, 3, q.BuildingCount(content.FarmPlot))
	assert.Equal(t, 0, q.BuildingCount(content.Decoration))
}
