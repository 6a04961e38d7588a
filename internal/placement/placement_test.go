package placement

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talgya/homestead/internal/content"
	"github.com/talgya/homestead/internal/events"
	"github.com/talgya/homestead/internal/grid"
	"github.com/talgya/homestead/internal/invariant"
	"github.com/talgya/homestead/internal/ledger"
	"github.com/talgya/homestead/internal/progression"
)

type fixture struct {
	content *content.Content
	grid    *grid.Grid
	funds   *ledger.Ledger
	prog    *progression.Ledger
	auth    *Authority
}

func newFixture(t *testing.T, money int) *fixture {
	t.Helper()
	c := content.Default()
	g := grid.New(c.Grid.Rows, c.Grid.Columns, c.Grid.CellSize, grid.Vec3{})
	funds := ledger.New(money)
	prog := progression.New(c.Tiers, funds)
	return &fixture{content: c, grid: g, funds: funds, prog: prog, auth: New(g, funds, prog)}
}

func (f *fixture) spec(t *testing.T, id string) *content.BuildingSpec {
	t.Helper()
	b, ok := f.content.Building(id)
	require.True(t, ok, id)
	return b
}

func TestFarmPlotLimit(t *testing.T) {
	f := newFixture(t, 1000)
	plot := f.spec(t, "farm_plot")

	for i := 0; i < 5; i++ {
		require.True(t, f.auth.Commit(grid.Cell{X: i * 2, Y: 0}, plot), "plot %d", i)
	}

	res := f.auth.ValidateCommit(grid.Cell{X: 20, Y: 20}, plot)
	assert.False(t, res.CanPlace)
	assert.Equal(t, LimitReached, res.Status)
	assert.Equal(t, 750, f.funds.Balance())
	assert.Equal(t, 5, f.prog.BuildingCount(content.FarmPlot))
	assert.Equal(t, 20, f.grid.OccupiedCount())
}

func TestValidateCommitOrder(t *testing.T) {
	f := newFixture(t, 1000)
	plot := f.spec(t, "farm_plot")
	require.True(t, f.auth.Commit(grid.Cell{X: 0, Y: 0}, plot))
	require.True(t, f.auth.Commit(grid.Cell{X: 10, Y: 44}, f.spec(t, "well")))

	tests := []struct {
		name   string
		origin grid.Cell
		want   Status
	}{
		{"free", grid.Cell{X: 10, Y: 10}, Valid},
		{"edge overhang", grid.Cell{X: 44, Y: 10}, OutOfBounds},
		{"negative", grid.Cell{X: -1, Y: 0}, OutOfBounds},
		{"overlap", grid.Cell{X: 1, Y: 1}, Occupied},
		{"adjacent", grid.Cell{X: 2, Y: 0}, Valid},
		{"occupied before overhang", grid.Cell{X: 10, Y: 44}, Occupied},
		{"overhang before occupied", grid.Cell{X: 9, Y: 44}, OutOfBounds},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := f.auth.ValidateCommit(tt.origin, plot)
			assert.Equal(t, tt.want, res.Status)
			assert.Equal(t, tt.want == Valid, res.CanPlace)
		})
	}
}

func TestLimitCheckedBeforeBounds(t *testing.T) {
	f := newFixture(t, 1000)
	well := f.spec(t, "well")
	for i := 0; i < 3; i++ {
		require.True(t, f.auth.Commit(grid.Cell{X: i, Y: 5}, well))
	}
	res := f.auth.ValidateCommit(grid.Cell{X: -5, Y: -5}, well)
	assert.Equal(t, LimitReached, res.Status)
}

func TestCheckPlacementOrder(t *testing.T) {
	f := newFixture(t, 30)

	res := f.auth.CheckPlacement(f.spec(t, "barn"))
	assert.Equal(t, NotUnlocked, res.Status)

	res = f.auth.CheckPlacement(f.spec(t, "farm_plot"))
	assert.Equal(t, InsufficientFunds, res.Status)
	assert.Equal(t, "Need $50, have $30", res.Message)
	assert.Equal(t, 30, f.funds.Balance())

	res = f.auth.CheckPlacement(f.spec(t, "fence"))
	assert.True(t, res.CanPlace)

	again := f.auth.CheckPlacement(f.spec(t, "fence"))
	assert.Equal(t, res, again)
}

func TestCommitAbortsOnFailedSpend(t *testing.T) {
	f := newFixture(t, 40)
	plot := f.spec(t, "farm_plot")

	var placed int
	f.auth.Events().Subscribe(func(events.Event) { placed++ })

	assert.False(t, f.auth.Commit(grid.Cell{X: 3, Y: 3}, plot))
	assert.Equal(t, 40, f.funds.Balance())
	assert.Equal(t, 0, f.grid.OccupiedCount())
	assert.Equal(t, 0, f.prog.BuildingCount(content.FarmPlot))
	assert.Equal(t, 0, f.prog.Counters().StructuresBuilt)
	assert.Zero(t, placed)
}

func TestPlaceAndRemove(t *testing.T) {
	f := newFixture(t, 1000)
	plot := f.spec(t, "farm_plot")

	p, ok := f.auth.Place(grid.Cell{X: 4, Y: 4}, plot)
	require.True(t, ok)
	assert.NotEmpty(t, p.ID)
	assert.Equal(t, "farm_plot", p.Building)

	at, found := f.auth.At(grid.Cell{X: 5, Y: 5})
	require.True(t, found)
	assert.Equal(t, p.ID, at.ID)
	_, found = f.auth.At(grid.Cell{X: 6, Y: 6})
	assert.False(t, found)

	require.True(t, f.auth.Remove(p.ID))
	assert.False(t, f.grid.IsOccupied(grid.Cell{X: 4, Y: 4}))
	assert.Equal(t, 0, f.prog.BuildingCount(content.FarmPlot))
	assert.Empty(t, f.auth.Placements())

	if invariant.Strict() {
		assert.Panics(t, func() { f.auth.Remove(p.ID) })
		return
	}
	assert.False(t, f.auth.Remove(p.ID))
}

func TestOccupancyMatchesFootprints(t *testing.T) {
	f := newFixture(t, 100_000)
	f.prog.Restore(progression.State{Level: 3}, nil)

	ids := []string{"farm_plot", "barn", "well", "fence", "silo", "large_plot", "flower_bed"}
	for i := 0; i < 60; i++ {
		spec := f.spec(t, ids[i%len(ids)])
		f.auth.Commit(grid.Cell{X: (i * 7) % 40, Y: (i * 3) % 40}, spec)
	}

	covered := make(map[grid.Cell]int)
	for _, p := range f.auth.Placements() {
		for _, c := range p.Spec.Size.Cells(p.Origin) {
			covered[c]++
		}
	}
	for x := 0; x < f.grid.Rows(); x++ {
		for y := 0; y < f.grid.Columns(); y++ {
			c := grid.Cell{X: x, Y: y}
			assert.LessOrEqual(t, covered[c], 1, "overlap at %s", c)
			assert.Equal(t, covered[c] == 1, f.grid.IsOccupied(c), "cell %s", c)
		}
	}
}

func TestSelection(t *testing.T) {
	f := newFixture(t, 1000)

	res := f.auth.Select(f.spec(t, "barn"))
	assert.Equal(t, NotUnlocked, res.Status)
	assert.Nil(t, f.auth.Selected())

	res = f.auth.Select(f.spec(t, "well"))
	assert.True(t, res.CanPlace)
	assert.Equal(t, "well", f.auth.Selected().ID)

	f.auth.ClearSelection()
	assert.Nil(t, f.auth.Selected())
}

func TestAvailable(t *testing.T) {
	f := newFixture(t, 1000)
	var ids []string
	for _, b := range f.auth.Available(f.content.BuildingList()) {
		ids = append(ids, b.ID)
	}
	assert.Equal(t, []string{"farm_plot", "well", "fence"}, ids)
}

func TestRestore(t *testing.T) {
	f := newFixture(t, 1000)
	plot := f.spec(t, "farm_plot")
	p, ok := f.auth.Place(grid.Cell{X: 0, Y: 0}, plot)
	require.True(t, ok)
	bitmap := f.grid.Bitmap()

	g := newFixture(t, 0)
	require.NoError(t, g.grid.LoadBitmap(bitmap))
	counts := g.auth.Restore([]*Placement{{ID: p.ID, Building: "farm_plot", Origin: p.Origin, Spec: plot}})

	assert.Equal(t, map[content.Category]int{content.FarmPlot: 1}, counts)
	assert.Equal(t, 4, g.grid.OccupiedCount())
	assert.Equal(t, 0, g.funds.Balance())
	_, found := g.auth.Get(p.ID)
	assert.True(t, found)
}

func TestRestoreDropsBadRecords(t *testing.T) {
	f := newFixture(t, 0)
	plot := f.spec(t, "farm_plot")
	f.grid.Reserve(grid.Cell{X: 30, Y: 30}, grid.Footprint{W: 1, H: 1})

	counts := f.auth.Restore([]*Placement{
		{ID: "a", Building: "farm_plot", Origin: grid.Cell{X: 0, Y: 0}, Spec: plot},
		{ID: "edge", Building: "farm_plot", Origin: grid.Cell{X: 44, Y: 44}, Spec: plot},
		{ID: "overlap", Building: "farm_plot", Origin: grid.Cell{X: 1, Y: 1}, Spec: plot},
		{ID: "a", Building: "farm_plot", Origin: grid.Cell{X: 20, Y: 20}, Spec: plot},
		{ID: "b", Building: "farm_plot", Origin: grid.Cell{X: 2, Y: 0}, Spec: plot},
	})

	assert.Equal(t, map[content.Category]int{content.FarmPlot: 2}, counts)
	var ids []string
	for _, p := range f.auth.Placements() {
		ids = append(ids, p.ID)
	}
	assert.Equal(t, []string{"a", "b"}, ids)
	assert.Equal(t, 8, f.grid.OccupiedCount())
	assert.False(t, f.grid.IsOccupied(grid.Cell{X: 44, Y: 44}))
	assert.False(t, f.grid.IsOccupied(grid.Cell{X: 30, Y: 30}), "stale occupancy is cleared")
}

func TestStatusText(t *testing.T) {
	var s Status
	require.NoError(t, s.UnmarshalText([]byte("limit_reached")))
	assert.Equal(t, LimitReached, s)
	assert.Error(t, s.UnmarshalText([]byte("nope")))
}
