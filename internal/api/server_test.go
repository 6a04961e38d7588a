package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talgya/homestead/internal/content"
	"github.com/talgya/homestead/internal/engine"
	"github.com/talgya/homestead/internal/grid"
	"github.com/talgya/homestead/internal/placement"
	"github.com/talgya/homestead/internal/planner"
)

const testAdminKey = "admin-secret"

type memStore struct {
	saved *engine.Snapshot
	err   error
}

func (m *memStore) Save(s *engine.Snapshot) error {
	if m.err != nil {
		return m.err
	}
	m.saved = s
	return nil
}

func (m *memStore) Load() (*engine.Snapshot, error) { return m.saved, m.err }

func newTestServer(t *testing.T) *Server {
	t.Helper()
	c := content.Default()
	return &Server{
		Farm:      engine.NewFarm(c),
		Eng:       engine.NewEngine(),
		Fertility: planner.NewFertility(c.Grid.Rows, c.Grid.Columns, 7),
		AdminKey:  testAdminKey,
		RelayKey:  "relay-secret",
	}
}

func do(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if method == http.MethodPost {
		req.Header.Set("Authorization", "Bearer "+testAdminKey)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), v), rec.Body.String())
}

func placePlot(t *testing.T, h http.Handler, origin grid.Cell) string {
	t.Helper()
	rec := do(t, h, http.MethodPost, "/api/v1/place", map[string]any{"building": "farm_plot", "origin": origin})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var resp struct {
		Placement placement.Placement `json:"placement"`
	}
	decodeBody(t, rec, &resp)
	require.NotEmpty(t, resp.Placement.ID)
	return resp.Placement.ID
}

func TestStatus(t *testing.T) {
	s := newTestServer(t)
	rec := do(t, s.Handler(), http.MethodGet, "/api/v1/status", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var status map[string]any
	decodeBody(t, rec, &status)
	assert.Equal(t, float64(1000), status["money"])
	assert.Equal(t, "$1,000", status["money_display"])
	assert.Equal(t, "Cottage", status["tier"])
}

func TestAdminAuth(t *testing.T) {
	s := newTestServer(t)
	h := s.Handler()

	req := httptest.NewRequest(http.MethodPost, "/api/v1/levelup", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = do(t, h, http.MethodGet, "/api/v1/levelup", nil)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)

	s2 := newTestServer(t)
	s2.AdminKey = ""
	rec = do(t, s2.Handler(), http.MethodPost, "/api/v1/levelup", nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestPlaceAndInspect(t *testing.T) {
	s := newTestServer(t)
	h := s.Handler()

	id := placePlot(t, h, grid.Cell{X: 0, Y: 0})

	rec := do(t, h, http.MethodPost, "/api/v1/place", map[string]any{"building": "farm_plot", "origin": grid.Cell{X: 1, Y: 1}})
	require.Equal(t, http.StatusConflict, rec.Code)
	var conflict struct {
		Result placement.Result `json:"result"`
	}
	decodeBody(t, rec, &conflict)
	assert.Equal(t, placement.Occupied, conflict.Result.Status)

	rec = do(t, h, http.MethodPost, "/api/v1/place", map[string]any{"building": "barn", "origin": grid.Cell{X: 20, Y: 20}})
	require.Equal(t, http.StatusConflict, rec.Code)
	decodeBody(t, rec, &conflict)
	assert.Equal(t, placement.NotUnlocked, conflict.Result.Status)

	rec = do(t, h, http.MethodPost, "/api/v1/place", map[string]any{"building": "castle", "origin": grid.Cell{}})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, h, http.MethodPost, "/api/v1/place", map[string]any{"building": "well"})
	assert.Equal(t, http.StatusBadRequest, rec.Code, "origin or position is required")

	rec = do(t, h, http.MethodPost, "/api/v1/place", map[string]any{"building": "well", "position": grid.Vec3{X: 40, Z: 40}})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = do(t, h, http.MethodGet, "/api/v1/plots", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var plots []PlotView
	decodeBody(t, rec, &plots)
	require.Len(t, plots, 1)
	assert.Equal(t, id, plots[0].ID)
	assert.Equal(t, "farm_plot", plots[0].Building)
	assert.Equal(t, "empty", plots[0].Phase)
	assert.Equal(t, 100.0, plots[0].SoilPercent)

	rec = do(t, h, http.MethodGet, "/api/v1/plot/"+id, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	rec = do(t, h, http.MethodGet, "/api/v1/plot/nope", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(t, h, http.MethodGet, "/api/v1/placements", nil)
	var pls []placement.Placement
	decodeBody(t, rec, &pls)
	assert.Len(t, pls, 2)

	rec = do(t, h, http.MethodGet, "/api/v1/grid", nil)
	var g struct {
		Occupied int      `json:"occupied"`
		Cells    []string `json:"cells"`
	}
	decodeBody(t, rec, &g)
	assert.Equal(t, 5, g.Occupied)
	require.Len(t, g.Cells, 45)
	assert.True(t, strings.HasPrefix(g.Cells[0], "##."))
}

func TestPlantGrowHarvest(t *testing.T) {
	s := newTestServer(t)
	h := s.Handler()
	id := placePlot(t, h, grid.Cell{X: 3, Y: 3})

	rec := do(t, h, http.MethodPost, "/api/v1/plant", map[string]any{"plot": id, "crop": "wheat"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = do(t, h, http.MethodPost, "/api/v1/plant", map[string]any{"plot": id, "crop": "wheat"})
	assert.Equal(t, http.StatusConflict, rec.Code, "already growing")

	rec = do(t, h, http.MethodPost, "/api/v1/plant", map[string]any{"plot": "missing", "crop": "wheat"})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(t, h, http.MethodPost, "/api/v1/plant", map[string]any{"plot": id, "crop": "mandrake"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, h, http.MethodPost, "/api/v1/harvest", map[string]any{"plot": id})
	assert.Equal(t, http.StatusConflict, rec.Code, "not ready yet")

	s.Eng.Do(func() {
		for i := uint64(1); i <= 5; i++ {
			s.Farm.Step(i, 20)
		}
	})

	rec = do(t, h, http.MethodPost, "/api/v1/harvest", map[string]any{"plot": id})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var resp struct {
		Earned int      `json:"earned"`
		Plot   PlotView `json:"plot"`
	}
	decodeBody(t, rec, &resp)
	assert.Equal(t, 25, resp.Earned)
	assert.Equal(t, "empty", resp.Plot.Phase)
	assert.Equal(t, 85.0, resp.Plot.SoilHealth)

	rec = do(t, h, http.MethodGet, "/api/v1/progression", nil)
	var prog ProgressionView
	decodeBody(t, rec, &prog)
	assert.Equal(t, 1, prog.Counters.CropsHarvested)
	assert.Equal(t, 25, prog.Counters.MoneyEarned)
	assert.Equal(t, 1, prog.Counters.SeedsPlanted)
	assert.False(t, prog.CanLevelUp)
	assert.Equal(t, "Homestead", prog.NextTier)
	assert.Equal(t, 1, prog.Counts["farm_plot"])

	rec = do(t, h, http.MethodGet, "/api/v1/events?category=farm", nil)
	var evs []engine.Event
	decodeBody(t, rec, &evs)
	require.Len(t, evs, 2)
	assert.Contains(t, evs[1].Description, "Harvested")
}

func TestFertilizeAndProgressionActions(t *testing.T) {
	s := newTestServer(t)
	h := s.Handler()
	id := placePlot(t, h, grid.Cell{X: 0, Y: 0})

	rec := do(t, h, http.MethodPost, "/api/v1/fertilize", map[string]any{"plot": id, "amount": 0})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec = do(t, h, http.MethodPost, "/api/v1/fertilize", map[string]any{"plot": id, "amount": 10})
	assert.Equal(t, http.StatusOK, rec.Code)
	rec = do(t, h, http.MethodPost, "/api/v1/fertilize", map[string]any{"amount": 10})
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, h, http.MethodPost, "/api/v1/levelup", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = do(t, h, http.MethodPost, "/api/v1/contract", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var c map[string]int
	decodeBody(t, rec, &c)
	assert.Equal(t, 1, c["contracts_completed"])
}

func TestBuildingsAndSites(t *testing.T) {
	s := newTestServer(t)
	h := s.Handler()

	rec := do(t, h, http.MethodGet, "/api/v1/buildings", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var list []struct {
		ID    string           `json:"id"`
		Check placement.Result `json:"check"`
	}
	decodeBody(t, rec, &list)
	checks := map[string]placement.Status{}
	for _, b := range list {
		checks[b.ID] = b.Check.Status
	}
	assert.Equal(t, placement.Valid, checks["farm_plot"])
	assert.Equal(t, placement.NotUnlocked, checks["barn"])

	rec = do(t, h, http.MethodGet, "/api/v1/sites?building=farm_plot&limit=3", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var sites []planner.Site
	decodeBody(t, rec, &sites)
	require.Len(t, sites, 3)
	assert.GreaterOrEqual(t, sites[0].Score, sites[1].Score)

	rec = do(t, h, http.MethodGet, "/api/v1/sites?building=castle", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(t, h, http.MethodGet, "/api/v1/crops", nil)
	var crops []content.CropSpec
	decodeBody(t, rec, &crops)
	assert.NotEmpty(t, crops)
}

func TestSpeedAndSnapshot(t *testing.T) {
	s := newTestServer(t)
	h := s.Handler()

	rec := do(t, h, http.MethodPost, "/api/v1/speed", map[string]any{"speed": 5000})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec = do(t, h, http.MethodPost, "/api/v1/speed", map[string]any{"speed": 4})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 4.0, s.Eng.Speed())

	rec = do(t, h, http.MethodPost, "/api/v1/snapshot", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	store := &memStore{}
	s2 := newTestServer(t)
	s2.Store = store
	h2 := s2.Handler()
	placePlot(t, h2, grid.Cell{X: 0, Y: 0})
	rec = do(t, h2, http.MethodPost, "/api/v1/snapshot", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, store.saved)
	assert.Len(t, store.saved.Placements, 1)

	store.err = errors.New("disk full")
	rec = do(t, h2, http.MethodPost, "/api/v1/snapshot", nil)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestAdminRateLimit(t *testing.T) {
	s := newTestServer(t)
	s.RateLimit = 2
	h := s.Handler()

	for i := 0; i < 2; i++ {
		rec := do(t, h, http.MethodPost, "/api/v1/contract", nil)
		require.Equal(t, http.StatusOK, rec.Code)
	}
	rec := do(t, h, http.MethodPost, "/api/v1/contract", nil)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))

	rec = do(t, h, http.MethodGet, "/api/v1/status", nil)
	assert.Equal(t, http.StatusOK, rec.Code, "reads are not limited")
}

func TestRateLimiterWindow(t *testing.T) {
	rl := NewRateLimiter(1, time.Minute)
	now := time.Unix(1000, 0)
	rl.now = func() time.Time { return now }

	assert.True(t, rl.Allow("a"))
	assert.False(t, rl.Allow("a"))
	assert.True(t, rl.Allow("b"))
	assert.Equal(t, 61, rl.RetryAfter("a"))

	now = now.Add(time.Minute)
	assert.True(t, rl.Allow("a"))
}

func TestClientAddr(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.RemoteAddr = "10.0.0.1:5555"
	assert.Equal(t, "10.0.0.1", clientAddr(r))
	r.Header.Set("X-Forwarded-For", "1.2.3.4, 10.0.0.1")
	assert.Equal(t, "1.2.3.4", clientAddr(r))
}

func TestStream(t *testing.T) {
	s := newTestServer(t)
	ts := httptest.NewServer(s.Handler())
	defer ts.Close()

	placePlot(t, s.Handler(), grid.Cell{X: 0, Y: 0})

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/v1/stream"
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.Error(t, err)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	header := http.Header{"Authorization": {"Bearer relay-secret"}}
	conn, _, err := websocket.DefaultDialer.Dial(url, header)
	require.NoError(t, err)
	defer conn.Close()

	var e engine.Event
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	require.NoError(t, conn.ReadJSON(&e))
	assert.Equal(t, "building", e.Category, "catch-up replays the placement")

	s.Eng.Do(func() {
		_, _, err := s.Farm.Place(grid.Cell{X: 10, Y: 10}, "well")
		require.NoError(t, err)
	})
	require.NoError(t, conn.ReadJSON(&e))
	assert.Contains(t, e.Description, "Well")
}
