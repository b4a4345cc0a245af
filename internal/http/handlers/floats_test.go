package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sort"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/floatchat/floatchat-backend/internal/geo"
	"github.com/floatchat/floatchat-backend/internal/repos"
	"github.com/floatchat/floatchat-backend/internal/types"
)

type fakeLocationRepo struct {
	positions    []repos.FloatPosition
	trajectories []repos.TrajectoryPoint
	detail       *repos.FloatDetail
}

func (f *fakeLocationRepo) FloatsInRadius(ctx context.Context, lat, lon, radiusKM float64, limit int) ([]repos.FloatPosition, error) {
	var out []repos.FloatPosition
	for _, p := range f.positions {
		d := geo.HaversineKM(lat, lon, p.Latitude, p.Longitude)
		if d <= radiusKM {
			p.DistanceKM = d
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DistanceKM < out[j].DistanceKM })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakeLocationRepo) FloatsInBBox(ctx context.Context, latMin, latMax, lonMin, lonMax float64, limit int) ([]repos.FloatPosition, error) {
	return f.positions, nil
}

func (f *fakeLocationRepo) AllFloats(ctx context.Context, limit int) ([]repos.FloatPosition, error) {
	return f.positions, nil
}

func (f *fakeLocationRepo) TrajectoriesInRadius(ctx context.Context, lat, lon, radiusKM float64, limit int) ([]repos.TrajectoryPoint, error) {
	return f.trajectories, nil
}

func (f *fakeLocationRepo) FloatWithMeasurements(ctx context.Context, floatID string, minDepth, maxDepth *float64) (*repos.FloatDetail, error) {
	if f.detail != nil && f.detail.Profile.FloatID == floatID {
		return f.detail, nil
	}
	return nil, nil
}

func testRouter(repo repos.FloatLocationRepo) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	h := NewFloatsHandler(repo, 100)
	router.GET("/floats/radius", h.Radius)
	router.GET("/floats/all", h.All)
	router.GET("/floats/trajectories/radius", h.Trajectories)
	router.GET("/floats/:float_id", h.Detail)
	return router
}

func do(t *testing.T, router *gin.Engine, path string) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	router.ServeHTTP(w, req)
	return w
}

func TestRadiusReturnsOnlyFloatsWithinDistance(t *testing.T) {
	now := time.Now().UTC()
	repo := &fakeLocationRepo{positions: []repos.FloatPosition{
		{FloatID: "a", Latitude: 15.1, Longitude: 70.1, Datetime: &now, GlobalProfileID: 1},
		{FloatID: "b", Latitude: 15.5, Longitude: 70.5, Datetime: &now, GlobalProfileID: 2},
		{FloatID: "far", Latitude: 40.0, Longitude: 120.0, Datetime: &now, GlobalProfileID: 3},
	}}
	w := do(t, testRouter(repo), "/floats/radius?lat=15&lon=70&radius=100")
	if w.Code != http.StatusOK {
		t.Fatalf("status want=200 got=%d body=%s", w.Code, w.Body.String())
	}
	var resp struct {
		Status string                `json:"status"`
		Count  int                   `json:"count"`
		Floats []repos.FloatPosition `json:"floats"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Count != 2 {
		t.Fatalf("count want=2 got=%d", resp.Count)
	}
	for _, f := range resp.Floats {
		if f.DistanceKM > 100.0 {
			t.Fatalf("float %s beyond radius: %f", f.FloatID, f.DistanceKM)
		}
	}
}

func TestRadiusMonotonicInRadius(t *testing.T) {
	now := time.Now().UTC()
	repo := &fakeLocationRepo{positions: []repos.FloatPosition{
		{FloatID: "a", Latitude: 15.1, Longitude: 70.1, Datetime: &now},
		{FloatID: "b", Latitude: 18.0, Longitude: 74.0, Datetime: &now},
		{FloatID: "c", Latitude: 25.0, Longitude: 85.0, Datetime: &now},
	}}
	router := testRouter(repo)

	counts := []int{}
	for _, radius := range []string{"50", "600", "3000"} {
		w := do(t, router, "/floats/radius?lat=15&lon=70&radius="+radius)
		var resp struct {
			Count int `json:"count"`
		}
		if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
			t.Fatalf("decode: %v", err)
		}
		counts = append(counts, resp.Count)
	}
	if !(counts[0] <= counts[1] && counts[1] <= counts[2]) {
		t.Fatalf("increasing radius must only add floats: %v", counts)
	}
}

func TestRadiusRejectsOutOfBoundParams(t *testing.T) {
	router := testRouter(&fakeLocationRepo{})
	for _, path := range []string{
		"/floats/radius?lat=95&lon=70&radius=100",
		"/floats/radius?lat=15&lon=190&radius=100",
		"/floats/radius?lat=15&lon=70&radius=-5",
		"/floats/radius?lon=70&radius=100",
	} {
		w := do(t, router, path)
		if w.Code != http.StatusUnprocessableEntity {
			t.Fatalf("%s: status want=422 got=%d", path, w.Code)
		}
	}
}

func TestDetailUnknownFloatIs404(t *testing.T) {
	router := testRouter(&fakeLocationRepo{})
	w := do(t, router, "/floats/9999999")
	if w.Code != http.StatusNotFound {
		t.Fatalf("status want=404 got=%d", w.Code)
	}
	var resp struct {
		Status string `json:"status"`
		Error  string `json:"error"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Status != "error" || resp.Error == "" {
		t.Fatalf("error envelope malformed: %s", w.Body.String())
	}
}

func TestDetailDepthWindowValidation(t *testing.T) {
	detail := &repos.FloatDetail{Profile: types.ArgoProfile{FloatID: "1902482"}}
	router := testRouter(&fakeLocationRepo{detail: detail})

	if w := do(t, router, "/floats/1902482?min_depth=10"); w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("lonely min_depth: want=422 got=%d", w.Code)
	}
	if w := do(t, router, "/floats/1902482?min_depth=100&max_depth=10"); w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("inverted window: want=422 got=%d", w.Code)
	}
	if w := do(t, router, "/floats/1902482?min_depth=10&max_depth=100"); w.Code != http.StatusOK {
		t.Fatalf("valid window: want=200 got=%d body=%s", w.Code, w.Body.String())
	}
}

// Trajectory responses are flat, but grouped by floatId each group must be
// chronologically non-decreasing.
func TestTrajectoriesGroupedChronology(t *testing.T) {
	repo := &fakeLocationRepo{trajectories: []repos.TrajectoryPoint{
		{ProfileID: 1, FloatID: "a", Lat: 15, Lon: 70, Datetime: "2025-01-01T00:00:00Z"},
		{ProfileID: 2, FloatID: "a", Lat: 15.2, Lon: 70.1, Datetime: "2025-01-11T00:00:00Z"},
		{ProfileID: 3, FloatID: "b", Lat: 14, Lon: 69, Datetime: "2025-01-02T00:00:00Z"},
		{ProfileID: 4, FloatID: "b", Lat: 14.1, Lon: 69.2, Datetime: "2025-01-12T00:00:00Z"},
	}}
	w := do(t, testRouter(repo), "/floats/trajectories/radius?lat=15&lon=70&radius=500&limit=50")
	if w.Code != http.StatusOK {
		t.Fatalf("status want=200 got=%d", w.Code)
	}
	var resp struct {
		Trajectories []repos.TrajectoryPoint `json:"trajectories"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}

	grouped := map[string][]repos.TrajectoryPoint{}
	for _, p := range resp.Trajectories {
		grouped[p.FloatID] = append(grouped[p.FloatID], p)
	}
	if len(grouped) == 0 {
		t.Fatalf("expected grouped trajectories")
	}
	for floatID, points := range grouped {
		if len(points) < 1 {
			t.Fatalf("group %s empty", floatID)
		}
		for i := 1; i < len(points); i++ {
			prev, _ := time.Parse(time.RFC3339, points[i-1].Datetime)
			cur, _ := time.Parse(time.RFC3339, points[i].Datetime)
			if cur.Before(prev) {
				t.Fatalf("group %s not chronological: %s before %s", floatID, points[i].Datetime, points[i-1].Datetime)
			}
		}
	}
}
