package fred

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/o15CR/rv-curves/internal/domain"
)

func day(s string) time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return t
}

// fakeFRED serves canned observations for every requested series.
func fakeFRED(t *testing.T, values map[string][]observation) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.URL.Query().Get("series_id")
		obs, ok := values[id]
		if !ok {
			t.Errorf("unexpected series request: %s", id)
			http.NotFound(w, r)
			return
		}
		if err := json.NewEncoder(w).Encode(observationsResponse{Observations: obs}); err != nil {
			t.Fatal(err)
		}
	}))
}

func allSeriesIDs() []string {
	ids := []string{SeriesOverall, Series13Y, Series35Y, Series57Y, Series710Y}
	for _, band := range domain.AllRatings {
		ids = append(ids, band.SeriesID())
	}
	return ids
}

func TestFetchSnapshot(t *testing.T) {
	values := make(map[string][]observation)
	for i, id := range allSeriesIDs() {
		values[id] = []observation{
			{Date: "2025-01-03", Value: fmt.Sprintf("%.2f", 1.0+float64(i)*0.1)},
			{Date: "2025-01-02", Value: fmt.Sprintf("%.2f", 1.1+float64(i)*0.1)},
			{Date: "2025-01-01", Value: fmt.Sprintf("%.2f", 1.0+float64(i)*0.1)},
		}
	}
	srv := fakeFRED(t, values)
	defer srv.Close()

	c := NewClient("test-key")
	c.SetBaseURL(srv.URL)

	snap, err := c.FetchSnapshot(context.Background(), nil)
	if err != nil {
		t.Fatal(err)
	}

	if !snap.Date.Equal(day("2025-01-03")) {
		t.Errorf("date = %v, want 2025-01-03", snap.Date)
	}
	// Percent-to-bp conversion: 1.00 -> 100bp.
	if math.Abs(snap.OverallBP-100.0) > 1e-9 {
		t.Errorf("overall = %v, want 100", snap.OverallBP)
	}
	if math.Abs(snap.Buckets.Y13-110.0) > 1e-9 {
		t.Errorf("1-3y bucket = %v, want 110", snap.Buckets.Y13)
	}
	if len(snap.RatingsBP) != len(domain.AllRatings) {
		t.Errorf("ratings count = %d, want %d", len(snap.RatingsBP), len(domain.AllRatings))
	}
	if snap.Volatility.NObs != 3 {
		t.Errorf("volatility nobs = %d, want 3", snap.Volatility.NObs)
	}
}

func TestFetchSnapshotSkipsMissingValues(t *testing.T) {
	values := make(map[string][]observation)
	for _, id := range allSeriesIDs() {
		values[id] = []observation{
			{Date: "2025-01-03", Value: "."}, // missing on the latest day
			{Date: "2025-01-02", Value: "1.50"},
			{Date: "2025-01-01", Value: "1.40"},
		}
	}
	srv := fakeFRED(t, values)
	defer srv.Close()

	c := NewClient("test-key")
	c.SetBaseURL(srv.URL)

	snap, err := c.FetchSnapshot(context.Background(), nil)
	if err != nil {
		t.Fatal(err)
	}
	// The common date must fall back to the latest day with real values.
	if !snap.Date.Equal(day("2025-01-02")) {
		t.Errorf("date = %v, want 2025-01-02", snap.Date)
	}
	if math.Abs(snap.OverallBP-150.0) > 1e-9 {
		t.Errorf("overall = %v, want 150", snap.OverallBP)
	}
}

func TestFetchSeriesUsesCache(t *testing.T) {
	hits := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		json.NewEncoder(w).Encode(observationsResponse{Observations: []observation{
			{Date: "2025-01-02", Value: "1.00"},
		}})
	}))
	defer srv.Close()

	cache := &memCache{data: map[string][]SeriesPoint{}}
	c := NewClient("test-key")
	c.SetBaseURL(srv.URL)
	c.SetCache(cache)

	first, err := c.fetchSeries(context.Background(), SeriesOverall, nil)
	if err != nil {
		t.Fatal(err)
	}
	second, err := c.fetchSeries(context.Background(), SeriesOverall, nil)
	if err != nil {
		t.Fatal(err)
	}
	if hits != 1 {
		t.Errorf("HTTP hits = %d, want 1 (second read should come from cache)", hits)
	}
	if len(first) != 1 || len(second) != 1 || first[0] != second[0] {
		t.Errorf("cache round-trip mismatch: %v vs %v", first, second)
	}
}

func TestParseValue(t *testing.T) {
	tests := []struct {
		in   string
		want float64
		ok   bool
	}{
		{"1.23", 1.23, true},
		{" 1.23 ", 1.23, true},
		{".", 0, false},
		{"", 0, false},
		{"n/a", 0, false},
	}
	for _, tt := range tests {
		got, ok := parseValue(tt.in)
		if ok != tt.ok || (ok && math.Abs(got-tt.want) > 1e-12) {
			t.Errorf("parseValue(%q) = (%v, %v), want (%v, %v)", tt.in, got, ok, tt.want, tt.ok)
		}
	}
}

func TestLogReturnStd(t *testing.T) {
	d1, d2, d3 := day("2025-01-01"), day("2025-01-02"), day("2025-01-03")

	constant := []SeriesPoint{{d1, 100}, {d2, 100}, {d3, 100}}
	if vol, ok := logReturnStd(constant); !ok || math.Abs(vol) > 1e-10 {
		t.Errorf("constant series vol = %v, want 0", vol)
	}

	// 100 -> 110 -> 100: log returns ln(1.1), ln(1/1.1); std ~ 0.135.
	varying := []SeriesPoint{{d1, 100}, {d2, 110}, {d3, 100}}
	vol, ok := logReturnStd(varying)
	if !ok || vol < 0.13 || vol > 0.14 {
		t.Errorf("vol = %v, want ~0.135", vol)
	}

	if _, ok := logReturnStd(varying[:1]); ok {
		t.Error("single observation should not yield a volatility")
	}
}

type memCache struct {
	data map[string][]SeriesPoint
}

func (m *memCache) LoadSeries(id string) ([]SeriesPoint, bool) {
	p, ok := m.data[id]
	return p, ok
}

func (m *memCache) SaveSeries(id string, points []SeriesPoint) error {
	m.data[id] = points
	return nil
}
