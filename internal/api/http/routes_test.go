package httpapi

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/goccy/go-json"

	"github.com/i474232898/weather-etl/internal/warehouse"
)

type fakeAnalytics struct {
	err       error
	lastLimit int
}

func (f *fakeAnalytics) Summarize(context.Context) (warehouse.Summary, error) {
	if f.err != nil {
		return warehouse.Summary{}, f.err
	}
	return warehouse.Summary{
		Rows:         48,
		DuplicateIDs: []warehouse.DuplicateID{},
	}, nil
}

func (f *fakeAnalytics) CityStats(context.Context) ([]warehouse.CityStat, error) {
	if f.err != nil {
		return nil, f.err
	}
	avg := 18.1
	return []warehouse.CityStat{{City: "London", Records: 24, AvgTempC: &avg}}, nil
}

func (f *fakeAnalytics) HottestHours(_ context.Context, limit int) ([]warehouse.HotHour, error) {
	f.lastLimit = limit
	if f.err != nil {
		return nil, f.err
	}
	return []warehouse.HotHour{{City: "London", DT: "2025-08-01T14:00:00Z", TempC: 24.3, Rank: 1}}, nil
}

func newTestApp(a Analytics) func(target string) (*http.Response, error) {
	app := NewApp()
	RegisterRoutes(app, a)
	return func(target string) (*http.Response, error) {
		return app.Test(httptest.NewRequest(http.MethodGet, target, nil))
	}
}

func decode(t *testing.T, resp *http.Response, v any) {
	t.Helper()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	if err := json.Unmarshal(body, v); err != nil {
		t.Fatalf("decode %q: %v", body, err)
	}
}

func TestHealth(t *testing.T) {
	get := newTestApp(&fakeAnalytics{})

	resp, err := get("/health")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, resp.StatusCode)
	}
}

func TestSummary(t *testing.T) {
	get := newTestApp(&fakeAnalytics{})

	resp, err := get("/api/v1/warehouse/summary")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, resp.StatusCode)
	}

	var got struct {
		Rows         int64 `json:"rows"`
		DuplicateIDs []any `json:"duplicate_ids"`
	}
	decode(t, resp, &got)
	if got.Rows != 48 {
		t.Fatalf("expected 48 rows, got %d", got.Rows)
	}
	if got.DuplicateIDs == nil || len(got.DuplicateIDs) != 0 {
		t.Fatalf("expected an empty duplicate list, got %v", got.DuplicateIDs)
	}
}

func TestCities(t *testing.T) {
	get := newTestApp(&fakeAnalytics{})

	resp, err := get("/api/v1/warehouse/cities")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var got struct {
		Cities []warehouse.CityStat `json:"cities"`
	}
	decode(t, resp, &got)
	if len(got.Cities) != 1 || got.Cities[0].City != "London" || got.Cities[0].Records != 24 {
		t.Fatalf("unexpected cities payload: %+v", got.Cities)
	}
}

// TestHottestLimitValidation verifies that the hottest endpoint enforces the
// expected 1-24 range for the `limit` query parameter.
func TestHottestLimitValidation(t *testing.T) {
	fake := &fakeAnalytics{}
	get := newTestApp(fake)

	resp, err := get("/api/v1/warehouse/hottest")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, resp.StatusCode)
	}
	if fake.lastLimit != defaultHottestLimit {
		t.Fatalf("expected default limit %d, got %d", defaultHottestLimit, fake.lastLimit)
	}

	for _, bad := range []string{"0", "25", "-1", "three"} {
		resp, err := get("/api/v1/warehouse/hottest?limit=" + bad)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if resp.StatusCode != http.StatusBadRequest {
			t.Fatalf("limit=%s: expected status %d, got %d", bad, http.StatusBadRequest, resp.StatusCode)
		}
	}

	resp, err = get("/api/v1/warehouse/hottest?limit=24")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.StatusCode != http.StatusOK || fake.lastLimit != 24 {
		t.Fatalf("expected 200 with limit 24, got %d with limit %d", resp.StatusCode, fake.lastLimit)
	}
}

func TestQueryFailure(t *testing.T) {
	get := newTestApp(&fakeAnalytics{err: errors.New("connection refused")})

	for _, target := range []string{
		"/api/v1/warehouse/summary",
		"/api/v1/warehouse/cities",
		"/api/v1/warehouse/hottest?limit=2",
	} {
		resp, err := get(target)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if resp.StatusCode != http.StatusInternalServerError {
			t.Fatalf("%s: expected status %d, got %d", target, http.StatusInternalServerError, resp.StatusCode)
		}

		var body struct {
			Error   bool   `json:"error"`
			Message string `json:"message"`
		}
		decode(t, resp, &body)
		if !body.Error || body.Message != "warehouse query failed" {
			t.Fatalf("%s: unexpected error body %+v", target, body)
		}
	}
}
