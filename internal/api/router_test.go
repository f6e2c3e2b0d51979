package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/rzpsarthak13/transferdesk/internal/core"
	"github.com/rzpsarthak13/transferdesk/internal/registry"
	"github.com/rzpsarthak13/transferdesk/internal/table"
)

const testSecret = "test-secret"

type fakeRides struct {
	lastParams table.SearchParams
	lastInput  map[string]interface{}
	lastID     string
	err        error
}

func (f *fakeRides) Search(_ context.Context, params table.SearchParams) (*table.SearchResult, error) {
	f.lastParams = params
	if f.err != nil {
		return nil, f.err
	}
	page := params.Page
	if page == 0 {
		page = 1
	}
	return &table.SearchResult{
		Rows:     []*table.Ride{},
		Total:    0,
		Page:     page,
		PageSize: params.PageSize,
		SortBy:   table.SortByDate,
		SortDir:  "desc",
	}, nil
}

func (f *fakeRides) Options(context.Context) (*table.RideOptions, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &table.RideOptions{Drivers: []string{"Anna", "Nikos"}}, nil
}

func (f *fakeRides) Insert(_ context.Context, input map[string]interface{}) (int64, error) {
	f.lastInput = input
	if f.err != nil {
		return 0, f.err
	}
	return 42, nil
}

func (f *fakeRides) Update(_ context.Context, id string, input map[string]interface{}) error {
	f.lastID, f.lastInput = id, input
	return f.err
}

func (f *fakeRides) Delete(_ context.Context, id string) error {
	f.lastID = id
	return f.err
}

type fakePrices struct {
	quotes map[string]float64
	err    error
}

func (f *fakePrices) List(context.Context) ([]*table.Price, error) {
	return nil, f.err
}

func (f *fakePrices) Lookup(_ context.Context, destination, tour string) (*table.PriceQuote, error) {
	if f.err != nil {
		return nil, f.err
	}
	if destination == "" || tour == "" {
		return nil, core.NewValidationError("Missing destination/tour")
	}
	p, ok := f.quotes[destination+"|"+tour]
	if !ok {
		return nil, fmt.Errorf("price %s/%s: %w", destination, tour, core.ErrNotFound)
	}
	return &table.PriceQuote{Price: &p}, nil
}

type testServer struct {
	handler http.Handler
	rides   *fakeRides
	prices  *fakePrices
	token   string
}

func newTestServer(t *testing.T, mutate func(*registry.InternalConfig), ready func(context.Context) error) *testServer {
	t.Helper()
	cfg := registry.NewConfigManager().GetConfig()
	cfg.Auth.JWTSecret = testSecret
	cfg.Server.RateLimit = 0
	if mutate != nil {
		mutate(cfg)
	}

	s := &testServer{
		rides:  &fakeRides{},
		prices: &fakePrices{quotes: map[string]float64{"Airport|Private": 45.5}},
	}
	s.handler = NewRouter(cfg, Deps{Rides: s.rides, Prices: s.prices, Ready: ready})

	token, err := NewAuthenticator(testSecret, "").Sign(&Claims{
		UserID: 7,
		Email:  "desk@example.com",
		Role:   "admin",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	})
	if err != nil {
		t.Fatalf("Sign() error = %v", err)
	}
	s.token = token
	return s
}

func (s *testServer) do(t *testing.T, method, target, body string, authed bool) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	if authed {
		req.Header.Set("Authorization", "Bearer "+s.token)
	}
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("response is not a JSON object: %v (%q)", err, rec.Body.String())
	}
	return out
}

func TestHealthAndNotFound(t *testing.T) {
	s := newTestServer(t, nil, nil)

	rec := s.do(t, http.MethodGet, "/health", "", false)
	if rec.Code != http.StatusOK {
		t.Fatalf("GET /health status = %d, want 200", rec.Code)
	}
	if got := decode(t, rec)["ok"]; got != true {
		t.Errorf("GET /health ok = %v, want true", got)
	}
	if rec.Header().Get(RequestIDHeader) == "" {
		t.Error("response carries no request id")
	}

	rec = s.do(t, http.MethodGet, "/nope", "", false)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("GET /nope status = %d, want 404", rec.Code)
	}
	if got := decode(t, rec)["error"]; got != "Not found" {
		t.Errorf("GET /nope error = %v, want Not found", got)
	}
}

func TestReadyz(t *testing.T) {
	s := newTestServer(t, nil, func(context.Context) error { return errors.New("redis down") })
	rec := s.do(t, http.MethodGet, "/readyz", "", false)
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("GET /readyz status = %d, want 503", rec.Code)
	}

	s = newTestServer(t, nil, func(context.Context) error { return nil })
	if rec := s.do(t, http.MethodGet, "/readyz", "", false); rec.Code != http.StatusOK {
		t.Fatalf("GET /readyz status = %d, want 200", rec.Code)
	}
}

func TestAuthGate(t *testing.T) {
	s := newTestServer(t, nil, nil)

	rec := s.do(t, http.MethodGet, "/rides/options", "", false)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("unauthenticated status = %d, want 401", rec.Code)
	}
	if got := decode(t, rec)["error"]; got != "Not authenticated" {
		t.Errorf("unauthenticated error = %v, want Not authenticated", got)
	}

	req := httptest.NewRequest(http.MethodGet, "/rides/options", nil)
	req.Header.Set("Authorization", "Bearer not-a-jwt")
	rec = httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("bad token status = %d, want 401", rec.Code)
	}
	if got := decode(t, rec)["error"]; got != "Invalid token" {
		t.Errorf("bad token error = %v, want Invalid token", got)
	}

	other, _ := NewAuthenticator("other-secret", "").Sign(&Claims{Email: "x@example.com"})
	req = httptest.NewRequest(http.MethodGet, "/rides/options", nil)
	req.AddCookie(&http.Cookie{Name: "token", Value: other})
	rec = httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("foreign signature status = %d, want 401", rec.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/rides/options", nil)
	req.AddCookie(&http.Cookie{Name: "token", Value: s.token})
	rec = httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("cookie token status = %d, want 200", rec.Code)
	}
}

func TestAuthMe(t *testing.T) {
	s := newTestServer(t, nil, nil)
	rec := s.do(t, http.MethodGet, "/auth/me", "", true)
	if rec.Code != http.StatusOK {
		t.Fatalf("GET /auth/me status = %d, want 200", rec.Code)
	}
	var body struct {
		OK   bool `json:"ok"`
		User struct {
			UserID float64 `json:"userId"`
			Email  string  `json:"email"`
			Role   string  `json:"role"`
		} `json:"user"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !body.OK || body.User.UserID != 7 || body.User.Email != "desk@example.com" || body.User.Role != "admin" {
		t.Errorf("GET /auth/me = %+v", body)
	}
}

func TestSearchParsesQuery(t *testing.T) {
	s := newTestServer(t, nil, nil)
	rec := s.do(t, http.MethodGet, "/rides/search?from=2024-05-01&to=+2024-05-31+&driver=Nikos&tour_oper=TUI&page=2abc&pageSize=5&sortBy=TIME&sortDir=asc", "", true)
	if rec.Code != http.StatusOK {
		t.Fatalf("search status = %d, want 200 (%s)", rec.Code, rec.Body.String())
	}

	p := s.rides.lastParams
	if p.Page != 2 {
		t.Errorf("Page = %d, want 2", p.Page)
	}
	if p.PageSize != table.MinPageSize {
		t.Errorf("PageSize = %d, want %d", p.PageSize, table.MinPageSize)
	}
	if p.Filters.From != "2024-05-01" || p.Filters.To != "2024-05-31" {
		t.Errorf("date filters = %q, %q", p.Filters.From, p.Filters.To)
	}
	if p.Filters.Driver != "Nikos" || p.Filters.TourOperator != "TUI" {
		t.Errorf("filters = %+v", p.Filters)
	}
	if p.SortBy != "TIME" || p.SortDir != "asc" {
		t.Errorf("sort = %q %q", p.SortBy, p.SortDir)
	}

	body := decode(t, rec)
	for _, key := range []string{"rows", "total", "page", "pageSize", "sortBy", "sortDir"} {
		if _, ok := body[key]; !ok {
			t.Errorf("search response missing %q", key)
		}
	}
}

func TestCreateRide(t *testing.T) {
	s := newTestServer(t, nil, nil)
	rec := s.do(t, http.MethodPost, "/rides", `{"THE_DATE":"2024-05-01","FROM":"Airport","TO":"Hotel","PAX":"2,5"}`, true)
	if rec.Code != http.StatusOK {
		t.Fatalf("POST /rides status = %d, want 200 (%s)", rec.Code, rec.Body.String())
	}
	body := decode(t, rec)
	if body["ok"] != true || body["id"] != float64(42) {
		t.Errorf("POST /rides = %v", body)
	}
	if got := s.rides.lastInput["PAX"]; got != "2,5" {
		t.Errorf("input PAX = %v, want 2,5", got)
	}

	if rec := s.do(t, http.MethodPost, "/rides", `{"THE_DATE":`, true); rec.Code != http.StatusBadRequest {
		t.Errorf("malformed body status = %d, want 400", rec.Code)
	}
}

func TestCreateRideValidation(t *testing.T) {
	s := newTestServer(t, nil, nil)
	s.rides.err = core.NewValidationError("Missing required fields", "FROM", "TO")

	rec := s.do(t, http.MethodPost, "/rides", `{"THE_DATE":"2024-05-01"}`, true)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	var body struct {
		Error   string   `json:"error"`
		Missing []string `json:"missing"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Error != "Missing required fields" {
		t.Errorf("error = %q", body.Error)
	}
	if strings.Join(body.Missing, ",") != "FROM,TO" {
		t.Errorf("missing = %v, want [FROM TO]", body.Missing)
	}
}

func TestUpdateAndDelete(t *testing.T) {
	s := newTestServer(t, nil, nil)

	rec := s.do(t, http.MethodPut, "/rides/17", `{"DRIVER":"Anna"}`, true)
	if rec.Code != http.StatusOK {
		t.Fatalf("PUT status = %d, want 200", rec.Code)
	}
	if body := decode(t, rec); body["id"] != "17" {
		t.Errorf("PUT id = %v, want 17", body["id"])
	}
	if s.rides.lastID != "17" || s.rides.lastInput["DRIVER"] != "Anna" {
		t.Errorf("Update called with %q %v", s.rides.lastID, s.rides.lastInput)
	}

	rec = s.do(t, http.MethodDelete, "/rides/18", "", true)
	if rec.Code != http.StatusOK || s.rides.lastID != "18" {
		t.Fatalf("DELETE status = %d id = %q", rec.Code, s.rides.lastID)
	}

	s.rides.err = fmt.Errorf("ride 19: %w", core.ErrNotFound)
	rec = s.do(t, http.MethodPut, "/rides/19", `{"DRIVER":"Anna"}`, true)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("PUT missing ride status = %d, want 404", rec.Code)
	}
	if got := decode(t, rec)["error"]; got != "Ride not found." {
		t.Errorf("error = %v, want Ride not found.", got)
	}
}

func TestStoreFailures(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantError  string
	}{
		{"unavailable", fmt.Errorf("failed to execute query: %w", core.ErrUnavailable), http.StatusServiceUnavailable, "Database unavailable"},
		{"unclassified", errors.New("syntax error near `FROM`"), http.StatusInternalServerError, "Internal server error"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer(t, nil, nil)
			s.rides.err = tt.err
			rec := s.do(t, http.MethodGet, "/rides/search", "", true)
			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			body := decode(t, rec)
			if body["error"] != tt.wantError {
				t.Errorf("error = %v, want %q", body["error"], tt.wantError)
			}
			if strings.Contains(rec.Body.String(), "syntax") {
				t.Errorf("response leaks the raw error: %s", rec.Body.String())
			}
			if tt.wantStatus == http.StatusServiceUnavailable && body["detail"] != unavailableDetail {
				t.Errorf("detail = %v", body["detail"])
			}
		})
	}
}

func TestReportNotImplemented(t *testing.T) {
	s := newTestServer(t, nil, nil)
	rec := s.do(t, http.MethodGet, "/rides/report.pdf", "", true)
	if rec.Code != http.StatusNotImplemented {
		t.Fatalf("status = %d, want 501", rec.Code)
	}
	if got := rec.Body.String(); got != "PDF export not implemented yet." {
		t.Errorf("body = %q", got)
	}
}

func TestPrices(t *testing.T) {
	s := newTestServer(t, nil, nil)

	rec := s.do(t, http.MethodGet, "/prices", "", true)
	if rec.Code != http.StatusOK || strings.TrimSpace(rec.Body.String()) != "[]" {
		t.Fatalf("GET /prices = %d %q, want 200 []", rec.Code, rec.Body.String())
	}

	rec = s.do(t, http.MethodGet, "/prices/lookup?destination=Airport&tour=Private", "", true)
	if rec.Code != http.StatusOK {
		t.Fatalf("lookup status = %d, want 200", rec.Code)
	}
	if got := decode(t, rec)["price"]; got != 45.5 {
		t.Errorf("price = %v, want 45.5", got)
	}

	rec = s.do(t, http.MethodGet, "/prices/lookup?destination=Airport", "", true)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("missing tour status = %d, want 400", rec.Code)
	}

	rec = s.do(t, http.MethodGet, "/prices/lookup?destination=Port&tour=Shared", "", true)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("unknown pair status = %d, want 404", rec.Code)
	}
	if got := decode(t, rec)["error"]; got != "Not found" {
		t.Errorf("error = %v, want Not found", got)
	}
}

func TestCORS(t *testing.T) {
	s := newTestServer(t, func(c *registry.InternalConfig) { c.Server.CORSOrigin = "https://desk.example.com" }, nil)

	req := httptest.NewRequest(http.MethodOptions, "/rides/search", nil)
	req.Header.Set("Origin", "https://desk.example.com")
	req.Header.Set("Access-Control-Request-Method", "GET")
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Fatalf("preflight status = %d, want 204", rec.Code)
	}
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "https://desk.example.com" {
		t.Errorf("Allow-Origin = %q", got)
	}
	if got := rec.Header().Get("Access-Control-Allow-Credentials"); got != "true" {
		t.Errorf("Allow-Credentials = %q, want true", got)
	}
}

func TestRateLimit(t *testing.T) {
	s := newTestServer(t, func(c *registry.InternalConfig) {
		c.Server.RateLimit = 1
		c.Server.RateBurst = 2
	}, nil)

	codes := make([]int, 3)
	for i := range codes {
		codes[i] = s.do(t, http.MethodGet, "/health", "", false).Code
	}
	if codes[0] != http.StatusOK || codes[1] != http.StatusOK || codes[2] != http.StatusTooManyRequests {
		t.Errorf("status codes = %v, want [200 200 429]", codes)
	}
}

func TestClientLimiterIsPerClient(t *testing.T) {
	l := newClientLimiter(1, 1)
	now := time.Now()
	if !l.allow("10.0.0.1", now) {
		t.Fatal("first request from 10.0.0.1 rejected")
	}
	if l.allow("10.0.0.1", now) {
		t.Error("second request from 10.0.0.1 allowed")
	}
	if !l.allow("10.0.0.2", now) {
		t.Error("first request from 10.0.0.2 rejected")
	}
	if !l.allow("10.0.0.1", now.Add(time.Second)) {
		t.Error("10.0.0.1 not refilled after a second")
	}
}
