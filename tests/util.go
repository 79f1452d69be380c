package testutil

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sort"
	"strconv"
	"strings"
	"sync"
	"testing"
)

const (
	Username = "console"
	Password = "s3cr3t"
)

// Logger is a core.Logger that records messages instead of printing them.
type Logger struct {
	mu       sync.Mutex
	Messages []string
}

func (l *Logger) log(level, msg string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.Messages = append(l.Messages, level+": "+msg)
}

func (l *Logger) Debug(msg string, args ...interface{}) { l.log("DEBUG", msg) }
func (l *Logger) Info(msg string, args ...interface{})  { l.log("INFO", msg) }
func (l *Logger) Warn(msg string, args ...interface{})  { l.log("WARN", msg) }
func (l *Logger) Error(msg string, args ...interface{}) { l.log("ERROR", msg) }
func (l *Logger) Fatal(msg string, args ...interface{}) { l.log("FATAL", msg) }

// Shape is the list response layout served by FakeAPI.
type Shape string

const (
	ShapePaginated Shape = "results"
	ShapeWrapped   Shape = "data"
	ShapeArray     Shape = "array"
)

// FakeAPI mimics the ERP REST API: JWT token endpoints and paginated list endpoints.
// Mount paths are relative to URL(), e.g. "/v1/faculty/api/faculty/".
type FakeAPI struct {
	srv *httptest.Server

	mu       sync.Mutex
	datasets map[string][]map[string]interface{}
	shape    Shape
	down     bool
	access   map[string]bool
	refresh  map[string]bool
	issued   int
	calls    map[string]int
	patches  []Patch
}

type Patch struct {
	Path   string
	Values map[string]interface{}
}

// NewFakeAPI starts a fake API, closed at the end of the test.
func NewFakeAPI(t *testing.T) *FakeAPI {
	api := &FakeAPI{
		datasets: make(map[string][]map[string]interface{}),
		shape:    ShapePaginated,
		access:   make(map[string]bool),
		refresh:  make(map[string]bool),
		calls:    make(map[string]int),
	}
	api.srv = httptest.NewServer(http.StripPrefix("/api", http.HandlerFunc(api.serve)))
	t.Cleanup(api.srv.Close)
	return api
}

// URL is the API base URL, as configured in upstream.baseURL.
func (api *FakeAPI) URL() string {
	return api.srv.URL + "/api"
}

func (api *FakeAPI) Mount(path string, records []map[string]interface{}) {
	api.mu.Lock()
	defer api.mu.Unlock()
	api.datasets[path] = records
}

func (api *FakeAPI) SetShape(shape Shape) {
	api.mu.Lock()
	defer api.mu.Unlock()
	api.shape = shape
}

// SetDown makes every endpoint answer 503.
func (api *FakeAPI) SetDown(down bool) {
	api.mu.Lock()
	defer api.mu.Unlock()
	api.down = down
}

// ExpireAccessTokens invalidates the access tokens issued so far.
func (api *FakeAPI) ExpireAccessTokens() {
	api.mu.Lock()
	defer api.mu.Unlock()
	api.access = make(map[string]bool)
}

// RevokeRefreshTokens invalidates the refresh tokens issued so far.
func (api *FakeAPI) RevokeRefreshTokens() {
	api.mu.Lock()
	defer api.mu.Unlock()
	api.refresh = make(map[string]bool)
}

// IssueTokens returns a valid token pair without going through the login endpoint.
func (api *FakeAPI) IssueTokens() (access, refresh string) {
	api.mu.Lock()
	defer api.mu.Unlock()
	return api.issue()
}

// Calls returns how many requests hit `path`.
func (api *FakeAPI) Calls(path string) int {
	api.mu.Lock()
	defer api.mu.Unlock()
	return api.calls[path]
}

func (api *FakeAPI) Patches() []Patch {
	api.mu.Lock()
	defer api.mu.Unlock()
	return append([]Patch(nil), api.patches...)
}

func (api *FakeAPI) issue() (string, string) {
	api.issued++
	access := fmt.Sprintf("access-%d", api.issued)
	refresh := fmt.Sprintf("refresh-%d", api.issued)
	api.access[access] = true
	api.refresh[refresh] = true
	return access, refresh
}

func (api *FakeAPI) serve(w http.ResponseWriter, r *http.Request) {
	api.mu.Lock()
	defer api.mu.Unlock()

	api.calls[r.URL.Path]++
	if api.down {
		writeJSON(w, http.StatusServiceUnavailable, map[string]interface{}{"detail": "Service unavailable."})
		return
	}

	switch {
	case r.Method == http.MethodPost && r.URL.Path == "/auth/token/":
		api.login(w, r)
	case r.Method == http.MethodPost && r.URL.Path == "/auth/token/refresh/":
		api.refreshToken(w, r)
	case !api.authenticated(r):
		writeJSON(w, http.StatusUnauthorized, map[string]interface{}{
			"detail": "Given token not valid for any token type",
			"code":   "token_not_valid",
		})
	case r.Method == http.MethodGet:
		api.list(w, r)
	case r.Method == http.MethodPatch:
		api.patch(w, r)
	default:
		writeJSON(w, http.StatusMethodNotAllowed, map[string]interface{}{"detail": "Method not allowed."})
	}
}

func (api *FakeAPI) authenticated(r *http.Request) bool {
	token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
	return api.access[token]
}

func (api *FakeAPI) login(w http.ResponseWriter, r *http.Request) {
	var creds struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&creds); err != nil || creds.Username == "" || creds.Password == "" {
		writeJSON(w, http.StatusBadRequest, map[string]interface{}{
			"username": []string{"This field is required."},
			"password": []string{"This field is required."},
		})
		return
	}
	if creds.Username != Username || creds.Password != Password {
		writeJSON(w, http.StatusUnauthorized, map[string]interface{}{"detail": "No active account found with the given credentials"})
		return
	}
	access, refresh := api.issue()
	writeJSON(w, http.StatusOK, map[string]interface{}{"access": access, "refresh": refresh})
}

func (api *FakeAPI) refreshToken(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Refresh string `json:"refresh"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || !api.refresh[body.Refresh] {
		writeJSON(w, http.StatusUnauthorized, map[string]interface{}{
			"detail": "Token is invalid or expired",
			"code":   "token_not_valid",
		})
		return
	}
	api.issued++
	access := fmt.Sprintf("access-%d", api.issued)
	api.access[access] = true
	writeJSON(w, http.StatusOK, map[string]interface{}{"access": access})
}

func (api *FakeAPI) list(w http.ResponseWriter, r *http.Request) {
	records, ok := api.datasets[r.URL.Path]
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]interface{}{"detail": "Not found."})
		return
	}

	q := r.URL.Query()
	filtered := make([]map[string]interface{}, 0, len(records))
	for _, rec := range records {
		if matches(rec, q) {
			filtered = append(filtered, rec)
		}
	}
	if ordering := q.Get("ordering"); ordering != "" {
		field := strings.TrimPrefix(ordering, "-")
		desc := strings.HasPrefix(ordering, "-")
		sort.SliceStable(filtered, func(i, j int) bool {
			a, b := fmt.Sprint(filtered[i][field]), fmt.Sprint(filtered[j][field])
			if desc {
				return a > b
			}
			return a < b
		})
	}

	switch api.shape {
	case ShapeArray:
		writeJSON(w, http.StatusOK, filtered)
		return
	case ShapeWrapped:
		writeJSON(w, http.StatusOK, map[string]interface{}{"data": filtered})
		return
	}

	page, pageSize := 1, 10
	if v, err := strconv.Atoi(q.Get("page")); err == nil {
		page = v
	}
	if v, err := strconv.Atoi(q.Get("page_size")); err == nil && v > 0 {
		pageSize = v
	}
	start := (page - 1) * pageSize
	if page < 1 || (start >= len(filtered) && page != 1) {
		writeJSON(w, http.StatusNotFound, map[string]interface{}{"detail": "Invalid page."})
		return
	}
	end := start + pageSize
	if end > len(filtered) {
		end = len(filtered)
	}

	var next, previous interface{}
	if end < len(filtered) {
		next = fmt.Sprintf("%s%s?page=%d&page_size=%d", api.URL(), r.URL.Path, page+1, pageSize)
	}
	if page > 1 {
		previous = fmt.Sprintf("%s%s?page=%d&page_size=%d", api.URL(), r.URL.Path, page-1, pageSize)
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"count":    len(filtered),
		"next":     next,
		"previous": previous,
		"results":  filtered[start:end],
	})
}

func (api *FakeAPI) patch(w http.ResponseWriter, r *http.Request) {
	trimmed := strings.TrimSuffix(r.URL.Path, "/")
	i := strings.LastIndex(trimmed, "/")
	collection, id := trimmed[:i+1], trimmed[i+1:]

	for _, rec := range api.datasets[collection] {
		if fmt.Sprint(rec["id"]) != id {
			continue
		}
		var values map[string]interface{}
		if err := json.NewDecoder(r.Body).Decode(&values); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]interface{}{"detail": "JSON parse error."})
			return
		}
		for k, v := range values {
			rec[k] = v
		}
		api.patches = append(api.patches, Patch{Path: r.URL.Path, Values: values})
		writeJSON(w, http.StatusOK, rec)
		return
	}
	writeJSON(w, http.StatusNotFound, map[string]interface{}{"detail": "Not found."})
}

// matches applies the `search` and equality query params the way the API filters do.
func matches(rec map[string]interface{}, q map[string][]string) bool {
	for key, vals := range q {
		if len(vals) == 0 || vals[0] == "" {
			continue
		}
		switch key {
		case "page", "page_size", "ordering":
			continue
		case "search":
			found := false
			needle := strings.ToLower(vals[0])
			for _, v := range rec {
				if s, ok := v.(string); ok && strings.Contains(strings.ToLower(s), needle) {
					found = true
					break
				}
			}
			if !found {
				return false
			}
		default:
			if fmt.Sprint(rec[key]) != vals[0] {
				return false
			}
		}
	}
	return true
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// FacultyRecords returns `n` faculty records cycling through departments, designations and statuses,
// in both the flat and the nested record shapes.
func FacultyRecords(n int) []map[string]interface{} {
	departments := []string{"Computer Science", "Physics", ""}
	designations := []string{"Professor", "Lecturer", "Assistant Professor"}
	statuses := []string{"ACTIVE", "ON_LEAVE", "PROBATION", "INACTIVE", "Active"}

	records := make([]map[string]interface{}, n)
	for i := 0; i < n; i++ {
		rec := map[string]interface{}{
			"id":                   float64(i + 1),
			"name":                 fmt.Sprintf("Faculty %02d", i+1),
			"email":                fmt.Sprintf("faculty%02d@uni.ac", i+1),
			"employee_id":          fmt.Sprintf("EMP%03d", i+1),
			"status":               statuses[i%len(statuses)],
			"currently_associated": []string{"Y", "N"}[i%2],
			"date_of_joining":      fmt.Sprintf("20%02d-0%d-1%d", 10+i%10, 1+i%9, i%10),
		}
		if i%4 == 3 {
			rec["employmentDetails"] = map[string]interface{}{
				"department":  "Chemistry",
				"designation": designations[i%len(designations)],
			}
		} else {
			rec["department"] = departments[i%len(departments)]
			rec["designation"] = designations[i%len(designations)]
		}
		records[i] = rec
	}
	return records
}
