package upstream

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"
	"time"

	promtestutil "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/masomo-console/tests"
)

const facultyPath = "/v1/faculty/api/faculty/"

func setup(t *testing.T, opts ...func(o *Options)) (*Client, *testutil.FakeAPI) {
	api := testutil.NewFakeAPI(t)
	api.Mount(facultyPath, testutil.FacultyRecords(25))

	o := Options{
		BaseURL:  api.URL() + "/",
		Username: testutil.Username,
		Password: testutil.Password,
		Timeout:  5 * time.Second,
		Policy:   DefaultRetryPolicy,
	}
	for _, opt := range opts {
		opt(&o)
	}
	return NewClient(o, new(testutil.Logger)), api
}

func TestClient_FetchPage(t *testing.T) {
	client, api := setup(t)
	ctx := context.Background()

	page, err := client.FetchPage(ctx, facultyPath, url.Values{"page": {"2"}, "page_size": {"10"}})
	require.NoError(t, err)

	assert.Len(t, page.Items, 10)
	assert.Equal(t, 25, page.TotalCount)
	assert.Equal(t, "Faculty 11", page.Items[0].String("name"))
	assert.NotEmpty(t, page.Next)
	assert.NotEmpty(t, page.Previous)

	// logged in once, lazily
	assert.Equal(t, 1, api.Calls("/auth/token/"))
	assert.NotEmpty(t, client.Tokens().Access)

	_, err = client.FetchPage(ctx, facultyPath, url.Values{"search": {"faculty 2"}})
	require.NoError(t, err)
	assert.Equal(t, 1, api.Calls("/auth/token/"))
}

func TestClient_FetchPage_shapes(t *testing.T) {
	tests := []struct {
		shape     testutil.Shape
		wantLen   int
		wantTotal int
	}{
		{shape: testutil.ShapePaginated, wantLen: 10, wantTotal: 25},
		{shape: testutil.ShapeWrapped, wantLen: 25, wantTotal: 25},
		{shape: testutil.ShapeArray, wantLen: 25, wantTotal: 25},
	}
	for _, tt := range tests {
		t.Run(string(tt.shape), func(t *testing.T) {
			client, api := setup(t)
			api.SetShape(tt.shape)

			page, err := client.FetchPage(context.Background(), facultyPath, nil)
			require.NoError(t, err)
			assert.Len(t, page.Items, tt.wantLen)
			assert.Equal(t, tt.wantTotal, page.TotalCount)
		})
	}
}

func TestClient_retryPolicy(t *testing.T) {
	type extra struct {
		revokeRefresh bool
		noCredentials bool
	}

	tests := []struct {
		name         string
		policy       RetryPolicy
		extra        extra
		wantErr      bool
		wantRefresh  int
		wantLogins   int
		wantListHits int
	}{
		{name: "refresh then retry", policy: DefaultRetryPolicy, wantRefresh: 1, wantLogins: 0, wantListHits: 2},
		{name: "refresh fails, login again", policy: DefaultRetryPolicy, extra: extra{revokeRefresh: true}, wantRefresh: 1, wantLogins: 1, wantListHits: 2},
		{name: "refresh only", policy: RetryPolicy{Refresh: true}, extra: extra{revokeRefresh: true}, wantErr: true, wantRefresh: 1, wantListHits: 1},
		{name: "relogin only", policy: RetryPolicy{Relogin: true}, wantRefresh: 0, wantLogins: 1, wantListHits: 2},
		{name: "no renewal", policy: RetryPolicy{}, wantErr: true, wantListHits: 1},
		{name: "refresh fails, no credentials", policy: DefaultRetryPolicy, extra: extra{revokeRefresh: true, noCredentials: true}, wantErr: true, wantRefresh: 1, wantListHits: 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, api := setup(t, func(o *Options) {
				o.Policy = tt.policy
				if tt.extra.noCredentials {
					o.Username, o.Password = "", ""
				}
			})

			access, refresh := api.IssueTokens()
			client.SetTokens(TokenPair{Access: access, Refresh: refresh})
			api.ExpireAccessTokens()
			if tt.extra.revokeRefresh {
				api.RevokeRefreshTokens()
			}

			page, err := client.FetchPage(context.Background(), facultyPath, nil)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, IsUnauthorized(err))
				assert.Equal(t, http.StatusUnauthorized, StatusCode(err))
			} else {
				require.NoError(t, err)
				assert.Equal(t, 25, page.TotalCount)
				assert.NotEqual(t, access, client.Tokens().Access)
			}
			assert.Equal(t, tt.wantRefresh, api.Calls("/auth/token/refresh/"), "refresh calls")
			assert.Equal(t, tt.wantLogins, api.Calls("/auth/token/"), "login calls")
			assert.Equal(t, tt.wantListHits, api.Calls(facultyPath), "list calls")
		})
	}
}

func TestClient_retriesOnce(t *testing.T) {
	var listHits, refreshHits int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if r.URL.Path == refreshPath {
			refreshHits++
			_, _ = w.Write([]byte(`{"access": "still-rejected"}`))
			return
		}
		listHits++
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"detail": "Given token not valid for any token type", "code": "token_not_valid"}`))
	}))
	defer srv.Close()

	client := NewClient(Options{BaseURL: srv.URL, Policy: DefaultRetryPolicy}, new(testutil.Logger))
	client.SetTokens(TokenPair{Access: "expired", Refresh: "refresh"})

	_, err := client.FetchPage(context.Background(), facultyPath, nil)
	require.Error(t, err)
	assert.True(t, IsUnauthorized(err))
	assert.Equal(t, 2, listHits)
	assert.Equal(t, 1, refreshHits)
}

func TestClient_concurrentRenewal(t *testing.T) {
	client, api := setup(t)

	access, refresh := api.IssueTokens()
	client.SetTokens(TokenPair{Access: access, Refresh: refresh})
	api.ExpireAccessTokens()

	var wg sync.WaitGroup
	errs := make(chan error, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := client.FetchPage(context.Background(), facultyPath, nil)
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		assert.NoError(t, err)
	}
	assert.Equal(t, 1, api.Calls("/auth/token/refresh/"))
}

func TestClient_Login(t *testing.T) {
	client, api := setup(t)
	ctx := context.Background()

	_, err := client.Login(ctx, testutil.Username, "wrong")
	require.Error(t, err)
	assert.Equal(t, "No active account found with the given credentials", err.(*APIError).Message)

	_, err = client.Login(ctx, "", "")
	assert.Equal(t, ErrNoCredentials, err)

	tokens, err := client.Login(ctx, testutil.Username, testutil.Password)
	require.NoError(t, err)
	assert.Equal(t, tokens, client.Tokens())

	require.NoError(t, client.Refresh(ctx))
	assert.NotEqual(t, tokens.Access, client.Tokens().Access)
	assert.Equal(t, tokens.Refresh, client.Tokens().Refresh)
	assert.Equal(t, 1, api.Calls("/auth/token/refresh/"))
}

func TestClient_Refresh_noToken(t *testing.T) {
	client, _ := setup(t)
	assert.Equal(t, ErrNoRefresh, client.Refresh(context.Background()))
}

func TestClient_errors(t *testing.T) {
	client, api := setup(t)
	ctx := context.Background()

	_, err := client.FetchPage(ctx, "/v1/unknown/", nil)
	require.Error(t, err)
	assert.Equal(t, http.StatusNotFound, StatusCode(err))
	assert.False(t, IsUnauthorized(err))

	_, err = client.FetchPage(ctx, facultyPath, url.Values{"page": {"9"}})
	require.Error(t, err)
	assert.Equal(t, "upstream 404: Invalid page.", err.Error())

	api.SetDown(true)
	_, err = client.FetchPage(ctx, facultyPath, nil)
	require.Error(t, err)
	assert.Equal(t, http.StatusServiceUnavailable, StatusCode(err))
}

func TestClient_unreachable(t *testing.T) {
	client := NewClient(Options{BaseURL: "http://127.0.0.1:1", Timeout: time.Second}, new(testutil.Logger))

	_, err := client.FetchPage(context.Background(), facultyPath, nil)
	require.Error(t, err)
	assert.Equal(t, 0, StatusCode(err))
}

func TestClient_Patch(t *testing.T) {
	client, api := setup(t)

	body, err := client.Patch(context.Background(), facultyPath, "3", map[string]interface{}{"status": "ON_LEAVE"})
	require.NoError(t, err)
	assert.Contains(t, string(body), `"status":"ON_LEAVE"`)

	patches := api.Patches()
	require.Len(t, patches, 1)
	assert.Equal(t, facultyPath+"3/", patches[0].Path)
	assert.Equal(t, map[string]interface{}{"status": "ON_LEAVE"}, patches[0].Values)
}

func TestClient_Patch_metricsPerCollection(t *testing.T) {
	client, _ := setup(t)
	ctx := context.Background()
	patched := client.metrics.requestTotal.WithLabelValues(facultyPath, "200")
	before := promtestutil.ToFloat64(patched)

	_, err := client.Patch(ctx, facultyPath, "1", map[string]interface{}{"status": "ACTIVE"})
	require.NoError(t, err)
	series := promtestutil.CollectAndCount(client.metrics.requestLatency)

	for _, id := range []string{"2", "3", "4", "5"} {
		_, err := client.Patch(ctx, facultyPath, id, map[string]interface{}{"status": "ACTIVE"})
		require.NoError(t, err)
	}
	assert.Equal(t, 5.0, promtestutil.ToFloat64(patched)-before)
	assert.Equal(t, series, promtestutil.CollectAndCount(client.metrics.requestLatency), "one series per collection")
}

func TestNewAPIError(t *testing.T) {
	tests := []struct {
		name string
		code int
		body string
		want *APIError
	}{
		{
			name: "detail",
			code: 404,
			body: `{"detail": "Not found."}`,
			want: &APIError{Status: 404, Message: "Not found."},
		},
		{
			name: "token not valid",
			code: 403,
			body: `{"detail": "Given token not valid for any token type", "code": "token_not_valid", "messages": [{"token_class": "AccessToken"}]}`,
			want: &APIError{Status: 403, Code: "token_not_valid", Message: "Given token not valid for any token type"},
		},
		{
			name: "field errors",
			code: 400,
			body: `{"email": ["Enter a valid email address.", "Already taken."], "name": "Required."}`,
			want: &APIError{Status: 400, Message: "Bad Request", FieldErrors: map[string]string{
				"email": "Enter a valid email address. Already taken.",
				"name":  "Required.",
			}},
		},
		{
			name: "non field errors",
			code: 400,
			body: `{"non_field_errors": ["Dates overlap."]}`,
			want: &APIError{Status: 400, Message: "Dates overlap.", FieldErrors: map[string]string{"non_field_errors": "Dates overlap."}},
		},
		{
			name: "message",
			code: 500,
			body: `{"message": "boom", "error": "ignored"}`,
			want: &APIError{Status: 500, Message: "boom"},
		},
		{
			name: "not json",
			code: 502,
			body: `<html>Bad Gateway</html>`,
			want: &APIError{Status: 502, Message: "Bad Gateway"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := newAPIError(tt.code, []byte(tt.body))
			assert.Equal(t, tt.want, got)
		})
	}

	assert.True(t, IsUnauthorized(newAPIError(403, []byte(`{"code": "token_not_valid"}`))))
	assert.True(t, IsUnauthorized(newAPIError(401, nil)))
}
