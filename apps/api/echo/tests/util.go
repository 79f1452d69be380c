package tests

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"
	"time"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	. "github.com/trezcool/masomo-console/apps/api/echo"
	"github.com/trezcool/masomo-console/core"
	"github.com/trezcool/masomo-console/core/dashboard"
	"github.com/trezcool/masomo-console/core/entity"
	"github.com/trezcool/masomo-console/services/upstream"
	"github.com/trezcool/masomo-console/storage/cache/inmem"
	"github.com/trezcool/masomo-console/tests"
)

var (
	admin     = core.Operator{ID: "1", Username: "admin", Email: "admin@uni.ac", Roles: []string{core.RoleAdmin}}
	registrar = core.Operator{ID: "2", Username: "registrar", Roles: []string{core.RoleRegistrar}}
	viewer    = core.Operator{ID: "3", Username: "viewer", Roles: []string{core.RoleViewer}}
	nobody    = core.Operator{ID: "4", Username: "nobody"}

	errMissingToken = httpErr{Error: "missing or malformed jwt"}
	errInvalidToken = httpErr{Error: "invalid or expired jwt"}
	errForbidden    = httpErr{Error: "permission denied"}
)

type env struct {
	app  Server
	conf *core.Config
	api  *testutil.FakeAPI
}

func setup(t *testing.T) env {
	conf := &core.Config{
		AppName:   "Masomo Console",
		Env:       "TEST",
		Build:     "test",
		TestMode:  true,
		SecretKey: "test-secret",
		Server:    core.ServerConfig{Address: ":0", DisableReqLogs: true},
		Listing:   core.ListingConfig{DefaultPageSize: 10, MaxPageSize: 100},
		Upstream:  core.UpstreamConfig{MaxPages: 50},
	}

	_en := en.New()
	translator, _ := ut.New(_en, _en).GetTranslator("en")
	validate := validator.New()
	core.InitValidators(validate, translator)

	registry, err := entity.NewDefaultRegistry(validate)
	require.NoError(t, err)
	registry.InitValidators(validate, translator)

	// set up the fake ERP API
	api := testutil.NewFakeAPI(t)
	api.Mount(entity.Faculty.Endpoint, testutil.FacultyRecords(25))

	logger := new(testutil.Logger)
	client := upstream.NewClient(upstream.Options{
		BaseURL:  api.URL(),
		Username: testutil.Username,
		Password: testutil.Password,
		Timeout:  5 * time.Second,
		Policy:   upstream.DefaultRetryPolicy,
	}, logger)

	// set up services
	svc := dashboard.NewService(dashboard.NewOptions(conf), registry, client, inmemcache.New(time.Minute), validate, logger)

	// set up server
	app := NewServer(conf, &Deps{
		Logger:     logger,
		Validate:   validate,
		Translator: translator,
		Dashboard:  svc,
	})
	return env{app: app, conf: conf, api: api}
}

type httpErr struct {
	Error string `json:"error"`
}

type httpTest struct {
	name     string
	method   string
	path     string
	body     []byte
	token    string
	wantCode int
	wantData []byte
	extra    interface{}
}

func newAuthRequest(method, path, token string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	var body bytes.Buffer
	if len(data) > 0 {
		body.Write(data[0])
	}
	req := httptest.NewRequest(method, path, &body)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	return req, rec
}

func newRequest(method, path string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	return newAuthRequest(method, path, "", data...)
}

func getToken(t *testing.T, conf *core.Config, op core.Operator) string {
	token, err := GenerateToken(conf.SecretKey, NewClaims(conf, op, time.Hour))
	if err != nil {
		t.Fatalf("getToken() failed: %v", err)
	}
	return token
}

func marchallObj(t *testing.T, obj interface{}) []byte {
	data, err := json.Marshal(obj)
	if err != nil {
		t.Fatalf("marchallObj() failed: %v", err)
	}
	return data
}

func marchallList(t *testing.T, objs ...interface{}) []byte {
	data, err := json.Marshal(objs)
	if err != nil {
		t.Fatalf("marchallList() failed: %v", err)
	}
	return data
}

func unmarchall(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	if err := json.Unmarshal(rec.Body.Bytes(), v); err != nil {
		t.Fatalf("unmarchall() failed: %v; body %s", err, rec.Body.String())
	}
}

func jsonBytesEqual(t *testing.T, b1, b2 []byte) (bool, error) {
	var j1, j2 interface{}
	if err := json.Unmarshal(b1, &j1); err != nil {
		return false, err
	}
	if err := json.Unmarshal(b2, &j2); err != nil {
		return false, err
	}
	if reflect.DeepEqual(j1, j2) {
		return true, nil
	}
	if j1 == nil || j2 == nil {
		return false, nil
	}
	if _, ok := j1.([]interface{}); !ok {
		return false, nil
	}
	return assert.ElementsMatch(t, j1, j2), nil
}

func checkCodeAndData(t *testing.T, tt httpTest, rec *httptest.ResponseRecorder) {
	if rec.Code != tt.wantCode {
		t.Errorf("failed! code = %v; wantCode %v", rec.Code, tt.wantCode)
	}
	ok, err := jsonBytesEqual(t, rec.Body.Bytes(), tt.wantData)
	if err != nil {
		t.Errorf("jsonBytesEqual() failed to compare; err %v", err)
	}
	if !ok {
		t.Errorf("failed! data = %v; wantData %v", rec.Body.String(), string(tt.wantData))
	}
}
