package tests

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/require"

	. "github.com/trezcool/ratiba/apps/api/echo"
	"github.com/trezcool/ratiba/core"
	"github.com/trezcool/ratiba/core/catalog"
	"github.com/trezcool/ratiba/core/lesson"
	"github.com/trezcool/ratiba/core/rbac"
	appfs "github.com/trezcool/ratiba/fs"
	inmemdb "github.com/trezcool/ratiba/storage/database/inmem"
	"github.com/trezcool/ratiba/tests"
)

// seeded users
const (
	adminID    = 1
	teacherID  = 2
	strangerID = 3
)

var errMissingToken = httpErr{Error: "missing or malformed jwt"}

type fixture struct {
	app         *Server
	conf        *core.Config
	lessonStore *inmemdb.LessonStore
	catalog     *inmemdb.CatalogRepository
	logger      *testutil.Logger
}

func setup(t *testing.T) *fixture {
	t.Helper()
	conf := &core.Config{
		AppName:   "Ratiba",
		Env:       "TEST",
		TestMode:  true,
		SecretKey: "test-secret",
		Server:    core.ServerConfig{JWTExpirationDelta: time.Hour},
	}
	logger := testutil.NewLogger()

	// set up DB & repos
	db := inmemdb.Open()
	lessonStore := inmemdb.NewLessonStore(db)
	catalogRepo := inmemdb.NewCatalogRepository(db)
	rbacStore := inmemdb.NewRBACStore(db)

	// set up services
	lessonSvc := lesson.NewService(lessonStore, logger, lesson.DraftOnly, nil)
	catalogSvc := catalog.NewService(catalogRepo)
	rbacSvc := rbac.NewService(rbacStore, logger)

	data, err := appfs.FS.ReadFile(appfs.DefaultSeedPath)
	require.NoError(t, err)
	seed, err := rbac.ParseSeed(data)
	require.NoError(t, err)
	require.NoError(t, rbacSvc.Seed(context.Background(), seed))

	validate := validator.New()
	translator := core.NewTranslator()
	core.InitValidators(validate, translator)
	lesson.InitValidators(validate, translator)

	// set up server
	app := NewServer(ServerDeps{
		Conf:           conf,
		Logger:         logger,
		LessonSvc:      lessonSvc,
		CatalogSvc:     catalogSvc,
		RBACSvc:        rbacSvc,
		Validate:       validate,
		Translator:     translator,
		DisableReqLogs: true,
	})
	return &fixture{app: app, conf: conf, lessonStore: lessonStore, catalog: catalogRepo, logger: logger}
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

func (f *fixture) do(method, path, token string, data ...[]byte) *httptest.ResponseRecorder {
	req, rec := newAuthRequest(method, path, token, data...)
	f.app.ServeHTTP(rec, req)
	return rec
}

func (f *fixture) getToken(t *testing.T, userID int) string {
	t.Helper()
	token, err := GenerateToken(f.conf, NewClaims(f.conf, userID, ""))
	if err != nil {
		t.Fatalf("getToken(): %v", err)
	}
	return token
}

func marchallObj(t *testing.T, obj interface{}) []byte {
	data, err := json.Marshal(obj)
	if err != nil {
		t.Fatalf("marchallObj(): %v", err)
	}
	return data
}

func unmarshalBody(t *testing.T, rec *httptest.ResponseRecorder, obj interface{}) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), obj); err != nil {
		t.Fatalf("unmarshalBody(%s): %v", rec.Body.String(), err)
	}
}

func jsonBytesEqual(b1, b2 []byte) (bool, error) {
	var j1, j2 interface{}
	if err := json.Unmarshal(b1, &j1); err != nil {
		return false, err
	}
	if err := json.Unmarshal(b2, &j2); err != nil {
		return false, err
	}
	return reflect.DeepEqual(j1, j2), nil
}

func checkCodeAndData(t *testing.T, tt httpTest, rec *httptest.ResponseRecorder) {
	t.Helper()
	if rec.Code != tt.wantCode {
		t.Errorf("failed! code = %v; wantCode %v", rec.Code, tt.wantCode)
	}
	if tt.wantData == nil {
		return
	}
	ok, err := jsonBytesEqual(rec.Body.Bytes(), tt.wantData)
	if err != nil {
		t.Errorf("jsonBytesEqual() failed to compare; err %v", err)
	}
	if !ok {
		t.Errorf("failed! data = %v; wantData %v", rec.Body.String(), string(tt.wantData))
	}
}
