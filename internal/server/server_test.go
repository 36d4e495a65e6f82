package server

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"regexp"
	"strings"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/gin-gonic/gin"
	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marshallshelly/memra/internal/models"
	"github.com/marshallshelly/memra/pkg/auth"
	"github.com/marshallshelly/memra/pkg/routes"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fixture struct {
	engine *gin.Engine
	mock   sqlmock.Sqlmock
	jwt    *auth.JWT
	logs   *bytes.Buffer
	table  *routes.Table
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	reg, err := models.Registry()
	require.NoError(t, err)

	var logs bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&logs, nil))

	table, err := models.Routes(reg, db, logger)
	require.NoError(t, err)

	key, err := auth.LoadKey(auth.KeySource{ID: "k1", Algorithm: auth.HS256, Secret: "test-secret"})
	require.NoError(t, err)
	keys, err := auth.NewKeySet("k1", key)
	require.NoError(t, err)
	j := auth.NewJWT(keys)

	engine, err := New(Options{Prefix: "/api", Routes: table, Auth: j, Logger: logger})
	require.NoError(t, err)

	return &fixture{engine: engine, mock: mock, jwt: j, logs: &logs, table: table}
}

func (f *fixture) do(t *testing.T, method, path, token string, body ...string) *httptest.ResponseRecorder {
	t.Helper()
	var payload io.Reader
	if len(body) > 0 {
		payload = strings.NewReader(body[0])
	}
	req := httptest.NewRequest(method, path, payload)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	f.engine.ServeHTTP(rec, req)
	return rec
}

func TestPrivate(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodGet, "/api/private", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var body PrivateResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, PrivateResponse{Message: "Unauthenticated.", User: "None"}, body)

	token, err := f.jwt.Issue(7)
	require.NoError(t, err)
	rec = f.do(t, http.MethodGet, "/api/private", token)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, PrivateResponse{Message: "Authenticated User.", User: "7"}, body)

	rec = f.do(t, http.MethodGet, "/api/private", "not-a-token")
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestRoutesMounted(t *testing.T) {
	f := newFixture(t)

	f.mock.ExpectQuery(regexp.QuoteMeta(`SELECT "id", "username", "email", "real_name", "verified" FROM "users" WHERE "id" = $1`)).
		WithArgs(int64(3)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "username", "email", "real_name", "verified"}).
			AddRow(int64(3), "ada", "ada@example.com", nil, true))

	rec := f.do(t, http.MethodGet, "/api/user/3", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"username":"ada"`)
	require.NoError(t, f.mock.ExpectationsWereMet())

	rec = f.do(t, http.MethodGet, "/api/credentials/1", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	// Creating a course as a guest never reaches storage.
	rec = f.do(t, http.MethodPost, "/api/course/", "", `{"name":"Verbs"}`)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	require.NoError(t, f.mock.ExpectationsWereMet())
}

func TestRequestID(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodGet, "/api/private", "")
	id := rec.Header().Get(RequestIDHeader)
	_, err := ulid.ParseStrict(id)
	require.NoError(t, err)
	assert.Contains(t, f.logs.String(), `"request_id":"`+id+`"`)
	assert.Contains(t, f.logs.String(), `"route":"/api/private"`)

	supplied := ulid.Make().String()
	req := httptest.NewRequest(http.MethodGet, "/api/private", nil)
	req.Header.Set(RequestIDHeader, supplied)
	rec = httptest.NewRecorder()
	f.engine.ServeHTTP(rec, req)
	assert.Equal(t, supplied, rec.Header().Get(RequestIDHeader))

	req = httptest.NewRequest(http.MethodGet, "/api/private", nil)
	req.Header.Set(RequestIDHeader, "not a ulid")
	rec = httptest.NewRecorder()
	f.engine.ServeHTTP(rec, req)
	assert.NotEqual(t, "not a ulid", rec.Header().Get(RequestIDHeader))
}

func TestNew_Errors(t *testing.T) {
	f := newFixture(t)

	_, err := New(Options{Routes: f.table, Auth: f.jwt})
	assert.ErrorIs(t, err, routes.ErrMounted)

	_, err = New(Options{Auth: f.jwt})
	assert.Error(t, err)

	_, err = New(Options{Routes: f.table})
	assert.Error(t, err)
}

func TestIDsMonotonic(t *testing.T) {
	g := newIDs()
	prev := g.next()
	for range 100 {
		next := g.next()
		assert.Greater(t, next, prev)
		prev = next
	}
}
