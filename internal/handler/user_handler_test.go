package handler_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/xxxsen/tablereserve/internal/config"
	"github.com/xxxsen/tablereserve/internal/handler"
	"github.com/xxxsen/tablereserve/internal/middleware"
	"github.com/xxxsen/tablereserve/internal/pkg/password"
	"github.com/xxxsen/tablereserve/internal/repo"
	"github.com/xxxsen/tablereserve/internal/service"
	"github.com/xxxsen/tablereserve/internal/testutil"
)

type testEnv struct {
	router http.Handler
	users  *repo.UserRepo
}

func setupRouter(t *testing.T) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, cleanup := testutil.OpenSQLite(t)
	t.Cleanup(cleanup)
	userRepo := repo.NewUserRepo(db, config.DriverSQLite)
	hasher, err := password.NewHasher(password.MethodSSHA512, 32)
	require.NoError(t, err)
	jwtSecret := []byte("test-secret")
	userService := service.NewUserService(userRepo, hasher, jwtSecret, time.Hour)

	engine := gin.New()
	engine.Use(middleware.RequestID())
	handler.RegisterRoutes(engine.Group("/"), handler.RouterDeps{
		Users:     handler.NewUserHandler(userService),
		Health:    handler.NewHealthHandler(db),
		JWTSecret: jwtSecret,
	})
	return &testEnv{router: engine, users: userRepo}
}

func (e *testEnv) do(t *testing.T, method, target string, body interface{}, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, target, reader)
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	resp := httptest.NewRecorder()
	e.router.ServeHTTP(resp, req)
	return resp
}

func (e *testEnv) createUser(t *testing.T, email, pass string) map[string]interface{} {
	t.Helper()
	resp := e.do(t, http.MethodPost, "/users", map[string]string{"email": email, "password": pass})
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &out))
	return out
}

func userPath(u map[string]interface{}) string {
	return "/users/" + strconv.FormatInt(int64(u["id"].(float64)), 10)
}

func errorStatus(t *testing.T, resp *httptest.ResponseRecorder) int {
	t.Helper()
	var body struct {
		Error struct {
			StatusCode int `json:"statusCode"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &body))
	return body.Error.StatusCode
}

func TestCreateUserHidesSecrets(t *testing.T) {
	env := setupRouter(t)
	out := env.createUser(t, "a@x.com", "secret")

	require.Equal(t, "a@x.com", out["email"])
	require.Equal(t, false, out["emailVerified"])
	require.NotContains(t, out, "password")
	require.NotContains(t, out, "salt")
	require.Contains(t, out, "created")
	require.Contains(t, out, "modified")

	stored, err := env.users.GetByID(t.Context(), int64(out["id"].(float64)))
	require.NoError(t, err)
	require.NotEqual(t, "secret", stored.Password)
	require.NotEmpty(t, stored.Salt)
}

func TestCreateUserValidation(t *testing.T) {
	env := setupRouter(t)
	for _, body := range []map[string]string{
		{"email": "", "password": "secret"},
		{"email": "   ", "password": "secret"},
		{"email": "a@x.com", "password": "  "},
		{"email": "a@x.com"},
	} {
		resp := env.do(t, http.MethodPost, "/users", body)
		require.Equal(t, http.StatusUnprocessableEntity, resp.Code)
		require.Equal(t, http.StatusUnprocessableEntity, errorStatus(t, resp))
	}

	resp := env.do(t, http.MethodGet, "/users/count", nil)
	require.Equal(t, http.StatusOK, resp.Code)
	require.JSONEq(t, `{"count":0}`, resp.Body.String())
}

func TestCreateUserMalformedBody(t *testing.T) {
	env := setupRouter(t)
	req := httptest.NewRequest(http.MethodPost, "/users", bytes.NewBufferString("{"))
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()
	env.router.ServeHTTP(resp, req)
	require.Equal(t, http.StatusBadRequest, resp.Code)
}

func TestWrongValueTypesAreUnprocessable(t *testing.T) {
	env := setupRouter(t)
	resp := env.do(t, http.MethodPost, "/users", map[string]interface{}{"email": 123, "password": "secret"})
	require.Equal(t, http.StatusUnprocessableEntity, resp.Code)
	require.Equal(t, http.StatusUnprocessableEntity, errorStatus(t, resp))

	u := env.createUser(t, "a@x.com", "secret")
	resp = env.do(t, http.MethodPatch, userPath(u), map[string]interface{}{"emailVerified": "yes"})
	require.Equal(t, http.StatusUnprocessableEntity, resp.Code)

	resp = env.do(t, http.MethodPut, userPath(u), map[string]interface{}{"email": "a@x.com", "password": "p", "created": "yesterday"})
	require.Equal(t, http.StatusUnprocessableEntity, resp.Code)
}

func TestCreateUserDuplicateEmail(t *testing.T) {
	env := setupRouter(t)
	env.createUser(t, "a@x.com", "secret")

	resp := env.do(t, http.MethodPost, "/users", map[string]string{"email": "A@X.com", "password": "other"})
	require.Equal(t, http.StatusUnprocessableEntity, resp.Code)
	require.Contains(t, resp.Body.String(), "user with given email exists")

	resp = env.do(t, http.MethodGet, "/users/count", nil)
	require.JSONEq(t, `{"count":1}`, resp.Body.String())
}

func TestFindByIDNotFound(t *testing.T) {
	env := setupRouter(t)
	resp := env.do(t, http.MethodGet, "/users/424242", nil)
	require.Equal(t, http.StatusNotFound, resp.Code)
	require.Equal(t, http.StatusNotFound, errorStatus(t, resp))

	resp = env.do(t, http.MethodGet, "/users/abc", nil)
	require.Equal(t, http.StatusBadRequest, resp.Code)
}

func TestDeleteThenGet(t *testing.T) {
	env := setupRouter(t)
	u := env.createUser(t, "a@x.com", "secret")

	resp := env.do(t, http.MethodDelete, userPath(u), nil)
	require.Equal(t, http.StatusNoContent, resp.Code)

	resp = env.do(t, http.MethodGet, userPath(u), nil)
	require.Equal(t, http.StatusNotFound, resp.Code)

	resp = env.do(t, http.MethodDelete, userPath(u), nil)
	require.Equal(t, http.StatusNotFound, resp.Code)
}

func TestPatchEmailVerified(t *testing.T) {
	env := setupRouter(t)
	u := env.createUser(t, "a@x.com", "secret")

	resp := env.do(t, http.MethodPatch, userPath(u), map[string]bool{"emailVerified": true})
	require.Equal(t, http.StatusNoContent, resp.Code)

	resp = env.do(t, http.MethodGet, userPath(u), nil)
	require.Equal(t, http.StatusOK, resp.Code)
	var got map[string]interface{}
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &got))
	require.Equal(t, true, got["emailVerified"])
	require.Equal(t, "a@x.com", got["email"])
	require.Equal(t, u["modified"], got["modified"])
	require.NotContains(t, got, "password")
}

func TestPatchRejectsMismatchedID(t *testing.T) {
	env := setupRouter(t)
	u := env.createUser(t, "a@x.com", "secret")

	resp := env.do(t, http.MethodPatch, userPath(u), map[string]interface{}{"id": 1, "emailVerified": true})
	require.Equal(t, http.StatusUnprocessableEntity, resp.Code)

	resp = env.do(t, http.MethodPatch, "/users/999", map[string]bool{"emailVerified": true})
	require.Equal(t, http.StatusNotFound, resp.Code)
}

func TestReplaceByID(t *testing.T) {
	env := setupRouter(t)
	u := env.createUser(t, "a@x.com", "secret")

	resp := env.do(t, http.MethodPut, userPath(u), map[string]interface{}{
		"email":         "b@x.com",
		"password":      "replaced",
		"emailVerified": true,
	})
	require.Equal(t, http.StatusNoContent, resp.Code)

	resp = env.do(t, http.MethodGet, userPath(u), nil)
	var got map[string]interface{}
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &got))
	require.Equal(t, "b@x.com", got["email"])
	require.Equal(t, true, got["emailVerified"])

	resp = env.do(t, http.MethodPut, userPath(u), map[string]interface{}{"email": "b@x.com"})
	require.Equal(t, http.StatusUnprocessableEntity, resp.Code)

	resp = env.do(t, http.MethodPut, "/users/999", map[string]interface{}{"email": "c@x.com", "password": "p"})
	require.Equal(t, http.StatusNotFound, resp.Code)
}

func TestFindCountAndUpdateAll(t *testing.T) {
	env := setupRouter(t)
	env.createUser(t, "a@x.com", "secret")
	env.createUser(t, "b@x.com", "secret")
	env.createUser(t, "c@y.com", "secret")

	where := url.QueryEscape(`{"email":{"like":"%@x.com"}}`)
	resp := env.do(t, http.MethodGet, "/users/count?where="+where, nil)
	require.Equal(t, http.StatusOK, resp.Code)
	require.JSONEq(t, `{"count":2}`, resp.Body.String())

	resp = env.do(t, http.MethodPatch, "/users?where="+where, map[string]bool{"emailVerified": true})
	require.Equal(t, http.StatusOK, resp.Code)
	require.JSONEq(t, `{"count":2}`, resp.Body.String())

	f := url.QueryEscape(`{"where":{"emailVerified":true},"order":"email DESC","limit":1}`)
	resp = env.do(t, http.MethodGet, "/users?filter="+f, nil)
	require.Equal(t, http.StatusOK, resp.Code)
	var list []map[string]interface{}
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &list))
	require.Len(t, list, 1)
	require.Equal(t, "b@x.com", list[0]["email"])
	require.NotContains(t, list[0], "salt")

	resp = env.do(t, http.MethodGet, "/users", nil)
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &list))
	require.Len(t, list, 3)

	resp = env.do(t, http.MethodPatch, "/users", map[string]interface{}{"id": 5})
	require.Equal(t, http.StatusUnprocessableEntity, resp.Code)

	both := url.QueryEscape(`{"email":"a@x.com","and":[{"email":"c@y.com"}]}`)
	for i := 0; i < 20; i++ {
		resp = env.do(t, http.MethodPatch, "/users?where="+both, map[string]bool{"emailVerified": false})
		require.Equal(t, http.StatusOK, resp.Code)
		require.JSONEq(t, `{"count":0}`, resp.Body.String())
	}
}

func TestFilterErrors(t *testing.T) {
	env := setupRouter(t)
	resp := env.do(t, http.MethodGet, "/users?filter="+url.QueryEscape(`{"where":{"password":"x"}}`), nil)
	require.Equal(t, http.StatusBadRequest, resp.Code)

	resp = env.do(t, http.MethodGet, "/users/count?where="+url.QueryEscape(`{"email":`), nil)
	require.Equal(t, http.StatusBadRequest, resp.Code)
}

func TestLoginAndMe(t *testing.T) {
	env := setupRouter(t)
	u := env.createUser(t, "a@x.com", "secret")

	resp := env.do(t, http.MethodPost, "/users/login", map[string]string{"email": "a@x.com", "password": "wrong"})
	require.Equal(t, http.StatusUnauthorized, resp.Code)

	resp = env.do(t, http.MethodPost, "/users/login", map[string]string{"email": "a@x.com", "password": "secret"})
	require.Equal(t, http.StatusOK, resp.Code)
	var login struct {
		AccessKey string                 `json:"accessKey"`
		Profile   map[string]interface{} `json:"profile"`
	}
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &login))
	require.NotEmpty(t, login.AccessKey)
	require.Equal(t, u["id"], login.Profile["id"])
	require.NotContains(t, login.Profile, "password")

	resp = env.do(t, http.MethodGet, "/users/me", nil)
	require.Equal(t, http.StatusUnauthorized, resp.Code)

	resp = env.do(t, http.MethodGet, "/users/me", nil, "Authorization", "Bearer "+login.AccessKey)
	require.Equal(t, http.StatusOK, resp.Code)
	var me map[string]interface{}
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &me))
	require.Equal(t, "a@x.com", me["email"])
}

func TestPatchPasswordThenLogin(t *testing.T) {
	env := setupRouter(t)
	u := env.createUser(t, "a@x.com", "secret")

	resp := env.do(t, http.MethodPatch, userPath(u), map[string]string{"password": "changed"})
	require.Equal(t, http.StatusNoContent, resp.Code)

	stored, err := env.users.GetByID(t.Context(), int64(u["id"].(float64)))
	require.NoError(t, err)
	require.NotEqual(t, "changed", stored.Password)

	resp = env.do(t, http.MethodPost, "/users/login", map[string]string{"email": "a@x.com", "password": "changed"})
	require.Equal(t, http.StatusOK, resp.Code)
}

func TestHealth(t *testing.T) {
	env := setupRouter(t)
	resp := env.do(t, http.MethodGet, "/healthz", nil)
	require.Equal(t, http.StatusOK, resp.Code)
	require.JSONEq(t, `{"status":"ok"}`, resp.Body.String())
}
