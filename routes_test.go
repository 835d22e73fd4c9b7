package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"bitbucket.org/mmdatafocus/bookkeeping_backend/config"
	"bitbucket.org/mmdatafocus/bookkeeping_backend/models"
	"bitbucket.org/mmdatafocus/bookkeeping_backend/utils"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testPassword = "hemligt123"

type testServer struct {
	t      *testing.T
	router *gin.Engine
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)
	t.Setenv("REDIS_DISABLED", "true")
	t.Setenv("CORS_ALLOWED_ORIGINS", "")

	db, err := config.OpenSQLite(":memory:")
	require.NoError(t, err)
	require.NoError(t, models.Migrate(db))
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
		config.SetDB(nil, "")
	})
	ctx := context.Background()
	_, err = models.SeedAccounts(ctx)
	require.NoError(t, err)
	_, err = models.CreateAdminUser(ctx, "Admin", "admin@example.se", testPassword)
	require.NoError(t, err)

	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return &testServer{t: t, router: setupRouter(logger, false)}
}

func (s *testServer) do(method string, path string, body any, cookie *http.Cookie) *httptest.ResponseRecorder {
	s.t.Helper()
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(s.t, err)
		reader = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if cookie != nil {
		req.AddCookie(cookie)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func (s *testServer) login(email string) *http.Cookie {
	s.t.Helper()
	w := s.do(http.MethodPost, "/api/v1/auth/login", gin.H{"email": email, "password": testPassword}, nil)
	require.Equal(s.t, http.StatusOK, w.Code, w.Body.String())
	for _, c := range w.Result().Cookies() {
		if c.Name == config.SessionCookieName {
			return c
		}
	}
	s.t.Fatalf("login did not set the session cookie")
	return nil
}

func (s *testServer) registerBookkeeper(email string) *http.Cookie {
	s.t.Helper()
	w := s.do(http.MethodPost, "/api/v1/auth/register", gin.H{"name": "Bo Bokförare", "email": email, "password": testPassword}, nil)
	require.Equal(s.t, http.StatusCreated, w.Code, w.Body.String())
	return s.login(email)
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body), w.Body.String())
	return body
}

func saleBody(value string) gin.H {
	return gin.H{
		"date":        "2024-03-05",
		"description": "Försäljning",
		"lines": []gin.H{
			{"account_no": 1930, "debit_amount": value},
			{"account_no": 3001, "credit_amount": value},
		},
	}
}

func createdVoucherId(t *testing.T, w *httptest.ResponseRecorder) int {
	t.Helper()
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	voucher, ok := decode(t, w)["voucher"].(map[string]any)
	require.True(t, ok, "response carries the voucher")
	return int(voucher["voucher_id"].(float64))
}

func TestHealthzAndUnknownRoute(t *testing.T) {
	s := newTestServer(t)

	w := s.do(http.MethodGet, "/healthz", nil, nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.NotEmpty(t, w.Header().Get("x-correlation-id"))

	w = s.do(http.MethodGet, "/api/v1/nothing-here", nil, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "route not found", decode(t, w)["error"])
}

func TestReadinessGate_WithoutDatabase(t *testing.T) {
	s := newTestServer(t)
	config.SetDB(nil, "")

	w := s.do(http.MethodGet, "/api/v1/accounts", nil, nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	w = s.do(http.MethodGet, "/healthz", nil, nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
}

func TestAuthFlow(t *testing.T) {
	s := newTestServer(t)

	w := s.do(http.MethodGet, "/api/v1/accounts", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = s.do(http.MethodPost, "/api/v1/auth/login", gin.H{"email": "admin@example.se", "password": "fel-lösenord"}, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = s.do(http.MethodPost, "/api/v1/auth/login", gin.H{"email": "admin@example.se"}, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	cookie := s.login("admin@example.se")
	assert.True(t, cookie.HttpOnly)

	w = s.do(http.MethodGet, "/api/v1/auth/me", nil, cookie)
	require.Equal(t, http.StatusOK, w.Code)
	user := decode(t, w)["user"].(map[string]any)
	assert.Equal(t, "admin@example.se", user["email"])
	assert.Equal(t, utils.RoleAdmin, user["role"])
	assert.NotContains(t, w.Body.String(), "password")

	w = s.do(http.MethodGet, "/api/v1/accounts", nil, cookie)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Greater(t, decode(t, w)["count"].(float64), float64(0))

	stale := &http.Cookie{Name: config.SessionCookieName, Value: "not-a-token"}
	w = s.do(http.MethodPost, "/api/v1/auth/login", gin.H{"email": "admin@example.se", "password": testPassword}, stale)
	assert.Equal(t, http.StatusOK, w.Code, "a stale cookie must not block login")
}

func TestVoucherLifecycle(t *testing.T) {
	s := newTestServer(t)
	admin := s.login("admin@example.se")
	bookkeeper := s.registerBookkeeper("bo@example.se")

	id := createdVoucherId(t, s.do(http.MethodPost, "/api/v1/vouchers", saleBody("100"), bookkeeper))

	unbalanced := saleBody("100")
	unbalanced["lines"] = []gin.H{
		{"account_no": 1930, "debit_amount": "100"},
		{"account_no": 3001, "credit_amount": "90"},
	}
	w := s.do(http.MethodPost, "/api/v1/vouchers", unbalanced, bookkeeper)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, decode(t, w)["error"], "not balanced")

	w = s.do(http.MethodGet, fmt.Sprintf("/api/v1/vouchers/%d", id), nil, bookkeeper)
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, "Bo Bokförare", body["created_by_name"])
	lines := body["lines"].([]any)
	require.Len(t, lines, 2)
	account := lines[0].(map[string]any)["account"].(map[string]any)
	assert.Equal(t, float64(1930), account["account_no"])

	w = s.do(http.MethodGet, fmt.Sprintf("/api/v1/lineitems/voucher/%d", id), nil, bookkeeper)
	require.Equal(t, http.StatusOK, w.Code)
	items := decode(t, w)["line_items"].([]any)
	require.Len(t, items, 2)
	assert.Equal(t, float64(3001), items[1].(map[string]any)["account"].(map[string]any)["account_no"])

	w = s.do(http.MethodGet, fmt.Sprintf("/api/v1/vouchers/%d/validate", id), nil, bookkeeper)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, decode(t, w)["balanced"])

	w = s.do(http.MethodPut, fmt.Sprintf("/api/v1/vouchers/%d", id), saleBody("200"), bookkeeper)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = s.do(http.MethodGet, "/api/v1/vouchers/abc", nil, bookkeeper)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	correctionId := createdVoucherId(t, s.do(http.MethodPost, fmt.Sprintf("/api/v1/vouchers/%d/correct", id), nil, bookkeeper))
	assert.NotEqual(t, id, correctionId)

	w = s.do(http.MethodPost, fmt.Sprintf("/api/v1/vouchers/%d/correct", id), nil, bookkeeper)
	assert.Equal(t, http.StatusConflict, w.Code)
	w = s.do(http.MethodPost, fmt.Sprintf("/api/v1/vouchers/%d/correct", correctionId), nil, bookkeeper)
	assert.Equal(t, http.StatusConflict, w.Code)

	w = s.do(http.MethodPut, fmt.Sprintf("/api/v1/vouchers/%d", id), saleBody("200"), admin)
	assert.Equal(t, http.StatusConflict, w.Code, "a corrected voucher is locked")

	w = s.do(http.MethodGet, "/api/v1/accounts/1930/ledger", nil, bookkeeper)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(0), decode(t, w)["closing_balance"])

	w = s.do(http.MethodGet, "/api/v1/vouchers/periods", nil, bookkeeper)
	require.Equal(t, http.StatusOK, w.Code)
	periods := decode(t, w)["periods"].([]any)
	require.Len(t, periods, 1)
	assert.Equal(t, "mars 2024", periods[0].(map[string]any)["label"])
}

func TestReportEndpoints(t *testing.T) {
	s := newTestServer(t)
	bookkeeper := s.registerBookkeeper("bo@example.se")
	createdVoucherId(t, s.do(http.MethodPost, "/api/v1/vouchers", saleBody("250"), bookkeeper))

	w := s.do(http.MethodGet, "/api/v1/reports/income-statement", nil, bookkeeper)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(http.MethodGet, "/api/v1/reports/income-statement?from_date=2024-03-31&to_date=2024-03-01", nil, bookkeeper)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(http.MethodGet, "/api/v1/reports/income-statement?from_date=2024-03-01&to_date=2024-03-31", nil, bookkeeper)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(-250), decode(t, w)["net_result"])

	w = s.do(http.MethodGet, "/api/v1/reports/income-statement/export?from_date=2024-03-01&to_date=2024-03-31", nil, bookkeeper)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Disposition"), "resultatrakning_2024-03-01_2024-03-31.xlsx")
}

func TestAdminOnlyRoutes(t *testing.T) {
	s := newTestServer(t)
	admin := s.login("admin@example.se")
	bookkeeper := s.registerBookkeeper("bo@example.se")

	account := gin.H{"account_no": 6991, "account_name": "Övrigt", "account_group": 6, "type": "P&L", "standard_side": "Debit"}
	w := s.do(http.MethodPost, "/api/v1/accounts", account, bookkeeper)
	assert.Equal(t, http.StatusForbidden, w.Code)
	w = s.do(http.MethodPost, "/api/v1/accounts", account, admin)
	assert.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	w = s.do(http.MethodPost, "/api/v1/accounts", account, admin)
	assert.Equal(t, http.StatusConflict, w.Code)

	w = s.do(http.MethodGet, "/api/v1/internal/ops/outbox", nil, bookkeeper)
	assert.Equal(t, http.StatusForbidden, w.Code)
	w = s.do(http.MethodGet, "/api/v1/internal/ops/outbox", nil, admin)
	assert.Equal(t, http.StatusOK, w.Code)
	w = s.do(http.MethodPost, "/api/v1/internal/ops/outbox/replay", gin.H{"record_id": 404}, admin)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestErrorStatus(t *testing.T) {
	cases := []struct {
		err    error
		status int
	}{
		{fmt.Errorf("%w: difference 10.00", models.ErrVoucherNotBalanced), http.StatusBadRequest},
		{models.ErrInvalidPeriod, http.StatusBadRequest},
		{models.ErrVoucherNotFound, http.StatusNotFound},
		{models.ErrInvalidCredentials, http.StatusUnauthorized},
		{models.ErrAdminOnly, http.StatusForbidden},
		{models.ErrVoucherAlreadyCorrected, http.StatusConflict},
		{models.ErrCannotCorrectCorrection, http.StatusConflict},
		{models.ErrVoucherLocked, http.StatusConflict},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		status, msg := errorStatus(tc.err)
		assert.Equal(t, tc.status, status, tc.err.Error())
		if status == http.StatusInternalServerError {
			assert.Equal(t, "internal server error", msg)
		}
	}
}
