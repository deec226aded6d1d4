package http

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"FinGAN/pkg/http/middleware"
)

type barsQuery struct {
	Symbol string `query:"symbol" validate:"required"`
	TF     string `query:"tf" default:"1d" validate:"oneof=1m 1d"`
	N      int    `query:"n" default:"5" validate:"gte=1,lte=10"`
}

type routes struct{}

func (routes) RegisterRoutes(e *echo.Echo) {
	e.GET("/bars", func(c echo.Context) error {
		var req barsQuery
		if errs := ReadAndValidateRequest(c, &req); errs != nil {
			return BadRequestResponse(c, errs)
		}
		return SuccessResponse(c, req)
	})
	e.GET("/missing", func(c echo.Context) error {
		return AppErrorResponse(c, NotFoundErrorf("run %s not found", "x"))
	})
	e.GET("/boom", func(c echo.Context) error {
		panic("boom")
	})
}

type denyAll struct{}

func (denyAll) Allow(string) bool { return false }

func serve(t *testing.T, s *Server, target string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	s.Echo().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	return rec
}

func TestServer_ValidationDefaults(t *testing.T) {
	s := NewServer(routes{}, nil, WithMetricsPath(""))

	rec := serve(t, s, "/bars?symbol=AAPL")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"TF":"1d"`)
	assert.Contains(t, rec.Body.String(), `"N":5`)

	rec = serve(t, s, "/bars?tf=1m&n=50")
	require.Equal(t, http.StatusBadRequest, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "ERR_REQUIRED")
	assert.Contains(t, body, "ERR_LTE")
}

func TestServer_AppErrorAndRecover(t *testing.T) {
	s := NewServer(routes{}, nil, WithMetricsPath(""))

	rec := serve(t, s, "/missing")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "ERR_NOT_FOUND")

	rec = serve(t, s, "/boom")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestRateLimitMiddleware(t *testing.T) {
	var rejected []string
	e := echo.New()
	e.GET("/limited", func(c echo.Context) error { return c.NoContent(http.StatusOK) },
		middleware.RateLimit(denyAll{}, func(route string) { rejected = append(rejected, route) }))

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/limited", nil))
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, []string{"/limited"}, rejected)
}

func TestCORSPreflight(t *testing.T) {
	s := NewServer(routes{}, nil, WithMetricsPath(""))
	req := httptest.NewRequest(http.MethodOptions, "/bars", nil)
	req.Header.Set(echo.HeaderOrigin, "http://example.com")
	rec := httptest.NewRecorder()
	s.Echo().ServeHTTP(rec, req)

	assert.Equal(t, "http://example.com", rec.Header().Get(echo.HeaderAccessControlAllowOrigin))
	assert.True(t, strings.Contains(rec.Header().Get(echo.HeaderAccessControlAllowMethods), http.MethodPost))
}
