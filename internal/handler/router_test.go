package handler

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v4"
	_ "github.com/mir00r/giftcert-router/docs"
	"github.com/mir00r/giftcert-router/internal/domain"
	"github.com/mir00r/giftcert-router/internal/middleware"
	"github.com/mir00r/giftcert-router/internal/service"
	"github.com/mir00r/giftcert-router/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const routerSecret = "router-secret"

func newTestRouter(t *testing.T, lookup BalanceLookup, rate domain.RateLimitConfig) http.Handler {
	t.Helper()
	log := logger.NewNop()

	auth, err := middleware.NewJWTAuthMiddleware(domain.AuthConfig{Enabled: true, Secret: routerSecret}, log)
	require.NoError(t, err)

	registry := testRegistry(t)
	selector := &stubSelector{handle: &closeCounter{}}

	cfg := RouterConfig{
		Certificates: NewCertificateHandler(lookup, log),
		Health:       NewHealthHandler("test", selector, registry, log),
		Admin:        NewAdminHandler(registry, downProber{}, log),
		Metrics:      service.NewMetrics().Handler(),
		Auth:         auth,
		CORSOrigins:  []string{"*"},
		Swagger:      true,
		Logger:       log,
	}
	if rate.Enabled {
		cfg.RateLimiter = middleware.NewRateLimiter(rate, log)
	}
	return NewRouter(cfg)
}

func bearer(t *testing.T) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   "cashier",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}).SignedString([]byte(routerSecret))
	require.NoError(t, err)
	return "Bearer " + token
}

func serve(router http.Handler, req *http.Request) *httptest.ResponseRecorder {
	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, req)
	return recorder
}

func TestRouter_APIRequiresToken(t *testing.T) {
	lookup := &stubLookup{result: []service.CertificateBalance{balance("AAO11111111", "5")}}
	router := newTestRouter(t, lookup, domain.RateLimitConfig{})

	recorder := serve(router, httptest.NewRequest(http.MethodGet, "/api/giftcert?barcode=AAO11111111", nil))
	assert.Equal(t, http.StatusUnauthorized, recorder.Code)
	assert.Equal(t, 0, lookup.calls)

	req := httptest.NewRequest(http.MethodGet, "/api/giftcert?barcode=AAO11111111", nil)
	req.Header.Set("Authorization", bearer(t))
	recorder = serve(router, req)
	assert.Equal(t, http.StatusOK, recorder.Code)
	assert.NotEmpty(t, recorder.Header().Get(middleware.RequestIDHeader))
	assert.Equal(t, "nosniff", recorder.Header().Get("X-Content-Type-Options"))

	req = httptest.NewRequest(http.MethodPost, "/api/giftcert", strings.NewReader(`["AAO11111111"]`))
	req.Header.Set("Authorization", bearer(t))
	recorder = serve(router, req)
	assert.Equal(t, http.StatusOK, recorder.Code)
	assert.True(t, strings.HasPrefix(strings.TrimSpace(recorder.Body.String()), "["))
}

func TestRouter_PreflightSkipsAuth(t *testing.T) {
	router := newTestRouter(t, &stubLookup{}, domain.RateLimitConfig{})

	req := httptest.NewRequest(http.MethodOptions, "/api/giftcert", nil)
	req.Header.Set("Origin", "https://shop.example.com")
	recorder := serve(router, req)

	assert.Equal(t, http.StatusOK, recorder.Code)
	assert.Equal(t, "*", recorder.Header().Get("Access-Control-Allow-Origin"))
}

func TestRouter_PublicEndpoints(t *testing.T) {
	router := newTestRouter(t, &stubLookup{}, domain.RateLimitConfig{})

	for _, path := range []string{"/health", "/readiness", "/liveness", "/metrics"} {
		recorder := serve(router, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusOK, recorder.Code, path)
	}

	recorder := serve(router, httptest.NewRequest(http.MethodGet, "/swagger/doc.json", nil))
	assert.Equal(t, http.StatusOK, recorder.Code)
	assert.Contains(t, recorder.Body.String(), "/api/giftcert")

	recorder = serve(router, httptest.NewRequest(http.MethodGet, "/nope", nil))
	assert.Equal(t, http.StatusNotFound, recorder.Code)
	assert.JSONEq(t, `{"error":"Not found"}`, recorder.Body.String())
}

func TestRouter_AdminRequiresToken(t *testing.T) {
	router := newTestRouter(t, &stubLookup{}, domain.RateLimitConfig{})

	recorder := serve(router, httptest.NewRequest(http.MethodGet, "/admin/replicas", nil))
	assert.Equal(t, http.StatusUnauthorized, recorder.Code)

	req := httptest.NewRequest(http.MethodGet, "/admin/replicas", nil)
	req.Header.Set("Authorization", bearer(t))
	recorder = serve(router, req)
	assert.Equal(t, http.StatusOK, recorder.Code)
	assert.NotContains(t, recorder.Body.String(), "secret")
}

func TestRouter_RateLimitsAPI(t *testing.T) {
	lookup := &stubLookup{result: []service.CertificateBalance{balance("AAO11111111", "5")}}
	router := newTestRouter(t, lookup, domain.RateLimitConfig{Enabled: true, RequestsPerSecond: 0.001, BurstSize: 1})

	send := func() int {
		req := httptest.NewRequest(http.MethodGet, "/api/giftcert?barcode=AAO11111111", nil)
		req.RemoteAddr = "203.0.113.9:5555"
		req.Header.Set("Authorization", bearer(t))
		return serve(router, req).Code
	}

	assert.Equal(t, http.StatusOK, send())
	assert.Equal(t, http.StatusTooManyRequests, send())

	recorder := serve(router, httptest.NewRequest(http.MethodGet, "/liveness", nil))
	assert.Equal(t, http.StatusOK, recorder.Code, "health endpoints are not rate limited")
}
