package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/charlesng35/adminhub/pkg/response"
)

func serveSecured(opts SecurityOptions, req *http.Request) *httptest.ResponseRecorder {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(SecurityHeaders(opts))
	r.GET("/ping", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestSecurityHeaders(t *testing.T) {
	w := serveSecured(SecurityOptions{}, httptest.NewRequest(http.MethodGet, "/ping", nil))
	require.Equal(t, http.StatusOK, w.Code)

	want := map[string]string{
		"X-Frame-Options":           "DENY",
		"X-Content-Type-Options":    "nosniff",
		"X-XSS-Protection":          "1; mode=block",
		"Strict-Transport-Security": "max-age=31536000; includeSubDomains",
		"Content-Security-Policy":   DefaultContentSecurityPolicy,
		"Referrer-Policy":           "no-referrer",
		"Permissions-Policy":        "geolocation=(), microphone=(), camera=()",
		"Cache-Control":             "no-store",
	}
	for header, value := range want {
		require.Equal(t, value, w.Header().Get(header), header)
	}
}

func TestSecurityHeadersCustomHSTS(t *testing.T) {
	w := serveSecured(SecurityOptions{HSTSSeconds: 600}, httptest.NewRequest(http.MethodGet, "/ping", nil))
	require.Equal(t, "max-age=600; includeSubDomains", w.Header().Get("Strict-Transport-Security"))
}

func TestSecurityHeadersRedirectsPlainHTTP(t *testing.T) {
	opts := SecurityOptions{SSLRedirect: true}

	w := serveSecured(opts, httptest.NewRequest(http.MethodGet, "http://admin.example.com/ping", nil))
	require.Equal(t, http.StatusMovedPermanently, w.Code)
	require.Equal(t, "https://admin.example.com/ping", w.Header().Get("Location"))

	proxied := httptest.NewRequest(http.MethodGet, "http://admin.example.com/ping", nil)
	proxied.Header.Set("X-Forwarded-Proto", "https")
	require.Equal(t, http.StatusOK, serveSecured(opts, proxied).Code)
}

func TestSecurityHeadersAllowedHosts(t *testing.T) {
	opts := SecurityOptions{AllowedHosts: []string{"admin.example.com"}}

	allowed := serveSecured(opts, httptest.NewRequest(http.MethodGet, "http://admin.example.com/ping", nil))
	require.Equal(t, http.StatusOK, allowed.Code)

	rejected := serveSecured(opts, httptest.NewRequest(http.MethodGet, "http://evil.example.net/ping", nil))
	require.Equal(t, http.StatusBadRequest, rejected.Code)
	require.Empty(t, rejected.Header().Get("Cache-Control"))
	require.Contains(t, rejected.Header().Get("Content-Type"), "application/json")

	var body response.Response
	require.NoError(t, json.Unmarshal(rejected.Body.Bytes(), &body))
	require.False(t, body.Success)
	require.NotNil(t, body.Error)
	require.Equal(t, "BAD_REQUEST", body.Error.Code)
	require.Equal(t, "Invalid host", body.Error.Message)
}
