package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
)

func TestRequestID(t *testing.T) {
	gin.SetMode(gin.TestMode)

	var seen string
	r := gin.New()
	r.Use(RequestID())
	r.GET("/", func(c *gin.Context) {
		seen = RequestIDFromContext(c)
		c.Status(http.StatusNoContent)
	})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(RequestIDHeader, "trace-abc_1.2")
	r.ServeHTTP(w, req)
	require.Equal(t, "trace-abc_1.2", seen)
	require.Equal(t, "trace-abc_1.2", w.Header().Get(RequestIDHeader))

	for _, bad := range []string{"", "has space", "quote\"", strings.Repeat("a", maxRequestIDLength+1)} {
		w = httptest.NewRecorder()
		req = httptest.NewRequest(http.MethodGet, "/", nil)
		if bad != "" {
			req.Header.Set(RequestIDHeader, bad)
		}
		r.ServeHTTP(w, req)
		require.NotEqual(t, bad, seen)
		require.Len(t, seen, 36, "expected a generated uuid for %q", bad)
		require.Equal(t, seen, w.Header().Get(RequestIDHeader))
	}
}
