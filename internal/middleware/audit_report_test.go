package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/charlesng35/adminhub/internal/database/testutil"
	"github.com/charlesng35/adminhub/internal/services"
)

func TestAuditReportFlagsDroppedWrites(t *testing.T) {
	gin.SetMode(gin.TestMode)

	// The audit table is never migrated, so every write fails.
	audit, err := services.NewAuditService(testutil.MustOpenTestDB(t))
	require.NoError(t, err)
	entry := services.AuditEntry{PrincipalID: "p-1", Action: services.ActionUpdate, ResourceType: services.ResourceRole}

	r := gin.New()
	r.Use(AuditReport())
	r.GET("/quiet", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"ok": true}) })
	r.GET("/json", func(c *gin.Context) {
		audit.Log(c.Request.Context(), entry)
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})
	r.GET("/empty", func(c *gin.Context) {
		audit.Log(c.Request.Context(), entry)
		c.Status(http.StatusAccepted)
	})

	serve := func(path string) *httptest.ResponseRecorder {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
		return w
	}

	quiet := serve("/quiet")
	require.Equal(t, http.StatusOK, quiet.Code)
	require.Empty(t, quiet.Header().Get(AuditRecordedHeader))

	dropped := serve("/json")
	require.Equal(t, http.StatusOK, dropped.Code)
	require.Equal(t, "false", dropped.Header().Get(AuditRecordedHeader))
	require.JSONEq(t, `{"ok":true}`, dropped.Body.String())

	empty := serve("/empty")
	require.Equal(t, http.StatusAccepted, empty.Code)
	require.Equal(t, "false", empty.Header().Get(AuditRecordedHeader))
}
