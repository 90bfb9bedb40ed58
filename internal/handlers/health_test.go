package handlers

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func mockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	t.Helper()

	sqlDB, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })

	db, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), &gorm.Config{
		Logger:               logger.Default.LogMode(logger.Silent),
		DisableAutomaticPing: true,
	})
	require.NoError(t, err)
	return db, mock
}

type stubPinger struct{ err error }

func (s stubPinger) Ping(context.Context) error { return s.err }

func serveHealth(db *gorm.DB, pingers ...stubPinger) *httptest.ResponseRecorder {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	if len(pingers) > 0 {
		r.GET("/health", Health(db, pingers[0]))
	} else {
		r.GET("/health", Health(db, nil))
	}

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	return w
}

func TestHealthReportsOK(t *testing.T) {
	db, mock := mockDB(t)
	mock.ExpectPing()

	w := serveHealth(db)
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), `"database":"ok"`)
	require.NotContains(t, w.Body.String(), `"cache"`)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestHealthReportsCache(t *testing.T) {
	db, mock := mockDB(t)
	mock.ExpectPing()
	mock.ExpectPing()

	w := serveHealth(db, stubPinger{})
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), `"cache":"ok"`)
	require.Contains(t, w.Body.String(), `"status":"ok"`)

	w = serveHealth(db, stubPinger{err: errors.New("redis down")})
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), `"cache":"unavailable"`)
	require.Contains(t, w.Body.String(), `"status":"degraded"`)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestHealthReportsStoreUnavailable(t *testing.T) {
	db, mock := mockDB(t)
	mock.ExpectPing().WillReturnError(errors.New("connection refused"))

	w := serveHealth(db)
	require.Equal(t, http.StatusServiceUnavailable, w.Code)
	require.Contains(t, w.Body.String(), "STORE_UNAVAILABLE")
	require.NoError(t, mock.ExpectationsWereMet())
}
