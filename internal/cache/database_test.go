package cache

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/charlesng35/adminhub/internal/models"
)

func newTestDatabaseStore(t *testing.T) (*DatabaseStore, *gorm.DB) {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.CacheEntry{}))

	sqlDB, err := db.DB()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })

	return NewDatabaseStore(db), db
}

func TestDatabaseStoreSetGetDelete(t *testing.T) {
	store, _ := newTestDatabaseStore(t)
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "k", []byte("v1"), time.Minute))
	require.NoError(t, store.Set(ctx, "k", []byte("v2"), time.Minute))

	value, ok, err := store.Get(ctx, "k")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, []byte("v2"), value)

	require.NoError(t, store.Delete(ctx, "k"))
	_, ok, err = store.Get(ctx, "k")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestDatabaseStoreIncrementWithTTL(t *testing.T) {
	store, db := newTestDatabaseStore(t)
	clock := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	store = NewDatabaseStore(db, WithClock(func() time.Time { return clock }))
	ctx := context.Background()

	count, ttl, err := store.IncrementWithTTL(ctx, "counter", time.Minute)
	require.NoError(t, err)
	require.EqualValues(t, 1, count)
	require.Equal(t, time.Minute, ttl)

	clock = clock.Add(20 * time.Second)
	count, ttl, err = store.IncrementWithTTL(ctx, "counter", time.Minute)
	require.NoError(t, err)
	require.EqualValues(t, 2, count)
	require.Equal(t, 40*time.Second, ttl, "later increments must not extend the window")

	clock = clock.Add(40 * time.Second)
	count, ttl, err = store.IncrementWithTTL(ctx, "counter", time.Minute)
	require.NoError(t, err)
	require.EqualValues(t, 1, count, "an elapsed window restarts the count")
	require.Equal(t, time.Minute, ttl)
}

func TestDatabaseStoreGetHonoursExpiry(t *testing.T) {
	store, db := newTestDatabaseStore(t)
	clock := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	store = NewDatabaseStore(db, WithClock(func() time.Time { return clock }))
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "session", []byte("v"), time.Minute))
	_, ok, err := store.Get(ctx, "session")
	require.NoError(t, err)
	require.True(t, ok)

	clock = clock.Add(time.Minute)
	_, ok, err = store.Get(ctx, "session")
	require.NoError(t, err)
	require.False(t, ok)

	var rows int64
	require.NoError(t, db.Model(&models.CacheEntry{}).Count(&rows).Error)
	require.Zero(t, rows)
}

func TestDatabaseStorePurgeExpired(t *testing.T) {
	store, db := newTestDatabaseStore(t)
	ctx := context.Background()
	now := time.Now()

	require.NoError(t, db.Create(&models.CacheEntry{Key: "old", Value: []byte("x"), ExpiresAt: now.Add(-time.Hour)}).Error)
	require.NoError(t, db.Create(&models.CacheEntry{Key: "fresh", Value: []byte("x"), ExpiresAt: now.Add(time.Hour)}).Error)
	require.NoError(t, store.Set(ctx, "forever", []byte("x"), 0))

	removed, err := store.PurgeExpired(ctx, now)
	require.NoError(t, err)
	require.EqualValues(t, 1, removed)

	var remaining int64
	require.NoError(t, db.Model(&models.CacheEntry{}).Count(&remaining).Error)
	require.EqualValues(t, 2, remaining)
}

func TestNilDatabaseStore(t *testing.T) {
	var store *DatabaseStore
	_, _, err := store.Get(context.Background(), "k")
	require.Error(t, err)
	require.Nil(t, NewDatabaseStore(nil))
}

func TestDatabaseStorePing(t *testing.T) {
	store, _ := newTestDatabaseStore(t)
	require.NoError(t, store.Ping(context.Background()))

	var missing *DatabaseStore
	require.Error(t, missing.Ping(context.Background()))
}
