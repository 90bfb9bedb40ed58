package maintenance

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/stretchr/testify/require"
	"go.uber.org/multierr"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	iauth "github.com/charlesng35/adminhub/internal/auth"
	"github.com/charlesng35/adminhub/internal/cache"
	testutil "github.com/charlesng35/adminhub/internal/database/testutil"
	"github.com/charlesng35/adminhub/internal/models"
	"github.com/charlesng35/adminhub/pkg/crypto"
)

func TestCleanerRunOnce(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())

	jwtSvc, err := iauth.NewJWTService(iauth.JWTConfig{
		Secret:         "cleanup-secret",
		Issuer:         "test-suite",
		AccessTokenTTL: time.Hour,
	})
	require.NoError(t, err)

	clock := &fixedClock{current: time.Now().UTC().Truncate(time.Second)}

	sessionSvc, err := iauth.NewSessionService(db, jwtSvc, iauth.SessionConfig{
		RefreshTokenTTL: time.Hour,
		RefreshLength:   16,
		Clock:           clock.Now,
	})
	require.NoError(t, err)

	principal := seedPrincipal(t, db, "cleanup@example.com")
	ctx := context.Background()

	_, expiredSession, err := sessionSvc.CreateSession(ctx, principal.ID, iauth.SessionMetadata{})
	require.NoError(t, err)
	require.NoError(t, db.Model(&models.Session{}).Where("id = ?", expiredSession.ID).
		Update("expires_at", clock.Now().Add(-2*time.Hour)).Error)

	_, activeSession, err := sessionSvc.CreateSession(ctx, principal.ID, iauth.SessionMetadata{})
	require.NoError(t, err)

	_, revokedSession, err := sessionSvc.CreateSession(ctx, principal.ID, iauth.SessionMetadata{})
	require.NoError(t, err)
	require.NoError(t, sessionSvc.RevokeSession(ctx, revokedSession.ID))

	require.NoError(t, db.Create(&models.CacheEntry{Key: "stale", Value: []byte("1"), ExpiresAt: clock.Now().Add(-time.Minute)}).Error)
	require.NoError(t, db.Create(&models.CacheEntry{Key: "fresh", Value: []byte("1"), ExpiresAt: clock.Now().Add(time.Hour)}).Error)

	audit := models.AuditLog{PrincipalID: principal.ID, Action: "login", ResourceType: "auth", CreatedAt: clock.Now().AddDate(-1, 0, 0)}
	require.NoError(t, db.Create(&audit).Error)

	c := NewCleaner(sessionSvc, cache.NewDatabaseStore(db),
		WithNow(clock.Now),
		WithCron(cron.New(cron.WithLogger(cron.DiscardLogger))),
	)

	require.NoError(t, c.RunOnce(ctx))

	assertNotFound := func(id string) {
		var s models.Session
		err := db.First(&s, "id = ?", id).Error
		require.ErrorIs(t, err, gorm.ErrRecordNotFound)
	}
	assertNotFound(expiredSession.ID)
	assertNotFound(revokedSession.ID)

	var remaining models.Session
	require.NoError(t, db.First(&remaining, "id = ?", activeSession.ID).Error)

	var keys []string
	require.NoError(t, db.Model(&models.CacheEntry{}).Pluck("key", &keys).Error)
	require.Equal(t, []string{"fresh"}, keys)

	var auditCount int64
	require.NoError(t, db.Model(&models.AuditLog{}).Count(&auditCount).Error)
	require.Equal(t, int64(1), auditCount)
}

func TestCleanerRunOnceJoinsErrors(t *testing.T) {
	sessionErr := errors.New("sessions down")
	cacheErr := errors.New("cache down")

	c := NewCleaner(failingSessions{err: sessionErr}, failingCache{err: cacheErr})

	err := c.RunOnce(context.Background())
	require.Error(t, err)
	require.ErrorIs(t, err, sessionErr)
	require.ErrorIs(t, err, cacheErr)
	require.Len(t, multierr.Errors(err), 2)
}

func TestCleanerStartWithoutJobs(t *testing.T) {
	c := NewCleaner(nil, nil)
	require.NoError(t, c.Start())
	<-c.Stop().Done()
}

func TestCleanerStartRejectsBadSchedule(t *testing.T) {
	c := NewCleaner(failingSessions{}, nil, WithSessionSchedule("not a schedule"))
	require.Error(t, c.Start())
}

func TestCleanerScheduledRunHasDeadline(t *testing.T) {
	recorder := &deadlineRecorder{}
	c := NewCleaner(recorder, nil, WithJobTimeout(time.Minute))

	jobs := c.jobs()
	require.Len(t, jobs, 1)
	require.Equal(t, jobSessions, jobs[0].name)
	require.Equal(t, defaultSessionSpec, jobs[0].spec)

	c.scheduled(jobs[0])
	require.True(t, recorder.hadDeadline)
	require.WithinDuration(t, time.Now().Add(time.Minute), recorder.deadline, 5*time.Second)
}

func seedPrincipal(t *testing.T, db *gorm.DB, email string) *models.Principal {
	t.Helper()

	hash, err := crypto.NewBcryptHasher(bcrypt.MinCost).Hash("Password123!")
	require.NoError(t, err)

	principal := &models.Principal{
		Name:     email,
		Email:    email,
		Password: hash,
		IsActive: true,
	}
	require.NoError(t, db.Create(principal).Error)
	return principal
}

type failingSessions struct{ err error }

func (f failingSessions) CleanupExpired(context.Context) (int64, error) { return 0, f.err }

type failingCache struct{ err error }

func (f failingCache) PurgeExpired(context.Context, time.Time) (int64, error) { return 0, f.err }

type deadlineRecorder struct {
	hadDeadline bool
	deadline    time.Time
}

func (r *deadlineRecorder) CleanupExpired(ctx context.Context) (int64, error) {
	r.deadline, r.hadDeadline = ctx.Deadline()
	return 0, nil
}

type fixedClock struct {
	current time.Time
}

func (c *fixedClock) Now() time.Time {
	return c.current
}
