package maintenance

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/charlesng35/adminhub/pkg/logger"
	"github.com/charlesng35/adminhub/pkg/metrics"
)

const (
	defaultSessionSpec = "@hourly"
	defaultCacheSpec   = "@every 10m"
	defaultJobTimeout  = 2 * time.Minute

	jobSessions = "sessions"
	jobCache    = "cache"
)

// SessionPurger removes expired and revoked sessions.
type SessionPurger interface {
	CleanupExpired(ctx context.Context) (int64, error)
}

// CachePurger removes expired cache entries.
type CachePurger interface {
	PurgeExpired(ctx context.Context, now time.Time) (int64, error)
}

// Cleaner runs periodic purges of expired sessions and stale cache rows on a
// cron schedule. Audit records are never touched.
type Cleaner struct {
	sessions SessionPurger
	cache    CachePurger
	cron     *cron.Cron
	now      func() time.Time
	log      *zap.Logger
	timeout  time.Duration

	sessionSchedule string
	cacheSchedule   string
}

type job struct {
	name  string
	spec  string
	purge func(context.Context) (int64, error)
}

// Option customises the Cleaner.
type Option func(*Cleaner)

// WithCron injects a preconfigured scheduler.
func WithCron(c *cron.Cron) Option {
	return func(cleaner *Cleaner) {
		if c != nil {
			cleaner.cron = c
		}
	}
}

// WithNow overrides the clock used for cache expiry comparisons.
func WithNow(now func() time.Time) Option {
	return func(cleaner *Cleaner) {
		if now != nil {
			cleaner.now = now
		}
	}
}

func WithSessionSchedule(spec string) Option {
	return func(cleaner *Cleaner) {
		if spec != "" {
			cleaner.sessionSchedule = spec
		}
	}
}

func WithCacheSchedule(spec string) Option {
	return func(cleaner *Cleaner) {
		if spec != "" {
			cleaner.cacheSchedule = spec
		}
	}
}

// WithJobTimeout bounds each scheduled purge. Zero leaves runs unbounded.
func WithJobTimeout(d time.Duration) Option {
	return func(cleaner *Cleaner) {
		if d > 0 {
			cleaner.timeout = d
		}
	}
}

// NewCleaner builds a Cleaner. A nil purger disables its job.
func NewCleaner(sessions SessionPurger, cache CachePurger, opts ...Option) *Cleaner {
	cleaner := &Cleaner{
		sessions:        sessions,
		cache:           cache,
		now:             time.Now,
		timeout:         defaultJobTimeout,
		sessionSchedule: defaultSessionSpec,
		cacheSchedule:   defaultCacheSpec,
		log:             logger.WithModule("maintenance"),
	}
	for _, opt := range opts {
		opt(cleaner)
	}
	if cleaner.cron == nil {
		cleaner.cron = cron.New(cron.WithLogger(cron.DiscardLogger))
	}
	return cleaner
}

func (c *Cleaner) jobs() []job {
	var jobs []job
	if c.sessions != nil {
		jobs = append(jobs, job{name: jobSessions, spec: c.sessionSchedule, purge: c.sessions.CleanupExpired})
	}
	if c.cache != nil {
		jobs = append(jobs, job{name: jobCache, spec: c.cacheSchedule, purge: func(ctx context.Context) (int64, error) {
			return c.cache.PurgeExpired(ctx, c.now())
		}})
	}
	return jobs
}

// Start schedules every enabled job. With no jobs the scheduler is left idle.
func (c *Cleaner) Start() error {
	jobs := c.jobs()
	if len(jobs) == 0 {
		return nil
	}

	for _, j := range jobs {
		j := j
		if _, err := c.cron.AddFunc(j.spec, func() { c.scheduled(j) }); err != nil {
			return fmt.Errorf("schedule %s cleanup: %w", j.name, err)
		}
	}
	c.cron.Start()
	return nil
}

// Stop halts the scheduler. The returned context is done once running jobs finish.
func (c *Cleaner) Stop() context.Context {
	if c.cron == nil {
		return context.Background()
	}
	return c.cron.Stop()
}

// RunOnce runs every enabled job in turn and joins their errors.
func (c *Cleaner) RunOnce(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	var errs error
	for _, j := range c.jobs() {
		errs = multierr.Append(errs, c.run(ctx, j))
	}
	return errs
}

func (c *Cleaner) scheduled(j job) {
	ctx := context.Background()
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}
	if err := c.run(ctx, j); err != nil {
		c.log.Warn("maintenance job failed", zap.String("job", j.name), zap.Error(err))
	}
}

func (c *Cleaner) run(ctx context.Context, j job) error {
	removed, err := j.purge(ctx)
	if err != nil {
		metrics.MaintenanceRuns.WithLabelValues(j.name, "error").Inc()
		return fmt.Errorf("cleanup %s: %w", j.name, err)
	}
	metrics.MaintenanceRuns.WithLabelValues(j.name, "success").Inc()
	if removed > 0 {
		c.log.Debug("maintenance purge", zap.String("job", j.name), zap.Int64("removed", removed))
	}
	return nil
}
