package database

import (
	"fmt"
	"time"

	"go.uber.org/zap"
	gormlogger "gorm.io/gorm/logger"

	"github.com/charlesng35/adminhub/pkg/logger"
)

// zapWriter adapts gorm's printf-style logger onto the module logger.
type zapWriter struct {
	log *zap.Logger
}

func (w zapWriter) Printf(format string, args ...any) {
	w.log.Warn(fmt.Sprintf(format, args...))
}

// newGormLogger reports slow queries and errors through zap. A non-positive
// threshold silences gorm entirely.
func newGormLogger(slowThreshold time.Duration) gormlogger.Interface {
	if slowThreshold <= 0 {
		return gormlogger.Discard
	}
	return gormlogger.New(zapWriter{log: logger.WithModule("database")}, gormlogger.Config{
		SlowThreshold:             slowThreshold,
		LogLevel:                  gormlogger.Warn,
		IgnoreRecordNotFoundError: true,
		Colorful:                  false,
	})
}
