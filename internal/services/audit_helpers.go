package services

import (
	"context"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/charlesng35/adminhub/pkg/logger"
	"github.com/charlesng35/adminhub/pkg/metrics"
)

type auditReportKey struct{}

// AuditReport notes whether an audit write made on behalf of one request was
// dropped.
type AuditReport struct {
	dropped atomic.Bool
}

// WithAuditReport returns ctx carrying a fresh AuditReport.
func WithAuditReport(ctx context.Context) (context.Context, *AuditReport) {
	report := &AuditReport{}
	return context.WithValue(ensureContext(ctx), auditReportKey{}, report), report
}

// Dropped reports whether any audit write was lost. A nil report never is.
func (r *AuditReport) Dropped() bool {
	return r != nil && r.dropped.Load()
}

// recordAudit appends entry after a committed mutation. A failed write is
// logged, counted and noted on the context's AuditReport but never changes the
// caller's result.
func recordAudit(audit *AuditService, ctx context.Context, entry AuditEntry) {
	if audit == nil {
		return
	}
	ctx = ensureContext(ctx)
	if _, err := audit.Record(ctx, entry); err != nil {
		if report, ok := ctx.Value(auditReportKey{}).(*AuditReport); ok {
			report.dropped.Store(true)
		}
		metrics.AuditWriteFailures.WithLabelValues(entry.Action).Inc()
		logger.WithModule("audit").Warn("audit record dropped",
			zap.String("action", entry.Action),
			zap.String("resource_type", entry.ResourceType),
			zap.String("resource_id", entry.ResourceID),
			zap.String("principal_id", entry.PrincipalID),
			zap.Error(err),
		)
	}
}

// Log appends entry like Record but only logs a failure. Callers outside this
// package use it for events that follow an already committed action.
func (s *AuditService) Log(ctx context.Context, entry AuditEntry) {
	recordAudit(s, ctx, entry)
}
