package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/charlesng35/adminhub/internal/services"
)

// AuditRecordedHeader is set to "false" when an audit write for the request
// was dropped. The status and body are those of the action itself.
const AuditRecordedHeader = "X-Audit-Recorded"

// AuditReport attaches a services.AuditReport to the request context and
// flags the response when any audit write made while serving it failed.
func AuditReport() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, report := services.WithAuditReport(c.Request.Context())
		c.Request = c.Request.WithContext(ctx)
		writer := &auditReportWriter{ResponseWriter: c.Writer, report: report}
		c.Writer = writer

		c.Next()
		writer.flag()
	}
}

// auditReportWriter adds AuditRecordedHeader just before headers go out.
type auditReportWriter struct {
	gin.ResponseWriter
	report *services.AuditReport
}

func (w *auditReportWriter) flag() {
	if !w.ResponseWriter.Written() && w.report.Dropped() {
		w.Header().Set(AuditRecordedHeader, "false")
	}
}

func (w *auditReportWriter) WriteHeaderNow() {
	w.flag()
	w.ResponseWriter.WriteHeaderNow()
}

func (w *auditReportWriter) Write(data []byte) (int, error) {
	w.flag()
	return w.ResponseWriter.Write(data)
}

func (w *auditReportWriter) WriteString(s string) (int, error) {
	w.flag()
	return w.ResponseWriter.WriteString(s)
}
