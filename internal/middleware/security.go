package middleware

import (
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/unrolled/secure"

	apperrors "github.com/charlesng35/adminhub/pkg/errors"
	"github.com/charlesng35/adminhub/pkg/response"
)

// DefaultContentSecurityPolicy restricts resources to same origin.
const DefaultContentSecurityPolicy = "default-src 'self'"

// SecurityOptions toggles transport-level hardening.
type SecurityOptions struct {
	SSLRedirect bool
	HSTSSeconds int64
	// AllowedHosts rejects requests for any other Host with 400. Empty allows all.
	AllowedHosts []string
	IsDev        bool
}

// SecurityHeaders applies hardening response headers against clickjacking and
// MIME sniffing, and optionally enforces HTTPS and a host allow-list. Responses
// are marked no-store because they carry account and audit data.
func SecurityHeaders(opts SecurityOptions) gin.HandlerFunc {
	hsts := opts.HSTSSeconds
	if hsts == 0 {
		hsts = 31536000
	}

	sec := secure.New(secure.Options{
		FrameDeny:             true,
		ContentTypeNosniff:    true,
		BrowserXssFilter:      true,
		ContentSecurityPolicy: DefaultContentSecurityPolicy,
		ReferrerPolicy:        "no-referrer",
		PermissionsPolicy:     "geolocation=(), microphone=(), camera=()",
		STSSeconds:            hsts,
		STSIncludeSubdomains:  true,
		ForceSTSHeader:        true,
		SSLRedirect:           opts.SSLRedirect,
		SSLProxyHeaders:       map[string]string{"X-Forwarded-Proto": "https"},
		AllowedHosts:          opts.AllowedHosts,
		IsDevelopment:         opts.IsDev,
	})
	sec.SetBadHostHandler(http.HandlerFunc(rejectHost))

	return func(c *gin.Context) {
		if err := sec.Process(c.Writer, c.Request); err != nil {
			c.Abort()
			return
		}
		c.Header("Cache-Control", "no-store")
		c.Next()
	}
}

// rejectHost answers a request for a host outside the allow-list with the
// standard 400 error envelope.
func rejectHost(w http.ResponseWriter, _ *http.Request) {
	appErr := apperrors.NewBadRequest("Invalid host")
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(appErr.StatusCode)
	_ = json.NewEncoder(w).Encode(response.Response{
		Error: &response.ErrorInfo{Code: appErr.Code, Message: appErr.Message},
	})
}
