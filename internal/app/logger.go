package app

import (
	"github.com/charlesng35/adminhub/pkg/logger"
)

// ConfigureLogging installs the global logger for the server section. Every
// entry carries service=adminhub; gin_debug switches to development output.
func ConfigureLogging(server ServerConfig) error {
	return logger.Init(logger.Config{
		Level:       server.LogLevel,
		Format:      server.LogFormat,
		Development: server.GinDebug,
		Fields:      map[string]string{"service": "adminhub"},
	})
}
