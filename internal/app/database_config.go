package app

import (
	"strings"

	"github.com/charlesng35/adminhub/internal/database"
)

// ConnectionConfig resolves the database section into driver options. Host
// based settings apply only when the matching block is enabled.
func (c DatabaseConfig) ConnectionConfig() database.Config {
	cfg := database.Config{
		Driver: strings.ToLower(strings.TrimSpace(c.Driver)),
		Path:   c.Path,
		DSN:    strings.TrimSpace(c.DSN),

		MaxOpenConns:       c.Pool.MaxOpenConns,
		MaxIdleConns:       c.Pool.MaxIdleConns,
		ConnMaxLifetime:    c.Pool.ConnMaxLifetime,
		SlowQueryThreshold: c.Pool.SlowQueryThreshold,
	}

	var host DBAuthConfig
	switch database.NormaliseDriver(cfg.Driver) {
	case database.DriverPostgres:
		host = c.Postgres
	case database.DriverMySQL:
		host = c.MySQL
	}
	if host.Enabled {
		cfg.Host = host.Host
		cfg.Port = host.Port
		cfg.Name = host.Database
		cfg.User = host.Username
		cfg.Password = host.Password
	}
	return cfg
}
