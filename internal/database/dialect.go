package database

import (
	"database/sql"
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	mysqldriver "github.com/go-sql-driver/mysql"
	"github.com/google/uuid"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// Supported driver names after normalisation.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverMySQL    = "mysql"
)

// NormaliseDriver maps accepted aliases onto the canonical driver name. An
// empty driver selects SQLite.
func NormaliseDriver(driver string) string {
	switch d := strings.ToLower(strings.TrimSpace(driver)); d {
	case "", "sqlite3":
		return DriverSQLite
	case "postgresql", "pg":
		return DriverPostgres
	case "mariadb":
		return DriverMySQL
	default:
		return d
	}
}

func dialectorFor(cfg Config) (gorm.Dialector, string, error) {
	driver := NormaliseDriver(cfg.Driver)

	var (
		dsn string
		err error
	)
	switch driver {
	case DriverSQLite:
		if dsn, err = sqliteDSN(cfg); err != nil {
			return nil, driver, err
		}
		return sqlite.Open(dsn), driver, nil
	case DriverPostgres:
		if dsn, err = postgresDSN(cfg); err != nil {
			return nil, driver, err
		}
		return postgres.Open(dsn), driver, nil
	case DriverMySQL:
		if dsn, err = mysqlDSN(cfg); err != nil {
			return nil, driver, err
		}
		return mysql.Open(dsn), driver, nil
	default:
		return nil, driver, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}
}

func sqliteDSN(cfg Config) (string, error) {
	if dsn := strings.TrimSpace(cfg.DSN); dsn != "" {
		return dsn, nil
	}

	path := strings.TrimSpace(cfg.Path)
	if path == "" || strings.EqualFold(path, ":memory:") {
		return MemoryDSN(), nil
	}

	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return "", fmt.Errorf("create sqlite directory: %w", err)
		}
	}
	return fmt.Sprintf("file:%s?_foreign_keys=1&_journal_mode=WAL&_busy_timeout=5000", filepath.ToSlash(path)), nil
}

// MemoryDSN returns a private shared-cache in-memory SQLite database; separate
// calls never see each other's rows.
func MemoryDSN() string {
	return fmt.Sprintf("file:%s?mode=memory&cache=shared&_foreign_keys=1", uuid.NewString())
}

func postgresDSN(cfg Config) (string, error) {
	if dsn := strings.TrimSpace(cfg.DSN); dsn != "" {
		return dsn, nil
	}
	if cfg.User == "" || cfg.Name == "" {
		return "", errors.New("postgres configuration requires user and database name")
	}

	params := map[string]string{
		"host":    valueOr(cfg.Host, "localhost"),
		"port":    strconv.Itoa(portOr(cfg.Port, 5432)),
		"user":    cfg.User,
		"dbname":  cfg.Name,
		"sslmode": "disable",
	}
	if cfg.Password != "" {
		params["password"] = cfg.Password
	}
	for key, value := range cfg.Options {
		params[key] = value
	}

	// Connection keywords first, in libpq order, then the remaining options sorted.
	order := []string{"host", "port", "user", "dbname", "password"}
	seen := make(map[string]bool, len(order))
	parts := make([]string, 0, len(params))
	for _, key := range order {
		seen[key] = true
		if value, ok := params[key]; ok {
			parts = append(parts, key+"="+quoteKeyword(value))
		}
	}
	rest := make([]string, 0, len(params))
	for key := range params {
		if !seen[key] {
			rest = append(rest, key)
		}
	}
	sort.Strings(rest)
	for _, key := range rest {
		parts = append(parts, key+"="+quoteKeyword(params[key]))
	}

	return strings.Join(parts, " "), nil
}

// quoteKeyword quotes a libpq keyword value when it is empty or contains
// whitespace, quotes or backslashes.
func quoteKeyword(value string) string {
	if value != "" && !strings.ContainsAny(value, " \t\n'\\") {
		return value
	}
	escaped := strings.NewReplacer(`\`, `\\`, `'`, `\'`).Replace(value)
	return "'" + escaped + "'"
}

func mysqlDSN(cfg Config) (string, error) {
	if dsn := strings.TrimSpace(cfg.DSN); dsn != "" {
		return dsn, nil
	}
	if cfg.User == "" || cfg.Name == "" {
		return "", errors.New("mysql configuration requires user and database name")
	}

	mc := mysqldriver.NewConfig()
	mc.User = cfg.User
	mc.Passwd = cfg.Password
	mc.Net = "tcp"
	mc.Addr = net.JoinHostPort(valueOr(cfg.Host, "127.0.0.1"), strconv.Itoa(portOr(cfg.Port, 3306)))
	mc.DBName = cfg.Name
	mc.ParseTime = true
	mc.Params = map[string]string{"charset": "utf8mb4"}
	for key, value := range cfg.Options {
		mc.Params[key] = value
	}

	return mc.FormatDSN(), nil
}

func enableForeignKeys(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	if _, err := sqlDB.Exec("PRAGMA foreign_keys = ON"); err != nil && !errors.Is(err, sql.ErrConnDone) {
		return err
	}
	return nil
}

func valueOr(value, fallback string) string {
	if v := strings.TrimSpace(value); v != "" {
		return v
	}
	return fallback
}

func portOr(port, fallback int) int {
	if port > 0 {
		return port
	}
	return fallback
}
