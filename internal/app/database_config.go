package app

import (
	"strings"

	"github.com/charlesng35/mentorlink/internal/database"
)

// ConnectionConfig converts DatabaseConfig into database.Open parameters, picking the host block
// that matches the driver.
func (c DatabaseConfig) ConnectionConfig() database.Config {
	dbCfg := database.Config{
		Driver:          strings.ToLower(strings.TrimSpace(c.Driver)),
		Path:            strings.TrimSpace(c.Path),
		DSN:             strings.TrimSpace(c.DSN),
		MaxOpenConns:    c.MaxOpenConns,
		MaxIdleConns:    c.MaxIdleConns,
		ConnMaxLifetime: c.ConnMaxLifetime,
		LogLevel:        c.LogLevel,
		SlowThreshold:   c.SlowQuery,
	}

	var block DBAuthConfig
	switch dbCfg.Driver {
	case "", "sqlite", "sqlite3":
		dbCfg.Driver = "sqlite"
		return dbCfg
	case "postgres", "postgresql":
		dbCfg.Driver = "postgres"
		block = c.Postgres
	case "mysql", "mariadb":
		dbCfg.Driver = "mysql"
		block = c.MySQL
	default:
		// unsupported drivers surface from database.Open
		return dbCfg
	}

	dbCfg.Host = strings.TrimSpace(block.Host)
	dbCfg.Port = block.Port
	dbCfg.Name = strings.TrimSpace(block.Database)
	dbCfg.User = strings.TrimSpace(block.Username)
	dbCfg.Password = block.Password
	return dbCfg
}
