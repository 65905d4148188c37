// Package db opens the catalog database.
package db

import (
	"net"
	"time"

	"hlsladder/config"

	"github.com/go-sql-driver/mysql"
)

// BuildDSN returns the MySQL data source name for the catalog. Times are
// parsed and stored as UTC.
func BuildDSN(cfg *config.Config) string {
	dsn := mysql.NewConfig()
	dsn.User = cfg.DBUser
	dsn.Passwd = cfg.DBPassword
	dsn.Net = "tcp"
	dsn.Addr = net.JoinHostPort(cfg.DBHost, cfg.DBPort)
	dsn.DBName = cfg.DBName
	dsn.ParseTime = true
	dsn.Loc = time.UTC
	dsn.Timeout = 10 * time.Second
	dsn.Params = map[string]string{"charset": "utf8mb4"}
	return dsn.FormatDSN()
}
