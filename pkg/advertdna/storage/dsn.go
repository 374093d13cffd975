package storage

import (
	"fmt"
	"net"
	"net/url"
	"strings"
)

// Supported database types.
const (
	DialectPostgres = "postgres"
	DialectSQLite   = "sqlite"
)

// Connection carries the parameters shared by the engine and the identifier
// store. For SQLite, Database is a file path.
type Connection struct {
	Type     string
	Host     string
	Port     string
	User     string
	Password string
	Database string
	SSLMode  string
}

// Dialect returns the normalised database type, defaulting to SQLite.
func (c Connection) Dialect() string {
	switch strings.ToLower(strings.TrimSpace(c.Type)) {
	case "postgres", "postgresql", "pg":
		return DialectPostgres
	default:
		return DialectSQLite
	}
}

// DSN builds a driver connection string for the configured dialect. Postgres
// gets a URL so credentials are escaped.
func (c Connection) DSN() (string, error) {
	switch c.Dialect() {
	case DialectPostgres:
		port := c.Port
		if port == "" {
			port = "5432"
		}
		sslmode := c.SSLMode
		if sslmode == "" {
			sslmode = "disable"
		}
		if c.Database == "" {
			return "", fmt.Errorf("postgres connection requires a database name")
		}
		u := url.URL{
			Scheme:   "postgres",
			Host:     net.JoinHostPort(c.Host, port),
			Path:     "/" + c.Database,
			RawQuery: url.Values{"sslmode": {sslmode}}.Encode(),
		}
		switch {
		case c.User != "" && c.Password != "":
			u.User = url.UserPassword(c.User, c.Password)
		case c.User != "":
			u.User = url.User(c.User)
		}
		return u.String(), nil
	default:
		if c.Database == "" {
			return "", fmt.Errorf("sqlite connection requires a database path")
		}
		q := url.Values{}
		q.Add("_pragma", "busy_timeout(5000)")
		q.Add("_pragma", "journal_mode(WAL)")
		return c.Database + "?" + q.Encode(), nil
	}
}
