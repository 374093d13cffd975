package identifier

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	_ "github.com/glebarez/go-sqlite"
	"github.com/himanishpuri/AdvertDNA/pkg/advertdna/storage"
	"github.com/himanishpuri/AdvertDNA/pkg/models"
	"github.com/himanishpuri/AdvertDNA/pkg/utils"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	sqldblogger "github.com/simukti/sqldb-logger"
)

// ErrNotFound is returned when no row exists for a canonical name.
var ErrNotFound = errors.New("identifier not found")

const (
	selectIdentifier = `SELECT id FROM advertisements WHERE name = ?`
	selectAll        = `SELECT id, name, duration_ms, total_hashes FROM advertisements ORDER BY created_at, name`
)

func init() {
	sqlx.BindDriver("sqlite", sqlx.QUESTION)
}

type Logger interface {
	Debugf(format string, args ...any)
	Errorf(format string, args ...any)
}

// Store reads canonical name -> identifier rows written by the fingerprint
// engine. It never writes.
type Store struct {
	db *sqlx.DB
}

// Open connects to the database described by conn. Queries are logged
// through log at debug level.
func Open(conn storage.Connection, log Logger) (*Store, error) {
	dsn, err := conn.DSN()
	if err != nil {
		return nil, err
	}

	driverName := "sqlite"
	if conn.Dialect() == storage.DialectPostgres {
		driverName = "postgres"
	} else if dir := filepath.Dir(conn.Database); dir != "." {
		if err := utils.MakeDir(dir); err != nil {
			return nil, fmt.Errorf("creating db dir: %w", err)
		}
	}

	raw, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s connection: %w", driverName, err)
	}
	if log != nil {
		raw = sqldblogger.OpenDriver(dsn, raw.Driver(), &sqlLogger{log: log},
			sqldblogger.WithMinimumLevel(sqldblogger.LevelDebug))
	}

	db := sqlx.NewDb(raw, driverName)
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping %s: %w", driverName, err)
	}
	return &Store{db: db}, nil
}

// NewStore wraps an existing connection.
func NewStore(db *sqlx.DB) *Store {
	return &Store{db: db}
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Lookup returns the identifier registered for canonicalName. The name is
// always bound as a parameter.
func (s *Store) Lookup(ctx context.Context, canonicalName string) (string, error) {
	var id string
	err := s.db.GetContext(ctx, &id, s.db.Rebind(selectIdentifier), canonicalName)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("looking up %q: %w", canonicalName, err)
	}
	return id, nil
}

// Resolve polls Lookup until a row appears, the attempts run out or ctx is
// done. The engine commits its row before Index returns, so more than one
// attempt is only needed when the store reads from a lagging replica.
func (s *Store) Resolve(ctx context.Context, canonicalName string, attempts int, interval time.Duration) (string, error) {
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for i := 0; i < attempts; i++ {
		id, err := s.Lookup(ctx, canonicalName)
		if err == nil {
			return id, nil
		}
		lastErr = err
		if i == attempts-1 {
			break
		}

		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(interval):
		}
	}
	return "", lastErr
}

// List returns every registered advertisement.
func (s *Store) List(ctx context.Context) ([]models.IdentifierRow, error) {
	rows := []models.IdentifierRow{}
	if err := s.db.SelectContext(ctx, &rows, selectAll); err != nil {
		return nil, fmt.Errorf("listing advertisements: %w", err)
	}
	return rows, nil
}

type sqlLogger struct {
	log Logger
}

func (l *sqlLogger) Log(_ context.Context, level sqldblogger.Level, msg string, data map[string]any) {
	switch level {
	case sqldblogger.LevelError:
		l.log.Errorf("%s - %v", msg, data)
	default:
		if query, ok := data["query"]; ok {
			l.log.Debugf("%s [%vms] -- %s", msg, data["duration"], query)
		} else {
			l.log.Debugf("%s [%vms]", msg, data["duration"])
		}
	}
}
