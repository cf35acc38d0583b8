package database

import (
	"net/url"
	"path/filepath"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite"

	"github.com/trezcool/masomo-grading/core"
	"github.com/trezcool/masomo-grading/fs"
)

// Database engines
const (
	EnginePostgres = "postgres"
	EngineSQLite   = "sqlite"
	EngineMemory   = "memory" // drafts are kept in memory, see dummydb
)

func dataSourceName(conf *core.Config) (string, error) {
	if conf.Database.DSN != "" {
		return conf.Database.DSN, nil
	}

	switch conf.Database.Engine {
	case EnginePostgres:
		sslMode := "require"
		if conf.Database.DisableTLS {
			sslMode = "disable"
		}
		q := make(url.Values)
		q.Set("sslmode", sslMode)
		q.Set("timezone", "utc")

		u := url.URL{
			Scheme:   EnginePostgres,
			User:     url.UserPassword(conf.Database.User, conf.Database.Password),
			Host:     conf.Database.Address(),
			Path:     conf.Database.Name,
			RawQuery: q.Encode(),
		}
		return u.String(), nil
	case EngineSQLite:
		path := filepath.Join(conf.WorkDir, conf.Database.Name+".db")
		return "file:" + path + "?_pragma=busy_timeout(5000)", nil
	}
	return "", errors.Errorf("unsupported database engine %q", conf.Database.Engine)
}

// Open connects to the postgres or sqlite database described by conf and waits for it to be ready.
func Open(conf *core.Config) (*sqlx.DB, error) {
	dsn, err := dataSourceName(conf)
	if err != nil {
		return nil, err
	}

	db, err := sqlx.Open(conf.Database.Engine, dsn)
	if err != nil {
		return nil, errors.Wrap(err, "opening database")
	}
	if conf.Database.Engine == EngineSQLite {
		// sqlite allows a single writer; in-memory databases also live and die with their connection
		db.SetMaxOpenConns(1)
	}

	if err = ping(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

// ping waits for the database to be ready. Waits 100ms longer between each attempt.
func ping(db *sqlx.DB) error {
	var err error
	maxAttempts := 30
	for attempts := 1; attempts <= maxAttempts; attempts++ {
		err = db.Ping()
		if err == nil {
			break
		}
		time.Sleep(time.Duration(attempts) * 100 * time.Millisecond)
	}

	if err != nil {
		return errors.Wrap(err, "DB ping timeout")
	}
	return nil
}

// MigrationsDir is where the migrations are embedded in appfs.FS.
const MigrationsDir = "migrations"

func dialect(db *sqlx.DB) string {
	if db.DriverName() == EngineSQLite {
		return "sqlite3"
	}
	return db.DriverName()
}

// PrepareMigrations points goose at the embedded migrations and the SQL dialect of db.
func PrepareMigrations(db *sqlx.DB) error {
	goose.SetBaseFS(appfs.FS)
	return goose.SetDialect(dialect(db))
}

// Migrate applies the embedded migrations that are not applied yet.
func Migrate(db *sqlx.DB) error {
	if err := PrepareMigrations(db); err != nil {
		return errors.Wrap(err, "migrating database")
	}
	if err := goose.Up(db.DB, MigrationsDir); err != nil {
		return errors.Wrap(err, "migrating database")
	}
	return nil
}
