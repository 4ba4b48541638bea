package database

import (
	"database/sql"
	"fmt"
	"net/url"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite"

	"github.com/William-Pardo/tudojang-sub002/core"
	appfs "github.com/William-Pardo/tudojang-sub002/fs"
)

const migrationsDir = "migrations"

// drivers & goose dialects by engine
var (
	drivers  = map[string]string{core.EnginePostgres: "postgres", core.EngineSQLite: "sqlite"}
	dialects = map[string]string{core.EnginePostgres: "postgres", core.EngineSQLite: "sqlite3"}
)

func init() {
	// modernc registers itself as "sqlite", which sqlx does not know
	sqlx.BindDriver(drivers[core.EngineSQLite], sqlx.QUESTION)
}

func postgresURL(dbName string, admin bool, conf *core.Config) string {
	user := url.UserPassword(conf.Database.User, conf.Database.Password)
	if admin && conf.Database.AdminUser != "" {
		user = url.UserPassword(conf.Database.AdminUser, conf.Database.AdminPassword)
	}

	sslMode := "require"
	if conf.Database.DisableTLS {
		sslMode = "disable"
	}
	q := make(url.Values)
	q.Set("sslmode", sslMode)
	q.Set("timezone", "utc")

	u := url.URL{
		Scheme:   "postgres",
		User:     user,
		Host:     conf.Database.Address(),
		Path:     dbName,
		RawQuery: q.Encode(),
	}
	return u.String()
}

// Open connects to the SQL database of the configured engine.
// For sqlite, Database.Name is the file path (or ":memory:").
func Open(conf *core.Config) (*sqlx.DB, error) {
	switch conf.Database.Engine {
	case core.EnginePostgres:
		return sqlx.Open(drivers[core.EnginePostgres], postgresURL(conf.Database.Name, false, conf))
	case core.EngineSQLite:
		db, err := sqlx.Open(drivers[core.EngineSQLite], conf.Database.Name)
		if err != nil {
			return nil, err
		}
		// one connection: sqlite serialises writes & ":memory:" is per connection
		db.SetMaxOpenConns(1)
		db.SetConnMaxLifetime(0)
		if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
			_ = db.Close()
			return nil, errors.Wrap(err, "enabling foreign keys")
		}
		return db, nil
	}
	return nil, core.NewConfigurationError("dbEngine", fmt.Sprintf("%q is not a SQL engine", conf.Database.Engine))
}

// ping waits for the database to be ready. Waits 100ms longer between each attempt.
func ping(db *sql.DB) error {
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

func exists(db *sql.DB, query string, args ...interface{}) (bool, error) {
	var found bool
	err := db.QueryRow(query, args...).Scan(&found)
	if err == sql.ErrNoRows {
		return false, nil
	}
	return found, err
}

func createAppUser(db *sql.DB, conf *core.Config) error {
	if conf.Database.User == "" {
		return nil
	}

	found, err := exists(db, "SELECT true FROM pg_roles WHERE rolname = $1", conf.Database.User)
	if err != nil {
		return errors.Wrap(err, "checking app user")
	}
	if !found {
		// identifiers & passwords cannot be bound as parameters here
		q := fmt.Sprintf("CREATE USER %s CREATEDB ENCRYPTED PASSWORD '%s'", conf.Database.User, conf.Database.Password)
		if _, err = db.Exec(q); err != nil {
			return errors.Wrap(err, "creating app user")
		}
	}
	return nil
}

func createDB(db *sql.DB, conf *core.Config) error {
	found, err := exists(db, "SELECT true FROM pg_database WHERE datname = $1", conf.Database.Name)
	if err != nil {
		return errors.Wrap(err, "checking DB")
	}
	if !found {
		if _, err = db.Exec(fmt.Sprintf("CREATE DATABASE %s", conf.Database.Name)); err != nil {
			return errors.Wrap(err, "creating database")
		}
	}
	return nil
}

// CreateIfNotExist creates the postgres app user & database. Other engines need no setup.
func CreateIfNotExist(conf *core.Config) error {
	if conf.Database.Engine != core.EnginePostgres {
		return nil
	}

	// connect as admin
	db, err := sql.Open(drivers[core.EnginePostgres], postgresURL("postgres", true, conf))
	if err != nil {
		return errors.Wrap(err, "opening database")
	}
	defer func() { _ = db.Close() }()

	if err = ping(db); err != nil {
		return errors.Wrap(err, "pinging database")
	}
	if err = createAppUser(db, conf); err != nil {
		return err
	}

	// create DB as app user
	appDB, err := sql.Open(drivers[core.EnginePostgres], postgresURL("postgres", false, conf))
	if err != nil {
		return errors.Wrap(err, "opening database")
	}
	defer func() { _ = appDB.Close() }()
	return createDB(appDB, conf)
}

func prepareGoose(engine string) error {
	dialect, ok := dialects[engine]
	if !ok {
		return core.NewConfigurationError("dbEngine", fmt.Sprintf("%q has no migrations", engine))
	}
	goose.SetBaseFS(appfs.FS)
	return goose.SetDialect(dialect)
}

// Migrate applies all pending migrations.
func Migrate(db *sqlx.DB, engine string) error {
	return RunMigration(db, engine, "up")
}

// RunMigration runs a goose command (up, down, status, ...) on the embedded migrations.
func RunMigration(db *sqlx.DB, engine, command string, args ...string) error {
	if err := prepareGoose(engine); err != nil {
		return err
	}
	if err := goose.Run(command, db.DB, migrationsDir, args...); err != nil {
		return errors.Wrapf(err, "migrating database (%s)", command)
	}
	return nil
}
