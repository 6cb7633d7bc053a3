package db

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"net/url"
	"os"
	"path/filepath"

	"github.com/pressly/goose/v3"

	_ "github.com/tursodatabase/libsql-client-go/libsql"
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrations embed.FS

// Config selects the storage backend, a non-empty Url opens a remote libsql database
// instead of the local sqlite File.
type Config struct {
	File      string `json:"file"`
	Url       string `json:"url"`
	AuthToken string `json:"auth_token"`
}

func wrapOpenDB(err error) error {
	return fmt.Errorf("open db: %w", err)
}

// Open opens the configured database and applies all migrations.
func Open(ctx context.Context, config Config) (*sql.DB, error) {
	var (
		dbtx *sql.DB
		err  error
	)
	if config.Url != "" {
		dbtx, err = openLibsql(config.Url, config.AuthToken)
	} else {
		dbtx, err = OpenSqlite(config.File)
	}
	if err != nil {
		return nil, err
	}
	err = Migrate(ctx, dbtx)
	if err != nil {
		dbtx.Close()
		return nil, err
	}
	return dbtx, nil
}

// OpenSqlite opens a local sqlite database, `path` may be ":memory:".
func OpenSqlite(path string) (*sql.DB, error) {
	if path == "" {
		return nil, wrapOpenDB(fmt.Errorf("a path was not specified"))
	}
	if path != ":memory:" {
		err := os.MkdirAll(filepath.Dir(path), 0777)
		if err != nil {
			return nil, wrapOpenDB(err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, wrapOpenDB(err)
	}

	// see this stackoverflow post for information on why the following
	// lines exist: https://stackoverflow.com/questions/35804884/sqlite-concurrent-writing-performance
	db.SetMaxOpenConns(1)
	_, err = db.Exec("PRAGMA journal_mode=WAL")
	if err != nil {
		return nil, wrapOpenDB(err)
	}
	_, err = db.Exec("PRAGMA foreign_keys=ON")
	if err != nil {
		return nil, wrapOpenDB(err)
	}

	return db, nil
}

func openLibsql(rawUrl, authToken string) (*sql.DB, error) {
	dbUrl, err := url.Parse(rawUrl)
	if err != nil {
		return nil, wrapOpenDB(err)
	}
	if authToken != "" {
		query := dbUrl.Query()
		query.Set("authToken", authToken)
		dbUrl.RawQuery = query.Encode()
	}
	db, err := sql.Open("libsql", dbUrl.String())
	if err != nil {
		return nil, wrapOpenDB(err)
	}
	return db, nil
}

// Migrate brings the schema up to date using the embedded goose migrations.
func Migrate(ctx context.Context, dbtx *sql.DB) error {
	goose.SetBaseFS(migrations)
	goose.SetLogger(goose.NopLogger())
	err := goose.SetDialect("sqlite3")
	if err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	err = goose.UpContext(ctx, dbtx, "migrations")
	if err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}
