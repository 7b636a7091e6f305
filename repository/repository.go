package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "github.com/lib/pq"
)

var (
	ErrInsertFailed    = errors.New("insert failed")
	ErrSelectFailed    = errors.New("select failed")
	ErrScanFailed      = errors.New("scan failed")
	ErrUnmarshalFailed = errors.New("unmarshal failed")
	ErrMigrationFailed = errors.New("migration failed")
	ErrListenFailed    = errors.New("listen failed")
)

// DBConfig contains configuration for the database.
type DBConfig struct {
	ConnStr      string `yaml:"conn_str"`      // ConnStr is the connection string to the database.
	DatabaseName string `yaml:"database_name"` // DatabaseName is the name of the database.
	IsSSL        bool   `yaml:"is_ssl"`        // IsSSL is the flag that indicates if the connection should be encrypted.
}

func (cfg DBConfig) dsn() string {
	sslMode := "sslmode=disable"
	if cfg.IsSSL {
		sslMode = "sslmode=require"
	}
	return fmt.Sprintf("%s/%s?%s", cfg.ConnStr, cfg.DatabaseName, sslMode)
}

// DataBase provides PostgreSQL access for the federation journal and the logs.
type DataBase struct {
	inner *sql.DB
}

// Connect creates new connection to the repository and returns pointer to the DataBase.
func Connect(ctx context.Context, cfg DBConfig) (*DataBase, error) {
	db, err := sql.Open("postgres", cfg.dsn())
	if err != nil {
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return &DataBase{inner: db}, nil
}

// Disconnect disconnects from the database.
func (db DataBase) Disconnect(ctx context.Context) error {
	return db.inner.Close()
}

// Ping checks if the connection to the database is still alive.
func (db DataBase) Ping(ctx context.Context) error {
	return db.inner.PingContext(ctx)
}
