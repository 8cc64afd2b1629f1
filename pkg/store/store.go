// SPDX-FileCopyrightText: Copyright 2025 Network School, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package store provides the relational persistence layer: registered OAuth
// apps, users, authorization codes and access token records. Postgres is the
// production backend; SQLite backs development and tests.
package store

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/pressly/goose/v3"
	"github.com/pressly/goose/v3/database"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

//go:embed migrations/*.sql
var embedMigrations embed.FS

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("not found")

// Store wraps the database handle shared by all services.
type Store struct {
	db *gorm.DB
}

// Open connects to the database described by databaseURL and applies all
// pending migrations. URLs with a postgres scheme use the Postgres driver;
// anything else is treated as a SQLite path.
func Open(ctx context.Context, databaseURL string) (*Store, error) {
	var dialector gorm.Dialector
	var dialect database.Dialect

	if strings.HasPrefix(databaseURL, "postgres://") || strings.HasPrefix(databaseURL, "postgresql://") {
		dialector = postgres.Open(databaseURL)
		dialect = database.DialectPostgres
	} else {
		dialector = sqlite.Open(databaseURL)
		dialect = database.DialectSQLite3
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to access database handle: %w", err)
	}

	if dialect == database.DialectSQLite3 {
		// SQLite allows a single writer and PRAGMAs apply per connection;
		// one pooled connection keeps both reliable.
		sqlDB.SetMaxOpenConns(1)
		// SQLite does not enforce foreign keys unless asked.
		if err := db.Exec("PRAGMA foreign_keys = ON").Error; err != nil {
			return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
		}
	}

	if err := runMigrations(ctx, sqlDB, dialect); err != nil {
		return nil, err
	}

	return &Store{db: db}, nil
}

// Close releases the underlying connection pool.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// runMigrations applies all pending migrations using goose. The DDL is
// written to be portable between Postgres and SQLite.
func runMigrations(ctx context.Context, db *sql.DB, dialect database.Dialect) error {
	migrationFS, err := fs.Sub(embedMigrations, "migrations")
	if err != nil {
		return fmt.Errorf("failed to create migrations filesystem: %w", err)
	}

	provider, err := goose.NewProvider(dialect, db, migrationFS)
	if err != nil {
		return fmt.Errorf("failed to create goose provider: %w", err)
	}

	if _, err := provider.Up(ctx); err != nil {
		return fmt.Errorf("failed to apply migrations: %w", err)
	}
	return nil
}

// wrapErr converts gorm's record-not-found into the package sentinel.
func wrapErr(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}
