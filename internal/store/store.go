// Package store persists orders, tickets, inventory, promos and site config.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/lib/pq"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"

	"ms-checkout/internal/config"
	"ms-checkout/internal/logger"
	"ms-checkout/internal/models"
)

var (
	ErrNotFound = errors.New("not found")
	ErrConflict = errors.New("already exists")
)

type Store struct {
	db  *bun.DB
	log *logger.Logger
}

func New(db *bun.DB, log *logger.Logger) *Store {
	return &Store{db: db, log: log}
}

func (s *Store) DB() *bun.DB {
	return s.db
}

// Open connects to PostgreSQL with the configured pool and returns a bun handle.
func Open(cfg config.DatabaseConfig, log *logger.Logger) (*bun.DB, error) {
	log.LogDatabase("CONNECT", "postgresql", "Connecting to PostgreSQL")

	sqldb, err := sql.Open("postgres", cfg.DSN)
	if err != nil {
		log.Error("DATABASE", "Failed to open PostgreSQL connection: "+err.Error())
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	sqldb.SetMaxOpenConns(cfg.MaxOpenConns)
	sqldb.SetMaxIdleConns(cfg.MaxIdleConns)
	sqldb.SetConnMaxLifetime(cfg.MaxLifetime)

	const maxRetries = 5
	for i := 0; i < maxRetries; i++ {
		if err = sqldb.Ping(); err == nil {
			break
		}
		log.Error("DATABASE", fmt.Sprintf("Failed to connect to PostgreSQL (attempt %d/%d): %v", i+1, maxRetries, err))
		if i < maxRetries-1 {
			time.Sleep(2 * time.Second)
		}
	}
	if err != nil {
		sqldb.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	log.LogDatabase("SUCCESS", "postgresql", "PostgreSQL connection established")
	return bun.NewDB(sqldb, pgdialect.New()), nil
}

var schemaModels = []interface{}{
	(*models.Order)(nil),
	(*models.Ticket)(nil),
	(*models.OrderBottle)(nil),
	(*models.InventoryRow)(nil),
	(*models.PromoCode)(nil),
	(*models.SiteConfig)(nil),
}

// CreateSchema creates every table from the bun models. Postgres deployments
// use the SQL migrations instead.
func CreateSchema(ctx context.Context, db bun.IDB) error {
	for _, model := range schemaModels {
		if _, err := db.NewCreateTable().Model(model).IfNotExists().Exec(ctx); err != nil {
			return fmt.Errorf("create table for %T: %w", model, err)
		}
	}
	return nil
}

func notFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	return err
}
