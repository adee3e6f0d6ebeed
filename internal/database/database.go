package database

import (
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/01moynul/projecthub-golang/internal/config"
)

// OpenDB initializes the connection pool described by cfg, verifies it with a
// ping and applies the schema bootstrap.
func OpenDB(cfg config.DatabaseConfig, log *zap.Logger) (*sqlx.DB, error) {
	// 1. --- Open the pool ---
	db, err := sqlx.Open(cfg.Driver, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("opening %s database: %w", cfg.Driver, err)
	}

	// 2. --- Configure the pool ---
	if cfg.Driver == DriverSQLite {
		// Each sqlite connection to ":memory:" is a separate database.
		db.SetMaxOpenConns(1)
	} else {
		db.SetMaxOpenConns(orDefault(cfg.MaxOpenConns, 25))
		db.SetMaxIdleConns(orDefault(cfg.MaxIdleConns, 25))
		lifetime := cfg.ConnMaxLifetime
		if lifetime <= 0 {
			lifetime = 5 * time.Minute
		}
		db.SetConnMaxLifetime(lifetime)
	}

	// 3. --- Ping ---
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging %s database: %w", cfg.Driver, err)
	}

	// 4. --- Schema ---
	if err := ApplySchema(db, cfg.Driver); err != nil {
		db.Close()
		return nil, err
	}

	log.Info("database connection pool established", zap.String("driver", cfg.Driver))
	return db, nil
}

func orDefault(v, def int) int {
	if v > 0 {
		return v
	}
	return def
}
