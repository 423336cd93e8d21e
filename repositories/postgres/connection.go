package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq" // PostgreSQL driver
	"github.com/upb/andon-board/config"
	"go.uber.org/zap"
)

// DB wraps the sql.DB connection pool
type DB struct {
	*sql.DB
	logger *zap.Logger
}

// NewDB creates a new database connection pool
func NewDB(cfg config.DatabaseConfig, logger *zap.Logger) (*DB, error) {
	db, err := sql.Open("postgres", cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	logger.Info("database connection established",
		zap.String("connection", cfg.LogString()))

	return &DB{
		DB:     db,
		logger: logger,
	}, nil
}

// WrapDB wraps an existing pool, e.g. one opened by sqlmock in tests
func WrapDB(db *sql.DB, logger *zap.Logger) *DB {
	return &DB{DB: db, logger: logger}
}

// Close closes the database connection pool
func (db *DB) Close() error {
	db.logger.Info("closing database connection")
	return db.DB.Close()
}

// HealthCheck performs a health check on the database
func (db *DB) HealthCheck(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("database health check failed: %w", err)
	}

	var result int
	if err := db.QueryRowContext(ctx, "SELECT 1").Scan(&result); err != nil {
		return fmt.Errorf("database query check failed: %w", err)
	}

	return nil
}

// InitSchema creates the board tables. Every tenant-owned table carries
// tenant_id, and composite foreign keys keep children inside their parent's tenant.
func (db *DB) InitSchema(ctx context.Context) error {
	schema := `
		CREATE TABLE IF NOT EXISTS tenants (
			id UUID PRIMARY KEY,
			name VARCHAR(255) NOT NULL,
			slug VARCHAR(100) NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			CONSTRAINT tenants_slug_key UNIQUE (slug)
		);

		CREATE TABLE IF NOT EXISTS locations (
			id UUID PRIMARY KEY,
			tenant_id UUID NOT NULL REFERENCES tenants(id) ON DELETE CASCADE,
			name VARCHAR(255) NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			UNIQUE (tenant_id, id)
		);

		CREATE TABLE IF NOT EXISTS divisions (
			id UUID PRIMARY KEY,
			tenant_id UUID NOT NULL REFERENCES tenants(id) ON DELETE CASCADE,
			name VARCHAR(255) NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			UNIQUE (tenant_id, id)
		);

		CREATE TABLE IF NOT EXISTS machines (
			id UUID PRIMARY KEY,
			tenant_id UUID NOT NULL,
			location_id UUID NOT NULL,
			name VARCHAR(255) NOT NULL,
			code VARCHAR(100) NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			UNIQUE (tenant_id, id),
			CONSTRAINT machines_tenant_code_key UNIQUE (tenant_id, code),
			FOREIGN KEY (tenant_id, location_id) REFERENCES locations(tenant_id, id)
		);

		CREATE TABLE IF NOT EXISTS users (
			id UUID PRIMARY KEY,
			tenant_id UUID NOT NULL REFERENCES tenants(id) ON DELETE CASCADE,
			name VARCHAR(255) NOT NULL,
			email VARCHAR(255) NOT NULL,
			password_hash VARCHAR(255) NOT NULL,
			role VARCHAR(20) NOT NULL CHECK (role IN ('ADMIN', 'TEAM')),
			division_id UUID,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			CONSTRAINT users_email_key UNIQUE (email),
			FOREIGN KEY (tenant_id, division_id) REFERENCES divisions(tenant_id, id)
		);

		CREATE TABLE IF NOT EXISTS call_sequences (
			tenant_id UUID PRIMARY KEY REFERENCES tenants(id) ON DELETE CASCADE,
			next_number BIGINT NOT NULL
		);

		CREATE TABLE IF NOT EXISTS calls (
			id UUID PRIMARY KEY,
			number BIGINT NOT NULL,
			tenant_id UUID NOT NULL,
			machine_id UUID NOT NULL,
			target_division_id UUID,
			status VARCHAR(20) NOT NULL CHECK (status IN ('ACTIVE', 'IN_PROGRESS', 'RESOLVED')),
			created_at TIMESTAMPTZ NOT NULL,
			responded_at TIMESTAMPTZ,
			resolved_at TIMESTAMPTZ,
			responder_id UUID REFERENCES users(id),
			resolver_id UUID REFERENCES users(id),
			CONSTRAINT calls_tenant_number_key UNIQUE (tenant_id, number),
			FOREIGN KEY (tenant_id, machine_id) REFERENCES machines(tenant_id, id),
			FOREIGN KEY (tenant_id, target_division_id) REFERENCES divisions(tenant_id, id),
			CHECK ((status = 'ACTIVE') = (responded_at IS NULL)),
			CHECK ((status = 'RESOLVED') = (resolved_at IS NOT NULL))
		);

		CREATE UNIQUE INDEX IF NOT EXISTS calls_one_open_per_machine
			ON calls(machine_id) WHERE status <> 'RESOLVED';

		CREATE TABLE IF NOT EXISTS reports (
			id UUID PRIMARY KEY,
			call_id UUID NOT NULL REFERENCES calls(id),
			content TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL
		);

		CREATE TABLE IF NOT EXISTS rate_limit_events (
			scope_key VARCHAR(255) NOT NULL,
			occurred_at TIMESTAMPTZ NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_locations_tenant_id ON locations(tenant_id);
		CREATE INDEX IF NOT EXISTS idx_divisions_tenant_id ON divisions(tenant_id);
		CREATE INDEX IF NOT EXISTS idx_machines_location_id ON machines(location_id);
		CREATE INDEX IF NOT EXISTS idx_users_tenant_id ON users(tenant_id);
		CREATE INDEX IF NOT EXISTS idx_calls_tenant_created ON calls(tenant_id, created_at);
		CREATE INDEX IF NOT EXISTS idx_calls_tenant_status ON calls(tenant_id, status);
		CREATE INDEX IF NOT EXISTS idx_calls_target_division ON calls(target_division_id);
		CREATE INDEX IF NOT EXISTS idx_reports_call_id ON reports(call_id);
		CREATE INDEX IF NOT EXISTS idx_rate_limit_events_scope ON rate_limit_events(scope_key, occurred_at);
	`

	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}

	db.logger.Info("database schema initialized successfully")
	return nil
}

// InitEventsSchema creates the call_events table. It has no foreign keys so it
// can live in a separate events database.
func (db *DB) InitEventsSchema(ctx context.Context) error {
	schema := `
		CREATE TABLE IF NOT EXISTS call_events (
			id UUID PRIMARY KEY,
			tenant_id UUID NOT NULL,
			call_id UUID,
			actor_id UUID,
			action VARCHAR(50) NOT NULL,
			resource_type VARCHAR(50) NOT NULL,
			resource_id UUID,
			details JSONB,
			request_id VARCHAR(255),
			occurred_at TIMESTAMPTZ NOT NULL DEFAULT now()
		);
		CREATE INDEX IF NOT EXISTS idx_call_events_tenant ON call_events(tenant_id, occurred_at);
		CREATE INDEX IF NOT EXISTS idx_call_events_call ON call_events(call_id);
	`
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to initialize events schema: %w", err)
	}
	db.logger.Info("events schema initialized successfully")
	return nil
}
