package database

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq" // PostgreSQL driver

	"github.com/vaidashi/phone-order-api/internal/config"
	"github.com/vaidashi/phone-order-api/pkg/logger"
)

// Database represents a database connection
type Database struct {
	DB     *sqlx.DB
	logger logger.Logger
}

// New creates a new database connection
func New(cfg *config.Config, logger logger.Logger) (*Database, error) {
	db, err := sqlx.Connect("postgres", cfg.GetDBConnString())

	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	logger.Info("Connected to database", "host", cfg.DB.Host, "database", cfg.DB.Name)

	return &Database{
		DB:     db,
		logger: logger,
	}, nil
}

// Wrap builds a Database around an existing handle
func Wrap(db *sqlx.DB, logger logger.Logger) *Database {
	return &Database{DB: db, logger: logger}
}

// Ping checks the database connection
func (d *Database) Ping(ctx context.Context) error {
	return d.DB.PingContext(ctx)
}

// Close closes the database connection
func (d *Database) Close() error {
	return d.DB.Close()
}

// BeginTx starts a transaction
func (d *Database) BeginTx(ctx context.Context) (*sqlx.Tx, error) {
	tx, err := d.DB.BeginTxx(ctx, nil)

	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	return tx, nil
}

// RunMigrations creates the schema if it does not exist
func (d *Database) RunMigrations() error {
	_, err := d.DB.Exec(schema)

	if err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	d.logger.Info("Database migrations completed successfully")
	return nil
}

const schema = `
CREATE TABLE IF NOT EXISTS orders (
	id BIGSERIAL PRIMARY KEY,
	order_type VARCHAR(20) NOT NULL,

	customer_name VARCHAR(100) NOT NULL,
	customer_phone VARCHAR(20) NOT NULL,
	customer_email VARCHAR(255),
	customer_language VARCHAR(10) NOT NULL DEFAULT 'en',

	delivery_address VARCHAR(255),
	city VARCHAR(50),
	state VARCHAR(50),
	zip_code VARCHAR(10),
	delivery_instructions TEXT,
	pickup_time VARCHAR(50),

	items JSONB NOT NULL,
	special_instructions TEXT,

	subtotal_cents BIGINT NOT NULL,
	tax_cents BIGINT NOT NULL,
	delivery_fee_cents BIGINT NOT NULL DEFAULT 0,
	tip_cents BIGINT NOT NULL DEFAULT 0,
	total_amount_cents BIGINT NOT NULL,

	payment_status VARCHAR(20) NOT NULL DEFAULT 'pending',
	payment_method VARCHAR(20),
	payment_intent_id VARCHAR(100),
	payment_link_url VARCHAR(500),
	payment_link_sent BOOLEAN NOT NULL DEFAULT FALSE,

	status VARCHAR(30) NOT NULL DEFAULT 'pending',

	call_id VARCHAR(100),
	call_transcription TEXT,
	call_recording_url VARCHAR(500),
	call_duration_seconds INT,
	handled_by_ai BOOLEAN NOT NULL DEFAULT TRUE,
	transferred_to_human BOOLEAN NOT NULL DEFAULT FALSE,
	transfer_reason TEXT,

	sent_to_kitchen BOOLEAN NOT NULL DEFAULT FALSE,
	sent_to_kitchen_at TIMESTAMPTZ,
	estimated_ready_time TIMESTAMPTZ,

	exported_to_ledger BOOLEAN NOT NULL DEFAULT FALSE,
	exported_at TIMESTAMPTZ,

	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	completed_at TIMESTAMPTZ
);

CREATE INDEX IF NOT EXISTS idx_orders_status ON orders(status);
CREATE INDEX IF NOT EXISTS idx_orders_customer_phone ON orders(customer_phone);
CREATE INDEX IF NOT EXISTS idx_orders_call_id ON orders(call_id);
CREATE INDEX IF NOT EXISTS idx_orders_created_at ON orders(created_at);

CREATE UNIQUE INDEX IF NOT EXISTS orders_active_call_id_idx ON orders(call_id)
	WHERE call_id IS NOT NULL AND status NOT IN ('delivered', 'picked_up', 'cancelled', 'failed');

CREATE TABLE IF NOT EXISTS call_logs (
	id BIGSERIAL PRIMARY KEY,
	call_id VARCHAR(100) NOT NULL UNIQUE,
	caller_phone VARCHAR(20) NOT NULL,
	caller_language VARCHAR(10) NOT NULL DEFAULT 'en',
	call_started_at TIMESTAMPTZ NOT NULL,
	call_ended_at TIMESTAMPTZ,
	duration_seconds INT,
	recording_url VARCHAR(500),
	transcription TEXT,
	wanted_to_order BOOLEAN NOT NULL DEFAULT FALSE,
	order_id BIGINT,
	outcome VARCHAR(30) NOT NULL DEFAULT 'no_order',
	handled_by_ai BOOLEAN NOT NULL DEFAULT TRUE,
	transferred_to_human BOOLEAN NOT NULL DEFAULT FALSE,
	transfer_reason TEXT,
	customer_message TEXT,
	exported_to_ledger BOOLEAN NOT NULL DEFAULT FALSE,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_call_logs_caller_phone ON call_logs(caller_phone);

CREATE TABLE IF NOT EXISTS outbox_messages (
	id BIGSERIAL PRIMARY KEY,
	aggregate_type VARCHAR(50) NOT NULL,
	aggregate_id VARCHAR(100) NOT NULL,
	event_type VARCHAR(50) NOT NULL,
	payload JSONB NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	processed_at TIMESTAMPTZ,
	next_attempt_at TIMESTAMPTZ,
	processing_attempts INT NOT NULL DEFAULT 0,
	last_error TEXT,
	status VARCHAR(20) NOT NULL DEFAULT 'pending'
);

CREATE INDEX IF NOT EXISTS idx_outbox_status ON outbox_messages(status, next_attempt_at);
CREATE INDEX IF NOT EXISTS idx_outbox_aggregate ON outbox_messages(aggregate_type, aggregate_id);

CREATE TABLE IF NOT EXISTS dead_letter_messages (
	id BIGSERIAL PRIMARY KEY,
	original_message_id BIGINT NOT NULL,
	aggregate_type VARCHAR(50) NOT NULL,
	aggregate_id VARCHAR(100) NOT NULL,
	event_type VARCHAR(50) NOT NULL,
	payload JSONB NOT NULL,
	error_message TEXT NOT NULL,
	failure_reason TEXT NOT NULL,
	attempts INT NOT NULL DEFAULT 0,
	retry_count INT NOT NULL DEFAULT 0,
	last_retry_at TIMESTAMPTZ,
	status VARCHAR(20) NOT NULL DEFAULT 'pending',
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	resolved_at TIMESTAMPTZ
);

CREATE INDEX IF NOT EXISTS idx_dead_letter_status ON dead_letter_messages(status);

CREATE TABLE IF NOT EXISTS payment_events (
	event_id VARCHAR(255) PRIMARY KEY,
	event_type VARCHAR(100) NOT NULL,
	order_id BIGINT,
	processed_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
`
