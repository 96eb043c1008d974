package database

import (
	"fmt"
	"log/slog"
)

func (db *DB) RunMigrations() error {
	slog.Info("Running database migrations...")

	migrations := []string{
		createUsersTable,
		createBookingsTable,
		createSeatLocksTable,
		createSeatLockSeatsTable,
		createBookingSeatsTable,
		createTransactionLogsTable,
		createNotificationLogsTable,
		createBookingIndexes,
		createLedgerIndexes,
		seedSampleUsers,
	}

	for i, migration := range migrations {
		slog.Info("Running migration", "step", i+1)
		if _, err := db.Exec(migration); err != nil {
			return fmt.Errorf("migration %d failed: %w", i+1, err)
		}
	}

	slog.Info("All migrations completed successfully")
	return nil
}

const createUsersTable = `
CREATE TABLE IF NOT EXISTS users (
    id VARCHAR(64) PRIMARY KEY,
    email VARCHAR(255) UNIQUE NOT NULL,
    password_hash VARCHAR(255) NOT NULL,
    first_name VARCHAR(100) NOT NULL,
    last_name VARCHAR(100) NOT NULL,
    phone_number VARCHAR(32),
    is_active BOOLEAN NOT NULL DEFAULT TRUE,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);`

const createBookingsTable = `
CREATE TABLE IF NOT EXISTS bookings (
    id VARCHAR(64) PRIMARY KEY,
    user_id VARCHAR(64) NOT NULL REFERENCES users(id),
    showtime_id VARCHAR(64) NOT NULL,
    seats TEXT[] NOT NULL,
    total_amount DECIMAL(10,2) NOT NULL DEFAULT 0,
    status VARCHAR(20) NOT NULL DEFAULT 'pending_payment',
    lock_id VARCHAR(64),
    lock_expires_at TIMESTAMPTZ,
    payment_transaction_id VARCHAR(64),
    confirmed_at TIMESTAMPTZ,
    cancelled_at TIMESTAMPTZ,
    cancellation_reason VARCHAR(100),
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),

    CHECK (array_length(seats, 1) >= 1),
    CHECK (total_amount >= 0),
    CHECK (status IN ('pending_payment', 'confirmed', 'cancelled', 'refund_pending', 'refunded'))
);`

const createSeatLocksTable = `
CREATE TABLE IF NOT EXISTS seat_locks (
    id VARCHAR(64) PRIMARY KEY,
    showtime_id VARCHAR(64) NOT NULL,
    booking_id VARCHAR(64) NOT NULL,
    seats TEXT[] NOT NULL,
    expires_at TIMESTAMPTZ NOT NULL,
    released_at TIMESTAMPTZ,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS seat_locks_sweep_idx
ON seat_locks (expires_at) WHERE released_at IS NULL;`

const createSeatLockSeatsTable = `
CREATE TABLE IF NOT EXISTS seat_lock_seats (
    lock_id VARCHAR(64) NOT NULL REFERENCES seat_locks(id) ON DELETE CASCADE,
    showtime_id VARCHAR(64) NOT NULL,
    seat_id VARCHAR(32) NOT NULL,

    UNIQUE (showtime_id, seat_id)
);`

const createBookingSeatsTable = `
CREATE TABLE IF NOT EXISTS booking_seats (
    booking_id VARCHAR(64) NOT NULL REFERENCES bookings(id) ON DELETE CASCADE,
    showtime_id VARCHAR(64) NOT NULL,
    seat_id VARCHAR(32) NOT NULL,

    UNIQUE (showtime_id, seat_id)
);`

const createTransactionLogsTable = `
CREATE TABLE IF NOT EXISTS transaction_logs (
    transaction_id VARCHAR(64) PRIMARY KEY,
    booking_id VARCHAR(64) NOT NULL REFERENCES bookings(id),
    amount DECIMAL(10,2) NOT NULL,
    payment_method VARCHAR(20) NOT NULL,
    status VARCHAR(20) NOT NULL DEFAULT 'pending',
    payment_details JSONB,
    gateway_response JSONB,
    failure_reason TEXT,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),

    CHECK (payment_method IN ('credit_card', 'debit_card', 'digital_wallet', 'net_banking')),
    CHECK (status IN ('pending', 'success', 'failed', 'refunded'))
);
CREATE UNIQUE INDEX IF NOT EXISTS transaction_logs_one_success_idx
ON transaction_logs (booking_id) WHERE status = 'success';`

const createNotificationLogsTable = `
CREATE TABLE IF NOT EXISTS notification_logs (
    id SERIAL PRIMARY KEY,
    event_id VARCHAR(64) NOT NULL,
    notification_type VARCHAR(10) NOT NULL,
    recipient VARCHAR(255) NOT NULL,
    subject VARCHAR(255),
    status VARCHAR(10) NOT NULL DEFAULT 'pending',
    event_data JSONB,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    sent_at TIMESTAMPTZ,

    CHECK (notification_type IN ('email', 'sms', 'push')),
    CHECK (status IN ('sent', 'failed', 'pending'))
);
CREATE INDEX IF NOT EXISTS notification_logs_event_idx ON notification_logs (event_id);
CREATE INDEX IF NOT EXISTS notification_logs_recipient_idx ON notification_logs (recipient);`

const createBookingIndexes = `
CREATE INDEX IF NOT EXISTS bookings_user_idx ON bookings (user_id);
CREATE INDEX IF NOT EXISTS bookings_showtime_idx ON bookings (showtime_id);
CREATE INDEX IF NOT EXISTS bookings_status_idx ON bookings (status);
CREATE INDEX IF NOT EXISTS bookings_lock_expires_idx ON bookings (lock_expires_at);
CREATE INDEX IF NOT EXISTS bookings_created_idx ON bookings (created_at DESC);`

const createLedgerIndexes = `
CREATE INDEX IF NOT EXISTS transaction_logs_booking_idx ON transaction_logs (booking_id);
CREATE INDEX IF NOT EXISTS transaction_logs_status_idx ON transaction_logs (status);
CREATE INDEX IF NOT EXISTS transaction_logs_created_idx ON transaction_logs (created_at DESC);`

// Seed users for local development. Password hashes are SHA-256 hex of
// "password123" and "password456" respectively, matching the Basic Auth
// middleware's hashing scheme.
const seedSampleUsers = `
INSERT INTO users (id, email, password_hash, first_name, last_name, phone_number, is_active)
VALUES
    ('user123', 'john.doe@example.com', 'ef92b778bafe771e89245b89ecbc08a44a4e166c06659911881f383d4473e94f', 'John', 'Doe', '+1234567890', TRUE),
    ('user456', 'jane.smith@example.com', 'c6ba91b90d922e159893f46c387e5dc1b3dc5c101a5a4522f03b987177a24a91', 'Jane', 'Smith', '+1234567891', TRUE)
ON CONFLICT (id) DO NOTHING;`
