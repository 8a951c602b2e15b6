// Package repository is the go-sql-driver/mysql-backed implementation of
// internal/domain.Repository and its UnitOfWork/UnitOfWorkFactory, following
// the teacher's context-timeout-wrapper shape (queries are issued directly,
// without a prepared-statement map) but rebuilt against the brief/venue/schedule schema this module owns.
package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql"

	errs "github.com/brightears/bmasia-music-brief/pkg/errors"
)

// DB is the shared connection pool plus the fixed timeout policy applied to
// every query this package issues.
type DB struct {
	conn         *sql.DB
	readTimeout  time.Duration
	writeTimeout time.Duration
}

// Options configures pool sizing and per-call timeouts.
type Options struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
}

// Open connects to dsn, applies pool options, runs schema migrations, and
// returns a ready DB. Migrations are idempotent (CREATE TABLE IF NOT EXISTS,
// and CREATE INDEX with MySQL's duplicate-key-name error ignored) so Open is
// safe to call on every process start.
func Open(ctx context.Context, dsn string, opts Options) (*DB, error) {
	conn, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, errs.NewDB("repository.Open", "failed to open connection pool", err)
	}

	if opts.MaxOpenConns > 0 {
		conn.SetMaxOpenConns(opts.MaxOpenConns)
	}
	if opts.MaxIdleConns > 0 {
		conn.SetMaxIdleConns(opts.MaxIdleConns)
	}
	if opts.ConnMaxLifetime > 0 {
		conn.SetConnMaxLifetime(opts.ConnMaxLifetime)
	}
	if opts.ConnMaxIdleTime > 0 {
		conn.SetConnMaxIdleTime(opts.ConnMaxIdleTime)
	}

	readTimeout := opts.ReadTimeout
	if readTimeout <= 0 {
		readTimeout = 5 * time.Second
	}
	writeTimeout := opts.WriteTimeout
	if writeTimeout <= 0 {
		writeTimeout = 5 * time.Second
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := conn.PingContext(pingCtx); err != nil {
		return nil, errs.NewDB("repository.Open", "failed to ping database", err)
	}

	db := &DB{conn: conn, readTimeout: readTimeout, writeTimeout: writeTimeout}
	if err := db.migrate(ctx); err != nil {
		return nil, err
	}
	return db, nil
}

// Close releases the underlying connection pool.
func (db *DB) Close() error {
	return db.conn.Close()
}

// PoolStats exposes sql.DBStats for the admin/health surface.
func (db *DB) PoolStats() sql.DBStats {
	return db.conn.Stats()
}

// Ping verifies connectivity for health checks.
func (db *DB) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, db.readTimeout)
	defer cancel()
	return db.conn.PingContext(ctx)
}

func (db *DB) withReadTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, db.readTimeout)
}

func (db *DB) withWriteTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, db.writeTimeout)
}

var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS venues (
		id BIGINT AUTO_INCREMENT PRIMARY KEY,
		venue_name VARCHAR(255) NOT NULL,
		location VARCHAR(255),
		venue_type VARCHAR(64),
		syb_account_id VARCHAR(128),
		latest_brief_id BIGINT,
		auto_schedule BOOLEAN NOT NULL DEFAULT FALSE,
		approved_brief_count INT NOT NULL DEFAULT 0,
		timezone VARCHAR(64) NOT NULL DEFAULT 'Asia/Bangkok',
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP,
		UNIQUE KEY uq_venues_name (venue_name)
	)`,
	`CREATE INDEX idx_venues_name ON venues (venue_name)`,
	`CREATE TABLE IF NOT EXISTS briefs (
		id BIGINT AUTO_INCREMENT PRIMARY KEY,
		venue_name VARCHAR(255) NOT NULL,
		venue_type VARCHAR(64),
		location VARCHAR(255),
		contact_name VARCHAR(255),
		contact_email VARCHAR(255),
		contact_phone VARCHAR(64),
		product VARCHAR(32) NOT NULL,
		liked_playlist_ids JSON,
		conversation_summary TEXT,
		raw_data JSON,
		schedule_data JSON,
		status VARCHAR(32) NOT NULL DEFAULT 'submitted',
		syb_account_id VARCHAR(128),
		syb_schedule_id VARCHAR(128),
		automation_tier VARCHAR(32),
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE INDEX idx_briefs_venue_name ON briefs (venue_name)`,
	`CREATE INDEX idx_briefs_contact_email ON briefs (contact_email)`,
	`CREATE TABLE IF NOT EXISTS zone_mappings (
		id BIGINT AUTO_INCREMENT PRIMARY KEY,
		venue_name VARCHAR(255) NOT NULL,
		zone_key VARCHAR(128) NOT NULL,
		syb_zone_id VARCHAR(128) NOT NULL,
		zone_name VARCHAR(255),
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		UNIQUE KEY uq_zone_mappings (venue_name, zone_key)
	)`,
	`CREATE TABLE IF NOT EXISTS schedule_entries (
		id BIGINT AUTO_INCREMENT PRIMARY KEY,
		brief_id BIGINT NOT NULL,
		zone_id VARCHAR(128) NOT NULL,
		zone_name VARCHAR(255),
		playlist_syb_id VARCHAR(128) NOT NULL,
		playlist_name VARCHAR(255),
		start_time VARCHAR(5) NOT NULL,
		end_time VARCHAR(5) NOT NULL,
		days VARCHAR(16) NOT NULL,
		timezone VARCHAR(64) NOT NULL,
		status VARCHAR(32) NOT NULL DEFAULT 'active',
		last_assigned_at DATETIME NULL,
		retry_count INT NOT NULL DEFAULT 0,
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE INDEX idx_schedule_entries_due ON schedule_entries (status, start_time)`,
	`CREATE TABLE IF NOT EXISTS approval_tokens (
		id BIGINT AUTO_INCREMENT PRIMARY KEY,
		token VARCHAR(128) NOT NULL,
		brief_id BIGINT NOT NULL,
		expires_at DATETIME NOT NULL,
		used_at DATETIME NULL,
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		UNIQUE KEY uq_approval_tokens_token (token)
	)`,
	`CREATE TABLE IF NOT EXISTS follow_ups (
		id BIGINT AUTO_INCREMENT PRIMARY KEY,
		brief_id BIGINT NOT NULL,
		type VARCHAR(16) NOT NULL,
		scheduled_for DATETIME NOT NULL,
		sent_at DATETIME NULL,
		opened_at DATETIME NULL,
		tracking_id VARCHAR(64) NOT NULL,
		UNIQUE KEY uq_follow_ups_tracking (tracking_id)
	)`,
	`CREATE INDEX idx_follow_ups_due ON follow_ups (scheduled_for)`,
	`CREATE TABLE IF NOT EXISTS venue_audit_events (
		id BIGINT AUTO_INCREMENT PRIMARY KEY,
		venue_name VARCHAR(255) NOT NULL,
		brief_id BIGINT,
		kind VARCHAR(64) NOT NULL,
		payload JSON,
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE INDEX idx_venue_audit_events_venue ON venue_audit_events (venue_name)`,
}

// migrate applies schemaStatements. CREATE INDEX has no IF NOT EXISTS form in
// MySQL, so a duplicate-key error (1061) on a second run is swallowed.
func (db *DB) migrate(ctx context.Context) error {
	for _, stmt := range schemaStatements {
		if _, err := db.conn.ExecContext(ctx, stmt); err != nil {
			if isDuplicateIndexError(err) {
				continue
			}
			return errs.NewDB("repository.migrate", fmt.Sprintf("failed executing migration: %s", firstLine(stmt)), err)
		}
	}
	return nil
}

func firstLine(s string) string {
	for i, r := range s {
		if r == '\n' {
			return s[:i]
		}
	}
	return s
}

func isDuplicateIndexError(err error) bool {
	if err == nil {
		return false
	}
	// MySQL error 1061: "Duplicate key name" — raised when CREATE INDEX runs
	// again on process restart, since MySQL lacks CREATE INDEX IF NOT EXISTS.
	return containsCode(err.Error(), "1061")
}

func containsCode(msg, code string) bool {
	return len(msg) >= len(code) && indexOf(msg, code) >= 0
}

func indexOf(s, sub string) int {
	for i := 0; i+len(sub) <= len(s); i++ {
		if s[i:i+len(sub)] == sub {
			return i
		}
	}
	return -1
}
