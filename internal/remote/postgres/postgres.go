// Package postgres is the remote relational store. It talks to any Postgres
// endpoint, including the database behind a Supabase project.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"time"

	_ "github.com/lib/pq"
	"github.com/shopspring/decimal"

	"rkas/internal/core"
)

// Config describes how to reach the remote store.
type Config struct {
	URL string
	// Key is used as the password when URL carries none.
	Key string

	MaxOpenConns int
	PingTimeout  time.Duration
}

// Store implements ports.Remote on top of database/sql.
type Store struct {
	db          *sql.DB
	pingTimeout time.Duration
}

// DSN merges the credential into the connection URL.
func DSN(rawURL, key string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("parse remote url: %w", err)
	}
	if u.Scheme != "postgres" && u.Scheme != "postgresql" {
		return "", fmt.Errorf("unsupported remote url scheme %q", u.Scheme)
	}
	if key != "" {
		if u.User == nil {
			u.User = url.UserPassword("postgres", key)
		} else if _, has := u.User.Password(); !has {
			u.User = url.UserPassword(u.User.Username(), key)
		}
	}
	return u.String(), nil
}

// New prepares a connection pool without touching the network.
func New(cfg Config) (*Store, error) {
	dsn, err := DSN(cfg.URL, cfg.Key)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open remote database: %w", err)
	}
	if cfg.MaxOpenConns <= 0 {
		cfg.MaxOpenConns = 5
	}
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxOpenConns)
	db.SetConnMaxLifetime(30 * time.Minute)

	return &Store{db: db, pingTimeout: cfg.PingTimeout}, nil
}

// Open connects and pings the remote store.
func Open(ctx context.Context, cfg Config) (*Store, error) {
	s, err := New(cfg)
	if err != nil {
		return nil, err
	}
	if err := s.Ping(ctx); err != nil {
		s.Close()
		return nil, err
	}
	return s, nil
}

// Ping checks the remote store is reachable.
func (s *Store) Ping(ctx context.Context) error {
	timeout := s.pingTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("ping remote database: %w", err)
	}
	return nil
}

// NewWithDB wraps an existing handle.
func NewWithDB(db *sql.DB) *Store {
	return &Store{db: db}
}

func (s *Store) Close() error {
	return s.db.Close()
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS school_settings (
		id INTEGER PRIMARY KEY,
		name TEXT NOT NULL DEFAULT '',
		npsn TEXT NOT NULL DEFAULT '',
		address TEXT NOT NULL DEFAULT '',
		total_pagu BIGINT NOT NULL DEFAULT 0,
		student_count INTEGER NOT NULL DEFAULT 0,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS budget_items (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		category TEXT NOT NULL,
		account_code TEXT NOT NULL,
		quantity NUMERIC NOT NULL,
		unit TEXT NOT NULL DEFAULT '',
		price NUMERIC NOT NULL,
		total NUMERIC NOT NULL,
		realization NUMERIC,
		month TEXT NOT NULL,
		source TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_budget_items_created_at ON budget_items(created_at)`,
}

// EnsureSchema creates the two tables when they are missing.
func (s *Store) EnsureSchema(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("ensure remote schema: %w", err)
		}
	}
	return nil
}

// FetchSettings implements ports.SettingsRemote
func (s *Store) FetchSettings(ctx context.Context) (*core.SchoolSettings, error) {
	var out core.SchoolSettings
	err := s.db.QueryRowContext(ctx, `
		SELECT name, npsn, address, total_pagu, student_count
		FROM school_settings WHERE id = $1`, core.SettingsID,
	).Scan(&out.Name, &out.NPSN, &out.Address, &out.TotalPagu, &out.StudentCount)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("fetch settings: %w", err)
	}
	return &out, nil
}

// UpsertSettings implements ports.SettingsRemote. All fields go in one
// statement so a settings row is never half written.
func (s *Store) UpsertSettings(ctx context.Context, in core.SchoolSettings) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO school_settings (id, name, npsn, address, total_pagu, student_count, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, now())
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			npsn = EXCLUDED.npsn,
			address = EXCLUDED.address,
			total_pagu = EXCLUDED.total_pagu,
			student_count = EXCLUDED.student_count,
			updated_at = now()`,
		core.SettingsID, in.Name, in.NPSN, in.Address, in.TotalPagu, in.StudentCount)
	if err != nil {
		return fmt.Errorf("upsert settings: %w", err)
	}
	return nil
}

// FetchItems implements ports.ItemRemote
func (s *Store) FetchItems(ctx context.Context) ([]core.BudgetItem, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, category, account_code, quantity, unit, price, total,
		       realization, month, source
		FROM budget_items
		ORDER BY created_at ASC, id ASC`)
	if err != nil {
		return nil, fmt.Errorf("fetch items: %w", err)
	}
	defer rows.Close()

	items := []core.BudgetItem{}
	for rows.Next() {
		var (
			it          core.BudgetItem
			category    string
			month       string
			realization decimal.NullDecimal
		)
		if err := rows.Scan(&it.ID, &it.Name, &category, &it.AccountCode,
			&it.Quantity, &it.Unit, &it.Price, &it.Total,
			&realization, &month, &it.Source); err != nil {
			return nil, fmt.Errorf("scan item: %w", err)
		}
		it.Category = core.Category(category)
		it.Month = core.Month(month)
		if realization.Valid {
			r := realization.Decimal
			it.Realization = &r
		}
		items = append(items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate items: %w", err)
	}
	return items, nil
}

func nullRealization(it core.BudgetItem) decimal.NullDecimal {
	if it.Realization == nil {
		return decimal.NullDecimal{}
	}
	return decimal.NullDecimal{Decimal: *it.Realization, Valid: true}
}

// InsertItem implements ports.ItemRemote
func (s *Store) InsertItem(ctx context.Context, it core.BudgetItem) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO budget_items
			(id, name, category, account_code, quantity, unit, price, total, realization, month, source)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		it.ID, it.Name, string(it.Category), it.AccountCode,
		it.Quantity, it.Unit, it.Price, it.Total,
		nullRealization(it), string(it.Month), it.Source)
	if err != nil {
		return fmt.Errorf("insert item %s: %w", it.ID, err)
	}
	return nil
}

// UpdateItem implements ports.ItemRemote
func (s *Store) UpdateItem(ctx context.Context, it core.BudgetItem) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE budget_items SET
			name = $2, category = $3, account_code = $4, quantity = $5, unit = $6,
			price = $7, total = $8, realization = $9, month = $10, source = $11
		WHERE id = $1`,
		it.ID, it.Name, string(it.Category), it.AccountCode,
		it.Quantity, it.Unit, it.Price, it.Total,
		nullRealization(it), string(it.Month), it.Source)
	if err != nil {
		return fmt.Errorf("update item %s: %w", it.ID, err)
	}
	return nil
}

// DeleteItem implements ports.ItemRemote
func (s *Store) DeleteItem(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM budget_items WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete item %s: %w", id, err)
	}
	return nil
}
