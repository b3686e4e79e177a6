// Package account resolves which rule tier a user is entitled to.
package account

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"github.com/raaihank/pdf-redactor/internal/config"
	"github.com/raaihank/pdf-redactor/internal/logger"
	"github.com/raaihank/pdf-redactor/internal/privacy"
	"go.uber.org/zap"
)

// ErrAccountNotFound is returned for users without a stored tier.
var ErrAccountNotFound = errors.New("account not found")

// Account is one row of the accounts table.
type Account struct {
	UserID    string    `db:"user_id" json:"user_id"`
	Tier      string    `db:"tier" json:"tier"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// Store keeps user tiers in PostgreSQL or SQLite. It holds no document data.
type Store struct {
	db     *sqlx.DB
	logger *logger.Logger
}

const schema = `
CREATE TABLE IF NOT EXISTS accounts (
	user_id    TEXT PRIMARY KEY,
	tier       TEXT NOT NULL,
	updated_at TIMESTAMP NOT NULL
)`

// NewStore connects to the configured database and creates the schema if needed.
func NewStore(cfg config.AccountsConfig, log *logger.Logger) (*Store, error) {
	driver, err := driverName(cfg.Driver)
	if err != nil {
		return nil, err
	}

	db, err := sqlx.Connect(driver, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to account database: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	store := &Store{db: db, logger: log}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize account schema: %w", err)
	}

	log.Info("Account store initialized",
		zap.String("driver", driver),
		zap.String("dsn", config.MaskDSN(cfg.DSN)),
		zap.Int("max_open_conns", cfg.MaxOpenConns))

	return store, nil
}

func driverName(driver string) (string, error) {
	switch driver {
	case "postgres", "postgresql":
		return "postgres", nil
	case "sqlite", "sqlite3":
		return "sqlite", nil
	default:
		return "", fmt.Errorf("unsupported account driver: %s", driver)
	}
}

// GetTier returns the stored tier of userID.
func (s *Store) GetTier(ctx context.Context, userID string) (privacy.Tier, error) {
	var tier string
	query := s.db.Rebind(`SELECT tier FROM accounts WHERE user_id = ?`)
	if err := s.db.GetContext(ctx, &tier, query, userID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return privacy.TierStandard, ErrAccountNotFound
		}
		return privacy.TierStandard, fmt.Errorf("failed to load tier: %w", err)
	}
	return privacy.ParseTier(tier), nil
}

// SetTier creates or updates the account of userID.
func (s *Store) SetTier(ctx context.Context, userID string, tier privacy.Tier) error {
	query := s.db.Rebind(`
		INSERT INTO accounts (user_id, tier, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT (user_id) DO UPDATE SET tier = excluded.tier, updated_at = excluded.updated_at`)

	if _, err := s.db.ExecContext(ctx, query, userID, tier.String(), time.Now().UTC()); err != nil {
		s.logger.Error("Failed to store tier", zap.String("tier", tier.String()), zap.Error(err))
		return fmt.Errorf("failed to store tier: %w", err)
	}

	s.logger.Debug("Tier stored", zap.String("tier", tier.String()))
	return nil
}

// List returns every account ordered by user id.
func (s *Store) List(ctx context.Context) ([]Account, error) {
	var accounts []Account
	if err := s.db.SelectContext(ctx, &accounts, `SELECT user_id, tier, updated_at FROM accounts ORDER BY user_id`); err != nil {
		return nil, fmt.Errorf("failed to list accounts: %w", err)
	}
	return accounts, nil
}

// Ping checks the database connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}
