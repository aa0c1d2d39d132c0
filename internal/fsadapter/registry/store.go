package registry

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/shelfd/shelfd/internal/logging"
)

// BackendRow maps to the user_backends table: one storage backend
// configuration per user.
type BackendRow struct {
	UserID      int             `json:"user_id"`
	BackendType string          `json:"backend_type"`
	Config      json.RawMessage `json:"config"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// BackendStore provides CRUD operations for user_backends.
type BackendStore struct {
	db *sql.DB
}

// NewBackendStore creates a new BackendStore.
func NewBackendStore(db *sql.DB) *BackendStore {
	return &BackendStore{db: db}
}

// GetForUser returns the backend row for a user, or nil if none is configured.
func (s *BackendStore) GetForUser(ctx context.Context, userID int) (*BackendRow, error) {
	var row BackendRow
	err := s.db.QueryRowContext(ctx,
		`SELECT user_id, backend_type, config, created_at, updated_at
		 FROM user_backends WHERE user_id = $1`, userID).
		Scan(&row.UserID, &row.BackendType, &row.Config, &row.CreatedAt, &row.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get user backend: %w", err)
	}
	return &row, nil
}

// List returns all configured backend rows.
func (s *BackendStore) List(ctx context.Context) ([]BackendRow, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT user_id, backend_type, config, created_at, updated_at
		 FROM user_backends ORDER BY user_id`)
	if err != nil {
		return nil, fmt.Errorf("list user backends: %w", err)
	}
	defer rows.Close()

	var out []BackendRow
	for rows.Next() {
		var row BackendRow
		if err := rows.Scan(&row.UserID, &row.BackendType, &row.Config,
			&row.CreatedAt, &row.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan user backend: %w", err)
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

// Set inserts or replaces a user's backend configuration.
func (s *BackendStore) Set(ctx context.Context, row *BackendRow) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO user_backends (user_id, backend_type, config)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (user_id)
		 DO UPDATE SET backend_type = $2, config = $3, updated_at = NOW()`,
		row.UserID, row.BackendType, row.Config)
	if err != nil {
		return fmt.Errorf("set user backend: %w", err)
	}
	return nil
}

// Delete removes a user's backend configuration.
func (s *BackendStore) Delete(ctx context.Context, userID int) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM user_backends WHERE user_id = $1`, userID)
	if err != nil {
		return fmt.Errorf("delete user backend: %w", err)
	}
	return nil
}

// Migrate runs SQL migration files.
func (s *BackendStore) Migrate(migrationsDir string) error {
	files, err := filepath.Glob(filepath.Join(migrationsDir, "*.up.sql"))
	if err != nil {
		return fmt.Errorf("glob migrations: %w", err)
	}

	for _, f := range files {
		logging.Info("running migration", zap.String("file", filepath.Base(f)))
		content, err := os.ReadFile(f)
		if err != nil {
			return fmt.Errorf("read migration %s: %w", f, err)
		}
		if _, err := s.db.Exec(string(content)); err != nil {
			return fmt.Errorf("exec migration %s: %w", f, err)
		}
	}
	return nil
}

// Open connects to postgres and verifies the connection.
func Open(databaseURL string) (*sql.DB, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return db, nil
}
