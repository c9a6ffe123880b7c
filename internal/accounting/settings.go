package accounting

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

const TokenSettingKey = "accounting_api_token"

var ErrSettingNotFound = errors.New("setting not found")

// SettingsStore reads operator-managed key/value settings.
type SettingsStore interface {
	Get(ctx context.Context, key string) (string, error)
}

type settingsRepository struct {
	db *sql.DB
}

func NewSettingsRepository(db *sql.DB) SettingsStore {
	return &settingsRepository{db: db}
}

func (r *settingsRepository) Get(ctx context.Context, key string) (string, error) {
	var value string
	err := r.db.QueryRowContext(ctx, `SELECT value FROM settings WHERE key = $1`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrSettingNotFound
	}
	if err != nil {
		return "", fmt.Errorf("get setting %s: %w", key, err)
	}
	return value, nil
}
