package postgresdb

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/tdex-network/fiatln-daemon/internal/core/domain"
)

type configRepositoryImpl struct {
	db *repoManager
}

func (r configRepositoryImpl) GetConfigValue(ctx context.Context, key string) (string, error) {
	defaultValue, ok := domain.DefaultConfigValue(key)
	if !ok {
		return "", domain.ErrUnknownConfigKey
	}

	var value string
	if err := r.db.querier(ctx).QueryRow(
		ctx, `SELECT value FROM config WHERE key = $1`, key,
	).Scan(&value); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return defaultValue, nil
		}
		return "", err
	}
	return value, nil
}

func (r configRepositoryImpl) SetConfigValue(ctx context.Context, key, value string) error {
	if _, ok := domain.DefaultConfigValue(key); !ok {
		return domain.ErrUnknownConfigKey
	}

	_, err := r.db.querier(ctx).Exec(ctx, `
		INSERT INTO config (key, value) VALUES ($1, $2)
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value`,
		key, value,
	)
	return err
}

func (r configRepositoryImpl) GetConfig(ctx context.Context) (map[string]string, error) {
	rows, err := r.db.querier(ctx).Query(ctx, `SELECT key, value FROM config`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	cfg := domain.DefaultConfig()
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return nil, err
		}
		if _, ok := cfg[key]; ok {
			cfg[key] = value
		}
	}
	return cfg, rows.Err()
}
