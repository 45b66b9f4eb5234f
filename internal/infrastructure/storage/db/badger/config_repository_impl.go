package dbbadger

import (
	"context"
	"errors"

	"github.com/dgraph-io/badger/v3"
	"github.com/tdex-network/fiatln-daemon/internal/core/domain"
	"github.com/timshannon/badgerhold/v4"
)

type configEntry struct {
	Key   string
	Value string
}

type configRepositoryImpl struct {
	db *repoManager
}

func (r configRepositoryImpl) GetConfigValue(ctx context.Context, key string) (string, error) {
	defaultValue, ok := domain.DefaultConfigValue(key)
	if !ok {
		return "", domain.ErrUnknownConfigKey
	}

	var entry configEntry
	if err := r.db.view(ctx, func(txn *badger.Txn) error {
		return r.db.store.TxGet(txn, key, &entry)
	}); err != nil {
		if errors.Is(err, badgerhold.ErrNotFound) {
			return defaultValue, nil
		}
		return "", err
	}
	return entry.Value, nil
}

func (r configRepositoryImpl) SetConfigValue(ctx context.Context, key, value string) error {
	if _, ok := domain.DefaultConfigValue(key); !ok {
		return domain.ErrUnknownConfigKey
	}

	return r.db.update(ctx, func(txn *badger.Txn) error {
		return r.db.store.TxUpsert(txn, key, &configEntry{key, value})
	})
}

func (r configRepositoryImpl) GetConfig(ctx context.Context) (map[string]string, error) {
	cfg := domain.DefaultConfig()

	var entries []configEntry
	if err := r.db.view(ctx, func(txn *badger.Txn) error {
		return r.db.store.TxFind(txn, &entries, nil)
	}); err != nil {
		return nil, err
	}
	for _, e := range entries {
		if _, ok := cfg[e.Key]; ok {
			cfg[e.Key] = e.Value
		}
	}
	return cfg, nil
}
