package inmemory

import (
	"context"

	"github.com/tdex-network/fiatln-daemon/internal/core/domain"
)

type configRepositoryImpl struct {
	store *store
}

func (r configRepositoryImpl) GetConfigValue(_ context.Context, key string) (string, error) {
	r.store.lock.Lock()
	defer r.store.lock.Unlock()

	return r.getOrCreate(key)
}

func (r configRepositoryImpl) SetConfigValue(_ context.Context, key, value string) error {
	if _, ok := domain.DefaultConfigValue(key); !ok {
		return domain.ErrUnknownConfigKey
	}

	r.store.lock.Lock()
	defer r.store.lock.Unlock()

	r.store.config[key] = value
	return nil
}

func (r configRepositoryImpl) GetConfig(_ context.Context) (map[string]string, error) {
	r.store.lock.Lock()
	defer r.store.lock.Unlock()

	cfg := make(map[string]string, len(domain.ConfigDefaults))
	for key := range domain.ConfigDefaults {
		value, err := r.getOrCreate(key)
		if err != nil {
			return nil, err
		}
		cfg[key] = value
	}
	return cfg, nil
}

func (r configRepositoryImpl) getOrCreate(key string) (string, error) {
	if value, ok := r.store.config[key]; ok {
		return value, nil
	}
	value, ok := domain.DefaultConfigValue(key)
	if !ok {
		return "", domain.ErrUnknownConfigKey
	}
	r.store.config[key] = value
	return value, nil
}
