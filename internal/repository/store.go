package repository

import (
	"fmt"
	"log/slog"

	"github.com/kirychukyurii/gridsynapse/internal/config"
)

// NewStore connects the backend selected by cfg.Backend
func NewStore(cfg config.StoreConfig, logger *slog.Logger) (Store, error) {
	switch cfg.Backend {
	case config.BackendMemory, "":
		return NewMemoryStore(), nil
	case config.BackendEtcd:
		s, err := NewEtcdStore(cfg.Etcd, logger)
		if err != nil {
			return nil, err
		}
		return s, nil
	case config.BackendRedis:
		s, err := NewRedisStore(cfg.Redis, logger)
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unsupported store backend %q", cfg.Backend)
	}
}
