package cache

import (
	"fmt"
	"io"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/ppiankov/citeverify/internal/model"
)

// Open builds the manager and store selected by cfg. The returned closer
// releases the store; it is never nil.
func Open(cfg model.CacheConfig, logger *zap.Logger) (*Manager, io.Closer, error) {
	if !cfg.Enabled {
		return NewManager(nil, cfg.TTL(), cfg.URLStatusTTL, logger), nopCloser{}, nil
	}

	memory := func() *MemoryCache { return NewMemoryCache(cfg.TTL(), 10*time.Minute) }

	switch cfg.Backend {
	case "memory":
		return NewManager(memory(), cfg.TTL(), cfg.URLStatusTTL, logger), nopCloser{}, nil

	case "badger", "layered":
		disk, err := OpenBadgerCache(BadgerConfig{Dir: filepath.Join(cfg.Dir, "badger"), Logger: logger})
		if err != nil {
			return nil, nil, err
		}
		var store Cache = disk
		if cfg.Backend == "layered" {
			store = NewLayeredCache(memory(), disk, time.Hour)
		}
		return NewManager(store, cfg.TTL(), cfg.URLStatusTTL, logger), disk, nil

	case "redis":
		rc, err := NewRedisCache(cfg.RedisAddr, 2*time.Second)
		if err != nil {
			return nil, nil, err
		}
		return NewManager(rc, cfg.TTL(), cfg.URLStatusTTL, logger), rc, nil

	default:
		return nil, nil, fmt.Errorf("unknown cache backend %q", cfg.Backend)
	}
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
