package cache

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"time"

	"go.uber.org/zap"

	"github.com/ppiankov/citeverify/internal/logging"
	"github.com/ppiankov/citeverify/internal/match"
	"github.com/ppiankov/citeverify/internal/metrics"
	"github.com/ppiankov/citeverify/internal/model"
	"github.com/ppiankov/citeverify/internal/normalize"
)

const (
	resultNamespace = "result"
	urlNamespace    = "url"
)

// ErrCorruptEntry is returned when a stored entry cannot be decoded.
// The entry is removed before the error is returned.
var ErrCorruptEntry = errors.New("corrupt cache entry")

// envelope wraps stored values with their own expiry so TTL is honored
// regardless of the backing store
type envelope struct {
	Result    *model.VerificationResult `json:"result,omitempty"`
	URLStatus *model.URLStatus          `json:"url_status,omitempty"`
	StoredAt  time.Time                 `json:"stored_at"`
	ExpiresAt time.Time                 `json:"expires_at"`
}

// Manager stores verification results and URL statuses. A nil store makes
// every lookup miss and every write a no-op.
type Manager struct {
	store  Cache
	ttl    time.Duration
	urlTTL time.Duration
	now    func() time.Time
	logger *zap.Logger
}

// NewManager creates a cache manager over store
func NewManager(store Cache, ttl, urlTTL time.Duration, logger *zap.Logger) *Manager {
	if ttl <= 0 {
		ttl = 7 * 24 * time.Hour
	}
	if urlTTL <= 0 {
		urlTTL = time.Hour
	}
	return &Manager{
		store:  store,
		ttl:    ttl,
		urlTTL: urlTTL,
		now:    time.Now,
		logger: logging.OrNop(logger),
	}
}

// SetClock replaces the time source used for expiry
func (m *Manager) SetClock(now func() time.Time) {
	m.now = now
}

// Enabled reports whether a backing store is configured
func (m *Manager) Enabled() bool {
	return m != nil && m.store != nil
}

// ResultKey derives the key for a citation and optional case-name hint.
// Whitespace and reporter spelling differences map to the same key.
func ResultKey(citation, hint string) string {
	return CacheKey(resultNamespace, normalize.Normalize(citation).Text, match.NormalizeName(hint))
}

// URLKey derives the key for a URL liveness check
func URLKey(url string) string {
	return CacheKey(urlNamespace, url)
}

// Get returns the unexpired result stored under key
func (m *Manager) Get(key string) (model.VerificationResult, bool, error) {
	env, ok, err := m.load(key, resultNamespace)
	if err != nil || !ok || env.Result == nil {
		return model.VerificationResult{}, false, err
	}
	return *env.Result, true, nil
}

// Set stores a result under key. ttl <= 0 uses the manager default.
// Re-storing an identical unexpired result is a no-op.
func (m *Manager) Set(key string, result model.VerificationResult, ttl time.Duration) error {
	if !m.Enabled() {
		return nil
	}
	if ttl <= 0 {
		ttl = m.ttl
	}

	if existing, ok, _ := m.Get(key); ok && reflect.DeepEqual(existing, result) {
		return nil
	}

	now := m.now()
	return m.save(key, envelope{
		Result:    &result,
		StoredAt:  now,
		ExpiresAt: now.Add(ttl),
	}, ttl)
}

// Delete removes the entry stored under key
func (m *Manager) Delete(key string) error {
	if !m.Enabled() {
		return nil
	}
	return m.store.Delete(key)
}

// Invalidate removes the cached result for a citation under both the hinted
// and the hint-less key
func (m *Manager) Invalidate(citation, hint string) error {
	if err := m.Delete(ResultKey(citation, hint)); err != nil {
		return err
	}
	if hint == "" {
		return nil
	}
	return m.Delete(ResultKey(citation, ""))
}

// Clear removes all entries from the backing store
func (m *Manager) Clear() error {
	if !m.Enabled() {
		return nil
	}
	return m.store.Clear()
}

// GetURLStatus returns a cached liveness check for url
func (m *Manager) GetURLStatus(url string) (model.URLStatus, bool) {
	env, ok, err := m.load(URLKey(url), urlNamespace)
	if err != nil || !ok || env.URLStatus == nil {
		return model.URLStatus{}, false
	}
	return *env.URLStatus, true
}

// SetURLStatus caches a liveness check for the URL-status TTL
func (m *Manager) SetURLStatus(status model.URLStatus) error {
	if !m.Enabled() {
		return nil
	}
	now := m.now()
	if status.CheckedAt.IsZero() {
		status.CheckedAt = now
	}
	return m.save(URLKey(status.URL), envelope{
		URLStatus: &status,
		StoredAt:  now,
		ExpiresAt: now.Add(m.urlTTL),
	}, m.urlTTL)
}

func (m *Manager) load(key, namespace string) (envelope, bool, error) {
	var env envelope
	if !m.Enabled() {
		return env, false, nil
	}

	data, found := m.store.Get(key)
	if !found {
		metrics.CacheLookups.WithLabelValues(namespace, "miss").Inc()
		return env, false, nil
	}

	if err := json.Unmarshal(data, &env); err != nil {
		m.logger.Error("dropping corrupt cache entry", zap.String("key", key), zap.Error(err))
		_ = m.store.Delete(key)
		return envelope{}, false, fmt.Errorf("%w: %s: %v", ErrCorruptEntry, key, err)
	}

	if !m.now().Before(env.ExpiresAt) {
		_ = m.store.Delete(key)
		metrics.CacheLookups.WithLabelValues(namespace, "expired").Inc()
		return envelope{}, false, nil
	}

	metrics.CacheLookups.WithLabelValues(namespace, "hit").Inc()
	return env, true, nil
}

func (m *Manager) save(key string, env envelope, ttl time.Duration) error {
	data, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("failed to marshal cache entry: %w", err)
	}
	if err := m.store.Set(key, data, ttl); err != nil {
		m.logger.Warn("cache write failed", zap.String("key", key), zap.Error(err))
		return fmt.Errorf("cache write: %w", err)
	}
	return nil
}
