package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	_ "github.com/lib/pq"

	"propscout/models"
	"propscout/utils"
)

// PostgresCache keeps cache entries in PostgreSQL so they survive restarts
// and can be shared between instances. Expiry is enforced inside every query.
type PostgresCache struct {
	db     *sql.DB
	ttl    time.Duration
	logger *utils.Logger

	hits   atomic.Int64
	misses atomic.Int64

	stop     chan struct{}
	stopOnce sync.Once
}

// NewPostgresCache opens a connection to PostgreSQL, runs schema migrations,
// and returns a ready-to-use PostgresCache.
func NewPostgresCache(dsn string, ttl, sweepInterval time.Duration, logger *utils.Logger) (*PostgresCache, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres: open: %w", err)
	}

	for i := 0; i < 10; i++ {
		if err = db.Ping(); err == nil {
			break
		}
		time.Sleep(2 * time.Second)
	}
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("postgres: ping failed after retries: %w", err)
	}

	pc := newPostgresCache(db, ttl, logger)
	if err := pc.migrate(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("postgres: migrate: %w", err)
	}
	if sweepInterval > 0 {
		go pc.sweepLoop(sweepInterval)
	}
	return pc, nil
}

func newPostgresCache(db *sql.DB, ttl time.Duration, logger *utils.Logger) *PostgresCache {
	return &PostgresCache{db: db, ttl: ttl, logger: logger, stop: make(chan struct{})}
}

func (pc *PostgresCache) migrate() error {
	_, err := pc.db.Exec(`
		CREATE TABLE IF NOT EXISTS cache_entries (
			key         TEXT        PRIMARY KEY,
			payload     JSONB       NOT NULL,
			inserted_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);

		CREATE INDEX IF NOT EXISTS idx_cache_entries_inserted_at ON cache_entries(inserted_at);
	`)
	return err
}

func (pc *PostgresCache) ttlSeconds() float64 {
	return pc.ttl.Seconds()
}

func (pc *PostgresCache) Get(key string) ([]byte, bool) {
	var payload string
	err := pc.db.QueryRow(`
		SELECT payload::text FROM cache_entries
		WHERE key = $1 AND inserted_at > NOW() - make_interval(secs => $2)
	`, key, pc.ttlSeconds()).Scan(&payload)
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			pc.logf("[cache] postgres get %q: %v", key, err)
		}
		pc.misses.Add(1)
		return nil, false
	}
	pc.hits.Add(1)
	return []byte(payload), true
}

func (pc *PostgresCache) Set(key string, payload []byte) bool {
	// JSONB takes text; lib/pq would send []byte as bytea.
	_, err := pc.db.Exec(`
		INSERT INTO cache_entries (key, payload, inserted_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (key) DO UPDATE SET payload = EXCLUDED.payload, inserted_at = EXCLUDED.inserted_at
	`, key, string(payload))
	if err != nil {
		pc.logf("[cache] postgres set %q: %v", key, err)
		return false
	}
	return true
}

func (pc *PostgresCache) Keys() []string {
	rows, err := pc.db.Query(`
		SELECT key FROM cache_entries
		WHERE inserted_at > NOW() - make_interval(secs => $1)
		ORDER BY key
	`, pc.ttlSeconds())
	if err != nil {
		pc.logf("[cache] postgres keys: %v", err)
		return nil
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			pc.logf("[cache] postgres scan key: %v", err)
			return keys
		}
		keys = append(keys, k)
	}
	if err := rows.Err(); err != nil {
		pc.logf("[cache] postgres keys: %v", err)
	}
	return keys
}

// FlushAll deletes every entry and resets the counters.
func (pc *PostgresCache) FlushAll() {
	if _, err := pc.db.Exec("DELETE FROM cache_entries"); err != nil {
		pc.logf("[cache] postgres flush: %v", err)
	}
	pc.hits.Store(0)
	pc.misses.Store(0)
}

func (pc *PostgresCache) Stats() models.CacheStats {
	return models.CacheStats{
		Hits:   pc.hits.Load(),
		Misses: pc.misses.Load(),
		Keys:   len(pc.Keys()),
	}
}

func (pc *PostgresCache) Close() error {
	pc.stopOnce.Do(func() { close(pc.stop) })
	return pc.db.Close()
}

func (pc *PostgresCache) sweepLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-pc.stop:
			return
		case <-ticker.C:
			res, err := pc.db.Exec(`
				DELETE FROM cache_entries
				WHERE inserted_at <= NOW() - make_interval(secs => $1)
			`, pc.ttlSeconds())
			if err != nil {
				pc.logf("[cache] postgres sweep: %v", err)
				continue
			}
			if n, _ := res.RowsAffected(); n > 0 && pc.logger != nil {
				pc.logger.Debug("[cache] Swept %d expired rows", n)
			}
		}
	}
}

func (pc *PostgresCache) logf(format string, args ...any) {
	if pc.logger != nil {
		pc.logger.Warn(format, args...)
	}
}
