package event

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/natserract/lark/pkg/storage/postgres"
)

// DefaultDedupTTL covers the platform's redelivery window for unacknowledged events.
const DefaultDedupTTL = 6 * time.Hour

// Store remembers processed event ids so redelivered events run once.
type Store interface {
	// Claim records eventID and reports whether this call was the first to see it.
	Claim(ctx context.Context, eventID string) (bool, error)
	// Release forgets eventID so a redelivery of a failed event runs again.
	Release(ctx context.Context, eventID string) error
}

// MemoryStore is a process-local Store whose entries expire after a TTL.
type MemoryStore struct {
	mu        sync.Mutex
	seen      map[string]time.Time
	ttl       time.Duration
	now       func() time.Time
	lastSweep time.Time
}

// memorySweepInterval caps how often Claim scans for expired ids.
const memorySweepInterval = time.Minute

func NewMemoryStore(ttl time.Duration) *MemoryStore {
	if ttl <= 0 {
		ttl = DefaultDedupTTL
	}
	return &MemoryStore{
		seen: make(map[string]time.Time),
		ttl:  ttl,
		now:  time.Now,
	}
}

func (s *MemoryStore) Claim(_ context.Context, eventID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if now.Sub(s.lastSweep) >= min(s.ttl, memorySweepInterval) {
		for id, at := range s.seen {
			if now.Sub(at) > s.ttl {
				delete(s.seen, id)
			}
		}
		s.lastSweep = now
	}
	if at, ok := s.seen[eventID]; ok && now.Sub(at) <= s.ttl {
		return false, nil
	}
	s.seen[eventID] = now
	return true, nil
}

func (s *MemoryStore) Release(_ context.Context, eventID string) error {
	s.mu.Lock()
	delete(s.seen, eventID)
	s.mu.Unlock()
	return nil
}

// Len returns the number of remembered ids.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.seen)
}

const processedEventsSchema = `
CREATE TABLE IF NOT EXISTS lark_processed_events (
	event_id     TEXT PRIMARY KEY,
	processed_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS lark_processed_events_processed_at_idx
	ON lark_processed_events (processed_at);
`

// PostgresStore shares processed event ids between replicas.
type PostgresStore struct {
	db     *postgres.DB
	logger *zap.Logger
}

// NewPostgresStore creates the dedup table if needed.
func NewPostgresStore(ctx context.Context, db *postgres.DB, logger *zap.Logger) (*PostgresStore, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := db.InitSchema(ctx, processedEventsSchema); err != nil {
		return nil, fmt.Errorf("init event store: %w", err)
	}
	return &PostgresStore{db: db, logger: logger}, nil
}

func (s *PostgresStore) Claim(ctx context.Context, eventID string) (bool, error) {
	tag, err := s.db.Pool().Exec(ctx,
		`INSERT INTO lark_processed_events (event_id) VALUES ($1) ON CONFLICT (event_id) DO NOTHING`,
		eventID)
	if err != nil {
		return false, fmt.Errorf("claim event %s: %w", eventID, err)
	}
	return tag.RowsAffected() == 1, nil
}

func (s *PostgresStore) Release(ctx context.Context, eventID string) error {
	if _, err := s.db.Pool().Exec(ctx, `DELETE FROM lark_processed_events WHERE event_id = $1`, eventID); err != nil {
		return fmt.Errorf("release event %s: %w", eventID, err)
	}
	return nil
}

// Purge deletes ids processed before olderThan ago and returns how many were removed.
func (s *PostgresStore) Purge(ctx context.Context, olderThan time.Duration) (int64, error) {
	var removed int64
	err := s.db.WithTx(ctx, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx,
			`DELETE FROM lark_processed_events WHERE processed_at < now() - make_interval(secs => $1)`,
			olderThan.Seconds())
		if err != nil {
			return fmt.Errorf("purge processed events: %w", err)
		}
		removed = tag.RowsAffected()
		return nil
	})
	if err != nil {
		return 0, err
	}
	s.logger.Info("Purged processed events", zap.Int64("removed", removed), zap.Duration("older_than", olderThan))
	return removed, nil
}
