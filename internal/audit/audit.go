// Package audit provides the core.EventRecorder sinks: a zerolog sink and an
// asynchronous PostgreSQL sink.
package audit

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rs/zerolog"

	"shop-ledger/internal/core"
)

// Event is one recorded audit action.
type Event struct {
	ActorID    int64
	Action     string
	EntityType string
	EntityID   string
	Details    map[string]any
	At         time.Time
}

// ── Log sink ────────────────────────────────────────────────────────────────

// LogRecorder writes each event as a structured log line.
type LogRecorder struct {
	log zerolog.Logger
}

var _ core.EventRecorder = (*LogRecorder)(nil)

func NewLogRecorder(log zerolog.Logger) *LogRecorder {
	return &LogRecorder{log: log}
}

func (r *LogRecorder) RecordEvent(_ context.Context, actorID int64, action, entityType, entityID string, details map[string]any) {
	r.log.Info().
		Int64("actor_id", actorID).
		Str("action", action).
		Str("entity_type", entityType).
		Str("entity_id", entityID).
		Fields(map[string]any{"details": details}).
		Msg("audit")
}

// ── Postgres sink ───────────────────────────────────────────────────────────

// execer is satisfied by *pgxpool.Pool.
type execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

const writeTimeout = 5 * time.Second

// PostgresRecorder queues events on a bounded channel and inserts them into
// audit_events from a single background goroutine. When the queue is full the
// event is dropped and counted; RecordEvent never blocks.
type PostgresRecorder struct {
	db      execer
	log     zerolog.Logger
	events  chan Event
	done    chan struct{}
	dropped atomic.Int64

	mu     sync.RWMutex
	closed bool
}

var _ core.EventRecorder = (*PostgresRecorder)(nil)

// NewPostgresRecorder starts the writer goroutine. Call Close to flush and stop it.
func NewPostgresRecorder(db execer, buffer int, log zerolog.Logger) *PostgresRecorder {
	if buffer < 1 {
		buffer = 256
	}
	r := &PostgresRecorder{
		db:     db,
		log:    log,
		events: make(chan Event, buffer),
		done:   make(chan struct{}),
	}
	go r.run()
	return r
}

func (r *PostgresRecorder) RecordEvent(_ context.Context, actorID int64, action, entityType, entityID string, details map[string]any) {
	ev := Event{ActorID: actorID, Action: action, EntityType: entityType, EntityID: entityID, Details: details, At: time.Now().UTC()}

	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed {
		r.drop(ev, "recorder closed")
		return
	}
	select {
	case r.events <- ev:
	default:
		r.drop(ev, "audit queue full")
	}
}

func (r *PostgresRecorder) drop(ev Event, reason string) {
	n := r.dropped.Add(1)
	r.log.Warn().
		Str("action", ev.Action).
		Str("entity_type", ev.EntityType).
		Str("entity_id", ev.EntityID).
		Int64("dropped_total", n).
		Msg(reason)
}

// Dropped returns how many events were discarded.
func (r *PostgresRecorder) Dropped() int64 {
	return r.dropped.Load()
}

func (r *PostgresRecorder) run() {
	defer close(r.done)
	for ev := range r.events {
		if err := r.write(ev); err != nil {
			r.log.Error().Err(err).Str("action", ev.Action).Str("entity_id", ev.EntityID).Msg("failed to write audit event")
		}
	}
}

func (r *PostgresRecorder) write(ev Event) error {
	var details []byte
	if ev.Details != nil {
		b, err := json.Marshal(ev.Details)
		if err != nil {
			return err
		}
		details = b
	}

	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()
	_, err := r.db.Exec(ctx, `
		INSERT INTO audit_events (actor_id, action, entity_type, entity_id, details, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, ev.ActorID, ev.Action, ev.EntityType, ev.EntityID, details, ev.At)
	return err
}

// Close stops accepting events and waits for queued ones to be written.
func (r *PostgresRecorder) Close() {
	r.mu.Lock()
	if !r.closed {
		r.closed = true
		close(r.events)
	}
	r.mu.Unlock()
	<-r.done
}
