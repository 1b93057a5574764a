package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/soyeahso/rewardbot/internal/domain"
	"github.com/soyeahso/rewardbot/internal/hooks"
)

// Entry is one answered query in the history log.
type Entry struct {
	ID         string    `json:"id"`
	SessionID  string    `json:"sessionId"`
	CustomerID string    `json:"customerId"`
	Actor      string    `json:"actor"`
	Query      string    `json:"query"`
	Intents    []string  `json:"intents,omitempty"`
	Response   string    `json:"response"`
	Success    bool      `json:"success"`
	Degraded   bool      `json:"degraded,omitempty"`
	ElapsedMs  int64     `json:"elapsedMs"`
	CreatedAt  time.Time `json:"createdAt"`
}

// HistoryStore appends and reads the answer log.
type HistoryStore struct {
	db  *DB
	now func() time.Time
}

// NewHistoryStore creates a history store backed by the given DB.
func NewHistoryStore(db *DB) *HistoryStore {
	return &HistoryStore{db: db, now: time.Now}
}

// Append records an entry. A missing ID or timestamp is filled in.
func (h *HistoryStore) Append(ctx context.Context, e Entry) (Entry, error) {
	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = h.now()
	}
	if e.Actor == "" {
		e.Actor = string(domain.ActorCustomer)
	}
	e.CreatedAt = e.CreatedAt.UTC().Truncate(time.Second)

	_, err := h.db.sql.ExecContext(ctx,
		`INSERT INTO query_log
		   (id, session_id, customer_id, actor, query, intents, response, success, degraded, elapsed_ms, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.SessionID, e.CustomerID, e.Actor, e.Query, strings.Join(e.Intents, ","),
		e.Response, e.Success, e.Degraded, e.ElapsedMs, e.CreatedAt.Format(time.DateTime),
	)
	if err != nil {
		return Entry{}, fmt.Errorf("appending history entry: %w", err)
	}
	return e, nil
}

// History returns a session's entries oldest first.
// Limit of 0 returns all entries.
func (h *HistoryStore) History(ctx context.Context, sessionID string, limit int) ([]Entry, error) {
	q := `SELECT ` + entryColumns + ` FROM query_log WHERE session_id = ? ORDER BY created_at, rowid`
	args := []any{sessionID}
	if limit > 0 {
		// keep the newest entries but still return them in order
		q = `SELECT * FROM (SELECT ` + entryColumns + `, rowid AS rid FROM query_log
		       WHERE session_id = ? ORDER BY created_at DESC, rowid DESC LIMIT ?)
		     ORDER BY created_at, rid`
		args = append(args, limit)
	}
	return h.query(ctx, q, args...)
}

// Recent returns the newest entries across all sessions, newest first.
// A non-empty customerID narrows the result to that customer. Limit of 0 defaults to 20.
func (h *HistoryStore) Recent(ctx context.Context, customerID string, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 20
	}
	if customerID != "" {
		return h.query(ctx,
			`SELECT `+entryColumns+` FROM query_log WHERE customer_id = ?
			 ORDER BY created_at DESC, rowid DESC LIMIT ?`, customerID, limit)
	}
	return h.query(ctx,
		`SELECT `+entryColumns+` FROM query_log ORDER BY created_at DESC, rowid DESC LIMIT ?`, limit)
}

// Search finds entries whose query or response matches the FTS5 expression.
// Results are ranked by relevance. Limit of 0 defaults to 20.
func (h *HistoryStore) Search(ctx context.Context, match string, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 20
	}
	return h.query(ctx,
		`SELECT `+prefixed("q", entryColumns)+`
		 FROM query_log_fts
		 JOIN query_log q ON q.rowid = query_log_fts.rowid
		 WHERE query_log_fts MATCH ?
		 ORDER BY rank
		 LIMIT ?`, match, limit)
}

// Count returns the number of logged entries.
func (h *HistoryStore) Count(ctx context.Context) (int, error) {
	var n int
	err := h.db.sql.QueryRowContext(ctx, "SELECT COUNT(*) FROM query_log").Scan(&n)
	return n, err
}

// Prune deletes entries older than the given time and returns how many were removed.
func (h *HistoryStore) Prune(ctx context.Context, before time.Time) (int64, error) {
	res, err := h.db.sql.ExecContext(ctx,
		"DELETE FROM query_log WHERE created_at < ?", before.UTC().Format(time.DateTime))
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// Name identifies the history log as an answer sink.
func (h *HistoryStore) Name() string { return "history" }

// Close closes the underlying database.
func (h *HistoryStore) Close() error {
	return h.db.Close()
}

// Hook returns a handler that logs every answered query.
func (h *HistoryStore) Hook() hooks.Handler {
	return func(ctx context.Context, p hooks.Payload) error {
		if p.Query == nil || p.Answer == nil {
			return nil
		}
		e := Entry{
			SessionID:  p.Answer.SessionID,
			CustomerID: p.Query.CustomerID,
			Actor:      string(p.Query.Actor),
			Query:      p.Query.Text,
			Intents:    p.Intents,
			Response:   p.Answer.Response,
			Success:    p.Answer.Success,
			ElapsedMs:  p.Answer.ElapsedMs,
		}
		if p.Answer.Context != nil {
			e.Degraded = p.Answer.Context.Degraded
		}
		_, err := h.Append(ctx, e)
		return err
	}
}

const entryColumns = "id, session_id, customer_id, actor, query, intents, response, success, degraded, elapsed_ms, created_at"

func prefixed(alias, cols string) string {
	parts := strings.Split(cols, ", ")
	for i, p := range parts {
		parts[i] = alias + "." + p
	}
	return strings.Join(parts, ", ")
}

func (h *HistoryStore) query(ctx context.Context, q string, args ...any) ([]Entry, error) {
	rows, err := h.db.sql.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanEntries(rows)
}

func scanEntries(rows *sql.Rows) ([]Entry, error) {
	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	var entries []Entry
	for rows.Next() {
		var (
			e         Entry
			intents   string
			createdAt string
		)
		dest := []any{
			&e.ID, &e.SessionID, &e.CustomerID, &e.Actor, &e.Query, &intents,
			&e.Response, &e.Success, &e.Degraded, &e.ElapsedMs, &createdAt,
		}
		// History with a limit carries a trailing rowid column.
		for len(dest) < len(cols) {
			dest = append(dest, new(any))
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, err
		}
		if intents != "" {
			e.Intents = strings.Split(intents, ",")
		}
		e.CreatedAt, _ = time.Parse(time.DateTime, createdAt)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
