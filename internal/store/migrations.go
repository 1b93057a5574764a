package store

// migration represents a single schema migration.
type migration struct {
	Version int
	Name    string
	SQL     string
}

// migrations is the ordered list of all schema migrations.
var migrations = []migration{
	{
		Version: 1,
		Name:    "create query log",
		SQL: `
			CREATE TABLE query_log (
				id          TEXT PRIMARY KEY,
				session_id  TEXT NOT NULL,
				customer_id TEXT NOT NULL,
				actor       TEXT NOT NULL DEFAULT 'CUSTOMER',
				query       TEXT NOT NULL,
				intents     TEXT NOT NULL DEFAULT '',
				response    TEXT NOT NULL,
				success     INTEGER NOT NULL DEFAULT 1,
				degraded    INTEGER NOT NULL DEFAULT 0,
				elapsed_ms  INTEGER NOT NULL DEFAULT 0,
				created_at  TEXT NOT NULL DEFAULT (datetime('now'))
			);

			CREATE INDEX idx_query_log_session ON query_log (session_id, created_at);
			CREATE INDEX idx_query_log_customer ON query_log (customer_id, created_at);
		`,
	},
	{
		Version: 2,
		Name:    "create query log full-text index",
		SQL: `
			CREATE VIRTUAL TABLE query_log_fts USING fts5(
				query,
				response,
				content='query_log',
				content_rowid='rowid'
			);

			CREATE TRIGGER query_log_ai AFTER INSERT ON query_log BEGIN
				INSERT INTO query_log_fts(rowid, query, response)
				VALUES (new.rowid, new.query, new.response);
			END;

			CREATE TRIGGER query_log_ad AFTER DELETE ON query_log BEGIN
				INSERT INTO query_log_fts(query_log_fts, rowid, query, response)
				VALUES ('delete', old.rowid, old.query, old.response);
			END;
		`,
	},
}
