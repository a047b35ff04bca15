package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/lyy0709/contextweaver/internal/chunk"
	_ "modernc.org/sqlite" // pure Go SQLite driver, no CGO
)

// SQLiteChunkFTS implements FTSIndex using SQLite FTS5. Indexed content
// is code-tokenized (camelCase/snake_case split, stop words removed) for
// recall; queries are passed through to FTS5's native MATCH grammar so
// phrase ("a b"), prefix (ident*), and OR queries behave as FTS5
// documents them, rather than being destructively re-tokenized.
type SQLiteChunkFTS struct {
	mu        sync.RWMutex
	db        *sql.DB
	path      string
	config    BM25Config
	closed    bool
	stopWords map[string]struct{}
}

var _ FTSIndex = (*SQLiteChunkFTS)(nil)

func validateChunkFTSIntegrity(path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}

	db, err := sql.Open("sqlite", path+"?mode=ro")
	if err != nil {
		return fmt.Errorf("cannot open for validation: %w", err)
	}
	defer db.Close()

	var result string
	if err := db.QueryRow("PRAGMA integrity_check").Scan(&result); err != nil {
		return fmt.Errorf("integrity check failed: %w", err)
	}
	if result != "ok" {
		return fmt.Errorf("database corrupted: %s", result)
	}

	var count int
	err = db.QueryRow(`SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='fts_chunks'`).Scan(&count)
	if err != nil {
		return fmt.Errorf("cannot query schema: %w", err)
	}
	if count == 0 {
		return fmt.Errorf("FTS5 table 'fts_chunks' missing")
	}
	return nil
}

// NewSQLiteChunkFTS opens (creating if absent) a chunk FTS5 index at
// path. An empty path opens an in-memory index, for tests.
func NewSQLiteChunkFTS(path string, config BM25Config) (*SQLiteChunkFTS, error) {
	var dsn string
	if path == "" {
		dsn = ":memory:"
	} else {
		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create directory %s: %w", dir, err)
		}

		if validErr := validateChunkFTSIntegrity(path); validErr != nil {
			slog.Warn("chunk_fts_corrupted", slog.String("path", path), slog.String("error", validErr.Error()))

			if removeErr := os.Remove(path); removeErr != nil && !os.IsNotExist(removeErr) {
				return nil, fmt.Errorf("chunk FTS index corrupted at %s and cannot remove: %w (original error: %v)", path, removeErr, validErr)
			}
			_ = os.Remove(path + "-wal")
			_ = os.Remove(path + "-shm")

			slog.Info("chunk_fts_cleared", slog.String("path", path), slog.String("reason", "corruption detected, reindex required"))
		}

		dsn = path + "?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA cache_size = -65536",
		"PRAGMA temp_store = MEMORY",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to set pragma: %w", err)
		}
	}

	idx := &SQLiteChunkFTS{
		db:        db,
		path:      path,
		config:    config,
		stopWords: BuildStopWordMap(config.StopWords),
	}
	if err := idx.initSchema(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return idx, nil
}

func (s *SQLiteChunkFTS) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS schema_version (
		version INTEGER PRIMARY KEY
	);

	-- relative_path, chunk_index, breadcrumb are UNINDEXED: carried for
	-- consistency checks and result filtering, not matched on.
	CREATE VIRTUAL TABLE IF NOT EXISTS fts_chunks USING fts5(
		chunk_id UNINDEXED,
		relative_path UNINDEXED,
		chunk_index UNINDEXED,
		breadcrumb UNINDEXED,
		content,
		tokenize='unicode61'
	);

	CREATE TABLE IF NOT EXISTS chunk_ids (
		chunk_id TEXT PRIMARY KEY
	);

	INSERT OR IGNORE INTO schema_version (version) VALUES (1);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Index inserts or replaces entries; content is VectorText (breadcrumb
// plus display_code), tokenized for recall.
func (s *SQLiteChunkFTS) Index(ctx context.Context, chunks []*chunk.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return fmt.Errorf("index is closed")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	deleteStmt, err := tx.PrepareContext(ctx, `DELETE FROM fts_chunks WHERE chunk_id = ?`)
	if err != nil {
		return fmt.Errorf("failed to prepare delete: %w", err)
	}
	defer deleteStmt.Close()

	insertStmt, err := tx.PrepareContext(ctx, `
		INSERT INTO fts_chunks(chunk_id, relative_path, chunk_index, breadcrumb, content)
		VALUES (?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer insertStmt.Close()

	idStmt, err := tx.PrepareContext(ctx, `INSERT OR REPLACE INTO chunk_ids(chunk_id) VALUES (?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare id tracking: %w", err)
	}
	defer idStmt.Close()

	for _, c := range chunks {
		tokens := TokenizeCode(c.VectorText)
		tokens = FilterStopWords(tokens, s.stopWords)
		content := strings.Join(tokens, " ")

		if _, err := deleteStmt.ExecContext(ctx, c.ChunkID); err != nil {
			return fmt.Errorf("failed to delete existing chunk %s: %w", c.ChunkID, err)
		}
		if _, err := insertStmt.ExecContext(ctx, c.ChunkID, c.RelativePath, c.ChunkIndex, c.Breadcrumb, content); err != nil {
			return fmt.Errorf("failed to index chunk %s: %w", c.ChunkID, err)
		}
		if _, err := idStmt.ExecContext(ctx, c.ChunkID); err != nil {
			return fmt.Errorf("failed to track chunk id %s: %w", c.ChunkID, err)
		}
	}

	return tx.Commit()
}

// Search passes query through to FTS5 MATCH, supporting its native
// phrase/prefix/OR syntax. Bare bareword queries (no quotes, no OR, no
// trailing *) are still code-tokenized for camelCase/snake_case recall.
func (s *SQLiteChunkFTS) Search(ctx context.Context, query string, limit int) ([]*FTSResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, fmt.Errorf("index is closed")
	}

	trimmed := strings.TrimSpace(query)
	if trimmed == "" {
		return []*FTSResult{}, nil
	}

	matchQuery := trimmed
	if !usesFTS5Operators(trimmed) {
		tokens := TokenizeCode(trimmed)
		tokens = FilterStopWords(tokens, s.stopWords)
		if len(tokens) == 0 {
			return []*FTSResult{}, nil
		}
		matchQuery = strings.Join(tokens, " OR ")
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT chunk_id, relative_path, bm25(fts_chunks) as score
		FROM fts_chunks
		WHERE fts_chunks MATCH ?
		ORDER BY score
		LIMIT ?
	`, matchQuery, limit)
	if err != nil {
		if strings.Contains(err.Error(), "fts5:") || strings.Contains(err.Error(), "syntax error") {
			return []*FTSResult{}, nil
		}
		return nil, fmt.Errorf("search failed: %w", err)
	}
	defer rows.Close()

	var out []*FTSResult
	for rows.Next() {
		var chunkID, relativePath string
		var score float64
		if err := rows.Scan(&chunkID, &relativePath, &score); err != nil {
			return nil, fmt.Errorf("failed to scan result: %w", err)
		}
		out = append(out, &FTSResult{ChunkID: chunkID, RelativePath: relativePath, Score: -score})
	}
	return out, rows.Err()
}

// usesFTS5Operators reports whether the query already relies on FTS5's
// own grammar (quoted phrase, prefix star, boolean keyword) and should
// be passed through untouched rather than code-tokenized.
func usesFTS5Operators(query string) bool {
	upper := strings.ToUpper(query)
	return strings.Contains(query, `"`) ||
		strings.Contains(query, "*") ||
		strings.Contains(upper, " OR ") ||
		strings.Contains(upper, " AND ") ||
		strings.Contains(upper, " NOT ")
}

func (s *SQLiteChunkFTS) Delete(ctx context.Context, chunkIDs []string) error {
	if len(chunkIDs) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return fmt.Errorf("index is closed")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	placeholders := make([]string, len(chunkIDs))
	args := make([]any, len(chunkIDs))
	for i, id := range chunkIDs {
		placeholders[i] = "?"
		args[i] = id
	}
	inClause := strings.Join(placeholders, ",")

	if _, err := tx.ExecContext(ctx, fmt.Sprintf("DELETE FROM fts_chunks WHERE chunk_id IN (%s)", inClause), args...); err != nil {
		return fmt.Errorf("failed to delete from fts: %w", err)
	}
	if _, err := tx.ExecContext(ctx, fmt.Sprintf("DELETE FROM chunk_ids WHERE chunk_id IN (%s)", inClause), args...); err != nil {
		return fmt.Errorf("failed to delete from chunk_ids: %w", err)
	}

	return tx.Commit()
}

func (s *SQLiteChunkFTS) AllIDs() ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, fmt.Errorf("index is closed")
	}

	rows, err := s.db.Query(`SELECT chunk_id FROM chunk_ids ORDER BY chunk_id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query ids: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (s *SQLiteChunkFTS) Stats() *IndexStats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return &IndexStats{}
	}

	var count int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM chunk_ids`).Scan(&count); err != nil {
		return &IndexStats{}
	}
	return &IndexStats{DocumentCount: count}
}

func (s *SQLiteChunkFTS) Save(path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return fmt.Errorf("index is closed")
	}
	_, err := s.db.Exec("PRAGMA wal_checkpoint(TRUNCATE)")
	return err
}

func (s *SQLiteChunkFTS) Load(path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db != nil && !s.closed {
		_ = s.db.Close()
	}

	dsn := path + "?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return fmt.Errorf("failed to open index: %w", err)
	}

	s.db = db
	s.path = path
	s.closed = false
	return nil
}

func (s *SQLiteChunkFTS) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	if s.db != nil {
		_, _ = s.db.Exec("PRAGMA wal_checkpoint(TRUNCATE)")
		return s.db.Close()
	}
	return nil
}
