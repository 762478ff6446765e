package retriever

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"unicode"

	_ "modernc.org/sqlite" // Pure Go SQLite driver (no CGO)
)

const mediaSchemaVersion = 1

// mediaFile is the SQLite database holding the encoded frames and, for the
// sqlite keyword backend, an FTS5 index over their text.
type mediaFile struct {
	db   *sql.DB
	path string
}

// createMedia replaces any existing media file at path with an empty one.
func createMedia(path string) (*mediaFile, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}
	for _, p := range []string{path, path + "-journal", path + "-wal", path + "-shm"} {
		if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to remove stale media file: %w", err)
		}
	}

	m, err := openMediaDB(path)
	if err != nil {
		return nil, err
	}
	if err := m.initSchema(); err != nil {
		_ = m.db.Close()
		return nil, fmt.Errorf("failed to initialize media schema: %w", err)
	}
	return m, nil
}

// openMedia opens an existing media file and checks its header.
func openMedia(path string) (*mediaFile, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, err
	}
	m, err := openMediaDB(path)
	if err != nil {
		return nil, err
	}
	codec, err := m.header("codec")
	if err != nil {
		_ = m.db.Close()
		return nil, fmt.Errorf("media header unreadable: %w", err)
	}
	if codec != frameCodec {
		_ = m.db.Close()
		return nil, fmt.Errorf("unsupported frame codec %q", codec)
	}
	return m, nil
}

func openMediaDB(path string) (*mediaFile, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open media database: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	// A rollback journal keeps the artifact a single file once closed.
	pragmas := []string{
		"PRAGMA journal_mode = DELETE",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA temp_store = MEMORY",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to set pragma: %w", err)
		}
	}
	return &mediaFile{db: db, path: path}, nil
}

func (m *mediaFile) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS header (
		key   TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);

	-- One row per chunk; data is the compressed frame payload
	CREATE TABLE IF NOT EXISTS frames (
		frame INTEGER PRIMARY KEY,
		data  BLOB NOT NULL
	);

	-- rowid is frames.frame + 1
	CREATE VIRTUAL TABLE IF NOT EXISTS frame_text USING fts5(
		content,
		tokenize='unicode61'
	);
	`
	_, err := m.db.Exec(schema)
	return err
}

// writeFrames encodes texts as frames 0..n-1. When withText is set the text
// is also indexed in the FTS5 table.
func (m *mediaFile) writeFrames(ctx context.Context, texts []string, withText bool) error {
	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	frameStmt, err := tx.PrepareContext(ctx, `INSERT INTO frames(frame, data) VALUES (?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare frame statement: %w", err)
	}
	defer frameStmt.Close()

	ftsStmt, err := tx.PrepareContext(ctx, `INSERT INTO frame_text(rowid, content) VALUES (?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare FTS statement: %w", err)
	}
	defer ftsStmt.Close()

	for i, text := range texts {
		data, err := encodeFrame(text)
		if err != nil {
			return err
		}
		if _, err := frameStmt.ExecContext(ctx, i, data); err != nil {
			return fmt.Errorf("failed to write frame %d: %w", i, err)
		}
		if withText {
			if _, err := ftsStmt.ExecContext(ctx, i+1, text); err != nil {
				return fmt.Errorf("failed to index frame %d: %w", i, err)
			}
		}
	}

	header := map[string]string{
		"codec":   frameCodec,
		"frames":  strconv.Itoa(len(texts)),
		"version": strconv.Itoa(mediaSchemaVersion),
	}
	for k, v := range header {
		if _, err := tx.ExecContext(ctx, `INSERT OR REPLACE INTO header(key, value) VALUES (?, ?)`, k, v); err != nil {
			return fmt.Errorf("failed to write header: %w", err)
		}
	}

	return tx.Commit()
}

func (m *mediaFile) header(key string) (string, error) {
	var v string
	err := m.db.QueryRow(`SELECT value FROM header WHERE key = ?`, key).Scan(&v)
	return v, err
}

// frameCount returns the number of frames recorded in the header.
func (m *mediaFile) frameCount() (int, error) {
	v, err := m.header("frames")
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(v)
}

// readFrames decodes the given frames, returned in the order requested.
// Unknown frame numbers are skipped.
func (m *mediaFile) readFrames(ctx context.Context, frames []int) ([]string, error) {
	out := make([]string, 0, len(frames))
	stmt, err := m.db.PrepareContext(ctx, `SELECT data FROM frames WHERE frame = ?`)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare frame query: %w", err)
	}
	defer stmt.Close()

	for _, f := range frames {
		var data []byte
		if err := stmt.QueryRowContext(ctx, f).Scan(&data); err != nil {
			if err == sql.ErrNoRows {
				slog.Warn("frame_missing", slog.Int("frame", f))
				continue
			}
			return nil, fmt.Errorf("failed to read frame %d: %w", f, err)
		}
		text, err := decodeFrame(data)
		if err != nil {
			return nil, fmt.Errorf("frame %d: %w", f, err)
		}
		out = append(out, text)
	}
	return out, nil
}

func (m *mediaFile) close() error {
	return m.db.Close()
}

// sqliteKeywords searches the FTS5 table of a media file.
type sqliteKeywords struct {
	media *mediaFile
}

func (s *sqliteKeywords) index(context.Context, []string) error {
	// Text is indexed alongside the frames in writeFrames.
	return nil
}

// search returns frame numbers ranked by BM25. Any query term may match.
func (s *sqliteKeywords) search(ctx context.Context, query string, limit int) ([]int, error) {
	match := ftsQuery(query)
	if match == "" {
		return []int{}, nil
	}

	// bm25() is negative; lower is better
	rows, err := s.media.db.QueryContext(ctx, `
		SELECT rowid
		FROM frame_text
		WHERE frame_text MATCH ?
		ORDER BY bm25(frame_text), rowid
		LIMIT ?`, match, limit)
	if err != nil {
		return nil, fmt.Errorf("keyword search failed: %w", err)
	}
	defer rows.Close()

	out := []int{}
	for rows.Next() {
		var id int
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan result: %w", err)
		}
		out = append(out, id-1)
	}
	return out, rows.Err()
}

func (s *sqliteKeywords) close() error { return nil }

// ftsQuery turns free text into an FTS5 OR query of quoted terms.
func ftsQuery(q string) string {
	terms := strings.FieldsFunc(strings.ToLower(q), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	seen := make(map[string]bool, len(terms))
	quoted := make([]string, 0, len(terms))
	for _, t := range terms {
		if seen[t] {
			continue
		}
		seen[t] = true
		quoted = append(quoted, `"`+t+`"`)
	}
	return strings.Join(quoted, " OR ")
}
