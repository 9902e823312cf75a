package output

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteSink stores every result table of a run in one SQLite database. Each table
// row carries the run id so several runs can share a file.
type SQLiteSink struct {
	db *sql.DB
}

// OpenSQLite opens or creates the results database
func OpenSQLite(path string) (*SQLiteSink, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("sqlite: mkdir: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open db: %w", err)
	}
	if _, err := db.Exec(`pragma journal_mode=WAL; pragma synchronous=NORMAL; pragma busy_timeout=5000`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite: pragmas: %w", err)
	}
	if _, err := db.Exec(`create table if not exists runs (
		id integer primary key autoincrement,
		fingerprint text not null,
		started_at integer not null,
		manifest text not null
	)`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite: schema: %w", err)
	}
	return &SQLiteSink{db: db}, nil
}

// BeginRun records a run and returns its id
func (s *SQLiteSink) BeginRun(ctx context.Context, fingerprint string, started time.Time, manifest []byte) (int64, error) {
	res, err := s.db.ExecContext(ctx, `insert into runs(fingerprint, started_at, manifest) values(?,?,?)`,
		fingerprint, started.UTC().Unix(), string(manifest))
	if err != nil {
		return 0, fmt.Errorf("sqlite: insert run: %w", err)
	}
	return res.LastInsertId()
}

// WriteTable inserts a table under runID, creating its SQL table on first use. NA
// cells are stored as NULL.
func (s *SQLiteSink) WriteTable(ctx context.Context, runID int64, t *Table) error {
	name := tableName(t.Name)
	if err := s.ensureTable(ctx, name, t.Header); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite: begin tx: %w", err)
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(t.Header)+1), ",")
	cols := make([]string, len(t.Header))
	for i, h := range t.Header {
		cols[i] = quote(h)
	}
	stmt, err := tx.PrepareContext(ctx, fmt.Sprintf(`insert into %s(run_id, %s) values(%s)`,
		quote(name), strings.Join(cols, ", "), placeholders))
	if err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("sqlite: prepare %s: %w", name, err)
	}
	defer stmt.Close()

	args := make([]any, len(t.Header)+1)
	args[0] = runID
	for _, row := range t.Rows {
		for i, cell := range row {
			if cell == NA {
				args[i+1] = nil
			} else {
				args[i+1] = cell
			}
		}
		if _, err := stmt.ExecContext(ctx, args...); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("sqlite: insert into %s: %w", name, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("sqlite: commit %s: %w", name, err)
	}
	return nil
}

// Count returns the number of rows of a table stored for runID
func (s *SQLiteSink) Count(ctx context.Context, runID int64, table string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, fmt.Sprintf(`select count(*) from %s where run_id = ?`, quote(tableName(table))), runID).Scan(&n)
	return n, err
}

// Close closes the database
func (s *SQLiteSink) Close() error {
	return s.db.Close()
}

func (s *SQLiteSink) ensureTable(ctx context.Context, name string, header []string) error {
	cols := make([]string, 0, len(header)+1)
	cols = append(cols, "run_id integer not null references runs(id)")
	for _, h := range header {
		cols = append(cols, quote(h)+" "+columnType(h))
	}
	stmts := []string{
		fmt.Sprintf(`create table if not exists %s (%s)`, quote(name), strings.Join(cols, ", ")),
		fmt.Sprintf(`create index if not exists %s on %s(run_id)`, quote(name+"_run_idx"), quote(name)),
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("sqlite: schema %s: %w", name, err)
		}
	}
	return nil
}

// tableName maps a file name such as "window_distances.tsv" to its SQL table
func tableName(file string) string {
	return strings.TrimSuffix(file, filepath.Ext(file))
}

// quote makes a column or table name safe to use when it collides with a keyword
func quote(ident string) string {
	return `"` + strings.ReplaceAll(ident, `"`, `""`) + `"`
}

func columnType(col string) string {
	switch col {
	case "start", "end", "nearest_genotype", "genotype":
		return "integer"
	case "distance", "overlap", "reference_overlap", "max_p", "p_value":
		return "real"
	default:
		return "text"
	}
}
