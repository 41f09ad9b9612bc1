package dedupe

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/bakkerme/digestbot/internal/core"
)

const defaultSQLiteTable = "seen_links"

var sqliteTableName = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// SQLiteStore keeps one row per published link with its first-seen time in
// unix seconds. With a positive TTL, Load deletes rows older than the TTL
// before reading, so expired links become eligible again.
type SQLiteStore struct {
	db    *sql.DB
	table string
	ttl   time.Duration
	now   func() time.Time
}

func NewSQLiteStore(dsn string, table string, ttl time.Duration) (*SQLiteStore, error) {
	dsn = strings.TrimSpace(dsn)
	if dsn == "" {
		return nil, errors.New("sqlite dsn is required")
	}
	if ttl < 0 {
		return nil, errors.New("sqlite ttl must be >= 0")
	}
	if table == "" {
		table = defaultSQLiteTable
	}
	if !sqliteTableName.MatchString(table) {
		return nil, fmt.Errorf("sqlite table name %q must match %s", table, sqliteTableName)
	}
	if dir := filepath.Dir(sqliteFilePath(dsn)); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create sqlite dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// modernc sqlite serializes writers; one connection avoids SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	s := &SQLiteStore{db: db, table: table, ttl: ttl, now: time.Now}
	schema := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %[1]q (
		link    TEXT PRIMARY KEY,
		seen_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS %[2]q ON %[1]q (seen_at);`, table, table+"_seen_at_idx")
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create sqlite schema: %w", err)
	}
	return s, nil
}

func (s *SQLiteStore) Load(ctx context.Context) (core.SeenSet, error) {
	if s.ttl > 0 {
		cutoff := s.now().Add(-s.ttl).Unix()
		res, err := s.db.ExecContext(ctx, fmt.Sprintf("DELETE FROM %q WHERE seen_at < ?", s.table), cutoff)
		if err != nil {
			return core.NewSeenSet(), &core.StoreLoadError{Err: fmt.Errorf("prune expired links: %w", err)}
		}
		if n, _ := res.RowsAffected(); n > 0 {
			core.LoggerFromContext(ctx).Debug("pruned expired links", "count", n)
		}
	}

	rows, err := s.db.QueryContext(ctx, fmt.Sprintf("SELECT link FROM %q", s.table))
	if err != nil {
		return core.NewSeenSet(), &core.StoreLoadError{Err: err}
	}
	defer rows.Close()

	seen := core.NewSeenSet()
	for rows.Next() {
		var link string
		if err := rows.Scan(&link); err != nil {
			return core.NewSeenSet(), &core.StoreLoadError{Err: err}
		}
		seen.Add(link)
	}
	if err := rows.Err(); err != nil {
		return core.NewSeenSet(), &core.StoreLoadError{Err: err}
	}
	return seen, nil
}

// Save inserts links not yet stored in one transaction. Existing rows keep
// their first-seen time, so the TTL counts from first publication.
func (s *SQLiteStore) Save(ctx context.Context, seen core.SeenSet) error {
	if len(seen) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx,
		fmt.Sprintf("INSERT INTO %q (link, seen_at) VALUES (?, ?) ON CONFLICT(link) DO NOTHING", s.table))
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	now := s.now().Unix()
	for _, link := range seen.Links() {
		if _, err := stmt.ExecContext(ctx, link, now); err != nil {
			return fmt.Errorf("insert %s: %w", link, err)
		}
	}
	return tx.Commit()
}

func (s *SQLiteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// sqliteFilePath strips the file: scheme and query from a DSN. In-memory
// databases map to ".".
func sqliteFilePath(dsn string) string {
	path := strings.TrimPrefix(dsn, "file:")
	if i := strings.IndexByte(path, '?'); i >= 0 {
		path = path[:i]
	}
	if path == "" || path == ":memory:" {
		return "."
	}
	return path
}
