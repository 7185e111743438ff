package storage

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
	"sort"
	"strings"

	_ "github.com/mattn/go-sqlite3"

	"github.com/weftworks/weft/internal/ir"
)

// fieldNameRE is the shape of a filterable record field.
var fieldNameRE = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS records (
	relation TEXT NOT NULL,
	key      TEXT NOT NULL,
	body     TEXT NOT NULL,
	PRIMARY KEY (relation, key)
);
CREATE INDEX IF NOT EXISTS idx_records_relation ON records(relation);
`

// SQLite is a durable Store on a single SQLite file. WAL mode allows
// concurrent reads during writes; the connection pool is capped at one
// writer to avoid SQLITE_BUSY.
type SQLite struct {
	db *sql.DB
}

// OpenSQLite creates or opens the database at path. ":memory:" gives a
// private throwaway database. Idempotent: pragmas and schema apply on
// every open.
func OpenSQLite(path string) (*SQLite, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("connect database: %w", err)
	}

	// SQLite supports one writer at a time.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("apply %q: %w", pragma, err)
		}
	}

	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	return &SQLite{db: db}, nil
}

// Close closes the database.
func (s *SQLite) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Get implements Store.
func (s *SQLite) Get(ctx context.Context, relation, key string) (ir.Object, bool, error) {
	var body string
	err := s.db.QueryRowContext(ctx,
		`SELECT body FROM records WHERE relation = ? AND key = ?`,
		relation, key,
	).Scan(&body)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("get %s/%s: %w", relation, key, err)
	}

	obj, err := decodeBody(body)
	if err != nil {
		return nil, false, fmt.Errorf("get %s/%s: %w", relation, key, err)
	}
	return obj, true, nil
}

// Put implements Store. The body is stored as canonical JSON so rows
// compare bytewise across runs.
func (s *SQLite) Put(ctx context.Context, relation, key string, body ir.Object) error {
	data, err := ir.MarshalCanonical(body)
	if err != nil {
		return fmt.Errorf("put %s/%s: %w", relation, key, err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO records (relation, key, body)
		VALUES (?, ?, ?)
		ON CONFLICT(relation, key) DO UPDATE SET body = excluded.body`,
		relation, key, string(data),
	)
	if err != nil {
		return fmt.Errorf("put %s/%s: %w", relation, key, err)
	}
	return nil
}

// Find implements Store. Filters compile to json_extract predicates so
// matching happens inside SQLite. Results are ordered by key, which
// keeps query fan-out deterministic.
func (s *SQLite) Find(ctx context.Context, relation string, filter ir.Object) ([]ir.Object, error) {
	query := strings.Builder{}
	query.WriteString(`SELECT body FROM records WHERE relation = ?`)
	args := []any{relation}

	fields := make([]string, 0, len(filter))
	for field := range filter {
		fields = append(fields, field)
	}
	sort.Strings(fields)

	for _, field := range fields {
		// Field names end up inside the json_extract path expression,
		// so anything beyond a plain identifier is rejected before it
		// reaches the SQL text.
		if !fieldNameRE.MatchString(field) {
			return nil, fmt.Errorf("find %s: invalid field name %q", relation, field)
		}
		arg, err := scalarArg(filter[field])
		if err != nil {
			return nil, fmt.Errorf("find %s: field %q: %w", relation, field, err)
		}
		query.WriteString(fmt.Sprintf(` AND json_extract(body, '$.%s') = ?`, field))
		args = append(args, arg)
	}
	query.WriteString(` ORDER BY key`)

	rows, err := s.db.QueryContext(ctx, query.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("find %s: %w", relation, err)
	}
	defer rows.Close()

	var out []ir.Object
	for rows.Next() {
		var body string
		if err := rows.Scan(&body); err != nil {
			return nil, fmt.Errorf("find %s: %w", relation, err)
		}
		obj, err := decodeBody(body)
		if err != nil {
			return nil, fmt.Errorf("find %s: %w", relation, err)
		}
		out = append(out, obj)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("find %s: %w", relation, err)
	}
	return out, nil
}

// Delete implements Store.
func (s *SQLite) Delete(ctx context.Context, relation, key string) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM records WHERE relation = ? AND key = ?`,
		relation, key,
	)
	if err != nil {
		return fmt.Errorf("delete %s/%s: %w", relation, key, err)
	}
	return nil
}

func decodeBody(body string) (ir.Object, error) {
	v, err := ir.FromJSON([]byte(body))
	if err != nil {
		return nil, err
	}
	obj, ok := v.(ir.Object)
	if !ok {
		return nil, fmt.Errorf("record body is %T, want object", v)
	}
	return obj, nil
}

// scalarArg converts a filter value to a driver argument. Booleans map
// to 0/1 to match json_extract's integer representation.
func scalarArg(v ir.Value) (any, error) {
	switch val := v.(type) {
	case ir.String:
		return string(val), nil
	case ir.Int:
		return int64(val), nil
	case ir.Bool:
		if val {
			return 1, nil
		}
		return 0, nil
	default:
		return nil, fmt.Errorf("filter value is %T, want scalar", v)
	}
}
