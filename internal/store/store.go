package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"github.com/ibeckermayer/replyscout/internal/types"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// PersistenceError wraps a storage failure with the operation that
// failed.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("failed to %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

func wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrNotFound) {
		return err
	}
	return &PersistenceError{Op: op, Err: err}
}

// Store handles all database operations
type Store struct {
	db       *sql.DB
	postgres bool
}

// Open connects to the database for driver ("sqlite" or "postgres")
// and creates the schema.
func Open(driver, dsn string) (*Store, error) {
	switch driver {
	case "sqlite":
		// Ensure directory exists
		if dir := filepath.Dir(dsn); dir != "." && dsn != ":memory:" {
			if err := os.MkdirAll(dir, 0700); err != nil {
				return nil, err
			}
		}
	case "postgres":
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", driver)
	}

	db, err := sql.Open(driver, sqliteDSN(driver, dsn))
	if err != nil {
		return nil, err
	}
	if driver == "sqlite" {
		// A single connection serializes writers and keeps :memory: databases shared.
		db.SetMaxOpenConns(1)
	}

	s := &Store{db: db, postgres: driver == "postgres"}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}

	return s, nil
}

// sqliteDSN adds a busy timeout so that several processes sharing one
// database file wait for each other's writes instead of failing.
func sqliteDSN(driver, dsn string) string {
	if driver != "sqlite" || dsn == ":memory:" || strings.Contains(dsn, "_pragma=busy_timeout") {
		return dsn
	}
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	return dsn + sep + "_pragma=busy_timeout(5000)"
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

// rebind rewrites ? placeholders to $n for postgres.
func (s *Store) rebind(query string) string {
	if !s.postgres {
		return query
	}
	var sb strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			sb.WriteString("$" + strconv.Itoa(n))
			continue
		}
		sb.WriteRune(r)
	}
	return sb.String()
}

// migrate creates the database schema
func (s *Store) migrate() error {
	idCol := "INTEGER PRIMARY KEY AUTOINCREMENT"
	tsCol := "DATETIME"
	if s.postgres {
		idCol = "BIGSERIAL PRIMARY KEY"
		tsCol = "TIMESTAMPTZ"
	}

	schema := fmt.Sprintf(`
	CREATE TABLE IF NOT EXISTS clients (
		id %[1]s,
		name TEXT NOT NULL UNIQUE,
		created_at %[2]s NOT NULL
	);

	CREATE TABLE IF NOT EXISTS configurations (
		id %[1]s,
		client_id BIGINT NOT NULL REFERENCES clients(id),
		name TEXT NOT NULL,
		subreddits TEXT NOT NULL,
		keywords TEXT NOT NULL,
		voice TEXT NOT NULL DEFAULT '',
		active BOOLEAN NOT NULL,
		interval_minutes INTEGER NOT NULL,
		active_start_hour INTEGER NOT NULL,
		active_end_hour INTEGER NOT NULL,
		active_days TEXT NOT NULL,
		last_scan_at %[2]s,
		scan_lease_until BIGINT,
		created_at %[2]s NOT NULL
	);

	CREATE TABLE IF NOT EXISTS matched_posts (
		id %[1]s,
		client_id BIGINT NOT NULL REFERENCES clients(id),
		configuration_id BIGINT NOT NULL REFERENCES configurations(id),
		subreddit TEXT NOT NULL,
		external_id TEXT NOT NULL,
		title TEXT NOT NULL,
		body TEXT NOT NULL,
		author TEXT NOT NULL,
		permalink TEXT NOT NULL,
		post_created_at %[2]s,
		matched_keywords TEXT NOT NULL,
		found_at %[2]s NOT NULL,
		UNIQUE (client_id, subreddit, external_id)
	);

	CREATE TABLE IF NOT EXISTS response_candidates (
		id %[1]s,
		post_id BIGINT NOT NULL REFERENCES matched_posts(id),
		text TEXT NOT NULL,
		score INTEGER NOT NULL,
		grade TEXT NOT NULL,
		breakdown TEXT NOT NULL,
		feedback TEXT NOT NULL,
		created_at %[2]s NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_matched_posts_client_sub ON matched_posts(client_id, subreddit);
	CREATE INDEX IF NOT EXISTS idx_candidates_post ON response_candidates(post_id);
	`, idCol, tsCol)

	_, err := s.db.Exec(schema)
	return err
}

// CreateClient inserts a client, returning the existing id when the
// name is already taken.
func (s *Store) CreateClient(ctx context.Context, name string) (int64, error) {
	var id int64
	err := s.db.QueryRowContext(ctx, s.rebind(`
		INSERT INTO clients (name, created_at) VALUES (?, ?)
		ON CONFLICT (name) DO NOTHING
		RETURNING id
	`), name, time.Now().UTC()).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		err = s.db.QueryRowContext(ctx, s.rebind(`SELECT id FROM clients WHERE name = ?`), name).Scan(&id)
	}
	return id, wrap("create client", err)
}

// CreateConfiguration inserts c and sets its ID.
func (s *Store) CreateConfiguration(ctx context.Context, c *types.Configuration) (int64, error) {
	subs, _ := json.Marshal(c.Subreddits)
	kws, _ := json.Marshal(c.Keywords)
	days, _ := json.Marshal(c.Schedule.ActiveDays)
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC()
	}

	err := s.db.QueryRowContext(ctx, s.rebind(`
		INSERT INTO configurations (client_id, name, subreddits, keywords, voice, active,
			interval_minutes, active_start_hour, active_end_hour, active_days, last_scan_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		RETURNING id
	`), c.ClientID, c.Name, string(subs), string(kws), c.Voice, c.Active,
		c.Schedule.IntervalMinutes, c.Schedule.ActiveStartHour, c.Schedule.ActiveEndHour,
		string(days), nullTime(c.Schedule.LastScanAt), c.CreatedAt).Scan(&c.ID)
	return c.ID, wrap("create configuration", err)
}

const configurationColumns = `id, client_id, name, subreddits, keywords, voice, active,
	interval_minutes, active_start_hour, active_end_hour, active_days, last_scan_at, created_at`

// GetConfiguration returns one configuration or ErrNotFound.
func (s *Store) GetConfiguration(ctx context.Context, id int64) (*types.Configuration, error) {
	rows, err := s.db.QueryContext(ctx, s.rebind(`SELECT `+configurationColumns+` FROM configurations WHERE id = ?`), id)
	if err != nil {
		return nil, wrap("get configuration", err)
	}
	defer rows.Close()

	configs, err := scanConfigurations(rows)
	if err != nil {
		return nil, wrap("get configuration", err)
	}
	if len(configs) == 0 {
		return nil, fmt.Errorf("configuration %d: %w", id, ErrNotFound)
	}
	return &configs[0], nil
}

// ActiveConfigurations returns every active configuration ordered by id.
func (s *Store) ActiveConfigurations(ctx context.Context) ([]types.Configuration, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+configurationColumns+` FROM configurations WHERE active ORDER BY id`)
	if err != nil {
		return nil, wrap("list active configurations", err)
	}
	defer rows.Close()

	configs, err := scanConfigurations(rows)
	return configs, wrap("list active configurations", err)
}

// ListConfigurations returns all configurations ordered by id.
func (s *Store) ListConfigurations(ctx context.Context) ([]types.Configuration, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+configurationColumns+` FROM configurations ORDER BY id`)
	if err != nil {
		return nil, wrap("list configurations", err)
	}
	defer rows.Close()

	configs, err := scanConfigurations(rows)
	return configs, wrap("list configurations", err)
}

func scanConfigurations(rows *sql.Rows) ([]types.Configuration, error) {
	var configs []types.Configuration
	for rows.Next() {
		var c types.Configuration
		var subs, kws, days string
		var last sql.NullTime

		err := rows.Scan(&c.ID, &c.ClientID, &c.Name, &subs, &kws, &c.Voice, &c.Active,
			&c.Schedule.IntervalMinutes, &c.Schedule.ActiveStartHour, &c.Schedule.ActiveEndHour,
			&days, &last, &c.CreatedAt)
		if err != nil {
			return nil, err
		}

		if err := json.Unmarshal([]byte(subs), &c.Subreddits); err != nil {
			return nil, fmt.Errorf("configuration %d subreddits: %w", c.ID, err)
		}
		if err := json.Unmarshal([]byte(kws), &c.Keywords); err != nil {
			return nil, fmt.Errorf("configuration %d keywords: %w", c.ID, err)
		}
		if err := json.Unmarshal([]byte(days), &c.Schedule.ActiveDays); err != nil {
			return nil, fmt.Errorf("configuration %d active days: %w", c.ID, err)
		}
		if last.Valid {
			t := last.Time
			c.Schedule.LastScanAt = &t
		}
		configs = append(configs, c)
	}
	return configs, rows.Err()
}

// ClaimScan takes the scan lease of a configuration until now+ttl. It
// returns false while another scan, in this or any other process, holds
// an unexpired lease.
func (s *Store) ClaimScan(ctx context.Context, configurationID int64, now time.Time, ttl time.Duration) (bool, error) {
	res, err := s.db.ExecContext(ctx, s.rebind(`
		UPDATE configurations SET scan_lease_until = ?
		WHERE id = ? AND (scan_lease_until IS NULL OR scan_lease_until < ?)
	`), now.Add(ttl).Unix(), configurationID, now.Unix())
	if err != nil {
		return false, wrap("claim scan", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, wrap("claim scan", err)
	}
	return n == 1, nil
}

// ReleaseScan drops the scan lease without recording a scan.
func (s *Store) ReleaseScan(ctx context.Context, configurationID int64) error {
	_, err := s.db.ExecContext(ctx, s.rebind(`UPDATE configurations SET scan_lease_until = NULL WHERE id = ?`), configurationID)
	return wrap("release scan", err)
}

// MarkScanned records the time of a completed scan attempt and releases
// the scan lease.
func (s *Store) MarkScanned(ctx context.Context, configurationID int64, at time.Time) error {
	res, err := s.db.ExecContext(ctx, s.rebind(`UPDATE configurations SET last_scan_at = ?, scan_lease_until = NULL WHERE id = ?`), at.UTC(), configurationID)
	if err != nil {
		return wrap("mark scanned", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("configuration %d: %w", configurationID, ErrNotFound)
	}
	return nil
}

// KnownKeys returns the dedup keys already stored for a client's
// subreddit.
func (s *Store) KnownKeys(ctx context.Context, clientID int64, subreddit string) (map[types.DedupKey]struct{}, error) {
	rows, err := s.db.QueryContext(ctx, s.rebind(`
		SELECT external_id FROM matched_posts WHERE client_id = ? AND subreddit = ?
	`), clientID, subreddit)
	if err != nil {
		return nil, wrap("load known keys", err)
	}
	defer rows.Close()

	keys := make(map[types.DedupKey]struct{})
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, wrap("load known keys", err)
		}
		keys[types.DedupKey{Subreddit: subreddit, ExternalID: id}] = struct{}{}
	}
	return keys, wrap("load known keys", rows.Err())
}

// PersistMatchedPost inserts p unless its dedup key already exists.
// It returns the row id and whether a new row was created, and sets p.ID.
func (s *Store) PersistMatchedPost(ctx context.Context, p *types.MatchedPost) (int64, bool, error) {
	kws, _ := json.Marshal(p.MatchedKeywords)
	if p.FoundAt.IsZero() {
		p.FoundAt = time.Now().UTC()
	}

	err := s.db.QueryRowContext(ctx, s.rebind(`
		INSERT INTO matched_posts (client_id, configuration_id, subreddit, external_id,
			title, body, author, permalink, post_created_at, matched_keywords, found_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (client_id, subreddit, external_id) DO NOTHING
		RETURNING id
	`), p.ClientID, p.ConfigurationID, p.Subreddit, p.ExternalID,
		p.Title, p.Body, p.Author, p.Permalink, p.PostCreatedAt.UTC(), string(kws), p.FoundAt).Scan(&p.ID)
	if err == nil {
		return p.ID, true, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return 0, false, wrap("persist matched post", err)
	}

	err = s.db.QueryRowContext(ctx, s.rebind(`
		SELECT id FROM matched_posts WHERE client_id = ? AND subreddit = ? AND external_id = ?
	`), p.ClientID, p.Subreddit, p.ExternalID).Scan(&p.ID)
	if err != nil {
		return 0, false, wrap("persist matched post", err)
	}
	return p.ID, false, nil
}

// PersistCandidate inserts a scored candidate and sets c.ID.
func (s *Store) PersistCandidate(ctx context.Context, c *types.ResponseCandidate) (int64, error) {
	breakdown, _ := json.Marshal(c.Score.Breakdown)
	feedback, _ := json.Marshal(c.Score.Feedback)
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC()
	}

	err := s.db.QueryRowContext(ctx, s.rebind(`
		INSERT INTO response_candidates (post_id, text, score, grade, breakdown, feedback, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		RETURNING id
	`), c.PostID, c.Text, c.Score.Total, c.Score.Grade, string(breakdown), string(feedback), c.CreatedAt).Scan(&c.ID)
	return c.ID, wrap("persist candidate", err)
}

// CandidatesForPost returns a post's candidates, best score first.
func (s *Store) CandidatesForPost(ctx context.Context, postID int64) ([]types.ResponseCandidate, error) {
	rows, err := s.db.QueryContext(ctx, s.rebind(`
		SELECT id, post_id, text, score, grade, breakdown, feedback, created_at
		FROM response_candidates
		WHERE post_id = ?
		ORDER BY score DESC, id
	`), postID)
	if err != nil {
		return nil, wrap("list candidates", err)
	}
	defer rows.Close()

	var results []types.ResponseCandidate
	for rows.Next() {
		var c types.ResponseCandidate
		var breakdown, feedback string
		if err := rows.Scan(&c.ID, &c.PostID, &c.Text, &c.Score.Total, &c.Score.Grade,
			&breakdown, &feedback, &c.CreatedAt); err != nil {
			return nil, wrap("list candidates", err)
		}
		json.Unmarshal([]byte(breakdown), &c.Score.Breakdown)
		json.Unmarshal([]byte(feedback), &c.Score.Feedback)
		results = append(results, c)
	}
	return results, wrap("list candidates", rows.Err())
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}
