package spacetraveling

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/eringen/spacetraveling/cms"
	_ "modernc.org/sqlite"
)

// Store is a SQLite snapshot of the last content read from the CMS. It is
// consulted only when the CMS cannot be reached.
type Store struct {
	db *sql.DB
}

// NewStore opens (or creates) the SQLite database at path, ensures the data
// directory exists, and creates the schema.
func NewStore(path string) (*Store, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	if _, err := db.Exec(`
		PRAGMA journal_mode=WAL;
		PRAGMA busy_timeout=5000;
		PRAGMA synchronous=NORMAL;
		PRAGMA cache_size=-8000;
	`); err != nil {
		db.Close()
		return nil, err
	}
	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(4)
	s := &Store{db: db}
	if err := s.ensureSchema(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) ensureSchema() error {
	_, err := s.db.Exec(`
CREATE TABLE IF NOT EXISTS summaries (
    uid TEXT PRIMARY KEY,
    title TEXT NOT NULL,
    subtitle TEXT NOT NULL,
    author TEXT NOT NULL,
    published_at TEXT
);
CREATE TABLE IF NOT EXISTS posts (
    uid TEXT PRIMARY KEY,
    body TEXT NOT NULL,
    saved_at TEXT NOT NULL
);
`)
	return err
}

// SaveSummaries upserts summaries into the stored listing.
func (s *Store) SaveSummaries(summaries []cms.PostSummary) error {
	return s.writeSummaries(summaries, false)
}

// ReplaceSummaries replaces the whole stored listing with summaries.
func (s *Store) ReplaceSummaries(summaries []cms.PostSummary) error {
	return s.writeSummaries(summaries, true)
}

func (s *Store) writeSummaries(summaries []cms.PostSummary, replace bool) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if replace {
		if _, err := tx.Exec(`DELETE FROM summaries`); err != nil {
			return err
		}
	}
	stmt, err := tx.Prepare(`INSERT OR REPLACE INTO summaries (uid, title, subtitle, author, published_at) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()
	for _, p := range summaries {
		var published sql.NullString
		if p.FirstPublicationDate != nil {
			published = sql.NullString{String: p.FirstPublicationDate.UTC().Format(time.RFC3339), Valid: true}
		}
		if _, err := stmt.Exec(p.UID, p.Data.Title, p.Data.Subtitle, p.Data.Author, published); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// ListSummaries returns the stored listing, newest first. Posts without a
// publication date come last.
func (s *Store) ListSummaries() ([]cms.PostSummary, error) {
	rows, err := s.db.Query(`SELECT uid, title, subtitle, author, published_at FROM summaries ORDER BY published_at DESC, uid`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []cms.PostSummary
	for rows.Next() {
		var p cms.PostSummary
		var published sql.NullString
		if err := rows.Scan(&p.UID, &p.Data.Title, &p.Data.Subtitle, &p.Data.Author, &published); err != nil {
			return nil, err
		}
		if published.Valid {
			if t, err := time.Parse(time.RFC3339, published.String); err == nil {
				p.FirstPublicationDate = &cms.Timestamp{Time: t}
			}
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// SavePost upserts a full post document.
func (s *Store) SavePost(p cms.Post) error {
	body, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("encode post %s: %w", p.UID, err)
	}
	_, err = s.db.Exec(`INSERT OR REPLACE INTO posts (uid, body, saved_at) VALUES (?, ?, ?)`,
		p.UID, string(body), time.Now().UTC().Format(time.RFC3339))
	return err
}

// GetPost returns the stored post with uid, or ErrNotFound.
func (s *Store) GetPost(uid string) (cms.Post, error) {
	var body string
	err := s.db.QueryRow(`SELECT body FROM posts WHERE uid = ?`, uid).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return cms.Post{}, ErrNotFound
	}
	if err != nil {
		return cms.Post{}, err
	}
	var p cms.Post
	if err := json.Unmarshal([]byte(body), &p); err != nil {
		return cms.Post{}, fmt.Errorf("decode stored post %s: %w", uid, err)
	}
	return p, nil
}

// DeletePost removes a post and its listing entry.
func (s *Store) DeletePost(uid string) error {
	if _, err := s.db.Exec(`DELETE FROM posts WHERE uid = ?`, uid); err != nil {
		return err
	}
	_, err := s.db.Exec(`DELETE FROM summaries WHERE uid = ?`, uid)
	return err
}
