package postcache

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
)

// SQLiteStore keeps the snapshot in a single table of an SQLite database,
// ordered by the article's position in the all-posts sequence.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore ensures the snapshot table exists in db.
func NewSQLiteStore(db *sql.DB) (*SQLiteStore, error) {
	s := &SQLiteStore{db: db}
	if err := s.ensureSchema(); err != nil {
		return nil, fmt.Errorf("postcache: snapshot schema: %w", err)
	}
	return s, nil
}

func (s *SQLiteStore) ensureSchema() error {
	_, err := s.db.Exec(`
CREATE TABLE IF NOT EXISTS snapshot_posts (
    position INTEGER PRIMARY KEY,
    slug TEXT NOT NULL UNIQUE,
    id TEXT NOT NULL,
    type TEXT NOT NULL,
    title TEXT NOT NULL,
    description TEXT NOT NULL,
    tags TEXT NOT NULL,
    categories TEXT NOT NULL,
    publish_date TEXT NOT NULL,
    draft INTEGER NOT NULL DEFAULT 0,
    author TEXT NOT NULL,
    image TEXT NOT NULL,
    likes INTEGER NOT NULL DEFAULT 0,
    published INTEGER NOT NULL DEFAULT 0
);
CREATE TABLE IF NOT EXISTS snapshot_meta (
    key TEXT PRIMARY KEY,
    value TEXT NOT NULL
);
`)
	return err
}

// Save replaces the stored snapshot in one transaction.
func (s *SQLiteStore) Save(ctx context.Context, snap Snapshot) error {
	published := make(map[string]bool, len(snap.Published))
	for _, a := range snap.Published {
		published[a.Slug] = true
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM snapshot_posts`); err != nil {
		return err
	}
	stmt, err := tx.PrepareContext(ctx, `INSERT INTO snapshot_posts
(position, slug, id, type, title, description, tags, categories, publish_date, draft, author, image, likes, published)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for i, a := range snap.All {
		tags, err := json.Marshal(nonNil(a.Tags))
		if err != nil {
			return err
		}
		cats, err := json.Marshal(nonNil(a.Categories))
		if err != nil {
			return err
		}
		if _, err := stmt.ExecContext(ctx, i, a.Slug, a.ID, a.Type, a.Title, a.Description,
			string(tags), string(cats), a.PublishDate, boolInt(a.Draft), a.Author, a.Image,
			a.Likes, boolInt(published[a.Slug])); err != nil {
			return fmt.Errorf("postcache: insert %s: %w", a.Slug, err)
		}
	}
	if _, err := tx.ExecContext(ctx, `INSERT OR REPLACE INTO snapshot_meta (key, value) VALUES ('written', '1')`); err != nil {
		return err
	}
	return tx.Commit()
}

// Load reads the stored snapshot, or returns ErrNoSnapshot if Save never ran.
func (s *SQLiteStore) Load(ctx context.Context) (Snapshot, error) {
	var written string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM snapshot_meta WHERE key = 'written'`).Scan(&written)
	if err == sql.ErrNoRows {
		return Snapshot{All: []Article{}, Published: []Article{}}, ErrNoSnapshot
	}
	if err != nil {
		return Snapshot{}, err
	}

	rows, err := s.db.QueryContext(ctx, `SELECT slug, id, type, title, description, tags, categories, publish_date, draft, author, image, likes, published
FROM snapshot_posts ORDER BY position`)
	if err != nil {
		return Snapshot{}, err
	}
	defer rows.Close()

	snap := Snapshot{All: []Article{}, Published: []Article{}}
	for rows.Next() {
		var a Article
		var tags, cats string
		var draft, published int
		if err := rows.Scan(&a.Slug, &a.ID, &a.Type, &a.Title, &a.Description, &tags, &cats,
			&a.PublishDate, &draft, &a.Author, &a.Image, &a.Likes, &published); err != nil {
			return Snapshot{}, err
		}
		if err := json.Unmarshal([]byte(tags), &a.Tags); err != nil {
			return Snapshot{}, fmt.Errorf("postcache: decode tags for %s: %w", a.Slug, err)
		}
		if err := json.Unmarshal([]byte(cats), &a.Categories); err != nil {
			return Snapshot{}, fmt.Errorf("postcache: decode categories for %s: %w", a.Slug, err)
		}
		a.Draft = draft == 1
		snap.All = append(snap.All, a)
		if published == 1 {
			snap.Published = append(snap.Published, a)
		}
	}
	if err := rows.Err(); err != nil {
		return Snapshot{}, err
	}
	return snap, nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
