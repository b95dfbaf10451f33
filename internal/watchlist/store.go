// Package watchlist provides SQLite persistence for the user's saved
// movies and personal ratings.
package watchlist

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"

	_ "modernc.org/sqlite"

	"github.com/handrew/reelrec/internal/catalog"
)

const (
	StatusPlanned = "planned"
	StatusWatched = "watched"
)

var ErrInvalidRating = errors.New("watchlist: rating must be between 1 and 10")

type Store struct {
	sqldb *sql.DB
	db    *bun.DB
}

// Entry is one watchlist row. TMDBID is unique: adding the same movie
// twice keeps a single row.
type Entry struct {
	bun.BaseModel `bun:"table:watchlist,alias:w"`

	ID          int64             `bun:"id,pk,autoincrement"`
	TMDBID      int64             `bun:"tmdb_id,notnull"`
	Title       string            `bun:"title,notnull"`
	Year        sql.Null[int64]   `bun:"year,nullzero"`
	Genres      sql.Null[string]  `bun:"genres,nullzero"`
	Overview    sql.Null[string]  `bun:"overview,nullzero"`
	PosterPath  sql.Null[string]  `bun:"poster_path,nullzero"`
	VoteAverage sql.Null[float64] `bun:"vote_average,nullzero"`
	Status      string            `bun:"status,notnull"`
	Rating      sql.Null[float64] `bun:"rating,nullzero"`

	CreatedAt string `bun:"created_at,notnull"`
	UpdatedAt string `bun:"updated_at,notnull"`
}

type ListFilters struct {
	Status string
	Sort   string
}

func Open(dbPath string) (*Store, error) {
	if dbPath == "" {
		return nil, errors.New("DB_PATH is required")
	}

	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, err
		}
	}

	sqldb, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}

	ctx := context.Background()
	if err := sqldb.PingContext(ctx); err != nil {
		if cerr := sqldb.Close(); cerr != nil {
			return nil, fmt.Errorf("ping db: %w; close failed: %w", err, cerr)
		}
		return nil, err
	}

	if err := initSchema(ctx, sqldb); err != nil {
		if cerr := sqldb.Close(); cerr != nil {
			return nil, fmt.Errorf("init schema: %w; close failed: %w", err, cerr)
		}
		return nil, err
	}

	bdb := bun.NewDB(sqldb, sqlitedialect.New())
	return &Store{sqldb: sqldb, db: bdb}, nil
}

func (s *Store) Close() error { return s.sqldb.Close() }

func initSchema(ctx context.Context, db *sql.DB) error {
	schema := `
CREATE TABLE IF NOT EXISTS watchlist (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	tmdb_id INTEGER NOT NULL UNIQUE,
	title TEXT NOT NULL,
	year INTEGER,
	genres TEXT,
	overview TEXT,
	poster_path TEXT,
	vote_average REAL,
	status TEXT NOT NULL,
	rating REAL,
	created_at TEXT NOT NULL,
	updated_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_watchlist_status ON watchlist(status);
`
	_, err := db.ExecContext(ctx, schema)
	return err
}

// Add upserts the movie. On conflict the metadata columns refresh but
// status and rating keep whatever the user already set.
func (s *Store) Add(ctx context.Context, m catalog.Movie) (int64, error) {
	now := time.Now().UTC().Format(time.RFC3339)

	entry := Entry{
		TMDBID:    m.ID,
		Title:     m.Title,
		Status:    StatusPlanned,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if year := m.Year(); year > 0 {
		entry.Year = sql.Null[int64]{V: int64(year), Valid: true}
	}
	if len(m.Genres) > 0 {
		entry.Genres = sql.Null[string]{V: strings.Join(m.Genres, ", "), Valid: true}
	}
	if m.Overview != "" {
		entry.Overview = sql.Null[string]{V: m.Overview, Valid: true}
	}
	if m.PosterPath != "" {
		entry.PosterPath = sql.Null[string]{V: m.PosterPath, Valid: true}
	}
	if m.VoteAverage > 0 {
		entry.VoteAverage = sql.Null[float64]{V: m.VoteAverage, Valid: true}
	}

	res, err := s.db.NewInsert().
		Model(&entry).
		Column(
			"tmdb_id",
			"title",
			"year",
			"genres",
			"overview",
			"poster_path",
			"vote_average",
			"status",
			"rating",
			"created_at",
			"updated_at",
		).
		On("CONFLICT (tmdb_id) DO UPDATE").
		Set("title = EXCLUDED.title").
		Set("year = EXCLUDED.year").
		Set("genres = EXCLUDED.genres").
		Set("overview = EXCLUDED.overview").
		Set("poster_path = EXCLUDED.poster_path").
		Set("vote_average = EXCLUDED.vote_average").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx)
	if err != nil {
		return 0, err
	}

	id, err := res.LastInsertId()
	if err == nil && id != 0 {
		return id, nil
	}
	return s.idByTMDB(ctx, m.ID)
}

func (s *Store) idByTMDB(ctx context.Context, tmdbID int64) (int64, error) {
	var id int64
	err := s.db.NewSelect().
		Table("watchlist").
		Column("id").
		Where("tmdb_id = ?", tmdbID).
		Scan(ctx, &id)
	if err != nil {
		return 0, err
	}
	return id, nil
}

// Remove deletes by TMDB id. Removing an absent movie is not an error.
func (s *Store) Remove(ctx context.Context, tmdbID int64) error {
	_, err := s.db.NewDelete().
		Table("watchlist").
		Where("tmdb_id = ?", tmdbID).
		Exec(ctx)
	return err
}

// SetStatus flips an entry between planned and watched.
func (s *Store) SetStatus(ctx context.Context, tmdbID int64, status string) error {
	if status != StatusPlanned && status != StatusWatched {
		return fmt.Errorf("watchlist: unknown status %q", status)
	}
	now := time.Now().UTC().Format(time.RFC3339)

	res, err := s.db.NewUpdate().
		Table("watchlist").
		Set("status = ?", status).
		Set("updated_at = ?", now).
		Where("tmdb_id = ?", tmdbID).
		Exec(ctx)
	if err != nil {
		return err
	}
	return expectRowsAffected(res)
}

// SetRating records a personal rating. Rating a movie marks it watched.
func (s *Store) SetRating(ctx context.Context, tmdbID int64, rating float64) error {
	if rating < 1 || rating > 10 {
		return ErrInvalidRating
	}
	now := time.Now().UTC().Format(time.RFC3339)

	res, err := s.db.NewUpdate().
		Table("watchlist").
		Set("rating = ?", rating).
		Set("status = ?", StatusWatched).
		Set("updated_at = ?", now).
		Where("tmdb_id = ?", tmdbID).
		Exec(ctx)
	if err != nil {
		return err
	}
	return expectRowsAffected(res)
}

func (s *Store) ClearRating(ctx context.Context, tmdbID int64) error {
	now := time.Now().UTC().Format(time.RFC3339)

	res, err := s.db.NewUpdate().
		Table("watchlist").
		Set("rating = NULL").
		Set("updated_at = ?", now).
		Where("tmdb_id = ?", tmdbID).
		Exec(ctx)
	if err != nil {
		return err
	}
	return expectRowsAffected(res)
}

func (s *Store) Get(ctx context.Context, tmdbID int64) (Entry, error) {
	var entry Entry
	err := s.db.NewSelect().
		Model(&entry).
		Where("tmdb_id = ?", tmdbID).
		Limit(1).
		Scan(ctx)
	return entry, err
}

func (s *Store) List(ctx context.Context, filters ListFilters) (out []Entry, err error) {
	q := s.db.NewSelect().Model(&out)

	if filters.Status != "" && filters.Status != "all" {
		q = q.Where("status = ?", filters.Status)
	}

	switch filters.Sort {
	case "rating":
		q = q.OrderExpr("rating DESC")
	case "year":
		q = q.OrderExpr("year DESC")
	case "title":
		q = q.OrderExpr("title COLLATE NOCASE ASC")
	default:
		q = q.OrderExpr("updated_at DESC")
	}

	err = q.Scan(ctx)
	return out, err
}

// Ratings returns the rated entries keyed by title, the shape the
// rating-history recommender consumes.
func (s *Store) Ratings(ctx context.Context) (map[string]float64, error) {
	var rows []Entry
	err := s.db.NewSelect().
		Model(&rows).
		Where("rating IS NOT NULL").
		Scan(ctx)
	if err != nil {
		return nil, err
	}

	out := make(map[string]float64, len(rows))
	for _, row := range rows {
		out[row.Title] = row.Rating.V
	}
	return out, nil
}

func expectRowsAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}
