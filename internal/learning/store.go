// Package learning persists short facts, gotchas, and patterns distilled
// from completed tasks in a local sqlite database, retrievable by keyword
// overlap for inclusion in future Worker prompts (spec's Learning Store,
// grounded on the teacher's adaptive-learning store but with a much
// narrower surface: no knowledge graph, no agent-swap intelligence).
package learning

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/mattn/go-sqlite3"

	"github.com/harrison/undercity/internal/models"
)

//go:embed migrations
var migrationsFS embed.FS

// Store is the sqlite-backed Learning store rooted at one database file.
type Store struct {
	db *sql.DB
}

// Open opens (creating and migrating if needed) the learning database at
// path.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open learning database: %w", err)
	}
	if err := migrateUp(db); err != nil {
		db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

func migrateUp(db *sql.DB) error {
	driver, err := sqlite3.WithInstance(db, &sqlite3.Config{})
	if err != nil {
		return fmt.Errorf("create migration driver: %w", err)
	}
	source, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("create migration source: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", source, "sqlite3", driver)
	if err != nil {
		return fmt.Errorf("create migrate instance: %w", err)
	}
	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("apply migrations: %w", err)
	}
	return nil
}

// Close closes the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// Add inserts a new Learning.
func (s *Store) Add(ctx context.Context, l models.Learning) error {
	keywords, err := json.Marshal(l.Keywords)
	if err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO learnings (id, category, content, keywords, confidence, used_count, success_count, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		l.ID, string(l.Category), l.Content, string(keywords), l.Confidence, l.UsedCount, l.SuccessCount, l.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert learning: %w", err)
	}

	for _, kw := range l.Keywords {
		if _, err := tx.ExecContext(ctx, `INSERT INTO learning_keywords (learning_id, keyword) VALUES (?, ?)`, l.ID, strings.ToLower(kw)); err != nil {
			return fmt.Errorf("insert learning keyword: %w", err)
		}
	}

	return tx.Commit()
}

// MarkUsed records one retrieval-and-application of learning id and
// persists the recomputed confidence (models.Learning.MarkUsed's formula).
func (s *Store) MarkUsed(ctx context.Context, id string, success bool) error {
	l, err := s.get(ctx, id)
	if err != nil {
		return err
	}
	l.MarkUsed(success)

	_, err = s.db.ExecContext(ctx,
		`UPDATE learnings SET confidence = ?, used_count = ?, success_count = ? WHERE id = ?`,
		l.Confidence, l.UsedCount, l.SuccessCount, id,
	)
	return err
}

func (s *Store) get(ctx context.Context, id string) (models.Learning, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, category, content, keywords, confidence, used_count, success_count, created_at FROM learnings WHERE id = ?`, id)
	return scanLearning(row)
}

// SearchByKeywords returns Learnings whose keyword set overlaps terms,
// ranked by overlap count then confidence, capped at limit.
func (s *Store) SearchByKeywords(ctx context.Context, terms []string, limit int) ([]models.Learning, error) {
	if len(terms) == 0 || limit <= 0 {
		return nil, nil
	}

	placeholders := make([]string, len(terms))
	args := make([]interface{}, len(terms))
	for i, t := range terms {
		placeholders[i] = "?"
		args[i] = strings.ToLower(t)
	}
	args = append(args, limit)

	query := fmt.Sprintf(`
		SELECT l.id, l.category, l.content, l.keywords, l.confidence, l.used_count, l.success_count, l.created_at
		FROM learnings l
		JOIN learning_keywords k ON k.learning_id = l.id
		WHERE k.keyword IN (%s)
		GROUP BY l.id
		ORDER BY COUNT(*) DESC, l.confidence DESC
		LIMIT ?`, strings.Join(placeholders, ","))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("search learnings: %w", err)
	}
	defer rows.Close()

	var results []models.Learning
	for rows.Next() {
		l, err := scanLearning(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, l)
	}
	return results, rows.Err()
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanLearning(row scanner) (models.Learning, error) {
	var l models.Learning
	var category, keywords string
	if err := row.Scan(&l.ID, &category, &l.Content, &keywords, &l.Confidence, &l.UsedCount, &l.SuccessCount, &l.CreatedAt); err != nil {
		return models.Learning{}, err
	}
	l.Category = models.LearningCategory(category)
	if err := json.Unmarshal([]byte(keywords), &l.Keywords); err != nil {
		return models.Learning{}, err
	}
	return l, nil
}
