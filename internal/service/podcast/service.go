package podcast

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"paperwave/internal/models"
)

// ErrNotFound reports a lookup for a podcast that does not exist.
var ErrNotFound = errors.New("podcast not found")

// Service persists and reads podcast artifacts. Authors and keywords are
// stored as JSON arrays in TEXT columns so the same schema works on sqlite
// and mysql.
type Service struct {
	db *sql.DB
}

func NewService(db *sql.DB) *Service {
	return &Service{db: db}
}

// CreatePodcast inserts the artifact and returns it with its assigned id and
// creation time.
func (s *Service) CreatePodcast(ctx context.Context, p *models.Podcast) (*models.Podcast, error) {
	authors, err := json.Marshal(p.Authors)
	if err != nil {
		return nil, fmt.Errorf("encode authors: %w", err)
	}
	keywords, err := json.Marshal(p.Keywords)
	if err != nil {
		return nil, fmt.Errorf("encode keywords: %w", err)
	}

	createdAt := time.Now().UTC()
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO podcasts
			(user_id, title, abstract, authors, publishing_year, field_of_research,
			 doi, keywords, cover_image_url, audio_url, script, is_public, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.UserID, p.Title, p.Abstract, string(authors), p.PublishingYear, p.FieldOfResearch,
		p.DOI, string(keywords), p.CoverImageURL, p.AudioURL, p.Script, p.IsPublic, createdAt,
	)
	if err != nil {
		return nil, fmt.Errorf("insert podcast: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("read podcast id: %w", err)
	}

	stored := *p
	stored.ID = id
	stored.CreatedAt = createdAt
	return &stored, nil
}

// GetPodcast loads one podcast by id.
func (s *Service) GetPodcast(ctx context.Context, id int64) (*models.Podcast, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, user_id, title, abstract, authors, publishing_year, field_of_research,
		        doi, keywords, cover_image_url, audio_url, script, is_public, created_at
		 FROM podcasts WHERE id = ?`, id)
	p, err := scanPodcast(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query podcast %d: %w", id, err)
	}
	return p, nil
}

// ListPodcasts returns a user's podcasts, newest first.
func (s *Service) ListPodcasts(ctx context.Context, userID int64) ([]*models.Podcast, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, user_id, title, abstract, authors, publishing_year, field_of_research,
		        doi, keywords, cover_image_url, audio_url, script, is_public, created_at
		 FROM podcasts WHERE user_id = ? ORDER BY created_at DESC, id DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("query podcasts for user %d: %w", userID, err)
	}
	defer rows.Close()

	podcasts := make([]*models.Podcast, 0)
	for rows.Next() {
		p, err := scanPodcast(rows)
		if err != nil {
			return nil, fmt.Errorf("scan podcast row: %w", err)
		}
		podcasts = append(podcasts, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate podcast rows: %w", err)
	}
	return podcasts, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPodcast(row rowScanner) (*models.Podcast, error) {
	var (
		p        models.Podcast
		authors  string
		keywords string
	)
	err := row.Scan(&p.ID, &p.UserID, &p.Title, &p.Abstract, &authors, &p.PublishingYear,
		&p.FieldOfResearch, &p.DOI, &keywords, &p.CoverImageURL, &p.AudioURL,
		&p.Script, &p.IsPublic, &p.CreatedAt)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(authors), &p.Authors); err != nil {
		return nil, fmt.Errorf("decode authors: %w", err)
	}
	if err := json.Unmarshal([]byte(keywords), &p.Keywords); err != nil {
		return nil, fmt.Errorf("decode keywords: %w", err)
	}
	return &p, nil
}
