package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// RecentLimit is how many posts the API lists.
const RecentLimit = 10

// Post is a saved post.
type Post struct {
	ID        int64     `json:"id"`
	Topic     string    `json:"topic"`
	Prompt    string    `json:"prompt"`
	Content   string    `json:"content"`
	ImageURL  *string   `json:"image_url"`
	CreatedAt time.Time `json:"created_at"`
}

// NewPost is the input to SavePost. An empty ImageURL is stored as NULL.
type NewPost struct {
	Topic    string `json:"topic"`
	Prompt   string `json:"prompt"`
	Content  string `json:"content"`
	ImageURL string `json:"image_url"`
}

// SavePost inserts a post and returns the stored row.
func (s *Store) SavePost(ctx context.Context, p NewPost) (Post, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var image sql.NullString
	if p.ImageURL != "" {
		image = sql.NullString{String: p.ImageURL, Valid: true}
	}
	now := time.Now().UTC()

	res, err := s.db.ExecContext(ctx,
		`INSERT INTO linkedin_posts (topic, prompt, content, image_url, created_at) VALUES (?, ?, ?, ?, ?)`,
		p.Topic, p.Prompt, p.Content, image, now.UnixMicro())
	if err != nil {
		return Post{}, fmt.Errorf("failed to save post: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return Post{}, fmt.Errorf("failed to read post id: %w", err)
	}

	row := s.db.QueryRowContext(ctx,
		`SELECT id, topic, prompt, content, image_url, created_at FROM linkedin_posts WHERE id = ?`, id)
	post, err := scanPost(row)
	if err != nil {
		return Post{}, err
	}
	s.logger.Debug("post saved", zap.Int64("id", post.ID), zap.String("topic", post.Topic))
	return post, nil
}

// RecentPosts returns up to limit posts, newest first.
func (s *Store) RecentPosts(ctx context.Context, limit int) ([]Post, error) {
	if limit <= 0 {
		limit = RecentLimit
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, topic, prompt, content, image_url, created_at FROM linkedin_posts
		 ORDER BY created_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch posts: %w", err)
	}
	defer rows.Close()

	posts := make([]Post, 0, limit)
	for rows.Next() {
		p, err := scanPost(rows)
		if err != nil {
			return nil, err
		}
		posts = append(posts, p)
	}
	return posts, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanPost(sc scanner) (Post, error) {
	var (
		p       Post
		image   sql.NullString
		created int64
	)
	if err := sc.Scan(&p.ID, &p.Topic, &p.Prompt, &p.Content, &image, &created); err != nil {
		return Post{}, fmt.Errorf("failed to scan post: %w", err)
	}
	if image.Valid {
		p.ImageURL = &image.String
	}
	p.CreatedAt = time.UnixMicro(created).UTC()
	return p, nil
}
