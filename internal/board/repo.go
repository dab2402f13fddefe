package board

import (
	"context"
	"database/sql"
	"errors"

	"meeting/internal/domain"
	"meeting/internal/store"
)

// Repository persists posts in Postgres.
type Repository struct {
	db store.Querier
}

// NewRepository creates a repo.
func NewRepository(db store.Querier) *Repository {
	return &Repository{db: db}
}

// ClassExists reports whether classID names a class.
func (r *Repository) ClassExists(ctx context.Context, classID int64) (bool, error) {
	var ok bool
	err := r.db.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM classes WHERE id = $1)`, classID).Scan(&ok)
	return ok, err
}

// Create inserts a post and fills in its id, timestamps and author name.
func (r *Repository) Create(ctx context.Context, p *Post) error {
	row := r.db.QueryRowContext(ctx, `
		WITH ins AS (
			INSERT INTO posts (class_id, author_id, title, content, category, pinned)
			VALUES ($1,$2,$3,$4,$5,$6)
			RETURNING id, author_id, created_at, updated_at
		)
		SELECT ins.id, ins.created_at, ins.updated_at, m.name
		FROM ins JOIN members m ON m.id = ins.author_id
	`, p.ClassID, p.AuthorID, p.Title, p.Content, string(p.Category), p.Pinned)
	if err := row.Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt, &p.AuthorName); err != nil {
		if store.IsForeignKeyViolation(err) {
			return domain.ErrNotFound
		}
		return err
	}
	return nil
}

const postColumns = `p.id, p.class_id, c.name, p.author_id, m.name, p.title, p.content, p.category, p.views, p.pinned, p.created_at, p.updated_at`

func scanPost(scan func(...any) error) (Post, error) {
	var p Post
	err := scan(&p.ID, &p.ClassID, &p.ClassName, &p.AuthorID, &p.AuthorName, &p.Title, &p.Content, &p.Category, &p.Views, &p.Pinned, &p.CreatedAt, &p.UpdatedAt)
	return p, err
}

// List returns one page of a class board and the board's total post count.
func (r *Repository) List(ctx context.Context, classID int64, limit, offset int) ([]Post, int64, error) {
	var total int64
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM posts WHERE class_id = $1`, classID).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+postColumns+`
		FROM posts p
		JOIN members m ON m.id = p.author_id
		JOIN classes c ON c.id = p.class_id
		WHERE p.class_id = $1
		ORDER BY p.pinned DESC, p.created_at DESC, p.id DESC
		LIMIT $2 OFFSET $3
	`, classID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	res := []Post{}
	for rows.Next() {
		p, err := scanPost(rows.Scan)
		if err != nil {
			return nil, 0, err
		}
		p.Content = ""
		res = append(res, p)
	}
	return res, total, rows.Err()
}

// View increments the view counter and returns the post.
func (r *Repository) View(ctx context.Context, postID int64) (Post, error) {
	row := r.db.QueryRowContext(ctx, `
		WITH upd AS (
			UPDATE posts SET views = views + 1 WHERE id = $1
			RETURNING *
		)
		SELECT `+postColumns+`
		FROM upd p
		JOIN members m ON m.id = p.author_id
		JOIN classes c ON c.id = p.class_id
	`, postID)
	p, err := scanPost(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return Post{}, domain.ErrNotFound
	}
	return p, err
}

// ByAuthor lists a member's latest posts across classes.
func (r *Repository) ByAuthor(ctx context.Context, memberID string, limit int) ([]Post, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+postColumns+`
		FROM posts p
		JOIN members m ON m.id = p.author_id
		JOIN classes c ON c.id = p.class_id
		WHERE p.author_id = $1
		ORDER BY p.created_at DESC
		LIMIT $2
	`, memberID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	res := []Post{}
	for rows.Next() {
		p, err := scanPost(rows.Scan)
		if err != nil {
			return nil, err
		}
		p.Content = ""
		res = append(res, p)
	}
	return res, rows.Err()
}
