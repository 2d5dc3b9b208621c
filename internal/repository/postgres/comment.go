package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/sylwiakmieciak/madebyu-sub000/pkg/database"
	apperrors "github.com/sylwiakmieciak/madebyu-sub000/pkg/errors"
	"github.com/sylwiakmieciak/madebyu-sub000/pkg/pagination"

	"github.com/sylwiakmieciak/madebyu-sub000/internal/domain"
)

const commentColumns = `id, product_id, user_id, comment, approved, created_at`

// CommentRepository implements repository.CommentRepository using PostgreSQL.
type CommentRepository struct {
	db database.DBTX
}

// NewCommentRepository creates a new PostgreSQL-backed comment repository.
func NewCommentRepository(db database.DBTX) *CommentRepository {
	return &CommentRepository{db: db}
}

func scanComment(row pgx.Row) (*domain.Comment, error) {
	var c domain.Comment
	if err := row.Scan(&c.ID, &c.ProductID, &c.UserID, &c.Comment, &c.Approved, &c.CreatedAt); err != nil {
		return nil, err
	}
	return &c, nil
}

// Create inserts a comment.
func (r *CommentRepository) Create(ctx context.Context, c *domain.Comment) error {
	query := `
		INSERT INTO product_comments (id, product_id, user_id, comment, approved, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`

	if _, err := r.db.Exec(ctx, query, c.ID, c.ProductID, c.UserID, c.Comment, c.Approved, c.CreatedAt); err != nil {
		return fmt.Errorf("insert comment: %w", err)
	}
	return nil
}

// GetByID retrieves a comment by its ID.
func (r *CommentRepository) GetByID(ctx context.Context, id string) (*domain.Comment, error) {
	query := `SELECT ` + commentColumns + ` FROM product_comments WHERE id = $1`

	c, err := scanComment(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NotFound("comment", id)
		}
		return nil, fmt.Errorf("get comment: %w", err)
	}
	return c, nil
}

// ListVisible returns the comments of a product that viewerID may see, newest first.
func (r *CommentRepository) ListVisible(ctx context.Context, productID, viewerID string, page pagination.Params) ([]domain.Comment, int, error) {
	args := []any{productID}
	visibility := "approved"
	if viewerID != "" {
		args = append(args, viewerID)
		visibility = "(approved OR user_id = $2)"
	}

	from := "FROM product_comments WHERE product_id = $1 AND " + visibility
	return r.list(ctx, from, "created_at DESC", page, args...)
}

// ListPending returns the comments awaiting moderation, oldest first.
func (r *CommentRepository) ListPending(ctx context.Context, page pagination.Params) ([]domain.Comment, int, error) {
	return r.list(ctx, "FROM product_comments WHERE NOT approved", "created_at ASC", page)
}

func (r *CommentRepository) list(ctx context.Context, from, orderBy string, page pagination.Params, args ...any) ([]domain.Comment, int, error) {
	limit, offset := limitOffset(page.Page, page.PerPage)
	query := fmt.Sprintf(`
		SELECT %s, count(*) OVER() AS total_count
		%s
		ORDER BY %s
		LIMIT $%d OFFSET $%d`,
		commentColumns, from, orderBy, len(args)+1, len(args)+2,
	)

	rows, err := r.db.Query(ctx, query, append(args, limit, offset)...)
	if err != nil {
		return nil, 0, fmt.Errorf("list comments: %w", err)
	}
	defer rows.Close()

	var total int
	comments := make([]domain.Comment, 0)
	for rows.Next() {
		c, err := scanComment(totalCountRow{rows: rows, total: &total})
		if err != nil {
			return nil, 0, fmt.Errorf("scan comment row: %w", err)
		}
		comments = append(comments, *c)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate comment rows: %w", err)
	}
	if len(comments) == 0 && offset > 0 {
		if total, err = countPastLastPage(ctx, r.db, from, args...); err != nil {
			return nil, 0, fmt.Errorf("count comments: %w", err)
		}
	}
	return comments, total, nil
}

// Approve marks a comment approved and reports whether it was pending before.
func (r *CommentRepository) Approve(ctx context.Context, id string) (bool, error) {
	ct, err := r.db.Exec(ctx, `UPDATE product_comments SET approved = TRUE WHERE id = $1 AND NOT approved`, id)
	if err != nil {
		return false, fmt.Errorf("approve comment: %w", err)
	}
	return ct.RowsAffected() > 0, nil
}

// Delete removes a comment.
func (r *CommentRepository) Delete(ctx context.Context, id string) error {
	ct, err := r.db.Exec(ctx, `DELETE FROM product_comments WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete comment: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return apperrors.NotFound("comment", id)
	}
	return nil
}
