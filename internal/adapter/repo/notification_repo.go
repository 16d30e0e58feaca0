package repo

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"pixelforge/internal/domain"
)

// NotificationRepositoryPG implements domain.NotificationRepository.
type NotificationRepositoryPG struct {
	pool *pgxpool.Pool
}

// NewNotificationRepository creates a new notification repository backed by PostgreSQL.
func NewNotificationRepository(pool *pgxpool.Pool) *NotificationRepositoryPG {
	return &NotificationRepositoryPG{pool: pool}
}

// Insert stores a new notification row.
func (r *NotificationRepositoryPG) Insert(ctx context.Context, n *domain.Notification) error {
	query := `
INSERT INTO notifications (id, user_id, kind, title, body)
VALUES ($1, $2, $3, $4, $5);
`
	_, err := r.pool.Exec(ctx, query, n.ID, n.UserID, n.Kind, n.Title, n.Body)
	return err
}

// Update rewrites the content of an existing notification in place.
func (r *NotificationRepositoryPG) Update(ctx context.Context, id string, kind domain.NotificationKind, title, body string) error {
	query := `
UPDATE notifications
SET kind = $2, title = $3, body = $4, updated_at = NOW()
WHERE id = $1;
`
	tag, err := r.pool.Exec(ctx, query, id, kind, title, body)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// ListByUser returns the user's notifications, newest first.
func (r *NotificationRepositoryPG) ListByUser(ctx context.Context, userID string, limit int) ([]domain.Notification, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `
SELECT id, user_id, kind, title, body, read, created_at, updated_at
FROM notifications
WHERE user_id = $1
ORDER BY created_at DESC
LIMIT $2;
`
	rows, err := r.pool.Query(ctx, query, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []domain.Notification
	for rows.Next() {
		var n domain.Notification
		if err := rows.Scan(&n.ID, &n.UserID, &n.Kind, &n.Title, &n.Body, &n.Read, &n.CreatedAt, &n.UpdatedAt); err != nil {
			return nil, err
		}
		items = append(items, n)
	}
	return items, rows.Err()
}

// MarkRead flags a notification as seen by its owner.
func (r *NotificationRepositoryPG) MarkRead(ctx context.Context, id, userID string) error {
	query := `
UPDATE notifications
SET read = TRUE, updated_at = NOW()
WHERE id = $1 AND user_id = $2;
`
	tag, err := r.pool.Exec(ctx, query, id, userID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

var _ domain.NotificationRepository = (*NotificationRepositoryPG)(nil)
