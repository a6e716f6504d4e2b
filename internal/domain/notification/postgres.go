package notification

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/caretrack/go-caretrack/internal/domain/errs"
	infra "github.com/caretrack/go-caretrack/internal/infrastructure/postgres"
)

// Topics the outbox relay delivers notifications to.
const (
	TopicReminders   = "care.reminders"
	TopicVitalAlerts = "care.vital-alerts"
)

// PgRepository persists notifications and preferences in PostgreSQL.
// Reminder and alert rows are written together with an outbox entry in
// one transaction, so a notification is never visible without its
// delivery event or vice versa.
type PgRepository struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

func NewPgRepository(pool *pgxpool.Pool, logger *zap.Logger) *PgRepository {
	return &PgRepository{pool: pool, logger: logger}
}

const notificationColumns = `id, user_id, type, title, message, data, is_read, read_at, created_at`

func (r *PgRepository) Create(ctx context.Context, n *Notification) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	query := `
		INSERT INTO notifications (` + notificationColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`
	_, err = tx.Exec(ctx, query,
		n.ID, n.UserID, string(n.Type), n.Title, n.Message, n.Data,
		n.IsRead, n.ReadAt, n.CreatedAt)
	if err != nil {
		return fmt.Errorf("inserting notification: %w", err)
	}

	if topic := deliveryTopic(n.Type); topic != "" {
		payload, err := n.marshalEvent()
		if err != nil {
			return fmt.Errorf("encoding notification event: %w", err)
		}
		entry := &infra.OutboxEntry{
			AggregateID:   n.ID,
			AggregateType: "notification",
			EventType:     string(n.Type),
			Payload:       payload,
			KafkaTopic:    topic,
			KafkaKey:      n.UserID,
		}
		if err := infra.WriteEntry(ctx, tx, entry); err != nil {
			return err
		}
	}

	return tx.Commit(ctx)
}

func deliveryTopic(t Type) string {
	switch t {
	case TypeMedicationReminder:
		return TopicReminders
	case TypeVitalAlert:
		return TopicVitalAlerts
	}
	return ""
}

func (r *PgRepository) GetByID(ctx context.Context, id string) (*Notification, error) {
	query := `SELECT ` + notificationColumns + ` FROM notifications WHERE id = $1`
	n, err := scanNotification(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errs.ErrNotFound
		}
		return nil, fmt.Errorf("querying notification: %w", err)
	}
	return n, nil
}

func (r *PgRepository) List(ctx context.Context, userID string, unreadOnly bool, page, limit int) ([]Notification, int, error) {
	where := `WHERE user_id = $1`
	if unreadOnly {
		where += ` AND NOT is_read`
	}

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM notifications `+where, userID).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("counting notifications: %w", err)
	}

	query := `SELECT ` + notificationColumns + ` FROM notifications ` + where + `
		ORDER BY created_at DESC LIMIT $2 OFFSET $3`
	rows, err := r.pool.Query(ctx, query, userID, limit, (page-1)*limit)
	if err != nil {
		return nil, 0, fmt.Errorf("querying notifications: %w", err)
	}
	defer rows.Close()

	var items []Notification
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scanning notification: %w", err)
		}
		items = append(items, *n)
	}
	return items, total, rows.Err()
}

func (r *PgRepository) UnreadCount(ctx context.Context, userID string) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM notifications WHERE user_id = $1 AND NOT is_read`, userID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("counting unread notifications: %w", err)
	}
	return count, nil
}

func (r *PgRepository) MarkRead(ctx context.Context, id, userID string) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE notifications SET is_read = TRUE, read_at = NOW()
		WHERE id = $1 AND user_id = $2 AND NOT is_read`, id, userID)
	if err != nil {
		return fmt.Errorf("marking notification read: %w", err)
	}
	if tag.RowsAffected() == 0 {
		// Distinguish missing from already read.
		var exists bool
		if err := r.pool.QueryRow(ctx,
			`SELECT EXISTS (SELECT 1 FROM notifications WHERE id = $1 AND user_id = $2)`,
			id, userID).Scan(&exists); err != nil {
			return fmt.Errorf("checking notification: %w", err)
		}
		if !exists {
			return errs.ErrNotFound
		}
	}
	return nil
}

func (r *PgRepository) MarkAllRead(ctx context.Context, userID string) (int, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE notifications SET is_read = TRUE, read_at = NOW()
		WHERE user_id = $1 AND NOT is_read`, userID)
	if err != nil {
		return 0, fmt.Errorf("marking notifications read: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

func (r *PgRepository) Delete(ctx context.Context, id, userID string) error {
	tag, err := r.pool.Exec(ctx,
		`DELETE FROM notifications WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return fmt.Errorf("deleting notification: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return errs.ErrNotFound
	}
	return nil
}

func (r *PgRepository) ClearAll(ctx context.Context, userID string) (int, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM notifications WHERE user_id = $1`, userID)
	if err != nil {
		return 0, fmt.Errorf("clearing notifications: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

func (r *PgRepository) GetPreferences(ctx context.Context, userID string) (*Preferences, error) {
	query := `
		SELECT user_id, medication_reminders, vital_alerts, system_notices,
		       quiet_hours_start, quiet_hours_end, updated_at
		FROM notification_preferences WHERE user_id = $1`
	var p Preferences
	err := r.pool.QueryRow(ctx, query, userID).Scan(
		&p.UserID, &p.MedicationReminders, &p.VitalAlerts, &p.SystemNotices,
		&p.QuietHoursStart, &p.QuietHoursEnd, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errs.ErrNotFound
		}
		return nil, fmt.Errorf("querying notification preferences: %w", err)
	}
	return &p, nil
}

func (r *PgRepository) SavePreferences(ctx context.Context, p *Preferences) error {
	query := `
		INSERT INTO notification_preferences
			(user_id, medication_reminders, vital_alerts, system_notices, quiet_hours_start, quiet_hours_end, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (user_id) DO UPDATE SET
			medication_reminders = EXCLUDED.medication_reminders,
			vital_alerts = EXCLUDED.vital_alerts,
			system_notices = EXCLUDED.system_notices,
			quiet_hours_start = EXCLUDED.quiet_hours_start,
			quiet_hours_end = EXCLUDED.quiet_hours_end,
			updated_at = EXCLUDED.updated_at`
	_, err := r.pool.Exec(ctx, query,
		p.UserID, p.MedicationReminders, p.VitalAlerts, p.SystemNotices,
		p.QuietHoursStart, p.QuietHoursEnd, p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("saving notification preferences: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanNotification(row rowScanner) (*Notification, error) {
	var n Notification
	var typ string
	err := row.Scan(&n.ID, &n.UserID, &typ, &n.Title, &n.Message, &n.Data,
		&n.IsRead, &n.ReadAt, &n.CreatedAt)
	if err != nil {
		return nil, err
	}
	n.Type = Type(typ)
	return &n, nil
}
