package repositories

import (
	"context"
	"time"

	"galapa/internal/models"
	"galapa/pkg/database"
)

type AuditLogsRepository interface {
	// Record inserts an entry through q, usually the transaction of the change it describes.
	Record(ctx context.Context, q Querier, auditLog *models.AuditLog) error

	// ListByProvider returns the history of one provider, newest first.
	ListByProvider(ctx context.Context, providerID int64, limit, offset int) ([]*models.AuditLog, error)

	// PurgeOlderThan deletes entries created before cutoff.
	PurgeOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

type auditLogsRepo struct {
	db      database.DB
	timeout time.Duration
}

func NewAuditLogsRepo(db database.DB, timeout time.Duration) AuditLogsRepository {
	if timeout <= 0 {
		timeout = DefaultQueryTimeout
	}
	return &auditLogsRepo{db: db, timeout: timeout}
}

// Record runs inside the caller's transaction and shares its deadline.

func (r *auditLogsRepo) Record(ctx context.Context, q Querier, auditLog *models.AuditLog) error {
	query := `
		INSERT INTO provider_audit_log (provider_id, action, old_values, new_values, changed_by)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at
	`
	err := q.QueryRow(ctx, query, auditLog.ProviderID, auditLog.Action, auditLog.OldValues, auditLog.NewValues, auditLog.ChangedBy).
		Scan(&auditLog.ID, &auditLog.CreatedAt)
	return classifyError("record audit log", err)
}

func (r *auditLogsRepo) ListByProvider(ctx context.Context, providerID int64, limit, offset int) ([]*models.AuditLog, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	query := `
		SELECT id, provider_id, action, old_values, new_values, changed_by, created_at
		FROM provider_audit_log
		WHERE provider_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2 OFFSET $3
	`
	rows, err := r.db.Query(ctx, query, providerID, limit, offset)
	if err != nil {
		return nil, classifyError("list audit logs", err)
	}
	defer rows.Close()

	logs := make([]*models.AuditLog, 0)
	for rows.Next() {
		entry := &models.AuditLog{}
		if err := rows.Scan(&entry.ID, &entry.ProviderID, &entry.Action, &entry.OldValues, &entry.NewValues, &entry.ChangedBy, &entry.CreatedAt); err != nil {
			return nil, classifyError("scan audit log", err)
		}
		logs = append(logs, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, classifyError("list audit logs", err)
	}
	return logs, nil
}

func (r *auditLogsRepo) PurgeOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	tag, err := r.db.Exec(ctx, `DELETE FROM provider_audit_log WHERE created_at < $1`, cutoff)
	if err != nil {
		return 0, classifyError("purge audit logs", err)
	}
	return tag.RowsAffected(), nil
}
