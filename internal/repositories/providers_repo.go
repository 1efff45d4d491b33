package repositories

import (
	"context"
	"strconv"
	"strings"
	"time"

	"galapa/internal/models"
	"galapa/pkg/database"

	"github.com/jackc/pgx/v5"
)

// DefaultQueryTimeout bounds pool acquisition plus statement execution.
const DefaultQueryTimeout = 5 * time.Second

const providerColumns = `id, company, contact, type, email, phone, address, status, registered_at, last_purchase_date, registering_user_id`

// UpdateOptions tunes how Update treats optional columns.
type UpdateOptions struct {
	// ClearLastPurchaseDate writes NULL when provider.LastPurchaseDate is nil.
	ClearLastPurchaseDate bool
}

type ProviderRepository interface {
	List(ctx context.Context, filter models.ProviderFilter) ([]*models.Provider, error)
	GetByID(ctx context.Context, id int64) (*models.Provider, error)
	// Create inserts provider and fills in the server assigned fields.
	Create(ctx context.Context, provider *models.Provider, changedBy *int64) error
	// Update rewrites the mutable fields of provider.ID. An empty Status or a nil
	// LastPurchaseDate keeps the stored value unless opts says otherwise.
	// provider is refreshed from the row.
	Update(ctx context.Context, provider *models.Provider, opts UpdateOptions, changedBy *int64) error
	// Delete removes the provider and returns the row as it was.
	Delete(ctx context.Context, id int64, changedBy *int64) (*models.Provider, error)
}

type providerRepo struct {
	db      database.DB
	audit   AuditLogsRepository
	timeout time.Duration
}

func NewProviderRepository(db database.DB, audit AuditLogsRepository, timeout time.Duration) ProviderRepository {
	if timeout <= 0 {
		timeout = DefaultQueryTimeout
	}
	return &providerRepo{db: db, audit: audit, timeout: timeout}
}

func scanProvider(row pgx.Row, provider *models.Provider) error {
	return row.Scan(
		&provider.ID,
		&provider.Company,
		&provider.Contact,
		&provider.Type,
		&provider.Email,
		&provider.Phone,
		&provider.Address,
		&provider.Status,
		&provider.RegisteredAt,
		&provider.LastPurchaseDate,
		&provider.RegisteringUserID,
	)
}

func (r *providerRepo) List(ctx context.Context, filter models.ProviderFilter) ([]*models.Provider, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	var (
		conditions []string
		args       []any
	)
	if filter.Status != "" {
		args = append(args, string(filter.Status))
		conditions = append(conditions, "status = $"+strconv.Itoa(len(args)))
	}
	if filter.Type != "" {
		args = append(args, filter.Type)
		conditions = append(conditions, "type = $"+strconv.Itoa(len(args)))
	}

	query := `SELECT ` + providerColumns + ` FROM providers`
	if len(conditions) > 0 {
		query += ` WHERE ` + strings.Join(conditions, " AND ")
	}
	query += ` ORDER BY company ASC, id ASC`

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, classifyError("list providers", err)
	}
	defer rows.Close()

	providers := make([]*models.Provider, 0)
	for rows.Next() {
		provider := &models.Provider{}
		if err := scanProvider(rows, provider); err != nil {
			return nil, classifyError("scan provider", err)
		}
		providers = append(providers, provider)
	}
	if err := rows.Err(); err != nil {
		return nil, classifyError("list providers", err)
	}
	return providers, nil
}

func (r *providerRepo) GetByID(ctx context.Context, id int64) (*models.Provider, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	provider := &models.Provider{}
	query := `SELECT ` + providerColumns + ` FROM providers WHERE id = $1`
	if err := scanProvider(r.db.QueryRow(ctx, query, id), provider); err != nil {
		return nil, classifyError("get provider", err)
	}
	return provider, nil
}

func (r *providerRepo) Create(ctx context.Context, provider *models.Provider, changedBy *int64) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	query := `
		INSERT INTO providers (company, contact, type, email, phone, address, status, registered_at, last_purchase_date, registering_user_id)
		VALUES ($1, $2, $3, $4, $5, $6, 'A', now(), $7, $8)
		RETURNING ` + providerColumns

	err := database.WithTx(ctx, r.db, func(tx pgx.Tx) error {
		row := tx.QueryRow(ctx, query,
			provider.Company, provider.Contact, provider.Type, provider.Email, provider.Phone, provider.Address,
			provider.LastPurchaseDate, provider.RegisteringUserID)
		if err := scanProvider(row, provider); err != nil {
			return classifyError("insert provider", err)
		}

		return r.audit.Record(ctx, tx, &models.AuditLog{
			ProviderID: provider.ID,
			Action:     models.ActionInsert,
			NewValues:  provider.Snapshot(),
			ChangedBy:  changedBy,
		})
	})
	return classifyError("create provider", err)
}

func (r *providerRepo) Update(ctx context.Context, provider *models.Provider, opts UpdateOptions, changedBy *int64) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	err := database.WithTx(ctx, r.db, func(tx pgx.Tx) error {
		// Row lock serializes this update against concurrent deletes of the same id.
		existing := &models.Provider{}
		lockQuery := `SELECT ` + providerColumns + ` FROM providers WHERE id = $1 FOR UPDATE`
		if err := scanProvider(tx.QueryRow(ctx, lockQuery, provider.ID), existing); err != nil {
			return classifyError("lock provider", err)
		}

		updateQuery := `
			UPDATE providers
			SET company = $1, contact = $2, type = $3, email = $4, phone = $5, address = $6,
				status = COALESCE(NULLIF($7::text, ''), status),
				last_purchase_date = CASE WHEN $10::boolean THEN $8::date
					ELSE COALESCE($8::date, last_purchase_date) END
			WHERE id = $9
			RETURNING ` + providerColumns

		row := tx.QueryRow(ctx, updateQuery,
			provider.Company, provider.Contact, provider.Type, provider.Email, provider.Phone, provider.Address,
			string(provider.Status), provider.LastPurchaseDate, provider.ID, opts.ClearLastPurchaseDate)
		if err := scanProvider(row, provider); err != nil {
			return classifyError("update provider", err)
		}

		return r.audit.Record(ctx, tx, &models.AuditLog{
			ProviderID: provider.ID,
			Action:     models.ActionUpdate,
			OldValues:  existing.Snapshot(),
			NewValues:  provider.Snapshot(),
			ChangedBy:  changedBy,
		})
	})
	return classifyError("update provider", err)
}

func (r *providerRepo) Delete(ctx context.Context, id int64, changedBy *int64) (*models.Provider, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	deleted := &models.Provider{}
	err := database.WithTx(ctx, r.db, func(tx pgx.Tx) error {
		query := `DELETE FROM providers WHERE id = $1 RETURNING ` + providerColumns
		if err := scanProvider(tx.QueryRow(ctx, query, id), deleted); err != nil {
			return classifyError("delete provider", err)
		}

		return r.audit.Record(ctx, tx, &models.AuditLog{
			ProviderID: deleted.ID,
			Action:     models.ActionDelete,
			OldValues:  deleted.Snapshot(),
			ChangedBy:  changedBy,
		})
	})
	if err != nil {
		return nil, classifyError("delete provider", err)
	}
	return deleted, nil
}
