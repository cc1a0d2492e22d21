package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/dkrylov/filegate/internal/domain/model"
)

// AuditRepository — операции с таблицей audit_log.
// Записи только добавляются; обновление и удаление не поддерживаются.
type AuditRepository struct {
	db DBTX
}

// NewAuditRepository создаёт репозиторий журнала аудита.
func NewAuditRepository(db DBTX) *AuditRepository {
	return &AuditRepository{db: db}
}

// Append добавляет запись в журнал.
func (r *AuditRepository) Append(ctx context.Context, e *model.AuditEntry) error {
	if e.ID == "" {
		e.ID = uuid.New().String()
	}

	query := `
		INSERT INTO audit_log (id, actor_user_id, action, target_type, target_id, ip_address, metadata)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at`

	err := r.db.QueryRow(ctx, query,
		e.ID, e.ActorUserID, e.Action, e.TargetType, e.TargetID, e.IPAddress, e.Metadata).
		Scan(&e.CreatedAt)
	if err != nil {
		return fmt.Errorf("ошибка записи в журнал аудита: %w", err)
	}
	return nil
}

// List возвращает страницу журнала (новые записи первыми).
func (r *AuditRepository) List(ctx context.Context, limit, offset int) ([]*model.AuditEntry, error) {
	query := `
		SELECT id, actor_user_id, action, target_type, target_id, ip_address, metadata, created_at
		FROM audit_log
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2`

	rows, err := r.db.Query(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения журнала аудита: %w", err)
	}
	defer rows.Close()

	var entries []*model.AuditEntry
	for rows.Next() {
		e := &model.AuditEntry{}
		if err := rows.Scan(&e.ID, &e.ActorUserID, &e.Action, &e.TargetType,
			&e.TargetID, &e.IPAddress, &e.Metadata, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("ошибка чтения строки: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
