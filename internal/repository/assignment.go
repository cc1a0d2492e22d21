package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/dkrylov/filegate/internal/domain/model"
)

// AssignmentRepository — операции с таблицей assignments.
// Пара (user_id, file_id) уникальна на уровне БД.
type AssignmentRepository struct {
	db DBTX
}

// NewAssignmentRepository создаёт репозиторий назначений.
func NewAssignmentRepository(db DBTX) *AssignmentRepository {
	return &AssignmentRepository{db: db}
}

// Create добавляет назначение. Уникальность пары гарантирует БД:
// при повторном назначении возвращается ErrConflict, при
// несуществующем пользователе или файле — ErrNotFound.
func (r *AssignmentRepository) Create(ctx context.Context, a *model.Assignment) error {
	if a.ID == "" {
		a.ID = uuid.New().String()
	}

	query := `
		INSERT INTO assignments (id, user_id, file_id)
		VALUES ($1, $2, $3)
		RETURNING created_at`

	err := r.db.QueryRow(ctx, query, a.ID, a.UserID, a.FileID).Scan(&a.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("назначение уже существует: %w", ErrConflict)
		}
		if isForeignKeyViolation(err) {
			return fmt.Errorf("пользователь или файл не существует: %w", ErrNotFound)
		}
		return fmt.Errorf("ошибка создания назначения: %w", err)
	}
	return nil
}

// CreateBulk назначает файл каждому пользователю из userIDs.
// Уже существующие назначения пропускаются (ON CONFLICT DO NOTHING).
// Возвращает число созданных записей.
func (r *AssignmentRepository) CreateBulk(ctx context.Context, fileID string, userIDs []string) (int, error) {
	query := `
		INSERT INTO assignments (id, user_id, file_id)
		SELECT gen_random_uuid(), uid, $1
		FROM unnest($2::uuid[]) AS uid
		ON CONFLICT (user_id, file_id) DO NOTHING`

	tag, err := r.db.Exec(ctx, query, fileID, userIDs)
	if err != nil {
		if isForeignKeyViolation(err) {
			return 0, fmt.Errorf("пользователь или файл не существует: %w", ErrNotFound)
		}
		return 0, fmt.Errorf("ошибка массового назначения: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

// GetByID возвращает назначение с почтой пользователя и именем файла.
func (r *AssignmentRepository) GetByID(ctx context.Context, id string) (*model.Assignment, error) {
	query := `
		SELECT a.id, a.user_id, a.file_id, a.created_at, u.email, f.original_name
		FROM assignments a
		JOIN users u ON u.id = a.user_id
		JOIN files f ON f.id = a.file_id
		WHERE a.id = $1`

	a := &model.Assignment{}
	err := r.db.QueryRow(ctx, query, id).
		Scan(&a.ID, &a.UserID, &a.FileID, &a.CreatedAt, &a.UserEmail, &a.FileName)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("ошибка получения назначения: %w", err)
	}
	return a, nil
}

// GetByUserFile возвращает назначение по составному ключу.
func (r *AssignmentRepository) GetByUserFile(ctx context.Context, userID, fileID string) (*model.Assignment, error) {
	query := `
		SELECT a.id, a.user_id, a.file_id, a.created_at, u.email, f.original_name
		FROM assignments a
		JOIN users u ON u.id = a.user_id
		JOIN files f ON f.id = a.file_id
		WHERE a.user_id = $1 AND a.file_id = $2`

	a := &model.Assignment{}
	err := r.db.QueryRow(ctx, query, userID, fileID).
		Scan(&a.ID, &a.UserID, &a.FileID, &a.CreatedAt, &a.UserEmail, &a.FileName)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("ошибка получения назначения: %w", err)
	}
	return a, nil
}

// ListByFile возвращает назначения файла с почтами пользователей.
func (r *AssignmentRepository) ListByFile(ctx context.Context, fileID string) ([]*model.Assignment, error) {
	query := `
		SELECT a.id, a.user_id, a.file_id, a.created_at, u.email, f.original_name
		FROM assignments a
		JOIN users u ON u.id = a.user_id
		JOIN files f ON f.id = a.file_id
		WHERE a.file_id = $1
		ORDER BY a.created_at DESC`

	rows, err := r.db.Query(ctx, query, fileID)
	if err != nil {
		return nil, fmt.Errorf("ошибка списка назначений: %w", err)
	}
	defer rows.Close()

	var assignments []*model.Assignment
	for rows.Next() {
		a := &model.Assignment{}
		if err := rows.Scan(&a.ID, &a.UserID, &a.FileID, &a.CreatedAt,
			&a.UserEmail, &a.FileName); err != nil {
			return nil, fmt.Errorf("ошибка чтения строки: %w", err)
		}
		assignments = append(assignments, a)
	}
	return assignments, rows.Err()
}

// Delete удаляет назначение по UUID.
// Отсутствующее назначение — ErrNotFound, без идемпотентности.
func (r *AssignmentRepository) Delete(ctx context.Context, id string) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM assignments WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("ошибка удаления назначения: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Exists сообщает, назначен ли файл пользователю.
// Реализует policy.AssignmentChecker.
func (r *AssignmentRepository) Exists(ctx context.Context, userID, fileID string) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM assignments WHERE user_id = $1 AND file_id = $2)`,
		userID, fileID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("ошибка проверки назначения: %w", err)
	}
	return exists, nil
}
