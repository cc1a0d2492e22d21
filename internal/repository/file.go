package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/dkrylov/filegate/internal/domain/model"
)

// FileRepository — операции с таблицей files.
type FileRepository struct {
	db DBTX
}

// NewFileRepository создаёт репозиторий файлов.
func NewFileRepository(db DBTX) *FileRepository {
	return &FileRepository{db: db}
}

// Create добавляет запись о загруженном архиве.
func (r *FileRepository) Create(ctx context.Context, f *model.File) error {
	if f.ID == "" {
		f.ID = uuid.New().String()
	}

	query := `
		INSERT INTO files (id, original_name, project_slug, storage_key, size_bytes, sha256)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING uploaded_at`

	err := r.db.QueryRow(ctx, query,
		f.ID, f.OriginalName, f.ProjectSlug, f.StorageKey, f.SizeBytes, f.SHA256).
		Scan(&f.UploadedAt)
	if err != nil {
		return fmt.Errorf("ошибка создания записи файла: %w", err)
	}
	return nil
}

// GetByID возвращает файл по UUID.
func (r *FileRepository) GetByID(ctx context.Context, id string) (*model.File, error) {
	query := `
		SELECT id, original_name, project_slug, storage_key, size_bytes, sha256, uploaded_at
		FROM files
		WHERE id = $1`

	f := &model.File{}
	err := r.db.QueryRow(ctx, query, id).
		Scan(&f.ID, &f.OriginalName, &f.ProjectSlug, &f.StorageKey,
			&f.SizeBytes, &f.SHA256, &f.UploadedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("ошибка получения файла: %w", err)
	}
	return f, nil
}

// List возвращает страницу всех файлов (новые первыми).
func (r *FileRepository) List(ctx context.Context, limit, offset int) ([]*model.File, error) {
	query := `
		SELECT id, original_name, project_slug, storage_key, size_bytes, sha256, uploaded_at
		FROM files
		ORDER BY uploaded_at DESC
		LIMIT $1 OFFSET $2`

	rows, err := r.db.Query(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("ошибка списка файлов: %w", err)
	}
	defer rows.Close()

	return scanFiles(rows)
}

// Count возвращает общее число файлов.
func (r *FileRepository) Count(ctx context.Context) (int, error) {
	var count int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM files`).Scan(&count); err != nil {
		return 0, fmt.Errorf("ошибка подсчёта файлов: %w", err)
	}
	return count, nil
}

// ListAssignedTo возвращает страницу файлов, назначенных пользователю
// (по времени назначения, новые первыми).
func (r *FileRepository) ListAssignedTo(ctx context.Context, userID string, limit, offset int) ([]*model.File, error) {
	query := `
		SELECT f.id, f.original_name, f.project_slug, f.storage_key, f.size_bytes, f.sha256, f.uploaded_at
		FROM files f
		JOIN assignments a ON a.file_id = f.id
		WHERE a.user_id = $1
		ORDER BY a.created_at DESC
		LIMIT $2 OFFSET $3`

	rows, err := r.db.Query(ctx, query, userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("ошибка списка назначенных файлов: %w", err)
	}
	defer rows.Close()

	return scanFiles(rows)
}

// CountAssignedTo возвращает число файлов, назначенных пользователю.
func (r *FileRepository) CountAssignedTo(ctx context.Context, userID string) (int, error) {
	var count int
	err := r.db.QueryRow(ctx,
		`SELECT COUNT(*) FROM assignments WHERE user_id = $1`, userID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("ошибка подсчёта назначенных файлов: %w", err)
	}
	return count, nil
}

// Delete удаляет запись файла. Назначения каскадно удаляются FK;
// объект в хранилище намеренно не трогается.
func (r *FileRepository) Delete(ctx context.Context, id string) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM files WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("ошибка удаления файла: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// scanFiles читает строки запроса в срез моделей.
func scanFiles(rows pgx.Rows) ([]*model.File, error) {
	var files []*model.File
	for rows.Next() {
		f := &model.File{}
		if err := rows.Scan(&f.ID, &f.OriginalName, &f.ProjectSlug, &f.StorageKey,
			&f.SizeBytes, &f.SHA256, &f.UploadedAt); err != nil {
			return nil, fmt.Errorf("ошибка чтения строки: %w", err)
		}
		files = append(files, f)
	}
	return files, rows.Err()
}
