// stores.go — интерфейсы хранилищ, используемые сервисами.
// Реализуются репозиториями pgx; в модульных тестах подменяются.
package service

import (
	"context"

	"github.com/dkrylov/filegate/internal/audit"
	"github.com/dkrylov/filegate/internal/domain/model"
)

// UserStore — операции с пользователями.
type UserStore interface {
	Create(ctx context.Context, u *model.User) error
	GetByID(ctx context.Context, id string) (*model.User, error)
	GetByEmail(ctx context.Context, email string) (*model.User, error)
	List(ctx context.Context, limit, offset int) ([]*model.User, error)
	Count(ctx context.Context) (int, error)
	Update(ctx context.Context, id string, email, role *string) (*model.User, error)
	UpdatePasswordHash(ctx context.Context, id, passwordHash string) error
	Delete(ctx context.Context, id string) error
	MissingIDs(ctx context.Context, ids []string) ([]string, error)
}

// FileStore — операции с записями файлов.
type FileStore interface {
	Create(ctx context.Context, f *model.File) error
	GetByID(ctx context.Context, id string) (*model.File, error)
	List(ctx context.Context, limit, offset int) ([]*model.File, error)
	Count(ctx context.Context) (int, error)
	ListAssignedTo(ctx context.Context, userID string, limit, offset int) ([]*model.File, error)
	CountAssignedTo(ctx context.Context, userID string) (int, error)
	Delete(ctx context.Context, id string) error
}

// AssignmentStore — операции с назначениями.
type AssignmentStore interface {
	Create(ctx context.Context, a *model.Assignment) error
	CreateBulk(ctx context.Context, fileID string, userIDs []string) (int, error)
	GetByID(ctx context.Context, id string) (*model.Assignment, error)
	GetByUserFile(ctx context.Context, userID, fileID string) (*model.Assignment, error)
	ListByFile(ctx context.Context, fileID string) ([]*model.Assignment, error)
	Delete(ctx context.Context, id string) error
	Exists(ctx context.Context, userID, fileID string) (bool, error)
}

// AuditRecorder — неблокирующая запись события аудита.
// Реализуется audit.Sink.
type AuditRecorder interface {
	Record(e audit.Entry)
}
