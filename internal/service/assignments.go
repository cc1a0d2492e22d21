// assignments.go — назначение файлов пользователям.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/dkrylov/filegate/internal/audit"
	"github.com/dkrylov/filegate/internal/domain/model"
	"github.com/dkrylov/filegate/internal/domain/policy"
	"github.com/dkrylov/filegate/internal/repository"
)

// BulkResult — итог массового назначения.
type BulkResult struct {
	// Created — сколько новых назначений создано
	Created int
	// Skipped — сколько пар уже существовало
	Skipped int
}

// AssignmentService — выдача и отзыв доступа к файлам.
type AssignmentService struct {
	assignments AssignmentStore
	users       UserStore
	files       FileStore
	sink        AuditRecorder
	logger      *slog.Logger
}

// NewAssignmentService создаёт сервис назначений.
func NewAssignmentService(assignments AssignmentStore, users UserStore, files FileStore, sink AuditRecorder, logger *slog.Logger) *AssignmentService {
	return &AssignmentService{
		assignments: assignments,
		users:       users,
		files:       files,
		sink:        sink,
		logger:      logger.With(slog.String("component", "assignment_service")),
	}
}

// Create назначает файл пользователю. Повторное назначение той же
// пары — ErrConflict, несуществующий пользователь или файл — ErrNotFound.
func (s *AssignmentService) Create(ctx context.Context, actor *policy.Identity, userID, fileID, ip string) (*model.Assignment, error) {
	a := &model.Assignment{UserID: userID, FileID: fileID}
	if err := s.assignments.Create(ctx, a); err != nil {
		switch {
		case errors.Is(err, repository.ErrConflict):
			return nil, fmt.Errorf("файл уже назначен пользователю: %w", ErrConflict)
		case errors.Is(err, repository.ErrNotFound):
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("создание назначения: %w", err)
	}

	// Перечитываем с JOIN, чтобы вернуть почту и имя файла
	full, err := s.assignments.GetByID(ctx, a.ID)
	if err != nil {
		return nil, fmt.Errorf("чтение назначения: %w", err)
	}

	s.sink.Record(audit.Entry{
		ActorUserID: actor.UserID,
		Action:      audit.ActionAssignFile,
		TargetType:  audit.TargetAssignment,
		TargetID:    full.ID,
		IPAddress:   ip,
		Metadata:    map[string]any{"userId": userID, "fileId": fileID},
	})

	s.logger.Info("Файл назначен",
		slog.String("file_id", fileID),
		slog.String("user_id", userID),
	)
	return full, nil
}

// CreateBulk назначает файл списку пользователей. Операция атомарна
// по проверкам: если хотя бы один идентификатор пользователя не
// существует — ErrNotFound и ни одного назначения. Уже существующие
// пары молча пропускаются и попадают в Skipped.
func (s *AssignmentService) CreateBulk(ctx context.Context, actor *policy.Identity, fileID string, userIDs []string, ip string) (*BulkResult, error) {
	if len(userIDs) == 0 {
		return nil, fmt.Errorf("%w: список пользователей пуст", ErrValidation)
	}

	if _, err := s.files.GetByID(ctx, fileID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("получение файла: %w", err)
	}

	missing, err := s.users.MissingIDs(ctx, userIDs)
	if err != nil {
		return nil, fmt.Errorf("проверка пользователей: %w", err)
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("пользователи не найдены %v: %w", missing, ErrNotFound)
	}

	created, err := s.assignments.CreateBulk(ctx, fileID, userIDs)
	if err != nil {
		return nil, fmt.Errorf("массовое назначение: %w", err)
	}
	res := &BulkResult{Created: created, Skipped: len(userIDs) - created}

	s.sink.Record(audit.Entry{
		ActorUserID: actor.UserID,
		Action:      audit.ActionAssignFile,
		TargetType:  audit.TargetFile,
		TargetID:    fileID,
		IPAddress:   ip,
		Metadata: map[string]any{
			"bulk":    true,
			"created": res.Created,
			"skipped": res.Skipped,
		},
	})

	s.logger.Info("Массовое назначение выполнено",
		slog.String("file_id", fileID),
		slog.Int("created", res.Created),
		slog.Int("skipped", res.Skipped),
	)
	return res, nil
}

// Delete снимает назначение по его идентификатору.
func (s *AssignmentService) Delete(ctx context.Context, actor *policy.Identity, id, ip string) error {
	a, err := s.assignments.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("чтение назначения: %w", err)
	}
	return s.remove(ctx, actor, a, ip)
}

// DeleteByUserFile снимает назначение по паре пользователь/файл.
func (s *AssignmentService) DeleteByUserFile(ctx context.Context, actor *policy.Identity, userID, fileID, ip string) error {
	a, err := s.assignments.GetByUserFile(ctx, userID, fileID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("чтение назначения: %w", err)
	}
	return s.remove(ctx, actor, a, ip)
}

func (s *AssignmentService) remove(ctx context.Context, actor *policy.Identity, a *model.Assignment, ip string) error {
	if err := s.assignments.Delete(ctx, a.ID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("удаление назначения: %w", err)
	}

	s.sink.Record(audit.Entry{
		ActorUserID: actor.UserID,
		Action:      audit.ActionUnassignFile,
		TargetType:  audit.TargetAssignment,
		TargetID:    a.ID,
		IPAddress:   ip,
		Metadata:    map[string]any{"userId": a.UserID, "fileId": a.FileID},
	})

	s.logger.Info("Назначение снято",
		slog.String("file_id", a.FileID),
		slog.String("user_id", a.UserID),
	)
	return nil
}

// ListByFile возвращает назначения файла.
func (s *AssignmentService) ListByFile(ctx context.Context, fileID string) ([]*model.Assignment, error) {
	if _, err := s.files.GetByID(ctx, fileID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("получение файла: %w", err)
	}
	list, err := s.assignments.ListByFile(ctx, fileID)
	if err != nil {
		return nil, fmt.Errorf("назначения файла: %w", err)
	}
	return list, nil
}
