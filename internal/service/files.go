// files.go — загрузка, выдача и удаление архивов.
package service

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/dkrylov/filegate/internal/audit"
	"github.com/dkrylov/filegate/internal/domain/model"
	"github.com/dkrylov/filegate/internal/domain/policy"
	"github.com/dkrylov/filegate/internal/repository"
	"github.com/dkrylov/filegate/internal/storage"
)

// Режимы выдачи DownloadResult.
const (
	// DownloadPresigned — клиенту отдаётся подписанная ссылка
	DownloadPresigned = "presigned"
	// DownloadProxy — содержимое проксируется потоком
	DownloadProxy = "proxy"
)

// DownloadResult — результат запроса на скачивание.
type DownloadResult struct {
	// Mode — presigned или proxy
	Mode string
	// File — карточка файла
	File *model.File
	// URL — подписанная ссылка (режим presigned)
	URL string
	// Body — поток содержимого, закрывает вызывающий (режим proxy)
	Body io.ReadCloser
	// Size — размер потока в байтах (режим proxy)
	Size int64
}

// FileService — операции с архивами.
type FileService struct {
	files        FileStore
	assignments  AssignmentStore
	store        storage.ObjectStore
	sink         AuditRecorder
	downloadMode string
	maxBytes     int64
	logger       *slog.Logger
}

// NewFileService создаёт сервис файлов.
func NewFileService(
	files FileStore,
	assignments AssignmentStore,
	store storage.ObjectStore,
	sink AuditRecorder,
	downloadMode string,
	maxBytes int64,
	logger *slog.Logger,
) *FileService {
	return &FileService{
		files:        files,
		assignments:  assignments,
		store:        store,
		sink:         sink,
		downloadMode: downloadMode,
		maxBytes:     maxBytes,
		logger:       logger.With(slog.String("component", "file_service")),
	}
}

// Upload сохраняет ZIP-архив: сначала объект в хранилище, затем
// запись в БД. При отказе хранилища запись не создаётся.
func (s *FileService) Upload(ctx context.Context, actor *policy.Identity, projectSlug, fileName string, data []byte, ip string) (*model.File, error) {
	if !storage.ValidProjectSlug(projectSlug) {
		return nil, fmt.Errorf("%w: некорректный идентификатор проекта %q", ErrValidation, projectSlug)
	}
	if !strings.HasSuffix(strings.ToLower(fileName), ".zip") {
		return nil, fmt.Errorf("%w: принимаются только ZIP-архивы", ErrValidation)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: пустой файл", ErrValidation)
	}
	if int64(len(data)) > s.maxBytes {
		return nil, fmt.Errorf("%w: размер %d байт превышает лимит %d", ErrValidation, len(data), s.maxBytes)
	}

	sum := sha256.Sum256(data)
	checksum := hex.EncodeToString(sum[:])
	key := storage.ObjectKey(projectSlug, fileName, time.Now())

	if err := s.store.Put(ctx, key, bytes.NewReader(data), int64(len(data)), checksum); err != nil {
		s.logger.Error("Ошибка загрузки в объектное хранилище",
			slog.String("key", key),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}

	file := &model.File{
		OriginalName: fileName,
		ProjectSlug:  projectSlug,
		StorageKey:   key,
		SizeBytes:    int64(len(data)),
		SHA256:       checksum,
	}
	if err := s.files.Create(ctx, file); err != nil {
		return nil, fmt.Errorf("создание записи файла: %w", err)
	}

	s.sink.Record(audit.Entry{
		ActorUserID: actor.UserID,
		Action:      audit.ActionUpload,
		TargetType:  audit.TargetFile,
		TargetID:    file.ID,
		IPAddress:   ip,
		Metadata: map[string]any{
			"filename":    fileName,
			"projectSlug": projectSlug,
			"sizeBytes":   file.SizeBytes,
		},
	})

	s.logger.Info("Архив загружен",
		slog.String("file_id", file.ID),
		slog.String("project", projectSlug),
		slog.Int64("size_bytes", file.SizeBytes),
	)
	return file, nil
}

// List возвращает страницу файлов с учётом роли:
// ADMIN видит все файлы, USER — только назначенные ему.
func (s *FileService) List(ctx context.Context, actor *policy.Identity, limit, offset int) ([]*model.File, int, error) {
	if actor.IsAdmin() {
		files, err := s.files.List(ctx, limit, offset)
		if err != nil {
			return nil, 0, fmt.Errorf("список файлов: %w", err)
		}
		total, err := s.files.Count(ctx)
		if err != nil {
			return nil, 0, fmt.Errorf("подсчёт файлов: %w", err)
		}
		return files, total, nil
	}

	files, err := s.files.ListAssignedTo(ctx, actor.UserID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("список назначенных файлов: %w", err)
	}
	total, err := s.files.CountAssignedTo(ctx, actor.UserID)
	if err != nil {
		return nil, 0, fmt.Errorf("подсчёт назначенных файлов: %w", err)
	}
	return files, total, nil
}

// Get возвращает карточку файла.
// Право доступа проверено policy.Engine до вызова.
func (s *FileService) Get(ctx context.Context, id string) (*model.File, error) {
	file, err := s.files.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("получение файла: %w", err)
	}
	return file, nil
}

// AssignedUsers возвращает назначения файла (для карточки у ADMIN).
func (s *FileService) AssignedUsers(ctx context.Context, fileID string) ([]*model.Assignment, error) {
	list, err := s.assignments.ListByFile(ctx, fileID)
	if err != nil {
		return nil, fmt.Errorf("назначения файла: %w", err)
	}
	return list, nil
}

// Download готовит выдачу файла в настроенном режиме и пишет
// скачивание в аудит. Право доступа проверено policy.Engine.
func (s *FileService) Download(ctx context.Context, actor *policy.Identity, fileID, ip string) (*DownloadResult, error) {
	file, err := s.files.GetByID(ctx, fileID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("получение файла: %w", err)
	}

	res := &DownloadResult{File: file}

	switch s.downloadMode {
	case DownloadProxy:
		body, size, err := s.store.Get(ctx, file.StorageKey)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
		}
		res.Mode = DownloadProxy
		res.Body = body
		res.Size = size
	default:
		url, err := s.store.PresignGet(ctx, file.StorageKey)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
		}
		res.Mode = DownloadPresigned
		res.URL = url
	}

	s.sink.Record(audit.Entry{
		ActorUserID: actor.UserID,
		Action:      audit.ActionDownload,
		TargetType:  audit.TargetFile,
		TargetID:    file.ID,
		IPAddress:   ip,
		Metadata:    map[string]any{"filename": file.OriginalName, "mode": res.Mode},
	})

	return res, nil
}

// Delete удаляет запись файла; назначения снимаются каскадом.
// Объект в хранилище сознательно остаётся — возврат места
// решается отдельной процедурой обслуживания.
func (s *FileService) Delete(ctx context.Context, id string) error {
	if err := s.files.Delete(ctx, id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("удаление файла: %w", err)
	}
	s.logger.Info("Запись файла удалена", slog.String("file_id", id))
	return nil
}
