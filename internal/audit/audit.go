// Пакет audit — журнал действий пользователей.
// Записи принимаются неблокирующим Record в буферизованный канал
// и пишутся в БД фоновой горутиной: отказ журнала никогда не
// ломает основную операцию, сбои записи только логируются.
package audit

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/dkrylov/filegate/internal/domain/model"
)

// Action — действие из закрытого перечня.
type Action string

// Перечень действий. Другие значения в журнал не попадают.
const (
	ActionLogin         Action = "LOGIN"
	ActionLogout        Action = "LOGOUT"
	ActionUpload        Action = "UPLOAD"
	ActionDownload      Action = "DOWNLOAD"
	ActionCreateUser    Action = "CREATE_USER"
	ActionDeleteUser    Action = "DELETE_USER"
	ActionResetPassword Action = "RESET_PASSWORD"
	ActionAssignFile    Action = "ASSIGN_FILE"
	ActionUnassignFile  Action = "UNASSIGN_FILE"
	ActionSeedAdmin     Action = "SEED_ADMIN"
)

// Типы объектов действия.
const (
	TargetUser       = "user"
	TargetFile       = "file"
	TargetAssignment = "assignment"
)

// Entry — событие для записи в журнал.
type Entry struct {
	// ActorUserID — UUID инициатора; пустой для анонимных действий
	ActorUserID string
	// Action — действие из перечня
	Action Action
	// TargetType — тип объекта (TargetUser и др.), опционально
	TargetType string
	// TargetID — идентификатор объекта, опционально
	TargetID string
	// IPAddress — IP клиента, опционально
	IPAddress string
	// Metadata — дополнительные данные, сериализуются в JSON
	Metadata map[string]any
}

// Appender — запись события в постоянное хранилище.
// Реализуется repository.AuditRepository.
type Appender interface {
	Append(ctx context.Context, e *model.AuditEntry) error
}

// Sink — фоновый приёмник событий аудита.
// Создаётся NewSink, запускается Start, останавливается Stop;
// Stop дописывает накопленный буфер.
type Sink struct {
	appender Appender
	logger   *slog.Logger

	ch   chan Entry
	wg   sync.WaitGroup
	once sync.Once

	// writeTimeout ограничивает время одной записи в БД
	writeTimeout time.Duration
}

// NewSink создаёт приёмник с буфером указанного размера.
func NewSink(appender Appender, buffer int, logger *slog.Logger) *Sink {
	if buffer < 1 {
		buffer = 1
	}
	return &Sink{
		appender:     appender,
		logger:       logger.With(slog.String("component", "audit")),
		ch:           make(chan Entry, buffer),
		writeTimeout: 5 * time.Second,
	}
}

// Start запускает фоновую горутину записи.
func (s *Sink) Start() {
	s.wg.Add(1)
	go s.worker()
	s.logger.Info("Журнал аудита запущен", slog.Int("buffer", cap(s.ch)))
}

// Stop закрывает приём событий и дожидается записи буфера.
// Record после Stop события отбрасывает.
func (s *Sink) Stop() {
	s.once.Do(func() {
		close(s.ch)
	})
	s.wg.Wait()
	s.logger.Info("Журнал аудита остановлен")
}

// Record ставит событие в очередь записи. Никогда не блокируется:
// при переполненном буфере событие отбрасывается с записью в лог.
func (s *Sink) Record(e Entry) {
	defer func() {
		// Отправка в закрытый канал после Stop — событие теряется,
		// вызывающий код не страдает
		if r := recover(); r != nil {
			s.logger.Warn("Событие аудита после остановки отброшено",
				slog.String("action", string(e.Action)))
		}
	}()

	select {
	case s.ch <- e:
	default:
		s.logger.Warn("Буфер журнала аудита переполнен, событие отброшено",
			slog.String("action", string(e.Action)))
	}
}

// worker пишет события из канала до его закрытия.
func (s *Sink) worker() {
	defer s.wg.Done()
	for e := range s.ch {
		s.write(e)
	}
}

// write сериализует и сохраняет одно событие.
// Ошибка записи не распространяется — только логируется.
func (s *Sink) write(e Entry) {
	ctx, cancel := context.WithTimeout(context.Background(), s.writeTimeout)
	defer cancel()

	entry := &model.AuditEntry{
		Action:      string(e.Action),
		ActorUserID: optional(e.ActorUserID),
		TargetType:  optional(e.TargetType),
		TargetID:    optional(e.TargetID),
		IPAddress:   optional(e.IPAddress),
	}

	if len(e.Metadata) > 0 {
		meta, err := json.Marshal(e.Metadata)
		if err != nil {
			s.logger.Error("Ошибка сериализации метаданных аудита",
				slog.String("action", string(e.Action)),
				slog.String("error", err.Error()))
		} else {
			entry.Metadata = meta
		}
	}

	if err := s.appender.Append(ctx, entry); err != nil {
		s.logger.Error("Ошибка записи события аудита",
			slog.String("action", string(e.Action)),
			slog.String("error", err.Error()))
	}
}

// optional возвращает nil для пустой строки.
func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
