package model

import "time"

// AuditEntry — запись журнала аудита.
// Хранится в таблице audit_log; записи только добавляются.
type AuditEntry struct {
	// ID — UUID записи
	ID string
	// ActorUserID — UUID инициатора (nil для анонимных действий
	// и после удаления пользователя — FK ON DELETE SET NULL)
	ActorUserID *string
	// Action — действие из закрытого перечня (audit.Action)
	Action string
	// TargetType — тип объекта (user, file, assignment), опционально
	TargetType *string
	// TargetID — идентификатор объекта, опционально
	TargetID *string
	// IPAddress — IP-адрес клиента, опционально
	IPAddress *string
	// Metadata — дополнительные данные (JSON), опционально
	Metadata []byte
	// CreatedAt — время события
	CreatedAt time.Time
}
