// Пакет policy — центральная точка принятия решений о доступе.
// Каждая операция сверяется с таблицей ролей; операции чтения и
// скачивания файлов для роли USER дополнительно требуют назначения.
// Правила: роли образуют закрытый набор, неизвестная роль не имеет прав;
// удаление собственной учётной записи запрещено независимо от роли.
package policy

import (
	"context"
	"fmt"
)

// Роли пользователей. Набор закрыт: других ролей не существует.
const (
	RoleAdmin = "ADMIN"
	RoleUser  = "USER"
)

// Operation — операция, для которой запрашивается решение о доступе.
type Operation string

// Операции платформы.
const (
	OpFileUpload   Operation = "file.upload"
	OpFileList     Operation = "file.list"
	OpFileGet      Operation = "file.get"
	OpFileDownload Operation = "file.download"
	OpFileDelete   Operation = "file.delete"

	OpUserCreate        Operation = "user.create"
	OpUserList          Operation = "user.list"
	OpUserGet           Operation = "user.get"
	OpUserUpdate        Operation = "user.update"
	OpUserDelete        Operation = "user.delete"
	OpUserResetPassword Operation = "user.reset_password"

	OpAssignmentCreate Operation = "assignment.create"
	OpAssignmentDelete Operation = "assignment.delete"
	OpAssignmentList   Operation = "assignment.list"
)

// Reason — причина отказа в доступе.
type Reason string

const (
	// ReasonUnauthenticated — запрос без подлинной учётной записи
	ReasonUnauthenticated Reason = "unauthenticated"
	// ReasonInsufficientRole — роль не входит в разрешённые для операции
	ReasonInsufficientRole Reason = "insufficient_role"
	// ReasonNotAssigned — файл не назначен пользователю
	ReasonNotAssigned Reason = "not_assigned"
	// ReasonSelfDeletion — попытка удалить собственную учётную запись
	ReasonSelfDeletion Reason = "self_deletion"
)

// Decision — результат проверки доступа.
type Decision struct {
	// Allowed — операция разрешена
	Allowed bool
	// Reason — причина отказа (пустая при разрешении)
	Reason Reason
}

// Identity — подлинная учётная запись, от имени которой выполняется запрос.
// Поля берутся из БД на каждом запросе, не из токена.
type Identity struct {
	// UserID — UUID пользователя
	UserID string
	// Email — почта пользователя
	Email string
	// Role — текущая роль (ADMIN, USER)
	Role string
}

// IsAdmin сообщает, имеет ли учётная запись роль ADMIN.
func (id *Identity) IsAdmin() bool {
	return id != nil && id.Role == RoleAdmin
}

// operationRoles — таблица: операция → роли, которым она разрешена.
// Отсутствующая операция не разрешена никому.
var operationRoles = map[Operation][]string{
	OpFileUpload:   {RoleAdmin},
	OpFileList:     {RoleAdmin, RoleUser},
	OpFileGet:      {RoleAdmin, RoleUser},
	OpFileDownload: {RoleAdmin, RoleUser},
	OpFileDelete:   {RoleAdmin},

	OpUserCreate:        {RoleAdmin},
	OpUserList:          {RoleAdmin},
	OpUserGet:           {RoleAdmin},
	OpUserUpdate:        {RoleAdmin},
	OpUserDelete:        {RoleAdmin},
	OpUserResetPassword: {RoleAdmin},

	OpAssignmentCreate: {RoleAdmin},
	OpAssignmentDelete: {RoleAdmin},
	OpAssignmentList:   {RoleAdmin},
}

// fileScoped — операции, требующие для роли USER назначения файла.
var fileScoped = map[Operation]bool{
	OpFileGet:      true,
	OpFileDownload: true,
}

// AssignmentChecker — проверка наличия назначения файла пользователю.
// Реализуется репозиторием назначений.
type AssignmentChecker interface {
	Exists(ctx context.Context, userID, fileID string) (bool, error)
}

// Engine принимает решения о доступе на основе таблицы ролей
// и реестра назначений.
type Engine struct {
	assignments AssignmentChecker
}

// NewEngine создаёт Engine поверх реестра назначений.
func NewEngine(assignments AssignmentChecker) *Engine {
	return &Engine{assignments: assignments}
}

// Authorize принимает решение о доступе учётной записи id к операции op.
// resourceID — идентификатор объекта операции (UUID файла для файловых
// операций, UUID пользователя для user.delete); пустая строка, если
// операция не привязана к объекту.
// Ошибка возвращается только при сбое обращения к реестру назначений.
func (e *Engine) Authorize(ctx context.Context, id *Identity, op Operation, resourceID string) (Decision, error) {
	// Без учётной записи доступа нет
	if id == nil || id.UserID == "" {
		return deny(ReasonUnauthenticated), nil
	}

	// Удаление собственной учётной записи запрещено безусловно,
	// до проверки роли
	if op == OpUserDelete && resourceID != "" && resourceID == id.UserID {
		return deny(ReasonSelfDeletion), nil
	}

	// Проверка по таблице ролей; неизвестная роль не имеет прав
	roles, ok := operationRoles[op]
	if !ok {
		return deny(ReasonInsufficientRole), nil
	}
	allowed := false
	for _, r := range roles {
		if id.Role == r {
			allowed = true
			break
		}
	}
	if !allowed {
		return deny(ReasonInsufficientRole), nil
	}

	// Для USER чтение и скачивание файла требуют назначения;
	// ADMIN видит всё
	if fileScoped[op] && id.Role == RoleUser && resourceID != "" {
		exists, err := e.assignments.Exists(ctx, id.UserID, resourceID)
		if err != nil {
			return Decision{}, fmt.Errorf("проверка назначения: %w", err)
		}
		if !exists {
			return deny(ReasonNotAssigned), nil
		}
	}

	return Decision{Allowed: true}, nil
}

// IsValidRole проверяет, является ли строка допустимой ролью.
func IsValidRole(role string) bool {
	return role == RoleAdmin || role == RoleUser
}

// deny — отказ с указанной причиной.
func deny(r Reason) Decision {
	return Decision{Allowed: false, Reason: r}
}
