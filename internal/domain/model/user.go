// Пакет model — доменные модели filegate.
package model

import "time"

// User — учётная запись пользователя портала.
// Хранится в таблице users.
type User struct {
	// ID — UUID пользователя
	ID string
	// Email — адрес электронной почты (уникальный)
	Email string
	// PasswordHash — bcrypt-хэш пароля (наружу не отдаётся)
	PasswordHash string
	// Role — роль (ADMIN, USER)
	Role string
	// CreatedAt — время создания записи
	CreatedAt time.Time
	// UpdatedAt — время последнего обновления
	UpdatedAt time.Time
	// AssignmentsCount — число назначенных файлов
	// (заполняется только при постраничном списке)
	AssignmentsCount int
}
