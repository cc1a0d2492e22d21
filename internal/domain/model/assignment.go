package model

import "time"

// Assignment — назначение файла пользователю.
// Хранится в таблице assignments, пара (UserID, FileID) уникальна.
type Assignment struct {
	// ID — UUID назначения
	ID string
	// UserID — UUID пользователя
	UserID string
	// FileID — UUID файла
	FileID string
	// CreatedAt — время назначения
	CreatedAt time.Time

	// Поля ниже заполняются JOIN-запросами для ответов API.

	// UserEmail — почта назначенного пользователя
	UserEmail string
	// FileName — оригинальное имя файла
	FileName string
}
