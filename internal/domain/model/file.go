package model

import "time"

// File — запись о загруженном архиве.
// Хранится в таблице files; содержимое лежит в объектном хранилище.
type File struct {
	// ID — UUID файла
	ID string
	// OriginalName — оригинальное имя архива при загрузке
	OriginalName string
	// ProjectSlug — идентификатор проекта ([a-zA-Z0-9_-], до 50 символов)
	ProjectSlug string
	// StorageKey — ключ объекта в S3 (projects/{slug}/{дата}/{имя})
	StorageKey string
	// SizeBytes — размер архива в байтах
	SizeBytes int64
	// SHA256 — контрольная сумма содержимого (hex)
	SHA256 string
	// UploadedAt — время загрузки
	UploadedAt time.Time
}
