// Пакет ratelimit — ограничение частоты запросов по скользящим окнам
// фиксированной длительности. Счётчики живут в хранилище за интерфейсом
// Store: in-memory для одного экземпляра, PostgreSQL — для нескольких.
package ratelimit

import (
	"context"
	"time"
)

// Class — класс запросов со своим лимитом и окном.
type Class string

// Классы запросов.
const (
	// ClassGeneral — все запросы API
	ClassGeneral Class = "general"
	// ClassAuth — попытки входа
	ClassAuth Class = "auth"
	// ClassUpload — загрузка архивов
	ClassUpload Class = "upload"
	// ClassDownload — скачивание файлов
	ClassDownload Class = "download"
	// ClassLegacy — наследуемый обработчик альбомов
	ClassLegacy Class = "legacy"
)

// Limit — лимит класса: не более Max обращений за Window.
type Limit struct {
	// Max — максимум обращений в окне
	Max int
	// Window — длительность окна
	Window time.Duration
}

// Limits — лимиты по классам.
var Limits = map[Class]Limit{
	ClassGeneral:  {Max: 100, Window: 15 * time.Minute},
	ClassAuth:     {Max: 5, Window: 15 * time.Minute},
	ClassUpload:   {Max: 10, Window: time.Hour},
	ClassDownload: {Max: 50, Window: 15 * time.Minute},
	ClassLegacy:   {Max: 5, Window: 10 * time.Minute},
}

// LimitFor возвращает лимит класса. Для неизвестного класса — общий.
func LimitFor(class Class) Limit {
	if l, ok := Limits[class]; ok {
		return l
	}
	return Limits[ClassGeneral]
}

// Store — хранилище счётчиков.
// Hit атомарно увеличивает счётчик пары (key, class) и возвращает
// значение после инкремента вместе с моментом окончания окна.
// Первое обращение после окончания окна начинает новое окно со счётчиком 1.
type Store interface {
	Hit(ctx context.Context, key string, class Class, window time.Duration) (count int, expiresAt time.Time, err error)
}
