// Пакет storage — объектное хранилище архивов (S3-совместимое):
// загрузка, подписанные ссылки, проксирование и детерминированные
// ключи объектов.
package storage

import (
	"regexp"
	"strings"
	"time"
)

// Паттерны очистки компонентов ключа.
var (
	slashesRe     = regexp.MustCompile(`[/\\]`)
	unsafePathRe  = regexp.MustCompile(`[^a-zA-Z0-9_-]`)
	unsafeFileRe  = regexp.MustCompile(`[^a-zA-Z0-9_.-]`)
	lastExtRe     = regexp.MustCompile(`\.[^/.]+$`)
	projectSlugRe = regexp.MustCompile(`^[a-zA-Z0-9_-]{1,50}$`)
)

// ValidProjectSlug проверяет идентификатор проекта:
// латиница, цифры, дефис и подчёркивание, от 1 до 50 символов.
func ValidProjectSlug(slug string) bool {
	return projectSlugRe.MatchString(slug)
}

// ObjectKey строит ключ объекта в формате
// projects/{slug}/{yyyy-mm-dd}/{имя-файла}.
// Компоненты очищаются от обходов каталогов, дата берётся в UTC.
func ObjectKey(projectSlug, originalName string, now time.Time) string {
	dateStr := now.UTC().Format("2006-01-02")
	return "projects/" + sanitizePathComponent(projectSlug) + "/" + dateStr + "/" + SanitizeFileName(originalName)
}

// sanitizePathComponent очищает компонент пути от обходов каталогов.
func sanitizePathComponent(input string) string {
	s := strings.ReplaceAll(input, "..", "")
	s = slashesRe.ReplaceAllString(s, "-")
	s = unsafePathRe.ReplaceAllString(s, "_")
	if len(s) > 50 {
		s = s[:50]
	}
	return s
}

// SanitizeFileName очищает имя файла, сохраняя расширение.
func SanitizeFileName(fileName string) string {
	ext := lastExtRe.FindString(fileName)
	name := strings.TrimSuffix(fileName, ext)

	name = strings.ReplaceAll(name, "..", "")
	name = slashesRe.ReplaceAllString(name, "-")
	name = unsafeFileRe.ReplaceAllString(name, "_")
	if len(name) > 100 {
		name = name[:100]
	}

	if ext != "" {
		// Расширение проходит тот же фильтр символов
		return name + "." + unsafeFileRe.ReplaceAllString(ext[1:], "_")
	}
	return name
}
