package audit

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/dkrylov/filegate/internal/domain/model"
)

// captureAppender накапливает записи в памяти.
type captureAppender struct {
	mu      sync.Mutex
	entries []*model.AuditEntry
	err     error
	// block не отпускает Append до закрытия (для теста переполнения)
	block chan struct{}
}

func (c *captureAppender) Append(_ context.Context, e *model.AuditEntry) error {
	if c.block != nil {
		<-c.block
	}
	if c.err != nil {
		return c.err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = append(c.entries, e)
	return nil
}

func (c *captureAppender) all() []*model.AuditEntry {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]*model.AuditEntry(nil), c.entries...)
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestSink_RecordAndFlush(t *testing.T) {
	app := &captureAppender{}
	sink := NewSink(app, 16, testLogger())
	sink.Start()

	sink.Record(Entry{
		ActorUserID: "admin-1",
		Action:      ActionUpload,
		TargetType:  TargetFile,
		TargetID:    "file-1",
		IPAddress:   "10.0.0.1",
		Metadata:    map[string]any{"filename": "release.zip"},
	})
	sink.Record(Entry{Action: ActionDownload})

	// Stop дописывает буфер
	sink.Stop()

	entries := app.all()
	if len(entries) != 2 {
		t.Fatalf("записано %d событий, ожидается 2", len(entries))
	}

	first := entries[0]
	if first.Action != string(ActionUpload) {
		t.Errorf("Action = %q, ожидается UPLOAD", first.Action)
	}
	if first.ActorUserID == nil || *first.ActorUserID != "admin-1" {
		t.Errorf("ActorUserID = %v, ожидается admin-1", first.ActorUserID)
	}
	if first.TargetType == nil || *first.TargetType != TargetFile {
		t.Errorf("TargetType = %v, ожидается file", first.TargetType)
	}

	var meta map[string]any
	if err := json.Unmarshal(first.Metadata, &meta); err != nil {
		t.Fatalf("Metadata не JSON: %v", err)
	}
	if meta["filename"] != "release.zip" {
		t.Errorf("Metadata = %v", meta)
	}

	// Пустые поля — NULL, не пустые строки
	second := entries[1]
	if second.ActorUserID != nil || second.TargetType != nil || second.IPAddress != nil {
		t.Errorf("анонимная запись содержит непустые указатели: %+v", second)
	}
	if second.Metadata != nil {
		t.Errorf("Metadata = %v, ожидается nil", second.Metadata)
	}
}

func TestSink_AppenderErrorDoesNotPropagate(t *testing.T) {
	app := &captureAppender{err: errors.New("БД недоступна")}
	sink := NewSink(app, 4, testLogger())
	sink.Start()

	// Record не возвращает ошибку и не паникует при сбое хранилища
	sink.Record(Entry{Action: ActionLogin})
	sink.Stop()
}

func TestSink_OverflowDropsWithoutBlocking(t *testing.T) {
	app := &captureAppender{block: make(chan struct{})}
	sink := NewSink(app, 1, testLogger())
	sink.Start()

	// Первое событие уходит воркеру и виснет на Append,
	// второе занимает буфер, остальные должны отброситься мгновенно
	done := make(chan struct{})
	go func() {
		for i := 0; i < 10; i++ {
			sink.Record(Entry{Action: ActionDownload})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Record() заблокировался при переполненном буфере")
	}

	close(app.block)
	sink.Stop()

	if got := len(app.all()); got > 2 {
		t.Errorf("записано %d событий, ожидается не более 2", got)
	}
}

func TestSink_RecordAfterStop(t *testing.T) {
	app := &captureAppender{}
	sink := NewSink(app, 4, testLogger())
	sink.Start()
	sink.Stop()

	// Не должно паниковать
	sink.Record(Entry{Action: ActionLogout})

	if got := len(app.all()); got != 0 {
		t.Errorf("записано %d событий после Stop, ожидается 0", got)
	}
}
