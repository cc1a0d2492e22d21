package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/dkrylov/filegate/internal/audit"
	"github.com/dkrylov/filegate/internal/auth"
	"github.com/dkrylov/filegate/internal/domain/model"
	"github.com/dkrylov/filegate/internal/domain/policy"
	"github.com/dkrylov/filegate/internal/repository"
)

var testLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

// fakeUsers — UserStore в памяти.
type fakeUsers struct {
	byID    map[string]*model.User
	byEmail map[string]*model.User
	err     error
}

func newFakeUsers() *fakeUsers {
	return &fakeUsers{
		byID:    make(map[string]*model.User),
		byEmail: make(map[string]*model.User),
	}
}

func (f *fakeUsers) add(u *model.User) {
	f.byID[u.ID] = u
	f.byEmail[u.Email] = u
}

func (f *fakeUsers) Create(_ context.Context, u *model.User) error {
	if f.err != nil {
		return f.err
	}
	if _, ok := f.byEmail[u.Email]; ok {
		return repository.ErrConflict
	}
	u.ID = fmt.Sprintf("user-%d", len(f.byID)+1)
	f.add(u)
	return nil
}

func (f *fakeUsers) GetByID(_ context.Context, id string) (*model.User, error) {
	if f.err != nil {
		return nil, f.err
	}
	u, ok := f.byID[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return u, nil
}

func (f *fakeUsers) GetByEmail(_ context.Context, email string) (*model.User, error) {
	if f.err != nil {
		return nil, f.err
	}
	u, ok := f.byEmail[email]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return u, nil
}

func (f *fakeUsers) List(_ context.Context, _, _ int) ([]*model.User, error) {
	users := make([]*model.User, 0, len(f.byID))
	for _, u := range f.byID {
		users = append(users, u)
	}
	return users, nil
}

func (f *fakeUsers) Count(_ context.Context) (int, error) { return len(f.byID), nil }

func (f *fakeUsers) Update(_ context.Context, id string, email, role *string) (*model.User, error) {
	u, ok := f.byID[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	if email != nil {
		if other, ok := f.byEmail[*email]; ok && other.ID != id {
			return nil, repository.ErrConflict
		}
		delete(f.byEmail, u.Email)
		u.Email = *email
		f.byEmail[u.Email] = u
	}
	if role != nil {
		u.Role = *role
	}
	return u, nil
}

func (f *fakeUsers) UpdatePasswordHash(_ context.Context, id, hash string) error {
	u, ok := f.byID[id]
	if !ok {
		return repository.ErrNotFound
	}
	u.PasswordHash = hash
	return nil
}

func (f *fakeUsers) Delete(_ context.Context, id string) error {
	u, ok := f.byID[id]
	if !ok {
		return repository.ErrNotFound
	}
	delete(f.byEmail, u.Email)
	delete(f.byID, id)
	return nil
}

func (f *fakeUsers) MissingIDs(_ context.Context, ids []string) ([]string, error) {
	var missing []string
	for _, id := range ids {
		if _, ok := f.byID[id]; !ok {
			missing = append(missing, id)
		}
	}
	return missing, nil
}

// fakeFiles — FileStore в памяти.
type fakeFiles struct {
	byID     map[string]*model.File
	assigned map[string][]*model.File

	// lastAssignedLimit — limit последнего вызова ListAssignedTo
	lastAssignedLimit int
}

func newFakeFiles() *fakeFiles {
	return &fakeFiles{
		byID:     make(map[string]*model.File),
		assigned: make(map[string][]*model.File),
	}
}

func (f *fakeFiles) Create(_ context.Context, file *model.File) error {
	file.ID = fmt.Sprintf("file-%d", len(f.byID)+1)
	f.byID[file.ID] = file
	return nil
}

func (f *fakeFiles) GetByID(_ context.Context, id string) (*model.File, error) {
	file, ok := f.byID[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return file, nil
}

func (f *fakeFiles) List(_ context.Context, _, _ int) ([]*model.File, error) {
	files := make([]*model.File, 0, len(f.byID))
	for _, file := range f.byID {
		files = append(files, file)
	}
	return files, nil
}

func (f *fakeFiles) Count(_ context.Context) (int, error) { return len(f.byID), nil }

func (f *fakeFiles) ListAssignedTo(_ context.Context, userID string, limit, _ int) ([]*model.File, error) {
	f.lastAssignedLimit = limit
	return f.assigned[userID], nil
}

func (f *fakeFiles) CountAssignedTo(_ context.Context, userID string) (int, error) {
	return len(f.assigned[userID]), nil
}

func (f *fakeFiles) Delete(_ context.Context, id string) error {
	if _, ok := f.byID[id]; !ok {
		return repository.ErrNotFound
	}
	delete(f.byID, id)
	return nil
}

// fakeAssignments — AssignmentStore в памяти.
type fakeAssignments struct {
	byID map[string]*model.Assignment
}

func newFakeAssignments() *fakeAssignments {
	return &fakeAssignments{byID: make(map[string]*model.Assignment)}
}

func (f *fakeAssignments) find(userID, fileID string) *model.Assignment {
	for _, a := range f.byID {
		if a.UserID == userID && a.FileID == fileID {
			return a
		}
	}
	return nil
}

func (f *fakeAssignments) Create(_ context.Context, a *model.Assignment) error {
	if f.find(a.UserID, a.FileID) != nil {
		return repository.ErrConflict
	}
	a.ID = fmt.Sprintf("asg-%d", len(f.byID)+1)
	f.byID[a.ID] = a
	return nil
}

func (f *fakeAssignments) CreateBulk(_ context.Context, fileID string, userIDs []string) (int, error) {
	created := 0
	for _, uid := range userIDs {
		if f.find(uid, fileID) != nil {
			continue
		}
		a := &model.Assignment{UserID: uid, FileID: fileID}
		a.ID = fmt.Sprintf("asg-%d", len(f.byID)+1)
		f.byID[a.ID] = a
		created++
	}
	return created, nil
}

func (f *fakeAssignments) GetByID(_ context.Context, id string) (*model.Assignment, error) {
	a, ok := f.byID[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return a, nil
}

func (f *fakeAssignments) GetByUserFile(_ context.Context, userID, fileID string) (*model.Assignment, error) {
	if a := f.find(userID, fileID); a != nil {
		return a, nil
	}
	return nil, repository.ErrNotFound
}

func (f *fakeAssignments) ListByFile(_ context.Context, fileID string) ([]*model.Assignment, error) {
	var list []*model.Assignment
	for _, a := range f.byID {
		if a.FileID == fileID {
			list = append(list, a)
		}
	}
	return list, nil
}

func (f *fakeAssignments) Delete(_ context.Context, id string) error {
	if _, ok := f.byID[id]; !ok {
		return repository.ErrNotFound
	}
	delete(f.byID, id)
	return nil
}

func (f *fakeAssignments) Exists(_ context.Context, userID, fileID string) (bool, error) {
	return f.find(userID, fileID) != nil, nil
}

// fakeSink — AuditRecorder, накапливающий события.
type fakeSink struct {
	entries []audit.Entry
}

func (f *fakeSink) Record(e audit.Entry) { f.entries = append(f.entries, e) }

func (f *fakeSink) last() *audit.Entry {
	if len(f.entries) == 0 {
		return nil
	}
	return &f.entries[len(f.entries)-1]
}

// fakeObjectStore — storage.ObjectStore в памяти.
type fakeObjectStore struct {
	objects map[string][]byte
	putErr  error
}

func newFakeObjectStore() *fakeObjectStore {
	return &fakeObjectStore{objects: make(map[string][]byte)}
}

func (f *fakeObjectStore) Put(_ context.Context, key string, body io.Reader, _ int64, _ string) error {
	if f.putErr != nil {
		return f.putErr
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return err
	}
	f.objects[key] = data
	return nil
}

func (f *fakeObjectStore) PresignGet(_ context.Context, key string) (string, error) {
	if _, ok := f.objects[key]; !ok {
		return "", errors.New("объект не найден")
	}
	return "https://s3.example.com/" + key, nil
}

func (f *fakeObjectStore) Get(_ context.Context, key string) (io.ReadCloser, int64, error) {
	data, ok := f.objects[key]
	if !ok {
		return nil, 0, errors.New("объект не найден")
	}
	return io.NopCloser(bytes.NewReader(data)), int64(len(data)), nil
}

func adminIdentity() *policy.Identity {
	return &policy.Identity{UserID: "admin-1", Email: "admin@example.com", Role: policy.RoleAdmin}
}

func TestAuthServiceLogin(t *testing.T) {
	hash, err := auth.HashPassword("secret-123", 4)
	if err != nil {
		t.Fatalf("хэширование: %v", err)
	}

	users := newFakeUsers()
	users.add(&model.User{ID: "user-1", Email: "user@example.com", PasswordHash: hash, Role: policy.RoleUser})

	sink := &fakeSink{}
	tokens := auth.NewTokenService([]byte("0123456789abcdef0123456789abcdef"), time.Hour)
	svc := NewAuthService(users, tokens, sink, testLogger)

	t.Run("успешный вход", func(t *testing.T) {
		token, user, err := svc.Login(context.Background(), "user@example.com", "secret-123", "10.0.0.1")
		if err != nil {
			t.Fatalf("неожиданная ошибка: %v", err)
		}
		if token == "" {
			t.Error("ожидался непустой токен")
		}
		if user.ID != "user-1" {
			t.Errorf("user.ID = %q, ожидался user-1", user.ID)
		}
		e := sink.last()
		if e == nil || e.Action != audit.ActionLogin {
			t.Errorf("ожидалось событие LOGIN, получено %+v", e)
		}
	})

	t.Run("неверный пароль", func(t *testing.T) {
		_, _, err := svc.Login(context.Background(), "user@example.com", "wrong-pass", "10.0.0.1")
		if !errors.Is(err, ErrInvalidCredentials) {
			t.Errorf("ожидалась ErrInvalidCredentials, получено %v", err)
		}
	})

	t.Run("несуществующая почта неотличима от неверного пароля", func(t *testing.T) {
		_, _, err := svc.Login(context.Background(), "ghost@example.com", "secret-123", "10.0.0.1")
		if !errors.Is(err, ErrInvalidCredentials) {
			t.Errorf("ожидалась ErrInvalidCredentials, получено %v", err)
		}
	})
}

func TestUserServiceCreate(t *testing.T) {
	tests := []struct {
		name     string
		email    string
		password string
		role     string
		wantErr  error
	}{
		{"корректный пользователь", "new@example.com", "password1", "USER", nil},
		{"некорректная почта", "not-an-email", "password1", "USER", ErrValidation},
		{"короткий пароль", "a@example.com", "p1", "USER", ErrValidation},
		{"пароль без цифр", "a@example.com", "passwordonly", "USER", ErrValidation},
		{"несуществующая роль", "a@example.com", "password1", "ROOT", ErrValidation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			users := newFakeUsers()
			sink := &fakeSink{}
			svc := NewUserService(users, newFakeFiles(), sink, 4, testLogger)

			user, err := svc.Create(context.Background(), adminIdentity(), tt.email, tt.password, tt.role, "10.0.0.1")
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("ожидалась %v, получено %v", tt.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("неожиданная ошибка: %v", err)
			}
			if user.ID == "" {
				t.Error("идентификатор не присвоен")
			}
			e := sink.last()
			if e == nil || e.Action != audit.ActionCreateUser {
				t.Errorf("ожидалось событие CREATE_USER, получено %+v", e)
			}
		})
	}

	t.Run("дубликат почты", func(t *testing.T) {
		users := newFakeUsers()
		users.add(&model.User{ID: "user-1", Email: "dup@example.com", Role: "USER"})
		svc := NewUserService(users, newFakeFiles(), &fakeSink{}, 4, testLogger)

		_, err := svc.Create(context.Background(), adminIdentity(), "dup@example.com", "password1", "USER", "")
		if !errors.Is(err, ErrConflict) {
			t.Errorf("ожидалась ErrConflict, получено %v", err)
		}
	})
}

func TestUserServiceGet(t *testing.T) {
	users := newFakeUsers()
	users.add(&model.User{ID: "user-1", Email: "user@example.com", Role: "USER"})
	files := newFakeFiles()
	files.assigned["user-1"] = []*model.File{{ID: "file-1", OriginalName: "a.zip"}}
	svc := NewUserService(users, files, &fakeSink{}, 4, testLogger)

	user, assigned, err := svc.Get(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("неожиданная ошибка: %v", err)
	}
	if user.Email != "user@example.com" || len(assigned) != 1 {
		t.Errorf("карточка = %+v, файлов %d", user, len(assigned))
	}
	if files.lastAssignedLimit != userDetailFilesCap {
		t.Errorf("limit карточки = %d, ожидался %d", files.lastAssignedLimit, userDetailFilesCap)
	}

	if _, _, err := svc.Get(context.Background(), "ghost"); !errors.Is(err, ErrNotFound) {
		t.Errorf("ожидалась ErrNotFound, получено %v", err)
	}
}

func TestUserServiceResetPassword(t *testing.T) {
	hash, _ := auth.HashPassword("old-pass-1", 4)
	users := newFakeUsers()
	users.add(&model.User{ID: "user-1", Email: "user@example.com", PasswordHash: hash, Role: "USER"})
	sink := &fakeSink{}
	svc := NewUserService(users, newFakeFiles(), sink, 4, testLogger)

	temp, err := svc.ResetPassword(context.Background(), adminIdentity(), "user-1", "10.0.0.1")
	if err != nil {
		t.Fatalf("неожиданная ошибка: %v", err)
	}
	if len(temp) != TempPasswordLength {
		t.Errorf("длина временного пароля %d, ожидалась %d", len(temp), TempPasswordLength)
	}
	if !auth.VerifyPassword(temp, users.byID["user-1"].PasswordHash) {
		t.Error("новый хэш не соответствует временному паролю")
	}
	if auth.VerifyPassword("old-pass-1", users.byID["user-1"].PasswordHash) {
		t.Error("старый пароль всё ещё действует")
	}
	e := sink.last()
	if e == nil || e.Action != audit.ActionResetPassword {
		t.Errorf("ожидалось событие RESET_PASSWORD, получено %+v", e)
	}

	if _, err := svc.ResetPassword(context.Background(), adminIdentity(), "ghost", ""); !errors.Is(err, ErrNotFound) {
		t.Errorf("ожидалась ErrNotFound, получено %v", err)
	}
}

func TestFileServiceUpload(t *testing.T) {
	zipData := []byte("PK\x03\x04fake-zip-content")

	tests := []struct {
		name     string
		slug     string
		fileName string
		data     []byte
		wantErr  error
	}{
		{"корректный архив", "acme", "release.zip", zipData, nil},
		{"не ZIP", "acme", "notes.txt", zipData, ErrValidation},
		{"пустой файл", "acme", "empty.zip", nil, ErrValidation},
		{"некорректный slug", "про ект", "release.zip", zipData, ErrValidation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newFakeObjectStore()
			sink := &fakeSink{}
			svc := NewFileService(newFakeFiles(), newFakeAssignments(), store, sink,
				DownloadPresigned, 1<<20, testLogger)

			file, err := svc.Upload(context.Background(), adminIdentity(), tt.slug, tt.fileName, tt.data, "10.0.0.1")
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("ожидалась %v, получено %v", tt.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("неожиданная ошибка: %v", err)
			}
			if file.SHA256 == "" || len(file.SHA256) != 64 {
				t.Errorf("некорректная контрольная сумма %q", file.SHA256)
			}
			if !strings.HasPrefix(file.StorageKey, "projects/acme/") {
				t.Errorf("ключ %q не начинается с projects/acme/", file.StorageKey)
			}
			if _, ok := store.objects[file.StorageKey]; !ok {
				t.Error("объект не попал в хранилище")
			}
			e := sink.last()
			if e == nil || e.Action != audit.ActionUpload {
				t.Errorf("ожидалось событие UPLOAD, получено %+v", e)
			}
		})
	}

	t.Run("превышение лимита размера", func(t *testing.T) {
		svc := NewFileService(newFakeFiles(), newFakeAssignments(), newFakeObjectStore(), &fakeSink{},
			DownloadPresigned, 8, testLogger)
		_, err := svc.Upload(context.Background(), adminIdentity(), "acme", "big.zip", zipData, "")
		if !errors.Is(err, ErrValidation) {
			t.Errorf("ожидалась ErrValidation, получено %v", err)
		}
	})

	t.Run("отказ хранилища не создаёт запись", func(t *testing.T) {
		files := newFakeFiles()
		store := newFakeObjectStore()
		store.putErr = errors.New("соединение разорвано")
		svc := NewFileService(files, newFakeAssignments(), store, &fakeSink{},
			DownloadPresigned, 1<<20, testLogger)

		_, err := svc.Upload(context.Background(), adminIdentity(), "acme", "release.zip", zipData, "")
		if !errors.Is(err, ErrStorageUnavailable) {
			t.Fatalf("ожидалась ErrStorageUnavailable, получено %v", err)
		}
		if len(files.byID) != 0 {
			t.Error("запись файла создана несмотря на отказ хранилища")
		}
	})
}

func TestFileServiceListByRole(t *testing.T) {
	files := newFakeFiles()
	all := []*model.File{
		{ID: "file-1", OriginalName: "a.zip"},
		{ID: "file-2", OriginalName: "b.zip"},
		{ID: "file-3", OriginalName: "c.zip"},
	}
	for _, f := range all {
		files.byID[f.ID] = f
	}
	files.assigned["user-1"] = all[:1]

	svc := NewFileService(files, newFakeAssignments(), newFakeObjectStore(), &fakeSink{},
		DownloadPresigned, 1<<20, testLogger)

	t.Run("ADMIN видит все файлы", func(t *testing.T) {
		list, total, err := svc.List(context.Background(), adminIdentity(), 20, 0)
		if err != nil {
			t.Fatalf("неожиданная ошибка: %v", err)
		}
		if len(list) != 3 || total != 3 {
			t.Errorf("len=%d total=%d, ожидалось 3/3", len(list), total)
		}
	})

	t.Run("USER видит только назначенные", func(t *testing.T) {
		user := &policy.Identity{UserID: "user-1", Role: policy.RoleUser}
		list, total, err := svc.List(context.Background(), user, 20, 0)
		if err != nil {
			t.Fatalf("неожиданная ошибка: %v", err)
		}
		if len(list) != 1 || total != 1 {
			t.Errorf("len=%d total=%d, ожидалось 1/1", len(list), total)
		}
	})
}

func TestFileServiceDownload(t *testing.T) {
	content := []byte("PK\x03\x04payload")
	files := newFakeFiles()
	files.byID["file-1"] = &model.File{
		ID: "file-1", OriginalName: "release.zip", StorageKey: "projects/acme/2026-08-28/release.zip",
	}
	store := newFakeObjectStore()
	store.objects["projects/acme/2026-08-28/release.zip"] = content

	t.Run("режим presigned", func(t *testing.T) {
		sink := &fakeSink{}
		svc := NewFileService(files, newFakeAssignments(), store, sink, DownloadPresigned, 1<<20, testLogger)

		res, err := svc.Download(context.Background(), adminIdentity(), "file-1", "10.0.0.1")
		if err != nil {
			t.Fatalf("неожиданная ошибка: %v", err)
		}
		if res.Mode != DownloadPresigned || res.URL == "" {
			t.Errorf("mode=%q url=%q", res.Mode, res.URL)
		}
		e := sink.last()
		if e == nil || e.Action != audit.ActionDownload {
			t.Errorf("ожидалось событие DOWNLOAD, получено %+v", e)
		}
	})

	t.Run("режим proxy", func(t *testing.T) {
		svc := NewFileService(files, newFakeAssignments(), store, &fakeSink{}, DownloadProxy, 1<<20, testLogger)

		res, err := svc.Download(context.Background(), adminIdentity(), "file-1", "")
		if err != nil {
			t.Fatalf("неожиданная ошибка: %v", err)
		}
		if res.Mode != DownloadProxy || res.Body == nil {
			t.Fatalf("mode=%q body=%v", res.Mode, res.Body)
		}
		defer res.Body.Close()
		got, _ := io.ReadAll(res.Body)
		if !bytes.Equal(got, content) {
			t.Error("содержимое потока не совпадает с объектом")
		}
		if res.Size != int64(len(content)) {
			t.Errorf("size=%d, ожидалось %d", res.Size, len(content))
		}
	})

	t.Run("несуществующий файл", func(t *testing.T) {
		svc := NewFileService(files, newFakeAssignments(), store, &fakeSink{}, DownloadPresigned, 1<<20, testLogger)
		if _, err := svc.Download(context.Background(), adminIdentity(), "ghost", ""); !errors.Is(err, ErrNotFound) {
			t.Errorf("ожидалась ErrNotFound, получено %v", err)
		}
	})
}

func TestAssignmentServiceCreate(t *testing.T) {
	assignments := newFakeAssignments()
	sink := &fakeSink{}
	users := newFakeUsers()
	users.add(&model.User{ID: "user-1", Email: "user@example.com"})
	files := newFakeFiles()
	files.byID["file-1"] = &model.File{ID: "file-1", OriginalName: "a.zip"}

	svc := NewAssignmentService(assignments, users, files, sink, testLogger)

	a, err := svc.Create(context.Background(), adminIdentity(), "user-1", "file-1", "10.0.0.1")
	if err != nil {
		t.Fatalf("неожиданная ошибка: %v", err)
	}
	if a.ID == "" {
		t.Error("идентификатор не присвоен")
	}
	e := sink.last()
	if e == nil || e.Action != audit.ActionAssignFile {
		t.Errorf("ожидалось событие ASSIGN_FILE, получено %+v", e)
	}

	t.Run("повторное назначение", func(t *testing.T) {
		_, err := svc.Create(context.Background(), adminIdentity(), "user-1", "file-1", "")
		if !errors.Is(err, ErrConflict) {
			t.Errorf("ожидалась ErrConflict, получено %v", err)
		}
	})
}

func TestAssignmentServiceCreateBulk(t *testing.T) {
	users := newFakeUsers()
	users.add(&model.User{ID: "user-1", Email: "a@example.com"})
	users.add(&model.User{ID: "user-2", Email: "b@example.com"})
	users.add(&model.User{ID: "user-3", Email: "c@example.com"})
	files := newFakeFiles()
	files.byID["file-1"] = &model.File{ID: "file-1"}

	assignments := newFakeAssignments()
	// user-2 уже имеет назначение
	_ = assignments.Create(context.Background(), &model.Assignment{UserID: "user-2", FileID: "file-1"})

	sink := &fakeSink{}
	svc := NewAssignmentService(assignments, users, files, sink, testLogger)

	t.Run("частично существующие пары", func(t *testing.T) {
		res, err := svc.CreateBulk(context.Background(), adminIdentity(), "file-1",
			[]string{"user-1", "user-2", "user-3"}, "10.0.0.1")
		if err != nil {
			t.Fatalf("неожиданная ошибка: %v", err)
		}
		if res.Created != 2 || res.Skipped != 1 {
			t.Errorf("created=%d skipped=%d, ожидалось 2/1", res.Created, res.Skipped)
		}
	})

	t.Run("несуществующий пользователь отменяет всю операцию", func(t *testing.T) {
		before := len(assignments.byID)
		_, err := svc.CreateBulk(context.Background(), adminIdentity(), "file-1",
			[]string{"user-1", "ghost"}, "")
		if !errors.Is(err, ErrNotFound) {
			t.Fatalf("ожидалась ErrNotFound, получено %v", err)
		}
		if len(assignments.byID) != before {
			t.Error("назначения созданы несмотря на ошибку")
		}
	})

	t.Run("пустой список", func(t *testing.T) {
		_, err := svc.CreateBulk(context.Background(), adminIdentity(), "file-1", nil, "")
		if !errors.Is(err, ErrValidation) {
			t.Errorf("ожидалась ErrValidation, получено %v", err)
		}
	})

	t.Run("несуществующий файл", func(t *testing.T) {
		_, err := svc.CreateBulk(context.Background(), adminIdentity(), "ghost", []string{"user-1"}, "")
		if !errors.Is(err, ErrNotFound) {
			t.Errorf("ожидалась ErrNotFound, получено %v", err)
		}
	})
}

func TestAssignmentServiceDelete(t *testing.T) {
	users := newFakeUsers()
	users.add(&model.User{ID: "user-1", Email: "a@example.com"})
	files := newFakeFiles()
	files.byID["file-1"] = &model.File{ID: "file-1"}

	assignments := newFakeAssignments()
	a := &model.Assignment{UserID: "user-1", FileID: "file-1"}
	_ = assignments.Create(context.Background(), a)

	sink := &fakeSink{}
	svc := NewAssignmentService(assignments, users, files, sink, testLogger)

	t.Run("по паре пользователь/файл", func(t *testing.T) {
		if err := svc.DeleteByUserFile(context.Background(), adminIdentity(), "user-1", "file-1", "10.0.0.1"); err != nil {
			t.Fatalf("неожиданная ошибка: %v", err)
		}
		e := sink.last()
		if e == nil || e.Action != audit.ActionUnassignFile {
			t.Errorf("ожидалось событие UNASSIGN_FILE, получено %+v", e)
		}
		if len(assignments.byID) != 0 {
			t.Error("назначение не удалено")
		}
	})

	t.Run("несуществующее назначение", func(t *testing.T) {
		if err := svc.Delete(context.Background(), adminIdentity(), "ghost", ""); !errors.Is(err, ErrNotFound) {
			t.Errorf("ожидалась ErrNotFound, получено %v", err)
		}
	})
}
