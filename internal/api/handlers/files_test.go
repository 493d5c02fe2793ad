package handlers

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/bigkaa/filedrop/internal/api/middleware"
	"github.com/bigkaa/filedrop/internal/avatar"
	"github.com/bigkaa/filedrop/internal/domain/model"
	"github.com/bigkaa/filedrop/internal/service"
	"github.com/bigkaa/filedrop/internal/storage/blobstore"
	"github.com/bigkaa/filedrop/internal/store"
	"github.com/bigkaa/filedrop/internal/web"
)

// testEnv — собранное окружение для HTTP-тестов.
type testEnv struct {
	router *chi.Mux
	blobs  *blobstore.BlobStore
	store  store.Store
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestAvatarPool(t *testing.T) *avatar.Pool {
	t.Helper()
	pool, err := avatar.NewPool(t.TempDir(), testLogger())
	if err != nil {
		t.Fatalf("ошибка создания пула аватаров: %v", err)
	}
	return pool
}

// newTestEnv собирает маршруты так же, как их собирает сервер.
func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	logger := testLogger()

	blobs, err := blobstore.New(t.TempDir())
	if err != nil {
		t.Fatalf("ошибка создания BlobStore: %v", err)
	}

	st := store.NewJSONStore(filepath.Join(t.TempDir(), "files.json"), logger)

	renderer, err := web.NewRenderer()
	if err != nil {
		t.Fatalf("ошибка инициализации шаблонов: %v", err)
	}

	// Пустая директория аватаров: записи получают пустой аватар
	avatars := newTestAvatarPool(t)

	uploadSvc := service.NewUploadService(blobs, avatars, true, 0, logger)
	deleteSvc := service.NewDeleteService(blobs, true, logger)
	sweeper := service.NewSweeper(blobs, logger)

	h := NewFilesHandler(uploadSvc, deleteSvc, blobs, renderer, true, 0, logger)

	router := chi.NewRouter()
	router.Group(func(r chi.Router) {
		r.Use(middleware.SessionMiddleware(st))
		r.Use(middleware.SweepMiddleware(sweeper, logger))

		r.Get("/", h.Index)
		r.Post("/upload", h.Upload)
		r.Get("/download/{storageKey}", h.Download)
		r.Post("/delete/{storageKey}", h.Delete)
	})

	return &testEnv{router: router, blobs: blobs, store: st}
}

// seedFile кладёт блоб и запись с часовым сроком хранения.
func (e *testEnv) seedFile(t *testing.T, content, name string) model.FileRecord {
	t.Helper()

	saved, err := e.blobs.Save(bytes.NewReader([]byte(content)), name)
	if err != nil {
		t.Fatalf("ошибка сохранения блоба: %v", err)
	}

	now := time.Now().UTC()
	rec := model.FileRecord{
		DisplayName:  "Файл " + name,
		OriginalName: name,
		StorageKey:   saved.StorageKey,
		Extension:    strings.ToLower(filepath.Ext(name)),
		UploadedAt:   model.NewTimestamp(now),
		ExpiresAt:    model.NewTimestamp(now.Add(time.Hour)),
		Secret:       "pw",
	}

	err = e.store.Update(func(records []model.FileRecord) ([]model.FileRecord, error) {
		return append(records, rec), nil
	})
	if err != nil {
		t.Fatalf("ошибка добавления записи: %v", err)
	}
	return rec
}

func (e *testEnv) do(req *http.Request) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	e.router.ServeHTTP(rr, req)
	return rr
}

// errorCode достаёт машиночитаемый код из тела ошибки.
func errorCode(t *testing.T, body *bytes.Buffer) string {
	t.Helper()
	var envelope struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	if err := json.Unmarshal(body.Bytes(), &envelope); err != nil {
		t.Fatalf("ошибка разбора тела ошибки: %v (%s)", err, body.String())
	}
	return envelope.Error.Code
}

// TestIndex_ListsFiles проверяет страницу листинга.
func TestIndex_ListsFiles(t *testing.T) {
	env := newTestEnv(t)
	rec := env.seedFile(t, "данные", "report.pdf")

	rr := env.do(httptest.NewRequest(http.MethodGet, "/", nil))

	if rr.Code != http.StatusOK {
		t.Fatalf("ожидался 200, получен %d", rr.Code)
	}
	if ct := rr.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
		t.Errorf("ожидался text/html, получен %q", ct)
	}
	body := rr.Body.String()
	if !strings.Contains(body, rec.DisplayName) {
		t.Error("страница не содержит имя файла")
	}
	if !strings.Contains(body, "/download/"+rec.StorageKey) {
		t.Error("страница не содержит ссылку скачивания")
	}
	if strings.Contains(body, "pw") && strings.Contains(body, `value="pw"`) {
		t.Error("страница не должна содержать пароль удаления")
	}
}

// TestIndex_SweepsExpired проверяет, что истёкшая запись исчезает
// из листинга и с диска при первом же запросе.
func TestIndex_SweepsExpired(t *testing.T) {
	env := newTestEnv(t)

	saved, err := env.blobs.Save(bytes.NewReader([]byte("старые данные")), "old.txt")
	if err != nil {
		t.Fatalf("ошибка сохранения блоба: %v", err)
	}
	past := time.Now().UTC().Add(-time.Hour)
	expired := model.FileRecord{
		DisplayName: "Истёкший",
		StorageKey:  saved.StorageKey,
		UploadedAt:  model.NewTimestamp(past.Add(-time.Hour)),
		ExpiresAt:   model.NewTimestamp(past),
		Secret:      "pw",
	}
	if err := env.store.Save([]model.FileRecord{expired}); err != nil {
		t.Fatalf("ошибка подготовки хранилища: %v", err)
	}

	rr := env.do(httptest.NewRequest(http.MethodGet, "/", nil))

	if rr.Code != http.StatusOK {
		t.Fatalf("ожидался 200, получен %d", rr.Code)
	}
	if strings.Contains(rr.Body.String(), "Истёкший") {
		t.Error("истёкшая запись попала в листинг")
	}
	if env.blobs.Exists(saved.StorageKey) {
		t.Error("блоб истёкшей записи не удалён")
	}
}

// multipartBody собирает multipart-форму загрузки.
func multipartBody(t *testing.T, fields map[string]string, fileField, fileName, fileContent string) (*bytes.Buffer, string) {
	t.Helper()

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for k, v := range fields {
		if err := w.WriteField(k, v); err != nil {
			t.Fatalf("ошибка поля формы: %v", err)
		}
	}
	if fileField != "" {
		fw, err := w.CreateFormFile(fileField, fileName)
		if err != nil {
			t.Fatalf("ошибка файла формы: %v", err)
		}
		if _, err := fw.Write([]byte(fileContent)); err != nil {
			t.Fatalf("ошибка записи файла формы: %v", err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("ошибка закрытия формы: %v", err)
	}
	return &buf, w.FormDataContentType()
}

// TestUploadHandler_Success проверяет загрузку через форму: 303 + запись.
func TestUploadHandler_Success(t *testing.T) {
	env := newTestEnv(t)

	body, contentType := multipartBody(t, map[string]string{
		"name":             "Отчёт",
		"description":      "за март",
		"expiresInMinutes": "45",
		"password":         "secret",
	}, "file", "report.pdf", "PDF данные")

	req := httptest.NewRequest(http.MethodPost, "/upload", body)
	req.Header.Set("Content-Type", contentType)
	rr := env.do(req)

	if rr.Code != http.StatusSeeOther {
		t.Fatalf("ожидался 303, получен %d: %s", rr.Code, rr.Body.String())
	}
	if loc := rr.Header().Get("Location"); loc != "/" {
		t.Errorf("ожидался redirect на /, получен %q", loc)
	}

	records, _ := env.store.Load()
	if len(records) != 1 {
		t.Fatalf("ожидалась 1 запись, получено %d", len(records))
	}
	if records[0].DisplayName != "Отчёт" || records[0].Secret != "secret" {
		t.Errorf("запись заполнена неверно: %+v", records[0])
	}
	if !env.blobs.Exists(records[0].StorageKey) {
		t.Error("блоб не записан на диск")
	}
}

// TestUploadHandler_MissingName проверяет 400 при отсутствии имени.
func TestUploadHandler_MissingName(t *testing.T) {
	env := newTestEnv(t)

	body, contentType := multipartBody(t, map[string]string{
		"expiresInMinutes": "45",
		"password":         "secret",
	}, "file", "report.pdf", "данные")

	req := httptest.NewRequest(http.MethodPost, "/upload", body)
	req.Header.Set("Content-Type", contentType)
	rr := env.do(req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("ожидался 400, получен %d", rr.Code)
	}
	if code := errorCode(t, rr.Body); code != "VALIDATION_ERROR" {
		t.Errorf("ожидался код VALIDATION_ERROR, получен %q", code)
	}
}

// TestUploadHandler_MissingFile проверяет 400 при отсутствии файла.
func TestUploadHandler_MissingFile(t *testing.T) {
	env := newTestEnv(t)

	body, contentType := multipartBody(t, map[string]string{
		"name":             "Отчёт",
		"expiresInMinutes": "45",
		"password":         "secret",
	}, "", "", "")

	req := httptest.NewRequest(http.MethodPost, "/upload", body)
	req.Header.Set("Content-Type", contentType)
	rr := env.do(req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("ожидался 400, получен %d", rr.Code)
	}
}

// TestDownload_Full проверяет полное скачивание: 200 + содержимое.
func TestDownload_Full(t *testing.T) {
	env := newTestEnv(t)
	content := "полное содержимое файла"
	rec := env.seedFile(t, content, "doc.txt")

	rr := env.do(httptest.NewRequest(http.MethodGet, "/download/"+rec.StorageKey, nil))

	if rr.Code != http.StatusOK {
		t.Fatalf("ожидался 200, получен %d", rr.Code)
	}
	if rr.Body.String() != content {
		t.Error("содержимое не совпадает")
	}
	if ct := rr.Header().Get("Content-Type"); ct != "application/octet-stream" {
		t.Errorf("ожидался application/octet-stream, получен %q", ct)
	}
	if ar := rr.Header().Get("Accept-Ranges"); ar != "bytes" {
		t.Errorf("ожидался Accept-Ranges: bytes, получен %q", ar)
	}
	if cl := rr.Header().Get("Content-Length"); cl != fmt.Sprint(len(content)) {
		t.Errorf("Content-Length: ожидалось %d, получено %q", len(content), cl)
	}
}

// TestDownload_Range проверяет частичное скачивание: 206 + Content-Range.
func TestDownload_Range(t *testing.T) {
	env := newTestEnv(t)
	content := "0123456789"
	rec := env.seedFile(t, content, "digits.txt")

	req := httptest.NewRequest(http.MethodGet, "/download/"+rec.StorageKey, nil)
	req.Header.Set("Range", "bytes=2-5")
	rr := env.do(req)

	if rr.Code != http.StatusPartialContent {
		t.Fatalf("ожидался 206, получен %d", rr.Code)
	}
	if rr.Body.String() != "2345" {
		t.Errorf("ожидался фрагмент 2345, получен %q", rr.Body.String())
	}
	wantRange := fmt.Sprintf("bytes 2-5/%d", len(content))
	if cr := rr.Header().Get("Content-Range"); cr != wantRange {
		t.Errorf("Content-Range: ожидалось %q, получено %q", wantRange, cr)
	}
}

// TestDownload_FullRange проверяет диапазон bytes=0- на весь файл: 206.
func TestDownload_FullRange(t *testing.T) {
	env := newTestEnv(t)
	content := "0123456789"
	rec := env.seedFile(t, content, "digits.txt")

	req := httptest.NewRequest(http.MethodGet, "/download/"+rec.StorageKey, nil)
	req.Header.Set("Range", "bytes=0-")
	rr := env.do(req)

	if rr.Code != http.StatusPartialContent {
		t.Fatalf("ожидался 206, получен %d", rr.Code)
	}
	if rr.Body.String() != content {
		t.Error("тело диапазона bytes=0- должно содержать весь файл")
	}
	wantRange := fmt.Sprintf("bytes 0-%d/%d", len(content)-1, len(content))
	if cr := rr.Header().Get("Content-Range"); cr != wantRange {
		t.Errorf("Content-Range: ожидалось %q, получено %q", wantRange, cr)
	}
}

// TestDownload_OpenEndedRange проверяет суффиксный диапазон bytes=N-.
func TestDownload_OpenEndedRange(t *testing.T) {
	env := newTestEnv(t)
	content := "0123456789"
	rec := env.seedFile(t, content, "digits.txt")

	req := httptest.NewRequest(http.MethodGet, "/download/"+rec.StorageKey, nil)
	req.Header.Set("Range", "bytes=7-")
	rr := env.do(req)

	if rr.Code != http.StatusPartialContent {
		t.Fatalf("ожидался 206, получен %d", rr.Code)
	}
	if rr.Body.String() != "789" {
		t.Errorf("ожидался хвост 789, получен %q", rr.Body.String())
	}
}

// TestDownload_RangeOutOfBounds проверяет 416 для диапазона вне файла.
func TestDownload_RangeOutOfBounds(t *testing.T) {
	env := newTestEnv(t)
	content := "0123456789"
	rec := env.seedFile(t, content, "digits.txt")

	req := httptest.NewRequest(http.MethodGet, "/download/"+rec.StorageKey, nil)
	req.Header.Set("Range", fmt.Sprintf("bytes=%d-", len(content)))
	rr := env.do(req)

	if rr.Code != http.StatusRequestedRangeNotSatisfiable {
		t.Fatalf("ожидался 416, получен %d", rr.Code)
	}
	wantRange := fmt.Sprintf("bytes */%d", len(content))
	if cr := rr.Header().Get("Content-Range"); cr != wantRange {
		t.Errorf("Content-Range: ожидалось %q, получено %q", wantRange, cr)
	}
}

// TestDownload_NotFound проверяет 404 для неизвестного ключа.
func TestDownload_NotFound(t *testing.T) {
	env := newTestEnv(t)

	rr := env.do(httptest.NewRequest(http.MethodGet, "/download/1767225600123-a1b2c3d4-nope.txt", nil))

	if rr.Code != http.StatusNotFound {
		t.Fatalf("ожидался 404, получен %d", rr.Code)
	}
	if code := errorCode(t, rr.Body); code != "NOT_FOUND" {
		t.Errorf("ожидался код NOT_FOUND, получен %q", code)
	}
}

// TestDeleteHandler_Success проверяет удаление по верному паролю: 303.
func TestDeleteHandler_Success(t *testing.T) {
	env := newTestEnv(t)
	rec := env.seedFile(t, "данные", "doc.txt")

	form := url.Values{"deletePassword": {"pw"}}
	req := httptest.NewRequest(http.MethodPost, "/delete/"+rec.StorageKey,
		strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rr := env.do(req)

	if rr.Code != http.StatusSeeOther {
		t.Fatalf("ожидался 303, получен %d: %s", rr.Code, rr.Body.String())
	}

	records, _ := env.store.Load()
	if len(records) != 0 {
		t.Error("запись не удалена")
	}
	if env.blobs.Exists(rec.StorageKey) {
		t.Error("блоб не удалён")
	}
}

// TestDeleteHandler_WrongPassword проверяет 403 при неверном пароле.
func TestDeleteHandler_WrongPassword(t *testing.T) {
	env := newTestEnv(t)
	rec := env.seedFile(t, "данные", "doc.txt")

	form := url.Values{"deletePassword": {"не тот"}}
	req := httptest.NewRequest(http.MethodPost, "/delete/"+rec.StorageKey,
		strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rr := env.do(req)

	if rr.Code != http.StatusForbidden {
		t.Fatalf("ожидался 403, получен %d", rr.Code)
	}
	if code := errorCode(t, rr.Body); code != "FORBIDDEN" {
		t.Errorf("ожидался код FORBIDDEN, получен %q", code)
	}

	records, _ := env.store.Load()
	if len(records) != 1 {
		t.Error("запись удалена при неверном пароле")
	}
}

// TestDeleteHandler_NotFound проверяет 404 для неизвестного ключа.
func TestDeleteHandler_NotFound(t *testing.T) {
	env := newTestEnv(t)

	form := url.Values{"deletePassword": {"pw"}}
	req := httptest.NewRequest(http.MethodPost, "/delete/1767225600123-a1b2c3d4-nope.txt",
		strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rr := env.do(req)

	if rr.Code != http.StatusNotFound {
		t.Fatalf("ожидался 404, получен %d", rr.Code)
	}
}

// TestSessionCookie проверяет выдачу cookie сессии новому посетителю.
func TestSessionCookie(t *testing.T) {
	env := newTestEnv(t)

	rr := env.do(httptest.NewRequest(http.MethodGet, "/", nil))

	var found bool
	for _, c := range rr.Result().Cookies() {
		if c.Name == middleware.SessionCookieName && c.Value != "" {
			found = true
		}
	}
	if !found {
		t.Error("новому посетителю не выдан cookie сессии")
	}
}
