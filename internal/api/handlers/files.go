// Пакет handlers — HTTP-обработчики filedrop.
// files.go — листинг, загрузка, скачивание и удаление файлов.
package handlers

import (
	"bytes"
	"errors"
	"io/fs"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	apierrors "github.com/bigkaa/filedrop/internal/api/errors"
	"github.com/bigkaa/filedrop/internal/api/middleware"
	"github.com/bigkaa/filedrop/internal/service"
	"github.com/bigkaa/filedrop/internal/storage/blobstore"
	"github.com/bigkaa/filedrop/internal/web"
)

// FilesHandler — обработчики операций с файлами.
type FilesHandler struct {
	uploads  *service.UploadService
	deletes  *service.DeleteService
	blobs    *blobstore.BlobStore
	renderer *web.Renderer

	// requireSecret — отображать ли поля пароля удаления в формах
	requireSecret bool
	// maxFileSize — лимит размера тела запроса загрузки, 0 — без лимита
	maxFileSize int64

	logger *slog.Logger
}

// NewFilesHandler создаёт обработчики операций с файлами.
func NewFilesHandler(
	uploads *service.UploadService,
	deletes *service.DeleteService,
	blobs *blobstore.BlobStore,
	renderer *web.Renderer,
	requireSecret bool,
	maxFileSize int64,
	logger *slog.Logger,
) *FilesHandler {
	return &FilesHandler{
		uploads:       uploads,
		deletes:       deletes,
		blobs:         blobs,
		renderer:      renderer,
		requireSecret: requireSecret,
		maxFileSize:   maxFileSize,
		logger:        logger.With(slog.String("component", "files_handler")),
	}
}

// Index обрабатывает GET / — страница листинга неистёкших файлов.
// Вычистка уже выполнена middleware, хранилище содержит только живые записи.
func (h *FilesHandler) Index(w http.ResponseWriter, r *http.Request) {
	st := middleware.StoreFrom(r.Context())

	records, err := st.Load()
	if err != nil {
		h.logger.Error("Ошибка чтения хранилища для листинга",
			slog.String("error", err.Error()),
		)
		apierrors.InternalError(w, "Ошибка чтения списка файлов")
		return
	}

	// Рендерим в буфер: ошибка шаблона не должна отдать полстраницы с 200
	var buf bytes.Buffer
	err = h.renderer.RenderIndex(&buf, web.IndexData{
		Files:                 records,
		RequireDeletePassword: h.requireSecret,
	})
	if err != nil {
		h.logger.Error("Ошибка рендеринга листинга",
			slog.String("error", err.Error()),
		)
		apierrors.InternalError(w, "Ошибка формирования страницы")
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = buf.WriteTo(w)
}

// Upload обрабатывает POST /upload — загрузка файла через multipart-форму.
// Поля формы: name, description, expiresInMinutes, password, file.
// При успехе — 303 See Other на листинг.
func (h *FilesHandler) Upload(w http.ResponseWriter, r *http.Request) {
	if h.maxFileSize > 0 {
		// Запас на поля формы и multipart-разделители
		r.Body = http.MaxBytesReader(w, r.Body, h.maxFileSize+1<<20)
	}

	file, header, err := r.FormFile("file")
	var params service.UploadParams
	if err == nil {
		defer func() { _ = file.Close() }()
		params.Reader = file
		params.OriginalName = header.Filename
		params.Size = header.Size
	} else if !errors.Is(err, http.ErrMissingFile) {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			apierrors.FileTooLarge(w, "Размер запроса превышает допустимый лимит")
			return
		}
		apierrors.ValidationError(w, "Некорректная multipart-форма")
		return
	}

	params.DisplayName = r.FormValue("name")
	params.Description = r.FormValue("description")
	params.DurationRaw = r.FormValue("expiresInMinutes")
	params.Secret = r.FormValue("password")

	st := middleware.StoreFrom(r.Context())

	if _, uploadErr := h.uploads.Upload(st, params); uploadErr != nil {
		apierrors.WriteError(w, uploadErr.StatusCode, uploadErr.Code, uploadErr.Message)
		return
	}

	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// Download обрабатывает GET /download/{storageKey} — отдача содержимого файла.
//
// Файл отдаётся напрямую с диска по ключу хранения, без сверки с
// метаданными: блоб без записи недостижим штатно (вычистка удаляет блоб
// вместе с записью), а ключи непредсказуемы.
//
// Range-запросы (206, 416, Content-Range, If-Range) обрабатывает
// http.ServeContent поверх os.File.
func (h *FilesHandler) Download(w http.ResponseWriter, r *http.Request) {
	storageKey := chi.URLParam(r, "storageKey")

	f, err := h.blobs.Open(storageKey)
	if err != nil {
		if errors.Is(err, blobstore.ErrInvalidKey) || errors.Is(err, fs.ErrNotExist) {
			apierrors.NotFound(w, "Файл не найден")
			return
		}
		h.logger.Error("Ошибка открытия блоба",
			slog.String("storage_key", storageKey),
			slog.String("error", err.Error()),
		)
		apierrors.InternalError(w, "Ошибка чтения файла")
		return
	}
	defer func() { _ = f.Close() }()

	fi, err := f.Stat()
	if err != nil {
		h.logger.Error("Ошибка чтения атрибутов блоба",
			slog.String("storage_key", storageKey),
			slog.String("error", err.Error()),
		)
		apierrors.InternalError(w, "Ошибка чтения файла")
		return
	}

	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("Content-Disposition", `attachment; filename="`+storageKey+`"`)

	// Пустое имя: тип уже задан, sniffing по расширению не нужен
	http.ServeContent(w, r, "", fi.ModTime(), f)
}

// Delete обрабатывает POST /delete/{storageKey} — досрочное удаление.
// Поле формы deletePassword сверяется с паролем, заданным при загрузке.
// При успехе — 303 See Other на листинг.
func (h *FilesHandler) Delete(w http.ResponseWriter, r *http.Request) {
	storageKey := chi.URLParam(r, "storageKey")
	suppliedSecret := r.FormValue("deletePassword")

	st := middleware.StoreFrom(r.Context())

	err := h.deletes.Delete(st, storageKey, suppliedSecret)
	switch {
	case errors.Is(err, service.ErrNotFound):
		apierrors.NotFound(w, "Файл не найден")
		return
	case errors.Is(err, service.ErrForbidden):
		apierrors.Forbidden(w, "Неверный пароль удаления")
		return
	case err != nil:
		apierrors.InternalError(w, "Ошибка удаления файла")
		return
	}

	http.Redirect(w, r, "/", http.StatusSeeOther)
}
