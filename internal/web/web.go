// Пакет web — встроенные HTML-шаблоны веб-интерфейса filedrop.
//
// Шаблоны компилируются в бинарник через go:embed: сервису не нужны
// внешние файлы интерфейса при развёртывании.
package web

import (
	"embed"
	"fmt"
	"html/template"
	"io"

	"github.com/bigkaa/filedrop/internal/domain/model"
)

//go:embed templates/*.tmpl
var templatesFS embed.FS

// Renderer — рендерер HTML-страниц.
type Renderer struct {
	templates *template.Template
}

// NewRenderer разбирает встроенные шаблоны.
// Ошибка разбора означает дефект сборки и обнаруживается при старте.
func NewRenderer() (*Renderer, error) {
	tmpl, err := template.ParseFS(templatesFS, "templates/*.tmpl")
	if err != nil {
		return nil, fmt.Errorf("разбор шаблонов: %w", err)
	}
	return &Renderer{templates: tmpl}, nil
}

// IndexData — данные страницы листинга.
type IndexData struct {
	// Files — неистёкшие записи в порядке загрузки
	Files []model.FileRecord
	// RequireDeletePassword — показывать ли поле пароля в формах
	RequireDeletePassword bool
}

// RenderIndex рендерит страницу листинга файлов.
func (r *Renderer) RenderIndex(w io.Writer, data IndexData) error {
	return r.templates.ExecuteTemplate(w, "index.html.tmpl", data)
}
