// Пакет avatar — пул декоративных картинок для записей файлов.
// Директория сканируется один раз при старте процесса; повторное
// сканирование — только по явному сигналу Refresh (SIGHUP).
// Чтение директории на каждый запрос было бы лишним I/O.
package avatar

import (
	"fmt"
	"log/slog"
	"math/rand/v2"
	"os"
	"path"
	"sort"
	"strings"
	"sync"
)

// imageExtensions — допустимые расширения картинок пула.
var imageExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".gif":  true,
}

// Pool — кэшированный упорядоченный пул картинок.
type Pool struct {
	mu     sync.RWMutex
	dir    string
	images []string // пути вида "profile/cat.png", отсортированы
	logger *slog.Logger
}

// NewPool создаёт пул и выполняет первичное сканирование директории.
// Отсутствующая директория — не ошибка: пул остаётся пустым,
// записи получают пустой аватар.
func NewPool(dir string, logger *slog.Logger) (*Pool, error) {
	p := &Pool{
		dir:    dir,
		logger: logger.With(slog.String("component", "avatar_pool")),
	}
	if err := p.Refresh(); err != nil {
		return nil, err
	}
	return p, nil
}

// Refresh пересканирует директорию картинок.
// Вызывается при старте и по SIGHUP.
func (p *Pool) Refresh() error {
	entries, err := os.ReadDir(p.dir)
	if err != nil {
		if os.IsNotExist(err) {
			p.logger.Warn("Директория аватаров не найдена, пул пуст",
				slog.String("dir", p.dir),
			)
			p.mu.Lock()
			p.images = nil
			p.mu.Unlock()
			return nil
		}
		return fmt.Errorf("ошибка сканирования директории аватаров %s: %w", p.dir, err)
	}

	var images []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ext := strings.ToLower(path.Ext(entry.Name()))
		if !imageExtensions[ext] {
			continue
		}
		// Путь в формате legacy-записи: "profile/<имя файла>"
		images = append(images, path.Join("profile", entry.Name()))
	}
	sort.Strings(images)

	p.mu.Lock()
	p.images = images
	p.mu.Unlock()

	p.logger.Info("Пул аватаров обновлён",
		slog.Int("images", len(images)),
		slog.String("dir", p.dir),
	)
	return nil
}

// Pick возвращает случайную картинку пула (равномерное распределение).
// Пустой пул — пустая строка.
func (p *Pool) Pick() string {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if len(p.images) == 0 {
		return ""
	}
	return p.images[rand.IntN(len(p.images))]
}

// Size возвращает текущий размер пула.
func (p *Pool) Size() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.images)
}
