// Пакет stats — счётчик обработанных файлов в плоском JSON-файле.
// Инкремент best-effort: его ошибка не должна проваливать запрос.
// Конкурентные read-modify-write защищены process-local мьютексом —
// дизайн явно single-instance, межпроцессная блокировка не нужна.
package stats

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Summary — содержимое файла счётчика.
type Summary struct {
	// TotalProcessed — количество успешно обработанных файлов
	TotalProcessed int64 `json:"total_processed"`
	// UpdatedAt — время последнего инкремента (UTC)
	UpdatedAt time.Time `json:"updated_at"`
}

// Counter — персистентный счётчик обработанных файлов.
type Counter struct {
	path string
	mu   sync.Mutex
	// now — источник времени, подменяется в тестах
	now func() time.Time
}

// New создаёт счётчик, хранящийся в указанном файле.
func New(path string) *Counter {
	return &Counter{
		path: path,
		now:  func() time.Time { return time.Now().UTC() },
	}
}

// Bump инкрементирует счётчик и персистирует его.
func (c *Counter) Bump() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := c.read()
	s.TotalProcessed++
	s.UpdatedAt = c.now()

	return c.write(s)
}

// Summary возвращает текущее состояние счётчика.
// Отсутствующий или битый файл трактуется как нулевой счётчик.
func (c *Counter) Summary() Summary {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.read()
}

// read читает файл счётчика. Любая ошибка — нулевое значение.
func (c *Counter) read() Summary {
	data, err := os.ReadFile(c.path)
	if err != nil {
		return Summary{UpdatedAt: c.now()}
	}

	var s Summary
	if err := json.Unmarshal(data, &s); err != nil {
		return Summary{UpdatedAt: c.now()}
	}
	return s
}

// write атомарно записывает файл счётчика: temp → rename.
func (c *Counter) write(s Summary) error {
	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("ошибка сериализации счётчика: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(c.path), 0o750); err != nil {
		return fmt.Errorf("не удалось создать директорию данных: %w", err)
	}

	tmpPath := c.path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0o640); err != nil {
		return fmt.Errorf("ошибка записи счётчика: %w", err)
	}
	if err := os.Rename(tmpPath, c.path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("ошибка атомарного переименования: %w", err)
	}
	return nil
}
