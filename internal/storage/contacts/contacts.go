// Пакет contacts — список контактов, давших согласие на рассылку.
// Плоский JSON-массив, дозапись fire-and-forget из сервиса email.
package contacts

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Entry — одна запись согласия.
type Entry struct {
	FromName       string    `json:"from_name"`
	FromEmail      string    `json:"from_email"`
	ConsentNews    bool      `json:"consent_news"`
	ConsentProduct bool      `json:"consent_product"`
	CreatedAt      time.Time `json:"created_at"`
}

// Store — персистентный список контактов.
type Store struct {
	path string
	mu   sync.Mutex
	now  func() time.Time
}

// New создаёт хранилище контактов в указанном файле.
func New(path string) *Store {
	return &Store{
		path: path,
		now:  func() time.Time { return time.Now().UTC() },
	}
}

// Append дописывает запись в список. CreatedAt проставляется здесь.
func (s *Store) Append(e Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var list []Entry
	if data, err := os.ReadFile(s.path); err == nil {
		// Битый файл трактуем как пустой список
		_ = json.Unmarshal(data, &list)
	}

	e.CreatedAt = s.now()
	list = append(list, e)

	data, err := json.Marshal(list)
	if err != nil {
		return fmt.Errorf("ошибка сериализации контактов: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0o750); err != nil {
		return fmt.Errorf("не удалось создать директорию данных: %w", err)
	}

	tmpPath := s.path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0o640); err != nil {
		return fmt.Errorf("ошибка записи контактов: %w", err)
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("ошибка атомарного переименования: %w", err)
	}
	return nil
}

// List возвращает все сохранённые контакты.
// Отсутствующий или битый файл трактуется как пустой список.
func (s *Store) List() ([]Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("ошибка чтения контактов: %w", err)
	}

	var list []Entry
	_ = json.Unmarshal(data, &list)
	return list, nil
}
