// Пакет reviews — агрегат пользовательских оценок в плоском JSON-файле.
// Хранятся только count/sum/распределение, сами отзывы не сохраняются.
package reviews

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Aggregate — содержимое файла агрегата оценок.
type Aggregate struct {
	// Count — количество оценок
	Count int64 `json:"count"`
	// Sum — сумма оценок
	Sum int64 `json:"sum"`
	// Distribution — количество оценок по значениям "1".."5"
	Distribution map[string]int64 `json:"distribution"`
	// UpdatedAt — время последней оценки (UTC)
	UpdatedAt time.Time `json:"updated_at"`
}

// Average возвращает среднюю оценку, округлённую до двух знаков.
func (a *Aggregate) Average() float64 {
	if a.Count == 0 {
		return 0
	}
	return math.Round(float64(a.Sum)/float64(a.Count)*100) / 100
}

// Store — персистентный агрегат оценок.
type Store struct {
	path string
	mu   sync.Mutex
	now  func() time.Time
}

// New создаёт хранилище агрегата в указанном файле.
func New(path string) *Store {
	return &Store{
		path: path,
		now:  func() time.Time { return time.Now().UTC() },
	}
}

// Add учитывает оценку rating (вызывающий код гарантирует 1..5)
// и персистирует агрегат.
func (s *Store) Add(rating int) (Aggregate, error) {
	if rating < 1 || rating > 5 {
		return Aggregate{}, fmt.Errorf("оценка %d вне диапазона 1..5", rating)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	agg := s.read()
	agg.Count++
	agg.Sum += int64(rating)
	agg.Distribution[fmt.Sprintf("%d", rating)]++
	agg.UpdatedAt = s.now()

	if err := s.write(agg); err != nil {
		return Aggregate{}, err
	}
	return agg, nil
}

// Summary возвращает текущий агрегат.
func (s *Store) Summary() Aggregate {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.read()
}

// read читает агрегат с диска. Отсутствующий или битый файл — пустой агрегат.
func (s *Store) read() Aggregate {
	empty := Aggregate{
		Distribution: map[string]int64{"1": 0, "2": 0, "3": 0, "4": 0, "5": 0},
		UpdatedAt:    s.now(),
	}

	data, err := os.ReadFile(s.path)
	if err != nil {
		return empty
	}

	var agg Aggregate
	if err := json.Unmarshal(data, &agg); err != nil {
		return empty
	}
	if agg.Distribution == nil {
		agg.Distribution = empty.Distribution
	}
	return agg
}

// write атомарно записывает агрегат: temp → rename.
func (s *Store) write(agg Aggregate) error {
	data, err := json.Marshal(agg)
	if err != nil {
		return fmt.Errorf("ошибка сериализации агрегата: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0o750); err != nil {
		return fmt.Errorf("не удалось создать директорию данных: %w", err)
	}

	tmpPath := s.path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0o640); err != nil {
		return fmt.Errorf("ошибка записи агрегата: %w", err)
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("ошибка атомарного переименования: %w", err)
	}
	return nil
}
