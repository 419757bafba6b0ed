// Пакет jobindex — индекс заданий обработки.
//
// Источник истины — по одному файлу {job_id}.json в директории индекса,
// каждый пишется атомарно: temp → fsync → rename. Частично записанная
// запись никогда не видна читателям. Поверх диска — потокобезопасная
// in-memory карта, она строится при старте (BuildFromDir) и обновляется
// синхронно при Put/Delete.
//
// Записи независимы: никаких транзакций между записями не требуется.
package jobindex

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/bigkaa/pdftools/internal/domain/model"
)

// recordSuffix — суффикс файла записи задания.
const recordSuffix = ".json"

// maxRecordSize — максимальный допустимый размер записи (8 КБ).
// Ограничение гарантирует атомарность записи.
const maxRecordSize = 8192

// Index — индекс заданий: диск + потокобезопасная in-memory карта.
type Index struct {
	dir    string
	mu     sync.RWMutex
	jobs   map[string]*model.JobRecord // job_id → record
	logger *slog.Logger
}

// New создаёт индекс для указанной директории. Создаёт директорию,
// если она не существует. Для заполнения карты вызовите BuildFromDir.
func New(dir string, logger *slog.Logger) (*Index, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("не удалось создать директорию индекса %s: %w", dir, err)
	}

	return &Index{
		dir:    dir,
		jobs:   make(map[string]*model.JobRecord),
		logger: logger.With(slog.String("component", "jobindex")),
	}, nil
}

// BuildFromDir строит карту из {job_id}.json файлов на диске.
// Вызывается при старте сервера. Невалидные записи пропускаются с
// предупреждением — они будут удалены при очистке их артефактов.
func (idx *Index) BuildFromDir() error {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	matches, err := filepath.Glob(filepath.Join(idx.dir, "*"+recordSuffix))
	if err != nil {
		return fmt.Errorf("ошибка сканирования директории %s: %w", idx.dir, err)
	}

	idx.jobs = make(map[string]*model.JobRecord, len(matches))
	for _, path := range matches {
		rec, err := readRecord(path)
		if err != nil {
			idx.logger.Warn("Невалидная запись индекса пропущена",
				slog.String("path", path),
				slog.String("error", err.Error()),
			)
			continue
		}
		idx.jobs[rec.JobID] = rec
	}

	idx.logger.Info("Индекс заданий построен",
		slog.Int("jobs", len(idx.jobs)),
		slog.String("dir", idx.dir),
	)

	return nil
}

// Put атомарно персистирует запись на диск и добавляет её в карту.
// Запись с существующим job_id перезаписывается.
func (idx *Index) Put(rec *model.JobRecord) error {
	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return fmt.Errorf("ошибка сериализации записи %s: %w", rec.JobID, err)
	}

	// Проверка размера для гарантии атомарности
	if len(data) > maxRecordSize {
		return fmt.Errorf("размер записи %s (%d байт) превышает максимум (%d байт)",
			rec.JobID, len(data), maxRecordSize)
	}

	path := idx.recordPath(rec.JobID)
	tmpPath := path + ".tmp"

	f, err := os.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("ошибка создания временного файла: %w", err)
	}

	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("ошибка записи: %w", err)
	}

	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("ошибка fsync: %w", err)
	}

	if err := f.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("ошибка закрытия файла: %w", err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("ошибка атомарного переименования: %w", err)
	}

	idx.mu.Lock()
	copied := *rec
	idx.jobs[rec.JobID] = &copied
	idx.mu.Unlock()

	return nil
}

// Get возвращает запись задания по job_id.
// Возвращает nil, если задание не найдено.
func (idx *Index) Get(jobID string) *model.JobRecord {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	rec, ok := idx.jobs[jobID]
	if !ok {
		return nil
	}

	// Возвращаем копию для потокобезопасности
	copied := *rec
	return &copied
}

// Delete удаляет запись с диска и из карты.
// Идемпотентен: удаление несуществующей записи — успех.
func (idx *Index) Delete(jobID string) error {
	err := os.Remove(idx.recordPath(jobID))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("ошибка удаления записи %s: %w", jobID, err)
	}

	idx.mu.Lock()
	delete(idx.jobs, jobID)
	idx.mu.Unlock()

	return nil
}

// List возвращает копии всех записей. Используется Sweeper-ом:
// пакетное чтение под RLock, писатели не блокируются надолго.
func (idx *Index) List() []*model.JobRecord {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	result := make([]*model.JobRecord, 0, len(idx.jobs))
	for _, rec := range idx.jobs {
		copied := *rec
		result = append(result, &copied)
	}
	return result
}

// Count возвращает количество заданий в индексе.
func (idx *Index) Count() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return len(idx.jobs)
}

// recordPath возвращает путь к файлу записи для job_id.
// Идентификатор нормализуется: сегменты пути в job_id не позволяют
// выйти за пределы директории индекса.
func (idx *Index) recordPath(jobID string) string {
	safe := strings.ReplaceAll(jobID, string(os.PathSeparator), "_")
	safe = strings.ReplaceAll(safe, "..", "_")
	return filepath.Join(idx.dir, safe+recordSuffix)
}

// readRecord читает и десериализует запись из файла.
func readRecord(path string) (*model.JobRecord, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения записи %s: %w", path, err)
	}

	var rec model.JobRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("ошибка десериализации записи %s: %w", path, err)
	}
	if rec.JobID == "" {
		return nil, fmt.Errorf("запись %s без job_id", path)
	}

	return &rec, nil
}
