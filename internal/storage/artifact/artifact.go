// Пакет artifact — операции с физическими файлами на диске.
// Обеспечивает атомарную запись (temp → fsync → rename), чтение,
// идемпотентное удаление и выделение scratch-путей для внешних
// процессов (Ghostscript пишет результат сразу внутрь хранилища,
// публикация выполняется отдельным rename).
package artifact

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Store — управление физическими файлами одной директории хранения.
// Один экземпляр на директорию: загрузки и артефакты — разные Store.
type Store struct {
	// dir — корневая директория хранения файлов
	dir string
}

// SaveResult — результат сохранения файла на диск.
type SaveResult struct {
	// StoragePath — относительный путь файла в dir
	StoragePath string
	// FullPath — абсолютный путь файла на диске
	FullPath string
	// Size — размер записанных данных в байтах
	Size int64
}

// New создаёт Store. Создаёт директорию, если она не существует.
func New(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("не удалось создать директорию данных %s: %w", dir, err)
	}
	return &Store{dir: dir}, nil
}

// Save записывает данные из reader на диск под сгенерированным именем.
// Формат имени: {name}_{timestamp}_{uuid}.{ext}
//
// Паттерн: temp файл → запись → fsync → atomic rename.
// При ошибке temp файл удаляется.
func (s *Store) Save(reader io.Reader, originalFilename string) (*SaveResult, error) {
	return s.SaveFunc(originalFilename, func(w io.Writer) error {
		_, err := io.Copy(w, reader)
		return err
	})
}

// SaveFunc записывает файл через callback, получающий io.Writer.
// Используется, когда содержимое формируется на лету (zip-архив).
// Гарантии атомарности те же, что у Save.
func (s *Store) SaveFunc(originalFilename string, write func(io.Writer) error) (*SaveResult, error) {
	storageName := generateStorageName(originalFilename)
	fullPath := filepath.Join(s.dir, storageName)
	tmpPath := fullPath + ".tmp"

	f, err := os.Create(tmpPath)
	if err != nil {
		return nil, fmt.Errorf("ошибка создания временного файла: %w", err)
	}

	if err := write(f); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return nil, fmt.Errorf("ошибка записи данных: %w", err)
	}

	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return nil, fmt.Errorf("ошибка fsync: %w", err)
	}

	if err := f.Close(); err != nil {
		os.Remove(tmpPath)
		return nil, fmt.Errorf("ошибка закрытия файла: %w", err)
	}

	if err := os.Rename(tmpPath, fullPath); err != nil {
		os.Remove(tmpPath)
		return nil, fmt.Errorf("ошибка атомарного переименования: %w", err)
	}

	info, err := os.Stat(fullPath)
	if err != nil {
		return nil, fmt.Errorf("ошибка stat после записи: %w", err)
	}

	return &SaveResult{
		StoragePath: storageName,
		FullPath:    fullPath,
		Size:        info.Size(),
	}, nil
}

// ScratchPath выделяет путь для записи внешним процессом.
// Файл с суффиксом .part не считается опубликованным артефактом:
// он становится видимым только после Publish.
func (s *Store) ScratchPath(originalFilename string) string {
	return filepath.Join(s.dir, generateStorageName(originalFilename)+".part")
}

// Publish атомарно переименовывает scratch-файл в финальное имя.
// scratchPath должен находиться внутри dir (результат ScratchPath).
// Содержимое сбрасывается на диск до переименования: писал файл
// внешний процесс, и fsync за него никто не делал.
func (s *Store) Publish(scratchPath string) (*SaveResult, error) {
	fullPath := strings.TrimSuffix(scratchPath, ".part")
	if fullPath == scratchPath {
		return nil, fmt.Errorf("некорректный scratch-путь: %s", scratchPath)
	}

	f, err := os.OpenFile(scratchPath, os.O_RDWR, 0)
	if err != nil {
		return nil, fmt.Errorf("scratch-файл недоступен %s: %w", scratchPath, err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("scratch-файл недоступен %s: %w", scratchPath, err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return nil, fmt.Errorf("ошибка fsync scratch-файла %s: %w", scratchPath, err)
	}
	if err := f.Close(); err != nil {
		return nil, fmt.Errorf("ошибка закрытия scratch-файла %s: %w", scratchPath, err)
	}

	if err := os.Rename(scratchPath, fullPath); err != nil {
		return nil, fmt.Errorf("ошибка публикации %s: %w", scratchPath, err)
	}

	return &SaveResult{
		StoragePath: filepath.Base(fullPath),
		FullPath:    fullPath,
		Size:        info.Size(),
	}, nil
}

// Discard удаляет scratch-файл. Возвращает nil, если файла уже нет.
func (s *Store) Discard(scratchPath string) error {
	err := os.Remove(scratchPath)
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("ошибка удаления scratch-файла %s: %w", scratchPath, err)
	}
	return nil
}

// Open открывает файл для чтения и возвращает *os.File.
// storagePath — относительный путь файла в dir.
// Вызывающий код обязан закрыть файл.
func (s *Store) Open(storagePath string) (*os.File, error) {
	fullPath := filepath.Join(s.dir, storagePath)

	f, err := os.Open(fullPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("файл не найден: %s", storagePath)
		}
		return nil, fmt.Errorf("ошибка открытия файла %s: %w", storagePath, err)
	}

	return f, nil
}

// FullPath возвращает абсолютный путь к файлу на диске.
func (s *Store) FullPath(storagePath string) string {
	return filepath.Join(s.dir, storagePath)
}

// Delete удаляет файл с диска.
// Возвращает nil, если файл уже не существует (идемпотентно).
func (s *Store) Delete(storagePath string) error {
	err := os.Remove(filepath.Join(s.dir, storagePath))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("ошибка удаления файла %s: %w", storagePath, err)
	}
	return nil
}

// Exists проверяет существование файла на диске.
func (s *Store) Exists(storagePath string) bool {
	_, err := os.Stat(filepath.Join(s.dir, storagePath))
	return err == nil
}

// Size возвращает размер файла на диске.
func (s *Store) Size(storagePath string) (int64, error) {
	info, err := os.Stat(filepath.Join(s.dir, storagePath))
	if err != nil {
		return 0, fmt.Errorf("ошибка получения информации о файле %s: %w", storagePath, err)
	}
	return info.Size(), nil
}

// Dir возвращает путь к директории данных.
func (s *Store) Dir() string {
	return s.dir
}

// generateStorageName генерирует имя файла для хранения на диске.
// Формат: {name}_{timestamp}_{uuid}.{ext}
// Пример: report_20260831150405_a1b2c3d4.pdf
func generateStorageName(originalFilename string) string {
	ext := strings.ToLower(filepath.Ext(originalFilename))
	name := strings.TrimSuffix(originalFilename, filepath.Ext(originalFilename))

	name = sanitize(name)

	// Ограничиваем длину имени для предотвращения проблем с FS
	if len(name) > 50 {
		name = name[:50]
	}

	ts := time.Now().UTC().Format("20060102150405")
	uid := uuid.New().String()[:8]

	if ext != "" {
		return fmt.Sprintf("%s_%s_%s%s", name, ts, uid, ext)
	}
	return fmt.Sprintf("%s_%s_%s", name, ts, uid)
}

// sanitize убирает небезопасные символы из строки для использования в
// имени файла. Оставляет только буквы, цифры, дефис и подчёркивание.
func sanitize(s string) string {
	var result strings.Builder
	for _, r := range s {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') ||
			(r >= '0' && r <= '9') || r == '-' || r == '_' ||
			(r >= 0x0400 && r <= 0x04FF) { // Кириллица
			result.WriteRune(r)
		}
	}
	if result.Len() == 0 {
		return "file"
	}
	return result.String()
}
