// Пакет merge — склейка PDF через pdfcpu.
//
// Контракт: открыть каждый исходник (с паролем при необходимости),
// отбраковать зашифрованные/битые, склеить страницы без пересборки
// содержимого — порядок файлов и страниц сохраняется как есть.
package merge

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	pdfmodel "github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

// ErrLocked — исходник зашифрован или не читается как PDF.
var ErrLocked = errors.New("pdf зашифрован или повреждён")

// Input — один исходный файл склейки.
type Input struct {
	// Path — путь к файлу на диске
	Path string
	// Password — пользовательский пароль (пусто, если файл не защищён)
	Password string
}

// Probe проверяет, что файл открывается как PDF.
//
// Для защищённых паролем файлов создаёт расшифрованную копию в tmpDir и
// возвращает её путь; для обычных возвращает исходный путь. Любая ошибка
// открытия (шифрование без пароля, неверный пароль, повреждение)
// возвращается как ErrLocked — наружу детали pdfcpu не выносятся.
func Probe(in Input, tmpDir string) (string, error) {
	conf := pdfmodel.NewDefaultConfiguration()
	if in.Password != "" {
		conf.UserPW = in.Password
	}

	if err := api.ValidateFile(in.Path, conf); err != nil {
		return "", fmt.Errorf("%w: %s", ErrLocked, filepath.Base(in.Path))
	}

	if in.Password == "" {
		return in.Path, nil
	}

	// Склейка принимает файлы с разными паролями, pdfcpu — нет:
	// расшифровываем каждый защищённый исходник во временную копию.
	decrypted := filepath.Join(tmpDir, fmt.Sprintf("dec_%s.pdf", uuid.New().String()[:8]))
	if err := api.DecryptFile(in.Path, decrypted, conf); err != nil {
		os.Remove(decrypted)
		return "", fmt.Errorf("%w: %s", ErrLocked, filepath.Base(in.Path))
	}

	return decrypted, nil
}

// Merge склеивает файлы в outPath в заданном порядке.
// Страницы копируются без пересборки (lossless), повороты и порядок
// страниц каждого исходника сохраняются.
func Merge(paths []string, outPath string) error {
	if len(paths) < 2 {
		return fmt.Errorf("для склейки нужно минимум 2 файла, получено %d", len(paths))
	}

	if err := api.MergeCreateFile(paths, outPath, false, pdfmodel.NewDefaultConfiguration()); err != nil {
		return fmt.Errorf("ошибка склейки pdf: %w", err)
	}
	return nil
}

// PageCount возвращает количество страниц файла.
func PageCount(path string) (int, error) {
	n, err := api.PageCountFile(path)
	if err != nil {
		return 0, fmt.Errorf("ошибка подсчёта страниц %s: %w", path, err)
	}
	return n, nil
}
