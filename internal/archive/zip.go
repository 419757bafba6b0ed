// Пакет archive — запись zip-архивов из готовых файлов на диске.
// Контракт: список {path, name} → zip-поток в io.Writer.
package archive

import (
	"archive/zip"
	"fmt"
	"io"
	"os"
)

// Entry — один файл архива.
type Entry struct {
	// Path — путь к файлу на диске
	Path string
	// Name — имя файла внутри архива
	Name string
}

// WriteZip пишет deflate-сжатый zip со всеми entries в w.
// Порядок файлов в архиве совпадает с порядком entries.
func WriteZip(w io.Writer, entries []Entry) error {
	zw := zip.NewWriter(w)

	for _, e := range entries {
		if err := addEntry(zw, e); err != nil {
			zw.Close()
			return err
		}
	}

	if err := zw.Close(); err != nil {
		return fmt.Errorf("ошибка финализации zip: %w", err)
	}
	return nil
}

// addEntry копирует один файл в архив.
func addEntry(zw *zip.Writer, e Entry) error {
	f, err := os.Open(e.Path)
	if err != nil {
		return fmt.Errorf("ошибка открытия %s: %w", e.Path, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("ошибка stat %s: %w", e.Path, err)
	}

	hdr, err := zip.FileInfoHeader(info)
	if err != nil {
		return fmt.Errorf("ошибка заголовка zip для %s: %w", e.Name, err)
	}
	hdr.Name = e.Name
	hdr.Method = zip.Deflate

	dst, err := zw.CreateHeader(hdr)
	if err != nil {
		return fmt.Errorf("ошибка создания записи zip %s: %w", e.Name, err)
	}

	if _, err := io.Copy(dst, f); err != nil {
		return fmt.Errorf("ошибка записи %s в zip: %w", e.Name, err)
	}
	return nil
}
