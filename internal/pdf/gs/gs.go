// Пакет gs — запуск Ghostscript для сжатия PDF.
//
// Аргументы собираются из типизированной структуры Options фиксированным
// массивом, никакой конкатенации строк из пользовательского ввода.
// Процесс изолирован: жёсткий wall-clock таймаут, по истечении —
// принудительное завершение. stderr логируется на сервере и никогда
// не попадает в ответ клиенту.
package gs

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"time"
)

// Quality — пользовательский уровень сжатия.
type Quality string

const (
	// QualityLow — слабое сжатие, максимальное качество (/prepress)
	QualityLow Quality = "low"
	// QualityMedium — баланс качества и размера (/printer)
	QualityMedium Quality = "medium"
	// QualityHigh — сильное сжатие, экранное качество (/screen)
	QualityHigh Quality = "high"
)

// presets — отображение уровня сжатия в -dPDFSETTINGS Ghostscript.
var presets = map[Quality]string{
	QualityLow:    "/prepress",
	QualityMedium: "/printer",
	QualityHigh:   "/screen",
}

const (
	// DefaultDPI — разрешение downsample по умолчанию
	DefaultDPI = 150
	minDPI     = 36
	maxDPI     = 600
)

// ErrTimeout — процесс превышен по времени и был принудительно завершён.
var ErrTimeout = errors.New("ghostscript: превышен таймаут")

// Options — параметры сжатия.
type Options struct {
	// Quality — уровень сжатия (low, medium, high)
	Quality Quality
	// DownsampleDPI — целевое разрешение изображений
	DownsampleDPI int
	// RemoveMetadata — удалять DocInfo из результата
	RemoveMetadata bool
}

// Validate проверяет параметры и нормализует значения по умолчанию.
func (o *Options) Validate() error {
	if o.Quality == "" {
		o.Quality = QualityMedium
	}
	if _, ok := presets[o.Quality]; !ok {
		return fmt.Errorf("недопустимый уровень сжатия %q, допустимые: low, medium, high", o.Quality)
	}

	if o.DownsampleDPI == 0 {
		o.DownsampleDPI = DefaultDPI
	}
	if o.DownsampleDPI < minDPI || o.DownsampleDPI > maxDPI {
		return fmt.Errorf("downsample_dpi %d вне диапазона %d..%d", o.DownsampleDPI, minDPI, maxDPI)
	}

	return nil
}

// Preset возвращает значение -dPDFSETTINGS для уровня сжатия.
// Чистая функция, пригодная для тестирования отдельно от запуска.
func Preset(q Quality) string {
	if p, ok := presets[q]; ok {
		return p
	}
	return presets[QualityMedium]
}

// Args собирает фиксированный массив аргументов Ghostscript.
// input и output — абсолютные пути, опции уже провалидированы.
func Args(input, output string, o Options) []string {
	args := []string{
		"-q",
		"-dSAFER",
		"-sDEVICE=pdfwrite",
		fmt.Sprintf("-dPDFSETTINGS=%s", Preset(o.Quality)),
		"-dDetectDuplicateImages=true",
		"-dCompressFonts=true",
		"-dDownsampleColorImages=true",
		fmt.Sprintf("-dColorImageResolution=%d", o.DownsampleDPI),
		"-dDownsampleGrayImages=true",
		fmt.Sprintf("-dGrayImageResolution=%d", o.DownsampleDPI),
		"-dDownsampleMonoImages=true",
		fmt.Sprintf("-dMonoImageResolution=%d", o.DownsampleDPI),
		"-dNOPAUSE",
		"-dBATCH",
	}
	if o.RemoveMetadata {
		args = append(args, "-dDiscardDocInfo=true")
	}
	args = append(args, fmt.Sprintf("-sOutputFile=%s", output), input)
	return args
}

// Runner — запуск Ghostscript как изолированного подпроцесса.
type Runner struct {
	bin     string
	timeout time.Duration
	logger  *slog.Logger
}

// NewRunner создаёт Runner.
// bin — имя или путь бинарника Ghostscript, timeout — жёсткий лимит
// одного запуска.
func NewRunner(bin string, timeout time.Duration, logger *slog.Logger) *Runner {
	return &Runner{
		bin:     bin,
		timeout: timeout,
		logger:  logger.With(slog.String("component", "ghostscript")),
	}
}

// Compress сжимает input в output с указанными опциями.
//
// Возвращает ErrTimeout при превышении лимита времени (процесс убит),
// иначе ошибку с кодом выхода. Успех гарантирует существование output.
func (r *Runner) Compress(ctx context.Context, input, output string, o Options) error {
	runCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, r.bin, Args(input, output, o)...)

	// stderr ограничиваем, Ghostscript может быть многословным
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	start := time.Now()
	err := cmd.Run()
	duration := time.Since(start)

	if stderr.Len() > 0 {
		r.logger.Warn("Ghostscript stderr",
			slog.String("stderr", truncate(stderr.String(), 2048)),
		)
	}

	if runCtx.Err() == context.DeadlineExceeded {
		r.logger.Error("Ghostscript превысил таймаут, процесс завершён",
			slog.Duration("timeout", r.timeout),
		)
		return ErrTimeout
	}

	if err != nil {
		r.logger.Error("Ghostscript завершился с ошибкой",
			slog.String("error", err.Error()),
			slog.Duration("duration", duration),
		)
		return fmt.Errorf("ghostscript: %w", err)
	}

	// Код выхода 0, но без выходного файла — тоже ошибка обработки
	if _, statErr := os.Stat(output); statErr != nil {
		return fmt.Errorf("ghostscript: выходной файл не создан: %w", statErr)
	}

	r.logger.Debug("Сжатие завершено",
		slog.String("output", output),
		slog.Duration("duration", duration),
	)

	return nil
}

// truncate обрезает строку до limit байт.
func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	return s[:limit] + "..."
}
