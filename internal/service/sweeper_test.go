package service

import (
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/bigkaa/pdftools/internal/domain/model"
	"github.com/bigkaa/pdftools/internal/storage/artifact"
	"github.com/bigkaa/pdftools/internal/storage/jobindex"
)

// testLogger возвращает логгер, пишущий в никуда.
func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// newTestStores создаёт uploads, outputs и индекс во временных директориях.
func newTestStores(t *testing.T) (*artifact.Store, *artifact.Store, *jobindex.Index) {
	t.Helper()

	uploads, err := artifact.New(t.TempDir())
	if err != nil {
		t.Fatalf("Ошибка создания uploads store: %v", err)
	}
	outputs, err := artifact.New(t.TempDir())
	if err != nil {
		t.Fatalf("Ошибка создания outputs store: %v", err)
	}
	idx, err := jobindex.New(t.TempDir(), testLogger())
	if err != nil {
		t.Fatalf("Ошибка создания индекса: %v", err)
	}
	return uploads, outputs, idx
}

// putTestJob создаёт артефакт (и опционально исходник) и регистрирует задание.
func putTestJob(t *testing.T, uploads, outputs *artifact.Store, idx *jobindex.Index, expiresAt time.Time, withInput bool) *model.JobRecord {
	t.Helper()

	output, err := outputs.Save(strings.NewReader("%PDF-1.4 compressed"), "result.pdf")
	if err != nil {
		t.Fatalf("Ошибка сохранения артефакта: %v", err)
	}

	rec := &model.JobRecord{
		JobID:          model.NewJobID(model.KindCompress),
		Kind:           model.KindCompress,
		OutputPath:     output.StoragePath,
		OutputFilename: "result.pdf",
		ContentType:    "application/pdf",
		AccessToken:    model.NewAccessToken(),
		CreatedAt:      time.Now().UTC().Add(-time.Hour),
		ExpiresAt:      expiresAt,
		OutputBytes:    output.Size,
	}

	if withInput {
		input, err := uploads.Save(strings.NewReader("%PDF-1.4 original"), "original.pdf")
		if err != nil {
			t.Fatalf("Ошибка сохранения исходника: %v", err)
		}
		rec.InputPaths = []string{input.StoragePath}
		rec.InputBytes = input.Size
	}

	if err := idx.Put(rec); err != nil {
		t.Fatalf("Ошибка записи задания: %v", err)
	}
	return rec
}

func TestSweeper_ReapsExpiredJobWithInputs(t *testing.T) {
	uploads, outputs, idx := newTestStores(t)
	rec := putTestJob(t, uploads, outputs, idx, time.Now().UTC().Add(-time.Minute), true)

	sw := NewSweeper(uploads, outputs, idx, time.Minute, testLogger())
	result := sw.RunOnce()

	if result.ReapedCount != 1 {
		t.Errorf("ReapedCount: хотели 1, получили %d", result.ReapedCount)
	}
	if result.Errors != 0 {
		t.Errorf("Errors: хотели 0, получили %d", result.Errors)
	}
	if outputs.Exists(rec.OutputPath) {
		t.Error("Артефакт должен быть удалён")
	}
	if uploads.Exists(rec.InputPaths[0]) {
		t.Error("Исходник должен быть удалён")
	}
	if idx.Get(rec.JobID) != nil {
		t.Error("Запись индекса должна быть удалена")
	}
}

func TestSweeper_KeepsLiveJob(t *testing.T) {
	uploads, outputs, idx := newTestStores(t)
	rec := putTestJob(t, uploads, outputs, idx, time.Now().UTC().Add(time.Hour), true)

	sw := NewSweeper(uploads, outputs, idx, time.Minute, testLogger())
	result := sw.RunOnce()

	if result.ReapedCount != 0 {
		t.Errorf("ReapedCount: хотели 0, получили %d", result.ReapedCount)
	}
	if !outputs.Exists(rec.OutputPath) {
		t.Error("Живой артефакт не должен удаляться")
	}
	if idx.Get(rec.JobID) == nil {
		t.Error("Живая запись не должна удаляться")
	}
}

func TestSweeper_SecondRunIsNoop(t *testing.T) {
	uploads, outputs, idx := newTestStores(t)
	putTestJob(t, uploads, outputs, idx, time.Now().UTC().Add(-time.Minute), true)

	sw := NewSweeper(uploads, outputs, idx, time.Minute, testLogger())
	sw.RunOnce()
	result := sw.RunOnce()

	if result.ReapedCount != 0 {
		t.Errorf("Повторный проход: хотели 0 удалений, получили %d", result.ReapedCount)
	}
	if result.Errors != 0 {
		t.Errorf("Повторный проход: хотели 0 ошибок, получили %d", result.Errors)
	}
}

func TestSweeper_DanglingRecordIsReaped(t *testing.T) {
	uploads, outputs, idx := newTestStores(t)
	rec := putTestJob(t, uploads, outputs, idx, time.Now().UTC().Add(-time.Minute), false)

	// Артефакт исчез с диска вне очистки
	if err := outputs.Delete(rec.OutputPath); err != nil {
		t.Fatalf("Ошибка удаления артефакта: %v", err)
	}

	sw := NewSweeper(uploads, outputs, idx, time.Minute, testLogger())
	result := sw.RunOnce()

	// Удаление отсутствующего файла идемпотентно, запись вычищается
	if result.ReapedCount != 1 {
		t.Errorf("ReapedCount: хотели 1, получили %d", result.ReapedCount)
	}
	if result.Errors != 0 {
		t.Errorf("Errors: хотели 0, получили %d", result.Errors)
	}
	if idx.Get(rec.JobID) != nil {
		t.Error("Висячая запись должна быть удалена")
	}
}

func TestSweeper_InjectedClock(t *testing.T) {
	uploads, outputs, idx := newTestStores(t)
	rec := putTestJob(t, uploads, outputs, idx, time.Now().UTC().Add(time.Hour), false)

	sw := NewSweeper(uploads, outputs, idx, time.Minute, testLogger())
	// Переводим часы за границу TTL
	sw.now = func() time.Time { return time.Now().Add(2 * time.Hour) }

	result := sw.RunOnce()
	if result.ReapedCount != 1 {
		t.Errorf("ReapedCount: хотели 1, получили %d", result.ReapedCount)
	}
	if idx.Get(rec.JobID) != nil {
		t.Error("Задание должно считаться просроченным по инжектированным часам")
	}
}
