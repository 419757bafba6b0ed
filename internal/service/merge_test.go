package service

import (
	"bytes"
	"fmt"
	"net/http"
	"path/filepath"
	"strings"
	"testing"
	"time"

	apierrors "github.com/bigkaa/pdftools/internal/api/errors"
	"github.com/bigkaa/pdftools/internal/domain/model"
	"github.com/bigkaa/pdftools/internal/storage/stats"
)

// newMergeService собирает сервис склейки поверх временных директорий.
func newMergeService(t *testing.T) *MergeService {
	t.Helper()

	uploads, outputs, idx := newTestStores(t)
	counter := stats.New(filepath.Join(t.TempDir(), "stats.json"))
	return NewMergeService(uploads, outputs, idx, counter, time.Hour, testLogger())
}

// saveSource кладёт содержимое в uploads и возвращает MergeSource.
func saveSource(t *testing.T, svc *MergeService, content, filename string) MergeSource {
	t.Helper()

	res, err := svc.uploads.Save(strings.NewReader(content), filename)
	if err != nil {
		t.Fatalf("Ошибка сохранения исходника: %v", err)
	}
	return MergeSource{
		StoragePath: res.StoragePath,
		Filename:    filename,
		Size:        res.Size,
	}
}

// testPDFBytes собирает минимальный валидный PDF с заданным числом
// страниц: смещения xref вычисляются по буферу.
func testPDFBytes(pages int) []byte {
	var buf bytes.Buffer
	var offsets []int

	buf.WriteString("%PDF-1.4\n")
	writeObj := func(body string) {
		offsets = append(offsets, buf.Len())
		buf.WriteString(body)
	}

	kids := make([]string, pages)
	for i := range kids {
		kids[i] = fmt.Sprintf("%d 0 R", 3+i)
	}
	writeObj("1 0 obj\n<< /Type /Catalog /Pages 2 0 R >>\nendobj\n")
	writeObj(fmt.Sprintf("2 0 obj\n<< /Type /Pages /Kids [%s] /Count %d >>\nendobj\n",
		strings.Join(kids, " "), pages))
	for i := 0; i < pages; i++ {
		writeObj(fmt.Sprintf("%d 0 obj\n<< /Type /Page /Parent 2 0 R /Resources << >> /MediaBox [0 0 612 792] >>\nendobj\n", 3+i))
	}

	xref := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n0000000000 65535 f \n", len(offsets)+1)
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n",
		len(offsets)+1, xref)

	return buf.Bytes()
}

// savePDFSource кладёт сгенерированный PDF в uploads и возвращает MergeSource.
func savePDFSource(t *testing.T, svc *MergeService, pages int, filename string) MergeSource {
	t.Helper()

	res, err := svc.uploads.Save(bytes.NewReader(testPDFBytes(pages)), filename)
	if err != nil {
		t.Fatalf("Ошибка сохранения исходника: %v", err)
	}
	return MergeSource{
		StoragePath: res.StoragePath,
		Filename:    filename,
		Size:        res.Size,
	}
}

func TestMerge_Success(t *testing.T) {
	svc := newMergeService(t)

	a := savePDFSource(t, svc, 3, "a.pdf")
	b := savePDFSource(t, svc, 2, "b.pdf")

	result, serr := svc.Merge([]MergeSource{a, b}, "combined", false)
	if serr != nil {
		t.Fatalf("Merge: %v", serr)
	}

	if result.MergedFiles != 2 {
		t.Errorf("MergedFiles: хотели 2, получили %d", result.MergedFiles)
	}
	if len(result.SkippedFiles) != 0 {
		t.Errorf("SkippedFiles: хотели 0, получили %v", result.SkippedFiles)
	}
	if result.Output.Pages != 5 {
		t.Errorf("Pages: хотели 5, получили %d", result.Output.Pages)
	}
	if result.Output.Filename != "combined.pdf" {
		t.Errorf("Filename: хотели combined.pdf, получили %s", result.Output.Filename)
	}

	// Задание зарегистрировано и указывает на существующий артефакт
	rec := svc.idx.Get(result.JobID)
	if rec == nil {
		t.Fatal("Запись задания не найдена в индексе")
	}
	if rec.Kind != model.KindMerge {
		t.Errorf("Kind: хотели %s, получили %s", model.KindMerge, rec.Kind)
	}
	if !svc.outputs.Exists(rec.OutputPath) {
		t.Error("Артефакт склейки не существует после успеха")
	}

	// Исходные копии удаляются и при успехе
	if svc.uploads.Exists(a.StoragePath) || svc.uploads.Exists(b.StoragePath) {
		t.Error("Исходники склейки должны быть удалены после успеха")
	}
}

func TestMerge_TooFewSources(t *testing.T) {
	svc := newMergeService(t)

	tests := []struct {
		name    string
		sources []MergeSource
	}{
		{"без файлов", nil},
		{"один файл", []MergeSource{saveSource(t, svc, "%PDF-1.4 x", "a.pdf")}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, serr := svc.Merge(tt.sources, "", false)
			if serr == nil {
				t.Fatal("Ожидали ошибку для недостаточного количества файлов")
			}
			if serr.StatusCode != http.StatusUnprocessableEntity {
				t.Errorf("StatusCode: хотели 422, получили %d", serr.StatusCode)
			}
			if serr.Code != apierrors.CodeInvalidRequest {
				t.Errorf("Code: хотели %s, получили %s", apierrors.CodeInvalidRequest, serr.Code)
			}
		})
	}
}

func TestMerge_AllSourcesUnreadable(t *testing.T) {
	svc := newMergeService(t)

	// Не-PDF содержимое не проходит проверку pdfcpu
	a := saveSource(t, svc, "not a pdf at all", "a.pdf")
	b := saveSource(t, svc, "also not a pdf", "b.pdf")

	_, serr := svc.Merge([]MergeSource{a, b}, "", true)
	if serr == nil {
		t.Fatal("Ожидали ошибку, когда ни один исходник не открывается")
	}
	if serr.StatusCode != http.StatusUnprocessableEntity {
		t.Errorf("StatusCode: хотели 422, получили %d", serr.StatusCode)
	}
	if serr.Code != apierrors.CodeInvalidOrEncryptedPDF {
		t.Errorf("Code: хотели %s, получили %s", apierrors.CodeInvalidOrEncryptedPDF, serr.Code)
	}

	// Исходные копии удаляются при любом исходе
	if svc.uploads.Exists(a.StoragePath) || svc.uploads.Exists(b.StoragePath) {
		t.Error("Исходники склейки должны быть удалены после отказа")
	}
}

func TestMerge_UnreadableRejectsWholeRequest(t *testing.T) {
	svc := newMergeService(t)

	// Без skip_locked первый нечитаемый исходник отклоняет весь запрос
	a := saveSource(t, svc, "garbage", "locked.pdf")
	b := saveSource(t, svc, "more garbage", "b.pdf")

	_, serr := svc.Merge([]MergeSource{a, b}, "", false)
	if serr == nil {
		t.Fatal("Ожидали ошибку без skip_locked")
	}
	if serr.StatusCode != http.StatusUnprocessableEntity {
		t.Errorf("StatusCode: хотели 422, получили %d", serr.StatusCode)
	}
	if serr.Code != apierrors.CodeInvalidOrEncryptedPDF {
		t.Errorf("Code: хотели %s, получили %s", apierrors.CodeInvalidOrEncryptedPDF, serr.Code)
	}
	if !strings.Contains(serr.Message, "locked.pdf") {
		t.Errorf("Сообщение должно называть файл: %q", serr.Message)
	}
}

func TestMerge_SourcesDeletedOnRejection(t *testing.T) {
	svc := newMergeService(t)

	src := saveSource(t, svc, "%PDF-1.4 solo", "solo.pdf")

	_, serr := svc.Merge([]MergeSource{src}, "", false)
	if serr == nil {
		t.Fatal("Ожидали ошибку для одного файла")
	}
	if svc.uploads.Exists(src.StoragePath) {
		t.Error("Исходник должен быть удалён даже при отказе по количеству")
	}
}
