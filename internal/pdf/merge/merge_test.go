package merge

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pdfcpu/pdfcpu/pkg/api"
)

// writeTestPDF собирает минимальный валидный PDF с заданным числом
// страниц и размером MediaBox. Смещения xref вычисляются по буферу,
// поэтому файл проходит валидацию pdfcpu без внешних фикстур.
func writeTestPDF(t *testing.T, path string, pages, width, height int) {
	t.Helper()

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
		writeObj(fmt.Sprintf("%d 0 obj\n<< /Type /Page /Parent 2 0 R /Resources << >> /MediaBox [0 0 %d %d] >>\nendobj\n",
			3+i, width, height))
	}

	xref := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n0000000000 65535 f \n", len(offsets)+1)
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n",
		len(offsets)+1, xref)

	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		t.Fatalf("Ошибка записи тестового pdf: %v", err)
	}
}

func TestProbe_PlainFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "plain.pdf")
	writeTestPDF(t, path, 2, 612, 792)

	got, err := Probe(Input{Path: path}, dir)
	if err != nil {
		t.Fatalf("Probe: %v", err)
	}
	if got != path {
		t.Errorf("Probe для обычного файла должен вернуть исходный путь: хотели %s, получили %s", path, got)
	}
}

func TestProbe_Garbage(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "garbage.pdf")
	if err := os.WriteFile(path, []byte("это не pdf"), 0o644); err != nil {
		t.Fatalf("Ошибка записи файла: %v", err)
	}

	_, err := Probe(Input{Path: path}, dir)
	if !errors.Is(err, ErrLocked) {
		t.Errorf("Хотели ErrLocked, получили %v", err)
	}
}

func TestMerge_PreservesOrder(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a.pdf")
	b := filepath.Join(dir, "b.pdf")
	out := filepath.Join(dir, "out.pdf")

	// Размеры страниц различаются, чтобы отличить исходники в результате
	writeTestPDF(t, a, 3, 612, 792)
	writeTestPDF(t, b, 2, 500, 700)

	if err := Merge([]string{a, b}, out); err != nil {
		t.Fatalf("Merge: %v", err)
	}

	n, err := PageCount(out)
	if err != nil {
		t.Fatalf("PageCount: %v", err)
	}
	if n != 5 {
		t.Errorf("Страниц в результате: хотели 5, получили %d", n)
	}

	dims, err := api.PageDimsFile(out)
	if err != nil {
		t.Fatalf("PageDimsFile: %v", err)
	}
	if len(dims) != 5 {
		t.Fatalf("Размеров страниц: хотели 5, получили %d", len(dims))
	}
	// Первые 3 страницы — из a, следующие 2 — из b, в порядке запроса
	for i := 0; i < 3; i++ {
		if int(dims[i].Width) != 612 {
			t.Errorf("Страница %d: хотели ширину 612 (файл a), получили %v", i, dims[i].Width)
		}
	}
	for i := 3; i < 5; i++ {
		if int(dims[i].Width) != 500 {
			t.Errorf("Страница %d: хотели ширину 500 (файл b), получили %v", i, dims[i].Width)
		}
	}
}

func TestMerge_TooFewFiles(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a.pdf")
	writeTestPDF(t, a, 1, 612, 792)

	if err := Merge([]string{a}, filepath.Join(dir, "out.pdf")); err == nil {
		t.Error("Ожидали ошибку для одного файла")
	}
}
