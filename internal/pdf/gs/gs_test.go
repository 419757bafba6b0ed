package gs

import (
	"slices"
	"testing"
)

func TestPreset_Mapping(t *testing.T) {
	tests := []struct {
		quality Quality
		want    string
	}{
		{QualityLow, "/prepress"},
		{QualityMedium, "/printer"},
		{QualityHigh, "/screen"},
		{Quality("unknown"), "/printer"},
	}

	for _, tt := range tests {
		if got := Preset(tt.quality); got != tt.want {
			t.Errorf("Preset(%s): хотели %s, получили %s", tt.quality, tt.want, got)
		}
	}
}

func TestOptionsValidate_Defaults(t *testing.T) {
	o := Options{}
	if err := o.Validate(); err != nil {
		t.Fatalf("Validate пустых опций: %v", err)
	}
	if o.Quality != QualityMedium {
		t.Errorf("Quality по умолчанию: хотели %s, получили %s", QualityMedium, o.Quality)
	}
	if o.DownsampleDPI != DefaultDPI {
		t.Errorf("DownsampleDPI по умолчанию: хотели %d, получили %d", DefaultDPI, o.DownsampleDPI)
	}
}

func TestOptionsValidate_Rejects(t *testing.T) {
	tests := []struct {
		name string
		opts Options
	}{
		{"неизвестное качество", Options{Quality: "ultra"}},
		{"слишком маленький dpi", Options{DownsampleDPI: 10}},
		{"слишком большой dpi", Options{DownsampleDPI: 10000}},
		{"отрицательный dpi", Options{DownsampleDPI: -72}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o := tt.opts
			if err := o.Validate(); err == nil {
				t.Errorf("Validate(%+v) должен вернуть ошибку", tt.opts)
			}
		})
	}
}

func TestArgs_FixedShape(t *testing.T) {
	o := Options{Quality: QualityHigh, DownsampleDPI: 96}
	args := Args("/in/file.pdf", "/out/file.pdf", o)

	if !slices.Contains(args, "-dPDFSETTINGS=/screen") {
		t.Error("Нет -dPDFSETTINGS=/screen")
	}
	if !slices.Contains(args, "-dColorImageResolution=96") {
		t.Error("Нет -dColorImageResolution=96")
	}
	if slices.Contains(args, "-dDiscardDocInfo=true") {
		t.Error("-dDiscardDocInfo без RemoveMetadata")
	}

	// Входной файл — последний аргумент, выходной перед ним
	if args[len(args)-1] != "/in/file.pdf" {
		t.Errorf("Последний аргумент: хотели входной файл, получили %s", args[len(args)-1])
	}
	if args[len(args)-2] != "-sOutputFile=/out/file.pdf" {
		t.Errorf("Предпоследний аргумент: хотели -sOutputFile, получили %s", args[len(args)-2])
	}
}

func TestArgs_RemoveMetadata(t *testing.T) {
	o := Options{Quality: QualityMedium, DownsampleDPI: 150, RemoveMetadata: true}
	args := Args("in.pdf", "out.pdf", o)

	if !slices.Contains(args, "-dDiscardDocInfo=true") {
		t.Error("Нет -dDiscardDocInfo=true при RemoveMetadata")
	}
}
