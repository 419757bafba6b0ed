// Пакет model — доменные модели PDF Tools.
// JobRecord — единая структура метаданных задания, используется
// как in-memory представление и как формат {job_id}.json на диске.
package model

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// JobKind — тип задания обработки.
type JobKind string

const (
	// KindCompress — сжатие одного PDF через Ghostscript
	KindCompress JobKind = "compress"
	// KindMerge — склейка нескольких PDF в один
	KindMerge JobKind = "merge"
	// KindZip — упаковка артефактов других заданий в zip-архив
	KindZip JobKind = "zip"
)

// JobRecord — метаданные задания. Соответствует содержимому {job_id}.json.
// Поля OutputPath и InputPaths не входят в API-ответ, они сохраняются
// для привязки записи к физическим файлам на диске.
type JobRecord struct {
	// JobID — уникальный идентификатор задания (префикс по типу + короткий UUID)
	JobID string `json:"job_id"`

	// Kind — тип задания
	Kind JobKind `json:"kind"`

	// InputPaths — исходные файлы, принадлежащие заданию (относительно
	// директории загрузок). Удаляются вместе с заданием при истечении TTL.
	// Пусто для merge/zip: их исходники не сохраняются.
	InputPaths []string `json:"input_paths,omitempty"`

	// OutputPath — имя артефакта на диске (относительно директории выдачи).
	// Не возвращается в API.
	OutputPath string `json:"output_path"`

	// OutputFilename — имя файла для Content-Disposition при скачивании
	OutputFilename string `json:"output_filename"`

	// ContentType — MIME-тип артефакта (application/pdf или application/zip)
	ContentType string `json:"content_type"`

	// AccessToken — секрет, обязательный вместе с job_id для скачивания.
	// Знание одного job_id доступа не даёт.
	AccessToken string `json:"access_token"`

	// CreatedAt — дата и время создания задания (UTC)
	CreatedAt time.Time `json:"created_at"`

	// ExpiresAt — момент истечения (created_at + TTL), фиксируется при
	// создании и никогда не продлевается
	ExpiresAt time.Time `json:"expires_at"`

	// InputBytes — суммарный размер исходных данных (для ответа API)
	InputBytes int64 `json:"input_bytes,omitempty"`

	// OutputBytes — размер артефакта
	OutputBytes int64 `json:"output_bytes"`
}

// IsExpired проверяет, истёк ли TTL задания.
func (r *JobRecord) IsExpired(now time.Time) bool {
	return now.After(r.ExpiresAt)
}

// DownloadURL возвращает относительный URL скачивания артефакта.
func (r *JobRecord) DownloadURL() string {
	return fmt.Sprintf("/v1/jobs/%s/download?token=%s", r.JobID, r.AccessToken)
}

// CompressionRatio возвращает долю сэкономленного объёма: 1 - out/in.
// При нулевом входе возвращает 0 (защита от деления на ноль).
func (r *JobRecord) CompressionRatio() float64 {
	if r.InputBytes <= 0 {
		return 0
	}
	return 1 - float64(r.OutputBytes)/float64(r.InputBytes)
}

// jobIDPrefixes — префиксы идентификаторов по типу задания.
// Формат унаследован от первой версии сервиса (cpdf_/mpdf_/zip_).
var jobIDPrefixes = map[JobKind]string{
	KindCompress: "cpdf",
	KindMerge:    "mpdf",
	KindZip:      "zip",
}

// NewJobID генерирует идентификатор задания: {prefix}_{8 hex символов UUID}.
func NewJobID(kind JobKind) string {
	prefix, ok := jobIDPrefixes[kind]
	if !ok {
		prefix = "job"
	}
	return fmt.Sprintf("%s_%s", prefix, uuid.New().String()[:8])
}

// NewAccessToken генерирует токен доступа: 128 бит из crypto/rand в hex.
// Энтропии достаточно, чтобы подбор за TTL был нереален.
func NewAccessToken() string {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		// crypto/rand на поддерживаемых платформах не возвращает ошибок
		panic(fmt.Sprintf("crypto/rand: %v", err))
	}
	return hex.EncodeToString(buf)
}
