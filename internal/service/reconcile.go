// reconcile.go — стартовая сверка хранилищ с индексом заданий.
//
// После аварийного завершения на диске могут остаться:
//   - scratch-файлы (*.part) — незавершённые публикации артефактов;
//   - файлы в uploads/outputs, на которые не ссылается ни одно задание.
//
// Сверка выполняется один раз при старте, до приёма запросов, поэтому
// гонок с обработкой заданий нет.
package service

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/bigkaa/pdftools/internal/storage/artifact"
	"github.com/bigkaa/pdftools/internal/storage/jobindex"
)

// Prometheus метрики сверки
var (
	reconcileRemovedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pt_reconcile_removed_total",
		Help: "Количество файлов, удалённых стартовой сверкой, по типу",
	}, []string{"type"})

	reconcileDurationSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "pt_reconcile_duration_seconds",
		Help:    "Длительность стартовой сверки в секундах",
		Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10},
	})
)

// ReconcileResult — итог одного прохода сверки.
type ReconcileResult struct {
	// RemovedScratch — удалённые незавершённые scratch-файлы
	RemovedScratch int
	// RemovedOrphans — удалённые файлы без записи в индексе
	RemovedOrphans int
	// Errors — количество ошибок удаления
	Errors int
}

// Reconciler — стартовая сверка uploads/outputs с индексом заданий.
type Reconciler struct {
	uploads *artifact.Store
	outputs *artifact.Store
	idx     *jobindex.Index
	logger  *slog.Logger
}

// NewReconciler создаёт сверку хранилищ.
func NewReconciler(uploads, outputs *artifact.Store, idx *jobindex.Index, logger *slog.Logger) *Reconciler {
	return &Reconciler{
		uploads: uploads,
		outputs: outputs,
		idx:     idx,
		logger:  logger.With(slog.String("component", "reconcile")),
	}
}

// RunOnce выполняет один проход сверки.
// Ошибки удаления отдельных файлов логируются и не прерывают проход.
func (rc *Reconciler) RunOnce() *ReconcileResult {
	start := time.Now()
	result := &ReconcileResult{}

	// Множество путей, на которые ссылаются живые задания
	referenced := map[string]map[string]bool{
		"uploads": {},
		"outputs": {},
	}
	for _, rec := range rc.idx.List() {
		for _, path := range rec.InputPaths {
			referenced["uploads"][path] = true
		}
		referenced["outputs"][rec.OutputPath] = true
	}

	rc.sweepDir(rc.uploads, referenced["uploads"], result)
	rc.sweepDir(rc.outputs, referenced["outputs"], result)

	duration := time.Since(start)
	reconcileDurationSeconds.Observe(duration.Seconds())

	if result.RemovedScratch > 0 || result.RemovedOrphans > 0 || result.Errors > 0 {
		rc.logger.Info("Сверка хранилищ завершена",
			slog.Int("removed_scratch", result.RemovedScratch),
			slog.Int("removed_orphans", result.RemovedOrphans),
			slog.Int("errors", result.Errors),
			slog.Duration("duration", duration),
		)
	}

	return result
}

// sweepDir удаляет из директории хранилища scratch-файлы и файлы,
// отсутствующие в referenced.
func (rc *Reconciler) sweepDir(store *artifact.Store, referenced map[string]bool, result *ReconcileResult) {
	entries, err := os.ReadDir(store.Dir())
	if err != nil {
		rc.logger.Error("Ошибка чтения директории хранилища",
			slog.String("dir", store.Dir()),
			slog.String("error", err.Error()),
		)
		result.Errors++
		return
	}

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()

		switch {
		case strings.HasSuffix(name, ".part"):
			if err := os.Remove(filepath.Join(store.Dir(), name)); err != nil {
				rc.logger.Warn("Ошибка удаления scratch-файла",
					slog.String("name", name),
					slog.String("error", err.Error()),
				)
				result.Errors++
				continue
			}
			reconcileRemovedTotal.WithLabelValues("scratch").Inc()
			result.RemovedScratch++

		case !referenced[name]:
			if err := store.Delete(name); err != nil {
				rc.logger.Warn("Ошибка удаления файла-сироты",
					slog.String("name", name),
					slog.String("error", err.Error()),
				)
				result.Errors++
				continue
			}
			reconcileRemovedTotal.WithLabelValues("orphan").Inc()
			result.RemovedOrphans++
		}
	}
}
