// sweeper.go — фоновая очистка просроченных заданий.
//
// Каждые PT_SWEEP_INTERVAL просматривает индекс и для заданий с
// истёкшим TTL удаляет артефакт, исходные файлы и запись индекса —
// именно в этом порядке: упавшая на середине очистка оставит запись,
// и следующий проход доделает удаление (все операции идемпотентны).
//
// Запускается как горутина с периодическим тикером.
package service

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/bigkaa/pdftools/internal/storage/artifact"
	"github.com/bigkaa/pdftools/internal/storage/jobindex"
)

// Prometheus метрики очистки
var (
	// sweepRunsTotal — количество проходов очистки.
	sweepRunsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pt_sweep_runs_total",
		Help: "Общее количество проходов очистки",
	})

	// sweepJobsReapedTotal — количество удалённых просроченных заданий.
	sweepJobsReapedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pt_sweep_jobs_reaped_total",
		Help: "Общее количество заданий, удалённых очисткой",
	})

	// sweepErrorsTotal — количество ошибок при удалении.
	sweepErrorsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pt_sweep_errors_total",
		Help: "Общее количество ошибок очистки",
	})

	// sweepDurationSeconds — длительность одного прохода.
	sweepDurationSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "pt_sweep_duration_seconds",
		Help:    "Длительность прохода очистки в секундах",
		Buckets: []float64{0.001, 0.01, 0.05, 0.1, 0.5, 1, 5, 10},
	})
)

// SweepResult — результат одного прохода очистки.
type SweepResult struct {
	// ReapedCount — количество удалённых заданий
	ReapedCount int
	// Errors — количество ошибок при обработке заданий
	Errors int
	// Duration — длительность прохода
	Duration time.Duration
}

// Sweeper — сервис фоновой очистки просроченных заданий.
type Sweeper struct {
	uploads  *artifact.Store
	outputs  *artifact.Store
	idx      *jobindex.Index
	interval time.Duration
	logger   *slog.Logger
	now      func() time.Time

	mu     sync.Mutex // защита от параллельного запуска RunOnce
	cancel context.CancelFunc
}

// NewSweeper создаёт сервис очистки.
func NewSweeper(
	uploads *artifact.Store,
	outputs *artifact.Store,
	idx *jobindex.Index,
	interval time.Duration,
	logger *slog.Logger,
) *Sweeper {
	return &Sweeper{
		uploads:  uploads,
		outputs:  outputs,
		idx:      idx,
		interval: interval,
		logger:   logger.With(slog.String("component", "sweeper")),
		now:      time.Now,
	}
}

// Start запускает фоновую горутину очистки с периодическим тикером.
// Вызывается один раз при старте приложения.
func (s *Sweeper) Start(ctx context.Context) {
	sweepCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	go s.run(sweepCtx)

	s.logger.Info("Очистка запущена",
		slog.String("interval", s.interval.String()),
	)
}

// Stop останавливает фоновый процесс очистки.
func (s *Sweeper) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	s.logger.Info("Очистка остановлена")
}

// run — основной цикл фоновой горутины.
func (s *Sweeper) run(ctx context.Context) {
	// Первый проход — сразу после старта: подбирает задания,
	// просроченные за время, пока сервис не работал
	s.RunOnce()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.RunOnce()
		}
	}
}

// RunOnce выполняет один проход очистки.
// Потокобезопасен: mutex защищает от параллельного запуска.
func (s *Sweeper) RunOnce() *SweepResult {
	s.mu.Lock()
	defer s.mu.Unlock()

	start := time.Now()
	result := &SweepResult{}

	now := s.now().UTC()

	for _, rec := range s.idx.List() {
		if !rec.IsExpired(now) {
			continue
		}

		// Порядок: артефакт → исходники → запись индекса.
		// Ошибка на любом шаге оставляет запись для следующего прохода.
		if err := s.outputs.Delete(rec.OutputPath); err != nil {
			s.logger.Error("Ошибка удаления артефакта",
				slog.String("job_id", rec.JobID),
				slog.String("output_path", rec.OutputPath),
				slog.String("error", err.Error()),
			)
			result.Errors++
			continue
		}

		inputsOK := true
		for _, inputPath := range rec.InputPaths {
			if err := s.uploads.Delete(inputPath); err != nil {
				s.logger.Error("Ошибка удаления исходника",
					slog.String("job_id", rec.JobID),
					slog.String("input_path", inputPath),
					slog.String("error", err.Error()),
				)
				result.Errors++
				inputsOK = false
			}
		}
		if !inputsOK {
			continue
		}

		if err := s.idx.Delete(rec.JobID); err != nil {
			s.logger.Error("Ошибка удаления записи индекса",
				slog.String("job_id", rec.JobID),
				slog.String("error", err.Error()),
			)
			result.Errors++
			continue
		}

		s.logger.Debug("Просроченное задание удалено",
			slog.String("job_id", rec.JobID),
			slog.String("kind", string(rec.Kind)),
		)
		result.ReapedCount++
	}

	result.Duration = time.Since(start)

	// Обновляем Prometheus метрики
	sweepRunsTotal.Inc()
	sweepJobsReapedTotal.Add(float64(result.ReapedCount))
	sweepErrorsTotal.Add(float64(result.Errors))
	sweepDurationSeconds.Observe(result.Duration.Seconds())

	if result.ReapedCount > 0 || result.Errors > 0 {
		s.logger.Info("Проход очистки завершён",
			slog.Int("reaped", result.ReapedCount),
			slog.Int("errors", result.Errors),
			slog.Duration("duration", result.Duration),
		)
	}

	return result
}
