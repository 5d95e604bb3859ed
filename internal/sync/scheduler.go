package sync

import (
	"context"
	"log/slog"
	"time"
)

// SweepRunner はスイープ1回の実行インターフェース。
type SweepRunner interface {
	// RunSweep は全学生×受諾済み全課題を1回横断同期し、処理ペア数を返す。
	RunSweep(ctx context.Context) (int, error)
}

// Scheduler は定期スイープのスケジューリングを行う。
// 設定された間隔のティッカーでスイープを実行し、
// Webhookの取りこぼしを定期同期で回収する。
type Scheduler struct {
	runner SweepRunner
	logger *slog.Logger
}

// NewScheduler はSchedulerの新しいインスタンスを生成する。
func NewScheduler(runner SweepRunner, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		runner: runner,
		logger: logger,
	}
}

// Start は指定間隔のティッカーでスケジューラを起動する。
// コンテキストがキャンセルされるまで実行を継続する。
func (s *Scheduler) Start(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.logger.Info("スイープスケジューラを開始しました",
		slog.Duration("interval", interval),
	)

	// 起動直後に1回実行
	s.runOnce(ctx)

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("スイープスケジューラを停止しました")
			return
		case <-ticker.C:
			s.runOnce(ctx)
		}
	}
}

func (s *Scheduler) runOnce(ctx context.Context) {
	start := time.Now()

	count, err := s.runner.RunSweep(ctx)
	if err != nil {
		s.logger.Error("スイープの実行に失敗しました",
			slog.String("error", err.Error()),
		)
		return
	}

	s.logger.Info("スイープサイクルが完了しました",
		slog.Int("pair_count", count),
		slog.Float64("duration_ms", float64(time.Since(start).Milliseconds())),
	)
}
