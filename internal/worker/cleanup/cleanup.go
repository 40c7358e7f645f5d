// Package cleanup はクライアントKVストアに残った古いトークンの自動削除ジョブを提供する。
// 複数のゲートウェイがPostgreSQLを共有する構成では、各インスタンスのセッション掃除とは別に
// ワーカーが一定間隔で実行する。
package cleanup

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// Purger は指定時刻より前に更新されたエントリを削除する。
// repository.KVRepository が実装する。
type Purger interface {
	DeleteUpdatedBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// Job は保持期間を超過したセッションデータの削除ジョブ。
// 冪等で、削除対象がない場合もエラーにならない。
type Job struct {
	store     Purger
	logger    *slog.Logger
	now       func() time.Time
	Retention time.Duration // 最終更新からの保持期間（デフォルト: 24時間）
}

// DefaultRetention はセッションTTLの既定値と同じ保持期間。
const DefaultRetention = 24 * time.Hour

// NewJob は新しいJobを生成する。
func NewJob(store Purger, retention time.Duration, logger *slog.Logger) *Job {
	if retention <= 0 {
		retention = DefaultRetention
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Job{
		store:     store,
		logger:    logger,
		now:       time.Now,
		Retention: retention,
	}
}

// Run は保持期間を超過したエントリを削除する。
func (j *Job) Run(ctx context.Context) error {
	start := j.now()
	cutoff := start.Add(-j.Retention)

	deleted, err := j.store.DeleteUpdatedBefore(ctx, cutoff)
	if err != nil {
		j.logger.Error("トークンクリーンアップジョブの実行に失敗しました",
			slog.String("error", err.Error()),
			slog.Duration("retention", j.Retention),
		)
		return fmt.Errorf("トークンクリーンアップの実行に失敗: %w", err)
	}

	j.logger.Info("トークンクリーンアップジョブが完了しました",
		slog.Int64("deleted_count", deleted),
		slog.Duration("retention", j.Retention),
		slog.Float64("duration_ms", float64(time.Since(start).Milliseconds())),
	)
	return nil
}

// Start はintervalごとにRunを実行する。起動直後に1回実行し、ctxがキャンセルされるまでブロックする。
func (j *Job) Start(ctx context.Context, interval time.Duration) {
	// 失敗はRun内でログ出力済み。次の周期で再試行する
	_ = j.Run(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			_ = j.Run(ctx)
		}
	}
}
