// Package cleanup は期限切れリフレッシュトークンの自動削除ジョブを提供する。
// ログインのたびにユーザーごとの行は上書きされるため、
// 削除対象はログインしなくなったユーザーの行だけになる。
package cleanup

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hitoshi/blogman/internal/metrics"
)

// ExpiredTokenPurger は期限切れリフレッシュトークンを削除する。
// repository.RefreshTokenRepositoryが満たす。
type ExpiredTokenPurger interface {
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

// CleanupJob は期限切れリフレッシュトークンの削除ジョブ。
// 冪等な削除処理なので、実行間隔に関わらず何度呼び出してもよい。
type CleanupJob struct {
	purger  ExpiredTokenPurger
	logger  *slog.Logger
	metrics metrics.MetricsCollector
	now     func() time.Time
}

// NewCleanupJob は新しいCleanupJobを生成する。
func NewCleanupJob(purger ExpiredTokenPurger, logger *slog.Logger, collector metrics.MetricsCollector) *CleanupJob {
	if collector == nil {
		collector = metrics.Nop{}
	}
	return &CleanupJob{
		purger:  purger,
		logger:  logger,
		metrics: collector,
		now:     time.Now,
	}
}

// Run はexpires_atが現在時刻以前のリフレッシュトークンを削除する。
// 削除対象がない場合でもエラーにならない。
func (j *CleanupJob) Run(ctx context.Context) error {
	start := time.Now()

	deletedCount, err := j.purger.DeleteExpired(ctx, j.now())
	if err != nil {
		j.logger.Error("refresh token cleanup failed",
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("期限切れリフレッシュトークンの削除に失敗: %w", err)
	}
	j.metrics.RecordRefreshTokensPurged(deletedCount)

	j.logger.Info("refresh token cleanup completed",
		slog.Int64("deleted_count", deletedCount),
		slog.Float64("duration_ms", float64(time.Since(start).Milliseconds())),
	)
	return nil
}

// Start は起動直後に1回実行し、その後はinterval毎にRunを繰り返す。
// ctxがキャンセルされるまでブロックする。
func (j *CleanupJob) Start(ctx context.Context, interval time.Duration) {
	j.runLogged(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			j.runLogged(ctx)
		}
	}
}

// runLogged はRunのエラーを呼び出し側に返さない。ログはRun内で出力済み。
func (j *CleanupJob) runLogged(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	_ = j.Run(ctx)
}
