// Package expire は期限切れ募集のpending購入をexpiredに遷移させるジョブを提供する。
// 募集終了時点で完売に至らなかった購入を定期バッチで失効させる。
// 失効しても募集の残り株式数は復元しない。
package expire

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jonathan/fastcapital/internal/repository"
)

// timeNow はテストで時刻を固定するためのフック。
var timeNow = time.Now

// ExpireJob は期限切れ募集のpending購入を失効させるジョブ。
// 定期実行のバッチジョブとして設計されており、冪等な遷移処理を保証する。
type ExpireJob struct {
	ledgerRepo repository.LedgerRepository
	logger     *slog.Logger
}

// NewExpireJob は新しいExpireJobを生成する。
func NewExpireJob(ledgerRepo repository.LedgerRepository, logger *slog.Logger) *ExpireJob {
	return &ExpireJob{
		ledgerRepo: ledgerRepo,
		logger:     logger,
	}
}

// Run は募集期間が終了した募集のpending購入をexpiredに遷移させる。
// completedの購入には触れない。
// 冪等: 対象がない場合でもエラーにならない。
func (j *ExpireJob) Run(ctx context.Context) error {
	start := timeNow()

	expiredCount, err := j.ledgerRepo.ExpirePending(ctx, start)
	if err != nil {
		j.logger.Error("購入失効ジョブの実行に失敗しました",
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("購入失効の実行に失敗: %w", err)
	}

	duration := time.Since(start)
	j.logger.Info("購入失効ジョブが完了しました",
		slog.Int64("expired_count", expiredCount),
		slog.Float64("duration_ms", float64(duration.Milliseconds())),
	)

	return nil
}

// RunLoop は指定間隔でRunを繰り返し実行する。
// 起動直後に1回実行し、以降はtickerに従う。ctxのキャンセルで停止する。
func (j *ExpireJob) RunLoop(ctx context.Context, interval time.Duration) {
	if err := j.Run(ctx); err != nil {
		j.logger.Error("初回の購入失効ジョブに失敗しました", slog.String("error", err.Error()))
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			j.logger.Info("購入失効ワーカーを停止します")
			return
		case <-ticker.C:
			if err := j.Run(ctx); err != nil {
				j.logger.Error("購入失効ジョブに失敗しました", slog.String("error", err.Error()))
			}
		}
	}
}
