package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/jonathan/fastcapital/internal/model"
)

// PostgresLedgerRepo はPostgreSQLを使用したファンディングレジャーの実装。
// 残数チェックと減算はSELECT ... FOR UPDATEの行ロック下で行い、
// 同一募集への同時購入リクエストをデータ層で直列化する。
type PostgresLedgerRepo struct {
	db *sql.DB
}

// NewPostgresLedgerRepo はPostgresLedgerRepoを生成する。
func NewPostgresLedgerRepo(db *sql.DB) *PostgresLedgerRepo {
	return &PostgresLedgerRepo{db: db}
}

// AllocateShares は指定株数を引き当て、pending状態の購入を作成する。
// 減算で残数がちょうどゼロになった場合、同一トランザクション内で
// その募集の全pending購入（今回作成分を含む）をcompletedに遷移させる。
// 全操作はコミットまで不可視であり、失敗時はすべてロールバックされる。
func (r *PostgresLedgerRepo) AllocateShares(ctx context.Context, offeringID, userID string, shares int64) (*model.Purchase, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	// 募集行をロックして残数を確定させる
	var available int64
	var pricePerShare float64
	err = tx.QueryRowContext(ctx,
		`SELECT shares_available, price_per_share
		 FROM offerings
		 WHERE id = $1
		 FOR UPDATE`,
		offeringID,
	).Scan(&available, &pricePerShare)
	if err == sql.ErrNoRows {
		return nil, model.NewOfferingNotFoundError(offeringID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to lock offering: %w", err)
	}

	if shares > available {
		return nil, model.NewInsufficientSupplyError(shares, available)
	}

	remaining := available - shares

	_, err = tx.ExecContext(ctx,
		`UPDATE offerings
		 SET shares_available = $2, updated_at = now()
		 WHERE id = $1`,
		offeringID, remaining,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to decrement shares: %w", err)
	}

	purchase := &model.Purchase{
		ID:              uuid.New().String(),
		OfferingID:      offeringID,
		UserID:          userID,
		SharesPurchased: shares,
		CostPerShare:    pricePerShare,
		PurchaseDate:    time.Now(),
		Status:          model.PurchaseStatusPending,
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO purchases (id, offering_id, user_id, shares_purchased, cost_per_share, purchase_date, status)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		purchase.ID, purchase.OfferingID, purchase.UserID,
		purchase.SharesPurchased, purchase.CostPerShare, purchase.PurchaseDate, purchase.Status,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to insert purchase: %w", err)
	}

	// 完売した募集はpending購入を一括でcompletedにする
	if remaining == 0 {
		_, err = tx.ExecContext(ctx,
			`UPDATE purchases
			 SET status = $2
			 WHERE offering_id = $1 AND status = $3`,
			offeringID, model.PurchaseStatusCompleted, model.PurchaseStatusPending,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to auto-complete purchases: %w", err)
		}
		purchase.Status = model.PurchaseStatusCompleted
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit allocation: %w", err)
	}

	return purchase, nil
}

// ExpirePending は募集期間が終了した募集のpending購入をexpiredに遷移させる。
func (r *PostgresLedgerRepo) ExpirePending(ctx context.Context, now time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx,
		`UPDATE purchases
		 SET status = $1
		 WHERE status = $2
		   AND offering_id IN (SELECT id FROM offerings WHERE expiration_date < $3)`,
		model.PurchaseStatusExpired, model.PurchaseStatusPending, now,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to expire pending purchases: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return affected, nil
}

// IsSerializationFailure はPostgreSQLの直列化失敗・デッドロック検出を判定する。
// SQLSTATE 40001 (serialization_failure) と 40P01 (deadlock_detected) が対象。
// レジャーサービスはこれらを有限回リトライする。
func IsSerializationFailure(err error) bool {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return false
	}
	return pqErr.Code == "40001" || pqErr.Code == "40P01"
}

// compile-time interface check
var _ LedgerRepository = (*PostgresLedgerRepo)(nil)
