package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jonathan/fastcapital/internal/model"
)

// PostgresPurchaseRepo はPostgreSQLを使用した購入リポジトリ（読み取り専用）。
// 購入の作成はPostgresLedgerRepo.AllocateSharesが行う。
type PostgresPurchaseRepo struct {
	db *sql.DB
}

// NewPostgresPurchaseRepo はPostgresPurchaseRepoを生成する。
func NewPostgresPurchaseRepo(db *sql.DB) *PostgresPurchaseRepo {
	return &PostgresPurchaseRepo{db: db}
}

// ListByOfferingID は指定募集の購入を作成順で取得する。
func (r *PostgresPurchaseRepo) ListByOfferingID(ctx context.Context, offeringID string) ([]*model.Purchase, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, offering_id, user_id, shares_purchased, cost_per_share, purchase_date, status
		 FROM purchases
		 WHERE offering_id = $1
		 ORDER BY purchase_date`,
		offeringID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list purchases: %w", err)
	}
	defer rows.Close()

	var purchases []*model.Purchase
	for rows.Next() {
		p := &model.Purchase{}
		if err := rows.Scan(&p.ID, &p.OfferingID, &p.UserID, &p.SharesPurchased, &p.CostPerShare, &p.PurchaseDate, &p.Status); err != nil {
			return nil, fmt.Errorf("failed to scan purchase: %w", err)
		}
		purchases = append(purchases, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate purchases: %w", err)
	}
	return purchases, nil
}

// ListByUserAndStatus は指定ユーザーの購入を事業者情報付きで取得する。
// purchases → offerings → businesses を結合する。
func (r *PostgresPurchaseRepo) ListByUserAndStatus(ctx context.Context, userID string, status model.PurchaseStatus) ([]*model.EnrichedPurchase, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT p.id, p.offering_id, p.user_id, p.shares_purchased, p.cost_per_share, p.purchase_date, p.status,
		        b.name, b.city, b.state, b.website_url
		 FROM purchases p
		 JOIN offerings o ON p.offering_id = o.id
		 JOIN businesses b ON o.business_id = b.id
		 WHERE p.user_id = $1 AND p.status = $2
		 ORDER BY p.purchase_date`,
		userID, status,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list enriched purchases: %w", err)
	}
	defer rows.Close()

	var purchases []*model.EnrichedPurchase
	for rows.Next() {
		p := &model.EnrichedPurchase{}
		err := rows.Scan(
			&p.ID, &p.OfferingID, &p.UserID, &p.SharesPurchased, &p.CostPerShare, &p.PurchaseDate, &p.Status,
			&p.BusinessName, &p.BusinessCity, &p.BusinessState, &p.BusinessWebsiteURL,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan enriched purchase: %w", err)
		}
		purchases = append(purchases, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate enriched purchases: %w", err)
	}
	return purchases, nil
}

// compile-time interface check
var _ PurchaseRepository = (*PostgresPurchaseRepo)(nil)
