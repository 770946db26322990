package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jonathan/fastcapital/internal/model"
)

// PostgresOfferingRepo はPostgreSQLを使用した募集リポジトリ。
type PostgresOfferingRepo struct {
	db *sql.DB
}

// NewPostgresOfferingRepo はPostgresOfferingRepoを生成する。
func NewPostgresOfferingRepo(db *sql.DB) *PostgresOfferingRepo {
	return &PostgresOfferingRepo{db: db}
}

const offeringColumns = `id, business_id, shares_available, price_per_share, min_investment, start_date, expiration_date, featured, created_at, updated_at`

func scanOffering(scan func(dest ...any) error) (*model.Offering, error) {
	o := &model.Offering{}
	err := scan(
		&o.ID, &o.BusinessID, &o.SharesAvailable, &o.PricePerShare, &o.MinInvestment,
		&o.StartDate, &o.ExpirationDate, &o.Featured, &o.CreatedAt, &o.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return o, nil
}

// FindByID は指定IDの募集を取得する。見つからない場合はnilを返す。
func (r *PostgresOfferingRepo) FindByID(ctx context.Context, id string) (*model.Offering, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+offeringColumns+` FROM offerings WHERE id = $1`,
		id,
	)
	o, err := scanOffering(row.Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find offering: %w", err)
	}
	return o, nil
}

// List は全募集をID順で取得する。
func (r *PostgresOfferingRepo) List(ctx context.Context) ([]*model.Offering, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+offeringColumns+` FROM offerings ORDER BY id`,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list offerings: %w", err)
	}
	defer rows.Close()

	var offerings []*model.Offering
	for rows.Next() {
		o, err := scanOffering(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("failed to scan offering: %w", err)
		}
		offerings = append(offerings, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate offerings: %w", err)
	}
	return offerings, nil
}

// Create は募集を作成する。
func (r *PostgresOfferingRepo) Create(ctx context.Context, offering *model.Offering) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO offerings (id, business_id, shares_available, price_per_share, min_investment, start_date, expiration_date, featured, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		offering.ID, offering.BusinessID, offering.SharesAvailable, offering.PricePerShare,
		offering.MinInvestment, offering.StartDate, offering.ExpirationDate, offering.Featured,
		offering.CreatedAt, offering.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert offering: %w", err)
	}
	return nil
}

// compile-time interface check
var _ OfferingRepository = (*PostgresOfferingRepo)(nil)
