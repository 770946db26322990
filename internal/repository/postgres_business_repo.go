package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jonathan/fastcapital/internal/model"
)

// PostgresBusinessRepo はPostgreSQLを使用した事業者リポジトリ。
type PostgresBusinessRepo struct {
	db *sql.DB
}

// NewPostgresBusinessRepo はPostgresBusinessRepoを生成する。
func NewPostgresBusinessRepo(db *sql.DB) *PostgresBusinessRepo {
	return &PostgresBusinessRepo{db: db}
}

const businessColumns = `id, owner_id, name, website_url, address1, address2, city, state, postal_code, created_at, updated_at`

func scanBusiness(scan func(dest ...any) error) (*model.Business, error) {
	b := &model.Business{}
	err := scan(
		&b.ID, &b.OwnerID, &b.Name, &b.WebsiteURL,
		&b.Address1, &b.Address2, &b.City, &b.State, &b.PostalCode,
		&b.CreatedAt, &b.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return b, nil
}

// FindByID は指定IDの事業者を取得する。見つからない場合はnilを返す。
func (r *PostgresBusinessRepo) FindByID(ctx context.Context, id string) (*model.Business, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+businessColumns+` FROM businesses WHERE id = $1`,
		id,
	)
	b, err := scanBusiness(row.Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find business: %w", err)
	}
	return b, nil
}

// List は全事業者を名前順で取得する。
func (r *PostgresBusinessRepo) List(ctx context.Context) ([]*model.Business, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+businessColumns+` FROM businesses ORDER BY name`,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list businesses: %w", err)
	}
	defer rows.Close()

	var businesses []*model.Business
	for rows.Next() {
		b, err := scanBusiness(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("failed to scan business: %w", err)
		}
		businesses = append(businesses, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate businesses: %w", err)
	}
	return businesses, nil
}

// Create は事業者を作成する。
func (r *PostgresBusinessRepo) Create(ctx context.Context, business *model.Business) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO businesses (id, owner_id, name, website_url, address1, address2, city, state, postal_code, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		business.ID, business.OwnerID, business.Name, business.WebsiteURL,
		business.Address1, business.Address2, business.City, business.State, business.PostalCode,
		business.CreatedAt, business.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert business: %w", err)
	}
	return nil
}

// Update は事業者情報を更新する。
func (r *PostgresBusinessRepo) Update(ctx context.Context, business *model.Business) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE businesses
		 SET name = $2, website_url = $3, address1 = $4, address2 = $5,
		     city = $6, state = $7, postal_code = $8, updated_at = now()
		 WHERE id = $1`,
		business.ID, business.Name, business.WebsiteURL,
		business.Address1, business.Address2, business.City, business.State, business.PostalCode,
	)
	if err != nil {
		return fmt.Errorf("failed to update business: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("business not found: %s", business.ID)
	}
	return nil
}

// compile-time interface check
var _ BusinessRepository = (*PostgresBusinessRepo)(nil)
