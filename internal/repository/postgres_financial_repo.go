package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jonathan/fastcapital/internal/model"
)

// PostgresFinancialRepo はPostgreSQLを使用した財務レコードリポジトリ。
type PostgresFinancialRepo struct {
	db *sql.DB
}

// NewPostgresFinancialRepo はPostgresFinancialRepoを生成する。
func NewPostgresFinancialRepo(db *sql.DB) *PostgresFinancialRepo {
	return &PostgresFinancialRepo{db: db}
}

// ListByBusinessID は指定事業者の財務レコードを日付順で取得する。
func (r *PostgresFinancialRepo) ListByBusinessID(ctx context.Context, businessID string) ([]*model.FinancialRecord, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, business_id, date, amount, type
		 FROM financial_records
		 WHERE business_id = $1
		 ORDER BY date`,
		businessID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list financial records: %w", err)
	}
	defer rows.Close()

	var records []*model.FinancialRecord
	for rows.Next() {
		rec := &model.FinancialRecord{}
		if err := rows.Scan(&rec.ID, &rec.BusinessID, &rec.Date, &rec.Amount, &rec.Type); err != nil {
			return nil, fmt.Errorf("failed to scan financial record: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate financial records: %w", err)
	}
	return records, nil
}

// Create は財務レコードを作成する。
func (r *PostgresFinancialRepo) Create(ctx context.Context, record *model.FinancialRecord) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO financial_records (id, business_id, date, amount, type)
		 VALUES ($1, $2, $3, $4, $5)`,
		record.ID, record.BusinessID, record.Date, record.Amount, record.Type,
	)
	if err != nil {
		return fmt.Errorf("failed to insert financial record: %w", err)
	}
	return nil
}

// compile-time interface check
var _ FinancialRecordRepository = (*PostgresFinancialRepo)(nil)
