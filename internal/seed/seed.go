// Package seed は開発・デモ環境向けの初期データ投入を提供する。
// 各テーブルは既存データがある場合はスキップするため、繰り返し実行しても安全。
package seed

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/jonathan/fastcapital/internal/auth"
)

// Seeder はデモデータ投入ジョブ。
type Seeder struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewSeeder はSeederを生成する。
func NewSeeder(db *sql.DB, logger *slog.Logger) *Seeder {
	return &Seeder{db: db, logger: logger}
}

// Run はデモ用のユーザー・事業者・財務レコード・募集・購入を投入する。
func (s *Seeder) Run(ctx context.Context) error {
	s.logger.Info("starting database seed")

	userIDs, err := s.seedUsers(ctx)
	if err != nil {
		return err
	}
	businessIDs, err := s.seedBusinesses(ctx, userIDs)
	if err != nil {
		return err
	}
	if err := s.seedFinancials(ctx, businessIDs); err != nil {
		return err
	}
	offeringIDs, err := s.seedOfferings(ctx, businessIDs)
	if err != nil {
		return err
	}
	if err := s.seedPurchases(ctx, offeringIDs, userIDs); err != nil {
		return err
	}

	s.logger.Info("seeding complete")
	return nil
}

// hasRows はテーブルに既存データがあるかどうかを返す。
func (s *Seeder) hasRows(ctx context.Context, table string) (bool, error) {
	var exists bool
	query := fmt.Sprintf("SELECT EXISTS (SELECT 1 FROM %s)", table)
	if err := s.db.QueryRowContext(ctx, query).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check %s: %w", table, err)
	}
	return exists, nil
}

func (s *Seeder) seedUsers(ctx context.Context) ([]string, error) {
	exists, err := s.hasRows(ctx, "users")
	if err != nil {
		return nil, err
	}
	if exists {
		s.logger.Info("users already exist, skipping")
		return s.existingIDs(ctx, "users")
	}

	demoUsers := []struct {
		name     string
		email    string
		password string
	}{
		{"John Smith", "jsmith@email.com", "password1"},
		{"Jane Doe", "jdoe@email.com", "password2"},
		{"Alice Johnson", "alicej@email.com", "password3"},
	}

	ids := make([]string, 0, len(demoUsers))
	for _, u := range demoUsers {
		hash, err := auth.HashPassword(u.password)
		if err != nil {
			return nil, fmt.Errorf("failed to hash demo password: %w", err)
		}
		id := uuid.New().String()
		_, err = s.db.ExecContext(ctx,
			`INSERT INTO users (id, name, email, password_hash) VALUES ($1, $2, $3, $4)`,
			id, u.name, u.email, hash,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to seed user %s: %w", u.email, err)
		}
		ids = append(ids, id)
	}

	s.logger.Info("seeded users", slog.Int("count", len(ids)))
	return ids, nil
}

func (s *Seeder) seedBusinesses(ctx context.Context, userIDs []string) ([]string, error) {
	exists, err := s.hasRows(ctx, "businesses")
	if err != nil {
		return nil, err
	}
	if exists {
		s.logger.Info("businesses already exist, skipping")
		return s.existingIDs(ctx, "businesses")
	}
	if len(userIDs) < 3 {
		return nil, fmt.Errorf("not enough seed users: got %d", len(userIDs))
	}

	demoBusinesses := []struct {
		name       string
		ownerID    string
		websiteURL string
		address1   string
		address2   string
		city       string
		state      string
		postalCode string
	}{
		{"Best Burgers", userIDs[0], "http://www.hackreactor.com", "123 Main St", "Apt 4B", "Los Angeles", "CA", "90001"},
		{"Tech Innovations", userIDs[1], "http://www.hackreactor.com", "456 Market St", "", "San Francisco", "CA", "94105"},
		{"Green Grocer", userIDs[2], "http://www.hackreactor.com", "789 Broadway", "", "New York", "NY", "10001"},
	}

	ids := make([]string, 0, len(demoBusinesses))
	for _, b := range demoBusinesses {
		id := uuid.New().String()
		_, err := s.db.ExecContext(ctx,
			`INSERT INTO businesses (id, owner_id, name, website_url, address1, address2, city, state, postal_code)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
			id, b.ownerID, b.name, b.websiteURL, b.address1, b.address2, b.city, b.state, b.postalCode,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to seed business %s: %w", b.name, err)
		}
		ids = append(ids, id)
	}

	s.logger.Info("seeded businesses", slog.Int("count", len(ids)))
	return ids, nil
}

func (s *Seeder) seedFinancials(ctx context.Context, businessIDs []string) error {
	exists, err := s.hasRows(ctx, "financial_records")
	if err != nil {
		return err
	}
	if exists {
		s.logger.Info("financial records already exist, skipping")
		return nil
	}
	if len(businessIDs) == 0 {
		return fmt.Errorf("no seed businesses")
	}

	recordDate := time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)
	demoRecords := []struct {
		amount     float64
		recordType string
	}{
		{50000, "income"},
		{20000, "expense"},
		{60000, "asset"},
		{20000, "liability"},
	}

	for _, rec := range demoRecords {
		_, err := s.db.ExecContext(ctx,
			`INSERT INTO financial_records (id, business_id, date, amount, type) VALUES ($1, $2, $3, $4, $5)`,
			uuid.New().String(), businessIDs[0], recordDate, rec.amount, rec.recordType,
		)
		if err != nil {
			return fmt.Errorf("failed to seed financial record: %w", err)
		}
	}

	s.logger.Info("seeded financial records", slog.Int("count", len(demoRecords)))
	return nil
}

func (s *Seeder) seedOfferings(ctx context.Context, businessIDs []string) ([]string, error) {
	exists, err := s.hasRows(ctx, "offerings")
	if err != nil {
		return nil, err
	}
	if exists {
		s.logger.Info("offerings already exist, skipping")
		return s.existingIDs(ctx, "offerings")
	}
	if len(businessIDs) < 2 {
		return nil, fmt.Errorf("not enough seed businesses: got %d", len(businessIDs))
	}

	now := time.Now()
	demoOfferings := []struct {
		businessID      string
		sharesAvailable int64
		pricePerShare   float64
		minInvestment   int64
		startDate       time.Time
		expirationDate  time.Time
		featured        bool
	}{
		{businessIDs[0], 500, 10.00, 100, now.AddDate(0, -1, 0), now.AddDate(0, 2, 0), true},
		{businessIDs[1], 1000, 20.00, 100, now.AddDate(0, -1, 0), now.AddDate(0, 5, 0), false},
	}

	ids := make([]string, 0, len(demoOfferings))
	for _, o := range demoOfferings {
		id := uuid.New().String()
		_, err := s.db.ExecContext(ctx,
			`INSERT INTO offerings (id, business_id, shares_available, price_per_share, min_investment, start_date, expiration_date, featured)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
			id, o.businessID, o.sharesAvailable, o.pricePerShare, o.minInvestment, o.startDate, o.expirationDate, o.featured,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to seed offering: %w", err)
		}
		ids = append(ids, id)
	}

	s.logger.Info("seeded offerings", slog.Int("count", len(ids)))
	return ids, nil
}

func (s *Seeder) seedPurchases(ctx context.Context, offeringIDs, userIDs []string) error {
	exists, err := s.hasRows(ctx, "purchases")
	if err != nil {
		return err
	}
	if exists {
		s.logger.Info("purchases already exist, skipping")
		return nil
	}
	if len(offeringIDs) < 2 || len(userIDs) < 2 {
		return fmt.Errorf("not enough seed offerings or users")
	}

	demoPurchases := []struct {
		offeringID      string
		userID          string
		sharesPurchased int64
		costPerShare    float64
		status          string
	}{
		{offeringIDs[0], userIDs[0], 100, 10.00, "completed"},
		{offeringIDs[1], userIDs[1], 100, 20.00, "pending"},
	}

	for _, p := range demoPurchases {
		_, err := s.db.ExecContext(ctx,
			`INSERT INTO purchases (id, offering_id, user_id, shares_purchased, cost_per_share, status)
			 VALUES ($1, $2, $3, $4, $5, $6)`,
			uuid.New().String(), p.offeringID, p.userID, p.sharesPurchased, p.costPerShare, p.status,
		)
		if err != nil {
			return fmt.Errorf("failed to seed purchase: %w", err)
		}
	}

	s.logger.Info("seeded purchases", slog.Int("count", len(demoPurchases)))
	return nil
}

// existingIDs は既存行のIDを作成順で返す。
// スキップされたテーブルに依存する後続のシードで使用する。
func (s *Seeder) existingIDs(ctx context.Context, table string) ([]string, error) {
	query := fmt.Sprintf("SELECT id FROM %s ORDER BY id", table)
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s ids: %w", table, err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan %s id: %w", table, err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
