package store

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"bourse/internal/common"

	"github.com/glebarez/sqlite"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// TapeRow is the tape_records table.
type TapeRow struct {
	ID       uint   `gorm:"primaryKey"`
	Session  string `gorm:"index:idx_tape_session_seq,priority:1"`
	Seq      uint64 `gorm:"index:idx_tape_session_seq,priority:2"`
	Kind     string
	Venue    string
	Time     float64
	Price    int64
	Quantity int64
	Seller   string
	Buyer    string
	SellID   uint64
	BuyID    uint64
	OrderID  uint64
}

func (TapeRow) TableName() string { return "tape_records" }

// SummaryRow is the session_summaries table.
type SummaryRow struct {
	ID         uint   `gorm:"primaryKey"`
	Session    string `gorm:"index"`
	Time       float64
	TraderType string
	Traders    int
	Balance    int64
	Average    decimal.Decimal `gorm:"type:text"`
	BestBid    *int64
	BestAsk    *int64
}

func (SummaryRow) TableName() string { return "session_summaries" }

// SQLite stores the output in a single database file. Writes are
// serialized; sqlite allows one writer at a time.
type SQLite struct {
	mu sync.Mutex
	db *gorm.DB
}

func OpenSQLite(path string) (*SQLite, error) {
	if filepath.Ext(path) == "" {
		path = filepath.Join(path, "bourse.db")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create DB directory: %w", err)
	}

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := db.AutoMigrate(&TapeRow{}, &SummaryRow{}); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return &SQLite{db: db}, nil
}

func (s *SQLite) WriteTape(session string, tape []common.TapeEvent) error {
	if len(tape) == 0 {
		return nil
	}
	rows := make([]TapeRow, 0, len(tape))
	for _, r := range Records(session, tape) {
		rows = append(rows, TapeRow{
			Session:  r.Session,
			Seq:      r.Seq,
			Kind:     r.Kind.String(),
			Venue:    r.Venue,
			Time:     r.Time,
			Price:    r.Price,
			Quantity: r.Quantity,
			Seller:   r.Seller,
			Buyer:    r.Buyer,
			SellID:   r.SellID,
			BuyID:    r.BuyID,
			OrderID:  r.OrderID,
		})
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.CreateInBatches(&rows, 500).Error
}

func (s *SQLite) WriteSummary(rows []Summary) error {
	if len(rows) == 0 {
		return nil
	}
	out := make([]SummaryRow, len(rows))
	for i, r := range rows {
		out[i] = SummaryRow{
			Session:    r.Session,
			Time:       r.Time,
			TraderType: r.Type,
			Traders:    r.Traders,
			Balance:    r.Balance,
			Average:    r.Average(),
			BestBid:    nullablePrice(r.BestBid),
			BestAsk:    nullablePrice(r.BestAsk),
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.Create(&out).Error
}

func nullablePrice(p int64) *int64 {
	if p == 0 {
		return nil
	}
	return &p
}

// Tape returns the stored tape of one session in order.
func (s *SQLite) Tape(session string) ([]TapeRow, error) {
	var rows []TapeRow
	err := s.db.Where("session = ?", session).Order("seq").Find(&rows).Error
	return rows, err
}

// Summaries returns the stored summaries of one session.
func (s *SQLite) Summaries(session string) ([]SummaryRow, error) {
	var rows []SummaryRow
	err := s.db.Where("session = ?", session).Order("trader_type").Find(&rows).Error
	return rows, err
}

func (s *SQLite) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
