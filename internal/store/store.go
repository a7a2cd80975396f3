package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/shopspring/decimal"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
	"gorm.io/gorm/schema"

	"github.com/Rajchodisetti/chaingate/internal/contract"
	"github.com/Rajchodisetti/chaingate/internal/observ"
)

// ContractRow is the table form of a listed contract.
type ContractRow struct {
	SymbolID     string              `gorm:"primaryKey"`
	UnderlyingID string              `gorm:"index"`
	Exchange     string              `gorm:"index"`
	Expiry       time.Time           `gorm:"index"`
	Strike       decimal.NullDecimal `gorm:"type:numeric"`
	Right        string
	Kind         string
	IsActive     bool `gorm:"default:true"`
	UpdatedAt    time.Time
}

func (ContractRow) TableName() string { return "contracts" }

func toRow(c contract.Contract) ContractRow {
	row := ContractRow{
		SymbolID:     c.SymbolID,
		UnderlyingID: c.UnderlyingID,
		Exchange:     c.Exchange,
		Expiry:       contract.Date(c.Expiry),
		Right:        c.Right.String(),
		Kind:         string(c.Kind),
		IsActive:     true,
	}
	if c.HasStrike {
		row.Strike = decimal.NewNullDecimal(c.Strike)
	}
	return row
}

func fromRow(r ContractRow) (contract.Contract, error) {
	right, ok := contract.ParseRight(r.Right)
	if !ok {
		return contract.Contract{}, fmt.Errorf("%s: unknown right %q", r.SymbolID, r.Right)
	}
	c := contract.Contract{
		SymbolID:     r.SymbolID,
		UnderlyingID: r.UnderlyingID,
		Exchange:     r.Exchange,
		Expiry:       contract.Date(r.Expiry),
		Strike:       r.Strike.Decimal,
		HasStrike:    r.Strike.Valid,
		Right:        right,
		Kind:         contract.Kind(r.Kind),
	}
	if !c.Kind.Valid() {
		return contract.Contract{}, fmt.Errorf("%s: unknown kind %q", r.SymbolID, r.Kind)
	}
	return c, nil
}

// Store keeps the contract master in SQL. It is a contract.Source for the catalog
// reloader.
type Store struct {
	db *gorm.DB
}

// Open connects through dialector and migrates the schema.
func Open(dialector gorm.Dialector, tablePrefix string) (*Store, error) {
	db, err := gorm.Open(dialector, &gorm.Config{
		NamingStrategy: schema.NamingStrategy{TablePrefix: tablePrefix},
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := db.AutoMigrate(&ContractRow{}); err != nil {
		return nil, fmt.Errorf("failed to migrate contracts: %w", err)
	}
	observ.Log("store_opened", map[string]any{"dialect": dialector.Name()})
	return &Store{db: db}, nil
}

// OpenDSN picks the driver from the DSN: "sqlite:<path>" (or a *.db path) uses
// SQLite, anything else is handed to the Postgres driver.
func OpenDSN(dsn, tablePrefix string) (*Store, error) {
	switch {
	case strings.HasPrefix(dsn, "sqlite:"):
		return Open(sqlite.Open(strings.TrimPrefix(dsn, "sqlite:")), tablePrefix)
	case strings.HasSuffix(dsn, ".db"), dsn == ":memory:":
		return Open(sqlite.Open(dsn), tablePrefix)
	}
	return Open(postgres.Open(dsn), tablePrefix)
}

func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (s *Store) Name() string { return "sql:" + s.db.Dialector.Name() }

// Upsert inserts or fully updates contracts by SymbolID and marks them active.
func (s *Store) Upsert(ctx context.Context, contracts []contract.Contract) error {
	if len(contracts) == 0 {
		return nil
	}
	rows := make([]ContractRow, len(contracts))
	for i, c := range contracts {
		rows[i] = toRow(c)
	}
	return s.db.WithContext(ctx).
		Clauses(clause.OnConflict{UpdateAll: true}).
		CreateInBatches(rows, 500).Error
}

// Deactivate hides delisted contracts from Contracts without deleting them.
func (s *Store) Deactivate(ctx context.Context, symbols ...string) error {
	if len(symbols) == 0 {
		return nil
	}
	return s.db.WithContext(ctx).Model(&ContractRow{}).
		Where("symbol_id IN ?", symbols).
		Update("is_active", false).Error
}

// Contracts returns the active contracts ordered by symbol.
func (s *Store) Contracts(ctx context.Context) ([]contract.Contract, error) {
	var rows []ContractRow
	if err := s.db.WithContext(ctx).Where("is_active = ?", true).Order("symbol_id").Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]contract.Contract, 0, len(rows))
	for _, r := range rows {
		c, err := fromRow(r)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}

// Underlying returns the active contracts listed on one underlying.
func (s *Store) Underlying(ctx context.Context, underlyingID string) ([]contract.Contract, error) {
	var rows []ContractRow
	err := s.db.WithContext(ctx).
		Where("is_active = ? AND underlying_id = ?", true, underlyingID).
		Order("expiry, symbol_id").Find(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make([]contract.Contract, 0, len(rows))
	for _, r := range rows {
		c, err := fromRow(r)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}
