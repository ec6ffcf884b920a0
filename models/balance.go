package models

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Balance is the running amount of one account bucket. At most one row per
// AccountType exists; rows are created lazily on first mutation and only
// the ledger workflows may change Amount.
type Balance struct {
	ID          int             `gorm:"primary_key" json:"id"`
	Account     AccountType     `gorm:"size:10;not null;uniqueIndex" json:"account"`
	Amount      decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"amount"`
	LastUpdated time.Time       `gorm:"not null" json:"last_updated"`
}

func (b Balance) GetId() int {
	return b.ID
}

// GetBalance returns the row for an account, or nil when none exists yet.
// A missing row is not an error: the engine treats it as a zero balance.
func GetBalance(db *gorm.DB, account AccountType) (*Balance, error) {
	var balance Balance
	err := db.Where("account = ?", account).First(&balance).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &balance, nil
}

func ListBalances(db *gorm.DB) ([]Balance, error) {
	var balances []Balance
	if err := db.Order("account").Find(&balances).Error; err != nil {
		return nil, err
	}
	return balances, nil
}

// SetInitialBalance upserts the account's row to an explicit amount. This
// is the one entry point besides the mutation engine, used for first-run
// setup; it establishes the account's baseline.
func SetInitialBalance(db *gorm.DB, account AccountType, amount decimal.Decimal) (*Balance, error) {
	balance, err := GetBalance(db, account)
	if err != nil {
		return nil, err
	}
	if balance == nil {
		balance = &Balance{Account: account}
	}
	balance.Amount = amount
	balance.LastUpdated = time.Now()
	if err := db.Save(balance).Error; err != nil {
		return nil, err
	}
	return balance, nil
}
