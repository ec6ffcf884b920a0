package models

import (
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/mulyaapp/ledger_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

var validate = validator.New()

// Transaction is one applied income or expense. BalanceAfter is stamped by
// the mutation engine at write time and is never recomputed on read; edits
// that move the transaction re-stamp it inside the same atomic unit.
type Transaction struct {
	ID           int             `gorm:"primary_key" json:"id"`
	Title        string          `gorm:"size:255;not null" json:"title"`
	Amount       decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"amount"`
	Account      AccountType     `gorm:"size:10;index;not null" json:"account"`
	Category     string          `gorm:"size:100" json:"category"`
	Kind         TransactionKind `gorm:"size:10;index;not null" json:"kind"`
	OccurredAt   time.Time       `gorm:"index;not null" json:"occurred_at"`
	BalanceAfter decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"balance_after"`
	Message      string          `gorm:"type:text" json:"message"`
	CreatedAt    time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

func (t Transaction) GetId() int {
	return t.ID
}

// NewTransaction is the draft the mutation engine accepts.
type NewTransaction struct {
	Title      string          `json:"title" validate:"required"`
	Amount     decimal.Decimal `json:"amount"`
	Account    AccountType     `json:"account" validate:"required"`
	Category   string          `json:"category"`
	Kind       TransactionKind `json:"kind" validate:"required"`
	OccurredAt time.Time       `json:"occurred_at"`
	Message    string          `json:"message"`
}

func (in *NewTransaction) Validate() error {
	if err := validate.Struct(in); err != nil {
		return err
	}
	if !in.Account.Valid() {
		return errors.New("account must be BANK or CASH")
	}
	if !in.Kind.Valid() {
		return errors.New("kind must be EXPENSE or INCOME")
	}
	if !in.Amount.IsPositive() {
		return errors.New("amount must be greater than zero")
	}
	return nil
}

// TransactionEdit carries the editable fields. Kind is deliberately absent:
// an expense stays an expense.
type TransactionEdit struct {
	Title      string          `json:"title" validate:"required"`
	Amount     decimal.Decimal `json:"amount"`
	Account    AccountType     `json:"account" validate:"required"`
	Category   string          `json:"category"`
	OccurredAt time.Time       `json:"occurred_at"`
	Message    string          `json:"message"`
}

func (in *TransactionEdit) Validate() error {
	if err := validate.Struct(in); err != nil {
		return err
	}
	if !in.Account.Valid() {
		return errors.New("account must be BANK or CASH")
	}
	if !in.Amount.IsPositive() {
		return errors.New("amount must be greater than zero")
	}
	if in.OccurredAt.IsZero() {
		return errors.New("occurred_at is required")
	}
	return nil
}

// TransactionFilter selects history rows.
//
// Range resolution:
//   - Start nil: all time (End is ignored)
//   - Start set, End nil: the single calendar day of Start
//   - both set: [startOfDay(Start), endOfDay(End)], ErrInvalidRange when
//     End's day precedes Start's day
//
// Kinds defaults to both when empty. Category is an exact match applied on
// top of the kind/date filter; empty means no category filter.
type TransactionFilter struct {
	Start    *time.Time
	End      *time.Time
	Kinds    []TransactionKind
	Category string
}

func (f TransactionFilter) kinds() []TransactionKind {
	if len(f.Kinds) == 0 {
		return []TransactionKind{TransactionKindExpense, TransactionKindIncome}
	}
	return f.Kinds
}

// Resolve returns the concrete [start, end] window, or all=true for the
// unbounded filter.
func (f TransactionFilter) Resolve() (start, end time.Time, all bool, err error) {
	if f.Start == nil {
		return time.Time{}, time.Time{}, true, nil
	}
	start = utils.StartOfDay(*f.Start)
	if f.End == nil {
		return start, utils.EndOfDay(*f.Start), false, nil
	}
	end = utils.EndOfDay(*f.End)
	if end.Before(start) {
		return time.Time{}, time.Time{}, false, ErrInvalidRange
	}
	return start, end, false, nil
}

// ListTransactions returns matching transactions, newest first.
func ListTransactions(db *gorm.DB, filter TransactionFilter) ([]Transaction, error) {
	start, end, all, err := filter.Resolve()
	if err != nil {
		return nil, err
	}
	dbCtx := db.Model(&Transaction{}).Where("kind IN ?", filter.kinds())
	if !all {
		dbCtx = dbCtx.Where("occurred_at >= ? AND occurred_at <= ?", start, end)
	}
	if filter.Category != "" {
		dbCtx = dbCtx.Where("category = ?", filter.Category)
	}
	var transactions []Transaction
	if err := dbCtx.Order("occurred_at DESC").Find(&transactions).Error; err != nil {
		return nil, err
	}
	return transactions, nil
}

// RecentTransactions returns the newest rows for the dashboard feed.
func RecentTransactions(db *gorm.DB, limit int) ([]Transaction, error) {
	if limit <= 0 {
		limit = 15
	}
	var transactions []Transaction
	err := db.Order("occurred_at DESC").Limit(limit).Find(&transactions).Error
	if err != nil {
		return nil, err
	}
	return transactions, nil
}

func TransactionsPaged(db *gorm.DB, limit, offset int) ([]Transaction, error) {
	var transactions []Transaction
	err := db.Order("occurred_at DESC").Limit(limit).Offset(offset).Find(&transactions).Error
	if err != nil {
		return nil, err
	}
	return transactions, nil
}

func GetTransaction(db *gorm.DB, id int) (*Transaction, error) {
	var transaction Transaction
	err := db.First(&transaction, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrRecordNotFound
	}
	if err != nil {
		return nil, err
	}
	return &transaction, nil
}

// SumByKind totals one kind over [start, end].
func SumByKind(db *gorm.DB, kind TransactionKind, start, end time.Time) (decimal.Decimal, error) {
	var total decimal.NullDecimal
	err := db.Model(&Transaction{}).
		Where("kind = ? AND occurred_at >= ? AND occurred_at <= ?", kind, start, end).
		Select("SUM(amount)").
		Scan(&total).Error
	if err != nil {
		return decimal.Zero, err
	}
	if !total.Valid {
		return decimal.Zero, nil
	}
	return total.Decimal, nil
}

// TodayTotalExpense totals expenses from local midnight up to now.
func TodayTotalExpense(db *gorm.DB, now time.Time) (decimal.Decimal, error) {
	return SumByKind(db, TransactionKindExpense, utils.StartOfDay(now), now)
}

// transactionsBetween returns rows in ascending occurred_at order for
// bucketing into per-day series.
func transactionsBetween(db *gorm.DB, start, end time.Time) ([]Transaction, error) {
	var transactions []Transaction
	err := db.Where("occurred_at >= ? AND occurred_at <= ?", start, end).
		Order("occurred_at ASC").
		Find(&transactions).Error
	if err != nil {
		return nil, err
	}
	return transactions, nil
}
