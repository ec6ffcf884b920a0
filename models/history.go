package models

import (
	"time"

	"github.com/mulyaapp/ledger_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// HistoryItemType discriminates the rows of a grouped history feed.
type HistoryItemType string

const (
	HistoryItemDateHeader      HistoryItemType = "DATE_HEADER"
	HistoryItemTransactionItem HistoryItemType = "TRANSACTION_ITEM"
)

// HistoryItem is one row of the grouped feed: either a day header or a
// transaction. Exactly one of Day/Transaction is set, per Type.
type HistoryItem struct {
	Type        HistoryItemType `json:"type"`
	Day         *time.Time      `json:"day,omitempty"`
	Transaction *Transaction    `json:"transaction,omitempty"`
}

// GroupTransactionsByDay inserts a DateHeader before the first transaction
// of each calendar day, preserving the input order. An empty input yields
// an empty feed, never a lone header.
func GroupTransactionsByDay(transactions []Transaction) []HistoryItem {
	items := make([]HistoryItem, 0, len(transactions))
	var currentDay time.Time
	for i := range transactions {
		day := utils.StartOfDay(transactions[i].OccurredAt)
		if len(items) == 0 || !day.Equal(currentDay) {
			currentDay = day
			header := day
			items = append(items, HistoryItem{Type: HistoryItemDateHeader, Day: &header})
		}
		items = append(items, HistoryItem{Type: HistoryItemTransactionItem, Transaction: &transactions[i]})
	}
	return items
}

// TrendSeries is a per-day expense/income breakdown over a window. The
// three slices are index-aligned and cover every day in the window, with
// zero totals for days that have no transactions.
type TrendSeries struct {
	Days    []time.Time       `json:"days"`
	Expense []decimal.Decimal `json:"expense"`
	Income  []decimal.Decimal `json:"income"`
}

// Trend buckets transactions into one slot per calendar day over
// [start, end]. A window whose start is after its end yields an empty
// series.
func Trend(db *gorm.DB, start, end time.Time) (*TrendSeries, error) {
	series := &TrendSeries{
		Days:    []time.Time{},
		Expense: []decimal.Decimal{},
		Income:  []decimal.Decimal{},
	}
	first := utils.StartOfDay(start)
	last := utils.StartOfDay(end)
	if first.After(last) {
		return series, nil
	}

	// keyed by formatted day so stored timestamps bucket correctly no
	// matter what location the driver hands them back in
	const dayKey = "2006-01-02"
	slot := map[string]int{}
	for day := first; !day.After(last); day = day.AddDate(0, 0, 1) {
		slot[day.Format(dayKey)] = len(series.Days)
		series.Days = append(series.Days, day)
		series.Expense = append(series.Expense, decimal.Zero)
		series.Income = append(series.Income, decimal.Zero)
	}

	transactions, err := transactionsBetween(db, first, utils.EndOfDay(end))
	if err != nil {
		return nil, err
	}
	for _, transaction := range transactions {
		i, ok := slot[transaction.OccurredAt.In(first.Location()).Format(dayKey)]
		if !ok {
			continue
		}
		if transaction.Kind == TransactionKindExpense {
			series.Expense[i] = series.Expense[i].Add(transaction.Amount)
		} else {
			series.Income[i] = series.Income[i].Add(transaction.Amount)
		}
	}
	return series, nil
}

type CategorySum struct {
	Category string          `json:"category"`
	Total    decimal.Decimal `json:"total"`
}

// CategoryBreakdown totals expenses per category over [start, end],
// largest first.
func CategoryBreakdown(db *gorm.DB, start, end time.Time) ([]CategorySum, error) {
	var sums []CategorySum
	err := db.Model(&Transaction{}).
		Where("kind = ? AND occurred_at >= ? AND occurred_at <= ?",
			TransactionKindExpense, utils.StartOfDay(start), utils.EndOfDay(end)).
		Select("category, SUM(amount) AS total").
		Group("category").
		Order("total DESC").
		Scan(&sums).Error
	if err != nil {
		return nil, err
	}
	return sums, nil
}
