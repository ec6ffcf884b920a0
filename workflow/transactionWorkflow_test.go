package workflow

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/mulyaapp/ledger_backend/config"
	"github.com/mulyaapp/ledger_backend/models"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := config.OpenSQLite(filepath.Join(t.TempDir(), "ledger.db"))
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := models.AutoMigrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func newTestLedger(t *testing.T) (*LedgerEngine, *gorm.DB) {
	t.Helper()
	db := newTestDB(t)
	logger := config.NewLogger()
	return NewLedgerEngine(db, logger, NewNotifier(nil, logger)), db
}

func mustBalance(t *testing.T, db *gorm.DB, account models.AccountType) decimal.Decimal {
	t.Helper()
	balance, err := models.GetBalance(db, account)
	if err != nil {
		t.Fatalf("get balance: %v", err)
	}
	if balance == nil {
		return decimal.Zero
	}
	return balance.Amount
}

// checkLedgerConsistent verifies that every account balance equals its
// baseline plus the sum of its transactions' signed amounts.
func checkLedgerConsistent(t *testing.T, db *gorm.DB, baseline map[models.AccountType]decimal.Decimal) {
	t.Helper()
	for _, account := range []models.AccountType{models.AccountTypeBank, models.AccountTypeCash} {
		expected := baseline[account]
		var transactions []models.Transaction
		if err := db.Where("account = ?", account).Find(&transactions).Error; err != nil {
			t.Fatalf("list transactions: %v", err)
		}
		for _, transaction := range transactions {
			expected = expected.Add(transaction.Kind.Delta(transaction.Amount))
		}
		if got := mustBalance(t, db, account); !got.Equal(expected) {
			t.Errorf("%s balance = %s, want %s", account, got, expected)
		}
	}
}

func TestApplyStampsClosingBalance(t *testing.T) {
	engine, db := newTestLedger(t)
	ctx := context.Background()
	permissive := MutationPolicy{AllowNegative: true}

	income, err := engine.Apply(ctx, &models.NewTransaction{
		Title:   "Salary",
		Amount:  decimal.NewFromInt(1000),
		Account: models.AccountTypeBank,
		Kind:    models.TransactionKindIncome,
	}, permissive)
	if err != nil {
		t.Fatalf("apply income: %v", err)
	}
	if !income.BalanceAfter.Equal(decimal.NewFromInt(1000)) {
		t.Errorf("income balance_after = %s, want 1000", income.BalanceAfter)
	}

	expense, err := engine.Apply(ctx, &models.NewTransaction{
		Title:    "Groceries",
		Amount:   decimal.NewFromInt(250),
		Account:  models.AccountTypeBank,
		Category: "Food",
		Kind:     models.TransactionKindExpense,
	}, permissive)
	if err != nil {
		t.Fatalf("apply expense: %v", err)
	}
	if !expense.BalanceAfter.Equal(decimal.NewFromInt(750)) {
		t.Errorf("expense balance_after = %s, want 750", expense.BalanceAfter)
	}
	if got := mustBalance(t, db, models.AccountTypeBank); !got.Equal(decimal.NewFromInt(750)) {
		t.Errorf("bank balance = %s, want 750", got)
	}
	checkLedgerConsistent(t, db, nil)
}

func TestApplyRejectsInvalidDraft(t *testing.T) {
	engine, _ := newTestLedger(t)
	ctx := context.Background()

	cases := []models.NewTransaction{
		{Amount: decimal.NewFromInt(10), Account: models.AccountTypeCash, Kind: models.TransactionKindExpense},
		{Title: "No amount", Account: models.AccountTypeCash, Kind: models.TransactionKindExpense},
		{Title: "Negative", Amount: decimal.NewFromInt(-5), Account: models.AccountTypeCash, Kind: models.TransactionKindExpense},
		{Title: "Bad account", Amount: decimal.NewFromInt(5), Account: "WALLET", Kind: models.TransactionKindExpense},
		{Title: "Bad kind", Amount: decimal.NewFromInt(5), Account: models.AccountTypeCash, Kind: "TRANSFER"},
	}
	for _, input := range cases {
		if _, err := engine.Apply(ctx, &input, MutationPolicy{AllowNegative: true}); err == nil {
			t.Errorf("Apply(%+v) accepted an invalid draft", input)
		}
	}
}

func TestApplyInsufficientBalanceWritesNothing(t *testing.T) {
	engine, db := newTestLedger(t)
	ctx := context.Background()

	if _, err := models.SetInitialBalance(db, models.AccountTypeCash, decimal.NewFromInt(50)); err != nil {
		t.Fatalf("set initial balance: %v", err)
	}

	_, err := engine.Apply(ctx, &models.NewTransaction{
		Title:   "Too big",
		Amount:  decimal.NewFromInt(100),
		Account: models.AccountTypeCash,
		Kind:    models.TransactionKindExpense,
	}, MutationPolicy{AllowNegative: false})
	if !errors.Is(err, models.ErrInsufficientBalance) {
		t.Fatalf("err = %v, want ErrInsufficientBalance", err)
	}

	if got := mustBalance(t, db, models.AccountTypeCash); !got.Equal(decimal.NewFromInt(50)) {
		t.Errorf("cash balance = %s, want unchanged 50", got)
	}
	var count int64
	if err := db.Model(&models.Transaction{}).Count(&count).Error; err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 0 {
		t.Errorf("transaction count = %d, want 0", count)
	}
}

func TestApplyPermissivePolicyAllowsNegative(t *testing.T) {
	engine, db := newTestLedger(t)
	ctx := context.Background()

	created, err := engine.Apply(ctx, &models.NewTransaction{
		Title:   "Overdraft",
		Amount:  decimal.NewFromInt(30),
		Account: models.AccountTypeCash,
		Kind:    models.TransactionKindExpense,
	}, MutationPolicy{AllowNegative: true})
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if !created.BalanceAfter.Equal(decimal.NewFromInt(-30)) {
		t.Errorf("balance_after = %s, want -30", created.BalanceAfter)
	}
	if got := mustBalance(t, db, models.AccountTypeCash); !got.Equal(decimal.NewFromInt(-30)) {
		t.Errorf("cash balance = %s, want -30", got)
	}
}

func TestDeleteRevertsAndUndoRestores(t *testing.T) {
	engine, db := newTestLedger(t)
	ctx := context.Background()
	permissive := MutationPolicy{AllowNegative: true}

	occurred := time.Date(2025, 6, 10, 14, 30, 0, 0, time.Local)
	created, err := engine.Apply(ctx, &models.NewTransaction{
		Title:      "Dinner",
		Amount:     decimal.NewFromInt(40),
		Account:    models.AccountTypeCash,
		Category:   "Food",
		Kind:       models.TransactionKindExpense,
		OccurredAt: occurred,
	}, permissive)
	if err != nil {
		t.Fatalf("apply: %v", err)
	}

	if err := engine.Delete(ctx, created.GetId()); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if got := mustBalance(t, db, models.AccountTypeCash); !got.Equal(decimal.Zero) {
		t.Errorf("cash balance after delete = %s, want 0", got)
	}
	if _, err := models.GetTransaction(db, created.GetId()); !errors.Is(err, models.ErrRecordNotFound) {
		t.Fatalf("deleted row still readable, err = %v", err)
	}

	restored, err := engine.UndoDelete(ctx, permissive)
	if err != nil {
		t.Fatalf("undo: %v", err)
	}
	if !restored.OccurredAt.Equal(occurred) {
		t.Errorf("restored occurred_at = %v, want original %v", restored.OccurredAt, occurred)
	}
	if got := mustBalance(t, db, models.AccountTypeCash); !got.Equal(decimal.NewFromInt(-40)) {
		t.Errorf("cash balance after undo = %s, want -40", got)
	}

	// the slot is single-use
	if _, err := engine.UndoDelete(ctx, permissive); !errors.Is(err, models.ErrNothingToUndo) {
		t.Errorf("second undo err = %v, want ErrNothingToUndo", err)
	}
	checkLedgerConsistent(t, db, nil)
}

func TestUndoWithEmptySlot(t *testing.T) {
	engine, _ := newTestLedger(t)
	if _, err := engine.UndoDelete(context.Background(), MutationPolicy{AllowNegative: true}); !errors.Is(err, models.ErrNothingToUndo) {
		t.Fatalf("err = %v, want ErrNothingToUndo", err)
	}
}

func TestEditRecomputesAcrossAccounts(t *testing.T) {
	engine, db := newTestLedger(t)
	ctx := context.Background()
	permissive := MutationPolicy{AllowNegative: true}

	if _, err := models.SetInitialBalance(db, models.AccountTypeBank, decimal.NewFromInt(500)); err != nil {
		t.Fatalf("set bank: %v", err)
	}
	if _, err := models.SetInitialBalance(db, models.AccountTypeCash, decimal.NewFromInt(100)); err != nil {
		t.Fatalf("set cash: %v", err)
	}
	baseline := map[models.AccountType]decimal.Decimal{
		models.AccountTypeBank: decimal.NewFromInt(500),
		models.AccountTypeCash: decimal.NewFromInt(100),
	}

	created, err := engine.Apply(ctx, &models.NewTransaction{
		Title:   "Taxi",
		Amount:  decimal.NewFromInt(60),
		Account: models.AccountTypeBank,
		Kind:    models.TransactionKindExpense,
	}, permissive)
	if err != nil {
		t.Fatalf("apply: %v", err)
	}

	updated, err := engine.Edit(ctx, created.GetId(), &models.TransactionEdit{
		Title:      "Taxi",
		Amount:     decimal.NewFromInt(40),
		Account:    models.AccountTypeCash,
		Category:   "Transport",
		OccurredAt: created.OccurredAt,
	}, permissive)
	if err != nil {
		t.Fatalf("edit: %v", err)
	}
	if updated.Kind != models.TransactionKindExpense {
		t.Errorf("kind changed to %s", updated.Kind)
	}
	if !updated.BalanceAfter.Equal(decimal.NewFromInt(60)) {
		t.Errorf("balance_after = %s, want 60", updated.BalanceAfter)
	}
	if got := mustBalance(t, db, models.AccountTypeBank); !got.Equal(decimal.NewFromInt(500)) {
		t.Errorf("bank balance = %s, want restored 500", got)
	}
	if got := mustBalance(t, db, models.AccountTypeCash); !got.Equal(decimal.NewFromInt(60)) {
		t.Errorf("cash balance = %s, want 60", got)
	}
	checkLedgerConsistent(t, db, baseline)
}

func TestEditFailureRollsBackEverything(t *testing.T) {
	engine, db := newTestLedger(t)
	ctx := context.Background()

	if _, err := models.SetInitialBalance(db, models.AccountTypeCash, decimal.NewFromInt(100)); err != nil {
		t.Fatalf("set cash: %v", err)
	}

	created, err := engine.Apply(ctx, &models.NewTransaction{
		Title:   "Lunch",
		Amount:  decimal.NewFromInt(30),
		Account: models.AccountTypeCash,
		Kind:    models.TransactionKindExpense,
	}, MutationPolicy{AllowNegative: false})
	if err != nil {
		t.Fatalf("apply: %v", err)
	}

	_, err = engine.Edit(ctx, created.GetId(), &models.TransactionEdit{
		Title:      "Lunch",
		Amount:     decimal.NewFromInt(500),
		Account:    models.AccountTypeCash,
		OccurredAt: created.OccurredAt,
	}, MutationPolicy{AllowNegative: false})
	if !errors.Is(err, models.ErrInsufficientBalance) {
		t.Fatalf("err = %v, want ErrInsufficientBalance", err)
	}

	// old row and both balances untouched
	unchanged, err := models.GetTransaction(db, created.GetId())
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !unchanged.Amount.Equal(decimal.NewFromInt(30)) {
		t.Errorf("amount = %s, want unchanged 30", unchanged.Amount)
	}
	if got := mustBalance(t, db, models.AccountTypeCash); !got.Equal(decimal.NewFromInt(70)) {
		t.Errorf("cash balance = %s, want unchanged 70", got)
	}
}

func TestEditMissingTransaction(t *testing.T) {
	engine, _ := newTestLedger(t)
	_, err := engine.Edit(context.Background(), 9999, &models.TransactionEdit{
		Title:      "Ghost",
		Amount:     decimal.NewFromInt(10),
		Account:    models.AccountTypeCash,
		OccurredAt: time.Now(),
	}, MutationPolicy{AllowNegative: true})
	if !errors.Is(err, models.ErrRecordNotFound) {
		t.Fatalf("err = %v, want ErrRecordNotFound", err)
	}
}
