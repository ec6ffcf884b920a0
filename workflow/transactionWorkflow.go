package workflow

import (
	"context"
	"sync"
	"time"

	"github.com/mulyaapp/ledger_backend/config"
	"github.com/mulyaapp/ledger_backend/models"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"gorm.io/gorm"
)

var tracer = otel.Tracer("github.com/mulyaapp/ledger_backend/workflow")

// MutationPolicy decides whether an expense may push an account balance
// below zero. It is resolved from preferences once per request and passed
// down so one mutation sees one policy.
type MutationPolicy struct {
	AllowNegative bool
}

// LedgerEngine owns every balance mutation: applying, deleting, undoing
// and editing transactions. All paths go through one database transaction
// so the transaction row and its account balance always change together.
type LedgerEngine struct {
	db       *gorm.DB
	logger   *logrus.Logger
	notifier *Notifier

	// single undo slot for the last deleted transaction
	mu          sync.Mutex
	lastDeleted *models.Transaction
}

func NewLedgerEngine(db *gorm.DB, logger *logrus.Logger, notifier *Notifier) *LedgerEngine {
	return &LedgerEngine{db: db, logger: logger, notifier: notifier}
}

// Apply validates the draft, mutates the account balance and inserts the
// transaction row atomically. The created row carries the post-mutation
// balance.
func (e *LedgerEngine) Apply(ctx context.Context, input *models.NewTransaction, policy MutationPolicy) (*models.Transaction, error) {
	ctx, span := tracer.Start(ctx, "LedgerEngine.Apply")
	defer span.End()

	if err := input.Validate(); err != nil {
		return nil, err
	}

	var created models.Transaction
	err := e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return applyTx(tx, input, policy, &created)
	})
	if err != nil {
		config.LogError(e.logger, "workflow", "Apply", "apply transaction", input, err)
		return nil, err
	}

	e.notifier.Notify(ctx, TopicBalancesChanged, TopicTransactionsChanged)
	return &created, nil
}

// applyTx is the shared atomic step used by Apply, UndoDelete and plan
// completion. It runs inside the caller's database transaction; the policy
// check reads the balance fresh so concurrent mutations cannot slip an
// account below zero.
func applyTx(tx *gorm.DB, input *models.NewTransaction, policy MutationPolicy, out *models.Transaction) error {
	balance, err := models.GetBalance(tx, input.Account)
	if err != nil {
		return err
	}
	if balance == nil {
		balance = &models.Balance{Account: input.Account}
	}

	next := balance.Amount.Add(input.Kind.Delta(input.Amount))
	if !policy.AllowNegative && input.Kind == models.TransactionKindExpense && next.IsNegative() {
		return models.ErrInsufficientBalance
	}

	balance.Amount = next
	balance.LastUpdated = time.Now()
	if err := tx.Save(balance).Error; err != nil {
		return err
	}

	occurredAt := input.OccurredAt
	if occurredAt.IsZero() {
		occurredAt = time.Now()
	}
	*out = models.Transaction{
		Title:        input.Title,
		Amount:       input.Amount,
		Account:      input.Account,
		Category:     input.Category,
		Kind:         input.Kind,
		OccurredAt:   occurredAt,
		BalanceAfter: next,
		Message:      input.Message,
	}
	return tx.Create(out).Error
}

// Delete reverts the transaction's balance impact and removes the row, then
// parks the row in the undo slot. Each delete overwrites the slot.
func (e *LedgerEngine) Delete(ctx context.Context, id int) error {
	ctx, span := tracer.Start(ctx, "LedgerEngine.Delete")
	defer span.End()

	var deleted *models.Transaction
	err := e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		transaction, err := models.GetTransaction(tx, id)
		if err != nil {
			return err
		}
		if err := revertTx(tx, transaction); err != nil {
			return err
		}
		if err := tx.Delete(&models.Transaction{}, id).Error; err != nil {
			return err
		}
		deleted = transaction
		return nil
	})
	if err != nil {
		config.LogError(e.logger, "workflow", "Delete", "delete transaction", id, err)
		return err
	}

	e.mu.Lock()
	e.lastDeleted = deleted
	e.mu.Unlock()

	e.notifier.Notify(ctx, TopicBalancesChanged, TopicTransactionsChanged)
	return nil
}

// revertTx undoes a transaction's balance impact inside the caller's
// database transaction.
func revertTx(tx *gorm.DB, transaction *models.Transaction) error {
	balance, err := models.GetBalance(tx, transaction.Account)
	if err != nil {
		return err
	}
	if balance == nil {
		balance = &models.Balance{Account: transaction.Account}
	}
	balance.Amount = balance.Amount.Sub(transaction.Kind.Delta(transaction.Amount))
	balance.LastUpdated = time.Now()
	return tx.Save(balance).Error
}

// UndoDelete re-applies the last deleted transaction with its original
// timestamp. The slot holds at most one transaction and is cleared on
// success.
func (e *LedgerEngine) UndoDelete(ctx context.Context, policy MutationPolicy) (*models.Transaction, error) {
	ctx, span := tracer.Start(ctx, "LedgerEngine.UndoDelete")
	defer span.End()

	e.mu.Lock()
	slot := e.lastDeleted
	e.mu.Unlock()
	if slot == nil {
		return nil, models.ErrNothingToUndo
	}

	input := &models.NewTransaction{
		Title:      slot.Title,
		Amount:     slot.Amount,
		Account:    slot.Account,
		Category:   slot.Category,
		Kind:       slot.Kind,
		OccurredAt: slot.OccurredAt,
		Message:    slot.Message,
	}
	var restored models.Transaction
	err := e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return applyTx(tx, input, policy, &restored)
	})
	if err != nil {
		config.LogError(e.logger, "workflow", "UndoDelete", "restore deleted transaction", slot.GetId(), err)
		return nil, err
	}

	e.mu.Lock()
	if e.lastDeleted == slot {
		e.lastDeleted = nil
	}
	e.mu.Unlock()

	e.notifier.Notify(ctx, TopicBalancesChanged, TopicTransactionsChanged)
	return &restored, nil
}

// Edit rewrites a transaction in place: the old balance impact is reverted,
// the new one applied, and the row's fields and closing balance re-stamped,
// all in one database transaction. The kind never changes. If the account
// changed, both accounts' balances move.
func (e *LedgerEngine) Edit(ctx context.Context, id int, changes *models.TransactionEdit, policy MutationPolicy) (*models.Transaction, error) {
	ctx, span := tracer.Start(ctx, "LedgerEngine.Edit")
	defer span.End()

	if err := changes.Validate(); err != nil {
		return nil, err
	}

	var updated models.Transaction
	err := e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		old, err := models.GetTransaction(tx, id)
		if err != nil {
			return err
		}
		if err := revertTx(tx, old); err != nil {
			return err
		}

		balance, err := models.GetBalance(tx, changes.Account)
		if err != nil {
			return err
		}
		if balance == nil {
			balance = &models.Balance{Account: changes.Account}
		}
		next := balance.Amount.Add(old.Kind.Delta(changes.Amount))
		if !policy.AllowNegative && old.Kind == models.TransactionKindExpense && next.IsNegative() {
			return models.ErrInsufficientBalance
		}
		balance.Amount = next
		balance.LastUpdated = time.Now()
		if err := tx.Save(balance).Error; err != nil {
			return err
		}

		updated = *old
		updated.Title = changes.Title
		updated.Amount = changes.Amount
		updated.Account = changes.Account
		updated.Category = changes.Category
		updated.OccurredAt = changes.OccurredAt
		updated.Message = changes.Message
		updated.BalanceAfter = next
		return tx.Save(&updated).Error
	})
	if err != nil {
		config.LogError(e.logger, "workflow", "Edit", "edit transaction", id, err)
		return nil, err
	}

	e.notifier.Notify(ctx, TopicBalancesChanged, TopicTransactionsChanged)
	return &updated, nil
}
