package models

import "github.com/shopspring/decimal"

type AccountType string

const (
	AccountTypeBank AccountType = "BANK"
	AccountTypeCash AccountType = "CASH"
)

func (t AccountType) Valid() bool {
	return t == AccountTypeBank || t == AccountTypeCash
}

type TransactionKind string

const (
	TransactionKindExpense TransactionKind = "EXPENSE"
	TransactionKindIncome  TransactionKind = "INCOME"
)

func (k TransactionKind) Valid() bool {
	return k == TransactionKindExpense || k == TransactionKindIncome
}

// Delta returns the signed balance impact of an amount under this kind.
func (k TransactionKind) Delta(amount decimal.Decimal) decimal.Decimal {
	if k == TransactionKindExpense {
		return amount.Neg()
	}
	return amount
}

type PlanDirection string

const (
	PlanDirectionPay     PlanDirection = "PAY"
	PlanDirectionReceive PlanDirection = "RECEIVE"
)

func (d PlanDirection) Valid() bool {
	return d == PlanDirectionPay || d == PlanDirectionReceive
}

// TransactionKind maps a completed plan onto the transaction it produces.
func (d PlanDirection) TransactionKind() TransactionKind {
	if d == PlanDirectionPay {
		return TransactionKindExpense
	}
	return TransactionKindIncome
}

type PlanStatus string

const (
	PlanStatusPending   PlanStatus = "PENDING"
	PlanStatusCompleted PlanStatus = "COMPLETED"
)
