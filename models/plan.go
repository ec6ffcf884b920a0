package models

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Plan is a scheduled future PAY/RECEIVE intent. PENDING to COMPLETED is
// one-way; completion is done by the ledger workflow, which also produces
// the plan's single transaction.
type Plan struct {
	ID        int             `gorm:"primary_key" json:"id"`
	Title     string          `gorm:"size:255;not null" json:"title"`
	Amount    decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"amount"`
	Account   AccountType     `gorm:"size:10;not null" json:"account"`
	Category  string          `gorm:"size:100" json:"category"`
	Direction PlanDirection   `gorm:"size:10;not null" json:"direction"`
	DueDate   *time.Time      `json:"due_date"`
	Status    PlanStatus      `gorm:"size:12;index;not null" json:"status"`
	CreatedAt time.Time       `gorm:"autoCreateTime" json:"created_at"`
}

func (p Plan) GetId() int {
	return p.ID
}

type NewPlan struct {
	Title     string          `json:"title" validate:"required"`
	Amount    decimal.Decimal `json:"amount"`
	Account   AccountType     `json:"account" validate:"required"`
	Category  string          `json:"category"`
	Direction PlanDirection   `json:"direction" validate:"required"`
	DueDate   *time.Time      `json:"due_date"`
}

func (in *NewPlan) Validate() error {
	if err := validate.Struct(in); err != nil {
		return err
	}
	if !in.Account.Valid() {
		return errors.New("account must be BANK or CASH")
	}
	if !in.Direction.Valid() {
		return errors.New("direction must be PAY or RECEIVE")
	}
	if !in.Amount.IsPositive() {
		return errors.New("amount must be greater than zero")
	}
	return nil
}

func GetPlan(db *gorm.DB, id int) (*Plan, error) {
	var plan Plan
	err := db.First(&plan, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrRecordNotFound
	}
	if err != nil {
		return nil, err
	}
	return &plan, nil
}

// ListPendingPlans returns open plans, soonest due first; undated plans
// sort last.
func ListPendingPlans(db *gorm.DB) ([]Plan, error) {
	var plans []Plan
	err := db.Where("status = ?", PlanStatusPending).
		Order("due_date IS NULL, due_date ASC").
		Find(&plans).Error
	if err != nil {
		return nil, err
	}
	return plans, nil
}

func ListAllPlans(db *gorm.DB) ([]Plan, error) {
	var plans []Plan
	if err := db.Order("created_at ASC").Find(&plans).Error; err != nil {
		return nil, err
	}
	return plans, nil
}
