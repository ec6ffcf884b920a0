package workflow

import (
	"context"

	"github.com/mulyaapp/ledger_backend/config"
	"github.com/mulyaapp/ledger_backend/models"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// PlanEngine manages scheduled pay/receive plans. Completion converts a
// plan into a real transaction through the same atomic step the ledger
// engine uses.
type PlanEngine struct {
	db       *gorm.DB
	logger   *logrus.Logger
	notifier *Notifier
}

func NewPlanEngine(db *gorm.DB, logger *logrus.Logger, notifier *Notifier) *PlanEngine {
	return &PlanEngine{db: db, logger: logger, notifier: notifier}
}

func (e *PlanEngine) AddPlan(ctx context.Context, input *models.NewPlan) (*models.Plan, error) {
	if err := input.Validate(); err != nil {
		return nil, err
	}
	plan := models.Plan{
		Title:     input.Title,
		Amount:    input.Amount,
		Account:   input.Account,
		Category:  input.Category,
		Direction: input.Direction,
		DueDate:   input.DueDate,
		Status:    models.PlanStatusPending,
	}
	if err := e.db.WithContext(ctx).Create(&plan).Error; err != nil {
		config.LogError(e.logger, "workflow", "AddPlan", "create plan", input, err)
		return nil, err
	}
	e.notifier.Notify(ctx, TopicPlansChanged)
	return &plan, nil
}

// CompletePlan flips a PENDING plan to COMPLETED and applies its
// transaction, atomically. Completion is one-way: a plan already completed
// (or completed concurrently) yields ErrAlreadyCompleted and no changes.
func (e *PlanEngine) CompletePlan(ctx context.Context, planId int, policy MutationPolicy) (*models.Transaction, error) {
	ctx, span := tracer.Start(ctx, "PlanEngine.CompletePlan")
	defer span.End()

	var created models.Transaction
	err := e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		plan, err := models.GetPlan(tx, planId)
		if err != nil {
			return err
		}

		// Guarding on status in the UPDATE makes the PENDING->COMPLETED
		// flip first-wins under concurrency.
		res := tx.Model(&models.Plan{}).
			Where("id = ? AND status = ?", planId, models.PlanStatusPending).
			Update("status", models.PlanStatusCompleted)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return models.ErrAlreadyCompleted
		}

		input := &models.NewTransaction{
			Title:    "Plan Completed: " + plan.Title,
			Amount:   plan.Amount,
			Account:  plan.Account,
			Category: plan.Category,
			Kind:     plan.Direction.TransactionKind(),
		}
		return applyTx(tx, input, policy, &created)
	})
	if err != nil {
		config.LogError(e.logger, "workflow", "CompletePlan", "complete plan", planId, err)
		return nil, err
	}

	e.notifier.Notify(ctx, TopicPlansChanged, TopicBalancesChanged, TopicTransactionsChanged)
	return &created, nil
}

// UpdatePlan edits a pending plan's details. Completed plans are frozen.
func (e *PlanEngine) UpdatePlan(ctx context.Context, planId int, input *models.NewPlan) (*models.Plan, error) {
	if err := input.Validate(); err != nil {
		return nil, err
	}
	var updated models.Plan
	err := e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		plan, err := models.GetPlan(tx, planId)
		if err != nil {
			return err
		}
		if plan.Status == models.PlanStatusCompleted {
			return models.ErrAlreadyCompleted
		}
		plan.Title = input.Title
		plan.Amount = input.Amount
		plan.Account = input.Account
		plan.Category = input.Category
		plan.Direction = input.Direction
		plan.DueDate = input.DueDate
		if err := tx.Save(plan).Error; err != nil {
			return err
		}
		updated = *plan
		return nil
	})
	if err != nil {
		config.LogError(e.logger, "workflow", "UpdatePlan", "update plan", planId, err)
		return nil, err
	}
	e.notifier.Notify(ctx, TopicPlansChanged)
	return &updated, nil
}

// DeletePlan removes a plan. Deleting a completed plan does not touch the
// transaction it produced.
func (e *PlanEngine) DeletePlan(ctx context.Context, planId int) error {
	err := e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := models.GetPlan(tx, planId); err != nil {
			return err
		}
		return tx.Delete(&models.Plan{}, planId).Error
	})
	if err != nil {
		config.LogError(e.logger, "workflow", "DeletePlan", "delete plan", planId, err)
		return err
	}
	e.notifier.Notify(ctx, TopicPlansChanged)
	return nil
}
