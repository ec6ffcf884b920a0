package api

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/mulyaapp/ledger_backend/models"
	"github.com/mulyaapp/ledger_backend/utils"
	"github.com/mulyaapp/ledger_backend/workflow"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

const maxProfileImageUpload = 10 << 20 // 10 MiB

// Handlers wires the engines to the REST surface.
type Handlers struct {
	db     *gorm.DB
	logger *logrus.Logger
	ledger *workflow.LedgerEngine
	plans  *workflow.PlanEngine
	backup *workflow.BackupEngine
	prefs  utils.PreferenceStore
	blobs  utils.BlobStore
}

func NewHandlers(db *gorm.DB, logger *logrus.Logger, ledger *workflow.LedgerEngine, plans *workflow.PlanEngine, backup *workflow.BackupEngine, prefs utils.PreferenceStore, blobs utils.BlobStore) *Handlers {
	return &Handlers{db: db, logger: logger, ledger: ledger, plans: plans, backup: backup, prefs: prefs, blobs: blobs}
}

// Register mounts every route under the given router group.
func (h *Handlers) Register(r *gin.RouterGroup) {
	r.GET("/balances", h.listBalances)
	r.POST("/balances/initial", h.setInitialBalance)

	r.POST("/transactions", h.createTransaction)
	r.GET("/transactions", h.listTransactions)
	r.GET("/transactions/recent", h.recentTransactions)
	r.GET("/transactions/:id", h.getTransaction)
	r.PUT("/transactions/:id", h.editTransaction)
	r.DELETE("/transactions/:id", h.deleteTransaction)
	r.POST("/transactions/undo", h.undoDelete)

	r.GET("/history", h.history)
	r.GET("/trend", h.trend)
	r.GET("/summary", h.summary)
	r.GET("/breakdown", h.breakdown)

	r.GET("/categories", h.listCategories)
	r.POST("/categories", h.createCategory)

	r.GET("/plans", h.listPlans)
	r.POST("/plans", h.createPlan)
	r.PUT("/plans/:id", h.updatePlan)
	r.DELETE("/plans/:id", h.deletePlan)
	r.POST("/plans/:id/complete", h.completePlan)

	r.GET("/profile", h.getProfile)
	r.PUT("/profile", h.putProfile)
	r.POST("/profile/image", h.uploadProfileImage)

	r.GET("/backup", h.snapshot)
	r.POST("/restore", h.restore)

	r.GET("/preferences", h.listPreferences)
	r.PUT("/preferences/:key", h.setPreference)
}

// policy resolves the negative-balance policy once per request.
func (h *Handlers) policy(c *gin.Context) workflow.MutationPolicy {
	return workflow.MutationPolicy{
		AllowNegative: utils.AllowNegativeBalance(c.Request.Context(), h.prefs),
	}
}

// respondError maps domain errors onto HTTP statuses.
func respondError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, models.ErrRecordNotFound):
		status = http.StatusNotFound
	case errors.Is(err, models.ErrInsufficientBalance),
		errors.Is(err, models.ErrAlreadyCompleted):
		status = http.StatusConflict
	case errors.Is(err, models.ErrInvalidRange),
		errors.Is(err, models.ErrForeignDocument),
		errors.Is(err, models.ErrNothingToUndo):
		status = http.StatusBadRequest
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

func pathId(c *gin.Context) (int, bool) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return 0, false
	}
	return id, true
}

func (h *Handlers) listBalances(c *gin.Context) {
	balances, err := models.ListBalances(h.db)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, balances)
}

func (h *Handlers) setInitialBalance(c *gin.Context) {
	var body struct {
		Account models.AccountType `json:"account"`
		Amount  decimal.Decimal    `json:"amount"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if !body.Account.Valid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "account must be BANK or CASH"})
		return
	}
	balance, err := models.SetInitialBalance(h.db, body.Account, body.Amount)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, balance)
}

func (h *Handlers) createTransaction(c *gin.Context) {
	var input models.NewTransaction
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	created, err := h.ledger.Apply(c.Request.Context(), &input, h.policy(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, created)
}

// filterFromQuery parses start/end (2006-01-02), kind and category query
// params into a transaction filter.
func filterFromQuery(c *gin.Context) (models.TransactionFilter, error) {
	var filter models.TransactionFilter
	if raw := c.Query("start"); raw != "" {
		t, err := time.ParseInLocation("2006-01-02", raw, time.Local)
		if err != nil {
			return filter, err
		}
		filter.Start = &t
	}
	if raw := c.Query("end"); raw != "" {
		t, err := time.ParseInLocation("2006-01-02", raw, time.Local)
		if err != nil {
			return filter, err
		}
		filter.End = &t
	}
	if raw := c.Query("kind"); raw != "" {
		kind := models.TransactionKind(raw)
		if !kind.Valid() {
			return filter, errors.New("kind must be EXPENSE or INCOME")
		}
		filter.Kinds = []models.TransactionKind{kind}
	}
	filter.Category = c.Query("category")
	return filter, nil
}

func (h *Handlers) listTransactions(c *gin.Context) {
	filter, err := filterFromQuery(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	transactions, err := models.ListTransactions(h.db, filter)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, transactions)
}

func (h *Handlers) recentTransactions(c *gin.Context) {
	limit, _ := strconv.Atoi(c.Query("limit"))
	transactions, err := models.RecentTransactions(h.db, limit)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, transactions)
}

func (h *Handlers) getTransaction(c *gin.Context) {
	id, ok := pathId(c)
	if !ok {
		return
	}
	transaction, err := models.GetTransaction(h.db, id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, transaction)
}

func (h *Handlers) editTransaction(c *gin.Context) {
	id, ok := pathId(c)
	if !ok {
		return
	}
	var changes models.TransactionEdit
	if err := c.ShouldBindJSON(&changes); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	updated, err := h.ledger.Edit(c.Request.Context(), id, &changes, h.policy(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, updated)
}

func (h *Handlers) deleteTransaction(c *gin.Context) {
	id, ok := pathId(c)
	if !ok {
		return
	}
	if err := h.ledger.Delete(c.Request.Context(), id); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": id})
}

func (h *Handlers) undoDelete(c *gin.Context) {
	restored, err := h.ledger.UndoDelete(c.Request.Context(), h.policy(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, restored)
}

func (h *Handlers) history(c *gin.Context) {
	filter, err := filterFromQuery(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	transactions, err := models.ListTransactions(h.db, filter)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, models.GroupTransactionsByDay(transactions))
}

func (h *Handlers) trend(c *gin.Context) {
	start, err := time.ParseInLocation("2006-01-02", c.Query("start"), time.Local)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "start must be YYYY-MM-DD"})
		return
	}
	end, err := time.ParseInLocation("2006-01-02", c.Query("end"), time.Local)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "end must be YYYY-MM-DD"})
		return
	}
	series, err := models.Trend(h.db, start, end)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, series)
}

func (h *Handlers) summary(c *gin.Context) {
	filter, err := filterFromQuery(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	start, end, all, err := filter.Resolve()
	if err != nil {
		respondError(c, err)
		return
	}
	if all {
		start = time.Time{}
		end = time.Now().AddDate(100, 0, 0)
	}
	expense, err := models.SumByKind(h.db, models.TransactionKindExpense, start, end)
	if err != nil {
		respondError(c, err)
		return
	}
	income, err := models.SumByKind(h.db, models.TransactionKindIncome, start, end)
	if err != nil {
		respondError(c, err)
		return
	}
	todayExpense, err := models.TodayTotalExpense(h.db, time.Now())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"expense":       expense,
		"income":        income,
		"net":           income.Sub(expense),
		"today_expense": todayExpense,
	})
}

func (h *Handlers) breakdown(c *gin.Context) {
	start, err := time.ParseInLocation("2006-01-02", c.Query("start"), time.Local)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "start must be YYYY-MM-DD"})
		return
	}
	end, err := time.ParseInLocation("2006-01-02", c.Query("end"), time.Local)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "end must be YYYY-MM-DD"})
		return
	}
	sums, err := models.CategoryBreakdown(h.db, start, end)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, sums)
}

func (h *Handlers) listCategories(c *gin.Context) {
	categories, err := models.ListCategories(h.db)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, categories)
}

func (h *Handlers) createCategory(c *gin.Context) {
	var body struct {
		Name string `json:"name"`
		Icon string `json:"icon"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	category, err := models.CreateCategory(h.db, body.Name, body.Icon)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, category)
}

func (h *Handlers) listPlans(c *gin.Context) {
	var (
		plans []models.Plan
		err   error
	)
	if c.Query("status") == "all" {
		plans, err = models.ListAllPlans(h.db)
	} else {
		plans, err = models.ListPendingPlans(h.db)
	}
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, plans)
}

func (h *Handlers) createPlan(c *gin.Context) {
	var input models.NewPlan
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	plan, err := h.plans.AddPlan(c.Request.Context(), &input)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, plan)
}

func (h *Handlers) updatePlan(c *gin.Context) {
	id, ok := pathId(c)
	if !ok {
		return
	}
	var input models.NewPlan
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	plan, err := h.plans.UpdatePlan(c.Request.Context(), id, &input)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, plan)
}

func (h *Handlers) deletePlan(c *gin.Context) {
	id, ok := pathId(c)
	if !ok {
		return
	}
	if err := h.plans.DeletePlan(c.Request.Context(), id); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": id})
}

func (h *Handlers) completePlan(c *gin.Context) {
	id, ok := pathId(c)
	if !ok {
		return
	}
	created, err := h.plans.CompletePlan(c.Request.Context(), id, h.policy(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, created)
}

func (h *Handlers) getProfile(c *gin.Context) {
	profile, err := models.GetProfile(h.db)
	if err != nil {
		respondError(c, err)
		return
	}
	if profile == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "profile not set up"})
		return
	}
	c.JSON(http.StatusOK, profile)
}

func (h *Handlers) putProfile(c *gin.Context) {
	var profile models.Profile
	if err := c.ShouldBindJSON(&profile); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := models.UpsertProfile(h.db, &profile); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, profile)
}

func (h *Handlers) uploadProfileImage(c *gin.Context) {
	if h.blobs == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "blob storage is not configured"})
		return
	}
	data, err := io.ReadAll(io.LimitReader(c.Request.Body, maxProfileImageUpload))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	normalized, err := utils.NormalizeProfileImage(data)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unreadable image: " + err.Error()})
		return
	}
	name := "profile_" + uuid.NewString() + ".jpg"
	location, err := h.blobs.Write(c.Request.Context(), name, normalized)
	if err != nil {
		respondError(c, err)
		return
	}

	profile, err := models.GetProfile(h.db)
	if err != nil {
		respondError(c, err)
		return
	}
	if profile == nil {
		profile = &models.Profile{}
	}
	profile.ImageURI = location
	if err := models.UpsertProfile(h.db, profile); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"image_uri": location})
}

func (h *Handlers) snapshot(c *gin.Context) {
	doc, err := h.backup.Snapshot(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	name := workflow.BackupFileName(time.Now())
	c.Header("Content-Disposition", `attachment; filename="`+name+`"`)
	c.JSON(http.StatusOK, doc)
}

func (h *Handlers) restore(c *gin.Context) {
	var doc workflow.BackupDocument
	if err := c.ShouldBindJSON(&doc); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	report, err := h.backup.Restore(c.Request.Context(), &doc)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}

func (h *Handlers) listPreferences(c *gin.Context) {
	if h.prefs == nil {
		c.JSON(http.StatusOK, gin.H{})
		return
	}
	values, err := h.prefs.All(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, values)
}

func (h *Handlers) setPreference(c *gin.Context) {
	if h.prefs == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "preference store is not configured"})
		return
	}
	key := c.Param("key")
	var value utils.PreferenceValue
	if err := c.ShouldBindJSON(&value); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := h.prefs.Set(c.Request.Context(), key, value); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{key: value})
}
