package workflow

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/mulyaapp/ledger_backend/config"
	"github.com/mulyaapp/ledger_backend/models"
	"github.com/mulyaapp/ledger_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

func newTestBackup(t *testing.T, prefs utils.PreferenceStore) (*BackupEngine, *gorm.DB, utils.BlobStore) {
	t.Helper()
	db := newTestDB(t)
	logger := config.NewLogger()
	blobs := &utils.FileBlobStore{Dir: t.TempDir()}
	engine := NewBackupEngine(db, prefs, blobs, nil, logger, NewNotifier(nil, logger))
	return engine, db, blobs
}

// tiny but valid 1x1 JPEG-ish payload; the blob store does not inspect it.
var imageBytes = []byte{0xff, 0xd8, 0xff, 0xdb, 0x00, 0x01, 0xff, 0xd9}

func populateStore(t *testing.T, ctx context.Context, db *gorm.DB, blobs utils.BlobStore, prefs utils.PreferenceStore) string {
	t.Helper()

	logger := config.NewLogger()
	ledger := NewLedgerEngine(db, logger, NewNotifier(nil, logger))
	permissive := MutationPolicy{AllowNegative: true}

	if _, err := models.SetInitialBalance(db, models.AccountTypeBank, decimal.NewFromInt(1000)); err != nil {
		t.Fatalf("set bank: %v", err)
	}
	if _, err := ledger.Apply(ctx, &models.NewTransaction{
		Title:      "Salary",
		Amount:     decimal.NewFromInt(500),
		Account:    models.AccountTypeBank,
		Kind:       models.TransactionKindIncome,
		OccurredAt: time.Date(2025, 5, 1, 9, 0, 0, 0, time.Local),
	}, permissive); err != nil {
		t.Fatalf("apply: %v", err)
	}
	if err := models.SeedDefaultCategories(db); err != nil {
		t.Fatalf("seed categories: %v", err)
	}
	if _, err := models.CreateCategory(db, "Pets", "ic_pets"); err != nil {
		t.Fatalf("create category: %v", err)
	}
	plans := NewPlanEngine(db, logger, NewNotifier(nil, logger))
	if _, err := plans.AddPlan(ctx, &models.NewPlan{
		Title:     "Insurance",
		Amount:    decimal.NewFromInt(200),
		Account:   models.AccountTypeBank,
		Direction: models.PlanDirectionPay,
	}); err != nil {
		t.Fatalf("add plan: %v", err)
	}

	location, err := blobs.Write(ctx, "profile_original.jpg", imageBytes)
	if err != nil {
		t.Fatalf("write blob: %v", err)
	}
	if err := models.UpsertProfile(db, &models.Profile{Name: "Asha", ImageURI: location}); err != nil {
		t.Fatalf("upsert profile: %v", err)
	}

	if prefs != nil {
		if err := prefs.Set(ctx, utils.PrefKeyCurrencySymbol, utils.StringPreference("₹")); err != nil {
			t.Fatalf("set pref: %v", err)
		}
		if err := prefs.Set(ctx, utils.PrefKeyAllowNegativeBalance, utils.BoolPreference(false)); err != nil {
			t.Fatalf("set pref: %v", err)
		}
	}
	return location
}

func TestSnapshotRestoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	prefs := utils.NewMemoryPreferenceStore()
	engine, db, blobs := newTestBackup(t, prefs)
	originalImage := populateStore(t, ctx, db, blobs, prefs)

	doc, err := engine.Snapshot(ctx)
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	if doc.AppTag != AppTag || doc.Version != BackupVersion {
		t.Fatalf("doc tag/version = %s/%d", doc.AppTag, doc.Version)
	}
	if doc.ProfileImageBlob == "" {
		t.Fatal("snapshot dropped the profile image")
	}

	// drift the store so the restore has something to overwrite
	logger := config.NewLogger()
	ledger := NewLedgerEngine(db, logger, NewNotifier(nil, logger))
	if _, err := ledger.Apply(ctx, &models.NewTransaction{
		Title:   "Post-snapshot noise",
		Amount:  decimal.NewFromInt(77),
		Account: models.AccountTypeCash,
		Kind:    models.TransactionKindExpense,
	}, MutationPolicy{AllowNegative: true}); err != nil {
		t.Fatalf("apply noise: %v", err)
	}

	report, err := engine.Restore(ctx, doc)
	if err != nil {
		t.Fatalf("restore: %v", err)
	}
	if report.PreferenceWarning {
		t.Error("unexpected preference warning")
	}
	if report.ProfileImageURI == "" || report.ProfileImageURI == originalImage {
		t.Errorf("restored image location = %q, want a fresh location", report.ProfileImageURI)
	}

	transactions, err := models.ListTransactions(db, models.TransactionFilter{})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(transactions) != 1 || transactions[0].Title != "Salary" {
		t.Errorf("transactions = %+v, want the single snapshot row", transactions)
	}
	balance, err := models.GetBalance(db, models.AccountTypeBank)
	if err != nil {
		t.Fatalf("get balance: %v", err)
	}
	if !balance.Amount.Equal(decimal.NewFromInt(1500)) {
		t.Errorf("bank balance = %s, want 1500", balance.Amount)
	}
	if cash, _ := models.GetBalance(db, models.AccountTypeCash); cash != nil {
		t.Errorf("cash balance survived the restore: %+v", cash)
	}

	categories, err := models.ListCategories(db)
	if err != nil {
		t.Fatalf("categories: %v", err)
	}
	if len(categories) != 8 {
		t.Errorf("category count = %d, want 8", len(categories))
	}

	profile, err := models.GetProfile(db)
	if err != nil {
		t.Fatalf("profile: %v", err)
	}
	if profile == nil || profile.Name != "Asha" {
		t.Fatalf("profile = %+v", profile)
	}
	if profile.ImageURI != report.ProfileImageURI {
		t.Errorf("profile image uri = %q, want %q", profile.ImageURI, report.ProfileImageURI)
	}
	restoredImage, err := blobs.Read(ctx, profile.ImageURI)
	if err != nil {
		t.Fatalf("read restored image: %v", err)
	}
	if string(restoredImage) != string(imageBytes) {
		t.Error("restored image bytes differ")
	}

	values, err := prefs.All(ctx)
	if err != nil {
		t.Fatalf("prefs: %v", err)
	}
	if v := values[utils.PrefKeyCurrencySymbol]; v.Str != "₹" {
		t.Errorf("currency pref = %+v", v)
	}
	if utils.AllowNegativeBalance(ctx, prefs) {
		t.Error("restored policy pref lost")
	}
}

func TestRestoreRejectsForeignDocument(t *testing.T) {
	ctx := context.Background()
	prefs := utils.NewMemoryPreferenceStore()
	engine, db, blobs := newTestBackup(t, prefs)
	populateStore(t, ctx, db, blobs, prefs)

	doc, err := engine.Snapshot(ctx)
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	doc.AppTag = "SomeOtherApp"

	if _, err := engine.Restore(ctx, doc); !errors.Is(err, models.ErrForeignDocument) {
		t.Fatalf("err = %v, want ErrForeignDocument", err)
	}

	// nothing was touched
	transactions, err := models.ListTransactions(db, models.TransactionFilter{})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(transactions) != 1 {
		t.Errorf("transaction count = %d, want 1", len(transactions))
	}
	balance, err := models.GetBalance(db, models.AccountTypeBank)
	if err != nil {
		t.Fatalf("get balance: %v", err)
	}
	if !balance.Amount.Equal(decimal.NewFromInt(1500)) {
		t.Errorf("bank balance = %s, want unchanged 1500", balance.Amount)
	}
}

func TestRestoreRejectsNewerVersion(t *testing.T) {
	ctx := context.Background()
	engine, _, _ := newTestBackup(t, utils.NewMemoryPreferenceStore())
	doc := &BackupDocument{Version: BackupVersion + 1, AppTag: AppTag}
	if _, err := engine.Restore(ctx, doc); err == nil {
		t.Fatal("restore accepted a document from the future")
	}
}

// failingPreferenceStore reads fine but cannot be replaced.
type failingPreferenceStore struct {
	*utils.MemoryPreferenceStore
}

func (s *failingPreferenceStore) Replace(ctx context.Context, values map[string]utils.PreferenceValue) error {
	return errors.New("preference backend is down")
}

func TestRestorePreferenceFailureIsAWarning(t *testing.T) {
	ctx := context.Background()
	prefs := &failingPreferenceStore{utils.NewMemoryPreferenceStore()}
	engine, db, blobs := newTestBackup(t, prefs)
	populateStore(t, ctx, db, blobs, prefs)

	doc, err := engine.Snapshot(ctx)
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}

	report, err := engine.Restore(ctx, doc)
	if err != nil {
		t.Fatalf("restore: %v", err)
	}
	if !report.PreferenceWarning {
		t.Error("expected a preference warning")
	}

	// entities were still restored
	transactions, err := models.ListTransactions(db, models.TransactionFilter{})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(transactions) != 1 {
		t.Errorf("transaction count = %d, want 1", len(transactions))
	}
}

func TestBackupFileName(t *testing.T) {
	at := time.Date(2025, 7, 4, 16, 5, 0, 0, time.Local)
	if got := BackupFileName(at); got != "mulya_backup_2025_07_04_16_05.json" {
		t.Errorf("BackupFileName = %q", got)
	}
}
