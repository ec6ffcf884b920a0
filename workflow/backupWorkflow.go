package workflow

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/bsm/redislock"
	"github.com/google/uuid"
	"github.com/mulyaapp/ledger_backend/config"
	"github.com/mulyaapp/ledger_backend/models"
	"github.com/mulyaapp/ledger_backend/utils"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

const (
	// BackupVersion is the current document schema version.
	BackupVersion = 1

	// AppTag marks documents produced by this application. Restore refuses
	// documents carrying any other tag.
	AppTag = "Mulya"

	restoreLockKey = "ledger:restore"
	restoreLockTTL = 2 * time.Minute
)

// BackupDocument is the portable whole-store snapshot. All entity families
// plus the preference set travel in one JSON document; the profile image is
// embedded base64 so the document is self-contained.
type BackupDocument struct {
	Version          int                              `json:"version"`
	CreatedAt        time.Time                        `json:"created_at"`
	AppTag           string                           `json:"app_tag"`
	Balances         []models.Balance                 `json:"balances"`
	Transactions     []models.Transaction             `json:"transactions"`
	Categories       []models.Category                `json:"categories"`
	Plans            []models.Plan                    `json:"plans"`
	Profile          *models.Profile                  `json:"profile,omitempty"`
	ProfileImageBlob string                           `json:"profile_image_blob,omitempty"`
	Preferences      map[string]utils.PreferenceValue `json:"preferences"`
}

// RestoreReport surfaces non-fatal outcomes of a completed restore.
type RestoreReport struct {
	PreferenceWarning bool   `json:"preference_warning"`
	ProfileImageURI   string `json:"profile_image_uri,omitempty"`
}

// BackupEngine snapshots the whole store into a document and restores a
// document over the whole store.
type BackupEngine struct {
	db       *gorm.DB
	prefs    utils.PreferenceStore
	blobs    utils.BlobStore
	locker   *redislock.Client
	logger   *logrus.Logger
	notifier *Notifier
}

func NewBackupEngine(db *gorm.DB, prefs utils.PreferenceStore, blobs utils.BlobStore, locker *redislock.Client, logger *logrus.Logger, notifier *Notifier) *BackupEngine {
	return &BackupEngine{db: db, prefs: prefs, blobs: blobs, locker: locker, logger: logger, notifier: notifier}
}

// Snapshot captures every entity family, the preference set and the profile
// image into one document. An unreadable image is tolerated: the snapshot
// simply ships without it.
func (e *BackupEngine) Snapshot(ctx context.Context) (*BackupDocument, error) {
	ctx, span := tracer.Start(ctx, "BackupEngine.Snapshot")
	defer span.End()

	doc := &BackupDocument{
		Version:     BackupVersion,
		CreatedAt:   time.Now(),
		AppTag:      AppTag,
		Preferences: map[string]utils.PreferenceValue{},
	}

	var err error
	if doc.Balances, err = models.ListBalances(e.db); err != nil {
		return nil, err
	}
	if doc.Transactions, err = models.ListTransactions(e.db, models.TransactionFilter{}); err != nil {
		return nil, err
	}
	if doc.Categories, err = models.ListCategories(e.db); err != nil {
		return nil, err
	}
	if doc.Plans, err = models.ListAllPlans(e.db); err != nil {
		return nil, err
	}
	if doc.Profile, err = models.GetProfile(e.db); err != nil {
		return nil, err
	}

	if e.prefs != nil {
		prefs, err := e.prefs.All(ctx)
		if err != nil {
			return nil, err
		}
		doc.Preferences = prefs
	}

	if doc.Profile != nil && doc.Profile.ImageURI != "" && e.blobs != nil {
		data, err := e.blobs.Read(ctx, doc.Profile.ImageURI)
		if err != nil {
			config.LogError(e.logger, "workflow", "Snapshot", "read profile image", doc.Profile.ImageURI, err)
		} else {
			doc.ProfileImageBlob = base64.StdEncoding.EncodeToString(data)
		}
	}

	return doc, nil
}

// Restore replaces the whole store with the document's contents. The
// document's app tag must match; a foreign document leaves everything
// untouched. The profile image is written to a fresh blob location before
// the database transaction so a failed write aborts the restore cleanly.
// Preferences are applied after the commit; a failure there is reported,
// not rolled back.
func (e *BackupEngine) Restore(ctx context.Context, doc *BackupDocument) (*RestoreReport, error) {
	ctx, span := tracer.Start(ctx, "BackupEngine.Restore")
	defer span.End()

	if doc.AppTag != AppTag {
		return nil, models.ErrForeignDocument
	}
	if doc.Version > BackupVersion {
		return nil, fmt.Errorf("backup document version %d is newer than supported version %d", doc.Version, BackupVersion)
	}

	// Serialize restores across instances. Best effort: without redis the
	// restore proceeds unguarded.
	if e.locker != nil {
		lock, err := e.locker.Obtain(ctx, restoreLockKey, restoreLockTTL, nil)
		if err != nil {
			if err == redislock.ErrNotObtained {
				return nil, fmt.Errorf("another restore is in progress")
			}
			config.LogError(e.logger, "workflow", "Restore", "obtain restore lock", restoreLockKey, err)
		} else {
			defer lock.Release(context.WithoutCancel(ctx))
		}
	}

	report := &RestoreReport{}

	profile := doc.Profile
	if profile != nil && doc.ProfileImageBlob != "" && e.blobs != nil {
		data, err := base64.StdEncoding.DecodeString(doc.ProfileImageBlob)
		if err != nil {
			return nil, fmt.Errorf("decode profile image: %w", err)
		}
		name := fmt.Sprintf("restored_profile_%s.jpg", uuid.NewString())
		location, err := e.blobs.Write(ctx, name, data)
		if err != nil {
			return nil, fmt.Errorf("write profile image: %w", err)
		}
		copied := *profile
		copied.ImageURI = location
		profile = &copied
		report.ProfileImageURI = location
	}

	err := e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		wipe := tx.Session(&gorm.Session{AllowGlobalUpdate: true})
		for _, model := range []any{
			&models.Transaction{}, &models.Plan{}, &models.Balance{},
			&models.Category{}, &models.Profile{},
		} {
			if err := wipe.Delete(model).Error; err != nil {
				return err
			}
		}

		if len(doc.Balances) > 0 {
			if err := tx.Create(&doc.Balances).Error; err != nil {
				return err
			}
		}
		if len(doc.Transactions) > 0 {
			if err := tx.Create(&doc.Transactions).Error; err != nil {
				return err
			}
		}
		if len(doc.Categories) > 0 {
			if err := tx.Create(&doc.Categories).Error; err != nil {
				return err
			}
		}
		if len(doc.Plans) > 0 {
			if err := tx.Create(&doc.Plans).Error; err != nil {
				return err
			}
		}
		if profile != nil {
			if err := tx.Create(profile).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		config.LogError(e.logger, "workflow", "Restore", "restore document", doc.CreatedAt, err)
		return nil, err
	}

	if e.prefs != nil {
		if err := e.prefs.Replace(ctx, doc.Preferences); err != nil {
			config.LogError(e.logger, "workflow", "Restore", "replace preferences", nil, err)
			report.PreferenceWarning = true
		}
	}

	e.notifier.Notify(ctx,
		TopicStoreRestored, TopicBalancesChanged, TopicTransactionsChanged,
		TopicPlansChanged, TopicCategoriesChanged, TopicProfileChanged,
		TopicPreferencesChanged)
	return report, nil
}

// WriteDocument serializes a document to a file.
func WriteDocument(doc *BackupDocument, path string) error {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// ReadDocument parses a document from a file.
func ReadDocument(path string) (*BackupDocument, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var doc BackupDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	if doc.Preferences == nil {
		doc.Preferences = map[string]utils.PreferenceValue{}
	}
	return &doc, nil
}

// BackupFileName names a snapshot file the way the mobile app does.
func BackupFileName(now time.Time) string {
	return now.Format("mulya_backup_2006_01_02_15_04.json")
}
