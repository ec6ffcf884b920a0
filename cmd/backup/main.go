// Backup snapshots the store to a JSON file or restores one over it.
//
//	backup -out dir/            write a snapshot into dir/
//	backup -restore file.json   restore file.json over the store
package main

import (
	"context"
	"flag"
	"log"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"github.com/mulyaapp/ledger_backend/config"
	"github.com/mulyaapp/ledger_backend/models"
	"github.com/mulyaapp/ledger_backend/utils"
	"github.com/mulyaapp/ledger_backend/workflow"
	"gorm.io/gorm"
)

func main() {
	sqlitePath := flag.String("sqlite", "", "operate on a SQLite file instead of MySQL")
	outDir := flag.String("out", ".", "directory to write the snapshot into")
	restorePath := flag.String("restore", "", "restore this document instead of snapshotting")
	blobDir := flag.String("blobs", "blobs", "directory for profile image blobs")
	flag.Parse()

	godotenv.Load()
	logger := config.NewLogger()

	var (
		db  *gorm.DB
		err error
	)
	if *sqlitePath != "" {
		db, err = config.OpenSQLite(*sqlitePath)
		if err != nil {
			log.Fatalf("open sqlite: %v", err)
		}
		if err := models.AutoMigrate(db); err != nil {
			log.Fatalf("migrate: %v", err)
		}
	} else {
		db = config.ConnectDatabaseWithRetry()
	}

	rdb, locker := config.ConnectRedis()
	var prefs utils.PreferenceStore = utils.NewMemoryPreferenceStore()
	if rdb != nil {
		prefs = utils.NewRedisPreferenceStore(rdb)
	}
	blobs := &utils.FileBlobStore{Dir: *blobDir}

	engine := workflow.NewBackupEngine(db, prefs, blobs, locker, logger, workflow.NewNotifier(rdb, logger))
	ctx := context.Background()

	if *restorePath != "" {
		doc, err := workflow.ReadDocument(*restorePath)
		if err != nil {
			log.Fatalf("read document: %v", err)
		}
		report, err := engine.Restore(ctx, doc)
		if err != nil {
			log.Fatalf("restore: %v", err)
		}
		if report.PreferenceWarning {
			log.Println("restored with warning: preferences could not be applied")
		} else {
			log.Println("restore complete")
		}
		return
	}

	doc, err := engine.Snapshot(ctx)
	if err != nil {
		log.Fatalf("snapshot: %v", err)
	}
	path := filepath.Join(*outDir, workflow.BackupFileName(time.Now()))
	if err := workflow.WriteDocument(doc, path); err != nil {
		log.Fatalf("write document: %v", err)
	}
	log.Printf("snapshot written to %s", path)
}
