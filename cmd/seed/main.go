// Seed installs the schema, the stock category set and optional initial
// balances. It targets MySQL by default, or a SQLite file via -sqlite.
package main

import (
	"flag"
	"log"

	"github.com/joho/godotenv"
	"github.com/mulyaapp/ledger_backend/config"
	"github.com/mulyaapp/ledger_backend/models"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

func main() {
	sqlitePath := flag.String("sqlite", "", "seed a SQLite file instead of MySQL")
	bank := flag.String("bank", "", "initial BANK balance, e.g. 1000.00")
	cash := flag.String("cash", "", "initial CASH balance, e.g. 250.00")
	flag.Parse()

	godotenv.Load()

	var (
		db  *gorm.DB
		err error
	)
	if *sqlitePath != "" {
		db, err = config.OpenSQLite(*sqlitePath)
		if err != nil {
			log.Fatalf("open sqlite: %v", err)
		}
	} else {
		db = config.ConnectDatabaseWithRetry()
	}

	if err := models.AutoMigrate(db); err != nil {
		log.Fatalf("migrate: %v", err)
	}
	if err := models.SeedDefaultCategories(db); err != nil {
		log.Fatalf("seed categories: %v", err)
	}

	seedBalance(db, models.AccountTypeBank, *bank)
	seedBalance(db, models.AccountTypeCash, *cash)

	log.Println("seed complete")
}

func seedBalance(db *gorm.DB, account models.AccountType, raw string) {
	if raw == "" {
		return
	}
	amount, err := decimal.NewFromString(raw)
	if err != nil {
		log.Fatalf("parse %s amount %q: %v", account, raw, err)
	}
	if _, err := models.SetInitialBalance(db, account, amount); err != nil {
		log.Fatalf("set %s balance: %v", account, err)
	}
	log.Printf("%s balance set to %s", account, amount)
}
