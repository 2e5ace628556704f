package main

import (
	"encoding/json"
	"flag"
	"log"
	"os"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/remembrance/memorial-backend/internal/config"
	"github.com/remembrance/memorial-backend/internal/migration"
	pkglogger "github.com/remembrance/memorial-backend/pkg/logger"
)

func main() {
	configPath := flag.String("config", "configs/config.local.yaml", "config file path")
	dryRun := flag.Bool("dry-run", false, "report legacy rows without rewriting them")
	skipNormalize := flag.Bool("schema-only", false, "only create/update tables")
	verbose := flag.Bool("verbose", false, "verbose SQL logging")
	flag.Parse()

	files := config.LoadDotEnv(".")
	pkglogger.InitStructured(os.Getenv("APP_ENV"))
	if len(files) == 0 {
		pkglogger.Info("No .env file found, using environment variables")
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logLevel := gormlogger.Warn
	if *verbose {
		logLevel = gormlogger.Info
	}

	db, err := gorm.Open(mysql.Open(cfg.Database.GetDSN()), &gorm.Config{
		Logger: gormlogger.Default.LogMode(logLevel),
	})
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		log.Fatalf("Failed to get underlying DB: %v", err)
	}
	defer sqlDB.Close()

	if *dryRun {
		pkglogger.Info("[dry-run] schema changes are skipped")
	} else {
		if err := migration.Run(db); err != nil {
			log.Fatalf("Schema migration failed: %v", err)
		}
		pkglogger.Info("Schema is up to date")
	}

	if *skipNormalize {
		return
	}

	report, err := migration.NormalizeLegacy(db, *dryRun)
	if err != nil {
		log.Fatalf("Legacy normalization failed: %v", err)
	}

	out, _ := json.MarshalIndent(report, "", "  ")
	os.Stdout.Write(append(out, '\n'))

	if len(report.UnknownStatusIDs) > 0 {
		pkglogger.Warn("%d obituaries have an unknown status and need manual review", len(report.UnknownStatusIDs))
		sqlDB.Close()
		os.Exit(2)
	}
}
