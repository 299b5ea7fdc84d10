package main

import (
	"context"
	"flag"
	"log"
	"strings"

	"studymate-be/internal/bootstrap"
	"studymate-be/internal/config"
	"studymate-be/pkg/database"

	"gorm.io/gorm"
)

// Walks every locally registered study session, compares the local, cache and remote tiers
// and re-upserts what the remote store is missing.
func main() {
	only := flag.String("session", "", "check a single study session")
	flag.Parse()

	cfg := config.Load()

	var db *gorm.DB
	if cfg.Database.Connection != "" {
		gormDB, err := database.NewGormDBFromDSN(cfg.Database.Connection)
		if err != nil {
			log.Fatal("Error: Failed to connect to database:", err)
		}
		db = gormDB
	}

	container, err := bootstrap.NewContainer(db, cfg)
	if err != nil {
		log.Fatalf("Error: bootstrap failed: %v", err)
	}
	defer container.Close()

	sessions := container.VectorStore.Stats().Sessions
	if *only != "" {
		sessions = []string{*only}
	}

	log.Printf("Checking %d study sessions", len(sessions))
	inconsistent := 0
	for i, session := range sessions {
		report, err := container.VectorStore.Reconcile(context.Background(), session)
		log.Println(strings.Repeat("-", 50))
		if err != nil {
			log.Printf("[%d] %s: %v", i+1, session, err)
			inconsistent++
			continue
		}
		log.Printf("[%d] %s: %d chunks", i+1, session, report.Chunks)
		if report.Consistent() {
			log.Printf("    consistent")
			continue
		}
		inconsistent++
		log.Printf("    missing local:  %v", report.MissingLocal)
		log.Printf("    missing cache:  %v", report.MissingCache)
		log.Printf("    missing remote: %v", report.MissingRemote)
		log.Printf("    repaired:       %v", report.Repaired)
		if report.RepairErr != nil {
			log.Printf("    repair error:   %v", report.RepairErr)
		}
	}

	log.Printf("Done: %d of %d sessions needed attention", inconsistent, len(sessions))
}
