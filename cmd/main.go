package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/anbudportalen/tender-service/internal/blob"
	"github.com/anbudportalen/tender-service/internal/db"
	"github.com/anbudportalen/tender-service/internal/handlers"
	"github.com/anbudportalen/tender-service/internal/repository"
	"github.com/anbudportalen/tender-service/internal/router"
	"github.com/anbudportalen/tender-service/internal/router/config"
	"github.com/anbudportalen/tender-service/internal/services"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
)

func main() {
	cfg, err := config.LoadConfig(".")
	if err != nil {
		log.Fatal("cannot load config:", err)
	}

	runDBMigration(cfg.MigrationURL, cfg.PostgresConn)

	dbPool, err := db.InitDb(cfg)
	if err != nil {
		log.Fatalf("error initializing database: %v", err)
	}
	defer dbPool.Close()

	logger := log.New(os.Stdout, "INFO: ", log.LstdFlags)

	blobStore, err := blob.NewS3Storage(context.Background(), cfg)
	if err != nil {
		log.Fatalf("error initializing blob storage: %v", err)
	}

	tenderRepo := repository.NewPostgresTenderRepository(dbPool)
	bidRepo := repository.NewPostgresBidRepository(dbPool)
	documentRepo := repository.NewPostgresDocumentVersionRepository(dbPool)

	notifier := services.NewLogNotifier(logger)

	tenderService := services.NewTenderService(tenderRepo, blobStore, logger)
	bidService := services.NewBidService(bidRepo, tenderRepo, notifier, logger, cfg.StandstillDays)
	documentService := services.NewDocumentService(documentRepo, blobStore, logger)

	tenderHandler := handlers.NewTenderHandler(tenderService, logger, 5*time.Second)
	bidHandler := handlers.NewBidHandler(bidService, tenderService, logger, 5*time.Second)
	documentHandler := handlers.NewDocumentHandler(documentService, logger, 15*time.Second)

	routes := router.InitRoutes(tenderHandler, bidHandler, documentHandler)

	log.Printf("server is listening on %s...", cfg.ServerAddress)
	if err := http.ListenAndServe(cfg.ServerAddress, routes); err != nil {
		log.Fatalf("server failed: %v", err)
	}
}

func runDBMigration(migrationURL string, dbSource string) {
	migration, err := migrate.New(migrationURL, dbSource)
	if err != nil {
		log.Fatal("cannot create a new migrate instance", err)
	}

	if err = migration.Up(); err != nil && err != migrate.ErrNoChange {
		log.Fatal("failed to run migrate up:", err)
	}
	log.Println("db migrated successfully")
}
