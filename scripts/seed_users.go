package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"os"

	"github.com/joho/godotenv"

	database "github.com/FACorreiaa/go-user-directory/app/db"
	"github.com/FACorreiaa/go-user-directory/config"
	"github.com/FACorreiaa/go-user-directory/internal/api"
	"github.com/FACorreiaa/go-user-directory/internal/api/directory"
)

// seed_users populates the directory with a handful of sample records.
// Intended for local development only; re-running skips records whose
// email is already taken.
func main() {
	ctx := context.Background()

	if err := godotenv.Load(); err != nil {
		log.Printf("Warning: Could not load .env file: %v", err)
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))

	cfg, err := config.InitConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	dbConfig, err := database.NewDatabaseConfig(&cfg, logger)
	if err != nil {
		log.Fatalf("Failed to build database config: %v", err)
	}

	if err := database.RunMigrations(dbConfig.ConnectionURL, logger); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	pool, err := database.Init(dbConfig.ConnectionURL, logger)
	if err != nil {
		log.Fatalf("Failed to initialize database pool: %v", err)
	}
	defer pool.Close()

	if !database.WaitForDB(ctx, pool, logger) {
		log.Fatal("Database not reachable")
	}

	repo := directory.NewPostgresUserRepo(pool, logger)
	hasher := directory.NewBcryptHasher(cfg.Directory.BcryptCost)
	service := directory.NewDirectoryService(repo, hasher, cfg.Directory, logger)

	phone := func(s string) *string { return &s }
	samples := []api.CreateUserParams{
		{Name: "Ana Silva", Email: "ana.silva@example.com", Phone: phone("+351912000001"), Password: "changeme1"},
		{Name: "Bruno Costa", Email: "bruno.costa@example.com", Phone: phone("+351912000002"), Password: "changeme2"},
		{Name: "Carla Mendes", Email: "carla.mendes@example.com", Password: "changeme3"},
		{Name: "Diogo Ferreira", Email: "diogo.ferreira@example.com", Phone: phone("+351912000004"), Password: "changeme4"},
	}

	created := 0
	for _, params := range samples {
		user, err := service.CreateUser(ctx, params)
		if err != nil {
			if errors.Is(err, api.ErrConflict) {
				logger.Info("Skipping existing user", slog.String("email", params.Email))
				continue
			}
			log.Fatalf("Failed to seed user %s: %v", params.Email, err)
		}
		logger.Info("Seeded user", slog.Int64("id", user.ID), slog.String("email", user.Email))
		created++
	}

	logger.Info("Seeding complete", slog.Int("created", created), slog.Int("total", len(samples)))
}
