// Package main creates or refreshes the super-admin account.
//
// Run once at deploy time:
//
//	DB_PATH=data/backend.db \
//	ADMIN_EMAIL=admin@example.com \
//	ADMIN_PASSWORD=... \
//	go run ./cmd/bootstrap
//
// The command is idempotent: if the account already exists it updates the
// password hash and role in place, so re-running after a password rotation
// is safe. Points and profile fields on an existing account are left
// alone.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"time"

	"github.com/RahulSriwastaw/backend/internal/identity"
	"github.com/RahulSriwastaw/backend/internal/model"
	sqliteRepo "github.com/RahulSriwastaw/backend/internal/repository/sqlite"
	"github.com/RahulSriwastaw/backend/internal/service"
)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))

	var (
		dbPath   = flag.String("db", envOr("DB_PATH", "data/backend.db"), "path to the SQLite database")
		email    = flag.String("email", os.Getenv("ADMIN_EMAIL"), "super-admin email")
		password = flag.String("password", os.Getenv("ADMIN_PASSWORD"), "super-admin password")
		fullName = flag.String("name", envOr("ADMIN_NAME", "Super Admin"), "super-admin display name")
	)
	flag.Parse()

	if *email == "" || *password == "" {
		logger.Error("ADMIN_EMAIL and ADMIN_PASSWORD are required")
		os.Exit(1)
	}
	if len(*password) < service.MinPasswordLength {
		logger.Error("admin password too short", slog.Int("minLength", service.MinPasswordLength))
		os.Exit(1)
	}

	db, err := sqliteRepo.New(*dbPath)
	if err != nil {
		logger.Error("opening database", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := bootstrap(ctx, db, *email, *password, *fullName, logger); err != nil {
		logger.Error("bootstrap failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func bootstrap(ctx context.Context, db *sqliteRepo.DB, email, password, fullName string, logger *slog.Logger) error {
	hash, err := identity.NewPasswordService().Hash(password)
	if err != nil {
		return err
	}

	existing, err := db.FindByEmail(ctx, email)
	if err != nil {
		return err
	}

	if existing != nil {
		existing.PasswordHash = hash
		existing.Role = model.RoleSuperAdmin
		existing.IsVerified = true
		existing.Status = model.StatusActive
		if err := db.Update(ctx, existing); err != nil {
			return err
		}
		logger.Info("super admin refreshed", slog.String("userID", existing.ID))
		return nil
	}

	now := time.Now().UTC()
	admin := &model.User{
		Email:         email,
		Username:      "admin",
		FullName:      fullName,
		PasswordHash:  hash,
		Role:          model.RoleSuperAdmin,
		IsVerified:    true,
		PointsBalance: model.WelcomePointsGrant,
		Status:        model.StatusActive,
		LastActive:    now,
		MemberSince:   now,
	}
	if err := db.Create(ctx, admin); err != nil {
		return err
	}
	logger.Info("super admin created", slog.String("userID", admin.ID))
	return nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
