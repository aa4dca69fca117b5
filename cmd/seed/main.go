// seed inserts development sample accounts for local testing.
// Idempotent: skips inserts if the dev customer (dev@example.com) already exists.
package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/google/uuid"

	"vehicle-rental-platform/authcore/internal/config"
	"vehicle-rental-platform/authcore/internal/db"
	"vehicle-rental-platform/authcore/internal/security"
	userdomain "vehicle-rental-platform/authcore/internal/user/domain"
	userrepo "vehicle-rental-platform/authcore/internal/user/repository"
)

const (
	devCustomerEmail = "dev@example.com"
	devSellerEmail   = "seller@example.com"
	devPassword      = "password123"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if cfg.DatabaseURL == "" {
		log.Fatal("DATABASE_URL is not set; create a .env from .env.example or set DATABASE_URL")
	}
	if !cfg.IsDevelopment() {
		log.Fatal("seed: refusing to run outside APP_ENV=development")
	}

	conn, err := db.Open(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	defer conn.Close()

	users := userrepo.NewPostgresRepository(conn)
	ctx := context.Background()

	existing, err := users.GetByEmail(ctx, devCustomerEmail)
	if err != nil {
		log.Fatalf("seed check: %v", err)
	}
	if existing != nil {
		log.Println("Seed already applied (dev@example.com exists). Skipping.")
		os.Exit(0)
	}

	hasher := security.NewHasher()
	passwordHash, err := hasher.Hash(devPassword)
	if err != nil {
		log.Fatalf("hash password: %v", err)
	}

	accounts := []struct {
		email string
		role  string
	}{
		{devCustomerEmail, userdomain.RoleCustomer},
		{devSellerEmail, userdomain.RoleSeller},
	}
	for _, a := range accounts {
		u := &userdomain.User{
			ID:           uuid.New().String(),
			Email:        a.email,
			PasswordHash: passwordHash,
			Role:         a.role,
			IsActive:     true,
		}
		if err := users.Create(ctx, u); err != nil {
			log.Fatalf("create %s: %v", a.email, err)
		}
		// Seeded accounts skip the email round trip.
		if err := users.SetEmailVerified(ctx, u.ID); err != nil {
			log.Fatalf("verify %s: %v", a.email, err)
		}
	}

	log.Println("Seed completed successfully.")
	fmt.Printf("Customer login: %s / %s\n", devCustomerEmail, devPassword)
	fmt.Printf("Seller login: %s / %s\n", devSellerEmail, devPassword)
}
