// cmd/adduser/main.go
// Creates or updates a back-office user in the database.
//
// Usage:
//
//	go run ./cmd/adduser -email ana@example.com -name "Ana" -password testing123 -role staff
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"strings"

	"github.com/google/uuid"

	"github.com/padraicbc/raceops/config"
	bundb "github.com/padraicbc/raceops/db"
	"github.com/padraicbc/raceops/handlers"
	"github.com/padraicbc/raceops/models"
)

func main() {
	email := flag.String("email", "", "login e-mail (required)")
	name := flag.String("name", "", "display name recorded on pickups and deliveries")
	password := flag.String("password", "", "plain-text password, at least 8 characters (required)")
	role := flag.String("role", string(models.RoleStaff), "admin, staff or athlete")
	flag.Parse()

	if *email == "" || *password == "" {
		log.Fatal("both -email and -password are required")
	}
	r := models.Role(strings.ToLower(*role))
	switch r {
	case models.RoleAdmin, models.RoleStaff, models.RoleAthlete:
	default:
		log.Fatalf("unknown role %q", *role)
	}

	hash, err := handlers.HashPassword(*password)
	if err != nil {
		log.Fatal("password:", err)
	}

	ctx := context.Background()
	cfg := config.LoadDB()
	db, err := bundb.Setup(ctx, cfg)
	if err != nil {
		log.Fatal(err)
	}
	defer db.Close()

	user := &models.User{
		ID:       uuid.NewString(),
		Email:    strings.ToLower(strings.TrimSpace(*email)),
		Name:     strings.TrimSpace(*name),
		Password: hash,
		Role:     r,
	}
	if user.Name == "" {
		user.Name = user.Email
	}

	_, err = db.NewInsert().Model(user).
		On("CONFLICT (email) DO UPDATE SET password = EXCLUDED.password, role = EXCLUDED.role, name = EXCLUDED.name").
		Exec(ctx)
	if err != nil {
		log.Fatal("insert user:", err)
	}

	fmt.Printf("user %q saved with role %s\n", user.Email, user.Role)
}
