// Command mktoken mints a bearer token for the form endpoints. The rendering
// layer is normally handed its token by the hosting platform; this tool
// covers local development and operational debugging.
//
// Usage:
//
//	JWT_SECRET=... mktoken -user 7 -login 'dom\alice' [-ttl 24h]
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/joho/godotenv"

	"github.com/calejo/formgate/internal/auth"
	"github.com/calejo/formgate/pkg/logging"
)

func main() {
	logging.Setup()

	userID := flag.Int64("user", 0, "operator id the token acts for")
	login := flag.String("login", "", "operator login name")
	ttl := flag.Duration("ttl", 24*time.Hour, "how long the token stays valid")
	flag.Parse()

	if *userID <= 0 || *login == "" {
		flag.Usage()
		os.Exit(2)
	}

	_ = godotenv.Load() // missing .env is fine

	secret := os.Getenv("JWT_SECRET")
	if secret == "" {
		slog.Error("JWT_SECRET is required")
		os.Exit(1)
	}

	token, err := auth.NewJWTManager(secret, *ttl).Generate(*userID, *login)
	if err != nil {
		slog.Error("Failed to generate token", "error", err)
		os.Exit(1)
	}

	fmt.Println(token)
}
