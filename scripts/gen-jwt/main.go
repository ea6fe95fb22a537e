// Gen-jwt prints a bearer token for the protected routes, signed with the
// configured auth.jwt_secret. Run from project root: go run ./scripts/gen-jwt [subject]
package main

import (
	"fmt"
	"os"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/joho/godotenv"

	"chronoloom/internal/config"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load("config.yaml")
	if err != nil {
		fmt.Fprintln(os.Stderr, "Config failed:", err)
		os.Exit(1)
	}
	secret := cfg.Auth.JWTSecret
	if secret == "" {
		fmt.Fprintln(os.Stderr, "auth.jwt_secret is not set (JWT_SECRET or CHRONOLOOM_AUTH__JWT_SECRET)")
		os.Exit(1)
	}

	subject := "owner"
	if len(os.Args) > 1 {
		subject = os.Args[1]
	}

	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:   subject,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(24 * time.Hour)),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		fmt.Fprintln(os.Stderr, "Sign failed:", err)
		os.Exit(1)
	}

	fmt.Println(signed)
}
