// Command devtoken mints a signed access token for local development, so the
// API can be exercised without the platform's auth service.
//
//	go run ./cmd/devtoken -role manager -ttl 8h
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/Mtaasisi/NEON-POS-sub042/internal/config"
	"github.com/Mtaasisi/NEON-POS-sub042/internal/middleware"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

func main() {
	role := flag.String("role", middleware.RoleAdmin, "admin | manager | cashier")
	user := flag.String("user", "dev", "user id placed in the token")
	scope := flag.String("scope", "", "opaque scope claim")
	ttl := flag.Duration("ttl", 8*time.Hour, "token lifetime")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	if cfg.IsProduction() {
		log.Fatal().Msg("refusing to mint tokens with APP_ENV=production")
	}
	if cfg.JWTSecret == "" {
		log.Fatal().Msg("JWT_SECRET is required")
	}

	now := time.Now()
	claims := middleware.JWTClaims{
		UserID: *user,
		Role:   *role,
		Scope:  *scope,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   *user,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(*ttl)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(cfg.JWTSecret))
	if err != nil {
		log.Fatal().Err(err).Msg("sign token")
	}
	fmt.Fprintln(os.Stdout, signed)
}
