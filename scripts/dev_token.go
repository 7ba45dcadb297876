package main

import (
	"flag"
	"fmt"
	"log"

	"github.com/khoahotran/linkgraph/internal/config"
	"github.com/khoahotran/linkgraph/pkg/auth"
)

// Mints a session token signed with the configured secret so the API can be
// called locally without the auth provider.
func main() {
	account := flag.String("account", "", "account id (token subject)")
	email := flag.String("email", "", "email claim")
	flag.Parse()

	if *account == "" {
		log.Fatal("-account is required")
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("cannot load config: %v", err)
	}
	if cfg.Auth.JWTSecret == "" {
		log.Fatal("JWT_SECRET is not set")
	}

	jwtSvc := auth.NewJWTService(cfg.Auth.JWTSecret, cfg.Auth.Issuer, cfg.Auth.TokenLifespan)
	token, err := jwtSvc.GenerateToken(auth.Identity{AccountID: *account, Email: *email})
	if err != nil {
		log.Fatalf("cannot sign token: %v", err)
	}
	fmt.Println(token)
}
