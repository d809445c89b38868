package main

import (
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/noah-isme/bulk-pricing/internal/auth"
	"github.com/noah-isme/bulk-pricing/internal/config"
)

// admintoken mints a short-lived admin bearer token for local development
// against the configured ADMIN_JWT_* settings.
func main() {
	subject := flag.String("sub", "dev-admin", "token subject")
	roles := flag.String("roles", "", "comma separated roles (defaults to ADMIN_ROLE)")
	ttl := flag.Duration("ttl", 0, "token lifetime (default 1h)")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if cfg.AppEnv == "production" {
		fmt.Fprintln(os.Stderr, "refusing to mint tokens in production")
		os.Exit(1)
	}

	verifier, err := auth.NewVerifier(auth.Config{
		Secret:       cfg.AdminJWTSecret,
		Issuer:       cfg.AdminJWTIssuer,
		Audience:     cfg.AdminJWTAudience,
		RequiredRole: cfg.AdminRole,
	})
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	granted := []string{cfg.AdminRole}
	if strings.TrimSpace(*roles) != "" {
		granted = granted[:0]
		for _, role := range strings.Split(*roles, ",") {
			if role = strings.TrimSpace(role); role != "" {
				granted = append(granted, role)
			}
		}
	}
	lifetime := *ttl
	if lifetime <= 0 {
		lifetime = time.Hour
	}
	token, err := verifier.Sign(*subject, granted, lifetime)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	fmt.Println(token)
}
