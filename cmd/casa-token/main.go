// Command casa-token mints a bearer token for local development.
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"casa/internal/auth"
	"casa/internal/cli"
	"casa/internal/config"
	applog "casa/internal/log"
)

func main() {
	owner := flag.String("owner", "", "owner id placed in the token subject")
	ttl := flag.Duration("ttl", 0, "token lifetime (default JWT_TTL)")
	flag.Parse()

	cli.LoadEnvFile()
	logger := cli.SetupLogger(os.Getenv("LOG_LEVEL"), os.Getenv("LOG_FORMAT"))

	if *owner == "" {
		logger.Error("Missing -owner")
		flag.Usage()
		os.Exit(2)
	}

	cfg := config.Load()
	if len(cfg.JWTSecret) < config.MinJWTSecretLength {
		logger.Error("JWT_SECRET missing or too short", "min_length", config.MinJWTSecretLength)
		os.Exit(1)
	}
	lifetime := cfg.TokenTTL
	if *ttl > 0 {
		lifetime = *ttl
	}

	token, err := auth.NewTokens([]byte(cfg.JWTSecret), lifetime).GenerateToken(*owner)
	if err != nil {
		logger.Error("Failed to sign token", applog.FieldError, err)
		os.Exit(1)
	}
	logger.Debug("Token issued", applog.FieldOwnerID, *owner, "expires_at", time.Now().Add(lifetime).Format(time.RFC3339))
	fmt.Println(token)
}
