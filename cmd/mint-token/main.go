// cmd/mint-token: issues a development credential signed with JWT_SECRET.
// Usage: go run ./cmd/mint-token -sub <uuid> [-email e] [-role viewer] [-ttl 12h]
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"stockledger/internal/config"
	"stockledger/internal/identity"
	"stockledger/internal/model"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	sub := flag.String("sub", "", "user id (uuid); a random one when empty")
	email := flag.String("email", "dev@example.com", "email claim")
	role := flag.String("role", "authenticated", "role claim forwarded to the store policies")
	ttl := flag.Duration("ttl", 12*time.Hour, "credential lifetime")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	if cfg.IdentityMode != config.IdentityModeJWT {
		log.Fatal().Str("mode", cfg.IdentityMode).Msg("credentials can only be minted in jwt identity mode")
	}

	id := uuid.New()
	if *sub != "" {
		if id, err = uuid.Parse(*sub); err != nil {
			log.Fatal().Err(err).Msg("-sub must be a uuid")
		}
	}

	codec := identity.NewJWTCodec(cfg.JWTSecret, cfg.JWTAudience)
	token, err := codec.Issue(model.Principal{ID: id, Email: *email, Role: *role}, *ttl)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to sign credential")
	}

	log.Info().Str("sub", id.String()).Str("role", *role).Dur("ttl", *ttl).Msg("credential issued")
	fmt.Println(token)
}
