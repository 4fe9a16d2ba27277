// cmd/genqr: writes a printable shelf-label QR code for every product the
// given credential can see.
// Usage: STOCKLEDGER_TOKEN=<credential> go run ./cmd/genqr [-out qr_codes]
package main

import (
	"context"
	"flag"
	"os"
	"path/filepath"
	"strings"
	"time"

	"stockledger/internal/config"
	"stockledger/internal/identity"
	"stockledger/internal/infra"
	"stockledger/internal/repository"
	"stockledger/internal/service"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	out := flag.String("out", "qr_codes", "output directory")
	flag.Parse()

	credential := os.Getenv("STOCKLEDGER_TOKEN")
	if credential == "" {
		log.Fatal().Msg("STOCKLEDGER_TOKEN is required")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	if cfg.StoreDriver != config.StoreDriverPostgres {
		log.Fatal().Msg("genqr needs the postgres store")
	}

	db, err := infra.NewDatabase(cfg.DatabaseURL, cfg.DBScopedRole)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to postgres")
	}
	backend := repository.NewPostgresBackend(db, cfg.DBScopedRole, nil)

	var codec identity.TokenCodec = identity.NewJWTCodec(cfg.JWTSecret, cfg.JWTAudience)
	if cfg.IdentityMode == config.IdentityModeRemote {
		codec = identity.NewRemoteCodec(cfg.IdentityURL, cfg.IdentityAPIKey, time.Duration(cfg.IdentityTimeoutSeconds)*time.Second)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	sess, err := identity.NewDelegator(codec, backend, nil).Delegate(ctx, credential)
	if err != nil {
		log.Fatal().Err(err).Msg("credential rejected")
	}
	defer sess.Close()

	products, err := service.NewCatalogService(nil).List(ctx, sess.Executor())
	if err != nil {
		log.Fatal().Err(err).Msg("failed to list products")
	}
	if len(products) == 0 {
		log.Info().Msg("no products found")
		return
	}

	if err := os.MkdirAll(*out, 0o755); err != nil {
		log.Fatal().Err(err).Msg("failed to create output directory")
	}

	qr := infra.NewQRCodec(cfg.FrontendURL)
	for _, p := range products {
		png, err := qr.PNG(qr.Encode(p.ID))
		if err != nil {
			log.Error().Err(err).Str("sku", p.SKU).Msg("failed to render")
			continue
		}
		name := filepath.Join(*out, safeName(p.SKU)+"_"+p.ID.String()[:8]+".png")
		if err := os.WriteFile(name, png, 0o644); err != nil {
			log.Error().Err(err).Str("file", name).Msg("failed to write")
			continue
		}
		log.Info().Str("product", p.Name).Str("sku", p.SKU).Str("file", name).Msg("qr code written")
	}
	log.Info().Int("count", len(products)).Str("dir", *out).Msg("done")
}

// safeName keeps the SKU characters that are safe in a file name.
func safeName(sku string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		}
		return -1
	}, sku)
}
