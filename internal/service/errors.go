package service

import (
	"context"

	"stockledger/internal/apperr"
	"stockledger/internal/metrics"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// surface is applied to every error leaving the service layer. Classified
// errors pass through; anything else is logged in full and replaced by a
// generic Internal error.
func surface(ctx context.Context, m *metrics.Registry, op string, err error) error {
	if err == nil {
		return nil
	}
	if e, ok := apperr.As(err); ok {
		m.IncError(e.Kind.String())
		return err
	}
	m.IncError(apperr.KindInternal.String())
	logger(ctx).Error().Err(err).Str("op", op).Msg("unclassified failure")
	return apperr.Wrap(apperr.KindInternal, err, "internal error")
}

// logger returns the request logger carried by ctx, or the global one.
func logger(ctx context.Context) *zerolog.Logger {
	if l := zerolog.Ctx(ctx); l.GetLevel() != zerolog.Disabled {
		return l
	}
	return &log.Logger
}
