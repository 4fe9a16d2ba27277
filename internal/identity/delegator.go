package identity

import (
	"context"
	"strings"
	"sync/atomic"

	"stockledger/internal/apperr"
	"stockledger/internal/metrics"
	"stockledger/internal/model"
	"stockledger/internal/repository"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// Delegator exchanges a bearer credential for a Session. It holds no
// per-user state: nothing survives between calls.
type Delegator struct {
	codec   TokenCodec
	backend repository.Backend
	metrics *metrics.Registry
}

func NewDelegator(codec TokenCodec, backend repository.Backend, m *metrics.Registry) *Delegator {
	return &Delegator{codec: codec, backend: backend, metrics: m}
}

// Delegate verifies the credential and asks the backend for an executor
// bound to the resulting principal. Every failure, whatever its cause,
// surfaces as apperr.ErrUnauthorized; the cause is only logged.
func (d *Delegator) Delegate(ctx context.Context, credential string) (*Session, error) {
	credential = strings.TrimSpace(credential)

	principal, err := d.codec.Exchange(ctx, credential)
	if err != nil {
		return nil, d.reject("token exchange", err)
	}
	if principal.ID == uuid.Nil {
		return nil, d.reject("token exchange", ErrMalformedCredential)
	}

	exec, err := d.backend.Scope(ctx, principal, credential)
	if err != nil {
		return nil, d.reject("scope executor", err)
	}
	return &Session{Principal: principal, exec: &sessionExecutor{inner: exec}}, nil
}

func (d *Delegator) reject(stage string, cause error) error {
	d.metrics.IncDelegationFailure()
	log.Warn().Err(cause).Str("stage", stage).Msg("delegation rejected")
	return apperr.ErrUnauthorized
}

// Session is one request's authority. Close it when the request ends; the
// executor refuses every call afterwards.
type Session struct {
	Principal model.Principal
	exec      *sessionExecutor
}

// Executor returns the scoped executor for this session.
func (s *Session) Executor() repository.Executor { return s.exec }

// Close revokes the executor. It is safe to call more than once.
func (s *Session) Close() { s.exec.closed.Store(true) }

// sessionExecutor forwards to the backend's executor until the session is
// closed.
type sessionExecutor struct {
	inner  repository.Executor
	closed atomic.Bool
}

var errSessionClosed = apperr.New(apperr.KindUnauthorized, "session closed")

func (e *sessionExecutor) guard() error {
	if e.closed.Load() {
		return errSessionClosed
	}
	return nil
}

func (e *sessionExecutor) Principal() model.Principal { return e.inner.Principal() }

func (e *sessionExecutor) InsertProduct(ctx context.Context, p *model.Product) error {
	if err := e.guard(); err != nil {
		return err
	}
	return e.inner.InsertProduct(ctx, p)
}

func (e *sessionExecutor) SelectProduct(ctx context.Context, id uuid.UUID) (*model.Product, error) {
	if err := e.guard(); err != nil {
		return nil, err
	}
	return e.inner.SelectProduct(ctx, id)
}

func (e *sessionExecutor) ListProducts(ctx context.Context) ([]model.Product, error) {
	if err := e.guard(); err != nil {
		return nil, err
	}
	return e.inner.ListProducts(ctx)
}

func (e *sessionExecutor) UpdateProduct(ctx context.Context, id uuid.UUID, changes model.ProductChanges) (*model.Product, error) {
	if err := e.guard(); err != nil {
		return nil, err
	}
	return e.inner.UpdateProduct(ctx, id, changes)
}

func (e *sessionExecutor) DeleteProduct(ctx context.Context, id uuid.UUID) error {
	if err := e.guard(); err != nil {
		return err
	}
	return e.inner.DeleteProduct(ctx, id)
}

func (e *sessionExecutor) AppendTransaction(ctx context.Context, t *model.StockTransaction) error {
	if err := e.guard(); err != nil {
		return err
	}
	return e.inner.AppendTransaction(ctx, t)
}

func (e *sessionExecutor) SelectTransactions(ctx context.Context, filter model.TransactionFilter) ([]model.TransactionEntry, error) {
	if err := e.guard(); err != nil {
		return nil, err
	}
	return e.inner.SelectTransactions(ctx, filter)
}

func (e *sessionExecutor) SumChanges(ctx context.Context, productID uuid.UUID) (int64, error) {
	if err := e.guard(); err != nil {
		return 0, err
	}
	return e.inner.SumChanges(ctx, productID)
}

func (e *sessionExecutor) SelectStockLevels(ctx context.Context) ([]model.StockLevel, error) {
	if err := e.guard(); err != nil {
		return nil, err
	}
	return e.inner.SelectStockLevels(ctx)
}

func (e *sessionExecutor) SelectLowStock(ctx context.Context) ([]model.StockLevel, error) {
	if err := e.guard(); err != nil {
		return nil, err
	}
	return e.inner.SelectLowStock(ctx)
}
