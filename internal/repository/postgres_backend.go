package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"stockledger/internal/apperr"
	"stockledger/internal/infra"
	"stockledger/internal/model"

	"github.com/jackc/pgx/v5"
	"gorm.io/gorm"
)

// PostgresBackend mints executors over a shared connection pool. The pool's
// login role only needs membership in the scoped role: every statement an
// executor issues runs inside a transaction that first drops to that role and
// publishes the principal's claims, so the row-level security policies
// installed by infra.NewDatabase decide what the principal may touch.
type PostgresBackend struct {
	db   *gorm.DB
	role string
	cb   *infra.CircuitBreaker
}

// NewPostgresBackend wires the pool, the scoped role name and a circuit
// breaker that only trips on Unavailable failures.
func NewPostgresBackend(db *gorm.DB, role string, cb *infra.CircuitBreaker) *PostgresBackend {
	if cb == nil {
		cb = infra.NewCircuitBreaker(infra.DefaultCBConfig())
	}
	cb.SetTripPredicate(func(err error) bool {
		return apperr.KindOf(classify(err)) == apperr.KindUnavailable
	})
	return &PostgresBackend{db: db, role: role, cb: cb}
}

var _ Backend = (*PostgresBackend)(nil)

// Scope binds the principal's claims. It fails fast while the breaker is
// open so a downed database never yields a usable executor.
func (b *PostgresBackend) Scope(_ context.Context, principal model.Principal, _ string) (Executor, error) {
	if b.cb.State() == infra.CBOpen {
		return nil, apperr.Unavailable(infra.ErrCircuitOpen)
	}
	claims, err := json.Marshal(map[string]string{
		"sub":   principal.ID.String(),
		"email": principal.Email,
		"role":  principal.Role,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal claims: %w", err)
	}
	return &pgExecutor{backend: b, principal: principal, claims: string(claims)}, nil
}

// Ping checks database connectivity.
func (b *PostgresBackend) Ping(ctx context.Context) error {
	sqlDB, err := b.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// CircuitState is exposed for the health endpoint.
func (b *PostgresBackend) CircuitState() infra.CBState { return b.cb.State() }

type pgExecutor struct {
	backend   *PostgresBackend
	principal model.Principal
	claims    string
}

func (e *pgExecutor) Principal() model.Principal { return e.principal }

// run executes fn in one transaction under the scoped role. The transaction
// is the unit of atomicity: an aborted request either commits fully or not at
// all.
func (e *pgExecutor) run(ctx context.Context, fn func(tx *gorm.DB) error) error {
	err := e.backend.cb.Execute(func() error {
		return e.backend.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			if err := tx.Exec("SET LOCAL ROLE " + pgx.Identifier{e.backend.role}.Sanitize()).Error; err != nil {
				return err
			}
			if err := tx.Exec("SELECT set_config('request.jwt.claims', ?, true)", e.claims).Error; err != nil {
				return err
			}
			return fn(tx)
		})
	})
	return classify(err)
}
