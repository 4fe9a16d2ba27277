package repository

import (
	"context"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"stockledger/internal/apperr"
	"stockledger/internal/model"

	"github.com/google/uuid"
)

// RoleViewer is the role claim both backends treat as read-only.
const RoleViewer = "viewer"

// Action is what a principal attempts against the store.
type Action int

const (
	ActionRead Action = iota
	ActionWrite
)

// Policy decides whether a principal may perform an action. It plays the part
// row-level security plays in Postgres.
type Policy func(p model.Principal, action Action) bool

// DefaultPolicy lets every authenticated principal read and every role but
// RoleViewer write.
func DefaultPolicy(p model.Principal, action Action) bool {
	return action == ActionRead || !strings.EqualFold(p.Role, RoleViewer)
}

// MemoryBackend is a process-local store with the same contract as the
// Postgres backend. A single mutex serializes every operation, which is what
// makes an append's existence check and insert atomic.
type MemoryBackend struct {
	mu       sync.Mutex
	products map[uuid.UUID]model.Product
	skus     map[string]uuid.UUID
	ledger   []model.StockTransaction
	seq      int64
	last     time.Time

	now         func() time.Time
	policy      Policy
	unavailable atomic.Bool
	calls       atomic.Int64
}

// NewMemoryBackend returns an empty store governed by policy (DefaultPolicy
// when nil).
func NewMemoryBackend(policy Policy) *MemoryBackend {
	if policy == nil {
		policy = DefaultPolicy
	}
	return &MemoryBackend{
		products: make(map[uuid.UUID]model.Product),
		skus:     make(map[string]uuid.UUID),
		now:      time.Now,
		policy:   policy,
	}
}

var _ Backend = (*MemoryBackend)(nil)

func (b *MemoryBackend) Scope(_ context.Context, principal model.Principal, _ string) (Executor, error) {
	b.calls.Add(1)
	if b.unavailable.Load() {
		return nil, apperr.Unavailable(errMemoryDown)
	}
	return &memExecutor{b: b, principal: principal}, nil
}

func (b *MemoryBackend) Ping(context.Context) error {
	if b.unavailable.Load() {
		return errMemoryDown
	}
	return nil
}

// SetUnavailable simulates an unreachable store: every subsequent call fails
// with Unavailable until it is cleared.
func (b *MemoryBackend) SetUnavailable(down bool) { b.unavailable.Store(down) }

// Calls reports how many times the store was reached (Scope plus every
// executor operation).
func (b *MemoryBackend) Calls() int64 { return b.calls.Load() }

// LedgerLen returns the number of stored ledger entries, orphans included.
func (b *MemoryBackend) LedgerLen() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.ledger)
}

var errMemoryDown = apperr.New(apperr.KindUnavailable, "memory store marked unavailable")

// tick returns a creation timestamp strictly after the previous one. Callers
// hold b.mu.
func (b *MemoryBackend) tick() time.Time {
	t := b.now().UTC()
	if !t.After(b.last) {
		t = b.last.Add(time.Microsecond)
	}
	b.last = t
	return t
}

type memExecutor struct {
	b         *MemoryBackend
	principal model.Principal
}

func (e *memExecutor) Principal() model.Principal { return e.principal }

// enter reaches the store: it counts the call, fails when the store is down
// and applies the policy. On success the store lock is held.
func (e *memExecutor) enter(action Action) error {
	e.b.calls.Add(1)
	if e.b.unavailable.Load() {
		return apperr.Unavailable(errMemoryDown)
	}
	if !e.b.policy(e.principal, action) {
		return apperr.Forbidden("operation not permitted")
	}
	e.b.mu.Lock()
	return nil
}

func (e *memExecutor) leave() { e.b.mu.Unlock() }

// ── products relation ────────────────────────────────────────────────────────

func (e *memExecutor) InsertProduct(_ context.Context, p *model.Product) error {
	if err := checkProduct(p.Name, p.SKU, p.ReorderThreshold); err != nil {
		return err
	}
	if err := e.enter(ActionWrite); err != nil {
		return err
	}
	defer e.leave()

	if _, taken := e.b.skus[p.SKU]; taken {
		return apperr.Conflict("a product with this SKU already exists")
	}
	now := e.b.tick()
	p.ID = uuid.New()
	p.CreatedAt = now
	p.UpdatedAt = now
	e.b.products[p.ID] = detach(*p)
	e.b.skus[p.SKU] = p.ID
	return nil
}

func (e *memExecutor) SelectProduct(_ context.Context, id uuid.UUID) (*model.Product, error) {
	if err := e.enter(ActionRead); err != nil {
		return nil, err
	}
	defer e.leave()

	p, ok := e.b.products[id]
	if !ok {
		return nil, apperr.NotFound("product not found")
	}
	p = detach(p)
	return &p, nil
}

func (e *memExecutor) ListProducts(context.Context) ([]model.Product, error) {
	if err := e.enter(ActionRead); err != nil {
		return nil, err
	}
	defer e.leave()

	out := make([]model.Product, 0, len(e.b.products))
	for _, p := range e.b.products {
		out = append(out, detach(p))
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].ID.String() < out[j].ID.String()
	})
	return out, nil
}

func (e *memExecutor) UpdateProduct(_ context.Context, id uuid.UUID, changes model.ProductChanges) (*model.Product, error) {
	action := ActionWrite
	if changes.Empty() {
		action = ActionRead
	}
	if err := e.enter(action); err != nil {
		return nil, err
	}
	defer e.leave()

	p, ok := e.b.products[id]
	if !ok {
		return nil, apperr.NotFound("product not found")
	}
	p = detach(p)
	if changes.Empty() {
		return &p, nil
	}
	if changes.Name != nil {
		p.Name = *changes.Name
	}
	if changes.Description != nil {
		p.Description = copyString(changes.Description)
	}
	if changes.ReorderThreshold != nil {
		p.ReorderThreshold = *changes.ReorderThreshold
	}
	if err := checkProduct(p.Name, p.SKU, p.ReorderThreshold); err != nil {
		return nil, err
	}
	p.UpdatedAt = e.b.tick()
	e.b.products[id] = detach(p)
	return &p, nil
}

func (e *memExecutor) DeleteProduct(_ context.Context, id uuid.UUID) error {
	if err := e.enter(ActionWrite); err != nil {
		return err
	}
	defer e.leave()

	p, ok := e.b.products[id]
	if !ok {
		return apperr.NotFound("product not found")
	}
	delete(e.b.products, id)
	delete(e.b.skus, p.SKU)
	return nil
}

// ── stock_transactions relation ──────────────────────────────────────────────

func (e *memExecutor) AppendTransaction(_ context.Context, t *model.StockTransaction) error {
	if t.ChangeAmount == 0 {
		return apperr.InvalidArgument("change amount must be nonzero")
	}
	if !model.ChangeAmountInRange(t.ChangeAmount) {
		return apperr.InvalidArgument("change amount out of range")
	}
	if err := e.enter(ActionWrite); err != nil {
		return err
	}
	defer e.leave()

	if t.ActorID != e.principal.ID {
		return apperr.Forbidden("operation not permitted")
	}
	if _, ok := e.b.products[t.ProductID]; !ok {
		return apperr.NotFound("product not found")
	}
	e.b.seq++
	t.ID = uuid.New()
	t.Seq = e.b.seq
	t.CreatedAt = e.b.tick()
	stored := *t
	stored.Note = copyString(t.Note)
	e.b.ledger = append(e.b.ledger, stored)
	return nil
}

func (e *memExecutor) SelectTransactions(_ context.Context, filter model.TransactionFilter) ([]model.TransactionEntry, error) {
	if err := e.enter(ActionRead); err != nil {
		return nil, err
	}
	defer e.leave()

	limit := NormalizeLimit(filter.Limit)
	out := make([]model.TransactionEntry, 0, limit)
	for i := len(e.b.ledger) - 1; i >= 0 && len(out) < limit; i-- {
		t := e.b.ledger[i]
		if filter.ProductID != nil && t.ProductID != *filter.ProductID {
			continue
		}
		t.Note = copyString(t.Note)
		entry := model.TransactionEntry{StockTransaction: t}
		if p, ok := e.b.products[t.ProductID]; ok {
			name, sku := p.Name, p.SKU
			entry.ProductName = &name
			entry.ProductSKU = &sku
		}
		out = append(out, entry)
	}
	return out, nil
}

// ── derived views ────────────────────────────────────────────────────────────

func (e *memExecutor) SumChanges(_ context.Context, productID uuid.UUID) (int64, error) {
	if err := e.enter(ActionRead); err != nil {
		return 0, err
	}
	defer e.leave()

	if _, ok := e.b.products[productID]; !ok {
		return 0, apperr.NotFound("product not found")
	}
	return e.b.sum(productID), nil
}

func (e *memExecutor) SelectStockLevels(context.Context) ([]model.StockLevel, error) {
	if err := e.enter(ActionRead); err != nil {
		return nil, err
	}
	defer e.leave()
	return e.b.levels(func(model.StockLevel) bool { return true }), nil
}

func (e *memExecutor) SelectLowStock(context.Context) ([]model.StockLevel, error) {
	if err := e.enter(ActionRead); err != nil {
		return nil, err
	}
	defer e.leave()

	levels := e.b.levels(func(l model.StockLevel) bool { return l.CurrentStock < int64(l.ReorderThreshold) })
	sort.SliceStable(levels, func(i, j int) bool { return levels[i].CurrentStock < levels[j].CurrentStock })
	return levels, nil
}

// sum and levels are called with b.mu held.
func (b *MemoryBackend) sum(productID uuid.UUID) int64 {
	var total int64
	for _, t := range b.ledger {
		if t.ProductID == productID {
			total += int64(t.ChangeAmount)
		}
	}
	return total
}

func (b *MemoryBackend) levels(keep func(model.StockLevel) bool) []model.StockLevel {
	out := make([]model.StockLevel, 0, len(b.products))
	for id, p := range b.products {
		l := model.StockLevel{ProductID: id, ReorderThreshold: p.ReorderThreshold, CurrentStock: b.sum(id)}
		if keep(l) {
			out = append(out, l)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ProductID.String() < out[j].ProductID.String() })
	return out
}

// checkProduct mirrors the products check constraints.
func checkProduct(name, sku string, threshold int) error {
	switch {
	case strings.TrimSpace(name) == "":
		return apperr.InvalidArgument("name must not be empty")
	case sku == "":
		return apperr.InvalidArgument("sku must not be empty")
	case !model.ValidSKU(sku):
		return apperr.InvalidArgument("sku may contain only letters, digits, '-' and '_'")
	case threshold < 0:
		return apperr.InvalidArgument("reorder threshold must be >= 0")
	}
	return nil
}

// detach copies the pointer fields so stored rows never alias caller memory.
func detach(p model.Product) model.Product {
	p.Description = copyString(p.Description)
	return p
}

func copyString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}
