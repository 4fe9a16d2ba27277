package service

import (
	"context"
	"testing"

	"stockledger/internal/apperr"
	"stockledger/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strPtr(s string) *string { return &s }
func intPtr(i int) *int       { return &i }

func TestCreateAppliesDefaults(t *testing.T) {
	s := newServices()
	exec := s.executor(t)

	p, err := s.catalog.Create(context.Background(), exec, NewProduct{Name: "  Pallet wrap ", SKU: "PW-01"})
	require.NoError(t, err)
	assert.Equal(t, "Pallet wrap", p.Name)
	assert.Equal(t, DefaultReorderThreshold, p.ReorderThreshold)
}

func TestCreateValidation(t *testing.T) {
	s := newServices()
	exec := s.executor(t)

	cases := map[string]NewProduct{
		"empty name":         {Name: " ", SKU: "A1"},
		"empty sku":          {Name: "A"},
		"bad sku charset":    {Name: "A", SKU: "A 1"},
		"negative threshold": {Name: "A", SKU: "A1", ReorderThreshold: intPtr(-1)},
	}
	for name, in := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := s.catalog.Create(context.Background(), exec, in)
			assert.ErrorIs(t, err, apperr.ErrInvalidArgument)
		})
	}
	assert.Equal(t, int64(1), s.backend.Calls(), "validation failures never reach the store")
}

func TestDuplicateSKULeavesExistingProduct(t *testing.T) {
	s := newServices()
	exec := s.executor(t)
	ctx := context.Background()

	orig, err := s.catalog.Create(ctx, exec, NewProduct{Name: "Original", SKU: "SKU-1", Description: strPtr("first")})
	require.NoError(t, err)

	_, err = s.catalog.Create(ctx, exec, NewProduct{Name: "Impostor", SKU: "SKU-1", ReorderThreshold: intPtr(99)})
	assert.ErrorIs(t, err, apperr.ErrConflict)

	got, err := s.catalog.Read(ctx, exec, orig.ID)
	require.NoError(t, err)
	assert.Equal(t, *orig, *got)
}

func TestRecreateAfterDeleteGetsFreshIdentity(t *testing.T) {
	s := newServices()
	exec := s.executor(t)
	ctx := context.Background()

	old := s.product(t, exec, "REUSE", 10)
	_, err := s.svc.RecordStockChange(ctx, exec, old.ID, 30, nil)
	require.NoError(t, err)

	// while the product exists the SKU is taken
	_, err = s.catalog.Create(ctx, exec, NewProduct{Name: "Again", SKU: "REUSE"})
	require.ErrorIs(t, err, apperr.ErrConflict)

	require.NoError(t, s.catalog.Delete(ctx, exec, old.ID))
	_, err = s.catalog.Read(ctx, exec, old.ID)
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	fresh, err := s.catalog.Create(ctx, exec, NewProduct{Name: "Again", SKU: "REUSE"})
	require.NoError(t, err)
	assert.NotEqual(t, old.ID, fresh.ID)

	stock, err := s.projection.CurrentStock(ctx, exec, fresh.ID)
	require.NoError(t, err)
	assert.Zero(t, stock, "orphaned entries never count toward the new product")

	history, err := s.ledger.History(ctx, exec, model.TransactionFilter{})
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, old.ID, history[0].ProductID)
	assert.Nil(t, history[0].ProductSKU)
}

func TestUpdatePartial(t *testing.T) {
	s := newServices()
	exec := s.executor(t)
	ctx := context.Background()
	p := s.product(t, exec, "UPD", 10)

	got, err := s.catalog.Update(ctx, exec, p.ID, model.ProductChanges{Description: strPtr("now with notes")})
	require.NoError(t, err)
	assert.Equal(t, p.Name, got.Name)
	assert.Equal(t, 10, got.ReorderThreshold)
	require.NotNil(t, got.Description)
	assert.Equal(t, "now with notes", *got.Description)

	same, err := s.catalog.Update(ctx, exec, p.ID, model.ProductChanges{})
	require.NoError(t, err)
	assert.Equal(t, got.UpdatedAt, same.UpdatedAt)

	_, err = s.catalog.Update(ctx, exec, p.ID, model.ProductChanges{Name: strPtr("  ")})
	assert.ErrorIs(t, err, apperr.ErrInvalidArgument)
}

func TestListOrderedByName(t *testing.T) {
	s := newServices()
	exec := s.executor(t)
	ctx := context.Background()

	for _, n := range []string{"Crate", "Axle", "Bolt"} {
		_, err := s.catalog.Create(ctx, exec, NewProduct{Name: n, SKU: n})
		require.NoError(t, err)
	}
	list, err := s.catalog.List(ctx, exec)
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, []string{"Axle", "Bolt", "Crate"}, []string{list[0].Name, list[1].Name, list[2].Name})
}

func TestDeleteUnknownProduct(t *testing.T) {
	s := newServices()
	exec := s.executor(t)
	p := s.product(t, exec, "ONCE", 1)

	require.NoError(t, s.catalog.Delete(context.Background(), exec, p.ID))
	assert.ErrorIs(t, s.catalog.Delete(context.Background(), exec, p.ID), apperr.ErrNotFound)
}
