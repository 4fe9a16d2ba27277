package handler

import (
	"net/http"

	"stockledger/internal/dto"
	"stockledger/internal/model"
	"stockledger/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type StockHandler struct {
	ledgerSvc  service.LedgerService
	ledger     service.LedgerStore
	catalog    service.CatalogService
	projection service.StockProjection
}

func NewStockHandler(ledgerSvc service.LedgerService, ledger service.LedgerStore, catalog service.CatalogService, projection service.StockProjection) *StockHandler {
	return &StockHandler{ledgerSvc: ledgerSvc, ledger: ledger, catalog: catalog, projection: projection}
}

func (h *StockHandler) UpdateStock(c *gin.Context) {
	var req dto.UpdateStockRequest
	if !bindAndValidate(c, &req) {
		return
	}
	exec, ok := executor(c)
	if !ok {
		return
	}

	res, err := h.ledgerSvc.RecordStockChange(c.Request.Context(), exec, uuid.MustParse(req.ProductID), req.ChangeAmount, req.Notes)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.UpdateStockResponse{
		Message:        "Stock updated successfully",
		Transaction:    dto.NewTransactionResponse(res.Transaction),
		UpdatedProduct: dto.NewProductResponse(res.Product, res.Projection),
	})
}

func (h *StockHandler) Transactions(c *gin.Context) {
	var q dto.TransactionFilter
	if !bindQuery(c, &q) {
		return
	}
	exec, ok := executor(c)
	if !ok {
		return
	}

	filter := model.TransactionFilter{Limit: q.Limit}
	if q.ProductID != "" {
		id := uuid.MustParse(q.ProductID)
		filter.ProductID = &id
	}

	entries, err := h.ledger.History(c.Request.Context(), exec, filter)
	if err != nil {
		respondError(c, err)
		return
	}
	resp := dto.TransactionListResponse{Transactions: make([]dto.TransactionResponse, 0, len(entries))}
	for _, e := range entries {
		resp.Transactions = append(resp.Transactions, dto.NewTransactionEntryResponse(e))
	}
	c.JSON(http.StatusOK, resp)
}

// LowStock lists products below their reorder level, lowest stock first.
func (h *StockHandler) LowStock(c *gin.Context) {
	exec, ok := executor(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()

	levels, err := h.projection.LowStockLevels(ctx, exec)
	if err != nil {
		respondError(c, err)
		return
	}
	products, err := h.catalog.List(ctx, exec)
	if err != nil {
		respondError(c, err)
		return
	}
	byID := make(map[uuid.UUID]*model.Product, len(products))
	for i := range products {
		byID[products[i].ID] = &products[i]
	}

	resp := dto.LowStockResponse{LowStockProducts: make([]dto.ProductResponse, 0, len(levels))}
	for i := range levels {
		p, found := byID[levels[i].ProductID]
		if !found {
			continue // deleted between the two reads
		}
		resp.LowStockProducts = append(resp.LowStockProducts, dto.NewProductResponse(p, &levels[i]))
	}
	c.JSON(http.StatusOK, resp)
}
