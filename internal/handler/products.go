package handler

import (
	"net/http"

	"stockledger/internal/apierror"
	"stockledger/internal/dto"
	"stockledger/internal/infra"
	"stockledger/internal/service"

	"github.com/gin-gonic/gin"
)

type ProductsHandler struct {
	catalog    service.CatalogService
	projection service.StockProjection
	qr         *infra.QRCodec
}

func NewProductsHandler(catalog service.CatalogService, projection service.StockProjection, qr *infra.QRCodec) *ProductsHandler {
	return &ProductsHandler{catalog: catalog, projection: projection, qr: qr}
}

// List returns every visible product with its derived stock, ordered by name.
func (h *ProductsHandler) List(c *gin.Context) {
	exec, ok := executor(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()

	products, err := h.catalog.List(ctx, exec)
	if err != nil {
		respondError(c, err)
		return
	}
	levels, err := h.projection.AllLevels(ctx, exec)
	if err != nil {
		respondError(c, err)
		return
	}

	resp := dto.ProductListResponse{Products: make([]dto.ProductResponse, 0, len(products))}
	for i := range products {
		var proj *service.Projection
		if l, found := levels[products[i].ID]; found {
			proj = &l
		}
		resp.Products = append(resp.Products, dto.NewProductResponse(&products[i], proj))
	}
	c.JSON(http.StatusOK, resp)
}

func (h *ProductsHandler) Get(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	exec, ok := executor(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()

	p, err := h.catalog.Read(ctx, exec, id)
	if err != nil {
		respondError(c, err)
		return
	}
	proj, err := h.projection.Project(ctx, exec, id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.ProductEnvelope{Product: dto.NewProductResponse(p, proj)})
}

func (h *ProductsHandler) Create(c *gin.Context) {
	var req dto.CreateProductRequest
	if !bindAndValidate(c, &req) {
		return
	}
	exec, ok := executor(c)
	if !ok {
		return
	}

	p, err := h.catalog.Create(c.Request.Context(), exec, service.NewProduct{
		Name:             req.Name,
		SKU:              req.SKU,
		Description:      req.Description,
		ReorderThreshold: req.ReorderLevel,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, dto.ProductEnvelope{
		Message: "Product created successfully",
		Product: dto.NewProductResponse(p, nil),
	})
}

func (h *ProductsHandler) Update(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	var req dto.UpdateProductRequest
	if !bindAndValidate(c, &req) {
		return
	}
	exec, ok := executor(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()

	p, err := h.catalog.Update(ctx, exec, id, req.Changes())
	if err != nil {
		respondError(c, err)
		return
	}
	proj, err := h.projection.Project(ctx, exec, id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.ProductEnvelope{
		Message: "Product updated successfully",
		Product: dto.NewProductResponse(p, proj),
	})
}

// Delete removes the product; its ledger history is kept.
func (h *ProductsHandler) Delete(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	exec, ok := executor(c)
	if !ok {
		return
	}
	if err := h.catalog.Delete(c.Request.Context(), exec, id); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.MessageResponse{Message: "Product deleted successfully"})
}

// QRCode renders the shelf-label locator for a product the caller can see.
func (h *ProductsHandler) QRCode(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	exec, ok := executor(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()

	p, err := h.catalog.Read(ctx, exec, id)
	if err != nil {
		respondError(c, err)
		return
	}
	proj, err := h.projection.Project(ctx, exec, id)
	if err != nil {
		respondError(c, err)
		return
	}

	locator := h.qr.Encode(p.ID)
	image, err := h.qr.DataURL(locator)
	if err != nil {
		_ = c.Error(err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, apierror.New(apierror.MsgInternal))
		return
	}
	c.JSON(http.StatusOK, dto.QRCodeResponse{
		QRCodeData:  locator,
		QRCodeImage: image,
		Product:     dto.NewProductResponse(p, proj),
	})
}

// Lookup resolves a scanned locator. The code only names a product; access
// is decided by the catalog read under the caller's session.
func (h *ProductsHandler) Lookup(c *gin.Context) {
	exec, ok := executor(c)
	if !ok {
		return
	}
	id, err := h.qr.Decode(c.Query("code"))
	if err != nil {
		respondError(c, err)
		return
	}
	ctx := c.Request.Context()

	p, err := h.catalog.Read(ctx, exec, id)
	if err != nil {
		respondError(c, err)
		return
	}
	proj, err := h.projection.Project(ctx, exec, id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.ProductEnvelope{Product: dto.NewProductResponse(p, proj)})
}
