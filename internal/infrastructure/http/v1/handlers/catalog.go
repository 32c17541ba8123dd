package handlers

import (
	"github.com/gin-gonic/gin"

	"facturation/internal/infrastructure/cache"
	"facturation/internal/infrastructure/http/v1/dto"
)

// CatalogHandler serves the service and unit catalog.
type CatalogHandler struct {
	*BaseHandler
	catalog *cache.CatalogCache
}

// NewCatalogHandler creates a new catalog handler.
func NewCatalogHandler(base *BaseHandler, catalog *cache.CatalogCache) *CatalogHandler {
	return &CatalogHandler{BaseHandler: base, catalog: catalog}
}

// Get returns the current catalog snapshot.
// GET /api/v1/catalog
func (h *CatalogHandler) Get(c *gin.Context) {
	h.OK(c, dto.FromCatalog(h.catalog.Current(), h.catalog.LoadedAt()))
}
