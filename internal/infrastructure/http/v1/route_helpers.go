// Package v1 provides HTTP API version 1.
package v1

import (
	"github.com/gin-gonic/gin"
)

// EditorRouteHandler defines the interface for facture edit session handlers.
type EditorRouteHandler interface {
	Open(c *gin.Context)
	Get(c *gin.Context)
	Close(c *gin.Context)
	AddLine(c *gin.Context)
	UpdateLine(c *gin.Context)
	RemoveLine(c *gin.Context)
	CopyLine(c *gin.Context)
	ToggleLine(c *gin.Context)
	ValidateLine(c *gin.Context)
	ReplaceLines(c *gin.Context)
	Reorder(c *gin.Context)
	Validate(c *gin.Context)
	SetRistourne(c *gin.Context)
	SetHeader(c *gin.Context)
	Submit(c *gin.Context)
}

// DragRouteHandler is an optional interface for handlers that support
// pointer-driven reordering.
type DragRouteHandler interface {
	DragStart(c *gin.Context)
	DragOver(c *gin.Context)
	DragDrop(c *gin.Context)
	DragEnd(c *gin.Context)
}

// RegisterEditorRoutes registers the edit session routes.
// If the handler also implements DragRouteHandler, the drag routes are registered too.
//
// Usage:
//
//	handler := handlers.NewEditorHandler(baseHandler, handlers.EditorHandlerConfig{...})
//	RegisterEditorRoutes(v1.Group("/facture-editors"), handler)
func RegisterEditorRoutes(group *gin.RouterGroup, handler EditorRouteHandler) {
	group.POST("", handler.Open)
	group.GET("/:id", handler.Get)
	group.DELETE("/:id", handler.Close)

	group.POST("/:id/lines", handler.AddLine)
	group.PUT("/:id/lines", handler.ReplaceLines)
	group.PATCH("/:id/lines/:index", handler.UpdateLine)
	group.DELETE("/:id/lines/:index", handler.RemoveLine)
	group.POST("/:id/lines/:index/copy", handler.CopyLine)
	group.POST("/:id/lines/:index/toggle", handler.ToggleLine)
	group.POST("/:id/lines/:index/validate", handler.ValidateLine)
	group.POST("/:id/reorder", handler.Reorder)

	group.POST("/:id/validate", handler.Validate)
	group.PUT("/:id/ristourne", handler.SetRistourne)
	group.PUT("/:id/header", handler.SetHeader)
	group.POST("/:id/submit", handler.Submit)

	if drag, ok := handler.(DragRouteHandler); ok {
		group.POST("/:id/drag/start", drag.DragStart)
		group.POST("/:id/drag/over", drag.DragOver)
		group.POST("/:id/drag/drop", drag.DragDrop)
		group.POST("/:id/drag/end", drag.DragEnd)
	}
}
