package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/vyrodovalexey/gochp/internal/observability"
	"github.com/vyrodovalexey/gochp/internal/routes"
)

// setRouteRequest is the body accepted when registering a route.
type setRouteRequest struct {
	Target string `json:"target"`
}

// routeResponse is the wire form of a single route table entry.
type routeResponse struct {
	Target string `json:"target"`
}

// Handlers implements the route management endpoints over a shared
// route table.
type Handlers struct {
	table  *routes.Table
	logger observability.Logger
}

// NewHandlers creates route management handlers.
func NewHandlers(table *routes.Table, logger observability.Logger) *Handlers {
	return &Handlers{
		table:  table,
		logger: logger,
	}
}

// ListRoutes handles GET /api/routes. It returns every registered
// route keyed by spec.
func (h *Handlers) ListRoutes(c *gin.Context) {
	all := h.table.Routes()

	response := make(map[string]routeResponse, len(all))
	for spec, target := range all {
		response[spec] = routeResponse{Target: target}
	}

	c.JSON(http.StatusOK, response)
}

// SetRoute handles POST /api/routes/<spec>. It registers or replaces
// the route for the spec and responds 201 with no body.
func (h *Handlers) SetRoute(c *gin.Context) {
	spec := c.Param("spec")

	var req setRouteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, &ValidationError{Field: "body", Message: "body must be a JSON object"})
		return
	}
	if req.Target == "" {
		writeError(c, &ValidationError{Field: "target", Message: "target is required"})
		return
	}

	if err := h.table.Set(spec, req.Target); err != nil {
		writeError(c, &ValidationError{Field: "spec", Message: err.Error()})
		return
	}

	h.logger.Info("route registered",
		observability.String("spec", spec),
		observability.String("target", req.Target),
	)

	c.Status(http.StatusCreated)
}

// DeleteRoute handles DELETE /api/routes/<spec>. Removal is
// idempotent: deleting an absent spec still responds 204.
func (h *Handlers) DeleteRoute(c *gin.Context) {
	spec := c.Param("spec")

	if h.table.Delete(spec) {
		h.logger.Info("route removed",
			observability.String("spec", spec),
		)
	}

	c.Status(http.StatusNoContent)
}
