package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-admin-console/internal/http/middleware"
)

// GetDashboard godoc
// @ID          dashboard
// @Summary     Dashboard totals
// @Description Record counts per resource type. Users are counted for admins only.
// @Tags        Dashboard
// @Produce     json
// @Success     200  {object}  services.Stats
// @Failure     502  {object}  handlers.ErrorResponse
// @Router      /dashboard [get]
func (h *Handlers) GetDashboard(c *gin.Context) {
	id, _ := middleware.IdentityFrom(c)
	st, err := h.Dashboard.Stats(c.Request.Context(), id.IsAdmin())
	if err != nil {
		respondError(c, err, "dashboard.loadFailed")
		return
	}
	ok(c, http.StatusOK, st)
}
