package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-admin-console/internal/domain"
)

// Login godoc
// @ID          login
// @Summary     Sign in
// @Description Authenticates against the remote API and persists the session. Cached data of a previous operator is dropped.
// @Tags        Auth
// @Accept      json
// @Produce     json
// @Param       body  body  domain.LoginRequest  true  "Credentials"
// @Success     200  {object}  domain.Identity
// @Failure     400  {object}  handlers.ErrorResponse
// @Failure     401  {object}  handlers.ErrorResponse
// @Failure     403  {object}  handlers.ErrorResponse
// @Failure     502  {object}  handlers.ErrorResponse
// @Router      /auth/login [post]
func (h *Handlers) Login(c *gin.Context) {
	var req domain.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		failKey(c, http.StatusBadRequest, ErrCodeBadRequest, "error.badRequest")
		return
	}
	id, err := h.Auth.Login(c.Request.Context(), req)
	if err != nil {
		respondError(c, err, "auth.loginFailed")
		return
	}
	ok(c, http.StatusOK, id)
}

// Logout godoc
// @ID          logout
// @Summary     Sign out
// @Tags        Auth
// @Produce     json
// @Success     200  {object}  handlers.MessageResponse
// @Router      /auth/logout [post]
func (h *Handlers) Logout(c *gin.Context) {
	if err := h.Auth.Logout(c.Request.Context()); err != nil {
		respondError(c, err, "")
		return
	}
	ok(c, http.StatusOK, MessageResponse{Message: tr(c, "auth.loggedOut")})
}

// Me godoc
// @ID          me
// @Summary     Current operator
// @Description Refreshes the operator profile from the remote API.
// @Tags        Auth
// @Produce     json
// @Success     200  {object}  domain.Identity
// @Failure     401  {object}  handlers.ErrorResponse
// @Failure     502  {object}  handlers.ErrorResponse
// @Router      /auth/me [get]
func (h *Handlers) Me(c *gin.Context) {
	id, err := h.Auth.Me(c.Request.Context())
	if err != nil {
		respondError(c, err, "auth.profileFailed")
		return
	}
	ok(c, http.StatusOK, id)
}
