package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// LanguageRequest selects the console language.
type LanguageRequest struct {
	Language string `json:"language" example:"en-US"`
}

// ThemeRequest selects the console theme.
type ThemeRequest struct {
	Theme string `json:"theme" example:"dark"`
}

// GetSession godoc
// @ID          getSession
// @Summary     Session state
// @Description Reports whether an operator is signed in plus the stored language and theme.
// @Tags        Session
// @Produce     json
// @Success     200  {object}  session.State
// @Router      /session [get]
func (h *Handlers) GetSession(c *gin.Context) {
	ok(c, http.StatusOK, h.Session.State())
}

// SetLanguage godoc
// @ID          setLanguage
// @Summary     Change the console language
// @Tags        Session
// @Accept      json
// @Produce     json
// @Param       body  body  handlers.LanguageRequest  true  "Language"
// @Success     200  {object}  session.State
// @Failure     400  {object}  handlers.ErrorResponse
// @Router      /session/language [put]
func (h *Handlers) SetLanguage(c *gin.Context) {
	var req LanguageRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Language == "" {
		failKey(c, http.StatusBadRequest, ErrCodeBadRequest, "error.badRequest")
		return
	}
	if err := h.Session.SetLanguage(c.Request.Context(), req.Language); err != nil {
		respondError(c, err, "")
		return
	}
	ok(c, http.StatusOK, h.Session.State())
}

// SetTheme godoc
// @ID          setTheme
// @Summary     Change the console theme
// @Tags        Session
// @Accept      json
// @Produce     json
// @Param       body  body  handlers.ThemeRequest  true  "Theme"
// @Success     200  {object}  session.State
// @Failure     400  {object}  handlers.ErrorResponse
// @Router      /session/theme [put]
func (h *Handlers) SetTheme(c *gin.Context) {
	var req ThemeRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Theme == "" {
		failKey(c, http.StatusBadRequest, ErrCodeBadRequest, "error.badRequest")
		return
	}
	if err := h.Session.SetTheme(c.Request.Context(), req.Theme); err != nil {
		respondError(c, err, "")
		return
	}
	ok(c, http.StatusOK, h.Session.State())
}
