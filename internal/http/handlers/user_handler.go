package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-admin-console/internal/domain"
)

// ListUsers godoc
// @ID          listUsers
// @Summary     List console users
// @Description Admin only.
// @Tags        Users
// @Produce     json
// @Param       page      query  int  false  "Page number"  minimum(1) default(1)
// @Param       per_page  query  int  false  "Items per page"  minimum(1) maximum(100) default(10)
// @Success     200  {object}  handlers.ListResponse[domain.User]
// @Failure     403  {object}  handlers.ErrorResponse
// @Failure     502  {object}  handlers.ErrorResponse
// @Router      /users [get]
func (h *Handlers) ListUsers(c *gin.Context) {
	page, perPage := paging(c)
	p, err := h.Users.List(c.Request.Context(), page, perPage)
	if err != nil {
		respondError(c, err, "users.loadFailed")
		return
	}
	writeList(c, p, "users.loadFailed")
}

// GetUser godoc
// @ID          getUser
// @Summary     Get a console user
// @Tags        Users
// @Produce     json
// @Param       id  path  int  true  "User ID"
// @Success     200  {object}  domain.User
// @Failure     404  {object}  handlers.ErrorResponse
// @Router      /users/{id} [get]
func (h *Handlers) GetUser(c *gin.Context) {
	id, valid := pathID(c)
	if !valid {
		return
	}
	u, err := h.Users.Get(c.Request.Context(), id)
	if err != nil {
		respondError(c, err, "users.loadFailed")
		return
	}
	ok(c, http.StatusOK, u)
}

// CreateUser godoc
// @ID          createUser
// @Summary     Create a console user
// @Description A password of at least six characters is required.
// @Tags        Users
// @Accept      json
// @Produce     json
// @Param       body  body  domain.UserInput  true  "User"
// @Success     201  {object}  domain.User
// @Failure     400  {object}  handlers.ErrorResponse
// @Failure     502  {object}  handlers.ErrorResponse
// @Router      /users [post]
func (h *Handlers) CreateUser(c *gin.Context) {
	var in domain.UserInput
	if err := c.ShouldBindJSON(&in); err != nil {
		failKey(c, http.StatusBadRequest, ErrCodeBadRequest, "error.badRequest")
		return
	}
	u, err := h.Users.Create(c.Request.Context(), in)
	if err != nil {
		respondError(c, err, "users.createFailed")
		return
	}
	ok(c, http.StatusCreated, u)
}

// UpdateUser godoc
// @ID          updateUser
// @Summary     Update a console user
// @Description A blank password keeps the current one.
// @Tags        Users
// @Accept      json
// @Produce     json
// @Param       id    path  int               true  "User ID"
// @Param       body  body  domain.UserInput  true  "User"
// @Success     200  {object}  domain.User
// @Failure     400  {object}  handlers.ErrorResponse
// @Failure     502  {object}  handlers.ErrorResponse
// @Router      /users/{id} [put]
func (h *Handlers) UpdateUser(c *gin.Context) {
	id, valid := pathID(c)
	if !valid {
		return
	}
	var in domain.UserInput
	if err := c.ShouldBindJSON(&in); err != nil {
		failKey(c, http.StatusBadRequest, ErrCodeBadRequest, "error.badRequest")
		return
	}
	u, err := h.Users.Update(c.Request.Context(), id, in)
	if err != nil {
		respondError(c, err, "users.updateFailed")
		return
	}
	ok(c, http.StatusOK, u)
}

// DeleteUser godoc
// @ID          deleteUser
// @Summary     Delete a console user
// @Tags        Users
// @Param       id  path  int  true  "User ID"
// @Success     204  {string}  string  "No Content"
// @Failure     502  {object}  handlers.ErrorResponse
// @Router      /users/{id} [delete]
func (h *Handlers) DeleteUser(c *gin.Context) {
	id, valid := pathID(c)
	if !valid {
		return
	}
	if err := h.Users.Delete(c.Request.Context(), id); err != nil {
		respondError(c, err, "users.deleteFailed")
		return
	}
	noContent(c)
}
